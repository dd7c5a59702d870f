// Package static turns a resolved filesystem path into a response.
package static

import (
	"io"
	"mime"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/tianon/phpfront/internal/httpmsg"
	"github.com/tianon/phpfront/internal/resolver"
)

// Used to open files. Can be mocked.
var openFile = func(name string) (io.ReadCloser, error) {
	return os.Open(name)
}

// Serve reads target and answers with its bytes.
//
// The branch order decides the status code and is deliberate:
//   - target can't be opened at all: 404
//   - target opens and reads fully: 200
//   - target opens but can't be read (directories land here): look for an
//     index document inside it; 200 if one reads fully, 500 otherwise,
//     including when there is no index document at all
func Serve(log logrus.FieldLogger, target string) *httpmsg.Response {
	f, err := openFile(target)
	if err != nil {
		return httpmsg.NotFound()
	}
	body, err := io.ReadAll(f)
	f.Close()
	if err == nil {
		return httpmsg.OK(body, ContentType(target))
	}

	index, ok := resolver.Index(target)
	if !ok {
		return httpmsg.InternalServerError()
	}
	log.Debugf("Resolved %s into %s", target, index)

	body, err = readAll(index)
	if err != nil {
		log.WithError(err).Warnf("reading %s", index)
		return httpmsg.InternalServerError()
	}
	return httpmsg.OK(body, ContentType(index))
}

// ContentType guesses a MIME type from the file extension; "" when unknown.
func ContentType(name string) string {
	ext := filepath.Ext(name)
	if ext == "" {
		return ""
	}
	return mime.TypeByExtension(ext)
}

func readAll(name string) ([]byte, error) {
	f, err := openFile(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
