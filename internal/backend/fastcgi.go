package backend

import (
	"bytes"
	"context"
	"net/http"
	"net/url"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/yookoala/gofast"

	"github.com/tianon/phpfront/internal/httpmsg"
)

type scriptKey struct{}

// FastCGI forwards script requests to a FastCGI application (php-fpm, usually)
// listening on network/address. The application process is not ours; it has
// to be running already.
type FastCGI struct {
	log     logrus.FieldLogger
	session gofast.SessionHandler
	clients gofast.ClientFactory
}

// NewFastCGI builds a dispatcher talking to the FastCGI application at
// network/address ("tcp", "127.0.0.1:9000" or "unix", "/run/php/php-fpm.sock").
func NewFastCGI(log logrus.FieldLogger, root, network, address string) *FastCGI {
	connFactory := gofast.SimpleConnFactory(network, address)
	return &FastCGI{
		log: log.WithField("fastcgi", network+":"+address),
		session: gofast.Chain(
			gofast.BasicParamsMap,
			gofast.MapHeader,
			mapScript(root),
		)(gofast.BasicSession),
		clients: gofast.SimpleClientFactory(connFactory),
	}
}

// Dispatch runs one FastCGI session. Only failures to talk to the
// application become a 500; whatever status the application answers with,
// 502 included, is passed through.
func (f *FastCGI) Dispatch(script string, req *httpmsg.Request) *httpmsg.Response {
	r, err := toHTTPRequest(script, req)
	if err != nil {
		f.log.WithError(err).Warn("building backend request")
		return httpmsg.InternalServerError()
	}

	client, err := f.clients()
	if err != nil {
		f.log.WithError(err).Warnf("backend unavailable for %s", script)
		return httpmsg.InternalServerError()
	}
	defer client.Close()

	resp, err := f.session(client, gofast.NewRequest(r))
	if err != nil {
		f.log.WithError(err).Warnf("backend session for %s", script)
		return httpmsg.InternalServerError()
	}

	rec := newRecorder()
	var stderr bytes.Buffer
	if err := resp.WriteTo(rec, &stderr); err != nil {
		f.log.WithError(err).Warnf("reading backend reply for %s", script)
		return httpmsg.InternalServerError()
	}
	if stderr.Len() > 0 {
		f.log.Warnf("backend stderr for %s: %s", script, stderr.String())
	}
	return rec.response()
}

// mapScript points the FastCGI application at the resolved script instead
// of letting it work the path out from the URI again.
func mapScript(root string) gofast.Middleware {
	return func(inner gofast.SessionHandler) gofast.SessionHandler {
		return func(client gofast.Client, req *gofast.Request) (*gofast.ResponsePipe, error) {
			script, _ := req.Raw.Context().Value(scriptKey{}).(string)
			req.Params["DOCUMENT_ROOT"] = root
			req.Params["SCRIPT_FILENAME"] = script
			if rel, err := filepath.Rel(root, script); err == nil {
				req.Params["SCRIPT_NAME"] = "/" + filepath.ToSlash(rel)
			}
			return inner(client, req)
		}
	}
}

func toHTTPRequest(script string, req *httpmsg.Request) (*http.Request, error) {
	host := req.Host
	if host == "" {
		host = "localhost"
	}
	// req.Path is already decoded, so it must not be reparsed as a URL
	u := &url.URL{
		Scheme:   "http",
		Host:     host,
		Path:     req.Path,
		RawQuery: req.Query,
	}

	ctx := context.WithValue(context.Background(), scriptKey{}, script)
	r, err := http.NewRequestWithContext(ctx, req.Method, u.String(), bytes.NewReader(req.Body))
	if err != nil {
		return nil, err
	}
	r.RequestURI = u.RequestURI()
	if req.Header != nil {
		r.Header = req.Header.Clone()
	}
	r.Host = host
	r.RemoteAddr = req.RemoteAddr
	r.ContentLength = int64(len(req.Body))
	return r, nil
}

// recorder collects the reply the FastCGI application writes back.
type recorder struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newRecorder() *recorder {
	return &recorder{header: make(http.Header)}
}

func (r *recorder) Header() http.Header {
	return r.header
}

func (r *recorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
}

func (r *recorder) Write(b []byte) (int, error) {
	r.WriteHeader(http.StatusOK)
	return r.body.Write(b)
}

func (r *recorder) response() *httpmsg.Response {
	status := r.status
	if status == 0 {
		status = http.StatusOK
	}
	header := r.header.Clone()
	contentType := header.Get("Content-Type")
	header.Del("Content-Type")
	if len(header) == 0 {
		header = nil
	}
	return &httpmsg.Response{
		Status:      status,
		Body:        r.body.Bytes(),
		ContentType: contentType,
		Header:      header,
	}
}
