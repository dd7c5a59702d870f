// Package resolver maps request paths onto the document root.
package resolver

import (
	"os"
	"path"
	"path/filepath"
	"strings"
)

// IndexFiles are tried in order when a target turns out to be a directory.
var IndexFiles = []string{"index.html", "index.htm"}

// Target joins the request path onto root.
//
// Exactly one leading "/" is stripped. The remainder is cleaned as a rooted
// path first, so ".." segments stop at the document root instead of climbing
// out of it.
func Target(root, uriPath string) string {
	rel := strings.TrimPrefix(uriPath, "/")
	rel = strings.TrimPrefix(path.Clean("/"+rel), "/")
	return filepath.Join(root, filepath.FromSlash(rel))
}

// Index looks for an index document inside dir. The bool is false when none
// of IndexFiles exists there as a regular file.
func Index(dir string) (string, bool) {
	for _, name := range IndexFiles {
		candidate := filepath.Join(dir, name)
		if isFile(candidate) {
			return candidate, true
		}
	}
	return "", false
}

// Extension is the part of the base name after the last dot, without the dot.
// A leading dot alone (".htaccess") doesn't count as an extension.
func Extension(target string) string {
	name := filepath.Base(target)
	i := strings.LastIndexByte(name, '.')
	if i <= 0 {
		return ""
	}
	return name[i+1:]
}

// Exists reports whether anything (file, directory, ...) lives at target.
func Exists(target string) bool {
	_, err := os.Stat(target)
	return err == nil
}

func isFile(p string) bool {
	fi, err := os.Stat(p)
	if err != nil {
		return false
	}
	return fi.Mode().IsRegular()
}
