package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/valyala/fasthttp/fasthttputil"

	"github.com/tianon/phpfront/internal/backend"
	"github.com/tianon/phpfront/internal/config"
	"github.com/tianon/phpfront/internal/httpmsg"
	"github.com/tianon/phpfront/internal/router"
)

func writeFile(t *testing.T, p, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func startServer(t *testing.T, root string, d backend.Dispatcher) *fasthttputil.InmemoryListener {
	t.Helper()
	log, _ := test.NewNullLogger()
	ln := fasthttputil.NewInmemoryListener()
	srv := newServer(log, router.New(log, root, d))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- serveListener(ctx, srv, ln)
	}()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("serveListener: %v", err)
		}
	})
	return ln
}

// roundTrip sends a raw HTTP/1.1 request and parses whatever comes back.
func roundTrip(t *testing.T, ln *fasthttputil.InmemoryListener, raw string) (*http.Response, string) {
	t.Helper()
	conn, err := ln.Dial()
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	if _, err := io.WriteString(conn, raw); err != nil {
		t.Fatal(err)
	}
	res, err := http.ReadResponse(bufio.NewReader(conn), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatal(err)
	}
	return res, string(body)
}

func get(t *testing.T, ln *fasthttputil.InmemoryListener, path string) (*http.Response, string) {
	t.Helper()
	return roundTrip(t, ln, fmt.Sprintf("GET %s HTTP/1.1\r\nHost: localhost\r\nConnection: close\r\n\r\n", path))
}

func TestServer(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "index.html"), "<h1>home</h1>")
	writeFile(t, filepath.Join(root, "site.css"), "h1{color:red}")
	writeFile(t, filepath.Join(root, "data.nosuchextension"), "opaque")
	writeFile(t, filepath.Join(root, "info.php"), "<?php phpinfo();")
	if err := os.MkdirAll(filepath.Join(root, "noindex"), 0o755); err != nil {
		t.Fatal(err)
	}

	ln := startServer(t, root, nil)

	tests := []struct {
		name     string
		path     string
		status   int
		body     string
		wantType string // prefix; "" means the header must be absent
	}{
		{"index", "/", http.StatusOK, "<h1>home</h1>", "text/html"},
		{"query is ignored", "/?page=2", http.StatusOK, "<h1>home</h1>", "text/html"},
		{"css", "/site.css", http.StatusOK, "h1{color:red}", "text/css"},
		{"unknown type", "/data.nosuchextension", http.StatusOK, "opaque", ""},
		{"php", "/info.php", http.StatusNotFound, "Not Found", ""},
		{"missing", "/nothing/here", http.StatusNotFound, "Not Found", ""},
		{"no index", "/noindex/", http.StatusInternalServerError, "Internal Server Error", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, body := get(t, ln, tt.path)
			if res.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", res.StatusCode, tt.status)
			}
			if body != tt.body {
				t.Errorf("body = %q, want %q", body, tt.body)
			}
			ct, ok := res.Header["Content-Type"]
			if tt.wantType == "" {
				if ok {
					t.Errorf("unexpected Content-Type %q", ct)
				}
			} else if !strings.HasPrefix(res.Header.Get("Content-Type"), tt.wantType) {
				t.Errorf("Content-Type = %q, want %s*", res.Header.Get("Content-Type"), tt.wantType)
			}
			if res.Header.Get("Server") != "" {
				t.Errorf("unexpected Server header %q", res.Header.Get("Server"))
			}
		})
	}
}

func TestServerForwardsToBackend(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "form.php"), "<?php")

	var mu sync.Mutex
	var seen *httpmsg.Request
	d := backend.DispatcherFunc(func(script string, req *httpmsg.Request) *httpmsg.Response {
		mu.Lock()
		seen = req
		mu.Unlock()
		res := httpmsg.OK([]byte("handled "+filepath.Base(script)), "text/html; charset=UTF-8")
		res.Header = http.Header{"X-Powered-By": {"test"}}
		return res
	})
	ln := startServer(t, root, d)

	res, body := roundTrip(t, ln, "POST /form.php?x=1 HTTP/1.1\r\n"+
		"Host: example.test\r\n"+
		"Content-Type: application/x-www-form-urlencoded\r\n"+
		"Content-Length: 7\r\n"+
		"Connection: close\r\n"+
		"\r\n"+
		"a=b&c=d")

	if res.StatusCode != http.StatusOK || body != "handled form.php" {
		t.Fatalf("got %d %q", res.StatusCode, body)
	}
	if res.Header.Get("X-Powered-By") != "test" || res.Header.Get("Content-Type") != "text/html; charset=UTF-8" {
		t.Errorf("backend headers not passed through: %v", res.Header)
	}

	mu.Lock()
	defer mu.Unlock()
	if seen.Method != "POST" || seen.Path != "/form.php" || seen.Query != "x=1" {
		t.Errorf("request line: %s %s ? %s", seen.Method, seen.Path, seen.Query)
	}
	if string(seen.Body) != "a=b&c=d" || seen.Host != "example.test" {
		t.Errorf("body %q host %q", seen.Body, seen.Host)
	}
	if seen.Header.Get("Content-Type") != "application/x-www-form-urlencoded" {
		t.Errorf("headers: %v", seen.Header)
	}
}

func TestServerConcurrent(t *testing.T) {
	root := t.TempDir()
	const n = 32
	for i := 0; i < n; i++ {
		writeFile(t, filepath.Join(root, fmt.Sprintf("page%d.txt", i)), strings.Repeat(fmt.Sprintf("%d,", i), 1000))
	}
	ln := startServer(t, root, nil)

	var wg sync.WaitGroup
	errs := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn, err := ln.Dial()
			if err != nil {
				errs <- err.Error()
				return
			}
			defer conn.Close()
			fmt.Fprintf(conn, "GET /page%d.txt HTTP/1.1\r\nHost: localhost\r\nConnection: close\r\n\r\n", i)
			res, err := http.ReadResponse(bufio.NewReader(conn), nil)
			if err != nil {
				errs <- err.Error()
				return
			}
			body, _ := io.ReadAll(res.Body)
			res.Body.Close()
			if string(body) != strings.Repeat(fmt.Sprintf("%d,", i), 1000) {
				errs <- fmt.Sprintf("page %d: wrong body (%d bytes)", i, len(body))
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for e := range errs {
		t.Error(e)
	}
}

func TestLoadConfig(t *testing.T) {
	chdir(t, t.TempDir())
	root := t.TempDir()
	other := t.TempDir()

	cfgFile := filepath.Join(t.TempDir(), "phpfront.toml")
	writeFile(t, cfgFile, fmt.Sprintf("listen = \"0.0.0.0:8000\"\ndocument_root = %q\nlog_level = \"warn\"\n", root))

	t.Run("defaults", func(t *testing.T) {
		cfg, err := loadConfig(nil, io.Discard)
		if err != nil {
			t.Fatal(err)
		}
		wd, _ := os.Getwd()
		if cfg.Listen != "127.0.0.1:3000" || cfg.DocumentRoot != wd || cfg.FastCGI.Enabled() {
			t.Errorf("unexpected defaults %+v", cfg)
		}
	})

	t.Run("file then flags", func(t *testing.T) {
		cfg, err := loadConfig([]string{"-c", cfgFile, "-d", other, "--fastcgi", "unix:/run/php.sock"}, io.Discard)
		if err != nil {
			t.Fatal(err)
		}
		if cfg.Listen != "0.0.0.0:8000" || cfg.LogLevel != "warn" {
			t.Errorf("file settings lost: %+v", cfg)
		}
		if cfg.DocumentRoot != other {
			t.Errorf("document root = %q, want %q", cfg.DocumentRoot, other)
		}
		if cfg.FastCGI != (config.FastCGI{Network: "unix", Address: "/run/php.sock"}) {
			t.Errorf("fastcgi = %+v", cfg.FastCGI)
		}
	})

	t.Run("env between file and flags", func(t *testing.T) {
		t.Setenv("PHPFRONT_LISTEN", "127.0.0.1:4000")
		t.Setenv("PHPFRONT_LOG_LEVEL", "debug")
		cfg, err := loadConfig([]string{"--config", cfgFile, "--log-level", "error"}, io.Discard)
		if err != nil {
			t.Fatal(err)
		}
		if cfg.Listen != "127.0.0.1:4000" || cfg.LogLevel != "error" {
			t.Errorf("unexpected %+v", cfg)
		}
	})

	t.Run("invalid docroot", func(t *testing.T) {
		_, err := loadConfig([]string{"--document-root", filepath.Join(root, "missing")}, io.Discard)
		if errors.Cause(err) != config.ErrInvalid {
			t.Errorf("err = %v, want ErrInvalid", err)
		}
	})

	t.Run("version", func(t *testing.T) {
		if _, err := loadConfig([]string{"-version", "-d", "/does/not/exist"}, io.Discard); err != errVersion {
			t.Errorf("err = %v, want errVersion", err)
		}
	})

	t.Run("stray arguments", func(t *testing.T) {
		if _, err := loadConfig([]string{"extra"}, io.Discard); err == nil {
			t.Errorf("expected an error")
		}
	})
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (stand-in for testing.T.Chdir, Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(wd); err != nil {
			t.Fatal(err)
		}
	})
}
