package main

import (
	"context"
	"net"

	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"

	"github.com/tianon/phpfront/internal/backend"
	"github.com/tianon/phpfront/internal/config"
	"github.com/tianon/phpfront/internal/router"
)

func newDispatcher(log logrus.FieldLogger, cfg config.Config) backend.Dispatcher {
	if !cfg.FastCGI.Enabled() {
		return backend.NotFound{}
	}
	return backend.NewFastCGI(log, cfg.DocumentRoot, cfg.FastCGI.Network, cfg.FastCGI.Address)
}

func newServer(log *logrus.Logger, rt *router.Router) *fasthttp.Server {
	return &fasthttp.Server{
		Handler: handler(rt),
		Logger:  log,

		NoDefaultContentType:  true,
		NoDefaultServerHeader: true,
		CloseOnShutdown:       true,
	}
}

func serve(ctx context.Context, srv *fasthttp.Server, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return serveListener(ctx, srv, ln)
}

// serveListener blocks until the listener fails or ctx is cancelled; on
// cancellation in-flight requests are drained before it returns.
func serveListener(ctx context.Context, srv *fasthttp.Server, ln net.Listener) error {
	errc := make(chan error, 1)
	go func() {
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	if err := srv.Shutdown(); err != nil {
		return err
	}
	return <-errc
}
