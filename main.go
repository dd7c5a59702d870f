package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tianon/phpfront/internal/config"
	"github.com/tianon/phpfront/internal/router"
)

const appName = "phpfront"

var version = "0.1.0"

const (
	helpServe    = "Serve on address and port (default 127.0.0.1:3000)"
	helpDocroot  = "Document root of both static files and php-fpm (default ./)"
	helpConfig   = "Read settings from a .toml or .yaml file"
	helpLogLevel = "Log level: debug, info, warn or error (default info)"
	helpFastCGI  = "FastCGI application to forward .php requests to, host:port or unix:/path\n(without it every .php request is answered with 404)"
	helpVersion  = "Print the version and exit"
)

var errVersion = errors.New("version requested")

// loadConfig layers defaults, config file, environment and flags, in that
// order, and validates the result.
func loadConfig(args []string, stderr io.Writer) (config.Config, error) {
	fs := flag.NewFlagSet(appName, flag.ContinueOnError)
	fs.SetOutput(stderr)

	var configFile, listen, docroot, logLevel, fastcgi string
	var showVersion bool
	fs.StringVar(&listen, "s", "", helpServe)
	fs.StringVar(&listen, "serve", "", helpServe)
	fs.StringVar(&docroot, "d", "", helpDocroot)
	fs.StringVar(&docroot, "document-root", "", helpDocroot)
	fs.StringVar(&configFile, "c", "", helpConfig)
	fs.StringVar(&configFile, "config", "", helpConfig)
	fs.StringVar(&logLevel, "log-level", "", helpLogLevel)
	fs.StringVar(&fastcgi, "fastcgi", "", helpFastCGI)
	fs.BoolVar(&showVersion, "version", false, helpVersion)

	cfg := config.Default()
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	if showVersion {
		return cfg, errVersion
	}
	if fs.NArg() > 0 {
		return cfg, errors.Wrapf(config.ErrInvalid, "unexpected arguments: %v", fs.Args())
	}

	if configFile != "" {
		if err := cfg.LoadFile(configFile); err != nil {
			return cfg, err
		}
	}
	if err := cfg.LoadEnv(); err != nil {
		return cfg, err
	}

	// only flags given on the command line override what's been loaded so far
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "s", "serve":
			cfg.Listen = listen
		case "d", "document-root":
			cfg.DocumentRoot = docroot
		case "log-level":
			cfg.LogLevel = logLevel
		case "fastcgi":
			cfg.SetFastCGI(fastcgi)
		}
	})

	return cfg, cfg.Validate()
}

func newLogger(level logrus.Level) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(level)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return log
}

func banner(w io.Writer, cfg config.Config) {
	bold := color.New(color.FgGreen, color.Bold)
	bold.Fprintf(w, "%s %s\n", appName, version)
	fmt.Fprintf(w, "  http://%s -> %s\n", cfg.Listen, cfg.DocumentRoot)
	if cfg.FastCGI.Enabled() {
		fmt.Fprintf(w, "  *.php -> fastcgi %s:%s\n", cfg.FastCGI.Network, cfg.FastCGI.Address)
	} else {
		color.New(color.FgYellow).Fprintln(w, "  *.php -> 404 (no fastcgi backend configured)")
	}
	fmt.Fprintln(w, "Press Ctrl+C to stop")
}

func main() {
	cfg, err := loadConfig(os.Args[1:], os.Stderr)
	switch {
	case err == flag.ErrHelp:
		return
	case err == errVersion:
		fmt.Printf("%s %s\n", appName, version)
		return
	case err != nil:
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(2)
	}

	log := newLogger(cfg.Level())
	rt := router.New(log, cfg.DocumentRoot, newDispatcher(log, cfg))
	srv := newServer(log, rt)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	banner(os.Stderr, cfg)
	log.Infof("Listening on http://%s", cfg.Listen)
	log.Infof("Serving docroot %s", cfg.DocumentRoot)

	if err := serve(ctx, srv, cfg.Listen); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %s\n", err)
		os.Exit(1)
	}
	log.Info("shut down")
}
