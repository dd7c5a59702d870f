// Package config loads and validates the process-wide settings.
//
// Settings come, lowest priority first, from Default, an optional TOML or
// YAML file, PHPFRONT_* environment variables (a .env file is honoured) and
// finally command-line flags, which main applies on top.
package config

import (
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is the cause of every error Validate and Load return.
var ErrInvalid = errors.New("invalid configuration")

const EnvPrefix = "PHPFRONT_"

type FastCGI struct {
	Network string `toml:"network" yaml:"network"`
	Address string `toml:"address" yaml:"address"`
}

// Enabled reports whether a FastCGI application was configured at all.
func (f FastCGI) Enabled() bool {
	return f.Address != ""
}

type Config struct {
	Listen       string  `toml:"listen" yaml:"listen"`
	DocumentRoot string  `toml:"document_root" yaml:"document_root"`
	LogLevel     string  `toml:"log_level" yaml:"log_level"`
	FastCGI      FastCGI `toml:"fastcgi" yaml:"fastcgi"`
}

func Default() Config {
	return Config{
		Listen:       "127.0.0.1:3000",
		DocumentRoot: "./",
		LogLevel:     "info",
	}
}

// LoadFile overlays the settings in path onto c. The format follows the
// extension: .toml, .yaml or .yml.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(ErrInvalid, "reading config file: %v", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		err = toml.Unmarshal(data, c)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	default:
		return errors.Wrapf(ErrInvalid, "config file %s: unsupported format %q", path, ext)
	}
	if err != nil {
		return errors.Wrapf(ErrInvalid, "parsing config file %s: %v", path, err)
	}
	return nil
}

// LoadEnv overlays PHPFRONT_* variables onto c, after reading a .env file
// from the working directory if there is one.
func (c *Config) LoadEnv() error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(ErrInvalid, "loading .env: %v", err)
	}

	for name, dst := range map[string]*string{
		"LISTEN":          &c.Listen,
		"DOCUMENT_ROOT":   &c.DocumentRoot,
		"LOG_LEVEL":       &c.LogLevel,
		"FASTCGI_NETWORK": &c.FastCGI.Network,
		"FASTCGI_ADDRESS": &c.FastCGI.Address,
	} {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok {
			*dst = v
		}
	}
	return nil
}

// SetFastCGI parses the -fastcgi flag form: "host:port" or "unix:/path".
func (c *Config) SetFastCGI(addr string) {
	if sock := strings.TrimPrefix(addr, "unix:"); sock != addr {
		c.FastCGI = FastCGI{Network: "unix", Address: sock}
		return
	}
	c.FastCGI = FastCGI{Network: "tcp", Address: addr}
}

// Validate checks c and normalizes it in place: the document root becomes
// absolute and the FastCGI network defaults to tcp.
func (c *Config) Validate() error {
	if c.DocumentRoot == "" {
		return errors.Wrap(ErrInvalid, "document root is not set")
	}
	root, err := filepath.Abs(c.DocumentRoot)
	if err != nil {
		return errors.Wrapf(ErrInvalid, "docroot %s: %v", c.DocumentRoot, err)
	}
	fi, err := os.Stat(root)
	if err != nil || !fi.IsDir() {
		return errors.Wrapf(ErrInvalid, "docroot %s is a non existing directory", c.DocumentRoot)
	}
	c.DocumentRoot = root

	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		return errors.Wrapf(ErrInvalid, "listen address %q: %v", c.Listen, err)
	}

	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrapf(ErrInvalid, "log level: %v", err)
	}

	if c.FastCGI.Enabled() {
		if c.FastCGI.Network == "" {
			c.FastCGI.Network = "tcp"
		}
		switch c.FastCGI.Network {
		case "tcp", "tcp4", "tcp6", "unix":
		default:
			return errors.Wrapf(ErrInvalid, "fastcgi network %q", c.FastCGI.Network)
		}
	}
	return nil
}

// Level is the parsed LogLevel; only meaningful after Validate.
func (c Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}
