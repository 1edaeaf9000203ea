package config

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/masq"
	"github.com/urfave/cli/v3"
)

// Logger holds logger configuration
type Logger struct {
	Level  string
	Format string
	Output string

	file *os.File
}

// Flags returns CLI flags for logger configuration
func (c *Logger) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &c.Level,
			Sources:     cli.EnvVars("PAGECRAFT_LOG_LEVEL"),
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "Log format (text, json)",
			Value:       "text",
			Destination: &c.Format,
			Sources:     cli.EnvVars("PAGECRAFT_LOG_FORMAT"),
		},
		&cli.StringFlag{
			Name:        "log-output",
			Usage:       "Log output (stdout, stderr or a file path)",
			Value:       "stdout",
			Destination: &c.Output,
			Sources:     cli.EnvVars("PAGECRAFT_LOG_OUTPUT"),
		},
	}
}

// Configure configures and returns a logger writing to the configured output
func (c *Logger) Configure() (*slog.Logger, error) {
	var w io.Writer
	switch c.Output {
	case "", "stdout", "-":
		w = os.Stdout
	case "stderr":
		w = os.Stderr
	default:
		f, err := os.OpenFile(c.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to open log file", goerr.V("path", c.Output))
		}
		c.file = f
		w = f
	}

	logger, err := c.New(w)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	return logger, nil
}

// Close syncs and closes the log file opened by Configure. It does nothing
// for stdout and stderr.
func (c *Logger) Close() error {
	if c.file == nil {
		return nil
	}
	f := c.file
	c.file = nil

	if err := f.Sync(); err != nil {
		_ = f.Close()
		return goerr.Wrap(err, "failed to sync log file", goerr.V("path", c.Output))
	}
	if err := f.Close(); err != nil {
		return goerr.Wrap(err, "failed to close log file", goerr.V("path", c.Output))
	}
	return nil
}

// New returns a logger writing to w. Credentials in logged values are
// replaced by masq.
func (c *Logger) New(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	switch strings.ToLower(c.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, goerr.New("invalid log level", goerr.V("level", c.Level))
	}

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: masq.New(
			masq.WithTag("secret"),
			masq.WithFieldName("Token"),
			masq.WithFieldName("APIKey"),
			masq.WithFieldName("Secret"),
			masq.WithFieldName("PrivateKey"),
		),
	}

	var handler slog.Handler
	switch strings.ToLower(c.Format) {
	case "", "text":
		handler = slog.NewTextHandler(w, opts)
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		return nil, goerr.New("invalid log format", goerr.V("format", c.Format))
	}

	return slog.New(handler), nil
}
