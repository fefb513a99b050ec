package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/Domenick1991/aerobound/config"
	"github.com/sirupsen/logrus"
)

// New builds the process logger. It is created once in main and passed down.
func New(cfg config.LogConfig, service string) (*logrus.Entry, error) {
	return newWithOutput(cfg, service, os.Stdout)
}

func newWithOutput(cfg config.LogConfig, service string, out io.Writer) (*logrus.Entry, error) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(level)
	switch cfg.Format {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	case "", "text":
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	return l.WithField("service", service), nil
}

// Discard is a logger for tests.
func Discard() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}
