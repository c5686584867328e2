package config

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/framingham-risk-server/internal/domain"
)

// NewLogger builds a logrus logger from logging configuration. Output defaults to stderr,
// which keeps stdout free for the MCP stdio transport.
func NewLogger(cfg domain.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	if cfg.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	var out io.Writer = os.Stderr
	if cfg.Output == "stdout" {
		out = os.Stdout
	}
	logger.SetOutput(out)

	return logger
}
