// Package logging configures the process-wide logrus logger from config.
package logging

import (
	"io"
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/earthring/scenecast/internal/config"
)

// Setup applies level, formatter and output to the standard logrus logger.
// The returned closer releases the log file when LOG_OUTPUT_PATH is set.
func Setup(cfg config.LoggingConfig) (io.Closer, error) {
	return Configure(log.StandardLogger(), cfg)
}

// Configure applies cfg to logger.
func Configure(logger *log.Logger, cfg config.LoggingConfig) (io.Closer, error) {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid log level %q", cfg.Level)
	}
	logger.SetLevel(level)

	switch cfg.Format {
	case "text":
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	case "", "json":
		logger.SetFormatter(&log.JSONFormatter{})
	default:
		return nil, errors.Errorf("unknown log format %q", cfg.Format)
	}

	if cfg.OutputPath == "" {
		logger.SetOutput(os.Stdout)
		return nopCloser{}, nil
	}

	file, err := os.OpenFile(cfg.OutputPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "open log output %s", cfg.OutputPath)
	}
	logger.SetOutput(file)
	return file, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
