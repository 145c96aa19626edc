// Package logging configures the process logger and HTTP request logging.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/router-for-me/SnippetRelay/internal/config"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Setup applies cfg to the standard logrus logger. The returned closer releases the log file, if any.
func Setup(cfg config.LoggingConfig) (io.Closer, error) {
	return configure(log.StandardLogger(), cfg, os.Stdout)
}

func configure(logger *log.Logger, cfg config.LoggingConfig, stdout io.Writer) (io.Closer, error) {
	level := log.InfoLevel
	if raw := strings.TrimSpace(cfg.Level); raw != "" {
		parsed, errLevel := log.ParseLevel(raw)
		if errLevel != nil {
			return nil, fmt.Errorf("logging: %w", errLevel)
		}
		level = parsed
	}
	logger.SetLevel(level)

	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "json":
		logger.SetFormatter(&log.JSONFormatter{})
	case "", "text":
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("logging: unknown format %q", cfg.Format)
	}

	file := strings.TrimSpace(cfg.File)
	if file == "" {
		logger.SetOutput(stdout)
		return nopCloser{}, nil
	}
	if errDir := os.MkdirAll(filepath.Dir(file), 0o755); errDir != nil {
		return nil, fmt.Errorf("logging: create log dir: %w", errDir)
	}
	rotator := &lumberjack.Logger{
		Filename:   file,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	logger.SetOutput(io.MultiWriter(stdout, rotator))
	return rotator, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
