// Copyright (c) 2025, fl4pj4ck and the jellytrailers contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package logger configures the global zerolog logger with console output
// and optional rotating file output.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/fl4pj4ck/jellytrailers/internal/domain"
)

// Setup initializes the global logger from the application config. It is
// safe to call again after a config reload.
func Setup(cfg *domain.Config) {
	zerolog.TimeFieldFormat = time.RFC3339

	console := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}

	var output io.Writer = console

	if cfg.LogPath != "" {
		logPath := cfg.LogPath
		if filepath.Ext(logPath) == "" {
			logPath = filepath.Join(logPath, "jellytrailers.log")
		}

		if err := os.MkdirAll(filepath.Dir(logPath), 0755); err == nil {
			rotator := &lumberjack.Logger{
				Filename:   logPath,
				MaxSize:    maxSize(cfg.LogMaxSize),
				MaxBackups: maxBackups(cfg.LogMaxBackups),
				Compress:   true,
			}
			output = io.MultiWriter(console, rotator)
		}
	}

	log.Logger = zerolog.New(output).
		Level(parseLevel(cfg.LogLevel)).
		With().
		Timestamp().
		Logger()
}

func maxSize(v int) int {
	if v <= 0 {
		return 50
	}
	return v
}

func maxBackups(v int) int {
	if v <= 0 {
		return 3
	}
	return v
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
