// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package logging builds the slog loggers used by the codeguardian CLI and
// HTTP service.
//
// A Logger writes to the console (stderr, or Config.Writer) and optionally
// tees every record to a dated JSON file:
//
//	logger := logging.New(logging.Config{
//	    Level:   logging.LevelDebug,
//	    LogDir:  "~/.codeguardian/logs",
//	    Service: "serve",
//	})
//	defer logger.Close()
//	logger.Info("pattern registry loaded", "patterns", reg.Len())
//
// # Security Considerations
//
// Records are written as given. Callers must never log the matched text of
// a secret_exposure finding; log the pattern ID and line instead.
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Level is a slog level. The aliases keep callers from importing log/slog
// just to pick a verbosity.
type Level = slog.Level

const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// ParseLevel converts a configured level name to a Level.
//
// Description:
//
//	Accepts the slog names ("debug", "info", "warn", "error") in any case,
//	the "warning" spelling, and an empty string, which means info.
//
// Outputs:
//
//	Level - The parsed level, or LevelInfo when unrecognized.
//	error - Non-nil when the string is not a known level.
func ParseLevel(s string) (Level, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	switch name {
	case "":
		return LevelInfo, nil
	case "warning":
		name = "warn"
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}

// Config selects the logger's destinations. The zero value logs Info and
// above to stderr as text.
type Config struct {
	Level Level

	// LogDir adds a JSON file sink named "{Service}_{YYYY-MM-DD}.log".
	// A leading ~ is expanded.
	LogDir string

	// Service is attached to every record as the "service" attribute.
	Service string

	// JSON switches the console handler from text to JSON.
	JSON bool

	// Quiet drops the console sink. The file sink is unaffected.
	Quiet bool

	// Writer replaces stderr as the console sink.
	Writer io.Writer
}

// Logger is a *slog.Logger that owns its optional log file.
//
// Thread Safety: safe for concurrent use.
type Logger struct {
	*slog.Logger

	mu   sync.Mutex
	file *os.File
}

// New creates a Logger for config.
//
// Description:
//
//	An unwritable LogDir is not fatal: the logger keeps its console sink
//	and reports the problem as its first warning record.
//
// Outputs:
//
//	*Logger - Ready for use. Must be closed with Close().
func New(config Config) *Logger {
	opts := &slog.HandlerOptions{Level: config.Level}
	var sinks teeHandler

	if !config.Quiet {
		console := config.Writer
		if console == nil {
			console = os.Stderr
		}
		if config.JSON {
			sinks = append(sinks, slog.NewJSONHandler(console, opts))
		} else {
			sinks = append(sinks, slog.NewTextHandler(console, opts))
		}
	}

	l := &Logger{}
	var fileErr error
	if config.LogDir != "" {
		l.file, fileErr = openLogFile(config.LogDir, config.Service)
		if fileErr == nil {
			sinks = append(sinks, slog.NewJSONHandler(l.file, opts))
		}
	}

	var handler slog.Handler = sinks
	switch len(sinks) {
	case 0:
		handler = slog.DiscardHandler
	case 1:
		handler = sinks[0]
	}
	if config.Service != "" {
		handler = handler.WithAttrs([]slog.Attr{slog.String("service", config.Service)})
	}

	l.Logger = slog.New(handler)
	if fileErr != nil {
		l.Warn("file logging disabled", "dir", config.LogDir, "error", fileErr)
	}
	return l
}

func openLogFile(dir, service string) (*os.File, error) {
	dir = expandPath(dir)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, err
	}
	if service == "" {
		service = "codeguardian"
	}
	name := service + "_" + time.Now().Format(time.DateOnly) + ".log"
	return os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
}

// Slog returns the underlying *slog.Logger for components that accept one.
func (l *Logger) Slog() *slog.Logger {
	return l.Logger
}

// Close syncs and closes the log file, if any. Safe to call more than once.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	f := l.file
	l.file = nil
	return errors.Join(f.Sync(), f.Close())
}

// teeHandler sends each record to every handler that accepts its level.
type teeHandler []slog.Handler

func (t teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range t {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithGroup(name)
	}
	return out
}

func expandPath(path string) string {
	rest, ok := strings.CutPrefix(path, "~")
	if !ok {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, rest)
}
