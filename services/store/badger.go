// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Config holds configuration for the report store.
type Config struct {
	// Path is the BadgerDB directory. Ignored when InMemory is true.
	Path string

	// InMemory keeps reports in memory only.
	InMemory bool

	SyncWrites bool

	// Retention is the TTL put on every stored report. Zero keeps them
	// until deleted.
	Retention time.Duration

	// GCInterval is how often value log GC runs. Zero disables it.
	GCInterval time.Duration

	// GCDiscardRatio must be in (0, 1]; anything else means 0.5.
	GCDiscardRatio float64

	// Logger receives store and BadgerDB diagnostics. Nil means slog.Default.
	Logger *slog.Logger
}

// DefaultConfig returns defaults for a persistent store at path: synced
// writes, 30 day retention, GC every 10 minutes.
func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		SyncWrites:     true,
		Retention:      30 * 24 * time.Hour,
		GCInterval:     10 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns a configuration for an in-memory store.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// badgerLog routes BadgerDB's printf logging into slog. Badger's Info
// output is chatty, so it is demoted to Debug.
type badgerLog struct{ *slog.Logger }

func (l badgerLog) Errorf(f string, a ...any)   { l.Error(fmt.Sprintf(f, a...)) }
func (l badgerLog) Warningf(f string, a ...any) { l.Warn(fmt.Sprintf(f, a...)) }
func (l badgerLog) Infof(f string, a ...any)    { l.Debug(fmt.Sprintf(f, a...)) }
func (l badgerLog) Debugf(f string, a ...any)   { l.Debug(fmt.Sprintf(f, a...)) }

func openBadger(cfg Config, logger *slog.Logger) (*badger.DB, error) {
	opts := badger.DefaultOptions(cfg.Path)
	switch {
	case cfg.InMemory:
		opts = badger.DefaultOptions("").WithInMemory(true)
	case cfg.Path == "":
		return nil, ErrNoPath
	default:
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("creating store directory %s: %w", cfg.Path, err)
		}
	}

	opts = opts.
		WithSyncWrites(cfg.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(badgerLog{logger.With(slog.String("component", "badger"))})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening report database: %w", err)
	}
	return db, nil
}

// collectGarbage runs value log GC every interval until ctx is done.
// Each tick rewrites files until Badger reports nothing left to reclaim.
func collectGarbage(ctx context.Context, db *badger.DB, interval time.Duration, ratio float64, logger *slog.Logger) {
	if ratio <= 0 || ratio > 1 {
		ratio = 0.5
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		rewrites := 0
		for ctx.Err() == nil {
			err := db.RunValueLogGC(ratio)
			if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrRejected) {
				break
			}
			if err != nil {
				logger.Warn("value log GC failed", slog.String("error", err.Error()))
				break
			}
			rewrites++
		}
		if rewrites > 0 {
			logger.Debug("value log GC", slog.Int("rewrites", rewrites))
		}
	}
}
