// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store persists scan reports in an embedded BadgerDB.
//
// Reports are written under two keys: the report itself, addressed by its
// UUID, and a time index entry used to list recent reports newest first.
// Both carry the same TTL when retention is configured.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/codeguardian/services/scanner"
)

var tracer = otel.Tracer("codeguardian.store")

// List limits.
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

const (
	reportPrefix = "r/"
	timePrefix   = "t/"
)

var (
	// ErrNotFound indicates no report exists for the ID.
	ErrNotFound = errors.New("report not found")

	// ErrStoreClosed indicates an operation on a closed store.
	ErrStoreClosed = errors.New("store is closed")

	// ErrNilReport indicates Put was called with a nil report.
	ErrNilReport = errors.New("report is nil")

	// ErrNoPath is returned by Open for a persistent store with no Path.
	ErrNoPath = errors.New("store path is required")
)

// Kind distinguishes single-file reports from batch reports.
type Kind string

const (
	KindSingle Kind = "single"
	KindBatch  Kind = "batch"
)

// Report is a stored scan outcome.
type Report struct {
	ID           string               `json:"id"`
	CreatedAt    time.Time            `json:"createdAt"`
	Kind         Kind                 `json:"kind"`
	Results      []scanner.BatchEntry `json:"results"`
	TotalIssues  int                  `json:"totalIssues"`
	MaxRiskScore float64              `json:"maxRiskScore"`
}

// NewSingleReport wraps one scan result.
func NewSingleReport(result scanner.ScanResult) *Report {
	return &Report{
		Kind:         KindSingle,
		Results:      []scanner.BatchEntry{{Filename: result.Filename, Result: &result}},
		TotalIssues:  result.Summary.TotalIssues,
		MaxRiskScore: result.RiskScore,
	}
}

// NewBatchReport wraps a batch result.
func NewBatchReport(result scanner.BatchResult) *Report {
	return &Report{
		Kind:         KindBatch,
		Results:      result.Entries,
		TotalIssues:  result.TotalIssues,
		MaxRiskScore: result.MaxRiskScore,
	}
}

// Store is a BadgerDB-backed report store.
//
// Thread Safety: Safe for concurrent use.
type Store struct {
	db        *badger.DB
	stopGC    context.CancelFunc
	gcDone    chan struct{}
	retention time.Duration
	logger    *slog.Logger
	now       func() time.Time

	mu     sync.RWMutex
	closed bool
}

// Open opens a report store.
//
// Inputs:
//
//	cfg - Store configuration. Path is required unless InMemory is true.
//
// Outputs:
//
//	*Store - The store. Call Close when done.
//	error - Non-nil if the database cannot be opened.
func Open(cfg Config) (*Store, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	db, err := openBadger(cfg, logger)
	if err != nil {
		return nil, err
	}

	s := &Store{
		db:        db,
		retention: cfg.Retention,
		logger:    logger.With(slog.String("component", "store")),
		now:       time.Now,
	}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		ctx, cancel := context.WithCancel(context.Background())
		s.stopGC = cancel
		s.gcDone = make(chan struct{})
		go func() {
			defer close(s.gcDone)
			collectGarbage(ctx, db, cfg.GCInterval, cfg.GCDiscardRatio, s.logger)
		}()
	}
	return s, nil
}

// OpenInMemory opens an in-memory store.
func OpenInMemory() (*Store, error) {
	return Open(InMemoryConfig())
}

// Put stores r, assigning an ID and creation time when they are unset.
//
// Outputs:
//
//	*Report - The stored report, with ID and CreatedAt populated.
//	error - ErrNilReport, ErrStoreClosed, or a wrapped storage error.
func (s *Store) Put(ctx context.Context, r *Report) (*Report, error) {
	if r == nil {
		return nil, ErrNilReport
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	_, span := tracer.Start(ctx, "store.Put")
	defer span.End()

	stored := *r
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.now().UTC()
	}
	span.SetAttributes(
		attribute.String("report.id", stored.ID),
		attribute.String("report.kind", string(stored.Kind)),
	)

	data, err := json.Marshal(&stored)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("encoding report: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.SetEntry(s.entry(reportKey(stored.ID), data)); err != nil {
			return err
		}
		return txn.SetEntry(s.entry(timeKey(stored.CreatedAt, stored.ID), []byte(stored.ID)))
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("writing report %s: %w", stored.ID, err)
	}

	s.logger.Debug("report stored",
		slog.String("id", stored.ID),
		slog.String("kind", string(stored.Kind)),
		slog.Int("files", len(stored.Results)),
	)
	return &stored, nil
}

// Get returns the report with the given ID.
//
// Outputs:
//
//	*Report - The report.
//	error - ErrNotFound for unknown or malformed IDs, ErrStoreClosed, or a
//	        wrapped storage error.
func (s *Store) Get(ctx context.Context, id string) (*Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	_, span := tracer.Start(ctx, "store.Get", trace.WithAttributes(attribute.String("report.id", id)))
	defer span.End()

	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	var report Report
	err := s.db.View(func(txn *badger.Txn) error {
		return getReport(txn, id, &report)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("reading report %s: %w", id, err)
	}
	return &report, nil
}

// List returns up to limit reports, newest first. A limit <= 0 uses
// DefaultListLimit; limits above MaxListLimit are capped.
func (s *Store) List(ctx context.Context, limit int) ([]*Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	limit = min(limit, MaxListLimit)

	ctx, span := tracer.Start(ctx, "store.List", trace.WithAttributes(attribute.Int("limit", limit)))
	defer span.End()

	reports := make([]*Report, 0, limit)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(timePrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(timePrefix)
		for it.Seek(append([]byte(timePrefix), 0xFF)); it.ValidForPrefix(prefix) && len(reports) < limit; it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			id, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var report Report
			if err := getReport(txn, string(id), &report); err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					continue
				}
				return err
			}
			reports = append(reports, &report)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("listing reports: %w", err)
	}
	return reports, nil
}

// Close closes the store. Safe to call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.stopGC != nil {
		s.stopGC()
		<-s.gcDone
	}
	return s.db.Close()
}

func (s *Store) entry(key, value []byte) *badger.Entry {
	e := badger.NewEntry(key, value)
	if s.retention > 0 {
		e = e.WithTTL(s.retention)
	}
	return e
}

func getReport(txn *badger.Txn, id string, out *Report) error {
	item, err := txn.Get(reportKey(id))
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, out)
	})
}

func reportKey(id string) []byte {
	return []byte(reportPrefix + id)
}

// timeKey sorts lexically in creation order.
func timeKey(t time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%s%020d/%s", timePrefix, t.UnixNano(), id))
}
