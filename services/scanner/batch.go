// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultMaxBatchFiles is the default upper bound on files per batch.
const DefaultMaxBatchFiles = 1000

// FileScanner scans a single file. *Scanner implements it.
type FileScanner interface {
	ScanText(ctx context.Context, content *string, filename string) (ScanResult, error)
}

// BatchOption configures a BatchScanner.
type BatchOption func(*BatchScanner)

// WithParallelism sets the maximum number of concurrent file scans.
// Values <= 0 are ignored.
func WithParallelism(n int) BatchOption {
	return func(b *BatchScanner) {
		if n > 0 {
			b.parallelism = n
		}
	}
}

// WithMaxFiles sets the maximum number of files per batch. Values <= 0
// are ignored.
func WithMaxFiles(n int) BatchOption {
	return func(b *BatchScanner) {
		if n > 0 {
			b.maxFiles = n
		}
	}
}

// WithBatchLogger sets the batch scanner's logger.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchScanner) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// BatchScanner runs a FileScanner over many files.
//
// Description:
//
//	Files are scanned in parallel, bounded by the configured parallelism.
//	Each worker writes only its own slot of a pre-sized slice, so output
//	order always matches input order regardless of completion order. A
//	failure in one file, including a panic, is recorded in that file's
//	entry and never affects the others.
//
// Thread Safety:
//
//	Safe for concurrent use.
type BatchScanner struct {
	scanner     FileScanner
	parallelism int
	maxFiles    int
	logger      *slog.Logger
}

// NewBatchScanner creates a BatchScanner over fs.
func NewBatchScanner(fs FileScanner, opts ...BatchOption) *BatchScanner {
	b := &BatchScanner{
		scanner:     fs,
		parallelism: runtime.NumCPU(),
		maxFiles:    DefaultMaxBatchFiles,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With(slog.String("component", "batch_scanner"))
	return b
}

// ScanBatch scans every file and returns one entry per input, in order.
//
// Description:
//
//	Per-file problems never surface as the returned error: an empty
//	filename, a scan error, a panic, or cancellation before the file was
//	scanned all become that entry's Err. A nil Content is scanned as empty
//	text and yields a zero-findings result.
//
// Inputs:
//
//	ctx - Context for cancellation. Files not yet scanned when ctx is
//	      done get ctx.Err() as their entry error.
//	files - The files, in the order results should be reported.
//
// Outputs:
//
//	BatchResult - Entries plus aggregate totals.
//	error - ErrBatchTooLarge when len(files) exceeds the limit; nothing
//	        is scanned in that case.
func (b *BatchScanner) ScanBatch(ctx context.Context, files []FileInput) (BatchResult, error) {
	if len(files) > b.maxFiles {
		return BatchResult{}, fmt.Errorf("%w: %d files, limit %d", ErrBatchTooLarge, len(files), b.maxFiles)
	}

	start := time.Now()
	ctx, span := startBatchSpan(ctx, len(files))
	defer span.End()

	entries := make([]BatchEntry, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.parallelism)

	for i, f := range files {
		if err := gctx.Err(); err != nil {
			entries[i] = errorEntry(f.Filename, err)
			continue
		}
		g.Go(func() error {
			entries[i] = b.scanOne(gctx, f)
			return nil
		})
	}
	_ = g.Wait()

	result := BatchResult{Entries: entries}
	for _, e := range entries {
		if e.Failed() {
			result.FilesFailed++
			recordBatchFile(ctx, "error")
			continue
		}
		recordBatchFile(ctx, "ok")
		result.FilesScanned++
		result.TotalIssues += e.Result.Summary.TotalIssues
		result.MaxRiskScore = max(result.MaxRiskScore, e.Result.RiskScore)
	}
	result.MaxRiskLevel = LevelForScore(result.MaxRiskScore)

	b.logger.Info("batch scan complete",
		slog.Int("files", len(files)),
		slog.Int("failed", result.FilesFailed),
		slog.Int("issues", result.TotalIssues),
		slog.Duration("duration", time.Since(start)),
	)
	return result, nil
}

// scanOne scans one file, converting errors and panics into the entry.
func (b *BatchScanner) scanOne(ctx context.Context, f FileInput) (entry BatchEntry) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("scan worker panicked",
				slog.String("filename", f.Filename),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			entry = errorEntry(f.Filename, fmt.Errorf("%w: %v", ErrScanPanic, r))
		}
	}()

	if strings.TrimSpace(f.Filename) == "" {
		return errorEntry(f.Filename, ErrEmptyFilename)
	}
	if err := ctx.Err(); err != nil {
		return errorEntry(f.Filename, err)
	}

	result, err := b.scanner.ScanText(ctx, f.Content, f.Filename)
	if err != nil {
		b.logger.Warn("file scan failed",
			slog.String("filename", f.Filename),
			slog.String("error", err.Error()),
		)
		return errorEntry(f.Filename, err)
	}
	return BatchEntry{Filename: f.Filename, Result: &result}
}

func errorEntry(filename string, err error) BatchEntry {
	return BatchEntry{Filename: filename, Err: err, Error: err.Error()}
}

// ScanBatch scans files with a BatchScanner built from s and the given options.
func (s *Scanner) ScanBatch(ctx context.Context, files []FileInput, opts ...BatchOption) (BatchResult, error) {
	opts = append([]BatchOption{WithBatchLogger(s.cfg.Logger)}, opts...)
	return NewBatchScanner(s, opts...).ScanBatch(ctx, files)
}
