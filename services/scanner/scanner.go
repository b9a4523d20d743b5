// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package scanner implements the static vulnerability-pattern scanning
// engine: an immutable pattern registry, a line-aware regex matcher, risk
// scoring, summary aggregation, and single-file and batch orchestration.
//
// Scans are pure functions of (content, registry). Nothing is shared
// between scans except the read-only registry, so batch scans run files in
// parallel without locks.
package scanner

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"
)

// Default scanner limits.
const (
	// DefaultMaxContentSize is the largest input scanned; longer input is
	// truncated and the result is flagged.
	DefaultMaxContentSize = 5 << 20

	// DefaultMaxMatchLength bounds Finding.MatchedText, in runes.
	DefaultMaxMatchLength = 200

	// DefaultContextLines is the number of lines kept on each side of a match.
	DefaultContextLines = 1
)

// Config configures a Scanner.
type Config struct {
	// Registry is the pattern registry. Default: DefaultRegistry().
	Registry *Registry

	// MaxContentSize is the maximum number of bytes scanned per file.
	MaxContentSize int

	// MaxMatchLength bounds the matched text of each finding, in runes.
	MaxMatchLength int

	// ContextLines is the number of surrounding lines captured per finding.
	ContextLines int

	// MaskSecrets masks the secret value in secret_exposure findings.
	MaskSecrets bool

	// Logger receives scan diagnostics. Default: slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns the default scanner configuration.
func DefaultConfig() Config {
	return Config{
		MaxContentSize: DefaultMaxContentSize,
		MaxMatchLength: DefaultMaxMatchLength,
		ContextLines:   DefaultContextLines,
	}
}

// Option configures a Scanner.
type Option func(*Config)

// WithRegistry replaces the built-in registry, for example with one that
// includes organization patterns.
func WithRegistry(r *Registry) Option {
	return func(c *Config) {
		c.Registry = r
	}
}

// WithMaxContentSize sets the per-file byte limit. Values <= 0 are ignored.
// Bytes past the limit are not scanned; see Scan.
func WithMaxContentSize(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.MaxContentSize = n
		}
	}
}

// WithMaxMatchLength sets the matched-text limit in runes. Values <= 0 are ignored.
func WithMaxMatchLength(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.MaxMatchLength = n
		}
	}
}

// WithContextLines sets the number of context lines on each side of a match.
// Negative values are ignored.
func WithContextLines(n int) Option {
	return func(c *Config) {
		if n >= 0 {
			c.ContextLines = n
		}
	}
}

// WithMaskSecrets enables masking of secret values in findings.
func WithMaskSecrets(mask bool) Option {
	return func(c *Config) {
		c.MaskSecrets = mask
	}
}

// WithLogger sets the scanner's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// Scanner scans one file's content at a time.
//
// Description:
//
//	Scanner runs Matcher, Risk Scorer and Summary Aggregator over a file
//	and assembles a ScanResult. The registry is held behind an atomic
//	pointer: SetRegistry affects scans started afterwards, while scans in
//	flight finish with the registry they loaded.
//
// Thread Safety:
//
//	Safe for concurrent use.
type Scanner struct {
	registry atomic.Pointer[Registry]
	cfg      Config
	logger   *slog.Logger
}

// NewScanner creates a Scanner.
//
// Inputs:
//
//	opts - Functional options applied over DefaultConfig().
//
// Outputs:
//
//	*Scanner - Ready for use.
func NewScanner(opts ...Option) *Scanner {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Registry == nil {
		cfg.Registry = DefaultRegistry()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Scanner{
		cfg:    cfg,
		logger: cfg.Logger.With(slog.String("component", "scanner")),
	}
	s.registry.Store(cfg.Registry)
	return s
}

// Registry returns the registry used by new scans.
func (s *Scanner) Registry() *Registry {
	return s.registry.Load()
}

// SetRegistry atomically replaces the registry for subsequent scans.
// A nil registry is ignored.
func (s *Scanner) SetRegistry(r *Registry) {
	if r == nil {
		return
	}
	old := s.registry.Swap(r)
	s.logger.Info("pattern registry replaced",
		slog.String("old_version", old.Version()),
		slog.String("new_version", r.Version()),
		slog.Int("patterns", r.Len()),
	)
}

// Scan scans one file.
//
// Description:
//
//	Total: every input produces a well-formed ScanResult. Empty or
//	whitespace-only content yields no findings and a score of 0. Content
//	that is not valid UTF-8 is matched as opaque bytes. The context
//	carries tracing only; cancellation does not interrupt a single scan,
//	since matching is bounded by input length.
//
//	Content longer than the configured MaxContentSize (5 MiB by default)
//	is cut at the last complete rune before the limit and only the prefix
//	is matched. Anything past the limit is not reported, so a truncated
//	scan can miss findings: callers must check ScanResult.Truncated and
//	treat a clean truncated result as incomplete. ScannedBytes gives the
//	length that was matched.
//
// Inputs:
//
//	ctx - Context for tracing.
//	content - Source text.
//	filename - Opaque name supplied by the caller; used for language
//	           detection and reporting only.
//
// Outputs:
//
//	ScanResult - The result.
func (s *Scanner) Scan(ctx context.Context, content, filename string) ScanResult {
	result, _ := s.scan(context.WithoutCancel(ctx), content, filename)
	return result
}

// ScanText scans one file whose content may be absent.
//
// Description:
//
//	A nil content is scanned as empty text. Unlike Scan, ScanText honors
//	cancellation: if ctx is done before matching finishes, the partial
//	result is returned with ctx.Err(). Batch workers use this form.
//
// Inputs:
//
//	ctx - Context for cancellation and tracing.
//	content - Source text, or nil.
//	filename - Opaque name supplied by the caller.
//
// Outputs:
//
//	ScanResult - The result.
//	error - ctx.Err() on cancellation, otherwise nil.
func (s *Scanner) ScanText(ctx context.Context, content *string, filename string) (ScanResult, error) {
	text := ""
	if content != nil {
		text = *content
	}
	return s.scan(ctx, text, filename)
}

func (s *Scanner) scan(ctx context.Context, content, filename string) (ScanResult, error) {
	start := time.Now()
	reg := s.registry.Load()

	ctx, span := startScanSpan(ctx, filename, len(content))
	defer span.End()

	content = strings.TrimPrefix(content, "\ufeff")
	truncated := false
	if len(content) > s.cfg.MaxContentSize {
		content = truncateBytes(content, s.cfg.MaxContentSize)
		truncated = true
		s.logger.Warn("content truncated to size limit",
			slog.String("filename", filename),
			slog.Int("limit", s.cfg.MaxContentSize),
		)
	}

	language := DetectLanguage(filename)
	findings, err := matchAll(ctx, reg, content, matchOptions{
		language:       language,
		contextLines:   s.cfg.ContextLines,
		maxMatchLength: s.cfg.MaxMatchLength,
		maskSecrets:    s.cfg.MaskSecrets,
	})

	score := RiskScore(findings)
	result := ScanResult{
		Filename:        filename,
		Language:        language,
		IsTestFile:      IsTestFile(filename),
		Findings:        findings,
		RiskScore:       score,
		Summary:         Summarize(findings, score, s.logger),
		ScannedBytes:    len(content),
		Truncated:       truncated,
		RegistryVersion: reg.Version(),
	}

	duration := time.Since(start)
	result.DurationMs = duration.Milliseconds()
	setScanSpanResult(span, &result, err)
	if err != nil {
		return result, err
	}

	recordScan(ctx, &result, duration)
	s.logger.Debug("scan complete",
		slog.String("filename", filename),
		slog.Int("findings", len(findings)),
		slog.Float64("risk_score", score),
		slog.Duration("duration", duration),
	)
	return result, nil
}

// truncateBytes cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for back := 0; back < utf8.UTFMax && cut > 0 && !utf8.RuneStart(s[cut]); back++ {
		cut--
	}
	return s[:cut]
}
