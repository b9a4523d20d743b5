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
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v3"
)

const (
	// MaxPatternFileSize is the maximum allowed pattern file size (1MB).
	MaxPatternFileSize = 1024 * 1024

	// MaxPatternsPerFile is the maximum number of patterns in one file.
	MaxPatternsPerFile = 500

	// PatternFileVersion is the supported pattern file schema version.
	PatternFileVersion = 1

	// PatternFileEnv names the environment variable that points at an
	// organization pattern file.
	PatternFileEnv = "CODEGUARDIAN_PATTERNS"
)

var (
	patternLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "codeguardian_pattern_reloads_total",
		Help: "Organization pattern file loads by status",
	}, []string{"status"})

	patternLoadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "codeguardian_pattern_load_duration_seconds",
		Help:    "Time to read, parse and compile an organization pattern file",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
	})
)

// patternFileYAML is the on-disk schema of an organization pattern file.
//
//	version: 1
//	patterns:
//	  - id: ORG-001
//	    category: secret_exposure
//	    pattern: 'INTERNAL_[A-Z]+_KEY\s*=\s*"[^"]+"'
//	    severity: HIGH
//	    cwe: CWE-798
//	    description: Internal service key in source
//	    remediation:
//	      - Fetch the key from the vault client
type patternFileYAML struct {
	Version  int           `yaml:"version"`
	Patterns []patternYAML `yaml:"patterns"`
}

type patternYAML struct {
	ID          string       `yaml:"id"`
	Category    string       `yaml:"category"`
	Pattern     string       `yaml:"pattern"`
	Exclude     string       `yaml:"exclude"`
	Severity    severityYAML `yaml:"severity"`
	CWE         string       `yaml:"cwe"`
	Description string       `yaml:"description"`
	Remediation []string     `yaml:"remediation"`
	Languages   []string     `yaml:"languages"`
}

// severityYAML validates severity at decode time so the error carries the
// YAML line number.
type severityYAML Severity

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *severityYAML) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	sev, err := ParseSeverity(raw)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*s = severityYAML(sev)
	return nil
}

// ParsePatterns decodes pattern file YAML into patterns.
//
// Description:
//
//	Unknown fields are rejected so typos in a pattern file fail loudly.
//	Patterns are not compiled here; NewRegistry or Merge does that.
//
// Inputs:
//
//	data - YAML document.
//
// Outputs:
//
//	[]Pattern - Decoded patterns in file order.
//	error - Wraps ErrInvalidPatternFile.
func ParsePatterns(data []byte) ([]Pattern, error) {
	var file patternFileYAML
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalidPatternFile)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidPatternFile, err)
	}
	if file.Version != PatternFileVersion {
		return nil, fmt.Errorf("%w: unsupported version %d (want %d)", ErrInvalidPatternFile, file.Version, PatternFileVersion)
	}
	if len(file.Patterns) > MaxPatternsPerFile {
		return nil, fmt.Errorf("%w: %d patterns exceeds limit %d", ErrInvalidPatternFile, len(file.Patterns), MaxPatternsPerFile)
	}

	patterns := make([]Pattern, 0, len(file.Patterns))
	for _, p := range file.Patterns {
		patterns = append(patterns, Pattern{
			ID:          p.ID,
			Category:    Category(p.Category),
			Expr:        p.Pattern,
			Exclude:     p.Exclude,
			Severity:    Severity(p.Severity),
			CWE:         p.CWE,
			Description: p.Description,
			Remediation: p.Remediation,
			Languages:   p.Languages,
		})
	}
	return patterns, nil
}

// LoadPatternFile reads and decodes an organization pattern file.
//
// Inputs:
//
//	ctx - Context for tracing.
//	path - File path.
//
// Outputs:
//
//	[]Pattern - Decoded patterns.
//	error - ErrPatternFileTooLarge, ErrInvalidPatternFile or an I/O error.
func LoadPatternFile(ctx context.Context, path string) ([]Pattern, error) {
	_, span := tracer.Start(ctx, "scanner.LoadPatternFile",
		trace.WithAttributes(attribute.String("path", path)),
	)
	defer span.End()

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "stat failed")
		return nil, fmt.Errorf("stat pattern file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrInvalidPatternFile, absPath)
	}
	if info.Size() > MaxPatternFileSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrPatternFileTooLarge, info.Size(), MaxPatternFileSize)
	}
	span.SetAttributes(attribute.Int64("file_size", info.Size()))

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("reading pattern file: %w", err)
	}
	patterns, err := ParsePatterns(data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("pattern_count", len(patterns)))
	return patterns, nil
}

// LoadRegistry merges the organization patterns at path into base.
//
// Description:
//
//	An empty path returns base unchanged. Any read, parse or validation
//	error is returned and base is left untouched, so callers can keep
//	scanning with the previous registry.
//
// Inputs:
//
//	ctx - Context for tracing.
//	base - Registry to extend (usually DefaultRegistry()).
//	path - Pattern file path, or "".
//
// Outputs:
//
//	*Registry - The merged registry.
//	error - Non-nil if the file could not be loaded.
func LoadRegistry(ctx context.Context, base *Registry, path string) (*Registry, error) {
	if path == "" {
		return base, nil
	}
	start := time.Now()
	defer func() {
		patternLoadDuration.Observe(time.Since(start).Seconds())
	}()

	extra, err := LoadPatternFile(ctx, path)
	if err != nil {
		patternLoads.WithLabelValues("error").Inc()
		return nil, err
	}
	reg, err := base.Merge(extra)
	if err != nil {
		patternLoads.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("merging %s: %w", path, err)
	}
	patternLoads.WithLabelValues("ok").Inc()
	slog.Info("organization patterns loaded",
		slog.String("path", path),
		slog.Int("patterns", len(extra)),
		slog.String("registry_version", reg.Version()),
	)
	return reg, nil
}

// PatternFilePath resolves the organization pattern file to use.
//
// An explicit path wins, then $CODEGUARDIAN_PATTERNS, then the first of
// ./codeguardian-patterns.yaml and ./config/patterns.yaml that exists.
// Returns "" when none is configured.
func PatternFilePath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if path := os.Getenv(PatternFileEnv); path != "" {
		return path
	}
	for _, loc := range []string{"./codeguardian-patterns.yaml", "./config/patterns.yaml"} {
		if _, err := os.Stat(loc); err == nil {
			absPath, _ := filepath.Abs(loc)
			return absPath
		}
	}
	return ""
}
