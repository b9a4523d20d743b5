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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"sync"
)

// PatternVersion tracks the built-in pattern table version.
const PatternVersion = "2025.10"

// Fallback values returned by PatternDetails for unknown categories.
const (
	FallbackCWE         = "CWE-000"
	FallbackDescription = "Unknown vulnerability type"
)

// FallbackRemediation is the generic guidance for unknown categories.
var FallbackRemediation = []string{
	"Review the flagged code manually and consult security guidelines",
}

// Pattern defines a vulnerability pattern to detect.
//
// Description:
//
//	Pattern carries everything needed to detect and report one kind of
//	vulnerability. Expr is compiled with Go's RE2 engine, so matching is
//	linear in the input length for every pattern.
//
// Thread Safety:
//
//	Pattern is a value type. The registry copies patterns on construction
//	and on read, so callers cannot mutate registry state through one.
type Pattern struct {
	// ID is the unique pattern identifier (e.g., CG-SEC-001).
	ID string `json:"id"`

	// Category is the vulnerability class.
	Category Category `json:"category"`

	// Expr is the regular expression whose match indicates the category.
	Expr string `json:"pattern"`

	// Exclude is an optional regex evaluated against the first capture group
	// of a candidate, or the whole match when Expr has no group. A match
	// discards the candidate (placeholders, env lookups).
	Exclude string `json:"exclude,omitempty"`

	// Severity is the fixed severity of every finding from this pattern.
	Severity Severity `json:"severity"`

	// CWE is the Common Weakness Enumeration ID.
	CWE string `json:"cwe"`

	// Description explains the risk.
	Description string `json:"description"`

	// Remediation is ordered, actionable guidance. At least one entry.
	Remediation []string `json:"remediation"`

	// Languages restricts the pattern to these language tags. Empty means
	// the pattern applies to every file.
	Languages []string `json:"languages,omitempty"`
}

func (p Pattern) clone() Pattern {
	p.Remediation = slices.Clone(p.Remediation)
	p.Languages = slices.Clone(p.Languages)
	return p
}

// validate checks the registry invariants for a single pattern.
func (p Pattern) validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidPattern)
	}
	if strings.TrimSpace(string(p.Category)) == "" {
		return fmt.Errorf("%w: %s: missing category", ErrInvalidPattern, p.ID)
	}
	if !p.Severity.Valid() {
		return fmt.Errorf("%w: %s: invalid severity %q", ErrInvalidPattern, p.ID, p.Severity)
	}
	if strings.TrimSpace(p.Description) == "" {
		return fmt.Errorf("%w: %s: missing description", ErrInvalidPattern, p.ID)
	}
	if strings.TrimSpace(p.Expr) == "" {
		return fmt.Errorf("%w: %s: missing pattern expression", ErrInvalidPattern, p.ID)
	}
	hasRemediation := false
	for _, r := range p.Remediation {
		if strings.TrimSpace(r) != "" {
			hasRemediation = true
			break
		}
	}
	if !hasRemediation {
		return fmt.Errorf("%w: %s: remediation must have at least one entry", ErrInvalidPattern, p.ID)
	}
	return nil
}

// compiledPattern is a validated pattern with its compiled expressions.
type compiledPattern struct {
	Pattern
	re        *regexp.Regexp
	exclude   *regexp.Regexp
	languages map[string]struct{}
}

// appliesTo reports whether the pattern runs for the given language tag.
func (c *compiledPattern) appliesTo(language string) bool {
	if len(c.languages) == 0 {
		return true
	}
	_, ok := c.languages[language]
	return ok
}

func compilePattern(p Pattern) (compiledPattern, error) {
	if err := p.validate(); err != nil {
		return compiledPattern{}, err
	}
	re, err := regexp.Compile(p.Expr)
	if err != nil {
		return compiledPattern{}, fmt.Errorf("%w: %s: compile pattern: %v", ErrInvalidPattern, p.ID, err)
	}
	cp := compiledPattern{Pattern: p.clone(), re: re}
	if p.Exclude != "" {
		cp.exclude, err = regexp.Compile(p.Exclude)
		if err != nil {
			return compiledPattern{}, fmt.Errorf("%w: %s: compile exclude: %v", ErrInvalidPattern, p.ID, err)
		}
	}
	if len(p.Languages) > 0 {
		cp.languages = make(map[string]struct{}, len(p.Languages))
		for _, lang := range p.Languages {
			cp.languages[strings.ToLower(lang)] = struct{}{}
		}
	}
	return cp, nil
}

// PatternDetails is the reporting view of a category: the metadata of the
// first pattern registered for it, or the fallback for unknown categories.
type PatternDetails struct {
	Category    Category `json:"category"`
	Severity    Severity `json:"severity"`
	CWE         string   `json:"cwe"`
	Description string   `json:"description"`
	Remediation []string `json:"remediation"`
	PatternIDs  []string `json:"patternIds"`
	Known       bool     `json:"known"`
}

// Registry is an immutable, ordered table of vulnerability patterns.
//
// Description:
//
//	A Registry is built once by NewRegistry, which validates and compiles
//	every pattern. There is no mutation API; Merge returns a new Registry.
//	Registration order is preserved and breaks ties when ordering findings.
//
// Thread Safety:
//
//	Safe for concurrent use.
type Registry struct {
	patterns   []compiledPattern
	byCategory map[Category][]int
	categories []Category
	version    string
}

// NewRegistry validates and compiles patterns into a Registry.
//
// Description:
//
//	Fails fast on the first invalid pattern: empty remediation, unknown
//	severity, missing category or description, duplicate ID, or an
//	expression that does not compile.
//
// Inputs:
//
//	patterns - Patterns in registration order.
//
// Outputs:
//
//	*Registry - The compiled registry.
//	error - Wraps ErrInvalidPattern on validation failure.
func NewRegistry(patterns []Pattern) (*Registry, error) {
	return newRegistry(patterns, PatternVersion)
}

func newRegistry(patterns []Pattern, version string) (*Registry, error) {
	r := &Registry{
		patterns:   make([]compiledPattern, 0, len(patterns)),
		byCategory: make(map[Category][]int),
		version:    version,
	}
	seen := make(map[string]struct{}, len(patterns))
	for _, p := range patterns {
		cp, err := compilePattern(p)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[p.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %s", ErrInvalidPattern, p.ID)
		}
		seen[p.ID] = struct{}{}

		if _, ok := r.byCategory[p.Category]; !ok {
			r.categories = append(r.categories, p.Category)
		}
		r.byCategory[p.Category] = append(r.byCategory[p.Category], len(r.patterns))
		r.patterns = append(r.patterns, cp)
	}
	return r, nil
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// DefaultRegistry returns the registry of built-in patterns.
//
// The built-in table ships with the binary, so a validation failure is a
// programmer error and panics.
func DefaultRegistry() *Registry {
	defaultRegistryOnce.Do(func() {
		r, err := NewRegistry(defaultPatterns())
		if err != nil {
			panic(fmt.Sprintf("scanner: built-in pattern table is invalid: %v", err))
		}
		defaultRegistry = r
	})
	return defaultRegistry
}

// Merge returns a new registry with extra patterns applied on top of r.
//
// An extra pattern whose ID already exists replaces that pattern in place;
// other extras are appended in order. The version gains a content hash
// suffix so reports can tell which organization patterns were active.
func (r *Registry) Merge(extra []Pattern) (*Registry, error) {
	if len(extra) == 0 {
		return r, nil
	}
	merged := make([]Pattern, 0, len(r.patterns)+len(extra))
	index := make(map[string]int, len(r.patterns))
	for _, cp := range r.patterns {
		index[cp.ID] = len(merged)
		merged = append(merged, cp.Pattern.clone())
	}
	for _, p := range extra {
		if i, ok := index[p.ID]; ok {
			merged[i] = p
			continue
		}
		index[p.ID] = len(merged)
		merged = append(merged, p)
	}
	return newRegistry(merged, r.version+"+org."+hashPatterns(extra))
}

// hashPatterns returns a short, stable digest of pattern content.
func hashPatterns(patterns []Pattern) string {
	h := sha256.New()
	for _, p := range patterns {
		fmt.Fprintf(h, "%s\x00%s\x00%s\x00%s\x00%s\x00%s\n",
			p.ID, p.Category, p.Expr, p.Exclude, p.Severity, p.CWE)
	}
	return hex.EncodeToString(h.Sum(nil))[:8]
}

// Version returns the registry version string.
func (r *Registry) Version() string {
	return r.version
}

// Len returns the number of registered patterns.
func (r *Registry) Len() int {
	return len(r.patterns)
}

// Patterns returns a copy of all patterns in registration order.
func (r *Registry) Patterns() []Pattern {
	out := make([]Pattern, len(r.patterns))
	for i, cp := range r.patterns {
		out[i] = cp.Pattern.clone()
	}
	return out
}

// Categories returns the distinct categories in first-registered order.
func (r *Registry) Categories() []Category {
	return slices.Clone(r.categories)
}

// Lookup returns the first pattern registered for category.
func (r *Registry) Lookup(category Category) (Pattern, bool) {
	idx, ok := r.byCategory[category]
	if !ok || len(idx) == 0 {
		return Pattern{}, false
	}
	return r.patterns[idx[0]].Pattern.clone(), true
}

// PatternDetails returns reporting metadata for a category.
//
// Description:
//
//	Never fails. For a category with no registered pattern (for example a
//	finding produced by a pattern that has since been removed) it returns
//	a MEDIUM / CWE-000 / "Unknown vulnerability type" record with generic
//	manual-review guidance and Known=false.
//
// Inputs:
//
//	category - The category tag to describe.
//
// Outputs:
//
//	PatternDetails - The details record.
func (r *Registry) PatternDetails(category Category) PatternDetails {
	idx, ok := r.byCategory[category]
	if !ok || len(idx) == 0 {
		return PatternDetails{
			Category:    category,
			Severity:    SeverityMedium,
			CWE:         FallbackCWE,
			Description: FallbackDescription,
			Remediation: slices.Clone(FallbackRemediation),
			PatternIDs:  []string{},
			Known:       false,
		}
	}
	first := r.patterns[idx[0]]
	ids := make([]string, len(idx))
	for i, j := range idx {
		ids[i] = r.patterns[j].ID
	}
	return PatternDetails{
		Category:    category,
		Severity:    first.Severity,
		CWE:         first.CWE,
		Description: first.Description,
		Remediation: slices.Clone(first.Remediation),
		PatternIDs:  ids,
		Known:       true,
	}
}
