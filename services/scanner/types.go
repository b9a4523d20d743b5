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
	"fmt"
	"strings"
)

// Severity is the fixed severity of a vulnerability pattern.
type Severity string

const (
	// SeverityLow indicates minor issues or hygiene problems.
	SeverityLow Severity = "LOW"

	// SeverityMedium indicates issues that need review.
	SeverityMedium Severity = "MEDIUM"

	// SeverityHigh indicates exploitable issues.
	SeverityHigh Severity = "HIGH"

	// SeverityCritical indicates directly exploitable, high-impact issues.
	SeverityCritical Severity = "CRITICAL"
)

// Valid reports whether s is one of the four defined levels.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Rank returns a numeric rank for comparison (higher = more severe).
// Unknown severities rank 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// ParseSeverity parses a severity string case-insensitively.
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(strings.ToUpper(strings.TrimSpace(s)))
	if !sev.Valid() {
		return "", fmt.Errorf("invalid severity %q: must be LOW, MEDIUM, HIGH or CRITICAL", s)
	}
	return sev, nil
}

// Category is the vulnerability class a pattern detects.
//
// The constants below are the built-in classes. Any other non-empty tag is
// accepted as an extension category; aggregation groups it under its own key.
type Category string

const (
	CategorySecretExposure   Category = "secret_exposure"
	CategorySQLInjection     Category = "sql_injection"
	CategoryXSS              Category = "xss"
	CategoryWeakCrypto       Category = "weak_crypto"
	CategoryCodeInjection    Category = "code_injection"
	CategoryCommandInjection Category = "command_injection"
	CategoryPathTraversal    Category = "path_traversal"
)

// BuiltinCategories lists the built-in categories in reporting order.
var BuiltinCategories = []Category{
	CategorySecretExposure,
	CategorySQLInjection,
	CategoryXSS,
	CategoryWeakCrypto,
	CategoryCodeInjection,
	CategoryCommandInjection,
	CategoryPathTraversal,
}

// Builtin reports whether c is one of the built-in categories.
func (c Category) Builtin() bool {
	for _, b := range BuiltinCategories {
		if c == b {
			return true
		}
	}
	return false
}

// RiskLevel is the qualitative risk derived from a risk score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Order returns the numeric order of the level (low=0 ... critical=3).
// Unknown levels return -1.
func (r RiskLevel) Order() int {
	switch r {
	case RiskLow:
		return 0
	case RiskMedium:
		return 1
	case RiskHigh:
		return 2
	case RiskCritical:
		return 3
	default:
		return -1
	}
}

// AtLeast reports whether r is at or above threshold.
func (r RiskLevel) AtLeast(threshold RiskLevel) bool {
	return r.Order() >= threshold.Order()
}

// ParseRiskLevel parses a risk level string case-insensitively.
func ParseRiskLevel(s string) (RiskLevel, error) {
	level := RiskLevel(strings.ToLower(strings.TrimSpace(s)))
	if level.Order() < 0 {
		return "", fmt.Errorf("invalid risk level %q: must be low, medium, high or critical", s)
	}
	return level, nil
}

// Finding is one reported occurrence of a pattern at a specific location.
//
// Category, Severity, CWE, Description and Remediation are copied from the
// originating pattern. Line is 1-based; Column is the 1-based rune column
// of the match start within its line.
type Finding struct {
	PatternID   string   `json:"patternId"`
	Category    Category `json:"category"`
	Severity    Severity `json:"severity"`
	CWE         string   `json:"cwe"`
	Description string   `json:"description"`
	Line        int      `json:"line"`
	Column      int      `json:"column"`
	MatchedText string   `json:"matchedText"`
	Context     string   `json:"context"`
	Remediation []string `json:"remediation"`

	// Suppressed is set when an inline marker (nosec, codeguardian:ignore,
	// NOSONAR) covers the finding. Suppressed findings do not count toward
	// the summary buckets or the risk score.
	Suppressed bool `json:"suppressed,omitempty"`
}

// Summary holds per-severity counts and the qualitative risk level.
//
// Counts exclude suppressed findings.
type Summary struct {
	TotalIssues int              `json:"totalIssues"`
	Critical    int              `json:"critical"`
	High        int              `json:"high"`
	Medium      int              `json:"medium"`
	Low         int              `json:"low"`
	RiskLevel   RiskLevel        `json:"riskLevel"`
	ByCategory  map[Category]int `json:"byCategory"`
	Suppressed  int              `json:"suppressed"`
}

// ScanResult is the outcome of scanning one file.
//
// A ScanResult is not mutated after Scan returns it.
type ScanResult struct {
	Filename        string    `json:"filename"`
	Language        string    `json:"language,omitempty"`
	IsTestFile      bool      `json:"isTestFile,omitempty"`
	Findings        []Finding `json:"findings"`
	RiskScore       float64   `json:"riskScore"`
	Summary         Summary   `json:"summary"`
	ScannedBytes    int       `json:"scannedBytes"`
	Truncated       bool      `json:"truncated,omitempty"`
	RegistryVersion string    `json:"registryVersion"`
	DurationMs      int64     `json:"durationMs"`
}

// FileInput is one file submitted to a batch scan. A nil Content is
// scanned as empty text.
type FileInput struct {
	Filename string  `json:"filename"`
	Content  *string `json:"content"`
}

// BatchEntry is the per-file outcome of a batch scan. Exactly one of
// Result and Err is set.
type BatchEntry struct {
	Filename string      `json:"filename"`
	Result   *ScanResult `json:"result,omitempty"`
	Error    string      `json:"error,omitempty"`
	Err      error       `json:"-"`
}

// Failed reports whether the entry carries an error. Entries decoded from
// JSON carry only Error.
func (e BatchEntry) Failed() bool {
	return e.Err != nil || e.Error != ""
}

// BatchResult holds one entry per input file, in input order, plus
// aggregate totals over the successful entries.
type BatchResult struct {
	Entries      []BatchEntry `json:"entries"`
	FilesScanned int          `json:"filesScanned"`
	FilesFailed  int          `json:"filesFailed"`
	TotalIssues  int          `json:"totalIssues"`
	MaxRiskScore float64      `json:"maxRiskScore"`
	MaxRiskLevel RiskLevel    `json:"maxRiskLevel"`
}
