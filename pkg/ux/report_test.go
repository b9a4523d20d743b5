// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/AleutianAI/codeguardian/services/scanner"
)

func scanSample(t *testing.T) scanner.ScanResult {
	t.Helper()
	content := "const API_KEY = \"sk-1234567890abcdef\";\neval(input); // codeguardian-ignore\n"
	return scanner.NewScanner().Scan(context.Background(), content, "config.js")
}

// =============================================================================
// ScanResult Tests
// =============================================================================

func TestPrinter_ScanResult_Plain(t *testing.T) {
	result := scanSample(t)
	var buf bytes.Buffer
	if err := NewPrinter(&buf, ModePlain).ScanResult(result, RenderOptions{}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()

	if !strings.Contains(out, "config.js:1:7\tHIGH\tsecret_exposure\tCWE-798") {
		t.Errorf("missing finding line:\n%s", out)
	}
	if !strings.Contains(out, "SUMMARY: file=config.js issues=1") {
		t.Errorf("missing summary line:\n%s", out)
	}
	if !strings.Contains(out, "risk=2.50 level=low") {
		t.Errorf("missing risk in summary:\n%s", out)
	}
}

func TestPrinter_ScanResult_Suppressed(t *testing.T) {
	result := scanSample(t)
	if result.Summary.Suppressed == 0 {
		t.Skip("inline suppression marker not recognized")
	}

	var hidden, shown bytes.Buffer
	_ = NewPrinter(&hidden, ModePlain).ScanResult(result, RenderOptions{})
	_ = NewPrinter(&shown, ModePlain).ScanResult(result, RenderOptions{ShowSuppressed: true})

	if strings.Contains(hidden.String(), "\tsuppressed") {
		t.Errorf("suppressed finding printed without ShowSuppressed:\n%s", hidden.String())
	}
	if !strings.Contains(shown.String(), "\tsuppressed") {
		t.Errorf("suppressed finding missing with ShowSuppressed:\n%s", shown.String())
	}
}

func TestPrinter_ScanResult_Rich(t *testing.T) {
	result := scanSample(t)
	var buf bytes.Buffer
	if err := NewPrinter(&buf, ModeRich).ScanResult(result, RenderOptions{ShowContext: true}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"config.js", "javascript", "HIGH", "1:7", "CWE-798", "2.50", "1 issue"} {
		if !strings.Contains(out, want) {
			t.Errorf("rich output missing %q:\n%s", want, out)
		}
	}
}

func TestPrinter_ScanResult_Clean(t *testing.T) {
	result := scanner.NewScanner().Scan(context.Background(), "x := 1", "main.go")
	var buf bytes.Buffer
	_ = NewPrinter(&buf, ModeRich).ScanResult(result, RenderOptions{})
	if !strings.Contains(buf.String(), "no issues found") {
		t.Errorf("clean file output:\n%s", buf.String())
	}
}

func TestPrinter_ScanResult_JSON(t *testing.T) {
	result := scanSample(t)
	var buf bytes.Buffer
	if err := NewPrinter(&buf, ModeJSON).ScanResult(result, RenderOptions{}); err != nil {
		t.Fatal(err)
	}
	var decoded scanner.ScanResult
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid json: %v\n%s", err, buf.String())
	}
	if decoded.RiskScore != result.RiskScore || len(decoded.Findings) != len(result.Findings) {
		t.Errorf("decoded result differs: %+v", decoded)
	}
}

// =============================================================================
// Batch Tests
// =============================================================================

func sampleBatch() scanner.BatchResult {
	clean := scanner.NewScanner().Scan(context.Background(), "x = 1", "ok.py")
	risky := scanner.NewScanner().Scan(context.Background(), "eval(x)", "bad.js")
	return scanner.BatchResult{
		Entries: []scanner.BatchEntry{
			{Filename: "ok.py", Result: &clean},
			{Filename: "bad.js", Result: &risky},
			{Filename: "", Err: errors.New("filename is empty")},
		},
		FilesScanned: 2,
		FilesFailed:  1,
		TotalIssues:  1,
		MaxRiskScore: risky.RiskScore,
		MaxRiskLevel: risky.Summary.RiskLevel,
	}
}

func TestPrinter_Batch_Plain(t *testing.T) {
	var buf bytes.Buffer
	if err := NewPrinter(&buf, ModePlain).Batch(sampleBatch(), RenderOptions{}); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")

	okIdx, badIdx, errIdx := -1, -1, -1
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "SUMMARY: file=ok.py"):
			okIdx = i
		case strings.HasPrefix(line, "bad.js:1:1"):
			badIdx = i
		case strings.Contains(line, "\tERROR\tfilename is empty"):
			errIdx = i
		}
	}
	if okIdx < 0 || badIdx < 0 || errIdx < 0 {
		t.Fatalf("missing entries in:\n%s", buf.String())
	}
	if !(okIdx < badIdx && badIdx < errIdx) {
		t.Errorf("entries out of input order: %d %d %d", okIdx, badIdx, errIdx)
	}
	if last := lines[len(lines)-1]; !strings.HasPrefix(last, "TOTAL: files=2 failed=1 issues=1 max_risk=4.00") {
		t.Errorf("unexpected total line %q", last)
	}
}

func TestPrinter_Batch_Rich(t *testing.T) {
	var buf bytes.Buffer
	if err := NewPrinter(&buf, ModeRich).Batch(sampleBatch(), RenderOptions{}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"ok.py", "bad.js", "<unnamed>", "filename is empty", "scanned", "max risk"} {
		if !strings.Contains(out, want) {
			t.Errorf("rich batch output missing %q:\n%s", want, out)
		}
	}
}

// =============================================================================
// Pattern Tests
// =============================================================================

func TestPrinter_Patterns(t *testing.T) {
	reg := scanner.DefaultRegistry()

	var plain bytes.Buffer
	if err := NewPrinter(&plain, ModePlain).Patterns(reg.Version(), reg.Patterns()); err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(plain.String(), "\n"); got != reg.Len() {
		t.Errorf("plain pattern lines = %d, want %d", got, reg.Len())
	}

	var rich bytes.Buffer
	_ = NewPrinter(&rich, ModeRich).Patterns(reg.Version(), reg.Patterns())
	if !strings.Contains(rich.String(), string(scanner.CategorySecretExposure)) {
		t.Errorf("rich output missing category heading:\n%s", rich.String())
	}
}

func TestPrinter_PatternDetails(t *testing.T) {
	reg := scanner.DefaultRegistry()

	var buf bytes.Buffer
	_ = NewPrinter(&buf, ModePlain).PatternDetails(reg.PatternDetails("nonexistent"))
	if !strings.HasPrefix(buf.String(), "nonexistent\tMEDIUM\tCWE-000\tUnknown vulnerability type\n") {
		t.Errorf("fallback details = %q", buf.String())
	}
	if !strings.Contains(buf.String(), "remediation\t") {
		t.Error("fallback details should carry generic remediation")
	}

	buf.Reset()
	_ = NewPrinter(&buf, ModeRich).PatternDetails(reg.PatternDetails("nonexistent"))
	if !strings.Contains(buf.String(), "no registered pattern") {
		t.Errorf("rich fallback should warn:\n%s", buf.String())
	}
}
