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
	"fmt"
	"strings"

	"github.com/AleutianAI/codeguardian/services/scanner"
)

// RenderOptions controls how findings are printed.
type RenderOptions struct {
	// ShowSuppressed includes findings silenced by inline markers.
	ShowSuppressed bool

	// ShowContext prints the surrounding source lines under each finding.
	ShowContext bool
}

// ScanResult prints one file's findings and its summary line.
func (p *Printer) ScanResult(result scanner.ScanResult, opts RenderOptions) error {
	if p.mode == ModeJSON {
		return p.JSON(result)
	}
	p.fileHeader(result)
	for _, f := range result.Findings {
		if f.Suppressed && !opts.ShowSuppressed {
			continue
		}
		p.finding(result.Filename, f, opts)
	}
	p.fileSummary(result)
	return nil
}

// Batch prints every entry of a batch in input order and a closing summary.
func (p *Printer) Batch(batch scanner.BatchResult, opts RenderOptions) error {
	if p.mode == ModeJSON {
		return p.JSON(batch)
	}
	for _, entry := range batch.Entries {
		if entry.Failed() {
			p.failedEntry(entry)
			continue
		}
		if entry.Result == nil {
			continue
		}
		if len(entry.Result.Findings) == 0 && p.mode == ModeRich {
			fmt.Fprintf(p.w, "%s %s\n", IconSuccess.Render(), Styles.Muted.Render(entry.Filename))
			continue
		}
		if err := p.ScanResult(*entry.Result, opts); err != nil {
			return err
		}
	}
	p.batchSummary(batch)
	return nil
}

// Patterns prints the registry contents.
func (p *Printer) Patterns(version string, patterns []scanner.Pattern) error {
	if p.mode == ModeJSON {
		return p.JSON(struct {
			Version  string            `json:"version"`
			Count    int               `json:"count"`
			Patterns []scanner.Pattern `json:"patterns"`
		}{version, len(patterns), patterns})
	}
	if p.mode == ModePlain {
		for _, pat := range patterns {
			fmt.Fprintf(p.w, "%s\t%s\t%s\t%s\t%s\n", pat.ID, pat.Category, pat.Severity, pat.CWE, pat.Description)
		}
		return nil
	}

	p.Title(fmt.Sprintf("%s %d patterns (registry %s)", IconShield, len(patterns), version))
	var current scanner.Category
	for _, pat := range patterns {
		if pat.Category != current {
			current = pat.Category
			fmt.Fprintf(p.w, "\n%s\n", Styles.Bold.Render(string(current)))
		}
		fmt.Fprintf(p.w, "  %-8s %s %s %s\n",
			pat.ID,
			SeverityStyle(pat.Severity).Render(fmt.Sprintf("%-8s", pat.Severity)),
			Styles.Muted.Render(pat.CWE),
			pat.Description,
		)
	}
	return nil
}

// PatternDetails prints the reporting metadata for one category.
func (p *Printer) PatternDetails(d scanner.PatternDetails) error {
	if p.mode == ModeJSON {
		return p.JSON(d)
	}
	if p.mode == ModePlain {
		fmt.Fprintf(p.w, "%s\t%s\t%s\t%s\n", d.Category, d.Severity, d.CWE, d.Description)
		for _, r := range d.Remediation {
			fmt.Fprintf(p.w, "remediation\t%s\n", r)
		}
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", SeverityStyle(d.Severity).Render(string(d.Severity)), Styles.Muted.Render(d.CWE))
	b.WriteString(d.Description)
	if len(d.PatternIDs) > 0 {
		fmt.Fprintf(&b, "\n%s %s", Styles.Muted.Render("patterns:"), strings.Join(d.PatternIDs, ", "))
	}
	for _, r := range d.Remediation {
		fmt.Fprintf(&b, "\n%s %s", IconArrow, r)
	}
	p.Box(string(d.Category), b.String())
	if !d.Known {
		p.Warning("no registered pattern for this category")
	}
	return nil
}

func (p *Printer) fileHeader(result scanner.ScanResult) {
	if p.mode != ModeRich {
		return
	}
	header := Styles.Highlight.Render(result.Filename)
	if result.Language != "" {
		header += " " + Styles.Muted.Render("("+result.Language+")")
	}
	if result.Truncated {
		header += " " + Styles.Warning.Render(fmt.Sprintf("[truncated at %d bytes]", result.ScannedBytes))
	}
	fmt.Fprintf(p.w, "\n%s %s\n", IconShield, header)
}

func (p *Printer) finding(filename string, f scanner.Finding, opts RenderOptions) {
	if p.mode == ModePlain {
		suppressed := ""
		if f.Suppressed {
			suppressed = "\tsuppressed"
		}
		fmt.Fprintf(p.w, "%s:%d:%d\t%s\t%s\t%s\t%s\t%s%s\n",
			filename, f.Line, f.Column, f.Severity, f.Category, f.CWE, f.PatternID, f.Description, suppressed)
		return
	}

	label := SeverityStyle(f.Severity).Render(fmt.Sprintf("%-8s", f.Severity))
	if f.Suppressed {
		label = Styles.Muted.Render(fmt.Sprintf("%-8s", "ignored"))
	}
	fmt.Fprintf(p.w, "  %s %s %s %s\n",
		label,
		Styles.Bold.Render(fmt.Sprintf("%d:%d", f.Line, f.Column)),
		f.Description,
		Styles.Muted.Render(fmt.Sprintf("[%s %s]", f.CWE, f.PatternID)),
	)
	if f.MatchedText != "" {
		fmt.Fprintf(p.w, "           %s\n", Styles.Code.Render(f.MatchedText))
	}
	if opts.ShowContext && f.Context != "" {
		for _, line := range strings.Split(f.Context, "\n") {
			fmt.Fprintf(p.w, "           %s %s\n", Styles.Muted.Render("│"), line)
		}
	}
	if len(f.Remediation) > 0 {
		fmt.Fprintf(p.w, "           %s %s\n", IconArrow, Styles.Muted.Render(f.Remediation[0]))
	}
}

func (p *Printer) fileSummary(result scanner.ScanResult) {
	s := result.Summary
	if p.mode == ModePlain {
		fmt.Fprintf(p.w, "SUMMARY: file=%s issues=%d critical=%d high=%d medium=%d low=%d suppressed=%d risk=%.2f level=%s\n",
			result.Filename, s.TotalIssues, s.Critical, s.High, s.Medium, s.Low, s.Suppressed, result.RiskScore, s.RiskLevel)
		return
	}
	if s.TotalIssues == 0 {
		fmt.Fprintf(p.w, "  %s %s\n", IconSuccess.Render(), Styles.Success.Render("no issues found"))
		return
	}
	fmt.Fprintf(p.w, "  %s %s %s  %s\n",
		ScoreBar(result.RiskScore, 20),
		Styles.Bold.Render(fmt.Sprintf("%.2f", result.RiskScore)),
		RiskStyle(s.RiskLevel).Render(string(s.RiskLevel)),
		Styles.Muted.Render(countLine(s)),
	)
}

func (p *Printer) failedEntry(entry scanner.BatchEntry) {
	msg := entry.Error
	if msg == "" && entry.Err != nil {
		msg = entry.Err.Error()
	}
	if p.mode == ModePlain {
		fmt.Fprintf(p.w, "%s\tERROR\t%s\n", entry.Filename, msg)
		return
	}
	name := entry.Filename
	if name == "" {
		name = "<unnamed>"
	}
	fmt.Fprintf(p.w, "\n%s %s %s\n", IconError.Render(), Styles.Highlight.Render(name), Styles.Error.Render(msg))
}

func (p *Printer) batchSummary(batch scanner.BatchResult) {
	if p.mode == ModePlain {
		fmt.Fprintf(p.w, "TOTAL: files=%d failed=%d issues=%d max_risk=%.2f level=%s\n",
			batch.FilesScanned, batch.FilesFailed, batch.TotalIssues, batch.MaxRiskScore, batch.MaxRiskLevel)
		return
	}
	fmt.Fprintf(p.w, "\n%s %s  %s %s  %s %s  %s %s\n",
		Styles.Bold.Render(fmt.Sprintf("%d", batch.FilesScanned)), Styles.Muted.Render("scanned"),
		Styles.Error.Render(fmt.Sprintf("%d", batch.FilesFailed)), Styles.Muted.Render("failed"),
		Styles.Warning.Render(fmt.Sprintf("%d", batch.TotalIssues)), Styles.Muted.Render("issues"),
		RiskStyle(batch.MaxRiskLevel).Render(fmt.Sprintf("%.2f", batch.MaxRiskScore)), Styles.Muted.Render("max risk"),
	)
}

func countLine(s scanner.Summary) string {
	noun := "issues"
	if s.TotalIssues == 1 {
		noun = "issue"
	}
	line := fmt.Sprintf("%d %s (%d critical, %d high, %d medium, %d low)",
		s.TotalIssues, noun, s.Critical, s.High, s.Medium, s.Low)
	if s.Suppressed > 0 {
		line += fmt.Sprintf(", %d suppressed", s.Suppressed)
	}
	return line
}
