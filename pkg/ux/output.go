// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux provides terminal output styling for the codeguardian CLI.
package ux

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/AleutianAI/codeguardian/services/scanner"
)

// Teal palette shared with the rest of the Aleutian tooling.
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7")
	ColorTealPrimary = lipgloss.Color("#20B9B4")
	ColorTealDeep    = lipgloss.Color("#16858E")
	ColorSlate       = lipgloss.Color("#2C4A54")

	ColorSuccess  = lipgloss.Color("#2CD7C7")
	ColorWarning  = lipgloss.Color("#F4D03F")
	ColorError    = lipgloss.Color("#E74C3C")
	ColorCritical = lipgloss.Color("#FF2D55")
)

// Styles provides pre-configured lipgloss styles.
var Styles = struct {
	Title     lipgloss.Style
	Bold      lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Highlight lipgloss.Style
	Code      lipgloss.Style

	Box      lipgloss.Style
	ErrorBox lipgloss.Style

	Critical lipgloss.Style
	High     lipgloss.Style
	Medium   lipgloss.Style
	Low      lipgloss.Style
}{
	Title:     lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Bold:      lipgloss.NewStyle().Bold(true),
	Muted:     lipgloss.NewStyle().Foreground(ColorSlate),
	Success:   lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning:   lipgloss.NewStyle().Foreground(ColorWarning),
	Error:     lipgloss.NewStyle().Foreground(ColorError),
	Highlight: lipgloss.NewStyle().Foreground(ColorTealBright).Bold(true),
	Code:      lipgloss.NewStyle().Foreground(ColorTealPrimary),

	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorTealDeep).
		Padding(0, 1),
	ErrorBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorError).
		Padding(0, 1),

	Critical: lipgloss.NewStyle().Bold(true).Foreground(ColorCritical),
	High:     lipgloss.NewStyle().Bold(true).Foreground(ColorError),
	Medium:   lipgloss.NewStyle().Foreground(ColorWarning),
	Low:      lipgloss.NewStyle().Foreground(ColorTealPrimary),
}

// Icon provides themed status icons
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconArrow   Icon = "→"
	IconBullet  Icon = "•"
	IconShield  Icon = "⛨"
)

// Render returns the icon with appropriate styling
func (i Icon) Render() string {
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	default:
		return string(i)
	}
}

// SeverityStyle returns the style used to render a severity label.
func SeverityStyle(s scanner.Severity) lipgloss.Style {
	switch s {
	case scanner.SeverityCritical:
		return Styles.Critical
	case scanner.SeverityHigh:
		return Styles.High
	case scanner.SeverityMedium:
		return Styles.Medium
	default:
		return Styles.Low
	}
}

// RiskStyle returns the style used to render an overall risk level.
func RiskStyle(level scanner.RiskLevel) lipgloss.Style {
	switch level {
	case scanner.RiskCritical:
		return Styles.Critical
	case scanner.RiskHigh:
		return Styles.High
	case scanner.RiskMedium:
		return Styles.Medium
	default:
		return Styles.Success
	}
}

// Printer writes CLI output in one of the supported modes.
//
// Thread Safety: not safe for concurrent use. Callers serialize output.
type Printer struct {
	w    io.Writer
	mode Mode
}

// NewPrinter creates a printer for w. An empty mode means ModeRich.
func NewPrinter(w io.Writer, mode Mode) *Printer {
	if mode == "" {
		mode = ModeRich
	}
	return &Printer{w: w, mode: mode}
}

// Mode returns the printer's output mode.
func (p *Printer) Mode() Mode { return p.mode }

// Title prints a styled title. Suppressed outside rich mode.
func (p *Printer) Title(text string) {
	if p.mode != ModeRich {
		return
	}
	fmt.Fprintln(p.w, Styles.Title.Render(text))
}

// Success prints a success message with checkmark
func (p *Printer) Success(text string) {
	switch p.mode {
	case ModeJSON:
	case ModePlain:
		fmt.Fprintf(p.w, "OK: %s\n", text)
	default:
		fmt.Fprintf(p.w, "%s %s\n", IconSuccess.Render(), Styles.Success.Render(text))
	}
}

// Warning prints a warning message
func (p *Printer) Warning(text string) {
	switch p.mode {
	case ModeJSON:
	case ModePlain:
		fmt.Fprintf(p.w, "WARN: %s\n", text)
	default:
		fmt.Fprintf(p.w, "%s %s\n", IconWarning.Render(), Styles.Warning.Render(text))
	}
}

// Error prints an error message. Errors are printed in every mode.
func (p *Printer) Error(text string) {
	switch p.mode {
	case ModePlain, ModeJSON:
		fmt.Fprintf(p.w, "ERROR: %s\n", text)
	default:
		fmt.Fprintf(p.w, "%s %s\n", IconError.Render(), Styles.Error.Render(text))
	}
}

// Info prints an informational message
func (p *Printer) Info(text string) {
	switch p.mode {
	case ModeJSON:
	case ModePlain:
		fmt.Fprintln(p.w, text)
	default:
		fmt.Fprintf(p.w, "%s %s\n", Styles.Muted.Render("│"), text)
	}
}

// Box prints text in a rounded box
func (p *Printer) Box(title, content string) {
	switch p.mode {
	case ModeJSON:
	case ModePlain:
		fmt.Fprintf(p.w, "%s: %s\n", title, content)
	default:
		fmt.Fprintln(p.w, Styles.Box.Width(64).Render(Styles.Title.Render(title)+"\n"+content))
	}
}

// JSON writes v as indented JSON followed by a newline.
func (p *Printer) JSON(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ScoreBar renders a risk score on a 0..10 bar.
func ScoreBar(score float64, width int) string {
	if width <= 0 {
		return ""
	}
	filled := int(score / scanner.MaxRiskScore * float64(width))
	filled = max(0, min(width, filled))
	return RiskStyle(scanner.LevelForScore(score)).Render(strings.Repeat("█", filled)) +
		Styles.Muted.Render(strings.Repeat("░", width-filled))
}
