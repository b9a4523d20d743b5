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
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// OutputEnv overrides output mode detection.
const OutputEnv = "CODEGUARDIAN_OUTPUT"

// Mode defines how CLI output is rendered
type Mode string

const (
	// ModeRich enables colors, icons, and boxes
	ModeRich Mode = "rich"

	// ModePlain outputs tab separated text suitable for grep and awk
	ModePlain Mode = "plain"

	// ModeJSON outputs a single JSON document per command
	ModeJSON Mode = "json"
)

// ParseMode converts a string to Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rich", "full", "color":
		return ModeRich, nil
	case "plain", "machine", "text":
		return ModePlain, nil
	case "json":
		return ModeJSON, nil
	default:
		return "", fmt.Errorf("unknown output mode %q (want rich, plain or json)", s)
	}
}

// DetectMode picks an output mode for f.
//
// Description:
//
//	$CODEGUARDIAN_OUTPUT wins when it parses. Otherwise a terminal gets
//	ModeRich and anything else (pipes, files, CI logs) gets ModePlain.
//	NO_COLOR also forces ModePlain.
func DetectMode(f *os.File) Mode {
	if env := os.Getenv(OutputEnv); env != "" {
		if m, err := ParseMode(env); err == nil {
			return m
		}
	}
	if os.Getenv("NO_COLOR") != "" {
		return ModePlain
	}
	if f != nil && isTerminal(f.Fd()) {
		return ModeRich
	}
	return ModePlain
}

func isTerminal(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
