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
	"os"
	"path/filepath"
	"testing"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		input   string
		want    Mode
		wantErr bool
	}{
		{"rich", ModeRich, false},
		{"FULL", ModeRich, false},
		{"plain", ModePlain, false},
		{" machine ", ModePlain, false},
		{"json", ModeJSON, false},
		{"xml", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMode(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestDetectMode(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "out.txt"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	t.Run("file is plain", func(t *testing.T) {
		t.Setenv(OutputEnv, "")
		t.Setenv("NO_COLOR", "")
		if got := DetectMode(f); got != ModePlain {
			t.Errorf("DetectMode(file) = %q, want plain", got)
		}
	})

	t.Run("nil is plain", func(t *testing.T) {
		t.Setenv(OutputEnv, "")
		if got := DetectMode(nil); got != ModePlain {
			t.Errorf("DetectMode(nil) = %q, want plain", got)
		}
	})

	t.Run("env wins", func(t *testing.T) {
		t.Setenv(OutputEnv, "json")
		if got := DetectMode(f); got != ModeJSON {
			t.Errorf("DetectMode with env = %q, want json", got)
		}
	})

	t.Run("invalid env falls through", func(t *testing.T) {
		t.Setenv(OutputEnv, "sparkles")
		t.Setenv("NO_COLOR", "1")
		if got := DetectMode(f); got != ModePlain {
			t.Errorf("DetectMode = %q, want plain", got)
		}
	})
}
