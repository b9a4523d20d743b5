// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/codeguardian/pkg/ux"
	"github.com/AleutianAI/codeguardian/services/scanner"
	"github.com/AleutianAI/codeguardian/services/store"
)

// isolate points every config source at test-owned locations.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("CODEGUARDIAN_CONFIG", "")
	t.Setenv(scanner.PatternFileEnv, "")
	t.Setenv(ux.OutputEnv, "")
	t.Setenv("CODEGUARDIAN_STORE_PATH", filepath.Join(t.TempDir(), "reports"))
	t.Chdir(t.TempDir())
}

type runResult struct {
	code   int
	stdout string
	stderr string
}

func runCLI(t *testing.T, stdin string, args ...string) runResult {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, strings.NewReader(stdin), &stdout, &stderr)
	return runResult{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func decodeBatch(t *testing.T, out string) scanner.BatchResult {
	t.Helper()
	var batch scanner.BatchResult
	require.NoError(t, json.Unmarshal([]byte(out), &batch), out)
	return batch
}

// =============================================================================
// scan
// =============================================================================

func TestScan_ExitCodes(t *testing.T) {
	isolate(t)
	root := writeTree(t, map[string]string{
		"app.js":  "eval(userInput);\n",
		"util.js": "export const add = (a, b) => a + b;\n",
	})

	tests := []struct {
		name   string
		failOn string
		want   int
	}{
		{"default high passes medium risk", "", ExitSuccess},
		{"medium gate trips", "medium", ExitRiskFound},
		{"low gate trips", "low", ExitRiskFound},
		{"none never trips", "none", ExitSuccess},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := []string{"scan", root, "-o", "plain"}
			if tt.failOn != "" {
				args = append(args, "--fail-on", tt.failOn)
			}
			res := runCLI(t, "", args...)
			assert.Equal(t, tt.want, res.code, res.stderr)
			assert.Contains(t, res.stdout, "code_injection")
		})
	}
}

func TestScan_CleanTreeWithLowGate(t *testing.T) {
	isolate(t)
	root := writeTree(t, map[string]string{"ok.go": "package ok\n"})

	res := runCLI(t, "", "scan", root, "--fail-on", "low", "-o", "plain")
	assert.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "TOTAL: files=1 failed=0 issues=0")
}

func TestScan_JSONOutputKeepsWalkOrder(t *testing.T) {
	isolate(t)
	root := writeTree(t, map[string]string{
		"b.py":              "os.system(\"ls \" + d)\n",
		"a.js":              "el.innerHTML = x;\n",
		"sub/c.go":          "package c\n",
		"node_modules/x.js": "eval(x)\n",
		".git/config":       "password = \"hunter22hunter\"\n",
	})

	res := runCLI(t, "", "scan", root, "-o", "json", "--fail-on", "none")
	require.Equal(t, ExitSuccess, res.code, res.stderr)

	batch := decodeBatch(t, res.stdout)
	var names []string
	for _, e := range batch.Entries {
		rel, err := filepath.Rel(root, e.Filename)
		require.NoError(t, err)
		names = append(names, filepath.ToSlash(rel))
	}
	assert.Equal(t, []string{"a.js", "b.py", "sub/c.go"}, names)
	assert.Equal(t, 3, batch.FilesScanned)
	assert.GreaterOrEqual(t, batch.TotalIssues, 2)
}

func TestScan_Stdin(t *testing.T) {
	isolate(t)
	res := runCLI(t, `const API_KEY = "sk-1234567890abcdef";`,
		"scan", "-", "--stdin-filename", "config.js", "-o", "plain", "--mask-secrets")

	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "config.js:1:7\tHIGH\tsecret_exposure")
	assert.NotContains(t, res.stdout, "sk-1234567890abcdef")
}

func TestScan_SkipsBinaryFiles(t *testing.T) {
	isolate(t)
	root := writeTree(t, map[string]string{
		"blob.bin": "eval(x)\x00\x01\x02",
		"main.js":  "eval(x)\n",
	})

	res := runCLI(t, "", "scan", root, "-o", "json", "--fail-on", "none")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Len(t, decodeBatch(t, res.stdout).Entries, 1)

	res = runCLI(t, "", "scan", root, "-o", "json", "--fail-on", "none", "--include-binary")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Len(t, decodeBatch(t, res.stdout).Entries, 2)
}

func TestScan_Errors(t *testing.T) {
	isolate(t)
	root := writeTree(t, map[string]string{"a.js": "eval(x)\n"})
	badPatterns := writeTree(t, map[string]string{"p.yaml": "version: 9\npatterns: []\n"})

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"missing path", []string{"scan", filepath.Join(root, "nope")}, "no such file"},
		{"no args", []string{"scan"}, "requires at least 1 arg"},
		{"bad fail-on", []string{"scan", root, "--fail-on", "severe"}, "--fail-on"},
		{"bad output", []string{"scan", root, "-o", "xml"}, "--output"},
		{"bad pattern file", []string{"scan", root, "--patterns", filepath.Join(badPatterns, "p.yaml")}, "load patterns"},
		{"bad log level", []string{"scan", root, "--log-level", "loud"}, "log"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := runCLI(t, "", tt.args...)
			assert.Equal(t, ExitError, res.code)
			assert.Contains(t, res.stderr, tt.wantErr)
		})
	}
}

func TestScan_OrganizationPatterns(t *testing.T) {
	isolate(t)
	patterns := writeTree(t, map[string]string{"org.yaml": `version: 1
patterns:
  - id: ORG-001
    category: internal_api
    pattern: '\blegacyAuth\('
    severity: critical
    cwe: CWE-287
    description: Deprecated authentication helper
    remediation:
      - Use the session middleware
`})
	root := writeTree(t, map[string]string{"svc.js": "legacyAuth(user)\n"})

	res := runCLI(t, "", "scan", root, "--patterns", filepath.Join(patterns, "org.yaml"), "-o", "plain", "--fail-on", "medium")
	assert.Equal(t, ExitRiskFound, res.code, res.stderr)
	assert.Contains(t, res.stdout, "internal_api\tCWE-287\tORG-001")
}

// =============================================================================
// reports
// =============================================================================

var reportIDPattern = regexp.MustCompile(`report saved: ([0-9a-f-]{36})`)

func TestScanStore_ThenReports(t *testing.T) {
	isolate(t)
	root := writeTree(t, map[string]string{"app.js": "eval(x)\n"})

	res := runCLI(t, "", "scan", root, "--store", "-o", "plain")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	m := reportIDPattern.FindStringSubmatch(res.stdout)
	require.Len(t, m, 2, res.stdout)
	id := m[1]

	res = runCLI(t, "", "reports", "-o", "plain")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, id)
	assert.Contains(t, res.stdout, "files=1 issues=1")

	res = runCLI(t, "", "reports", id, "-o", "json")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	var report store.Report
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &report))
	assert.Equal(t, id, report.ID)
	assert.Equal(t, store.KindBatch, report.Kind)

	res = runCLI(t, "", "reports", "00000000-0000-0000-0000-000000000000")
	assert.Equal(t, ExitError, res.code)
	assert.Contains(t, res.stderr, "not found")
}

func TestReports_Empty(t *testing.T) {
	isolate(t)
	res := runCLI(t, "", "reports", "-o", "plain")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Contains(t, res.stdout, "no saved reports")
}

// =============================================================================
// patterns / version
// =============================================================================

func TestPatternsCommand(t *testing.T) {
	isolate(t)

	res := runCLI(t, "", "patterns", "-o", "plain")
	require.Equal(t, ExitSuccess, res.code, res.stderr)
	assert.Equal(t, scanner.DefaultRegistry().Len(), strings.Count(res.stdout, "\n"))

	res = runCLI(t, "", "patterns", "xss", "-o", "plain")
	require.Equal(t, ExitSuccess, res.code)
	assert.True(t, strings.HasPrefix(res.stdout, "xss\t"), res.stdout)
	assert.Contains(t, res.stdout, "CWE-79")

	res = runCLI(t, "", "patterns", "made_up", "-o", "json")
	require.Equal(t, ExitSuccess, res.code)
	var details scanner.PatternDetails
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &details))
	assert.Equal(t, "CWE-000", details.CWE)
	assert.False(t, details.Known)
}

func TestVersionCommand(t *testing.T) {
	isolate(t)
	res := runCLI(t, "", "version", "-o", "json")
	require.Equal(t, ExitSuccess, res.code, res.stderr)

	var info versionInfo
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &info))
	assert.Equal(t, version, info.Version)
	assert.Equal(t, scanner.PatternVersion, info.PatternVersion)
	assert.Equal(t, scanner.RiskAlgorithmVersion, info.RiskAlgorithmVersion)

	res = runCLI(t, "", "version", "--json")
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &info))

	res = runCLI(t, "", "version", "-o", "plain")
	assert.Contains(t, res.stdout, "codeguardian "+version)
}

// =============================================================================
// exit codes
// =============================================================================

func TestExitCodeFor(t *testing.T) {
	var stderr bytes.Buffer
	assert.Equal(t, ExitSuccess, exitCodeFor(nil, &stderr))
	assert.Equal(t, ExitRiskFound, exitCodeFor(errRiskFound, &stderr))
	assert.Empty(t, stderr.String(), "risk found prints nothing extra")

	assert.Equal(t, ExitError, exitCodeFor(errors.New("boom"), &stderr))
	assert.Contains(t, stderr.String(), "Error: boom")

	stderr.Reset()
	wrapped := fmt.Errorf("outer: %w", withExitCode(ExitError, errors.New("inner")))
	assert.Equal(t, ExitError, exitCodeFor(wrapped, &stderr))
	assert.Contains(t, stderr.String(), "inner")
}
