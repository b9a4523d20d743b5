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
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultMatchOptions() matchOptions {
	return matchOptions{
		contextLines:   DefaultContextLines,
		maxMatchLength: DefaultMaxMatchLength,
	}
}

func match(t *testing.T, content string, opts matchOptions) []Finding {
	t.Helper()
	findings, err := matchAll(context.Background(), DefaultRegistry(), content, opts)
	require.NoError(t, err)
	return findings
}

func TestLineIndex(t *testing.T) {
	idx := newLineIndex("a\nbb\n\nc")

	tests := []struct {
		offset int
		want   int
	}{
		{0, 1},
		{1, 1}, // the newline itself belongs to line 1
		{2, 2},
		{3, 2},
		{5, 3},
		{6, 4},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, idx.lineOf(tt.offset), "offset %d", tt.offset)
	}

	assert.Equal(t, 4, idx.lines())
	assert.Equal(t, "bb", idx.lineText(2))
	assert.Equal(t, "", idx.lineText(3))
	assert.Equal(t, "c", idx.lineText(4))
}

func TestLineIndex_Context(t *testing.T) {
	idx := newLineIndex("one\ntwo\nthree\nfour")

	assert.Equal(t, "one\ntwo", idx.context(1, 1), "clamped at start")
	assert.Equal(t, "one\ntwo\nthree", idx.context(2, 1))
	assert.Equal(t, "three\nfour", idx.context(4, 1), "clamped at end")
	assert.Equal(t, "two", idx.context(2, 0))
	assert.Equal(t, "one\ntwo\nthree\nfour", idx.context(2, 5))
}

func TestMatchAll_EmptyAndWhitespace(t *testing.T) {
	for _, content := range []string{"", "   ", "\n\n\t\n"} {
		findings := match(t, content, defaultMatchOptions())
		assert.NotNil(t, findings)
		assert.Empty(t, findings)
	}
}

func TestMatchAll_PositionAndContext(t *testing.T) {
	content := "const a = 1;\n  eval(input);\nconst b = 2;\n"
	findings := match(t, content, defaultMatchOptions())

	require.Len(t, findings, 1)
	f := findings[0]
	assert.Equal(t, CategoryCodeInjection, f.Category)
	assert.Equal(t, "CG-COD-001", f.PatternID)
	assert.Equal(t, 2, f.Line)
	assert.Equal(t, 3, f.Column)
	assert.Equal(t, "eval(", f.MatchedText)
	assert.Equal(t, "const a = 1;\n  eval(input);\nconst b = 2;", f.Context)
	assert.Equal(t, SeverityCritical, f.Severity)
	assert.Equal(t, "CWE-95", f.CWE)
	assert.NotEmpty(t, f.Remediation)
}

func TestMatchAll_ColumnCountsRunes(t *testing.T) {
	findings := match(t, "é→ eval(x)", defaultMatchOptions())
	require.Len(t, findings, 1)
	assert.Equal(t, 4, findings[0].Column)
}

func TestMatchAll_CRLF(t *testing.T) {
	findings := match(t, "a\r\neval(x)\r\nb\r\n", defaultMatchOptions())
	require.Len(t, findings, 1)
	assert.Equal(t, 2, findings[0].Line)
	assert.Equal(t, "a\neval(x)\nb", findings[0].Context)
}

func TestMatchAll_OrderedByLineThenRegistration(t *testing.T) {
	content := strings.Join([]string{
		`x = 1`,
		`eval("SELECT * FROM t WHERE id=" + id)`,
		`const API_KEY = "sk-1234567890abcdef";`,
	}, "\n")
	// line 3 secret is registered first, but line 2 must come first.
	findings := match(t, content, defaultMatchOptions())
	require.Len(t, findings, 3)

	assert.Equal(t, 2, findings[0].Line)
	assert.Equal(t, CategorySQLInjection, findings[0].Category, "sql patterns register before code injection")
	assert.Equal(t, 2, findings[1].Line)
	assert.Equal(t, CategoryCodeInjection, findings[1].Category)
	assert.Equal(t, 3, findings[2].Line)
	assert.Equal(t, CategorySecretExposure, findings[2].Category)

	for i := 1; i < len(findings); i++ {
		assert.LessOrEqual(t, findings[i-1].Line, findings[i].Line)
	}
}

func TestMatchAll_NoDeduplication(t *testing.T) {
	reg, err := NewRegistry([]Pattern{validPattern("A-1"), validPattern("A-2")})
	require.NoError(t, err)

	findings, err := matchAll(context.Background(), reg, "dangerous(x)", defaultMatchOptions())
	require.NoError(t, err)
	require.Len(t, findings, 2)
	assert.Equal(t, "A-1", findings[0].PatternID)
	assert.Equal(t, "A-2", findings[1].PatternID)
}

func TestMatchAll_MultipleMatchesSameLine(t *testing.T) {
	findings := match(t, "eval(a); eval(b);", defaultMatchOptions())
	require.Len(t, findings, 2)
	assert.Equal(t, 1, findings[0].Column)
	assert.Equal(t, 10, findings[1].Column)
}

func TestMatchAll_ExcludeOnCapturedSecret(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
	}{
		{"real secret", `const API_KEY = "sk-1234567890abcdef";`, 1},
		{"placeholder", `const API_KEY = "your_api_key_here_123";`, 0},
		{"example value", `apiKey: "EXAMPLE-1234567890"`, 0},
		{"template", `token: "${TOKEN_FROM_ENV_VAR}"`, 0},
		{"short value", `token = "abc"`, 0},
		{"comment mentions env", `const API_KEY = "sk-1234567890abcdef"; // TODO: read from process.env`, 1},
		{"comment mentions example", `const API_KEY = "sk-1234567890abcdef"; // see example in README`, 1},
		{"env lookup", `apiKey := os.Getenv("API_KEY_VALUE")`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			findings := match(t, tt.content, defaultMatchOptions())
			secrets := 0
			for _, f := range findings {
				if f.Category == CategorySecretExposure {
					secrets++
				}
			}
			assert.Equal(t, tt.want, secrets)
		})
	}
}

func TestMatchAll_Suppression(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    bool
	}{
		{"same line nosec", "eval(x) // nosec", true},
		{"same line codeguardian", "eval(x) // codeguardian:ignore reviewed", true},
		{"previous line", "// NOSONAR\neval(x)", true},
		{"previous line hash comment", "# codeguardian-ignore\neval(x)", true},
		{"block comment", "eval(x) /* security-ignore */", true},
		{"two lines above", "// nosec\n\neval(x)", false},
		{"unsuppressed", "eval(x)", false},
		{"marker prefix of a word", "// nosecurity review pending\neval(x)", false},
		{"marker inside identifier", "eval(isNosecHeader)", false},
		{"marker not after comment token", "eval(x) // reviewed, see nosec policy", false},
		{"previous line is code", "run(); // nosec\neval(x)", false},
		{"previous line prose", "nosec\neval(x)", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			findings := match(t, tt.content, defaultMatchOptions())
			require.Len(t, findings, 1)
			assert.Equal(t, tt.want, findings[0].Suppressed)
		})
	}
}

func TestMatchAll_MaskSecrets(t *testing.T) {
	opts := defaultMatchOptions()
	opts.maskSecrets = true

	findings := match(t, `const API_KEY = "sk-1234567890abcdef";`, opts)
	require.Len(t, findings, 1)
	assert.Equal(t, `API_KEY = "sk***************ef"`, findings[0].MatchedText)
	assert.NotContains(t, findings[0].Context, "1234567890")
}

func TestMatchAll_LanguageFilter(t *testing.T) {
	line := `cursor.execute(f"SELECT * FROM users WHERE id = {uid}")`

	countSQL := func(findings []Finding) int {
		n := 0
		for _, f := range findings {
			if f.Category == CategorySQLInjection {
				n++
			}
		}
		return n
	}

	opts := defaultMatchOptions()
	opts.language = "python"
	assert.Equal(t, 1, countSQL(match(t, line, opts)))

	opts.language = "javascript"
	assert.Equal(t, 0, countSQL(match(t, line, opts)))
}

func TestMatchAll_ZeroLengthMatchesIgnored(t *testing.T) {
	p := validPattern("Z-1")
	p.Expr = `x*`
	reg, err := NewRegistry([]Pattern{p})
	require.NoError(t, err)

	findings, err := matchAll(context.Background(), reg, "abc\ndef", defaultMatchOptions())
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestMatchAll_TruncatesMatchedText(t *testing.T) {
	p := validPattern("L-1")
	p.Expr = `a+`
	reg, err := NewRegistry([]Pattern{p})
	require.NoError(t, err)

	opts := defaultMatchOptions()
	findings, err := matchAll(context.Background(), reg, strings.Repeat("a", 1000), opts)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Len(t, findings[0].MatchedText, DefaultMaxMatchLength)
}

func TestMatchAll_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := matchAll(ctx, DefaultRegistry(), "eval(x)", defaultMatchOptions())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "abc", truncateRunes("abc", 5))
	assert.Equal(t, "ab", truncateRunes("abc", 2))
	assert.Equal(t, "héé", truncateRunes("hééllo", 3))
	assert.Equal(t, "abc", truncateRunes("abc", 0))
	assert.Equal(t, "\xff\xfe", truncateRunes("\xff\xfe\xfd", 2))
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "****", maskSecret("short"))
	assert.Equal(t, "****", maskSecret("12345678"))
	assert.Equal(t, "12*****89", maskSecret("123456789"))
}
