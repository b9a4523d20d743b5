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
	"path"
	"regexp"
	"strings"
)

// languageByExt maps lowercase file extensions to language tags.
var languageByExt = map[string]string{
	".js":    "javascript",
	".mjs":   "javascript",
	".cjs":   "javascript",
	".jsx":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".mts":   "typescript",
	".py":    "python",
	".pyw":   "python",
	".go":    "go",
	".java":  "java",
	".kt":    "kotlin",
	".rb":    "ruby",
	".php":   "php",
	".cs":    "csharp",
	".sh":    "shell",
	".bash":  "shell",
	".zsh":   "shell",
	".sql":   "sql",
	".html":  "html",
	".htm":   "html",
	".vue":   "javascript",
	".yaml":  "yaml",
	".yml":   "yaml",
	".json":  "json",
	".env":   "dotenv",
	".rs":    "rust",
	".c":     "c",
	".h":     "c",
	".cpp":   "cpp",
	".swift": "swift",
}

// DetectLanguage returns the language tag for a filename based on its
// extension, or "" when unknown. The filename is treated as an opaque,
// slash-separated string and is never touched on disk.
func DetectLanguage(filename string) string {
	base := strings.ToLower(path.Base(strings.ReplaceAll(filename, `\`, "/")))
	if base == ".env" || strings.HasPrefix(base, ".env.") {
		return "dotenv"
	}
	if base == "dockerfile" {
		return "dockerfile"
	}
	return languageByExt[path.Ext(base)]
}

// IsTestFile returns true if the path looks like a test file.
//
// Description:
//
//	Checks common test naming conventions across languages and common test
//	directories. Results are reported on ScanResult; findings in test files
//	are still reported.
func IsTestFile(filename string) bool {
	p := strings.ToLower(strings.ReplaceAll(filename, `\`, "/"))
	base := path.Base(p)

	switch {
	case strings.HasSuffix(p, "_test.go"):
		return true
	case strings.HasSuffix(p, ".py") && (strings.HasPrefix(base, "test_") || strings.HasSuffix(base, "_test.py")):
		return true
	case strings.Contains(base, ".test.") || strings.Contains(base, ".spec."):
		return true
	case strings.HasSuffix(p, "test.java"):
		return true
	}

	for _, dir := range []string{"test/", "tests/", "__tests__/", "testdata/"} {
		if strings.HasPrefix(p, dir) || strings.Contains(p, "/"+dir) {
			return true
		}
	}
	return false
}

// suppressionComment matches a suppression marker that opens a comment.
// The marker must directly follow the comment token and end on a word
// boundary, so identifiers like isNosecHeader and words like nosecurity
// are not markers.
var suppressionComment = regexp.MustCompile(
	`(?i)(?://|#|/\*|--|<!--)\s*(?:codeguardian[:-]ignore|nosec|nosonar|security-ignore)\b`)

// commentOnly matches a line whose first non-blank text is a comment token.
var commentOnly = regexp.MustCompile(`^\s*(?://|#|/\*|\*|--|<!--)`)

// hasSuppressionMarker reports whether text carries a suppression comment.
func hasSuppressionMarker(text string) bool {
	return suppressionComment.MatchString(text)
}

// suppressesNextLine reports whether text is a comment-only line carrying a
// suppression marker, which covers the line after it.
func suppressesNextLine(text string) bool {
	return commentOnly.MatchString(text) && hasSuppressionMarker(text)
}

// maskSecret keeps the first and last two characters of a secret and
// replaces the rest. Secrets of eight characters or fewer become "****".
func maskSecret(secret string) string {
	r := []rune(secret)
	if len(r) <= 8 {
		return "****"
	}
	return string(r[:2]) + strings.Repeat("*", len(r)-4) + string(r[len(r)-2:])
}
