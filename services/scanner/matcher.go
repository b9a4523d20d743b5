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
	"slices"
	"sort"
	"strings"
	"unicode/utf8"
)

// lineIndex maps byte offsets in a document to 1-based line numbers.
type lineIndex struct {
	content string
	starts  []int
}

func newLineIndex(content string) *lineIndex {
	starts := make([]int, 1, strings.Count(content, "\n")+1)
	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &lineIndex{content: content, starts: starts}
}

// lines returns the number of lines in the document.
func (li *lineIndex) lines() int {
	return len(li.starts)
}

// lineOf returns the 1-based line containing offset. This equals one plus
// the number of newlines before offset.
func (li *lineIndex) lineOf(offset int) int {
	return sort.Search(len(li.starts), func(i int) bool {
		return li.starts[i] > offset
	})
}

// lineStart returns the byte offset at which a 1-based line begins.
func (li *lineIndex) lineStart(line int) int {
	return li.starts[line-1]
}

// lineText returns a 1-based line without its terminator.
func (li *lineIndex) lineText(line int) string {
	start := li.starts[line-1]
	end := len(li.content)
	if line < len(li.starts) {
		end = li.starts[line] - 1
	}
	return strings.TrimSuffix(li.content[start:end], "\r")
}

// context returns lines [line-radius, line+radius], clamped to the document.
func (li *lineIndex) context(line, radius int) string {
	first := max(line-radius, 1)
	last := min(line+radius, li.lines())
	parts := make([]string, 0, last-first+1)
	for l := first; l <= last; l++ {
		parts = append(parts, li.lineText(l))
	}
	return strings.Join(parts, "\n")
}

// matchOptions controls per-scan matcher behavior.
type matchOptions struct {
	language       string
	contextLines   int
	maxMatchLength int
	maskSecrets    bool
}

// matchAll runs every applicable pattern in reg over content.
//
// Description:
//
//	For each pattern in registration order, all non-overlapping matches are
//	collected. Zero-length matches are ignored. A candidate is dropped when
//	the pattern's Exclude expression matches its first capture group, or
//	the whole match when the pattern has none. Surrounding text such as a
//	trailing comment never excludes a match.
//	Findings are then stable-sorted by line, so ties keep registration
//	order and, within one pattern, offset order. Identical patterns on the
//	same span are not de-duplicated.
//
// Inputs:
//
//	ctx - Checked between patterns; on cancellation the findings gathered
//	      so far are returned with ctx.Err().
//	reg - The pattern registry.
//	content - Source text. Empty or whitespace-only text yields no findings.
//	opts - Matcher options.
//
// Outputs:
//
//	[]Finding - Ordered findings, never nil.
//	error - Only ctx.Err().
func matchAll(ctx context.Context, reg *Registry, content string, opts matchOptions) ([]Finding, error) {
	findings := make([]Finding, 0)
	if strings.TrimSpace(content) == "" {
		return findings, nil
	}

	idx := newLineIndex(content)
	for i := range reg.patterns {
		if err := ctx.Err(); err != nil {
			return findings, err
		}
		p := &reg.patterns[i]
		if !p.appliesTo(opts.language) {
			continue
		}
		for _, loc := range p.re.FindAllStringSubmatchIndex(content, -1) {
			if loc[1] == loc[0] {
				continue
			}
			if p.exclude != nil && p.exclude.MatchString(excludeSubject(content, loc)) {
				continue
			}
			line := idx.lineOf(loc[0])
			findings = append(findings, newFinding(p, idx, loc, line, opts))
		}
	}

	slices.SortStableFunc(findings, func(a, b Finding) int {
		return a.Line - b.Line
	})
	return findings, nil
}

// excludeSubject returns the text an Exclude expression is tested against:
// the first capture group when it participated, else the whole match.
func excludeSubject(content string, loc []int) string {
	if len(loc) >= 4 && loc[2] >= 0 && loc[3] > loc[2] {
		return content[loc[2]:loc[3]]
	}
	return content[loc[0]:loc[1]]
}

// newFinding builds a Finding for one match location.
func newFinding(p *compiledPattern, idx *lineIndex, loc []int, line int, opts matchOptions) Finding {
	content := idx.content
	matched := content[loc[0]:loc[1]]
	column := utf8.RuneCountInString(content[idx.lineStart(line):loc[0]]) + 1
	ctxText := idx.context(line, opts.contextLines)

	suppressed := hasSuppressionMarker(idx.lineText(line))
	if !suppressed && line > 1 {
		suppressed = suppressesNextLine(idx.lineText(line - 1))
	}

	if opts.maskSecrets && p.Category == CategorySecretExposure {
		secret := matched
		if len(loc) >= 4 && loc[2] >= 0 && loc[3] > loc[2] {
			secret = content[loc[2]:loc[3]]
		}
		masked := maskSecret(secret)
		matched = strings.ReplaceAll(matched, secret, masked)
		ctxText = strings.ReplaceAll(ctxText, secret, masked)
	}

	return Finding{
		PatternID:   p.ID,
		Category:    p.Category,
		Severity:    p.Severity,
		CWE:         p.CWE,
		Description: p.Description,
		Line:        line,
		Column:      column,
		MatchedText: truncateRunes(matched, opts.maxMatchLength),
		Context:     ctxText,
		Remediation: slices.Clone(p.Remediation),
		Suppressed:  suppressed,
	}
}

// truncateRunes cuts s to at most n runes. Invalid bytes count as one rune
// each, so the cut never splits a valid multi-byte sequence. n <= 0 means
// no limit.
func truncateRunes(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
