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

import "log/slog"

// Summarize groups findings by severity and category.
//
// Description:
//
//	Suppressed findings are counted in Suppressed only. A finding with a
//	severity outside the four levels is counted in its category and in
//	TotalIssues but in no severity bucket; it is logged at debug level and
//	never causes a failure. Categories without a registry entry get their
//	own key in ByCategory.
//
// Inputs:
//
//	findings - The findings of one scan.
//	score - The risk score computed for the same findings.
//	logger - Destination for anomaly logs. Nil uses slog.Default().
//
// Outputs:
//
//	Summary - The aggregated counts and risk level.
func Summarize(findings []Finding, score float64, logger *slog.Logger) Summary {
	if logger == nil {
		logger = slog.Default()
	}
	s := Summary{
		RiskLevel:  LevelForScore(score),
		ByCategory: make(map[Category]int),
	}
	for _, f := range findings {
		if f.Suppressed {
			s.Suppressed++
			continue
		}
		s.TotalIssues++
		s.ByCategory[f.Category]++
		switch f.Severity {
		case SeverityCritical:
			s.Critical++
		case SeverityHigh:
			s.High++
		case SeverityMedium:
			s.Medium++
		case SeverityLow:
			s.Low++
		default:
			logger.Debug("finding with unknown severity",
				slog.String("pattern_id", f.PatternID),
				slog.String("severity", string(f.Severity)),
			)
		}
	}
	return s
}
