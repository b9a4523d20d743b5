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

import "math"

// RiskAlgorithmVersion identifies the scoring weights and thresholds.
const RiskAlgorithmVersion = "1.0.0"

// MaxRiskScore is the upper bound of a risk score.
const MaxRiskScore = 10.0

// Severity weights. Each finding adds the weight of its severity.
const (
	WeightCritical = 4.0
	WeightHigh     = 2.5
	WeightMedium   = 1.0
	WeightLow      = 0.4
)

// Risk level thresholds on the score. A score equal to a threshold maps to
// the higher level.
const (
	ThresholdMedium   = 3.0
	ThresholdHigh     = 5.0
	ThresholdCritical = 8.0
)

// SeverityWeight returns the score contribution of one finding with the
// given severity. Unknown severities contribute 0.
func SeverityWeight(s Severity) float64 {
	switch s {
	case SeverityCritical:
		return WeightCritical
	case SeverityHigh:
		return WeightHigh
	case SeverityMedium:
		return WeightMedium
	case SeverityLow:
		return WeightLow
	default:
		return 0
	}
}

// RiskScore converts findings into a score in [0, MaxRiskScore].
//
// Description:
//
//	Sums the severity weights of unsuppressed findings, clamps to
//	MaxRiskScore and rounds to two decimals. Every weight is non-negative
//	and clamping and rounding are monotone, so adding a finding never
//	lowers the score. No findings yields exactly 0.
//
// Inputs:
//
//	findings - The findings of one scan.
//
// Outputs:
//
//	float64 - The risk score.
func RiskScore(findings []Finding) float64 {
	var sum float64
	for _, f := range findings {
		if f.Suppressed {
			continue
		}
		sum += SeverityWeight(f.Severity)
	}
	if sum > MaxRiskScore {
		sum = MaxRiskScore
	}
	return math.Round(sum*100) / 100
}

// LevelForScore maps a risk score to a qualitative level:
// below 3 is low, [3,5) medium, [5,8) high, 8 and above critical.
func LevelForScore(score float64) RiskLevel {
	switch {
	case score >= ThresholdCritical:
		return RiskCritical
	case score >= ThresholdHigh:
		return RiskHigh
	case score >= ThresholdMedium:
		return RiskMedium
	default:
		return RiskLow
	}
}
