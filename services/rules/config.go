// Copyright (C) 2025 Clearline AI (engineering@clearline.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package rules is the routing and business-rule engine for validated
// claim decisions.
//
// Four pure sub-policies run over an already-guardrail-passed decision:
// tiered amount routing, dynamic confidence thresholds, policy-type rules,
// and fraud-risk scoring. The engine evaluates all four and merges their
// effects, most restrictive winning, before the decision is finalized.
// Nothing in this package performs I/O; claim history and extraction data
// arrive as plain values gathered by the orchestrator.
package rules

import (
	"time"

	"github.com/ClearlineAI/ClearlineClaims/services/claims/datatypes"
)

// Config carries every tunable constant of the rule engine. Zero values
// are not usable; construct with DefaultConfig and override fields as
// needed.
type Config struct {
	// Tier boundaries. A claim amount strictly below a boundary falls in
	// that tier; at or above VeryHighMax it is critical-tier.
	LowMax      float64
	ModerateMax float64
	HighMax     float64
	VeryHighMax float64

	// Base confidence thresholds per decision status.
	CoveredThreshold      float64
	NotCoveredThreshold   float64
	ManualReviewThreshold float64
	DefaultThreshold      float64

	// Threshold adjustments.
	LargeClaimAmount     float64 // claims above this raise the bar
	LargeClaimAdjust     float64
	WellCitedAdjust      float64 // >=3 citations plus supporting evidence
	NoEvidenceAdjust     float64
	NoCitationAdjust     float64
	ThresholdFloor       float64
	ThresholdCeiling     float64
	WellCitedClauseCount int

	// AutoDenyConfidence is the minimum confidence for an automatic
	// denial.
	AutoDenyConfidence float64

	// Fraud scoring.
	FraudHistoryWindow  time.Duration
	FraudFrequencyLimit int
}

// DefaultConfig returns the production rule constants.
func DefaultConfig() Config {
	return Config{
		LowMax:      500,
		ModerateMax: 2000,
		HighMax:     10000,
		VeryHighMax: 50000,

		CoveredThreshold:      0.85,
		NotCoveredThreshold:   0.90,
		ManualReviewThreshold: 0.50,
		DefaultThreshold:      0.85,

		LargeClaimAmount:     10000,
		LargeClaimAdjust:     0.05,
		WellCitedAdjust:      -0.03,
		NoEvidenceAdjust:     0.07,
		NoCitationAdjust:     0.10,
		ThresholdFloor:       0.75,
		ThresholdCeiling:     0.98,
		WellCitedClauseCount: 3,

		AutoDenyConfidence: 0.92,

		FraudHistoryWindow:  90 * 24 * time.Hour,
		FraudFrequencyLimit: 3,
	}
}

// clamp bounds v to [lo, hi].
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// modeRank orders processing modes by restrictiveness so merged rulings
// can take the most restrictive.
func modeRank(m datatypes.ProcessingMode) int {
	switch m {
	case datatypes.ModeAutoApprove:
		return 0
	case datatypes.ModeAutoDeny:
		return 1
	case datatypes.ModeManualReview:
		return 2
	case datatypes.ModeExecutiveReview:
		return 3
	default:
		return 2
	}
}
