// Copyright (C) 2025 Clearline AI (engineering@clearline.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package rules

import (
	"testing"
	"time"

	"github.com/ClearlineAI/ClearlineClaims/services/claims/datatypes"
)

func TestAssessFraudRiskCleanClaim(t *testing.T) {
	engine := NewEngine(DefaultConfig())

	assessment := engine.AssessFraudRisk(datatypes.ClaimRequest{
		PolicyNumber: "POL-100200",
		ClaimAmount:  1743.50,
		Description:  "Rear bumper damage from a low-speed collision in a parking garage, photos attached.",
	}, nil, nil, fixedNow)

	if assessment.Score != 0 {
		t.Errorf("expected zero score for a clean claim, got %.2f (%v)", assessment.Score, assessment.Factors)
	}
	if assessment.Level != datatypes.RiskMinimal {
		t.Errorf("expected minimal risk, got %s", assessment.Level)
	}
	if assessment.Level.ForcesReview() {
		t.Error("minimal risk must not force review")
	}
}

func TestAssessFraudRiskFrequency(t *testing.T) {
	engine := NewEngine(DefaultConfig())

	history := []datatypes.HistoricalClaim{
		{PolicyNumber: "POL-1", Amount: 800, SubmittedAt: fixedNow.Add(-10 * 24 * time.Hour)},
		{PolicyNumber: "POL-1", Amount: 650, SubmittedAt: fixedNow.Add(-30 * 24 * time.Hour)},
		{PolicyNumber: "POL-1", Amount: 900, SubmittedAt: fixedNow.Add(-60 * 24 * time.Hour)},
		// Outside the 90-day window, must not count.
		{PolicyNumber: "POL-1", Amount: 700, SubmittedAt: fixedNow.Add(-120 * 24 * time.Hour)},
	}

	assessment := engine.AssessFraudRisk(datatypes.ClaimRequest{
		PolicyNumber: "POL-1",
		ClaimAmount:  750.25,
		Description:  "Another windshield chip from gravel on the same commute route as before.",
	}, history, nil, fixedNow)

	if !hasFactor(assessment, "claim_frequency") {
		t.Fatalf("expected a claim_frequency factor, got %v", assessment.Factors)
	}
}

func TestAssessFraudRiskStacksToHigh(t *testing.T) {
	engine := NewEngine(DefaultConfig())

	history := []datatypes.HistoricalClaim{
		{Amount: 1000, SubmittedAt: fixedNow.Add(-80 * 24 * time.Hour)},
		{Amount: 3000, SubmittedAt: fixedNow.Add(-50 * 24 * time.Hour)},
		{Amount: 5000, SubmittedAt: fixedNow.Add(-20 * 24 * time.Hour)},
	}

	// Frequency (0.25) + round amount (0.10) + escalating (0.15) +
	// suspicious phrase (0.20) = 0.70, high risk.
	assessment := engine.AssessFraudRisk(datatypes.ClaimRequest{
		PolicyNumber: "POL-2",
		ClaimAmount:  9000,
		Description:  "Everything was destroyed and I lost all documentation, cash only repairs were done.",
	}, history, nil, fixedNow)

	if assessment.Level != datatypes.RiskHigh {
		t.Fatalf("expected high risk, got %s (score %.2f, factors %v)",
			assessment.Level, assessment.Score, assessment.Factors)
	}
	if !assessment.Level.ForcesReview() {
		t.Error("high risk must force review")
	}
}

func TestAssessFraudRiskJustUnderBoundary(t *testing.T) {
	engine := NewEngine(DefaultConfig())

	assessment := engine.AssessFraudRisk(datatypes.ClaimRequest{
		ClaimAmount: 9800,
		Description: "Full kitchen water damage restoration after the dishwasher line failed overnight.",
	}, nil, nil, fixedNow)

	if !hasFactor(assessment, "just_under_threshold") {
		t.Fatalf("9800 sits just under the 10000 boundary, got %v", assessment.Factors)
	}
}

func TestAssessFraudRiskExtractionMismatch(t *testing.T) {
	engine := NewEngine(DefaultConfig())

	assessment := engine.AssessFraudRisk(datatypes.ClaimRequest{
		PolicyNumber: "POL-3",
		ClaimAmount:  5200,
		Description:  "Invoice attached for the roof repair completed by a licensed contractor last week.",
	}, nil, &datatypes.ExtractionData{
		PolicyNumber: "POL-9",
		Amount:       3100,
	}, fixedNow)

	if !hasFactor(assessment, "policy_number_mismatch") {
		t.Errorf("expected a policy_number_mismatch factor, got %v", assessment.Factors)
	}
	if !hasFactor(assessment, "amount_mismatch") {
		t.Errorf("expected an amount_mismatch factor, got %v", assessment.Factors)
	}
}

func TestAssessFraudRiskVagueDescription(t *testing.T) {
	engine := NewEngine(DefaultConfig())

	assessment := engine.AssessFraudRisk(datatypes.ClaimRequest{
		ClaimAmount: 640.10,
		Description: "car broke",
	}, nil, nil, fixedNow)

	if !hasFactor(assessment, "vague_description") {
		t.Fatalf("expected a vague_description factor, got %v", assessment.Factors)
	}
}

func TestRiskLevelBands(t *testing.T) {
	cases := []struct {
		score float64
		level datatypes.RiskLevel
	}{
		{0.0, datatypes.RiskMinimal},
		{0.19, datatypes.RiskMinimal},
		{0.20, datatypes.RiskLow},
		{0.45, datatypes.RiskModerate},
		{0.70, datatypes.RiskHigh},
		{0.80, datatypes.RiskCritical},
		{1.0, datatypes.RiskCritical},
	}
	for _, tc := range cases {
		if got := riskLevelFor(tc.score); got != tc.level {
			t.Errorf("score %.2f: expected %s, got %s", tc.score, tc.level, got)
		}
	}
}

func hasFactor(a datatypes.FraudRiskAssessment, name string) bool {
	for _, f := range a.Factors {
		if f.Name == name {
			return true
		}
	}
	return false
}
