// Copyright (C) 2025 Clearline AI (engineering@clearline.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package rules

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/ClearlineAI/ClearlineClaims/services/claims/datatypes"
)

var fixedNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func coverageEvidence() datatypes.EvidenceSet {
	return datatypes.EvidenceSet{
		{ClauseId: "MTR-COV-001", Text: "Windshield replacement is covered."},
		{ClauseId: "MTR-EXC-004", Text: "EXCLUSION: racing damage is not covered."},
	}
}

func TestEvaluateAutoApprovesSmallConfidentClaim(t *testing.T) {
	engine := NewEngine(DefaultConfig())

	out := engine.Evaluate(Input{
		Request: datatypes.ClaimRequest{
			PolicyType:  datatypes.PolicyMotor,
			ClaimAmount: 400,
			Description: "Windshield cracked by road debris on the highway, replaced same day.",
		},
		Decision: datatypes.ClaimDecision{
			Status:           datatypes.StatusCovered,
			ClauseReferences: []string{"MTR-COV-001"},
			ConfidenceScore:  0.93,
		},
		Evidence:          coverageEvidence(),
		HasSupportingDocs: true,
		Now:               fixedNow,
	})

	if out.Routing == nil {
		t.Fatal("expected a routing decision")
	}
	if out.Routing.Tier != TierLow {
		t.Errorf("expected low tier, got %s", out.Routing.Tier)
	}
	if out.Routing.Mode != datatypes.ModeAutoApprove {
		t.Errorf("expected auto-approve, got %s", out.Routing.Mode)
	}
	if out.Routing.RequiredApprovals != 0 {
		t.Errorf("auto-approve requires zero approvals, got %d", out.Routing.RequiredApprovals)
	}
	if out.Status != datatypes.StatusCovered {
		t.Errorf("status should stay covered, got %s", out.Status)
	}
}

func TestEvaluateClampsConfidence(t *testing.T) {
	engine := NewEngine(DefaultConfig())

	out := engine.Evaluate(Input{
		Request: datatypes.ClaimRequest{
			PolicyType:  datatypes.PolicyMotor,
			ClaimAmount: 400,
			Description: "Windshield cracked by road debris on the highway, replaced same day.",
		},
		Decision: datatypes.ClaimDecision{
			Status:           datatypes.StatusCovered,
			ClauseReferences: []string{"MTR-COV-001"},
			ConfidenceScore:  1.7,
		},
		Evidence:          coverageEvidence(),
		HasSupportingDocs: true,
		Now:               fixedNow,
	})

	if out.ConfidenceScore != 1.0 {
		t.Errorf("confidence above 1 must be clamped, got %f", out.ConfidenceScore)
	}

	out = engine.Evaluate(Input{
		Request: datatypes.ClaimRequest{
			PolicyType:  datatypes.PolicyMotor,
			ClaimAmount: 400,
			Description: "Windshield cracked by road debris on the highway, replaced same day.",
		},
		Decision: datatypes.ClaimDecision{
			Status:           datatypes.StatusManualReview,
			ClauseReferences: []string{"MTR-COV-001"},
			ConfidenceScore:  -0.2,
		},
		Evidence:          coverageEvidence(),
		HasSupportingDocs: true,
		Now:               fixedNow,
	})

	if out.ConfidenceScore != 0.0 {
		t.Errorf("confidence below 0 must be clamped, got %f", out.ConfidenceScore)
	}
}

func TestEvaluateAutoDenyNeedsExclusionCitation(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	request := datatypes.ClaimRequest{
		PolicyType:  datatypes.PolicyMotor,
		ClaimAmount: 1200,
		Description: "Damage sustained during an amateur track day event at the speedway.",
	}

	withExclusion := engine.Evaluate(Input{
		Request: request,
		Decision: datatypes.ClaimDecision{
			Status:           datatypes.StatusNotCovered,
			ClauseReferences: []string{"MTR-EXC-004"},
			ConfidenceScore:  0.95,
		},
		Evidence:          coverageEvidence(),
		HasSupportingDocs: true,
		Now:               fixedNow,
	})
	if withExclusion.Routing.Mode != datatypes.ModeAutoDeny {
		t.Errorf("expected auto-deny with a cited exclusion, got %s", withExclusion.Routing.Mode)
	}

	withoutExclusion := engine.Evaluate(Input{
		Request: request,
		Decision: datatypes.ClaimDecision{
			Status:           datatypes.StatusNotCovered,
			ClauseReferences: []string{"MTR-COV-001"},
			ConfidenceScore:  0.95,
		},
		Evidence:          coverageEvidence(),
		HasSupportingDocs: true,
		Now:               fixedNow,
	})
	if withoutExclusion.Routing.Mode == datatypes.ModeAutoDeny {
		t.Error("auto-deny must not be reachable without a cited exclusion clause")
	}
}

func TestEvaluateEscalatesLowConfidence(t *testing.T) {
	engine := NewEngine(DefaultConfig())

	out := engine.Evaluate(Input{
		Request: datatypes.ClaimRequest{
			PolicyType:  datatypes.PolicyHome,
			ClaimAmount: 3000,
			Description: "Basement flooding after a burst supply line under the kitchen sink.",
		},
		Decision: datatypes.ClaimDecision{
			Status:           datatypes.StatusCovered,
			ClauseReferences: []string{"MTR-COV-001"},
			ConfidenceScore:  0.70,
		},
		Evidence:          coverageEvidence(),
		HasSupportingDocs: true,
		Now:               fixedNow,
	})

	if out.Status != datatypes.StatusManualReview {
		t.Fatalf("low confidence must escalate to manual review, got %s", out.Status)
	}
	if out.Routing.Mode != datatypes.ModeManualReview {
		t.Errorf("routing mode should be manual review, got %s", out.Routing.Mode)
	}
	if len(out.ValidationWarnings) == 0 {
		t.Error("escalation must record a warning")
	}
}

func TestEvaluateNeverUpgradesManualReview(t *testing.T) {
	engine := NewEngine(DefaultConfig())

	out := engine.Evaluate(Input{
		Request: datatypes.ClaimRequest{
			PolicyType:  datatypes.PolicyMotor,
			ClaimAmount: 200,
			Description: "Minor parking lot scrape repaired at the dealership body shop.",
		},
		Decision: datatypes.ClaimDecision{
			Status:           datatypes.StatusManualReview,
			ClauseReferences: []string{"MTR-COV-001"},
			ConfidenceScore:  0.99,
		},
		Evidence:          coverageEvidence(),
		HasSupportingDocs: true,
		Now:               fixedNow,
	})

	if out.Status != datatypes.StatusManualReview {
		t.Fatalf("manual review must not be upgraded, got %s", out.Status)
	}
	if out.Routing.Mode == datatypes.ModeAutoApprove {
		t.Error("auto-approve is unreachable for a manual-review status")
	}
}

func TestTierBuckets(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	cases := []struct {
		amount float64
		tier   string
	}{
		{0, TierLow},
		{499.99, TierLow},
		{500, TierModerate},
		{1999, TierModerate},
		{2000, TierHigh},
		{9999, TierHigh},
		{10000, TierVeryHigh},
		{49999, TierVeryHigh},
		{50000, TierCritical},
		{250000, TierCritical},
	}
	for _, tc := range cases {
		if got := engine.tierFor(tc.amount); got != tc.tier {
			t.Errorf("amount %.2f: expected tier %s, got %s", tc.amount, tc.tier, got)
		}
	}
}

func TestCriticalTierRoutesToExecutive(t *testing.T) {
	engine := NewEngine(DefaultConfig())

	out := engine.Evaluate(Input{
		Request: datatypes.ClaimRequest{
			PolicyType:  datatypes.PolicyHome,
			ClaimAmount: 120000,
			Description: "Total structural loss following the neighborhood gas main failure.",
		},
		Decision: datatypes.ClaimDecision{
			Status:           datatypes.StatusCovered,
			ClauseReferences: []string{"MTR-COV-001"},
			ConfidenceScore:  0.97,
		},
		Evidence:          coverageEvidence(),
		HasSupportingDocs: true,
		Now:               fixedNow,
	})

	if out.Routing.Tier != TierCritical {
		t.Fatalf("expected critical tier, got %s", out.Routing.Tier)
	}
	if out.Routing.Mode != datatypes.ModeExecutiveReview {
		t.Errorf("critical tier routes to executive review, got %s", out.Routing.Mode)
	}
	if out.Routing.RequiredApprovals != 3 {
		t.Errorf("critical tier requires 3 approvals, got %d", out.Routing.RequiredApprovals)
	}
}

func TestDecisionThresholdAdjustments(t *testing.T) {
	engine := NewEngine(DefaultConfig())

	cases := []struct {
		name     string
		request  datatypes.ClaimRequest
		decision datatypes.ClaimDecision
		hasDocs  bool
		want     float64
	}{
		{
			name:     "covered base with evidence",
			request:  datatypes.ClaimRequest{ClaimAmount: 1000},
			decision: datatypes.ClaimDecision{Status: datatypes.StatusCovered, ClauseReferences: []string{"a"}},
			hasDocs:  true,
			want:     0.85,
		},
		{
			name:     "large claim raises the bar",
			request:  datatypes.ClaimRequest{ClaimAmount: 15000},
			decision: datatypes.ClaimDecision{Status: datatypes.StatusCovered, ClauseReferences: []string{"a"}},
			hasDocs:  true,
			want:     0.90,
		},
		{
			name:     "well cited lowers it",
			request:  datatypes.ClaimRequest{ClaimAmount: 1000},
			decision: datatypes.ClaimDecision{Status: datatypes.StatusCovered, ClauseReferences: []string{"a", "b", "c"}},
			hasDocs:  true,
			want:     0.82,
		},
		{
			name:     "no evidence raises it",
			request:  datatypes.ClaimRequest{ClaimAmount: 1000},
			decision: datatypes.ClaimDecision{Status: datatypes.StatusCovered, ClauseReferences: []string{"a"}},
			hasDocs:  false,
			want:     0.92,
		},
		{
			name:     "ceiling clamps stacked penalties",
			request:  datatypes.ClaimRequest{ClaimAmount: 15000},
			decision: datatypes.ClaimDecision{Status: datatypes.StatusNotCovered},
			hasDocs:  false,
			want:     0.98,
		},
		{
			name:     "floor clamps manual review",
			request:  datatypes.ClaimRequest{ClaimAmount: 100},
			decision: datatypes.ClaimDecision{Status: datatypes.StatusManualReview, ClauseReferences: []string{"a"}},
			hasDocs:  true,
			want:     0.75,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, rationale := engine.DecisionThreshold(tc.request, tc.decision, tc.hasDocs)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("expected threshold %.2f, got %.2f (%s)", tc.want, got, rationale)
			}
			if !strings.Contains(rationale, "threshold") {
				t.Errorf("rationale should describe the threshold, got %q", rationale)
			}
		})
	}
}

func TestPolicyTypeRedFlagForcesReview(t *testing.T) {
	engine := NewEngine(DefaultConfig())

	out := engine.Evaluate(Input{
		Request: datatypes.ClaimRequest{
			PolicyType:  datatypes.PolicyHealth,
			ClaimAmount: 1200,
			Description: "Seeking reimbursement for an experimental gene therapy treatment abroad.",
		},
		Decision: datatypes.ClaimDecision{
			Status:           datatypes.StatusCovered,
			ClauseReferences: []string{"MTR-COV-001"},
			ConfidenceScore:  0.95,
		},
		Evidence:          coverageEvidence(),
		HasSupportingDocs: true,
		Now:               fixedNow,
	})

	if out.Status != datatypes.StatusManualReview {
		t.Fatalf("red-flag keyword must force manual review, got %s", out.Status)
	}
	if !contains(out.Routing.AdditionalChecks, "medical_review") {
		t.Errorf("expected a medical_review check, got %v", out.Routing.AdditionalChecks)
	}
	if !contains(out.RequiredDocuments, "itemized medical bill") {
		t.Errorf("expected health required documents, got %v", out.RequiredDocuments)
	}
}

func TestPolicyTypeWithoutEntryAddsNothing(t *testing.T) {
	effect := applyPolicyTypeRules(datatypes.ClaimRequest{
		PolicyType:  datatypes.PolicyMotor,
		Description: "experimental cosmetic pre-existing",
	})
	if len(effect.requiredDocuments) != 0 || effect.forceReview {
		t.Errorf("motor policies have no type rules, got %+v", effect)
	}
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
