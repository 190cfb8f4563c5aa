// Copyright (C) 2025 Clearline AI (engineering@clearline.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package guardrails

import (
	"strings"
	"testing"

	"github.com/ClearlineAI/ClearlineClaims/services/claims/datatypes"
)

func TestDetectCoveredCitingExclusionIsCritical(t *testing.T) {
	evidence := datatypes.EvidenceSet{
		{ClauseId: "HLT-EXC-011", Text: "EXCLUSION: experimental treatments are not covered under this plan."},
	}
	decision := datatypes.ClaimDecision{
		Status:           datatypes.StatusCovered,
		ClauseReferences: []string{"HLT-EXC-011"},
		ConfidenceScore:  0.9,
	}
	request := datatypes.ClaimRequest{PolicyType: datatypes.PolicyHealth, ClaimAmount: 1200}

	found := DetectContradictions(request, decision, evidence, nil, 0.85)

	critical := 0
	for _, c := range found {
		if c.Severity == datatypes.SeverityCritical {
			critical++
		}
	}
	if critical != 1 {
		t.Fatalf("expected exactly one critical contradiction, got %d in %v", critical, found)
	}
	if !HasCritical(found) {
		t.Error("HasCritical must be true for a critical contradiction")
	}
}

func TestDetectDenialWithoutExclusionLanguage(t *testing.T) {
	evidence := datatypes.EvidenceSet{
		{ClauseId: "MTR-COV-002", Text: "Collision damage is covered when the driver is listed on the policy."},
	}
	decision := datatypes.ClaimDecision{
		Status:           datatypes.StatusDenied,
		ClauseReferences: []string{"MTR-COV-002"},
		ConfidenceScore:  0.95,
	}
	request := datatypes.ClaimRequest{PolicyType: datatypes.PolicyMotor, ClaimAmount: 3000}

	found := DetectContradictions(request, decision, evidence, nil, 0.90)
	if !containsSeverity(found, datatypes.SeverityHigh) {
		t.Fatalf("expected a high-severity status-vs-citation contradiction, got %v", found)
	}
}

func TestDetectExclusionConflict(t *testing.T) {
	evidence := datatypes.EvidenceSet{
		{ClauseId: "HOME-COV-014", Text: "Water damage from burst pipes is covered."},
		{ClauseId: "HOME-EXC-003", Text: "Gradual seepage is excluded from coverage."},
	}
	decision := datatypes.ClaimDecision{
		Status:           datatypes.StatusNotCovered,
		ClauseReferences: []string{"HOME-COV-014", "HOME-EXC-003"},
		ConfidenceScore:  0.92,
	}
	request := datatypes.ClaimRequest{PolicyType: datatypes.PolicyHome, ClaimAmount: 4500}

	found := DetectContradictions(request, decision, evidence, nil, 0.90)

	conflict := false
	for _, c := range found {
		if strings.Contains(c.Description, "both coverage and exclusion clauses") {
			conflict = true
			if c.Severity != datatypes.SeverityHigh {
				t.Errorf("exclusion conflict should be high severity, got %s", c.Severity)
			}
		}
	}
	if !conflict {
		t.Fatalf("expected an exclusion-conflict contradiction, got %v", found)
	}
}

func TestDetectLowConfidenceDecisiveStatus(t *testing.T) {
	evidence := datatypes.EvidenceSet{
		{ClauseId: "DNT-COV-001", Text: "Routine cleanings are covered twice per year."},
	}
	decision := datatypes.ClaimDecision{
		Status:           datatypes.StatusCovered,
		ClauseReferences: []string{"DNT-COV-001"},
		ConfidenceScore:  0.60,
	}
	request := datatypes.ClaimRequest{PolicyType: datatypes.PolicyDental, ClaimAmount: 150}

	found := DetectContradictions(request, decision, evidence, nil, 0.85)
	if !containsSeverity(found, datatypes.SeverityHigh) {
		t.Fatalf("expected a high contradiction for confidence below threshold, got %v", found)
	}
}

func TestDetectHighConfidenceManualReviewIsInformational(t *testing.T) {
	decision := datatypes.ClaimDecision{
		Status:          datatypes.StatusManualReview,
		ConfidenceScore: 0.97,
	}
	request := datatypes.ClaimRequest{PolicyType: datatypes.PolicyLife, ClaimAmount: 20000}

	found := DetectContradictions(request, decision, nil, nil, 0.50)
	if len(found) != 1 || found[0].Severity != datatypes.SeverityMedium {
		t.Fatalf("expected one medium informational contradiction, got %v", found)
	}
	if HasCritical(found) {
		t.Error("a medium contradiction must not trip the critical gate")
	}
}

func TestDetectAmountExceedsClauseLimit(t *testing.T) {
	evidence := datatypes.EvidenceSet{
		{ClauseId: "HOME-COV-020", Text: "Structural repairs are covered to a stated maximum of $50,000 per incident."},
	}
	decision := datatypes.ClaimDecision{
		Status:           datatypes.StatusCovered,
		ClauseReferences: []string{"HOME-COV-020"},
		ConfidenceScore:  0.95,
	}
	request := datatypes.ClaimRequest{PolicyType: datatypes.PolicyHome, ClaimAmount: 75000}

	found := DetectContradictions(request, decision, evidence, nil, 0.90)

	var limitHit *datatypes.Contradiction
	for i := range found {
		if strings.Contains(found[i].Description, "limit") {
			limitHit = &found[i]
		}
	}
	if limitHit == nil {
		t.Fatalf("expected an amount-vs-limit contradiction, got %v", found)
	}
	if limitHit.Severity != datatypes.SeverityHigh {
		t.Errorf("limit breach should be high severity, got %s", limitHit.Severity)
	}
	if !strings.Contains(limitHit.Description, "$25000.00") {
		t.Errorf("expected the $25,000 excess in the description, got %q", limitHit.Description)
	}
}

func TestDetectDocumentDiscrepancy(t *testing.T) {
	evidence := datatypes.EvidenceSet{
		{ClauseId: "MTR-COV-002", Text: "Collision damage is covered."},
	}
	decision := datatypes.ClaimDecision{
		Status:           datatypes.StatusCovered,
		ClauseReferences: []string{"MTR-COV-002"},
		ConfidenceScore:  0.95,
	}
	request := datatypes.ClaimRequest{PolicyType: datatypes.PolicyMotor, ClaimAmount: 10000}
	docs := []datatypes.SupportingDocument{
		{DocumentId: "doc-1", Text: "Repair estimate total: $6,500.00 for bodywork and paint."},
	}

	found := DetectContradictions(request, decision, evidence, docs, 0.85)

	hit := false
	for _, c := range found {
		if strings.Contains(c.Description, "doc-1") {
			hit = true
			if c.Severity != datatypes.SeverityHigh {
				t.Errorf("document discrepancy should be high severity, got %s", c.Severity)
			}
		}
	}
	if !hit {
		t.Fatalf("expected a document-consistency contradiction, got %v", found)
	}
}

func TestDetectDocumentWithinTolerance(t *testing.T) {
	decision := datatypes.ClaimDecision{
		Status:          datatypes.StatusCovered,
		ConfidenceScore: 0.95,
		ClauseReferences: []string{
			"MTR-COV-002",
		},
	}
	evidence := datatypes.EvidenceSet{{ClauseId: "MTR-COV-002", Text: "Collision damage is covered."}}
	request := datatypes.ClaimRequest{PolicyType: datatypes.PolicyMotor, ClaimAmount: 10000}
	docs := []datatypes.SupportingDocument{
		{DocumentId: "doc-1", Text: "Estimate: $9,800 including parts and labor."},
	}

	found := DetectContradictions(request, decision, evidence, docs, 0.85)
	for _, c := range found {
		if strings.Contains(c.Description, "doc-1") {
			t.Fatalf("2%% discrepancy must be tolerated, got %v", c)
		}
	}
}

func TestDetectCleanDecision(t *testing.T) {
	evidence := datatypes.EvidenceSet{
		{ClauseId: "HOME-COV-014", Text: "Water damage from burst pipes is covered up to $100,000."},
	}
	decision := datatypes.ClaimDecision{
		Status:           datatypes.StatusCovered,
		ClauseReferences: []string{"HOME-COV-014"},
		ConfidenceScore:  0.93,
	}
	request := datatypes.ClaimRequest{PolicyType: datatypes.PolicyHome, ClaimAmount: 8000}

	found := DetectContradictions(request, decision, evidence, nil, 0.85)
	if len(found) != 0 {
		t.Fatalf("expected no contradictions for a consistent decision, got %v", found)
	}
}

func TestSummarize(t *testing.T) {
	if s := Summarize(nil); s != "" {
		t.Errorf("empty input should summarize to empty string, got %q", s)
	}

	contradictions := []datatypes.Contradiction{
		{Description: "status conflicts with citations", Severity: datatypes.SeverityCritical},
		{Description: "confidence below threshold", Severity: datatypes.SeverityHigh},
	}
	s := Summarize(contradictions)
	if !strings.Contains(s, "Contradictions detected (2)") {
		t.Errorf("summary should report the count, got %q", s)
	}
	if !strings.Contains(s, "critical") || !strings.Contains(s, "high") {
		t.Errorf("summary should include severities, got %q", s)
	}
}

func containsSeverity(contradictions []datatypes.Contradiction, severity datatypes.Severity) bool {
	for _, c := range contradictions {
		if c.Severity == severity {
			return true
		}
	}
	return false
}
