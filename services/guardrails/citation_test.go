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

func sampleEvidence() datatypes.EvidenceSet {
	return datatypes.EvidenceSet{
		{ClauseId: "HOME-COV-014", Text: "Water damage from burst pipes is covered up to the policy limit.", Section: "Coverage", CoverageType: "water_damage", Relevance: 0.92},
		{ClauseId: "HOME-EXC-003", Text: "EXCLUSION: damage caused by gradual seepage is not covered.", Section: "Exclusions", CoverageType: "water_damage", Relevance: 0.81},
	}
}

func TestValidateCitationsAccepts(t *testing.T) {
	decision := datatypes.ClaimDecision{
		Status:           datatypes.StatusCovered,
		Explanation:      "Clause HOME-COV-014 covers water damage from burst pipes.",
		ClauseReferences: []string{"HOME-COV-014"},
		ConfidenceScore:  0.9,
	}

	result := ValidateCitations(decision, sampleEvidence())
	if !result.Valid {
		t.Fatalf("expected valid result, got errors: %v", result.Errors)
	}
	if len(result.Warnings) != 0 {
		t.Errorf("expected no warnings, got: %v", result.Warnings)
	}
}

func TestValidateCitationsMissingCitations(t *testing.T) {
	decision := datatypes.ClaimDecision{
		Status:          datatypes.StatusCovered,
		Explanation:     "The claim is covered.",
		ConfidenceScore: 0.95,
	}

	result := ValidateCitations(decision, sampleEvidence())
	if result.Valid {
		t.Fatal("expected invalid result for a covered decision with no citations")
	}
	if len(result.Errors) == 0 || !strings.Contains(result.Errors[0], "missing required citations") {
		t.Errorf("expected a missing-citations error, got: %v", result.Errors)
	}
}

func TestValidateCitationsDanglingReference(t *testing.T) {
	decision := datatypes.ClaimDecision{
		Status:           datatypes.StatusCovered,
		Explanation:      "Covered per HOME-COV-014 and HOME-COV-999.",
		ClauseReferences: []string{"HOME-COV-014", "HOME-COV-999"},
	}

	result := ValidateCitations(decision, sampleEvidence())
	if result.Valid {
		t.Fatal("expected invalid result when a cited clause is absent from evidence")
	}

	foundFabrication := false
	for _, e := range result.Errors {
		if strings.Contains(e, "HOME-COV-999") && strings.Contains(e, "fabrication") {
			foundFabrication = true
		}
	}
	if !foundFabrication {
		t.Errorf("expected a fabrication error naming HOME-COV-999, got: %v", result.Errors)
	}
}

func TestValidateCitationsCoveredNeedsCoverageClause(t *testing.T) {
	decision := datatypes.ClaimDecision{
		Status:           datatypes.StatusCovered,
		Explanation:      "Covered per HOME-EXC-003.",
		ClauseReferences: []string{"HOME-EXC-003"},
	}

	result := ValidateCitations(decision, sampleEvidence())
	if result.Valid {
		t.Fatal("expected invalid result when covered status cites only exclusion clauses")
	}
}

func TestValidateCitationsErrorStatusNeedsNoCitations(t *testing.T) {
	decision := datatypes.ClaimDecision{
		Status:      datatypes.StatusError,
		Explanation: "generation failed",
	}

	result := ValidateCitations(decision, sampleEvidence())
	if !result.Valid {
		t.Fatalf("error-status decision should not require citations, got errors: %v", result.Errors)
	}
}

func TestValidateCitationsHedgingWarnings(t *testing.T) {
	decision := datatypes.ClaimDecision{
		Status:           datatypes.StatusCovered,
		Explanation:      "I think this is probably covered per HOME-COV-014.",
		ClauseReferences: []string{"HOME-COV-014"},
	}

	result := ValidateCitations(decision, sampleEvidence())
	if !result.Valid {
		t.Fatalf("hedging must be a warning, not an error: %v", result.Errors)
	}
	if len(result.Warnings) < 2 {
		t.Errorf("expected hedging warnings for both phrases, got: %v", result.Warnings)
	}
}

func TestValidateCitationsVagueReference(t *testing.T) {
	// Vague reference with no clause-id token anywhere in the text.
	withoutId := datatypes.ClaimDecision{
		Status:           datatypes.StatusNotCovered,
		Explanation:      "The policy states that this kind of damage is excluded.",
		ClauseReferences: []string{"HOME-EXC-003"},
	}
	result := ValidateCitations(withoutId, sampleEvidence())
	if len(result.Warnings) == 0 {
		t.Errorf("expected a vague-reference warning, got none")
	}

	// Same phrase anchored to a clause id should not warn.
	withId := withoutId
	withId.Explanation = "The policy states in HOME-EXC-003 that gradual seepage is excluded."
	result = ValidateCitations(withId, sampleEvidence())
	if len(result.Warnings) != 0 {
		t.Errorf("clause-id-anchored reference should not warn, got: %v", result.Warnings)
	}
}
