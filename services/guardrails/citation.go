// Copyright (C) 2025 Clearline AI (engineering@clearline.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package guardrails validates generated claim decisions before any
// business rule is allowed to trust them.
//
// Two independent checks live here. The citation validator proves that a
// decision is grounded: every cited clause id must exist in the evidence
// set that was supplied to the generator, so a fabricated citation can
// never survive the pipeline. The contradiction detector cross-checks the
// decision against the evidence and the original request across five
// dimensions and grades each conflict with an explicit severity.
//
// Both checks are pure functions over their inputs. Hard citation failures
// are the single strongest hallucination defense in the system and run
// before any business rule sees the decision.
package guardrails

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ClearlineAI/ClearlineClaims/services/claims/datatypes"
)

// hedgingPhrases flag uncertainty language masquerading as fact.
var hedgingPhrases = []string{
	"i think",
	"i believe",
	"probably",
	"it seems",
	"it appears",
	"might be",
	"typically covered",
	"usually covered",
	"should be covered",
}

// vagueReferences are policy mentions that carry no citation weight.
var vagueReferences = []string{
	"the policy states",
	"the policy says",
	"standard practice",
	"policies generally",
	"as is customary",
}

// clauseIdToken matches clause-id shaped tokens like "HOME-COV-014" or
// "EXC-7". Used to distinguish a vague policy mention from one anchored to
// a concrete clause.
var clauseIdToken = regexp.MustCompile(`\b[A-Za-z]{2,}(?:-[A-Za-z0-9]+)+\b`)

// ValidateCitations checks a generated decision's citations against the
// evidence set supplied to the generator.
//
// Rules, in order:
//  1. Non-error decisions must carry at least one citation.
//  2. Every cited id must exist in the evidence set; unmatched ids are
//     reported individually as potential fabrication.
//  3. A covered status requires at least one cited clause that is a
//     coverage (non-exclusion) clause.
//  4. Hedging phrases and vague unsupported policy references in the
//     explanation are warnings, not failures.
//
// Any error in the result is a hard failure: the orchestrator discards the
// generated decision and substitutes manual review with confidence zero.
func ValidateCitations(decision datatypes.ClaimDecision, evidence datatypes.EvidenceSet) datatypes.ValidationResult {
	var result datatypes.ValidationResult

	if decision.Status != datatypes.StatusError && len(decision.ClauseReferences) == 0 {
		result.Errors = append(result.Errors, "missing required citations: decision cites no policy clauses")
	}

	for _, ref := range decision.ClauseReferences {
		if !evidence.Contains(ref) {
			result.Errors = append(result.Errors, fmt.Sprintf(
				"cited clause %q does not exist in the retrieved evidence (potential fabrication)", ref))
		}
	}

	if decision.Status == datatypes.StatusCovered {
		hasCoverage := false
		for _, ref := range decision.ClauseReferences {
			if clause, ok := evidence.Find(ref); ok && !clause.IsExclusion() {
				hasCoverage = true
				break
			}
		}
		if !hasCoverage && len(decision.ClauseReferences) > 0 {
			result.Errors = append(result.Errors,
				"covered status cites no coverage clause: every cited clause is an exclusion")
		}
	}

	result.Warnings = append(result.Warnings, scanExplanation(decision.Explanation)...)
	result.Valid = len(result.Errors) == 0
	return result
}

// scanExplanation reports hedging and vague-reference warnings for the
// explanation text.
func scanExplanation(explanation string) []string {
	var warnings []string
	lower := strings.ToLower(explanation)

	for _, phrase := range hedgingPhrases {
		if strings.Contains(lower, phrase) {
			warnings = append(warnings, fmt.Sprintf("explanation hedges with %q", phrase))
		}
	}

	for _, phrase := range vagueReferences {
		if strings.Contains(lower, phrase) && !clauseIdToken.MatchString(explanation) {
			warnings = append(warnings, fmt.Sprintf(
				"explanation references the policy vaguely (%q) without citing a clause id", phrase))
		}
	}

	return warnings
}
