// Copyright (C) 2025 Clearline AI (engineering@clearline.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package guardrails

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ClearlineAI/ClearlineClaims/services/claims/datatypes"
)

// informationalConfidence is the floor above which a manual-review status
// paired with high model confidence is worth an informational note.
const informationalConfidence = 0.95

// currencyToken matches dollar figures like "$50,000" or "$1,250.00" in
// clause and document text.
var currencyToken = regexp.MustCompile(`\$(\d{1,3}(?:,\d{3})*(?:\.\d{2})?)`)

// DetectContradictions cross-checks a generated decision against the
// evidence set, the original request, and any supporting documents.
//
// # Description
//
//	Runs five independent checks, each producing zero or more
//	Contradiction values with an explicit severity:
//	  1. Status-vs-citation: denial without exclusion language, or
//	     coverage citing an exclusion clause.
//	  2. Exclusion conflict: coverage and exclusion clauses cited together.
//	  3. Confidence-vs-status: confidence below the applicable decision
//	     threshold for a decisive status, or very high confidence on a
//	     manual-review status (informational).
//	  4. Amount-vs-limit: claim amount exceeding the largest dollar limit
//	     stated in cited clause text.
//	  5. Document consistency: >10% relative discrepancy between the claim
//	     amount and figures in supporting documents. Skipped when no
//	     documents were supplied.
//
// # Inputs
//
//	request        - the original claim request.
//	decision       - the generated decision under inspection.
//	evidence       - the evidence set supplied to the generator.
//	supportingDocs - extracted document text, may be empty.
//	threshold      - the decision threshold applicable to this decision's
//	                 status and evidence shape (see the rules engine).
//
// # Outputs
//
//	A slice of contradictions, empty when the decision is internally
//	consistent. Callers gate on HasCritical.
func DetectContradictions(
	request datatypes.ClaimRequest,
	decision datatypes.ClaimDecision,
	evidence datatypes.EvidenceSet,
	supportingDocs []datatypes.SupportingDocument,
	threshold float64,
) []datatypes.Contradiction {
	var found []datatypes.Contradiction

	cited := citedClauses(decision, evidence)

	found = append(found, checkStatusVsCitation(decision, cited)...)
	found = append(found, checkExclusionConflict(decision, cited)...)
	found = append(found, checkConfidenceVsStatus(decision, threshold)...)
	found = append(found, checkAmountVsLimit(request, cited)...)
	found = append(found, checkDocumentConsistency(request, supportingDocs)...)

	return found
}

// HasCritical reports whether any contradiction is severe enough to force
// manual review.
func HasCritical(contradictions []datatypes.Contradiction) bool {
	for _, c := range contradictions {
		if c.IsCritical() {
			return true
		}
	}
	return false
}

// Summarize renders a short reviewer-facing digest of the contradictions,
// suitable for prepending to a decision explanation.
func Summarize(contradictions []datatypes.Contradiction) string {
	if len(contradictions) == 0 {
		return ""
	}
	parts := make([]string, 0, len(contradictions))
	for _, c := range contradictions {
		parts = append(parts, fmt.Sprintf("[%s] %s", c.Severity, c.Description))
	}
	return fmt.Sprintf("Contradictions detected (%d): %s.", len(contradictions), strings.Join(parts, "; "))
}

// citedClauses resolves the decision's citations against the evidence set.
// Dangling citations are the citation validator's problem, not ours, so
// they are simply skipped here.
func citedClauses(decision datatypes.ClaimDecision, evidence datatypes.EvidenceSet) []datatypes.PolicyClause {
	clauses := make([]datatypes.PolicyClause, 0, len(decision.ClauseReferences))
	for _, ref := range decision.ClauseReferences {
		if clause, ok := evidence.Find(ref); ok {
			clauses = append(clauses, clause)
		}
	}
	return clauses
}

// checkStatusVsCitation verifies that the decision status matches the
// character of the clauses it cites.
func checkStatusVsCitation(decision datatypes.ClaimDecision, cited []datatypes.PolicyClause) []datatypes.Contradiction {
	var found []datatypes.Contradiction

	switch decision.Status {
	case datatypes.StatusDenied, datatypes.StatusNotCovered:
		hasExclusion := false
		for _, clause := range cited {
			if clause.IsExclusion() {
				hasExclusion = true
				break
			}
		}
		if len(cited) > 0 && !hasExclusion {
			found = append(found, datatypes.Contradiction{
				SourceA:        "decision status",
				SourceB:        "cited clauses",
				Description:    fmt.Sprintf("status %q but no cited clause contains exclusion language", decision.Status),
				BusinessImpact: "denial may be unsupported by the policy text",
				Severity:       datatypes.SeverityHigh,
			})
		}
	case datatypes.StatusCovered:
		for _, clause := range cited {
			if clause.IsExclusion() {
				found = append(found, datatypes.Contradiction{
					SourceA:        "decision status",
					SourceB:        "clause " + clause.ClauseId,
					Description:    fmt.Sprintf("status %q cites clause %s which contains exclusion language", decision.Status, clause.ClauseId),
					BusinessImpact: "claim may be approved against an explicit exclusion",
					Severity:       datatypes.SeverityCritical,
				})
			}
		}
	}

	return found
}

// checkExclusionConflict flags a decision that cites both a coverage
// clause and an exclusion clause: the policy is ambiguous for this claim
// and a human needs to interpret it.
func checkExclusionConflict(decision datatypes.ClaimDecision, cited []datatypes.PolicyClause) []datatypes.Contradiction {
	var coverage, exclusion []string
	for _, clause := range cited {
		if clause.IsExclusion() {
			exclusion = append(exclusion, clause.ClauseId)
		} else {
			coverage = append(coverage, clause.ClauseId)
		}
	}
	if len(coverage) == 0 || len(exclusion) == 0 {
		return nil
	}
	return []datatypes.Contradiction{{
		SourceA:        "coverage clauses " + strings.Join(coverage, ","),
		SourceB:        "exclusion clauses " + strings.Join(exclusion, ","),
		Description:    "both coverage and exclusion clauses are cited for the same claim",
		BusinessImpact: "policy applicability is ambiguous and requires human interpretation",
		Severity:       datatypes.SeverityHigh,
	}}
}

// checkConfidenceVsStatus compares the decision's confidence against the
// threshold its status requires.
func checkConfidenceVsStatus(decision datatypes.ClaimDecision, threshold float64) []datatypes.Contradiction {
	if decision.Status == datatypes.StatusManualReview {
		if decision.ConfidenceScore >= informationalConfidence {
			return []datatypes.Contradiction{{
				SourceA:        "confidence score",
				SourceB:        "decision status",
				Description:    fmt.Sprintf("confidence %.2f is very high for a manual-review status", decision.ConfidenceScore),
				BusinessImpact: "review effort may be unnecessary; informational only",
				Severity:       datatypes.SeverityMedium,
			}}
		}
		return nil
	}
	if decision.Status == datatypes.StatusError {
		return nil
	}
	if decision.ConfidenceScore < threshold {
		return []datatypes.Contradiction{{
			SourceA:        "confidence score",
			SourceB:        "decision status",
			Description:    fmt.Sprintf("confidence %.2f is below the %.2f threshold required for status %q", decision.ConfidenceScore, threshold, decision.Status),
			BusinessImpact: "decisive status asserted without sufficient confidence",
			Severity:       datatypes.SeverityHigh,
		}}
	}
	return nil
}

// checkAmountVsLimit extracts dollar figures from cited clause text and
// compares the largest stated limit against the claim amount.
func checkAmountVsLimit(request datatypes.ClaimRequest, cited []datatypes.PolicyClause) []datatypes.Contradiction {
	var limit float64
	var limitClause string
	for _, clause := range cited {
		for _, amount := range extractAmounts(clause.Text) {
			if amount > limit {
				limit = amount
				limitClause = clause.ClauseId
			}
		}
	}
	if limit <= 0 || request.ClaimAmount <= limit {
		return nil
	}
	excess := request.ClaimAmount - limit
	return []datatypes.Contradiction{{
		SourceA:        "claim amount",
		SourceB:        "clause " + limitClause,
		Description:    fmt.Sprintf("claim amount $%.2f exceeds the $%.2f limit stated in clause %s by $%.2f", request.ClaimAmount, limit, limitClause, excess),
		BusinessImpact: "claim exceeds the stated policy limit",
		Severity:       datatypes.SeverityHigh,
	}}
}

// checkDocumentConsistency flags supporting documents whose dollar figures
// disagree with the claimed amount by more than 10%. Skipped entirely when
// no documents were supplied.
func checkDocumentConsistency(request datatypes.ClaimRequest, docs []datatypes.SupportingDocument) []datatypes.Contradiction {
	if len(docs) == 0 || request.ClaimAmount <= 0 {
		return nil
	}

	var found []datatypes.Contradiction
	for _, doc := range docs {
		amounts := extractAmounts(doc.Text)
		if len(amounts) == 0 {
			continue
		}
		// The figure closest to the claim amount is the one the document
		// most plausibly asserts about this claim.
		closest := amounts[0]
		for _, amount := range amounts[1:] {
			if diff(amount, request.ClaimAmount) < diff(closest, request.ClaimAmount) {
				closest = amount
			}
		}
		relative := diff(closest, request.ClaimAmount) / request.ClaimAmount
		if relative > 0.10 {
			found = append(found, datatypes.Contradiction{
				SourceA:        "claim amount",
				SourceB:        "document " + doc.DocumentId,
				Description:    fmt.Sprintf("claim amount $%.2f disagrees with $%.2f in document %s (%.0f%% discrepancy)", request.ClaimAmount, closest, doc.DocumentId, relative*100),
				BusinessImpact: "supporting documentation does not corroborate the claimed amount",
				Severity:       datatypes.SeverityHigh,
			})
		}
	}
	return found
}

// extractAmounts pulls dollar figures out of free text.
func extractAmounts(text string) []float64 {
	var amounts []float64
	for _, match := range currencyToken.FindAllStringSubmatch(text, -1) {
		raw := strings.ReplaceAll(match[1], ",", "")
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		amounts = append(amounts, value)
	}
	return amounts
}

func diff(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}
