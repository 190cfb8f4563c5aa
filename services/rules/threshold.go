// Copyright (C) 2025 Clearline AI (engineering@clearline.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package rules

import (
	"fmt"
	"strings"

	"github.com/ClearlineAI/ClearlineClaims/services/claims/datatypes"
)

// DecisionThreshold computes the confidence bar this decision must clear.
//
// # Description
//
//	Starts from a per-status base (covered 0.85, not-covered 0.90, manual
//	review 0.50 under the defaults), then adjusts for the shape of the
//	claim: large amounts raise the bar, a well-cited decision with
//	supporting evidence lowers it slightly, missing evidence or missing
//	citations raise it sharply. The result is clamped to the configured
//	floor and ceiling.
//
// # Outputs
//
//	The adjusted threshold and a rationale string recording every
//	adjustment applied, which the engine stores on the decision as the
//	confidence rationale.
func (e *Engine) DecisionThreshold(
	request datatypes.ClaimRequest,
	decision datatypes.ClaimDecision,
	hasSupportingDocs bool,
) (float64, string) {
	var base float64
	switch decision.Status {
	case datatypes.StatusCovered:
		base = e.cfg.CoveredThreshold
	case datatypes.StatusNotCovered:
		base = e.cfg.NotCoveredThreshold
	case datatypes.StatusManualReview:
		base = e.cfg.ManualReviewThreshold
	default:
		base = e.cfg.DefaultThreshold
	}

	threshold := base
	notes := []string{fmt.Sprintf("base %.2f for status %q", base, decision.Status)}

	if request.ClaimAmount > e.cfg.LargeClaimAmount {
		threshold += e.cfg.LargeClaimAdjust
		notes = append(notes, fmt.Sprintf("%+.2f large claim", e.cfg.LargeClaimAdjust))
	}
	if len(decision.ClauseReferences) >= e.cfg.WellCitedClauseCount && hasSupportingDocs {
		threshold += e.cfg.WellCitedAdjust
		notes = append(notes, fmt.Sprintf("%+.2f well cited with supporting evidence", e.cfg.WellCitedAdjust))
	}
	if !hasSupportingDocs {
		threshold += e.cfg.NoEvidenceAdjust
		notes = append(notes, fmt.Sprintf("%+.2f no supporting evidence", e.cfg.NoEvidenceAdjust))
	}
	if len(decision.ClauseReferences) == 0 {
		threshold += e.cfg.NoCitationAdjust
		notes = append(notes, fmt.Sprintf("%+.2f no citations", e.cfg.NoCitationAdjust))
	}

	threshold = clamp(threshold, e.cfg.ThresholdFloor, e.cfg.ThresholdCeiling)

	rationale := fmt.Sprintf("threshold %.2f (%s); confidence %.2f (gap %+.2f)",
		threshold, strings.Join(notes, ", "), decision.ConfidenceScore, decision.ConfidenceScore-threshold)
	return threshold, rationale
}
