// Copyright (C) 2025 Clearline AI (engineering@clearline.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package rules

import (
	"time"

	"github.com/ClearlineAI/ClearlineClaims/services/claims/datatypes"
)

// Tier labels, lowest amount bucket first.
const (
	TierLow      = "low"
	TierModerate = "moderate"
	TierHigh     = "high"
	TierVeryHigh = "very_high"
	TierCritical = "critical"
)

// tierProfile is the fixed routing posture of one amount bucket.
type tierProfile struct {
	mode           datatypes.ProcessingMode
	approvals      int
	sla            time.Duration
	autoApprovable bool
}

var tierProfiles = map[string]tierProfile{
	TierLow:      {mode: datatypes.ModeManualReview, approvals: 1, sla: 24 * time.Hour, autoApprovable: true},
	TierModerate: {mode: datatypes.ModeManualReview, approvals: 1, sla: 48 * time.Hour, autoApprovable: true},
	TierHigh:     {mode: datatypes.ModeManualReview, approvals: 1, sla: 72 * time.Hour},
	TierVeryHigh: {mode: datatypes.ModeManualReview, approvals: 2, sla: 5 * 24 * time.Hour},
	TierCritical: {mode: datatypes.ModeExecutiveReview, approvals: 3, sla: 7 * 24 * time.Hour},
}

// tierFor buckets a claim amount.
func (e *Engine) tierFor(amount float64) string {
	switch {
	case amount < e.cfg.LowMax:
		return TierLow
	case amount < e.cfg.ModerateMax:
		return TierModerate
	case amount < e.cfg.HighMax:
		return TierHigh
	case amount < e.cfg.VeryHighMax:
		return TierVeryHigh
	default:
		return TierCritical
	}
}

// routeByTier produces the amount-based routing decision.
//
// Auto-approve is reachable only from the two lowest tiers, and only when
// the status is covered, confidence clears the tier's threshold, and
// supporting evidence was provided. Auto-deny requires a not-covered
// status, very high confidence, and a cited exclusion clause. Everything
// else takes the tier's default review posture.
func (e *Engine) routeByTier(
	request datatypes.ClaimRequest,
	decision datatypes.ClaimDecision,
	evidence datatypes.EvidenceSet,
	threshold float64,
	hasSupportingDocs bool,
) datatypes.RoutingDecision {
	tier := e.tierFor(request.ClaimAmount)
	profile := tierProfiles[tier]

	routing := datatypes.RoutingDecision{
		Tier:              tier,
		Mode:              profile.mode,
		RequiredApprovals: profile.approvals,
		ReviewSLA:         profile.sla,
	}

	if profile.autoApprovable &&
		decision.Status == datatypes.StatusCovered &&
		decision.ConfidenceScore >= threshold &&
		hasSupportingDocs {
		routing.Mode = datatypes.ModeAutoApprove
		routing.RequiredApprovals = 0
		return routing
	}

	if decision.Status == datatypes.StatusNotCovered &&
		decision.ConfidenceScore >= e.cfg.AutoDenyConfidence &&
		citesExclusion(decision, evidence) {
		routing.Mode = datatypes.ModeAutoDeny
		routing.RequiredApprovals = 0
		return routing
	}

	return routing
}

// citesExclusion reports whether any cited clause carries exclusion
// language.
func citesExclusion(decision datatypes.ClaimDecision, evidence datatypes.EvidenceSet) bool {
	for _, ref := range decision.ClauseReferences {
		if clause, ok := evidence.Find(ref); ok && clause.IsExclusion() {
			return true
		}
	}
	return false
}
