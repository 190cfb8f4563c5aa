// Copyright (C) 2025 Clearline AI (engineering@clearline.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package rules

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ClearlineAI/ClearlineClaims/services/claims/datatypes"
)

// Signal weights. The score is the clamped sum of triggered weights.
const (
	weightFrequency        = 0.25
	weightRoundAmount      = 0.10
	weightJustUnderTier    = 0.15
	weightEscalating       = 0.15
	weightVagueDescription = 0.10
	weightLongDescription  = 0.10
	weightSuspiciousPhrase = 0.20
	weightPolicyMismatch   = 0.25
	weightAmountMismatch   = 0.20
)

const (
	vagueDescriptionRunes = 20
	longDescriptionRunes  = 2000
	justUnderTierMargin   = 0.05
	amountMismatchRatio   = 0.10
)

var suspiciousPhrases = []string{
	"cash only",
	"no receipt",
	"lost all documentation",
	"paid in cash",
	"urgent payment",
	"wire the funds",
}

// AssessFraudRisk scores a claim against heuristic fraud signals.
//
// History is a read-only snapshot of the policy's recent claims; slight
// staleness is acceptable. Extraction data, when present, comes from the
// document extraction collaborator and is compared against the caller's
// stated policy number and amount. The returned level forces manual review
// at high or critical.
func (e *Engine) AssessFraudRisk(
	request datatypes.ClaimRequest,
	history []datatypes.HistoricalClaim,
	extraction *datatypes.ExtractionData,
	now time.Time,
) datatypes.FraudRiskAssessment {
	var factors []datatypes.RiskFactor
	add := func(name string, weight float64, detail string) {
		factors = append(factors, datatypes.RiskFactor{Name: name, Weight: weight, Detail: detail})
	}

	if n := e.recentClaimCount(history, now); n >= e.cfg.FraudFrequencyLimit {
		add("claim_frequency", weightFrequency,
			fmt.Sprintf("%d claims within the trailing window (limit %d)", n, e.cfg.FraudFrequencyLimit))
	}

	if isRoundAmount(request.ClaimAmount) {
		add("round_amount", weightRoundAmount,
			fmt.Sprintf("claim amount %.2f is a round figure", request.ClaimAmount))
	}

	if tier, ok := e.justUnderBoundary(request.ClaimAmount); ok {
		add("just_under_threshold", weightJustUnderTier,
			fmt.Sprintf("claim amount sits just below the %s tier boundary", tier))
	}

	if escalatingAmounts(history, request.ClaimAmount) {
		add("escalating_amounts", weightEscalating,
			"historical claim amounts escalate monotonically up to this claim")
	}

	runes := len([]rune(strings.TrimSpace(request.Description)))
	switch {
	case runes > 0 && runes < vagueDescriptionRunes:
		add("vague_description", weightVagueDescription,
			fmt.Sprintf("description is only %d characters", runes))
	case runes > longDescriptionRunes:
		add("overlong_description", weightLongDescription,
			fmt.Sprintf("description is %d characters", runes))
	}

	lower := strings.ToLower(request.Description)
	for _, phrase := range suspiciousPhrases {
		if strings.Contains(lower, phrase) {
			add("suspicious_phrase", weightSuspiciousPhrase, "description matches a suspicious phrase")
			break
		}
	}

	if extraction != nil {
		if extraction.PolicyNumber != "" && extraction.PolicyNumber != request.PolicyNumber {
			add("policy_number_mismatch", weightPolicyMismatch,
				"extracted policy number disagrees with the request")
		}
		if extraction.Amount > 0 && request.ClaimAmount > 0 {
			relative := math.Abs(extraction.Amount-request.ClaimAmount) / request.ClaimAmount
			if relative > amountMismatchRatio {
				add("amount_mismatch", weightAmountMismatch,
					fmt.Sprintf("extracted amount disagrees with the request by %.0f%%", relative*100))
			}
		}
	}

	score := 0.0
	for _, f := range factors {
		score += f.Weight
	}
	score = clamp(score, 0, 1)

	return datatypes.FraudRiskAssessment{
		Score:   score,
		Level:   riskLevelFor(score),
		Factors: factors,
	}
}

func riskLevelFor(score float64) datatypes.RiskLevel {
	switch {
	case score < 0.20:
		return datatypes.RiskMinimal
	case score < 0.40:
		return datatypes.RiskLow
	case score < 0.60:
		return datatypes.RiskModerate
	case score < 0.80:
		return datatypes.RiskHigh
	default:
		return datatypes.RiskCritical
	}
}

func (e *Engine) recentClaimCount(history []datatypes.HistoricalClaim, now time.Time) int {
	cutoff := now.Add(-e.cfg.FraudHistoryWindow)
	count := 0
	for _, claim := range history {
		if claim.SubmittedAt.After(cutoff) {
			count++
		}
	}
	return count
}

// isRoundAmount reports whether the amount is a whole multiple of 1000.
func isRoundAmount(amount float64) bool {
	if amount < 1000 {
		return false
	}
	return math.Mod(amount, 1000) == 0
}

// justUnderBoundary reports whether the amount falls within the margin
// just below any tier boundary, a shape consistent with structuring a
// claim to dodge scrutiny.
func (e *Engine) justUnderBoundary(amount float64) (string, bool) {
	boundaries := []struct {
		limit float64
		tier  string
	}{
		{e.cfg.LowMax, TierModerate},
		{e.cfg.ModerateMax, TierHigh},
		{e.cfg.HighMax, TierVeryHigh},
		{e.cfg.VeryHighMax, TierCritical},
	}
	for _, b := range boundaries {
		if amount < b.limit && amount >= b.limit*(1-justUnderTierMargin) {
			return b.tier, true
		}
	}
	return "", false
}

// escalatingAmounts reports whether the historical amounts, oldest first,
// strictly increase and the current claim continues the run. Requires at
// least two historical claims to be meaningful.
func escalatingAmounts(history []datatypes.HistoricalClaim, current float64) bool {
	if len(history) < 2 {
		return false
	}
	ordered := make([]datatypes.HistoricalClaim, len(history))
	copy(ordered, history)
	for i := 1; i < len(ordered); i++ {
		for j := i; j > 0 && ordered[j].SubmittedAt.Before(ordered[j-1].SubmittedAt); j-- {
			ordered[j], ordered[j-1] = ordered[j-1], ordered[j]
		}
	}
	for i := 1; i < len(ordered); i++ {
		if ordered[i].Amount <= ordered[i-1].Amount {
			return false
		}
	}
	return current > ordered[len(ordered)-1].Amount
}
