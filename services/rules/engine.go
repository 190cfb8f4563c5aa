// Copyright (C) 2025 Clearline AI (engineering@clearline.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package rules

import (
	"fmt"
	"time"

	"github.com/ClearlineAI/ClearlineClaims/services/claims/datatypes"
)

// Engine evaluates the four routing sub-policies and merges their effects.
// It is stateless and safe for concurrent use.
type Engine struct {
	cfg Config
}

// NewEngine builds an engine from a config. Use DefaultConfig unless a
// deployment overrides specific constants.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Input gathers everything the engine needs for one evaluation. History
// and extraction are optional; Now anchors the fraud trailing window.
type Input struct {
	Request           datatypes.ClaimRequest
	Decision          datatypes.ClaimDecision
	Evidence          datatypes.EvidenceSet
	HasSupportingDocs bool
	History           []datatypes.HistoricalClaim
	Extraction        *datatypes.ExtractionData
	Now               time.Time
}

// Evaluate runs tier routing, the dynamic confidence threshold, the
// policy-type table, and fraud scoring, then merges their effects with the
// most restrictive ruling winning.
//
// The returned decision is a new value. Status can only move toward
// manual review here, never away from it: a decision already downgraded by
// a guardrail stays downgraded.
func (e *Engine) Evaluate(in Input) *datatypes.ClaimDecision {
	if in.Now.IsZero() {
		in.Now = time.Now()
	}

	out := in.Decision.Clone()

	threshold, rationale := e.DecisionThreshold(in.Request, in.Decision, in.HasSupportingDocs)
	out.ConfidenceRationale = rationale

	routing := e.routeByTier(in.Request, in.Decision, in.Evidence, threshold, in.HasSupportingDocs)
	typeEffect := applyPolicyTypeRules(in.Request)
	fraud := e.AssessFraudRisk(in.Request, in.History, in.Extraction, in.Now)

	var reviewReasons []string

	decisive := in.Decision.Status == datatypes.StatusCovered ||
		in.Decision.Status == datatypes.StatusNotCovered ||
		in.Decision.Status == datatypes.StatusDenied
	if decisive && in.Decision.ConfidenceScore < threshold {
		reviewReasons = append(reviewReasons, fmt.Sprintf(
			"confidence %.2f below the %.2f threshold", in.Decision.ConfidenceScore, threshold))
	}
	if typeEffect.forceReview {
		reviewReasons = append(reviewReasons, typeEffect.reviewReasons...)
	}
	if fraud.Level.ForcesReview() {
		reviewReasons = append(reviewReasons, fmt.Sprintf(
			"fraud risk %s (score %.2f)", fraud.Level, fraud.Score))
	}

	routing.AdditionalChecks = mergeUnique(routing.AdditionalChecks, typeEffect.additionalChecks)
	if fraud.Level.ForcesReview() {
		routing.AdditionalChecks = mergeUnique(routing.AdditionalChecks, []string{"fraud_review"})
	}

	if len(reviewReasons) > 0 {
		if decisive {
			out.Status = datatypes.StatusManualReview
		}
		if modeRank(routing.Mode) < modeRank(datatypes.ModeManualReview) {
			routing.Mode = datatypes.ModeManualReview
			if routing.RequiredApprovals < 1 {
				routing.RequiredApprovals = 1
			}
		}
		out.ValidationWarnings = append(out.ValidationWarnings, reviewReasons...)
	}

	out.RequiredDocuments = mergeUnique(out.RequiredDocuments, typeEffect.requiredDocuments)
	out.Routing = &routing
	out.FraudRisk = &fraud
	out.ConfidenceScore = datatypes.ClampConfidence(out.ConfidenceScore)
	return &out
}

// mergeUnique appends extras to base, preserving order and dropping
// duplicates.
func mergeUnique(base, extras []string) []string {
	seen := make(map[string]bool, len(base)+len(extras))
	for _, v := range base {
		seen[v] = true
	}
	for _, v := range extras {
		if !seen[v] {
			seen[v] = true
			base = append(base, v)
		}
	}
	return base
}
