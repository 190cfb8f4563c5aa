// Copyright (C) 2025 Clearline AI (engineering@clearline.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes holds the shared data model for the claims service.
//
// Everything here is a plain value type. The pipeline never mutates a value
// it has handed to another stage; stages produce replacements, which keeps
// the monotonic-downgrade guarantee trivially checkable.
package datatypes

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PolicyType identifies the line of business a claim belongs to.
type PolicyType string

const (
	PolicyMotor      PolicyType = "motor"
	PolicyHome       PolicyType = "home"
	PolicyHealth     PolicyType = "health"
	PolicyLife       PolicyType = "life"
	PolicyDental     PolicyType = "dental"
	PolicyVision     PolicyType = "vision"
	PolicyDisability PolicyType = "disability"
)

// IsValid reports whether p is a known policy type.
func (p PolicyType) IsValid() bool {
	switch p {
	case PolicyMotor, PolicyHome, PolicyHealth, PolicyLife, PolicyDental, PolicyVision, PolicyDisability:
		return true
	}
	return false
}

// ClaimStatus is the adjudication outcome of a claim.
type ClaimStatus string

const (
	StatusCovered      ClaimStatus = "covered"
	StatusNotCovered   ClaimStatus = "not_covered"
	StatusDenied       ClaimStatus = "denied"
	StatusManualReview ClaimStatus = "manual_review"
	StatusError        ClaimStatus = "error"
)

// ClaimRequest is the immutable input to the validation pipeline.
//
// The pipeline reads it but never modifies it after EnsureDefaults; every
// stage receives the same request value.
type ClaimRequest struct {
	// Id uniquely identifies this request. Populated by EnsureDefaults
	// when the caller leaves it empty.
	Id string `json:"id"`

	// CallerId identifies the submitting system or adjuster for rate
	// limiting and audit. Defaults to "anonymous".
	CallerId string `json:"caller_id"`

	// PolicyNumber is the policy the claim is filed against.
	PolicyNumber string `json:"policy_number"`

	// PolicyType selects the retrieval filter and the per-type rules.
	PolicyType PolicyType `json:"policy_type"`

	// ClaimAmount is the amount claimed, in whole currency units. Must be
	// non-negative.
	ClaimAmount float64 `json:"claim_amount"`

	// Description is the claimant's free-text account of the loss.
	Description string `json:"description"`

	// SubmittedAt is when the request entered the system.
	SubmittedAt time.Time `json:"submitted_at"`
}

// EnsureDefaults populates Id, CallerId, and SubmittedAt when empty.
// Called once by the orchestrator before any stage runs.
func (r *ClaimRequest) EnsureDefaults() {
	if r.Id == "" {
		r.Id = uuid.New().String()
	}
	if r.CallerId == "" {
		r.CallerId = "anonymous"
	}
	if r.SubmittedAt.IsZero() {
		r.SubmittedAt = time.Now().UTC()
	}
}

// Validate checks structural validity of the request.
//
// Returns a descriptive error for the first violation found. Validation
// failures are client errors; the pipeline never starts for an invalid
// request.
func (r *ClaimRequest) Validate() error {
	if strings.TrimSpace(r.PolicyNumber) == "" {
		return fmt.Errorf("policy_number is required")
	}
	if !r.PolicyType.IsValid() {
		return fmt.Errorf("policy_type %q is not a known policy type", r.PolicyType)
	}
	if r.ClaimAmount < 0 {
		return fmt.Errorf("claim_amount must be non-negative, got %.2f", r.ClaimAmount)
	}
	if strings.TrimSpace(r.Description) == "" {
		return fmt.Errorf("description is required")
	}
	return nil
}

// PolicyClause is one retrieved unit of policy evidence.
//
// Produced by the retrieval collaborator, immutable, and scoped to a single
// request.
type PolicyClause struct {
	// ClauseId uniquely identifies the clause within the policy corpus
	// (e.g. "HOME-COV-014").
	ClauseId string `json:"clause_id"`

	// Text is the clause wording.
	Text string `json:"text"`

	// Section tags the clause with its policy section.
	Section string `json:"section"`

	// CoverageType is "coverage", "exclusion", or "general".
	CoverageType string `json:"coverage_type"`

	// Relevance is the retrieval score in [0,1].
	Relevance float64 `json:"relevance"`
}

// exclusionLanguage matches wording that marks a clause as excluding cover.
var exclusionLanguage = regexp.MustCompile(`(?i)\bexclusion\b|\bexcluded\b|\bnot\s+covered\b|\bdoes\s+not\s+cover\b|\bshall\s+not\s+apply\b`)

// IsExclusion reports whether the clause excludes coverage, either by its
// tagged coverage type or by exclusion language in its text.
func (c PolicyClause) IsExclusion() bool {
	return strings.EqualFold(c.CoverageType, "exclusion") || exclusionLanguage.MatchString(c.Text)
}

// EvidenceSet is the ordered clause list supplied to the generator for one
// request.
type EvidenceSet []PolicyClause

// Contains reports whether the set holds a clause with the given id.
func (e EvidenceSet) Contains(clauseId string) bool {
	_, ok := e.Find(clauseId)
	return ok
}

// Find returns the clause with the given id, if present.
func (e EvidenceSet) Find(clauseId string) (PolicyClause, bool) {
	for _, clause := range e {
		if clause.ClauseId == clauseId {
			return clause, true
		}
	}
	return PolicyClause{}, false
}

// ClaimDecision is the pipeline output.
//
// Stages build decisions incrementally but atomically: a stage produces a
// complete replacement value (usually via Clone) and never mutates a
// decision another stage holds.
type ClaimDecision struct {
	// Id uniquely identifies the decision.
	Id string `json:"id"`

	// RequestId links back to the originating ClaimRequest.
	RequestId string `json:"request_id"`

	// Status is the adjudication outcome.
	Status ClaimStatus `json:"status"`

	// Explanation is the caller-facing reasoning. Redacted before it
	// leaves the system.
	Explanation string `json:"explanation"`

	// ClauseReferences lists the cited clause ids, in citation order.
	// Invariant: when Status is covered this list is non-empty and every
	// id exists in the evidence set supplied to the generator.
	ClauseReferences []string `json:"clause_references"`

	// RequiredDocuments lists documents the claimant must supply.
	RequiredDocuments []string `json:"required_documents,omitempty"`

	// ConfidenceScore is the generator's self-reported confidence,
	// clamped to [0,1].
	ConfidenceScore float64 `json:"confidence_score"`

	// Contradictions holds detected logical conflicts, if any.
	Contradictions []Contradiction `json:"contradictions,omitempty"`

	// MissingEvidence lists evidence gaps found during validation.
	MissingEvidence []string `json:"missing_evidence,omitempty"`

	// ValidationWarnings accumulates guardrail warnings across stages.
	ValidationWarnings []string `json:"validation_warnings,omitempty"`

	// ConfidenceRationale explains how the routing threshold compared to
	// the actual confidence.
	ConfidenceRationale string `json:"confidence_rationale,omitempty"`

	// Routing is the business-rule outcome, populated by the rules stage.
	Routing *RoutingDecision `json:"routing,omitempty"`

	// FraudRisk is the fraud assessment, populated by the rules stage.
	FraudRisk *FraudRiskAssessment `json:"fraud_risk,omitempty"`
}

// EnsureDefaults populates Id when empty and clamps ConfidenceScore.
func (d *ClaimDecision) EnsureDefaults() {
	if d.Id == "" {
		d.Id = uuid.New().String()
	}
	d.ConfidenceScore = ClampConfidence(d.ConfidenceScore)
}

// Clone returns a deep copy the caller may amend without touching the
// original. Stage transitions go through Clone so replacement stays atomic.
func (d ClaimDecision) Clone() ClaimDecision {
	out := d
	out.ClauseReferences = append([]string(nil), d.ClauseReferences...)
	out.RequiredDocuments = append([]string(nil), d.RequiredDocuments...)
	out.Contradictions = append([]Contradiction(nil), d.Contradictions...)
	out.MissingEvidence = append([]string(nil), d.MissingEvidence...)
	out.ValidationWarnings = append([]string(nil), d.ValidationWarnings...)
	if d.Routing != nil {
		routing := *d.Routing
		routing.AdditionalChecks = append([]string(nil), d.Routing.AdditionalChecks...)
		out.Routing = &routing
	}
	if d.FraudRisk != nil {
		fraud := *d.FraudRisk
		fraud.Factors = append([]RiskFactor(nil), d.FraudRisk.Factors...)
		out.FraudRisk = &fraud
	}
	return out
}

// ClampConfidence bounds a confidence score to [0,1].
func ClampConfidence(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
