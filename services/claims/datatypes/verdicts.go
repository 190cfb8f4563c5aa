// Copyright (C) 2025 Clearline AI (engineering@clearline.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import "time"

// ValidationResult is the verdict of one guardrail invocation.
//
// Errors are hard failures that discard the generated decision; warnings
// annotate it and feed the confidence rationale.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Severity grades a detected contradiction.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// IsCritical reports whether the severity forces manual review.
func (s Severity) IsCritical() bool {
	return s == SeverityHigh || s == SeverityCritical
}

// Contradiction is one detected logical conflict between the decision, the
// evidence, and the original request.
type Contradiction struct {
	// SourceA labels the first conflicting source (e.g. "decision status").
	SourceA string `json:"source_a"`

	// SourceB labels the second conflicting source (e.g. "clause HOME-EXC-002").
	SourceB string `json:"source_b"`

	// Description explains the conflict in reviewer-facing language.
	Description string `json:"description"`

	// BusinessImpact states what acting on the conflict would mean.
	BusinessImpact string `json:"business_impact"`

	// Severity grades the conflict. High and critical force manual review.
	Severity Severity `json:"severity"`
}

// IsCritical reports whether this contradiction alone forces manual review.
func (c Contradiction) IsCritical() bool {
	return c.Severity.IsCritical()
}

// ProcessingMode is how a routed claim proceeds.
type ProcessingMode string

const (
	ModeAutoApprove     ProcessingMode = "auto_approve"
	ModeAutoDeny        ProcessingMode = "auto_deny"
	ModeManualReview    ProcessingMode = "manual_review"
	ModeExecutiveReview ProcessingMode = "executive_review"
)

// RoutingDecision is the business-rule output for one claim.
//
// Derived purely from the request and the guardrail-passed decision; never
// persisted independently of its decision.
type RoutingDecision struct {
	// Tier is the amount bucket label (low, moderate, high, very_high,
	// critical).
	Tier string `json:"tier"`

	// Mode is the processing path the claim takes.
	Mode ProcessingMode `json:"mode"`

	// RequiredApprovals is how many human sign-offs the tier demands.
	RequiredApprovals int `json:"required_approvals"`

	// ReviewSLA is the review turnaround the tier commits to.
	ReviewSLA time.Duration `json:"review_sla"`

	// AdditionalChecks lists extra review flags (medical_review,
	// fraud_review, legal_review, ...).
	AdditionalChecks []string `json:"additional_checks,omitempty"`
}

// RiskLevel grades a fraud assessment.
type RiskLevel string

const (
	RiskMinimal  RiskLevel = "minimal"
	RiskLow      RiskLevel = "low"
	RiskModerate RiskLevel = "moderate"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// ForcesReview reports whether the risk level overrides routing into
// manual review.
func (r RiskLevel) ForcesReview() bool {
	return r == RiskHigh || r == RiskCritical
}

// RiskFactor is one weighted signal that contributed to a fraud score.
type RiskFactor struct {
	// Name identifies the signal (e.g. "claim_frequency").
	Name string `json:"name"`

	// Weight is the signal's contribution to the score.
	Weight float64 `json:"weight"`

	// Detail describes what triggered the signal, without sensitive values.
	Detail string `json:"detail"`
}

// FraudRiskAssessment is the fraud-scoring output for one claim.
type FraudRiskAssessment struct {
	// Score is the weighted sum of triggered factors, clamped to [0,1].
	Score float64 `json:"score"`

	// Level maps the score onto the minimal..critical scale.
	Level RiskLevel `json:"level"`

	// Factors lists the triggered signals.
	Factors []RiskFactor `json:"factors,omitempty"`
}
