// Copyright (C) 2025 Clearline AI (engineering@clearline.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package providers defines the external collaborator interfaces the
// validation pipeline consumes and their concrete implementations.
//
// The pipeline is written entirely against these interfaces; exactly one
// implementation per interface is selected at process start. Nop
// implementations exist for provider-less deployments and for tests.
package providers

import (
	"context"
	"errors"
	"time"

	"github.com/ClearlineAI/ClearlineClaims/services/claims/datatypes"
)

// ErrMalformedGeneration marks generator output that could not be parsed
// into a structured decision. The pipeline treats it as a citation
// validation failure, not a service fault: retrying will not make a model
// produce different output for the same input.
var ErrMalformedGeneration = errors.New("generator returned malformed decision output")

// Embedder computes a fixed-dimension vector for a piece of text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ClauseRetriever performs vector similarity search over policy clauses.
// An empty result is not an error.
type ClauseRetriever interface {
	Retrieve(ctx context.Context, vector []float32, policyType datatypes.PolicyType, limit int) (datatypes.EvidenceSet, error)
}

// DecisionGenerator produces a structured claim decision from a request
// and its retrieved evidence. Malformed output is reported as
// ErrMalformedGeneration.
type DecisionGenerator interface {
	Generate(ctx context.Context, request datatypes.ClaimRequest, evidence datatypes.EvidenceSet) (*datatypes.ClaimDecision, error)
}

// DocumentExtractor fetches the plain text and any structured extraction
// data for a stored supporting document.
type DocumentExtractor interface {
	Extract(ctx context.Context, documentId string) (*datatypes.SupportingDocument, *datatypes.ExtractionData, error)
}

// AuditSink persists and queries audit records. Append is best-effort
// from the pipeline's point of view: a failure is logged and alerted, not
// returned to the caller.
type AuditSink interface {
	Append(ctx context.Context, record datatypes.AuditRecord) error
	Query(ctx context.Context, filter datatypes.AuditFilter) ([]datatypes.AuditRecord, error)
}

// ClaimHistory reads recent claims for a policy. Results are read-only
// snapshots; slight staleness is acceptable for fraud heuristics.
type ClaimHistory interface {
	RecentClaims(ctx context.Context, policyNumber string, since time.Time) ([]datatypes.HistoricalClaim, error)
}

// ===== Nop implementations =====

// NopExtractor skips document extraction. Document-consistency
// contradiction checks are silently skipped when this is wired.
type NopExtractor struct{}

func (NopExtractor) Extract(_ context.Context, documentId string) (*datatypes.SupportingDocument, *datatypes.ExtractionData, error) {
	return &datatypes.SupportingDocument{DocumentId: documentId}, nil, nil
}

// NopAuditSink drops audit records. Used when no audit store is
// configured; the deployment accepts the compliance gap explicitly.
type NopAuditSink struct{}

func (NopAuditSink) Append(context.Context, datatypes.AuditRecord) error {
	return nil
}

func (NopAuditSink) Query(context.Context, datatypes.AuditFilter) ([]datatypes.AuditRecord, error) {
	return nil, nil
}

// NopClaimHistory reports an empty history, disabling the frequency and
// escalation fraud signals.
type NopClaimHistory struct{}

func (NopClaimHistory) RecentClaims(context.Context, string, time.Time) ([]datatypes.HistoricalClaim, error) {
	return nil, nil
}

var (
	_ DocumentExtractor = (*NopExtractor)(nil)
	_ AuditSink         = (*NopAuditSink)(nil)
	_ ClaimHistory      = (*NopClaimHistory)(nil)
)
