// Copyright (C) 2025 Clearline AI (engineering@clearline.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import "time"

// SupportingDocument is extracted text for one uploaded document, used by
// the document-consistency contradiction check.
type SupportingDocument struct {
	DocumentId string `json:"document_id"`
	Text       string `json:"text"`
}

// ExtractionData carries structured fields pulled from uploaded documents,
// when the extraction service provides them. Used for fraud cross-checks.
type ExtractionData struct {
	PolicyNumber string  `json:"policy_number,omitempty"`
	Amount       float64 `json:"amount,omitempty"`
}

// HistoricalClaim is one prior claim on the same policy, used as a
// read-only fraud-scoring snapshot. Approximate staleness is acceptable.
type HistoricalClaim struct {
	PolicyNumber string    `json:"policy_number"`
	Amount       float64   `json:"amount"`
	Status       string    `json:"status"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

// StageResult records the outcome of one pipeline stage for the audit trail.
type StageResult struct {
	Stage      string    `json:"stage"`
	Outcome    string    `json:"outcome"`
	DurationMs int64     `json:"duration_ms"`
	Detail     string    `json:"detail,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// AuditRecord is the per-request audit trail written after redaction.
//
// The write is the last pipeline step and atomic per record: a cancelled
// request never leaves a partial record behind.
type AuditRecord struct {
	Id           string        `json:"id"`
	RequestId    string        `json:"request_id"`
	CallerId     string        `json:"caller_id"`
	PolicyNumber string        `json:"policy_number"`
	PolicyType   PolicyType    `json:"policy_type"`
	ClaimAmount  float64       `json:"claim_amount"`
	Status       ClaimStatus   `json:"status"`
	Confidence   float64       `json:"confidence"`
	Stages       []StageResult `json:"stages"`
	Warnings     []string      `json:"warnings,omitempty"`
	Timestamp    time.Time     `json:"timestamp"`
}

// AuditFilter selects audit records for the reviewer dashboard. Zero-value
// fields are ignored; populated fields combine with AND.
type AuditFilter struct {
	PolicyNumber string      `json:"policy_number,omitempty"`
	Status       ClaimStatus `json:"status,omitempty"`
	Since        time.Time   `json:"since,omitempty"`
	Until        time.Time   `json:"until,omitempty"`
	Limit        int         `json:"limit,omitempty"`
}
