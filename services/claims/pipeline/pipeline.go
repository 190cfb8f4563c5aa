// Copyright (C) 2025 Clearline AI (engineering@clearline.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package pipeline sequences the claim validation state machine.
//
// A request moves through threat scanning, the three external calls
// (embed, retrieve, generate), the citation and contradiction guardrails,
// the business-rule engine, outbound redaction, and finally the audit
// write. Guardrail failures are data outcomes that degrade the decision;
// only exhausted external retries surface as pipeline faults.
//
// Downgrades are monotonic: once any stage moves a decision to manual
// review, no later stage restores a decisive status.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/ClearlineAI/ClearlineClaims/services/claims/datatypes"
	"github.com/ClearlineAI/ClearlineClaims/services/claims/observability"
	"github.com/ClearlineAI/ClearlineClaims/services/claims/providers"
	"github.com/ClearlineAI/ClearlineClaims/services/guardrails"
	"github.com/ClearlineAI/ClearlineClaims/services/redaction"
	"github.com/ClearlineAI/ClearlineClaims/services/rules"
	"github.com/ClearlineAI/ClearlineClaims/services/threatscan"
)

var tracer = otel.Tracer("clearline.claims.pipeline")

// Pipeline stage names, in transition order. Terminal stages are done,
// rejected, and errored.
const (
	StageReceived             = "received"
	StageThreatChecked        = "threat_checked"
	StageEmbedded             = "embedded"
	StageRetrieved            = "retrieved"
	StageGenerated            = "generated"
	StageCitationChecked      = "citation_checked"
	StageContradictionChecked = "contradiction_checked"
	StageRuleApplied          = "rule_applied"
	StageRedacted             = "redacted"
	StageAudited              = "audited"
	StageDone                 = "done"
	StageRejected             = "rejected"
	StageErrored              = "errored"
)

// External call configuration constants.
const (
	// maxExternalRetries is the maximum number of retry attempts for an
	// external collaborator call. Retries use exponential backoff.
	maxExternalRetries = 3

	// initialRetryDelay is the delay before the first retry attempt.
	// Subsequent retries double this delay (1s, 2s, 4s).
	initialRetryDelay = 1 * time.Second

	// defaultRetrieveLimit is how many clauses are requested per claim.
	defaultRetrieveLimit = 8

	// maxExtractionConcurrency bounds parallel document extraction calls.
	maxExtractionConcurrency = 4
)

// Config wires the pipeline's collaborators. Embedder, Retriever, and
// Generator are required; the rest default to Nop implementations.
type Config struct {
	Embedder  providers.Embedder
	Retriever providers.ClauseRetriever
	Generator providers.DecisionGenerator
	Extractor providers.DocumentExtractor
	Audit     providers.AuditSink
	History   providers.ClaimHistory

	// Rules is the business-rule configuration. Zero value means
	// rules.DefaultConfig().
	Rules *rules.Config

	// RetrieveLimit is the clause count per retrieval. Zero means the
	// default.
	RetrieveLimit int
}

// Pipeline is the validation orchestrator. Stateless per request; safe
// for concurrent use.
type Pipeline struct {
	scanner   *threatscan.Scanner
	masker    *redaction.Masker
	engine    *rules.Engine
	embedder  providers.Embedder
	retriever providers.ClauseRetriever
	generator providers.DecisionGenerator
	extractor providers.DocumentExtractor
	audit     providers.AuditSink
	history   providers.ClaimHistory

	retrieveLimit int
	historyWindow time.Duration
}

// New builds a pipeline, compiling the embedded threat and sensitive-data
// pattern libraries.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Embedder == nil || cfg.Retriever == nil || cfg.Generator == nil {
		return nil, errors.New("embedder, retriever, and generator are required")
	}

	scanner, err := threatscan.NewScanner()
	if err != nil {
		return nil, fmt.Errorf("initialize threat scanner: %w", err)
	}
	masker, err := redaction.NewMasker()
	if err != nil {
		return nil, fmt.Errorf("initialize sensitive-data masker: %w", err)
	}

	rulesCfg := rules.DefaultConfig()
	if cfg.Rules != nil {
		rulesCfg = *cfg.Rules
	}

	p := &Pipeline{
		scanner:       scanner,
		masker:        masker,
		engine:        rules.NewEngine(rulesCfg),
		embedder:      cfg.Embedder,
		retriever:     cfg.Retriever,
		generator:     cfg.Generator,
		extractor:     cfg.Extractor,
		audit:         cfg.Audit,
		history:       cfg.History,
		retrieveLimit: cfg.RetrieveLimit,
		historyWindow: rulesCfg.FraudHistoryWindow,
	}
	if p.extractor == nil {
		p.extractor = providers.NopExtractor{}
	}
	if p.audit == nil {
		p.audit = providers.NopAuditSink{}
	}
	if p.history == nil {
		p.history = providers.NopClaimHistory{}
	}
	if p.retrieveLimit <= 0 {
		p.retrieveLimit = defaultRetrieveLimit
	}
	return p, nil
}

// stageTrail accumulates per-stage outcomes for the audit record.
type stageTrail struct {
	mu     sync.Mutex
	stages []datatypes.StageResult
}

func (t *stageTrail) record(stage, outcome string, start time.Time, detail string) {
	elapsed := time.Since(start)
	if m := observability.DefaultMetrics; m != nil {
		m.StageDurationSeconds.WithLabelValues(stage).Observe(elapsed.Seconds())
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.stages = append(t.stages, datatypes.StageResult{
		Stage:      stage,
		Outcome:    outcome,
		DurationMs: elapsed.Milliseconds(),
		Detail:     detail,
		Timestamp:  time.Now().UTC(),
	})
}

// ValidateClaim runs one claim through the full state machine.
//
// # Description
//
//	Sequences threat scan, inbound sensitive-data detection, embed,
//	retrieve, generate, citation validation, contradiction detection,
//	business rules, outbound redaction, and the audit write.
//
// # Outputs
//
//   - *datatypes.ClaimDecision: The finalized decision. Nil only for
//     security rejections.
//   - error: A *SecurityViolationError for rejected input, or a
//     *ServiceFailureError (alongside an error-status decision) when an
//     external collaborator exhausted its retries. Guardrail failures are
//     not errors; they degrade the decision instead.
func (p *Pipeline) ValidateClaim(ctx context.Context, request datatypes.ClaimRequest, supportingDocumentIds []string) (*datatypes.ClaimDecision, error) {
	ctx, span := tracer.Start(ctx, "ValidateClaim")
	defer span.End()

	request.EnsureDefaults()
	trail := &stageTrail{}
	start := time.Now()

	span.SetAttributes(
		attribute.String("claim.policy_type", string(request.PolicyType)),
		attribute.Float64("claim.amount", request.ClaimAmount),
		attribute.Int("claim.document_count", len(supportingDocumentIds)),
	)

	if err := request.Validate(); err != nil {
		trail.record(StageReceived, StageRejected, start, "malformed request")
		span.SetStatus(codes.Error, "malformed request")
		return nil, &SecurityViolationError{Categories: []string{"malformed_request", err.Error()}}
	}
	trail.record(StageReceived, "accepted", start, "")

	// Threat scan runs before any external call; a rejection here costs
	// no tokens and leaks nothing to the generator.
	scanStart := time.Now()
	isClean, threats := p.scanner.Scan(request.Description)
	if !isClean {
		categories := p.scanner.Categories(threats)
		trail.record(StageThreatChecked, StageRejected, scanStart, fmt.Sprintf("%d threats", len(threats)))
		slog.Warn("Claim rejected by threat scan",
			"requestID", request.Id, "categories", categories, "threatCount", len(threats))
		p.writeAudit(ctx, request, nil, trail, categories)
		span.SetStatus(codes.Error, "threat scan rejection")
		return nil, &SecurityViolationError{Categories: categories}
	}
	trail.record(StageThreatChecked, "clean", scanStart, "")

	// Detect-only inbound pass: counts and categories are logged, the
	// description itself stays intact for the generator and is never
	// logged raw.
	if detected := p.masker.DetectTypes(request.Description); len(detected) > 0 {
		slog.Warn("Sensitive data detected in claim description",
			"requestID", request.Id, "categories", detected)
	}

	// Embed.
	embedStart := time.Now()
	vector, err := retryExternal(ctx, StageEmbedded, func(ctx context.Context) ([]float32, error) {
		return p.embedder.Embed(ctx, request.Description)
	})
	if err != nil {
		return p.errored(ctx, request, trail, StageEmbedded, embedStart, err)
	}
	trail.record(StageEmbedded, "ok", embedStart, fmt.Sprintf("dim=%d", len(vector)))

	// Retrieve. Document extraction runs concurrently; its results are
	// only needed after generation.
	type extractionResult struct {
		docs       []datatypes.SupportingDocument
		extraction *datatypes.ExtractionData
	}
	extractCh := make(chan extractionResult, 1)
	go func() {
		docs, extraction := p.extractDocuments(ctx, supportingDocumentIds, trail)
		extractCh <- extractionResult{docs: docs, extraction: extraction}
	}()

	retrieveStart := time.Now()
	evidence, err := retryExternal(ctx, StageRetrieved, func(ctx context.Context) (datatypes.EvidenceSet, error) {
		return p.retriever.Retrieve(ctx, vector, request.PolicyType, p.retrieveLimit)
	})
	if err != nil {
		return p.errored(ctx, request, trail, StageRetrieved, retrieveStart, err)
	}
	trail.record(StageRetrieved, "ok", retrieveStart, fmt.Sprintf("clauses=%d", len(evidence)))

	extracted := <-extractCh

	var decision *datatypes.ClaimDecision
	generated := false
	if len(evidence) == 0 {
		// An empty retrieval is an evidence gap, not a fault. The claim
		// goes to a human with the gap recorded.
		slog.Info("No policy evidence found, routing to manual review", "requestID", request.Id)
		decision = &datatypes.ClaimDecision{
			RequestId:       request.Id,
			Status:          datatypes.StatusManualReview,
			Explanation:     "No policy evidence could be retrieved for this claim; it requires human review.",
			ConfidenceScore: 0.0,
			MissingEvidence: []string{"no policy evidence found"},
		}
		decision.EnsureDefaults()
		trail.record(StageGenerated, "skipped", time.Now(), "no evidence")
	} else {
		// Generate.
		generateStart := time.Now()
		decision, err = retryExternal(ctx, StageGenerated, func(ctx context.Context) (*datatypes.ClaimDecision, error) {
			return p.generator.Generate(ctx, request, evidence)
		})
		if err != nil {
			if errors.Is(err, providers.ErrMalformedGeneration) {
				// Malformed output is a data outcome: treated exactly like
				// a citation validation failure, never retried.
				trail.record(StageGenerated, "malformed", generateStart, "")
				if m := observability.DefaultMetrics; m != nil {
					m.SubstitutionsTotal.WithLabelValues("malformed").Inc()
				}
				decision = p.substituteManualReview(request, nil,
					[]string{"generator produced malformed output: " + err.Error()})
			} else {
				return p.errored(ctx, request, trail, StageGenerated, generateStart, err)
			}
		} else {
			decision.RequestId = request.Id
			generated = true
			trail.record(StageGenerated, "ok", generateStart, fmt.Sprintf("status=%s", decision.Status))
		}
	}

	// Citation validation. Hard failures discard the generated decision;
	// the original text survives in the warning trail for audit. Internally
	// built substitutes carry no generated text to validate and pass
	// straight through, keeping their missing-evidence record intact.
	citationStart := time.Now()
	if !generated {
		trail.record(StageCitationChecked, "skipped", citationStart, "no generated decision")
	} else if citation := guardrails.ValidateCitations(*decision, evidence); !citation.Valid {
		slog.Warn("Citation validation failed, substituting manual review",
			"requestID", request.Id, "errors", len(citation.Errors))
		if m := observability.DefaultMetrics; m != nil {
			m.SubstitutionsTotal.WithLabelValues("citation").Inc()
		}
		decision = p.substituteManualReview(request, decision, citation.Errors)
		trail.record(StageCitationChecked, "failed", citationStart, fmt.Sprintf("errors=%d", len(citation.Errors)))
	} else {
		decision.ValidationWarnings = append(decision.ValidationWarnings, citation.Warnings...)
		trail.record(StageCitationChecked, "ok", citationStart, fmt.Sprintf("warnings=%d", len(citation.Warnings)))
	}

	// Contradiction detection.
	contradictionStart := time.Now()
	threshold, _ := p.engine.DecisionThreshold(request, *decision, len(extracted.docs) > 0)
	contradictions := guardrails.DetectContradictions(request, *decision, evidence, extracted.docs, threshold)
	decision.Contradictions = contradictions
	if m := observability.DefaultMetrics; m != nil {
		for _, contradiction := range contradictions {
			m.ContradictionsTotal.WithLabelValues(string(contradiction.Severity)).Inc()
		}
	}
	if guardrails.HasCritical(contradictions) {
		downgrade(decision)
		decision.Explanation = guardrails.Summarize(contradictions) + " " + decision.Explanation
	}
	trail.record(StageContradictionChecked, "ok", contradictionStart, fmt.Sprintf("found=%d", len(contradictions)))

	// Business rules.
	rulesStart := time.Now()
	history, histErr := p.history.RecentClaims(ctx, request.PolicyNumber, time.Now().Add(-p.historyWindow))
	if histErr != nil {
		// History is a heuristic input; fraud scoring degrades gracefully
		// without it.
		slog.Warn("Claim history lookup failed", "requestID", request.Id, "error", histErr)
	}
	decision = p.engine.Evaluate(rules.Input{
		Request:           request,
		Decision:          *decision,
		Evidence:          evidence,
		HasSupportingDocs: len(extracted.docs) > 0,
		History:           history,
		Extraction:        extracted.extraction,
	})
	trail.record(StageRuleApplied, "ok", rulesStart, fmt.Sprintf("mode=%s", decision.Routing.Mode))

	// Outbound redaction.
	redactStart := time.Now()
	decision.Explanation = p.masker.Redact(decision.Explanation)
	trail.record(StageRedacted, "ok", redactStart, "")

	// Audit, best effort, last step.
	p.writeAudit(ctx, request, decision, trail, nil)

	span.SetAttributes(
		attribute.String("decision.status", string(decision.Status)),
		attribute.Float64("decision.confidence", decision.ConfidenceScore),
	)
	slog.Info("Claim validated",
		"requestID", request.Id,
		"status", decision.Status,
		"confidence", decision.ConfidenceScore,
		"tier", decision.Routing.Tier,
		"durationMs", time.Since(start).Milliseconds())
	return decision, nil
}

// FinalizeClaim re-validates a claim with its full evidentiary set.
//
// The prior decision is not trusted or merged: finalization is an
// independent clean-slate run over the same request plus the complete
// document list, so a stale or tampered prior decision cannot leak into
// the outcome. The prior status is kept in the warning trail for the
// reviewer.
func (p *Pipeline) FinalizeClaim(ctx context.Context, request datatypes.ClaimRequest, prior datatypes.ClaimDecision, supportingDocumentIds []string) (*datatypes.ClaimDecision, error) {
	ctx, span := tracer.Start(ctx, "FinalizeClaim")
	defer span.End()

	decision, err := p.ValidateClaim(ctx, request, supportingDocumentIds)
	if decision != nil && prior.Status != "" {
		decision.ValidationWarnings = append(decision.ValidationWarnings,
			fmt.Sprintf("finalization re-run; prior status was %q with confidence %.2f", prior.Status, prior.ConfidenceScore))
	}
	return decision, err
}

// extractDocuments fetches supporting documents concurrently. Extraction
// absence or failure is tolerated: the document-consistency check is
// simply skipped for missing documents.
func (p *Pipeline) extractDocuments(ctx context.Context, documentIds []string, trail *stageTrail) ([]datatypes.SupportingDocument, *datatypes.ExtractionData) {
	if len(documentIds) == 0 {
		return nil, nil
	}

	start := time.Now()
	docs := make([]*datatypes.SupportingDocument, len(documentIds))
	extractions := make([]*datatypes.ExtractionData, len(documentIds))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxExtractionConcurrency)
	for i, id := range documentIds {
		g.Go(func() error {
			doc, extraction, err := p.extractor.Extract(ctx, id)
			if err != nil {
				slog.Warn("Document extraction failed, skipping document", "documentID", id, "error", err)
				return nil
			}
			docs[i] = doc
			extractions[i] = extraction
			return nil
		})
	}
	// Workers never return errors; Wait only synchronizes.
	_ = g.Wait()

	var out []datatypes.SupportingDocument
	var firstExtraction *datatypes.ExtractionData
	for i := range docs {
		if docs[i] != nil && docs[i].Text != "" {
			out = append(out, *docs[i])
		}
		if firstExtraction == nil && extractions[i] != nil {
			firstExtraction = extractions[i]
		}
	}
	trail.record("documents_extracted", "ok", start, fmt.Sprintf("requested=%d extracted=%d", len(documentIds), len(out)))
	return out, firstExtraction
}

// errored finalizes a pipeline fault: an error-status decision plus a
// ServiceFailureError for the caller.
func (p *Pipeline) errored(ctx context.Context, request datatypes.ClaimRequest, trail *stageTrail, stage string, start time.Time, err error) (*datatypes.ClaimDecision, error) {
	trail.record(stage, StageErrored, start, err.Error())
	slog.Error("External collaborator failed", "requestID", request.Id, "stage", stage, "error", err)

	decision := &datatypes.ClaimDecision{
		RequestId:       request.Id,
		Status:          datatypes.StatusError,
		Explanation:     "Claim validation could not complete because a backing service was unavailable. Please retry.",
		ConfidenceScore: 0.0,
		ValidationWarnings: []string{
			fmt.Sprintf("stage %s failed: %v", stage, err),
		},
	}
	decision.EnsureDefaults()
	p.writeAudit(ctx, request, decision, trail, nil)
	return decision, &ServiceFailureError{Stage: stage, Err: err}
}

// writeAudit appends the audit record. Failure is logged and alertable
// but never fails the caller's response.
func (p *Pipeline) writeAudit(ctx context.Context, request datatypes.ClaimRequest, decision *datatypes.ClaimDecision, trail *stageTrail, warnings []string) {
	record := datatypes.AuditRecord{
		RequestId:    request.Id,
		CallerId:     request.CallerId,
		PolicyNumber: request.PolicyNumber,
		PolicyType:   request.PolicyType,
		ClaimAmount:  request.ClaimAmount,
		Timestamp:    time.Now().UTC(),
		Warnings:     warnings,
	}
	trail.mu.Lock()
	record.Stages = append([]datatypes.StageResult(nil), trail.stages...)
	trail.mu.Unlock()
	if decision != nil {
		record.Status = decision.Status
		record.Confidence = decision.ConfidenceScore
		record.Warnings = append(record.Warnings, decision.ValidationWarnings...)
	}
	record.Id = record.RequestId + "-" + record.Timestamp.Format("20060102T150405.000000000")

	// The audit write must not inherit a cancelled request context: the
	// record is evidence of work already done.
	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := p.audit.Append(auditCtx, record); err != nil {
		if m := observability.DefaultMetrics; m != nil {
			m.AuditWriteFailuresTotal.Inc()
		}
		slog.Error("ALERT: audit write failed", "requestID", request.Id, "error", err)
	}
}

// substituteManualReview builds the replacement decision used when the
// generated one cannot be trusted. The discarded decision's explanation is
// retained in the warning trail, not shown to the caller. Warnings travel
// on the outbound decision, so the discarded text is masked before it is
// recorded.
func (p *Pipeline) substituteManualReview(request datatypes.ClaimRequest, discarded *datatypes.ClaimDecision, reasons []string) *datatypes.ClaimDecision {
	warnings := append([]string(nil), reasons...)
	if discarded != nil {
		warnings = append(warnings, fmt.Sprintf("discarded generated decision: status=%q explanation=%q",
			discarded.Status, p.masker.Redact(discarded.Explanation)))
	}
	decision := &datatypes.ClaimDecision{
		RequestId:          request.Id,
		Status:             datatypes.StatusManualReview,
		Explanation:        "The generated decision failed validation and has been routed to a human reviewer.",
		ConfidenceScore:    0.0,
		ValidationWarnings: warnings,
	}
	decision.EnsureDefaults()
	return decision
}

// downgrade moves a decision to manual review. Error is stickier than
// manual review and is never overwritten.
func downgrade(d *datatypes.ClaimDecision) {
	if d.Status != datatypes.StatusError {
		d.Status = datatypes.StatusManualReview
	}
}

// retryExternal runs an external collaborator call with bounded retries
// and exponential backoff, respecting context cancellation between
// attempts. Malformed-generation errors are never retried: model output is
// deterministic enough that retrying wastes the budget.
func retryExternal[T any](ctx context.Context, stage string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	retryDelay := initialRetryDelay

	for attempt := 0; attempt <= maxExternalRetries; attempt++ {
		if attempt > 0 {
			slog.Info("Retrying external call",
				"stage", stage, "attempt", attempt, "delay", retryDelay, "lastError", lastErr)
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(retryDelay):
			}
			retryDelay *= 2
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if errors.Is(err, providers.ErrMalformedGeneration) || ctx.Err() != nil {
			return zero, err
		}
	}

	return zero, fmt.Errorf("%s failed after %d attempts: %w", stage, maxExternalRetries+1, lastErr)
}
