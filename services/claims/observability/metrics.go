// Copyright (C) 2025 Clearline AI (engineering@clearline.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package observability provides Prometheus metrics for the claims service.
//
// # Description
//
// Metrics cover the whole validation funnel:
//   - Request counters (by endpoint and outcome)
//   - Decision counters (by final status and processing mode)
//   - Guardrail counters (threat rejections, contradictions, substitutions)
//   - Stage latency histograms
//   - Audit write failures (these page; an unauditable decision is a
//     compliance incident, not a warning)
//
// # Integration
//
// Metrics are exposed via the /metrics endpoint. Use with Prometheus +
// Grafana for dashboards and alerting.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// Metric Definitions
// =============================================================================

// Namespace for all metrics
const metricsNamespace = "clearline"

// Subsystem for claim validation metrics
const validationSubsystem = "validation"

// ValidationMetrics holds all Prometheus metrics for claim validation.
//
// # Description
//
// Provides counters and histograms for monitoring throughput, guardrail
// activity, and stage latency. Initialize once at startup via InitMetrics().
//
// # Fields
//
//   - RequestsTotal: Counter of validation requests by endpoint and outcome
//   - DecisionsTotal: Counter of final decisions by status and mode
//   - ThreatRejectionsTotal: Counter of requests rejected before processing
//   - ContradictionsTotal: Counter of detected contradictions by severity
//   - SubstitutionsTotal: Counter of generated decisions discarded by guardrails
//   - StageDurationSeconds: Histogram of per-stage latency
//   - RateLimitedTotal: Counter of requests refused at admission
//   - AuditWriteFailuresTotal: Counter of failed audit appends
//
// # Thread Safety
//
// All operations are thread-safe.
type ValidationMetrics struct {
	// RequestsTotal counts validation requests by endpoint and outcome.
	// Labels: endpoint (validate, finalize), outcome (done, rejected, errored)
	RequestsTotal *prometheus.CounterVec

	// DecisionsTotal counts final decisions by status and processing mode.
	// Labels: status (covered, not_covered, ...), mode (auto_approve, ...)
	DecisionsTotal *prometheus.CounterVec

	// ThreatRejectionsTotal counts requests rejected by the threat scanner.
	// Labels: category (instruction_override, data_exfiltration, ...)
	ThreatRejectionsTotal *prometheus.CounterVec

	// ContradictionsTotal counts contradictions found post-generation.
	// Labels: severity (low, medium, high, critical)
	ContradictionsTotal *prometheus.CounterVec

	// SubstitutionsTotal counts generated decisions that guardrails
	// discarded and replaced with a manual-review decision.
	// Labels: reason (citation, malformed)
	SubstitutionsTotal *prometheus.CounterVec

	// StageDurationSeconds measures per-stage pipeline latency.
	// Labels: stage (threat_checked, embedded, retrieved, generated, ...)
	StageDurationSeconds *prometheus.HistogramVec

	// RateLimitedTotal counts requests refused at admission control.
	// Labels: endpoint
	RateLimitedTotal *prometheus.CounterVec

	// AuditWriteFailuresTotal counts audit appends that failed after the
	// decision was already produced.
	AuditWriteFailuresTotal prometheus.Counter
}

// DefaultMetrics is the singleton instance of ValidationMetrics.
// Initialized by InitMetrics().
var DefaultMetrics *ValidationMetrics

// InitMetrics initializes the default metrics instance.
//
// # Description
//
// Creates and registers all Prometheus metrics. Should be called once
// at application startup, after the Prometheus registry is available.
//
// # Outputs
//
//   - *ValidationMetrics: The initialized metrics instance.
//
// # Examples
//
//	func main() {
//	    observability.InitMetrics()
//	    // ... start server ...
//	}
//
// # Limitations
//
//   - Panics if called twice (duplicate registration).
//
// # Assumptions
//
//   - Prometheus default registry is available.
func InitMetrics() *ValidationMetrics {
	DefaultMetrics = &ValidationMetrics{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: validationSubsystem,
				Name:      "requests_total",
				Help:      "Total validation requests by endpoint and outcome",
			},
			[]string{"endpoint", "outcome"},
		),

		DecisionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: validationSubsystem,
				Name:      "decisions_total",
				Help:      "Final decisions by claim status and processing mode",
			},
			[]string{"status", "mode"},
		),

		ThreatRejectionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: validationSubsystem,
				Name:      "threat_rejections_total",
				Help:      "Requests rejected by the threat scanner, by category",
			},
			[]string{"category"},
		),

		ContradictionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: validationSubsystem,
				Name:      "contradictions_total",
				Help:      "Contradictions detected post-generation, by severity",
			},
			[]string{"severity"},
		),

		SubstitutionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: validationSubsystem,
				Name:      "substitutions_total",
				Help:      "Generated decisions discarded and substituted, by reason",
			},
			[]string{"reason"},
		),

		StageDurationSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: validationSubsystem,
				Name:      "stage_duration_seconds",
				Help:      "Per-stage pipeline latency in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"stage"},
		),

		RateLimitedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: validationSubsystem,
				Name:      "rate_limited_total",
				Help:      "Requests refused at admission control",
			},
			[]string{"endpoint"},
		),

		AuditWriteFailuresTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: validationSubsystem,
				Name:      "audit_write_failures_total",
				Help:      "Audit appends that failed after a decision was produced",
			},
		),
	}
	return DefaultMetrics
}
