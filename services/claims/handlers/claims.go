// Copyright (C) 2025 Clearline AI (engineering@clearline.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ClearlineAI/ClearlineClaims/services/claims/datatypes"
	"github.com/ClearlineAI/ClearlineClaims/services/claims/middleware"
	"github.com/ClearlineAI/ClearlineClaims/services/claims/observability"
	"github.com/ClearlineAI/ClearlineClaims/services/claims/pipeline"
)

// ValidateClaimRequest is the body for POST /v1/claims/validate.
type ValidateClaimRequest struct {
	Request               datatypes.ClaimRequest `json:"request"`
	SupportingDocumentIds []string               `json:"supporting_document_ids"`
}

// FinalizeClaimRequest is the body for POST /v1/claims/finalize.
// The prior decision is echoed back so the re-run can flag any status
// drift between preliminary validation and finalization.
type FinalizeClaimRequest struct {
	Request               datatypes.ClaimRequest  `json:"request"`
	PriorDecision         datatypes.ClaimDecision `json:"prior_decision"`
	SupportingDocumentIds []string                `json:"supporting_document_ids"`
}

// ValidateClaim runs a claim through the full validation pipeline.
//
// # Description
//
// Binds the request body, stamps the caller identity resolved by the
// rate-limit middleware, and maps the pipeline's error taxonomy onto
// HTTP statuses:
//
//   - security violation  -> 400 (categories only, never the payload)
//   - service failure     -> 502 (the error-status decision is included)
//   - success             -> 200 with the final decision
//
// A decision whose status is "manual_review" is still a 200: escalation
// is a valid outcome, not a transport error.
func ValidateClaim(pipe *pipeline.Pipeline, metrics *observability.ValidationMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ValidateClaimRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		if req.Request.CallerId == "" {
			req.Request.CallerId = middleware.GetCallerId(c)
		}

		decision, err := pipe.ValidateClaim(c.Request.Context(), req.Request, req.SupportingDocumentIds)
		writeDecision(c, "validate", metrics, decision, err)
	}
}

// FinalizeClaim re-runs the full pipeline from a clean slate before a
// decision is committed. Nothing from the preliminary run is trusted;
// only a status drift between the two runs is surfaced as a warning.
func FinalizeClaim(pipe *pipeline.Pipeline, metrics *observability.ValidationMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req FinalizeClaimRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		if req.Request.CallerId == "" {
			req.Request.CallerId = middleware.GetCallerId(c)
		}

		decision, err := pipe.FinalizeClaim(c.Request.Context(), req.Request, req.PriorDecision, req.SupportingDocumentIds)
		writeDecision(c, "finalize", metrics, decision, err)
	}
}

// writeDecision translates a pipeline result into the HTTP response and
// records the request outcome metrics.
func writeDecision(c *gin.Context, endpoint string, metrics *observability.ValidationMetrics,
	decision *datatypes.ClaimDecision, err error) {

	switch {
	case err == nil:
		if metrics != nil {
			metrics.RequestsTotal.WithLabelValues(endpoint, "done").Inc()
			mode := ""
			if decision.Routing != nil {
				mode = string(decision.Routing.Mode)
			}
			metrics.DecisionsTotal.WithLabelValues(string(decision.Status), mode).Inc()
		}
		c.JSON(http.StatusOK, decision)

	case pipeline.IsSecurityViolation(err):
		sve := err.(*pipeline.SecurityViolationError)
		slog.Warn("Claim request rejected by security screening",
			"endpoint", endpoint, "categories", sve.Categories)
		if metrics != nil {
			metrics.RequestsTotal.WithLabelValues(endpoint, "rejected").Inc()
			for _, cat := range sve.Categories {
				metrics.ThreatRejectionsTotal.WithLabelValues(cat).Inc()
			}
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      "request rejected by security screening",
			"categories": sve.Categories,
		})

	case pipeline.IsServiceFailure(err):
		sfe := err.(*pipeline.ServiceFailureError)
		slog.Error("Claim validation failed on a dependency",
			"endpoint", endpoint, "stage", sfe.Stage, "error", sfe.Err)
		if metrics != nil {
			metrics.RequestsTotal.WithLabelValues(endpoint, "errored").Inc()
		}
		// The error-status decision is still returned so the caller has
		// an auditable record of the failed run.
		c.JSON(http.StatusBadGateway, gin.H{
			"error":    err.Error(),
			"stage":    sfe.Stage,
			"decision": decision,
		})

	default:
		slog.Error("Claim validation failed", "endpoint", endpoint, "error", err)
		if metrics != nil {
			metrics.RequestsTotal.WithLabelValues(endpoint, "errored").Inc()
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
