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
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ClearlineAI/ClearlineClaims/services/claims/datatypes"
	"github.com/ClearlineAI/ClearlineClaims/services/claims/providers"
)

// maxAuditPageSize caps a single audit query response.
const maxAuditPageSize = 500

// QueryAudit returns audit records matching the query parameters.
//
// # Description
//
// Supported query parameters, all optional:
//
//   - policy_number: exact match
//   - status: final claim status (covered, not_covered, ...)
//   - since, until: RFC 3339 timestamps bounding the record window
//   - limit: page size, capped at maxAuditPageSize
//
// Records come back newest first. Audit records already contain only
// redacted text, so this endpoint needs no outbound masking pass.
func QueryAudit(sink providers.AuditSink) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter, err := auditFilterFromQuery(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		records, err := sink.Query(c.Request.Context(), filter)
		if err != nil {
			slog.Error("Audit query failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query audit records"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"count":   len(records),
			"records": records,
		})
	}
}

// auditFilterFromQuery parses and bounds the audit query parameters.
func auditFilterFromQuery(c *gin.Context) (datatypes.AuditFilter, error) {
	filter := datatypes.AuditFilter{
		PolicyNumber: c.Query("policy_number"),
		Status:       datatypes.ClaimStatus(c.Query("status")),
		Limit:        maxAuditPageSize,
	}

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return filter, &queryParamError{"limit", raw}
		}
		if limit < maxAuditPageSize {
			filter.Limit = limit
		}
	}
	if raw := c.Query("since"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, &queryParamError{"since", raw}
		}
		filter.Since = ts
	}
	if raw := c.Query("until"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, &queryParamError{"until", raw}
		}
		filter.Until = ts
	}
	return filter, nil
}

type queryParamError struct {
	param string
	value string
}

func (e *queryParamError) Error() string {
	return "invalid value for query parameter " + e.param + ": " + e.value
}
