// Copyright (C) 2025 Clearline AI (engineering@clearline.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ClearlineAI/ClearlineClaims/services/claims/handlers"
	"github.com/ClearlineAI/ClearlineClaims/services/claims/middleware"
	"github.com/ClearlineAI/ClearlineClaims/services/claims/observability"
	"github.com/ClearlineAI/ClearlineClaims/services/claims/pipeline"
	"github.com/ClearlineAI/ClearlineClaims/services/claims/providers"
)

func SetupRoutes(router *gin.Engine, pipe *pipeline.Pipeline, audit providers.AuditSink,
	limiter *middleware.RateLimiter, metrics *observability.ValidationMetrics) {

	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	v1.Use(middleware.RateLimitMiddleware(limiter))
	{
		claims := v1.Group("/claims")
		{
			claims.POST("/validate", handlers.ValidateClaim(pipe, metrics))
			claims.POST("/finalize", handlers.FinalizeClaim(pipe, metrics))
		}
		v1.GET("/audit", handlers.QueryAudit(audit))
	}
}
