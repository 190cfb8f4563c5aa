// Copyright (C) 2025 Clearline AI (engineering@clearline.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/ClearlineAI/ClearlineClaims/services/claims/pipeline"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testConfig() RateLimiterConfig {
	return RateLimiterConfig{
		RequestsPerWindow: 3,
		Window:            time.Minute,
		GlobalRate:        rate.Limit(1000),
		GlobalBurst:       1000,
	}
}

// =============================================================================
// RateLimiter Tests
// =============================================================================

func TestRateLimiter_AllowsWithinWindow(t *testing.T) {
	limiter := NewRateLimiter(testConfig())
	now := time.Now()

	for i := 0; i < 3; i++ {
		assert.NoError(t, limiter.Allow("adjuster-1", now))
	}
}

func TestRateLimiter_DeniesOverWindow(t *testing.T) {
	limiter := NewRateLimiter(testConfig())
	now := time.Now()

	for i := 0; i < 3; i++ {
		require.NoError(t, limiter.Allow("adjuster-1", now))
	}

	err := limiter.Allow("adjuster-1", now)
	require.Error(t, err)
	assert.True(t, pipeline.IsRateLimit(err))

	rle := err.(*pipeline.RateLimitError)
	assert.Equal(t, "adjuster-1", rle.CallerId)
	assert.Greater(t, rle.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, rle.RetryAfter, time.Minute)
}

func TestRateLimiter_WindowResets(t *testing.T) {
	limiter := NewRateLimiter(testConfig())
	start := time.Now()

	for i := 0; i < 3; i++ {
		require.NoError(t, limiter.Allow("adjuster-1", start))
	}
	require.Error(t, limiter.Allow("adjuster-1", start))

	// One full window later the counter starts over.
	later := start.Add(time.Minute)
	assert.NoError(t, limiter.Allow("adjuster-1", later))
}

func TestRateLimiter_CallersAreIndependent(t *testing.T) {
	limiter := NewRateLimiter(testConfig())
	now := time.Now()

	for i := 0; i < 3; i++ {
		require.NoError(t, limiter.Allow("adjuster-1", now))
	}
	require.Error(t, limiter.Allow("adjuster-1", now))

	// A different caller still has a full quota.
	assert.NoError(t, limiter.Allow("adjuster-2", now))
}

func TestRateLimiter_GlobalBackstop(t *testing.T) {
	cfg := testConfig()
	cfg.RequestsPerWindow = 1000
	cfg.GlobalRate = rate.Limit(1)
	cfg.GlobalBurst = 2
	limiter := NewRateLimiter(cfg)
	now := time.Now()

	// Distinct callers so the per-caller window never trips, only the
	// shared token bucket.
	require.NoError(t, limiter.Allow("a", now))
	require.NoError(t, limiter.Allow("b", now))
	err := limiter.Allow("c", now)
	require.Error(t, err)
	assert.True(t, pipeline.IsRateLimit(err))
}

func TestNewRateLimiter_ZeroConfigUsesDefaults(t *testing.T) {
	limiter := NewRateLimiter(RateLimiterConfig{})
	def := DefaultRateLimiterConfig()

	assert.Equal(t, def.RequestsPerWindow, limiter.cfg.RequestsPerWindow)
	assert.Equal(t, def.Window, limiter.cfg.Window)
}

// =============================================================================
// Middleware Tests
// =============================================================================

func newLimitedRouter(limiter *RateLimiter) *gin.Engine {
	router := gin.New()
	router.Use(RateLimitMiddleware(limiter))
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"caller": GetCallerId(c)})
	})
	return router
}

func TestRateLimitMiddleware_AdmitsAndStoresCallerId(t *testing.T) {
	router := newLimitedRouter(NewRateLimiter(testConfig()))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/ping", nil)
	req.Header.Set("X-Caller-Id", "adjuster-7")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "adjuster-7")
}

func TestRateLimitMiddleware_Returns429WithRetryAfter(t *testing.T) {
	router := newLimitedRouter(NewRateLimiter(testConfig()))

	var w *httptest.ResponseRecorder
	for i := 0; i < 4; i++ {
		w = httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/ping", nil)
		req.Header.Set("X-Caller-Id", "adjuster-7")
		router.ServeHTTP(w, req)
	}

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "rate limit exceeded")
}

func TestRateLimitMiddleware_FallsBackToClientIP(t *testing.T) {
	router := newLimitedRouter(NewRateLimiter(testConfig()))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/ping", nil)
	req.RemoteAddr = "192.0.2.10:4444"
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "192.0.2.10")
}

func TestGetCallerId_DefaultsWhenUnset(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Equal(t, "anonymous", GetCallerId(c))
}
