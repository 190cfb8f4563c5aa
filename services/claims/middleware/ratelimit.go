// Copyright (C) 2025 Clearline AI (engineering@clearline.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package middleware provides HTTP middleware for the claims service.
//
// This package contains the admission-control middleware that runs before
// any validation work starts. Rate limiting is deliberately the first check
// in the chain: a caller over quota gets a 429 without the service spending
// a single embedding or generation call on their request.
//
// # Request Flow
//
//	Request
//	   │
//	   ▼
//	RateLimitMiddleware
//	   │
//	   ├─► Resolve caller id from "X-Caller-Id" (fallback: client IP)
//	   │
//	   ├─► Per-caller fixed window: over quota ──► 429 + Retry-After
//	   │
//	   ├─► Global token bucket backstop: saturated ──► 429
//	   │
//	   └─► Store caller id in context
//	           │
//	           ▼
//	       Handler (retrieves via GetCallerId)
package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/ClearlineAI/ClearlineClaims/services/claims/observability"
	"github.com/ClearlineAI/ClearlineClaims/services/claims/pipeline"
)

// =============================================================================
// Context Keys
// =============================================================================

// callerIdKey is the context key for the resolved caller identity.
// Using a service-prefixed key prevents collisions with other context values.
const callerIdKey = "clearline_caller_id"

// callerIdHeader is the request header carrying the caller identity.
const callerIdHeader = "X-Caller-Id"

// SetCallerId stores the resolved caller identity in the Gin context.
func SetCallerId(c *gin.Context, callerId string) {
	c.Set(callerIdKey, callerId)
}

// GetCallerId retrieves the caller identity resolved by the rate limit
// middleware. Returns "anonymous" if the middleware did not run.
func GetCallerId(c *gin.Context) string {
	if v, ok := c.Get(callerIdKey); ok {
		if id, ok := v.(string); ok && id != "" {
			return id
		}
	}
	return "anonymous"
}

// =============================================================================
// Rate Limiter
// =============================================================================

// RateLimiterConfig controls both admission layers.
//
// # Fields
//
//   - RequestsPerWindow: per-caller quota inside one fixed window.
//   - Window: length of the fixed window. Counters reset at window rollover.
//   - GlobalRate: sustained requests/second the whole service admits.
//   - GlobalBurst: burst size for the global token bucket.
type RateLimiterConfig struct {
	RequestsPerWindow int
	Window            time.Duration
	GlobalRate        rate.Limit
	GlobalBurst       int
}

// DefaultRateLimiterConfig returns limits suitable for a single-node
// deployment fronted by one pipeline worker pool.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		RequestsPerWindow: 60,
		Window:            time.Minute,
		GlobalRate:        rate.Limit(50),
		GlobalBurst:       100,
	}
}

// callerWindow is one caller's counter inside the current fixed window.
type callerWindow struct {
	windowStart time.Time
	count       int
}

// RateLimiter enforces a per-caller fixed window with a global token
// bucket backstop. The fixed window is the contract callers see
// (N requests per window, hard reset at rollover); the token bucket
// protects the downstream model services from aggregate load even when
// every individual caller is inside quota.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
type RateLimiter struct {
	cfg    RateLimiterConfig
	global *rate.Limiter

	mu      sync.Mutex
	callers map[string]*callerWindow
	ops     int
}

// NewRateLimiter creates a RateLimiter with the given config. Zero or
// negative fields fall back to DefaultRateLimiterConfig values.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	def := DefaultRateLimiterConfig()
	if cfg.RequestsPerWindow <= 0 {
		cfg.RequestsPerWindow = def.RequestsPerWindow
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.GlobalRate <= 0 {
		cfg.GlobalRate = def.GlobalRate
	}
	if cfg.GlobalBurst <= 0 {
		cfg.GlobalBurst = def.GlobalBurst
	}
	return &RateLimiter{
		cfg:     cfg,
		global:  rate.NewLimiter(cfg.GlobalRate, cfg.GlobalBurst),
		callers: make(map[string]*callerWindow),
	}
}

// Allow records one request for callerId and reports whether it is
// admitted. When denied, the returned error is a *pipeline.RateLimitError
// carrying the time until the caller's window resets.
func (l *RateLimiter) Allow(callerId string, now time.Time) error {
	l.mu.Lock()
	w, ok := l.callers[callerId]
	if !ok || now.Sub(w.windowStart) >= l.cfg.Window {
		w = &callerWindow{windowStart: now}
		l.callers[callerId] = w
	}
	w.count++
	over := w.count > l.cfg.RequestsPerWindow
	retryAfter := w.windowStart.Add(l.cfg.Window).Sub(now)
	l.ops++
	if l.ops%1024 == 0 {
		l.sweepLocked(now)
	}
	l.mu.Unlock()

	if over {
		return &pipeline.RateLimitError{CallerId: callerId, RetryAfter: retryAfter}
	}
	if !l.global.Allow() {
		return &pipeline.RateLimitError{CallerId: callerId, RetryAfter: time.Second}
	}
	return nil
}

// sweepLocked drops caller windows that ended more than one window ago
// so the map does not grow without bound. Caller must hold l.mu.
func (l *RateLimiter) sweepLocked(now time.Time) {
	for id, w := range l.callers {
		if now.Sub(w.windowStart) >= 2*l.cfg.Window {
			delete(l.callers, id)
		}
	}
}

// =============================================================================
// Middleware
// =============================================================================

// RateLimitMiddleware resolves the caller identity and applies both
// admission layers before any handler runs. Rejected requests get a 429
// with a Retry-After header and never reach the validation pipeline.
func RateLimitMiddleware(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		callerId := c.GetHeader(callerIdHeader)
		if callerId == "" {
			callerId = c.ClientIP()
		}
		SetCallerId(c, callerId)

		now := time.Now()
		if err := limiter.Allow(callerId, now); err != nil {
			if m := observability.DefaultMetrics; m != nil {
				m.RateLimitedTotal.WithLabelValues(c.FullPath()).Inc()
			}
			rle, _ := err.(*pipeline.RateLimitError)
			retryAfter := time.Second
			if rle != nil && rle.RetryAfter > 0 {
				retryAfter = rle.RetryAfter
			}
			c.Header("Retry-After", strconv.Itoa(int(retryAfter.Seconds()+0.999)))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":               "rate limit exceeded",
				"caller_id":           callerId,
				"retry_after_seconds": int(retryAfter.Seconds() + 0.999),
			})
			return
		}

		c.Next()
	}
}
