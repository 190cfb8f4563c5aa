// Copyright (C) 2025 Clearline AI (engineering@clearline.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package pipeline

import (
	"fmt"
	"strings"
	"time"
)

// SecurityViolationError is returned when the threat scan rejects the
// input or the request itself is malformed. The external services are
// never invoked for these requests.
//
// Categories carries the matched pattern families, never the offending
// substrings, so rejection responses cannot echo attack payloads back.
type SecurityViolationError struct {
	Categories []string
}

// Error implements the error interface for SecurityViolationError.
func (e *SecurityViolationError) Error() string {
	return fmt.Sprintf("request rejected by security screening: %s", strings.Join(e.Categories, ", "))
}

// IsSecurityViolation checks if an error is a SecurityViolationError.
func IsSecurityViolation(err error) bool {
	_, ok := err.(*SecurityViolationError)
	return ok
}

// RateLimitError is returned before any pipeline work when a caller
// exceeds their request window.
type RateLimitError struct {
	CallerId   string
	RetryAfter time.Duration
}

// Error implements the error interface for RateLimitError.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for caller %s, retry after %s", e.CallerId, e.RetryAfter)
}

// IsRateLimit checks if an error is a RateLimitError.
func IsRateLimit(err error) bool {
	_, ok := err.(*RateLimitError)
	return ok
}

// ServiceFailureError is returned when an external collaborator call
// exhausted its retry budget. The caller receives an error-status decision
// alongside it and is expected to retry the whole request later.
type ServiceFailureError struct {
	Stage string
	Err   error
}

// Error implements the error interface for ServiceFailureError.
func (e *ServiceFailureError) Error() string {
	return fmt.Sprintf("external service failed at stage %s: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying collaborator error.
func (e *ServiceFailureError) Unwrap() error {
	return e.Err
}

// IsServiceFailure checks if an error is a ServiceFailureError.
func IsServiceFailure(err error) bool {
	_, ok := err.(*ServiceFailureError)
	return ok
}
