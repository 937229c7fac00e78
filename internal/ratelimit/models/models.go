package models

import (
	"math"
	"time"

	dErrors "nidapi/pkg/domain-errors"
)

// RateLimitResult represents the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed    bool      `json:"allowed"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int       `json:"retry_after,omitempty"` // seconds, only set when not allowed
}

// Policy is the per-principal request budget.
type Policy struct {
	RequestsPerWindow int
	Window            time.Duration
}

// NewPolicy validates a request budget.
func NewPolicy(requests int, window time.Duration) (Policy, error) {
	if requests <= 0 {
		return Policy{}, dErrors.New(dErrors.CodeInvariantViolation, "requests per window must be positive")
	}
	if window <= 0 {
		return Policy{}, dErrors.New(dErrors.CodeInvariantViolation, "window must be positive")
	}
	return Policy{RequestsPerWindow: requests, Window: window}, nil
}

// RetryAfterSeconds rounds a wait up to whole seconds, never below 1, so a
// denied caller is never told to retry immediately.
func RetryAfterSeconds(wait time.Duration) int {
	secs := int(math.Ceil(wait.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
