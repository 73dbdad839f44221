package llm

import (
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// BackoffConfig configures the wait between attempts after a transient
// failure. Providers never retry on their own; the caller owns the attempt
// budget and asks Backoff how long to wait.
type BackoffConfig struct {
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
}

// DefaultBackoff returns the backoff used between generation attempts.
func DefaultBackoff() BackoffConfig {
	return BackoffConfig{
		InitialWait: 200 * time.Millisecond,
		MaxWait:     5 * time.Second,
		Multiplier:  2.0,
	}
}

// Wait computes the wait duration before attempt+1, given the error that
// ended the attempt. A RetryAfter hint from a rate limit takes precedence.
func (c BackoffConfig) Wait(attempt int, err error) time.Duration {
	var rl *ErrRateLimit
	if errors.As(err, &rl) && rl.RetryAfter > 0 {
		return rl.RetryAfter
	}

	wait := float64(c.InitialWait) * math.Pow(c.Multiplier, float64(attempt))
	if wait > float64(c.MaxWait) {
		wait = float64(c.MaxWait)
	}

	// Add ±20% jitter.
	jitter := wait * 0.2 * (2*rand.Float64() - 1)
	wait += jitter

	if wait < 0 {
		wait = 0
	}
	return time.Duration(wait)
}

// IsTransient reports whether a provider error may go away on a later call.
// Capability errors and truncation are permanent for a given request.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var capErr *ErrCapabilityUnavailable
	if errors.As(err, &capErr) {
		return false
	}
	var maxTok *ErrMaxTokensExceeded
	return !errors.As(err, &maxTok)
}
