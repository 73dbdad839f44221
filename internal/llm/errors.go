package llm

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ErrRateLimit indicates the provider returned a rate limit error (429).
type ErrRateLimit struct {
	RetryAfter time.Duration
	Err        error
}

func (e *ErrRateLimit) Error() string {
	return fmt.Sprintf("rate limited (retry after %s): %v", e.RetryAfter, e.Err)
}

func (e *ErrRateLimit) Unwrap() error { return e.Err }

// ErrInvalidResponse indicates the LLM returned content that does not
// conform to the requested schema.
type ErrInvalidResponse struct {
	Content json.RawMessage
	Err     error
}

func (e *ErrInvalidResponse) Error() string {
	return fmt.Sprintf("invalid LLM response: %v", e.Err)
}

func (e *ErrInvalidResponse) Unwrap() error { return e.Err }

// ErrProviderUnavailable indicates the provider is down or unreachable.
// It is transient: a later call may succeed.
type ErrProviderUnavailable struct {
	Err error
}

func (e *ErrProviderUnavailable) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("LLM provider unavailable: %v", e.Err)
	}
	return "LLM provider unavailable"
}

func (e *ErrProviderUnavailable) Unwrap() error { return e.Err }

// ErrCapabilityUnavailable indicates the provider cannot serve any request
// with the current configuration: missing or rejected credentials, unknown
// model. Retrying does not help.
type ErrCapabilityUnavailable struct {
	Reason string
	Err    error
}

func (e *ErrCapabilityUnavailable) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("LLM capability unavailable: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("LLM capability unavailable: %s", e.Reason)
}

func (e *ErrCapabilityUnavailable) Unwrap() error { return e.Err }

// ErrMaxTokensExceeded indicates the response was truncated because it
// hit the MaxTokens limit.
type ErrMaxTokensExceeded struct {
	Content json.RawMessage
}

func (e *ErrMaxTokensExceeded) Error() string {
	return "LLM response truncated: max tokens exceeded"
}

// mapHTTPStatus classifies an API error by HTTP status. Shared by the
// SDK-specific error mappers.
func mapHTTPStatus(status int, retryAfter time.Duration, err error) error {
	switch {
	case status == http.StatusTooManyRequests:
		return &ErrRateLimit{RetryAfter: retryAfter, Err: err}
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &ErrCapabilityUnavailable{Reason: "credential rejected", Err: err}
	case status == http.StatusNotFound:
		return &ErrCapabilityUnavailable{Reason: "model not found", Err: err}
	default:
		return &ErrProviderUnavailable{Err: err}
	}
}
