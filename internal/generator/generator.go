// Package generator turns a grounded prompt into one candidate question
// with a single LLM call.
package generator

import (
	"context"
	"fmt"

	"github.com/examforge/examforge/internal/exam"
)

// Client produces one candidate question per call. It never retries and
// never fills in missing fields; every failure is a *Failure.
type Client interface {
	Generate(ctx context.Context, p Prompt) (exam.Candidate, error)
}

// Prompt is everything a single generation call needs.
type Prompt struct {
	Exam    exam.Name
	Stream  string
	Section string
	Type    exam.AnswerType
	Topic   string
	Year    int

	// Context is the grounding retrieved for the slot, most similar first.
	Context []exam.HistoricalQuestion

	// Avoid lists question texts the result must not resemble.
	Avoid []string

	// Correction describes why the previous attempt was rejected. Empty on
	// the first attempt.
	Correction string
}

// FailureKind classifies a failed generation call.
type FailureKind string

const (
	// RateLimited means the provider throttled the call. Transient.
	RateLimited FailureKind = "rate_limited"

	// Timeout means the call exceeded its deadline. Transient.
	Timeout FailureKind = "timeout"

	// MalformedResponse means the output did not parse into a candidate.
	// A regenerated answer may succeed.
	MalformedResponse FailureKind = "malformed_response"

	// CapabilityUnavailable means no call can succeed with the current
	// configuration (credentials, model). Not retryable.
	CapabilityUnavailable FailureKind = "capability_unavailable"

	// Upstream is a provider-side or network error. Transient.
	Upstream FailureKind = "upstream"
)

// Failure is the error returned by Client.Generate.
type Failure struct {
	Kind FailureKind
	Err  error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("generation failed: %s", f.Kind)
	}
	return fmt.Sprintf("generation failed: %s: %v", f.Kind, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Retryable reports whether another call may succeed.
func (f *Failure) Retryable() bool {
	return f.Kind != CapabilityUnavailable
}
