package compose

import (
	"errors"
	"fmt"
	"strings"

	"github.com/examforge/examforge/internal/exam"
)

// Sentinels for matching run-level failures with errors.Is.
var (
	ErrInvalidSpec           = exam.ErrInvalidSpec
	ErrCapabilityUnavailable = errors.New("generation capability unavailable")
	ErrSlotUnfillable        = errors.New("slot unfillable")
	ErrCanceled              = errors.New("composition canceled")
)

// Kind classifies a run-level failure.
type Kind string

const (
	InvalidSpec           Kind = "invalid_spec"
	CapabilityUnavailable Kind = "capability_unavailable"
	SlotUnfillable        Kind = "slot_unfillable"
	Canceled              Kind = "canceled"
)

func (k Kind) sentinel() error {
	switch k {
	case InvalidSpec:
		return ErrInvalidSpec
	case CapabilityUnavailable:
		return ErrCapabilityUnavailable
	case SlotUnfillable:
		return ErrSlotUnfillable
	case Canceled:
		return ErrCanceled
	default:
		return nil
	}
}

// Error is the single failure returned by Compose. Section and Slot are
// set when a specific slot caused it; Slot is the 0-based position within
// the section.
type Error struct {
	Kind    Kind
	Exam    exam.Name
	Stream  string
	Section string
	Slot    int
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "compose %s", e.Exam)
	if e.Stream != "" {
		fmt.Fprintf(&b, "/%s", e.Stream)
	}
	if e.Section != "" {
		fmt.Fprintf(&b, " section %s slot %d", e.Section, e.Slot)
	}
	fmt.Fprintf(&b, ": %s", e.Kind.sentinel())
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel for e.Kind.
func (e *Error) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}
