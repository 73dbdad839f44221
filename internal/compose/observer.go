package compose

import (
	"time"

	"github.com/examforge/examforge/internal/exam"
)

// SlotState is a state of the per-slot machine.
type SlotState string

const (
	StatePending          SlotState = "pending"
	StateRetrieving       SlotState = "retrieving"
	StateGenerating       SlotState = "generating"
	StateValidating       SlotState = "validating"
	StateRetrying         SlotState = "retrying"
	StateAccepted         SlotState = "accepted"
	StateFallbackToCorpus SlotState = "fallback_to_corpus"
	StateUnfillable       SlotState = "unfillable"
)

// Terminal reports whether no further transition follows s.
func (s SlotState) Terminal() bool {
	return s == StateAccepted || s == StateFallbackToCorpus || s == StateUnfillable
}

// SlotEvent is one state transition of a slot.
type SlotEvent struct {
	RunID   string
	Section string
	Slot    int
	Type    exam.AnswerType
	State   SlotState

	// Attempt is the number of generation calls made so far.
	Attempt int

	// Reason explains retries, fallbacks and failures.
	Reason string

	At time.Time
}

// Observer receives run progress. Methods may be called concurrently.
type Observer interface {
	RunStarted(runID string, spec exam.Spec, sections []exam.SectionSpec)
	SlotChanged(ev SlotEvent)
	RunFinished(runID string, err error)
}

type nopObserver struct{}

func (nopObserver) RunStarted(string, exam.Spec, []exam.SectionSpec) {}
func (nopObserver) SlotChanged(SlotEvent)                            {}
func (nopObserver) RunFinished(string, error)                        {}
