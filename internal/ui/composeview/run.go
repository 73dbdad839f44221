package composeview

import (
	"context"
	"errors"

	tea "charm.land/bubbletea/v2"

	"github.com/examforge/examforge/internal/compose"
	"github.com/examforge/examforge/internal/exam"
)

// Tracker is a compose.Observer that forwards run progress to a program.
// It is safe for concurrent use.
type Tracker struct {
	send func(tea.Msg)
}

// NewTracker returns a tracker delivering messages through send, usually
// (*tea.Program).Send.
func NewTracker(send func(tea.Msg)) *Tracker {
	return &Tracker{send: send}
}

func (t *Tracker) RunStarted(runID string, spec exam.Spec, sections []exam.SectionSpec) {
	t.send(runStartedMsg{runID: runID, spec: spec, sections: sections})
}

func (t *Tracker) SlotChanged(ev compose.SlotEvent) {
	t.send(slotMsg(ev))
}

func (t *Tracker) RunFinished(_ string, err error) {
	t.send(runFinishedMsg{err: err})
}

// Run composes spec with a live progress view. Interrupting the view cancels
// the run; Run returns only after Compose has drained.
func Run(ctx context.Context, a *compose.Assembler, spec exam.Spec, opts ...tea.ProgramOption) (exam.Document, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(New(spec, cancel), opts...)

	var (
		doc  exam.Document
		cerr error
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		doc, cerr = a.WithObserver(NewTracker(p.Send)).Compose(ctx, spec)
		p.Send(doneMsg{})
	}()

	_, err := p.Run()
	cancel()
	<-done
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return exam.Document{}, err
	}
	return doc, cerr
}
