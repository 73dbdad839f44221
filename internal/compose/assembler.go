// Package compose assembles complete exams slot by slot from retrieval,
// generation and validation, meeting each section's count and answer-type
// mix exactly.
package compose

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/examforge/examforge/internal/corpus"
	"github.com/examforge/examforge/internal/exam"
	"github.com/examforge/examforge/internal/generator"
	"github.com/examforge/examforge/internal/llm"
	"github.com/examforge/examforge/internal/validate"
)

// Assembler composes exams. It is safe for concurrent use; runs share no
// state.
type Assembler struct {
	table     *exam.Table
	retriever corpus.Retriever
	gen       generator.Client
	validator *validate.Validator
	config    Config
	logger    *slog.Logger
	observer  Observer
}

// New creates an Assembler. The layout table is treated as authoritative
// for section names, counts and mixes.
func New(table *exam.Table, retriever corpus.Retriever, gen generator.Client, cfg Config, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	return &Assembler{
		table:     table,
		retriever: retriever,
		gen:       gen,
		validator: validate.New(cfg.DuplicateThreshold),
		config:    cfg,
		logger:    logger,
		observer:  nopObserver{},
	}
}

// WithObserver returns a copy of a that reports progress to o.
func (a *Assembler) WithObserver(o Observer) *Assembler {
	cp := *a
	if o == nil {
		o = nopObserver{}
	}
	cp.observer = o
	return &cp
}

// Compose builds a complete exam for spec. It returns either a document
// whose sections match the layout exactly or a single *Error.
func (a *Assembler) Compose(ctx context.Context, spec exam.Spec) (exam.Document, error) {
	norm, sections, err := a.table.Resolve(spec)
	if err != nil {
		return exam.Document{}, &Error{Kind: InvalidSpec, Exam: spec.Exam, Stream: spec.Stream, Err: err}
	}

	r := &run{
		Assembler: a,
		id:        uuid.NewString(),
		spec:      norm,
		accepted:  validate.NewAcceptedSet(a.config.DuplicateThreshold),
		sem:       semaphore.NewWeighted(a.config.MaxConcurrentGenerations),
		pools:     make(map[poolKey][]exam.HistoricalQuestion),
	}
	ctx = llm.WithRunID(ctx, r.id)

	start := time.Now()
	a.observer.RunStarted(r.id, norm, sections)
	doc, err := r.compose(ctx, sections)
	a.observer.RunFinished(r.id, err)
	if err != nil {
		a.logger.Warn("composition failed", "run_id", r.id, "spec", norm.String(), "error", err)
		return exam.Document{}, err
	}

	a.logger.Info("composition finished",
		"run_id", r.id,
		"spec", norm.String(),
		"questions", doc.Total(),
		"generated", doc.Stats.Generated,
		"fallback", doc.Stats.Fallback,
		"attempts", doc.Stats.Attempts,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return doc, nil
}

type poolKey struct {
	scope exam.Scope
	typ   exam.AnswerType
}

// run is the state of one Compose call.
type run struct {
	*Assembler
	id       string
	spec     exam.Spec
	accepted *validate.AcceptedSet
	sem      *semaphore.Weighted

	poolMu sync.Mutex
	pools  map[poolKey][]exam.HistoricalQuestion
}

func (r *run) compose(ctx context.Context, sections []exam.SectionSpec) (exam.Document, error) {
	results := make([][]exam.Question, len(sections))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.config.SlotWorkers)

schedule:
	for si, sec := range sections {
		results[si] = make([]exam.Question, sec.Count)
		for i, typ := range assignTypes(sec) {
			if gctx.Err() != nil {
				break schedule
			}
			s := slot{
				section: sec,
				index:   i,
				typ:     typ,
				scope:   exam.ScopeFor(r.spec, sec),
			}
			if len(sec.Topics) > 0 {
				s.topic = sec.Topics[i%len(sec.Topics)]
			}
			out := &results[si][i]
			g.Go(func() error {
				q, err := r.fillSlot(gctx, s)
				if err != nil {
					return err
				}
				*out = q
				return nil
			})
		}
	}

	err := g.Wait()
	if ctx.Err() != nil {
		return exam.Document{}, &Error{Kind: Canceled, Exam: r.spec.Exam, Stream: r.spec.Stream, Err: ctx.Err()}
	}
	if err != nil {
		return exam.Document{}, err
	}

	doc := exam.Document{
		ID:          r.id,
		Exam:        r.spec.Exam,
		Stream:      r.spec.Stream,
		Year:        r.spec.Year,
		GeneratedAt: time.Now().UTC(),
		Sections:    make([]exam.SectionResult, len(sections)),
	}
	for si, sec := range sections {
		doc.Sections[si] = exam.SectionResult{Name: sec.Name, Questions: results[si]}
		for _, q := range results[si] {
			doc.Stats.Attempts += q.Attempts
			if q.Source == exam.SourceCorpus {
				doc.Stats.Fallback++
			} else {
				doc.Stats.Generated++
			}
		}
	}
	return doc, nil
}

func (r *run) emit(s slot, state SlotState, attempt int, reason string) {
	r.observer.SlotChanged(SlotEvent{
		RunID:   r.id,
		Section: s.section.Name,
		Slot:    s.index,
		Type:    s.typ,
		State:   state,
		Attempt: attempt,
		Reason:  reason,
		At:      time.Now(),
	})
}

func (r *run) slotError(kind Kind, s slot, err error) *Error {
	return &Error{
		Kind:    kind,
		Exam:    r.spec.Exam,
		Stream:  r.spec.Stream,
		Section: s.section.Name,
		Slot:    s.index,
		Err:     err,
	}
}

// canceled reports whether err is the run context ending.
func canceled(ctx context.Context, err error) bool {
	return ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}
