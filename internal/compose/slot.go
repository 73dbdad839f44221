package compose

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/examforge/examforge/internal/corpus"
	"github.com/examforge/examforge/internal/exam"
	"github.com/examforge/examforge/internal/generator"
	"github.com/examforge/examforge/internal/validate"
)

// slot is one question position awaiting a validated question.
type slot struct {
	section exam.SectionSpec
	index   int
	typ     exam.AnswerType
	topic   string
	scope   exam.Scope
}

// fillSlot runs the slot state machine:
//
//	Pending -> Retrieving -> Generating -> Validating -> Accepted
//	                             ^              |
//	                             +-- Retrying <-+
//
// A duplicate with non-empty context tries FallbackToCorpus at once and
// keeps retrying when nothing is claimable. An exhausted budget tries it
// one last time; with nothing claimable the slot is Unfillable.
func (r *run) fillSlot(ctx context.Context, s slot) (exam.Question, error) {
	r.emit(s, StatePending, 0, "")
	if err := ctx.Err(); err != nil {
		return exam.Question{}, err
	}

	r.emit(s, StateRetrieving, 0, "")
	grounding, err := r.retrieve(ctx, s)
	if err != nil {
		return exam.Question{}, err
	}

	var (
		attempts   int
		correction string
		rejected   []string
	)
	for attempts < r.config.MaxAttempts {
		if err := ctx.Err(); err != nil {
			return exam.Question{}, err
		}

		r.emit(s, StateGenerating, attempts, "")
		cand, err := r.generate(ctx, generator.Prompt{
			Exam:       r.spec.Exam,
			Stream:     s.scope.Stream,
			Section:    s.section.Name,
			Type:       s.typ,
			Topic:      s.topic,
			Year:       r.spec.Year,
			Context:    grounding,
			Avoid:      avoidList(r.accepted.Recent(r.config.MaxAvoid), rejected, r.config.MaxAvoid),
			Correction: correction,
		})
		if canceled(ctx, err) {
			return exam.Question{}, err
		}
		attempts++

		if err != nil {
			var f *generator.Failure
			if !errors.As(err, &f) {
				f = &generator.Failure{Kind: generator.Upstream, Err: err}
			}
			if f.Kind == generator.CapabilityUnavailable {
				r.emit(s, StateUnfillable, attempts, f.Error())
				return exam.Question{}, r.slotError(CapabilityUnavailable, s, err)
			}
			if f.Kind == generator.MalformedResponse {
				correction = fmt.Sprintf("the response was not a valid %s question object (%v)", s.typ, f.Err)
			}
			if attempts >= r.config.MaxAttempts {
				break
			}
			r.emit(s, StateRetrying, attempts, f.Error())
			r.logger.Debug("slot retrying after generation failure",
				"run_id", r.id, "section", s.section.Name, "slot", s.index,
				"attempt", attempts, "kind", f.Kind, "error", f.Err)
			if f.Kind != generator.MalformedResponse {
				if err := sleep(ctx, r.config.Backoff.Wait(attempts-1, err)); err != nil {
					return exam.Question{}, err
				}
			}
			continue
		}

		r.emit(s, StateValidating, attempts, "")
		q, vf := r.validator.Validate(cand, s.section, s.typ, grounding, r.accepted)
		if vf == nil {
			q.Attempts = attempts
			r.emit(s, StateAccepted, attempts, "")
			return q, nil
		}

		correction = vf.Message
		if vf.Check == validate.CheckDuplicate {
			rejected = append(rejected, cand.Stem())
			if len(grounding) > 0 {
				q, ok, err := r.fallback(ctx, s, grounding)
				if err != nil {
					return exam.Question{}, err
				}
				if ok {
					return r.fromCorpus(s, q, attempts, correction), nil
				}
			}
		}
		if attempts < r.config.MaxAttempts {
			r.emit(s, StateRetrying, attempts, vf.Error())
			r.logger.Debug("slot retrying after validation failure",
				"run_id", r.id, "section", s.section.Name, "slot", s.index,
				"attempt", attempts, "check", vf.Check, "reason", vf.Message)
		}
	}

	q, ok, err := r.fallback(ctx, s, grounding)
	if err != nil {
		return exam.Question{}, err
	}
	if ok {
		return r.fromCorpus(s, q, attempts, correction), nil
	}

	reason := fmt.Sprintf("no valid question after %d attempts and no unused %s corpus question", attempts, s.typ)
	if correction != "" {
		reason += "; last failure: " + correction
	}
	r.emit(s, StateUnfillable, attempts, reason)
	return exam.Question{}, r.slotError(SlotUnfillable, s, errors.New(reason))
}

func (r *run) fromCorpus(s slot, q exam.Question, attempts int, lastFailure string) exam.Question {
	q.Attempts = attempts
	r.emit(s, StateFallbackToCorpus, attempts, lastFailure)
	r.logger.Info("slot filled from corpus",
		"run_id", r.id, "section", s.section.Name, "slot", s.index,
		"corpus_id", q.CorpusID, "attempts", attempts, "last_failure", lastFailure)
	return q
}

// retrieve fetches grounding for s. Index errors are logged and the slot
// proceeds without grounding.
func (r *run) retrieve(ctx context.Context, s slot) ([]exam.HistoricalQuestion, error) {
	if r.config.TopK == 0 {
		return nil, nil
	}
	hq, err := r.retriever.Retrieve(ctx, corpus.Query{
		Scope:     s.scope,
		TopicHint: s.topic,
		Year:      r.spec.Year,
		Type:      s.typ,
		K:         r.config.TopK,
	})
	if canceled(ctx, err) {
		return nil, err
	}
	if err != nil {
		r.logger.Warn("retrieval failed, generating without grounding",
			"run_id", r.id, "scope", s.scope.String(), "slot", s.index, "error", err)
		return nil, nil
	}
	return hq, nil
}

// generate makes one generator call under the concurrency cap. Waiting for
// the cap observes ctx; once issued, the call runs detached from ctx with
// its own timeout and its result is dropped if ctx ended meanwhile.
func (r *run) generate(ctx context.Context, p generator.Prompt) (exam.Candidate, error) {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer r.sem.Release(1)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	callCtx := context.WithoutCancel(ctx)
	if r.config.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(callCtx, r.config.CallTimeout)
		defer cancel()
	}

	cand, err := r.gen.Generate(callCtx, p)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		var f *generator.Failure
		if !errors.As(err, &f) {
			err = &generator.Failure{Kind: generator.Timeout, Err: err}
		}
	}
	return cand, err
}

// fallback substitutes an unclaimed corpus question of the slot's type:
// first from the slot's own grounding, then from the scope pool.
func (r *run) fallback(ctx context.Context, s slot, grounding []exam.HistoricalQuestion) (exam.Question, bool, error) {
	if q, ok := r.claimFirst(s, grounding); ok {
		return q, true, nil
	}

	pool, err := r.pool(ctx, s)
	if err != nil {
		return exam.Question{}, false, err
	}
	q, ok := r.claimFirst(s, pool)
	return q, ok, nil
}

func (r *run) claimFirst(s slot, items []exam.HistoricalQuestion) (exam.Question, bool) {
	for _, hq := range items {
		if hq.Type != s.typ {
			continue
		}
		q, f := r.validator.CheckCorpus(hq, s.section, s.typ)
		if f != nil {
			r.logger.Debug("corpus question unusable as fallback",
				"run_id", r.id, "corpus_id", hq.ID, "reason", f.Error())
			continue
		}
		if _, ok := r.accepted.Claim(q.Text); ok {
			return q, true
		}
	}
	return exam.Question{}, false
}

// pool loads the fallback pool for a scope and type once per run.
func (r *run) pool(ctx context.Context, s slot) ([]exam.HistoricalQuestion, error) {
	if r.config.FallbackPool == 0 {
		return nil, nil
	}
	key := poolKey{scope: s.scope, typ: s.typ}

	r.poolMu.Lock()
	items, ok := r.pools[key]
	r.poolMu.Unlock()
	if ok {
		return items, nil
	}

	items, err := r.retriever.Pool(ctx, s.scope, s.typ, r.config.FallbackPool)
	if canceled(ctx, err) {
		return nil, err
	}
	if err != nil {
		r.logger.Warn("fallback pool unavailable",
			"run_id", r.id, "scope", s.scope.String(), "type", s.typ, "error", err)
		return nil, nil
	}

	r.poolMu.Lock()
	r.pools[key] = items
	r.poolMu.Unlock()
	return items, nil
}

// avoidList joins accepted and rejected texts, keeping the last limit entries.
// Rejected texts come last so they survive trimming.
func avoidList(accepted, rejected []string, limit int) []string {
	out := append(slices.Clone(accepted), rejected...)
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
