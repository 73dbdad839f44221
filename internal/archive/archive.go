// Package archive caches composed exams by (exam, stream, year) on behalf
// of callers. The composition engine itself never persists anything.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/examforge/examforge/internal/exam"
	"github.com/examforge/examforge/internal/store"
)

// Composer builds an exam document.
type Composer interface {
	Compose(ctx context.Context, spec exam.Spec) (exam.Document, error)
}

// DefaultKeep is the number of documents kept per key.
const DefaultKeep = 5

// Archive serves exams from the cache or composes and stores new ones.
type Archive struct {
	composer Composer
	repo     store.ExamRepo
	keep     int
	logger   *slog.Logger
}

// New creates an Archive. keep <= 0 means DefaultKeep.
func New(composer Composer, repo store.ExamRepo, keep int, logger *slog.Logger) *Archive {
	if keep <= 0 {
		keep = DefaultKeep
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Archive{composer: composer, repo: repo, keep: keep, logger: logger}
}

// Result is a served exam.
type Result struct {
	Document exam.Document
	Digest   string
	Cached   bool
}

// Get returns the newest stored exam for spec when reuse is set and one
// exists; otherwise it composes, stores and returns a new one. Composition
// errors are returned unchanged. A failure to store is logged, not
// returned.
func (a *Archive) Get(ctx context.Context, spec exam.Spec, reuse bool) (Result, error) {
	if reuse {
		if res, ok := a.lookup(ctx, spec); ok {
			return res, nil
		}
	}

	doc, err := a.composer.Compose(ctx, spec)
	if err != nil {
		return Result{}, err
	}
	digest, err := doc.Digest()
	if err != nil {
		return Result{}, err
	}

	if err := a.save(context.WithoutCancel(ctx), doc, digest); err != nil {
		a.logger.Warn("could not cache exam", "id", doc.ID, "error", err)
	}
	return Result{Document: doc, Digest: digest}, nil
}

func (a *Archive) lookup(ctx context.Context, spec exam.Spec) (Result, bool) {
	name, err := exam.ParseName(string(spec.Exam))
	if err != nil {
		return Result{}, false
	}
	stream := strings.ToUpper(strings.TrimSpace(spec.Stream))

	rec, err := a.repo.Latest(ctx, string(name), stream, spec.Year)
	if err != nil {
		a.logger.Warn("exam cache lookup failed", "spec", spec.String(), "error", err)
		return Result{}, false
	}
	if rec == nil {
		return Result{}, false
	}

	var doc exam.Document
	if err := json.Unmarshal(rec.Document, &doc); err != nil {
		a.logger.Warn("discarding unreadable cached exam", "id", rec.ID, "error", err)
		return Result{}, false
	}
	a.logger.Debug("serving cached exam", "id", rec.ID, "spec", spec.String())
	return Result{Document: doc, Digest: rec.Digest, Cached: true}, true
}

func (a *Archive) save(ctx context.Context, doc exam.Document, digest string) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal exam: %w", err)
	}
	err = a.repo.Save(ctx, store.ExamRecord{
		ID:        doc.ID,
		Exam:      string(doc.Exam),
		Stream:    doc.Stream,
		Year:      doc.Year,
		Digest:    digest,
		Document:  raw,
		CreatedAt: doc.GeneratedAt,
	})
	if err != nil {
		return err
	}
	return a.repo.Prune(ctx, a.keep)
}
