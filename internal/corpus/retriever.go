// Package corpus retrieves historical questions for grounding generation and
// imports question dumps into the index.
package corpus

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/examforge/examforge/internal/embed"
	"github.com/examforge/examforge/internal/exam"
	"github.com/examforge/examforge/internal/store"
)

// Query selects grounding context for one slot.
type Query struct {
	Scope exam.Scope

	// TopicHint and Year steer similarity ranking. Both are optional.
	TopicHint string
	Year      int

	// Type restricts results to one answer type. Empty means any type.
	Type exam.AnswerType

	K int
}

// Text returns the query text that gets embedded: section, topic and year.
func (q Query) Text() string {
	parts := []string{q.Scope.Section}
	if q.TopicHint != "" {
		parts = append(parts, q.TopicHint)
	}
	if q.Year > 0 {
		parts = append(parts, strconv.Itoa(q.Year))
	}
	return strings.Join(parts, " ")
}

// Retriever is the read-only view of the corpus used during composition.
// Results never leave the requested scope. An empty scope yields an empty
// result and a nil error; errors mean the index could not be read.
type Retriever interface {
	// Retrieve returns up to q.K questions, most similar first.
	Retrieve(ctx context.Context, q Query) ([]exam.HistoricalQuestion, error)

	// Pool returns up to n questions of type t in scope, for corpus
	// fallback once the slot's own context is used up.
	Pool(ctx context.Context, scope exam.Scope, t exam.AnswerType, n int) ([]exam.HistoricalQuestion, error)
}

// IndexRetriever serves retrieval from the SQLite corpus index.
type IndexRetriever struct {
	repo     store.CorpusRepo
	embedder embed.Embedder
	logger   *slog.Logger
}

// NewIndexRetriever creates a retriever over repo. The embedder must be the
// one the index was built with.
func NewIndexRetriever(repo store.CorpusRepo, embedder embed.Embedder, logger *slog.Logger) *IndexRetriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &IndexRetriever{repo: repo, embedder: embedder, logger: logger}
}

func (r *IndexRetriever) Retrieve(ctx context.Context, q Query) ([]exam.HistoricalQuestion, error) {
	if q.K <= 0 {
		return nil, nil
	}
	vecs, err := r.embedder.Embed(ctx, []string{q.Text()})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	items, err := r.repo.Search(ctx, toStoreScope(q.Scope), r.embedder.Name(), vecs[0], q.K, string(q.Type))
	if err != nil {
		return nil, err
	}

	out := make([]exam.HistoricalQuestion, 0, len(items))
	for _, it := range items {
		hq, err := fromStore(it.CorpusItem)
		if err != nil {
			r.logger.Warn("skipping corpus item", "id", it.ID, "error", err)
			continue
		}
		hq.Score = it.Score
		out = append(out, hq)
	}
	return out, nil
}

func (r *IndexRetriever) Pool(ctx context.Context, scope exam.Scope, t exam.AnswerType, n int) ([]exam.HistoricalQuestion, error) {
	items, err := r.repo.Pool(ctx, toStoreScope(scope), string(t), n)
	if err != nil {
		return nil, err
	}
	out := make([]exam.HistoricalQuestion, 0, len(items))
	for _, it := range items {
		hq, err := fromStore(it)
		if err != nil {
			r.logger.Warn("skipping corpus item", "id", it.ID, "error", err)
			continue
		}
		out = append(out, hq)
	}
	return out, nil
}

func toStoreScope(s exam.Scope) store.CorpusScope {
	return store.CorpusScope{Exam: string(s.Exam), Stream: s.Stream, Section: s.Section}
}

func fromStore(it store.CorpusItem) (exam.HistoricalQuestion, error) {
	t, err := exam.ParseAnswerType(it.AnswerType)
	if err != nil {
		return exam.HistoricalQuestion{}, err
	}
	return exam.HistoricalQuestion{
		ID:          strconv.FormatInt(it.ID, 10),
		Text:        it.Text,
		Options:     it.Options,
		Answer:      it.Answer,
		Type:        t,
		Topic:       it.Topic,
		Year:        it.Year,
		Explanation: it.Explanation,
	}, nil
}
