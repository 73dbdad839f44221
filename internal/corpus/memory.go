package corpus

import (
	"cmp"
	"context"
	"slices"
	"strconv"
	"sync"

	"github.com/examforge/examforge/internal/exam"
	"github.com/examforge/examforge/internal/similarity"
)

// MemoryIndex is an in-process Retriever ranking by token overlap with the
// query text. It backs tests and corpus-less dry runs.
type MemoryIndex struct {
	mu     sync.RWMutex
	items  map[exam.Scope][]exam.HistoricalQuestion
	nextID int
}

// NewMemoryIndex returns an empty index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{items: make(map[exam.Scope][]exam.HistoricalQuestion)}
}

// Add stores questions under scope. Questions without an ID get one.
func (m *MemoryIndex) Add(scope exam.Scope, qs ...exam.HistoricalQuestion) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, q := range qs {
		if q.ID == "" {
			m.nextID++
			q.ID = "mem-" + strconv.Itoa(m.nextID)
		}
		m.items[scope] = append(m.items[scope], q)
	}
}

// Len returns the number of questions in scope.
func (m *MemoryIndex) Len(scope exam.Scope) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items[scope])
}

func (m *MemoryIndex) Retrieve(ctx context.Context, q Query) ([]exam.HistoricalQuestion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if q.K <= 0 {
		return nil, nil
	}

	text := q.Text()
	m.mu.RLock()
	var scored []exam.HistoricalQuestion
	for _, hq := range m.items[q.Scope] {
		if q.Type != "" && hq.Type != q.Type {
			continue
		}
		hq.Score = similarity.Text(text, hq.Topic+" "+hq.Text)
		scored = append(scored, hq)
	}
	m.mu.RUnlock()

	slices.SortStableFunc(scored, func(a, b exam.HistoricalQuestion) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if len(scored) > q.K {
		scored = scored[:q.K]
	}
	return scored, nil
}

func (m *MemoryIndex) Pool(ctx context.Context, scope exam.Scope, t exam.AnswerType, n int) ([]exam.HistoricalQuestion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []exam.HistoricalQuestion
	for _, hq := range m.items[scope] {
		if len(out) >= n {
			break
		}
		if hq.Type == t {
			out = append(out, hq)
		}
	}
	return out, nil
}
