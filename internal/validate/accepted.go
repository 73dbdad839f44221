package validate

import (
	"sync"

	"github.com/examforge/examforge/internal/similarity"
)

// AcceptedSet holds the question texts accepted so far in one composition
// run. Claim is an atomic insert-if-absent under near-duplicate equality.
type AcceptedSet struct {
	threshold float64

	mu      sync.Mutex
	entries []acceptedEntry
}

type acceptedEntry struct {
	text   string
	tokens similarity.Tokens
}

// NewAcceptedSet returns an empty set. A threshold <= 0 means
// similarity.DefaultThreshold.
func NewAcceptedSet(threshold float64) *AcceptedSet {
	if threshold <= 0 {
		threshold = similarity.DefaultThreshold
	}
	return &AcceptedSet{threshold: threshold}
}

// Claim adds text unless it is a near-duplicate of a text already in the
// set. On conflict it returns the existing text and false.
func (s *AcceptedSet) Claim(text string) (string, bool) {
	tokens := similarity.Tokenize(text)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if similarity.Jaccard(tokens, e.tokens) >= s.threshold {
			return e.text, false
		}
	}
	s.entries = append(s.entries, acceptedEntry{text: text, tokens: tokens})
	return "", true
}

// Recent returns up to n of the most recently claimed texts, oldest first.
func (s *AcceptedSet) Recent(n int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := max(0, len(s.entries)-n)
	out := make([]string, 0, len(s.entries)-start)
	for _, e := range s.entries[start:] {
		out = append(out, e.text)
	}
	return out
}
