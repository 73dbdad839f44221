package exam

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/gowebpki/jcs"
)

// Source records where a validated question came from.
type Source string

const (
	SourceGenerated Source = "generated"
	SourceCorpus    Source = "corpus"
)

// HistoricalQuestion is a previously published question from the corpus.
type HistoricalQuestion struct {
	ID          string     `json:"id"`
	Text        string     `json:"text"`
	Options     []string   `json:"options,omitempty"`
	Answer      string     `json:"answer"`
	Type        AnswerType `json:"type"`
	Topic       string     `json:"topic,omitempty"`
	Year        int        `json:"year,omitempty"`
	Explanation string     `json:"explanation,omitempty"`

	// Score is the similarity to the retrieval query, in [-1, 1].
	Score float64 `json:"score"`
}

// Question is a validated question. It is the only form that enters a
// Document.
type Question struct {
	Type        AnswerType `json:"type"`
	Text        string     `json:"text"`
	Options     []string   `json:"options,omitempty"`
	Answer      string     `json:"answer"`
	Explanation string     `json:"explanation,omitempty"`
	Topic       string     `json:"topic,omitempty"`
	Source      Source     `json:"source"`

	// CorpusID is set for questions substituted verbatim from the corpus.
	CorpusID string `json:"corpus_id,omitempty"`

	// Attempts is the number of generation calls the slot made.
	Attempts int `json:"attempts"`
}

// SectionResult holds the ordered questions of one section.
type SectionResult struct {
	Name      string     `json:"name"`
	Questions []Question `json:"questions"`
}

// Stats summarizes how a document was produced.
type Stats struct {
	Generated int `json:"generated"`
	Fallback  int `json:"fallback"`
	Attempts  int `json:"attempts"`
}

// Document is a complete composed exam.
type Document struct {
	ID          string          `json:"id"`
	Exam        Name            `json:"exam"`
	Stream      string          `json:"stream,omitempty"`
	Year        int             `json:"year,omitempty"`
	GeneratedAt time.Time       `json:"generated_at"`
	Sections    []SectionResult `json:"sections"`
	Stats       Stats           `json:"stats"`
}

// Total returns the number of questions in the document.
func (d Document) Total() int {
	n := 0
	for _, s := range d.Sections {
		n += len(s.Questions)
	}
	return n
}

// Section returns the named section.
func (d Document) Section(name string) (SectionResult, bool) {
	i := slices.IndexFunc(d.Sections, func(s SectionResult) bool { return s.Name == name })
	if i < 0 {
		return SectionResult{}, false
	}
	return d.Sections[i], true
}

// Digest returns the sha256 of the RFC 8785 canonical JSON of the sections.
// Two documents with the same questions in the same order share a digest
// regardless of ID or timestamp.
func (d Document) Digest() (string, error) {
	raw, err := json.Marshal(d.Sections)
	if err != nil {
		return "", fmt.Errorf("marshal sections: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalize sections: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// CountTypes returns the number of questions of each answer type in s.
func (s SectionResult) CountTypes() map[AnswerType]int {
	out := make(map[AnswerType]int)
	for _, q := range s.Questions {
		out[q.Type]++
	}
	return out
}
