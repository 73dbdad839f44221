package exam

import (
	"fmt"
	"strings"
)

// Name identifies a supported examination.
type Name string

const (
	CAT  Name = "CAT"
	GATE Name = "GATE"
)

// ParseName normalizes a user-supplied exam name.
func ParseName(s string) (Name, error) {
	switch n := Name(strings.ToUpper(strings.TrimSpace(s))); n {
	case CAT, GATE:
		return n, nil
	default:
		return "", fmt.Errorf("unsupported exam %q", s)
	}
}

// AnswerType is the answer format of a question.
type AnswerType string

const (
	// MCQ is a multiple-choice question with 4 options and one correct key.
	MCQ AnswerType = "MCQ"

	// TITA is a type-in-the-answer question (CAT). The answer is a short
	// text or a number.
	TITA AnswerType = "TITA"

	// NAT is a numerical-answer-type question (GATE). The answer is a number
	// or a number range.
	NAT AnswerType = "NAT"
)

// ParseAnswerType normalizes an answer type label. "tita" and "numeric"
// spellings from older corpus dumps are accepted.
func ParseAnswerType(s string) (AnswerType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "MCQ":
		return MCQ, nil
	case "TITA":
		return TITA, nil
	case "NAT", "NUMERIC":
		return NAT, nil
	default:
		return "", fmt.Errorf("unknown answer type %q", s)
	}
}

// Spec is the immutable input of one composition run.
type Spec struct {
	Exam Name `json:"exam"`

	// Stream is the GATE paper code (e.g. "CS"). Empty for CAT.
	Stream string `json:"stream,omitempty"`

	// Year is an optional retrieval hint. Zero means unset.
	Year int `json:"year,omitempty"`
}

func (s Spec) String() string {
	var b strings.Builder
	b.WriteString(string(s.Exam))
	if s.Stream != "" {
		b.WriteString("-" + s.Stream)
	}
	if s.Year > 0 {
		fmt.Fprintf(&b, "-%d", s.Year)
	}
	return b.String()
}

// SectionSpec is the structural contract of one exam section.
type SectionSpec struct {
	Name  string
	Count int

	// Mix is the exact number of questions of each answer type. Its values
	// sum to Count.
	Mix map[AnswerType]int

	// Shared marks sections whose corpus is common to all streams (GATE
	// General Aptitude). Retrieval for shared sections ignores the stream.
	Shared bool

	// Topics are rotated across slots as retrieval and prompt hints.
	Topics []string
}

// Allows reports whether t is part of the section's answer-type mix.
func (s SectionSpec) Allows(t AnswerType) bool {
	return s.Mix[t] > 0
}

// AllowedTypes returns the section's answer types in canonical order.
func (s SectionSpec) AllowedTypes() []AnswerType {
	var out []AnswerType
	for _, t := range []AnswerType{MCQ, TITA, NAT} {
		if s.Allows(t) {
			out = append(out, t)
		}
	}
	return out
}

// Scope identifies a partition of the corpus index.
type Scope struct {
	Exam    Name
	Stream  string
	Section string
}

func (s Scope) String() string {
	if s.Stream == "" {
		return fmt.Sprintf("%s/%s", s.Exam, s.Section)
	}
	return fmt.Sprintf("%s/%s/%s", s.Exam, s.Stream, s.Section)
}

// ScopeFor returns the corpus scope a section of spec retrieves from.
func ScopeFor(spec Spec, section SectionSpec) Scope {
	sc := Scope{Exam: spec.Exam, Section: section.Name}
	if !section.Shared {
		sc.Stream = spec.Stream
	}
	return sc
}
