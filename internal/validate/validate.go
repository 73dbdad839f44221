// Package validate checks candidate questions against a section's contract
// and the questions already in the exam.
package validate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/examforge/examforge/internal/exam"
	"github.com/examforge/examforge/internal/similarity"
)

// Check names a validation step. Checks run in declaration order.
type Check string

const (
	CheckType      Check = "type"
	CheckShape     Check = "shape"
	CheckDuplicate Check = "duplicate"
)

// MaxTITALength is the longest non-numeric TITA answer accepted.
const MaxTITALength = 64

// Failure describes why a candidate was rejected.
type Failure struct {
	Check     Check
	Message   string
	Retryable bool // whether regeneration is likely to fix this
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s check: %s", f.Check, f.Message)
}

var (
	numberPattern = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)$`)
	rangePattern  = regexp.MustCompile(`^([+-]?(?:\d+(?:\.\d*)?|\.\d+))\s*(?:to|-|:)\s*([+-]?(?:\d+(?:\.\d*)?|\.\d+))$`)
)

// Validator runs the type, shape and duplicate checks. It holds no state
// and is safe for concurrent use.
type Validator struct {
	threshold float64
}

// New creates a validator. A threshold <= 0 means
// similarity.DefaultThreshold.
func New(threshold float64) *Validator {
	if threshold <= 0 {
		threshold = similarity.DefaultThreshold
	}
	return &Validator{threshold: threshold}
}

// Validate checks a generated candidate for a slot expecting type want in
// section. On success the question's text is claimed in accepted; a
// near-duplicate of an earlier claim fails the duplicate check.
func (v *Validator) Validate(c exam.Candidate, section exam.SectionSpec, want exam.AnswerType, context []exam.HistoricalQuestion, accepted *AcceptedSet) (exam.Question, *Failure) {
	if f := checkType(c.Type(), section, want); f != nil {
		return exam.Question{}, f
	}

	q, f := shape(c)
	if f != nil {
		return exam.Question{}, f
	}

	for _, hq := range context {
		if s := similarity.Text(q.Text, hq.Text); s >= v.threshold {
			return exam.Question{}, &Failure{
				Check:   CheckDuplicate,
				Message: fmt.Sprintf("too similar (%.2f) to reference question %s", s, hq.ID),
			}
		}
	}

	if conflict, ok := accepted.Claim(q.Text); !ok {
		return exam.Question{}, &Failure{
			Check:   CheckDuplicate,
			Message: fmt.Sprintf("too similar to a question already in this exam: %q", truncate(conflict, 80)),
		}
	}

	q.Source = exam.SourceGenerated
	return q, nil
}

// CheckCorpus runs the type and shape checks on a corpus question so it
// can be substituted verbatim. It claims nothing.
func (v *Validator) CheckCorpus(hq exam.HistoricalQuestion, section exam.SectionSpec, want exam.AnswerType) (exam.Question, *Failure) {
	if f := checkType(hq.Type, section, want); f != nil {
		return exam.Question{}, f
	}

	var c exam.Candidate
	switch hq.Type {
	case exam.MCQ:
		c = exam.MCQCandidate{Text: hq.Text, Options: hq.Options, Answer: hq.Answer, Explanation: hq.Explanation, Topic: hq.Topic}
	case exam.TITA:
		c = exam.TITACandidate{Text: hq.Text, Answer: hq.Answer, Explanation: hq.Explanation, Topic: hq.Topic}
	default:
		c = exam.NATCandidate{Text: hq.Text, Answer: hq.Answer, Explanation: hq.Explanation, Topic: hq.Topic}
	}
	q, f := shape(c)
	if f != nil {
		return exam.Question{}, f
	}
	q.Source = exam.SourceCorpus
	q.CorpusID = hq.ID
	return q, nil
}

func checkType(got exam.AnswerType, section exam.SectionSpec, want exam.AnswerType) *Failure {
	if !section.Allows(got) {
		return &Failure{
			Check:     CheckType,
			Message:   fmt.Sprintf("section %s does not take %s questions", section.Name, got),
			Retryable: true,
		}
	}
	if got != want {
		return &Failure{
			Check:     CheckType,
			Message:   fmt.Sprintf("expected a %s question, got %s", want, got),
			Retryable: true,
		}
	}
	return nil
}

func shapeFailure(format string, args ...any) *Failure {
	return &Failure{Check: CheckShape, Message: fmt.Sprintf(format, args...), Retryable: true}
}

// shape checks the answer-format constraints and returns the normalized
// question.
func shape(c exam.Candidate) (exam.Question, *Failure) {
	text := strings.TrimSpace(c.Stem())
	if text == "" {
		return exam.Question{}, shapeFailure("question text is empty")
	}

	switch c := c.(type) {
	case exam.MCQCandidate:
		answer, f := checkMCQ(c.Options, c.Answer)
		if f != nil {
			return exam.Question{}, f
		}
		opts := make([]string, len(c.Options))
		for i, o := range c.Options {
			opts[i] = strings.TrimSpace(o)
		}
		return exam.Question{
			Type: exam.MCQ, Text: text, Options: opts, Answer: answer,
			Explanation: strings.TrimSpace(c.Explanation), Topic: strings.TrimSpace(c.Topic),
		}, nil

	case exam.TITACandidate:
		answer := strings.TrimSpace(c.Answer)
		if answer == "" {
			return exam.Question{}, shapeFailure("TITA answer is empty")
		}
		if !numberPattern.MatchString(answer) && utf8.RuneCountInString(answer) > MaxTITALength {
			return exam.Question{}, shapeFailure("TITA answer is longer than %d characters", MaxTITALength)
		}
		return exam.Question{
			Type: exam.TITA, Text: text, Answer: answer,
			Explanation: strings.TrimSpace(c.Explanation), Topic: strings.TrimSpace(c.Topic),
		}, nil

	case exam.NATCandidate:
		answer := strings.TrimSpace(c.Answer)
		if !validNumeric(answer) {
			return exam.Question{}, shapeFailure("NAT answer %q is not a number or a range", c.Answer)
		}
		return exam.Question{
			Type: exam.NAT, Text: text, Answer: answer,
			Explanation: strings.TrimSpace(c.Explanation), Topic: strings.TrimSpace(c.Topic),
		}, nil

	default:
		return exam.Question{}, shapeFailure("unsupported candidate %T", c)
	}
}

// checkMCQ requires 4 distinct non-empty options with exactly one equal to
// the answer, and returns that option.
func checkMCQ(options []string, answer string) (string, *Failure) {
	if len(options) != 4 {
		return "", shapeFailure("MCQ must have exactly 4 options, got %d", len(options))
	}
	seen := make(map[string]bool, 4)
	for i, o := range options {
		o = strings.TrimSpace(o)
		if o == "" {
			return "", shapeFailure("option %d is empty", i+1)
		}
		key := strings.ToLower(o)
		if seen[key] {
			return "", shapeFailure("duplicate option %q", o)
		}
		seen[key] = true
	}

	want := strings.ToLower(strings.TrimSpace(answer))
	var match string
	matches := 0
	for _, o := range options {
		if strings.ToLower(strings.TrimSpace(o)) == want {
			match = strings.TrimSpace(o)
			matches++
		}
	}
	if matches != 1 {
		return "", shapeFailure("answer %q does not match exactly one option", answer)
	}
	return match, nil
}

// validNumeric accepts a number or a range written "a to b", "a-b" or
// "a:b" with a <= b.
func validNumeric(s string) bool {
	if numberPattern.MatchString(s) {
		return true
	}
	m := rangePattern.FindStringSubmatch(strings.ToLower(s))
	if m == nil {
		return false
	}
	lo, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return false
	}
	hi, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return false
	}
	return lo <= hi
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "..."
}
