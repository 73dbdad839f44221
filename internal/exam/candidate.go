package exam

// Candidate is a generated question before validation. The concrete type
// carries the answer format; only MCQCandidate, TITACandidate and
// NATCandidate implement it.
type Candidate interface {
	// Type returns the declared answer type.
	Type() AnswerType

	// Stem returns the question text.
	Stem() string

	candidate()
}

// MCQCandidate is a multiple-choice candidate. Answer is the text of the
// option the generator declared correct.
type MCQCandidate struct {
	Text        string
	Options     []string
	Answer      string
	Explanation string
	Topic       string
}

func (MCQCandidate) Type() AnswerType { return MCQ }
func (c MCQCandidate) Stem() string   { return c.Text }
func (MCQCandidate) candidate()       {}

// TITACandidate is a type-in-the-answer candidate.
type TITACandidate struct {
	Text        string
	Answer      string
	Explanation string
	Topic       string
}

func (TITACandidate) Type() AnswerType { return TITA }
func (c TITACandidate) Stem() string   { return c.Text }
func (TITACandidate) candidate()       {}

// NATCandidate is a numerical-answer-type candidate.
type NATCandidate struct {
	Text        string
	Answer      string
	Explanation string
	Topic       string
}

func (NATCandidate) Type() AnswerType { return NAT }
func (c NATCandidate) Stem() string   { return c.Text }
func (NATCandidate) candidate()       {}
