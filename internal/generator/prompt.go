package generator

import (
	"fmt"
	"strings"

	"github.com/examforge/examforge/internal/exam"
)

const systemPrompt = `You are an expert question setter for Indian competitive entrance exams (CAT and GATE).

Rules:
- Generate exactly one new question for the given exam, section and answer type.
- The question must be original. Use the reference questions only to match the syllabus, difficulty and style; never copy or lightly reword them.
- The question text must be self-contained. Include any passage, data set or figure description it needs.
- Use plain text for math. No LaTeX.
- MCQ: provide exactly 4 distinct options; the answer must be the exact text of the one correct option.
- TITA: no options; the answer is a short text (at most 64 characters) or a number.
- NAT: no options; the answer is a number or a range written as "low to high".
- The explanation should be a brief worked solution.
- Do not produce anything similar to the questions listed under "Avoid".`

// buildUserMessage constructs the user message for one slot.
func buildUserMessage(p Prompt) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Exam: %s\n", p.Exam)
	if p.Stream != "" {
		stream := p.Stream
		if st, ok := exam.LookupStream(p.Stream); ok {
			stream = fmt.Sprintf("%s (%s)", st.Name, st.Code)
		}
		fmt.Fprintf(&b, "Stream: %s\n", stream)
	}
	fmt.Fprintf(&b, "Section: %s\n", p.Section)
	if p.Topic != "" {
		fmt.Fprintf(&b, "Topic: %s\n", p.Topic)
	}
	if p.Year > 0 {
		fmt.Fprintf(&b, "Pattern year: %d\n", p.Year)
	}
	fmt.Fprintf(&b, "Answer type: %s\n", p.Type)
	fmt.Fprintf(&b, "Answer shape: %s\n", answerShape(p.Type))

	b.WriteString("\nReference questions:\n")
	b.WriteString(buildContext(p.Context))

	b.WriteString("\n\nAvoid:\n")
	b.WriteString(buildAvoid(p.Avoid))

	if p.Correction != "" {
		b.WriteString("\n\nYour previous attempt was rejected: ")
		b.WriteString(p.Correction)
		b.WriteString("\nFix this in the new question.")
	}

	return b.String()
}

func answerShape(t exam.AnswerType) string {
	switch t {
	case exam.MCQ:
		return `"options" holds 4 distinct choices and "answer" repeats the correct one verbatim`
	case exam.TITA:
		return `"options" is empty and "answer" is a short text or a number`
	case exam.NAT:
		return `"options" is empty and "answer" is a number or a range like "2.5 to 2.7"`
	default:
		return "unknown"
	}
}

// buildContext formats the grounding questions, most similar first.
func buildContext(ctx []exam.HistoricalQuestion) string {
	if len(ctx) == 0 {
		return "None"
	}

	var b strings.Builder
	for i, q := range ctx {
		fmt.Fprintf(&b, "%d. [%s", i+1, q.Type)
		if q.Topic != "" {
			fmt.Fprintf(&b, ", %s", q.Topic)
		}
		if q.Year > 0 {
			fmt.Fprintf(&b, ", %d", q.Year)
		}
		fmt.Fprintf(&b, "] %s\n", q.Text)
		for j, o := range q.Options {
			fmt.Fprintf(&b, "   %c) %s\n", 'A'+j, o)
		}
		fmt.Fprintf(&b, "   Answer: %s\n", q.Answer)
	}
	return strings.TrimRight(b.String(), "\n")
}

// buildAvoid formats texts to avoid as a numbered list.
func buildAvoid(texts []string) string {
	if len(texts) == 0 {
		return "None"
	}

	var b strings.Builder
	for i, t := range texts {
		fmt.Fprintf(&b, "%d. %s\n", i+1, t)
	}
	return strings.TrimRight(b.String(), "\n")
}
