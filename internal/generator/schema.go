package generator

import "github.com/examforge/examforge/internal/llm"

// QuestionSchema is the structured output contract for one exam question.
// Every property is required so providers with strict structured output
// accept it; non-MCQ questions send an empty options array.
var QuestionSchema = &llm.Schema{
	Name:        "exam-question",
	Description: "A single competitive-exam question with its answer and explanation",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"type": map[string]any{
				"type":        "string",
				"enum":        []any{"MCQ", "TITA", "NAT"},
				"description": "Answer format: MCQ (4 options), TITA (type the answer), NAT (numerical answer)",
			},
			"question_text": map[string]any{
				"type":        "string",
				"description": "The full, self-contained question text",
			},
			"options": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "string",
				},
				"description": "Exactly 4 distinct options for MCQ. Empty array for TITA and NAT.",
			},
			"answer": map[string]any{
				"type":        "string",
				"description": "MCQ: the exact text of the correct option. TITA: short text or number. NAT: a number or a range like '2.5 to 2.7'.",
			},
			"explanation": map[string]any{
				"type":        "string",
				"description": "A brief worked solution",
			},
			"topic": map[string]any{
				"type":        "string",
				"description": "The syllabus topic the question tests",
			},
		},
		"required":             []any{"type", "question_text", "options", "answer", "explanation", "topic"},
		"additionalProperties": false,
	},
}
