package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/examforge/examforge/internal/exam"
	"github.com/examforge/examforge/internal/llm"
)

// Purpose tags generation requests in the LLM event log.
const Purpose = "exam-question"

// LLMClient implements Client on top of an llm.Provider.
type LLMClient struct {
	provider llm.Provider
	config   Config
}

// New creates an LLMClient with the given provider and config.
func New(provider llm.Provider, cfg Config) *LLMClient {
	return &LLMClient{provider: provider, config: cfg}
}

// questionOutput is the raw LLM response before it becomes a Candidate.
type questionOutput struct {
	Type         string   `json:"type"`
	QuestionText string   `json:"question_text"`
	Options      []string `json:"options"`
	Answer       string   `json:"answer"`
	Explanation  string   `json:"explanation"`
	Topic        string   `json:"topic"`
}

// Generate makes one provider call and parses the result.
func (c *LLMClient) Generate(ctx context.Context, p Prompt) (exam.Candidate, error) {
	ctx = llm.WithPurpose(ctx, Purpose)

	req := llm.Request{
		System:      systemPrompt,
		Messages:    []llm.Message{llm.UserMessage(buildUserMessage(p))},
		Schema:      QuestionSchema,
		MaxTokens:   c.config.MaxTokens,
		Temperature: c.config.Temperature,
	}

	resp, err := c.provider.Generate(ctx, req)
	if err != nil {
		return nil, classify(err)
	}

	cand, err := parseCandidate(resp.Content)
	if err != nil {
		return nil, &Failure{Kind: MalformedResponse, Err: err}
	}
	return cand, nil
}

// classify maps a provider error to a Failure. Cancellation of the caller's
// context is returned as is.
func classify(err error) error {
	var (
		rateLimit  *llm.ErrRateLimit
		capability *llm.ErrCapabilityUnavailable
		invalid    *llm.ErrInvalidResponse
		truncated  *llm.ErrMaxTokensExceeded
	)
	switch {
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return &Failure{Kind: Timeout, Err: err}
	case errors.As(err, &rateLimit):
		return &Failure{Kind: RateLimited, Err: err}
	case errors.As(err, &capability):
		return &Failure{Kind: CapabilityUnavailable, Err: err}
	case errors.As(err, &invalid), errors.As(err, &truncated):
		return &Failure{Kind: MalformedResponse, Err: err}
	default:
		return &Failure{Kind: Upstream, Err: err}
	}
}

// parseCandidate validates raw model output and converts it to the
// variant for its declared type. Nothing is defaulted.
func parseCandidate(raw json.RawMessage) (exam.Candidate, error) {
	raw = llm.StripCodeFence(raw)
	if err := llm.ValidateJSON(QuestionSchema, raw); err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var out questionOutput
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode question: %w", err)
	}

	text := strings.TrimSpace(out.QuestionText)
	if text == "" {
		return nil, errors.New("question_text is empty")
	}

	switch exam.AnswerType(out.Type) {
	case exam.MCQ:
		return exam.MCQCandidate{
			Text:        text,
			Options:     out.Options,
			Answer:      out.Answer,
			Explanation: out.Explanation,
			Topic:       out.Topic,
		}, nil
	case exam.TITA:
		if len(out.Options) > 0 {
			return nil, fmt.Errorf("TITA question has %d options", len(out.Options))
		}
		return exam.TITACandidate{Text: text, Answer: out.Answer, Explanation: out.Explanation, Topic: out.Topic}, nil
	case exam.NAT:
		if len(out.Options) > 0 {
			return nil, fmt.Errorf("NAT question has %d options", len(out.Options))
		}
		return exam.NATCandidate{Text: text, Answer: out.Answer, Explanation: out.Explanation, Topic: out.Topic}, nil
	default:
		return nil, fmt.Errorf("unknown question type %q", out.Type)
	}
}
