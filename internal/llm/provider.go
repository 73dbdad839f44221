package llm

import (
	"context"
	"encoding/json"
)

// Provider sends one prompt to a model and returns its reply. Providers do
// not retry; errors are the typed errors in this package.
type Provider interface {
	// Generate performs a single request. When req.Schema is set the reply
	// is requested in the provider's structured output mode and validated
	// before it is returned.
	Generate(ctx context.Context, req Request) (*Response, error)

	// ModelID returns the model requests are sent to.
	ModelID() string
}

// Request is one single-turn generation call.
type Request struct {
	System   string
	Messages []Message

	// Schema constrains the reply to one JSON object. Nil means free text.
	Schema *Schema

	MaxTokens int

	// Temperature in [0, 1]. Zero leaves the provider default.
	Temperature float64
}

// Message is one conversation turn.
type Message struct {
	Role    Role
	Content string
}

// Role is the message sender role.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// UserMessage returns a single user turn.
func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

// Schema is a named JSON Schema for structured output.
type Schema struct {
	// Name is sent as the OpenAI schema name and keys the compiled-schema
	// cache. Kebab-case, e.g. "exam-question".
	Name        string
	Description string
	Definition  map[string]any
}

// Normalized stop reasons.
const (
	StopEnd       = "end"
	StopMaxTokens = "max_tokens"
	StopRefused   = "refused"
)

// Response is a model reply.
type Response struct {
	// Content is the validated JSON object when the request had a Schema,
	// with any markdown fence removed; otherwise the raw text.
	Content json.RawMessage

	Usage Usage

	// Model is the model that actually served the request, which may differ
	// from the configured alias.
	Model string

	// StopReason is one of StopEnd, StopMaxTokens or StopRefused.
	StopReason string
}

// Usage counts tokens for one request.
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}
