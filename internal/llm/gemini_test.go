package llm

import (
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"

	"google.golang.org/genai"
)

func TestGeminiModelMapping(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"gemini-flash", "gemini-2.0-flash"},
		{"gemini-pro", "gemini-2.0-pro"},
		{"gemini-2.5-flash", "gemini-2.5-flash"}, // Pass-through
	}
	for _, tt := range tests {
		got := resolveModel(tt.input, geminiModels)
		if got != tt.expected {
			t.Errorf("resolveModel(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestBuildGeminiSchema_QuestionShape(t *testing.T) {
	def := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"type":          map[string]any{"type": "string", "enum": []any{"MCQ", "TITA", "NAT"}},
			"question_text": map[string]any{"type": "string", "description": "The question"},
			"options": map[string]any{
				"type":     "array",
				"items":    map[string]any{"type": "string"},
				"maxItems": 4,
			},
			"answer": map[string]any{"type": "string"},
		},
		"required":             []any{"type", "question_text", "options", "answer"},
		"additionalProperties": false,
	}

	schema := buildGeminiSchema(def)

	if schema.Type != genai.TypeObject {
		t.Fatalf("type = %s, want OBJECT", schema.Type)
	}
	if got := schema.Properties["type"].Enum; !slices.Equal(got, []string{"MCQ", "TITA", "NAT"}) {
		t.Errorf("enum = %v", got)
	}
	if schema.Properties["question_text"].Description != "The question" {
		t.Errorf("description not carried over")
	}
	opts := schema.Properties["options"]
	if opts.Type != genai.TypeArray || opts.Items.Type != genai.TypeString {
		t.Errorf("options = %s of %s, want ARRAY of STRING", opts.Type, opts.Items.Type)
	}
	if opts.MaxItems == nil || *opts.MaxItems != 4 {
		t.Errorf("maxItems = %v, want 4", opts.MaxItems)
	}
	if opts.MinItems != nil {
		t.Errorf("minItems = %d, want unset", *opts.MinItems)
	}
	want := []string{"type", "question_text", "options", "answer"}
	if !slices.Equal(schema.PropertyOrdering, want) {
		t.Errorf("property ordering = %v, want %v", schema.PropertyOrdering, want)
	}
}

func TestBuildGeminiSchema_PartialRequiredKeepsDefaultOrder(t *testing.T) {
	schema := buildGeminiSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "integer"},
			"b": map[string]any{"type": "boolean"},
		},
		"required": []any{"a"},
	})
	if schema.PropertyOrdering != nil {
		t.Errorf("ordering = %v, want nil when not every property is required", schema.PropertyOrdering)
	}
	if schema.Properties["a"].Type != genai.TypeInteger || schema.Properties["b"].Type != genai.TypeBoolean {
		t.Errorf("unexpected property types: %s, %s", schema.Properties["a"].Type, schema.Properties["b"].Type)
	}
}

func TestMapGeminiStopReason(t *testing.T) {
	tests := []struct {
		reason genai.FinishReason
		want   string
	}{
		{genai.FinishReasonStop, "end"},
		{genai.FinishReasonMaxTokens, "max_tokens"},
		{genai.FinishReasonSafety, "refused"},
		{genai.FinishReasonRecitation, "refused"},
		{"", "end"},
	}
	for _, tt := range tests {
		result := &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{FinishReason: tt.reason}},
		}
		if got := mapGeminiStopReason(result); got != tt.want {
			t.Errorf("mapGeminiStopReason(%q) = %q, want %q", tt.reason, got, tt.want)
		}
	}
}

func TestMapGeminiError(t *testing.T) {
	quota := genai.APIError{
		Code:    429,
		Message: "quota exceeded",
		Details: []map[string]any{
			{"@type": "type.googleapis.com/google.rpc.QuotaFailure"},
			{"@type": "type.googleapis.com/google.rpc.RetryInfo", "retryDelay": "17s"},
		},
	}
	var rl *ErrRateLimit
	if err := mapGeminiError(fmt.Errorf("generate: %w", quota)); !errors.As(err, &rl) {
		t.Fatalf("429: got %T (%v), want ErrRateLimit", err, err)
	}
	if rl.RetryAfter != 17*time.Second {
		t.Errorf("retry after = %s, want 17s", rl.RetryAfter)
	}

	var capErr *ErrCapabilityUnavailable
	if err := mapGeminiError(genai.APIError{Code: 403, Message: "API key invalid"}); !errors.As(err, &capErr) {
		t.Errorf("403: got %T, want ErrCapabilityUnavailable", err)
	}

	var unavailable *ErrProviderUnavailable
	if err := mapGeminiError(genai.APIError{Code: 503}); !errors.As(err, &unavailable) {
		t.Errorf("503: got %T, want ErrProviderUnavailable", err)
	}
	if err := mapGeminiError(errors.New("dial tcp: connection refused")); !errors.As(err, &unavailable) {
		t.Errorf("network: got %T, want ErrProviderUnavailable", err)
	}
}

func TestGeminiRetryDelayIgnoresMalformed(t *testing.T) {
	details := []map[string]any{
		{"@type": "type.googleapis.com/google.rpc.RetryInfo", "retryDelay": "soon"},
		{"@type": "type.googleapis.com/google.rpc.RetryInfo"},
	}
	if got := geminiRetryDelay(details); got != 0 {
		t.Errorf("delay = %s, want 0", got)
	}
}
