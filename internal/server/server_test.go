package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/examforge/examforge/internal/archive"
	"github.com/examforge/examforge/internal/compose"
	"github.com/examforge/examforge/internal/corpus"
	"github.com/examforge/examforge/internal/exam"
	"github.com/examforge/examforge/internal/generator"
	"github.com/examforge/examforge/internal/store"
)

// stubGenerator returns distinct valid candidates or a fixed failure.
type stubGenerator struct {
	mu   sync.Mutex
	n    int
	fail *generator.Failure
}

func (g *stubGenerator) Generate(_ context.Context, p generator.Prompt) (exam.Candidate, error) {
	g.mu.Lock()
	g.n++
	n := g.n
	g.mu.Unlock()
	if g.fail != nil {
		return nil, g.fail
	}
	text := fmt.Sprintf("Evaluate term%d with factor%d and base%d", n, n, n)
	switch p.Type {
	case exam.MCQ:
		return exam.MCQCandidate{Text: text, Options: []string{"w", "x", "y", "z"}, Answer: "x"}, nil
	case exam.TITA:
		return exam.TITACandidate{Text: text, Answer: "7"}, nil
	default:
		return exam.NATCandidate{Text: text, Answer: "1.25"}, nil
	}
}

func newTestServer(t *testing.T, gen generator.Client) *httptest.Server {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "server.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	cfg := compose.DefaultConfig()
	cfg.Backoff.InitialWait = 0
	cfg.Backoff.MaxWait = 0
	a := compose.New(exam.DefaultTable(), corpus.NewMemoryIndex(), gen, cfg, nil)
	srv := httptest.NewServer(New(archive.New(a, st.ExamRepo(), 0, nil), Config{}, nil).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, &stubGenerator{})
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGATEStreams(t *testing.T) {
	srv := newTestServer(t, &stubGenerator{})
	resp, err := http.Get(srv.URL + "/v1/gate-streams")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var streams []exam.Stream
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&streams))
	assert.Len(t, streams, 30)
}

func TestComposeExam_AndReuse(t *testing.T) {
	gen := &stubGenerator{}
	srv := newTestServer(t, gen)

	resp, body := postJSON(t, srv.URL+"/v1/exams", `{"exam":"CAT","year":2024,"reuse":true}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var first composeResponse
	require.NoError(t, json.Unmarshal(body, &first))
	assert.Equal(t, 68, first.Total())
	assert.False(t, first.Cached)
	assert.NotEmpty(t, first.Digest)

	resp, body = postJSON(t, srv.URL+"/v1/exams", `{"exam":"cat","year":2024,"reuse":true}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var second composeResponse
	require.NoError(t, json.Unmarshal(body, &second))
	assert.True(t, second.Cached)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 68, gen.n, "the cached exam costs no generation")
}

func TestComposeExam_Errors(t *testing.T) {
	tests := []struct {
		name       string
		gen        *stubGenerator
		body       string
		wantStatus int
		wantError  string
	}{
		{"unsupported stream", &stubGenerator{}, `{"exam":"GATE","stream":"ZZ","year":2024}`, http.StatusBadRequest, "invalid_spec"},
		{"unknown exam", &stubGenerator{}, `{"exam":"JEE"}`, http.StatusBadRequest, "invalid_spec"},
		{"malformed body", &stubGenerator{}, `{"exam":`, http.StatusBadRequest, "invalid_request"},
		{"unknown field", &stubGenerator{}, `{"exam":"CAT","sections":3}`, http.StatusBadRequest, "invalid_request"},
		{
			"capability",
			&stubGenerator{fail: &generator.Failure{Kind: generator.CapabilityUnavailable, Err: errors.New("no key")}},
			`{"exam":"CAT"}`, http.StatusServiceUnavailable, "capability_unavailable",
		},
		{
			"unfillable",
			&stubGenerator{fail: &generator.Failure{Kind: generator.MalformedResponse, Err: errors.New("not json")}},
			`{"exam":"GATE","stream":"CS"}`, http.StatusBadGateway, "slot_unfillable",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, tt.gen)
			resp, body := postJSON(t, srv.URL+"/v1/exams", tt.body)
			require.Equal(t, tt.wantStatus, resp.StatusCode, string(body))

			var parsed errorResponse
			require.NoError(t, json.Unmarshal(body, &parsed))
			assert.Equal(t, tt.wantError, parsed.Error)
			assert.NotEmpty(t, parsed.Message)
			if tt.wantError == "slot_unfillable" {
				assert.NotEmpty(t, parsed.Section)
				assert.NotNil(t, parsed.Slot)
			}
		})
	}
}

func TestErrorFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"canceled", &compose.Error{Kind: compose.Canceled, Err: context.Canceled}, StatusClientClosedRequest},
		{"deadline", &compose.Error{Kind: compose.Canceled, Err: context.DeadlineExceeded}, http.StatusGatewayTimeout},
		{"other", errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := errorFor(tt.err)
			assert.Equal(t, tt.want, status)
		})
	}
}
