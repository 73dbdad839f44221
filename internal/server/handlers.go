package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/examforge/examforge/internal/compose"
	"github.com/examforge/examforge/internal/exam"
)

// StatusClientClosedRequest is reported when the client went away before
// the exam was ready.
const StatusClientClosedRequest = 499

type composeRequest struct {
	Exam   string `json:"exam"`
	Stream string `json:"stream"`
	Year   int    `json:"year"`
	Reuse  bool   `json:"reuse"`
}

type composeResponse struct {
	exam.Document
	Digest string `json:"digest"`
	Cached bool   `json:"cached"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Section string `json:"section,omitempty"`
	Slot    *int   `json:"slot,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStreams(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, exam.GATEStreams())
}

func (s *Server) handleCompose(w http.ResponseWriter, r *http.Request) {
	var req composeRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}

	ctx := r.Context()
	if s.config.ComposeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.ComposeTimeout)
		defer cancel()
	}

	spec := exam.Spec{Exam: exam.Name(req.Exam), Stream: req.Stream, Year: req.Year}
	res, err := s.exams.Get(ctx, spec, req.Reuse)
	if err != nil {
		status, body := errorFor(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("compose request failed", "spec", spec.String(), "error", err)
		}
		writeJSON(w, status, body)
		return
	}

	writeJSON(w, http.StatusOK, composeResponse{Document: res.Document, Digest: res.Digest, Cached: res.Cached})
}

// errorFor maps a composition failure to an HTTP status and body.
func errorFor(err error) (int, errorResponse) {
	body := errorResponse{Message: err.Error()}
	var cerr *compose.Error
	if errors.As(err, &cerr) {
		body.Error = string(cerr.Kind)
		if cerr.Section != "" {
			body.Section = cerr.Section
			slot := cerr.Slot
			body.Slot = &slot
		}
	}

	switch {
	case errors.Is(err, compose.ErrInvalidSpec):
		return http.StatusBadRequest, body
	case errors.Is(err, compose.ErrCapabilityUnavailable):
		return http.StatusServiceUnavailable, body
	case errors.Is(err, compose.ErrSlotUnfillable):
		return http.StatusBadGateway, body
	case errors.Is(err, context.DeadlineExceeded):
		body.Error = "timeout"
		return http.StatusGatewayTimeout, body
	case errors.Is(err, compose.ErrCanceled), errors.Is(err, context.Canceled):
		return StatusClientClosedRequest, body
	default:
		body.Error = "internal"
		return http.StatusInternalServerError, body
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
