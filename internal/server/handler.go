package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/howard-nolan/llminvoke/internal/dispatch"
	"github.com/howard-nolan/llminvoke/internal/provider"
)

// maxInvokeBody caps the POST /v1/invoke body, history included.
const maxInvokeBody = 4 << 20

// invokeRequest is the POST /v1/invoke body.
//
// History distinguishes absent (no conversation) from an empty array (start
// a new one and return it).
type invokeRequest struct {
	Model        string             `json:"model"`
	Prompt       string             `json:"prompt"`
	SystemPrompt string             `json:"system_prompt,omitempty"`
	Params       map[string]any     `json:"params,omitempty"`
	History      []provider.Message `json:"history"`
	WantHistory  bool               `json:"want_history,omitempty"`
}

type invokeResponse struct {
	ID      string              `json:"id"`
	Model   string              `json:"model"`
	Family  string              `json:"family"`
	Text    string              `json:"text"`
	History *[]provider.Message `json:"history,omitempty"`
}

type errorResponse struct {
	ID    string `json:"id,omitempty"`
	Error string `json:"error"`
	Type  string `json:"type"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleModels(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"models": provider.Models()})
}

// handleInvoke handles POST /v1/invoke. It is a thin JSON shell around
// Invoker.Invoke; the conversation lives entirely in the request and
// response bodies.
func (s *Server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()
	logger := s.logger.With("invocation_id", id, "request_id", middleware.GetReqID(r.Context()))

	var body invokeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxInvokeBody)).Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{
				ID: id, Type: "request_too_large", Error: fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit),
			})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{
			ID: id, Type: "invalid_request", Error: "invalid request body: " + err.Error(),
		})
		return
	}

	req := &dispatch.Request{
		Model:        body.Model,
		Prompt:       body.Prompt,
		Params:       body.Params,
		SystemPrompt: body.SystemPrompt,
		WantHistory:  body.WantHistory,
	}
	if body.History != nil {
		req.History = provider.NewHistory(body.History...)
	}

	res, err := s.invoker.Invoke(r.Context(), req)
	if err != nil {
		status, kind := errorStatus(err)
		logger.WarnContext(r.Context(), "invocation failed", "model", body.Model, "type", kind, "error", err)
		writeJSON(w, status, errorResponse{ID: id, Type: kind, Error: err.Error()})
		return
	}

	resp := invokeResponse{
		ID:     id,
		Model:  body.Model,
		Family: res.Family.String(),
		Text:   res.Text,
	}
	if res.History != nil {
		msgs := res.History.Snapshot()
		if msgs == nil {
			msgs = []provider.Message{}
		}
		resp.History = &msgs
	}
	writeJSON(w, http.StatusOK, resp)
}

// errorStatus maps an invocation error to an HTTP status and a short type
// tag for the response body.
func errorStatus(err error) (int, string) {
	var (
		unsupported *provider.UnsupportedModelError
		malformed   *provider.MalformedResponseError
		remote      *provider.RemoteCallError
	)
	switch {
	case errors.As(err, &unsupported):
		return http.StatusBadRequest, "unsupported_model"
	case errors.As(err, &malformed):
		return http.StatusBadGateway, "malformed_response"
	case errors.As(err, &remote):
		return http.StatusBadGateway, "remote_call"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
