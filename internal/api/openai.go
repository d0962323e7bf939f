package api

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/loka-network/loka/internal/domain"
	"github.com/loka-network/loka/internal/router"
)

// chatRequest is the OpenAI-compatible chat completions request body.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	SessionID   string        `json:"session_id,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_error", "invalid_body", "invalid request body: "+err.Error())
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request_error", "missing_messages", "messages is required")
		return
	}

	messages := make([]domain.Message, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = domain.Message{Role: domain.Role(m.Role), Content: m.Content}
	}

	routeReq := router.Request{SessionID: req.SessionID, Messages: messages, Interactive: true, Stream: req.Stream}
	completionID := "chatcmpl-" + uuid.New().String()[:8]

	if req.Stream {
		s.streamChatResponse(w, r, routeReq, completionID)
		return
	}
	s.nonStreamChatResponse(w, r, routeReq, completionID)
}

func (s *Server) nonStreamChatResponse(w http.ResponseWriter, r *http.Request, routeReq router.Request, completionID string) {
	decision, err := s.router.Route(r.Context(), routeReq)
	if err != nil {
		writeRouteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":      completionID,
		"object":  "chat.completion",
		"created": time.Now().Unix(),
		"model":   decision.Model,
		"choices": []map[string]interface{}{
			{
				"index": 0,
				"message": map[string]interface{}{
					"role":    "assistant",
					"content": decision.Response.Content,
				},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]interface{}{
			"prompt_tokens":     decision.Response.InputTokens,
			"completion_tokens": decision.Response.OutputTokens,
			"total_tokens":      decision.Response.InputTokens + decision.Response.OutputTokens,
		},
		"loka_tier":       decision.Tier,
		"loka_reason":     decision.Reason,
		"loka_complexity": decision.Complexity,
	})
}

func (s *Server) streamChatResponse(w http.ResponseWriter, r *http.Request, routeReq router.Request, completionID string) {
	result, err := s.router.RouteStream(r.Context(), routeReq)
	if err != nil {
		writeRouteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	flusher, ok := w.(http.Flusher)
	if !ok {
		return
	}
	writer := bufio.NewWriter(w)

	roleChunk := map[string]interface{}{
		"id": completionID, "object": "chat.completion.chunk", "created": time.Now().Unix(),
		"model": result.Decision.Model,
		"choices": []map[string]interface{}{
			{"index": 0, "delta": map[string]interface{}{"role": "assistant"}, "finish_reason": nil},
		},
	}
	data, _ := json.Marshal(roleChunk)
	fmt.Fprintf(writer, "data: %s\n\n", data)
	writer.Flush()
	flusher.Flush()

	for frag := range result.Fragments {
		chunk := map[string]interface{}{
			"id": completionID, "object": "chat.completion.chunk", "created": time.Now().Unix(),
			"model": result.Decision.Model,
			"choices": []map[string]interface{}{
				{"index": 0, "delta": map[string]interface{}{"content": frag.Text}, "finish_reason": nil},
			},
		}
		data, _ := json.Marshal(chunk)
		fmt.Fprintf(writer, "data: %s\n\n", data)
		writer.Flush()
		flusher.Flush()
	}

	finalChunk := map[string]interface{}{
		"id": completionID, "object": "chat.completion.chunk", "created": time.Now().Unix(),
		"model": result.Decision.Model,
		"choices": []map[string]interface{}{
			{"index": 0, "delta": map[string]interface{}{}, "finish_reason": "stop"},
		},
	}
	data, _ = json.Marshal(finalChunk)
	fmt.Fprintf(writer, "data: %s\n\n", data)
	fmt.Fprintf(writer, "data: [DONE]\n\n")
	writer.Flush()
	flusher.Flush()
}

func writeRouteError(w http.ResponseWriter, err error) {
	var piiErr *domain.PIIBlockedError
	switch {
	case errors.As(err, &piiErr):
		msg := "request blocked: detected " + strings.Join(piiErr.Types, ", ")
		writeError(w, http.StatusForbidden, "pii_error", "pii_detected", msg)
	case errors.Is(err, domain.ErrPIIBlocked):
		writeError(w, http.StatusForbidden, "pii_error", "pii_detected", err.Error())
	case errors.Is(err, domain.ErrTokenLimitExceeded):
		writeError(w, http.StatusRequestEntityTooLarge, "invalid_request_error", "token_limit_exceeded", err.Error())
	case errors.Is(err, domain.ErrBudgetExceeded):
		writeError(w, http.StatusPaymentRequired, "budget_error", "budget_exceeded", err.Error())
	case errors.Is(err, domain.ErrProviderUnavailable):
		writeError(w, http.StatusServiceUnavailable, "provider_error", "provider_unavailable", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "internal", err.Error())
	}
}
