package api

import (
	"encoding/json"
	"net/http"

	"github.com/loka-network/loka/internal/domain"
	"github.com/loka-network/loka/internal/router"
)

// routeExplainRequest mirrors chatRequest's shape but is never actually
// completed: /v1/route runs the pipeline and reports what it would do.
type routeExplainRequest struct {
	Messages  []chatMessage `json:"messages"`
	SessionID string        `json:"session_id,omitempty"`
}

// handleRouteExplain runs the same classification and provider selection
// as /v1/chat/completions but stops short of execution: no completion is
// requested, no budget record is written, and nothing is appended to
// memory. The reported cost is an estimate, not an amount actually spent.
func (s *Server) handleRouteExplain(w http.ResponseWriter, r *http.Request) {
	var req routeExplainRequest
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

	decision, err := s.router.Explain(r.Context(), router.Request{SessionID: req.SessionID, Messages: messages, Interactive: true})
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"tier":   decision.Tier,
			"reason": decision.Reason,
			"error":  err.Error(),
			"trace":  decision.Trace,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tier":                decision.Tier,
		"model":               decision.Model,
		"reason":              decision.Reason,
		"complexity":          decision.Complexity,
		"estimated_cost_eur":  decision.Response.CostEUR,
		"trace":               decision.Trace,
	})
}
