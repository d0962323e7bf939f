package api

import "net/http"

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
		return
	}

	status := http.StatusOK
	healthy := s.health.IsHealthy()
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	statusText := "degraded"
	if healthy {
		statusText = "ok"
	}
	writeJSON(w, status, map[string]interface{}{
		"status": statusText,
		"checks": s.health.Statuses(),
	})
}
