package api

import "net/http"

// handleListModels reports every configured model with Loka's own
// tier/cost extension fields. Standard OpenAI clients read "id" and
// ignore the rest.
func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	data := make([]map[string]interface{}, 0, len(s.models))
	for _, m := range s.models {
		data = append(data, map[string]interface{}{
			"id":                           m.ID,
			"object":                       "model",
			"owned_by":                     "loka",
			"loka_tier":                    m.Tier,
			"loka_cost_per_1k_input_eur":   m.CostPer1kInputEUR,
			"loka_cost_per_1k_output_eur":  m.CostPer1kOutputEUR,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"object": "list",
		"data":   data,
	})
}
