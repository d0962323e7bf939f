package api

import "net/http"

// handleCost reports the budget ledger's running totals and the share of
// traffic that stayed on the zero-cost local tier.
func (s *Server) handleCost(w http.ResponseWriter, r *http.Request) {
	if s.budget == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"enabled": false})
		return
	}

	summary, err := s.budget.Summary()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "budget_summary_failed", err.Error())
		return
	}
	localPercent, err := s.budget.LocalPercent()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "budget_summary_failed", err.Error())
		return
	}
	limits := s.budget.Limits()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"enabled":           true,
		"today_eur":         summary.TodayEUR,
		"month_eur":         summary.MonthEUR,
		"lifetime_eur":      summary.LifetimeEUR,
		"query_count":       summary.QueryCount,
		"local_percent":     localPercent,
		"daily_cap_eur":     limits.DailyCapEUR,
		"monthly_cap_eur":   limits.MonthlyCapEUR,
		"used_percent_day":  summary.UsedPercent(limits),
	})
}
