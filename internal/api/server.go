// Package api provides Loka's HTTP gateway: an OpenAI-compatible
// /v1/chat/completions endpoint plus the gateway's own routing, cost, and
// health introspection endpoints.
package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/loka-network/loka/internal/app/budget"
	"github.com/loka-network/loka/internal/app/credit"
	"github.com/loka-network/loka/internal/health"
	"github.com/loka-network/loka/internal/router"
)

// Server is Loka's HTTP API server. It does not bind a socket itself:
// daemon.Serve listens on the configured API host, which defaults to
// 127.0.0.1 because the gateway holds provider API keys and a spendable
// credit ledger.
type Server struct {
	router         *router.Router
	budget         *budget.Ledger
	credit         *credit.Ledger
	health         *health.Checker
	models         []ModelInfo
	apiKeys        map[string]bool
	metricsEnabled bool
	log            *logrus.Logger
}

// SetHealthChecker wires the health checker /v1/health reports from.
func (s *Server) SetHealthChecker(h *health.Checker) { s.health = h }

// ModelInfo describes one routable model for /v1/models, extended with
// Loka-specific fields any OpenAI-compatible client will simply ignore.
type ModelInfo struct {
	ID                    string
	Tier                  string
	CostPer1kInputEUR     float64
	CostPer1kOutputEUR    float64
}

// NewServer builds a Server. apiKeys may be empty, in which case the
// gateway accepts any bearer token (suitable for loopback-only binding).
func NewServer(rt *router.Router, budgetLedger *budget.Ledger, creditLedger *credit.Ledger, models []ModelInfo, apiKeys []string, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	keySet := make(map[string]bool, len(apiKeys))
	for _, k := range apiKeys {
		keySet[k] = true
	}
	return &Server{router: rt, budget: budgetLedger, credit: creditLedger, models: models, apiKeys: keySet, log: log}
}

// EnableMetrics turns on the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// Handler returns the chi router with every route mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))
	r.Use(loopbackCORS)
	r.Use(s.authenticate)

	r.Get("/v1/health", s.handleHealth)
	r.Get("/v1/models", s.handleListModels)
	r.Post("/v1/chat/completions", s.handleChatCompletions)
	r.Post("/v1/route", s.handleRouteExplain)
	r.Get("/v1/cost", s.handleCost)

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// authenticate requires a bearer token matching one of the configured API
// keys. When no keys are configured, every request is accepted — this is
// the expected posture for a gateway bound to loopback only.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(s.apiKeys) == 0 || r.URL.Path == "/v1/health" || r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		auth := r.Header.Get("Authorization")
		token := strings.TrimPrefix(auth, "Bearer ")
		if token == "" || !s.apiKeys[token] {
			writeError(w, http.StatusUnauthorized, "authentication_error", "invalid_api_key", "invalid or missing API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// loopbackCORS only reflects an Origin header from localhost/127.0.0.1,
// unlike the wildcard CORS a public-facing server would use.
func loopbackCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if isLoopbackOrigin(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isLoopbackOrigin(origin string) bool {
	if origin == "" {
		return false
	}
	return strings.Contains(origin, "://localhost") || strings.Contains(origin, "://127.0.0.1")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes the OpenAI-compatible error envelope
// {"error":{"type","code","message"}}. errType is the broad category
// (e.g. "authentication_error", "invalid_request_error"); code is the
// stable machine-readable reason within that category.
func writeError(w http.ResponseWriter, status int, errType, code, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"type":    errType,
			"code":    code,
			"message": msg,
		},
	})
}
