package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/loka-network/loka/internal/app/budget"
	"github.com/loka-network/loka/internal/domain"
	"github.com/loka-network/loka/internal/infra/sqlite"
	"github.com/loka-network/loka/internal/router"
)

func TestHandleRouteExplain_DoesNotExecute(t *testing.T) {
	store, err := sqlite.OpenBudgetStore(t.TempDir())
	if err != nil {
		t.Fatalf("OpenBudgetStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	ledger := budget.New(store, domain.BudgetLimits{DailyCapEUR: 5, MonthlyCapEUR: 100, WarnAtPercent: 80}, nil)

	local := &stubProvider{name: "local", model: "local-model"}
	rt := router.New(router.DefaultConfig(), router.Providers{Local: local}, nil, ledger, nil, nil, nil, nil, nil)
	models := []ModelInfo{{ID: "local-model", Tier: "local"}}
	s := NewServer(rt, ledger, nil, models, nil, nil)

	body, _ := json.Marshal(map[string]interface{}{
		"messages": []map[string]string{{"role": "user", "content": "what is 2 + 2?"}},
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/route", bytes.NewReader(body))
	w := httptest.NewRecorder()

	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["tier"] != string(domain.TierLocal) {
		t.Fatalf("tier = %v, want local", resp["tier"])
	}
	if _, ok := resp["estimated_cost_eur"]; !ok {
		t.Fatal("expected estimated_cost_eur in explain response")
	}

	summary, err := ledger.Summary()
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if summary.QueryCount != 0 {
		t.Fatalf("QueryCount = %d, want 0 (explain must not execute or record budget)", summary.QueryCount)
	}
}

func TestHandleRouteExplain_MissingMessagesRejected(t *testing.T) {
	local := &stubProvider{name: "local", model: "local-model"}
	rt := router.New(router.DefaultConfig(), router.Providers{Local: local}, nil, nil, nil, nil, nil, nil, nil)
	s := NewServer(rt, nil, nil, nil, nil, nil)

	body, _ := json.Marshal(map[string]interface{}{})
	req := httptest.NewRequest(http.MethodPost, "/v1/route", bytes.NewReader(body))
	w := httptest.NewRecorder()

	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}
