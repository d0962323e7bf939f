package router

import (
	"context"
	"errors"
	"testing"

	"github.com/loka-network/loka/internal/app/budget"
	"github.com/loka-network/loka/internal/domain"
	"github.com/loka-network/loka/internal/infra/sqlite"
)

type stubProvider struct {
	name    string
	model   string
	costIn  float64
	costOut float64
	fn      func(messages []domain.Message) (domain.CompletionResult, error)
}

func (p *stubProvider) Name() string  { return p.name }
func (p *stubProvider) Model() string { return p.model }
func (p *stubProvider) Complete(ctx context.Context, messages []domain.Message, opts domain.GenerateOptions) (domain.CompletionResult, error) {
	if p.fn != nil {
		return p.fn(messages)
	}
	return domain.CompletionResult{Content: "ok", Model: p.model}, nil
}
func (p *stubProvider) Stream(ctx context.Context, messages []domain.Message, opts domain.GenerateOptions) (<-chan domain.Fragment, error) {
	return nil, errors.New("not implemented")
}
func (p *stubProvider) HealthCheck(ctx context.Context) bool { return true }
func (p *stubProvider) CostPer1kInputEUR() float64           { return p.costIn }
func (p *stubProvider) CostPer1kOutputEUR() float64          { return p.costOut }

func newTestBudget(t *testing.T, dailyCap float64) *budget.Ledger {
	t.Helper()
	store, err := sqlite.OpenBudgetStore(t.TempDir())
	if err != nil {
		t.Fatalf("OpenBudgetStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return budget.New(store, domain.BudgetLimits{DailyCapEUR: dailyCap, MonthlyCapEUR: dailyCap * 30, WarnAtPercent: 80}, nil)
}

func TestRoute_SimpleQueryStaysLocal(t *testing.T) {
	local := &stubProvider{name: "local", model: "local-model"}
	r := New(DefaultConfig(), Providers{Local: local}, nil, newTestBudget(t, 5), nil, nil, nil, nil, nil)

	decision, err := r.Route(context.Background(), Request{Messages: []domain.Message{
		{Role: domain.RoleUser, Content: "What is 2 + 2?"},
	}})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if decision.Tier != domain.TierLocal {
		t.Fatalf("tier = %v, want local", decision.Tier)
	}
}

func TestRoute_PIIBlockedInPrivacyMode(t *testing.T) {
	local := &stubProvider{name: "local", model: "local-model"}
	cfg := DefaultConfig()
	cfg.PrivacyMode = true
	r := New(cfg, Providers{Local: local}, nil, newTestBudget(t, 5), nil, nil, nil, nil, nil)

	_, err := r.Route(context.Background(), Request{Messages: []domain.Message{
		{Role: domain.RoleUser, Content: "my email is person@example.com"},
	}})
	if !errors.Is(err, domain.ErrPIIBlocked) {
		t.Fatalf("err = %v, want ErrPIIBlocked", err)
	}
}

func TestRoute_PIIForcesLocalByDefault(t *testing.T) {
	local := &stubProvider{name: "local", model: "local-model"}
	cloud := &stubProvider{name: "cloud", model: "cloud-model", costIn: 100, costOut: 100}
	cfg := DefaultConfig()
	cfg.Thresholds.Local = 0
	cfg.Thresholds.Specialist = 0 // would classify as cloud tier if PII didn't short-circuit first
	r := New(cfg, Providers{Local: local, Cloud: cloud}, nil, newTestBudget(t, 5), nil, nil, nil, nil, nil)

	decision, err := r.Route(context.Background(), Request{Messages: []domain.Message{
		{Role: domain.RoleUser, Content: "my email is person@example.com, please analyse this in depth"},
	}})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if decision.Tier != domain.TierLocal {
		t.Fatalf("tier = %v, want local (default PII action forces local)", decision.Tier)
	}
	if decision.Reason != domain.ReasonPIIDetected {
		t.Fatalf("reason = %v, want pii_detected", decision.Reason)
	}
	if decision.Complexity != 0 {
		t.Fatalf("complexity = %v, want 0 (classification skipped)", decision.Complexity)
	}
}

func TestRoute_TokenLimitExceeded(t *testing.T) {
	local := &stubProvider{name: "local", model: "local-model"}
	cfg := DefaultConfig()
	cfg.MaxInputTokens = 3
	r := New(cfg, Providers{Local: local}, nil, newTestBudget(t, 5), nil, nil, nil, nil, nil)

	_, err := r.Route(context.Background(), Request{Messages: []domain.Message{
		{Role: domain.RoleUser, Content: "this message has way more than three words in it"},
	}})
	if !errors.Is(err, domain.ErrTokenLimitExceeded) {
		t.Fatalf("err = %v, want ErrTokenLimitExceeded", err)
	}
}

func TestRoute_CloudFallsBackToLocalOnBudgetExceeded(t *testing.T) {
	local := &stubProvider{name: "local", model: "local-model"}
	cloud := &stubProvider{name: "cloud", model: "cloud-model", costIn: 100, costOut: 100}
	cfg := DefaultConfig()
	cfg.Thresholds.Local = 0
	cfg.Thresholds.Specialist = 0 // force cloud tier for any non-trivial text
	cfg.FallbackToLocal = true
	r := New(cfg, Providers{Local: local, Cloud: cloud}, nil, newTestBudget(t, 0.0001), nil, nil, nil, nil, nil)

	decision, err := r.Route(context.Background(), Request{Messages: []domain.Message{
		{Role: domain.RoleUser, Content: "Compare and analyse the trade-offs of distributed architecture performance, step by step, because however the implication is complex. " +
			"```code```"},
	}})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if decision.Tier != domain.TierLocal {
		t.Fatalf("tier = %v, want local after budget fallback", decision.Tier)
	}
	if decision.Reason != domain.ReasonBudgetExceeded {
		t.Fatalf("reason = %v, want budget_exceeded", decision.Reason)
	}
}

func TestRoute_ZeroCostCloudTreatedAsLocal(t *testing.T) {
	local := &stubProvider{name: "local", model: "local-model"}
	zeroCostCloud := &stubProvider{name: "cloud-free", model: "cloud-free-model"}
	cfg := DefaultConfig()
	cfg.Thresholds.Local = 0
	cfg.Thresholds.Specialist = 0
	r := New(cfg, Providers{Local: local, Cloud: zeroCostCloud}, nil, newTestBudget(t, 5), nil, nil, nil, nil, nil)

	decision, err := r.Route(context.Background(), Request{Messages: []domain.Message{
		{Role: domain.RoleUser, Content: "Compare and analyse the trade-offs of distributed architecture."},
	}})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if decision.Tier != domain.TierLocal {
		t.Fatalf("tier = %v, want local (zero-cost cloud special case)", decision.Tier)
	}
}

func TestRoute_ZeroCostCloudRetargetsToSpecialistWhenConfigured(t *testing.T) {
	local := &stubProvider{name: "local", model: "local-model"}
	specialist := &stubProvider{name: "specialist", model: "specialist-model", costIn: 10, costOut: 10}
	zeroCostCloud := &stubProvider{name: "cloud-free", model: "cloud-free-model"}
	cfg := DefaultConfig()
	cfg.Thresholds.Local = 0
	cfg.Thresholds.Specialist = 0
	r := New(cfg, Providers{Local: local, Specialist: specialist, Cloud: zeroCostCloud}, nil, newTestBudget(t, 5), nil, nil, nil, nil, nil)

	decision, err := r.Route(context.Background(), Request{Messages: []domain.Message{
		{Role: domain.RoleUser, Content: "Compare and analyse the trade-offs of distributed architecture."},
	}})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if decision.Tier != domain.TierSpecialist {
		t.Fatalf("tier = %v, want specialist (zero-cost cloud must not silently downgrade when a paid specialist exists)", decision.Tier)
	}
}

func TestRoute_ProviderFailureFallsBackToLocal(t *testing.T) {
	local := &stubProvider{name: "local", model: "local-model"}
	failingCloud := &stubProvider{name: "cloud", model: "cloud-model", fn: func(messages []domain.Message) (domain.CompletionResult, error) {
		return domain.CompletionResult{}, errors.New("boom")
	}}
	cfg := DefaultConfig()
	cfg.Thresholds.Local = 0
	cfg.Thresholds.Specialist = 0
	r := New(cfg, Providers{Local: local, Cloud: failingCloud}, nil, newTestBudget(t, 5), nil, nil, nil, nil, nil)

	decision, err := r.Route(context.Background(), Request{Messages: []domain.Message{
		{Role: domain.RoleUser, Content: "Compare and analyse the trade-offs of distributed architecture."},
	}})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if decision.Tier != domain.TierLocal {
		t.Fatalf("tier = %v, want local after provider failure fallback", decision.Tier)
	}
}

func TestRoute_NoProvidersAvailable(t *testing.T) {
	r := New(DefaultConfig(), Providers{}, nil, newTestBudget(t, 5), nil, nil, nil, nil, nil)
	_, err := r.Route(context.Background(), Request{Messages: []domain.Message{
		{Role: domain.RoleUser, Content: "hello"},
	}})
	if !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Fatalf("err = %v, want ErrProviderUnavailable", err)
	}
}

func TestRoute_TraceHasSteps(t *testing.T) {
	local := &stubProvider{name: "local", model: "local-model"}
	r := New(DefaultConfig(), Providers{Local: local}, nil, newTestBudget(t, 5), nil, nil, nil, nil, nil)

	decision, err := r.Route(context.Background(), Request{Messages: []domain.Message{
		{Role: domain.RoleUser, Content: "hi"},
	}})
	if err != nil {
		t.Fatalf("Route: %v", err)
	}
	if len(decision.Trace) == 0 {
		t.Fatal("expected non-empty trace")
	}
}

func TestExplain_DoesNotExecuteOrRecordBudget(t *testing.T) {
	cloud := &stubProvider{name: "cloud", model: "cloud-model", costIn: 10, costOut: 10, fn: func(messages []domain.Message) (domain.CompletionResult, error) {
		t.Fatal("Explain must not execute a completion")
		return domain.CompletionResult{}, nil
	}}
	local := &stubProvider{name: "local", model: "local-model"}
	cfg := DefaultConfig()
	cfg.Thresholds.Local = 0
	cfg.Thresholds.Specialist = 0 // force cloud tier
	ledger := newTestBudget(t, 5)
	r := New(cfg, Providers{Local: local, Cloud: cloud}, nil, ledger, nil, nil, nil, nil, nil)

	decision, err := r.Explain(context.Background(), Request{Messages: []domain.Message{
		{Role: domain.RoleUser, Content: "Compare and analyse distributed system trade-offs in depth."},
	}})
	if err != nil {
		t.Fatalf("Explain: %v", err)
	}
	if decision.Tier != domain.TierCloud {
		t.Fatalf("tier = %v, want cloud", decision.Tier)
	}
	if decision.Response.CostEUR <= 0 {
		t.Fatalf("CostEUR = %v, want a positive estimate for a paid cloud provider", decision.Response.CostEUR)
	}
	summary, err := ledger.Summary()
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if summary.QueryCount != 0 {
		t.Fatalf("QueryCount = %d, want 0 (explain must not write to the budget ledger)", summary.QueryCount)
	}
}
