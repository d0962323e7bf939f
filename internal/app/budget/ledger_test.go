package budget

import (
	"testing"
	"time"

	"github.com/loka-network/loka/internal/domain"
	"github.com/loka-network/loka/internal/infra/sqlite"
)

func newTestLedger(t *testing.T, limits domain.BudgetLimits) *Ledger {
	t.Helper()
	store, err := sqlite.OpenBudgetStore(t.TempDir())
	if err != nil {
		t.Fatalf("open budget store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return New(store, limits, nil)
}

// ─── Cap enforcement ────────────────────────────────────────────────────────

func TestCheckAndRecord_RejectsOverDailyCap(t *testing.T) {
	l := newTestLedger(t, domain.BudgetLimits{DailyCapEUR: 1.0, MonthlyCapEUR: 100})

	now := time.Now()
	if err := l.CheckAndRecord(domain.BudgetCostRecord{Timestamp: now, Model: "gpt", CostEUR: 0.6, Tier: domain.TierCloud}); err != nil {
		t.Fatalf("first record: %v", err)
	}
	err := l.CheckAndRecord(domain.BudgetCostRecord{Timestamp: now, Model: "gpt", CostEUR: 0.6, Tier: domain.TierCloud})
	if err != domain.ErrBudgetExceeded {
		t.Fatalf("err = %v, want ErrBudgetExceeded", err)
	}
}

func TestCheckAndRecord_NeverExceedsCapAfterSuccesses(t *testing.T) {
	l := newTestLedger(t, domain.BudgetLimits{DailyCapEUR: 5.0, MonthlyCapEUR: 50})
	now := time.Now()

	for i := 0; i < 20; i++ {
		err := l.CheckAndRecord(domain.BudgetCostRecord{Timestamp: now, Model: "gpt", CostEUR: 0.3, Tier: domain.TierCloud})
		if err != nil && err != domain.ErrBudgetExceeded {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	summary, err := l.Summary()
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.TodayEUR > 5.0+1e-9 {
		t.Errorf("today total = %v, exceeds daily cap 5.0", summary.TodayEUR)
	}
}

func TestRecord_Unconditional(t *testing.T) {
	l := newTestLedger(t, domain.BudgetLimits{DailyCapEUR: 0})
	if err := l.Record(domain.BudgetCostRecord{Model: "local", CostEUR: 0, Tier: domain.TierLocal}); err != nil {
		t.Fatalf("record: %v", err)
	}
	summary, err := l.Summary()
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.QueryCount != 1 {
		t.Errorf("query count = %d, want 1", summary.QueryCount)
	}
}
