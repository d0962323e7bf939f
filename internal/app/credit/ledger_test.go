package credit

import (
	"testing"

	"github.com/loka-network/loka/internal/domain"
	"github.com/loka-network/loka/internal/infra/sqlite"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	store, err := sqlite.OpenCreditStore(t.TempDir())
	if err != nil {
		t.Fatalf("open credit store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return New(store)
}

// ─── End-to-end scenario from the gateway's documented example ────────────

func TestLedger_GovernanceGrantSpendEarn(t *testing.T) {
	l := newTestLedger(t)

	if _, err := l.Record("alice", domain.CreditGovernanceGrant, 10000, "genesis"); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if _, err := l.Record("alice", domain.CreditSpend, 1100, "inference"); err != nil {
		t.Fatalf("spend: %v", err)
	}
	if _, err := l.Record("alice", domain.CreditEarn, 800, "served a peer"); err != nil {
		t.Fatalf("earn: %v", err)
	}

	balance, err := l.Balance("alice")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 9700 {
		t.Errorf("balance = %v, want 9700", balance)
	}

	report, err := l.Audit("alice")
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if !report.Passed {
		t.Errorf("audit failed: %+v", report)
	}
}

func TestSpend_InsufficientCreditsRejectedBeforeWrite(t *testing.T) {
	l := newTestLedger(t)

	if _, err := l.Record("bob", domain.CreditEarn, 100, "seed"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	_, err := l.Spend("bob", 500, "too much")
	if err != domain.ErrInsufficientCredits {
		t.Fatalf("err = %v, want ErrInsufficientCredits", err)
	}

	balance, err := l.Balance("bob")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 100 {
		t.Errorf("balance = %v, want unchanged 100", balance)
	}
}

func TestTransfer_MovesBetweenNodes(t *testing.T) {
	l := newTestLedger(t)

	if _, err := l.Record("carol", domain.CreditGovernanceGrant, 1000, "seed"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, _, err := l.Transfer("carol", "dave", 200, "payment"); err != nil {
		t.Fatalf("transfer: %v", err)
	}

	carolBal, _ := l.Balance("carol")
	daveBal, _ := l.Balance("dave")
	if carolBal != 800 {
		t.Errorf("carol balance = %v, want 800", carolBal)
	}
	if daveBal != 200 {
		t.Errorf("dave balance = %v, want 200", daveBal)
	}
}

func TestGetHistory_MostRecentFirst(t *testing.T) {
	l := newTestLedger(t)
	l.Record("erin", domain.CreditEarn, 10, "first")
	l.Record("erin", domain.CreditEarn, 10, "second")
	l.Record("erin", domain.CreditEarn, 10, "third")

	history, err := l.GetHistory("erin", 2)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("got %d entries, want 2", len(history))
	}
	if history[0].Reason != "third" {
		t.Errorf("first entry reason = %q, want third", history[0].Reason)
	}
}
