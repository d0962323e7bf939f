// Package credit implements the append-only credit ledger used to settle
// work performed by mesh nodes for one another.
package credit

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/loka-network/loka/internal/domain"
	"github.com/loka-network/loka/internal/infra/sqlite"
)

// Ledger is single-entry and append-only: every transaction stores its own
// resulting balance rather than being paired with a matching opposite
// entry, so history can be replayed directly into the derived balance.
type Ledger struct {
	store *sqlite.CreditStore
}

// New wires a credit ledger against its own database file.
func New(store *sqlite.CreditStore) *Ledger {
	return &Ledger{store: store}
}

func (l *Ledger) delta(kind domain.CreditKind) float64 {
	switch kind {
	case domain.CreditEarn, domain.CreditRelease, domain.CreditGovernanceGrant:
		return 1
	default:
		return -1
	}
}

// Record appends a transaction, computing the new balance from the current
// one inside the same logical operation. Spend/reserve transactions that
// would drive the balance negative fail before any write.
func (l *Ledger) Record(nodeID string, kind domain.CreditKind, amount float64, reason string) (domain.CreditTransaction, error) {
	if amount < 0 {
		return domain.CreditTransaction{}, fmt.Errorf("credit: amount must be non-negative, got %v", amount)
	}

	current, err := l.store.Balance(nodeID)
	if err != nil {
		return domain.CreditTransaction{}, fmt.Errorf("credit: read balance: %w", err)
	}

	newBalance := current + l.delta(kind)*amount
	if newBalance < 0 {
		return domain.CreditTransaction{}, domain.ErrInsufficientCredits
	}

	tx := domain.CreditTransaction{
		ID:        uuid.NewString(),
		NodeID:    nodeID,
		Kind:      kind,
		Amount:    amount,
		Balance:   newBalance,
		Reason:    reason,
		Timestamp: time.Now(),
	}
	if err := l.store.Append(tx); err != nil {
		return domain.CreditTransaction{}, fmt.Errorf("credit: append transaction: %w", err)
	}
	return tx, nil
}

// Spend is Record with CreditSpend, explicit for readability at call sites.
func (l *Ledger) Spend(nodeID string, amount float64, reason string) (domain.CreditTransaction, error) {
	return l.Record(nodeID, domain.CreditSpend, amount, reason)
}

// Transfer moves credits from one node to another as two separate Record
// calls: the debit from `from` first, then the credit to `to`. It is not
// atomic: if the credit fails, the debit stays recorded and is returned
// alongside the error.
func (l *Ledger) Transfer(from, to string, amount float64, memo string) (debit, credit domain.CreditTransaction, err error) {
	debit, err = l.Record(from, domain.CreditSpend, amount, memo)
	if err != nil {
		return domain.CreditTransaction{}, domain.CreditTransaction{}, err
	}
	credit, err = l.Record(to, domain.CreditEarn, amount, memo)
	if err != nil {
		return debit, domain.CreditTransaction{}, err
	}
	return debit, credit, nil
}

// Balance returns a node's current balance.
func (l *Ledger) Balance(nodeID string) (float64, error) {
	return l.store.Balance(nodeID)
}

// GetHistory returns a node's most recent transactions first, up to limit.
func (l *Ledger) GetHistory(nodeID string, limit int) ([]domain.CreditTransaction, error) {
	history, err := l.store.History(nodeID)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(history)-1; i < j; i, j = i+1, j-1 {
		history[i], history[j] = history[j], history[i]
	}
	if limit > 0 && len(history) > limit {
		history = history[:limit]
	}
	return history, nil
}

// AuditReport is the result of replaying a node's transaction history.
type AuditReport struct {
	NodeID        string
	Passed        bool
	NegativeSeen  bool
	DivergesAtTx  string
}

// Audit replays a node's stored transactions and verifies the running
// balance matches each row's stored Balance, reporting any divergence or
// negative balance.
func (l *Ledger) Audit(nodeID string) (AuditReport, error) {
	history, err := l.store.History(nodeID)
	if err != nil {
		return AuditReport{}, err
	}

	report := AuditReport{NodeID: nodeID, Passed: true}
	var running float64
	for _, tx := range history {
		running += l.delta(tx.Kind) * tx.Amount
		if running != tx.Balance {
			report.Passed = false
			report.DivergesAtTx = tx.ID
			break
		}
		if running < 0 {
			report.Passed = false
			report.NegativeSeen = true
			break
		}
	}
	return report, nil
}
