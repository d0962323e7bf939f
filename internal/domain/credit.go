package domain

import "time"

// CreditKind identifies the nature of a ledger transaction.
type CreditKind string

const (
	CreditEarn             CreditKind = "earn"
	CreditSpend            CreditKind = "spend"
	CreditReserve          CreditKind = "reserve"
	CreditRelease          CreditKind = "release"
	CreditGovernanceGrant  CreditKind = "governance_grant"
)

// CreditTransaction is one append-only row in the credit ledger. Unlike a
// double-entry ledger, each row stands alone and carries the resulting
// balance for the account at the time it was written, so history can be
// replayed and verified without recomputing from a separate balance table.
type CreditTransaction struct {
	ID        string
	NodeID    string
	Kind      CreditKind
	Amount    float64
	Balance   float64
	Reason    string
	Timestamp time.Time
}

// VerifyCreditHistory recomputes the running balance across a transaction history in
// order and reports whether the stored Balance fields are internally
// consistent, catching tampering or a missed write.
func VerifyCreditHistory(txs []CreditTransaction) bool {
	var running float64
	for _, tx := range txs {
		switch tx.Kind {
		case CreditEarn, CreditRelease, CreditGovernanceGrant:
			running += tx.Amount
		case CreditSpend, CreditReserve:
			running -= tx.Amount
		}
		if running != tx.Balance {
			return false
		}
	}
	return true
}
