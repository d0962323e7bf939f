package sqlite

import (
	"database/sql"
	"time"

	"github.com/loka-network/loka/internal/domain"
)

// BudgetStore persists the budget ledger in its own database file, kept
// separate from the credit ledger and memory store per the gateway's
// one-database-per-concern layout.
type BudgetStore struct {
	*DB
}

// OpenBudgetStore opens (or creates) budget.db under dir.
func OpenBudgetStore(dir string) (*BudgetStore, error) {
	db, err := Open(dir, "budget.db")
	if err != nil {
		return nil, err
	}
	s := &BudgetStore{DB: db}
	if err := s.migrate([]string{
		`CREATE TABLE IF NOT EXISTS cost_records (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp     INTEGER NOT NULL,
			model         TEXT NOT NULL,
			input_tokens  INTEGER NOT NULL,
			output_tokens INTEGER NOT NULL,
			cost_eur      REAL NOT NULL,
			tier          TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cost_records_ts ON cost_records(timestamp)`,
	}); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Insert appends one cost record. Never called with query content — the
// privacy invariant is enforced by the caller's type, which has no such
// field.
func (s *BudgetStore) Insert(r domain.BudgetCostRecord) error {
	_, err := s.conn.Exec(
		`INSERT INTO cost_records (timestamp, model, input_tokens, output_tokens, cost_eur, tier)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		r.Timestamp.Unix(), r.Model, r.InputTokens, r.OutputTokens, r.CostEUR, string(r.Tier),
	)
	return err
}

// SumSince returns the total cost and row count recorded since cutoff.
func (s *BudgetStore) SumSince(cutoff time.Time) (float64, int64, error) {
	var total sql.NullFloat64
	var count int64
	err := s.conn.QueryRow(
		`SELECT COALESCE(SUM(cost_eur), 0), COUNT(*) FROM cost_records WHERE timestamp >= ?`,
		cutoff.Unix(),
	).Scan(&total, &count)
	if err != nil {
		return 0, 0, err
	}
	return total.Float64, count, nil
}

// SumAll returns the lifetime total cost.
func (s *BudgetStore) SumAll() (float64, error) {
	var total sql.NullFloat64
	err := s.conn.QueryRow(`SELECT COALESCE(SUM(cost_eur), 0) FROM cost_records`).Scan(&total)
	return total.Float64, err
}

// CountByTier returns how many recorded queries ran at a given tier, used
// to compute the fraction of traffic that stayed local.
func (s *BudgetStore) CountByTier(tier domain.RoutingTier) (int64, error) {
	var n int64
	err := s.conn.QueryRow(`SELECT COUNT(*) FROM cost_records WHERE tier = ?`, string(tier)).Scan(&n)
	return n, err
}

// CountAll returns the total number of recorded queries.
func (s *BudgetStore) CountAll() (int64, error) {
	var n int64
	err := s.conn.QueryRow(`SELECT COUNT(*) FROM cost_records`).Scan(&n)
	return n, err
}
