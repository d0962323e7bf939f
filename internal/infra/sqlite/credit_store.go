package sqlite

import (
	"database/sql"
	"time"

	"github.com/loka-network/loka/internal/domain"
)

// CreditStore persists the append-only credit ledger, one database file
// dedicated to credits so it can be backed up or wiped independently of
// budget and memory data.
type CreditStore struct {
	*DB
}

// OpenCreditStore opens (or creates) credits.db under dir.
func OpenCreditStore(dir string) (*CreditStore, error) {
	db, err := Open(dir, "credits.db")
	if err != nil {
		return nil, err
	}
	s := &CreditStore{DB: db}
	if err := s.migrate([]string{
		`CREATE TABLE IF NOT EXISTS credit_transactions (
			id        TEXT PRIMARY KEY,
			node_id   TEXT NOT NULL,
			kind      TEXT NOT NULL,
			amount    REAL NOT NULL,
			balance   REAL NOT NULL,
			reason    TEXT NOT NULL DEFAULT '',
			timestamp INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_credit_node ON credit_transactions(node_id, timestamp)`,
	}); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Append inserts one transaction. The ledger is append-only: there is no
// update or delete path.
func (s *CreditStore) Append(tx domain.CreditTransaction) error {
	_, err := s.conn.Exec(
		`INSERT INTO credit_transactions (id, node_id, kind, amount, balance, reason, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, tx.NodeID, string(tx.Kind), tx.Amount, tx.Balance, tx.Reason, tx.Timestamp.Unix(),
	)
	return err
}

// Balance returns the current balance for a node, i.e. the balance of its
// most recent transaction, or 0 if the node has never transacted.
func (s *CreditStore) Balance(nodeID string) (float64, error) {
	var balance float64
	err := s.conn.QueryRow(
		`SELECT balance FROM credit_transactions WHERE node_id = ? ORDER BY timestamp DESC, rowid DESC LIMIT 1`,
		nodeID,
	).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return balance, err
}

// History returns all transactions for a node in chronological order, used
// by the audit/replay-verification path.
func (s *CreditStore) History(nodeID string) ([]domain.CreditTransaction, error) {
	rows, err := s.conn.Query(
		`SELECT id, node_id, kind, amount, balance, reason, timestamp
		 FROM credit_transactions WHERE node_id = ? ORDER BY timestamp ASC, rowid ASC`,
		nodeID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.CreditTransaction
	for rows.Next() {
		tx, err := scanCreditTx(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func scanCreditTx(s scanner) (domain.CreditTransaction, error) {
	var tx domain.CreditTransaction
	var kind string
	var ts int64
	if err := s.Scan(&tx.ID, &tx.NodeID, &kind, &tx.Amount, &tx.Balance, &tx.Reason, &ts); err != nil {
		return tx, err
	}
	tx.Kind = domain.CreditKind(kind)
	tx.Timestamp = time.Unix(ts, 0)
	return tx, nil
}
