package sqlite

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/loka-network/loka/internal/domain"
)

// MemoryStore persists conversation memory, one database file per the
// gateway's per-concern database layout.
type MemoryStore struct {
	*DB
}

// OpenMemoryStore opens (or creates) memory.db under dir.
func OpenMemoryStore(dir string) (*MemoryStore, error) {
	db, err := Open(dir, "memory.db")
	if err != nil {
		return nil, err
	}
	s := &MemoryStore{DB: db}
	if err := s.migrate([]string{
		`CREATE TABLE IF NOT EXISTS memory_entries (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			role       TEXT NOT NULL,
			content    TEXT NOT NULL,
			vector     TEXT,
			timestamp  INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS memory_sessions (
			session_id  TEXT PRIMARY KEY,
			created_at  INTEGER NOT NULL,
			last_active INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS user_profiles (
			session_id TEXT PRIMARY KEY,
			summary    TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_memory_session ON memory_entries(session_id, timestamp)`,
	}); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Add appends one entry to a session's history, touching the session's
// last_active timestamp.
func (s *MemoryStore) Add(e domain.MemoryEntry) error {
	var vectorJSON sql.NullString
	if len(e.Vector) > 0 {
		b, err := json.Marshal(e.Vector)
		if err != nil {
			return err
		}
		vectorJSON = sql.NullString{String: string(b), Valid: true}
	}

	_, err := s.conn.Exec(
		`INSERT INTO memory_entries (session_id, role, content, vector, timestamp) VALUES (?, ?, ?, ?, ?)`,
		e.SessionID, string(e.Role), e.Content, vectorJSON, e.Timestamp.Unix(),
	)
	if err != nil {
		return err
	}

	_, err = s.conn.Exec(
		`INSERT INTO memory_sessions (session_id, created_at, last_active) VALUES (?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET last_active=excluded.last_active`,
		e.SessionID, e.Timestamp.Unix(), e.Timestamp.Unix(),
	)
	return err
}

// Recent returns the most recent n entries for a session, oldest first.
func (s *MemoryStore) Recent(sessionID string, n int) ([]domain.MemoryEntry, error) {
	rows, err := s.conn.Query(
		`SELECT id, session_id, role, content, vector, timestamp FROM memory_entries
		 WHERE session_id = ? ORDER BY timestamp DESC, id DESC LIMIT ?`,
		sessionID, n,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.MemoryEntry
	for rows.Next() {
		e, err := scanMemoryEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// All returns every entry for a session, oldest first, used by the TF-IDF
// retriever to build its candidate pool.
func (s *MemoryStore) All(sessionID string) ([]domain.MemoryEntry, error) {
	rows, err := s.conn.Query(
		`SELECT id, session_id, role, content, vector, timestamp FROM memory_entries
		 WHERE session_id = ? ORDER BY timestamp ASC, id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.MemoryEntry
	for rows.Next() {
		e, err := scanMemoryEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// WithVectors returns every vectored entry for a session, used by the
// similarity search path (entries with no stored vector are excluded).
func (s *MemoryStore) WithVectors(sessionID string) ([]domain.MemoryEntry, error) {
	rows, err := s.conn.Query(
		`SELECT id, session_id, role, content, vector, timestamp FROM memory_entries
		 WHERE session_id = ? AND vector IS NOT NULL ORDER BY timestamp ASC, id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.MemoryEntry
	for rows.Next() {
		e, err := scanMemoryEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ClearSession deletes all entries for a session.
func (s *MemoryStore) ClearSession(sessionID string) error {
	_, err := s.conn.Exec(`DELETE FROM memory_entries WHERE session_id = ?`, sessionID)
	return err
}

func scanMemoryEntry(s scanner) (domain.MemoryEntry, error) {
	var e domain.MemoryEntry
	var role string
	var ts int64
	var vectorJSON sql.NullString
	if err := s.Scan(&e.ID, &e.SessionID, &role, &e.Content, &vectorJSON, &ts); err != nil {
		return e, err
	}
	e.Role = domain.Role(role)
	e.Timestamp = time.Unix(ts, 0)
	if vectorJSON.Valid && vectorJSON.String != "" {
		if err := json.Unmarshal([]byte(vectorJSON.String), &e.Vector); err != nil {
			return e, err
		}
	}
	return e, nil
}
