// Package memory implements the session-scoped conversation store and its
// TF-IDF retriever.
package memory

import (
	"sort"
	"time"

	"github.com/loka-network/loka/internal/domain"
	"github.com/loka-network/loka/internal/infra/sqlite"
)

// Store is an append-only, session-scoped conversation history.
type Store struct {
	db *sqlite.MemoryStore
}

// New wires a memory store against its own database file.
func New(db *sqlite.MemoryStore) *Store {
	return &Store{db: db}
}

// Add appends one turn to a session's history, with an optional embedding
// vector. Pass a nil vector if none is available; such entries remain
// invisible to Similar.
func (s *Store) Add(sessionID string, role domain.Role, content string, vector []float64) error {
	return s.db.Add(domain.MemoryEntry{
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Vector:    vector,
		Timestamp: time.Now(),
	})
}

// Similar ranks vectored entries in a session by cosine similarity against
// queryVector and returns the top K, descending by score.
func (s *Store) Similar(sessionID string, queryVector []float64, topK int) ([]domain.ScoredMemory, error) {
	candidates, err := s.db.WithVectors(sessionID)
	if err != nil {
		return nil, err
	}

	scored := make([]domain.ScoredMemory, 0, len(candidates))
	for _, e := range candidates {
		scored = append(scored, domain.ScoredMemory{
			Entry: e,
			Score: domain.CosineSimilarity(queryVector, e.Vector),
		})
	}

	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if topK > 0 && len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

// Recent returns the most recent limit entries in chronological order.
func (s *Store) Recent(sessionID string, limit int) ([]domain.MemoryEntry, error) {
	return s.db.Recent(sessionID, limit)
}

// ClearSession deletes all entries for a session.
func (s *Store) ClearSession(sessionID string) error {
	return s.db.ClearSession(sessionID)
}

// all returns the full working set for a session, used by the retriever.
func (s *Store) all(sessionID string) ([]domain.MemoryEntry, error) {
	return s.db.All(sessionID)
}
