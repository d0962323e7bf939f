package memory

import (
	"testing"

	"github.com/loka-network/loka/internal/domain"
	"github.com/loka-network/loka/internal/infra/sqlite"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sqlite.OpenMemoryStore(t.TempDir())
	if err != nil {
		t.Fatalf("open memory store: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db)
}

func TestStore_RecentReturnsChronological(t *testing.T) {
	s := newTestStore(t)
	s.Add("sess1", domain.RoleUser, "first", nil)
	s.Add("sess1", domain.RoleAssistant, "second", nil)
	s.Add("sess1", domain.RoleUser, "third", nil)

	recent, err := s.Recent("sess1", 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("got %d entries, want 2", len(recent))
	}
	if recent[0].Content != "second" || recent[1].Content != "third" {
		t.Errorf("entries = %+v, want [second, third]", recent)
	}
}

func TestStore_SimilarIgnoresUnvectoredEntries(t *testing.T) {
	s := newTestStore(t)
	s.Add("sess1", domain.RoleUser, "no vector here", nil)
	s.Add("sess1", domain.RoleUser, "has a vector", []float64{1, 0, 0})

	results, err := s.Similar("sess1", []float64{1, 0, 0}, 5)
	if err != nil {
		t.Fatalf("similar: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Entry.Content != "has a vector" {
		t.Errorf("content = %q, want %q", results[0].Entry.Content, "has a vector")
	}
}

func TestStore_ClearSession(t *testing.T) {
	s := newTestStore(t)
	s.Add("sess1", domain.RoleUser, "hello", nil)
	if err := s.ClearSession("sess1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	recent, err := s.Recent("sess1", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 0 {
		t.Errorf("got %d entries after clear, want 0", len(recent))
	}
}

// ─── Retriever ──────────────────────────────────────────────────────────────

func TestRetriever_EmptySessionReturnsEmptyString(t *testing.T) {
	s := newTestStore(t)
	r := NewRetriever(s)
	out, err := r.Retrieve("nobody", "anything", 3)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if out != "" {
		t.Errorf("out = %q, want empty", out)
	}
}

func TestRetriever_SurfacesRelevantEntries(t *testing.T) {
	s := newTestStore(t)
	s.Add("sess1", domain.RoleUser, "tell me about distributed databases", nil)
	s.Add("sess1", domain.RoleAssistant, "distributed databases replicate data across nodes", nil)
	s.Add("sess1", domain.RoleUser, "what is the weather today", nil)

	r := NewRetriever(s)
	out, err := r.Retrieve("sess1", "distributed database replication", 2)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if out == "" {
		t.Fatal("expected non-empty output")
	}
}
