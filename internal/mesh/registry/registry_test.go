package registry

import (
	"testing"

	"github.com/loka-network/loka/internal/domain"
)

func TestRecordMiss_ThreeConsecutiveMarksUnreachable(t *testing.T) {
	r := New()
	r.Upsert(domain.MeshNode{ID: "n1", State: domain.NodeOnline})

	r.RecordMiss("n1")
	r.RecordMiss("n1")
	n, _ := r.Get("n1")
	if n.State == domain.NodeUnreachable {
		t.Fatal("should not be unreachable after 2 misses")
	}

	r.RecordMiss("n1")
	n, _ = r.Get("n1")
	if n.State != domain.NodeUnreachable {
		t.Errorf("state = %v, want unreachable after 3 misses", n.State)
	}
}

func TestUpsert_ResetsMissCounter(t *testing.T) {
	r := New()
	r.Upsert(domain.MeshNode{ID: "n1", State: domain.NodeOnline})
	r.RecordMiss("n1")
	r.RecordMiss("n1")

	r.Upsert(domain.MeshNode{ID: "n1", State: domain.NodeOnline})
	r.RecordMiss("n1")
	r.RecordMiss("n1")
	n, _ := r.Get("n1")
	if n.State == domain.NodeUnreachable {
		t.Error("upsert should have reset the miss counter")
	}
}

func TestWithModel_FamilyPrefixMatch(t *testing.T) {
	r := New()
	r.Upsert(domain.MeshNode{ID: "n1", State: domain.NodeOnline, Models: []string{"llama3:8b-instruct"}})
	r.Upsert(domain.MeshNode{ID: "n2", State: domain.NodeOnline, Models: []string{"phi3:mini"}})

	matches := r.WithModel("llama3:latest")
	if len(matches) != 1 || matches[0].ID != "n1" {
		t.Errorf("matches = %+v, want only n1", matches)
	}
}

func TestAvailable_OnlyOnlineAndBusy(t *testing.T) {
	r := New()
	r.Upsert(domain.MeshNode{ID: "n1", State: domain.NodeOnline})
	r.Upsert(domain.MeshNode{ID: "n2", State: domain.NodeBusy})
	r.Upsert(domain.MeshNode{ID: "n3", State: domain.NodeDeepSleep})

	available := r.Available()
	if len(available) != 2 {
		t.Errorf("got %d available, want 2", len(available))
	}
}
