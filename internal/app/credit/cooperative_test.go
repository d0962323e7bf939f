package credit

import (
	"testing"

	"github.com/loka-network/loka/internal/domain"
)

type fakeFinder struct {
	nodes []domain.MeshNode
}

func (f fakeFinder) Find(filter NodeFilter) []domain.MeshNode {
	return f.nodes
}

func TestCooperativeRouter_PicksBestScoringNode(t *testing.T) {
	l := newTestLedger(t)
	l.Record("alice", domain.CreditGovernanceGrant, 100, "seed")

	finder := fakeFinder{nodes: []domain.MeshNode{
		{ID: "slow", TokensPerSecond: 10, BatteryStress: 0},
		{ID: "fast", TokensPerSecond: 50, BatteryStress: 10},
	}}
	router := NewCooperativeRouter(l, finder)

	node, err := router.Route(CooperativeRequest{NodeID: "alice", Model: "llama3", EstimatedInputTok: 100, EstimatedOutputTok: 100})
	if err != nil {
		t.Fatalf("route: %v", err)
	}
	if node.ID != "fast" {
		t.Errorf("chosen node = %q, want fast", node.ID)
	}
}

func TestCooperativeRouter_NoNodesReleasesReservation(t *testing.T) {
	l := newTestLedger(t)
	l.Record("bob", domain.CreditGovernanceGrant, 100, "seed")

	router := NewCooperativeRouter(l, fakeFinder{})
	_, err := router.Route(CooperativeRequest{NodeID: "bob", EstimatedInputTok: 100, EstimatedOutputTok: 100})
	if err != domain.ErrNoMatchingNode {
		t.Fatalf("err = %v, want ErrNoMatchingNode", err)
	}

	balance, _ := l.Balance("bob")
	if balance != 100 {
		t.Errorf("balance = %v, want restored to 100", balance)
	}
}

func TestCooperativeRouter_InsufficientBalanceRejectsBeforeReserve(t *testing.T) {
	l := newTestLedger(t)
	l.Record("carl", domain.CreditGovernanceGrant, 1, "seed")

	router := NewCooperativeRouter(l, fakeFinder{})
	_, err := router.Route(CooperativeRequest{NodeID: "carl", EstimatedInputTok: 10000, EstimatedOutputTok: 10000})
	if err != domain.ErrInsufficientCredits {
		t.Fatalf("err = %v, want ErrInsufficientCredits", err)
	}
}
