package scheduler

import (
	"testing"

	"github.com/loka-network/loka/internal/domain"
)

func TestFilter_RejectsHighBatteryStressForNonInteractive(t *testing.T) {
	nodes := []domain.MeshNode{
		{ID: "n1", Models: []string{"llama3"}, BatteryStress: 80},
		{ID: "n2", Models: []string{"llama3"}, BatteryStress: 10},
	}
	out := Filter(nodes, domain.MeshTask{Model: "llama3", Interactive: false})
	if len(out) != 1 || out[0].ID != "n2" {
		t.Errorf("out = %+v, want only n2", out)
	}
}

func TestFilter_RejectsHighThermalAndQueueDepth(t *testing.T) {
	nodes := []domain.MeshNode{
		{ID: "hot", Models: []string{"llama3"}, ThermalCelsius: 50},
		{ID: "busy", Models: []string{"llama3"}, QueueDepth: 5},
		{ID: "ok", Models: []string{"llama3"}, ThermalCelsius: 30, QueueDepth: 1},
	}
	out := Filter(nodes, domain.MeshTask{Model: "llama3", Interactive: true})
	if len(out) != 1 || out[0].ID != "ok" {
		t.Errorf("out = %+v, want only ok", out)
	}
}

func TestFilter_ModelFamilyMatch(t *testing.T) {
	nodes := []domain.MeshNode{
		{ID: "match", Models: []string{"llama3:8b"}},
		{ID: "nomatch", Models: []string{"phi3:mini"}},
	}
	out := Filter(nodes, domain.MeshTask{Model: "llama3:latest", Interactive: true})
	if len(out) != 1 || out[0].ID != "match" {
		t.Errorf("out = %+v, want only match", out)
	}
}

func TestScore_GPUAndAlwaysOnBonuses(t *testing.T) {
	gpuNode := domain.MeshNode{HasGPU: true, Role: domain.RoleAlwaysOn}
	plainNode := domain.MeshNode{}
	task := domain.MeshTask{Interactive: true}

	if Score(gpuNode, task) <= Score(plainNode, task) {
		t.Error("GPU + always_on node should score higher than a plain node")
	}
}

func TestSelect_PicksHighestScoring(t *testing.T) {
	nodes := []domain.MeshNode{
		{ID: "slow", Models: []string{"llama3"}, TokensPerSecond: 5},
		{ID: "fast", Models: []string{"llama3"}, TokensPerSecond: 100, HasGPU: true},
	}
	best, ok := Select(nodes, domain.MeshTask{Model: "llama3", Interactive: true})
	if !ok {
		t.Fatal("expected a selection")
	}
	if best.ID != "fast" {
		t.Errorf("best = %q, want fast", best.ID)
	}
}

func TestSelect_NoneWhenAllFiltered(t *testing.T) {
	nodes := []domain.MeshNode{
		{ID: "n1", Models: []string{"phi3"}},
	}
	_, ok := Select(nodes, domain.MeshTask{Model: "llama3", Interactive: true})
	if ok {
		t.Error("expected no selection when no node matches the model")
	}
}
