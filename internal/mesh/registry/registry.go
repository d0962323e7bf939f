// Package registry is the in-memory keyed table of mesh nodes.
package registry

import (
	"strings"
	"sync"
	"time"

	"github.com/loka-network/loka/internal/app/credit"
	"github.com/loka-network/loka/internal/domain"
	"github.com/loka-network/loka/internal/infra/metrics"
)

const maxConsecutiveMisses = 3

// Registry is a single in-memory structure with bounded contention; reads
// and writes take the same mutex so callers never observe a torn node
// record mid-update.
type Registry struct {
	mu    sync.RWMutex
	nodes map[string]*domain.MeshNode
}

// New builds an empty registry.
func New() *Registry {
	return &Registry{nodes: make(map[string]*domain.MeshNode)}
}

// Upsert inserts or replaces a node record and resets its miss counter.
func (r *Registry) Upsert(node domain.MeshNode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	node.MissCount = 0
	node.LastSeen = time.Now()
	n := node
	r.nodes[node.ID] = &n
	metrics.MeshNodesKnown.Set(float64(len(r.nodes)))
}

// RecordMiss increments a node's miss counter; after maxConsecutiveMisses
// the node's state becomes unreachable.
func (r *Registry) RecordMiss(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.nodes[id]
	if !ok {
		return
	}
	n.MissCount++
	if n.MissCount >= maxConsecutiveMisses {
		n.State = domain.NodeUnreachable
	}
}

// SetState updates a node's state directly, used by the sleep state
// machine's transitions.
func (r *Registry) SetState(id string, state domain.NodeState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n, ok := r.nodes[id]; ok {
		n.State = state
	}
}

// SetQueueDepth updates a node's reported queue depth.
func (r *Registry) SetQueueDepth(id string, depth int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n, ok := r.nodes[id]; ok {
		n.QueueDepth = depth
	}
}

// SetResourceState updates a node's thermal and battery fields, sampled
// periodically from internal/infra/resource for the local node and reported
// by peers for remote ones.
func (r *Registry) SetResourceState(id string, thermalC, watts, batteryStress float64, onBattery bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n, ok := r.nodes[id]; ok {
		n.ThermalCelsius = thermalC
		n.InferenceWatts = watts
		n.BatteryStress = batteryStress
		n.OnBattery = onBattery
	}
}

// Remove deletes a node record entirely.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.nodes, id)
	metrics.MeshNodesKnown.Set(float64(len(r.nodes)))
}

// Get returns a copy of one node record.
func (r *Registry) Get(id string) (domain.MeshNode, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.nodes[id]
	if !ok {
		return domain.MeshNode{}, false
	}
	return *n, true
}

// All returns a snapshot of every known node.
func (r *Registry) All() []domain.MeshNode {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.MeshNode, 0, len(r.nodes))
	for _, n := range r.nodes {
		out = append(out, *n)
	}
	return out
}

// Available returns nodes whose state is online or busy.
func (r *Registry) Available() []domain.MeshNode {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.MeshNode
	for _, n := range r.nodes {
		if n.State == domain.NodeOnline || n.State == domain.NodeBusy {
			out = append(out, *n)
		}
	}
	return out
}

// Find implements credit.NodeFinder: it filters the registry by model
// family, region, minimum throughput, and a battery-stress ceiling, used by
// the cooperative router to locate a candidate before spending credits.
func (r *Registry) Find(filter credit.NodeFilter) []domain.MeshNode {
	candidates := r.Available()
	if filter.Model != "" {
		candidates = filterByModel(candidates, filter.Model)
	}

	var out []domain.MeshNode
	for _, n := range candidates {
		if filter.Region != "" && n.Region != filter.Region {
			continue
		}
		if filter.MinTokensPerSec > 0 && n.TokensPerSecond < filter.MinTokensPerSec {
			continue
		}
		if filter.MaxBatteryStress > 0 && n.BatteryStress > filter.MaxBatteryStress {
			continue
		}
		out = append(out, n)
	}
	return out
}

func filterByModel(nodes []domain.MeshNode, tag string) []domain.MeshNode {
	family := tag
	if i := strings.IndexByte(tag, ':'); i >= 0 {
		family = tag[:i]
	}
	var out []domain.MeshNode
	for _, n := range nodes {
		if n.SupportsModel(family) {
			out = append(out, n)
		}
	}
	return out
}

// WithModel returns nodes whose model list matches tag by family prefix:
// the portion of tag before ":" must match a prefix of one of the node's
// advertised models.
func (r *Registry) WithModel(tag string) []domain.MeshNode {
	family := tag
	if i := strings.IndexByte(tag, ':'); i >= 0 {
		family = tag[:i]
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.MeshNode
	for _, n := range r.nodes {
		if n.SupportsModel(family) {
			out = append(out, *n)
		}
	}
	return out
}
