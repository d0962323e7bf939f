// Package scheduler filters and scores mesh nodes for one task.
package scheduler

import (
	"sort"
	"strings"

	"github.com/loka-network/loka/internal/domain"
)

// Filter rejects candidates that cannot run the task at all, before
// scoring is attempted.
//
//   - must expose the required model (family prefix match)
//   - non-interactive tasks reject nodes with battery-stress > 70
//   - reject thermal > 45C
//   - reject queue-depth > 3
func Filter(candidates []domain.MeshNode, task domain.MeshTask) []domain.MeshNode {
	family := task.Model
	if i := strings.IndexByte(family, ':'); i >= 0 {
		family = family[:i]
	}

	var out []domain.MeshNode
	for _, n := range candidates {
		if !n.SupportsModel(family) {
			continue
		}
		if !task.Interactive && n.BatteryStress > 70 {
			continue
		}
		if n.ThermalCelsius > 45 {
			continue
		}
		if n.QueueDepth > 3 {
			continue
		}
		out = append(out, n)
	}
	return out
}

// Score computes the weighted match score for a filtered candidate. Higher
// is better; Filter must be applied first, Score performs no rejection.
func Score(n domain.MeshNode, task domain.MeshTask) float64 {
	score := 0.0

	if n.HasGPU {
		score += 40
	}
	score += n.TokensPerSecond * 0.40
	if n.Role == domain.RoleAlwaysOn {
		score += 20
	}
	if n.State == domain.NodeBusy {
		score -= 10
	}
	score -= float64(n.QueueDepth) * 10
	score -= n.BatteryStress * 0.20
	if n.ThermalCelsius > 35 {
		score -= 15
	}
	if !task.Interactive {
		score += (100 - n.InferenceWatts) / 100 * 20
	}

	return score
}

// Select returns the highest-scoring candidate for a task, or false if no
// candidate survives filtering.
func Select(candidates []domain.MeshNode, task domain.MeshTask) (domain.MeshNode, bool) {
	filtered := Filter(candidates, task)
	if len(filtered) == 0 {
		return domain.MeshNode{}, false
	}

	ranked := Rank(filtered, task)
	return ranked[0], true
}

// Rank scores candidates and sorts them by score, descending. It does not
// filter; Select applies Filter before calling it.
func Rank(candidates []domain.MeshNode, task domain.MeshTask) []domain.MeshNode {
	scored := make([]domain.NodeScore, 0, len(candidates))
	for _, n := range candidates {
		scored = append(scored, domain.NodeScore{Node: n, Score: Score(n, task)})
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	out := make([]domain.MeshNode, len(scored))
	for i, s := range scored {
		out[i] = s.Node
	}
	return out
}
