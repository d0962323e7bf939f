package domain

import "time"

// TaskStatus is where a TaskNode sits in the delegation engine's executor.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskDone       TaskStatus = "done"
	TaskFailed     TaskStatus = "failed"
)

// TaskNode is one subtask in a delegation DAG. DependsOn names sibling
// TaskNode IDs within the same TaskGraph that must reach TaskDone before
// this node becomes ready.
type TaskNode struct {
	ID         string
	Prompt     string
	DependsOn  []string
	Depth      int
	Status     TaskStatus
	Result     string
	Err        string
	StartedAt  time.Time
	FinishedAt time.Time
}

// TaskGraph is the recursive DAG built by the delegation engine for one
// top-level request. It is created per-request and discarded once the
// final answer is assembled.
type TaskGraph struct {
	RootPrompt string
	Nodes      map[string]*TaskNode
}

// NewTaskGraph builds an empty graph for a root prompt.
func NewTaskGraph(rootPrompt string) *TaskGraph {
	return &TaskGraph{
		RootPrompt: rootPrompt,
		Nodes:      make(map[string]*TaskNode),
	}
}

// Ready returns the IDs of nodes whose dependencies have all completed and
// which have not themselves started yet.
func (g *TaskGraph) Ready() []string {
	var ready []string
	for id, n := range g.Nodes {
		if n.Status != TaskPending {
			continue
		}
		blocked := false
		for _, dep := range n.DependsOn {
			if dn, ok := g.Nodes[dep]; !ok || dn.Status != TaskDone {
				blocked = true
				break
			}
		}
		if !blocked {
			ready = append(ready, id)
		}
	}
	return ready
}

// Unfinished reports whether any node has not reached a terminal status.
func (g *TaskGraph) Unfinished() bool {
	for _, n := range g.Nodes {
		if n.Status == TaskPending || n.Status == TaskInProgress {
			return true
		}
	}
	return false
}

// HasCycle reports whether the dependency graph contains a cycle, using a
// standard white/gray/black DFS coloring.
func (g *TaskGraph) HasCycle() bool {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(g.Nodes))
	var visit func(id string) bool
	visit = func(id string) bool {
		switch color[id] {
		case gray:
			return true
		case black:
			return false
		}
		color[id] = gray
		if n, ok := g.Nodes[id]; ok {
			for _, dep := range n.DependsOn {
				if visit(dep) {
					return true
				}
			}
		}
		color[id] = black
		return false
	}
	for id := range g.Nodes {
		if color[id] == white && visit(id) {
			return true
		}
	}
	return false
}
