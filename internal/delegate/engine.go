// Package delegate implements the specialist tier's task decomposition:
// a planner breaks a complex prompt into subtasks, which execute
// concurrently (recursively, up to a depth cap) and are assembled into a
// single answer.
package delegate

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/loka-network/loka/internal/classify"
	"github.com/loka-network/loka/internal/domain"
)

const maxDepth = 2

// Engine runs the plan/execute/assemble pipeline for the specialist tier.
// Each subtask is classified the same way a top-level request is: work
// that scores local runs on the local worker pool instead of the (paid)
// specialist; only non-local work recurses into further planning.
type Engine struct {
	thresholds classify.Thresholds
}

// NewEngine builds a delegation engine that classifies subtasks against
// thresholds — normally the router's own configured thresholds, so a
// subtask is judged by the same bar as a top-level request.
func NewEngine(thresholds classify.Thresholds) *Engine {
	return &Engine{thresholds: thresholds}
}

// Run decomposes the last user message in messages into subtasks, executes
// the resulting DAG against localPool and specialist, and assembles a
// final answer. If planning fails or yields no usable subtasks, it falls
// back to a single direct completion against specialist so the specialist
// tier degrades gracefully rather than erroring out. localPool may be
// empty, in which case local-complexity subtasks run against specialist
// too.
func (e *Engine) Run(ctx context.Context, specialist domain.Provider, localPool []domain.Provider, messages []domain.Message) (domain.CompletionResult, error) {
	rootPrompt := lastUserMessage(messages)
	start := time.Now()

	graph, err := e.plan(ctx, specialist, rootPrompt, 0)
	if err != nil || len(graph.Nodes) == 0 {
		return specialist.Complete(ctx, messages, domain.GenerateOptions{})
	}

	subtaskCount := len(graph.Nodes)
	if err := RunGraph(ctx, graph, e.executor(specialist, localPool, 0)); err != nil {
		return domain.CompletionResult{}, err
	}
	if failed := firstFailure(graph); failed != nil {
		return domain.CompletionResult{}, failed
	}

	answer := assemble(graph, subtaskCount, time.Since(start))
	return domain.CompletionResult{
		Content:      answer,
		Model:        specialist.Model(),
		InputTokens:  domain.EstimateTokens(rootPrompt),
		OutputTokens: domain.EstimateTokens(answer),
		LatencyMs:    time.Since(start).Milliseconds(),
	}, nil
}

// plan asks specialist to decompose a prompt into 2-5 subtasks and builds
// the resulting flat TaskGraph — top-level subtasks carry no dependency on
// one another, so all of them are immediately ready.
func (e *Engine) plan(ctx context.Context, specialist domain.Provider, prompt string, depth int) (*domain.TaskGraph, error) {
	return e.planWith(ctx, specialist, prompt, depth, plannerPrompt)
}

// replan is plan's nested-recursion counterpart: it asks for 1-3 simpler
// subtasks rather than 2-5, per the engine's recursive re-planning step.
func (e *Engine) replan(ctx context.Context, specialist domain.Provider, prompt string, depth int) (*domain.TaskGraph, error) {
	return e.planWith(ctx, specialist, prompt, depth, replanPrompt)
}

func (e *Engine) planWith(ctx context.Context, specialist domain.Provider, prompt string, depth int, buildPrompt func(string) string) (*domain.TaskGraph, error) {
	graph := domain.NewTaskGraph(prompt)
	if depth >= maxDepth {
		return graph, nil
	}

	resp, err := specialist.Complete(ctx, []domain.Message{
		{Role: domain.RoleUser, Content: buildPrompt(prompt)},
	}, domain.GenerateOptions{})
	if err != nil {
		return nil, err
	}

	subtasks, err := ParsePlan(resp.Content)
	if err != nil {
		return nil, domain.ErrPlannerOutput
	}

	for i, p := range subtasks {
		id := "t" + strconv.Itoa(i)
		graph.Nodes[id] = &domain.TaskNode{
			ID:     id,
			Prompt: p,
			Depth:  depth + 1,
			Status: domain.TaskPending,
		}
	}
	return graph, nil
}

// executor returns a NodeExecutor implementing recursiveSubtask: classify
// each subtask, run local-complexity work on the index-mod-localCount
// local worker, force the specialist once the depth cap is reached rather
// than let non-local work degrade to a local model, and otherwise recurse
// into another round of planning.
func (e *Engine) executor(specialist domain.Provider, localPool []domain.Provider, depth int) NodeExecutor {
	return func(ctx context.Context, node *domain.TaskNode) (string, error) {
		_, tier := classify.Classify(node.Prompt, e.thresholds)

		if tier == domain.TierLocal {
			return e.completeDirect(ctx, e.localWorker(localPool, specialist, node.ID), node.Prompt)
		}
		if node.Depth >= maxDepth {
			return e.completeDirect(ctx, specialist, node.Prompt)
		}

		sub, err := e.replan(ctx, specialist, node.Prompt, node.Depth)
		if err == nil && len(sub.Nodes) > 0 {
			if runErr := RunGraph(ctx, sub, e.executor(specialist, localPool, node.Depth+1)); runErr == nil && firstFailure(sub) == nil {
				return assemble(sub, len(sub.Nodes), 0), nil
			}
		}
		return e.completeDirect(ctx, specialist, node.Prompt)
	}
}

// localWorker picks the index-mod-localCount local provider for a subtask,
// keyed off its declaration-order ID (t0, t1, ...) rather than a shared
// counter, since subtasks in one wave execute concurrently. Falls back to
// specialist when no local worker is configured.
func (e *Engine) localWorker(localPool []domain.Provider, specialist domain.Provider, nodeID string) domain.Provider {
	if len(localPool) == 0 {
		return specialist
	}
	index, err := strconv.Atoi(strings.TrimPrefix(nodeID, "t"))
	if err != nil {
		index = 0
	}
	return localPool[index%len(localPool)]
}

func (e *Engine) completeDirect(ctx context.Context, provider domain.Provider, prompt string) (string, error) {
	resp, err := provider.Complete(ctx, []domain.Message{
		{Role: domain.RoleUser, Content: prompt},
	}, domain.GenerateOptions{})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// firstFailure reports the first TaskFailed node in the graph, if any.
// Individual subtask failure after retries fails the whole delegated
// request rather than silently dropping that subtask from the assembly.
func firstFailure(graph *domain.TaskGraph) error {
	for id, n := range graph.Nodes {
		if n.Status == domain.TaskFailed {
			return fmt.Errorf("delegate: subtask %s failed: %s", id, n.Err)
		}
	}
	return nil
}

// assemble joins every completed subtask's result and, when elapsed is
// positive, appends a telemetry footer noting how many subtasks ran and how
// long the fan-out took. Nested re-plans pass zero and get no footer.
func assemble(graph *domain.TaskGraph, subtaskCount int, elapsed time.Duration) string {
	var b strings.Builder
	for i := 0; i < subtaskCount; i++ {
		id := "t" + strconv.Itoa(i)
		node, ok := graph.Nodes[id]
		if !ok || node.Status != domain.TaskDone {
			continue
		}
		b.WriteString(node.Result)
		b.WriteString("\n\n")
	}
	if elapsed > 0 {
		fmt.Fprintf(&b, "(delegated across %d subtask(s) in %s)", subtaskCount, elapsed.Round(time.Millisecond))
	}
	return strings.TrimSpace(b.String())
}

func lastUserMessage(messages []domain.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == domain.RoleUser {
			return messages[i].Content
		}
	}
	return ""
}
