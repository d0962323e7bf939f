package delegate

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/loka-network/loka/internal/domain"
	"github.com/loka-network/loka/internal/infra/metrics"
)

const retryDelay = time.Second

func sleepOrDone(ctx context.Context) error {
	t := time.NewTimer(retryDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// NodeExecutor runs a single TaskNode to completion and returns its result
// text.
type NodeExecutor func(ctx context.Context, node *domain.TaskNode) (string, error)

// RunGraph drives a TaskGraph to completion wave by wave: every Ready node
// executes concurrently, then the next wave's readiness is recomputed. A
// cyclic graph is rejected up front with ErrDAGCycle. A wave with no ready
// nodes while work remains unfinished is a deadlock (ErrDAGDeadlock), which
// happens when a pending node depends on a failed node or on an ID missing
// from the graph.
func RunGraph(ctx context.Context, graph *domain.TaskGraph, exec NodeExecutor) error {
	if graph.HasCycle() {
		return domain.ErrDAGCycle
	}

	var mu sync.Mutex
	for graph.Unfinished() {
		ready := graph.Ready()
		if len(ready) == 0 {
			return domain.ErrDAGDeadlock
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, id := range ready {
			id := id
			mu.Lock()
			graph.Nodes[id].Status = domain.TaskInProgress
			mu.Unlock()

			g.Go(func() error {
				node := graph.Nodes[id]
				result, err := runWithRetry(gctx, node, exec)

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					node.Status = domain.TaskFailed
					node.Err = err.Error()
					metrics.SubtasksExecuted.WithLabelValues("failed").Inc()
					return nil // a failed subtask does not abort sibling subtasks
				}
				node.Status = domain.TaskDone
				node.Result = result
				metrics.SubtasksExecuted.WithLabelValues("ok").Inc()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}
	return nil
}

// runWithRetry retries a failed subtask up to two additional times with a
// one-second delay, per the engine's retry policy.
func runWithRetry(ctx context.Context, node *domain.TaskNode, exec NodeExecutor) (string, error) {
	const maxAttempts = 3
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			if err := sleepOrDone(ctx); err != nil {
				return "", err
			}
		}
		result, err := exec(ctx, node)
		if err == nil {
			return result, nil
		}
		lastErr = err
	}
	return "", lastErr
}
