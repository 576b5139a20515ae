// Package fanout implements the concurrent fan-out/aggregate executor:
// sectioning (distinct tasks joined in registration order), voting
// (replicated tasks with deterministic majority aggregation), guardrail
// racing (a gating check run alongside the main generation), and the
// orchestrator-workers pattern (planned subtask decomposition dispatched
// to typed workers).
//
// All modes share the same concurrency model: every dispatched invocation
// runs in its own goroutine writing to a write-once slot identified by its
// dispatch index, and the orchestrating call performs a barrier join —
// it waits for every invocation to reach a terminal state before
// aggregating. Invocations are never cancelled because a sibling failed or
// finished first; per-invocation timeouts are delivered through each
// invocation's own context.
package fanout

import (
	"context"
	"time"
)

// Handler is the worker contract shared by sectioning, voting, and the
// guardrail main branch: given a task, produce a result or fail. Handlers
// must honor ctx, which carries the per-invocation timeout.
type Handler func(ctx context.Context, task string) (string, error)

// Executor dispatches concurrent handler invocations and joins them.
// An Executor is stateless and safe for concurrent use.
type Executor struct {
	timeout time.Duration // per invocation; 0 disables
}

// Option configures an Executor.
type Option func(*Executor)

// WithInvocationTimeout bounds each dispatched invocation individually.
// A timeout on one invocation does not cancel its siblings, but the batch
// still fails as a unit in sectioning and voting.
func WithInvocationTimeout(d time.Duration) Option {
	return func(e *Executor) { e.timeout = d }
}

// NewExecutor creates an Executor.
func NewExecutor(opts ...Option) *Executor {
	e := &Executor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// invoke runs one handler under the executor's per-invocation timeout.
func (e *Executor) invoke(ctx context.Context, h Handler, task string) (string, error) {
	if e.timeout > 0 {
		callCtx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()
		return h(callCtx, task)
	}
	return h(ctx, task)
}
