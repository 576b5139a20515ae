package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/martinemde/stepwise"
)

// ToolInvoker executes registered handlers with error containment and an
// optional per-call timeout. No handler failure ever escapes Invoke: panics,
// errors, and timeouts are all converted to structured {error: message}
// results.
type ToolInvoker struct {
	registry *ToolRegistry
	timeout  time.Duration // per-call; 0 disables
}

// NewToolInvoker creates an invoker over the given registry.
func NewToolInvoker(registry *ToolRegistry, timeout time.Duration) *ToolInvoker {
	return &ToolInvoker{registry: registry, timeout: timeout}
}

type invocation struct {
	result map[string]interface{}
	err    error
}

// Invoke runs the named tool with the given arguments.
//
// The returned map is always non-nil and usable as a history record. When
// the call failed — unknown tool, handler error, handler panic, or timeout
// — the map has the form {"error": message} and a
// *stepwise.ToolExecutionError is returned alongside so the caller can
// count the failure against its error budget. A successful call returns
// the handler's result and a nil error.
func (inv *ToolInvoker) Invoke(ctx context.Context, name string, args map[string]interface{}) (map[string]interface{}, error) {
	registered := inv.registry.Get(name)
	if registered == nil {
		msg := fmt.Sprintf("Unknown tool: %s", name)
		return errorResult(msg), &stepwise.ToolExecutionError{
			CoreError: stepwise.CoreError{Message: msg},
			Tool:      name,
		}
	}

	callCtx := ctx
	if inv.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, inv.timeout)
		defer cancel()
	}

	done := make(chan invocation, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- invocation{err: fmt.Errorf("handler panicked: %v", r)}
			}
		}()
		result, err := registered.Handler(callCtx, args)
		done <- invocation{result: result, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			msg := fmt.Sprintf("Tool error (%s): %v", name, out.err)
			return errorResult(msg), &stepwise.ToolExecutionError{
				CoreError: stepwise.CoreError{Message: msg, Cause: out.err},
				Tool:      name,
			}
		}
		if out.result == nil {
			out.result = map[string]interface{}{}
		}
		return out.result, nil
	case <-callCtx.Done():
		msg := fmt.Sprintf("Tool timed out (%s) after %s", name, inv.timeout)
		if ctx.Err() != nil {
			msg = fmt.Sprintf("Tool cancelled (%s): %v", name, ctx.Err())
		}
		return errorResult(msg), &stepwise.ToolExecutionError{
			CoreError: stepwise.CoreError{Message: msg, Cause: callCtx.Err()},
			Tool:      name,
			TimedOut:  true,
		}
	}
}

func errorResult(msg string) map[string]interface{} {
	return map[string]interface{}{"error": msg}
}
