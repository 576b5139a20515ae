package stepwise

import (
	"errors"
	"fmt"
	"time"
)

// CoreError is the base error type for all orchestration errors.
type CoreError struct {
	Message string
	Cause   error
}

func (e *CoreError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *CoreError) Unwrap() error {
	return e.Cause
}

// DecisionError indicates the decision port returned unparseable or
// ambiguous output. Fatal: the run aborts.
type DecisionError struct {
	CoreError
	Step int // 1-based step at which the decision was requested
}

func (e *DecisionError) Error() string {
	if e.Step > 0 {
		return fmt.Sprintf("decision error at step %d: %s", e.Step, e.CoreError.Error())
	}
	return "decision error: " + e.CoreError.Error()
}

// ToolExecutionError indicates a tool handler failed, panicked, or timed
// out. Non-fatal: the invoker converts it to a structured result and the
// loop counts it against the error budget.
type ToolExecutionError struct {
	CoreError
	Tool     string
	TimedOut bool
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %q: %s", e.Tool, e.CoreError.Error())
}

// ParsingError indicates a structured payload from an evaluator or planner
// failed to parse. Fatal.
type ParsingError struct {
	CoreError
}

// ConfigurationError indicates an invalid configuration or a reference to
// an unregistered worker type in a context that requires one. Fatal.
type ConfigurationError struct {
	CoreError
}

// TimeoutError indicates a decision, generation, or evaluation call
// exceeded its allotted time. Fatal. Tool call timeouts are reported as
// ToolExecutionError instead.
type TimeoutError struct {
	CoreError
	Elapsed time.Duration
}

// IsFatal reports whether err terminates a run. Only tool execution
// failures are recoverable; they are absorbed into the error budget.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var te *ToolExecutionError
	return !errors.As(err, &te)
}
