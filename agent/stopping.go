package agent

import (
	"fmt"
	"time"
)

// StoppingCondition bounds a loop's execution. It is immutable after the
// loop starts.
type StoppingCondition struct {
	MaxSteps      int           `json:"max_steps"`       // must be > 0
	MaxToolErrors int           `json:"max_tool_errors"` // 0 means no tool failure is tolerated
	Timeout       time.Duration `json:"timeout,omitempty"` // 0 disables the wall-clock bound
}

// DefaultStoppingCondition returns the default budgets.
func DefaultStoppingCondition() StoppingCondition {
	return StoppingCondition{
		MaxSteps:      50,
		MaxToolErrors: 3,
	}
}

// LoopState is the mutable progress of a run. It is mutated only by the
// owning loop. StepCount and ToolErrorCount are monotonically
// non-decreasing.
type LoopState struct {
	StepCount      int    `json:"step_count"`
	ToolErrorCount int    `json:"tool_error_count"`
	Completed      bool   `json:"completed"`
	Result         string `json:"result,omitempty"`
}

// ShouldStop evaluates the stopping policy against the current state. The
// conditions are checked in a fixed priority order: completion, step
// budget, error budget, wall-clock timeout. The first condition met wins
// and its reason is returned alone; reasons are never merged.
func (c StoppingCondition) ShouldStop(state LoopState, elapsed time.Duration) (bool, string) {
	if state.Completed {
		return true, "Goal achieved"
	}
	if state.StepCount >= c.MaxSteps {
		return true, fmt.Sprintf("Max steps (%d) reached", c.MaxSteps)
	}
	if state.ToolErrorCount >= c.MaxToolErrors {
		return true, fmt.Sprintf("Max tool errors (%d) reached", c.MaxToolErrors)
	}
	if c.Timeout > 0 && elapsed >= c.Timeout {
		return true, fmt.Sprintf("Timeout (%s) reached", c.Timeout)
	}
	return false, ""
}
