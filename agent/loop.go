package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/martinemde/stepwise"
)

// RunStatus is the lifecycle state of a Loop.
type RunStatus string

const (
	StatusInit       RunStatus = "init"
	StatusRunning    RunStatus = "running"
	StatusTerminated RunStatus = "terminated"
)

// LoopConfig holds configuration for a Loop. The zero value is not usable;
// start from DefaultLoopConfig.
type LoopConfig struct {
	Stopping StoppingCondition `json:"stopping"`

	// ToolTimeout bounds each tool invocation. Independent of the run's
	// wall-clock Timeout. 0 disables.
	ToolTimeout time.Duration `json:"tool_timeout"`

	// RespondEndsRun makes a Respond action terminal: the run completes
	// with the response as its result. When false (the default), Respond
	// is recorded like Think and the loop continues.
	RespondEndsRun bool `json:"respond_ends_run"`

	EnableLoopDetection bool `json:"enable_loop_detection"`
	LoopDetectionWindow int  `json:"loop_detection_window"`

	// MaxToolResultChars bounds string values of a tool result as recorded
	// in history. The untruncated result is emitted on the event stream.
	MaxToolResultChars int `json:"max_tool_result_chars"`

	EventBuffer int `json:"event_buffer"`
}

// DefaultLoopConfig returns the default configuration.
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		Stopping:            DefaultStoppingCondition(),
		ToolTimeout:         30 * time.Second,
		EnableLoopDetection: true,
		LoopDetectionWindow: 10,
		MaxToolResultChars:  20000,
		EventBuffer:         256,
	}
}

// RunResult summarizes a terminated run.
type RunResult struct {
	RunID      string         `json:"run_id"`
	Completed  bool           `json:"completed"`
	Result     string         `json:"result,omitempty"`
	Steps      int            `json:"steps"`
	ToolErrors int            `json:"tool_errors"`
	StopReason string         `json:"stop_reason"`
	Elapsed    time.Duration  `json:"elapsed"`
	History    []HistoryEntry `json:"history"`
}

// Loop is the sequential agent loop state machine. A Loop owns its goal,
// state, and history for the lifetime of one run, and transitions to a
// terminal state exactly once: Run may only be called once per instance.
type Loop struct {
	id       string
	decider  DecisionPort
	registry *ToolRegistry
	invoker  *ToolInvoker
	history  *History
	state    LoopState
	config   LoopConfig
	emitter  *EventEmitter

	status RunStatus
	mu     sync.Mutex // guards status transitions
}

// NewLoop creates a loop over the given decision port and tool registry.
// A nil config uses DefaultLoopConfig; a nil registry gets an empty one.
func NewLoop(decider DecisionPort, registry *ToolRegistry, config *LoopConfig) *Loop {
	cfg := DefaultLoopConfig()
	if config != nil {
		cfg = *config
	}
	if registry == nil {
		registry = NewToolRegistry()
	}
	id := uuid.New().String()
	return &Loop{
		id:       id,
		decider:  decider,
		registry: registry,
		invoker:  NewToolInvoker(registry, cfg.ToolTimeout),
		history:  NewHistory(),
		config:   cfg,
		emitter:  NewEventEmitter(id, cfg.EventBuffer),
		status:   StatusInit,
	}
}

// ID returns the run identifier.
func (l *Loop) ID() string { return l.id }

// Status returns the current lifecycle state.
func (l *Loop) Status() RunStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}

// Events returns the loop's event channel. The channel is closed when the
// run terminates.
func (l *Loop) Events() <-chan Event {
	return l.emitter.Events()
}

// Run executes the loop until a stopping condition is met or a fatal error
// occurs. On fatal errors the partial RunResult is returned alongside the
// error so the caller can inspect the history.
func (l *Loop) Run(ctx context.Context, goal string) (*RunResult, error) {
	return l.run(ctx, goal, "")
}

// RunWithContext is Run with an initial observation recorded before the
// first decision call.
func (l *Loop) RunWithContext(ctx context.Context, goal, initialContext string) (*RunResult, error) {
	return l.run(ctx, goal, initialContext)
}

func (l *Loop) run(ctx context.Context, goal, initialContext string) (*RunResult, error) {
	if err := l.start(); err != nil {
		return nil, err
	}
	defer l.terminate()

	l.emitter.Emit(EventRunStart, map[string]interface{}{"goal": goal})

	if initialContext != "" {
		l.history.Append(NewObservationEntry(initialContext))
		l.emitter.Emit(EventObservation, map[string]interface{}{"content": initialContext})
	}

	start := time.Now()
	var stopReason string
	var fatal error

	for {
		if stop, reason := l.config.Stopping.ShouldStop(l.state, time.Since(start)); stop {
			stopReason = reason
			break
		}

		select {
		case <-ctx.Done():
			stopReason = "Context cancelled"
			fatal = ctx.Err()
		default:
		}
		if fatal != nil {
			break
		}

		action, err := l.decider.Decide(ctx, goal, l.history.Snapshot())
		if err == nil {
			err = l.validateDecision(action)
		}
		if err != nil {
			fatal = l.decisionFailure(err)
			stopReason = "Decision error"
			break
		}

		l.state.StepCount++
		l.emitter.Emit(EventStep, map[string]interface{}{
			"step":   l.state.StepCount,
			"action": string(action.Kind),
		})

		if action.Kind == ActionFinish {
			l.state.Completed = true
			l.state.Result = action.Result
			l.history.Append(NewActionEntry(action, ""))
			stopReason = "Goal achieved"
			break
		}

		l.dispatch(ctx, action)
	}

	result := &RunResult{
		RunID:      l.id,
		Completed:  l.state.Completed,
		Result:     l.state.Result,
		Steps:      l.state.StepCount,
		ToolErrors: l.state.ToolErrorCount,
		StopReason: stopReason,
		Elapsed:    time.Since(start),
		History:    l.history.Snapshot(),
	}
	l.emitter.Emit(EventRunEnd, map[string]interface{}{
		"stop_reason": stopReason,
		"completed":   result.Completed,
		"steps":       result.Steps,
	})
	if fatal != nil {
		return result, fatal
	}
	return result, nil
}

// dispatch handles the non-terminal action variants. The switch is the
// single dispatch site over ActionKind.
func (l *Loop) dispatch(ctx context.Context, action Action) {
	switch action.Kind {
	case ActionToolCall:
		l.executeToolCall(ctx, action)
	case ActionThink:
		l.history.Append(NewActionEntry(action, ""))
	case ActionRespond:
		l.history.Append(NewActionEntry(action, ""))
		if l.config.RespondEndsRun {
			l.state.Completed = true
			l.state.Result = action.Response
		}
	}
}

// executeToolCall records the call, invokes the handler with containment,
// and records the structured result under the same correlation id.
func (l *Loop) executeToolCall(ctx context.Context, action Action) {
	correlationID := uuid.New().String()
	l.history.Append(NewActionEntry(action, correlationID))
	l.emitter.Emit(EventToolCallStart, map[string]interface{}{
		"tool":           action.ToolName,
		"correlation_id": correlationID,
	})

	result, err := l.invoker.Invoke(ctx, action.ToolName, action.ToolArgs)
	if err != nil {
		l.state.ToolErrorCount++
	}

	recorded := truncateResultMap(result, l.config.MaxToolResultChars)
	l.history.Append(NewToolResultEntry(correlationID, recorded))
	l.emitter.Emit(EventToolCallEnd, map[string]interface{}{
		"tool":           action.ToolName,
		"correlation_id": correlationID,
		"result":         result,
		"errored":        err != nil,
	})

	if l.config.EnableLoopDetection &&
		DetectRepeatedCalls(l.history.Snapshot(), l.config.LoopDetectionWindow) {
		warning := fmt.Sprintf(
			"The last %d tool calls follow a repeating pattern. Try a different approach.",
			l.config.LoopDetectionWindow)
		l.history.Append(NewObservationEntry(warning))
		l.emitter.Emit(EventWarning, map[string]interface{}{"message": warning})
	}
}

// validateDecision rejects malformed actions from the port.
func (l *Loop) validateDecision(action Action) error {
	if err := action.Validate(); err != nil {
		return &stepwise.DecisionError{
			CoreError: stepwise.CoreError{Message: "invalid action from decision port", Cause: err},
		}
	}
	return nil
}

// decisionFailure stamps the failing step onto the error and records it in
// history so no failure is silently swallowed.
func (l *Loop) decisionFailure(err error) error {
	step := l.state.StepCount + 1
	if de, ok := err.(*stepwise.DecisionError); ok {
		de.Step = step
	} else {
		err = &stepwise.DecisionError{
			CoreError: stepwise.CoreError{Message: "decision port failed", Cause: err},
			Step:      step,
		}
	}
	l.history.Append(NewObservationEntry("Run aborted: " + err.Error()))
	l.emitter.Emit(EventError, map[string]interface{}{"error": err.Error()})
	return err
}

// start performs the single INIT -> RUNNING transition.
func (l *Loop) start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.status != StatusInit {
		return &stepwise.ConfigurationError{
			CoreError: stepwise.CoreError{Message: "loop has already run"},
		}
	}
	if l.config.Stopping.MaxSteps <= 0 {
		return &stepwise.ConfigurationError{
			CoreError: stepwise.CoreError{Message: "max_steps must be positive"},
		}
	}
	if l.config.Stopping.MaxToolErrors < 0 {
		return &stepwise.ConfigurationError{
			CoreError: stepwise.CoreError{Message: "max_tool_errors must not be negative"},
		}
	}
	l.status = StatusRunning
	return nil
}

// terminate performs the single RUNNING -> TERMINATED transition and closes
// the event stream.
func (l *Loop) terminate() {
	l.mu.Lock()
	l.status = StatusTerminated
	l.mu.Unlock()
	l.emitter.Close()
}
