package agent

import "fmt"

// ActionKind discriminates between action variants.
type ActionKind string

const (
	ActionToolCall ActionKind = "tool_call"
	ActionThink    ActionKind = "think"
	ActionRespond  ActionKind = "respond"
	ActionFinish   ActionKind = "finish"
)

// Action is one decision output of the agent loop. It is a closed tagged
// variant: exactly one of the kind-specific fields is meaningful, selected
// by Kind. The loop dispatches on Kind exhaustively; adding a new kind
// means extending that single dispatch site.
type Action struct {
	Kind     ActionKind             `json:"kind"`
	ToolName string                 `json:"tool_name,omitempty"`
	ToolArgs map[string]interface{} `json:"tool_args,omitempty"`
	Thought  string                 `json:"thought,omitempty"`
	Response string                 `json:"response,omitempty"`
	Result   string                 `json:"result,omitempty"`
}

// ToolCall creates a tool invocation action.
func ToolCall(name string, args map[string]interface{}) Action {
	return Action{Kind: ActionToolCall, ToolName: name, ToolArgs: args}
}

// Think creates a reasoning action with no side effect.
func Think(thought string) Action {
	return Action{Kind: ActionThink, Thought: thought}
}

// Respond creates a response action. Whether a response terminates the run
// is an explicit loop configuration choice (LoopConfig.RespondEndsRun).
func Respond(response string) Action {
	return Action{Kind: ActionRespond, Response: response}
}

// Finish creates the terminal action carrying the final result.
func Finish(result string) Action {
	return Action{Kind: ActionFinish, Result: result}
}

// Validate checks that the action is a well-formed variant.
func (a Action) Validate() error {
	switch a.Kind {
	case ActionToolCall:
		if a.ToolName == "" {
			return fmt.Errorf("tool_call action has no tool name")
		}
		return nil
	case ActionThink, ActionRespond, ActionFinish:
		return nil
	default:
		return fmt.Errorf("unknown action kind %q", a.Kind)
	}
}
