package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/martinemde/stepwise"
	"github.com/martinemde/stepwise/jsonfence"
	"github.com/martinemde/stepwise/llm"
)

// DecisionPort abstracts one call to a generation service: given the goal
// and the ordered run history, it returns exactly one Action. Malformed or
// undecodable output is a fatal *stepwise.DecisionError; the port must not
// retry at this layer.
type DecisionPort interface {
	Decide(ctx context.Context, goal string, history []HistoryEntry) (Action, error)
}

// DecisionFunc adapts a function to the DecisionPort interface.
type DecisionFunc func(ctx context.Context, goal string, history []HistoryEntry) (Action, error)

// Decide calls f.
func (f DecisionFunc) Decide(ctx context.Context, goal string, history []HistoryEntry) (Action, error) {
	return f(ctx, goal, history)
}

const defaultDeciderSystemPrompt = `You are an autonomous agent that accomplishes goals by taking actions step by step.

For each step:
1. Analyze the current state and what you have learned so far.
2. Decide on the single next action to take.
3. Use tools to interact with the environment and learn from their results.

When the goal is achieved, use the "finish" action with your final result.

Always answer with exactly one JSON object inside a fenced code block:

` + "```json" + `
{"action": "tool_call", "tool": "<tool name>", "args": {...}}
` + "```" + `

or one of:

{"action": "think", "text": "<your reasoning>"}
{"action": "respond", "text": "<message to the user>"}
{"action": "finish", "text": "<the final result>"}`

// LLMDecider implements DecisionPort on top of an llm.Generator. It renders
// the goal, the run history, and the registry's tool definitions into a
// prompt, and parses the model's fenced JSON reply into an Action.
type LLMDecider struct {
	client       llm.Generator
	registry     *ToolRegistry
	systemPrompt string
	maxTokens    int
}

// DeciderOption configures an LLMDecider.
type DeciderOption func(*LLMDecider)

// WithSystemPrompt replaces the default decision system prompt. The
// replacement must still instruct the model to answer with the fenced
// JSON action protocol.
func WithSystemPrompt(prompt string) DeciderOption {
	return func(d *LLMDecider) { d.systemPrompt = prompt }
}

// WithDecisionMaxTokens sets the response budget for decision calls.
func WithDecisionMaxTokens(n int) DeciderOption {
	return func(d *LLMDecider) { d.maxTokens = n }
}

// NewLLMDecider creates a decider that advertises the registry's tools.
func NewLLMDecider(client llm.Generator, registry *ToolRegistry, opts ...DeciderOption) *LLMDecider {
	if registry == nil {
		registry = NewToolRegistry()
	}
	d := &LLMDecider{
		client:       client,
		registry:     registry,
		systemPrompt: defaultDeciderSystemPrompt,
		maxTokens:    4096,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// decodedAction is the wire form of the decision protocol.
type decodedAction struct {
	Action string                 `json:"action"`
	Tool   string                 `json:"tool,omitempty"`
	Args   map[string]interface{} `json:"args,omitempty"`
	Text   string                 `json:"text,omitempty"`
}

// Decide requests the next action from the model.
func (d *LLMDecider) Decide(ctx context.Context, goal string, history []HistoryEntry) (Action, error) {
	prompt := buildDecisionPrompt(goal, history, d.registry)
	text, err := d.client.Generate(ctx, llm.Request{
		System:    d.systemPrompt,
		Prompt:    prompt,
		MaxTokens: d.maxTokens,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Action{}, &stepwise.TimeoutError{
				CoreError: stepwise.CoreError{Message: "decision call timed out", Cause: err},
			}
		}
		return Action{}, &stepwise.DecisionError{
			CoreError: stepwise.CoreError{Message: "decision call failed", Cause: err},
		}
	}

	var decoded decodedAction
	if err := jsonfence.Unmarshal(text, &decoded); err != nil {
		return Action{}, &stepwise.DecisionError{
			CoreError: stepwise.CoreError{
				Message: fmt.Sprintf("undecodable decision output: %.200s", text),
				Cause:   err,
			},
		}
	}

	switch ActionKind(decoded.Action) {
	case ActionToolCall:
		if decoded.Tool == "" {
			return Action{}, &stepwise.DecisionError{
				CoreError: stepwise.CoreError{Message: "tool_call decision names no tool"},
			}
		}
		return ToolCall(decoded.Tool, decoded.Args), nil
	case ActionThink:
		return Think(decoded.Text), nil
	case ActionRespond:
		return Respond(decoded.Text), nil
	case ActionFinish:
		return Finish(decoded.Text), nil
	default:
		return Action{}, &stepwise.DecisionError{
			CoreError: stepwise.CoreError{Message: fmt.Sprintf("ambiguous decision action %q", decoded.Action)},
		}
	}
}

// buildDecisionPrompt renders the goal, tool catalog, and history into the
// user prompt for one decision call.
func buildDecisionPrompt(goal string, history []HistoryEntry, registry *ToolRegistry) string {
	var sb strings.Builder
	sb.WriteString("Goal: ")
	sb.WriteString(goal)
	sb.WriteString("\n")

	defs := registry.Definitions()
	if len(defs) > 0 {
		sb.WriteString("\nAvailable tools:\n")
		for _, def := range defs {
			params, _ := json.Marshal(def.Parameters)
			fmt.Fprintf(&sb, "- %s: %s\n  parameters: %s\n", def.Name, def.Description, params)
		}
	}

	if len(history) > 0 {
		sb.WriteString("\nSteps so far:\n")
		for _, entry := range history {
			switch entry.Kind {
			case EntryAction:
				writeActionLine(&sb, entry)
			case EntryToolResult:
				result, _ := json.Marshal(entry.Result)
				fmt.Fprintf(&sb, "Tool result [%s]: %s\n", entry.CorrelationID, result)
			case EntryObservation:
				fmt.Fprintf(&sb, "Observation: %s\n", entry.Observation)
			}
		}
	}

	sb.WriteString("\nDecide the next action.")
	return sb.String()
}

func writeActionLine(sb *strings.Builder, entry HistoryEntry) {
	action := entry.Action
	if action == nil {
		return
	}
	switch action.Kind {
	case ActionToolCall:
		args, _ := json.Marshal(action.ToolArgs)
		fmt.Fprintf(sb, "Called tool %s [%s] with args %s\n", action.ToolName, entry.CorrelationID, args)
	case ActionThink:
		fmt.Fprintf(sb, "Thought: %s\n", action.Thought)
	case ActionRespond:
		fmt.Fprintf(sb, "Responded: %s\n", action.Response)
	case ActionFinish:
		fmt.Fprintf(sb, "Finished with result: %s\n", action.Result)
	}
}
