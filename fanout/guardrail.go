package fanout

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/martinemde/stepwise"
	"github.com/martinemde/stepwise/jsonfence"
	"github.com/martinemde/stepwise/llm"
)

// Verdict is the outcome of a guardrail check.
type Verdict struct {
	Safe   bool   `json:"safe"`
	Reason string `json:"reason,omitempty"`
}

// CheckFunc is the gating branch of a guardrail race.
type CheckFunc func(ctx context.Context, input string) (Verdict, error)

// GuardedResult is the joined outcome of a guardrail race.
type GuardedResult struct {
	// Allowed reports whether the gating check passed.
	Allowed bool `json:"allowed"`
	// Output is the main branch's result; empty when blocked.
	Output string `json:"output,omitempty"`
	// Reason carries the gating check's explanation when blocked.
	Reason string `json:"reason,omitempty"`
}

// RunGuarded races the gating check against the main generation. Both
// branches always run to completion; neither cancels the other. The main
// result is surfaced only if the check passes; otherwise a blocked result
// carrying the check's explanation is returned and the main output is
// discarded. A failure in either branch is surfaced independently — the
// other branch's success does not mask it, and if both fail, both errors
// are reported.
func (e *Executor) RunGuarded(ctx context.Context, input string, check CheckFunc, main Handler) (*GuardedResult, error) {
	if check == nil || main == nil {
		return nil, &stepwise.ConfigurationError{
			CoreError: stepwise.CoreError{Message: "guardrail race requires both a check and a main handler"},
		}
	}

	var (
		verdict  Verdict
		output   string
		checkErr error
		mainErr  error
	)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		callCtx := ctx
		if e.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, e.timeout)
			defer cancel()
		}
		verdict, checkErr = check(callCtx, input)
	}()
	go func() {
		defer wg.Done()
		output, mainErr = e.invoke(ctx, main, input)
	}()
	wg.Wait()

	switch {
	case checkErr != nil && mainErr != nil:
		return nil, errors.Join(
			fmt.Errorf("guardrail check: %w", checkErr),
			fmt.Errorf("main branch: %w", mainErr),
		)
	case checkErr != nil:
		return nil, fmt.Errorf("guardrail check: %w", checkErr)
	case mainErr != nil:
		return nil, fmt.Errorf("main branch: %w", mainErr)
	}

	if !verdict.Safe {
		reason := verdict.Reason
		if reason == "" {
			reason = "Content policy violation"
		}
		return &GuardedResult{Allowed: false, Reason: reason}, nil
	}
	return &GuardedResult{Allowed: true, Output: output}, nil
}

const defaultGuardrailSystemPrompt = `You are a content safety classifier. Analyze the content for:
- Harmful content
- Inappropriate requests
- Policy violations

Respond with JSON inside a fenced code block:
{"safe": true or false, "reason": "explanation if unsafe"}`

// LLMCheck returns a CheckFunc backed by an llm.Generator. An empty system
// prompt uses the default safety-classifier prompt. An unparseable verdict
// payload is a fatal *stepwise.ParsingError.
func LLMCheck(client llm.Generator, system string) CheckFunc {
	if system == "" {
		system = defaultGuardrailSystemPrompt
	}
	return func(ctx context.Context, input string) (Verdict, error) {
		text, err := client.Generate(ctx, llm.Request{System: system, Prompt: input, MaxTokens: 256})
		if err != nil {
			return Verdict{}, err
		}
		var verdict Verdict
		if err := jsonfence.Unmarshal(text, &verdict); err != nil {
			return Verdict{}, &stepwise.ParsingError{
				CoreError: stepwise.CoreError{
					Message: fmt.Sprintf("unparseable guardrail verdict: %.200s", text),
					Cause:   err,
				},
			}
		}
		return verdict, nil
	}
}

// LLMHandler returns a Handler backed by an llm.Generator with a fixed
// system prompt. It serves as the main branch of a guardrail race or as a
// sectioning/voting worker.
func LLMHandler(client llm.Generator, system string) Handler {
	return func(ctx context.Context, task string) (string, error) {
		return client.Generate(ctx, llm.Request{System: system, Prompt: task, MaxTokens: 4096})
	}
}
