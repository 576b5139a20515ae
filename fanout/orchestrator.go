package fanout

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/martinemde/stepwise"
	"github.com/martinemde/stepwise/jsonfence"
	"github.com/martinemde/stepwise/llm"
	"golang.org/x/sync/errgroup"
)

// Subtask is one planned unit of work assigned to a typed worker. IDs
// identify subtasks within a batch and must be unique.
type Subtask struct {
	ID          string                 `json:"id"`
	Description string                 `json:"description"`
	Context     map[string]interface{} `json:"context,omitempty"`
	WorkerType  string                 `json:"worker_type"`
}

// Worker executes subtasks of its registered type.
type Worker interface {
	Execute(ctx context.Context, task Subtask) (string, error)
}

// WorkerFunc adapts a function to the Worker interface.
type WorkerFunc func(ctx context.Context, task Subtask) (string, error)

// Execute calls f.
func (f WorkerFunc) Execute(ctx context.Context, task Subtask) (string, error) {
	return f(ctx, task)
}

// Planner decomposes a goal into subtasks for the available worker types.
type Planner interface {
	Plan(ctx context.Context, goal string, workerTypes []string) ([]Subtask, error)
}

// Synthesizer combines the joined worker results into one output.
type Synthesizer interface {
	Synthesize(ctx context.Context, goal string, subtasks []Subtask, results map[string]string) (string, error)
}

// OrchestratorResult is the outcome of one orchestrated decomposition.
type OrchestratorResult struct {
	Output   string            `json:"output"`
	Subtasks []Subtask         `json:"subtasks"`
	Results  map[string]string `json:"results"` // keyed by subtask ID
}

// Orchestrator coordinates plan -> dispatch -> synthesize. Workers are
// registered per instance, never globally; register them all before the
// first Execute call.
type Orchestrator struct {
	planner Planner
	synth   Synthesizer
	exec    *Executor
	workers map[string]Worker
	mu      sync.RWMutex
}

// NewOrchestrator creates an orchestrator. A nil exec uses a fresh
// Executor with no per-invocation timeout.
func NewOrchestrator(planner Planner, synth Synthesizer, exec *Executor) *Orchestrator {
	if exec == nil {
		exec = NewExecutor()
	}
	return &Orchestrator{
		planner: planner,
		synth:   synth,
		exec:    exec,
		workers: make(map[string]Worker),
	}
}

// RegisterWorker binds a worker type to a worker. Re-registering a type
// overwrites the previous binding: last write wins.
func (o *Orchestrator) RegisterWorker(workerType string, w Worker) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.workers[workerType] = w
}

// WorkerTypes returns the sorted registered worker types.
func (o *Orchestrator) WorkerTypes() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	types := make([]string, 0, len(o.workers))
	for t := range o.workers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

func (o *Orchestrator) worker(workerType string) Worker {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.workers[workerType]
}

// Execute runs the full plan -> dispatch -> synthesize workflow. Subtasks
// are dispatched concurrently and joined fully before synthesis; any
// worker failure fails the batch as a unit. A subtask naming an
// unregistered worker type, or a duplicate subtask ID, is a fatal
// *stepwise.ConfigurationError detected before dispatch.
func (o *Orchestrator) Execute(ctx context.Context, goal string) (*OrchestratorResult, error) {
	types := o.WorkerTypes()
	if len(types) == 0 {
		return nil, &stepwise.ConfigurationError{
			CoreError: stepwise.CoreError{Message: "no workers registered"},
		}
	}

	subtasks, err := o.planner.Plan(ctx, goal, types)
	if err != nil {
		return nil, err
	}
	if len(subtasks) == 0 {
		return nil, &stepwise.ConfigurationError{
			CoreError: stepwise.CoreError{Message: "planner produced no subtasks"},
		}
	}

	seen := make(map[string]bool, len(subtasks))
	for _, st := range subtasks {
		if st.ID == "" {
			return nil, &stepwise.ConfigurationError{
				CoreError: stepwise.CoreError{Message: "subtask with empty id"},
			}
		}
		if seen[st.ID] {
			return nil, &stepwise.ConfigurationError{
				CoreError: stepwise.CoreError{Message: fmt.Sprintf("duplicate subtask id %q", st.ID)},
			}
		}
		seen[st.ID] = true
		if o.worker(st.WorkerType) == nil {
			return nil, &stepwise.ConfigurationError{
				CoreError: stepwise.CoreError{
					Message: fmt.Sprintf("no worker registered for type %q (subtask %q)", st.WorkerType, st.ID),
				},
			}
		}
	}

	results := make([]string, len(subtasks))
	var g errgroup.Group
	for i, st := range subtasks {
		i, st := i, st
		worker := o.worker(st.WorkerType)
		g.Go(func() error {
			callCtx := ctx
			if o.exec.timeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(ctx, o.exec.timeout)
				defer cancel()
			}
			out, err := worker.Execute(callCtx, st)
			if err != nil {
				return fmt.Errorf("subtask %q: %w", st.ID, err)
			}
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	resultMap := make(map[string]string, len(subtasks))
	for i, st := range subtasks {
		resultMap[st.ID] = results[i]
	}

	output, err := o.synth.Synthesize(ctx, goal, subtasks, resultMap)
	if err != nil {
		return nil, err
	}

	return &OrchestratorResult{
		Output:   output,
		Subtasks: subtasks,
		Results:  resultMap,
	}, nil
}

// LLMPlanner implements Planner on top of an llm.Generator. The model is
// asked for a fenced JSON array of subtasks; an unparseable plan is a
// fatal *stepwise.ParsingError.
type LLMPlanner struct {
	client llm.Generator
}

// NewLLMPlanner creates an LLM-backed planner.
func NewLLMPlanner(client llm.Generator) *LLMPlanner {
	return &LLMPlanner{client: client}
}

// Plan decomposes the goal into subtasks.
func (p *LLMPlanner) Plan(ctx context.Context, goal string, workerTypes []string) ([]Subtask, error) {
	prompt := fmt.Sprintf(`Break down this goal into concrete subtasks that can be executed
concurrently by specialized workers.

Goal: %s

Available worker types: %s

Return a JSON array inside a fenced code block with this structure:
[
  {
    "id": "unique_id",
    "description": "what the worker should do",
    "context": {"key": "relevant context"},
    "worker_type": "type of worker to use"
  }
]

Only use worker types from the available list above.`, goal, strings.Join(workerTypes, ", "))

	text, err := p.client.Generate(ctx, llm.Request{Prompt: prompt, MaxTokens: 4096})
	if err != nil {
		return nil, fmt.Errorf("planning call: %w", err)
	}

	var subtasks []Subtask
	if err := jsonfence.Unmarshal(text, &subtasks); err != nil {
		return nil, &stepwise.ParsingError{
			CoreError: stepwise.CoreError{
				Message: fmt.Sprintf("unparseable plan payload: %.200s", text),
				Cause:   err,
			},
		}
	}
	return subtasks, nil
}

// LLMSynthesizer implements Synthesizer on top of an llm.Generator.
type LLMSynthesizer struct {
	client llm.Generator
}

// NewLLMSynthesizer creates an LLM-backed synthesizer.
func NewLLMSynthesizer(client llm.Generator) *LLMSynthesizer {
	return &LLMSynthesizer{client: client}
}

// Synthesize combines worker results into one output.
func (s *LLMSynthesizer) Synthesize(ctx context.Context, goal string, subtasks []Subtask, results map[string]string) (string, error) {
	var listing strings.Builder
	for _, st := range subtasks {
		fmt.Fprintf(&listing, "- %s: %s\n  Result: %s\n", st.ID, st.Description, results[st.ID])
	}

	prompt := fmt.Sprintf(`Original goal:
%s

Subtasks executed and their results:
%s
Synthesize these results into a coherent final output that achieves the
original goal.`, goal, listing.String())

	text, err := s.client.Generate(ctx, llm.Request{Prompt: prompt, MaxTokens: 4096})
	if err != nil {
		return "", fmt.Errorf("synthesis call: %w", err)
	}
	return text, nil
}

// NewLLMWorker returns a Worker backed by an llm.Generator with a fixed
// system prompt for its specialty.
func NewLLMWorker(client llm.Generator, system string) Worker {
	return WorkerFunc(func(ctx context.Context, task Subtask) (string, error) {
		contextJSON, _ := json.Marshal(task.Context)
		prompt := fmt.Sprintf("Task: %s\n\nContext:\n%s\n\nComplete this task following the instructions above.",
			task.Description, contextJSON)
		return client.Generate(ctx, llm.Request{System: system, Prompt: prompt, MaxTokens: 4096})
	})
}
