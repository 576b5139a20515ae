package fanout

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martinemde/stepwise"
	"github.com/martinemde/stepwise/llm"
)

type staticPlanner []Subtask

func (p staticPlanner) Plan(ctx context.Context, goal string, workerTypes []string) ([]Subtask, error) {
	return p, nil
}

type joinSynthesizer struct{}

func (joinSynthesizer) Synthesize(ctx context.Context, goal string, subtasks []Subtask, results map[string]string) (string, error) {
	parts := make([]string, 0, len(results))
	for id, out := range results {
		parts = append(parts, fmt.Sprintf("%s=%s", id, out))
	}
	sort.Strings(parts)
	return strings.Join(parts, ";"), nil
}

func echoWorker(prefix string) Worker {
	return WorkerFunc(func(ctx context.Context, task Subtask) (string, error) {
		return prefix + ":" + task.Description, nil
	})
}

func TestOrchestratorExecute(t *testing.T) {
	planner := staticPlanner{
		{ID: "r1", Description: "gather data", WorkerType: "research"},
		{ID: "w1", Description: "draft report", WorkerType: "writing"},
	}
	o := NewOrchestrator(planner, joinSynthesizer{}, nil)
	o.RegisterWorker("research", echoWorker("researched"))
	o.RegisterWorker("writing", echoWorker("wrote"))

	result, err := o.Execute(context.Background(), "produce a report")
	require.NoError(t, err)

	assert.Equal(t, "r1=researched:gather data;w1=wrote:draft report", result.Output)
	assert.Len(t, result.Subtasks, 2)
	assert.Equal(t, "researched:gather data", result.Results["r1"])
	assert.Equal(t, "wrote:draft report", result.Results["w1"])
}

func TestOrchestratorRequiresWorkers(t *testing.T) {
	o := NewOrchestrator(staticPlanner{}, joinSynthesizer{}, nil)
	_, err := o.Execute(context.Background(), "goal")
	var ce *stepwise.ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, err.Error(), "no workers registered")
}

func TestOrchestratorRejectsEmptyPlan(t *testing.T) {
	o := NewOrchestrator(staticPlanner{}, joinSynthesizer{}, nil)
	o.RegisterWorker("research", echoWorker("r"))

	_, err := o.Execute(context.Background(), "goal")
	var ce *stepwise.ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, err.Error(), "no subtasks")
}

func TestOrchestratorValidatesPlanBeforeDispatch(t *testing.T) {
	tests := []struct {
		name     string
		plan     staticPlanner
		contains string
	}{
		{
			name:     "empty id",
			plan:     staticPlanner{{ID: "", WorkerType: "research"}},
			contains: "empty id",
		},
		{
			name: "duplicate id",
			plan: staticPlanner{
				{ID: "a", WorkerType: "research"},
				{ID: "a", WorkerType: "research"},
			},
			contains: `duplicate subtask id "a"`,
		},
		{
			name:     "unregistered worker type",
			plan:     staticPlanner{{ID: "a", WorkerType: "juggling"}},
			contains: `no worker registered for type "juggling"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var dispatched bool
			o := NewOrchestrator(tt.plan, joinSynthesizer{}, nil)
			o.RegisterWorker("research", WorkerFunc(func(ctx context.Context, task Subtask) (string, error) {
				dispatched = true
				return "", nil
			}))

			_, err := o.Execute(context.Background(), "goal")
			var ce *stepwise.ConfigurationError
			require.ErrorAs(t, err, &ce)
			assert.Contains(t, err.Error(), tt.contains)
			assert.False(t, dispatched, "validation must reject the plan before any dispatch")
		})
	}
}

func TestOrchestratorWorkerFailureFailsBatch(t *testing.T) {
	cause := errors.New("worker crashed")
	planner := staticPlanner{
		{ID: "ok", WorkerType: "good"},
		{ID: "bad", WorkerType: "broken"},
	}
	o := NewOrchestrator(planner, joinSynthesizer{}, nil)
	o.RegisterWorker("good", echoWorker("fine"))
	o.RegisterWorker("broken", WorkerFunc(func(ctx context.Context, task Subtask) (string, error) {
		return "", cause
	}))

	_, err := o.Execute(context.Background(), "goal")
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), `subtask "bad"`)
}

func TestOrchestratorLastWorkerRegistrationWins(t *testing.T) {
	o := NewOrchestrator(staticPlanner{{ID: "a", WorkerType: "research"}}, joinSynthesizer{}, nil)
	o.RegisterWorker("research", echoWorker("first"))
	o.RegisterWorker("research", echoWorker("second"))

	result, err := o.Execute(context.Background(), "goal")
	require.NoError(t, err)
	assert.Equal(t, "a=second:", result.Output)
	assert.Equal(t, []string{"research"}, o.WorkerTypes())
}

func TestLLMPlannerParsesPlan(t *testing.T) {
	client := llm.GeneratorFunc(func(ctx context.Context, req llm.Request) (string, error) {
		assert.Contains(t, req.Prompt, "research, writing")
		return "```json\n" +
			`[{"id": "t1", "description": "find sources", "worker_type": "research"}]` +
			"\n```", nil
	})

	subtasks, err := NewLLMPlanner(client).Plan(context.Background(), "goal", []string{"research", "writing"})
	require.NoError(t, err)
	require.Len(t, subtasks, 1)
	assert.Equal(t, "t1", subtasks[0].ID)
	assert.Equal(t, "research", subtasks[0].WorkerType)
}

func TestLLMPlannerUnparseablePlan(t *testing.T) {
	client := llm.GeneratorFunc(func(ctx context.Context, req llm.Request) (string, error) {
		return "Step 1: do research. Step 2: write.", nil
	})

	_, err := NewLLMPlanner(client).Plan(context.Background(), "goal", []string{"research"})
	require.Error(t, err)
	var pe *stepwise.ParsingError
	require.ErrorAs(t, err, &pe)
	assert.Contains(t, err.Error(), "unparseable plan payload")
}

func TestLLMSynthesizerPromptIncludesResults(t *testing.T) {
	var gotPrompt string
	client := llm.GeneratorFunc(func(ctx context.Context, req llm.Request) (string, error) {
		gotPrompt = req.Prompt
		return "final output", nil
	})

	subtasks := []Subtask{{ID: "t1", Description: "find sources"}}
	out, err := NewLLMSynthesizer(client).Synthesize(context.Background(), "the goal",
		subtasks, map[string]string{"t1": "three sources found"})
	require.NoError(t, err)
	assert.Equal(t, "final output", out)
	assert.Contains(t, gotPrompt, "the goal")
	assert.Contains(t, gotPrompt, "t1: find sources")
	assert.Contains(t, gotPrompt, "three sources found")
}
