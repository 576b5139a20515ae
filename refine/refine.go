// Package refine implements the generate-evaluate refinement loop: one
// port generates content, a second scores it against weighted, thresholded
// criteria and produces feedback, and the loop iterates until the target
// score is reached, every criterion clears its threshold, the score
// stagnates, or the iteration budget runs out.
package refine

import (
	"context"

	"github.com/martinemde/stepwise"
)

// stagnationEpsilon is the minimum per-iteration score improvement; below
// it the loop stops when StopOnNoImprovement is set.
const stagnationEpsilon = 0.1

// Criterion is one named, weighted, thresholded dimension of quality.
// Criteria are set once before a run and never change during it.
type Criterion struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Weight      float64 `json:"weight"`    // in [0, 1]
	Threshold   float64 `json:"threshold"` // minimum acceptable score out of 10
}

// Assessment is the raw output of an evaluator: per-criterion scores out
// of 10 and actionable feedback.
type Assessment struct {
	Scores   map[string]float64 `json:"scores"`
	Feedback string             `json:"feedback"`
}

// EvaluationResult is an assessment enriched with the derived verdicts.
type EvaluationResult struct {
	Scores           map[string]float64 `json:"scores"`
	OverallScore     float64            `json:"overall_score"`
	Feedback         string             `json:"feedback"`
	Acceptable       bool               `json:"acceptable"`
	NeedsImprovement []string           `json:"needs_improvement,omitempty"`
}

// Iteration is one recorded generate-evaluate round.
type Iteration struct {
	Index      int              `json:"index"` // 0 is the initial generation
	Output     string           `json:"output"`
	Evaluation EvaluationResult `json:"evaluation"`
}

// Result summarizes a refinement run.
type Result struct {
	FinalOutput  string      `json:"final_output"`
	Iterations   int         `json:"iterations"` // total rounds, including the initial one
	InitialScore float64     `json:"initial_score"`
	FinalScore   float64     `json:"final_score"`
	StopReason   string      `json:"stop_reason"`
	History      []Iteration `json:"history"`
}

// Generator produces content for a task. previous and feedback are empty
// on the initial call; on improvement calls they carry the prior output
// and the evaluator's feedback.
type Generator interface {
	Generate(ctx context.Context, task, previous, feedback string) (string, error)
}

// Evaluator scores content against the run's criteria.
type Evaluator interface {
	Evaluate(ctx context.Context, content, task string, criteria []Criterion) (Assessment, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, task, previous, feedback string) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, task, previous, feedback string) (string, error) {
	return f(ctx, task, previous, feedback)
}

// EvaluatorFunc adapts a function to the Evaluator interface.
type EvaluatorFunc func(ctx context.Context, content, task string, criteria []Criterion) (Assessment, error)

// Evaluate calls f.
func (f EvaluatorFunc) Evaluate(ctx context.Context, content, task string, criteria []Criterion) (Assessment, error) {
	return f(ctx, content, task, criteria)
}

// Config holds the refinement budgets.
type Config struct {
	MaxIterations       int     `json:"max_iterations"` // improvement rounds after the initial generation
	TargetScore         float64 `json:"target_score"`
	StopOnNoImprovement bool    `json:"stop_on_no_improvement"`
}

// DefaultConfig returns the default budgets.
func DefaultConfig() Config {
	return Config{
		MaxIterations:       3,
		TargetScore:         8.0,
		StopOnNoImprovement: true,
	}
}

// Loop runs the refinement process. Like the agent loop, it is strictly
// sequential: one generation or evaluation call outstanding at a time.
type Loop struct {
	gen      Generator
	eval     Evaluator
	criteria []Criterion
	config   Config
}

// NewLoop creates a refinement loop. A nil config uses DefaultConfig.
func NewLoop(gen Generator, eval Evaluator, config *Config) *Loop {
	cfg := DefaultConfig()
	if config != nil {
		cfg = *config
	}
	return &Loop{gen: gen, eval: eval, config: cfg}
}

// AddCriterion appends an evaluation criterion. Returns the loop for
// chaining.
func (l *Loop) AddCriterion(name, description string, weight, threshold float64) *Loop {
	l.criteria = append(l.criteria, Criterion{
		Name:        name,
		Description: description,
		Weight:      weight,
		Threshold:   threshold,
	})
	return l
}

// Criteria returns a copy of the configured criteria.
func (l *Loop) Criteria() []Criterion {
	out := make([]Criterion, len(l.criteria))
	copy(out, l.criteria)
	return out
}

// Refine runs the full loop for a task.
func (l *Loop) Refine(ctx context.Context, task string) (*Result, error) {
	if len(l.criteria) == 0 {
		return nil, &stepwise.ConfigurationError{
			CoreError: stepwise.CoreError{Message: "refinement requires at least one criterion"},
		}
	}
	if l.config.MaxIterations <= 0 {
		return nil, &stepwise.ConfigurationError{
			CoreError: stepwise.CoreError{Message: "max_iterations must be positive"},
		}
	}

	output, err := l.gen.Generate(ctx, task, "", "")
	if err != nil {
		return nil, err
	}
	evaluation, err := l.evaluate(ctx, output, task)
	if err != nil {
		return nil, err
	}

	initialScore := evaluation.OverallScore
	previousScore := initialScore
	history := []Iteration{{Index: 0, Output: output, Evaluation: evaluation}}

	var stopReason string
	iteration := 0
	for iteration < l.config.MaxIterations {
		if evaluation.OverallScore >= l.config.TargetScore {
			stopReason = "Target score reached"
			break
		}
		if evaluation.Acceptable {
			stopReason = "All criteria satisfied"
			break
		}

		improved, err := l.gen.Generate(ctx, task, output, evaluation.Feedback)
		if err != nil {
			return nil, err
		}
		output = improved
		evaluation, err = l.evaluate(ctx, output, task)
		if err != nil {
			return nil, err
		}

		iteration++
		// The iteration is recorded before the stagnation check so a
		// stagnating round's output is kept as the final result.
		history = append(history, Iteration{Index: iteration, Output: output, Evaluation: evaluation})

		if l.config.StopOnNoImprovement &&
			evaluation.OverallScore-previousScore < stagnationEpsilon {
			stopReason = "No further improvement"
			break
		}
		previousScore = evaluation.OverallScore
	}
	if stopReason == "" {
		stopReason = "Max iterations reached"
	}

	return &Result{
		FinalOutput:  output,
		Iterations:   len(history),
		InitialScore: initialScore,
		FinalScore:   evaluation.OverallScore,
		StopReason:   stopReason,
		History:      history,
	}, nil
}

// evaluate calls the evaluator and derives the weighted overall score and
// per-criterion verdicts. A criterion absent from the evaluator's scores
// counts as 0, by definition rather than as an error.
func (l *Loop) evaluate(ctx context.Context, content, task string) (EvaluationResult, error) {
	assessment, err := l.eval.Evaluate(ctx, content, task, l.Criteria())
	if err != nil {
		return EvaluationResult{}, err
	}

	var totalWeight, weightedSum float64
	var needsImprovement []string
	for _, c := range l.criteria {
		score := assessment.Scores[c.Name]
		totalWeight += c.Weight
		weightedSum += score * c.Weight
		if score < c.Threshold {
			needsImprovement = append(needsImprovement, c.Name)
		}
	}
	overall := 0.0
	if totalWeight > 0 {
		overall = weightedSum / totalWeight
	}

	return EvaluationResult{
		Scores:           assessment.Scores,
		OverallScore:     overall,
		Feedback:         assessment.Feedback,
		Acceptable:       len(needsImprovement) == 0,
		NeedsImprovement: needsImprovement,
	}, nil
}
