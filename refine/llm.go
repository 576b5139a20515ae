package refine

import (
	"context"
	"fmt"
	"strings"

	"github.com/martinemde/stepwise"
	"github.com/martinemde/stepwise/jsonfence"
	"github.com/martinemde/stepwise/llm"
)

// LLMGenerator implements Generator on top of an llm.Generator.
type LLMGenerator struct {
	client    llm.Generator
	maxTokens int
}

// NewLLMGenerator creates an LLM-backed content generator.
func NewLLMGenerator(client llm.Generator) *LLMGenerator {
	return &LLMGenerator{client: client, maxTokens: 4096}
}

// Generate produces initial content, or an improved version when previous
// output and feedback are supplied.
func (g *LLMGenerator) Generate(ctx context.Context, task, previous, feedback string) (string, error) {
	var prompt string
	if feedback != "" {
		prompt = fmt.Sprintf(`Improve this content based on the feedback provided.

Original task: %s

Previous version:
%s

Feedback for improvement:
%s

Generate an improved version that addresses all feedback points.`, task, previous, feedback)
	} else {
		prompt = fmt.Sprintf(`Generate high-quality content for the following:

%s

Focus on quality, clarity, and accuracy.`, task)
	}

	text, err := g.client.Generate(ctx, llm.Request{Prompt: prompt, MaxTokens: g.maxTokens})
	if err != nil {
		return "", fmt.Errorf("generation call: %w", err)
	}
	return text, nil
}

// LLMEvaluator implements Evaluator on top of an llm.Generator. The model
// is asked for a fenced JSON payload with per-criterion scores and
// feedback; an unparseable payload is a fatal *stepwise.ParsingError.
type LLMEvaluator struct {
	client    llm.Generator
	maxTokens int
}

// NewLLMEvaluator creates an LLM-backed evaluator.
func NewLLMEvaluator(client llm.Generator) *LLMEvaluator {
	return &LLMEvaluator{client: client, maxTokens: 2048}
}

// Evaluate scores content against the criteria.
func (e *LLMEvaluator) Evaluate(ctx context.Context, content, task string, criteria []Criterion) (Assessment, error) {
	var criteriaText strings.Builder
	for _, c := range criteria {
		fmt.Fprintf(&criteriaText, "- %s: %s (threshold: %.1f/10, weight: %.1f)\n",
			c.Name, c.Description, c.Threshold, c.Weight)
	}

	prompt := fmt.Sprintf(`Evaluate the following content against these criteria:

%s
Original task:
%s

Content to evaluate:
%s

Provide your evaluation as JSON inside a fenced code block:
{
    "scores": {"<criterion name>": <score out of 10>, ...},
    "feedback": "Specific, actionable feedback on how to improve"
}`, criteriaText.String(), task, content)

	text, err := e.client.Generate(ctx, llm.Request{Prompt: prompt, MaxTokens: e.maxTokens})
	if err != nil {
		return Assessment{}, fmt.Errorf("evaluation call: %w", err)
	}

	var assessment Assessment
	if err := jsonfence.Unmarshal(text, &assessment); err != nil {
		return Assessment{}, &stepwise.ParsingError{
			CoreError: stepwise.CoreError{
				Message: fmt.Sprintf("unparseable evaluation payload: %.200s", text),
				Cause:   err,
			},
		}
	}
	if assessment.Scores == nil {
		assessment.Scores = map[string]float64{}
	}
	return assessment, nil
}
