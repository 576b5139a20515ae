package refine

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martinemde/stepwise"
	"github.com/martinemde/stepwise/llm"
)

func replyWith(text string) llm.Generator {
	return llm.GeneratorFunc(func(ctx context.Context, req llm.Request) (string, error) {
		return text, nil
	})
}

func TestLLMEvaluatorParsesFencedPayload(t *testing.T) {
	reply := "Here is my evaluation:\n```json\n" +
		`{"scores": {"accuracy": 7.5, "clarity": 9}, "feedback": "cite sources"}` +
		"\n```"
	eval := NewLLMEvaluator(replyWith(reply))

	assessment, err := eval.Evaluate(context.Background(), "content", "task", []Criterion{
		{Name: "accuracy", Weight: 0.5, Threshold: 7},
		{Name: "clarity", Weight: 0.5, Threshold: 7},
	})
	require.NoError(t, err)
	assert.InDelta(t, 7.5, assessment.Scores["accuracy"], 1e-9)
	assert.InDelta(t, 9.0, assessment.Scores["clarity"], 1e-9)
	assert.Equal(t, "cite sources", assessment.Feedback)
}

func TestLLMEvaluatorRejectsUnparseablePayload(t *testing.T) {
	eval := NewLLMEvaluator(replyWith("I would rate this highly."))

	_, err := eval.Evaluate(context.Background(), "content", "task", nil)
	require.Error(t, err)
	var pe *stepwise.ParsingError
	require.ErrorAs(t, err, &pe)
	assert.True(t, stepwise.IsFatal(err))
	assert.Contains(t, err.Error(), "unparseable evaluation payload")
}

func TestLLMEvaluatorNormalizesNilScores(t *testing.T) {
	eval := NewLLMEvaluator(replyWith("```json\n{\"feedback\": \"fine\"}\n```"))

	assessment, err := eval.Evaluate(context.Background(), "content", "task", nil)
	require.NoError(t, err)
	require.NotNil(t, assessment.Scores)
	assert.Empty(t, assessment.Scores)
}

func TestLLMEvaluatorPromptListsCriteria(t *testing.T) {
	var gotPrompt string
	gen := llm.GeneratorFunc(func(ctx context.Context, req llm.Request) (string, error) {
		gotPrompt = req.Prompt
		return "```json\n{\"scores\": {}}\n```", nil
	})

	_, err := NewLLMEvaluator(gen).Evaluate(context.Background(), "the content", "the task", []Criterion{
		{Name: "accuracy", Description: "factual accuracy", Weight: 0.6, Threshold: 7},
	})
	require.NoError(t, err)
	assert.Contains(t, gotPrompt, "accuracy: factual accuracy")
	assert.Contains(t, gotPrompt, "threshold: 7.0/10")
	assert.Contains(t, gotPrompt, "the content")
	assert.Contains(t, gotPrompt, "the task")
}

func TestLLMGeneratorPrompts(t *testing.T) {
	var gotPrompt string
	gen := llm.GeneratorFunc(func(ctx context.Context, req llm.Request) (string, error) {
		gotPrompt = req.Prompt
		return "generated", nil
	})
	g := NewLLMGenerator(gen)

	out, err := g.Generate(context.Background(), "write a haiku", "", "")
	require.NoError(t, err)
	assert.Equal(t, "generated", out)
	assert.Contains(t, gotPrompt, "write a haiku")
	assert.False(t, strings.Contains(gotPrompt, "Previous version"))

	_, err = g.Generate(context.Background(), "write a haiku", "old haiku", "count the syllables")
	require.NoError(t, err)
	assert.Contains(t, gotPrompt, "Previous version")
	assert.Contains(t, gotPrompt, "old haiku")
	assert.Contains(t, gotPrompt, "count the syllables")
}
