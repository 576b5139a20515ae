package fanout

import (
	"context"
	"fmt"
	"strings"

	"github.com/martinemde/stepwise"
	"golang.org/x/sync/errgroup"
)

// VoteResult is the aggregation of a voting batch.
type VoteResult struct {
	// Consensus is the winning normalized answer.
	Consensus string `json:"consensus"`
	// Votes are the raw answers in dispatch order.
	Votes []string `json:"votes"`
	// VoteCounts tallies normalized answers.
	VoteCounts map[string]int `json:"vote_counts"`
	// Confidence is the winning count divided by the total.
	Confidence float64 `json:"confidence"`
}

// NormalizeVote case-folds and trims a raw answer for tallying.
func NormalizeVote(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

// Vote dispatches the same task to replicas concurrent invocations and
// aggregates by majority.
func (e *Executor) Vote(ctx context.Context, task string, replicas int, h Handler) (*VoteResult, error) {
	if replicas <= 0 {
		return nil, &stepwise.ConfigurationError{
			CoreError: stepwise.CoreError{Message: "vote requires at least one replica"},
		}
	}
	tasks := make([]string, replicas)
	for i := range tasks {
		tasks[i] = task
	}
	return e.voteOn(ctx, tasks, h)
}

// VoteWithPerspectives dispatches one invocation per prompt, letting each
// replica approach the question from a different angle, and aggregates by
// majority.
func (e *Executor) VoteWithPerspectives(ctx context.Context, prompts []string, h Handler) (*VoteResult, error) {
	if len(prompts) == 0 {
		return nil, &stepwise.ConfigurationError{
			CoreError: stepwise.CoreError{Message: "vote requires at least one perspective"},
		}
	}
	return e.voteOn(ctx, prompts, h)
}

// voteOn runs the batch and tallies. Like sectioning, the batch fails as a
// unit on any invocation failure.
//
// The tie-break is explicit and deterministic: among the normalized
// answers sharing the maximum count, the consensus is the first one
// encountered in dispatch order.
func (e *Executor) voteOn(ctx context.Context, tasks []string, h Handler) (*VoteResult, error) {
	votes := make([]string, len(tasks))
	var g errgroup.Group
	for i, task := range tasks {
		i, task := i, task
		g.Go(func() error {
			out, err := e.invoke(ctx, h, task)
			if err != nil {
				return fmt.Errorf("vote %d: %w", i, err)
			}
			votes[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(votes))
	for _, vote := range votes {
		counts[NormalizeVote(vote)]++
	}

	max := 0
	for _, count := range counts {
		if count > max {
			max = count
		}
	}
	consensus := ""
	for _, vote := range votes {
		if normalized := NormalizeVote(vote); counts[normalized] == max {
			consensus = normalized
			break
		}
	}

	return &VoteResult{
		Consensus:  consensus,
		Votes:      votes,
		VoteCounts: counts,
		Confidence: float64(max) / float64(len(tasks)),
	}, nil
}
