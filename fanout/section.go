package fanout

import (
	"context"
	"fmt"
	"strings"

	"github.com/martinemde/stepwise"
	"golang.org/x/sync/errgroup"
)

// Section is one independent subtask in a sectioning batch. Names identify
// sections within a batch and must be unique.
type Section struct {
	Name    string
	Task    string
	Handler Handler
}

// SectionSet holds the joined results of a sectioning batch. Iteration
// order is registration order, never completion order.
type SectionSet struct {
	order   []string
	results map[string]string
}

// Names returns the section names in registration order.
func (s *SectionSet) Names() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Get returns the result for a section name.
func (s *SectionSet) Get(name string) (string, bool) {
	result, ok := s.results[name]
	return result, ok
}

// Len returns the number of sections.
func (s *SectionSet) Len() int {
	return len(s.order)
}

// Format renders the results as markdown sections in registration order,
// suitable as input to a combine step.
func (s *SectionSet) Format() string {
	var sb strings.Builder
	for _, name := range s.order {
		fmt.Fprintf(&sb, "## %s\n%s\n\n", name, s.results[name])
	}
	return strings.TrimSpace(sb.String())
}

// CombineFunc synthesizes one result from a joined sectioning batch.
type CombineFunc func(ctx context.Context, sections *SectionSet) (string, error)

// RunSections dispatches all sections concurrently and joins them. The
// batch completes fully or fails as a unit: if any section fails, the
// error is returned after every section has reached a terminal state, and
// no partial results are surfaced. Sections that must survive sibling
// failures wrap their own handler with error-to-result conversion.
func (e *Executor) RunSections(ctx context.Context, sections []Section) (*SectionSet, error) {
	if len(sections) == 0 {
		return nil, &stepwise.ConfigurationError{
			CoreError: stepwise.CoreError{Message: "no sections to run"},
		}
	}
	seen := make(map[string]bool, len(sections))
	for _, sec := range sections {
		if sec.Name == "" {
			return nil, &stepwise.ConfigurationError{
				CoreError: stepwise.CoreError{Message: "section with empty name"},
			}
		}
		if seen[sec.Name] {
			return nil, &stepwise.ConfigurationError{
				CoreError: stepwise.CoreError{Message: fmt.Sprintf("duplicate section name %q", sec.Name)},
			}
		}
		if sec.Handler == nil {
			return nil, &stepwise.ConfigurationError{
				CoreError: stepwise.CoreError{Message: fmt.Sprintf("section %q has no handler", sec.Name)},
			}
		}
		seen[sec.Name] = true
	}

	// One write-once slot per section, indexed by dispatch position.
	results := make([]string, len(sections))
	var g errgroup.Group
	for i, sec := range sections {
		i, sec := i, sec
		g.Go(func() error {
			out, err := e.invoke(ctx, sec.Handler, sec.Task)
			if err != nil {
				return fmt.Errorf("section %q: %w", sec.Name, err)
			}
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	set := &SectionSet{
		order:   make([]string, len(sections)),
		results: make(map[string]string, len(sections)),
	}
	for i, sec := range sections {
		set.order[i] = sec.Name
		set.results[sec.Name] = results[i]
	}
	return set, nil
}

// RunSectionsCombined joins a sectioning batch and passes the full result
// set, ordered by registration, to the combine step.
func (e *Executor) RunSectionsCombined(ctx context.Context, sections []Section, combine CombineFunc) (string, error) {
	set, err := e.RunSections(ctx, sections)
	if err != nil {
		return "", err
	}
	return combine(ctx, set)
}
