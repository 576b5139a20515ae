package stepwise

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsFatal(t *testing.T) {
	toolErr := &ToolExecutionError{
		CoreError: CoreError{Message: "handler blew up"},
		Tool:      "shell",
	}

	assert.False(t, IsFatal(nil))
	assert.False(t, IsFatal(toolErr))
	assert.False(t, IsFatal(fmt.Errorf("wrapped: %w", toolErr)))

	assert.True(t, IsFatal(&DecisionError{CoreError: CoreError{Message: "garbage output"}}))
	assert.True(t, IsFatal(&ParsingError{CoreError: CoreError{Message: "bad payload"}}))
	assert.True(t, IsFatal(&ConfigurationError{CoreError: CoreError{Message: "no workers"}}))
	assert.True(t, IsFatal(errors.New("anything else")))
}

func TestErrorMessages(t *testing.T) {
	base := &CoreError{Message: "call failed", Cause: errors.New("boom")}
	assert.Equal(t, "call failed: boom", base.Error())
	assert.Equal(t, "boom", base.Unwrap().Error())

	de := &DecisionError{CoreError: CoreError{Message: "undecodable"}, Step: 4}
	assert.Equal(t, "decision error at step 4: undecodable", de.Error())

	te := &ToolExecutionError{CoreError: CoreError{Message: "timed out"}, Tool: "search", TimedOut: true}
	assert.Equal(t, `tool "search": timed out`, te.Error())
}
