package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martinemde/stepwise"
)

func TestInvokeUnknownTool(t *testing.T) {
	inv := NewToolInvoker(NewToolRegistry(), 0)

	result, err := inv.Invoke(context.Background(), "nope", nil)
	require.Error(t, err)

	var toolErr *stepwise.ToolExecutionError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "nope", toolErr.Tool)
	assert.False(t, toolErr.TimedOut)

	require.NotNil(t, result)
	assert.Equal(t, "Unknown tool: nope", result["error"])
}

func TestInvokeHandlerError(t *testing.T) {
	reg := NewToolRegistry()
	reg.Register(RegisteredTool{
		Definition: ToolDefinition{Name: "fail"},
		Handler: func(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
			return nil, errors.New("disk on fire")
		},
	})
	inv := NewToolInvoker(reg, 0)

	result, err := inv.Invoke(context.Background(), "fail", nil)
	require.Error(t, err)
	assert.False(t, stepwise.IsFatal(err))
	assert.Equal(t, "Tool error (fail): disk on fire", result["error"])
}

func TestInvokeHandlerPanic(t *testing.T) {
	reg := NewToolRegistry()
	reg.Register(RegisteredTool{
		Definition: ToolDefinition{Name: "boom"},
		Handler: func(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
			panic("index out of range")
		},
	})
	inv := NewToolInvoker(reg, 0)

	result, err := inv.Invoke(context.Background(), "boom", nil)
	require.Error(t, err)

	var toolErr *stepwise.ToolExecutionError
	require.ErrorAs(t, err, &toolErr)
	assert.Contains(t, result["error"], "handler panicked")
}

func TestInvokeTimeout(t *testing.T) {
	reg := NewToolRegistry()
	reg.Register(RegisteredTool{
		Definition: ToolDefinition{Name: "slow"},
		Handler: func(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
			select {
			case <-time.After(5 * time.Second):
				return map[string]interface{}{"done": true}, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	})
	inv := NewToolInvoker(reg, 20*time.Millisecond)

	result, err := inv.Invoke(context.Background(), "slow", nil)
	require.Error(t, err)

	var toolErr *stepwise.ToolExecutionError
	require.ErrorAs(t, err, &toolErr)
	assert.True(t, toolErr.TimedOut)
	assert.Contains(t, result["error"], "Tool timed out (slow)")
}

func TestInvokeNilResultNormalized(t *testing.T) {
	reg := NewToolRegistry()
	reg.Register(RegisteredTool{
		Definition: ToolDefinition{Name: "quiet"},
		Handler: func(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
			return nil, nil
		},
	})
	inv := NewToolInvoker(reg, 0)

	result, err := inv.Invoke(context.Background(), "quiet", nil)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Empty(t, result)
}

func TestInvokeSuccess(t *testing.T) {
	reg := NewToolRegistry()
	reg.Register(RegisteredTool{
		Definition: ToolDefinition{Name: "add"},
		Handler: func(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
			a, _ := GetIntArg(args, "a")
			b, _ := GetIntArg(args, "b")
			return map[string]interface{}{"sum": a + b}, nil
		},
	})
	inv := NewToolInvoker(reg, time.Second)

	result, err := inv.Invoke(context.Background(), "add", map[string]interface{}{"a": 2, "b": 3})
	require.NoError(t, err)
	assert.Equal(t, 5, result["sum"])
}
