package agent

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandHandlerAllowlist(t *testing.T) {
	handler := CommandHandler(DefaultAllowedCommands, time.Second)

	result, err := handler(context.Background(), map[string]interface{}{
		"command": "rm -rf /tmp/anything",
	})
	require.NoError(t, err, "allowlist violations do not consume the error budget")
	require.NotNil(t, result)
	msg, _ := result["error"].(string)
	assert.Contains(t, msg, `Command "rm" not allowed`)
	assert.Contains(t, msg, "ls, cat, grep")
}

func TestCommandHandlerEmptyCommand(t *testing.T) {
	handler := CommandHandler(DefaultAllowedCommands, time.Second)

	result, err := handler(context.Background(), map[string]interface{}{"command": "   "})
	require.NoError(t, err)
	assert.Equal(t, "Empty command", result["error"])

	result, err = handler(context.Background(), map[string]interface{}{})
	require.NoError(t, err)
	assert.Equal(t, "Empty command", result["error"])
}

func TestCommandHandlerRunsAllowedCommand(t *testing.T) {
	handler := CommandHandler(DefaultAllowedCommands, 5*time.Second)

	result, err := handler(context.Background(), map[string]interface{}{
		"command": "ls /",
	})
	require.NoError(t, err)
	assert.NotContains(t, result, "error")
	assert.Equal(t, 0, result["exit_code"])
	stdout, _ := result["stdout"].(string)
	assert.NotEmpty(t, strings.TrimSpace(stdout))
}

func TestCommandHandlerNonZeroExit(t *testing.T) {
	handler := CommandHandler(DefaultAllowedCommands, 5*time.Second)

	result, err := handler(context.Background(), map[string]interface{}{
		"command": "cat /definitely/not/a/file",
	})
	require.NoError(t, err)
	code, ok := result["exit_code"].(int)
	require.True(t, ok)
	assert.NotZero(t, code)
	stderr, _ := result["stderr"].(string)
	assert.NotEmpty(t, stderr)
}

func TestCommandToolDefinition(t *testing.T) {
	def := CommandToolDefinition([]string{"ls", "cat"})
	assert.Equal(t, "run_command", def.Name)
	assert.Contains(t, def.Description, "ls, cat")

	reg := NewToolRegistry()
	RegisterCommandTool(reg, DefaultAllowedCommands, time.Second)
	assert.NotNil(t, reg.Get("run_command"))
}
