package agent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultAllowedCommands is a read-only verb set suitable for inspection
// tasks.
var DefaultAllowedCommands = []string{"ls", "cat", "grep", "find", "wc", "head", "tail"}

// CommandHandler returns a ToolHandler that runs shell commands restricted
// to an allowlist of verbs. Allowlist violations and command failures are
// reported as structured {"error": ...} results with a nil error, so they
// do not consume the loop's tool error budget. The handler honors ctx and
// its own timeout, whichever is shorter.
func CommandHandler(allowed []string, timeout time.Duration) ToolHandler {
	allowSet := make(map[string]bool, len(allowed))
	for _, verb := range allowed {
		allowSet[verb] = true
	}

	return func(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
		command, ok := GetStringArg(args, "command")
		if !ok || strings.TrimSpace(command) == "" {
			return errorResult("Empty command"), nil
		}

		verb := strings.Fields(command)[0]
		if !allowSet[verb] {
			return errorResult(fmt.Sprintf(
				"Command %q not allowed. Allowed: %s", verb, strings.Join(allowed, ", "))), nil
		}

		runCtx := ctx
		if timeout > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		cmd := exec.CommandContext(runCtx, "sh", "-c", command)
		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		err := cmd.Run()
		exitCode := 0
		if err != nil {
			var exitErr *exec.ExitError
			switch {
			case errors.Is(runCtx.Err(), context.DeadlineExceeded):
				return errorResult("Command timed out"), nil
			case errors.As(err, &exitErr):
				exitCode = exitErr.ExitCode()
			default:
				return errorResult(err.Error()), nil
			}
		}

		return map[string]interface{}{
			"stdout":    stdout.String(),
			"stderr":    stderr.String(),
			"exit_code": exitCode,
		}, nil
	}
}

// CommandToolDefinition returns the tool definition advertised for the
// command handler.
func CommandToolDefinition(allowed []string) ToolDefinition {
	return ToolDefinition{
		Name: "run_command",
		Description: fmt.Sprintf("Run a shell command. Only these commands are allowed: %s",
			strings.Join(allowed, ", ")),
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"command": map[string]interface{}{
					"type":        "string",
					"description": "The shell command to run.",
				},
			},
			"required": []string{"command"},
		},
	}
}

// RegisterCommandTool registers the allowlisted command handler on reg.
func RegisterCommandTool(reg *ToolRegistry, allowed []string, timeout time.Duration) {
	reg.Register(RegisteredTool{
		Definition: CommandToolDefinition(allowed),
		Handler:    CommandHandler(allowed, timeout),
	})
}
