package fanout

import (
	"context"
	"fmt"

	"github.com/martinemde/stepwise/agent"
)

// RegisterSectioningTool exposes a sectioning executor as an agent tool,
// letting a sequential loop fan work out mid-run (orchestrator-workers
// inside an agent loop). Every section runs through the given handler.
// Workers never touch the loop's history: the joined result map is
// returned to the loop, which records it after the barrier join.
func RegisterSectioningTool(reg *agent.ToolRegistry, exec *Executor, h Handler) {
	reg.Register(agent.RegisteredTool{
		Definition: agent.ToolDefinition{
			Name:        "fan_out",
			Description: "Run several independent subtasks concurrently and collect their results.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"sections": map[string]interface{}{
						"type":        "array",
						"description": "Subtasks to run concurrently.",
						"items": map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"name": map[string]interface{}{
									"type":        "string",
									"description": "Unique name for the subtask.",
								},
								"task": map[string]interface{}{
									"type":        "string",
									"description": "What the subtask should do.",
								},
							},
							"required": []string{"name", "task"},
						},
					},
				},
				"required": []string{"sections"},
			},
		},
		Handler: func(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
			sections, err := parseSectionArgs(args, h)
			if err != nil {
				return nil, err
			}
			set, err := exec.RunSections(ctx, sections)
			if err != nil {
				return nil, err
			}
			result := make(map[string]interface{}, set.Len())
			for _, name := range set.Names() {
				out, _ := set.Get(name)
				result[name] = out
			}
			return result, nil
		},
	})
}

func parseSectionArgs(args map[string]interface{}, h Handler) ([]Section, error) {
	raw, ok := args["sections"].([]interface{})
	if !ok || len(raw) == 0 {
		return nil, fmt.Errorf("sections is required")
	}
	sections := make([]Section, 0, len(raw))
	for i, item := range raw {
		fields, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("section %d is not an object", i)
		}
		name, ok := agent.GetStringArg(fields, "name")
		if !ok || name == "" {
			return nil, fmt.Errorf("section %d has no name", i)
		}
		task, ok := agent.GetStringArg(fields, "task")
		if !ok || task == "" {
			return nil, fmt.Errorf("section %d has no task", i)
		}
		sections = append(sections, Section{Name: name, Task: task, Handler: h})
	}
	return sections, nil
}
