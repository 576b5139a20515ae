// Package agent implements the sequential agent loop: a step-wise state
// machine that repeatedly asks a decision port for the next action,
// executes tool calls through a sandboxed invoker, records everything in
// an append-only history, and checks a stopping policy before every step.
//
// The loop is guaranteed to terminate in at most MaxSteps decision calls
// regardless of decision-port or handler behavior, provided handlers honor
// their per-call timeout.
//
// # Quick Start
//
//	client, _ := llm.New(llm.WithProvider("anthropic"))
//	registry := agent.NewToolRegistry()
//	agent.RegisterCommandTool(registry, agent.DefaultAllowedCommands, 30*time.Second)
//
//	decider := agent.NewLLMDecider(client, registry)
//	loop := agent.NewLoop(decider, registry, nil)
//
//	result, err := loop.Run(ctx, "Summarize the Go files in /tmp/project")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.StopReason, result.Result)
//
// A Loop instance runs exactly once. Register all tools before starting
// the run; the registry is read-only while the loop is running.
package agent
