// Package stepwise provides a bounded iterative orchestration core for
// LLM-driven workflows: a sequential agent loop with enforced stopping
// conditions, a generate-evaluate refinement loop, and a concurrent
// fan-out/aggregate executor.
//
// The root package holds the error taxonomy shared by the subpackages:
//
//   - agent: the sequential agent loop, tool registry and invoker,
//     stopping policy, and append-only run history.
//   - refine: the generate-evaluate refinement loop with weighted,
//     thresholded criteria.
//   - fanout: concurrent sectioning, voting, guardrail racing, and the
//     orchestrator-workers pattern.
//   - jsonfence: extraction of fenced JSON payloads from generation output.
//   - llm: a thin gollm-backed client used by the LLM-facing ports.
//
// Errors split into two classes. Tool execution failures are non-fatal:
// they are converted to structured results, recorded in history, and
// counted against the loop's error budget. Everything else (undecodable
// decisions, unparseable evaluator payloads, configuration mistakes,
// port-level timeouts) is fatal and aborts the run. IsFatal reports the
// class of an error.
package stepwise
