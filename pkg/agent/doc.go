// Package agent wraps one execution strategy per logical agent and keeps it
// serving: bounded retries with linear backoff, fallback to alternative
// strategy kinds, memory-preserving hot swaps and periodic health probes.
//
// Invariants:
// - A handle always has exactly one active strategy.
// - A failed swap leaves the previous strategy active and untouched.
// - The replaced strategy is cleaned up only after the new one is installed.
// - Swaps are serialized; executions never hold the swap lock.
//
// Usage:
//
//	h, err := agent.New(ctx, agent.Config{
//		AgentID: "research",
//		Kind:    strategy.KindReAct,
//		Engine:  strategy.DefaultConfig(),
//		Builder: engine.NewFactory(provider, registry, logger),
//	})
//	if err != nil { ... }
//	h.Start()
//	defer h.Close(ctx)
//	res, err := h.Execute(ctx, strategy.ExecutionContext{Query: "..."})
package agent
