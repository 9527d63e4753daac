// Package engine implements the execution strategies an agent handle can run.
//
// Each kind keeps memory in its own native shape so that swapping engines
// requires a real conversion:
//   - direct: []strategy.Message
//   - react: structured records (map[string]interface{})
//   - planner: "role: content" scratchpad lines
//
// Invariants:
// - Engines are unusable before Initialize and after Cleanup.
// - Tool failures are absorbed into the result; LLM errors are returned.
// - Steps of one execution are delivered in order through the ledger.
//
// Usage:
//
//	f := engine.NewFactory(provider, registry, logger)
//	s, err := f.Build(strategy.KindReAct, strategy.DefaultConfig())
//	if err != nil { ... }
//	_ = s.Initialize(ctx)
//	res, err := s.Execute(ctx, strategy.ExecutionContext{Query: "..."})
package engine
