// Package strategy defines the contract every execution engine implements so the
// agent layer can treat engines interchangeably.
//
// Invariants:
// - Steps emitted by one Execute call are delivered to OnStep in order, once each.
// - Routine tool failures surface as a result with Success=false, not as an error.
// - Memory crosses engine boundaries only as StandardizedMemoryItem values.
//
// Usage:
//
//	ledger := strategy.NewLedger("research", query, callbacks)
//	ledger.Start()
//	ledger.AddStep(strategy.Step{Name: "analyze", Status: strategy.StepRunning})
//	ledger.Complete()
package strategy
