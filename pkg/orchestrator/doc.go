// Package orchestrator routes queries across a registry of agents.
//
// Each query is profiled from its text alone, every active agent is scored
// from its declared capabilities and live performance stats, and the winner
// executes the query through its handle. Outcomes feed back into the stats
// that drive later scoring.
//
// Invariants:
// - Equal scores resolve to registration order.
// - An active query record and its load slot are released on every exit path.
// - The registry lock is never held while an agent executes.
// - SuccessRate is an incremental mean equal to successes / total queries.
//
// Usage:
//
//	o := orchestrator.New(orchestrator.WithLogger(logger))
//	defs, err := orchestrator.NewLoader(logger).LoadFile("agents.yaml")
//	if err != nil { ... }
//	if err := o.RegisterDefinitions(ctx, defs, orchestrator.NewHandleFactory(base)); err != nil { ... }
//	defer o.Close(ctx)
//	res, err := o.RouteQuery(ctx, "compare these two APIs", orchestrator.RouteOptions{})
package orchestrator
