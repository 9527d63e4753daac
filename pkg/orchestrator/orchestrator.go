package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/harun/switchboard/internal/observability"
	"github.com/harun/switchboard/internal/tracing"
	"github.com/harun/switchboard/pkg/strategy"
)

const (
	// DefaultFallbackAgent is the baseline agent retried when routing fails
	DefaultFallbackAgent = "conversational"

	historyLimit  = 1000
	historyRetain = 500
)

// Orchestrator routes queries to registered agents and tracks their performance
type Orchestrator struct {
	mu       sync.RWMutex
	registry *registry
	queries  map[string]*ActiveQuery
	history  []QueryHistoryEntry
	weights  Weights

	profiler      QueryProfiler
	store         StatsStore
	fallbackAgent string
	logger        zerolog.Logger
	now           func() time.Time
}

// Option is a functional option for configuring the Orchestrator
type Option func(*Orchestrator)

// WithLogger sets the logger for the orchestrator
func WithLogger(logger zerolog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithProfiler replaces the keyword profiler
func WithProfiler(p QueryProfiler) Option {
	return func(o *Orchestrator) {
		if p != nil {
			o.profiler = p
		}
	}
}

// WithWeights sets the performance weights used in scoring
func WithWeights(w Weights) Option {
	return func(o *Orchestrator) {
		o.weights = w
	}
}

// WithStatsStore enables RestoreStats and PersistStats
func WithStatsStore(s StatsStore) Option {
	return func(o *Orchestrator) {
		o.store = s
	}
}

// WithFallbackAgent names the agent retried when the selected one fails
func WithFallbackAgent(id string) Option {
	return func(o *Orchestrator) {
		o.fallbackAgent = id
	}
}

// New creates a new Orchestrator instance
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry:      newRegistry(),
		queries:       make(map[string]*ActiveQuery),
		weights:       DefaultWeights(),
		profiler:      KeywordProfiler{},
		fallbackAgent: DefaultFallbackAgent,
		logger:        zerolog.Nop(),
		now:           time.Now,
	}

	for _, opt := range opts {
		opt(o)
	}

	observability.EnsureRegistered()
	return o
}

// RegisterAgent adds an agent with fresh performance stats
func (o *Orchestrator) RegisterAgent(reg Registration) error {
	if reg.ID == "" {
		return fmt.Errorf("agent id is required")
	}
	if reg.Handle == nil {
		return fmt.Errorf("agent %s has no handle", reg.ID)
	}
	for _, c := range reg.Capabilities {
		if _, err := ParseComplexity(string(c.Complexity)); err != nil {
			return fmt.Errorf("agent %s capability %s: %w", reg.ID, c.Name, err)
		}
	}

	name := reg.Name
	if name == "" {
		name = reg.ID
	}
	caps := make([]Capability, len(reg.Capabilities))
	copy(caps, reg.Capabilities)

	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.registry.add(&agentRecord{
		id:           reg.ID,
		name:         name,
		handle:       reg.Handle,
		capabilities: caps,
		stats:        NewPerformanceStats(),
		active:       !reg.Inactive,
	}); err != nil {
		return err
	}
	observability.SetAgentLoad(reg.ID, 0)

	o.logger.Info().
		Str("agent_id", reg.ID).
		Int("capabilities", len(caps)).
		Bool("active", !reg.Inactive).
		Msg("Agent registered")
	return nil
}

// UnregisterAgent removes an agent without closing its handle
func (o *Orchestrator) UnregisterAgent(id string) (AgentHandle, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	rec, err := o.registry.remove(id)
	if err != nil {
		return nil, err
	}
	return rec.handle, nil
}

// RouteQuery selects an agent for query, executes it and records the outcome
func (o *Orchestrator) RouteQuery(ctx context.Context, query string, opts RouteOptions) (*RouteResult, error) {
	queryID := tracing.NewQueryID()
	ctx = tracing.NewQueryContext(ctx, queryID)
	ctx, span := tracing.Start(ctx, "orchestrator.route", attribute.String("query_id", queryID))

	result, err := o.route(ctx, queryID, query, opts)
	tracing.End(span, err)
	return result, err
}

func (o *Orchestrator) route(ctx context.Context, queryID, query string, opts RouteOptions) (*RouteResult, error) {
	profile := o.profiler.Profile(query)
	agentID, err := o.pick(opts.PreferredAgent, profile)
	if err != nil {
		observability.RecordNoSuitableAgent()
		return nil, err
	}

	logger := tracing.LoggerFromContext(ctx, o.logger)
	handle, err := o.track(queryID, agentID, query)
	if err != nil {
		return nil, err
	}
	defer o.release(queryID, agentID)

	res, err := o.run(ctx, handle, agentID, query, opts)
	if err == nil {
		return &RouteResult{
			ExecutionResult: res,
			QueryID:         queryID,
			AgentID:         agentID,
			Profile:         profile,
		}, nil
	}

	logger.Warn().Err(err).Str("agent_id", agentID).Msg("Agent failed to handle query")
	if opts.DisableFallback || agentID == o.fallbackAgent {
		return nil, fmt.Errorf("agent %s failed: %w", agentID, err)
	}

	fallback, ferr := o.reassign(queryID, o.fallbackAgent)
	if ferr != nil {
		logger.Debug().Err(ferr).Msg("Fallback agent unavailable")
		return nil, fmt.Errorf("agent %s failed: %w", agentID, err)
	}
	defer o.release("", o.fallbackAgent)

	observability.RecordRouteFallback(o.fallbackAgent)
	logger.Info().
		Str("from", agentID).
		Str("to", o.fallbackAgent).
		Msg("Retrying query on fallback agent")

	res, fbErr := o.run(ctx, fallback, o.fallbackAgent, query, opts)
	if fbErr != nil {
		return nil, fmt.Errorf("agent %s failed: %w", agentID, errors.Join(err, fbErr))
	}
	return &RouteResult{
		ExecutionResult: res,
		QueryID:         queryID,
		AgentID:         o.fallbackAgent,
		Fallback:        true,
		Profile:         profile,
	}, nil
}

// run executes one query on one agent and records the outcome
func (o *Orchestrator) run(ctx context.Context, handle AgentHandle, agentID, query string, opts RouteOptions) (*strategy.ExecutionResult, error) {
	ctx = tracing.PropagateToAgent(ctx, agentID)
	start := o.now()
	res, err := handle.Execute(ctx, strategy.ExecutionContext{
		Query:     query,
		TaskType:  opts.TaskType,
		Context:   opts.Context,
		Callbacks: opts.Callbacks,
	})
	elapsed := o.now().Sub(start)
	if err == nil && res == nil {
		err = fmt.Errorf("agent %s returned no result", agentID)
	}

	success := err == nil && res.Success
	if rerr := o.RecordQueryResult(agentID, query, success, elapsed); rerr != nil {
		o.logger.Debug().Err(rerr).Str("agent_id", agentID).Msg("Outcome not recorded")
	}
	observability.RecordRoute(agentID, elapsed, success)
	return res, err
}

// pick honors an active preferred agent, else scores the registry
func (o *Orchestrator) pick(preferred string, profile QueryProfile) (string, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if preferred != "" {
		if rec, err := o.registry.get(preferred); err == nil && rec.active {
			return rec.id, nil
		}
		o.logger.Debug().Str("agent_id", preferred).Msg("Preferred agent unavailable, scoring")
	}
	return o.selectLocked(profile)
}

// SelectOptimalAgent returns the highest scoring active agent for query
func (o *Orchestrator) SelectOptimalAgent(query string) (string, QueryProfile, error) {
	profile := o.profiler.Profile(query)

	o.mu.RLock()
	defer o.mu.RUnlock()

	id, err := o.selectLocked(profile)
	return id, profile, err
}

// ScoreAgents scores every active agent for query, in registration order
func (o *Orchestrator) ScoreAgents(query string) []AgentScore {
	profile := o.profiler.Profile(query)

	o.mu.RLock()
	defer o.mu.RUnlock()

	return o.scoreLocked(profile)
}

func (o *Orchestrator) scoreLocked(profile QueryProfile) []AgentScore {
	scores := make([]AgentScore, 0, o.registry.count())
	for _, rec := range o.registry.list() {
		if !rec.active {
			continue
		}
		c := CapabilityScore(profile, rec.capabilities)
		p := PerformanceScore(rec.stats, rec.load, o.weights)
		scores = append(scores, AgentScore{AgentID: rec.id, Capability: c, Performance: p, Total: c + p})
	}
	return scores
}

// selectLocked keeps the first of equally scored agents
func (o *Orchestrator) selectLocked(profile QueryProfile) (string, error) {
	best := ""
	bestScore := 0.0
	for _, s := range o.scoreLocked(profile) {
		if best == "" || s.Total > bestScore {
			best, bestScore = s.AgentID, s.Total
		}
	}
	if best == "" {
		return "", ErrNoSuitableAgent
	}
	return best, nil
}

// track registers the active query and takes a load slot on agentID
func (o *Orchestrator) track(queryID, agentID, query string) (AgentHandle, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	rec, err := o.registry.get(agentID)
	if err != nil {
		return nil, err
	}
	rec.load++
	o.queries[queryID] = &ActiveQuery{
		QueryID:   queryID,
		AgentID:   agentID,
		Query:     query,
		StartTime: o.now(),
	}
	observability.SetAgentLoad(agentID, rec.load)
	observability.SetActiveQueries(len(o.queries))
	return rec.handle, nil
}

// reassign moves an active query to another active agent and takes a load
// slot on it
func (o *Orchestrator) reassign(queryID, agentID string) (AgentHandle, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	rec, err := o.registry.get(agentID)
	if err != nil {
		return nil, err
	}
	if !rec.active {
		return nil, fmt.Errorf("agent %s is inactive", agentID)
	}
	rec.load++
	if q, ok := o.queries[queryID]; ok {
		q.AgentID = agentID
	}
	observability.SetAgentLoad(agentID, rec.load)
	return rec.handle, nil
}

// release gives back a load slot and, for a non-empty queryID, ends the
// active query
func (o *Orchestrator) release(queryID, agentID string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if rec, err := o.registry.get(agentID); err == nil && rec.load > 0 {
		rec.load--
		observability.SetAgentLoad(agentID, rec.load)
	}
	if queryID != "" {
		delete(o.queries, queryID)
		observability.SetActiveQueries(len(o.queries))
	}
}

// RecordQueryResult folds one outcome into the agent's running means and
// appends it to the history.
func (o *Orchestrator) RecordQueryResult(agentID, query string, success bool, responseTime time.Duration) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	rec, err := o.registry.get(agentID)
	if err != nil {
		return err
	}

	outcome := 0.0
	if success {
		outcome = 1.0
	} else {
		rec.stats.ErrorCount++
	}
	ms := float64(responseTime) / float64(time.Millisecond)

	rec.stats.TotalQueries++
	n := float64(rec.stats.TotalQueries)
	rec.stats.SuccessRate = (rec.stats.SuccessRate*(n-1) + outcome) / n
	rec.stats.AverageResponseTimeMs = (rec.stats.AverageResponseTimeMs*(n-1) + ms) / n
	rec.stats.LastUsed = o.now()

	o.history = append(o.history, QueryHistoryEntry{
		Query:        query,
		AgentID:      agentID,
		Success:      success,
		ResponseTime: responseTime,
		Timestamp:    rec.stats.LastUsed,
	})
	if len(o.history) > historyLimit {
		trimmed := make([]QueryHistoryEntry, historyRetain)
		copy(trimmed, o.history[len(o.history)-historyRetain:])
		o.history = trimmed
	}
	return nil
}

// SetWeights replaces the scoring weights of the running orchestrator
func (o *Orchestrator) SetWeights(w Weights) error {
	if err := w.Validate(); err != nil {
		return err
	}

	o.mu.Lock()
	o.weights = w
	o.mu.Unlock()

	o.logger.Info().
		Float64("success", w.Success).
		Float64("latency", w.Latency).
		Float64("load", w.Load).
		Msg("Routing weights updated")
	return nil
}

// Weights returns the current scoring weights
func (o *Orchestrator) Weights() Weights {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.weights
}

// SetAgentActive includes or excludes an agent from routing
func (o *Orchestrator) SetAgentActive(ctx context.Context, id string, active bool) error {
	o.mu.Lock()
	rec, err := o.registry.get(id)
	if err == nil {
		rec.active = active
	}
	o.mu.Unlock()
	if err != nil {
		return err
	}

	observability.RecordAgentStateAudit(ctx, id, active)
	return nil
}

// Handle returns the handle of a registered agent
func (o *Orchestrator) Handle(id string) (AgentHandle, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	rec, err := o.registry.get(id)
	if err != nil {
		return nil, false
	}
	return rec.handle, true
}

// Agents returns a snapshot of every agent in registration order
func (o *Orchestrator) Agents() []AgentInfo {
	o.mu.RLock()
	records := o.registry.list()
	infos := make([]AgentInfo, len(records))
	handles := make([]AgentHandle, len(records))
	for i, rec := range records {
		infos[i] = rec.info()
		handles[i] = rec.handle
	}
	o.mu.RUnlock()

	for i, h := range handles {
		infos[i].Kind = h.ActiveKind()
		infos[i].Healthy = h.IsHealthy()
	}
	return infos
}

// ActiveQueries returns the in-flight queries, oldest first
func (o *Orchestrator) ActiveQueries() []ActiveQuery {
	o.mu.RLock()
	out := make([]ActiveQuery, 0, len(o.queries))
	for _, q := range o.queries {
		out = append(out, *q)
	}
	o.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].QueryID < out[j].QueryID
		}
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out
}

// History returns a copy of the query history, oldest first
func (o *Orchestrator) History() []QueryHistoryEntry {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := make([]QueryHistoryEntry, len(o.history))
	copy(out, o.history)
	return out
}

// PerformanceMetrics aggregates the history buffer
func (o *Orchestrator) PerformanceMetrics() Metrics {
	o.mu.RLock()
	defer o.mu.RUnlock()

	m := Metrics{
		TotalQueries:  len(o.history),
		AgentUsage:    make(map[string]int),
		ActiveQueries: len(o.queries),
		Agents:        make(map[string]PerformanceStats, o.registry.count()),
	}
	var successes int
	var total time.Duration
	for _, e := range o.history {
		if e.Success {
			successes++
		}
		total += e.ResponseTime
		m.AgentUsage[e.AgentID]++
	}
	if n := len(o.history); n > 0 {
		m.SuccessRate = float64(successes) / float64(n)
		m.AverageResponseTimeMs = float64(total) / float64(time.Millisecond) / float64(n)
	}
	for _, rec := range o.registry.list() {
		m.Agents[rec.id] = rec.stats
	}
	return m
}

// Close persists stats when a store is configured and closes every handle
func (o *Orchestrator) Close(ctx context.Context) error {
	var errs []error
	if o.store != nil {
		if err := o.PersistStats(); err != nil {
			errs = append(errs, err)
		}
	}

	o.mu.RLock()
	records := o.registry.list()
	o.mu.RUnlock()

	for _, rec := range records {
		if err := rec.handle.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to close agent %s: %w", rec.id, err))
		}
	}
	return errors.Join(errs...)
}
