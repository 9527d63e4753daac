package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel/attribute"

	"github.com/harun/switchboard/internal/observability"
	"github.com/harun/switchboard/internal/tracing"
	"github.com/harun/switchboard/pkg/strategy"
)

const (
	defaultExecuteAttempts = 3
	defaultChatAttempts    = 2
	defaultBackoffBase     = time.Second
)

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// Config holds handle configuration; zero values select defaults
type Config struct {
	AgentID string
	Kind    strategy.Kind
	Engine  strategy.Config
	Builder strategy.Builder
	Logger  zerolog.Logger

	MaxExecuteAttempts int
	MaxChatAttempts    int
	BackoffBase        time.Duration
	DisableFallback    bool

	// HealthInterval is the probe period; zero disables background probes
	HealthInterval time.Duration

	BreakerMaxFailures uint32
	BreakerTimeout     time.Duration

	Sleep SleepFunc
}

func (c *Config) applyDefaults() {
	if c.MaxExecuteAttempts <= 0 {
		c.MaxExecuteAttempts = defaultExecuteAttempts
	}
	if c.MaxChatAttempts <= 0 {
		c.MaxChatAttempts = defaultChatAttempts
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = defaultBackoffBase
	}
	if c.BreakerMaxFailures == 0 {
		c.BreakerMaxFailures = defaultBreakerMaxFailures
	}
	if c.BreakerTimeout <= 0 {
		c.BreakerTimeout = defaultBreakerTimeout
	}
	if c.Sleep == nil {
		c.Sleep = sleepContext
	}
}

// TransferReport summarises a strategy swap
type TransferReport struct {
	From     strategy.Kind `json:"from"`
	To       strategy.Kind `json:"to"`
	Total    int           `json:"total"`
	Loaded   int           `json:"loaded"`
	Failed   int           `json:"failed"`
	Skipped  bool          `json:"skipped,omitempty"`
	Duration time.Duration `json:"duration"`
}

// HealthState merges the handle's own state with its strategy's report
type HealthState struct {
	AgentID         string                `json:"agent_id"`
	IsHealthy       bool                  `json:"is_healthy"`
	LastHealthCheck time.Time             `json:"last_health_check"`
	ActiveKind      strategy.Kind         `json:"active_kind"`
	Breaker         string                `json:"breaker"`
	LastError       string                `json:"last_error,omitempty"`
	Strategy        strategy.HealthReport `json:"strategy"`
}

// Handle owns the active strategy of one logical agent
type Handle struct {
	cfg    Config
	logger zerolog.Logger

	mu        sync.RWMutex
	active    strategy.Strategy
	engineCfg strategy.Config
	breaker   *gobreaker.CircuitBreaker[any]
	healthy   bool
	lastCheck time.Time
	lastErr   string
	closed    bool

	// serializes swaps, fallbacks and config updates
	swapMu sync.Mutex

	probeCtx    context.Context
	probeCancel context.CancelFunc
	wg          sync.WaitGroup
	startOnce   sync.Once
	closeOnce   sync.Once
}

// New builds and initializes the handle's first strategy
func New(ctx context.Context, cfg Config) (*Handle, error) {
	if cfg.AgentID == "" {
		return nil, fmt.Errorf("agent id is required")
	}
	if cfg.Builder == nil {
		return nil, fmt.Errorf("strategy builder is required")
	}
	cfg.applyDefaults()
	observability.EnsureRegistered()

	h := &Handle{
		cfg:       cfg,
		logger:    cfg.Logger.With().Str("agent_id", cfg.AgentID).Logger(),
		engineCfg: cfg.Engine,
	}
	h.probeCtx, h.probeCancel = context.WithCancel(context.Background())

	s, err := h.buildAndInit(ctx, cfg.Kind)
	if err != nil {
		return nil, err
	}
	h.install(s)
	return h, nil
}

// ID returns the agent id
func (h *Handle) ID() string {
	return h.cfg.AgentID
}

// ActiveKind returns the kind of the active strategy
func (h *Handle) ActiveKind() strategy.Kind {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.active.Kind()
}

// IsHealthy reports the handle's last known state
func (h *Handle) IsHealthy() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.healthy
}

// Memory returns a snapshot of the active strategy's memory
func (h *Handle) Memory() []any {
	s, _ := h.current()
	return s.Memory()
}

// AvailableTools lists the active strategy's tools
func (h *Handle) AvailableTools() []string {
	s, _ := h.current()
	return s.AvailableTools()
}

func (h *Handle) current() (strategy.Strategy, *gobreaker.CircuitBreaker[any]) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.active, h.breaker
}

func (h *Handle) isClosed() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.closed
}

// Execute runs the query on the active strategy, retrying with linear backoff
// and falling back to alternative kinds between attempts.
func (h *Handle) Execute(ctx context.Context, ec strategy.ExecutionContext) (*strategy.ExecutionResult, error) {
	ctx = tracing.PropagateToAgent(ctx, h.cfg.AgentID)
	ctx, span := tracing.Start(ctx, "handle.execute", attribute.String("agent.id", h.cfg.AgentID))

	res, err := withRetry(ctx, h, "execute", h.cfg.MaxExecuteAttempts, func(s strategy.Strategy) (*strategy.ExecutionResult, error) {
		return s.Execute(ctx, ec)
	})
	tracing.End(span, err)
	return res, err
}

// Chat sends a conversational message with the chat retry budget
func (h *Handle) Chat(ctx context.Context, message string, onStep strategy.StepFunc) (string, error) {
	ctx = tracing.PropagateToAgent(ctx, h.cfg.AgentID)
	ctx, span := tracing.Start(ctx, "handle.chat", attribute.String("agent.id", h.cfg.AgentID))

	reply, err := withRetry(ctx, h, "chat", h.cfg.MaxChatAttempts, func(s strategy.Strategy) (string, error) {
		return s.Chat(ctx, message, onStep)
	})
	tracing.End(span, err)
	return reply, err
}

func withRetry[T any](ctx context.Context, h *Handle, op string, attempts int, call func(strategy.Strategy) (T, error)) (T, error) {
	var zero T
	if h.isClosed() {
		return zero, ErrClosed
	}
	logger := tracing.LoggerFromContext(ctx, h.logger)

	var (
		lastErr error
		attempt int
	)
	for attempt = 1; attempt <= attempts; attempt++ {
		s, cb := h.current()
		out, err := runGuarded(cb, func() (T, error) { return call(s) })
		if err == nil {
			h.markHealthy()
			return out, nil
		}

		lastErr = err
		h.markDegraded(err)
		logger.Warn().
			Err(err).
			Str("op", op).
			Int("attempt", attempt).
			Int("max_attempts", attempts).
			Str("strategy", string(s.Kind())).
			Msg("Strategy call failed")

		if ctx.Err() != nil || attempt == attempts {
			break
		}
		observability.RecordHandleRetry(h.cfg.AgentID)

		if !h.cfg.DisableFallback {
			if kind, ferr := h.fallback(ctx, s); ferr == nil {
				logger.Info().Str("strategy", string(kind)).Msg("Fell back to alternative strategy")
			}
		}

		delay := time.Duration(attempt) * h.cfg.BackoffBase
		if err := h.cfg.Sleep(ctx, delay); err != nil {
			break
		}
	}
	if attempt > attempts {
		attempt = attempts
	}

	return zero, &ExecutionError{AgentID: h.cfg.AgentID, Op: op, Attempts: attempt, Err: lastErr}
}

// AttemptFallback walks the fallback order of the active kind and installs the
// first alternative that initializes and reports healthy.
func (h *Handle) AttemptFallback(ctx context.Context) (strategy.Kind, error) {
	return h.fallback(ctx, nil)
}

// fallback replaces failed with the first healthy alternative. When failed is
// no longer active another caller already replaced it and nothing is swapped.
func (h *Handle) fallback(ctx context.Context, failed strategy.Strategy) (strategy.Kind, error) {
	h.swapMu.Lock()
	defer h.swapMu.Unlock()

	if h.isClosed() {
		return "", ErrClosed
	}

	current, _ := h.current()
	from := current.Kind()
	logger := tracing.LoggerFromContext(ctx, h.logger)

	if failed != nil && failed != current {
		logger.Debug().
			Str("failed", string(failed.Kind())).
			Str("strategy", string(from)).
			Msg("Failed strategy already replaced")
		return from, nil
	}

	for _, kind := range strategy.FallbackOrder(from) {
		next, err := h.buildAndInit(ctx, kind)
		if err != nil {
			logger.Debug().Err(err).Str("strategy", string(kind)).Msg("Fallback candidate failed to start")
			continue
		}
		if report := next.Health(ctx); !report.Healthy() {
			logger.Debug().Str("strategy", string(kind)).Str("status", string(report.Status)).Msg("Fallback candidate unhealthy")
			_ = next.Cleanup(ctx)
			continue
		}

		loaded, failed := h.migrate(ctx, next, current.Memory())
		old := h.install(next)
		h.dispose(ctx, old)

		observability.RecordStrategySwap(h.cfg.AgentID, "fallback", true)
		observability.RecordMemoryTransfer(loaded, failed)
		observability.RecordSwapAudit(ctx, h.cfg.AgentID, string(from), string(kind), "fallback", "success",
			map[string]interface{}{"loaded": loaded, "failed": failed})
		logger.Info().
			Str("from", string(from)).
			Str("to", string(kind)).
			Int("memory_loaded", loaded).
			Int("memory_failed", failed).
			Msg("Strategy fallback complete")
		return kind, nil
	}

	observability.RecordStrategySwap(h.cfg.AgentID, "fallback", false)
	return "", fmt.Errorf("%w for %s", ErrNoFallback, from)
}

// SwitchStrategy replaces the active strategy with a new one of the given kind.
// On any build or initialize error the current strategy stays active.
func (h *Handle) SwitchStrategy(ctx context.Context, kind strategy.Kind, preserveMemory bool) (*TransferReport, error) {
	ctx, span := tracing.Start(ctx, "handle.switch_strategy",
		attribute.String("agent.id", h.cfg.AgentID),
		attribute.String("strategy.target", string(kind)),
	)
	report, err := h.switchStrategy(ctx, kind, preserveMemory)
	tracing.End(span, err)
	return report, err
}

func (h *Handle) switchStrategy(ctx context.Context, kind strategy.Kind, preserveMemory bool) (*TransferReport, error) {
	h.swapMu.Lock()
	defer h.swapMu.Unlock()

	if h.isClosed() {
		return nil, &SwapError{AgentID: h.cfg.AgentID, Target: kind, Err: ErrClosed}
	}

	start := time.Now()
	current, _ := h.current()
	report := &TransferReport{From: current.Kind(), To: kind}
	if current.Kind() == kind {
		report.Skipped = true
		return report, nil
	}

	next, err := h.buildAndInit(ctx, kind)
	if err != nil {
		observability.RecordStrategySwap(h.cfg.AgentID, "switch", false)
		observability.RecordSwapAudit(ctx, h.cfg.AgentID, string(report.From), string(kind), "switch", "failure",
			map[string]interface{}{"error": err.Error()})
		h.logger.Error().Err(err).Str("to", string(kind)).Msg("Strategy swap failed; keeping current strategy")
		return nil, &SwapError{AgentID: h.cfg.AgentID, Target: kind, Err: err}
	}

	// Calls still running on the old strategy can finish between the
	// snapshot and install; their turns are not carried over.
	if preserveMemory {
		snapshot := current.Memory()
		report.Total = len(snapshot)
		report.Loaded, report.Failed = h.migrate(ctx, next, snapshot)
	}

	old := h.install(next)
	h.dispose(ctx, old)
	report.Duration = time.Since(start)

	observability.RecordStrategySwap(h.cfg.AgentID, "switch", true)
	observability.RecordMemoryTransfer(report.Loaded, report.Failed)
	observability.RecordSwapAudit(ctx, h.cfg.AgentID, string(report.From), string(kind), "switch", "success",
		map[string]interface{}{"loaded": report.Loaded, "failed": report.Failed})
	h.logger.Info().
		Str("from", string(report.From)).
		Str("to", string(kind)).
		Int("memory_total", report.Total).
		Int("memory_loaded", report.Loaded).
		Int("memory_failed", report.Failed).
		Dur("duration", report.Duration).
		Msg("Strategy swapped")
	return report, nil
}

// UpdateConfig patches the active strategy and the config used for future swaps
func (h *Handle) UpdateConfig(patch strategy.ConfigPatch) error {
	h.swapMu.Lock()
	defer h.swapMu.Unlock()

	s, _ := h.current()
	if err := s.UpdateConfig(patch); err != nil {
		return err
	}

	h.mu.Lock()
	h.engineCfg = h.engineCfg.Apply(patch)
	h.mu.Unlock()
	return nil
}

// Health probes the active strategy and merges its report with handle state
func (h *Handle) Health(ctx context.Context) HealthState {
	s, cb := h.current()
	report := s.Health(ctx)

	h.mu.RLock()
	defer h.mu.RUnlock()

	return HealthState{
		AgentID:         h.cfg.AgentID,
		IsHealthy:       h.healthy && report.Healthy(),
		LastHealthCheck: h.lastCheck,
		ActiveKind:      s.Kind(),
		Breaker:         cb.State().String(),
		LastError:       h.lastErr,
		Strategy:        report,
	}
}

func (h *Handle) buildAndInit(ctx context.Context, kind strategy.Kind) (strategy.Strategy, error) {
	h.mu.RLock()
	cfg := h.engineCfg
	h.mu.RUnlock()

	s, err := h.cfg.Builder.Build(kind, cfg)
	if err != nil {
		return nil, err
	}
	if err := s.Initialize(ctx); err != nil {
		_ = s.Cleanup(tracing.Detach(ctx))
		return nil, fmt.Errorf("failed to initialize %s strategy: %w", kind, err)
	}
	return s, nil
}

// install makes next active and returns the strategy it replaced
func (h *Handle) install(next strategy.Strategy) strategy.Strategy {
	name := fmt.Sprintf("agent:%s:%s", h.cfg.AgentID, next.Kind())
	cb := newBreaker(name, h.cfg.BreakerMaxFailures, h.cfg.BreakerTimeout, h.logger)

	h.mu.Lock()
	old := h.active
	h.active = next
	h.breaker = cb
	h.healthy = true
	h.lastCheck = time.Now()
	h.lastErr = ""
	h.mu.Unlock()

	observability.SetAgentHealth(h.cfg.AgentID, true)
	return old
}

func (h *Handle) dispose(ctx context.Context, old strategy.Strategy) {
	if old == nil {
		return
	}
	if err := old.Cleanup(tracing.Detach(ctx)); err != nil {
		h.logger.Warn().Err(err).Str("strategy", string(old.Kind())).Msg("Failed to clean up replaced strategy")
	}
}

// migrate converts items to standardized form and replays them into next
func (h *Handle) migrate(ctx context.Context, next strategy.Strategy, items []any) (int, int) {
	if len(items) == 0 {
		return 0, 0
	}
	std, failed := strategy.StandardizeAll(items)

	if loader, ok := next.(strategy.MemoryLoader); ok {
		loaded, lf := loader.LoadStandardizedMemory(ctx, std)
		failed += lf
		if failed > 0 {
			h.logger.Warn().Int("failed", failed).Msg("Some memory items were not transferred")
		}
		return loaded, failed
	}

	adapter, ok := h.cfg.Builder.MemoryAdapter(next.Kind())
	if !ok {
		h.logger.Warn().Str("strategy", string(next.Kind())).Msg("No memory adapter; memory dropped")
		return 0, failed + len(std)
	}

	loaded := 0
	for _, item := range std {
		if err := adapter(ctx, next, item); err != nil {
			failed++
			h.logger.Debug().Err(err).Str("type", string(item.Type)).Msg("Memory item not transferred")
			continue
		}
		loaded++
	}
	if failed > 0 {
		h.logger.Warn().Int("failed", failed).Msg("Some memory items were not transferred")
	}
	return loaded, failed
}

func (h *Handle) markHealthy() {
	h.mu.Lock()
	wasHealthy := h.healthy
	h.healthy = true
	h.lastErr = ""
	h.mu.Unlock()

	if !wasHealthy {
		observability.SetAgentHealth(h.cfg.AgentID, true)
	}
}

func (h *Handle) markDegraded(err error) {
	h.mu.Lock()
	h.healthy = false
	if err != nil {
		h.lastErr = err.Error()
	}
	h.mu.Unlock()

	observability.SetAgentHealth(h.cfg.AgentID, false)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
