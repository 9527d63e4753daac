package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/harun/switchboard/pkg/llm"
	"github.com/harun/switchboard/pkg/strategy"
	"github.com/harun/switchboard/pkg/tools"
)

var (
	// ErrNotInitialized is returned when an engine is used before Initialize
	ErrNotInitialized = errors.New("engine not initialized")
	// ErrClosed is returned when an engine is used after Cleanup
	ErrClosed = errors.New("engine closed")
)

// base carries what every engine shares: config, provider, tools and lifecycle
type base struct {
	kind     strategy.Kind
	provider llm.Provider
	registry *tools.Registry
	logger   zerolog.Logger

	mu          sync.RWMutex
	cfg         strategy.Config
	initialized bool
	closed      bool
}

func newBase(kind strategy.Kind, cfg strategy.Config, provider llm.Provider, registry *tools.Registry, logger zerolog.Logger) base {
	if registry == nil {
		registry = tools.NewRegistry()
	}
	return base{
		kind:     kind,
		cfg:      cfg,
		provider: provider,
		registry: registry,
		logger:   logger.With().Str("strategy", string(kind)).Logger(),
	}
}

func (b *base) Kind() strategy.Kind {
	return b.kind
}

func (b *base) config() strategy.Config {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.cfg
}

// Initialize checks the configuration and that every configured tool exists
func (b *base) Initialize(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	if b.provider == nil {
		return fmt.Errorf("%s engine requires an llm provider", b.kind)
	}
	if err := b.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid %s engine config: %w", b.kind, err)
	}
	for _, name := range b.cfg.Tools {
		if _, ok := b.registry.Get(name); !ok {
			return fmt.Errorf("configured tool not registered: %s", name)
		}
	}

	b.initialized = true
	b.logger.Debug().Str("model", b.cfg.Model).Msg("Engine initialized")
	return nil
}

// Cleanup marks the engine closed
func (b *base) Cleanup(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	b.initialized = false
	return nil
}

func (b *base) ready() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrClosed
	}
	if !b.initialized {
		return ErrNotInitialized
	}
	return nil
}

// UpdateConfig applies patch after validating the merged result
func (b *base) UpdateConfig(patch strategy.ConfigPatch) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	next := b.cfg.Apply(patch)
	if err := next.Validate(); err != nil {
		return fmt.Errorf("invalid config update: %w", err)
	}
	for _, name := range next.Tools {
		if _, ok := b.registry.Get(name); !ok {
			return fmt.Errorf("configured tool not registered: %s", name)
		}
	}
	b.cfg = next
	return nil
}

// AvailableTools returns the configured tools, or every registered tool when
// none are configured and the engine can call tools at all.
func (b *base) AvailableTools() []string {
	cfg := b.config()
	if len(cfg.Tools) > 0 {
		return append([]string(nil), cfg.Tools...)
	}
	if b.kind == strategy.KindDirect {
		return nil
	}
	return b.registry.List()
}

func (b *base) toolAllowed(name string) bool {
	for _, t := range b.AvailableTools() {
		if t == name {
			return true
		}
	}
	return false
}

func (b *base) ToolCapabilities(name string) (strategy.ToolCapability, bool) {
	if !b.toolAllowed(name) {
		return strategy.ToolCapability{}, false
	}
	def, ok := b.registry.Get(name)
	if !ok {
		return strategy.ToolCapability{}, false
	}
	params := make([]string, 0, len(def.Parameters))
	for _, p := range def.Parameters {
		params = append(params, p.Name)
	}
	return strategy.ToolCapability{
		Name:         def.Name,
		Description:  def.Description,
		Capabilities: b.registry.Capabilities(name),
		Parameters:   params,
	}, true
}

// toolSpecs describes the available tools to the provider
func (b *base) toolSpecs() []llm.ToolSpec {
	names := b.AvailableTools()
	specs := make([]llm.ToolSpec, 0, len(names))
	for _, name := range names {
		def, ok := b.registry.Get(name)
		if !ok {
			continue
		}
		schema, _ := b.registry.Schema(name)
		specs = append(specs, llm.ToolSpec{Name: def.Name, Description: def.Description, Schema: schema})
	}
	return specs
}

// health builds the shared part of a report; memory stats are filled by the engine
func (b *base) health(ctx context.Context, memory strategy.MemoryStats) strategy.HealthReport {
	b.mu.RLock()
	initialized := b.initialized
	closed := b.closed
	model := b.cfg.Model
	b.mu.RUnlock()

	report := strategy.HealthReport{
		Status: strategy.HealthHealthy,
		Tools:  b.AvailableTools(),
		Memory: memory,
		Agent: strategy.AgentInfo{
			Kind:        b.kind,
			Model:       model,
			Initialized: initialized,
		},
	}
	if b.provider != nil {
		report.Agent.Provider = b.provider.Name()
	}

	switch {
	case closed:
		report.Status = strategy.HealthUnhealthy
		report.Error = ErrClosed.Error()
	case !initialized:
		report.Status = strategy.HealthUnhealthy
		report.Error = ErrNotInitialized.Error()
	default:
		if pinger, ok := b.provider.(llm.Pinger); ok {
			if err := pinger.Ping(ctx); err != nil {
				report.Status = strategy.HealthUnhealthy
				report.Error = fmt.Sprintf("provider unreachable: %v", err)
			}
		}
	}
	return report
}

// call bounds a provider call with the configured timeout
func (b *base) call(ctx context.Context, req llm.Request) (*llm.Response, error) {
	cfg := b.config()
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	req.Model = cfg.Model
	req.Temperature = cfg.Temperature
	req.MaxTokens = cfg.MaxTokens
	if req.SystemPrompt == "" {
		req.SystemPrompt = cfg.SystemPrompt
	}

	resp, err := b.provider.Call(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%s call failed: %w", b.provider.Name(), err)
	}
	return resp, nil
}

func (b *base) resultMetadata(resp *llm.Response) map[string]interface{} {
	cfg := b.config()
	meta := map[string]interface{}{
		"strategy": string(b.kind),
		"model":    cfg.Model,
		"provider": b.provider.Name(),
	}
	if resp != nil && resp.Usage != nil {
		meta["input_tokens"] = resp.Usage.InputTokens
		meta["output_tokens"] = resp.Usage.OutputTokens
	}
	return meta
}

func taskType(ec strategy.ExecutionContext, kind strategy.Kind) string {
	if ec.TaskType != "" {
		return ec.TaskType
	}
	return string(kind)
}
