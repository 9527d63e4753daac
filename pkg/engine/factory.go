package engine

import (
	"github.com/rs/zerolog"

	"github.com/harun/switchboard/pkg/llm"
	"github.com/harun/switchboard/pkg/strategy"
	"github.com/harun/switchboard/pkg/tools"
)

// Factory builds engines by kind over a shared provider and tool registry
type Factory struct {
	provider llm.Provider
	registry *tools.Registry
	logger   zerolog.Logger
	adapters map[strategy.Kind]strategy.MemoryAdapter
}

var _ strategy.Builder = (*Factory)(nil)

// NewFactory creates a factory
func NewFactory(provider llm.Provider, registry *tools.Registry, logger zerolog.Logger) *Factory {
	return &Factory{
		provider: provider,
		registry: registry,
		logger:   logger,
		adapters: map[strategy.Kind]strategy.MemoryAdapter{
			strategy.KindPlanner: plannerMemoryAdapter,
		},
	}
}

// Build returns an uninitialized engine of the given kind
func (f *Factory) Build(kind strategy.Kind, cfg strategy.Config) (strategy.Strategy, error) {
	switch kind {
	case strategy.KindDirect:
		return NewDirect(cfg, f.provider, f.registry, f.logger), nil
	case strategy.KindReAct:
		return NewReAct(cfg, f.provider, f.registry, f.logger), nil
	case strategy.KindPlanner:
		return NewPlanner(cfg, f.provider, f.registry, f.logger), nil
	default:
		return nil, &strategy.ConfigurationError{Kind: kind}
	}
}

// MemoryAdapter returns the per-kind adapter for engines without a MemoryLoader
func (f *Factory) MemoryAdapter(kind strategy.Kind) (strategy.MemoryAdapter, bool) {
	a, ok := f.adapters[kind]
	return a, ok
}
