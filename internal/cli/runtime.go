package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/harun/switchboard/internal/config"
	"github.com/harun/switchboard/internal/logger"
	"github.com/harun/switchboard/internal/observability"
	"github.com/harun/switchboard/internal/tracing"
	"github.com/harun/switchboard/pkg/agent"
	"github.com/harun/switchboard/pkg/engine"
	"github.com/harun/switchboard/pkg/llm"
	"github.com/harun/switchboard/pkg/orchestrator"
	"github.com/harun/switchboard/pkg/tools"
)

// builtinAgents is used when no agent definitions file is configured
const builtinAgents = `
agents:
  - id: conversational
    name: Conversational
    kind: direct
    capabilities:
      - name: conversation
        domains: [general]
        complexity: simple
        priority: 1
  - id: research
    name: Research
    kind: react
    capabilities:
      - name: research
        domains: [research, science]
        complexity: complex
        priority: 3
    engine:
      max_iterations: 6
      tools: [echo, word_count, clock]
  - id: analyst
    name: Analyst
    kind: planner
    capabilities:
      - name: analysis
        domains: [analysis, technical]
        complexity: complex
        priority: 2
    engine:
      tools: [word_count]
`

// runtime owns everything a command needs to route queries
type runtime struct {
	cfg     *config.Config
	log     *logger.Logger
	logger  zerolog.Logger
	orch    *orchestrator.Orchestrator
	store   orchestrator.StatsStore
	tracing bool
}

type runtimeOptions struct {
	// probes starts background health probes on every handle
	probes bool
	// logOutput receives console logs; stderr when nil
	logOutput io.Writer
}

// loadConfig loads the config file and applies flag overrides
func loadConfig(opts *rootOptions) (*config.Config, error) {
	cfg, err := config.Load(opts.cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	if opts.agentsFile != "" {
		cfg.AgentsFile = opts.agentsFile
	}

	if errs := config.NewValidator().ValidateConfig(cfg); len(errs) > 0 {
		return nil, fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return cfg, nil
}

// newRuntime wires logger, tracing, provider, tools, engines, stats store and
// orchestrator, then registers the configured agents
func newRuntime(ctx context.Context, opts *rootOptions, ropts runtimeOptions) (*runtime, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		Console:    cfg.Logging.Console,
		Pretty:     cfg.Logging.Pretty,
		Redaction:  cfg.Logging.Redaction,
		MaxSizeMB:  cfg.Logging.MaxSize,
		MaxAgeDays: cfg.Logging.MaxAge,
		Compress:   cfg.Logging.Compress,
		Output:     ropts.logOutput,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	rt := &runtime{
		cfg:    cfg,
		log:    log,
		logger: log.Component("cli"),
	}

	if err := rt.init(ctx, ropts); err != nil {
		_ = rt.Close(ctx)
		return nil, err
	}
	return rt, nil
}

func (rt *runtime) init(ctx context.Context, ropts runtimeOptions) error {
	cfg := rt.cfg

	observability.EnsureRegistered()
	auditPath := filepath.Join(cfg.DataDir, "audit.log")
	if err := observability.InitAuditLogger(auditPath); err != nil {
		rt.logger.Warn().Err(err).Msg("Failed to initialize audit logger, using default stderr")
	}

	if cfg.Tracing.Enabled {
		if err := tracing.InitOpenTelemetry(cfg.Tracing.ServiceName); err != nil {
			rt.logger.Warn().Err(err).Msg("Failed to initialize tracing, continuing without distributed tracing")
		} else {
			rt.tracing = true
		}
	}

	provider, err := llm.NewProvider(cfg.Provider)
	if err != nil {
		return fmt.Errorf("failed to create provider: %w", err)
	}

	registry := tools.NewRegistry(tools.WithLogger(rt.log.Component("tools")))
	if err := tools.RegisterBuiltins(registry); err != nil {
		return fmt.Errorf("failed to register builtin tools: %w", err)
	}
	factory := engine.NewFactory(provider, registry, rt.log.Component("engine"))

	store, err := openStatsStore(cfg.Stats)
	if err != nil {
		return err
	}
	rt.store = store

	orchOpts := []orchestrator.Option{
		orchestrator.WithLogger(rt.log.Component("orchestrator")),
		orchestrator.WithWeights(cfg.Routing.Weights),
		orchestrator.WithFallbackAgent(cfg.Routing.FallbackAgent),
	}
	if store != nil {
		orchOpts = append(orchOpts, orchestrator.WithStatsStore(store))
	}
	rt.orch = orchestrator.New(orchOpts...)

	defs, err := rt.definitions()
	if err != nil {
		return err
	}

	base := agent.Config{
		Builder:            factory,
		Logger:             rt.log.Component("agent"),
		MaxExecuteAttempts: cfg.Handle.MaxExecuteAttempts,
		MaxChatAttempts:    cfg.Handle.MaxChatAttempts,
		BackoffBase:        cfg.Handle.BackoffBase,
		DisableFallback:    cfg.Handle.DisableFallback,
		BreakerMaxFailures: cfg.Handle.BreakerMaxFailures,
		BreakerTimeout:     cfg.Handle.BreakerTimeout,
	}
	if ropts.probes {
		base.HealthInterval = cfg.Handle.HealthInterval
	}

	if err := rt.orch.RegisterDefinitions(ctx, defs, orchestrator.NewHandleFactory(base)); err != nil {
		return fmt.Errorf("failed to register agents: %w", err)
	}

	if store != nil {
		restored, err := rt.orch.RestoreStats()
		if err != nil {
			rt.logger.Warn().Err(err).Msg("Failed to restore performance stats")
		} else {
			rt.logger.Debug().Int("agents", restored).Msg("Performance stats restored")
		}
	}

	rt.logger.Info().
		Int("agents", len(defs)).
		Str("provider", provider.Name()).
		Msg("Runtime initialized")

	return nil
}

func (rt *runtime) definitions() ([]orchestrator.AgentDefinition, error) {
	loader := orchestrator.NewLoader(rt.log.Component("cli"))
	if rt.cfg.AgentsFile != "" {
		return loader.LoadFile(rt.cfg.AgentsFile)
	}
	defs, err := loader.Parse([]byte(builtinAgents))
	if err != nil {
		return nil, fmt.Errorf("failed to parse builtin agents: %w", err)
	}
	return defs, nil
}

// openStatsStore returns nil for the "none" store
func openStatsStore(cfg config.StatsConfig) (orchestrator.StatsStore, error) {
	switch cfg.Store {
	case config.StatsStoreFile:
		store, err := orchestrator.NewFileStore(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open stats file: %w", err)
		}
		return store, nil
	case config.StatsStoreSQLite:
		store, err := orchestrator.NewSQLiteStore(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open stats database: %w", err)
		}
		return store, nil
	default:
		return nil, nil
	}
}

// Close persists stats, stops every handle and releases the sinks
func (rt *runtime) Close(ctx context.Context) error {
	var errs []error

	if rt.orch != nil {
		if err := rt.orch.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if rt.store != nil {
		if err := rt.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close stats store: %w", err))
		}
	}
	if rt.tracing {
		if err := tracing.ShutdownOpenTelemetry(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown tracing: %w", err))
		}
	}
	if err := observability.GetAuditLogger().Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close audit log: %w", err))
	}
	if err := rt.log.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close logger: %w", err))
	}

	return errors.Join(errs...)
}
