package config

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/harun/switchboard/pkg/llm"
	"github.com/harun/switchboard/pkg/orchestrator"
)

// Stats store kinds
const (
	StatsStoreFile   = "file"
	StatsStoreSQLite = "sqlite"
	StatsStoreNone   = "none"
)

// Config represents the main Switchboard configuration
type Config struct {
	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Routing
	Routing RoutingConfig `json:"routing" mapstructure:"routing"`

	// Agent handle resilience
	Handle HandleConfig `json:"handle" mapstructure:"handle"`

	// LLM provider shared by every engine
	Provider llm.ProviderConfig `json:"provider" mapstructure:"provider"`

	// Performance stats persistence
	Stats StatsConfig `json:"stats" mapstructure:"stats"`

	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`
	Tracing TracingConfig `json:"tracing" mapstructure:"tracing"`

	// Agent definitions file; empty uses the built-in agents
	AgentsFile string `json:"agents_file" mapstructure:"agents_file"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Console   bool   `json:"console" mapstructure:"console"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// RoutingConfig holds the orchestrator's scoring settings
type RoutingConfig struct {
	Weights       orchestrator.Weights `json:"weights" mapstructure:"weights"`
	FallbackAgent string               `json:"fallback_agent" mapstructure:"fallback_agent"`
}

// HandleConfig holds retry, probe and breaker settings for every agent handle
type HandleConfig struct {
	MaxExecuteAttempts int           `json:"max_execute_attempts" mapstructure:"max_execute_attempts"`
	MaxChatAttempts    int           `json:"max_chat_attempts" mapstructure:"max_chat_attempts"`
	BackoffBase        time.Duration `json:"backoff_base" mapstructure:"backoff_base"`
	HealthInterval     time.Duration `json:"health_interval" mapstructure:"health_interval"`
	DisableFallback    bool          `json:"disable_fallback" mapstructure:"disable_fallback"`
	BreakerMaxFailures uint32        `json:"breaker_max_failures" mapstructure:"breaker_max_failures"`
	BreakerTimeout     time.Duration `json:"breaker_timeout" mapstructure:"breaker_timeout"`
}

// StatsConfig selects where performance stats are persisted
type StatsConfig struct {
	Store    string `json:"store" mapstructure:"store"` // file, sqlite, none
	Path     string `json:"path" mapstructure:"path"`
	Schedule string `json:"schedule" mapstructure:"schedule"` // cron spec for serve snapshots
}

// MetricsConfig holds the Prometheus endpoint settings
type MetricsConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Addr    string `json:"addr" mapstructure:"addr"`
}

// TracingConfig holds OpenTelemetry settings
type TracingConfig struct {
	Enabled     bool   `json:"enabled" mapstructure:"enabled"`
	ServiceName string `json:"service_name" mapstructure:"service_name"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:     "info",
			Console:   true,
			Pretty:    true,
			MaxSize:   50,
			MaxAge:    7,
			Compress:  true,
			Redaction: true,
		},
		Routing: RoutingConfig{
			Weights:       orchestrator.DefaultWeights(),
			FallbackAgent: orchestrator.DefaultFallbackAgent,
		},
		Handle: HandleConfig{
			MaxExecuteAttempts: 3,
			MaxChatAttempts:    2,
			BackoffBase:        time.Second,
			HealthInterval:     30 * time.Second,
			BreakerMaxFailures: 5,
			BreakerTimeout:     30 * time.Second,
		},
		Provider: llm.ProviderConfig{
			Provider: "scripted",
		},
		Stats: StatsConfig{
			Store:    StatsStoreFile,
			Schedule: "@every 5m",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    ":9090",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "switchboard",
		},
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := c.Routing.Weights.Validate(); err != nil {
		return fmt.Errorf("routing: %w", err)
	}
	if c.Routing.FallbackAgent == "" {
		return fmt.Errorf("routing: fallback_agent is required")
	}

	if c.Handle.MaxExecuteAttempts < 1 {
		return fmt.Errorf("handle: max_execute_attempts must be >= 1, got %d", c.Handle.MaxExecuteAttempts)
	}
	if c.Handle.MaxChatAttempts < 1 {
		return fmt.Errorf("handle: max_chat_attempts must be >= 1, got %d", c.Handle.MaxChatAttempts)
	}
	if c.Handle.BackoffBase <= 0 {
		return fmt.Errorf("handle: backoff_base must be positive")
	}
	if c.Handle.HealthInterval < 0 {
		return fmt.Errorf("handle: health_interval cannot be negative")
	}
	if c.Handle.BreakerTimeout <= 0 {
		return fmt.Errorf("handle: breaker_timeout must be positive")
	}

	switch c.Stats.Store {
	case StatsStoreFile, StatsStoreSQLite, StatsStoreNone:
	default:
		return fmt.Errorf("stats: invalid store %q (must be: file, sqlite, none)", c.Stats.Store)
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics: addr is required when metrics are enabled")
	}

	return nil
}
