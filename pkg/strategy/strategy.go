package strategy

import (
	"context"
	"fmt"
	"time"
)

// Kind identifies an execution engine implementation
type Kind string

const (
	KindDirect  Kind = "direct"  // Single LLM call with conversation memory
	KindReAct   Kind = "react"   // Reason/act loop with tool calls
	KindPlanner Kind = "planner" // Plan first, then execute each plan line
)

// Kinds returns every supported engine kind in a stable order
func Kinds() []Kind {
	return []Kind{KindDirect, KindReAct, KindPlanner}
}

// ParseKind converts a string into a supported Kind
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds() {
		if string(k) == s {
			return k, nil
		}
	}
	return "", &ConfigurationError{Kind: Kind(s)}
}

// FallbackOrder returns the alternatives tried, in order, when an engine of the
// given kind degrades.
func FallbackOrder(kind Kind) []Kind {
	switch kind {
	case KindDirect:
		return []Kind{KindReAct, KindPlanner}
	case KindReAct:
		return []Kind{KindDirect, KindPlanner}
	case KindPlanner:
		return []Kind{KindReAct, KindDirect}
	default:
		return nil
	}
}

// ConfigurationError is returned when an unsupported engine kind is requested
type ConfigurationError struct {
	Kind Kind
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("unsupported strategy kind: %q", string(e.Kind))
}

// Config holds engine parameters supplied at construction
type Config struct {
	Model         string        `json:"model" yaml:"model"`
	Temperature   float64       `json:"temperature" yaml:"temperature"`
	MaxTokens     int           `json:"max_tokens" yaml:"max_tokens"`
	SystemPrompt  string        `json:"system_prompt,omitempty" yaml:"system_prompt,omitempty"`
	MaxIterations int           `json:"max_iterations" yaml:"max_iterations"`
	Tools         []string      `json:"tools,omitempty" yaml:"tools,omitempty"`
	Timeout       time.Duration `json:"timeout" yaml:"timeout"`
}

// DefaultConfig returns the engine defaults
func DefaultConfig() Config {
	return Config{
		Model:         "claude-3-5-sonnet-20241022",
		Temperature:   0.7,
		MaxTokens:     4096,
		MaxIterations: 6,
		Timeout:       2 * time.Minute,
	}
}

// ConfigPatch is a partial Config; nil fields are left untouched
type ConfigPatch struct {
	Model         *string
	Temperature   *float64
	MaxTokens     *int
	SystemPrompt  *string
	MaxIterations *int
	Tools         []string
	Timeout       *time.Duration
}

// Apply returns a copy of c with the non-nil fields of p applied
func (c Config) Apply(p ConfigPatch) Config {
	if p.Model != nil {
		c.Model = *p.Model
	}
	if p.Temperature != nil {
		c.Temperature = *p.Temperature
	}
	if p.MaxTokens != nil {
		c.MaxTokens = *p.MaxTokens
	}
	if p.SystemPrompt != nil {
		c.SystemPrompt = *p.SystemPrompt
	}
	if p.MaxIterations != nil {
		c.MaxIterations = *p.MaxIterations
	}
	if p.Tools != nil {
		c.Tools = append([]string(nil), p.Tools...)
	}
	if p.Timeout != nil {
		c.Timeout = *p.Timeout
	}
	return c
}

// Validate checks engine parameters
func (c Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}
	if c.Temperature < 0 || c.Temperature > 1 {
		return fmt.Errorf("temperature must be between 0 and 1, got: %f", c.Temperature)
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("max_tokens cannot be negative")
	}
	if c.MaxIterations < 0 {
		return fmt.Errorf("max_iterations cannot be negative")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative")
	}
	return nil
}

// HealthStatus is the coarse state reported by an engine
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthDegraded  HealthStatus = "degraded"
	HealthUnhealthy HealthStatus = "unhealthy"
)

// HealthReport is returned by Strategy.Health
type HealthReport struct {
	Status HealthStatus `json:"status"`
	Tools  []string     `json:"tools"`
	Memory MemoryStats  `json:"memory"`
	Agent  AgentInfo    `json:"agent"`
	Error  string       `json:"error,omitempty"`
}

// Healthy reports whether the engine can take work
func (r HealthReport) Healthy() bool {
	return r.Status == HealthHealthy
}

// MemoryStats summarises an engine's memory
type MemoryStats struct {
	Items  int    `json:"items"`
	Format string `json:"format"`
}

// AgentInfo describes the engine behind a report
type AgentInfo struct {
	Kind        Kind   `json:"kind"`
	Model       string `json:"model"`
	Provider    string `json:"provider"`
	Initialized bool   `json:"initialized"`
}

// ToolCapability describes one tool an engine can call
type ToolCapability struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Capabilities []string `json:"capabilities,omitempty"`
	Parameters   []string `json:"parameters,omitempty"`
}

// Strategy is the surface every execution engine exposes
type Strategy interface {
	Kind() Kind

	// Initialize prepares the engine; errors here are unrecoverable for this instance
	Initialize(ctx context.Context) error
	// Cleanup releases engine resources; the engine is unusable afterwards
	Cleanup(ctx context.Context) error

	Execute(ctx context.Context, ec ExecutionContext) (*ExecutionResult, error)
	Chat(ctx context.Context, message string, onStep StepFunc) (string, error)
	Health(ctx context.Context) HealthReport

	// Memory returns a snapshot of the engine's native memory items
	Memory() []any
	ClearMemory()

	AvailableTools() []string
	ToolCapabilities(name string) (ToolCapability, bool)

	UpdateConfig(patch ConfigPatch) error
}

// MemoryLoader is implemented by engines that can replay standardized memory themselves
type MemoryLoader interface {
	LoadStandardizedMemory(ctx context.Context, items []StandardizedMemoryItem) (loaded int, failed int)
}

// MemoryAdapter replays one standardized item into an engine that has no MemoryLoader
type MemoryAdapter func(ctx context.Context, s Strategy, item StandardizedMemoryItem) error

// Builder constructs engines by kind
type Builder interface {
	Build(kind Kind, cfg Config) (Strategy, error)
	MemoryAdapter(kind Kind) (MemoryAdapter, bool)
}
