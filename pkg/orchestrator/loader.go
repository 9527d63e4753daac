package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/harun/switchboard/pkg/agent"
	"github.com/harun/switchboard/pkg/strategy"
)

// EngineSpec is the engine section of an agent definition
type EngineSpec struct {
	Model         string   `json:"model,omitempty" yaml:"model,omitempty"`
	Temperature   *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens     int      `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	SystemPrompt  string   `json:"system_prompt,omitempty" yaml:"system_prompt,omitempty"`
	MaxIterations int      `json:"max_iterations,omitempty" yaml:"max_iterations,omitempty"`
	Tools         []string `json:"tools,omitempty" yaml:"tools,omitempty"`
	Timeout       string   `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// Config overlays the set fields on the engine defaults
func (e EngineSpec) Config() (strategy.Config, error) {
	cfg := strategy.DefaultConfig()
	if e.Model != "" {
		cfg.Model = e.Model
	}
	if e.Temperature != nil {
		cfg.Temperature = *e.Temperature
	}
	if e.MaxTokens > 0 {
		cfg.MaxTokens = e.MaxTokens
	}
	if e.SystemPrompt != "" {
		cfg.SystemPrompt = e.SystemPrompt
	}
	if e.MaxIterations > 0 {
		cfg.MaxIterations = e.MaxIterations
	}
	if len(e.Tools) > 0 {
		cfg.Tools = append([]string(nil), e.Tools...)
	}
	if e.Timeout != "" {
		d, err := time.ParseDuration(e.Timeout)
		if err != nil {
			return strategy.Config{}, fmt.Errorf("invalid timeout %q: %w", e.Timeout, err)
		}
		cfg.Timeout = d
	}
	return cfg, cfg.Validate()
}

// AgentDefinition is one entry of an agent definitions file
type AgentDefinition struct {
	ID           string        `json:"id" yaml:"id"`
	Name         string        `json:"name,omitempty" yaml:"name,omitempty"`
	Kind         strategy.Kind `json:"kind" yaml:"kind"`
	Capabilities []Capability  `json:"capabilities,omitempty" yaml:"capabilities,omitempty"`
	Engine       EngineSpec    `json:"engine,omitempty" yaml:"engine,omitempty"`
	Active       *bool         `json:"active,omitempty" yaml:"active,omitempty"`
}

// IsActive defaults to true when the definition omits the flag
func (d AgentDefinition) IsActive() bool {
	return d.Active == nil || *d.Active
}

// DefinitionsFile is the top-level shape of an agent definitions file
type DefinitionsFile struct {
	Agents []AgentDefinition `json:"agents" yaml:"agents"`
}

// Loader reads and validates agent definitions
type Loader struct {
	logger       zerolog.Logger
	schemaLoader gojsonschema.JSONLoader
}

// NewLoader creates a new definitions loader
func NewLoader(logger zerolog.Logger) *Loader {
	return &Loader{
		logger:       logger.With().Str("component", "agent-loader").Logger(),
		schemaLoader: gojsonschema.NewStringLoader(DefinitionsSchema),
	}
}

// LoadFile loads definitions from a .json, .yaml or .yml file
func (l *Loader) LoadFile(path string) ([]AgentDefinition, error) {
	if path == "" {
		return nil, fmt.Errorf("definitions file path is required")
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json", ".yaml", ".yml":
	default:
		return nil, fmt.Errorf("unsupported definitions file format: %s (supported: .json, .yaml, .yml)", ext)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definitions file: %w", err)
	}

	defs, err := l.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	l.logger.Info().
		Str("path", path).
		Int("count", len(defs)).
		Msg("Loaded agent definitions")
	return defs, nil
}

// Parse validates a JSON or YAML document and decodes its definitions
func (l *Loader) Parse(data []byte) ([]AgentDefinition, error) {
	// YAML is a superset of JSON, one decoder serves both
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse definitions: %w", err)
	}
	normalized, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize definitions: %w", err)
	}
	if err := l.validateSchema(normalized); err != nil {
		return nil, fmt.Errorf("definitions schema validation failed: %w", err)
	}

	var file DefinitionsFile
	if err := json.Unmarshal(normalized, &file); err != nil {
		return nil, fmt.Errorf("failed to decode definitions: %w", err)
	}
	if err := ValidateDefinitions(file.Agents); err != nil {
		return nil, err
	}
	return file.Agents, nil
}

func (l *Loader) validateSchema(data []byte) error {
	result, err := gojsonschema.Validate(l.schemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("schema validation errors: %s", strings.Join(msgs, "; "))
	}
	return nil
}

// ValidateDefinitions performs the checks a schema cannot express
func ValidateDefinitions(defs []AgentDefinition) error {
	if len(defs) == 0 {
		return fmt.Errorf("no agent definitions found")
	}

	seen := make(map[string]bool, len(defs))
	for i, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("agent definition at index %d has no id", i)
		}
		if seen[d.ID] {
			return fmt.Errorf("duplicate agent ID found: %s", d.ID)
		}
		seen[d.ID] = true

		if _, err := strategy.ParseKind(string(d.Kind)); err != nil {
			return fmt.Errorf("agent %s: %w", d.ID, err)
		}
		for _, c := range d.Capabilities {
			if _, err := ParseComplexity(string(c.Complexity)); err != nil {
				return fmt.Errorf("agent %s capability %s: %w", d.ID, c.Name, err)
			}
			if c.Priority < 0 {
				return fmt.Errorf("agent %s capability %s: priority cannot be negative", d.ID, c.Name)
			}
		}
		if _, err := d.Engine.Config(); err != nil {
			return fmt.Errorf("agent %s engine: %w", d.ID, err)
		}
	}
	return nil
}

var _ AgentHandle = (*agent.Handle)(nil)

// HandleFactory builds the handle of one defined agent
type HandleFactory func(ctx context.Context, def AgentDefinition) (AgentHandle, error)

// NewHandleFactory returns a factory producing agent handles that share base
// settings; AgentID, Kind and Engine come from each definition.
func NewHandleFactory(base agent.Config) HandleFactory {
	return func(ctx context.Context, def AgentDefinition) (AgentHandle, error) {
		engineCfg, err := def.Engine.Config()
		if err != nil {
			return nil, err
		}
		cfg := base
		cfg.AgentID = def.ID
		cfg.Kind = def.Kind
		cfg.Engine = engineCfg

		h, err := agent.New(ctx, cfg)
		if err != nil {
			return nil, err
		}
		h.Start()
		return h, nil
	}
}

// RegisterDefinitions builds a handle per definition and registers it. On
// failure the handles built so far stay registered; Close releases them.
func (o *Orchestrator) RegisterDefinitions(ctx context.Context, defs []AgentDefinition, factory HandleFactory) error {
	for _, d := range defs {
		h, err := factory(ctx, d)
		if err != nil {
			return fmt.Errorf("failed to build agent %s: %w", d.ID, err)
		}
		if err := o.RegisterAgent(Registration{
			ID:           d.ID,
			Name:         d.Name,
			Handle:       h,
			Capabilities: d.Capabilities,
			Inactive:     !d.IsActive(),
		}); err != nil {
			_ = h.Close(ctx)
			return err
		}
	}
	return nil
}
