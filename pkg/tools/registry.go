package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"

	"github.com/harun/switchboard/internal/observability"
)

const (
	defaultTimeout = 30 * time.Second
	maxOutputSize  = 10 * 1024
)

// Parameter defines a parameter for a tool
type Parameter struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"`
	Description string      `json:"description"`
	Required    bool        `json:"required"`
	Default     interface{} `json:"default,omitempty"`
}

// Handler is the function signature for tool execution
type Handler func(ctx context.Context, params map[string]interface{}) (interface{}, error)

// Definition defines a tool's metadata and handler
type Definition struct {
	Name         string      `json:"name"`
	Description  string      `json:"description"`
	Parameters   []Parameter `json:"parameters"`
	Capabilities []string    `json:"capabilities,omitempty"`
	Handler      Handler     `json:"-"`
}

// Result represents the result of a tool execution
type Result struct {
	Success   bool                   `json:"success"`
	Output    interface{}            `json:"output,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Truncated bool                   `json:"truncated,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

type entry struct {
	def       Definition
	schema    *gojsonschema.Schema
	schemaMap map[string]interface{}
}

// Registry manages and executes tools
type Registry struct {
	tools   map[string]*entry
	timeout time.Duration
	logger  zerolog.Logger
	mu      sync.RWMutex
}

// Option configures a Registry
type Option func(*Registry)

// WithTimeout bounds every tool call
func WithTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithLogger sets the registry logger
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// NewRegistry creates an empty registry
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		tools:   make(map[string]*entry),
		timeout: defaultTimeout,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a tool, replacing any tool with the same name
func (r *Registry) Register(def Definition) error {
	if err := validateDefinition(def); err != nil {
		return fmt.Errorf("invalid tool definition: %w", err)
	}

	schemaMap := buildSchema(def)
	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schemaMap))
	if err != nil {
		return fmt.Errorf("failed to generate schema: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.tools[def.Name] = &entry{def: def, schema: schema, schemaMap: schemaMap}
	r.logger.Debug().Str("tool", def.Name).Msg("Tool registered")
	return nil
}

// Unregister removes a tool
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.tools, name)
}

// Get returns a tool definition by name
func (r *Registry) Get(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.tools[name]
	if !ok {
		return Definition{}, false
	}
	return e.def, true
}

// List returns registered tool names in sorted order
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Schema returns the JSON schema generated for a tool
func (r *Registry) Schema(name string) (map[string]interface{}, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.tools[name]
	if !ok {
		return nil, false
	}
	return e.schemaMap, true
}

// Capabilities returns the declared capability tags of a tool
func (r *Registry) Capabilities(name string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.tools[name]
	if !ok {
		return nil
	}
	return append([]string(nil), e.def.Capabilities...)
}

// Execute runs a tool with the given parameters
func (r *Registry) Execute(ctx context.Context, name string, params map[string]interface{}) Result {
	start := time.Now()

	r.mu.RLock()
	e := r.tools[name]
	r.mu.RUnlock()

	if e == nil {
		r.logger.Warn().Str("tool", name).Msg("Tool not found")
		return Result{Success: false, Error: fmt.Sprintf("tool not found: %s", name)}
	}

	if params == nil {
		params = map[string]interface{}{}
	}
	if err := validateParameters(e.schema, params); err != nil {
		r.logger.Warn().Str("tool", name).Err(err).Msg("Parameter validation failed")
		observability.RecordToolExecution(name, time.Since(start), false)
		return Result{Success: false, Error: fmt.Sprintf("parameter validation failed: %v", err)}
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	type outcome struct {
		value interface{}
		err   error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- outcome{err: fmt.Errorf("tool panicked: %v", p)}
			}
		}()
		value, err := e.def.Handler(timeoutCtx, params)
		done <- outcome{value: value, err: err}
	}()

	select {
	case out := <-done:
		duration := time.Since(start)
		meta := map[string]interface{}{"duration": duration.Milliseconds()}

		if out.err != nil {
			r.logger.Warn().Str("tool", name).Dur("duration", duration).Err(out.err).Msg("Tool execution failed")
			observability.RecordToolExecution(name, duration, false)
			return Result{Success: false, Error: out.err.Error(), Metadata: meta}
		}

		output, truncated := truncateOutput(out.value)
		r.logger.Debug().Str("tool", name).Dur("duration", duration).Bool("truncated", truncated).Msg("Tool execution completed")
		observability.RecordToolExecution(name, duration, true)
		return Result{Success: true, Output: output, Truncated: truncated, Metadata: meta}

	case <-timeoutCtx.Done():
		duration := time.Since(start)
		r.logger.Warn().Str("tool", name).Dur("duration", duration).Msg("Tool execution timeout")
		observability.RecordToolExecution(name, duration, false)
		return Result{
			Success:  false,
			Error:    fmt.Sprintf("tool execution timeout after %v", r.timeout),
			Metadata: map[string]interface{}{"duration": duration.Milliseconds()},
		}
	}
}

func validateDefinition(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if def.Description == "" {
		return fmt.Errorf("tool description cannot be empty")
	}
	if def.Handler == nil {
		return fmt.Errorf("tool handler cannot be nil")
	}

	validTypes := map[string]bool{
		"string": true, "number": true, "boolean": true,
		"object": true, "array": true, "integer": true,
	}
	for _, param := range def.Parameters {
		if param.Name == "" {
			return fmt.Errorf("parameter name cannot be empty")
		}
		if !validTypes[param.Type] {
			return fmt.Errorf("invalid parameter type %q for %s", param.Type, param.Name)
		}
	}
	return nil
}

func buildSchema(def Definition) map[string]interface{} {
	properties := make(map[string]interface{}, len(def.Parameters))
	required := []string{}

	for _, param := range def.Parameters {
		prop := map[string]interface{}{"type": param.Type}
		if param.Description != "" {
			prop["description"] = param.Description
		}
		if param.Default != nil {
			prop["default"] = param.Default
		}
		properties[param.Name] = prop
		if param.Required {
			required = append(required, param.Name)
		}
	}

	schema := map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func validateParameters(schema *gojsonschema.Schema, params map[string]interface{}) error {
	result, err := schema.Validate(gojsonschema.NewGoLoader(params))
	if err != nil {
		return err
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("validation errors: %v", msgs)
	}
	return nil
}

func truncateOutput(output interface{}) (interface{}, bool) {
	str := fmt.Sprintf("%v", output)
	if len(str) <= maxOutputSize {
		return output, false
	}
	return str[:maxOutputSize] + "\n... [output truncated]", true
}
