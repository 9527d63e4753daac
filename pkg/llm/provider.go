// Package llm adapts LLM vendor SDKs to the narrow call contract engines use.
package llm

import (
	"context"
	"fmt"
	"strings"
)

// Provider is an LLM backend an engine can call
type Provider interface {
	// Call makes a single completion request
	Call(ctx context.Context, request Request) (*Response, error)

	// Name returns the provider name
	Name() string
}

// Pinger is implemented by providers that can report reachability cheaply
type Pinger interface {
	Ping(ctx context.Context) error
}

// Message is one turn sent to the provider
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is a tool invocation requested by the model
type ToolCall struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"name"`
	Parameters map[string]interface{} `json:"parameters"`
}

// ToolSpec describes a callable tool; Schema is a JSON schema object
type ToolSpec struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Schema      map[string]interface{} `json:"input_schema"`
}

// Request contains the parameters of one LLM call
type Request struct {
	Model        string
	Messages     []Message
	Tools        []ToolSpec
	Temperature  float64
	MaxTokens    int
	SystemPrompt string
}

// Response is the provider's reply
type Response struct {
	Content   string
	ToolCalls []ToolCall
	Usage     *Usage
}

// Usage tracks token consumption
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// ProviderConfig selects and authenticates a provider
type ProviderConfig struct {
	Provider string `json:"provider" mapstructure:"provider"` // anthropic, openai, scripted
	APIKey   string `json:"api_key" mapstructure:"api_key"`
	BaseURL  string `json:"base_url,omitempty" mapstructure:"base_url"`
}

// NewProvider creates a provider from configuration
func NewProvider(cfg ProviderConfig) (Provider, error) {
	switch cfg.Provider {
	case "anthropic":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("anthropic provider requires an api key")
		}
		return NewAnthropic(cfg.APIKey, cfg.BaseURL), nil
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai provider requires an api key")
		}
		return NewOpenAI(cfg.APIKey, cfg.BaseURL), nil
	case "scripted", "":
		return NewScripted(), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}

// IsRetryable reports whether err looks like a transient transport failure
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if err == context.DeadlineExceeded {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"econnreset", "etimedout", "timeout", "429", "rate limit", "500", "502", "503", "504", "overloaded"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
