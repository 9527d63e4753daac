package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/harun/switchboard/pkg/strategy"
)

var (
	// ErrNoSuitableAgent is returned when no active agent can take a query
	ErrNoSuitableAgent = errors.New("no suitable agent")
	// ErrAgentNotFound is returned for unknown agent ids
	ErrAgentNotFound = errors.New("agent not found")
	// ErrDuplicateAgent is returned when an id is registered twice
	ErrDuplicateAgent = errors.New("agent already registered")
	// ErrNoStore is returned by stats persistence without a configured store
	ErrNoStore = errors.New("no stats store configured")
)

// Complexity is the coarse difficulty class of a query or capability
type Complexity string

const (
	ComplexitySimple  Complexity = "simple"
	ComplexityMedium  Complexity = "medium"
	ComplexityComplex Complexity = "complex"
)

// ParseComplexity converts a string into a known Complexity
func ParseComplexity(s string) (Complexity, error) {
	switch c := Complexity(s); c {
	case ComplexitySimple, ComplexityMedium, ComplexityComplex:
		return c, nil
	default:
		return "", fmt.Errorf("unknown complexity: %q", s)
	}
}

// Capability is a declared skill used in scoring
type Capability struct {
	Name       string     `json:"name" yaml:"name"`
	Domains    []string   `json:"domains" yaml:"domains"`
	Complexity Complexity `json:"complexity" yaml:"complexity"`
	Priority   float64    `json:"priority" yaml:"priority"`
}

// PerformanceStats is the live telemetry of one agent
type PerformanceStats struct {
	SuccessRate           float64   `json:"success_rate"`
	AverageResponseTimeMs float64   `json:"average_response_time_ms"`
	TotalQueries          int       `json:"total_queries"`
	LastUsed              time.Time `json:"last_used,omitempty"`
	ErrorCount            int       `json:"error_count"`
}

// NewPerformanceStats returns the stats of an agent that has not served yet
func NewPerformanceStats() PerformanceStats {
	return PerformanceStats{SuccessRate: 1.0}
}

// AgentHandle is the part of an agent handle the orchestrator drives
type AgentHandle interface {
	ID() string
	Execute(ctx context.Context, ec strategy.ExecutionContext) (*strategy.ExecutionResult, error)
	ActiveKind() strategy.Kind
	IsHealthy() bool
	Close(ctx context.Context) error
}

// Registration describes an agent being added to the orchestrator
type Registration struct {
	ID           string
	Name         string
	Handle       AgentHandle
	Capabilities []Capability
	Inactive     bool
}

// AgentInfo is a point-in-time view of a registered agent
type AgentInfo struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Kind         strategy.Kind    `json:"kind"`
	Capabilities []Capability     `json:"capabilities"`
	Stats        PerformanceStats `json:"stats"`
	Active       bool             `json:"active"`
	Healthy      bool             `json:"healthy"`
	Load         int              `json:"load"`
}

// ActiveQuery lives for exactly one RouteQuery call
type ActiveQuery struct {
	QueryID   string    `json:"query_id"`
	AgentID   string    `json:"agent_id"`
	Query     string    `json:"query"`
	StartTime time.Time `json:"start_time"`
}

// QueryHistoryEntry is one settled query outcome
type QueryHistoryEntry struct {
	Query        string        `json:"query"`
	AgentID      string        `json:"agent_id"`
	Success      bool          `json:"success"`
	ResponseTime time.Duration `json:"response_time"`
	Timestamp    time.Time     `json:"timestamp"`
}

// RouteOptions tune a single RouteQuery or CollaborateAgents call
type RouteOptions struct {
	PreferredAgent  string
	DisableFallback bool
	TaskType        string
	Context         map[string]interface{}
	Callbacks       strategy.Callbacks
}

// RouteResult is the outcome of RouteQuery
type RouteResult struct {
	*strategy.ExecutionResult
	QueryID  string       `json:"query_id"`
	AgentID  string       `json:"agent_id"`
	Fallback bool         `json:"fallback,omitempty"`
	Profile  QueryProfile `json:"profile"`
}

// CollaborationResult merges the outputs of several agents
type CollaborationResult struct {
	QueryID      string                               `json:"query_id"`
	Query        string                               `json:"query"`
	Success      bool                                 `json:"success"`
	Findings     []string                             `json:"findings"`
	Sources      []strategy.Source                    `json:"sources"`
	Synthesis    string                               `json:"synthesis"`
	Confidence   *float64                             `json:"confidence,omitempty"`
	Contributors []string                             `json:"contributors"`
	Results      map[string]*strategy.ExecutionResult `json:"results"`
	Errors       map[string]string                    `json:"errors,omitempty"`
	Duration     time.Duration                        `json:"duration"`
}

// Metrics aggregates the query history
type Metrics struct {
	TotalQueries          int                         `json:"total_queries"`
	SuccessRate           float64                     `json:"success_rate"`
	AverageResponseTimeMs float64                     `json:"average_response_time_ms"`
	AgentUsage            map[string]int              `json:"agent_usage"`
	ActiveQueries         int                         `json:"active_queries"`
	Agents                map[string]PerformanceStats `json:"agents"`
}
