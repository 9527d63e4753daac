package agent

import (
	"errors"
	"fmt"

	"github.com/harun/switchboard/pkg/strategy"
)

var (
	// ErrExecutionFailed marks an execute or chat call that failed after all attempts
	ErrExecutionFailed = errors.New("agent execution failed")
	// ErrNoFallback is returned when no alternative strategy is healthy
	ErrNoFallback = errors.New("no healthy fallback strategy")
	// ErrClosed is returned by a handle after Close
	ErrClosed = errors.New("agent handle closed")
)

// ExecutionError wraps the last engine error once retries are exhausted
type ExecutionError struct {
	AgentID  string
	Op       string
	Attempts int
	Err      error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("agent %s: %s failed after %d attempt(s): %v", e.AgentID, e.Op, e.Attempts, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// Is lets callers match any ExecutionError against ErrExecutionFailed
func (e *ExecutionError) Is(target error) bool {
	return target == ErrExecutionFailed
}

// SwapError reports a failed strategy swap; the previous strategy stays active
type SwapError struct {
	AgentID string
	Target  strategy.Kind
	Err     error
}

func (e *SwapError) Error() string {
	return fmt.Sprintf("agent %s: swap to %s failed: %v", e.AgentID, e.Target, e.Err)
}

func (e *SwapError) Unwrap() error {
	return e.Err
}
