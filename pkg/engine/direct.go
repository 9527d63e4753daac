package engine

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/harun/switchboard/pkg/llm"
	"github.com/harun/switchboard/pkg/strategy"
	"github.com/harun/switchboard/pkg/tools"
)

// Direct answers each query with a single LLM call over the conversation so far
type Direct struct {
	base

	memMu  sync.Mutex
	memory []strategy.Message
}

// NewDirect creates a direct engine
func NewDirect(cfg strategy.Config, provider llm.Provider, registry *tools.Registry, logger zerolog.Logger) *Direct {
	return &Direct{base: newBase(strategy.KindDirect, cfg, provider, registry, logger)}
}

func (e *Direct) Execute(ctx context.Context, ec strategy.ExecutionContext) (*strategy.ExecutionResult, error) {
	return e.execute(ctx, ec, e.run)
}

func (e *Direct) Chat(ctx context.Context, message string, onStep strategy.StepFunc) (string, error) {
	return e.chat(ctx, message, onStep, e.run)
}

func (e *Direct) run(ctx context.Context, ledger *strategy.Ledger, ec strategy.ExecutionContext) (*strategy.ExecutionResult, error) {
	history := e.history()
	ledger.AddStep(strategy.Step{
		Name:        "prepare",
		Status:      strategy.StepCompleted,
		Description: "loaded conversation history",
		Payload:     map[string]interface{}{"messages": len(history)},
	})
	ec.Callbacks.Thought("answering directly")

	messages := append(history, llm.Message{Role: "user", Content: ec.Query})
	resp, err := e.call(ctx, llm.Request{Messages: messages})
	if err != nil {
		ledger.AddStep(strategy.Step{Name: "respond", Status: strategy.StepError, Description: err.Error()})
		return nil, err
	}

	answer := strings.TrimSpace(resp.Content)
	if answer == "" {
		ledger.AddStep(strategy.Step{Name: "respond", Status: strategy.StepError, Description: "empty model response"})
		return &strategy.ExecutionResult{
			Success:  false,
			Error:    "model returned an empty response",
			Metadata: e.resultMetadata(resp),
		}, nil
	}

	ledger.AddStep(strategy.Step{
		Name:        "respond",
		Status:      strategy.StepCompleted,
		Description: "received model response",
		Payload:     map[string]interface{}{"length": len(answer)},
	})
	e.remember(ec.Query, answer)

	return &strategy.ExecutionResult{
		Success:    true,
		Findings:   []string{answer},
		Synthesis:  answer,
		Confidence: strategy.Confidence(0.8),
		Metadata:   e.resultMetadata(resp),
	}, nil
}

func (e *Direct) Health(ctx context.Context) strategy.HealthReport {
	e.memMu.Lock()
	n := len(e.memory)
	e.memMu.Unlock()

	return e.health(ctx, strategy.MemoryStats{Items: n, Format: "messages"})
}

// history replays conversational turns; migrated tool observations stay in
// memory but are not sent, since they carry no originating tool call
func (e *Direct) history() []llm.Message {
	e.memMu.Lock()
	defer e.memMu.Unlock()

	out := make([]llm.Message, 0, len(e.memory)+1)
	for _, m := range e.memory {
		role := m.Role
		switch role {
		case "user", "assistant", "system":
		case "":
			role = "user"
		default:
			continue
		}
		out = append(out, llm.Message{Role: role, Content: m.Content})
	}
	return out
}

func (e *Direct) remember(query, answer string) {
	e.memMu.Lock()
	defer e.memMu.Unlock()

	now := time.Now()
	e.memory = append(e.memory,
		strategy.Message{Role: "user", Content: query, Timestamp: now},
		strategy.Message{Role: "assistant", Content: answer, Timestamp: now},
	)
}

// Memory returns the conversation as strategy.Message values
func (e *Direct) Memory() []any {
	e.memMu.Lock()
	defer e.memMu.Unlock()

	out := make([]any, len(e.memory))
	for i, m := range e.memory {
		out[i] = m
	}
	return out
}

func (e *Direct) ClearMemory() {
	e.memMu.Lock()
	defer e.memMu.Unlock()

	e.memory = nil
}

// LoadStandardizedMemory replays migrated items as conversation messages
func (e *Direct) LoadStandardizedMemory(ctx context.Context, items []strategy.StandardizedMemoryItem) (int, int) {
	e.memMu.Lock()
	defer e.memMu.Unlock()

	loaded, failed := 0, 0
	for _, item := range items {
		if ctx.Err() != nil || strings.TrimSpace(item.Content) == "" {
			failed++
			continue
		}
		e.memory = append(e.memory, item.ToMessage())
		loaded++
	}
	return loaded, failed
}
