package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/harun/switchboard/pkg/llm"
	"github.com/harun/switchboard/pkg/strategy"
	"github.com/harun/switchboard/pkg/tools"
)

// ReAct alternates model reasoning with tool calls until the model answers
// without requesting a tool or MaxIterations is reached.
type ReAct struct {
	base

	memMu  sync.Mutex
	memory []map[string]interface{}
}

// NewReAct creates a reason/act engine
func NewReAct(cfg strategy.Config, provider llm.Provider, registry *tools.Registry, logger zerolog.Logger) *ReAct {
	return &ReAct{base: newBase(strategy.KindReAct, cfg, provider, registry, logger)}
}

func (e *ReAct) Execute(ctx context.Context, ec strategy.ExecutionContext) (*strategy.ExecutionResult, error) {
	return e.execute(ctx, ec, e.run)
}

func (e *ReAct) Chat(ctx context.Context, message string, onStep strategy.StepFunc) (string, error) {
	return e.chat(ctx, message, onStep, e.run)
}

type observation struct {
	tool    string
	output  string
	success bool
}

func (e *ReAct) run(ctx context.Context, ledger *strategy.Ledger, ec strategy.ExecutionContext) (*strategy.ExecutionResult, error) {
	maxIter := e.config().MaxIterations
	if maxIter <= 0 {
		maxIter = 1
	}

	messages := append(e.history(), llm.Message{Role: "user", Content: ec.Query})
	specs := e.toolSpecs()

	var (
		observations []observation
		sources      []strategy.Source
		searches     []strategy.SearchSummary
		lastResp     *llm.Response
	)

	for i := 1; i <= maxIter; i++ {
		ec.Callbacks.Report(i, maxIter, "reasoning")
		ledger.AddStep(strategy.Step{
			Name:        "reason",
			Status:      strategy.StepRunning,
			Description: fmt.Sprintf("iteration %d", i),
			Payload:     map[string]interface{}{"iteration": i},
		})

		resp, err := e.call(ctx, llm.Request{Messages: messages, Tools: specs})
		if err != nil {
			ledger.AddStep(strategy.Step{Name: "reason", Status: strategy.StepError, Description: err.Error()})
			return nil, err
		}
		lastResp = resp
		if resp.Content != "" {
			ec.Callbacks.Thought(resp.Content)
		}

		if len(resp.ToolCalls) == 0 {
			answer := strings.TrimSpace(resp.Content)
			if answer == "" {
				ledger.AddStep(strategy.Step{Name: "answer", Status: strategy.StepError, Description: "empty model response"})
				return e.partial(observations, sources, searches, "model returned an empty response", resp), nil
			}
			ledger.AddStep(strategy.Step{
				Name:        "answer",
				Status:      strategy.StepCompleted,
				Description: "model produced a final answer",
				Payload:     map[string]interface{}{"iterations": i},
			})
			e.remember(ec.Query, answer, observations)

			findings := successfulOutputs(observations)
			if len(findings) == 0 {
				findings = []string{answer}
			}
			return &strategy.ExecutionResult{
				Success:       true,
				Findings:      findings,
				Sources:       sources,
				Synthesis:     answer,
				Confidence:    strategy.Confidence(reactConfidence(observations)),
				SearchResults: searches,
				Metadata:      e.resultMetadata(resp),
			}, nil
		}

		messages = append(messages, llm.Message{Role: "assistant", Content: resp.Content, ToolCalls: resp.ToolCalls})
		for _, tc := range resp.ToolCalls {
			ledger.AddStep(strategy.Step{
				Name:        "act",
				Status:      strategy.StepRunning,
				Description: fmt.Sprintf("calling tool %s", tc.Name),
				Payload:     map[string]interface{}{"tool": tc.Name, "parameters": tc.Parameters},
			})

			res := e.invoke(ctx, tc.Name, tc.Parameters)
			obs := observation{tool: tc.Name, success: res.Success}
			if res.Success {
				obs.output = fmt.Sprintf("%v", res.Output)
				ledger.AddStep(strategy.Step{Name: "observe", Status: strategy.StepCompleted, Description: tc.Name + " succeeded"})
				sources = append(sources, strategy.Source{Title: tc.Name, Tool: tc.Name})
				if e.hasCapability(tc.Name, "search") {
					searches = append(searches, summarizeSearch(tc, obs.output))
				}
			} else {
				obs.output = "error: " + res.Error
				ledger.AddStep(strategy.Step{Name: "observe", Status: strategy.StepError, Description: res.Error})
			}
			observations = append(observations, obs)
			messages = append(messages, llm.Message{Role: "tool", ToolCallID: tc.ID, Content: obs.output})
		}
	}

	return e.partial(observations, sources, searches, fmt.Sprintf("no final answer after %d iterations", maxIter), lastResp), nil
}

func (e *ReAct) partial(obs []observation, sources []strategy.Source, searches []strategy.SearchSummary, reason string, resp *llm.Response) *strategy.ExecutionResult {
	return &strategy.ExecutionResult{
		Success:       false,
		Findings:      successfulOutputs(obs),
		Sources:       sources,
		SearchResults: searches,
		Error:         reason,
		Metadata:      e.resultMetadata(resp),
	}
}

// invoke runs a tool; unavailable tools become failed observations
func (e *ReAct) invoke(ctx context.Context, name string, params map[string]interface{}) tools.Result {
	if !e.toolAllowed(name) {
		return tools.Result{Success: false, Error: fmt.Sprintf("tool not available: %s", name)}
	}
	return e.registry.Execute(ctx, name, params)
}

func (e *ReAct) hasCapability(tool, capability string) bool {
	for _, c := range e.registry.Capabilities(tool) {
		if c == capability {
			return true
		}
	}
	return false
}

func summarizeSearch(tc llm.ToolCall, output string) strategy.SearchSummary {
	query, _ := tc.Parameters["query"].(string)
	summary := output
	if len(summary) > 200 {
		summary = summary[:200] + "..."
	}
	return strategy.SearchSummary{Query: query, Results: len(strings.Split(output, "\n")), Summary: summary}
}

func successfulOutputs(obs []observation) []string {
	out := []string{}
	for _, o := range obs {
		if o.success && o.output != "" {
			out = append(out, o.output)
		}
	}
	return out
}

func reactConfidence(obs []observation) float64 {
	if len(obs) == 0 {
		return 0.75
	}
	ok := 0
	for _, o := range obs {
		if o.success {
			ok++
		}
	}
	return 0.5 + 0.4*float64(ok)/float64(len(obs))
}

func (e *ReAct) Health(ctx context.Context) strategy.HealthReport {
	e.memMu.Lock()
	n := len(e.memory)
	e.memMu.Unlock()

	return e.health(ctx, strategy.MemoryStats{Items: n, Format: "structured"})
}

// history replays conversational records; observations are not re-sent
func (e *ReAct) history() []llm.Message {
	e.memMu.Lock()
	defer e.memMu.Unlock()

	out := make([]llm.Message, 0, len(e.memory)+1)
	for _, rec := range e.memory {
		role, _ := rec["role"].(string)
		content, _ := rec["content"].(string)
		switch role {
		case "user", "assistant", "system":
		case "":
			role = "user"
		default:
			continue
		}
		out = append(out, llm.Message{Role: role, Content: content})
	}
	return out
}

func (e *ReAct) remember(query, answer string, obs []observation) {
	e.memMu.Lock()
	defer e.memMu.Unlock()

	now := time.Now()
	e.memory = append(e.memory, map[string]interface{}{
		"type": "query", "role": "user", "content": query, "timestamp": now,
	})
	for _, o := range obs {
		e.memory = append(e.memory, map[string]interface{}{
			"type": "observation", "role": "tool", "content": o.output, "timestamp": now,
			"tool": o.tool, "success": o.success,
		})
	}
	e.memory = append(e.memory, map[string]interface{}{
		"type": "answer", "role": "assistant", "content": answer, "timestamp": now,
	})
}

// Memory returns copies of the structured records
func (e *ReAct) Memory() []any {
	e.memMu.Lock()
	defer e.memMu.Unlock()

	out := make([]any, len(e.memory))
	for i, rec := range e.memory {
		cp := make(map[string]interface{}, len(rec))
		for k, v := range rec {
			cp[k] = v
		}
		out[i] = cp
	}
	return out
}

func (e *ReAct) ClearMemory() {
	e.memMu.Lock()
	defer e.memMu.Unlock()

	e.memory = nil
}

// LoadStandardizedMemory replays migrated items as structured records
func (e *ReAct) LoadStandardizedMemory(ctx context.Context, items []strategy.StandardizedMemoryItem) (int, int) {
	e.memMu.Lock()
	defer e.memMu.Unlock()

	loaded, failed := 0, 0
	for _, item := range items {
		if ctx.Err() != nil || strings.TrimSpace(item.Content) == "" {
			failed++
			continue
		}
		e.memory = append(e.memory, item.ToStructured())
		loaded++
	}
	return loaded, failed
}
