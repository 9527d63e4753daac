package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/harun/switchboard/pkg/llm"
	"github.com/harun/switchboard/pkg/strategy"
	"github.com/harun/switchboard/pkg/tools"
)

const planPrompt = `Break the user's request into a short numbered plan, one step per line.
A step that should call a tool must be written as: tool:<name> <json parameters>.
Available tools: %s`

var planLine = regexp.MustCompile(`^\s*\d+[.)]\s+(.+)$`)

// Planner asks the model for a numbered plan, executes each line in order and
// synthesizes the results. Its memory is a plain "role: content" scratchpad.
type Planner struct {
	base

	memMu      sync.Mutex
	scratchpad []string
}

// NewPlanner creates a plan-then-execute engine
func NewPlanner(cfg strategy.Config, provider llm.Provider, registry *tools.Registry, logger zerolog.Logger) *Planner {
	return &Planner{base: newBase(strategy.KindPlanner, cfg, provider, registry, logger)}
}

func (e *Planner) Execute(ctx context.Context, ec strategy.ExecutionContext) (*strategy.ExecutionResult, error) {
	return e.execute(ctx, ec, e.run)
}

func (e *Planner) Chat(ctx context.Context, message string, onStep strategy.StepFunc) (string, error) {
	return e.chat(ctx, message, onStep, e.run)
}

func (e *Planner) run(ctx context.Context, ledger *strategy.Ledger, ec strategy.ExecutionContext) (*strategy.ExecutionResult, error) {
	cfg := e.config()

	ledger.AddStep(strategy.Step{Name: "plan", Status: strategy.StepRunning, Description: "drafting plan"})
	system := fmt.Sprintf(planPrompt, strings.Join(e.AvailableTools(), ", "))
	if cfg.SystemPrompt != "" {
		system = cfg.SystemPrompt + "\n\n" + system
	}
	planResp, err := e.call(ctx, llm.Request{SystemPrompt: system, Messages: e.withNotes(ec.Query)})
	if err != nil {
		ledger.AddStep(strategy.Step{Name: "plan", Status: strategy.StepError, Description: err.Error()})
		return nil, err
	}

	plan := ParsePlan(planResp.Content, cfg.MaxIterations)
	if len(plan) == 0 {
		plan = []string{ec.Query}
	}
	ledger.AddStep(strategy.Step{
		Name:        "plan",
		Status:      strategy.StepCompleted,
		Description: fmt.Sprintf("%d step plan", len(plan)),
		Payload:     map[string]interface{}{"plan": plan},
	})
	ec.Callbacks.Thought(strings.Join(plan, "\n"))

	var (
		results []string
		sources []strategy.Source
		failed  int
	)
	for i, line := range plan {
		ec.Callbacks.Report(i+1, len(plan), line)
		ledger.AddStep(strategy.Step{
			Name:        "execute",
			Status:      strategy.StepRunning,
			Description: line,
			Payload:     map[string]interface{}{"index": i + 1},
		})

		if name, params, ok, perr := parseToolLine(line); ok {
			if perr != nil {
				failed++
				ledger.AddStep(strategy.Step{Name: "execute", Status: strategy.StepError, Description: perr.Error()})
				continue
			}
			res := e.invoke(ctx, name, params)
			if !res.Success {
				failed++
				ledger.AddStep(strategy.Step{Name: "execute", Status: strategy.StepError, Description: res.Error})
				continue
			}
			results = append(results, fmt.Sprintf("%v", res.Output))
			sources = append(sources, strategy.Source{Title: name, Tool: name})
		} else {
			prompt := fmt.Sprintf("Task: %s\nCurrent step: %s", ec.Query, line)
			if len(results) > 0 {
				prompt += "\nPrevious results:\n" + strings.Join(results, "\n")
			}
			sub, err := e.call(ctx, llm.Request{Messages: []llm.Message{{Role: "user", Content: prompt}}})
			if err != nil {
				ledger.AddStep(strategy.Step{Name: "execute", Status: strategy.StepError, Description: err.Error()})
				return nil, err
			}
			results = append(results, strings.TrimSpace(sub.Content))
		}
		ledger.AddStep(strategy.Step{Name: "execute", Status: strategy.StepCompleted, Description: line})
	}

	if len(results) == 0 {
		return &strategy.ExecutionResult{
			Success:  false,
			Error:    "every plan step failed",
			Metadata: e.resultMetadata(planResp),
		}, nil
	}

	ledger.AddStep(strategy.Step{Name: "synthesize", Status: strategy.StepRunning, Description: "combining step results"})
	synResp, err := e.call(ctx, llm.Request{Messages: []llm.Message{{
		Role:    "user",
		Content: fmt.Sprintf("Question: %s\nStep results:\n- %s\nWrite the final answer.", ec.Query, strings.Join(results, "\n- ")),
	}}})
	if err != nil {
		ledger.AddStep(strategy.Step{Name: "synthesize", Status: strategy.StepError, Description: err.Error()})
		return nil, err
	}
	synthesis := strings.TrimSpace(synResp.Content)
	ledger.AddStep(strategy.Step{Name: "synthesize", Status: strategy.StepCompleted, Description: "answer ready"})

	e.note("user", ec.Query)
	e.note("assistant", synthesis)

	meta := e.resultMetadata(synResp)
	meta["plan"] = plan
	return &strategy.ExecutionResult{
		Success:    true,
		Findings:   results,
		Sources:    sources,
		Synthesis:  synthesis,
		Confidence: strategy.Confidence(0.9 * float64(len(plan)-failed) / float64(len(plan))),
		Metadata:   meta,
	}, nil
}

// ParsePlan extracts numbered lines, keeping at most limit steps when limit > 0
func ParsePlan(text string, limit int) []string {
	var plan []string
	for _, line := range strings.Split(text, "\n") {
		m := planLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		plan = append(plan, strings.TrimSpace(m[1]))
		if limit > 0 && len(plan) == limit {
			break
		}
	}
	return plan
}

// parseToolLine recognises "tool:<name> <json>"; ok is false for other lines
func parseToolLine(line string) (name string, params map[string]interface{}, ok bool, err error) {
	rest, found := strings.CutPrefix(strings.TrimSpace(line), "tool:")
	if !found {
		return "", nil, false, nil
	}
	name, args, _ := strings.Cut(strings.TrimSpace(rest), " ")
	if name == "" {
		return "", nil, true, errors.New("tool step has no tool name")
	}
	args = strings.TrimSpace(args)
	if args == "" {
		return name, map[string]interface{}{}, true, nil
	}
	if err := json.Unmarshal([]byte(args), &params); err != nil {
		return name, nil, true, fmt.Errorf("invalid parameters for %s: %w", name, err)
	}
	return name, params, true, nil
}

func (e *Planner) invoke(ctx context.Context, name string, params map[string]interface{}) tools.Result {
	if !e.toolAllowed(name) {
		return tools.Result{Success: false, Error: fmt.Sprintf("tool not available: %s", name)}
	}
	return e.registry.Execute(ctx, name, params)
}

func (e *Planner) withNotes(query string) []llm.Message {
	e.memMu.Lock()
	defer e.memMu.Unlock()

	if len(e.scratchpad) == 0 {
		return []llm.Message{{Role: "user", Content: query}}
	}
	return []llm.Message{
		{Role: "user", Content: "Notes so far:\n" + strings.Join(e.scratchpad, "\n")},
		{Role: "assistant", Content: "Noted."},
		{Role: "user", Content: query},
	}
}

func (e *Planner) note(role, content string) {
	e.appendNote(role + ": " + content)
}

func (e *Planner) appendNote(line string) {
	e.memMu.Lock()
	defer e.memMu.Unlock()

	e.scratchpad = append(e.scratchpad, line)
}

func (e *Planner) Health(ctx context.Context) strategy.HealthReport {
	e.memMu.Lock()
	n := len(e.scratchpad)
	e.memMu.Unlock()

	return e.health(ctx, strategy.MemoryStats{Items: n, Format: "scratchpad"})
}

// Memory returns the scratchpad lines as strings
func (e *Planner) Memory() []any {
	e.memMu.Lock()
	defer e.memMu.Unlock()

	out := make([]any, len(e.scratchpad))
	for i, line := range e.scratchpad {
		out[i] = line
	}
	return out
}

func (e *Planner) ClearMemory() {
	e.memMu.Lock()
	defer e.memMu.Unlock()

	e.scratchpad = nil
}

// plannerMemoryAdapter writes one migrated item onto a planner's scratchpad
func plannerMemoryAdapter(ctx context.Context, s strategy.Strategy, item strategy.StandardizedMemoryItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, ok := s.(*Planner)
	if !ok {
		return fmt.Errorf("planner memory adapter cannot load into %s engine", s.Kind())
	}
	if strings.TrimSpace(item.Content) == "" {
		return strategy.ErrEmptyMemoryItem
	}
	p.appendNote(item.ToText())
	return nil
}
