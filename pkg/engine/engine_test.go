package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/switchboard/pkg/llm"
	"github.com/harun/switchboard/pkg/strategy"
	"github.com/harun/switchboard/pkg/tools"
)

func newRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	reg := tools.NewRegistry()
	require.NoError(t, tools.RegisterBuiltins(reg))
	return reg
}

func build(t *testing.T, kind strategy.Kind, provider llm.Provider) strategy.Strategy {
	t.Helper()
	f := NewFactory(provider, newRegistry(t), zerolog.Nop())
	s, err := f.Build(kind, strategy.DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, s.Initialize(context.Background()))
	return s
}

func stepNames(steps []strategy.Step) []string {
	names := make([]string, len(steps))
	for i, s := range steps {
		names[i] = s.Name
	}
	return names
}

func TestFactory_Build(t *testing.T) {
	f := NewFactory(llm.NewScripted(), tools.NewRegistry(), zerolog.Nop())

	for _, kind := range strategy.Kinds() {
		t.Run(string(kind), func(t *testing.T) {
			s, err := f.Build(kind, strategy.DefaultConfig())
			require.NoError(t, err)
			assert.Equal(t, kind, s.Kind())
		})
	}

	_, err := f.Build("swarm", strategy.DefaultConfig())
	var cfgErr *strategy.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, strategy.Kind("swarm"), cfgErr.Kind)
}

func TestFactory_MemoryAdapter(t *testing.T) {
	f := NewFactory(llm.NewScripted(), tools.NewRegistry(), zerolog.Nop())

	_, ok := f.MemoryAdapter(strategy.KindPlanner)
	assert.True(t, ok)
	_, ok = f.MemoryAdapter(strategy.KindDirect)
	assert.False(t, ok)
}

func TestEngine_Lifecycle(t *testing.T) {
	ctx := context.Background()
	provider := llm.NewScripted()
	f := NewFactory(provider, tools.NewRegistry(), zerolog.Nop())

	s, err := f.Build(strategy.KindDirect, strategy.DefaultConfig())
	require.NoError(t, err)

	_, err = s.Execute(ctx, strategy.ExecutionContext{Query: "hello"})
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.Equal(t, strategy.HealthUnhealthy, s.Health(ctx).Status)

	require.NoError(t, s.Initialize(ctx))
	report := s.Health(ctx)
	assert.True(t, report.Healthy())
	assert.Equal(t, "scripted", report.Agent.Provider)
	assert.True(t, report.Agent.Initialized)

	provider.SetPingError(errors.New("connection refused"))
	assert.Equal(t, strategy.HealthUnhealthy, s.Health(ctx).Status)
	provider.SetPingError(nil)

	require.NoError(t, s.Cleanup(ctx))
	assert.Equal(t, strategy.HealthUnhealthy, s.Health(ctx).Status)
	_, err = s.Execute(ctx, strategy.ExecutionContext{Query: "hello"})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestEngine_InitializeRejectsUnknownTool(t *testing.T) {
	cfg := strategy.DefaultConfig()
	cfg.Tools = []string{"web_search"}

	f := NewFactory(llm.NewScripted(), tools.NewRegistry(), zerolog.Nop())
	s, err := f.Build(strategy.KindReAct, cfg)
	require.NoError(t, err)
	assert.Error(t, s.Initialize(context.Background()))
}

func TestEngine_UpdateConfig(t *testing.T) {
	provider := llm.NewScripted()
	s := build(t, strategy.KindDirect, provider)

	bad := 3.0
	assert.Error(t, s.UpdateConfig(strategy.ConfigPatch{Temperature: &bad}))

	model := "gpt-4o"
	require.NoError(t, s.UpdateConfig(strategy.ConfigPatch{Model: &model}))

	_, err := s.Execute(context.Background(), strategy.ExecutionContext{Query: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", provider.Calls()[0].Model)
}

func TestEngine_EmptyQueryIsSoftFailure(t *testing.T) {
	s := build(t, strategy.KindDirect, llm.NewScripted())

	res, err := s.Execute(context.Background(), strategy.ExecutionContext{Query: "  "})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
}

func TestDirect_Execute(t *testing.T) {
	provider := llm.NewScripted(llm.Response{Content: "Paris"}, llm.Response{Content: "About 2 million"})
	s := build(t, strategy.KindDirect, provider)

	var streamed []string
	ec := strategy.ExecutionContext{
		Query: "capital of France?",
		Callbacks: strategy.Callbacks{
			OnStep: func(step strategy.Step) { streamed = append(streamed, step.Name) },
		},
	}

	res, err := s.Execute(context.Background(), ec)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "Paris", res.Synthesis)
	assert.Equal(t, "capital of France?", res.Query)
	assert.Equal(t, []string{"prepare", "respond"}, stepNames(res.Steps))
	assert.Equal(t, streamed, stepNames(res.Steps))
	require.NotNil(t, res.Confidence)

	mem := s.Memory()
	require.Len(t, mem, 2)
	assert.Equal(t, strategy.Message{Role: "user", Content: "capital of France?", Timestamp: mem[0].(strategy.Message).Timestamp}, mem[0])

	_, err = s.Execute(context.Background(), strategy.ExecutionContext{Query: "population?"})
	require.NoError(t, err)
	assert.Len(t, provider.Calls()[1].Messages, 3)
}

func TestDirect_ProviderErrorIsReturned(t *testing.T) {
	provider := llm.NewScripted()
	provider.EnqueueError(errors.New("503 service unavailable"))
	s := build(t, strategy.KindDirect, provider)

	res, err := s.Execute(context.Background(), strategy.ExecutionContext{Query: "hi"})
	assert.Nil(t, res)
	assert.ErrorContains(t, err, "503")
	assert.Empty(t, s.Memory())
}

func TestDirect_Chat(t *testing.T) {
	s := build(t, strategy.KindDirect, llm.NewScripted(llm.Response{Content: "hey"}))

	steps := 0
	reply, err := s.Chat(context.Background(), "hello", func(strategy.Step) { steps++ })
	require.NoError(t, err)
	assert.Equal(t, "hey", reply)
	assert.Equal(t, 2, steps)
}

func TestReAct_ToolLoop(t *testing.T) {
	provider := llm.NewScripted(
		llm.Response{ToolCalls: []llm.ToolCall{{ID: "c1", Name: "word_count", Parameters: map[string]interface{}{"text": "a b c"}}}},
		llm.Response{Content: "The text has 3 words."},
	)
	s := build(t, strategy.KindReAct, provider)

	res, err := s.Execute(context.Background(), strategy.ExecutionContext{Query: "count words in 'a b c'"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, []string{"reason", "act", "observe", "reason", "answer"}, stepNames(res.Steps))
	assert.Equal(t, []string{"3"}, res.Findings)
	assert.Equal(t, "word_count", res.Sources[0].Tool)
	assert.Equal(t, "The text has 3 words.", res.Synthesis)

	second := provider.Calls()[1]
	last := second.Messages[len(second.Messages)-1]
	assert.Equal(t, "tool", last.Role)
	assert.Equal(t, "c1", last.ToolCallID)
	assert.NotEmpty(t, second.Tools)
}

func TestReAct_ToolFailureIsAbsorbed(t *testing.T) {
	provider := llm.NewScripted(
		llm.Response{ToolCalls: []llm.ToolCall{{ID: "c1", Name: "web_search", Parameters: map[string]interface{}{"query": "x"}}}},
		llm.Response{Content: "I could not search, but here is what I know."},
	)
	s := build(t, strategy.KindReAct, provider)

	res, err := s.Execute(context.Background(), strategy.ExecutionContext{Query: "search x"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, strategy.StepError, res.Steps[2].Status)
	assert.InDelta(t, 0.5, *res.Confidence, 1e-9)
}

func TestReAct_MaxIterations(t *testing.T) {
	provider := llm.NewScripted()
	provider.SetResponder(func(llm.Request) (*llm.Response, error) {
		return &llm.Response{ToolCalls: []llm.ToolCall{{ID: "c", Name: "clock"}}}, nil
	})

	cfg := strategy.DefaultConfig()
	cfg.MaxIterations = 2
	f := NewFactory(provider, newRegistry(t), zerolog.Nop())
	s, err := f.Build(strategy.KindReAct, cfg)
	require.NoError(t, err)
	require.NoError(t, s.Initialize(context.Background()))

	res, err := s.Execute(context.Background(), strategy.ExecutionContext{Query: "loop"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "2 iterations")
	assert.Len(t, provider.Calls(), 2)
	assert.Len(t, res.Findings, 2)
}

func TestReAct_MemoryIsStructured(t *testing.T) {
	s := build(t, strategy.KindReAct, llm.NewScripted(llm.Response{Content: "done"}))

	_, err := s.Execute(context.Background(), strategy.ExecutionContext{Query: "q"})
	require.NoError(t, err)

	mem := s.Memory()
	require.Len(t, mem, 2)
	rec := mem[1].(map[string]interface{})
	assert.Equal(t, "answer", rec["type"])
	assert.Equal(t, "assistant", rec["role"])
	assert.Equal(t, "done", rec["content"])
}

func TestPlanner_Execute(t *testing.T) {
	provider := llm.NewScripted(
		llm.Response{Content: "1. tool:echo {\"text\":\"raw data\"}\n2. Summarize the data"},
		llm.Response{Content: "summary of raw data"},
		llm.Response{Content: "Final: raw data summarized"},
	)
	s := build(t, strategy.KindPlanner, provider)

	var progress []int
	res, err := s.Execute(context.Background(), strategy.ExecutionContext{
		Query: "summarize data",
		Callbacks: strategy.Callbacks{
			OnProgress: func(p strategy.Progress) { progress = append(progress, p.Current) },
		},
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, []string{"raw data", "summary of raw data"}, res.Findings)
	assert.Equal(t, "Final: raw data summarized", res.Synthesis)
	assert.Equal(t, []int{1, 2}, progress)
	assert.Len(t, provider.Calls(), 3)

	assert.Equal(t, []any{"user: summarize data", "assistant: Final: raw data summarized"}, s.Memory())
}

func TestPlanner_UnnumberedPlanFallsBackToQuery(t *testing.T) {
	s := build(t, strategy.KindPlanner, llm.NewScripted())

	res, err := s.Execute(context.Background(), strategy.ExecutionContext{Query: "just answer"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, []string{"just answer"}, res.Metadata["plan"])
}

func TestPlanner_AllStepsFail(t *testing.T) {
	provider := llm.NewScripted(llm.Response{Content: "1. tool:missing {}"})
	s := build(t, strategy.KindPlanner, provider)

	res, err := s.Execute(context.Background(), strategy.ExecutionContext{Query: "x"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "every plan step failed", res.Error)
}

func TestParsePlan(t *testing.T) {
	text := "Here is the plan:\n1. first\n2) second\n  3. third\nnot a step"
	assert.Equal(t, []string{"first", "second", "third"}, ParsePlan(text, 0))
	assert.Equal(t, []string{"first", "second"}, ParsePlan(text, 2))
	assert.Empty(t, ParsePlan("no steps", 0))
}

func TestParseToolLine(t *testing.T) {
	name, params, ok, err := parseToolLine(`tool:echo {"text":"hi"}`)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "echo", name)
	assert.Equal(t, "hi", params["text"])

	_, _, ok, _ = parseToolLine("search the web")
	assert.False(t, ok)

	_, _, ok, err = parseToolLine("tool:echo {broken")
	assert.True(t, ok)
	assert.Error(t, err)
}

func TestLoadStandardizedMemory(t *testing.T) {
	items := []strategy.StandardizedMemoryItem{
		{Type: strategy.MemoryMessage, Role: "user", Content: "hello"},
		{Type: strategy.MemoryText, Role: "assistant", Content: "hi there"},
		{Type: strategy.MemoryUnknown, Content: ""},
	}

	t.Run("direct", func(t *testing.T) {
		d := build(t, strategy.KindDirect, llm.NewScripted()).(*Direct)
		loaded, failed := d.LoadStandardizedMemory(context.Background(), items)
		assert.Equal(t, 2, loaded)
		assert.Equal(t, 1, failed)
		assert.Equal(t, "assistant", d.Memory()[1].(strategy.Message).Role)
	})

	t.Run("react", func(t *testing.T) {
		r := build(t, strategy.KindReAct, llm.NewScripted()).(*ReAct)
		loaded, failed := r.LoadStandardizedMemory(context.Background(), items)
		assert.Equal(t, 2, loaded)
		assert.Equal(t, 1, failed)
		assert.Equal(t, "hello", r.Memory()[0].(map[string]interface{})["content"])
	})

	t.Run("planner adapter", func(t *testing.T) {
		p := build(t, strategy.KindPlanner, llm.NewScripted())
		ctx := context.Background()
		require.NoError(t, plannerMemoryAdapter(ctx, p, items[0]))
		require.NoError(t, plannerMemoryAdapter(ctx, p, items[1]))
		assert.ErrorIs(t, plannerMemoryAdapter(ctx, p, items[2]), strategy.ErrEmptyMemoryItem)
		assert.Equal(t, []any{"user: hello", "assistant: hi there"}, p.Memory())
	})
}

func TestDirect_MigratedReActMemory(t *testing.T) {
	ctx := context.Background()
	provider := llm.NewScripted(
		llm.Response{ToolCalls: []llm.ToolCall{{ID: "c1", Name: "word_count", Parameters: map[string]interface{}{"text": "a b c"}}}},
		llm.Response{Content: "3 words."},
	)
	r := build(t, strategy.KindReAct, provider)

	_, err := r.Execute(ctx, strategy.ExecutionContext{Query: "count"})
	require.NoError(t, err)

	items, _ := strategy.StandardizeAll(r.Memory())
	d := build(t, strategy.KindDirect, provider).(*Direct)
	loaded, _ := d.LoadStandardizedMemory(ctx, items)
	require.Equal(t, len(items), loaded)

	res, err := d.Execute(ctx, strategy.ExecutionContext{Query: "next"})
	require.NoError(t, err)
	assert.True(t, res.Success)

	calls := provider.Calls()
	last := calls[len(calls)-1]
	var contents []string
	for _, m := range last.Messages {
		assert.NotEqual(t, "tool", m.Role)
		assert.Empty(t, m.ToolCallID)
		contents = append(contents, m.Content)
	}
	assert.Equal(t, []string{"count", "3 words.", "next"}, contents)
	assert.Len(t, d.Memory(), loaded+2, "observations stay in memory for later migrations")
}

func TestToolCapabilities(t *testing.T) {
	react := build(t, strategy.KindReAct, llm.NewScripted())
	capability, ok := react.ToolCapabilities("word_count")
	require.True(t, ok)
	assert.Equal(t, []string{"analysis"}, capability.Capabilities)
	assert.Equal(t, []string{"text"}, capability.Parameters)

	direct := build(t, strategy.KindDirect, llm.NewScripted())
	assert.Empty(t, direct.AvailableTools())
	_, ok = direct.ToolCapabilities("word_count")
	assert.False(t, ok)
}
