package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/harun/switchboard/pkg/strategy"
)

const caffeineQuery = "Please research the effects of caffeine on sleep, comprehensive analysis requested"

// MockHandle is a mock implementation of AgentHandle
type MockHandle struct {
	mock.Mock
	id   string
	kind strategy.Kind
}

func newMockHandle(id string) *MockHandle {
	m := &MockHandle{id: id, kind: strategy.KindDirect}
	m.On("Close", mock.Anything).Return(nil).Maybe()
	return m
}

func (m *MockHandle) ID() string                { return m.id }
func (m *MockHandle) ActiveKind() strategy.Kind { return m.kind }
func (m *MockHandle) IsHealthy() bool           { return true }

func (m *MockHandle) Execute(ctx context.Context, ec strategy.ExecutionContext) (*strategy.ExecutionResult, error) {
	args := m.Called(ctx, ec)
	res, _ := args.Get(0).(*strategy.ExecutionResult)
	return res, args.Error(1)
}

func (m *MockHandle) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func okResult(synthesis string, confidence *float64) *strategy.ExecutionResult {
	return &strategy.ExecutionResult{
		Success:    true,
		Findings:   []string{synthesis},
		Sources:    []strategy.Source{{Title: synthesis}},
		Synthesis:  synthesis,
		Confidence: confidence,
	}
}

var conversationalCaps = []Capability{
	{Name: "conversation", Domains: []string{"general"}, Complexity: ComplexitySimple, Priority: 0.5},
}

var researchCaps = []Capability{
	{Name: "research", Domains: []string{"research", "analysis"}, Complexity: ComplexityComplex, Priority: 1.0},
}

// setupOrchestrator registers a conversational and a research agent
func setupOrchestrator(t *testing.T, opts ...Option) (*Orchestrator, *MockHandle, *MockHandle) {
	t.Helper()

	o := New(opts...)
	conv := newMockHandle("conversational")
	research := newMockHandle("research")
	require.NoError(t, o.RegisterAgent(Registration{ID: "conversational", Handle: conv, Capabilities: conversationalCaps}))
	require.NoError(t, o.RegisterAgent(Registration{ID: "research", Handle: research, Capabilities: researchCaps}))
	return o, conv, research
}

func agentInfo(t *testing.T, o *Orchestrator, id string) AgentInfo {
	t.Helper()
	for _, a := range o.Agents() {
		if a.ID == id {
			return a
		}
	}
	t.Fatalf("agent %s not registered", id)
	return AgentInfo{}
}

func TestRegisterAgent(t *testing.T) {
	o := New()
	h := newMockHandle("a")

	require.NoError(t, o.RegisterAgent(Registration{ID: "a", Handle: h, Capabilities: conversationalCaps}))

	err := o.RegisterAgent(Registration{ID: "a", Handle: h})
	assert.ErrorIs(t, err, ErrDuplicateAgent)

	assert.Error(t, o.RegisterAgent(Registration{Handle: h}))
	assert.Error(t, o.RegisterAgent(Registration{ID: "b"}))
	assert.Error(t, o.RegisterAgent(Registration{
		ID:           "c",
		Handle:       h,
		Capabilities: []Capability{{Name: "x", Complexity: "extreme"}},
	}))

	info := agentInfo(t, o, "a")
	assert.Equal(t, "a", info.Name)
	assert.True(t, info.Active)
	assert.Equal(t, 1.0, info.Stats.SuccessRate)
	assert.Equal(t, 0, info.Load)
}

func TestRouteQuery_ResearchQueryGoesToResearchAgent(t *testing.T) {
	o, conv, research := setupOrchestrator(t)
	research.On("Execute", mock.Anything, mock.MatchedBy(func(ec strategy.ExecutionContext) bool {
		return ec.Query == caffeineQuery
	})).Return(okResult("caffeine delays sleep onset", nil), nil).Once()

	res, err := o.RouteQuery(context.Background(), caffeineQuery, RouteOptions{})
	require.NoError(t, err)

	assert.Equal(t, "research", res.AgentID)
	assert.False(t, res.Fallback)
	assert.NotEmpty(t, res.QueryID)
	assert.Equal(t, ComplexityComplex, res.Profile.Complexity)
	assert.True(t, res.Profile.RequiresResearch)
	assert.True(t, res.Profile.RequiresAnalysis)
	assert.Equal(t, "caffeine delays sleep onset", res.Synthesis)

	research.AssertExpectations(t)
	conv.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
}

func TestRouteQuery_SimpleQueryStaysConversational(t *testing.T) {
	o, conv, research := setupOrchestrator(t)
	conv.On("Execute", mock.Anything, mock.Anything).Return(okResult("hello", nil), nil).Once()

	res, err := o.RouteQuery(context.Background(), "hi", RouteOptions{})
	require.NoError(t, err)

	assert.Equal(t, "conversational", res.AgentID)
	assert.Equal(t, ComplexitySimple, res.Profile.Complexity)
	assert.Empty(t, res.Profile.Domains)
	research.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
}

func TestRouteQuery_PreferredAgent(t *testing.T) {
	t.Run("active preferred agent wins unconditionally", func(t *testing.T) {
		o, conv, research := setupOrchestrator(t)
		conv.On("Execute", mock.Anything, mock.Anything).Return(okResult("sure", nil), nil).Once()

		res, err := o.RouteQuery(context.Background(), caffeineQuery, RouteOptions{PreferredAgent: "conversational"})
		require.NoError(t, err)
		assert.Equal(t, "conversational", res.AgentID)
		research.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
	})

	t.Run("inactive preferred agent falls back to scoring", func(t *testing.T) {
		o, conv, research := setupOrchestrator(t)
		require.NoError(t, o.SetAgentActive(context.Background(), "conversational", false))
		research.On("Execute", mock.Anything, mock.Anything).Return(okResult("ok", nil), nil).Once()

		res, err := o.RouteQuery(context.Background(), "hi", RouteOptions{PreferredAgent: "conversational"})
		require.NoError(t, err)
		assert.Equal(t, "research", res.AgentID)
		conv.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
	})

	t.Run("unknown preferred agent falls back to scoring", func(t *testing.T) {
		o, conv, _ := setupOrchestrator(t)
		conv.On("Execute", mock.Anything, mock.Anything).Return(okResult("ok", nil), nil).Once()

		res, err := o.RouteQuery(context.Background(), "hi", RouteOptions{PreferredAgent: "ghost"})
		require.NoError(t, err)
		assert.Equal(t, "conversational", res.AgentID)
	})
}

func TestRouteQuery_FallbackToConversational(t *testing.T) {
	o, conv, research := setupOrchestrator(t)
	research.On("Execute", mock.Anything, mock.Anything).Return(nil, errors.New("engine exploded")).Once()
	conv.On("Execute", mock.Anything, mock.Anything).Return(okResult("best effort", nil), nil).Once()

	res, err := o.RouteQuery(context.Background(), caffeineQuery, RouteOptions{})
	require.NoError(t, err)

	assert.True(t, res.Fallback)
	assert.Equal(t, "conversational", res.AgentID)
	assert.Equal(t, "best effort", res.Synthesis)

	assert.Equal(t, 1, agentInfo(t, o, "research").Stats.ErrorCount)
	assert.Equal(t, 1, agentInfo(t, o, "conversational").Stats.TotalQueries)
	assert.Empty(t, o.ActiveQueries())
	for _, a := range o.Agents() {
		assert.Equal(t, 0, a.Load, a.ID)
	}
}

func TestRouteQuery_FallbackDisabled(t *testing.T) {
	o, conv, research := setupOrchestrator(t)
	boom := errors.New("engine exploded")
	research.On("Execute", mock.Anything, mock.Anything).Return(nil, boom).Once()

	_, err := o.RouteQuery(context.Background(), caffeineQuery, RouteOptions{DisableFallback: true})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	conv.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
	assert.Empty(t, o.ActiveQueries())
	assert.Equal(t, 0, agentInfo(t, o, "research").Load)
}

func TestRouteQuery_FallbackAgentAlsoFails(t *testing.T) {
	o, conv, research := setupOrchestrator(t)
	first := errors.New("research down")
	second := errors.New("conversational down")
	research.On("Execute", mock.Anything, mock.Anything).Return(nil, first).Once()
	conv.On("Execute", mock.Anything, mock.Anything).Return(nil, second).Once()

	_, err := o.RouteQuery(context.Background(), caffeineQuery, RouteOptions{})
	require.Error(t, err)
	assert.ErrorIs(t, err, first)
	assert.ErrorIs(t, err, second)
	assert.Empty(t, o.ActiveQueries())
}

func TestRouteQuery_SoftFailureIsReturned(t *testing.T) {
	o, conv, _ := setupOrchestrator(t)
	conv.On("Execute", mock.Anything, mock.Anything).
		Return(&strategy.ExecutionResult{Success: false, Error: "no answer"}, nil).Once()

	res, err := o.RouteQuery(context.Background(), "hi", RouteOptions{})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.False(t, res.Fallback)

	stats := agentInfo(t, o, "conversational").Stats
	assert.Equal(t, 1, stats.ErrorCount)
	assert.Equal(t, 0.0, stats.SuccessRate)
}

func TestRouteQuery_NoSuitableAgent(t *testing.T) {
	o := New()
	_, err := o.RouteQuery(context.Background(), "hi", RouteOptions{})
	assert.ErrorIs(t, err, ErrNoSuitableAgent)

	h := newMockHandle("only")
	require.NoError(t, o.RegisterAgent(Registration{ID: "only", Handle: h, Inactive: true}))
	_, err = o.RouteQuery(context.Background(), "hi", RouteOptions{})
	assert.ErrorIs(t, err, ErrNoSuitableAgent)
	h.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
}

func TestRouteQuery_PassesOptionsToHandle(t *testing.T) {
	o, conv, _ := setupOrchestrator(t)
	var steps []string
	conv.On("Execute", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			ec := args.Get(1).(strategy.ExecutionContext)
			ec.Callbacks.OnStep(strategy.Step{Name: "respond"})
		}).
		Return(okResult("hello", nil), nil).Once()

	_, err := o.RouteQuery(context.Background(), "hi", RouteOptions{
		TaskType: "chat",
		Context:  map[string]interface{}{"user": "u1"},
		Callbacks: strategy.Callbacks{OnStep: func(s strategy.Step) {
			steps = append(steps, s.Name)
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"respond"}, steps)

	ec := conv.Calls[0].Arguments.Get(1).(strategy.ExecutionContext)
	assert.Equal(t, "chat", ec.TaskType)
	assert.Equal(t, "u1", ec.Context["user"])
}

func TestSelectOptimalAgent_TieResolvesToRegistrationOrder(t *testing.T) {
	o := New()
	caps := []Capability{{Name: "general", Domains: []string{"general"}, Complexity: ComplexitySimple, Priority: 1}}
	require.NoError(t, o.RegisterAgent(Registration{ID: "zulu", Handle: newMockHandle("zulu"), Capabilities: caps}))
	require.NoError(t, o.RegisterAgent(Registration{ID: "alpha", Handle: newMockHandle("alpha"), Capabilities: caps}))

	for i := 0; i < 50; i++ {
		id, _, err := o.SelectOptimalAgent("hi")
		require.NoError(t, err)
		assert.Equal(t, "zulu", id)
	}
}

func TestSelectOptimalAgent_Deterministic(t *testing.T) {
	o, _, _ := setupOrchestrator(t)
	require.NoError(t, o.RecordQueryResult("research", "q", false, 3*time.Second))

	first := o.ScoreAgents(caffeineQuery)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, o.ScoreAgents(caffeineQuery))
	}
	require.Len(t, first, 2)
	assert.Equal(t, "conversational", first[0].AgentID)
	assert.Equal(t, "research", first[1].AgentID)
}

func TestSelectOptimalAgent_PerformanceBreaksCapabilityTie(t *testing.T) {
	o := New()
	caps := []Capability{{Name: "general", Complexity: ComplexitySimple, Priority: 1}}
	require.NoError(t, o.RegisterAgent(Registration{ID: "flaky", Handle: newMockHandle("flaky"), Capabilities: caps}))
	require.NoError(t, o.RegisterAgent(Registration{ID: "steady", Handle: newMockHandle("steady"), Capabilities: caps}))

	require.NoError(t, o.RecordQueryResult("flaky", "q", false, time.Second))
	require.NoError(t, o.RecordQueryResult("steady", "q", true, time.Second))

	id, _, err := o.SelectOptimalAgent("hi")
	require.NoError(t, err)
	assert.Equal(t, "steady", id)
}

func TestRecordQueryResult(t *testing.T) {
	t.Run("incremental mean equals recomputation", func(t *testing.T) {
		o, _, _ := setupOrchestrator(t)
		outcomes := []bool{true, false, true, true, false, false, true, true, true, false, true}
		durations := []time.Duration{}
		successes := 0
		for i, ok := range outcomes {
			d := time.Duration(100*(i+1)) * time.Millisecond
			durations = append(durations, d)
			if ok {
				successes++
			}
			require.NoError(t, o.RecordQueryResult("research", "q", ok, d))
		}

		var total time.Duration
		for _, d := range durations {
			total += d
		}
		stats := agentInfo(t, o, "research").Stats
		assert.Equal(t, len(outcomes), stats.TotalQueries)
		assert.Equal(t, len(outcomes)-successes, stats.ErrorCount)
		assert.InDelta(t, float64(successes)/float64(len(outcomes)), stats.SuccessRate, 1e-12)
		assert.InDelta(t, float64(total.Milliseconds())/float64(len(outcomes)), stats.AverageResponseTimeMs, 1e-9)
		assert.False(t, stats.LastUsed.IsZero())
	})

	t.Run("ten successes give exactly one", func(t *testing.T) {
		o, _, _ := setupOrchestrator(t)
		for i := 0; i < 10; i++ {
			require.NoError(t, o.RecordQueryResult("research", "q", true, 50*time.Millisecond))
		}
		stats := agentInfo(t, o, "research").Stats
		assert.Equal(t, 1.0, stats.SuccessRate)
		assert.Equal(t, 0, stats.ErrorCount)
	})

	t.Run("unknown agent", func(t *testing.T) {
		o := New()
		assert.ErrorIs(t, o.RecordQueryResult("ghost", "q", true, 0), ErrAgentNotFound)
	})

	t.Run("history is trimmed to the latest entries", func(t *testing.T) {
		o, _, _ := setupOrchestrator(t)
		for i := 0; i <= historyLimit; i++ {
			require.NoError(t, o.RecordQueryResult("research", fmt.Sprintf("q-%d", i), true, 0))
		}
		history := o.History()
		require.Len(t, history, historyRetain)
		assert.Equal(t, fmt.Sprintf("q-%d", historyLimit), history[len(history)-1].Query)
		assert.Equal(t, fmt.Sprintf("q-%d", historyLimit-historyRetain+1), history[0].Query)
	})
}

func TestRouteQuery_LoadConservation(t *testing.T) {
	o, conv, research := setupOrchestrator(t)
	gate := make(chan struct{})
	queryIs := func(q string) interface{} {
		return mock.MatchedBy(func(ec strategy.ExecutionContext) bool { return ec.Query == q })
	}
	research.On("Execute", mock.Anything, queryIs("ok")).
		Run(func(mock.Arguments) { <-gate }).
		Return(okResult("done", nil), nil)
	research.On("Execute", mock.Anything, queryIs("fail")).
		Run(func(mock.Arguments) { <-gate }).
		Return(nil, errors.New("engine exploded"))
	research.On("Execute", mock.Anything, queryIs("fallback")).
		Run(func(mock.Arguments) { <-gate }).
		Return(nil, errors.New("engine exploded"))
	conv.On("Execute", mock.Anything, queryIs("fallback")).Return(okResult("best effort", nil), nil)

	const perOutcome = 4
	type call struct {
		query string
		opts  RouteOptions
		check func(*RouteResult, error)
	}
	calls := []call{
		{"ok", RouteOptions{PreferredAgent: "research"}, func(res *RouteResult, err error) {
			if assert.NoError(t, err) {
				assert.Equal(t, "research", res.AgentID)
			}
		}},
		{"fail", RouteOptions{PreferredAgent: "research", DisableFallback: true}, func(res *RouteResult, err error) {
			assert.Error(t, err)
		}},
		{"fallback", RouteOptions{PreferredAgent: "research"}, func(res *RouteResult, err error) {
			if assert.NoError(t, err) {
				assert.True(t, res.Fallback)
				assert.Equal(t, "conversational", res.AgentID)
			}
		}},
	}
	total := perOutcome * len(calls)

	var wg sync.WaitGroup
	for _, c := range calls {
		for i := 0; i < perOutcome; i++ {
			wg.Add(1)
			go func(c call) {
				defer wg.Done()
				c.check(o.RouteQuery(context.Background(), c.query, c.opts))
			}(c)
		}
	}

	require.Eventually(t, func() bool {
		return len(o.ActiveQueries()) == total
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, total, agentInfo(t, o, "research").Load)
	assert.Equal(t, 0, agentInfo(t, o, "conversational").Load)

	close(gate)
	wg.Wait()

	assert.Empty(t, o.ActiveQueries())
	for _, a := range o.Agents() {
		assert.Equal(t, 0, a.Load, a.ID)
	}
	researchStats := agentInfo(t, o, "research").Stats
	assert.Equal(t, total, researchStats.TotalQueries)
	assert.Equal(t, 2*perOutcome, researchStats.ErrorCount)
	assert.Equal(t, perOutcome, agentInfo(t, o, "conversational").Stats.TotalQueries)
}

func TestCollaborateAgents(t *testing.T) {
	t.Run("one failing agent is skipped", func(t *testing.T) {
		o, conv, research := setupOrchestrator(t)
		research.On("Execute", mock.Anything, mock.Anything).Return(nil, errors.New("timeout")).Once()
		conv.On("Execute", mock.Anything, mock.Anything).Return(okResult("summary", strategy.Confidence(0.6)), nil).Once()

		res, err := o.CollaborateAgents(context.Background(), caffeineQuery, []string{"research", "conversational"}, RouteOptions{})
		require.NoError(t, err)

		assert.True(t, res.Success)
		assert.Equal(t, []string{"conversational"}, res.Contributors)
		assert.Contains(t, res.Errors, "research")
		assert.Equal(t, "summary", res.Synthesis)
		assert.Equal(t, []string{"summary"}, res.Findings)
		require.NotNil(t, res.Confidence)
		assert.InDelta(t, 0.6, *res.Confidence, 1e-9)
		assert.Empty(t, o.ActiveQueries())
	})

	t.Run("results are merged", func(t *testing.T) {
		o, conv, research := setupOrchestrator(t)
		research.On("Execute", mock.Anything, mock.Anything).Return(okResult("deep dive", strategy.Confidence(0.9)), nil).Once()
		conv.On("Execute", mock.Anything, mock.Anything).Return(okResult("short take", nil), nil).Once()

		res, err := o.CollaborateAgents(context.Background(), caffeineQuery, []string{"research", "conversational"}, RouteOptions{})
		require.NoError(t, err)

		assert.Equal(t, "deep dive"+SynthesisSeparator+"short take", res.Synthesis)
		assert.Equal(t, []string{"deep dive", "short take"}, res.Findings)
		assert.Len(t, res.Sources, 2)
		require.NotNil(t, res.Confidence)
		assert.InDelta(t, 0.9, *res.Confidence, 1e-9)
		assert.Len(t, res.Results, 2)
	})

	t.Run("unknown and inactive agents are skipped", func(t *testing.T) {
		o, conv, research := setupOrchestrator(t)
		require.NoError(t, o.SetAgentActive(context.Background(), "research", false))
		conv.On("Execute", mock.Anything, mock.Anything).Return(okResult("hello", nil), nil).Once()

		res, err := o.CollaborateAgents(context.Background(), "hi", []string{"ghost", "research", "conversational"}, RouteOptions{})
		require.NoError(t, err)
		assert.Equal(t, []string{"conversational"}, res.Contributors)
		assert.Len(t, res.Errors, 2)
		assert.Nil(t, res.Confidence)
		research.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
	})

	t.Run("every agent failing is not an error", func(t *testing.T) {
		o, conv, research := setupOrchestrator(t)
		research.On("Execute", mock.Anything, mock.Anything).Return(nil, errors.New("down")).Once()
		conv.On("Execute", mock.Anything, mock.Anything).
			Return(&strategy.ExecutionResult{Success: false, Error: "empty"}, nil).Once()

		res, err := o.CollaborateAgents(context.Background(), "hi", []string{"research", "conversational"}, RouteOptions{})
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Empty(t, res.Contributors)
		assert.Len(t, res.Errors, 2)
		assert.Empty(t, res.Synthesis)
	})

	t.Run("no agents", func(t *testing.T) {
		o, _, _ := setupOrchestrator(t)
		_, err := o.CollaborateAgents(context.Background(), "hi", nil, RouteOptions{})
		assert.Error(t, err)
	})
}

func TestPerformanceMetrics(t *testing.T) {
	o, _, _ := setupOrchestrator(t)
	require.NoError(t, o.RecordQueryResult("research", "a", true, 100*time.Millisecond))
	require.NoError(t, o.RecordQueryResult("research", "b", false, 300*time.Millisecond))
	require.NoError(t, o.RecordQueryResult("conversational", "c", true, 200*time.Millisecond))

	m := o.PerformanceMetrics()
	assert.Equal(t, 3, m.TotalQueries)
	assert.InDelta(t, 2.0/3.0, m.SuccessRate, 1e-9)
	assert.InDelta(t, 200.0, m.AverageResponseTimeMs, 1e-9)
	assert.Equal(t, map[string]int{"research": 2, "conversational": 1}, m.AgentUsage)
	assert.Equal(t, 0, m.ActiveQueries)
	assert.Equal(t, 2, m.Agents["research"].TotalQueries)
}

func TestSetWeights(t *testing.T) {
	o := New()
	assert.Equal(t, DefaultWeights(), o.Weights())

	assert.Error(t, o.SetWeights(Weights{Success: -1, Latency: 1}))
	assert.Error(t, o.SetWeights(Weights{}))

	w := Weights{Success: 1, Latency: 0, Load: 0}
	require.NoError(t, o.SetWeights(w))
	assert.Equal(t, w, o.Weights())
}

func TestSetAgentActive(t *testing.T) {
	o, _, _ := setupOrchestrator(t)
	require.NoError(t, o.SetAgentActive(context.Background(), "research", false))
	assert.False(t, agentInfo(t, o, "research").Active)

	assert.ErrorIs(t, o.SetAgentActive(context.Background(), "ghost", true), ErrAgentNotFound)
}

func TestUnregisterAgent(t *testing.T) {
	o, _, research := setupOrchestrator(t)
	h, err := o.UnregisterAgent("research")
	require.NoError(t, err)
	assert.Same(t, research, h)

	_, ok := o.Handle("research")
	assert.False(t, ok)
	assert.Len(t, o.Agents(), 1)

	_, err = o.UnregisterAgent("research")
	assert.ErrorIs(t, err, ErrAgentNotFound)
}

func TestClose(t *testing.T) {
	store, err := NewFileStore(t.TempDir() + "/stats.json")
	require.NoError(t, err)

	o := New(WithStatsStore(store))
	a := &MockHandle{id: "a"}
	a.On("Close", mock.Anything).Return(nil).Once()
	b := &MockHandle{id: "b"}
	b.On("Close", mock.Anything).Return(errors.New("stuck")).Once()
	require.NoError(t, o.RegisterAgent(Registration{ID: "a", Handle: a}))
	require.NoError(t, o.RegisterAgent(Registration{ID: "b", Handle: b}))

	err = o.Close(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stuck")
	a.AssertExpectations(t)
	b.AssertExpectations(t)

	stored, err := store.Load()
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}
