package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	routeTotal     *prometheus.CounterVec
	routeDuration  *prometheus.HistogramVec
	routeFallbacks *prometheus.CounterVec
	noAgentTotal   prometheus.Counter
	activeQueries  prometheus.Gauge
	agentLoad      *prometheus.GaugeVec

	collaborationTotal *prometheus.CounterVec

	engineRunTotal    *prometheus.CounterVec
	engineRunDuration *prometheus.HistogramVec
	handleRetries     *prometheus.CounterVec
	agentHealth       *prometheus.GaugeVec

	strategySwaps       *prometheus.CounterVec
	memoryTransferItems *prometheus.CounterVec

	toolExecutionTotal    *prometheus.CounterVec
	toolExecutionDuration *prometheus.HistogramVec
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			routeTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "route_total",
					Help: "Total routed queries by agent and status.",
				},
				[]string{"agent", "status"},
			),
			routeDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "route_duration_seconds",
					Help:    "Routed query duration in seconds by agent.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"agent"},
			),
			routeFallbacks: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "route_fallback_total",
					Help: "Queries retried against the fallback agent, by original agent.",
				},
				[]string{"agent"},
			),
			noAgentTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "route_no_agent_total",
					Help: "Queries rejected because no active agent was available.",
				},
			),
			activeQueries: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "active_queries",
					Help: "Queries currently in flight.",
				},
			),
			agentLoad: prometheus.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "agent_load",
					Help: "Current in-flight query count by agent.",
				},
				[]string{"agent"},
			),
			collaborationTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "collaboration_total",
					Help: "Collaboration participant executions by agent and status.",
				},
				[]string{"agent", "status"},
			),
			engineRunTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "engine_run_total",
					Help: "Total engine executions by strategy kind and status.",
				},
				[]string{"kind", "status"},
			),
			engineRunDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "engine_run_duration_seconds",
					Help:    "Engine execution duration in seconds by strategy kind.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"kind"},
			),
			handleRetries: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "handle_retry_total",
					Help: "Retried execute/chat attempts by agent.",
				},
				[]string{"agent"},
			),
			agentHealth: prometheus.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "agent_healthy",
					Help: "Agent health state (1 healthy, 0 degraded).",
				},
				[]string{"agent"},
			),
			strategySwaps: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "strategy_swap_total",
					Help: "Strategy swaps by agent, reason and status.",
				},
				[]string{"agent", "reason", "status"},
			),
			memoryTransferItems: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "memory_transfer_items_total",
					Help: "Memory items migrated during swaps by result.",
				},
				[]string{"result"},
			),
			toolExecutionTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "tool_execution_total",
					Help: "Total tool executions by tool and status.",
				},
				[]string{"tool", "status"},
			),
			toolExecutionDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "tool_execution_duration_seconds",
					Help:    "Tool execution duration in seconds by tool.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"tool"},
			),
		}

		prometheus.MustRegister(
			m.routeTotal,
			m.routeDuration,
			m.routeFallbacks,
			m.noAgentTotal,
			m.activeQueries,
			m.agentLoad,
			m.collaborationTotal,
			m.engineRunTotal,
			m.engineRunDuration,
			m.handleRetries,
			m.agentHealth,
			m.strategySwaps,
			m.memoryTransferItems,
			m.toolExecutionTotal,
			m.toolExecutionDuration,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

func RecordRoute(agent string, duration time.Duration, success bool) {
	m := getMetrics()
	m.routeTotal.WithLabelValues(agent, status(success)).Inc()
	m.routeDuration.WithLabelValues(agent).Observe(duration.Seconds())
}

func RecordRouteFallback(agent string) {
	getMetrics().routeFallbacks.WithLabelValues(agent).Inc()
}

func RecordNoSuitableAgent() {
	getMetrics().noAgentTotal.Inc()
}

func SetActiveQueries(count int) {
	getMetrics().activeQueries.Set(float64(count))
}

func SetAgentLoad(agent string, load int) {
	getMetrics().agentLoad.WithLabelValues(agent).Set(float64(load))
}

func RecordCollaboration(agent string, success bool) {
	getMetrics().collaborationTotal.WithLabelValues(agent, status(success)).Inc()
}

func RecordEngineRun(kind string, duration time.Duration, success bool) {
	m := getMetrics()
	m.engineRunTotal.WithLabelValues(kind, status(success)).Inc()
	m.engineRunDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

func RecordHandleRetry(agent string) {
	getMetrics().handleRetries.WithLabelValues(agent).Inc()
}

func SetAgentHealth(agent string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	getMetrics().agentHealth.WithLabelValues(agent).Set(value)
}

// RecordStrategySwap counts a swap; reason is "switch" or "fallback"
func RecordStrategySwap(agent, reason string, success bool) {
	getMetrics().strategySwaps.WithLabelValues(agent, reason, status(success)).Inc()
}

func RecordMemoryTransfer(loaded, failed int) {
	m := getMetrics()
	m.memoryTransferItems.WithLabelValues("loaded").Add(float64(loaded))
	m.memoryTransferItems.WithLabelValues("failed").Add(float64(failed))
}

func RecordToolExecution(tool string, duration time.Duration, success bool) {
	m := getMetrics()
	m.toolExecutionTotal.WithLabelValues(tool, status(success)).Inc()
	m.toolExecutionDuration.WithLabelValues(tool).Observe(duration.Seconds())
}
