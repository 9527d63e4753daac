package tracing

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestPropagateToAgent(t *testing.T) {
	parent := WithQueryID(WithTraceID(context.Background(), "trace-123"), "query-9")

	child := PropagateToAgent(parent, "analyst")

	if GetTraceID(child) != "trace-123" {
		t.Error("trace ID not propagated")
	}
	if GetQueryID(child) != "query-9" {
		t.Error("query ID not propagated")
	}
	if GetAgentID(child) != "analyst" {
		t.Error("agent ID not set")
	}
}

func TestPropagateToAgentGeneratesTraceID(t *testing.T) {
	child := PropagateToAgent(context.Background(), "analyst")
	if GetTraceID(child) == "" {
		t.Error("expected trace ID to be generated")
	}
}

func TestLoggerFromContext(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	ctx := WithAgentID(WithQueryID(WithTraceID(context.Background(), "t-1"), "q-1"), "coder")
	logger := LoggerFromContext(ctx, base)
	logger.Info().Msg("routed")

	out := buf.String()
	for _, want := range []string{`"trace_id":"t-1"`, `"query_id":"q-1"`, `"agent_id":"coder"`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %s in log output %s", want, out)
		}
	}
}

func TestDetach(t *testing.T) {
	ctx, cancel := context.WithCancel(WithQueryID(context.Background(), "q-d"))
	cancel()

	detached := Detach(ctx)
	if detached.Err() != nil {
		t.Error("detached context must not be cancelled")
	}
	if GetQueryID(detached) != "q-d" {
		t.Error("detached context lost query ID")
	}
}
