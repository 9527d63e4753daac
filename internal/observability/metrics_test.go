package observability

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordRoute(t *testing.T) {
	m := getMetrics()
	before := testutil.ToFloat64(m.routeTotal.WithLabelValues("metrics-test", "success"))

	RecordRoute("metrics-test", 20*time.Millisecond, true)
	RecordRoute("metrics-test", 30*time.Millisecond, false)

	assert.Equal(t, before+1, testutil.ToFloat64(m.routeTotal.WithLabelValues("metrics-test", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.routeTotal.WithLabelValues("metrics-test", "error")))
}

func TestGauges(t *testing.T) {
	m := getMetrics()

	SetAgentLoad("gauge-test", 3)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.agentLoad.WithLabelValues("gauge-test")))

	SetAgentHealth("gauge-test", false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.agentHealth.WithLabelValues("gauge-test")))
	SetAgentHealth("gauge-test", true)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.agentHealth.WithLabelValues("gauge-test")))
}

func TestRecordMemoryTransfer(t *testing.T) {
	m := getMetrics()
	loaded := testutil.ToFloat64(m.memoryTransferItems.WithLabelValues("loaded"))
	failed := testutil.ToFloat64(m.memoryTransferItems.WithLabelValues("failed"))

	RecordMemoryTransfer(4, 1)

	assert.Equal(t, loaded+4, testutil.ToFloat64(m.memoryTransferItems.WithLabelValues("loaded")))
	assert.Equal(t, failed+1, testutil.ToFloat64(m.memoryTransferItems.WithLabelValues("failed")))
}

func TestAuditLoggerWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	require.NoError(t, InitAuditLogger(path))
	defer GetAuditLogger().Close()

	RecordSwapAudit(context.Background(), "research", "react", "direct", "fallback", "success", nil)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"action":"fallback:direct"`)
	assert.Contains(t, string(data), `"actor":"research"`)
}
