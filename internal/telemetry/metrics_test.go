package telemetry_test

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/petasbytes/toolchat/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counterValue sums the samples of family whose label matches value.
func counterValue(t *testing.T, family, label, value string) float64 {
	t.Helper()
	mfs, err := telemetry.Registry().Gather()
	require.NoError(t, err)
	total := 0.0
	for _, mf := range mfs {
		if mf.GetName() != family {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == label && lp.GetValue() == value {
					total += m.GetCounter().GetValue()
				}
			}
		}
	}
	return total
}

func TestRecordDropped_AddsByReason(t *testing.T) {
	before := counterValue(t, "toolchat_log_entries_dropped_total", "reason", "orphaned")
	telemetry.RecordDropped("orphaned", 3)
	telemetry.RecordDropped("orphaned", 0)
	after := counterValue(t, "toolchat_log_entries_dropped_total", "reason", "orphaned")
	assert.Equal(t, before+3, after)
}

func TestRecordToolCall_SplitsOutcome(t *testing.T) {
	okBefore := counterValue(t, "toolchat_tool_calls_total", "outcome", "ok")
	errBefore := counterValue(t, "toolchat_tool_calls_total", "outcome", "error")

	telemetry.RecordToolCall("calculate", false, 5*time.Millisecond)
	telemetry.RecordToolCall("calculate", true, time.Millisecond)

	assert.Equal(t, okBefore+1, counterValue(t, "toolchat_tool_calls_total", "outcome", "ok"))
	assert.Equal(t, errBefore+1, counterValue(t, "toolchat_tool_calls_total", "outcome", "error"))

	n, err := testutil.GatherAndCount(telemetry.Registry(), "toolchat_tool_duration_seconds")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 1)
}

func TestMetricsHandler_ServesTextFormat(t *testing.T) {
	telemetry.RecordTurn("done")
	telemetry.RecordTransition("DONE")
	telemetry.RecordGateway("fake", 10*time.Millisecond)

	rec := httptest.NewRecorder()
	telemetry.MetricsHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	for _, name := range []string{
		"toolchat_turns_total",
		"toolchat_turn_transitions_total",
		"toolchat_gateway_duration_seconds",
	} {
		assert.True(t, strings.Contains(string(body), name), "missing %s", name)
	}
}
