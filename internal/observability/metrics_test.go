package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	RegisterMetrics()
	RegisterMetrics()

	RecordHTTPRequest("GET", "/health", 200, 12*time.Millisecond)

	before := testutil.ToFloat64(mcpExecutions.WithLabelValues(OutcomeTimeout))
	RecordExecution(OutcomeTimeout, 3*time.Second)
	require.Equal(t, before+1, testutil.ToFloat64(mcpExecutions.WithLabelValues(OutcomeTimeout)))

	retries := testutil.ToFloat64(mcpRetries)
	RecordRetry()
	require.Equal(t, retries+1, testutil.ToFloat64(mcpRetries))

	RecordStage("clear_scene", "success")
	require.GreaterOrEqual(t, testutil.ToFloat64(stageRuns.WithLabelValues("clear_scene", "success")), 1.0)
	require.Equal(t, 1, testutil.CollectAndCount(stageRuns, "legosorter_stage_runs_total"))
}
