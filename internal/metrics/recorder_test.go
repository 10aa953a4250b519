package metrics

import (
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopRecorderIsSafe(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.ObserveStageDuration("fetch", time.Second)
	r.ObserveRunDuration(time.Second)
	r.IncStageResult("fetch", ResultSuccess)
	r.IncRunOutcome("success")
	r.IncPublishResult(false, true)
}

func TestPrometheusRecorderCounters(t *testing.T) {
	reg := prom.NewRegistry()
	r := NewPrometheusRecorder(reg)

	r.IncStageResult("publish", ResultFailed)
	r.IncStageResult("publish", ResultFailed)
	r.IncRunOutcome("failed")
	r.IncPublishResult(true, true)
	r.ObserveStageDuration("fetch", 250*time.Millisecond)
	r.ObserveRunDuration(time.Second)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["docpages_stage_results_total"])
	assert.True(t, names["docpages_run_outcomes_total"])
	assert.True(t, names["docpages_publish_results_total"])
	assert.True(t, names["docpages_stage_duration_seconds"])

	c, err := r.stageResults.GetMetricWithLabelValues("publish", string(ResultFailed))
	require.NoError(t, err)
	assert.Equal(t, 2.0, testutil.ToFloat64(c))
}

func TestPrometheusRecorderNilSafety(t *testing.T) {
	var r *PrometheusRecorder
	r.IncStageResult("fetch", ResultSuccess)
	r.ObserveRunDuration(time.Second)
	r.IncRunOutcome("success")
	r.IncPublishResult(false, false)
}
