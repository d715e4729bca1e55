package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/openlibrary-harvester/internal/progress"
)

// TestPrometheusSinkRecordsRunLifecycle ensures run counters and the duration histogram move with events.
func TestPrometheusSinkRecordsRunLifecycle(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	runID := uuid.NewString()
	batch := []progress.Event{
		{RunID: runID, At: time.Now(), Kind: progress.KindRunStart},
		{RunID: runID, At: time.Now(), Kind: progress.KindPageStart, Page: 1},
		{RunID: runID, At: time.Now(), Kind: progress.KindPageDone, Page: 1, Count: 42},
		{RunID: runID, At: time.Now().Add(15 * time.Second), Kind: progress.KindRunDone, Dur: 15 * time.Second},
	}

	require.NoError(t, sink.Consume(context.Background(), batch))

	require.Equal(t, 1.0, testutil.ToFloat64(sink.runsStarted))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.runsCompleted.WithLabelValues("success")))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.runsCompleted.WithLabelValues("error")))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.runsRunning))

	require.Equal(t, 1.0, testutil.ToFloat64(sink.events.WithLabelValues(string(progress.KindPageDone))))
	require.Equal(t, 1, testutil.CollectAndCount(sink.runDuration, "harvester_run_duration_seconds"))
}

// TestPrometheusSinkTracksRunningGauge checks the gauge rises while a run is live and falls on error.
func TestPrometheusSinkTracksRunningGauge(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	runID := uuid.NewString()
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{RunID: runID, At: time.Now(), Kind: progress.KindRunStart},
	}))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.runsRunning))

	// Duplicate starts for the same run must not inflate the gauge.
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{RunID: runID, At: time.Now(), Kind: progress.KindRunStart},
	}))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.runsRunning))

	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{RunID: runID, At: time.Now(), Kind: progress.KindRunError, Note: "store append failed"},
	}))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.runsRunning))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.runsCompleted.WithLabelValues("error")))
}

// TestPrometheusSinkSharesCollectorsOnReregister covers rebuilding the sink
// against a registry that already holds its collectors.
func TestPrometheusSinkSharesCollectorsOnReregister(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	first, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	second, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	require.NoError(t, first.Consume(context.Background(), []progress.Event{
		{RunID: uuid.NewString(), At: time.Now(), Kind: progress.KindRunStart},
	}))
	require.NoError(t, second.Consume(context.Background(), []progress.Event{
		{RunID: uuid.NewString(), At: time.Now(), Kind: progress.KindRunStart},
	}))

	require.Equal(t, 2.0, testutil.ToFloat64(first.runsStarted))
	require.Equal(t, 2.0, testutil.ToFloat64(second.runsStarted))
}
