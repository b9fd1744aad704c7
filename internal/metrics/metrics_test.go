package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)

	m.PredictionsInc()
	m.PredictionsInc()
	m.RemoteFailuresInc()
	m.RemoteTimeoutsInc()
	m.FallbackInc()
	m.LatencyObserve(0.02)
	m.ConfidenceObserve(0.85)
	m.PositionsReceived.Inc()
	m.TracksStored.Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.PredictionsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RemoteFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RemoteTimeouts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FallbackUse))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PositionsReceived))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TracksStored))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	assert.True(t, names["prediction_latency_seconds"])
	assert.True(t, names["model_confidence_scores"])
}

func TestIsolatedRegistries(t *testing.T) {
	a := NewWithRegistry(prometheus.NewRegistry())
	b := NewWithRegistry(prometheus.NewRegistry())

	a.PredictionsInc()

	assert.Equal(t, 1.0, testutil.ToFloat64(a.PredictionsTotal))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.PredictionsTotal))
}
