// Package metrics provides Prometheus metrics collection for the
// darkwatch prediction service. It defines and manages all prediction,
// ingest, and system metrics that are exposed via the Prometheus
// metrics endpoint for monitoring and alerting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the prediction service.
type Metrics struct {
	// Prediction metrics
	PredictionsTotal  prometheus.Counter   // Total number of predictions issued
	RemoteFailures    prometheus.Counter   // Total number of remote model failures
	RemoteTimeouts    prometheus.Counter   // Total number of remote model timeouts
	FallbackUse       prometheus.Counter   // Total number of dead-reckoning fallbacks
	PredictionLatency prometheus.Histogram // End-to-end prediction latency in seconds
	ConfidenceScores  prometheus.Histogram // Distribution of model confidence scores

	// Ingest and data metrics
	PositionsReceived prometheus.Counter // Total number of AIS position reports received
	WSReconnects      prometheus.Counter // Total number of WebSocket reconnections
	TracksStored      prometheus.Counter // Total number of track points persisted

	// System metrics
	ErrorsTotal prometheus.Counter // Total number of errors encountered
}

// New creates and registers all Prometheus metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
// This allows for isolated metric collection in tests without affecting
// the global Prometheus registry.
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		PredictionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "predictions_total",
			Help: "Total number of predictions issued",
		}),
		RemoteFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "remote_model_failures_total",
			Help: "Total number of remote model failures",
		}),
		RemoteTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "remote_model_timeouts_total",
			Help: "Total number of remote model timeouts",
		}),
		FallbackUse: factory.NewCounter(prometheus.CounterOpts{
			Name: "fallback_use_total",
			Help: "Total number of dead-reckoning fallbacks",
		}),
		PredictionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "prediction_latency_seconds",
			Help:    "End-to-end prediction latency in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		}),
		ConfidenceScores: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "model_confidence_scores",
			Help:    "Distribution of model confidence scores",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		PositionsReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "positions_received_total",
			Help: "Total number of AIS position reports received",
		}),
		WSReconnects: factory.NewCounter(prometheus.CounterOpts{
			Name: "ws_reconnects_total",
			Help: "Total number of WebSocket reconnections",
		}),
		TracksStored: factory.NewCounter(prometheus.CounterOpts{
			Name: "tracks_stored_total",
			Help: "Total number of track points persisted",
		}),
		ErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors encountered",
		}),
	}
}

// PredictionsInc increments the prediction counter.
func (m *Metrics) PredictionsInc() { m.PredictionsTotal.Inc() }

// RemoteFailuresInc increments the remote failure counter.
func (m *Metrics) RemoteFailuresInc() { m.RemoteFailures.Inc() }

// RemoteTimeoutsInc increments the remote timeout counter.
func (m *Metrics) RemoteTimeoutsInc() { m.RemoteTimeouts.Inc() }

// FallbackInc increments the fallback counter.
func (m *Metrics) FallbackInc() { m.FallbackUse.Inc() }

// LatencyObserve records an end-to-end prediction latency sample.
func (m *Metrics) LatencyObserve(seconds float64) { m.PredictionLatency.Observe(seconds) }

// ConfidenceObserve records a model confidence sample.
func (m *Metrics) ConfidenceObserve(score float64) { m.ConfidenceScores.Observe(score) }
