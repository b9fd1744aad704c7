package predict

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultRemoteTimeout bounds the single remote inference attempt.
const DefaultRemoteTimeout = 10 * time.Second

// Degradation warnings surfaced in response metadata when a fallback
// path was taken.
const (
	WarnRemoteUnavailable = "remote model service unavailable; dead-reckoning fallback used"
	WarnArtifactMissing   = "learned model artifacts unavailable; dead-reckoning fallback used"
)

// MetricsInterface defines the metrics methods the orchestrator needs.
type MetricsInterface interface {
	PredictionsInc()
	RemoteFailuresInc()
	RemoteTimeoutsInc()
	FallbackInc()
	LatencyObserve(float64)
	ConfidenceObserve(float64)
}

// RemoteForecaster is the remote model-inference service seen by the
// orchestrator. *RemoteClient implements it.
type RemoteForecaster interface {
	Forecast(ctx context.Context, req Request) (Result, FeatureCollection, error)
}

// Orchestrator validates requests, selects a forecaster, manages the
// primary/fallback split, and assembles the response contract. It holds
// no per-request state and is safe for concurrent use.
type Orchestrator struct {
	deadReckoning *DeadReckoning
	learned       *Learned
	remote        RemoteForecaster
	cloud         CloudGenerator
	timeout       time.Duration
	metrics       MetricsInterface
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRemote attaches the remote inference service as the primary
// learned path.
func WithRemote(r RemoteForecaster) Option {
	return func(o *Orchestrator) { o.remote = r }
}

// WithLearned attaches an in-process learned forecaster, used for the
// lstm path when no remote service is configured.
func WithLearned(l *Learned) Option {
	return func(o *Orchestrator) { o.learned = l }
}

// WithUncertainty overrides the dead-reckoning uncertainty calibration.
func WithUncertainty(u UncertaintyModel) Option {
	return func(o *Orchestrator) { o.deadReckoning.Uncertainty = u }
}

// WithCloud overrides the probability-cloud lattice shape.
func WithCloud(g CloudGenerator) Option {
	return func(o *Orchestrator) { o.cloud = g }
}

// WithTimeout bounds the remote attempt.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithMetrics attaches a metrics sink.
func WithMetrics(m MetricsInterface) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// NewOrchestrator builds an orchestrator with the reference dead
// reckoning forecaster and cloud defaults.
func NewOrchestrator(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		deadReckoning: NewDeadReckoning(),
		cloud:         NewCloudGenerator(DefaultCloudGridSize, DefaultCloudNumStd),
		timeout:       DefaultRemoteTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// outcome is the internal success/degraded union the response is
// assembled from.
type outcome struct {
	result   Result
	cloud    FeatureCollection
	hasCloud bool
	warning  string
}

// Predict runs one prediction request end to end. The only error it
// returns is *InvalidRequestError; every structurally valid request
// produces a complete response, degraded paths included.
func (o *Orchestrator) Predict(ctx context.Context, req Request) (Response, error) {
	start := time.Now()

	if req.AggressionFactor == 0 {
		req.AggressionFactor = 1.0
	}
	if err := validate(req); err != nil {
		return Response{}, err
	}
	aggression := clampAggression(req.AggressionFactor)

	var out outcome
	switch req.ModelType {
	case ModelLSTM:
		out = o.predictLearned(ctx, req, aggression)
	default:
		out = o.predictLocal(req, aggression, MethodDeadReckoning, "")
	}

	if !out.hasCloud {
		out.cloud = o.cloud.Generate(
			out.result.PredictedPosition,
			out.result.UncertaintyDegrees[0],
			out.result.UncertaintyDegrees[1],
		)
	}

	if o.metrics != nil {
		o.metrics.PredictionsInc()
		o.metrics.LatencyObserve(time.Since(start).Seconds())
		if out.result.Confidence != nil {
			o.metrics.ConfidenceObserve(*out.result.Confidence)
		}
	}

	log.Debug().
		Str("vessel_id", req.VesselID).
		Str("method", out.result.Method).
		Float64("gap_hours", req.GapHours).
		Float64("aggression", aggression).
		Float64("uncertainty_nm", out.result.UncertaintyNM).
		Msg("prediction assembled")

	return Response{
		VesselID:         req.VesselID,
		Prediction:       out.result,
		ProbabilityCloud: out.cloud,
		Metadata: Metadata{
			ModelType:        req.ModelType,
			GapHours:         req.GapHours,
			AggressionFactor: aggression,
			Warning:          out.warning,
		},
	}, nil
}

// predictLearned runs the lstm path: one bounded remote attempt when a
// service is configured, otherwise the in-process learned forecaster,
// with dead reckoning as the terminal fallback for every failure mode.
func (o *Orchestrator) predictLearned(ctx context.Context, req Request, aggression float64) outcome {
	if o.remote != nil {
		attemptCtx, cancel := context.WithTimeout(ctx, o.timeout)
		defer cancel()

		// Aggression is passed through unmodified; the service
		// applies the horizon scaling on its side.
		result, cloud, err := o.remote.Forecast(attemptCtx, req)
		if err == nil {
			return outcome{result: result, cloud: cloud, hasCloud: len(cloud.Features) > 0}
		}

		log.Warn().Err(err).Str("vessel_id", req.VesselID).Msg("remote inference failed, falling back to dead reckoning")
		if o.metrics != nil {
			o.metrics.RemoteFailuresInc()
			if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
				o.metrics.RemoteTimeoutsInc()
			}
		}
		return o.predictLocal(req, aggression, MethodFallback, WarnRemoteUnavailable)
	}

	result, err := o.learned.Forecast(req.LastPosition, req.Sequence, req.GapHours, aggression)
	if err == nil {
		return outcome{result: result}
	}

	log.Warn().Err(err).Str("vessel_id", req.VesselID).Msg("learned forecast failed, falling back to dead reckoning")
	if o.metrics != nil {
		o.metrics.RemoteFailuresInc()
	}
	return o.predictLocal(req, aggression, MethodFallback, WarnArtifactMissing)
}

// predictLocal runs dead reckoning with the aggression factor applied
// to the horizon, which is where the local path absorbs the scaling the
// remote service would have applied server-side.
func (o *Orchestrator) predictLocal(req Request, aggression float64, method, warning string) outcome {
	if method == MethodFallback && o.metrics != nil {
		o.metrics.FallbackInc()
	}

	result := o.deadReckoning.Forecast(req.LastPosition, req.GapHours*aggression)
	result.Method = method
	return outcome{result: result, warning: warning}
}

func clampAggression(a float64) float64 {
	if a < MinAggression {
		return MinAggression
	}
	if a > MaxAggression {
		return MaxAggression
	}
	return a
}

func validate(req Request) error {
	if req.VesselID == "" {
		return invalidField("vessel_id", "must not be empty")
	}
	if err := validatePoint("last_position", req.LastPosition); err != nil {
		return err
	}
	if !(req.GapHours > 0) || math.IsInf(req.GapHours, 0) {
		return invalidField("gap_duration_hours", "must be > 0, got %v", req.GapHours)
	}
	if req.ModelType != ModelBaseline && req.ModelType != ModelLSTM {
		return invalidField("model_type", "must be %q or %q, got %q", ModelBaseline, ModelLSTM, req.ModelType)
	}
	if !(req.AggressionFactor > 0) || math.IsInf(req.AggressionFactor, 0) {
		return invalidField("aggression_factor", "must be > 0, got %v", req.AggressionFactor)
	}
	for i, p := range req.Sequence {
		if err := validatePoint("sequence", p); err != nil {
			var ire *InvalidRequestError
			if errors.As(err, &ire) {
				return invalidField("sequence", "point %d: %s", i, ire.Reason)
			}
			return err
		}
	}
	return nil
}

func validatePoint(field string, p TrackPoint) error {
	switch {
	case math.IsNaN(p.Lat) || p.Lat < -90 || p.Lat > 90:
		return invalidField(field, "latitude out of range [-90, 90]: %v", p.Lat)
	case math.IsNaN(p.Lon) || p.Lon < -180 || p.Lon > 180:
		return invalidField(field, "longitude out of range [-180, 180]: %v", p.Lon)
	case math.IsNaN(p.Speed) || p.Speed < 0 || math.IsInf(p.Speed, 0):
		return invalidField(field, "speed must be >= 0 knots: %v", p.Speed)
	case math.IsNaN(p.Course) || p.Course < 0 || p.Course >= 360:
		return invalidField(field, "course out of range [0, 360): %v", p.Course)
	}
	return nil
}
