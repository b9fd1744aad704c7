package predict

import (
	"fmt"
	"math"

	"darkwatch/internal/geo"
)

// Velocity is a predicted drift vector in degrees of lat/lon per hour.
// Confidence is nil when the model supplies none.
type Velocity struct {
	DLatPerHour float64
	DLonPerHour float64
	Confidence  *float64
}

// VelocityModel is the frozen sequence model behind the learned path.
// It consumes a SequenceLength x NumFeatures window in the normalizer's
// feature space and emits a normalized velocity vector. Implementations
// must be safe for concurrent use.
type VelocityModel interface {
	Infer(features [][]float64) (Velocity, error)
}

// Learned forecasts by inferring a velocity vector once per request and
// scaling it linearly with the horizon afterwards. Predicting velocity
// rather than displacement keeps the forecast monotone and continuous
// in the gap duration.
type Learned struct {
	Normalizer  *Normalizer
	Model       VelocityModel
	Uncertainty UncertaintyModel
}

// NewLearned wires a normalizer and model into a forecaster with the
// reference uncertainty calibration.
func NewLearned(n *Normalizer, m VelocityModel) *Learned {
	return &Learned{Normalizer: n, Model: m, Uncertainty: NewUncertaintyModel()}
}

// Forecast encodes the sequence, infers a velocity, and applies the
// effective horizon (gapHours times aggression) to the decoded vector.
// Returns ErrArtifactMissing when either frozen artifact is absent.
func (l *Learned) Forecast(last TrackPoint, sequence []TrackPoint, gapHours, aggression float64) (Result, error) {
	if l == nil || l.Normalizer == nil {
		return Result{}, fmt.Errorf("%w: normalizer not loaded", ErrArtifactMissing)
	}
	if l.Model == nil {
		return Result{}, fmt.Errorf("%w: sequence model not loaded", ErrArtifactMissing)
	}

	features := l.Normalizer.Encode(last, sequence)

	raw, err := l.Model.Infer(features)
	if err != nil {
		return Result{}, fmt.Errorf("velocity inference: %w", err)
	}
	v := l.Normalizer.Decode(raw)
	if math.IsNaN(v.DLatPerHour) || math.IsNaN(v.DLonPerHour) ||
		math.IsInf(v.DLatPerHour, 0) || math.IsInf(v.DLonPerHour, 0) {
		return Result{}, fmt.Errorf("%w: non-finite velocity from model", ErrArtifactIncompatible)
	}

	horizon := gapHours * aggression
	lat := last.Lat + v.DLatPerHour*horizon
	if lat > 90 {
		lat = 90
	} else if lat < -90 {
		lat = -90
	}
	lon := geo.NormalizeLon(last.Lon + v.DLonPerHour*horizon)

	// The learned model carries epistemic uncertainty on top of
	// physics, so the radius must grow at least as fast as dead
	// reckoning's: use whichever speed is larger, implied or reported.
	speed := impliedSpeedKnots(v, last.Lat)
	if last.Speed > speed {
		speed = last.Speed
	}
	nm, dlat, dlon := l.Uncertainty.At(horizon, speed, last.Lat)

	return Result{
		PredictedPosition:  [2]float64{lat, lon},
		UncertaintyNM:      nm,
		UncertaintyDegrees: [2]float64{dlat, dlon},
		Method:             MethodLearned,
		Confidence:         v.Confidence,
	}, nil
}

// impliedSpeedKnots converts a degrees-per-hour drift vector to knots
// at the given latitude.
func impliedSpeedKnots(v Velocity, lat float64) float64 {
	cosLat := math.Cos(lat * math.Pi / 180)
	if cosLat < minCosLat {
		cosLat = minCosLat
	}
	northNM := v.DLatPerHour * 60
	eastNM := v.DLonPerHour * 60 * cosLat
	return math.Hypot(northNM, eastNM)
}
