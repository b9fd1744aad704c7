// Package predict implements the dark-interval position prediction
// engine: physics-based dead reckoning, the learned velocity forecaster
// and its frozen normalizer artifact, the probability-cloud generator,
// and the orchestrator that arbitrates between the remote model service
// and the local fallback.
package predict

import "time"

// Model selector values accepted on the wire.
const (
	ModelBaseline = "baseline"
	ModelLSTM     = "lstm"
)

// Method tags identifying which forecaster produced a result.
const (
	MethodDeadReckoning = "dead_reckoning"
	MethodLearned       = "learned_velocity"
	MethodFallback      = "dead_reckoning_fallback"
)

// Aggression factor bounds. Values outside are clamped, matching the
// remote service's behavior so both paths see the same effective factor.
const (
	MinAggression = 0.25
	MaxAggression = 10.0
)

// TrackPoint is a single observed vessel position. Speed is in knots,
// course in degrees true. Immutable once recorded.
type TrackPoint struct {
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Speed     float64   `json:"speed,omitempty"`
	Course    float64   `json:"course,omitempty"`
	Timestamp time.Time `json:"timestamp,omitzero"`
}

// Request is the externally-visible prediction request.
type Request struct {
	VesselID         string       `json:"vessel_id"`
	LastPosition     TrackPoint   `json:"last_position"`
	Sequence         []TrackPoint `json:"sequence,omitempty"`
	GapHours         float64      `json:"gap_duration_hours"`
	ModelType        string       `json:"model_type"`
	AggressionFactor float64      `json:"aggression_factor,omitempty"`
}

// Result is a single point forecast with its calibrated uncertainty.
// Confidence is nil when the producing model supplies none; nil and
// zero are distinct states.
type Result struct {
	PredictedPosition  [2]float64 `json:"predicted_position"`  // [lat, lon]
	UncertaintyNM      float64    `json:"uncertainty_nm"`
	UncertaintyDegrees [2]float64 `json:"uncertainty_degrees"` // [dlat, dlon]
	DistanceTraveledNM float64    `json:"distance_traveled_nm"`
	Method             string     `json:"method"`
	Confidence         *float64   `json:"confidence,omitempty"`
}

// Geometry is a GeoJSON point geometry; coordinates are [lon, lat].
type Geometry struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

// FeatureProperties carries the normalized probability of a cloud cell.
type FeatureProperties struct {
	Probability float64 `json:"probability"`
}

// Feature is a single weighted point of a probability cloud.
type Feature struct {
	Type       string            `json:"type"`
	Geometry   Geometry          `json:"geometry"`
	Properties FeatureProperties `json:"properties"`
}

// FeatureCollection is a GeoJSON probability cloud whose feature
// probabilities sum to 1.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// Metadata echoes the request parameters the response was computed
// under. Warning is set when a degraded (fallback) path was taken.
type Metadata struct {
	ModelType        string  `json:"model_type"`
	GapHours         float64 `json:"gap_duration_hours"`
	AggressionFactor float64 `json:"aggression_factor"`
	Warning          string  `json:"warning,omitempty"`
}

// Response is the assembled prediction response.
type Response struct {
	VesselID         string            `json:"vessel_id"`
	Prediction       Result            `json:"prediction"`
	ProbabilityCloud FeatureCollection `json:"probability_cloud"`
	Metadata         Metadata          `json:"metadata"`
}
