package predict

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/rs/zerolog/log"
)

// Frozen artifact contract. The model consumes windows of
// SequenceLength points, each encoded as NumFeatures values:
// [lat_rel, lon_rel, speed_norm, course_sin, course_cos].
const (
	SequenceLength  = 20
	NumFeatures     = 5
	artifactVersion = 3

	// paddingSpeedKnots substitutes for an unreported speed when a
	// request carries no usable sequence and the window is synthesized
	// from the last position alone.
	paddingSpeedKnots = 5.0
)

// Normalizer is the frozen, externally-fitted bidirectional mapping
// between raw trajectory windows and the model's feature space. It is
// read-only; the engine never refits it.
type Normalizer struct {
	Version       int                `json:"version"`
	Stats         map[string]float64 `json:"stats"`
	CoordScale    float64            `json:"coord_scale"`
	MaxSpeed      float64            `json:"max_speed"`
	VelocityScale float64            `json:"velocity_scale"`
	Fitted        bool               `json:"fitted"`
}

// LoadNormalizer reads a normalizer artifact from disk. An absent file
// maps to ErrArtifactMissing; a present but unusable one to
// ErrArtifactIncompatible.
func LoadNormalizer(path string) (*Normalizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrArtifactMissing, path)
		}
		return nil, fmt.Errorf("read normalizer artifact: %w", err)
	}

	var n Normalizer
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("%w: malformed artifact %s: %v", ErrArtifactIncompatible, path, err)
	}
	if err := n.validate(); err != nil {
		return nil, err
	}

	log.Info().
		Str("path", path).
		Int("version", n.Version).
		Float64("velocity_scale", n.VelocityScale).
		Msg("normalizer artifact loaded")
	return &n, nil
}

func (n *Normalizer) validate() error {
	switch {
	case n.Version != artifactVersion:
		return fmt.Errorf("%w: version %d, want %d", ErrArtifactIncompatible, n.Version, artifactVersion)
	case !n.Fitted:
		return fmt.Errorf("%w: artifact is not fitted", ErrArtifactIncompatible)
	case n.VelocityScale <= 0 || math.IsNaN(n.VelocityScale):
		return fmt.Errorf("%w: non-positive velocity scale %v", ErrArtifactIncompatible, n.VelocityScale)
	case n.MaxSpeed <= 0 || math.IsNaN(n.MaxSpeed):
		return fmt.Errorf("%w: non-positive max speed %v", ErrArtifactIncompatible, n.MaxSpeed)
	}
	return nil
}

// Encode maps a raw trajectory window to the model's feature space.
// Positions are taken relative to the last point and scaled; course is
// expanded to sin/cos. When the sequence is absent or shorter than
// SequenceLength the whole window is synthesized from the last known
// position, with a default speed if none was reported.
func (n *Normalizer) Encode(last TrackPoint, sequence []TrackPoint) [][]float64 {
	window := make([]TrackPoint, 0, SequenceLength)
	if len(sequence) >= SequenceLength {
		window = append(window, sequence[len(sequence)-SequenceLength:]...)
	} else {
		pad := last
		if pad.Speed == 0 {
			pad.Speed = paddingSpeedKnots
		}
		for i := 0; i < SequenceLength; i++ {
			window = append(window, pad)
		}
	}

	ref := window[len(window)-1]
	coordScale := n.Stats["lat_std"]
	if coordScale < 1.0 {
		coordScale = 1.0
	}

	features := make([][]float64, SequenceLength)
	for i, p := range window {
		courseRad := p.Course * math.Pi / 180
		features[i] = []float64{
			(p.Lat - ref.Lat) / coordScale,
			(p.Lon - ref.Lon) / coordScale,
			p.Speed / n.MaxSpeed,
			math.Sin(courseRad),
			math.Cos(courseRad),
		}
	}
	return features
}

// Decode maps a normalized model output back to a real-world velocity
// in degrees of lat/lon per hour.
func (n *Normalizer) Decode(v Velocity) Velocity {
	v.DLatPerHour *= n.VelocityScale
	v.DLonPerHour *= n.VelocityScale
	return v
}
