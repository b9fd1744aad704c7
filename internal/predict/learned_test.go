package predict

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubModel returns a fixed normalized velocity, optionally with a
// confidence, standing in for the frozen sequence model.
type stubModel struct {
	v   Velocity
	err error
}

func (s stubModel) Infer(features [][]float64) (Velocity, error) {
	if s.err != nil {
		return Velocity{}, s.err
	}
	return s.v, nil
}

func confidence(v float64) *float64 { return &v }

func TestLearnedHorizonScalesLinearly(t *testing.T) {
	t.Parallel()

	// Normalized (0.1, 0.2) decoded by velocity_scale 0.5 gives
	// (0.05, 0.10) degrees/hour.
	l := NewLearned(testNormalizer(), stubModel{v: Velocity{DLatPerHour: 0.1, DLonPerHour: 0.2}})
	last := TrackPoint{Lat: 5, Lon: -10, Speed: 8, Course: 45}

	six, err := l.Forecast(last, nil, 6, 1.0)
	require.NoError(t, err)
	twelve, err := l.Forecast(last, nil, 12, 1.0)
	require.NoError(t, err)

	// Doubling the gap doubles the net displacement.
	assert.InDelta(t, 2*(six.PredictedPosition[0]-last.Lat), twelve.PredictedPosition[0]-last.Lat, 1e-9)
	assert.InDelta(t, 2*(six.PredictedPosition[1]-last.Lon), twelve.PredictedPosition[1]-last.Lon, 1e-9)

	assert.InDelta(t, last.Lat+0.05*6, six.PredictedPosition[0], 1e-9)
	assert.InDelta(t, last.Lon+0.10*6, six.PredictedPosition[1], 1e-9)
	assert.Equal(t, MethodLearned, six.Method)
}

func TestLearnedAggressionMatchesLongerGap(t *testing.T) {
	t.Parallel()

	l := NewLearned(testNormalizer(), stubModel{v: Velocity{DLatPerHour: -0.2, DLonPerHour: 0.1}})
	last := TrackPoint{Lat: 40, Lon: 3, Speed: 10, Course: 180}

	aggressive, err := l.Forecast(last, nil, 6, 2.0)
	require.NoError(t, err)
	extended, err := l.Forecast(last, nil, 12, 1.0)
	require.NoError(t, err)

	// gap times aggression is the effective horizon on both counts.
	assert.Equal(t, extended.PredictedPosition, aggressive.PredictedPosition)
	assert.Equal(t, extended.UncertaintyNM, aggressive.UncertaintyNM)
}

func TestLearnedConfidencePassthrough(t *testing.T) {
	t.Parallel()

	withConf := NewLearned(testNormalizer(), stubModel{v: Velocity{DLatPerHour: 0.1, Confidence: confidence(0.85)}})
	res, err := withConf.Forecast(TrackPoint{Lat: 1, Lon: 1}, nil, 3, 1.0)
	require.NoError(t, err)
	require.NotNil(t, res.Confidence)
	assert.Equal(t, 0.85, *res.Confidence)

	withoutConf := NewLearned(testNormalizer(), stubModel{v: Velocity{DLatPerHour: 0.1}})
	res, err = withoutConf.Forecast(TrackPoint{Lat: 1, Lon: 1}, nil, 3, 1.0)
	require.NoError(t, err)
	// Absent and zero confidence are distinct states.
	assert.Nil(t, res.Confidence)
}

func TestLearnedUncertaintyAtLeastDeadReckoning(t *testing.T) {
	t.Parallel()

	// Slow drift from the model, fast last reported speed: the learned
	// radius must not undercut the physics one.
	l := NewLearned(testNormalizer(), stubModel{v: Velocity{DLatPerHour: 0.01}})
	last := TrackPoint{Lat: 20, Lon: 30, Speed: 18, Course: 90}

	learned, err := l.Forecast(last, nil, 10, 1.0)
	require.NoError(t, err)

	physics := NewDeadReckoning().Forecast(last, 10)
	assert.GreaterOrEqual(t, learned.UncertaintyNM, physics.UncertaintyNM)
}

func TestLearnedMissingArtifacts(t *testing.T) {
	t.Parallel()

	var nilForecaster *Learned
	_, err := nilForecaster.Forecast(TrackPoint{}, nil, 1, 1.0)
	assert.ErrorIs(t, err, ErrArtifactMissing)

	noModel := NewLearned(testNormalizer(), nil)
	_, err = noModel.Forecast(TrackPoint{}, nil, 1, 1.0)
	assert.ErrorIs(t, err, ErrArtifactMissing)

	noNormalizer := NewLearned(nil, stubModel{})
	_, err = noNormalizer.Forecast(TrackPoint{}, nil, 1, 1.0)
	assert.ErrorIs(t, err, ErrArtifactMissing)
}

func TestLearnedRejectsNonFiniteVelocity(t *testing.T) {
	t.Parallel()

	nan := stubModel{v: Velocity{DLatPerHour: nanValue()}}
	l := NewLearned(testNormalizer(), nan)

	_, err := l.Forecast(TrackPoint{Lat: 0, Lon: 0}, nil, 1, 1.0)
	assert.ErrorIs(t, err, ErrArtifactIncompatible)
}

func TestLearnedPropagatesInferenceError(t *testing.T) {
	t.Parallel()

	boom := errors.New("runtime exploded")
	l := NewLearned(testNormalizer(), stubModel{err: boom})

	_, err := l.Forecast(TrackPoint{Lat: 0, Lon: 0}, nil, 1, 1.0)
	assert.ErrorIs(t, err, boom)
}

func nanValue() float64 {
	zero := 0.0
	return zero / zero
}
