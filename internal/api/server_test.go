package api

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"darkwatch/internal/predict"
	"darkwatch/internal/storage"
)

type stubSequences struct {
	asked  string
	askedN int
	points []predict.TrackPoint
}

func (s *stubSequences) RecentTrack(vesselID string, n int) ([]predict.TrackPoint, error) {
	s.asked = vesselID
	s.askedN = n
	return s.points, nil
}

type stubHistory struct {
	records []storage.PredictionRecord
	stored  []predict.Response
}

func (s *stubHistory) StorePrediction(resp predict.Response) error {
	s.stored = append(s.stored, resp)
	return nil
}

func (s *stubHistory) RecentPredictions(vesselID string, n int) ([]storage.PredictionRecord, error) {
	return s.records, nil
}

func newTestServer(t *testing.T, sequences SequenceSource, history PredictionLog) *httptest.Server {
	t.Helper()
	srv := NewServer(predict.NewOrchestrator(), sequences, history, 0)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postPredict(t *testing.T, ts *httptest.Server, body string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(ts.URL+"/api/v1/predict", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func TestPredictBaselineEndToEnd(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, nil, nil)
	resp, body := postPredict(t, ts, `{
		"vessel_id": "mmsi-314159",
		"last_position": {"lat": 5.0, "lon": -10.0, "speed": 8.5, "course": 135.0},
		"gap_duration_hours": 12,
		"model_type": "baseline"
	}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out predict.Response
	require.NoError(t, json.Unmarshal(body, &out))

	assert.Equal(t, "mmsi-314159", out.VesselID)
	assert.Equal(t, predict.MethodDeadReckoning, out.Prediction.Method)
	assert.InDelta(t, 3.80, out.Prediction.PredictedPosition[0], 0.01)
	assert.InDelta(t, -8.80, out.Prediction.PredictedPosition[1], 0.01)
	assert.InDelta(t, 15.2, out.Prediction.UncertaintyNM, 0.001)
	assert.Equal(t, "FeatureCollection", out.ProbabilityCloud.Type)
	require.Len(t, out.ProbabilityCloud.Features, 900)

	sum := 0.0
	for _, f := range out.ProbabilityCloud.Features {
		sum += f.Properties.Probability
	}
	assert.InDelta(t, 1.0, sum, 1e-6)

	assert.Equal(t, predict.ModelBaseline, out.Metadata.ModelType)
	assert.Equal(t, 12.0, out.Metadata.GapHours)
	assert.Empty(t, out.Metadata.Warning)
}

func TestPredictRejectsInvalidLatitude(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, nil, nil)
	resp, body := postPredict(t, ts, `{
		"vessel_id": "v",
		"last_position": {"lat": 95.0, "lon": 0, "speed": 5},
		"gap_duration_hours": 1,
		"model_type": "baseline"
	}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var out struct {
		Error string `json:"error"`
		Field string `json:"field"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "last_position", out.Field)
	assert.NotEmpty(t, out.Error)
}

func TestPredictRejectsMalformedBody(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, nil, nil)
	resp, _ := postPredict(t, ts, `{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPredictMethodNotAllowed(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, nil, nil)
	resp, err := http.Get(ts.URL + "/api/v1/predict")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestPredictBackfillsSequenceForLearnedModel(t *testing.T) {
	t.Parallel()

	seq := &stubSequences{points: []predict.TrackPoint{
		{Lat: 5.1, Lon: -10.1, Speed: 8, Course: 135, Timestamp: time.Now().Add(-time.Hour)},
		{Lat: 5.0, Lon: -10.0, Speed: 8.5, Course: 135, Timestamp: time.Now()},
	}}
	ts := newTestServer(t, seq, nil)

	resp, body := postPredict(t, ts, `{
		"vessel_id": "mmsi-7",
		"last_position": {"lat": 5.0, "lon": -10.0, "speed": 8.5, "course": 135.0},
		"gap_duration_hours": 6,
		"model_type": "lstm"
	}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, "mmsi-7", seq.asked)
	assert.Equal(t, predict.SequenceLength, seq.askedN)

	// No remote service and no local artifacts are configured, so the
	// learned request degrades to dead reckoning with a warning.
	var out predict.Response
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, predict.MethodFallback, out.Prediction.Method)
	assert.NotEmpty(t, out.Metadata.Warning)
	assert.False(t, math.IsNaN(out.Prediction.PredictedPosition[0]))
}

func TestPredictionsHistoryEndpoint(t *testing.T) {
	t.Parallel()

	history := &stubHistory{records: []storage.PredictionRecord{{
		VesselID:  "mmsi-9",
		CreatedAt: time.Now(),
		Prediction: predict.Result{
			PredictedPosition: [2]float64{3.8, -8.8},
			Method:            predict.MethodDeadReckoning,
		},
	}}}
	ts := newTestServer(t, nil, history)

	resp, err := http.Get(ts.URL + "/api/v1/predictions?vessel_id=mmsi-9")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var records []storage.PredictionRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&records))
	require.Len(t, records, 1)
	assert.Equal(t, "mmsi-9", records[0].VesselID)
}

func TestPredictPersistsResponse(t *testing.T) {
	t.Parallel()

	history := &stubHistory{}
	ts := newTestServer(t, nil, history)

	resp, _ := postPredict(t, ts, `{
		"vessel_id": "mmsi-11",
		"last_position": {"lat": 1.0, "lon": 2.0, "speed": 5.0, "course": 90.0},
		"gap_duration_hours": 3,
		"model_type": "baseline"
	}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.Len(t, history.stored, 1)
	assert.Equal(t, "mmsi-11", history.stored[0].VesselID)
}

func TestPredictionsRequiresVesselID(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, nil, &stubHistory{})
	resp, err := http.Get(ts.URL + "/api/v1/predictions")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPredictionsDisabledWithoutStore(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, nil, nil)
	resp, err := http.Get(ts.URL + "/api/v1/predictions?vessel_id=x")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t, nil, nil)
	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "ok", out["status"])
}
