package predict

import (
	"math"
	"testing"
)

func TestDeadReckoningReferenceScenario(t *testing.T) {
	t.Parallel()

	dr := NewDeadReckoning()
	last := TrackPoint{Lat: 5.0, Lon: -10.0, Speed: 8.5, Course: 135}

	res := dr.Forecast(last, 12)

	if math.Abs(res.PredictedPosition[0]-3.80) > 0.01 {
		t.Errorf("expected lat ~ 3.80, got %.4f", res.PredictedPosition[0])
	}
	if math.Abs(res.PredictedPosition[1]-(-8.80)) > 0.01 {
		t.Errorf("expected lon ~ -8.80, got %.4f", res.PredictedPosition[1])
	}
	if math.Abs(res.UncertaintyNM-15.2) > 1e-9 {
		t.Errorf("expected uncertainty 15.2 nm, got %v", res.UncertaintyNM)
	}
	if math.Abs(res.UncertaintyDegrees[0]-0.2533) > 0.001 {
		t.Errorf("expected dlat ~ 0.2533, got %v", res.UncertaintyDegrees[0])
	}
	if math.Abs(res.UncertaintyDegrees[1]-0.2542) > 0.001 {
		t.Errorf("expected dlon ~ 0.2542, got %v", res.UncertaintyDegrees[1])
	}
	if res.DistanceTraveledNM != 102 {
		t.Errorf("expected 102 nm traveled, got %v", res.DistanceTraveledNM)
	}
	if res.Method != MethodDeadReckoning {
		t.Errorf("expected method %q, got %q", MethodDeadReckoning, res.Method)
	}
	if res.Confidence != nil {
		t.Error("dead reckoning must not report a confidence")
	}
}

func TestDeadReckoningStationaryVessel(t *testing.T) {
	t.Parallel()

	dr := NewDeadReckoning()
	last := TrackPoint{Lat: -33.5, Lon: 151.2, Speed: 0, Course: 270}

	res := dr.Forecast(last, 24)

	if res.PredictedPosition[0] != last.Lat || res.PredictedPosition[1] != last.Lon {
		t.Errorf("stationary vessel moved: %v", res.PredictedPosition)
	}
	if res.DistanceTraveledNM != 0 {
		t.Errorf("expected 0 nm traveled, got %v", res.DistanceTraveledNM)
	}
	if res.UncertaintyNM != DefaultBaseUncertaintyNM {
		t.Errorf("expected base uncertainty only, got %v", res.UncertaintyNM)
	}
}

func TestDeadReckoningDeterministic(t *testing.T) {
	t.Parallel()

	dr := NewDeadReckoning()
	last := TrackPoint{Lat: 48.1, Lon: -5.3, Speed: 14.2, Course: 222.5}

	first := dr.Forecast(last, 7.25)
	for i := 0; i < 50; i++ {
		if again := dr.Forecast(last, 7.25); again != first {
			t.Fatalf("run %d: results diverged: %+v vs %+v", i, again, first)
		}
	}
}
