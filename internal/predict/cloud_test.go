package predict

import (
	"math"
	"testing"
)

func cloudSum(fc FeatureCollection) float64 {
	var total float64
	for _, f := range fc.Features {
		total += f.Properties.Probability
	}
	return total
}

func TestCloudNormalization(t *testing.T) {
	t.Parallel()

	g := NewCloudGenerator(30, 3.0)
	fc := g.Generate([2]float64{3.80, -8.80}, 0.2533, 0.2542)

	if len(fc.Features) != 900 {
		t.Fatalf("expected 900 features, got %d", len(fc.Features))
	}
	if total := cloudSum(fc); math.Abs(total-1.0) > 1e-6 {
		t.Errorf("probabilities sum to %v, want 1", total)
	}
	for i, f := range fc.Features {
		if f.Properties.Probability < 0 {
			t.Fatalf("feature %d has negative probability %v", i, f.Properties.Probability)
		}
	}
	if fc.Type != "FeatureCollection" {
		t.Errorf("unexpected collection type %q", fc.Type)
	}
}

func TestCloudSinglePointGrid(t *testing.T) {
	t.Parallel()

	g := NewCloudGenerator(1, 2.0)
	fc := g.Generate([2]float64{10, 20}, 0.1, 0.1)

	if len(fc.Features) != 1 {
		t.Fatalf("expected 1 feature, got %d", len(fc.Features))
	}
	f := fc.Features[0]
	if f.Properties.Probability != 1 {
		t.Errorf("single point must carry probability 1, got %v", f.Properties.Probability)
	}
	// GeoJSON coordinates are [lon, lat].
	if f.Geometry.Coordinates[0] != 20 || f.Geometry.Coordinates[1] != 10 {
		t.Errorf("unexpected coordinates %v", f.Geometry.Coordinates)
	}
}

func TestCloudCenterHoldsMaximum(t *testing.T) {
	t.Parallel()

	center := [2]float64{3.80, -8.80}
	g := NewCloudGenerator(5, 2.0)
	fc := g.Generate(center, 0.25, 0.25)

	maxIdx := 0
	for i, f := range fc.Features {
		if f.Properties.Probability > fc.Features[maxIdx].Properties.Probability {
			maxIdx = i
		}
	}

	// With an odd grid the center cell sits exactly on the center.
	best := fc.Features[maxIdx]
	if math.Abs(best.Geometry.Coordinates[1]-center[0]) > 1e-9 ||
		math.Abs(best.Geometry.Coordinates[0]-center[1]) > 1e-9 {
		t.Errorf("maximum probability not at center: %v", best.Geometry.Coordinates)
	}
}

func TestCloudDegenerateUncertainty(t *testing.T) {
	t.Parallel()

	g := NewCloudGenerator(9, 3.0)
	fc := g.Generate([2]float64{0, 0}, 0, 0)

	total := cloudSum(fc)
	if math.Abs(total-1.0) > 1e-6 {
		t.Errorf("zero-radius cloud sums to %v, want 1", total)
	}
	for _, f := range fc.Features {
		if math.IsNaN(f.Properties.Probability) || math.IsInf(f.Properties.Probability, 0) {
			t.Fatal("non-finite probability in degenerate cloud")
		}
	}
}

func TestCloudDefaultsApplied(t *testing.T) {
	t.Parallel()

	g := NewCloudGenerator(0, 0)
	if g.GridSize != DefaultCloudGridSize || g.NumStd != DefaultCloudNumStd {
		t.Errorf("defaults not applied: %+v", g)
	}
}
