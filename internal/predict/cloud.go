package predict

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"darkwatch/internal/geo"
)

// Cloud generation defaults, matching the remote service's grid.
const (
	DefaultCloudGridSize = 30
	DefaultCloudNumStd   = 3.0

	// minUncertaintyDeg keeps the normalized offsets finite when a
	// caller supplies a degenerate uncertainty radius.
	minUncertaintyDeg = 1e-6
)

// CloudGenerator discretizes an uncertainty ellipse into a normalized
// grid of weighted points with isotropic Gaussian falloff, suitable for
// heatmap rendering.
type CloudGenerator struct {
	GridSize int     // lattice is GridSize x GridSize
	NumStd   float64 // lattice spans +/-NumStd uncertainty radii per axis
}

// NewCloudGenerator returns a generator with the given lattice shape.
// Non-positive inputs fall back to the defaults.
func NewCloudGenerator(gridSize int, numStd float64) CloudGenerator {
	if gridSize <= 0 {
		gridSize = DefaultCloudGridSize
	}
	if numStd <= 0 {
		numStd = DefaultCloudNumStd
	}
	return CloudGenerator{GridSize: gridSize, NumStd: numStd}
}

// Generate builds the probability cloud around center using the given
// lat/lon uncertainty radii in degrees. Probabilities are normalized to
// sum to 1. A 1x1 grid yields the center point with probability 1; an
// all-zero weight grid (underflow) degrades to a uniform distribution.
func (g CloudGenerator) Generate(center [2]float64, dlat, dlon float64) FeatureCollection {
	lat, lon := center[0], center[1]
	if dlat < minUncertaintyDeg {
		dlat = minUncertaintyDeg
	}
	if dlon < minUncertaintyDeg {
		dlon = minUncertaintyDeg
	}

	if g.GridSize == 1 {
		return FeatureCollection{
			Type:     "FeatureCollection",
			Features: []Feature{cloudPoint(lat, lon, 1.0)},
		}
	}

	n := g.GridSize
	latMin := lat - g.NumStd*dlat
	lonMin := lon - g.NumStd*dlon
	latStep := 2 * g.NumStd * dlat / float64(n-1)
	lonStep := 2 * g.NumStd * dlon / float64(n-1)

	weights := make([]float64, 0, n*n)
	features := make([]Feature, 0, n*n)

	for i := 0; i < n; i++ {
		ptLat := latMin + latStep*float64(i)
		dy := (ptLat - lat) / dlat
		for j := 0; j < n; j++ {
			ptLon := lonMin + lonStep*float64(j)
			dx := (ptLon - lon) / dlon

			weights = append(weights, math.Exp(-0.5*(dx*dx+dy*dy)))
			features = append(features, cloudPoint(ptLat, geo.NormalizeLon(ptLon), 0))
		}
	}

	total := floats.Sum(weights)
	if total <= 0 || math.IsNaN(total) || math.IsInf(total, 0) {
		uniform := 1.0 / float64(len(weights))
		for i := range weights {
			weights[i] = uniform
		}
	} else {
		floats.Scale(1/total, weights)
	}

	for i := range features {
		features[i].Properties.Probability = weights[i]
	}

	return FeatureCollection{Type: "FeatureCollection", Features: features}
}

func cloudPoint(lat, lon, probability float64) Feature {
	return Feature{
		Type: "Feature",
		Geometry: Geometry{
			Type:        "Point",
			Coordinates: [2]float64{lon, lat}, // GeoJSON ordering
		},
		Properties: FeatureProperties{Probability: probability},
	}
}
