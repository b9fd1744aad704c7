package predict

import "math"

// Reference calibration for positional uncertainty growth.
const (
	DefaultBaseUncertaintyNM = 5.0
	DefaultUncertaintyGrowth = 0.1

	// minCosLat bounds the longitude degree projection near the poles.
	minCosLat = 0.01
)

// UncertaintyModel maps a gap duration and speed to an uncertainty
// radius. The base term keeps the radius strictly positive even for a
// stationary vessel.
type UncertaintyModel struct {
	BaseNM     float64
	GrowthRate float64
}

// NewUncertaintyModel returns the reference calibration.
func NewUncertaintyModel() UncertaintyModel {
	return UncertaintyModel{BaseNM: DefaultBaseUncertaintyNM, GrowthRate: DefaultUncertaintyGrowth}
}

// RadiusNM returns the uncertainty radius in nautical miles for a gap
// of the given duration at the given speed.
func (u UncertaintyModel) RadiusNM(gapHours, speedKnots float64) float64 {
	return u.BaseNM + u.GrowthRate*gapHours*speedKnots
}

// Degrees projects a nautical-mile radius onto latitude/longitude
// degrees at the given latitude. One degree of latitude is 60 nm; the
// longitude projection shrinks with cos(lat) and is clamped near the
// poles to avoid a vanishing divisor.
func (u UncertaintyModel) Degrees(nm, lat float64) (dlat, dlon float64) {
	dlat = nm / 60.0
	cosLat := math.Cos(lat * math.Pi / 180)
	if cosLat < minCosLat {
		cosLat = minCosLat
	}
	dlon = nm / (60.0 * cosLat)
	return dlat, dlon
}

// At combines RadiusNM and Degrees for the given latitude.
func (u UncertaintyModel) At(gapHours, speedKnots, lat float64) (nm, dlat, dlon float64) {
	nm = u.RadiusNM(gapHours, speedKnots)
	dlat, dlon = u.Degrees(nm, lat)
	return nm, dlat, dlon
}
