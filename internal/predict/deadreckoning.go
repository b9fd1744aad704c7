package predict

import "darkwatch/internal/geo"

// DeadReckoning extrapolates a position from the last known speed and
// course, assuming constant motion along a great circle. Fully
// deterministic: identical inputs yield identical outputs.
type DeadReckoning struct {
	Uncertainty UncertaintyModel
}

// NewDeadReckoning returns a forecaster with the reference uncertainty
// calibration.
func NewDeadReckoning() *DeadReckoning {
	return &DeadReckoning{Uncertainty: NewUncertaintyModel()}
}

// Forecast projects last forward by gapHours at its recorded speed and
// course. A zero speed returns the input position unchanged with zero
// distance traveled; the base uncertainty term still applies.
func (d *DeadReckoning) Forecast(last TrackPoint, gapHours float64) Result {
	distanceNM := last.Speed * gapHours
	dest := geo.Project(geo.Point{Lat: last.Lat, Lon: last.Lon}, last.Course, distanceNM)

	nm, dlat, dlon := d.Uncertainty.At(gapHours, last.Speed, last.Lat)

	return Result{
		PredictedPosition:  [2]float64{dest.Lat, dest.Lon},
		UncertaintyNM:      nm,
		UncertaintyDegrees: [2]float64{dlat, dlon},
		DistanceTraveledNM: distanceNM,
		Method:             MethodDeadReckoning,
	}
}
