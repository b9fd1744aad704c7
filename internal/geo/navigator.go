// Package geo provides spherical great-circle navigation primitives:
// forward projection of a point by bearing and distance, haversine
// distance, and initial bearing between two points. All distances are
// in nautical miles and all angles in degrees unless noted.
package geo

import "math"

// EarthRadiusNM is the mean Earth radius in nautical miles.
const EarthRadiusNM = 3440.065

// maxLat keeps projections off the exact poles, where the forward
// formula degenerates.
const maxLat = 89.999999

// Point is a WGS84-ish spherical position in decimal degrees.
type Point struct {
	Lat float64
	Lon float64
}

// Project returns the destination reached by travelling distanceNM from
// origin along the given initial bearing on a great circle. A zero
// distance returns the origin unchanged. Output longitude is normalized
// to [-180, 180].
func Project(origin Point, bearingDeg, distanceNM float64) Point {
	if distanceNM == 0 {
		return origin
	}

	lat := clampLat(origin.Lat)

	phi1 := radians(lat)
	lambda1 := radians(origin.Lon)
	theta := radians(bearingDeg)
	delta := distanceNM / EarthRadiusNM

	sinPhi2 := math.Sin(phi1)*math.Cos(delta) + math.Cos(phi1)*math.Sin(delta)*math.Cos(theta)
	// Floating-point noise can push the asin argument a hair out of range.
	if sinPhi2 > 1 {
		sinPhi2 = 1
	} else if sinPhi2 < -1 {
		sinPhi2 = -1
	}
	phi2 := math.Asin(sinPhi2)

	lambda2 := lambda1 + math.Atan2(
		math.Sin(theta)*math.Sin(delta)*math.Cos(phi1),
		math.Cos(delta)-math.Sin(phi1)*math.Sin(phi2),
	)

	return Point{
		Lat: clampLat(degrees(phi2)),
		Lon: NormalizeLon(degrees(lambda2)),
	}
}

// Haversine returns the great-circle distance between two points in
// nautical miles.
func Haversine(a, b Point) float64 {
	phi1 := radians(a.Lat)
	phi2 := radians(b.Lat)
	dPhi := radians(b.Lat - a.Lat)
	dLambda := radians(b.Lon - a.Lon)

	h := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	if h > 1 {
		h = 1
	}
	return 2 * EarthRadiusNM * math.Asin(math.Sqrt(h))
}

// Bearing returns the initial great-circle bearing from a to b in
// degrees, normalized to [0, 360).
func Bearing(a, b Point) float64 {
	phi1 := radians(a.Lat)
	phi2 := radians(b.Lat)
	dLambda := radians(b.Lon - a.Lon)

	y := math.Sin(dLambda) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(dLambda)

	deg := degrees(math.Atan2(y, x))
	return math.Mod(deg+360, 360)
}

// NormalizeLon wraps a longitude into [-180, 180]. The antimeridian is
// reported as 180 regardless of approach direction.
func NormalizeLon(lon float64) float64 {
	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	lon -= 180
	if lon == -180 {
		return 180
	}
	return lon
}

func clampLat(lat float64) float64 {
	if lat > maxLat {
		return maxLat
	}
	if lat < -maxLat {
		return -maxLat
	}
	return lat
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

func degrees(rad float64) float64 { return rad * 180 / math.Pi }
