// Package geo provides great-circle navigation helpers in nautical miles and degrees.
package geo

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// EarthRadiusNM is the mean Earth radius in nautical miles.
const EarthRadiusNM = 3440.06479

func rad(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// deg converts radians to degrees in [0, 360).
func deg(radians float64) float64 {
	return math.Mod(radians*180.0/math.Pi+360.0, 360.0)
}

// Distance calculates the haversine distance between two points in nautical miles.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := rad(lat2 - lat1)
	dLon := rad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Sin(dLon/2)*math.Sin(dLon/2)*math.Cos(rad(lat1))*math.Cos(rad(lat2))
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusNM * c
}

// Bearing calculates the initial bearing (forward azimuth) from point 1 to point 2 in degrees.
func Bearing(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := rad(lat1)
	phi2 := rad(lat2)
	dLon := rad(lon2 - lon1)

	y := math.Sin(dLon) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) -
		math.Sin(phi1)*math.Cos(phi2)*math.Cos(dLon)

	return deg(math.Atan2(y, x))
}

// CrossTrackError returns the signed distance in nautical miles of (lat, lon)
// from the great circle running from (fromLat, fromLon) to (toLat, toLon).
// Positive is right of track.
func CrossTrackError(fromLat, fromLon, lat, lon, toLat, toLon float64) float64 {
	d := Distance(fromLat, fromLon, lat, lon)
	b1 := Bearing(fromLat, fromLon, toLat, toLon)
	b2 := Bearing(fromLat, fromLon, lat, lon)
	return math.Asin(math.Sin(d/EarthRadiusNM)*math.Sin(rad(b2-b1))) * EarthRadiusNM
}

// DestinationPoint calculates the point reached from (lat, lon) after distNM
// nautical miles on the given initial bearing.
func DestinationPoint(lat, lon, distNM, bearing float64) (float64, float64) {
	phi1 := rad(lat)
	lambda1 := rad(lon)
	brng := rad(bearing)
	delta := distNM / EarthRadiusNM

	phi2 := math.Asin(math.Sin(phi1)*math.Cos(delta) +
		math.Cos(phi1)*math.Sin(delta)*math.Cos(brng))
	lambda2 := lambda1 + math.Atan2(math.Sin(brng)*math.Sin(delta)*math.Cos(phi1),
		math.Cos(delta)-math.Sin(phi1)*math.Sin(phi2))

	return phi2 * 180.0 / math.Pi, NormalizeAngle(lambda2 * 180.0 / math.Pi)
}

// NormalizeAngle normalizes an angle difference to the range [-180, 180].
func NormalizeAngle(angleDeg float64) float64 {
	for angleDeg > 180 {
		angleDeg -= 360
	}
	for angleDeg < -180 {
		angleDeg += 360
	}
	return angleDeg
}

// Steer returns the signed turn from heading "from" to heading "to":
// positive to starboard, negative to port.
func Steer(from, to float64) float64 {
	return NormalizeAngle(to - from)
}

// CircularMean returns the mean direction of angles in [0, 360).
// Headings cannot be averaged arithmetically: the mean of 359 and 1 is 0, not 180.
// The result is NaN for an empty input and unstable when the unit vectors
// cancel out (e.g. 0, 90, 180, 270).
func CircularMean(angles []float64) float64 {
	if len(angles) == 0 {
		return math.NaN()
	}
	rads := make([]float64, len(angles))
	for i, a := range angles {
		rads[i] = rad(a)
	}
	return deg(stat.CircularMean(rads, nil))
}
