// Package wind solves the wind triangle and the current triangle.
// All angles are degrees; speeds share whatever unit the caller uses (knots).
package wind

import "math"

func rad(deg float64) float64 {
	return deg * math.Pi / 180.0
}

func deg(radians float64) float64 {
	return math.Mod(radians*180.0/math.Pi+360.0, 360.0)
}

// TrueWindSpeed returns the true wind speed from boat speed and apparent wind
// (law of cosines). Heel and leeway are ignored.
func TrueWindSpeed(boatSpeed, awa, aws float64) float64 {
	return math.Sqrt(boatSpeed*boatSpeed + aws*aws - 2*aws*boatSpeed*math.Cos(rad(math.Abs(awa))))
}

// TrueWindAngle returns the true wind angle from boat speed, apparent wind
// angle and true wind speed (law of sines). The sign follows awa: negative is
// wind from port.
func TrueWindAngle(boatSpeed, awa, tws float64) float64 {
	angle := deg(math.Asin(boatSpeed*math.Sin(rad(math.Abs(awa)))/tws)) + math.Abs(awa)
	if awa < 0 {
		angle *= -1
	}
	return angle
}

// TrueWindDirection returns the compass direction the true wind blows from.
func TrueWindDirection(hdg, twa float64) float64 {
	return math.Mod(hdg+twa+720, 360)
}

// VMG returns the component of speed along the wind axis.
func VMG(speed, twa float64) float64 {
	return math.Abs(speed * math.Cos(rad(twa)))
}

// current returns the north and east components of the water current:
// the ground track vector minus the water track vector.
func current(hdg, speed, cog, sog float64) (north, east float64) {
	north = sog*math.Cos(rad(cog)) - speed*math.Cos(rad(hdg))
	east = sog*math.Sin(rad(cog)) - speed*math.Sin(rad(hdg))
	return north, east
}

// Set returns the direction the current flows toward, in [0, 360).
// With no east-west component the result is 0 or 180 by the sign of the
// north-south component.
func Set(hdg, speed, cog, sog float64) float64 {
	north, east := current(hdg, speed, cog, sog)
	if east == 0 {
		if north < 0 {
			return 180
		}
		return 0
	}
	return deg(math.Atan2(east, north))
}

// Drift returns the speed of the current.
func Drift(hdg, speed, cog, sog float64) float64 {
	north, east := current(hdg, speed, cog, sog)
	return math.Hypot(north, east)
}
