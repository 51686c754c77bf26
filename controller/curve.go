package controller

import "github.com/cyear/nuc-fan/models"

// bracketEpsilon widens every bracket so two points sharing a temperature
// do not divide by zero.
const bracketEpsilon = 0.001

// SpeedAt interpolates the fan speed for temp on curve. The curve is
// scanned in order: the first point at or above temp is the upper bracket
// and the point before it (or 0 °C / 0 % for the first point) the lower one.
// A temperature sitting exactly on a breakpoint yields that point's speed.
// ok is false when every point is below temp; the caller then leaves the
// fan untouched.
func SpeedAt(curve models.FanCurve, temp int64) (speed int64, ok bool) {
	lower := models.FanPoint{}
	for _, upper := range curve {
		if upper.Temperature == temp {
			return upper.Speed, true
		}
		if upper.Temperature > temp {
			return interpolate(lower, upper, temp), true
		}
		lower = upper
	}
	return 0, false
}

// interpolate returns the speed on the line through lo and hi at temp,
// truncated toward zero.
func interpolate(lo, hi models.FanPoint, temp int64) int64 {
	slope := float64(hi.Speed-lo.Speed) / (float64(hi.Temperature-lo.Temperature) + bracketEpsilon)
	return lo.Speed + int64(slope*float64(temp-lo.Temperature))
}
