// Package daylight derives a night-overlay opacity from the sun's
// position at a given place and time. The model is a standard solar
// declination approximation with a civil-twilight ramp; tracks spanning
// more than two days or a DST switch get approximate results.
package daylight

import (
	"math"
	"time"

	"github.com/banshee-data/flyover/internal/geo"
)

// MaxOpacity is the overlay opacity at full night.
const MaxOpacity = 0.55

// twilightRampDeg is the solar elevation band, in degrees below the
// horizon, over which the overlay fades in (civil twilight).
const twilightRampDeg = 6.0

// SolarElevation returns the sun's elevation angle in degrees at the
// given position and instant.
func SolarElevation(p geo.LonLat, at time.Time) float64 {
	utc := at.UTC()
	day := float64(utc.YearDay())
	hour := float64(utc.Hour()) + float64(utc.Minute())/60 + float64(utc.Second())/3600

	// Solar declination (Cooper's approximation).
	decl := 23.45 * math.Sin(2*math.Pi*(284+day)/365)

	// Hour angle from local solar time, 15 degrees per hour off noon.
	solarTime := hour + p.Lon/15
	hourAngle := 15 * (solarTime - 12)

	latRad := p.Lat * math.Pi / 180
	declRad := decl * math.Pi / 180
	haRad := hourAngle * math.Pi / 180

	sinElev := math.Sin(latRad)*math.Sin(declRad) +
		math.Cos(latRad)*math.Cos(declRad)*math.Cos(haRad)
	return math.Asin(sinElev) * 180 / math.Pi
}

// Opacity maps the solar elevation at the given position and instant to a
// night-overlay opacity: 0 in daylight, MaxOpacity at full night, with a
// linear ramp through civil twilight.
func Opacity(p geo.LonLat, at time.Time) float64 {
	elev := SolarElevation(p, at)
	switch {
	case elev >= 0:
		return 0
	case elev <= -twilightRampDeg:
		return MaxOpacity
	default:
		return MaxOpacity * (-elev / twilightRampDeg)
	}
}
