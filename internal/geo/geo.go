// Package geo provides the small amount of spherical geometry the flyover
// engine needs: distances, bearings and circular (angular) arithmetic.
package geo

import "math"

// EarthRadiusMeters is the mean earth radius used for haversine distances.
const EarthRadiusMeters = 6371000.0

// LonLat is a WGS84 coordinate pair in degrees.
type LonLat struct {
	Lon float64
	Lat float64
}

// DistanceMeters returns the haversine great-circle distance between a and b.
func DistanceMeters(a, b LonLat) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * EarthRadiusMeters * math.Asin(math.Min(1, math.Sqrt(h)))
}

// BearingDegrees returns the initial bearing from a to b in [0, 360).
func BearingDegrees(a, b LonLat) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	return NormalizeDegrees(math.Atan2(y, x) * 180 / math.Pi)
}

// NormalizeDegrees maps an angle to [0, 360).
func NormalizeDegrees(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	return deg
}

// ShortestAngleDelta returns the signed smallest rotation from "from" to
// "to", in (-180, 180].
func ShortestAngleDelta(from, to float64) float64 {
	d := math.Mod(to-from, 360)
	switch {
	case d > 180:
		d -= 360
	case d <= -180:
		d += 360
	}
	return d
}

// WeightedCircularMean returns the weighted mean of bearings (degrees),
// computed on the unit circle so that 359° and 1° average to 0°, not 180°.
// Weights need not sum to 1. Returns 0 when all weights are zero.
func WeightedCircularMean(bearings, weights []float64) float64 {
	var sx, sy float64
	for i, b := range bearings {
		w := weights[i]
		rad := b * math.Pi / 180
		sx += w * math.Cos(rad)
		sy += w * math.Sin(rad)
	}
	if sx == 0 && sy == 0 {
		return 0
	}
	return NormalizeDegrees(math.Atan2(sy, sx) * 180 / math.Pi)
}

// Lerp linearly interpolates between a and b. t is clamped to [0, 1].
// Fine for the short segments of a GPS track; no great-circle treatment.
func Lerp(a, b LonLat, t float64) LonLat {
	if t <= 0 {
		return a
	}
	if t >= 1 {
		return b
	}
	return LonLat{
		Lon: a.Lon + (b.Lon-a.Lon)*t,
		Lat: a.Lat + (b.Lat-a.Lat)*t,
	}
}

// MetersPerPixel returns the web-mercator ground resolution at the given
// latitude and zoom, for a 512px tile scheme halved to the conventional
// 256px figure.
func MetersPerPixel(lat, zoom float64) float64 {
	return 156543.03392 * math.Cos(lat*math.Pi/180) / math.Pow(2, zoom)
}
