// Package tiles computes slippy-map tile coverage for a route and
// prefetches the imagery before playback starts, with a budgeted,
// deadline-bounded warm-up phase and a throttled viewport follower.
package tiles

import (
	"math"
	"strconv"
	"strings"

	"github.com/banshee-data/flyover/internal/geo"
)

// TileSize is the edge length of a raster tile in pixels.
const TileSize = 256

// MaxZoom is the deepest zoom level tile servers commonly serve.
const MaxZoom = 19

// Tile identifies one slippy-map tile.
type Tile struct {
	Z, X, Y int
}

// FromLonLat returns the fractional tile coordinates of a position at the
// given zoom. Integer truncation of the result is the containing tile.
func FromLonLat(p geo.LonLat, zoom int) (x, y float64) {
	latRad := p.Lat * math.Pi / 180
	n := math.Pow(2, float64(zoom))
	x = (p.Lon + 180) / 360 * n
	y = (1 - math.Asinh(math.Tan(latRad))/math.Pi) / 2 * n
	return x, y
}

// At returns the tile containing the position at the given zoom.
func At(p geo.LonLat, zoom int) Tile {
	x, y := FromLonLat(p, zoom)
	return Tile{Z: zoom, X: clampIndex(x, zoom), Y: clampIndex(y, zoom)}
}

func clampIndex(v float64, zoom int) int {
	max := int(math.Pow(2, float64(zoom))) - 1
	i := int(math.Floor(v))
	if i < 0 {
		return 0
	}
	if i > max {
		return max
	}
	return i
}

// URL expands a {z}/{x}/{y} template for the tile.
func (t Tile) URL(template string) string {
	s := strings.Replace(template, "{z}", strconv.Itoa(t.Z), 1)
	s = strings.Replace(s, "{x}", strconv.Itoa(t.X), 1)
	return strings.Replace(s, "{y}", strconv.Itoa(t.Y), 1)
}

// Covering returns the distinct tiles touched by the route points at the
// given zoom, each padded by the pixel radius of the viewport so edge
// tiles are included. Order follows first touch along the route.
func Covering(points []geo.LonLat, zoom int, radiusPx float64) []Tile {
	seen := make(map[Tile]struct{})
	var out []Tile
	for _, p := range points {
		wx, wy := FromLonLat(p, zoom)
		wx *= TileSize
		wy *= TileSize

		x0 := int(math.Floor((wx - radiusPx) / TileSize))
		y0 := int(math.Floor((wy - radiusPx) / TileSize))
		x1 := int(math.Floor((wx + radiusPx) / TileSize))
		y1 := int(math.Floor((wy + radiusPx) / TileSize))

		for x := x0; x <= x1; x++ {
			for y := y0; y <= y1; y++ {
				t := Tile{Z: zoom, X: x, Y: y}
				if _, ok := seen[t]; ok {
					continue
				}
				seen[t] = struct{}{}
				out = append(out, t)
			}
		}
	}
	return out
}
