// Package track holds the immutable track model and the position sampler:
// distance→position and time⇄distance interpolation over the track's
// cumulative-distance axis.
package track

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/banshee-data/flyover/internal/geo"
	"github.com/banshee-data/flyover/internal/monitoring"
)

// ErrNoCoordinates is returned when the payload carries no usable
// coordinate data. The host should render a static "no data" message and
// never start the engine.
var ErrNoCoordinates = errors.New("track has no coordinate data")

// minTimeSpanSeconds is the minimum timestamp coverage for time-based
// playback. Below this the clock falls back to distance-based advance.
const minTimeSpanSeconds = 0.5

// Track is the immutable per-track data the engine animates over. Built
// once from a Payload; read-only for the engine's lifetime.
type Track struct {
	points     []geo.LonLat
	elevations []float64
	cum        []float64

	// timeOffsets is seconds since the first valid timestamp, forward-filled
	// over gaps. nil when timestamps were absent, malformed or non-monotonic.
	timeOffsets []float64

	heartRate     []float64
	cadence       []float64
	temperature   []float64
	power         []float64
	windSpeed     []float64
	windDirection []float64
	windImpact    []float64

	startTime  time.Time
	photos     []Photo
	stats      Stats
	simplified bool
}

// New validates a payload and builds the immutable Track.
func New(p *Payload) (*Track, error) {
	if p == nil || len(p.Coordinates) == 0 {
		return nil, ErrNoCoordinates
	}
	n := len(p.Coordinates)
	if len(p.CumulativeDistance) != n {
		return nil, fmt.Errorf("cumulative distance length %d does not match %d coordinates",
			len(p.CumulativeDistance), n)
	}

	t := &Track{
		points:     make([]geo.LonLat, n),
		elevations: make([]float64, n),
		cum:        make([]float64, n),
		photos:     p.Photos,
		stats:      p.Stats,
		simplified: p.Simplified,
	}

	for i, c := range p.Coordinates {
		if len(c) < 2 {
			return nil, fmt.Errorf("coordinate %d has %d components, need at least lon/lat", i, len(c))
		}
		t.points[i] = geo.LonLat{Lon: c[0], Lat: c[1]}
		if len(c) >= 3 {
			t.elevations[i] = c[2]
		} else {
			t.elevations[i] = math.NaN()
		}
	}

	prev := math.Inf(-1)
	for i, d := range p.CumulativeDistance {
		if d < prev {
			return nil, fmt.Errorf("cumulative distance decreases at index %d (%f < %f)", i, d, prev)
		}
		t.cum[i] = d
		prev = d
	}

	t.timeOffsets, t.startTime = buildTimeOffsets(p.Timestamps, n)

	t.heartRate = buildChannel(p.HeartRates, n)
	t.cadence = buildChannel(p.Cadences, n)
	t.temperature = buildChannel(p.Temperatures, n)
	t.power = buildChannel(p.Powers, n)
	t.windSpeed = buildChannel(p.WindSpeeds, n)
	t.windDirection = buildChannel(p.WindDirections, n)
	t.windImpact = buildChannel(p.WindImpacts, n)

	return t, nil
}

// buildTimeOffsets converts ISO8601 timestamps to forward-filled second
// offsets. Returns nil when the result cannot drive time-based playback:
// the clock then falls back to distance mode rather than erroring.
func buildTimeOffsets(stamps []*string, n int) ([]float64, time.Time) {
	if len(stamps) != n {
		return nil, time.Time{}
	}

	var start time.Time
	offsets := make([]float64, n)
	haveStart := false
	lastOffset := 0.0
	valid := 0

	for i, s := range stamps {
		if s == nil || *s == "" {
			offsets[i] = lastOffset // forward-fill gaps
			continue
		}
		ts, err := time.Parse(time.RFC3339, *s)
		if err != nil {
			monitoring.Logf("track: malformed timestamp %q at index %d, using distance-based playback", *s, i)
			return nil, time.Time{}
		}
		if !haveStart {
			start = ts
			haveStart = true
		}
		off := ts.Sub(start).Seconds()
		if off < lastOffset {
			monitoring.Logf("track: non-monotonic timestamp at index %d, using distance-based playback", i)
			return nil, time.Time{}
		}
		offsets[i] = off
		lastOffset = off
		valid++
	}

	if !haveStart || valid < 2 || lastOffset <= minTimeSpanSeconds {
		return nil, time.Time{}
	}
	return offsets, start
}

// buildChannel converts a nullable channel to a NaN-filled dense slice.
// Returns nil when the channel is absent or entirely null.
func buildChannel(vals []*float64, n int) []float64 {
	if len(vals) != n {
		return nil
	}
	out := make([]float64, n)
	any := false
	for i, v := range vals {
		if v == nil {
			out[i] = math.NaN()
			continue
		}
		out[i] = *v
		any = true
	}
	if !any {
		return nil
	}
	return out
}

// Len returns the number of track points.
func (t *Track) Len() int { return len(t.points) }

// TotalDistance returns the full, untrimmed track length in meters.
func (t *Track) TotalDistance() float64 { return t.cum[len(t.cum)-1] }

// Duration returns the timestamp span in seconds, or 0 in distance mode.
func (t *Track) Duration() float64 {
	if t.timeOffsets == nil {
		return 0
	}
	return t.timeOffsets[len(t.timeOffsets)-1]
}

// HasTime reports whether the track can drive time-based playback.
func (t *Track) HasTime() bool { return t.timeOffsets != nil }

// StartTime returns the wall-clock time of the first valid timestamp.
// Zero in distance mode.
func (t *Track) StartTime() time.Time { return t.startTime }

// Stats returns the backend-computed whole-track statistics.
func (t *Track) Stats() Stats { return t.stats }

// Photos returns the geotagged photos attached to the track.
func (t *Track) Photos() []Photo { return t.photos }

// Simplified reports whether the backend served a simplified geometry.
func (t *Track) Simplified() bool { return t.simplified }

// Point returns the i-th track point.
func (t *Track) Point(i int) geo.LonLat { return t.points[i] }

// Elevation returns the i-th elevation, NaN when absent.
func (t *Track) Elevation(i int) float64 { return t.elevations[i] }

// CumulativeAt returns the cumulative distance at index i.
func (t *Track) CumulativeAt(i int) float64 { return t.cum[i] }

// TimeOffsetAt returns the forward-filled time offset at index i, or NaN
// in distance mode.
func (t *Track) TimeOffsetAt(i int) float64 {
	if t.timeOffsets == nil {
		return math.NaN()
	}
	return t.timeOffsets[i]
}

// segmentAt locates the segment bracketing distance d and the linear
// fraction within it. d is clamped to [0, TotalDistance]. The returned
// index is always a valid segment start (< Len()-1 for multi-point tracks).
func (t *Track) segmentAt(d float64) (int, float64) {
	last := len(t.cum) - 1
	if last == 0 {
		return 0, 0
	}
	if d <= t.cum[0] {
		return 0, 0
	}
	if d >= t.cum[last] {
		return last - 1, 1
	}

	// First index with cum[i] >= d; bracketing segment is [i-1, i].
	i := sort.SearchFloat64s(t.cum, d)
	lo, hi := t.cum[i-1], t.cum[i]
	if hi == lo {
		return i - 1, 1
	}
	return i - 1, (d - lo) / (hi - lo)
}

// PositionAt returns the interpolated position at traveled distance d.
// Pure and deterministic: identical input yields an identical result, so
// seeks are idempotent.
func (t *Track) PositionAt(d float64) geo.LonLat {
	if len(t.points) == 1 {
		return t.points[0]
	}
	i, frac := t.segmentAt(d)
	return geo.Lerp(t.points[i], t.points[i+1], frac)
}

// ElevationAt returns the interpolated elevation at distance d, NaN when
// either bracketing point lacks elevation.
func (t *Track) ElevationAt(d float64) float64 {
	if len(t.points) == 1 {
		return t.elevations[0]
	}
	i, frac := t.segmentAt(d)
	a, b := t.elevations[i], t.elevations[i+1]
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.NaN()
	}
	return a + (b-a)*frac
}

// TimeAt maps a traveled distance to a playback time offset in seconds.
// Returns NaN in distance mode.
func (t *Track) TimeAt(d float64) float64 {
	if t.timeOffsets == nil {
		return math.NaN()
	}
	if len(t.points) == 1 {
		return t.timeOffsets[0]
	}
	i, frac := t.segmentAt(d)
	a, b := t.timeOffsets[i], t.timeOffsets[i+1]
	return a + (b-a)*frac
}

// DistanceAtTime maps an elapsed playback time offset (seconds) to a
// traveled distance via binary search over the time axis. The input is
// clamped to the track's time span. Returns 0 in distance mode.
func (t *Track) DistanceAtTime(sec float64) float64 {
	if t.timeOffsets == nil {
		return 0
	}
	last := len(t.timeOffsets) - 1
	if sec <= t.timeOffsets[0] {
		return t.cum[0]
	}
	if sec >= t.timeOffsets[last] {
		return t.cum[last]
	}

	i := sort.SearchFloat64s(t.timeOffsets, sec)
	lo, hi := t.timeOffsets[i-1], t.timeOffsets[i]
	frac := 1.0
	if hi > lo {
		frac = (sec - lo) / (hi - lo)
	}
	return t.cum[i-1] + (t.cum[i]-t.cum[i-1])*frac
}

// Channel identifies one of the optional parallel data channels.
type Channel int

const (
	ChannelHeartRate Channel = iota
	ChannelCadence
	ChannelTemperature
	ChannelPower
	ChannelWindSpeed
	ChannelWindDirection
	ChannelWindImpact
)

// ChannelValues returns the dense values for a channel, nil when absent.
func (t *Track) ChannelValues(c Channel) []float64 {
	switch c {
	case ChannelHeartRate:
		return t.heartRate
	case ChannelCadence:
		return t.cadence
	case ChannelTemperature:
		return t.temperature
	case ChannelPower:
		return t.power
	case ChannelWindSpeed:
		return t.windSpeed
	case ChannelWindDirection:
		return t.windDirection
	case ChannelWindImpact:
		return t.windImpact
	default:
		return nil
	}
}

// HasChannel reports whether a channel carries any data.
func (t *Track) HasChannel(c Channel) bool { return t.ChannelValues(c) != nil }

// ChannelAt returns the interpolated channel value at distance d. NaN
// values at either bracket propagate.
func (t *Track) ChannelAt(c Channel, d float64) float64 {
	vals := t.ChannelValues(c)
	if vals == nil {
		return math.NaN()
	}
	if len(vals) == 1 {
		return vals[0]
	}
	i, frac := t.segmentAt(d)
	a, b := vals[i], vals[i+1]
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.NaN()
	}
	return a + (b-a)*frac
}
