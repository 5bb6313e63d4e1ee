// Package route builds the progressive, gradient-colored polyline shown
// behind the marker: the traveled portion of the track, spline-smoothed,
// split into sub-segments by quantized climb severity.
package route

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/flyover/internal/geo"
	"github.com/banshee-data/flyover/internal/privacy"
	"github.com/banshee-data/flyover/internal/timeutil"
	"github.com/banshee-data/flyover/internal/track"
)

// gradientSmoothingWindow is the moving-mean width applied to raw
// per-point gradients before quantization.
const gradientSmoothingWindow = 5

// gradientPercentPerBucket maps smoothed gradient (%) to a severity
// bucket: 0–2% → 0, 2–4% → 1, and so on up to the bucket cap.
const gradientPercentPerBucket = 2.0

// Segment is one renderable sub-polyline of a single color.
type Segment struct {
	Points []geo.LonLat
	Color  string
	Bucket int
}

// Config holds the renderer's fixed parameters.
type Config struct {
	GradientColoring  bool
	Buckets           int
	FlatColor         string
	SteepColor        string
	MinUpdateInterval time.Duration
	MinUpdateMeters   float64
	// SampleStepMeters is the polyline sampling step; 0 picks a step that
	// bounds the whole-route point count.
	SampleStepMeters float64
}

// Renderer rebuilds the traveled polyline as distance advances, throttled
// by a minimum time and distance delta to bound churn. Not safe for
// concurrent use; the engine serializes access.
type Renderer struct {
	trk   *track.Track
	win   privacy.Window
	cfg   Config
	clock timeutil.Clock

	// Deduplicated strictly-increasing distance axis for spline fitting.
	xs      []float64
	idx     []int // xs[i] came from track point idx[i]
	buckets []int // severity bucket per xs point

	lonSpline  interp.NaturalCubic
	latSpline  interp.NaturalCubic
	splineOK   bool
	gradientOK bool

	segments     []Segment
	generation   uint64
	lastUpdate   time.Time
	haveUpdate   bool
	lastDistance float64
}

// NewRenderer fits the smoothing splines and pre-computes gradient buckets.
func NewRenderer(trk *track.Track, win privacy.Window, cfg Config, clock timeutil.Clock) *Renderer {
	if cfg.Buckets < 2 {
		cfg.Buckets = 5
	}
	if cfg.FlatColor == "" {
		cfg.FlatColor = "#3bb2d0"
	}
	if cfg.SteepColor == "" {
		cfg.SteepColor = "#e55e5e"
	}
	if cfg.SampleStepMeters <= 0 {
		cfg.SampleStepMeters = math.Max(5, trk.TotalDistance()/2000)
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}

	r := &Renderer{trk: trk, win: win, cfg: cfg, clock: clock}
	r.buildAxis()
	r.fitSplines()
	r.computeBuckets()
	return r
}

// buildAxis collapses zero-length segments into a strictly increasing
// distance axis, which both the spline fit and run grouping require.
func (r *Renderer) buildAxis() {
	prev := math.Inf(-1)
	for i := 0; i < r.trk.Len(); i++ {
		d := r.trk.CumulativeAt(i)
		if d <= prev {
			continue
		}
		r.xs = append(r.xs, d)
		r.idx = append(r.idx, i)
		prev = d
	}
}

func (r *Renderer) fitSplines() {
	if len(r.xs) < 2 {
		return
	}
	lons := make([]float64, len(r.xs))
	lats := make([]float64, len(r.xs))
	for i, ti := range r.idx {
		p := r.trk.Point(ti)
		lons[i] = p.Lon
		lats[i] = p.Lat
	}
	if err := r.lonSpline.Fit(r.xs, lons); err != nil {
		return
	}
	if err := r.latSpline.Fit(r.xs, lats); err != nil {
		return
	}
	r.splineOK = true
}

// computeBuckets derives |Δelevation/Δdistance|·100 per point, smooths it
// over a small window, and quantizes into severity buckets.
func (r *Renderer) computeBuckets() {
	n := len(r.xs)
	r.buckets = make([]int, n)
	if !r.cfg.GradientColoring || n < 2 {
		return
	}

	raw := make([]float64, n)
	valid := false
	for i := 1; i < n; i++ {
		e0 := r.trk.Elevation(r.idx[i-1])
		e1 := r.trk.Elevation(r.idx[i])
		dd := r.xs[i] - r.xs[i-1]
		if math.IsNaN(e0) || math.IsNaN(e1) || dd <= 0 {
			raw[i] = 0
			continue
		}
		raw[i] = math.Abs(e1-e0) / dd * 100
		valid = true
	}
	raw[0] = raw[1]
	if !valid {
		return
	}

	maxBucket := r.cfg.Buckets - 1
	half := gradientSmoothingWindow / 2
	for i := range raw {
		lo := i - half
		if lo < 0 {
			lo = 0
		}
		hi := i + half + 1
		if hi > n {
			hi = n
		}
		smoothed := stat.Mean(raw[lo:hi], nil)
		b := int(smoothed / gradientPercentPerBucket)
		if b > maxBucket {
			b = maxBucket
		}
		r.buckets[i] = b
	}
	r.gradientOK = true
}

// positionSmoothed samples the spline-smoothed route, falling back to
// linear interpolation when the fit was degenerate.
func (r *Renderer) positionSmoothed(d float64) geo.LonLat {
	if !r.splineOK {
		return r.trk.PositionAt(d)
	}
	if d < r.xs[0] {
		d = r.xs[0]
	}
	last := r.xs[len(r.xs)-1]
	if d > last {
		d = last
	}
	return geo.LonLat{Lon: r.lonSpline.Predict(d), Lat: r.latSpline.Predict(d)}
}

// Update rebuilds the polyline up to the traveled distance. Returns the
// current segments and whether they changed this call. Unforced updates
// are throttled to the configured minimum time and distance deltas.
func (r *Renderer) Update(traveled float64, force bool) ([]Segment, bool) {
	now := r.clock.Now()
	if !force && r.haveUpdate {
		if r.clock.Since(r.lastUpdate) < r.cfg.MinUpdateInterval &&
			math.Abs(traveled-r.lastDistance) < r.cfg.MinUpdateMeters {
			return r.segments, false
		}
	}

	traveled = r.win.Clamp(traveled)
	r.segments = r.build(traveled)
	r.generation++
	r.lastUpdate = now
	r.haveUpdate = true
	r.lastDistance = traveled
	return r.segments, true
}

// build produces the colored sub-segments from the window start up to the
// traveled distance.
func (r *Renderer) build(traveled float64) []Segment {
	start := r.win.Start
	if traveled <= start || len(r.xs) < 2 {
		return nil
	}

	if !r.gradientOK {
		return []Segment{{
			Points: r.samplePolyline(start, traveled),
			Color:  r.cfg.FlatColor,
			Bucket: 0,
		}}
	}

	// Group contiguous same-bucket point runs into colored sub-segments.
	var out []Segment
	runStart := start
	runBucket := r.bucketAt(start)
	for i := 0; i < len(r.xs); i++ {
		d := r.xs[i]
		if d <= start {
			continue
		}
		if d >= traveled {
			break
		}
		if r.buckets[i] != runBucket {
			out = append(out, r.segmentFor(runStart, d, runBucket))
			runStart = d
			runBucket = r.buckets[i]
		}
	}
	out = append(out, r.segmentFor(runStart, traveled, runBucket))
	return out
}

func (r *Renderer) bucketAt(d float64) int {
	for i := len(r.xs) - 1; i >= 0; i-- {
		if r.xs[i] <= d {
			return r.buckets[i]
		}
	}
	return r.buckets[0]
}

func (r *Renderer) segmentFor(from, to float64, bucket int) Segment {
	frac := float64(bucket) / float64(r.cfg.Buckets-1)
	return Segment{
		Points: r.samplePolyline(from, to),
		Color:  blendHexColors(r.cfg.FlatColor, r.cfg.SteepColor, frac),
		Bucket: bucket,
	}
}

// samplePolyline samples the smoothed route between two distances at the
// configured step, always including both endpoints.
func (r *Renderer) samplePolyline(from, to float64) []geo.LonLat {
	if to <= from {
		return nil
	}
	step := r.cfg.SampleStepMeters
	n := int((to-from)/step) + 2
	pts := make([]geo.LonLat, 0, n)
	for d := from; d < to; d += step {
		pts = append(pts, r.positionSmoothed(d))
	}
	pts = append(pts, r.positionSmoothed(to))
	return pts
}

// Segments returns the most recently built sub-segments.
func (r *Renderer) Segments() []Segment { return r.segments }

// Generation increments every rebuild, letting the surface adapter add and
// remove map layers cleanly when the segment count changes between frames.
func (r *Renderer) Generation() uint64 { return r.generation }

// blendHexColors linearly blends two #RRGGBB colors. Unparseable inputs
// return the first color unchanged.
func blendHexColors(a, b string, t float64) string {
	ar, ag, ab, errA := parseHexColor(a)
	br, bg, bb, errB := parseHexColor(b)
	if errA != nil || errB != nil {
		return a
	}
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	mix := func(x, y uint8) uint8 { return uint8(float64(x) + (float64(y)-float64(x))*t) }
	return fmt.Sprintf("#%02x%02x%02x", mix(ar, br), mix(ag, bg), mix(ab, bb))
}

func parseHexColor(s string) (r, g, b uint8, err error) {
	if len(s) != 7 || s[0] != '#' {
		return 0, 0, 0, fmt.Errorf("invalid hex color %q", s)
	}
	_, err = fmt.Sscanf(s[1:], "%02x%02x%02x", &r, &g, &b)
	return r, g, b, err
}
