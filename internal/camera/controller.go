// Package camera derives a smoothed camera pose from the position sampler:
// a lookahead bearing target with two smoothing passes and a turn-rate
// limit, a low-pass-followed center, and a commit throttle so the map is
// only moved when the change is visible.
package camera

import (
	"math"

	"github.com/banshee-data/flyover/internal/geo"
)

// State is the camera pose consumers read a snapshot of each frame.
type State struct {
	Center  geo.LonLat
	Bearing float64 // degrees, [0,360)
	Zoom    float64
	Pitch   float64 // degrees
}

// Lookahead weighting for the bearing target. Nearer points dominate so
// the camera leads the marker without over-anticipating distant turns.
var lookaheads = []struct {
	Meters float64
	Weight float64
}{
	{25, 0.5},
	{50, 0.35},
	{100, 0.15},
}

// Smoothing and throttle constants.
const (
	// targetSmoothingAlpha is the EMA factor for the second bearing pass.
	targetSmoothingAlpha = 0.2

	// pitchRateShrink / zoomRateShrink cap how much the turn-rate limit
	// tightens at high pitch / high zoom, to limit tile churn while turning.
	pitchRateShrink = 0.30
	zoomRateShrink  = 0.15

	pitchShrinkFullDeg = 60.0 // pitch at which the full pitch shrink applies
	zoomShrinkFloor    = 12.0 // zoom range over which the zoom shrink ramps
	zoomShrinkCeil     = 18.0

	// Commit thresholds: skip the map update when the camera moved less
	// than this on screen. A throttle, not a correctness requirement.
	commitMinPixels     = 0.5
	commitMinBearingDeg = 0.3
)

// Sampler resolves a traveled distance to a position; satisfied by
// *track.Track.
type Sampler interface {
	PositionAt(d float64) geo.LonLat
}

// Config holds the controller's fixed parameters.
type Config struct {
	DefaultZoom    float64
	DefaultPitch   float64
	DefaultBearing float64
	MaxTurnRate    float64 // deg/s before pitch/zoom shrink
	CenterTau      float64 // center low-pass time constant, seconds
	IntroDuration  float64 // first-play eased transition, seconds
}

// Controller owns CameraState exclusively. Not safe for concurrent use;
// the engine serializes access.
type Controller struct {
	cfg     Config
	sampler Sampler

	state        State
	targetSmooth float64
	haveBearing  bool
	forceCommit  bool

	lastCommitted State
	everCommitted bool

	intro introFlight
}

type introFlight struct {
	active   bool
	elapsed  float64
	duration float64
	from     State
	to       State
}

// NewController creates a controller with the camera parked at the given
// static view.
func NewController(cfg Config, sampler Sampler, initial State) *Controller {
	if cfg.MaxTurnRate <= 0 {
		cfg.MaxTurnRate = 40
	}
	if cfg.CenterTau <= 0 {
		cfg.CenterTau = 0.35
	}
	return &Controller{cfg: cfg, sampler: sampler, state: initial}
}

// State returns the current camera snapshot.
func (c *Controller) State() State { return c.state }

// StartIntro begins the one-time eased transition from the current static
// view to the default flyover pose over the marker. Runs on the very first
// play only; subsequent plays skip it.
func (c *Controller) StartIntro(marker geo.LonLat) {
	c.intro = introFlight{
		active:   true,
		duration: c.cfg.IntroDuration,
		from:     c.state,
		to: State{
			Center:  marker,
			Bearing: c.cfg.DefaultBearing,
			Zoom:    c.cfg.DefaultZoom,
			Pitch:   c.cfg.DefaultPitch,
		},
	}
	if c.intro.duration <= 0 {
		c.intro.duration = 3.2
	}
}

// IntroActive reports whether the intro transition is still running.
func (c *Controller) IntroActive() bool { return c.intro.active }

// easeInOutCubic is the intro easing curve.
func easeInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	u := -2*t + 2
	return 1 - u*u*u/2
}

// stepIntro advances the intro flight; returns true while it is active.
func (c *Controller) stepIntro(dt float64) bool {
	if !c.intro.active {
		return false
	}
	c.intro.elapsed += dt
	t := c.intro.elapsed / c.intro.duration
	if t >= 1 {
		c.state = c.intro.to
		c.targetSmooth = c.state.Bearing
		c.haveBearing = true
		c.intro.active = false
		c.forceCommit = true
		return true
	}
	e := easeInOutCubic(t)
	c.state = State{
		Center:  geo.Lerp(c.intro.from.Center, c.intro.to.Center, e),
		Bearing: geo.NormalizeDegrees(c.intro.from.Bearing + geo.ShortestAngleDelta(c.intro.from.Bearing, c.intro.to.Bearing)*e),
		Zoom:    c.intro.from.Zoom + (c.intro.to.Zoom-c.intro.from.Zoom)*e,
		Pitch:   c.intro.from.Pitch + (c.intro.to.Pitch-c.intro.from.Pitch)*e,
	}
	c.forceCommit = true
	return true
}

// bearingTarget computes the weighted circular mean of headings to the
// lookahead points, clamped so no lookahead reads beyond the window end.
func (c *Controller) bearingTarget(marker geo.LonLat, traveled, windowEnd float64) (float64, bool) {
	bearings := make([]float64, 0, len(lookaheads))
	weights := make([]float64, 0, len(lookaheads))
	for _, la := range lookaheads {
		d := traveled + la.Meters
		if d > windowEnd {
			d = windowEnd
		}
		ahead := c.sampler.PositionAt(d)
		if ahead == marker {
			continue
		}
		bearings = append(bearings, geo.BearingDegrees(marker, ahead))
		weights = append(weights, la.Weight)
	}
	if len(bearings) == 0 {
		return 0, false
	}
	return geo.WeightedCircularMean(bearings, weights), true
}

// maxTurnRate returns the effective bearing rate limit in deg/s, shrunk at
// high pitch and high zoom.
func (c *Controller) maxTurnRate() float64 {
	pitchFrac := clamp01(c.state.Pitch / pitchShrinkFullDeg)
	zoomFrac := clamp01((c.state.Zoom - zoomShrinkFloor) / (zoomShrinkCeil - zoomShrinkFloor))
	return c.cfg.MaxTurnRate * (1 - pitchRateShrink*pitchFrac) * (1 - zoomRateShrink*zoomFrac)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Update advances the camera by dt seconds toward the marker at the given
// traveled distance. Returns the new state and whether the change is worth
// committing to the map (on-screen displacement > ~0.5px, bearing delta
// > ~0.3°, or a forced commit after seek/intro).
func (c *Controller) Update(dt float64, marker geo.LonLat, traveled, windowEnd float64) (State, bool) {
	if c.stepIntro(dt) {
		return c.commit()
	}

	if target, ok := c.bearingTarget(marker, traveled, windowEnd); ok {
		if !c.haveBearing {
			// First sample after construction or a seek: snap, don't slew.
			c.state.Bearing = target
			c.targetSmooth = target
			c.haveBearing = true
		} else {
			c.targetSmooth = geo.NormalizeDegrees(
				c.targetSmooth + geo.ShortestAngleDelta(c.targetSmooth, target)*targetSmoothingAlpha)

			maxDelta := c.maxTurnRate() * dt
			delta := geo.ShortestAngleDelta(c.state.Bearing, c.targetSmooth)
			if delta > maxDelta {
				delta = maxDelta
			} else if delta < -maxDelta {
				delta = -maxDelta
			}
			c.state.Bearing = geo.NormalizeDegrees(c.state.Bearing + delta)
		}
	}

	// Low-pass follow instead of snapping to avoid visible jumps.
	alpha := 1 - math.Exp(-dt/c.cfg.CenterTau)
	c.state.Center = geo.Lerp(c.state.Center, marker, alpha)

	return c.commit()
}

// commit applies the visible-change throttle.
func (c *Controller) commit() (State, bool) {
	if c.forceCommit || !c.everCommitted {
		c.forceCommit = false
		c.everCommitted = true
		c.lastCommitted = c.state
		return c.state, true
	}

	mpp := geo.MetersPerPixel(c.state.Center.Lat, c.state.Zoom)
	movedMeters := geo.DistanceMeters(c.lastCommitted.Center, c.state.Center)
	bearingDelta := math.Abs(geo.ShortestAngleDelta(c.lastCommitted.Bearing, c.state.Bearing))

	if movedMeters/mpp > commitMinPixels || bearingDelta > commitMinBearingDeg {
		c.lastCommitted = c.state
		return c.state, true
	}
	return c.state, false
}

// ResetSmoothing discards the bearing smoothing state and snaps the center
// to the marker. Called after a seek so the camera does not slew across
// the map; the next update commits unconditionally.
func (c *Controller) ResetSmoothing(marker geo.LonLat) {
	c.haveBearing = false
	c.state.Center = marker
	c.forceCommit = true
}

// ZoomOut eases the camera toward a wider end-of-track view. Invoked by
// the end-reached effect; the engine drives it through ApplyZoom.
func (c *Controller) ZoomOut(levels float64) {
	c.state.Zoom -= levels
	if c.state.Zoom < 1 {
		c.state.Zoom = 1
	}
	c.forceCommit = true
}

// LastCommitted returns the most recently committed state.
func (c *Controller) LastCommitted() State { return c.lastCommitted }
