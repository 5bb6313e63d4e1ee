// Package playback implements the progress state machine that drives the
// flyover: a single clock advanced once per frame, from which every other
// subsystem derives its position.
package playback

import (
	"github.com/banshee-data/flyover/internal/privacy"
	"github.com/banshee-data/flyover/internal/track"
)

// Phase is the clock's lifecycle state.
type Phase int

const (
	Stopped Phase = iota
	Playing
	Paused
)

// String implements fmt.Stringer for log output.
func (p Phase) String() string {
	switch p {
	case Stopped:
		return "stopped"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return "unknown"
	}
}

// State is a per-frame snapshot of playback progress.
type State struct {
	// Fraction is position along the full track, 0..1, independent of
	// privacy trimming (the clamp applies to the underlying distance).
	Fraction float64
	// Distance is the traveled distance in meters, clamped to the window.
	Distance float64
	// Elapsed is accumulated playback seconds (scaled by speed).
	Elapsed float64
	// Speed is the current playback speed multiplier.
	Speed float64
	// Playing reports whether the clock is advancing.
	Playing bool
}

// Clock is the playback state machine. Time-based when the track carries
// usable timestamps, distance-based at a baseline speed otherwise.
// Not safe for concurrent use; the engine serializes access.
type Clock struct {
	trk    *track.Track
	window privacy.Window

	phase       Phase
	timeBased   bool
	baselineMS  float64 // distance-mode speed, m/s, before multiplier
	speed       float64
	elapsed     float64
	distance    float64
	everStarted bool

	// onEnd fires once when the window end is reached (camera zoom-out
	// effect). onSeek fires after every seek so smoothing state resets.
	onEnd  func()
	onSeek func(distance float64)
}

// NewClock builds a clock positioned at the window start.
func NewClock(trk *track.Track, window privacy.Window, baselineSpeedKmh float64) *Clock {
	c := &Clock{
		trk:        trk,
		window:     window,
		timeBased:  trk.HasTime(),
		baselineMS: baselineSpeedKmh / 3.6,
		speed:      1,
		distance:   window.Start,
	}
	if c.timeBased {
		c.elapsed = trk.TimeAt(c.distance)
	}
	return c
}

// OnEnd registers the end-reached effect callback.
func (c *Clock) OnEnd(f func()) { c.onEnd = f }

// OnSeek registers the smoothing-reset callback.
func (c *Clock) OnSeek(f func(distance float64)) { c.onSeek = f }

// Phase returns the current lifecycle phase.
func (c *Clock) Phase() Phase { return c.phase }

// TimeBased reports whether playback follows the track's timestamps.
func (c *Clock) TimeBased() bool { return c.timeBased }

// EverStarted reports whether Play has ever been called. The engine uses
// this to run the first-play intro transition exactly once.
func (c *Clock) EverStarted() bool { return c.everStarted }

// Play transitions Stopped/Paused → Playing. Playing is a no-op.
func (c *Clock) Play() {
	if c.phase == Playing {
		return
	}
	if c.phase == Stopped && c.distance >= c.window.End {
		// Replay from the window start after the end was reached.
		c.resetToStart()
	}
	c.phase = Playing
	c.everStarted = true
}

// Pause transitions Playing → Paused. Safe in any state.
func (c *Clock) Pause() {
	if c.phase == Playing {
		c.phase = Paused
	}
}

// Stop halts playback and keeps the current position. Safe in any state.
func (c *Clock) Stop() {
	c.phase = Stopped
}

// Restart rewinds to the window start and begins playing.
func (c *Clock) Restart() {
	c.resetToStart()
	c.phase = Playing
	c.everStarted = true
	if c.onSeek != nil {
		c.onSeek(c.distance)
	}
}

func (c *Clock) resetToStart() {
	c.distance = c.window.Start
	if c.timeBased {
		c.elapsed = c.trk.TimeAt(c.distance)
	} else {
		c.elapsed = 0
	}
}

// SetSpeed sets the playback speed multiplier. Non-positive values are
// ignored.
func (c *Clock) SetSpeed(mult float64) {
	if mult > 0 {
		c.speed = mult
	}
}

// Advance moves the clock forward by dt seconds of wall time and returns
// the resulting state. Progress is clamped to the privacy window each
// tick; reaching the window end stops the clock and fires the end effect.
func (c *Clock) Advance(dt float64) State {
	if c.phase != Playing || dt <= 0 {
		return c.State()
	}

	if c.timeBased {
		c.elapsed += dt * c.speed
		c.distance = c.trk.DistanceAtTime(c.elapsed)
	} else {
		c.elapsed += dt * c.speed
		c.distance += c.baselineMS * c.speed * dt
	}

	c.distance = c.window.Clamp(c.distance)

	if c.distance >= c.window.End {
		c.phase = Stopped
		if c.onEnd != nil {
			c.onEnd()
		}
	}
	return c.State()
}

// Seek positions the clock at a progress fraction of the full track. The
// distance is clamped to the privacy window, so seek(0) on a trimmed track
// lands at the window start, not at zero. Seeking never auto-resumes: a
// Paused clock stays paused, a Playing clock keeps playing.
func (c *Clock) Seek(fraction float64) State {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}

	c.distance = c.window.Clamp(fraction * c.trk.TotalDistance())
	if c.timeBased {
		c.elapsed = c.trk.TimeAt(c.distance)
	} else if c.baselineMS > 0 {
		c.elapsed = (c.distance - c.window.Start) / c.baselineMS
	}

	// A stopped clock that had reached the end becomes seekable again
	// without resuming; it stays stopped until the next Play.
	if c.onSeek != nil {
		c.onSeek(c.distance)
	}
	return c.State()
}

// State returns the current snapshot.
func (c *Clock) State() State {
	total := c.trk.TotalDistance()
	frac := 0.0
	if total > 0 {
		frac = c.distance / total
	}
	return State{
		Fraction: frac,
		Distance: c.distance,
		Elapsed:  c.elapsed,
		Speed:    c.speed,
		Playing:  c.phase == Playing,
	}
}

// Distance returns the current traveled distance in meters.
func (c *Clock) Distance() float64 { return c.distance }

// Elapsed returns accumulated playback seconds.
func (c *Clock) Elapsed() float64 { return c.elapsed }

// Window returns the active privacy window.
func (c *Clock) Window() privacy.Window { return c.window }
