// Package chart mirrors playback progress onto a chart axis: a cursor on
// the time (or distance) x-domain whose y-value is resolved by the active
// tab, clipped by zoom sub-ranges and repainted on a wall-time throttle
// independent of the animation frame rate.
package chart

import (
	"fmt"
	"time"

	"github.com/banshee-data/flyover/internal/timeutil"
	"github.com/banshee-data/flyover/internal/track"
)

// Cursor is the chart position marker derived from playback progress.
type Cursor struct {
	// X is the position on the chart x-domain: a time offset in seconds
	// when the track has timestamps, a distance in meters otherwise.
	X float64
	// Y is the value resolved by the active tab's accessor; NaN when the
	// tab has no value at this position.
	Y float64
	// Visible is false exactly when X lies outside an active zoom range.
	Visible bool
}

// ZoomRange is an active x-domain sub-range selected by the user.
type ZoomRange struct {
	Min float64
	Max float64
}

// Synchronizer keeps the chart cursor in lock-step with the playback
// clock. Not safe for concurrent use; the engine serializes access.
type Synchronizer struct {
	trk   *track.Track
	tab   TabKind
	zoom  *ZoomRange
	clock timeutil.Clock

	repaintInterval time.Duration
	lastRepaint     time.Time
	haveRepaint     bool

	cursor Cursor
}

// NewSynchronizer creates a synchronizer on the elevation tab, falling
// back to the first available tab when the track has no elevation data.
func NewSynchronizer(trk *track.Track, clock timeutil.Clock, repaintInterval time.Duration) *Synchronizer {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if repaintInterval <= 0 {
		repaintInterval = 80 * time.Millisecond
	}
	s := &Synchronizer{trk: trk, clock: clock, repaintInterval: repaintInterval}

	for _, k := range []TabKind{TabElevation, TabHeartRate, TabCadence, TabTemperature, TabPower, TabWindImpact} {
		if k.Available(trk) {
			s.tab = k
			break
		}
	}
	return s
}

// Tab returns the active tab.
func (s *Synchronizer) Tab() TabKind { return s.tab }

// SetTab switches the active tab. Returns ErrNoData when the track has no
// dataset for it; the previous tab stays active.
func (s *Synchronizer) SetTab(k TabKind) error {
	if !k.Available(s.trk) {
		return fmt.Errorf("tab %s: %w", k, ErrNoData)
	}
	s.tab = k
	return nil
}

// XDomain returns the full chart x-domain.
func (s *Synchronizer) XDomain() (min, max float64) {
	if s.trk.HasTime() {
		return 0, s.trk.Duration()
	}
	return 0, s.trk.TotalDistance()
}

// xAt maps a traveled distance onto the x-domain.
func (s *Synchronizer) xAt(d float64) float64 {
	if s.trk.HasTime() {
		return s.trk.TimeAt(d)
	}
	return d
}

// SetZoom activates an x-domain sub-range. Min/max are swapped if needed.
func (s *Synchronizer) SetZoom(min, max float64) {
	if min > max {
		min, max = max, min
	}
	s.zoom = &ZoomRange{Min: min, Max: max}
}

// ResetZoom restores the full domain; the cursor becomes visible again on
// the next update.
func (s *Synchronizer) ResetZoom() { s.zoom = nil }

// Zoom returns the active zoom range, nil when the full domain is shown.
func (s *Synchronizer) Zoom() *ZoomRange { return s.zoom }

// Update positions the cursor for the given traveled distance and reports
// whether the chart should repaint now. The cursor value always updates;
// only the repaint signal is throttled, so UI cost stays bounded on long
// tracks while the data contract holds every frame.
func (s *Synchronizer) Update(traveled float64) (Cursor, bool) {
	x := s.xAt(traveled)
	s.cursor = Cursor{
		X:       x,
		Y:       s.tab.ValueAt(s.trk, traveled),
		Visible: s.zoom == nil || (x >= s.zoom.Min && x <= s.zoom.Max),
	}

	now := s.clock.Now()
	if s.haveRepaint && now.Sub(s.lastRepaint) < s.repaintInterval {
		return s.cursor, false
	}
	s.lastRepaint = now
	s.haveRepaint = true
	return s.cursor, true
}

// Cursor returns the most recently computed cursor.
func (s *Synchronizer) Cursor() Cursor { return s.cursor }
