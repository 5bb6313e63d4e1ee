package photo

import (
	"math"
	"sort"
	"time"

	"github.com/banshee-data/flyover/internal/timeutil"
)

// SchedulerConfig holds the scheduler's fixed parameters.
type SchedulerConfig struct {
	// OverlayDuration is how long an activated cue stays on screen.
	OverlayDuration time.Duration
	// RecordingFactor multiplies the duration while a recording session is
	// active, so the overlay survives compositing.
	RecordingFactor float64
	// MatchWindowMeters is the distance window for the fallback trigger.
	MatchWindowMeters float64
}

// Scheduler runs the Idle → Active → Idle overlay state machine with a
// FIFO queue of pending cues. Playback pauses while a cue is Active. Not
// safe for concurrent use; the engine serializes access.
type Scheduler struct {
	cues  []Cue // sorted by distance
	cfg   SchedulerConfig
	clock timeutil.Clock

	shown   map[string]bool // cue IDs shown this session
	pending map[string]bool // location keys queued or displayed
	queue   []Cue

	active       *Cue
	overlayUntil time.Time

	// inBurst is true from the first activation of a chained run of cues
	// until the run drains. Pause/resume fire once per burst, not per cue,
	// so the engine's was-playing flag survives chaining.
	inBurst bool

	// next is the index of the first cue not yet considered at the
	// current playback position.
	next int

	onPause  func()
	onResume func()
	onShow   func(Cue)
	onHide   func(Cue)
}

// NewScheduler builds a scheduler over cues already sorted by distance
// (BuildCues guarantees this).
func NewScheduler(cues []Cue, cfg SchedulerConfig, clock timeutil.Clock) *Scheduler {
	if cfg.OverlayDuration <= 0 {
		cfg.OverlayDuration = 4 * time.Second
	}
	if cfg.RecordingFactor <= 0 {
		cfg.RecordingFactor = 2
	}
	if cfg.MatchWindowMeters <= 0 {
		cfg.MatchWindowMeters = 50
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Scheduler{
		cues:    cues,
		cfg:     cfg,
		clock:   clock,
		shown:   make(map[string]bool),
		pending: make(map[string]bool),
	}
}

// OnPause registers the playback-pause callback fired when the first cue
// of a burst activates. Chained activations do not re-fire it.
func (s *Scheduler) OnPause(f func()) { s.onPause = f }

// OnResume registers the playback-resume callback fired when the last
// queued cue has been dismissed.
func (s *Scheduler) OnResume(f func()) { s.onResume = f }

// OnShow registers the overlay-display callback.
func (s *Scheduler) OnShow(f func(Cue)) { s.onShow = f }

// OnHide registers the overlay-dismissal callback.
func (s *Scheduler) OnHide(f func(Cue)) { s.onHide = f }

// Active returns the currently displayed cue, nil when Idle.
func (s *Scheduler) Active() *Cue { return s.active }

// QueueLen returns the number of pending cues.
func (s *Scheduler) QueueLen() int { return len(s.queue) }

// Evaluate runs one scheduler step at the given playback position. It
// dismisses an expired overlay, enqueues newly crossed cues, and activates
// the next queued cue. Called once per frame after the position update.
func (s *Scheduler) Evaluate(elapsed, traveled float64, recording bool) {
	s.dismissExpired()
	s.enqueueCrossed(elapsed, traveled)

	if s.active == nil && len(s.queue) > 0 {
		s.activateNext(recording)
	}
}

// triggered reports whether the marker has crossed the cue's window: a
// time match is primary, the distance window is the fallback.
func (s *Scheduler) triggered(c Cue, elapsed, traveled float64) bool {
	if !math.IsNaN(c.TimeOffset) && elapsed >= c.TimeOffset {
		return true
	}
	if traveled >= c.Distance {
		return true
	}
	return math.Abs(c.Distance-traveled) <= s.cfg.MatchWindowMeters
}

func (s *Scheduler) enqueueCrossed(elapsed, traveled float64) {
	for s.next < len(s.cues) {
		c := s.cues[s.next]
		if !s.triggered(c, elapsed, traveled) {
			return
		}
		s.next++

		if s.shown[c.ID] {
			continue // already shown this session
		}
		if s.pending[c.Key] {
			continue // spatially duplicate to a queued or displayed cue
		}
		s.pending[c.Key] = true
		s.queue = append(s.queue, c)
	}
}

func (s *Scheduler) activateNext(recording bool) {
	c := s.queue[0]
	s.queue = s.queue[1:]

	s.active = &c
	s.shown[c.ID] = true

	dur := s.cfg.OverlayDuration
	if recording {
		dur = time.Duration(float64(dur) * s.cfg.RecordingFactor)
	}
	s.overlayUntil = s.clock.Now().Add(dur)

	if !s.inBurst {
		s.inBurst = true
		if s.onPause != nil {
			s.onPause()
		}
	}
	if s.onShow != nil {
		s.onShow(c)
	}
}

// dismissExpired hides an overlay whose display time is over and either
// chains straight into the next queued cue or resumes playback.
func (s *Scheduler) dismissExpired() {
	if s.active == nil || s.clock.Now().Before(s.overlayUntil) {
		return
	}

	done := *s.active
	s.active = nil
	delete(s.pending, done.Key)
	if s.onHide != nil {
		s.onHide(done)
	}

	if len(s.queue) == 0 {
		s.inBurst = false
		if s.onResume != nil {
			s.onResume()
		}
	}
}

// SeekReset clears the session's shown-set and queue and repositions the
// cue pointer to the new progress, re-enabling cues after the new
// position. An active overlay is dismissed without resuming playback; the
// seek's own state machine decides whether to play.
func (s *Scheduler) SeekReset(traveled float64) {
	if s.active != nil {
		done := *s.active
		s.active = nil
		if s.onHide != nil {
			s.onHide(done)
		}
	}

	s.shown = make(map[string]bool)
	s.pending = make(map[string]bool)
	s.queue = nil
	s.inBurst = false

	s.next = sort.Search(len(s.cues), func(i int) bool {
		return s.cues[i].Distance >= traveled
	})
}
