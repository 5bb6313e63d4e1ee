// Package engine wires the flyover subsystems together and drives them
// from a single per-frame tick: playback clock, camera, progressive
// route, chart sync, photo cues, day/night overlay, and tile prefetch.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/banshee-data/flyover/internal/camera"
	"github.com/banshee-data/flyover/internal/chart"
	"github.com/banshee-data/flyover/internal/config"
	"github.com/banshee-data/flyover/internal/daylight"
	"github.com/banshee-data/flyover/internal/geo"
	"github.com/banshee-data/flyover/internal/monitoring"
	"github.com/banshee-data/flyover/internal/photo"
	"github.com/banshee-data/flyover/internal/playback"
	"github.com/banshee-data/flyover/internal/privacy"
	"github.com/banshee-data/flyover/internal/recorder"
	"github.com/banshee-data/flyover/internal/route"
	"github.com/banshee-data/flyover/internal/tiles"
	"github.com/banshee-data/flyover/internal/tiles/tilecache"
	"github.com/banshee-data/flyover/internal/timeutil"
	"github.com/banshee-data/flyover/internal/track"
)

// endZoomOutLevels is how far the camera pulls back when the window end
// is reached.
const endZoomOutLevels = 1.5

// rotatingBearingDeg is the per-tick bearing delta above which the
// viewport prefetch widens its margin.
const rotatingBearingDeg = 0.5

// Engine owns the flyover state. All methods are safe for concurrent use;
// a single mutex serializes controls against the tick.
type Engine struct {
	mu sync.Mutex

	opts    *config.Options
	surface Surface
	wall    timeutil.Clock

	trk    *track.Track
	window privacy.Window
	clock  *playback.Clock
	cam    *camera.Controller
	routes *route.Renderer
	charts *chart.Synchronizer
	sched  *photo.Scheduler

	prefetcher *tiles.Prefetcher
	tcache     *tilecache.Cache
	mapZoom    int

	rec *recorder.Session

	lastBearing        float64
	haveBearing        bool
	resumeAfterOverlay bool
	started            bool
}

// New decodes the payload and assembles the engine. A payload without
// coordinates surfaces a message on the host and returns an error; the
// host should fall back to its static view.
func New(payloadJSON []byte, opts *config.Options, surface Surface, wall timeutil.Clock) (*Engine, error) {
	if opts == nil {
		opts = config.EmptyOptions()
	}
	if wall == nil {
		wall = timeutil.RealClock{}
	}

	p, err := track.DecodePayload(payloadJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to decode track payload: %w", err)
	}
	trk, err := track.New(p)
	if err != nil {
		if errors.Is(err, track.ErrNoCoordinates) {
			surface.ShowMessage("This activity has no GPS data to fly over.")
		}
		return nil, err
	}

	e := &Engine{opts: opts, surface: surface, wall: wall, trk: trk}

	if opts.GetPrivacyEnabled() {
		e.window = privacy.Compute(trk.TotalDistance(), opts.GetPrivacyTrimMeters())
	} else {
		e.window = privacy.Disabled(trk.TotalDistance())
	}

	e.clock = playback.NewClock(trk, e.window, opts.GetBaselineSpeedKmh())
	e.clock.OnEnd(e.handleEnd)
	e.clock.OnSeek(e.handleSeek)

	start := trk.PositionAt(e.window.Start)
	e.cam = camera.NewController(camera.Config{
		DefaultZoom:    opts.GetDefaultZoom(),
		DefaultPitch:   opts.GetDefaultPitch(),
		DefaultBearing: opts.GetDefaultBearing(),
		MaxTurnRate:    opts.GetMaxTurnRateDegPerSec(),
		CenterTau:      opts.GetCenterSmoothingTau().Seconds(),
		IntroDuration:  opts.GetIntroDuration().Seconds(),
	}, trk, camera.State{Center: start, Zoom: opts.GetDefaultZoom() - 3, Pitch: 0})

	e.routes = route.NewRenderer(trk, e.window, route.Config{
		GradientColoring:  opts.GetGradientColoring(),
		Buckets:           opts.GetGradientBuckets(),
		FlatColor:         opts.GetFlatColor(),
		SteepColor:        opts.GetSteepColor(),
		MinUpdateInterval: opts.GetRouteMinUpdateInterval(),
		MinUpdateMeters:   opts.GetRouteMinUpdateMeters(),
	}, wall)

	e.charts = chart.NewSynchronizer(trk, wall, opts.GetChartRepaintInterval())

	e.sched = photo.NewScheduler(photo.BuildCues(trk), photo.SchedulerConfig{
		OverlayDuration:   opts.GetPhotoOverlayDuration(),
		RecordingFactor:   opts.GetPhotoOverlayRecordingFactor(),
		MatchWindowMeters: opts.GetPhotoMatchWindowMeters(),
	}, wall)
	e.sched.OnPause(func() {
		e.resumeAfterOverlay = e.clock.Phase() == playback.Playing
		e.clock.Pause()
	})
	e.sched.OnResume(func() {
		if e.resumeAfterOverlay {
			e.clock.Play()
		}
	})
	e.sched.OnShow(func(c photo.Cue) {
		if e.rec != nil {
			surface.ClearPhotoLayers()
		}
		surface.ShowPhotoOverlay(c)
	})
	e.sched.OnHide(func(photo.Cue) {
		surface.HidePhotoOverlay()
		if e.rec != nil {
			surface.RestorePhotoLayers()
		}
	})

	e.setupTiles()
	return e, nil
}

// setupTiles wires the optional prefetcher. A cache that fails to open is
// logged and skipped; prefetch then runs uncached.
func (e *Engine) setupTiles() {
	template := e.opts.GetTileURLTemplate()
	if template == "" {
		return
	}

	var store tiles.Store
	if path := e.opts.GetTileCachePath(); path != "" {
		cache, err := tilecache.Open(path)
		if err != nil {
			monitoring.Logf("tile cache unavailable, prefetching uncached: %v", err)
		} else {
			e.tcache = cache
			store = cache
		}
	}

	e.mapZoom = int(math.Round(e.opts.GetDefaultZoom()))
	e.prefetcher = tiles.NewPrefetcher(
		&tiles.HTTPFetcher{Client: &http.Client{Timeout: 10 * time.Second}, Template: template},
		store,
		tiles.PrefetchConfig{
			Budget:           e.opts.GetTilePrefetchBudget(),
			Deadline:         e.opts.GetTilePrefetchTimeout(),
			ViewportInterval: e.opts.GetViewportPrefetchInterval(),
		},
		e.wall,
	)
}

// Start warms the tile cache along the route (bounded by budget and
// deadline), runs the one-time intro transition, and begins playback.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.prefetcher != nil && !e.started {
		// Only the playable window is warmed; trimmed ends never render.
		var pts []geo.LonLat
		for i := 0; i < e.trk.Len(); i++ {
			if e.window.Contains(e.trk.CumulativeAt(i)) {
				pts = append(pts, e.trk.Point(i))
			}
		}
		res := e.prefetcher.PrefetchRoute(ctx, pts, e.mapZoom)
		monitoring.Logf("tile warm-up: %d fetched, %d cached, %d failed of %d",
			res.Fetched, res.Cached, res.Failed, res.Requested)
	}

	if !e.clock.EverStarted() {
		e.cam.StartIntro(e.trk.PositionAt(e.clock.Distance()))
	}
	e.clock.Play()
	e.started = true
}

// Tick advances the flyover by dt seconds of wall time. The host calls it
// once per rendered frame.
func (e *Engine) Tick(ctx context.Context, dt float64) playback.State {
	e.mu.Lock()
	defer e.mu.Unlock()

	state := e.clock.Advance(dt)
	marker := e.trk.PositionAt(state.Distance)
	e.surface.SetMarker(marker)

	camState, commit := e.cam.Update(dt, marker, state.Distance, e.window.End)
	if commit {
		e.surface.SetCamera(camState)
	}

	if segments, rebuilt := e.routes.Update(state.Distance, false); rebuilt {
		e.surface.SetRouteSegments(segments)
	}

	cursor, repaint := e.charts.Update(state.Distance)
	if repaint {
		e.surface.UpdateChartCursor(cursor)
	}

	e.sched.Evaluate(state.Elapsed, state.Distance, e.rec != nil)

	if e.opts.GetDayNightOverlay() && e.trk.HasTime() {
		at := e.trk.StartTime().Add(time.Duration(state.Elapsed * float64(time.Second)))
		e.surface.SetNightOverlayOpacity(daylight.Opacity(marker, at))
	}

	if e.prefetcher != nil {
		rotating := e.haveBearing &&
			math.Abs(geo.ShortestAngleDelta(e.lastBearing, camState.Bearing)) > rotatingBearingDeg
		e.prefetcher.ViewportTick(ctx, camState.Center, e.mapZoom, rotating)
	}
	e.lastBearing = camState.Bearing
	e.haveBearing = true

	return state
}

// handleEnd runs when the privacy-window end is reached: playback stops
// and the camera pulls back for the closing view.
func (e *Engine) handleEnd() {
	e.cam.ZoomOut(endZoomOutLevels)
}

// handleSeek resets every smoothing and session state that must not bleed
// across a discontinuity.
func (e *Engine) handleSeek(distance float64) {
	marker := e.trk.PositionAt(distance)
	e.cam.ResetSmoothing(marker)
	e.sched.SeekReset(distance)
	if segments, rebuilt := e.routes.Update(distance, true); rebuilt {
		e.surface.SetRouteSegments(segments)
	}
	cursor, _ := e.charts.Update(distance)
	e.surface.UpdateChartCursor(cursor)
}

// Play resumes (or begins) playback.
func (e *Engine) Play() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clock.Play()
}

// Pause suspends playback, keeping the position.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resumeAfterOverlay = false
	e.clock.Pause()
}

// Stop halts playback at the current position and finalizes any in-flight
// recording. Safe to call from any state.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.resumeAfterOverlay = false
	e.clock.Stop()
	if e.rec != nil {
		if _, err := e.rec.Stop(); err != nil {
			monitoring.Logf("failed to finalize recording on stop: %v", err)
		}
		e.rec = nil
		e.surface.RestoreLabels()
	}
}

// Restart rewinds to the window start and plays.
func (e *Engine) Restart() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clock.Restart()
}

// Seek jumps to a fraction of the full track (clamped to the privacy
// window). Playback state is preserved: paused stays paused.
func (e *Engine) Seek(fraction float64) playback.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clock.Seek(fraction)
}

// SetSpeed sets the playback speed multiplier.
func (e *Engine) SetSpeed(mult float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clock.SetSpeed(mult)
}

// State returns the current playback snapshot.
func (e *Engine) State() playback.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clock.State()
}

// Camera returns the current camera pose.
func (e *Engine) Camera() camera.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cam.State()
}

// SetChartTab switches the synchronized chart tab. Tabs without data
// return chart.ErrNoData and keep the previous tab.
func (e *Engine) SetChartTab(k chart.TabKind) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.charts.SetTab(k)
}

// SetChartZoom restricts the chart x-range; the cursor hides outside it.
func (e *Engine) SetChartZoom(min, max float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.charts.SetZoom(min, max)
}

// ResetChartZoom restores the full chart range.
func (e *Engine) ResetChartZoom() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.charts.ResetZoom()
}

// StartRecording opens a capture session. Labels are rasterized for the
// duration so they composite into frames. An encoder that fails to start
// aborts the recording but never the flyover.
func (e *Engine) StartRecording(basePath string, enc recorder.Encoder) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.rec != nil {
		return fmt.Errorf("recording already in progress")
	}

	sess, err := recorder.NewSession(basePath, recorder.Preset{
		FrameRate:        e.opts.GetRecorderFrameRate(),
		BitrateKbps:      e.opts.GetRecorderBitrateKbps(),
		TargetChunkBytes: e.opts.GetRecorderTargetChunkBytes(),
		MaxChunkBytes:    e.opts.GetRecorderMaxChunkBytes(),
	}, enc)
	if err != nil {
		monitoring.Logf("recording unavailable: %v", err)
		return err
	}

	e.rec = sess
	e.surface.ConvertLabelsToImages()
	return nil
}

// RecordFrame appends one rendered frame to the active session.
func (e *Engine) RecordFrame(frame []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.rec == nil {
		return fmt.Errorf("no recording in progress")
	}
	return e.rec.WriteFrame(frame)
}

// StopRecording finalizes the session and restores live labels.
func (e *Engine) StopRecording() (*recorder.Manifest, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.rec == nil {
		return nil, fmt.Errorf("no recording in progress")
	}
	m, err := e.rec.Stop()
	e.rec = nil
	e.surface.RestoreLabels()
	return m, err
}

// Recording reports whether a capture session is active.
func (e *Engine) Recording() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rec != nil
}

// Stats returns the activity totals from the payload. These reflect the
// full recorded track, not the privacy-trimmed window.
func (e *Engine) Stats() track.Stats {
	return e.trk.Stats()
}

// Track exposes the decoded track for hosts that render their own views.
func (e *Engine) Track() *track.Track { return e.trk }

// Window returns the active privacy window.
func (e *Engine) Window() privacy.Window { return e.window }

// Close releases held resources (the tile cache).
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.tcache != nil {
		err := e.tcache.Close()
		e.tcache = nil
		return err
	}
	return nil
}
