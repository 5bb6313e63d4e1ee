package engine

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/flyover/internal/camera"
	"github.com/banshee-data/flyover/internal/chart"
	"github.com/banshee-data/flyover/internal/config"
	"github.com/banshee-data/flyover/internal/geo"
	"github.com/banshee-data/flyover/internal/photo"
	"github.com/banshee-data/flyover/internal/recorder"
	"github.com/banshee-data/flyover/internal/route"
	"github.com/banshee-data/flyover/internal/timeutil"
	"github.com/banshee-data/flyover/internal/track"
)

// recordingSurface counts surface calls for assertions.
type recordingSurface struct {
	NopSurface

	messages       []string
	cameraCommits  int
	lastCamera     camera.State
	markerSets     int
	routeSets      int
	cursorUpdates  int
	overlaysShown  []photo.Cue
	overlaysHidden int
	labelsToImages int
	labelsRestored int
	nightOpacity   []float64
}

func (s *recordingSurface) ShowMessage(text string) { s.messages = append(s.messages, text) }
func (s *recordingSurface) SetCamera(c camera.State) {
	s.cameraCommits++
	s.lastCamera = c
}
func (s *recordingSurface) SetMarker(geo.LonLat)             { s.markerSets++ }
func (s *recordingSurface) SetRouteSegments([]route.Segment) { s.routeSets++ }
func (s *recordingSurface) UpdateChartCursor(chart.Cursor)   { s.cursorUpdates++ }
func (s *recordingSurface) ShowPhotoOverlay(c photo.Cue)     { s.overlaysShown = append(s.overlaysShown, c) }
func (s *recordingSurface) HidePhotoOverlay()                { s.overlaysHidden++ }
func (s *recordingSurface) ConvertLabelsToImages()           { s.labelsToImages++ }
func (s *recordingSurface) RestoreLabels()                   { s.labelsRestored++ }
func (s *recordingSurface) SetNightOverlayOpacity(o float64) { s.nightOpacity = append(s.nightOpacity, o) }

// testPayload is a 1km straight track, 100m per point, optionally
// timestamped 10s apart (10 m/s) and carrying one photo at the 500m mark.
func testPayload(withTime, withPhoto bool) []byte {
	p := track.Payload{}
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i <= 10; i++ {
		p.Coordinates = append(p.Coordinates, []float64{13.4 + float64(i)*0.001, 52.5, 100 + float64(i)})
		p.CumulativeDistance = append(p.CumulativeDistance, float64(i)*100)
		if withTime {
			s := base.Add(time.Duration(i) * 10 * time.Second).Format(time.RFC3339)
			p.Timestamps = append(p.Timestamps, &s)
		}
	}
	if withPhoto {
		p.Photos = []track.Photo{{
			Lat: 52.5, Lon: 13.405,
			ThumbURL: "img_5_thumb.jpg", FullURL: "img_5.jpg",
		}}
	}
	p.Stats.TotalDistanceM = 1000
	data, _ := json.Marshal(&p)
	return data
}

func shortIntroOptions() *config.Options {
	intro := "1ms"
	return &config.Options{IntroDuration: &intro}
}

func newTestEngine(t *testing.T, payload []byte, opts *config.Options) (*Engine, *recordingSurface, *timeutil.MockClock) {
	t.Helper()
	surface := &recordingSurface{}
	wall := timeutil.NewMockClock(time.Unix(10000, 0))
	e, err := New(payload, opts, surface, wall)
	require.NoError(t, err)
	return e, surface, wall
}

func TestNewRejectsEmptyTrack(t *testing.T) {
	t.Parallel()

	surface := &recordingSurface{}
	_, err := New([]byte(`{"coordinates":[]}`), nil, surface, nil)
	require.ErrorIs(t, err, track.ErrNoCoordinates)
	require.Len(t, surface.messages, 1)
	assert.Contains(t, surface.messages[0], "no GPS data")
}

func TestStartRunsIntroOnce(t *testing.T) {
	t.Parallel()

	e, surface, _ := newTestEngine(t, testPayload(true, false), shortIntroOptions())
	ctx := context.Background()

	e.Start(ctx)
	state := e.Tick(ctx, 0.1)
	assert.True(t, state.Playing)
	assert.Greater(t, surface.cameraCommits, 0)
	// The 1ms intro completed within the first tick.
	assert.InDelta(t, e.Camera().Pitch, 55, 1e-9)

	// A later restart does not replay the intro pose transition.
	e.Pause()
	e.Play()
	assert.True(t, e.State().Playing)
}

func TestTickAdvancesAndPaints(t *testing.T) {
	t.Parallel()

	e, surface, wall := newTestEngine(t, testPayload(true, false), shortIntroOptions())
	ctx := context.Background()
	e.Start(ctx)

	var last float64
	for i := 0; i < 20; i++ {
		wall.Advance(100 * time.Millisecond)
		state := e.Tick(ctx, 0.1)
		assert.GreaterOrEqual(t, state.Distance, last)
		last = state.Distance
	}

	assert.Greater(t, last, 0.0)
	assert.Equal(t, 20, surface.markerSets)
	assert.Greater(t, surface.routeSets, 0)
	assert.Greater(t, surface.cursorUpdates, 0)
}

func TestSeekPreservesPause(t *testing.T) {
	t.Parallel()

	e, surface, _ := newTestEngine(t, testPayload(true, false), shortIntroOptions())
	ctx := context.Background()
	e.Start(ctx)
	e.Tick(ctx, 0.1)

	e.Pause()
	state := e.Seek(0.5)
	assert.False(t, state.Playing)
	assert.InDelta(t, 500, state.Distance, 1e-9)

	// The seek forced a cursor repaint regardless of throttling.
	assert.Greater(t, surface.cursorUpdates, 0)
}

func TestPhotoOverlayPausesAndResumes(t *testing.T) {
	t.Parallel()

	e, surface, wall := newTestEngine(t, testPayload(false, true), shortIntroOptions())
	ctx := context.Background()
	e.Start(ctx)
	e.SetSpeed(50) // distance mode at 15 km/h baseline: ~208 m/s

	for i := 0; i < 40 && len(surface.overlaysShown) == 0; i++ {
		wall.Advance(100 * time.Millisecond)
		e.Tick(ctx, 0.1)
	}
	require.Len(t, surface.overlaysShown, 1)
	assert.False(t, e.State().Playing)

	// Overlay expiry resumes playback.
	wall.Advance(5 * time.Second)
	e.Tick(ctx, 0.1)
	assert.Equal(t, 1, surface.overlaysHidden)
	assert.True(t, e.State().Playing)
}

func TestChainedPhotoOverlaysResume(t *testing.T) {
	t.Parallel()

	// Two photos at the 500m mark with distinct rounded locations cross in
	// the same frame: the first pauses playback, the second chains after
	// it, and only the last expiry resumes playback.
	var p track.Payload
	_ = json.Unmarshal(testPayload(false, false), &p)
	p.Photos = []track.Photo{
		{Lat: 52.5, Lon: 13.405, ThumbURL: "img_5_thumb.jpg", FullURL: "img_5.jpg"},
		{Lat: 52.5, Lon: 13.4054, ThumbURL: "img_6_thumb.jpg", FullURL: "img_6.jpg"},
	}
	payload, err := json.Marshal(&p)
	require.NoError(t, err)

	e, surface, wall := newTestEngine(t, payload, shortIntroOptions())
	ctx := context.Background()
	e.Start(ctx)
	e.SetSpeed(50)

	for i := 0; i < 40 && len(surface.overlaysShown) == 0; i++ {
		wall.Advance(100 * time.Millisecond)
		e.Tick(ctx, 0.1)
	}
	require.Len(t, surface.overlaysShown, 1)
	assert.False(t, e.State().Playing)

	// First overlay expires; the second chains in without resuming.
	wall.Advance(5 * time.Second)
	e.Tick(ctx, 0.1)
	require.Len(t, surface.overlaysShown, 2)
	assert.Equal(t, 1, surface.overlaysHidden)
	assert.False(t, e.State().Playing)

	// The last expiry resumes playback.
	wall.Advance(5 * time.Second)
	e.Tick(ctx, 0.1)
	assert.Equal(t, 2, surface.overlaysHidden)
	assert.True(t, e.State().Playing)
}

func TestRecordingLifecycle(t *testing.T) {
	t.Parallel()

	e, surface, _ := newTestEngine(t, testPayload(true, false), shortIntroOptions())

	require.NoError(t, e.StartRecording(t.TempDir(), &recorder.PassthroughEncoder{}))
	assert.True(t, e.Recording())
	assert.Equal(t, 1, surface.labelsToImages)

	require.Error(t, e.StartRecording(t.TempDir(), &recorder.PassthroughEncoder{}))

	require.NoError(t, e.RecordFrame([]byte("frame")))

	m, err := e.StopRecording()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), m.TotalFrames)
	assert.False(t, e.Recording())
	assert.Equal(t, 1, surface.labelsRestored)

	assert.Error(t, e.RecordFrame([]byte("frame")))
}

func TestStopFinalizesRecording(t *testing.T) {
	t.Parallel()

	e, surface, _ := newTestEngine(t, testPayload(true, false), shortIntroOptions())
	e.Start(context.Background())

	require.NoError(t, e.StartRecording(t.TempDir(), &recorder.PassthroughEncoder{}))
	e.Stop()

	assert.False(t, e.Recording())
	assert.False(t, e.State().Playing)
	assert.Equal(t, 1, surface.labelsRestored)
}

func TestStatsIgnorePrivacyTrim(t *testing.T) {
	t.Parallel()

	enabled := true
	trim := 200.0
	opts := shortIntroOptions()
	opts.PrivacyEnabled = &enabled
	opts.PrivacyTrimMeters = &trim

	e, _, _ := newTestEngine(t, testPayload(true, false), opts)
	assert.InDelta(t, 200, e.Window().Start, 1e-9)
	assert.InDelta(t, 800, e.Window().End, 1e-9)
	// Totals come from the payload, untouched by the trim.
	assert.InDelta(t, 1000, e.Stats().TotalDistanceM, 1e-9)
}

func TestNightOverlayTracksElapsedTime(t *testing.T) {
	t.Parallel()

	on := true
	opts := shortIntroOptions()
	opts.DayNightOverlay = &on

	e, surface, wall := newTestEngine(t, testPayload(true, false), opts)
	ctx := context.Background()
	e.Start(ctx)
	wall.Advance(100 * time.Millisecond)
	e.Tick(ctx, 0.1)

	// Mid-morning midsummer Berlin: overlay fully transparent.
	require.NotEmpty(t, surface.nightOpacity)
	assert.Zero(t, surface.nightOpacity[len(surface.nightOpacity)-1])
}

func TestChartTabControl(t *testing.T) {
	t.Parallel()

	e, _, _ := newTestEngine(t, testPayload(true, false), shortIntroOptions())
	require.NoError(t, e.SetChartTab(chart.TabElevation))
	assert.ErrorIs(t, e.SetChartTab(chart.TabPower), chart.ErrNoData)
}
