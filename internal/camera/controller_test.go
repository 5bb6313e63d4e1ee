package camera

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/flyover/internal/geo"
)

// lineSampler walks due east from the origin at one meter per unit.
type lineSampler struct{}

func (lineSampler) PositionAt(d float64) geo.LonLat {
	// ~111.3km per degree of longitude at the equator.
	return geo.LonLat{Lon: d / 111320.0, Lat: 0}
}

// jitterSampler flips heading wildly with distance to provoke the rate limit.
type jitterSampler struct{}

func (jitterSampler) PositionAt(d float64) geo.LonLat {
	angle := math.Mod(d*37, 360) * math.Pi / 180
	return geo.LonLat{
		Lon: (d*math.Cos(angle) + 1) / 111320.0,
		Lat: d * math.Sin(angle) / 111320.0,
	}
}

func testConfig() Config {
	return Config{
		DefaultZoom:   15.5,
		DefaultPitch:  55,
		MaxTurnRate:   40,
		CenterTau:     0.35,
		IntroDuration: 3.2,
	}
}

func TestBearingFollowsRoute(t *testing.T) {
	t.Parallel()

	c := NewController(testConfig(), lineSampler{}, State{Zoom: 15.5})
	var st State
	for i := 0; i < 100; i++ {
		st, _ = c.Update(1.0/30, lineSampler{}.PositionAt(float64(i)), float64(i), 1e9)
	}
	// Route runs due east; bearing settles at 90°.
	assert.InDelta(t, 90, st.Bearing, 1.0)
}

func TestTurnRateLimit(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	c := NewController(cfg, jitterSampler{}, State{Zoom: 15.5, Pitch: 55})

	const dt = 1.0 / 30
	prev := -1.0
	for i := 0; i < 300; i++ {
		st, _ := c.Update(dt, jitterSampler{}.PositionAt(float64(i)), float64(i), 1e9)
		if prev >= 0 {
			delta := math.Abs(geo.ShortestAngleDelta(prev, st.Bearing))
			// Never exceeds maxTurnRate*dt regardless of input jitter.
			assert.LessOrEqual(t, delta, cfg.MaxTurnRate*dt+1e-9)
		}
		prev = st.Bearing
	}
}

func TestTurnRateShrink(t *testing.T) {
	t.Parallel()

	t.Run("high pitch shrinks up to 30 percent", func(t *testing.T) {
		t.Parallel()
		flat := NewController(testConfig(), lineSampler{}, State{Zoom: 12, Pitch: 0})
		tilted := NewController(testConfig(), lineSampler{}, State{Zoom: 12, Pitch: 60})
		assert.InDelta(t, 40.0, flat.maxTurnRate(), 1e-9)
		assert.InDelta(t, 40.0*0.7, tilted.maxTurnRate(), 1e-9)
	})

	t.Run("high zoom shrinks up to 15 percent", func(t *testing.T) {
		t.Parallel()
		low := NewController(testConfig(), lineSampler{}, State{Zoom: 12, Pitch: 0})
		high := NewController(testConfig(), lineSampler{}, State{Zoom: 18, Pitch: 0})
		assert.InDelta(t, 40.0, low.maxTurnRate(), 1e-9)
		assert.InDelta(t, 40.0*0.85, high.maxTurnRate(), 1e-9)
	})
}

func TestCenterLowPass(t *testing.T) {
	t.Parallel()

	c := NewController(testConfig(), lineSampler{}, State{Zoom: 15.5})
	marker := lineSampler{}.PositionAt(1000)

	st, _ := c.Update(1.0/30, marker, 1000, 1e9)
	// One frame of low-pass gets the camera only part way to the marker.
	assert.Less(t, st.Center.Lon, marker.Lon)
	assert.Greater(t, st.Center.Lon, 0.0)

	// Repeated updates converge on the marker.
	for i := 0; i < 500; i++ {
		st, _ = c.Update(1.0/30, marker, 1000, 1e9)
	}
	assert.InDelta(t, marker.Lon, st.Center.Lon, 1e-6)
}

func TestCommitThrottle(t *testing.T) {
	t.Parallel()

	c := NewController(testConfig(), lineSampler{}, State{Zoom: 15.5})
	marker := lineSampler{}.PositionAt(100)

	// First update always commits.
	_, committed := c.Update(1.0/30, marker, 100, 1e9)
	assert.True(t, committed)

	// Let the camera settle, then verify a converged camera stops committing.
	for i := 0; i < 2000; i++ {
		c.Update(1.0/30, marker, 100, 1e9)
	}
	_, committed = c.Update(1.0/30, marker, 100, 1e9)
	assert.False(t, committed)

	// A forced reset commits again.
	c.ResetSmoothing(marker)
	_, committed = c.Update(1.0/30, marker, 100, 1e9)
	assert.True(t, committed)
}

func TestResetSmoothing(t *testing.T) {
	t.Parallel()

	c := NewController(testConfig(), lineSampler{}, State{Zoom: 15.5})
	for i := 0; i < 50; i++ {
		c.Update(1.0/30, lineSampler{}.PositionAt(float64(i)), float64(i), 1e9)
	}

	target := lineSampler{}.PositionAt(5000)
	c.ResetSmoothing(target)
	assert.Equal(t, target, c.State().Center)

	// Bearing snaps to the new target rather than slewing.
	st, committed := c.Update(1.0/30, target, 5000, 1e9)
	assert.True(t, committed)
	assert.InDelta(t, 90, st.Bearing, 1.0)
}

func TestSeekIdempotence(t *testing.T) {
	t.Parallel()

	// Two identical seek+update sequences yield identical camera centers.
	run := func() State {
		c := NewController(testConfig(), lineSampler{}, State{Zoom: 15.5})
		m := lineSampler{}.PositionAt(4321)
		c.ResetSmoothing(m)
		st, _ := c.Update(1.0/30, m, 4321, 1e9)
		return st
	}
	assert.Equal(t, run(), run())
}

func TestIntroFlight(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	c := NewController(cfg, lineSampler{}, State{Center: geo.LonLat{Lon: 1, Lat: 1}, Zoom: 10, Pitch: 0})
	marker := lineSampler{}.PositionAt(0)

	c.StartIntro(marker)
	require.True(t, c.IntroActive())

	const dt = 1.0 / 30
	steps := 0
	for c.IntroActive() {
		_, committed := c.Update(dt, marker, 0, 1e9)
		assert.True(t, committed) // intro frames always commit
		steps++
		require.Less(t, steps, 1000, "intro must terminate")
	}

	// Intro lands on the default pose over the marker.
	st := c.State()
	assert.InDelta(t, cfg.DefaultZoom, st.Zoom, 1e-9)
	assert.InDelta(t, cfg.DefaultPitch, st.Pitch, 1e-9)
	assert.InDelta(t, marker.Lon, st.Center.Lon, 1e-9)
	assert.InDelta(t, 3.2, float64(steps)*dt, 0.1)
}

func TestLookaheadClampedToWindowEnd(t *testing.T) {
	t.Parallel()

	// With the marker at the window end, every lookahead collapses onto the
	// marker and the bearing target is undefined; the bearing must hold.
	c := NewController(testConfig(), lineSampler{}, State{Zoom: 15.5})
	end := 7000.0
	for i := 0; i < 50; i++ {
		c.Update(1.0/30, lineSampler{}.PositionAt(6000), 6000, 1e9)
	}
	before := c.State().Bearing
	st, _ := c.Update(1.0/30, lineSampler{}.PositionAt(end), end, end)
	assert.InDelta(t, before, st.Bearing, 1e-9)
}

func TestZoomOut(t *testing.T) {
	t.Parallel()

	c := NewController(testConfig(), lineSampler{}, State{Zoom: 15.5})
	c.ZoomOut(2)
	assert.InDelta(t, 13.5, c.State().Zoom, 1e-9)
	c.ZoomOut(100)
	assert.Equal(t, 1.0, c.State().Zoom)
}
