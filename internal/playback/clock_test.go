package playback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/flyover/internal/privacy"
	"github.com/banshee-data/flyover/internal/track"
)

func strPtr(s string) *string { return &s }

// flatTrack builds a 10km track of 11 points, 1km apart, optionally with
// timestamps 100s apart (10 m/s).
func flatTrack(t *testing.T, withTime bool) *track.Track {
	t.Helper()
	p := &track.Payload{}
	stamps := []string{
		"2025-06-01T10:00:00Z", "2025-06-01T10:01:40Z", "2025-06-01T10:03:20Z",
		"2025-06-01T10:05:00Z", "2025-06-01T10:06:40Z", "2025-06-01T10:08:20Z",
		"2025-06-01T10:10:00Z", "2025-06-01T10:11:40Z", "2025-06-01T10:13:20Z",
		"2025-06-01T10:15:00Z", "2025-06-01T10:16:40Z",
	}
	for i := 0; i <= 10; i++ {
		p.Coordinates = append(p.Coordinates, []float64{13.4 + float64(i)*0.01, 52.5, 100})
		p.CumulativeDistance = append(p.CumulativeDistance, float64(i)*1000)
		if withTime {
			p.Timestamps = append(p.Timestamps, strPtr(stamps[i]))
		}
	}
	trk, err := track.New(p)
	require.NoError(t, err)
	return trk
}

func TestClockModes(t *testing.T) {
	t.Parallel()

	t.Run("time-based when timestamps usable", func(t *testing.T) {
		t.Parallel()
		c := NewClock(flatTrack(t, true), privacy.Disabled(10000), 15)
		assert.True(t, c.TimeBased())
	})

	t.Run("distance-based fallback", func(t *testing.T) {
		t.Parallel()
		c := NewClock(flatTrack(t, false), privacy.Disabled(10000), 15)
		assert.False(t, c.TimeBased())
	})
}

func TestAdvance(t *testing.T) {
	t.Parallel()

	t.Run("time-based advance maps elapsed to distance", func(t *testing.T) {
		t.Parallel()
		c := NewClock(flatTrack(t, true), privacy.Disabled(10000), 15)
		c.Play()
		st := c.Advance(10) // 10s at 10 m/s
		assert.InDelta(t, 100.0, st.Distance, 1e-9)
		assert.InDelta(t, 0.01, st.Fraction, 1e-9)
	})

	t.Run("speed multiplier scales time advance", func(t *testing.T) {
		t.Parallel()
		c := NewClock(flatTrack(t, true), privacy.Disabled(10000), 15)
		c.SetSpeed(4)
		c.Play()
		st := c.Advance(10)
		assert.InDelta(t, 400.0, st.Distance, 1e-9)
	})

	t.Run("distance-based advance uses baseline speed", func(t *testing.T) {
		t.Parallel()
		c := NewClock(flatTrack(t, false), privacy.Disabled(10000), 15)
		c.Play()
		st := c.Advance(60) // 15 km/h for a minute = 250m
		assert.InDelta(t, 250.0, st.Distance, 1e-9)
	})

	t.Run("no advance unless playing", func(t *testing.T) {
		t.Parallel()
		c := NewClock(flatTrack(t, true), privacy.Disabled(10000), 15)
		st := c.Advance(10)
		assert.Zero(t, st.Distance)
		c.Play()
		c.Pause()
		st = c.Advance(10)
		assert.Zero(t, st.Distance)
	})

	t.Run("end of window stops and fires effect", func(t *testing.T) {
		t.Parallel()
		c := NewClock(flatTrack(t, true), privacy.Disabled(10000), 15)
		ended := false
		c.OnEnd(func() { ended = true })
		c.Play()
		c.Advance(1e6)
		assert.True(t, ended)
		assert.Equal(t, Stopped, c.Phase())
		assert.Equal(t, 10000.0, c.Distance())
	})

	t.Run("progress always inside privacy window", func(t *testing.T) {
		t.Parallel()
		win := privacy.Compute(10000, 3000)
		c := NewClock(flatTrack(t, true), win, 15)
		c.Play()
		for i := 0; i < 500; i++ {
			st := c.Advance(5)
			assert.GreaterOrEqual(t, st.Distance, 3000.0)
			assert.LessOrEqual(t, st.Distance, 7000.0)
		}
	})
}

func TestSeek(t *testing.T) {
	t.Parallel()

	t.Run("seek 0 on trimmed track lands at window start", func(t *testing.T) {
		t.Parallel()
		win := privacy.Compute(10000, 3000)
		c := NewClock(flatTrack(t, true), win, 15)
		st := c.Seek(0)
		assert.Equal(t, 3000.0, st.Distance)
	})

	t.Run("seek is idempotent", func(t *testing.T) {
		t.Parallel()
		c := NewClock(flatTrack(t, true), privacy.Disabled(10000), 15)
		a := c.Seek(0.42)
		b := c.Seek(0.42)
		assert.Equal(t, a, b)
	})

	t.Run("seek does not resume a paused clock", func(t *testing.T) {
		t.Parallel()
		c := NewClock(flatTrack(t, true), privacy.Disabled(10000), 15)
		c.Play()
		c.Pause()
		c.Seek(0.5)
		assert.Equal(t, Paused, c.Phase())
	})

	t.Run("seek keeps a playing clock playing", func(t *testing.T) {
		t.Parallel()
		c := NewClock(flatTrack(t, true), privacy.Disabled(10000), 15)
		c.Play()
		c.Seek(0.5)
		assert.Equal(t, Playing, c.Phase())
	})

	t.Run("seek fires smoothing reset", func(t *testing.T) {
		t.Parallel()
		c := NewClock(flatTrack(t, true), privacy.Disabled(10000), 15)
		var reset float64 = -1
		c.OnSeek(func(d float64) { reset = d })
		c.Seek(0.5)
		assert.Equal(t, 5000.0, reset)
	})

	t.Run("seek realigns elapsed in time mode", func(t *testing.T) {
		t.Parallel()
		c := NewClock(flatTrack(t, true), privacy.Disabled(10000), 15)
		c.Seek(0.5) // 5000m at 10 m/s
		assert.InDelta(t, 500.0, c.Elapsed(), 1e-9)
	})

	t.Run("out of range fractions clamp", func(t *testing.T) {
		t.Parallel()
		c := NewClock(flatTrack(t, true), privacy.Disabled(10000), 15)
		assert.Equal(t, 0.0, c.Seek(-2).Distance)
		assert.Equal(t, 10000.0, c.Seek(2).Distance)
	})
}

func TestLifecycle(t *testing.T) {
	t.Parallel()

	t.Run("restart rewinds and plays", func(t *testing.T) {
		t.Parallel()
		win := privacy.Compute(10000, 3000)
		c := NewClock(flatTrack(t, true), win, 15)
		c.Play()
		c.Advance(100)
		c.Restart()
		assert.Equal(t, Playing, c.Phase())
		assert.Equal(t, 3000.0, c.Distance())
	})

	t.Run("play after end replays from window start", func(t *testing.T) {
		t.Parallel()
		c := NewClock(flatTrack(t, true), privacy.Disabled(10000), 15)
		c.Play()
		c.Advance(1e6)
		require.Equal(t, Stopped, c.Phase())
		c.Play()
		assert.Equal(t, Playing, c.Phase())
		assert.Equal(t, 0.0, c.Distance())
	})

	t.Run("stop is safe from any state", func(t *testing.T) {
		t.Parallel()
		c := NewClock(flatTrack(t, true), privacy.Disabled(10000), 15)
		c.Stop()
		c.Play()
		c.Stop()
		assert.Equal(t, Stopped, c.Phase())
	})

	t.Run("ever started tracks first play", func(t *testing.T) {
		t.Parallel()
		c := NewClock(flatTrack(t, true), privacy.Disabled(10000), 15)
		assert.False(t, c.EverStarted())
		c.Play()
		assert.True(t, c.EverStarted())
		c.Stop()
		assert.True(t, c.EverStarted())
	})
}
