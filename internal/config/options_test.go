package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

func TestDefaults(t *testing.T) {
	t.Parallel()

	o := EmptyOptions()
	assert.Equal(t, "vector", o.GetStyle())
	assert.Equal(t, 15.5, o.GetDefaultZoom())
	assert.False(t, o.GetPrivacyEnabled())
	assert.Equal(t, 200.0, o.GetPrivacyTrimMeters())
	assert.Equal(t, 15.0, o.GetBaselineSpeedKmh())
	assert.Equal(t, 3200*time.Millisecond, o.GetIntroDuration())
	assert.Equal(t, 40.0, o.GetMaxTurnRateDegPerSec())
	assert.Equal(t, 5, o.GetGradientBuckets())
	assert.Equal(t, 25*time.Millisecond, o.GetRouteMinUpdateInterval())
	assert.Equal(t, 10.0, o.GetRouteMinUpdateMeters())
	assert.Equal(t, 80*time.Millisecond, o.GetChartRepaintInterval())
	assert.Equal(t, 4*time.Second, o.GetPhotoOverlayDuration())
	assert.Equal(t, 2.0, o.GetPhotoOverlayRecordingFactor())
	assert.Equal(t, int64(200)*1024*1024, o.GetRecorderTargetChunkBytes())
	assert.Equal(t, int64(250)*1024*1024, o.GetRecorderMaxChunkBytes())
	assert.Equal(t, 256, o.GetTilePrefetchBudget())
	assert.Empty(t, o.GetTileURLTemplate())
}

func TestValidate(t *testing.T) {
	t.Parallel()

	t.Run("empty options are valid", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, EmptyOptions().Validate())
	})

	t.Run("rejects unknown style", func(t *testing.T) {
		t.Parallel()
		o := &Options{Style: ptrString("satellite")}
		assert.Error(t, o.Validate())
	})

	t.Run("rejects negative trim", func(t *testing.T) {
		t.Parallel()
		o := &Options{PrivacyTrimMeters: ptrFloat64(-1)}
		assert.Error(t, o.Validate())
	})

	t.Run("rejects target chunk at or above max", func(t *testing.T) {
		t.Parallel()
		o := &Options{RecorderTargetChunkMB: ptrInt(250), RecorderMaxChunkMB: ptrInt(250)}
		assert.Error(t, o.Validate())
	})

	t.Run("rejects bad duration strings", func(t *testing.T) {
		t.Parallel()
		o := &Options{IntroDuration: ptrString("fast")}
		assert.Error(t, o.Validate())
	})

	t.Run("accepts valid overrides", func(t *testing.T) {
		t.Parallel()
		o := &Options{
			Style:             ptrString("raster"),
			PrivacyTrimMeters: ptrFloat64(3000),
			IntroDuration:     ptrString("2s"),
		}
		assert.NoError(t, o.Validate())
	})
}

func TestLoadOptions(t *testing.T) {
	t.Parallel()

	t.Run("loads partial config", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		path := filepath.Join(dir, "options.json")
		require.NoError(t, os.WriteFile(path, []byte(`{
			"privacy_enabled": true,
			"privacy_trim_meters": 3000,
			"baseline_speed_kmh": 20
		}`), 0644))

		o, err := LoadOptions(path)
		require.NoError(t, err)
		assert.True(t, o.GetPrivacyEnabled())
		assert.Equal(t, 3000.0, o.GetPrivacyTrimMeters())
		assert.Equal(t, 20.0, o.GetBaselineSpeedKmh())
		// Untouched fields keep defaults.
		assert.Equal(t, "vector", o.GetStyle())
	})

	t.Run("rejects non-json extension", func(t *testing.T) {
		t.Parallel()
		_, err := LoadOptions("options.yaml")
		assert.Error(t, err)
	})

	t.Run("rejects invalid values", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		path := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"style": "holographic"}`), 0644))
		_, err := LoadOptions(path)
		assert.Error(t, err)
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		path := filepath.Join(dir, "broken.json")
		require.NoError(t, os.WriteFile(path, []byte(`{`), 0644))
		_, err := LoadOptions(path)
		assert.Error(t, err)
	})
}
