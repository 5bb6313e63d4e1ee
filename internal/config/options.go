package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Options is the immutable engine configuration supplied by the host at
// construction. All fields are optional pointers so a partial JSON document
// can override only what it names; the Get* accessors provide the defaults.
// The same schema is used for file-based and embedded configuration.
type Options struct {
	// Map style
	Style          *string  `json:"style,omitempty"` // "raster" or "vector"
	DefaultZoom    *float64 `json:"default_zoom,omitempty"`
	DefaultPitch   *float64 `json:"default_pitch,omitempty"`
	DefaultBearing *float64 `json:"default_bearing,omitempty"`

	// Privacy
	PrivacyEnabled    *bool    `json:"privacy_enabled,omitempty"`
	PrivacyTrimMeters *float64 `json:"privacy_trim_meters,omitempty"`

	// Playback
	BaselineSpeedKmh *float64 `json:"baseline_speed_kmh,omitempty"`
	IntroDuration    *string  `json:"intro_duration,omitempty"` // duration string like "3200ms"

	// Camera
	MaxTurnRateDegPerSec *float64 `json:"max_turn_rate_deg_per_sec,omitempty"`
	CenterSmoothingTau   *string  `json:"center_smoothing_tau,omitempty"` // duration string

	// Progressive route
	GradientColoring       *bool    `json:"gradient_coloring,omitempty"`
	GradientBuckets        *int     `json:"gradient_buckets,omitempty"`
	FlatColor              *string  `json:"flat_color,omitempty"`
	SteepColor             *string  `json:"steep_color,omitempty"`
	RouteMinUpdateInterval *string  `json:"route_min_update_interval,omitempty"`
	RouteMinUpdateMeters   *float64 `json:"route_min_update_meters,omitempty"`

	// Chart
	ChartRepaintInterval *string `json:"chart_repaint_interval,omitempty"`

	// Photo cues
	PhotoOverlayDuration        *string  `json:"photo_overlay_duration,omitempty"`
	PhotoOverlayRecordingFactor *float64 `json:"photo_overlay_recording_factor,omitempty"`
	PhotoMatchWindowMeters      *float64 `json:"photo_match_window_meters,omitempty"`

	// Tile prefetch
	TileURLTemplate          *string `json:"tile_url_template,omitempty"`
	TilePrefetchBudget       *int    `json:"tile_prefetch_budget,omitempty"`
	TilePrefetchTimeout      *string `json:"tile_prefetch_timeout,omitempty"`
	ViewportPrefetchInterval *string `json:"viewport_prefetch_interval,omitempty"`
	TileCachePath            *string `json:"tile_cache_path,omitempty"`

	// Recorder
	RecorderTargetChunkMB *int `json:"recorder_target_chunk_mb,omitempty"`
	RecorderMaxChunkMB    *int `json:"recorder_max_chunk_mb,omitempty"`
	RecorderFrameRate     *int `json:"recorder_frame_rate,omitempty"`
	RecorderBitrateKbps   *int `json:"recorder_bitrate_kbps,omitempty"`

	// Overlays
	DayNightOverlay *bool `json:"day_night_overlay,omitempty"`
}

// EmptyOptions returns an Options with every field unset, i.e. all defaults.
func EmptyOptions() *Options {
	return &Options{}
}

// LoadOptions loads Options from a JSON file. The path must have a .json
// extension and the file must be under 1MB. Fields omitted from the file
// keep their defaults, so partial configs are safe.
func LoadOptions(path string) (*Options, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("options file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat options file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("options file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read options file: %w", err)
	}

	opts := EmptyOptions()
	if err := json.Unmarshal(data, opts); err != nil {
		return nil, fmt.Errorf("failed to parse options JSON: %w", err)
	}

	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	return opts, nil
}

// Validate checks that the configured values are usable.
func (o *Options) Validate() error {
	if o.Style != nil && *o.Style != "raster" && *o.Style != "vector" {
		return fmt.Errorf("style must be \"raster\" or \"vector\", got %q", *o.Style)
	}
	if o.PrivacyTrimMeters != nil && *o.PrivacyTrimMeters < 0 {
		return fmt.Errorf("privacy_trim_meters must be non-negative, got %f", *o.PrivacyTrimMeters)
	}
	if o.BaselineSpeedKmh != nil && *o.BaselineSpeedKmh <= 0 {
		return fmt.Errorf("baseline_speed_kmh must be positive, got %f", *o.BaselineSpeedKmh)
	}
	if o.GradientBuckets != nil && (*o.GradientBuckets < 2 || *o.GradientBuckets > 16) {
		return fmt.Errorf("gradient_buckets must be in [2,16], got %d", *o.GradientBuckets)
	}
	if o.MaxTurnRateDegPerSec != nil && *o.MaxTurnRateDegPerSec <= 0 {
		return fmt.Errorf("max_turn_rate_deg_per_sec must be positive, got %f", *o.MaxTurnRateDegPerSec)
	}
	if o.RecorderTargetChunkMB != nil && o.RecorderMaxChunkMB != nil &&
		*o.RecorderTargetChunkMB >= *o.RecorderMaxChunkMB {
		return fmt.Errorf("recorder_target_chunk_mb (%d) must be below recorder_max_chunk_mb (%d)",
			*o.RecorderTargetChunkMB, *o.RecorderMaxChunkMB)
	}
	if o.TilePrefetchBudget != nil && *o.TilePrefetchBudget < 1 {
		return fmt.Errorf("tile_prefetch_budget must be positive, got %d", *o.TilePrefetchBudget)
	}

	for name, v := range map[string]*string{
		"intro_duration":             o.IntroDuration,
		"center_smoothing_tau":       o.CenterSmoothingTau,
		"route_min_update_interval":  o.RouteMinUpdateInterval,
		"chart_repaint_interval":     o.ChartRepaintInterval,
		"photo_overlay_duration":     o.PhotoOverlayDuration,
		"tile_prefetch_timeout":      o.TilePrefetchTimeout,
		"viewport_prefetch_interval": o.ViewportPrefetchInterval,
	} {
		if v != nil && *v != "" {
			if _, err := time.ParseDuration(*v); err != nil {
				return fmt.Errorf("invalid %s '%s': %w", name, *v, err)
			}
		}
	}

	return nil
}

func durationOr(v *string, def time.Duration) time.Duration {
	if v == nil || *v == "" {
		return def
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return def
	}
	return d
}

// GetStyle returns the map style or the default.
func (o *Options) GetStyle() string {
	if o.Style == nil {
		return "vector"
	}
	return *o.Style
}

// GetDefaultZoom returns the default camera zoom.
func (o *Options) GetDefaultZoom() float64 {
	if o.DefaultZoom == nil {
		return 15.5
	}
	return *o.DefaultZoom
}

// GetDefaultPitch returns the default camera pitch in degrees.
func (o *Options) GetDefaultPitch() float64 {
	if o.DefaultPitch == nil {
		return 55
	}
	return *o.DefaultPitch
}

// GetDefaultBearing returns the default camera bearing in degrees.
func (o *Options) GetDefaultBearing() float64 {
	if o.DefaultBearing == nil {
		return 0
	}
	return *o.DefaultBearing
}

// GetPrivacyEnabled reports whether privacy trimming is requested.
func (o *Options) GetPrivacyEnabled() bool {
	if o.PrivacyEnabled == nil {
		return false
	}
	return *o.PrivacyEnabled
}

// GetPrivacyTrimMeters returns the trim distance applied to each track end.
func (o *Options) GetPrivacyTrimMeters() float64 {
	if o.PrivacyTrimMeters == nil {
		return 200
	}
	return *o.PrivacyTrimMeters
}

// GetBaselineSpeedKmh returns the distance-mode playback speed.
func (o *Options) GetBaselineSpeedKmh() float64 {
	if o.BaselineSpeedKmh == nil {
		return 15
	}
	return *o.BaselineSpeedKmh
}

// GetIntroDuration returns the first-play camera transition duration.
func (o *Options) GetIntroDuration() time.Duration {
	return durationOr(o.IntroDuration, 3200*time.Millisecond)
}

// GetMaxTurnRateDegPerSec returns the camera bearing rate limit.
func (o *Options) GetMaxTurnRateDegPerSec() float64 {
	if o.MaxTurnRateDegPerSec == nil {
		return 40
	}
	return *o.MaxTurnRateDegPerSec
}

// GetCenterSmoothingTau returns the camera center low-pass time constant.
func (o *Options) GetCenterSmoothingTau() time.Duration {
	return durationOr(o.CenterSmoothingTau, 350*time.Millisecond)
}

// GetGradientColoring reports whether elevation-gradient coloring is on.
func (o *Options) GetGradientColoring() bool {
	if o.GradientColoring == nil {
		return true
	}
	return *o.GradientColoring
}

// GetGradientBuckets returns the number of gradient severity buckets.
func (o *Options) GetGradientBuckets() int {
	if o.GradientBuckets == nil {
		return 5
	}
	return *o.GradientBuckets
}

// GetFlatColor returns the flat-gradient polyline color.
func (o *Options) GetFlatColor() string {
	if o.FlatColor == nil {
		return "#3bb2d0"
	}
	return *o.FlatColor
}

// GetSteepColor returns the steep-gradient polyline color.
func (o *Options) GetSteepColor() string {
	if o.SteepColor == nil {
		return "#e55e5e"
	}
	return *o.SteepColor
}

// GetRouteMinUpdateInterval returns the minimum time between route rebuilds.
func (o *Options) GetRouteMinUpdateInterval() time.Duration {
	return durationOr(o.RouteMinUpdateInterval, 25*time.Millisecond)
}

// GetRouteMinUpdateMeters returns the minimum traveled-distance delta
// between route rebuilds.
func (o *Options) GetRouteMinUpdateMeters() float64 {
	if o.RouteMinUpdateMeters == nil {
		return 10
	}
	return *o.RouteMinUpdateMeters
}

// GetChartRepaintInterval returns the chart repaint throttle.
func (o *Options) GetChartRepaintInterval() time.Duration {
	return durationOr(o.ChartRepaintInterval, 80*time.Millisecond)
}

// GetPhotoOverlayDuration returns how long a photo overlay stays visible.
func (o *Options) GetPhotoOverlayDuration() time.Duration {
	return durationOr(o.PhotoOverlayDuration, 4*time.Second)
}

// GetPhotoOverlayRecordingFactor returns the overlay duration multiplier
// applied while a recording session is active.
func (o *Options) GetPhotoOverlayRecordingFactor() float64 {
	if o.PhotoOverlayRecordingFactor == nil {
		return 2.0
	}
	return *o.PhotoOverlayRecordingFactor
}

// GetPhotoMatchWindowMeters returns the distance window for cue matching.
func (o *Options) GetPhotoMatchWindowMeters() float64 {
	if o.PhotoMatchWindowMeters == nil {
		return 50
	}
	return *o.PhotoMatchWindowMeters
}

// GetTileURLTemplate returns the tile URL template ({z}/{x}/{y}
// placeholders) or empty when prefetch is disabled.
func (o *Options) GetTileURLTemplate() string {
	if o.TileURLTemplate == nil {
		return ""
	}
	return *o.TileURLTemplate
}

// GetTilePrefetchBudget returns the maximum tiles fetched by the
// route-wide prefetch.
func (o *Options) GetTilePrefetchBudget() int {
	if o.TilePrefetchBudget == nil {
		return 256
	}
	return *o.TilePrefetchBudget
}

// GetTilePrefetchTimeout returns the deadline for the route-wide prefetch.
func (o *Options) GetTilePrefetchTimeout() time.Duration {
	return durationOr(o.TilePrefetchTimeout, 8*time.Second)
}

// GetViewportPrefetchInterval returns the viewport-edge prefetch throttle.
func (o *Options) GetViewportPrefetchInterval() time.Duration {
	return durationOr(o.ViewportPrefetchInterval, 150*time.Millisecond)
}

// GetTileCachePath returns the sqlite tile cache path or empty when the
// cache is disabled.
func (o *Options) GetTileCachePath() string {
	if o.TileCachePath == nil {
		return ""
	}
	return *o.TileCachePath
}

// GetRecorderTargetChunkBytes returns the chunk rotation threshold.
func (o *Options) GetRecorderTargetChunkBytes() int64 {
	mb := 200
	if o.RecorderTargetChunkMB != nil {
		mb = *o.RecorderTargetChunkMB
	}
	return int64(mb) * 1024 * 1024
}

// GetRecorderMaxChunkBytes returns the hard chunk size ceiling.
func (o *Options) GetRecorderMaxChunkBytes() int64 {
	mb := 250
	if o.RecorderMaxChunkMB != nil {
		mb = *o.RecorderMaxChunkMB
	}
	return int64(mb) * 1024 * 1024
}

// GetRecorderFrameRate returns the recording frame rate.
func (o *Options) GetRecorderFrameRate() int {
	if o.RecorderFrameRate == nil {
		return 30
	}
	return *o.RecorderFrameRate
}

// GetRecorderBitrateKbps returns the recording bitrate.
func (o *Options) GetRecorderBitrateKbps() int {
	if o.RecorderBitrateKbps == nil {
		return 8000
	}
	return *o.RecorderBitrateKbps
}

// GetDayNightOverlay reports whether the day/night overlay is enabled.
func (o *Options) GetDayNightOverlay() bool {
	if o.DayNightOverlay == nil {
		return false
	}
	return *o.DayNightOverlay
}
