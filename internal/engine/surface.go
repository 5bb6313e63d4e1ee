package engine

import (
	"github.com/banshee-data/flyover/internal/camera"
	"github.com/banshee-data/flyover/internal/chart"
	"github.com/banshee-data/flyover/internal/geo"
	"github.com/banshee-data/flyover/internal/photo"
	"github.com/banshee-data/flyover/internal/route"
)

// Surface is the rendering host the engine drives: a map widget in an
// interactive host, a frame compositor in the headless driver. Calls
// arrive from whichever goroutine ticks the engine, never concurrently.
type Surface interface {
	// SetCamera applies a committed camera pose.
	SetCamera(camera.State)
	// SetMarker moves the rider marker.
	SetMarker(geo.LonLat)
	// SetRouteSegments replaces the traveled-route polyline.
	SetRouteSegments([]route.Segment)
	// UpdateChartCursor repaints the chart cursor.
	UpdateChartCursor(chart.Cursor)

	// ShowPhotoOverlay and HidePhotoOverlay bracket one photo cue.
	ShowPhotoOverlay(photo.Cue)
	HidePhotoOverlay()

	// SetNightOverlayOpacity dims the map for the day/night overlay.
	SetNightOverlayOpacity(float64)

	// ShowMessage surfaces a user-facing notice (e.g. a track without
	// coordinates).
	ShowMessage(text string)

	// ConvertLabelsToImages and RestoreLabels bracket a recording session:
	// DOM-backed labels do not composite into captured frames, so the host
	// rasterizes them for the duration.
	ConvertLabelsToImages()
	RestoreLabels()

	// ClearPhotoLayers and RestorePhotoLayers bracket photo-overlay
	// transitions while recording, so half-composited layers never reach a
	// captured frame.
	ClearPhotoLayers()
	RestorePhotoLayers()
}

// NopSurface discards every call. Embed it to implement only part of
// Surface in tests or minimal hosts.
type NopSurface struct{}

func (NopSurface) SetCamera(camera.State)           {}
func (NopSurface) SetMarker(geo.LonLat)             {}
func (NopSurface) SetRouteSegments([]route.Segment) {}
func (NopSurface) UpdateChartCursor(chart.Cursor)   {}
func (NopSurface) ShowPhotoOverlay(photo.Cue)       {}
func (NopSurface) HidePhotoOverlay()                {}
func (NopSurface) SetNightOverlayOpacity(float64)   {}
func (NopSurface) ShowMessage(string)               {}
func (NopSurface) ConvertLabelsToImages()           {}
func (NopSurface) RestoreLabels()                   {}
func (NopSurface) ClearPhotoLayers()                {}
func (NopSurface) RestorePhotoLayers()              {}
