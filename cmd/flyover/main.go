// Command flyover runs a headless flyover of a track payload: it ticks
// the engine at a fixed frame interval and writes a chart snapshot, an
// elevation profile, and optionally recorded frame chunks.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"

	"github.com/banshee-data/flyover/internal/camera"
	"github.com/banshee-data/flyover/internal/chart"
	"github.com/banshee-data/flyover/internal/config"
	"github.com/banshee-data/flyover/internal/engine"
	"github.com/banshee-data/flyover/internal/geo"
	"github.com/banshee-data/flyover/internal/photo"
	"github.com/banshee-data/flyover/internal/recorder"
	"github.com/banshee-data/flyover/internal/route"
)

// cliSurface keeps the latest painted state so the driver can snapshot
// it and serialize recording frames.
type cliSurface struct {
	engine.NopSurface

	camera  camera.State
	marker  geo.LonLat
	cursor  chart.Cursor
	overlay *photo.Cue
	routes  int
}

func (s *cliSurface) SetCamera(c camera.State)              { s.camera = c }
func (s *cliSurface) SetMarker(m geo.LonLat)                { s.marker = m }
func (s *cliSurface) SetRouteSegments(segs []route.Segment) { s.routes = len(segs) }
func (s *cliSurface) UpdateChartCursor(c chart.Cursor)      { s.cursor = c }
func (s *cliSurface) ShowPhotoOverlay(c photo.Cue)          { s.overlay = &c }
func (s *cliSurface) HidePhotoOverlay()                     { s.overlay = nil }
func (s *cliSurface) ShowMessage(text string)               { log.Printf("notice: %s", text) }

// frame is the recorded per-tick snapshot in passthrough mode.
type frame struct {
	Elapsed  float64      `json:"elapsed"`
	Distance float64      `json:"distance"`
	Camera   camera.State `json:"camera"`
	Marker   geo.LonLat   `json:"marker"`
}

func main() {
	payloadPath := flag.String("payload", "", "track payload JSON path")
	optionsPath := flag.String("options", "", "engine options JSON path (optional)")
	maxSeconds := flag.Float64("duration", 120, "maximum simulated seconds")
	dt := flag.Float64("dt", 1.0/30, "simulated frame interval in seconds")
	speed := flag.Float64("speed", 1, "playback speed multiplier")
	chartOut := flag.String("chart", "", "write chart HTML snapshot to this path")
	profileOut := flag.String("profile", "", "write elevation profile PNG to this path")
	recordDir := flag.String("record", "", "record frames into this directory")
	flag.Parse()

	if *payloadPath == "" {
		log.Fatal("Usage: flyover -payload track.json [-options opts.json]")
	}

	payload, err := os.ReadFile(*payloadPath)
	if err != nil {
		log.Fatalf("Failed to read payload: %v", err)
	}

	opts := config.EmptyOptions()
	if *optionsPath != "" {
		if opts, err = config.LoadOptions(*optionsPath); err != nil {
			log.Fatalf("Failed to load options: %v", err)
		}
	}

	surface := &cliSurface{}
	eng, err := engine.New(payload, opts, surface, nil)
	if err != nil {
		log.Fatalf("Failed to build engine: %v", err)
	}
	defer eng.Close()

	if *recordDir != "" {
		if err := eng.StartRecording(*recordDir, &recorder.PassthroughEncoder{}); err != nil {
			log.Fatalf("Failed to start recording: %v", err)
		}
	}

	ctx := context.Background()
	eng.Start(ctx)
	eng.SetSpeed(*speed)

	frames := 0
	for elapsed := 0.0; elapsed < *maxSeconds; elapsed += *dt {
		state := eng.Tick(ctx, *dt)
		frames++

		if eng.Recording() {
			data, err := json.Marshal(frame{
				Elapsed:  state.Elapsed,
				Distance: state.Distance,
				Camera:   surface.camera,
				Marker:   surface.marker,
			})
			if err != nil {
				log.Fatalf("Failed to serialize frame: %v", err)
			}
			if err := eng.RecordFrame(data); err != nil {
				log.Fatalf("Failed to record frame: %v", err)
			}
		}

		if !state.Playing && surface.overlay == nil {
			break // window end reached
		}
	}

	state := eng.State()
	log.Printf("Simulated %d frames: %.0fm traveled, %.1fs elapsed", frames, state.Distance, state.Elapsed)

	if eng.Recording() {
		m, err := eng.StopRecording()
		if err != nil {
			log.Fatalf("Failed to finish recording: %v", err)
		}
		log.Printf("✓ Recorded %d frames in %d chunks under %s", m.TotalFrames, len(m.Chunks), *recordDir)
	}

	if *chartOut != "" {
		f, err := os.Create(*chartOut)
		if err != nil {
			log.Fatalf("Failed to create chart snapshot: %v", err)
		}
		if err := chart.RenderHTML(f, eng.Track(), chart.TabElevation, surface.cursor); err != nil {
			log.Fatalf("Failed to render chart: %v", err)
		}
		f.Close()
		log.Printf("✓ Chart snapshot: %s", *chartOut)
	}

	if *profileOut != "" {
		f, err := os.Create(*profileOut)
		if err != nil {
			log.Fatalf("Failed to create profile: %v", err)
		}
		if err := chart.WriteProfilePNG(f, eng.Track()); err != nil {
			log.Fatalf("Failed to render profile: %v", err)
		}
		f.Close()
		log.Printf("✓ Elevation profile: %s", *profileOut)
	}
}
