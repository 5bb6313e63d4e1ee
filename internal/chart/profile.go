package chart

import (
	"fmt"
	"io"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/flyover/internal/track"
)

// WriteProfilePNG renders a static elevation-profile PNG, used as a poster
// frame for recording sessions and by the headless driver.
func WriteProfilePNG(w io.Writer, trk *track.Track) error {
	if !TabElevation.Available(trk) {
		return fmt.Errorf("elevation profile: %w", ErrNoData)
	}

	pts := make(plotter.XYs, 0, trk.Len())
	for i := 0; i < trk.Len(); i++ {
		e := trk.Elevation(i)
		if math.IsNaN(e) {
			continue
		}
		pts = append(pts, plotter.XY{X: trk.CumulativeAt(i) / 1000, Y: e})
	}

	p := plot.New()
	p.Title.Text = "Elevation profile"
	p.X.Label.Text = "distance (km)"
	p.Y.Label.Text = "elevation (m)"

	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("failed to build profile line: %w", err)
	}
	line.Width = vg.Points(1)
	p.Add(line, plotter.NewGrid())

	wt, err := p.WriterTo(8*vg.Inch, 3*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("failed to create png writer: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write profile png: %w", err)
	}
	return nil
}
