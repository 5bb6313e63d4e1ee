package chart

import (
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/flyover/internal/track"
)

// windSectors is the number of direction buckets in the wind rose.
const windSectors = 16

var sectorNames = []string{
	"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE",
	"S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW",
}

// RenderHTML writes a self-contained HTML snapshot of the given tab with
// the cursor drawn as a vertical mark line. Headless hosts (the CLI
// driver) use this in place of a live chart widget.
func RenderHTML(w io.Writer, trk *track.Track, kind TabKind, cursor Cursor) error {
	if !kind.Available(trk) {
		return fmt.Errorf("tab %s: %w", kind, ErrNoData)
	}
	if kind == TabWindRose {
		return renderWindRose(w, trk)
	}
	return renderLine(w, trk, kind, cursor)
}

func xAxisValues(trk *track.Track) ([]string, string) {
	xs := make([]string, trk.Len())
	if trk.HasTime() {
		for i := range xs {
			xs[i] = fmt.Sprintf("%.0fs", trk.TimeOffsetAt(i))
		}
		return xs, "time"
	}
	for i := range xs {
		xs[i] = fmt.Sprintf("%.0fm", trk.CumulativeAt(i))
	}
	return xs, "distance"
}

func renderLine(w io.Writer, trk *track.Track, kind TabKind, cursor Cursor) error {
	line := charts.NewLine()
	xs, xName := xAxisValues(trk)
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Flyover " + kind.String(), Width: "1200px", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: kind.String(), Subtitle: fmt.Sprintf("x=%s points=%d", xName, trk.Len())}),
		charts.WithXAxisOpts(opts.XAxis{Name: xName}),
		charts.WithYAxisOpts(opts.YAxis{Name: kind.String()}),
	)
	line.SetXAxis(xs)

	for name, series := range kind.SeriesSet(trk) {
		data := make([]opts.LineData, len(series))
		for i, v := range series {
			if math.IsNaN(v) {
				data[i] = opts.LineData{Value: nil}
			} else {
				data[i] = opts.LineData{Value: v}
			}
		}
		line.AddSeries(name, data)
	}

	if cursor.Visible {
		line.SetSeriesOptions(charts.WithMarkLineNameXAxisItemOpts(opts.MarkLineNameXAxisItem{
			Name:  "position",
			XAxis: cursorIndex(trk, cursor.X),
		}))
	}

	if err := line.Render(w); err != nil {
		return fmt.Errorf("failed to render %s chart: %w", kind, err)
	}
	return nil
}

// cursorIndex locates the category-axis index nearest the cursor x-value.
func cursorIndex(trk *track.Track, x float64) int {
	best, bestDiff := 0, math.Inf(1)
	for i := 0; i < trk.Len(); i++ {
		axis := trk.CumulativeAt(i)
		if trk.HasTime() {
			axis = trk.TimeOffsetAt(i)
		}
		if diff := math.Abs(axis - x); diff < bestDiff {
			best, bestDiff = i, diff
		}
	}
	return best
}

// renderWindRose aggregates wind samples into 16 direction sectors and
// plots mean speed per sector.
func renderWindRose(w io.Writer, trk *track.Track) error {
	speeds := trk.ChannelValues(track.ChannelWindSpeed)
	dirs := trk.ChannelValues(track.ChannelWindDirection)

	sums := make([]float64, windSectors)
	counts := make([]int, windSectors)
	for i := range speeds {
		if math.IsNaN(speeds[i]) || math.IsNaN(dirs[i]) {
			continue
		}
		sector := int(math.Mod(dirs[i]+360.0/(2*windSectors), 360)/(360.0/windSectors)) % windSectors
		sums[sector] += speeds[i]
		counts[sector]++
	}

	data := make([]opts.BarData, windSectors)
	for i := range data {
		mean := 0.0
		if counts[i] > 0 {
			mean = sums[i] / float64(counts[i])
		}
		data[i] = opts.BarData{Value: mean}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Flyover wind rose", Width: "900px", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{Title: "wind rose", Subtitle: "mean wind speed per direction sector"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "direction"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "mean speed"}),
	)
	bar.SetXAxis(sectorNames)
	bar.AddSeries("wind", data)

	if err := bar.Render(w); err != nil {
		return fmt.Errorf("failed to render wind rose: %w", err)
	}
	return nil
}
