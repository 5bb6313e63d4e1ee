// Package privacy computes the playable distance sub-range that excludes a
// configured trim distance from both ends of the track. Every consumer of
// traveled distance (marker, progressive route, photo cues, chart domain)
// clamps through the same window; whole-track statistics never do.
package privacy

// MinSpanMeters is the minimum playable span. A window narrower than this
// silently degrades to disabled rather than erroring.
const MinSpanMeters = 10

// Window is the playable distance sub-range, immutable per session.
type Window struct {
	Start   float64
	End     float64
	Enabled bool
}

// Compute derives the window from the total track distance and the trim
// distance applied to each end. A degenerate result disables the window.
func Compute(totalDistance, trimMeters float64) Window {
	if trimMeters <= 0 || totalDistance <= 0 {
		return Disabled(totalDistance)
	}

	start := trimMeters
	if start > totalDistance {
		start = totalDistance
	}
	end := totalDistance - trimMeters
	if end < start {
		end = start
	}

	if end-start < MinSpanMeters {
		return Disabled(totalDistance)
	}
	return Window{Start: start, End: end, Enabled: true}
}

// Disabled returns a pass-through window covering the whole track.
func Disabled(totalDistance float64) Window {
	return Window{Start: 0, End: totalDistance, Enabled: false}
}

// Clamp restricts a traveled distance to the window.
func (w Window) Clamp(d float64) float64 {
	if d < w.Start {
		return w.Start
	}
	if d > w.End {
		return w.End
	}
	return d
}

// Span returns the playable distance.
func (w Window) Span() float64 { return w.End - w.Start }

// Contains reports whether d lies within the window.
func (w Window) Contains(d float64) bool { return d >= w.Start && d <= w.End }
