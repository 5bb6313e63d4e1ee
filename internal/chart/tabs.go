package chart

import (
	"errors"
	"math"

	"github.com/banshee-data/flyover/internal/track"
)

// ErrNoData is returned when a chart tab has no dataset for the current
// track. The host shows a local "no data for this view" message instead of
// an empty chart.
var ErrNoData = errors.New("no data for this view")

// TabKind selects the active chart tab. Each variant carries an explicit
// data accessor and availability rule rather than string branching.
type TabKind int

const (
	TabElevation TabKind = iota
	TabHeartRate
	TabCadence
	TabTemperature
	TabPower
	TabWindImpact
	TabWindRose
	TabAllData
)

// String implements fmt.Stringer for labels and log output.
func (k TabKind) String() string {
	switch k {
	case TabElevation:
		return "elevation"
	case TabHeartRate:
		return "heart_rate"
	case TabCadence:
		return "cadence"
	case TabTemperature:
		return "temperature"
	case TabPower:
		return "power"
	case TabWindImpact:
		return "wind_impact"
	case TabWindRose:
		return "wind_rose"
	case TabAllData:
		return "all_data"
	default:
		return "unknown"
	}
}

// channel maps single-channel tabs to their track channel.
func (k TabKind) channel() (track.Channel, bool) {
	switch k {
	case TabHeartRate:
		return track.ChannelHeartRate, true
	case TabCadence:
		return track.ChannelCadence, true
	case TabTemperature:
		return track.ChannelTemperature, true
	case TabPower:
		return track.ChannelPower, true
	case TabWindImpact:
		return track.ChannelWindImpact, true
	default:
		return 0, false
	}
}

// allDataChannels is the channel order the multi-series tab displays and
// the cursor resolution order for it.
var allDataChannels = []track.Channel{
	track.ChannelHeartRate,
	track.ChannelCadence,
	track.ChannelTemperature,
	track.ChannelPower,
	track.ChannelWindImpact,
}

// Available reports whether the track carries data for this tab.
func (k TabKind) Available(trk *track.Track) bool {
	switch k {
	case TabElevation:
		for i := 0; i < trk.Len(); i++ {
			if !math.IsNaN(trk.Elevation(i)) {
				return true
			}
		}
		return false
	case TabWindRose:
		return trk.HasChannel(track.ChannelWindSpeed) && trk.HasChannel(track.ChannelWindDirection)
	case TabAllData:
		for _, c := range allDataChannels {
			if trk.HasChannel(c) {
				return true
			}
		}
		return false
	default:
		c, ok := k.channel()
		return ok && trk.HasChannel(c)
	}
}

// ValueAt resolves the cursor y-value for this tab at traveled distance d.
// Returns NaN when no value exists there.
func (k TabKind) ValueAt(trk *track.Track, d float64) float64 {
	switch k {
	case TabElevation:
		return trk.ElevationAt(d)
	case TabWindRose:
		return trk.ChannelAt(track.ChannelWindSpeed, d)
	case TabAllData:
		// The multi-series cursor resolves against the first channel that
		// has a value at this position.
		for _, c := range allDataChannels {
			if v := trk.ChannelAt(c, d); !math.IsNaN(v) {
				return v
			}
		}
		return math.NaN()
	default:
		c, ok := k.channel()
		if !ok {
			return math.NaN()
		}
		return trk.ChannelAt(c, d)
	}
}

// Series returns the per-point values this tab plots. Multi-series tabs
// return their primary series; SeriesSet exposes all of them.
func (k TabKind) Series(trk *track.Track) []float64 {
	switch k {
	case TabElevation:
		out := make([]float64, trk.Len())
		for i := range out {
			out[i] = trk.Elevation(i)
		}
		return out
	case TabWindRose:
		return trk.ChannelValues(track.ChannelWindSpeed)
	case TabAllData:
		for _, c := range allDataChannels {
			if vals := trk.ChannelValues(c); vals != nil {
				return vals
			}
		}
		return nil
	default:
		c, ok := k.channel()
		if !ok {
			return nil
		}
		return trk.ChannelValues(c)
	}
}

// SeriesSet returns every named series for the tab; single-channel tabs
// return one entry.
func (k TabKind) SeriesSet(trk *track.Track) map[string][]float64 {
	if k != TabAllData {
		if s := k.Series(trk); s != nil {
			return map[string][]float64{k.String(): s}
		}
		return nil
	}
	out := make(map[string][]float64)
	names := []string{"heart_rate", "cadence", "temperature", "power", "wind_impact"}
	for i, c := range allDataChannels {
		if vals := trk.ChannelValues(c); vals != nil {
			out[names[i]] = vals
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
