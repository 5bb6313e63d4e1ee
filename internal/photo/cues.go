// Package photo schedules the photo-overlay cues: geotagged photos
// projected onto the route, deduplicated by rounded location, and shown
// one at a time while playback pauses underneath.
package photo

import (
	"fmt"
	"math"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/flyover/internal/geo"
	"github.com/banshee-data/flyover/internal/track"
)

// cueNamespace makes cue IDs stable across sessions for the same location.
var cueNamespace = uuid.NameSpaceURL

// Cue is a scheduled photo-overlay trigger tied to a distance (and, when
// the track has timestamps, a time offset) on the route.
type Cue struct {
	// ID is stable per rounded location, so the session's shown-set
	// survives rebuilds.
	ID string
	// Key is the rounded location (~1.1m grid) used for spatial dedup.
	Key string
	// Distance is the along-route trigger distance in meters.
	Distance float64
	// TimeOffset is the trigger time in playback seconds; NaN in distance
	// mode or when the photo carries no usable timestamp.
	TimeOffset float64

	Thumb   string
	Full    string
	Caption string
}

// locationKey rounds a position to roughly 1.1m so photos taken at the
// same spot collapse into one cue.
func locationKey(lat, lon float64) string {
	return fmt.Sprintf("%.5f,%.5f", lat, lon)
}

// filenamesCorrespond rejects thumbnail/full pairs whose names do not
// refer to the same image.
func filenamesCorrespond(thumb, full string) bool {
	if thumb == "" || full == "" {
		return false
	}
	ts := stem(thumb)
	fs := stem(full)
	ts = strings.TrimSuffix(ts, "_thumb")
	ts = strings.TrimSuffix(ts, "-thumb")
	ts = strings.TrimPrefix(ts, "thumb_")
	if ts == fs {
		return true
	}
	return strings.Contains(fs, ts) || strings.Contains(ts, fs)
}

func stem(url string) string {
	base := path.Base(url)
	if i := strings.LastIndex(base, "."); i > 0 {
		base = base[:i]
	}
	return base
}

// BuildCues projects the track's photos onto the route, drops mismatched
// thumbnail/full pairs, deduplicates same-location entries keeping the
// earliest by along-route distance, and returns cues sorted by distance.
func BuildCues(trk *track.Track) []Cue {
	byKey := make(map[string]Cue)
	for _, ph := range trk.Photos() {
		if !filenamesCorrespond(ph.ThumbURL, ph.FullURL) {
			continue
		}

		d := projectOntoRoute(trk, geo.LonLat{Lon: ph.Lon, Lat: ph.Lat})
		key := locationKey(ph.Lat, ph.Lon)
		cue := Cue{
			ID:         uuid.NewSHA1(cueNamespace, []byte("flyover:cue:"+key)).String(),
			Key:        key,
			Distance:   d,
			TimeOffset: cueTimeOffset(trk, ph, d),
			Thumb:      ph.ThumbURL,
			Full:       ph.FullURL,
			Caption:    ph.Caption,
		}

		if existing, ok := byKey[key]; !ok || cue.Distance < existing.Distance {
			byKey[key] = cue
		}
	}

	cues := make([]Cue, 0, len(byKey))
	for _, c := range byKey {
		cues = append(cues, c)
	}
	sort.Slice(cues, func(i, j int) bool { return cues[i].Distance < cues[j].Distance })
	return cues
}

// projectOntoRoute returns the cumulative distance of the track vertex
// nearest the photo location.
func projectOntoRoute(trk *track.Track, p geo.LonLat) float64 {
	bestDist := math.Inf(1)
	bestCum := 0.0
	for i := 0; i < trk.Len(); i++ {
		d := geo.DistanceMeters(trk.Point(i), p)
		if d < bestDist {
			bestDist = d
			bestCum = trk.CumulativeAt(i)
		}
	}
	return bestCum
}

// cueTimeOffset derives the cue's playback-time trigger: the photo's own
// timestamp relative to the track start when both exist, otherwise the
// track time at the projected distance.
func cueTimeOffset(trk *track.Track, ph track.Photo, d float64) float64 {
	if !trk.HasTime() {
		return math.NaN()
	}
	if ph.Timestamp != "" {
		if ts, err := time.Parse(time.RFC3339, ph.Timestamp); err == nil {
			off := ts.Sub(trk.StartTime()).Seconds()
			if off >= 0 && off <= trk.Duration() {
				return off
			}
		}
	}
	return trk.TimeAt(d)
}
