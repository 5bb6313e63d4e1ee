// Command gen-track generates a synthetic track payload for testing the
// flyover: a wandering route with a climb in the middle, optional
// timestamps, sensor channels, and photo markers.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"time"

	"github.com/banshee-data/flyover/internal/track"
)

func main() {
	output := flag.String("o", "track.json", "output path")
	points := flag.Int("n", 500, "number of track points")
	distance := flag.Float64("dist", 10000, "total distance in meters")
	withTime := flag.Bool("time", true, "include timestamps")
	speedKmh := flag.Float64("speed", 25, "average speed for timestamps, km/h")
	photos := flag.Int("photos", 3, "number of photo markers")
	seed := flag.Int64("seed", 1, "random seed")
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))
	p := &track.Payload{}

	startLon, startLat := 13.40, 52.50
	step := *distance / float64(*points-1)
	mPerDegLon := 111320 * math.Cos(startLat*math.Pi/180)
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	heading := 0.0
	lon, lat := startLon, startLat
	for i := 0; i < *points; i++ {
		d := float64(i) * step

		// Wandering heading, plus a hill in the middle third.
		heading += (rng.Float64() - 0.5) * 0.3
		lon += step * math.Cos(heading) / mPerDegLon
		lat += step * math.Sin(heading) / 111320

		elev := 80.0
		frac := d / *distance
		if frac > 0.33 && frac < 0.66 {
			elev += 120 * math.Sin((frac-0.33)/0.33*math.Pi)
		}

		p.Coordinates = append(p.Coordinates, []float64{lon, lat, elev})
		p.CumulativeDistance = append(p.CumulativeDistance, d)

		hr := 115 + 40*math.Sin(frac*math.Pi) + rng.Float64()*8
		p.HeartRates = append(p.HeartRates, &hr)
		cad := 85 + rng.Float64()*10
		p.Cadences = append(p.Cadences, &cad)

		if *withTime {
			sec := d / (*speedKmh / 3.6)
			ts := base.Add(time.Duration(sec * float64(time.Second))).Format(time.RFC3339)
			p.Timestamps = append(p.Timestamps, &ts)
		}
	}

	for i := 0; i < *photos; i++ {
		idx := (i + 1) * *points / (*photos + 1)
		coord := p.Coordinates[idx]
		name := fmt.Sprintf("photo_%02d", i+1)
		p.Photos = append(p.Photos, track.Photo{
			Lat:      coord[1],
			Lon:      coord[0],
			ThumbURL: name + "_thumb.jpg",
			FullURL:  name + ".jpg",
			Caption:  fmt.Sprintf("Waypoint %d", i+1),
		})
	}

	p.Stats.TotalDistanceM = *distance
	if *withTime {
		p.Stats.MovingTimeS = *distance / (*speedKmh / 3.6)
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		log.Fatalf("Failed to marshal payload: %v", err)
	}
	if err := os.WriteFile(*output, data, 0644); err != nil {
		log.Fatalf("Failed to write payload: %v", err)
	}
	log.Printf("✓ Created: %s (%d points, %.0fm, %d photos)", *output, *points, *distance, *photos)
}
