package track

import (
	"encoding/json"
	"fmt"
)

// Payload is the immutable track document produced by the backend ingest
// pipeline. The engine consumes it read-only; it never writes one.
type Payload struct {
	// Coordinates holds [lon, lat] or [lon, lat, elevation] triples.
	Coordinates        [][]float64 `json:"coordinates"`
	Timestamps         []*string   `json:"timestamps"` // ISO8601 or null
	CumulativeDistance []float64   `json:"cumulativeDistance"`

	// Parallel optional channels. Entries may be null.
	HeartRates     []*float64 `json:"heartRates"`
	Cadences       []*float64 `json:"cadences"`
	Temperatures   []*float64 `json:"temperatures"`
	Powers         []*float64 `json:"powers"`
	WindSpeeds     []*float64 `json:"windSpeeds"`
	WindDirections []*float64 `json:"windDirections"`
	WindImpacts    []*float64 `json:"windImpacts"`

	Bounds     []float64 `json:"bounds"` // [west, south, east, north]
	Stats      Stats     `json:"stats"`
	Photos     []Photo   `json:"photos"`
	Simplified bool      `json:"simplified"`
}

// Stats are whole-track figures computed by the backend from the full,
// untrimmed track. Privacy trimming never alters them.
type Stats struct {
	TotalDistanceM float64 `json:"total_distance_m"`
	MovingTimeS    float64 `json:"moving_time_s"`
	AverageSpeedMS float64 `json:"average_speed_m_s"`
	ElevationGainM float64 `json:"elevation_gain_m"`
}

// Photo is one geotagged photo attached to the track.
type Photo struct {
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	Timestamp string  `json:"timestamp"` // ISO8601, may be empty
	ThumbURL  string  `json:"thumbUrl"`
	FullURL   string  `json:"fullUrl"`
	Caption   string  `json:"caption"`
}

// DecodePayload parses a JSON track payload.
func DecodePayload(data []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse track payload: %w", err)
	}
	return &p, nil
}
