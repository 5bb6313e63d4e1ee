package tiles

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/banshee-data/flyover/internal/geo"
	"github.com/banshee-data/flyover/internal/monitoring"
	"github.com/banshee-data/flyover/internal/timeutil"
)

const userAgent = "flyover/1.0"

// rotationRadiusFactor widens the viewport prefetch margin while the
// camera is turning, so tiles entering frame from the side are warm.
const rotationRadiusFactor = 1.5

// Fetcher retrieves one tile's raw image bytes.
type Fetcher interface {
	Fetch(ctx context.Context, t Tile) ([]byte, error)
}

// Store caches tile bytes between sessions.
type Store interface {
	Get(t Tile) ([]byte, bool, error)
	Put(t Tile, data []byte) error
}

// HTTPFetcher downloads tiles from a {z}/{x}/{y} template URL.
type HTTPFetcher struct {
	Client   *http.Client
	Template string
}

func (f *HTTPFetcher) Fetch(ctx context.Context, t Tile) ([]byte, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.URL(f.Template), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build tile request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tile %d/%d/%d: %w", t.Z, t.X, t.Y, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tile %d/%d/%d: unexpected status %d", t.Z, t.X, t.Y, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// PrefetchConfig bounds the route-wide warm-up phase.
type PrefetchConfig struct {
	// Budget caps the number of tiles fetched before playback starts.
	Budget int
	// Deadline caps the warm-up wall time; playback starts regardless
	// when it expires.
	Deadline time.Duration
	// Workers is the fetch concurrency.
	Workers int
	// ViewportInterval throttles the viewport follower.
	ViewportInterval time.Duration
	// ViewportRadiusPx is the viewport half-diagonal in pixels.
	ViewportRadiusPx float64
}

// Result summarizes a route warm-up pass.
type Result struct {
	Requested int
	Fetched   int
	Cached    int
	Failed    int
	// DeadlineHit is true when the warm-up was cut short.
	DeadlineHit bool
}

// Prefetcher warms the tile cache ahead of the camera. Per-tile failures
// are logged and skipped; the map host falls back to live loading.
type Prefetcher struct {
	fetcher Fetcher
	store   Store
	cfg     PrefetchConfig
	clock   timeutil.Clock

	mu       sync.Mutex
	inflight map[Tile]struct{}

	// limit bounds fetch concurrency across the route warm-up and the
	// viewport follower.
	limit chan struct{}

	lastViewport time.Time
}

func NewPrefetcher(fetcher Fetcher, store Store, cfg PrefetchConfig, clock timeutil.Clock) *Prefetcher {
	if cfg.Budget <= 0 {
		cfg.Budget = 256
	}
	if cfg.Deadline <= 0 {
		cfg.Deadline = 10 * time.Second
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	if cfg.ViewportInterval <= 0 {
		cfg.ViewportInterval = 150 * time.Millisecond
	}
	if cfg.ViewportRadiusPx <= 0 {
		cfg.ViewportRadiusPx = 512
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Prefetcher{
		fetcher:  fetcher,
		store:    store,
		cfg:      cfg,
		clock:    clock,
		inflight: make(map[Tile]struct{}),
		limit:    make(chan struct{}, cfg.Workers),
	}
}

// PrefetchRoute warms the tiles along the whole route, bounded by the
// budget and the deadline. It blocks until done or cut off; the returned
// Result says which.
func (p *Prefetcher) PrefetchRoute(ctx context.Context, points []geo.LonLat, zoom int) Result {
	// One tile of padding around the route line.
	tiles := Covering(points, zoom, TileSize)
	if len(tiles) > p.cfg.Budget {
		tiles = tiles[:p.cfg.Budget]
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Deadline)
	defer cancel()

	res := Result{Requested: len(tiles)}

	var mu sync.Mutex
	var wg sync.WaitGroup

loop:
	for _, t := range tiles {
		select {
		case <-ctx.Done():
			res.DeadlineHit = true
			break loop
		case p.limit <- struct{}{}:
		}

		wg.Add(1)
		go func(t Tile) {
			defer wg.Done()
			defer func() { <-p.limit }()

			outcome := p.fetchOne(ctx, t)
			mu.Lock()
			switch outcome {
			case outcomeFetched:
				res.Fetched++
			case outcomeCached:
				res.Cached++
			case outcomeFailed:
				res.Failed++
			}
			mu.Unlock()
		}(t)
	}
	wg.Wait()

	if res.DeadlineHit {
		monitoring.Logf("tile warm-up deadline hit after %d/%d tiles", res.Fetched+res.Cached, res.Requested)
	}
	return res
}

type fetchOutcome int

const (
	outcomeFetched fetchOutcome = iota
	outcomeCached
	outcomeFailed
	outcomeSkipped
)

func (p *Prefetcher) fetchOne(ctx context.Context, t Tile) fetchOutcome {
	p.mu.Lock()
	if _, busy := p.inflight[t]; busy {
		p.mu.Unlock()
		return outcomeSkipped
	}
	p.inflight[t] = struct{}{}
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		delete(p.inflight, t)
		p.mu.Unlock()
	}()

	if p.store != nil {
		if _, ok, err := p.store.Get(t); err == nil && ok {
			return outcomeCached
		}
	}

	data, err := p.fetcher.Fetch(ctx, t)
	if err != nil {
		monitoring.Logf("tile prefetch skipped %d/%d/%d: %v", t.Z, t.X, t.Y, err)
		return outcomeFailed
	}

	if p.store != nil {
		if err := p.store.Put(t, data); err != nil {
			monitoring.Logf("tile cache write failed for %d/%d/%d: %v", t.Z, t.X, t.Y, err)
		}
	}
	return outcomeFetched
}

// viewportTiles enumerates the margin around the center at the current
// zoom level and the next one up, so a zoom-in lands on warm tiles.
func viewportTiles(center geo.LonLat, zoom int, radius float64) []Tile {
	tiles := Covering([]geo.LonLat{center}, zoom, radius)
	if zoom+1 <= MaxZoom {
		tiles = append(tiles, Covering([]geo.LonLat{center}, zoom+1, radius)...)
	}
	return tiles
}

// ViewportTick prefetches the tiles around the camera center, throttled
// to the configured interval. A rotating camera widens the margin. The
// fetches run in the background under the shared worker limit; the call
// never blocks playback.
func (p *Prefetcher) ViewportTick(ctx context.Context, center geo.LonLat, zoom int, rotating bool) bool {
	now := p.clock.Now()
	if now.Sub(p.lastViewport) < p.cfg.ViewportInterval {
		return false
	}
	p.lastViewport = now

	radius := p.cfg.ViewportRadiusPx
	if rotating {
		radius *= rotationRadiusFactor
	}

	go func(tiles []Tile) {
		for _, t := range tiles {
			select {
			case <-ctx.Done():
				return
			case p.limit <- struct{}{}:
			}
			go func(t Tile) {
				defer func() { <-p.limit }()
				p.fetchOne(ctx, t)
			}(t)
		}
	}(viewportTiles(center, zoom, radius))
	return true
}
