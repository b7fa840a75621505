package dem

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/viewshed/internal/httputil"
	"github.com/banshee-data/viewshed/internal/monitoring"
)

// DefaultFetchConcurrency bounds parallel tile downloads.
const DefaultFetchConcurrency = 8

// TerrariumProvider mosaics Terrarium tiles into an observer-centred
// square covering the requested radius.
type TerrariumProvider struct {
	Client      httputil.HTTPClient
	Cache       TileCache // optional
	URLTemplate string    // must contain {z}, {x} and {y}
	Concurrency int
}

// NewTerrariumProvider returns a provider with the default concurrency.
func NewTerrariumProvider(client httputil.HTTPClient, cache TileCache, urlTemplate string) *TerrariumProvider {
	return &TerrariumProvider{
		Client:      client,
		Cache:       cache,
		URLTemplate: urlTemplate,
		Concurrency: DefaultFetchConcurrency,
	}
}

// TileURL expands the URL template for t.
func (p *TerrariumProvider) TileURL(t Tile) string {
	return strings.NewReplacer(
		"{z}", strconv.Itoa(t.Z),
		"{x}", strconv.Itoa(t.X),
		"{y}", strconv.Itoa(t.Y),
	).Replace(p.URLTemplate)
}

// tileSource reports where a tile came from.
type tileSource int

const (
	fromCache tileSource = iota
	fromNetwork
	missing
)

// fetchTile returns the encoded tile, consulting the cache first and
// writing network fetches back to it. Upstream 404s are reported as
// missing rather than as errors: Terrarium has no tiles over some oceans.
func (p *TerrariumProvider) fetchTile(ctx context.Context, t Tile) ([]byte, tileSource, error) {
	if p.Cache != nil {
		data, ok, err := p.Cache.Get(ctx, t)
		if err != nil {
			monitoring.Logf("[dem] cache read %s failed, refetching: %v", t, err)
		} else if ok {
			return data, fromCache, nil
		}
	}
	return p.fetchRemote(ctx, t)
}

// fetchRemote downloads t and writes it back to the cache.
func (p *TerrariumProvider) fetchRemote(ctx context.Context, t Tile) ([]byte, tileSource, error) {
	data, err := httputil.Fetch(ctx, p.Client, p.TileURL(t))
	var se *httputil.StatusError
	if errors.As(err, &se) && se.Code == http.StatusNotFound {
		return nil, missing, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %s: %w", ErrTileFetch, t, err)
	}

	if p.Cache != nil {
		if err := p.Cache.Put(ctx, t, data); err != nil {
			monitoring.Logf("[dem] cache write %s failed: %v", t, err)
		}
	}
	return data, fromNetwork, nil
}

// loadTile returns the decoded tile; missing tiles are all NaN. A cached
// tile that fails to decode is evicted and downloaded again once.
func (p *TerrariumProvider) loadTile(ctx context.Context, t Tile) (*mat.Dense, error) {
	data, src, err := p.fetchTile(ctx, t)
	if err != nil {
		return nil, err
	}
	grid, err := decodeTile(t, data, src)
	if err == nil || src != fromCache {
		return grid, err
	}

	monitoring.Logf("[dem] cached %s is corrupt, refetching: %v", t, err)
	if err := p.Cache.Delete(ctx, t); err != nil {
		monitoring.Logf("[dem] cache evict %s failed: %v", t, err)
	}
	data, src, err = p.fetchRemote(ctx, t)
	if err != nil {
		return nil, err
	}
	return decodeTile(t, data, src)
}

func decodeTile(t Tile, data []byte, src tileSource) (*mat.Dense, error) {
	if src == missing {
		return nanTile(), nil
	}
	grid, err := DecodeTerrarium(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrTileFetch, t, err)
	}
	if r, c := grid.Dims(); r != TileSize || c != TileSize {
		return nil, fmt.Errorf("%w: %s is %dx%d, want %dx%d", ErrTileFetch, t, r, c, TileSize, TileSize)
	}
	return grid, nil
}

func nanTile() *mat.Dense {
	data := make([]float64, TileSize*TileSize)
	for i := range data {
		data[i] = math.NaN()
	}
	return mat.NewDense(TileSize, TileSize, data)
}

// GetDEM implements Provider.
func (p *TerrariumProvider) GetDEM(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if math.Abs(req.ObserverLat) > maxMercatorLat {
		return nil, fmt.Errorf("%w: latitude %v outside Web-Mercator coverage", ErrInvalidRequest, req.ObserverLat)
	}

	z := ZoomForResolution(req.ObserverLat, req.ResolutionM)
	cellSize := GroundResolution(req.ObserverLat, z)
	px, py := LatLonToPixel(req.ObserverLat, req.ObserverLon, z)
	radiusPx := math.Ceil(req.RadiusKm * 1000 / cellSize)

	world := int(worldPixels(z))
	col0 := max(int(math.Floor(px-radiusPx)), 0)
	col1 := min(int(math.Floor(px+radiusPx)), world-1)
	row0 := max(int(math.Floor(py-radiusPx)), 0)
	row1 := min(int(math.Floor(py+radiusPx)), world-1)
	rows, cols := row1-row0+1, col1-col0+1
	if rows*cols > MaxCells {
		return nil, fmt.Errorf("%w: %dx%d cells at zoom %d", ErrTooLarge, rows, cols, z)
	}

	tiles := tileRange(z, col0/TileSize, row0/TileSize, col1/TileSize, row1/TileSize)
	out := mat.NewDense(rows, cols, nil)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency())
	for _, t := range tiles {
		g.Go(func() error {
			tile, err := p.loadTile(gctx, t)
			if err != nil {
				return err
			}
			// Tiles cover disjoint windows of out.
			tr0, tc0 := t.Y*TileSize, t.X*TileSize
			for r := max(row0, tr0); r <= min(row1, tr0+TileSize-1); r++ {
				for c := max(col0, tc0); c <= min(col1, tc0+TileSize-1); c++ {
					out.Set(r-row0, c-col0, tile.At(r-tr0, c-tc0))
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Result{
		Elevation: out,
		Transform: pixelTransform(z, row0, col0),
		CRS:       MercatorCRS,
		CellSizeM: cellSize,
		Metadata: map[string]any{
			MetaSource:      "terrarium",
			MetaZoom:        z,
			MetaTiles:       len(tiles),
			MetaObserverRow: int(math.Floor(py)) - row0,
			MetaObserverCol: int(math.Floor(px)) - col0,
		},
	}, nil
}

func (p *TerrariumProvider) concurrency() int {
	if p.Concurrency <= 0 {
		return DefaultFetchConcurrency
	}
	return p.Concurrency
}

// PrefetchStats summarises a PrefetchBBox run.
type PrefetchStats struct {
	Zoom    int `json:"zoom"`
	Total   int `json:"total"`
	Fetched int `json:"fetched"`
	Cached  int `json:"cached"`
	Missing int `json:"missing"`
	Failed  int `json:"failed"`
}

// PrefetchBBox warms the cache with every tile covering b at the zoom for
// resolutionM (chosen at the box's centre latitude). Individual tile
// failures are counted, not returned; only cancellation aborts the run.
func (p *TerrariumProvider) PrefetchBBox(ctx context.Context, b BBox, resolutionM float64) (PrefetchStats, error) {
	if err := b.Validate(); err != nil {
		return PrefetchStats{}, err
	}
	if !(resolutionM > 0) {
		return PrefetchStats{}, fmt.Errorf("%w: resolution must be positive, got %v", ErrInvalidRequest, resolutionM)
	}
	if p.Cache == nil {
		return PrefetchStats{}, fmt.Errorf("prefetch requires a tile cache")
	}

	z := ZoomForResolution((b.MinLat+b.MaxLat)/2, resolutionM)
	tiles := TilesForBBox(b, z)

	var fetched, cached, miss, failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(p.concurrency())
	for _, t := range tiles {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			_, src, err := p.fetchTile(ctx, t)
			switch {
			case err != nil:
				failed.Add(1)
				monitoring.Logf("[dem] prefetch %s: %v", t, err)
			case src == fromCache:
				cached.Add(1)
			case src == missing:
				miss.Add(1)
			default:
				fetched.Add(1)
			}
			return nil
		})
	}
	err := g.Wait()

	return PrefetchStats{
		Zoom:    z,
		Total:   len(tiles),
		Fetched: int(fetched.Load()),
		Cached:  int(cached.Load()),
		Missing: int(miss.Load()),
		Failed:  int(failed.Load()),
	}, err
}
