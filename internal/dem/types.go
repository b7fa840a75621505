package dem

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrInvalidRequest is returned for out-of-range request parameters.
	ErrInvalidRequest = errors.New("dem: invalid request")
	// ErrTooLarge is returned when the requested window exceeds MaxCells.
	ErrTooLarge = errors.New("dem: requested area too large")
	// ErrOutsideDEM is returned when a coordinate falls outside the raster.
	ErrOutsideDEM = errors.New("dem: coordinate outside raster")
	// ErrTileFetch is returned when a tile could not be retrieved.
	ErrTileFetch = errors.New("dem: tile fetch failed")
)

// MaxCells bounds the number of cells a single request may produce.
const MaxCells = 4096 * 4096

// Metadata keys set by providers.
const (
	MetaSource      = "source"
	MetaZoom        = "zoom"
	MetaTiles       = "tiles"
	MetaObserverRow = "observer_row"
	MetaObserverCol = "observer_col"
)

// Request describes the terrain needed around an observer.
type Request struct {
	ObserverLat float64
	ObserverLon float64
	RadiusKm    float64
	ResolutionM float64
}

// Validate checks coordinate ranges and that radius and resolution are
// positive and finite.
func (r Request) Validate() error {
	if !(r.ObserverLat >= -90 && r.ObserverLat <= 90) {
		return fmt.Errorf("%w: latitude must be between -90 and 90, got %v", ErrInvalidRequest, r.ObserverLat)
	}
	if !(r.ObserverLon >= -180 && r.ObserverLon <= 180) {
		return fmt.Errorf("%w: longitude must be between -180 and 180, got %v", ErrInvalidRequest, r.ObserverLon)
	}
	if !(r.RadiusKm > 0) || math.IsInf(r.RadiusKm, 0) {
		return fmt.Errorf("%w: radius must be positive, got %v", ErrInvalidRequest, r.RadiusKm)
	}
	if !(r.ResolutionM > 0) || math.IsInf(r.ResolutionM, 0) {
		return fmt.Errorf("%w: resolution must be positive, got %v", ErrInvalidRequest, r.ResolutionM)
	}
	return nil
}

// Result is an elevation raster with its georeferencing.
type Result struct {
	// Elevation in metres; NaN marks missing data.
	Elevation *mat.Dense
	// Transform maps (row, col) to CRS coordinates.
	Transform Affine
	// CRS names the coordinate system of Transform, e.g. "EPSG:3857".
	CRS string
	// CellSizeM is the ground distance between adjacent cell centres at
	// the observer's latitude.
	CellSizeM float64
	Metadata  map[string]any
}

// Provider fetches elevation data for a request.
type Provider interface {
	GetDEM(ctx context.Context, req Request) (*Result, error)
}

// ObserverCell resolves lat/lon to integer (row, col) indices in res.
func ObserverCell(res *Result, lat, lon float64) (row, col int, err error) {
	if res == nil || res.Elevation == nil {
		return 0, 0, fmt.Errorf("%w: empty result", ErrOutsideDEM)
	}
	x, y := MercatorXY(lat, lon)
	row, col = res.Transform.RowCol(x, y)
	rows, cols := res.Elevation.Dims()
	if row < 0 || row >= rows || col < 0 || col >= cols {
		return 0, 0, fmt.Errorf("%w: (%.6f, %.6f) maps to (%d, %d) in %dx%d", ErrOutsideDEM, lat, lon, row, col, rows, cols)
	}
	return row, col, nil
}
