package viewshed

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Validate checks the preconditions shared by every engine: a non-empty 2D
// grid, a strictly positive cell size, a non-negative observer height and
// an observer index inside the grid. It has no side effects.
func Validate(grid mat.Matrix, p Params) error {
	if isNilGrid(grid) {
		return fmt.Errorf("%w: grid is nil", ErrShape)
	}
	rows, cols := grid.Dims()
	if rows <= 0 || cols <= 0 {
		return fmt.Errorf("%w: grid is %dx%d", ErrShape, rows, cols)
	}
	if !(p.CellSizeM > 0) || math.IsInf(p.CellSizeM, 0) {
		return fmt.Errorf("%w: cell_size_m must be positive, got %v", ErrInvalidParameter, p.CellSizeM)
	}
	if !(p.ObserverHeightM >= 0) || math.IsInf(p.ObserverHeightM, 0) {
		return fmt.Errorf("%w: observer_height_m must be non-negative, got %v", ErrInvalidParameter, p.ObserverHeightM)
	}
	if p.ObserverRow < 0 || p.ObserverRow >= rows || p.ObserverCol < 0 || p.ObserverCol >= cols {
		return fmt.Errorf("%w: (%d, %d) outside %dx%d grid", ErrOutOfBounds, p.ObserverRow, p.ObserverCol, rows, cols)
	}
	return nil
}

func isNilGrid(grid mat.Matrix) bool {
	if grid == nil {
		return true
	}
	if d, ok := grid.(*mat.Dense); ok {
		return d == nil || d.IsEmpty()
	}
	return false
}

// prepare validates the inputs, snapshots the raster and forms the eye
// elevation. Both engines go through here.
func prepare(grid mat.Matrix, p Params) (raster, float64, error) {
	if err := Validate(grid, p); err != nil {
		return raster{}, 0, err
	}
	g := newRaster(grid)
	ground := g.at(p.ObserverRow, p.ObserverCol)
	if math.IsNaN(ground) {
		return raster{}, 0, fmt.Errorf("%w: cell (%d, %d)", ErrNoData, p.ObserverRow, p.ObserverCol)
	}
	return g, ground + p.ObserverHeightM, nil
}
