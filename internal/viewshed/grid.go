package viewshed

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Params describes one visibility computation. The observer indices are
// already resolved grid coordinates; conversion from geographic
// coordinates happens upstream.
type Params struct {
	ObserverRow      int
	ObserverCol      int
	ObserverHeightM  float64 // added to the ground elevation to form the eye
	CellSizeM        float64 // metres per grid step, both axes
	CurvatureEnabled bool
}

// NewGrid builds an elevation grid from nested row slices. Every row must
// have the same, non-zero length.
func NewGrid(rows [][]float64) (*mat.Dense, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("%w: grid must have at least one row and one column", ErrShape)
	}
	cols := len(rows[0])
	data := make([]float64, 0, len(rows)*cols)
	for i, row := range rows {
		if len(row) != cols {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d", ErrShape, i, len(row), cols)
		}
		data = append(data, row...)
	}
	return mat.NewDense(len(rows), cols, data), nil
}

// raster is a read-only row-major view of an elevation grid. Dense inputs
// are borrowed without copying.
type raster struct {
	rows, cols int
	stride     int
	data       []float64
}

func newRaster(grid mat.Matrix) raster {
	rows, cols := grid.Dims()
	if rm, ok := grid.(mat.RawMatrixer); ok {
		raw := rm.RawMatrix()
		return raster{rows: raw.Rows, cols: raw.Cols, stride: raw.Stride, data: raw.Data}
	}
	data := make([]float64, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			data[r*cols+c] = grid.At(r, c)
		}
	}
	return raster{rows: rows, cols: cols, stride: cols, data: data}
}

func (g raster) at(r, c int) float64 {
	return g.data[r*g.stride+c]
}
