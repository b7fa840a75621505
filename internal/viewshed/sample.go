package viewshed

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Bilinear samples the grid at a fractional (row, col) position. The +1
// neighbour is clamped to the last row/column so interpolation stays
// defined up to the far edges. It returns NaN when the floor coordinate is
// outside the grid or any of the four corners is missing.
func Bilinear(grid mat.Matrix, row, col float64) float64 {
	if isNilGrid(grid) {
		return math.NaN()
	}
	return newRaster(grid).sample(row, col)
}

func (g raster) sample(row, col float64) float64 {
	fr := math.Floor(row)
	fc := math.Floor(col)
	if math.IsNaN(fr) || math.IsNaN(fc) || fr < 0 || fc < 0 || fr >= float64(g.rows) || fc >= float64(g.cols) {
		return math.NaN()
	}
	r0, c0 := int(fr), int(fc)
	r1 := min(r0+1, g.rows-1)
	c1 := min(c0+1, g.cols-1)

	dr := row - fr
	dc := col - fc

	e00 := g.at(r0, c0)
	e10 := g.at(r1, c0)
	e01 := g.at(r0, c1)
	e11 := g.at(r1, c1)
	if math.IsNaN(e00) || math.IsNaN(e10) || math.IsNaN(e01) || math.IsNaN(e11) {
		return math.NaN()
	}

	return e00*(1-dr)*(1-dc) +
		e10*dr*(1-dc) +
		e01*(1-dr)*dc +
		e11*dr*dc
}
