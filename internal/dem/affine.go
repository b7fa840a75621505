package dem

import "math"

// Affine is a GDAL-ordered geotransform:
//
//	x = A*col + B*row + C
//	y = D*col + E*row + F
//
// where (col, row) address the top-left corner of a cell.
type Affine struct {
	A, B, C float64
	D, E, F float64
}

// NorthUp returns the transform for an unrotated raster whose top-left
// corner is at (originX, originY) with square cells of pixelSize CRS units.
func NorthUp(originX, originY, pixelSize float64) Affine {
	return Affine{A: pixelSize, C: originX, E: -pixelSize, F: originY}
}

// XY returns the CRS coordinates of the centre of cell (row, col).
func (t Affine) XY(row, col int) (x, y float64) {
	c := float64(col) + 0.5
	r := float64(row) + 0.5
	return t.A*c + t.B*r + t.C, t.D*c + t.E*r + t.F
}

// Corner returns the CRS coordinates of the top-left corner of cell
// (row, col). Corner(rows, cols) is the raster's bottom-right corner.
func (t Affine) Corner(row, col int) (x, y float64) {
	c, r := float64(col), float64(row)
	return t.A*c + t.B*r + t.C, t.D*c + t.E*r + t.F
}

// RowCol returns the cell containing (x, y).
func (t Affine) RowCol(x, y float64) (row, col int) {
	det := t.A*t.E - t.B*t.D
	dx, dy := x-t.C, y-t.F
	c := (t.E*dx - t.B*dy) / det
	r := (-t.D*dx + t.A*dy) / det
	return int(math.Floor(r)), int(math.Floor(c))
}

// CellSize returns the cell width in CRS units.
func (t Affine) CellSize() float64 {
	return math.Hypot(t.A, t.D)
}
