package viewshed

// Mask is a row-major boolean visibility grid; true means visible from the
// observer.
type Mask struct {
	Rows  int
	Cols  int
	Cells []bool
}

// NewMask allocates an all-false mask.
func NewMask(rows, cols int) *Mask {
	return &Mask{Rows: rows, Cols: cols, Cells: make([]bool, rows*cols)}
}

// At reports whether cell (r, c) is visible.
func (m *Mask) At(r, c int) bool {
	return m.Cells[r*m.Cols+c]
}

// Set marks cell (r, c).
func (m *Mask) Set(r, c int, visible bool) {
	m.Cells[r*m.Cols+c] = visible
}

// Count returns the number of visible cells.
func (m *Mask) Count() int {
	return CountVisible(m.Cells)
}

// Clone returns a deep copy.
func (m *Mask) Clone() *Mask {
	out := &Mask{Rows: m.Rows, Cols: m.Cols, Cells: make([]bool, len(m.Cells))}
	copy(out.Cells, m.Cells)
	return out
}

// valid reports whether the mask describes a non-empty 2D raster.
func (m *Mask) valid() bool {
	return m != nil && m.Rows > 0 && m.Cols > 0 && len(m.Cells) == m.Rows*m.Cols
}
