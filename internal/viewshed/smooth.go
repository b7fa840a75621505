package viewshed

import "fmt"

// DefaultSmoothThreshold is the majority of a 3x3 window.
const DefaultSmoothThreshold = 5

// Smooth applies passes rounds of a 3x3 majority filter to mask, removing
// isolated speckle left by the radial engine's direction quantisation.
// Each pass reads the previous pass's full output. A cell becomes visible
// when at least threshold of the nine cells in its window are visible, so
// a threshold of 0 marks every cell visible. A negative threshold is
// rejected. passes < 1 returns mask unchanged.
//
// The window is zero-padded, so cells on the grid border see fewer visible
// neighbours and visible regions touching the border erode (the four
// corners of an all-visible mask drop out under the default threshold).
func Smooth(mask *Mask, passes, threshold int) (*Mask, error) {
	if !mask.valid() {
		return nil, fmt.Errorf("%w: mask must be a non-empty 2D raster", ErrShape)
	}
	if threshold < 0 {
		return nil, fmt.Errorf("%w: smoothing threshold must be non-negative, got %d", ErrInvalidParameter, threshold)
	}
	if passes < 1 {
		return mask, nil
	}

	rows, cols := mask.Rows, mask.Cols
	current := mask
	for pass := 0; pass < passes; pass++ {
		next := NewMask(rows, cols)
		for r := 0; r < rows; r++ {
			for c := 0; c < cols; c++ {
				sum := 0
				for wr := r - 1; wr <= r+1; wr++ {
					if wr < 0 || wr >= rows {
						continue
					}
					for wc := c - 1; wc <= c+1; wc++ {
						if wc >= 0 && wc < cols && current.Cells[wr*cols+wc] {
							sum++
						}
					}
				}
				next.Cells[r*cols+c] = sum >= threshold
			}
		}
		current = next
	}
	tracef("smooth: %d passes threshold=%d visible %d -> %d", passes, threshold, mask.Count(), current.Count())
	return current, nil
}
