package viewshed

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestBilinear(t *testing.T) {
	t.Parallel()

	grid := mat.NewDense(2, 2, []float64{
		0, 10,
		20, 30,
	})

	tests := []struct {
		name     string
		row, col float64
		want     float64
	}{
		{"exact corner", 1, 1, 30},
		{"exact origin", 0, 0, 0},
		{"centre", 0.5, 0.5, 15},
		{"along row", 0, 0.25, 2.5},
		{"along col", 0.75, 0, 15},
		{"last row clamps", 1, 0.5, 25},
		{"beyond last cell clamps", 1.5, 1.5, 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Bilinear(grid, tt.row, tt.col), 1e-12)
		})
	}
}

func TestBilinearOutsideGrid(t *testing.T) {
	t.Parallel()

	grid := mat.NewDense(2, 2, []float64{0, 10, 20, 30})
	for _, rc := range [][2]float64{{-0.5, 0}, {0, -0.01}, {2, 0}, {0, 2}, {math.NaN(), 0}} {
		assert.True(t, math.IsNaN(Bilinear(grid, rc[0], rc[1])), "expected NaN at %v", rc)
	}
	assert.True(t, math.IsNaN(Bilinear(nil, 0, 0)))
}

func TestBilinearNaNCornerPropagates(t *testing.T) {
	t.Parallel()

	grid := mat.NewDense(2, 2, []float64{0, math.NaN(), 20, 30})

	// The NaN corner carries almost no weight here but still poisons the sample.
	assert.True(t, math.IsNaN(Bilinear(grid, 0.01, 0.01)))
	// The bottom row never touches the NaN cell.
	assert.InDelta(t, 25, Bilinear(grid, 1, 0.5), 1e-12)
}

func TestCurvatureDrop(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0.0, CurvatureDrop(0))
	assert.InDelta(t, 1e6/(2*6_371_000.0), CurvatureDrop(1000), 1e-15)
	assert.InDelta(t, 7.848061528802386, CurvatureDrop(10_000), 1e-9)
	assert.Less(t, CurvatureDrop(1000), CurvatureDrop(2000))
}

func TestEffective(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 100.0, effective(100, 5000, false))
	assert.Equal(t, 100.0, effective(100, 0, true))
	assert.InDelta(t, 100-CurvatureDrop(5000), effective(100, 5000, true), 1e-12)
}
