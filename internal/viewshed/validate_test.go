package viewshed

import (
	"errors"
	"math"
	"testing"

	"github.com/banshee-data/viewshed/internal/testutil"
	"gonum.org/v1/gonum/mat"
)

func validParams() Params {
	return Params{ObserverRow: 2, ObserverCol: 2, ObserverHeightM: 1.7, CellSizeM: 10}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	grid := testutil.FlatGrid(5, 5, 0)

	tests := []struct {
		name    string
		grid    mat.Matrix
		mutate  func(p *Params)
		wantErr error
	}{
		{name: "valid", grid: grid},
		{name: "nil grid", grid: nil, wantErr: ErrShape},
		{name: "nil dense", grid: (*mat.Dense)(nil), wantErr: ErrShape},
		{name: "empty dense", grid: &mat.Dense{}, wantErr: ErrShape},
		{name: "zero cell size", grid: grid, mutate: func(p *Params) { p.CellSizeM = 0 }, wantErr: ErrInvalidParameter},
		{name: "negative cell size", grid: grid, mutate: func(p *Params) { p.CellSizeM = -5 }, wantErr: ErrInvalidParameter},
		{name: "NaN cell size", grid: grid, mutate: func(p *Params) { p.CellSizeM = math.NaN() }, wantErr: ErrInvalidParameter},
		{name: "infinite cell size", grid: grid, mutate: func(p *Params) { p.CellSizeM = math.Inf(1) }, wantErr: ErrInvalidParameter},
		{name: "negative height", grid: grid, mutate: func(p *Params) { p.ObserverHeightM = -0.1 }, wantErr: ErrInvalidParameter},
		{name: "zero height", grid: grid, mutate: func(p *Params) { p.ObserverHeightM = 0 }},
		{name: "row below", grid: grid, mutate: func(p *Params) { p.ObserverRow = -1 }, wantErr: ErrOutOfBounds},
		{name: "row above", grid: grid, mutate: func(p *Params) { p.ObserverRow = 5 }, wantErr: ErrOutOfBounds},
		{name: "col above", grid: grid, mutate: func(p *Params) { p.ObserverCol = 5 }, wantErr: ErrOutOfBounds},
		{name: "shape checked first", grid: nil, mutate: func(p *Params) { p.CellSizeM = -1 }, wantErr: ErrShape},
		{name: "parameters before bounds", grid: grid, mutate: func(p *Params) { p.CellSizeM = 0; p.ObserverRow = 99 }, wantErr: ErrInvalidParameter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validParams()
			if tt.mutate != nil {
				tt.mutate(&p)
			}
			err := Validate(tt.grid, p)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestEnginesRejectNaNObserver(t *testing.T) {
	t.Parallel()

	grid := testutil.WithNaN(testutil.FlatGrid(5, 5, 0), [2]int{2, 2})
	for _, eng := range []Engine{&BaselineEngine{}, &RadialEngine{}} {
		mask, err := eng.Compute(grid, validParams())
		if !errors.Is(err, ErrNoData) {
			t.Errorf("%s: err = %v, want ErrNoData", eng.Name(), err)
		}
		if mask != nil {
			t.Errorf("%s: returned a mask alongside an error", eng.Name())
		}
	}
}

func TestEnginesRejectInvalidInputs(t *testing.T) {
	t.Parallel()

	p := validParams()
	p.ObserverCol = 10
	for _, eng := range []Engine{&BaselineEngine{}, &RadialEngine{}} {
		mask, err := eng.Compute(testutil.FlatGrid(5, 5, 0), p)
		if !errors.Is(err, ErrOutOfBounds) {
			t.Errorf("%s: err = %v, want ErrOutOfBounds", eng.Name(), err)
		}
		if mask != nil {
			t.Errorf("%s: returned a mask alongside an error", eng.Name())
		}
	}
}

func TestNewGrid(t *testing.T) {
	t.Parallel()

	g, err := NewGrid([][]float64{{1, 2, 3}, {4, 5, 6}})
	if err != nil {
		t.Fatalf("NewGrid: %v", err)
	}
	rows, cols := g.Dims()
	if rows != 2 || cols != 3 || g.At(1, 2) != 6 {
		t.Errorf("NewGrid produced %dx%d with (1,2)=%v", rows, cols, g.At(1, 2))
	}

	if _, err := NewGrid(nil); !errors.Is(err, ErrShape) {
		t.Errorf("NewGrid(nil) = %v, want ErrShape", err)
	}
	if _, err := NewGrid([][]float64{{}}); !errors.Is(err, ErrShape) {
		t.Errorf("NewGrid(empty row) = %v, want ErrShape", err)
	}
	if _, err := NewGrid([][]float64{{1, 2}, {3}}); !errors.Is(err, ErrShape) {
		t.Errorf("NewGrid(ragged) = %v, want ErrShape", err)
	}
}

func TestRasterBorrowsSlicedDense(t *testing.T) {
	t.Parallel()

	parent := testutil.Ridges(6, 8)
	view := parent.Slice(1, 5, 2, 7)
	g := newRaster(view)
	if g.rows != 4 || g.cols != 5 {
		t.Fatalf("raster dims = %dx%d, want 4x5", g.rows, g.cols)
	}
	for r := 0; r < 4; r++ {
		for c := 0; c < 5; c++ {
			if g.at(r, c) != parent.At(r+1, c+2) {
				t.Fatalf("at(%d,%d) = %v, want %v", r, c, g.at(r, c), parent.At(r+1, c+2))
			}
		}
	}
}
