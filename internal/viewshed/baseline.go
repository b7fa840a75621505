package viewshed

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// BaselineEngine decides every target independently by marching along the
// straight line from the observer's eye and sampling the terrain at least
// once per grid cell crossed. It is exact and slow
// (O(rows·cols·max(rows, cols))) and serves as the reference oracle for
// RadialEngine.
type BaselineEngine struct {
	// Workers bounds the goroutines used per call; 0 means GOMAXPROCS.
	Workers int
}

// Name implements Engine.
func (e *BaselineEngine) Name() string { return string(AlgorithmBaseline) }

// Compute implements Engine. Rows are distributed across workers; each
// worker writes only its own rows of the mask.
func (e *BaselineEngine) Compute(grid mat.Matrix, p Params) (*Mask, error) {
	g, eye, err := prepare(grid, p)
	if err != nil {
		return nil, err
	}

	mask := NewMask(g.rows, g.cols)
	mask.Set(p.ObserverRow, p.ObserverCol, true)

	forEachChunk(g.rows, e.Workers, func(lo, hi int) {
		for r := lo; r < hi; r++ {
			for c := 0; c < g.cols; c++ {
				if r == p.ObserverRow && c == p.ObserverCol {
					continue
				}
				target := g.at(r, c)
				if math.IsNaN(target) {
					continue
				}
				if g.lineOfSight(eye, target, p, r, c) {
					mask.Set(r, c, true)
				}
			}
		}
		tracef("baseline rows [%d, %d) done", lo, hi)
	})

	diagf("baseline: grid=%dx%d observer=(%d,%d) eye=%.2fm visible=%d",
		g.rows, g.cols, p.ObserverRow, p.ObserverCol, eye, mask.Count())
	return mask, nil
}

// lineOfSight reports whether target cell (tr, tc) with ground elevation
// target is visible from an eye at elevation eye above the observer cell.
func (g raster) lineOfSight(eye, target float64, p Params, tr, tc int) bool {
	dr := float64(tr - p.ObserverRow)
	dc := float64(tc - p.ObserverCol)
	steps := int(math.Max(math.Abs(dr), math.Abs(dc)))
	if steps == 0 {
		return true
	}

	total := math.Hypot(dr, dc) * p.CellSizeM
	targetEff := effective(target, total, p.CurvatureEnabled)

	for k := 1; k < steps; k++ {
		t := float64(k) / float64(steps)
		terrain := g.sample(float64(p.ObserverRow)+dr*t, float64(p.ObserverCol)+dc*t)
		if math.IsNaN(terrain) {
			return false
		}
		expected := eye + (targetEff-eye)*t
		terrain = effective(terrain, total*t, p.CurvatureEnabled)
		if terrain > expected {
			return false
		}
	}
	return true
}
