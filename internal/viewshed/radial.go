package viewshed

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// HorizonEpsilon is the tolerance applied when comparing a cell's angle to
// the running horizon, so a cell exactly at the horizon counts as visible.
const HorizonEpsilon = 1e-12

// RadialEngine groups cells by the canonical integer direction from the
// observer and sweeps each resulting ray outward against a running horizon
// angle. Only cells on the same reduced direction are compared; a cell
// whose offset components are coprime forms its own ray and is always
// visible. Cost is O(n log n) in the number of cells.
type RadialEngine struct {
	// Workers bounds the goroutines used per call; 0 means GOMAXPROCS.
	Workers int
}

// direction is an offset vector reduced by the gcd of its components.
type direction struct {
	dr, dc int
}

// rayCell is one member of a ray bucket.
type rayCell struct {
	step  int // distance multiplier along the ray (the gcd)
	r, c  int
	angle float64
}

// Name implements Engine.
func (e *RadialEngine) Name() string { return string(AlgorithmRadial) }

// Compute implements Engine. Ray buckets are swept concurrently; each
// bucket writes only its own member cells of the mask.
func (e *RadialEngine) Compute(grid mat.Matrix, p Params) (*Mask, error) {
	g, eye, err := prepare(grid, p)
	if err != nil {
		return nil, err
	}

	mask := NewMask(g.rows, g.cols)
	mask.Set(p.ObserverRow, p.ObserverCol, true)

	rays := g.bucketRays(eye, p)
	buckets := make([][]rayCell, 0, len(rays))
	for _, cells := range rays {
		buckets = append(buckets, cells)
	}

	forEachChunk(len(buckets), e.Workers, func(lo, hi int) {
		for _, cells := range buckets[lo:hi] {
			sweepRay(cells, mask)
		}
	})

	diagf("radial: grid=%dx%d observer=(%d,%d) eye=%.2fm rays=%d visible=%d",
		g.rows, g.cols, p.ObserverRow, p.ObserverCol, eye, len(buckets), mask.Count())
	return mask, nil
}

// bucketRays assigns every finite non-observer cell to the ray of its
// canonical direction, tagging it with its elevation angle.
func (g raster) bucketRays(eye float64, p Params) map[direction][]rayCell {
	rays := make(map[direction][]rayCell)
	for r := 0; r < g.rows; r++ {
		for c := 0; c < g.cols; c++ {
			if r == p.ObserverRow && c == p.ObserverCol {
				continue
			}
			target := g.at(r, c)
			if math.IsNaN(target) {
				continue
			}
			dr := r - p.ObserverRow
			dc := c - p.ObserverCol
			k := gcd(abs(dr), abs(dc))
			dir := direction{dr: dr / k, dc: dc / k}

			dist := math.Hypot(float64(dr), float64(dc)) * p.CellSizeM
			angle := math.Atan2(effective(target, dist, p.CurvatureEnabled)-eye, dist)
			rays[dir] = append(rays[dir], rayCell{step: k, r: r, c: c, angle: angle})
		}
	}
	tracef("radial: %d ray buckets", len(rays))
	return rays
}

// sweepRay walks one ray nearest-first. A cell is visible when its angle is
// within HorizonEpsilon of the horizon or above it; the horizon only moves
// on a strictly greater angle.
func sweepRay(cells []rayCell, mask *Mask) {
	sort.Slice(cells, func(i, j int) bool { return cells[i].step < cells[j].step })
	horizon := math.Inf(-1)
	for _, cell := range cells {
		if cell.angle >= horizon-HorizonEpsilon {
			mask.Set(cell.r, cell.c, true)
			if cell.angle > horizon {
				horizon = cell.angle
			}
		}
	}
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
