package viewshed

import (
	"fmt"
	"runtime"
	"strings"

	"gonum.org/v1/gonum/mat"
	"golang.org/x/sync/errgroup"
)

// Engine is the interface shared by the visibility algorithms. This lets
// callers pick exact or approximate computation without type switches.
type Engine interface {
	// Name returns the algorithm name for logging/metrics.
	Name() string

	// Compute returns a fresh visibility mask with the grid's shape.
	// Validation errors are returned before any per-cell work and never
	// alongside a partial mask.
	Compute(grid mat.Matrix, p Params) (*Mask, error)
}

// Algorithm names a visibility engine.
type Algorithm string

const (
	// AlgorithmBaseline is the exact per-target ray-marching test.
	AlgorithmBaseline Algorithm = "baseline"
	// AlgorithmRadial is the direction-bucketed horizon sweep.
	AlgorithmRadial Algorithm = "radial"

	// DefaultAlgorithm is used when callers do not choose one.
	DefaultAlgorithm = AlgorithmRadial
)

// ParseAlgorithm maps a case-insensitive name to an Algorithm. The empty
// string selects DefaultAlgorithm.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch Algorithm(strings.ToLower(strings.TrimSpace(name))) {
	case "":
		return DefaultAlgorithm, nil
	case AlgorithmBaseline:
		return AlgorithmBaseline, nil
	case AlgorithmRadial:
		return AlgorithmRadial, nil
	default:
		return "", fmt.Errorf("%w: unknown algorithm %q", ErrInvalidParameter, name)
	}
}

// NewEngine returns the engine for alg. workers bounds the goroutines used
// per call; 0 means GOMAXPROCS and 1 runs serially.
func NewEngine(alg Algorithm, workers int) (Engine, error) {
	switch alg {
	case AlgorithmBaseline:
		return &BaselineEngine{Workers: workers}, nil
	case AlgorithmRadial, "":
		return &RadialEngine{Workers: workers}, nil
	default:
		return nil, fmt.Errorf("%w: unknown algorithm %q", ErrInvalidParameter, alg)
	}
}

// Compute runs the default (radial) engine.
func Compute(grid mat.Matrix, p Params) (*Mask, error) {
	return (&RadialEngine{}).Compute(grid, p)
}

// ComputeBaseline runs the exact engine.
func ComputeBaseline(grid mat.Matrix, p Params) (*Mask, error) {
	return (&BaselineEngine{}).Compute(grid, p)
}

// Pipeline chains an engine with optional smoothing.
type Pipeline struct {
	Engine       Engine
	SmoothPasses int
	// SmoothThreshold is passed to Smooth; 0 selects DefaultSmoothThreshold.
	SmoothThreshold int
}

// Run computes the mask and applies SmoothPasses majority-filter passes.
func (pl Pipeline) Run(grid mat.Matrix, p Params) (*Mask, error) {
	eng := pl.Engine
	if eng == nil {
		eng = &RadialEngine{}
	}
	mask, err := eng.Compute(grid, p)
	if err != nil {
		return nil, err
	}
	if pl.SmoothPasses < 1 {
		return mask, nil
	}
	threshold := pl.SmoothThreshold
	if threshold == 0 {
		threshold = DefaultSmoothThreshold
	}
	smoothed, err := Smooth(mask, pl.SmoothPasses, threshold)
	if err != nil {
		return nil, err
	}
	// Smoothing may drop the observer cell; it is visible by definition.
	smoothed.Set(p.ObserverRow, p.ObserverCol, true)
	return smoothed, nil
}

func workerCount(workers, tasks int) int {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > tasks {
		workers = tasks
	}
	return max(workers, 1)
}

// forEachChunk splits [0, n) into contiguous chunks and runs fn on each,
// concurrently when workers > 1. fn must only write state owned by its
// chunk.
func forEachChunk(n, workers int, fn func(lo, hi int)) {
	if n == 0 {
		return
	}
	workers = workerCount(workers, n)
	if workers == 1 {
		fn(0, n)
		return
	}
	chunk := (n + workers - 1) / workers
	var g errgroup.Group
	g.SetLimit(workers)
	for lo := 0; lo < n; lo += chunk {
		lo, hi := lo, min(lo+chunk, n)
		g.Go(func() error {
			fn(lo, hi)
			return nil
		})
	}
	_ = g.Wait()
}
