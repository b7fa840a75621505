package viewshed

import (
	"math"
	"testing"

	"github.com/banshee-data/viewshed/internal/testutil"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRadialFlatFiveByFive(t *testing.T) {
	t.Parallel()

	mask, err := Compute(testutil.FlatGrid(5, 5, 0), Params{
		ObserverRow: 2, ObserverCol: 2, ObserverHeightM: 1.7, CellSizeM: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, 5, mask.Rows)
	assert.Equal(t, 5, mask.Cols)
	assert.Equal(t, 25, mask.Count())
}

func TestRadialZeroHeightTiesAreVisible(t *testing.T) {
	t.Parallel()

	// Every angle is exactly zero, so each cell sits on the horizon.
	mask, err := Compute(testutil.FlatGrid(7, 7, 12), Params{
		ObserverRow: 3, ObserverCol: 3, CellSizeM: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, 49, mask.Count())
}

func TestRadialSpikeShadowsRay(t *testing.T) {
	t.Parallel()

	grid := testutil.SpikeGrid(9, 9, 0, 2, 4, 5)
	mask, err := Compute(grid, Params{ObserverRow: 4, ObserverCol: 4, ObserverHeightM: 1.7, CellSizeM: 10})
	require.NoError(t, err)

	assert.True(t, mask.At(3, 4))
	assert.True(t, mask.At(2, 4), "spike itself raises the horizon and is visible")
	assert.False(t, mask.At(1, 4))
	assert.False(t, mask.At(0, 4))

	// (0,3) has offset (-4,-1): a singleton ray, compared against nothing.
	assert.True(t, mask.At(0, 3))
}

func TestSingletonRayDiffersFromBaseline(t *testing.T) {
	t.Parallel()

	grid := testutil.SpikeGrid(9, 9, 0, 2, 4, 5)
	p := Params{ObserverRow: 4, ObserverCol: 4, ObserverHeightM: 1.7, CellSizeM: 10}

	radial, err := Compute(grid, p)
	require.NoError(t, err)
	baseline, err := ComputeBaseline(grid, p)
	require.NoError(t, err)

	// The exact engine samples the spike's flank halfway along the line.
	assert.True(t, radial.At(0, 3))
	assert.False(t, baseline.At(0, 3))
}

func TestBucketRays(t *testing.T) {
	t.Parallel()

	g := newRaster(testutil.FlatGrid(5, 5, 0))
	p := Params{ObserverRow: 2, ObserverCol: 2, ObserverHeightM: 1, CellSizeM: 10}
	rays := g.bucketRays(1, p)

	assert.Len(t, rays, 16)

	south := rays[direction{dr: 1, dc: 0}]
	require.Len(t, south, 2)
	steps := map[int][2]int{}
	for _, cell := range south {
		steps[cell.step] = [2]int{cell.r, cell.c}
	}
	assert.Equal(t, [2]int{3, 2}, steps[1])
	assert.Equal(t, [2]int{4, 2}, steps[2])

	knight := rays[direction{dr: 1, dc: 2}]
	require.Len(t, knight, 1)
	assert.Equal(t, 1, knight[0].step)
	assert.InDelta(t, math.Atan2(-1, math.Sqrt(5)*10), knight[0].angle, 1e-12)
}

func TestBucketRaysSkipsNaN(t *testing.T) {
	t.Parallel()

	g := newRaster(testutil.WithNaN(testutil.FlatGrid(3, 3, 0), [2]int{0, 1}))
	rays := g.bucketRays(1, Params{ObserverRow: 1, ObserverCol: 1, ObserverHeightM: 1, CellSizeM: 1})
	_, ok := rays[direction{dr: -1, dc: 0}]
	assert.False(t, ok)
	assert.Len(t, rays, 7)
}

func TestSweepRayTolerance(t *testing.T) {
	t.Parallel()

	mask := NewMask(1, 5)
	cells := []rayCell{
		{step: 4, r: 0, c: 4, angle: 0.2},
		{step: 1, r: 0, c: 1, angle: 0.1},
		{step: 3, r: 0, c: 3, angle: 0.05},
		{step: 2, r: 0, c: 2, angle: 0.1 - 5e-13},
	}
	sweepRay(cells, mask)

	want := []bool{false, true, true, false, true}
	if diff := cmp.Diff(want, mask.Cells); diff != "" {
		t.Errorf("sweep mismatch (-want +got):\n%s", diff)
	}
}

func TestRadialWorkersDoNotChangeResult(t *testing.T) {
	t.Parallel()

	grid := testutil.Ridges(21, 15)
	p := Params{ObserverRow: 10, ObserverCol: 3, ObserverHeightM: 2, CellSizeM: 25, CurvatureEnabled: true}

	serial, err := (&RadialEngine{Workers: 1}).Compute(grid, p)
	require.NoError(t, err)
	parallel, err := (&RadialEngine{Workers: 8}).Compute(grid, p)
	require.NoError(t, err)

	if diff := cmp.Diff(serial, parallel); diff != "" {
		t.Errorf("parallel result differs (-serial +parallel):\n%s", diff)
	}
}

func TestGCD(t *testing.T) {
	t.Parallel()

	cases := [][3]int{{0, 3, 3}, {3, 0, 3}, {4, 6, 2}, {5, 7, 1}, {12, 18, 6}}
	for _, c := range cases {
		assert.Equal(t, c[2], gcd(c[0], c[1]), "gcd(%d,%d)", c[0], c[1])
	}
	assert.Equal(t, 3, abs(-3))
	assert.Equal(t, 3, abs(3))
}
