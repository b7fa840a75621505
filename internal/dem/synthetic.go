package dem

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// smoothingKernel is a 3x3 binomial blur normalised to sum to 1.
var smoothingKernel = [3][3]float64{
	{1.0 / 16, 2.0 / 16, 1.0 / 16},
	{2.0 / 16, 4.0 / 16, 2.0 / 16},
	{1.0 / 16, 2.0 / 16, 1.0 / 16},
}

// Synthetic returns a size x size terrain of normal(200, 50) noise blurred
// once with a 3x3 binomial kernel, edges padded by replication. The same
// seed always yields the same grid.
func Synthetic(size int, seed uint64) *mat.Dense {
	noise := distuv.Normal{Mu: 200, Sigma: 50, Src: rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)}
	base := make([]float64, size*size)
	for i := range base {
		base[i] = noise.Rand()
	}

	out := mat.NewDense(size, size, nil)
	for r := 0; r < size; r++ {
		for c := 0; c < size; c++ {
			var sum float64
			for kr := -1; kr <= 1; kr++ {
				rr := min(max(r+kr, 0), size-1)
				for kc := -1; kc <= 1; kc++ {
					cc := min(max(c+kc, 0), size-1)
					sum += base[rr*size+cc] * smoothingKernel[kr+1][kc+1]
				}
			}
			out.Set(r, c, sum)
		}
	}
	return out
}

// SyntheticProvider serves Synthetic terrain centred on the observer,
// georeferenced in Web-Mercator so ObserverCell resolves to the centre.
type SyntheticProvider struct {
	Seed uint64
}

// GetDEM implements Provider.
func (p SyntheticProvider) GetDEM(_ context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if math.Abs(req.ObserverLat) > maxMercatorLat {
		return nil, fmt.Errorf("%w: latitude %v outside Web-Mercator coverage", ErrInvalidRequest, req.ObserverLat)
	}
	half := int(math.Ceil(req.RadiusKm * 1000 / req.ResolutionM))
	size := 2*half + 1
	if size*size > MaxCells {
		return nil, fmt.Errorf("%w: %dx%d cells", ErrTooLarge, size, size)
	}

	// Mercator metres per ground metre grow with 1/cos(lat).
	pixel := req.ResolutionM / math.Cos(req.ObserverLat*math.Pi/180)
	x, y := MercatorXY(req.ObserverLat, req.ObserverLon)
	offset := (float64(half) + 0.5) * pixel

	return &Result{
		Elevation: Synthetic(size, p.Seed),
		Transform: NorthUp(x-offset, y+offset, pixel),
		CRS:       MercatorCRS,
		CellSizeM: req.ResolutionM,
		Metadata: map[string]any{
			MetaSource:      "synthetic",
			MetaObserverRow: half,
			MetaObserverCol: half,
		},
	}, nil
}
