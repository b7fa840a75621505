// Package testutil provides shared test utilities and fixtures.
//
// Elevation fixtures are built as *mat.Dense so they can be passed
// straight to the viewshed engines and DEM helpers.
package testutil

import (
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t testing.TB, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// NewTestRecorder creates a test response recorder.
func NewTestRecorder() *httptest.ResponseRecorder {
	return httptest.NewRecorder()
}

// NewTestRequest creates a test HTTP request. A non-empty body is sent as
// JSON.
func NewTestRequest(method, path, body string) *http.Request {
	if body == "" {
		return httptest.NewRequest(method, path, nil)
	}
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// FlatGrid returns a rows x cols grid with every cell at elevation.
func FlatGrid(rows, cols int, elevation float64) *mat.Dense {
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = elevation
	}
	return mat.NewDense(rows, cols, data)
}

// SpikeGrid returns a flat grid at base elevation with a single cell
// raised to height.
func SpikeGrid(rows, cols int, base float64, spikeRow, spikeCol int, height float64) *mat.Dense {
	g := FlatGrid(rows, cols, base)
	g.Set(spikeRow, spikeCol, height)
	return g
}

// Transect returns a single-row grid holding elevations.
func Transect(elevations ...float64) *mat.Dense {
	data := make([]float64, len(elevations))
	copy(data, elevations)
	return mat.NewDense(1, len(data), data)
}

// WithNaN returns a copy of g with the listed (row, col) cells set to NaN.
func WithNaN(g *mat.Dense, cells ...[2]int) *mat.Dense {
	out := mat.DenseCopyOf(g)
	for _, rc := range cells {
		out.Set(rc[0], rc[1], math.NaN())
	}
	return out
}

// Ridges returns a deterministic rolling-terrain grid with ridges running
// in both directions, useful for exercising occlusion.
func Ridges(rows, cols int) *mat.Dense {
	g := mat.NewDense(rows, cols, nil)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			v := 100 + 15*math.Sin(float64(r)/3) + 10*math.Cos(float64(c)/4) + 0.5*float64((r*7+c*13)%5)
			g.Set(r, c, v)
		}
	}
	return g
}
