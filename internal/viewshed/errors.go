package viewshed

import "errors"

// Validation failures. All of them are returned before any per-cell work
// starts, and never alongside a partial mask.
var (
	// ErrShape reports a grid or mask that is not a non-empty 2D raster.
	ErrShape = errors.New("viewshed: shape error")

	// ErrInvalidParameter reports a non-positive cell size or a negative
	// observer height.
	ErrInvalidParameter = errors.New("viewshed: invalid parameter")

	// ErrOutOfBounds reports an observer index outside the grid extent.
	ErrOutOfBounds = errors.New("viewshed: observer out of bounds")

	// ErrNoData reports a missing (NaN) elevation under the observer.
	ErrNoData = errors.New("viewshed: observer elevation is NaN")
)
