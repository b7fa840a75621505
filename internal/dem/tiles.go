package dem

import (
	"fmt"
	"math"
)

const (
	// TileSize is the edge length of a slippy-map tile in pixels.
	TileSize = 256
	// MaxZoom is the deepest Terrarium zoom level used.
	MaxZoom = 15
	// MercatorCRS labels Web-Mercator rasters.
	MercatorCRS = "EPSG:3857"

	mercatorRadiusM = 6378137.0
	maxMercatorLat  = 85.05112878
)

// Tile addresses one slippy-map tile.
type Tile struct {
	Z, X, Y int
}

func (t Tile) String() string { return fmt.Sprintf("%d/%d/%d", t.Z, t.X, t.Y) }

// BBox is a geographic bounding box in degrees.
type BBox struct {
	MinLat, MinLon, MaxLat, MaxLon float64
}

// Validate checks ranges and ordering.
func (b BBox) Validate() error {
	if !(b.MinLat >= -90 && b.MaxLat <= 90 && b.MinLon >= -180 && b.MaxLon <= 180) {
		return fmt.Errorf("%w: bbox %+v out of range", ErrInvalidRequest, b)
	}
	if !(b.MinLat < b.MaxLat && b.MinLon < b.MaxLon) {
		return fmt.Errorf("%w: bbox %+v has min >= max", ErrInvalidRequest, b)
	}
	return nil
}

// worldPixels is the edge length of the whole world at zoom z.
func worldPixels(z int) float64 {
	return TileSize * math.Exp2(float64(z))
}

// GroundResolution returns metres per pixel at lat for zoom z.
func GroundResolution(lat float64, z int) float64 {
	return math.Cos(lat*math.Pi/180) * 2 * math.Pi * mercatorRadiusM / worldPixels(z)
}

// ZoomForResolution returns the coarsest zoom whose ground resolution at
// lat is at least as fine as resolutionM, clamped to [0, MaxZoom].
func ZoomForResolution(lat, resolutionM float64) int {
	for z := 0; z <= MaxZoom; z++ {
		if GroundResolution(lat, z) <= resolutionM {
			return z
		}
	}
	return MaxZoom
}

func clampLat(lat float64) float64 {
	return math.Max(-maxMercatorLat, math.Min(maxMercatorLat, lat))
}

// LatLonToPixel returns global pixel coordinates at zoom z.
func LatLonToPixel(lat, lon float64, z int) (px, py float64) {
	n := worldPixels(z)
	sin := math.Sin(clampLat(lat) * math.Pi / 180)
	px = (lon + 180) / 360 * n
	py = (0.5 - math.Log((1+sin)/(1-sin))/(4*math.Pi)) * n
	return px, py
}

// PixelToLatLon inverts LatLonToPixel.
func PixelToLatLon(px, py float64, z int) (lat, lon float64) {
	n := worldPixels(z)
	lon = px/n*360 - 180
	y := 0.5 - py/n
	lat = 90 - 360*math.Atan(math.Exp(-y*2*math.Pi))/math.Pi
	return lat, lon
}

// MercatorXY projects lat/lon to EPSG:3857 metres.
func MercatorXY(lat, lon float64) (x, y float64) {
	x = lon * math.Pi / 180 * mercatorRadiusM
	y = math.Log(math.Tan(math.Pi/4+clampLat(lat)*math.Pi/360)) * mercatorRadiusM
	return x, y
}

// MercatorLatLon inverts MercatorXY.
func MercatorLatLon(x, y float64) (lat, lon float64) {
	lon = x / mercatorRadiusM * 180 / math.Pi
	lat = (2*math.Atan(math.Exp(y/mercatorRadiusM)) - math.Pi/2) * 180 / math.Pi
	return lat, lon
}

// pixelTransform returns the EPSG:3857 transform for a raster whose
// top-left cell is global pixel (col0, row0) at zoom z.
func pixelTransform(z, row0, col0 int) Affine {
	size := 2 * math.Pi * mercatorRadiusM / worldPixels(z)
	half := math.Pi * mercatorRadiusM
	return NorthUp(float64(col0)*size-half, half-float64(row0)*size, size)
}

// TilesForBBox lists the tiles covering b at zoom z, row-major from the
// north-west corner.
func TilesForBBox(b BBox, z int) []Tile {
	x0, y0 := LatLonToPixel(b.MaxLat, b.MinLon, z)
	x1, y1 := LatLonToPixel(b.MinLat, b.MaxLon, z)
	return tileRange(z, int(x0)/TileSize, int(y0)/TileSize, int(x1)/TileSize, int(y1)/TileSize)
}

func tileRange(z, tx0, ty0, tx1, ty1 int) []Tile {
	last := int(math.Exp2(float64(z))) - 1
	tx0, tx1 = max(tx0, 0), min(tx1, last)
	ty0, ty1 = max(ty0, 0), min(ty1, last)
	var tiles []Tile
	for y := ty0; y <= ty1; y++ {
		for x := tx0; x <= tx1; x++ {
			tiles = append(tiles, Tile{Z: z, X: x, Y: y})
		}
	}
	return tiles
}
