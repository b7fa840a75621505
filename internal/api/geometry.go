package api

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/banshee-data/viewshed/internal/dem"
	"github.com/banshee-data/viewshed/internal/viewshed"
)

const (
	circlePoints = 64
	kmPerDegLat  = 110.574
	kmPerDegLon  = 111.320
)

// circlePolygon approximates a ground circle of radiusKm around (lat, lon)
// with a closed ring of points+1 lon/lat vertices.
func circlePolygon(lat, lon, radiusKm float64, points int) orb.Polygon {
	latRad := lat * math.Pi / 180
	lonScale := math.Max(kmPerDegLon*math.Cos(latRad), 1e-6)

	ring := make(orb.Ring, 0, points+1)
	for i := 0; i < points; i++ {
		angle := 2 * math.Pi * float64(i) / float64(points)
		dlat := radiusKm * math.Sin(angle) / kmPerDegLat
		dlon := radiusKm * math.Cos(angle) / lonScale
		ring = append(ring, orb.Point{lon + dlon, lat + dlat})
	}
	ring = append(ring, ring[0])
	return orb.Polygon{ring}
}

// coverageMultiPolygon outlines the visible cells of mask as one
// rectangle per horizontal run, in lon/lat. tr must be an EPSG:3857
// transform.
func coverageMultiPolygon(mask *viewshed.Mask, tr dem.Affine) orb.MultiPolygon {
	corner := func(r, c int) orb.Point {
		x, y := tr.Corner(r, c)
		lat, lon := dem.MercatorLatLon(x, y)
		return orb.Point{lon, lat}
	}

	mp := orb.MultiPolygon{}
	for r := 0; r < mask.Rows; r++ {
		for c := 0; c < mask.Cols; {
			if !mask.At(r, c) {
				c++
				continue
			}
			start := c
			for c < mask.Cols && mask.At(r, c) {
				c++
			}
			// Counter-clockwise exterior ring.
			mp = append(mp, orb.Polygon{orb.Ring{
				corner(r, start),
				corner(r+1, start),
				corner(r+1, c),
				corner(r, c),
				corner(r, start),
			}})
		}
	}
	return mp
}
