// Package engine is the boundary to the tile/geometry engine.
//
// The map surface only depends on the primitives defined here: an addressable
// camera, attachable layers, a drawing interaction that emits start/change/end
// notifications, spherical length, extent fitting and a GeoJSON geometry
// reader. The implementation is headless and built on paulmach/orb so the
// coordination layer can run (and be tested) without a browser.
package engine

import (
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

// Projection codes understood by the engine.
const (
	ProjWGS84    = "EPSG:4326"
	ProjMercator = "EPSG:3857"
)

// TileSize is the pixel size of one web-mercator tile.
const TileSize = 256

// initialResolution is the ground resolution (m/px) at zoom 0.
const initialResolution = 2 * math.Pi * 6378137 / TileSize

var (
	// ErrInvalidGeometry is returned when a geometry cannot be read or projected.
	ErrInvalidGeometry = errors.New("invalid geometry")
	// ErrUnsupportedProjection is returned for projection pairs the engine cannot transform.
	ErrUnsupportedProjection = errors.New("unsupported projection")
)

// ResolutionForZoom returns the ground resolution in meters per pixel.
func ResolutionForZoom(zoom float64) float64 {
	return initialResolution / math.Pow(2, zoom)
}

// ZoomForResolution is the inverse of ResolutionForZoom.
func ZoomForResolution(res float64) float64 {
	return math.Log2(initialResolution / res)
}

// Transform reprojects g in place from one projection to another and returns it.
func Transform(g orb.Geometry, from, to string) (orb.Geometry, error) {
	switch {
	case from == to:
		return g, nil
	case from == ProjWGS84 && to == ProjMercator:
		return project.Geometry(g, project.WGS84.ToMercator), nil
	case from == ProjMercator && to == ProjWGS84:
		return project.Geometry(g, project.Mercator.ToWGS84), nil
	default:
		return nil, fmt.Errorf("%w: %s -> %s", ErrUnsupportedProjection, from, to)
	}
}

// ToLonLat converts a map coordinate to WGS84.
func ToLonLat(p orb.Point, projection string) orb.Point {
	if projection == ProjMercator {
		return project.Point(p, project.Mercator.ToWGS84)
	}
	return p
}

// FromLonLat converts a WGS84 coordinate to the given projection.
func FromLonLat(p orb.Point, projection string) orb.Point {
	if projection == ProjMercator {
		return project.Point(p, project.WGS84.ToMercator)
	}
	return p
}

// EmptyBound is a bound that contains nothing; IsEmpty reports true for it.
func EmptyBound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{math.Inf(1), math.Inf(1)},
		Max: orb.Point{math.Inf(-1), math.Inf(-1)},
	}
}

// Extent returns the combined bound of all geometries, or EmptyBound.
func Extent(geoms ...orb.Geometry) orb.Bound {
	b := EmptyBound()
	for _, g := range geoms {
		if g == nil {
			continue
		}
		gb := g.Bound()
		if gb.IsEmpty() {
			continue
		}
		b = b.Union(gb)
	}
	return b
}

func newHandle() string {
	return uuid.NewString()
}
