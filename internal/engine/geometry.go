package engine

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
)

// MeanEarthRadius is the sphere lengths are measured on, in meters.
const MeanEarthRadius = 6371008.8

// Length returns the great-circle length of g in meters on a sphere of
// MeanEarthRadius. g is expressed in projection and is not modified.
func Length(g orb.Geometry, projection string) float64 {
	if g == nil {
		return 0
	}
	wgs, err := Transform(orb.Clone(g), projection, ProjWGS84)
	if err != nil {
		return 0
	}
	return sphericalLength(wgs)
}

func sphericalLength(g orb.Geometry) float64 {
	switch g := g.(type) {
	case orb.LineString:
		return chainLength(g)
	case orb.Ring:
		return chainLength(g)
	case orb.MultiLineString:
		var sum float64
		for _, ls := range g {
			sum += chainLength(ls)
		}
		return sum
	case orb.Polygon:
		var sum float64
		for _, r := range g {
			sum += chainLength(r)
		}
		return sum
	case orb.MultiPolygon:
		var sum float64
		for _, p := range g {
			sum += sphericalLength(p)
		}
		return sum
	case orb.Collection:
		var sum float64
		for _, c := range g {
			sum += sphericalLength(c)
		}
		return sum
	default:
		return 0
	}
}

// chainLength sums haversine distances along pts, rescaled from orb's
// equatorial radius to MeanEarthRadius.
func chainLength(pts []orb.Point) float64 {
	var sum float64
	for i := 1; i < len(pts); i++ {
		sum += geo.DistanceHaversine(pts[i-1], pts[i])
	}
	return sum * MeanEarthRadius / orb.EarthRadius
}

// ReadGeometry parses a GeoJSON geometry expressed in dataProjection and
// returns it in featureProjection. A geometry encoded as a JSON string is
// unwrapped first.
func ReadGeometry(raw []byte, dataProjection, featureProjection string) (orb.Geometry, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, fmt.Errorf("%w: empty", ErrInvalidGeometry)
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
		}
		return ReadGeometry([]byte(s), dataProjection, featureProjection)
	}

	gj, err := geojson.UnmarshalGeometry(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
	}
	g := gj.Geometry()
	if g == nil {
		return nil, fmt.Errorf("%w: no coordinates", ErrInvalidGeometry)
	}

	b := g.Bound()
	if b.IsEmpty() {
		return nil, fmt.Errorf("%w: no coordinates", ErrInvalidGeometry)
	}
	if dataProjection == ProjWGS84 && !validLonLat(b) {
		return nil, fmt.Errorf("%w: coordinates out of range", ErrInvalidGeometry)
	}

	return Transform(g, dataProjection, featureProjection)
}

func validLonLat(b orb.Bound) bool {
	// written so NaN fails every comparison
	return b.Min[0] >= -180 && b.Max[0] <= 180 && b.Min[1] >= -90 && b.Max[1] <= 90
}
