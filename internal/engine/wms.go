package engine

import (
	"fmt"
	"math"
	"net/url"
	"strings"

	"github.com/paulmach/orb"
)

// featureInfoPixels is the size of the virtual image a GetFeatureInfo request
// is issued against; the clicked pixel sits in its middle.
const featureInfoPixels = 101

// WMSSource addresses a layer published by a WMS server (GeoServer).
type WMSSource struct {
	URL    string
	Params url.Values
}

// NewWMSSource builds a source for "<workspace>:<layer>" served from
// "<baseURL>/<workspace>/wms".
func NewWMSSource(baseURL, workspace, layer string) *WMSSource {
	params := url.Values{}
	params.Set("LAYERS", QualifiedName(workspace, layer))
	params.Set("TILED", "true")
	params.Set("VERSION", "1.1.1")
	return &WMSSource{
		URL:    strings.TrimRight(baseURL, "/") + "/" + workspace + "/wms",
		Params: params,
	}
}

// QualifiedName returns the workspace-qualified layer name.
func QualifiedName(workspace, layer string) string {
	if workspace == "" {
		return layer
	}
	return workspace + ":" + layer
}

// LayerName returns the LAYERS parameter.
func (s *WMSSource) LayerName() string {
	return s.Params.Get("LAYERS")
}

// FeatureInfoURL builds a GetFeatureInfo request for coord at the given
// resolution. extra is merged last (e.g. INFO_FORMAT).
func (s *WMSSource) FeatureInfoURL(coord orb.Point, resolution float64, projection string, extra url.Values) (string, bool) {
	if s.URL == "" || resolution <= 0 {
		return "", false
	}

	half := resolution * featureInfoPixels / 2
	minX, minY := coord[0]-half, coord[1]-half
	maxX, maxY := coord[0]+half, coord[1]+half
	px := int(math.Floor((coord[0] - minX) / resolution))
	py := int(math.Floor((maxY - coord[1]) / resolution))

	q := url.Values{}
	q.Set("SERVICE", "WMS")
	q.Set("REQUEST", "GetFeatureInfo")
	q.Set("FORMAT", "image/png")
	q.Set("TRANSPARENT", "true")
	for k, vs := range s.Params {
		q[k] = append([]string(nil), vs...)
	}
	q.Set("QUERY_LAYERS", s.Params.Get("LAYERS"))
	q.Set("WIDTH", fmt.Sprint(featureInfoPixels))
	q.Set("HEIGHT", fmt.Sprint(featureInfoPixels))
	q.Set("BBOX", fmt.Sprintf("%f,%f,%f,%f", minX, minY, maxX, maxY))

	if q.Get("VERSION") == "1.3.0" {
		q.Set("CRS", projection)
		q.Set("I", fmt.Sprint(px))
		q.Set("J", fmt.Sprint(py))
	} else {
		q.Set("SRS", projection)
		q.Set("X", fmt.Sprint(px))
		q.Set("Y", fmt.Sprint(py))
	}

	for k, vs := range extra {
		q[k] = append([]string(nil), vs...)
	}

	return s.URL + "?" + q.Encode(), true
}
