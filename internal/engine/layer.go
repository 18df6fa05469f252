package engine

import (
	"net/url"
	"sync"

	"github.com/paulmach/orb"
)

// Kind identifies how a layer is rendered.
type Kind string

const (
	KindTile   Kind = "tile"
	KindImage  Kind = "image"
	KindVector Kind = "vector"
)

// Layer is anything the surface can attach and render.
type Layer interface {
	Handle() string
	Kind() Kind
	Visible() bool
	SetVisible(bool)
	ZIndex() int
	Get(key string) string
	Set(key, value string)
}

// Queryable layers can build a feature-info request for a map location.
type Queryable interface {
	Layer
	FeatureInfoURL(coord orb.Point, resolution float64, projection string, extra url.Values) (string, bool)
}

type base struct {
	mu      sync.RWMutex
	handle  string
	visible bool
	zIndex  int
	tags    map[string]string
}

func newBase(zIndex int) base {
	return base{handle: newHandle(), visible: true, zIndex: zIndex, tags: map[string]string{}}
}

func (b *base) Handle() string { return b.handle }
func (b *base) ZIndex() int    { return b.zIndex }

func (b *base) Visible() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.visible
}

func (b *base) SetVisible(v bool) {
	b.mu.Lock()
	b.visible = v
	b.mu.Unlock()
}

func (b *base) Get(key string) string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.tags[key]
}

func (b *base) Set(key, value string) {
	b.mu.Lock()
	b.tags[key] = value
	b.mu.Unlock()
}

// TileLayer is an XYZ raster base layer.
type TileLayer struct {
	base
	URL string
}

// OSMTileURL is the default base map template.
const OSMTileURL = "https://tile.openstreetmap.org/{z}/{x}/{y}.png"

// NewTileLayer creates a base layer for an XYZ template.
func NewTileLayer(urlTemplate string) *TileLayer {
	if urlTemplate == "" {
		urlTemplate = OSMTileURL
	}
	return &TileLayer{base: newBase(0), URL: urlTemplate}
}

func (l *TileLayer) Kind() Kind { return KindTile }

// ImageLayer renders a WMS source as server-side images.
type ImageLayer struct {
	base
	Source  *WMSSource
	Opacity float64
}

// NewImageLayer creates a WMS overlay.
func NewImageLayer(src *WMSSource, opacity float64) *ImageLayer {
	return &ImageLayer{base: newBase(1), Source: src, Opacity: opacity}
}

func (l *ImageLayer) Kind() Kind { return KindImage }

// FeatureInfoURL delegates to the WMS source.
func (l *ImageLayer) FeatureInfoURL(coord orb.Point, resolution float64, projection string, extra url.Values) (string, bool) {
	if l.Source == nil {
		return "", false
	}
	return l.Source.FeatureInfoURL(coord, resolution, projection, extra)
}

// Feature is a vector feature held by a VectorLayer, in the view projection.
type Feature struct {
	ID         string
	Geometry   orb.Geometry
	Properties map[string]any
}

// Style is the fixed visual style of a vector layer.
type Style struct {
	FillColor   string
	StrokeColor string
	StrokeWidth float64
	LineDash    []float64
	PointRadius float64
	PointFill   string
	PointStroke string
}

// VectorLayer holds locally owned geometry: search highlights, sketches, drawings.
type VectorLayer struct {
	base
	Style Style

	fmu      sync.RWMutex
	features []*Feature
}

// NewVectorLayer creates an empty vector layer.
func NewVectorLayer(style Style, zIndex int) *VectorLayer {
	return &VectorLayer{base: newBase(zIndex), Style: style}
}

func (l *VectorLayer) Kind() Kind { return KindVector }

// AddFeature appends f.
func (l *VectorLayer) AddFeature(f *Feature) {
	l.fmu.Lock()
	l.features = append(l.features, f)
	l.fmu.Unlock()
}

// Clear removes every feature.
func (l *VectorLayer) Clear() {
	l.fmu.Lock()
	l.features = nil
	l.fmu.Unlock()
}

// Features returns a copy of the feature slice.
func (l *VectorLayer) Features() []*Feature {
	l.fmu.RLock()
	defer l.fmu.RUnlock()
	out := make([]*Feature, len(l.features))
	copy(out, l.features)
	return out
}

// Extent is the combined bound of all features.
func (l *VectorLayer) Extent() orb.Bound {
	l.fmu.RLock()
	defer l.fmu.RUnlock()
	geoms := make([]orb.Geometry, 0, len(l.features))
	for _, f := range l.features {
		geoms = append(geoms, f.Geometry)
	}
	return Extent(geoms...)
}

var (
	_ Layer     = (*TileLayer)(nil)
	_ Queryable = (*ImageLayer)(nil)
	_ Layer     = (*VectorLayer)(nil)
)
