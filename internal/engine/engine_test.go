package engine

import (
	"math"
	"net/url"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadGeometryProjectsToMercator(t *testing.T) {
	g, err := ReadGeometry([]byte(`{"type":"Point","coordinates":[-80.0525,-0.7092]}`), ProjWGS84, ProjMercator)
	require.NoError(t, err)

	p, ok := g.(orb.Point)
	require.True(t, ok, "expected orb.Point, got %T", g)
	assert.InDelta(t, -8911340.0, p[0], 100)
	assert.InDelta(t, -78950.0, p[1], 100)

	back := ToLonLat(p, ProjMercator)
	assert.InDelta(t, -80.0525, back.Lon(), 1e-6)
	assert.InDelta(t, -0.7092, back.Lat(), 1e-6)
}

func TestReadGeometryUnwrapsStringEncoding(t *testing.T) {
	g, err := ReadGeometry([]byte(`"{\"type\":\"LineString\",\"coordinates\":[[0,0],[1,1]]}"`), ProjWGS84, ProjWGS84)
	require.NoError(t, err)
	assert.Equal(t, "LineString", g.GeoJSONType())
}

func TestReadGeometryRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"empty":        ``,
		"null":         `null`,
		"truncated":    `{"type":`,
		"out of range": `{"type":"Point","coordinates":[500,500]}`,
		"no coords":    `{"type":"LineString","coordinates":[]}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ReadGeometry([]byte(raw), ProjWGS84, ProjMercator)
			require.ErrorIs(t, err, ErrInvalidGeometry)
		})
	}
}

func TestTransformUnsupported(t *testing.T) {
	_, err := Transform(orb.Point{1, 2}, "EPSG:32717", ProjMercator)
	require.ErrorIs(t, err, ErrUnsupportedProjection)
}

func TestLengthIsSpherical(t *testing.T) {
	// one degree of longitude along the equator
	line := orb.LineString{{0, 0}, {1, 0}}
	wgs := Length(line, ProjWGS84)
	assert.InDelta(t, 111195.08, wgs, 0.01)

	merc, err := Transform(orb.Clone(line), ProjWGS84, ProjMercator)
	require.NoError(t, err)
	assert.InDelta(t, wgs, Length(merc, ProjMercator), 0.01)

	// input must not be mutated
	assert.Equal(t, orb.LineString{{0, 0}, {1, 0}}, line)

	// 10 km along the equator on the mean-radius sphere, split over two segments
	deg := 10000 / (MeanEarthRadius * math.Pi / 180)
	ten := orb.LineString{{0, 0}, {deg / 2, 0}, {deg, 0}}
	assert.InDelta(t, 10000, Length(ten, ProjWGS84), 1e-6)

	ring := orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}
	assert.Greater(t, Length(ring, ProjWGS84), 2*wgs)
	assert.Zero(t, Length(orb.Point{1, 1}, ProjWGS84))
}

func TestParseGeometryType(t *testing.T) {
	for in, want := range map[string]GeometryType{
		"point":      DrawPoint,
		"Line":       DrawLineString,
		"LINESTRING": DrawLineString,
		" polygon ":  DrawPolygon,
	} {
		got, err := ParseGeometryType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseGeometryType("circle")
	assert.ErrorIs(t, err, ErrUnknownGeometryType)
}

func TestDrawListenersAddedDuringEmitWaitForNextEvent(t *testing.T) {
	d := NewDraw(DrawLineString, nil)
	var late int
	d.OnChange(func(DrawEvent) {
		d.OnChange(func(DrawEvent) { late++ })
	})

	d.HandleClick(orb.Point{0, 0})
	assert.Zero(t, late)
	d.HandleClick(orb.Point{1, 0})
	assert.Equal(t, 1, late)
}

func TestExtent(t *testing.T) {
	assert.True(t, Extent().IsEmpty())
	assert.True(t, Extent(nil, orb.LineString{}).IsEmpty())

	b := Extent(orb.Point{1, 1}, orb.LineString{{-2, 0}, {3, 4}})
	assert.Equal(t, orb.Bound{Min: orb.Point{-2, 0}, Max: orb.Point{3, 4}}, b)
}

func TestCameraFitRespectsMaxZoom(t *testing.T) {
	cam := NewCamera(ProjMercator, orb.Point{0, 0}, 3, Size{Width: 800, Height: 600})

	p := orb.Point{100, 200}
	ok := cam.Fit(orb.Bound{Min: p, Max: p}, FitOptions{Padding: 50, MaxZoom: 18, Duration: time.Second})
	require.True(t, ok)
	assert.Equal(t, 18.0, cam.Zoom())
	assert.Equal(t, p, cam.Center())

	anim, ok := cam.LastAnimation()
	require.True(t, ok)
	assert.Equal(t, time.Second, anim.Duration)
}

func TestCameraFitFramesExtent(t *testing.T) {
	cam := NewCamera(ProjMercator, orb.Point{0, 0}, 3, Size{Width: 800, Height: 600})
	b := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{70000, 1000}}

	require.True(t, cam.Fit(b, FitOptions{Padding: 50, MaxZoom: 18}))

	// 70 km across 700 usable pixels -> 100 m/px
	assert.InDelta(t, 100.0, cam.Resolution(), 0.001)
	assert.Equal(t, orb.Point{35000, 500}, cam.Center())
}

func TestCameraFitSkipsEmptyExtent(t *testing.T) {
	cam := NewCamera(ProjMercator, orb.Point{1, 1}, 5, Size{})
	assert.False(t, cam.Fit(EmptyBound(), FitOptions{MaxZoom: 18}))
	assert.Equal(t, 5.0, cam.Zoom())
	_, animated := cam.LastAnimation()
	assert.False(t, animated)
}

func TestCameraAnimatePartial(t *testing.T) {
	cam := NewCamera(ProjMercator, orb.Point{1, 1}, 5, Size{})
	z := 6.0
	cam.Animate(nil, &z, 250*time.Millisecond)
	assert.Equal(t, orb.Point{1, 1}, cam.Center())
	assert.Equal(t, 6.0, cam.Zoom())

	z = 99
	cam.Animate(nil, &z, 0)
	assert.Equal(t, 28.0, cam.Zoom())
}

func TestWMSFeatureInfoURL(t *testing.T) {
	src := NewWMSSource("http://localhost:8080/geoserver/", "sigds", "schools")
	assert.Equal(t, "http://localhost:8080/geoserver/sigds/wms", src.URL)
	assert.Equal(t, "sigds:schools", src.LayerName())

	raw, ok := src.FeatureInfoURL(orb.Point{1000, 2000}, 2, ProjMercator, url.Values{"INFO_FORMAT": {"application/json"}})
	require.True(t, ok)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "GetFeatureInfo", q.Get("REQUEST"))
	assert.Equal(t, "sigds:schools", q.Get("QUERY_LAYERS"))
	assert.Equal(t, "application/json", q.Get("INFO_FORMAT"))
	assert.Equal(t, "EPSG:3857", q.Get("SRS"))
	assert.Equal(t, "50", q.Get("X"))
	assert.Equal(t, "50", q.Get("Y"))
	assert.Equal(t, "899.000000,1899.000000,1101.000000,2101.000000", q.Get("BBOX"))
}

func TestWMSFeatureInfoURLRequiresResolution(t *testing.T) {
	src := NewWMSSource("http://gs", "ws", "l")
	_, ok := src.FeatureInfoURL(orb.Point{}, 0, ProjMercator, nil)
	assert.False(t, ok)
}

func TestDrawLineString(t *testing.T) {
	target := NewVectorLayer(Style{}, 10)
	d := NewDraw(DrawLineString, target)

	var starts, changes, ends int
	var lastLen int
	d.OnStart(func(DrawEvent) { starts++ })
	d.OnChange(func(ev DrawEvent) {
		changes++
		lastLen = len(ev.Feature.Geometry.(orb.LineString))
	})
	d.OnEnd(func(DrawEvent) { ends++ })

	d.HandleClick(orb.Point{0, 0})
	d.HandleClick(orb.Point{1, 0})
	require.NotNil(t, d.Sketch())
	d.HandleDoubleClick(orb.Point{2, 0})

	assert.Equal(t, 1, starts)
	assert.Equal(t, 3, changes)
	assert.Equal(t, 1, ends)
	assert.Equal(t, 3, lastLen)
	assert.Nil(t, d.Sketch())
	assert.Len(t, target.Features(), 1)
}

func TestDrawDoubleClickNeedsEnoughVertices(t *testing.T) {
	d := NewDraw(DrawLineString, nil)
	ended := false
	d.OnEnd(func(DrawEvent) { ended = true })

	d.HandleClick(orb.Point{0, 0})
	d.HandleDoubleClick(orb.Point{0, 0})
	assert.False(t, ended)
	assert.NotNil(t, d.Sketch())

	d.Abort()
	assert.Nil(t, d.Sketch())
}

func TestDrawPolygonClosesRing(t *testing.T) {
	d := NewDraw(DrawPolygon, nil)
	var got orb.Geometry
	d.OnEnd(func(ev DrawEvent) { got = ev.Feature.Geometry })

	d.HandleClick(orb.Point{0, 0})
	d.HandleClick(orb.Point{1, 0})
	d.HandleDoubleClick(orb.Point{1, 1})

	poly, ok := got.(orb.Polygon)
	require.True(t, ok)
	assert.True(t, poly[0].Closed())
	assert.Len(t, poly[0], 4)
}

func TestDrawPoint(t *testing.T) {
	target := NewVectorLayer(Style{}, 10)
	d := NewDraw(DrawPoint, target)
	ends := 0
	d.OnEnd(func(DrawEvent) { ends++ })

	d.HandleClick(orb.Point{3, 4})
	d.HandleClick(orb.Point{5, 6})
	assert.Equal(t, 2, ends)
	assert.Len(t, target.Features(), 2)
	assert.Nil(t, d.Sketch())
}

func TestResolutionRoundTrip(t *testing.T) {
	for _, z := range []float64{0, 3.5, 13, 18} {
		assert.InDelta(t, z, ZoomForResolution(ResolutionForZoom(z)), 1e-9)
	}
	assert.InDelta(t, 156543.03392804097, ResolutionForZoom(0), 1e-6)
	assert.False(t, math.IsNaN(ResolutionForZoom(30)))
}
