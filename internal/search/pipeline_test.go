package search

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-mapview/internal/devapi"
	"github.com/joeblew999/plat-mapview/internal/engine"
	"github.com/joeblew999/plat-mapview/internal/mapsurface"
	"github.com/joeblew999/plat-mapview/internal/notify"
	"github.com/joeblew999/plat-mapview/internal/remote"
)

type fakeAPI struct {
	mu      sync.Mutex
	calls   []string
	results map[string][]remote.FeatureRecord
	err     error
	// block, when set, holds queries named in it until the channel is closed.
	block map[string]chan struct{}
}

func (a *fakeAPI) SearchFeatures(ctx context.Context, q string) ([]remote.FeatureRecord, error) {
	a.mu.Lock()
	a.calls = append(a.calls, q)
	res, err := a.results[q], a.err
	wait := a.block[q]
	a.mu.Unlock()
	if wait != nil {
		<-wait
	}
	return res, err
}

func (a *fakeAPI) setErr(err error) {
	a.mu.Lock()
	a.err = err
	a.mu.Unlock()
}

func record(id string, geom string, props string) remote.FeatureRecord {
	p, _ := json.Marshal(props)
	return remote.FeatureRecord{ID: remote.ID(id), Geom: json.RawMessage(geom), Properties: p}
}

var campus = []remote.FeatureRecord{
	record("1", `{"type":"Point","coordinates":[-80.4546,-1.0441]}`, `{"nombre":"Facultad de Ciencias Informaticas"}`),
	record("2", `{"type":"Point","coordinates":[-80.4572,-1.0466]}`, `{"nombre":"Facultad de Ciencias Matematicas"}`),
	record("3", `{"type":"LineString","coordinates":[[-80.46,-1.05],[-80.45,-1.04]]}`, `{"nombre":"Avenida Universitaria"}`),
	record("4", `{"type":"Point","coordinates":["x"]}`, `{}`),
}

func surface(t *testing.T) *mapsurface.Surface {
	t.Helper()
	s, err := mapsurface.Get(mapsurface.Config{})
	require.NoError(t, err)
	t.Cleanup(func() { s.RemoveOverlay(highlightKey) })
	return s
}

func TestQueryTooShortMakesNoRequest(t *testing.T) {
	api := &fakeAPI{}
	rec := &notify.Recorder{}
	p := New(api, surface(t), rec, nil)

	for _, q := range []string{"", "a", " a ", "é"} {
		_, err := p.Search(t.Context(), q)
		assert.ErrorIs(t, err, ErrQueryTooShort, "%q", q)
	}
	assert.Empty(t, api.calls)

	n, ok := rec.Last()
	require.True(t, ok)
	assert.Equal(t, notify.Warning, n.Level)
}

func TestMalformedRecordIsSkipped(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	s := surface(t)
	api := &fakeAPI{results: map[string][]remote.FeatureRecord{"facultad": campus}}
	p := New(api, s, nil, logger)

	res, err := p.Search(t.Context(), "facultad")
	require.NoError(t, err)
	assert.Equal(t, Result{Query: "facultad", Records: 4, Rendered: 3, Skipped: 1}, res)
	assert.Len(t, p.Highlighted(), 3)
	assert.Equal(t, 1, strings.Count(logs.String(), "skipping search record"))

	l, ok := s.Overlay(highlightKey)
	require.True(t, ok)
	assert.Equal(t, 999, l.ZIndex())

	// Features are in the view projection.
	pt, ok := p.Highlighted()[0].Geometry.(orb.Point)
	require.True(t, ok)
	assert.InDelta(t, -80.4546, engine.ToLonLat(pt, s.Projection()).Lon(), 1e-9)
	assert.Equal(t, "Facultad de Ciencias Informaticas", p.Highlighted()[0].Properties["nombre"])
}

func TestFitFramesResults(t *testing.T) {
	s := surface(t)
	api := &fakeAPI{results: map[string][]remote.FeatureRecord{
		"one":  campus[:1],
		"many": campus[:3],
	}}
	p := New(api, s, nil, nil)

	_, err := p.Search(t.Context(), "one")
	require.NoError(t, err)
	a, ok := s.Camera().LastAnimation()
	require.True(t, ok)
	assert.Equal(t, float64(FitMaxZoom), a.Zoom, "a single point stops at the zoom ceiling")
	assert.Equal(t, FitDuration, a.Duration)

	_, err = p.Search(t.Context(), "many")
	require.NoError(t, err)
	a, _ = s.Camera().LastAnimation()
	assert.Less(t, a.Zoom, float64(FitMaxZoom))
	b := engine.Extent(campus3Geoms(t, s)...)
	assert.InDelta(t, b.Center()[0], a.Center[0], 1e-6)
}

func campus3Geoms(t *testing.T, s *mapsurface.Surface) []orb.Geometry {
	t.Helper()
	var out []orb.Geometry
	for _, r := range campus[:3] {
		g, err := engine.ReadGeometry(r.Geom, engine.ProjWGS84, s.Projection())
		require.NoError(t, err)
		out = append(out, g)
	}
	return out
}

func TestNoMatchesClearsHighlight(t *testing.T) {
	s := surface(t)
	rec := &notify.Recorder{}
	api := &fakeAPI{results: map[string][]remote.FeatureRecord{"facultad": campus}}
	p := New(api, s, rec, nil)

	_, err := p.Search(t.Context(), "facultad")
	require.NoError(t, err)

	res, err := p.Search(t.Context(), "utm")
	require.NoError(t, err)
	assert.Zero(t, res.Records)
	assert.Empty(t, p.Highlighted())
	_, ok := s.Overlay(highlightKey)
	assert.False(t, ok)

	n, _ := rec.Last()
	assert.Equal(t, notify.Info, n.Level)
	assert.Contains(t, n.Message, "utm")
}

func TestFailureKeepsHighlight(t *testing.T) {
	s := surface(t)
	rec := &notify.Recorder{}
	api := &fakeAPI{results: map[string][]remote.FeatureRecord{"facultad": campus}}
	p := New(api, s, rec, nil)

	_, err := p.Search(t.Context(), "facultad")
	require.NoError(t, err)
	before, _ := s.Overlay(highlightKey)

	api.setErr(remote.ErrConnectivity)
	_, err = p.Search(t.Context(), "biblioteca")
	assert.ErrorIs(t, err, remote.ErrConnectivity)

	after, ok := s.Overlay(highlightKey)
	require.True(t, ok)
	assert.Same(t, before, after)
	assert.Len(t, p.Highlighted(), 3)

	n, _ := rec.Last()
	assert.Equal(t, notify.Error, n.Level)
}

func TestNewHighlightReplacesOld(t *testing.T) {
	s := surface(t)
	api := &fakeAPI{results: map[string][]remote.FeatureRecord{
		"facultad": campus,
		"avenida":  campus[2:3],
	}}
	p := New(api, s, nil, nil)
	count := s.OverlayCount()

	_, err := p.Search(t.Context(), "facultad")
	require.NoError(t, err)
	_, err = p.Search(t.Context(), "avenida")
	require.NoError(t, err)

	assert.Equal(t, count+1, s.OverlayCount())
	require.Len(t, p.Highlighted(), 1)
	assert.Equal(t, "3", p.Highlighted()[0].ID)
}

func TestSupersededSearchIsDiscarded(t *testing.T) {
	s := surface(t)
	release := make(chan struct{})
	api := &fakeAPI{
		results: map[string][]remote.FeatureRecord{"facultad": campus, "avenida": campus[2:3]},
		block:   map[string]chan struct{}{"facultad": release},
	}
	p := New(api, s, nil, nil)

	done := make(chan Result, 1)
	go func() {
		res, _ := p.Search(context.Background(), "facultad")
		done <- res
	}()
	require.Eventually(t, func() bool {
		api.mu.Lock()
		defer api.mu.Unlock()
		return len(api.calls) == 1
	}, time.Second, time.Millisecond)

	_, err := p.Search(t.Context(), "avenida")
	require.NoError(t, err)
	close(release)

	res := <-done
	assert.True(t, res.Superseded)
	require.Len(t, p.Highlighted(), 1)
	assert.Equal(t, "3", p.Highlighted()[0].ID)
}

func TestSearchAgainstDevAPI(t *testing.T) {
	srv, err := devapi.New(devapi.Config{})
	require.NoError(t, err)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	s := surface(t)
	p := New(remote.New(ts.URL), s, nil, nil)

	res, err := p.Search(t.Context(), "FACULTAD")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Rendered)

	// The only match has no geometry.
	res, err = p.Search(t.Context(), "sin trazar")
	require.NoError(t, err)
	assert.Equal(t, Result{Query: "sin trazar", Records: 1, Skipped: 1}, res)
	assert.Empty(t, p.Highlighted())
}
