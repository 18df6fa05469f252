package app

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-mapview/internal/command"
	"github.com/joeblew999/plat-mapview/internal/config"
	"github.com/joeblew999/plat-mapview/internal/devapi"
	"github.com/joeblew999/plat-mapview/internal/engine"
	"github.com/joeblew999/plat-mapview/internal/layers"
	"github.com/joeblew999/plat-mapview/internal/measure"
	"github.com/joeblew999/plat-mapview/internal/notify"
	"github.com/joeblew999/plat-mapview/internal/search"
	"github.com/joeblew999/plat-mapview/internal/session"
	"github.com/joeblew999/plat-mapview/internal/tool"
)

// The map surface is process-wide and keeps the fetcher of the first App, so
// every test in this package talks to the same dev API.
var apiURL string

func TestMain(m *testing.M) {
	srv, err := devapi.New(devapi.Config{})
	if err != nil {
		panic(err)
	}
	ts := httptest.NewServer(srv)
	apiURL = ts.URL
	code := m.Run()
	ts.Close()
	os.Exit(code)
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	v := config.New("")
	v.Set("api.base_url", apiURL)
	v.Set("wms.base_url", apiURL+"/geoserver")
	c, err := config.Load(v)
	require.NoError(t, err)
	return c
}

func newApp(t *testing.T, tokens session.TokenStore) (*App, *notify.Recorder) {
	t.Helper()
	rec := &notify.Recorder{}
	a, err := New(Options{Config: testConfig(t), Tokens: tokens, Notifier: rec})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a, rec
}

func lonLat(lon, lat float64) orb.Point {
	return engine.FromLonLat(orb.Point{lon, lat}, engine.ProjMercator)
}

func TestScenario(t *testing.T) {
	tokens := session.NewMemoryStore("")
	a, _ := newApp(t, tokens)
	ctx := t.Context()

	t.Run("initial paint", func(t *testing.T) {
		require.NoError(t, a.Start(ctx))
		assert.ElementsMatch(t, []string{"1", "3"}, a.Layers.Attached())
		require.NoError(t, a.Start(ctx))
		assert.Len(t, a.Layers.Attached(), 2)
	})

	t.Run("layer panel refreshes", func(t *testing.T) {
		require.NoError(t, a.Dispatch(ctx, command.ActivateTool{ID: tool.LayerPanel}))
		a.Wait()
		assert.Equal(t, layers.StatusReady, a.Layers.View().Status)
		require.NoError(t, a.Dispatch(ctx, command.ToggleLayer{ID: "2", Visible: true}))
		require.NoError(t, a.Dispatch(ctx, command.ToggleLayer{ID: "2", Visible: true}))
		assert.Len(t, a.Layers.Attached(), 3)
		require.NoError(t, a.Dispatch(ctx, command.ToggleLayer{ID: "2", Visible: false}))
	})

	t.Run("feature info popup", func(t *testing.T) {
		require.NoError(t, a.Dispatch(ctx, command.DeactivateTools{}))
		require.NoError(t, a.Dispatch(ctx, command.Click{At: lonLat(-80.4546, -1.0441)}))
		a.Wait()
		p := a.Surface.Popup()
		require.True(t, p.Visible())
		assert.Contains(t, p.Markup, "Facultad de Ciencias Informaticas")

		require.NoError(t, a.Dispatch(ctx, command.ClosePopup{}))
		assert.False(t, a.Surface.Popup().Visible())
	})

	t.Run("measure and escape", func(t *testing.T) {
		keys, _, _ := a.Surface.ListenerCounts()
		require.NoError(t, a.Dispatch(ctx, command.ActivateTool{ID: tool.Measure}))
		require.NoError(t, a.Dispatch(ctx, command.Click{At: lonLat(-80.4546, -1.0441)}))
		require.NoError(t, a.Dispatch(ctx, command.DoubleClick{At: lonLat(-80.4572, -1.0466)}))
		v := a.Measure.View()
		assert.Equal(t, measure.Finalized, v.State)
		assert.NotEqual(t, "0 m", v.Total)
		assert.False(t, a.Surface.Popup().Visible(), "measuring clicks never open the popup")

		require.NoError(t, a.Dispatch(ctx, command.KeyDown{Key: "Escape"}))
		assert.False(t, a.Measure.Active())
		_, active := a.Tools.Active()
		assert.False(t, active)
		after, _, _ := a.Surface.ListenerCounts()
		assert.Equal(t, keys, after)
	})

	t.Run("search", func(t *testing.T) {
		err := a.Dispatch(ctx, command.Search{Query: "a"})
		assert.ErrorIs(t, err, search.ErrQueryTooShort)
		assert.True(t, IsUserError(err))

		require.NoError(t, a.Dispatch(ctx, command.Search{Query: "facultad"}))
		assert.Len(t, a.Search.Highlighted(), 2)
		anim, ok := a.Surface.Camera().LastAnimation()
		require.True(t, ok)
		assert.Equal(t, search.FitDuration, anim.Duration)
	})

	t.Run("delete", func(t *testing.T) {
		err := a.Dispatch(ctx, command.DeleteLayer{ID: "3"})
		assert.ErrorIs(t, err, session.ErrForbidden)
		assert.Len(t, a.Layers.Attached(), 2)

		tokens.Set(session.MintDevToken("root", session.SuperAdmin, time.Hour))
		require.NoError(t, a.Dispatch(ctx, command.DeleteLayer{ID: "3"}))
		assert.Equal(t, []string{"1"}, a.Layers.Attached())
	})

	t.Run("controls", func(t *testing.T) {
		require.NoError(t, a.Dispatch(ctx, command.GoHome{}))
		z := a.Surface.Camera().Zoom()
		require.NoError(t, a.Dispatch(ctx, command.ZoomBy{Delta: 1}))
		assert.Equal(t, z+1, a.Surface.Camera().Zoom())
	})
}

func TestAddLayerRequiresAdmin(t *testing.T) {
	tokens := session.NewMemoryStore("")
	a, rec := newApp(t, tokens)
	ctx := t.Context()

	err := a.Dispatch(ctx, command.ActivateTool{ID: tool.AddLayer})
	assert.ErrorIs(t, err, session.ErrForbidden)
	_, active := a.Tools.Active()
	assert.False(t, active)
	n, ok := rec.Last()
	require.True(t, ok)
	assert.Equal(t, notify.Warning, n.Level)

	tokens.Set(session.MintDevToken("ana", session.Admin, time.Hour))
	require.NoError(t, a.Dispatch(ctx, command.ActivateTool{ID: tool.AddLayer}))
	id, _ := a.Tools.Active()
	assert.Equal(t, tool.AddLayer, id)

	require.NoError(t, a.Dispatch(ctx, command.LayerAdded{ID: "9"}))
	assert.Equal(t, layers.StatusReady, a.Layers.View().Status)
}

func TestDrawingCommands(t *testing.T) {
	a, _ := newApp(t, nil)
	ctx := t.Context()

	require.NoError(t, a.Dispatch(ctx, command.SetDrawType{Type: engine.DrawPoint}))
	assert.Equal(t, engine.DrawPoint, a.Drawing.Type())
	require.NoError(t, a.Dispatch(ctx, command.ActivateTool{ID: tool.Draw}))
	require.NoError(t, a.Dispatch(ctx, command.Click{At: lonLat(-80.4546, -1.0441)}))
	require.Len(t, a.Drawing.Features(), 1)
	assert.IsType(t, orb.Point{}, a.Drawing.Features()[0].Geometry)

	require.NoError(t, a.Dispatch(ctx, command.SetDrawType{Type: engine.DrawLineString}))
	require.NoError(t, a.Dispatch(ctx, command.Click{At: lonLat(-80.4546, -1.0441)}))
	require.NoError(t, a.Dispatch(ctx, command.DoubleClick{At: lonLat(-80.4572, -1.0466)}))
	require.Len(t, a.Drawing.Features(), 2)
	assert.IsType(t, orb.LineString{}, a.Drawing.Features()[1].Geometry)

	err := a.Dispatch(ctx, command.SetDrawType{Type: "Circle"})
	assert.ErrorIs(t, err, engine.ErrUnknownGeometryType)
	assert.True(t, IsUserError(err))

	require.NoError(t, a.Dispatch(ctx, command.ClearDrawings{}))
	assert.Empty(t, a.Drawing.Features())
	require.NoError(t, a.Dispatch(ctx, command.DeactivateTools{}))
}

func TestUnknownToolIsUserError(t *testing.T) {
	a, _ := newApp(t, nil)
	err := a.Dispatch(context.Background(), command.ActivateTool{ID: "lasso"})
	assert.ErrorIs(t, err, tool.ErrUnknownTool)
	assert.True(t, IsUserError(err))
}

func TestTokenStore(t *testing.T) {
	s := TokenStore(config.Session{Token: "inline", TokenFile: "ignored"})
	tok, ok := s.Token()
	assert.True(t, ok)
	assert.Equal(t, "inline", tok)

	path := filepath.Join(t.TempDir(), "token")
	fs := TokenStore(config.Session{TokenFile: path})
	_, ok = fs.Token()
	assert.False(t, ok)
	require.NoError(t, fs.(session.FileStore).Set("from-file"))
	tok, _ = fs.Token()
	assert.Equal(t, "from-file", tok)
}
