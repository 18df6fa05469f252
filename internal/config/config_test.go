package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	c, err := Load(New(""))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8087", c.API.BaseURL)
	assert.Equal(t, 10*time.Second, c.API.Timeout)
	assert.Equal(t, "sigds", c.WMS.Workspace)
	assert.Equal(t, 0.8, c.WMS.Opacity)
	assert.Equal(t, orb.Point{-80.0525, -0.7092}, c.Map.Center())
	assert.Equal(t, orb.Point{-80.454, -1.056}, c.Map.Home())
	assert.Equal(t, 13.0, c.Map.HomeZoom)
	assert.Equal(t, 1024, c.Map.Viewport().Width)
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mapview.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestFileOverridesDefaults(t *testing.T) {
	path := writeFile(t, `
api:
  base_url: https://sig.example/api
  timeout: 3s
wms:
  workspace: portoviejo
map:
  zoom: 12
`)
	c, err := Load(New(path))
	require.NoError(t, err)
	assert.Equal(t, "https://sig.example/api", c.API.BaseURL)
	assert.Equal(t, 3*time.Second, c.API.Timeout)
	assert.Equal(t, "portoviejo", c.WMS.Workspace)
	assert.Equal(t, 12.0, c.Map.Zoom)
	assert.Equal(t, 0.8, c.WMS.Opacity, "unset keys keep their default")
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeFile(t, "wms:\n  workspace: portoviejo\n")
	t.Setenv("MAPVIEW_WMS_WORKSPACE", "manta")
	t.Setenv("MAPVIEW_SESSION_TOKEN", "abc")

	c, err := Load(New(path))
	require.NoError(t, err)
	assert.Equal(t, "manta", c.WMS.Workspace)
	assert.Equal(t, "abc", c.Session.Token)
}

func TestFlagOverridesEnv(t *testing.T) {
	t.Setenv("MAPVIEW_API_BASE_URL", "http://env:1")
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("api-url", "", "")
	require.NoError(t, flags.Parse([]string{"--api-url", "http://flag:2"}))

	v := New("")
	require.NoError(t, v.BindPFlag("api.base_url", flags.Lookup("api-url")))
	c, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "http://flag:2", c.API.BaseURL)
}

func TestMissingExplicitFile(t *testing.T) {
	_, err := Load(New(filepath.Join(t.TempDir(), "nope.yaml")))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	path := writeFile(t, `
api:
  base_url: localhost
wms:
  opacity: 1.5
map:
  center_lat: 120
`)
	_, err := Load(New(path))
	require.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "api.base_url")
	assert.Contains(t, err.Error(), "wms.opacity")
	assert.Contains(t, err.Error(), "lon/lat")
}
