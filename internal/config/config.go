// Package config loads the viewer configuration: defaults, then an optional
// YAML file, then MAPVIEW_* environment variables, then bound flags.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/spf13/viper"

	"github.com/joeblew999/plat-mapview/internal/engine"
)

// EnvPrefix is prepended to every environment variable, e.g. MAPVIEW_API_BASE_URL.
const EnvPrefix = "MAPVIEW"

// DefaultFile is looked up in the working directory when no file is given.
const DefaultFile = "mapview"

// Config is the client configuration.
type Config struct {
	API     API     `mapstructure:"api"`
	WMS     WMS     `mapstructure:"wms"`
	Map     Map     `mapstructure:"map"`
	Session Session `mapstructure:"session"`
	Verbose bool    `mapstructure:"verbose"`
}

// API addresses the remote layer/feature API.
type API struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// WMS addresses the map server publishing the layers.
type WMS struct {
	BaseURL   string  `mapstructure:"base_url"`
	Workspace string  `mapstructure:"workspace"`
	Opacity   float64 `mapstructure:"opacity"`
}

// Map holds the initial and home views, in lon/lat.
type Map struct {
	CenterLon      float64 `mapstructure:"center_lon"`
	CenterLat      float64 `mapstructure:"center_lat"`
	Zoom           float64 `mapstructure:"zoom"`
	HomeLon        float64 `mapstructure:"home_lon"`
	HomeLat        float64 `mapstructure:"home_lat"`
	HomeZoom       float64 `mapstructure:"home_zoom"`
	ViewportWidth  int     `mapstructure:"viewport_width"`
	ViewportHeight int     `mapstructure:"viewport_height"`
}

// Session locates the credential.
type Session struct {
	TokenFile string `mapstructure:"token_file"`
	Token     string `mapstructure:"token"`
}

// Center returns the initial view center.
func (m Map) Center() orb.Point { return orb.Point{m.CenterLon, m.CenterLat} }

// Home returns the home view center.
func (m Map) Home() orb.Point { return orb.Point{m.HomeLon, m.HomeLat} }

// Viewport returns the viewport size.
func (m Map) Viewport() engine.Size {
	return engine.Size{Width: m.ViewportWidth, Height: m.ViewportHeight}
}

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// New returns a viper instance with defaults and environment binding. file may
// be empty, in which case ./mapview.yaml is used if present.
func New(file string) *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(DefaultFile)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// SetDefaults registers every key with its default.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "http://localhost:8087")
	v.SetDefault("api.timeout", 10*time.Second)
	v.SetDefault("wms.base_url", "http://localhost:8087/geoserver")
	v.SetDefault("wms.workspace", "sigds")
	v.SetDefault("wms.opacity", 0.8)
	v.SetDefault("map.center_lon", -80.0525)
	v.SetDefault("map.center_lat", -0.7092)
	v.SetDefault("map.zoom", 15.0)
	v.SetDefault("map.home_lon", -80.454)
	v.SetDefault("map.home_lat", -1.056)
	v.SetDefault("map.home_zoom", 13.0)
	v.SetDefault("map.viewport_width", 1024)
	v.SetDefault("map.viewport_height", 768)
	v.SetDefault("session.token_file", ".mapview-token")
	v.SetDefault("session.token", "")
	v.SetDefault("verbose", false)
}

// Load reads the config file (a missing default file is not an error) and
// decodes the merged settings.
func Load(v *viper.Viper) (Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks the decoded values.
func (c Config) Validate() error {
	var errs []error
	for key, raw := range map[string]string{"api.base_url": c.API.BaseURL, "wms.base_url": c.WMS.BaseURL} {
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("%w: %s must be an http(s) URL, got %q", ErrInvalid, key, raw))
		}
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("%w: api.timeout must be positive", ErrInvalid))
	}
	if c.WMS.Opacity < 0 || c.WMS.Opacity > 1 {
		errs = append(errs, fmt.Errorf("%w: wms.opacity must be within [0, 1]", ErrInvalid))
	}
	if c.Map.Zoom < 0 || c.Map.Zoom > 28 || c.Map.HomeZoom < 0 || c.Map.HomeZoom > 28 {
		errs = append(errs, fmt.Errorf("%w: zoom levels must be within [0, 28]", ErrInvalid))
	}
	if !validLonLat(c.Map.Center()) || !validLonLat(c.Map.Home()) {
		errs = append(errs, fmt.Errorf("%w: map centers must be lon/lat", ErrInvalid))
	}
	return errors.Join(errs...)
}

func validLonLat(p orb.Point) bool {
	return p.Lon() >= -180 && p.Lon() <= 180 && p.Lat() >= -90 && p.Lat() <= 90
}
