package mapsurface

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-mapview/internal/engine"
)

// Default views (lon/lat). The initial view frames the UTM campus; home is
// Portoviejo.
var (
	DefaultCenter   = orb.Point{-80.0525, -0.7092}
	DefaultZoom     = 15.0
	DefaultHome     = orb.Point{-80.454, -1.056}
	DefaultHomeZoom = 13.0
)

const (
	zoomDuration = 250 * time.Millisecond
	homeDuration = 500 * time.Millisecond
)

// ZoomBy animates the zoom level by delta.
func (s *Surface) ZoomBy(delta float64) {
	z := s.camera.Zoom() + delta
	s.AnimateCamera(nil, &z, zoomDuration)
}

// GoHome animates the camera back to the home view.
func (s *Surface) GoHome() {
	center := engine.FromLonLat(s.cfg.Home, s.Projection())
	z := s.cfg.HomeZoom
	s.AnimateCamera(&center, &z, homeDuration)
}

// CenterLonLat returns the camera center in WGS84.
func (s *Surface) CenterLonLat() orb.Point {
	return engine.ToLonLat(s.camera.Center(), s.Projection())
}

// ShareURL returns base with the current view encoded as lat, lon and z.
func (s *Surface) ShareURL(base string) string {
	ll := s.CenterLonLat()
	q := fmt.Sprintf("lat=%.5f&lon=%.5f&z=%.2f", ll.Lat(), ll.Lon(), s.camera.Zoom())
	if u, err := url.Parse(base); err == nil {
		u.RawQuery = ""
		u.Fragment = ""
		base = u.String()
	}
	return strings.TrimRight(base, "?") + "?" + q
}

// OverlayInfo describes one attached overlay.
type OverlayInfo struct {
	Key      OverlayKey
	Kind     engine.Kind
	Name     string
	Visible  bool
	ZIndex   int
	Features int
}

// Snapshot is a point-in-time view of the surface state.
type Snapshot struct {
	Center       orb.Point // lon/lat
	Zoom         float64
	Overlays     []OverlayInfo
	Popup        Popup
	Cursor       string
	Readout      string
	Interactions int
	KeyListeners int
}

// Snapshot captures the current state.
func (s *Surface) Snapshot() Snapshot {
	snap := Snapshot{
		Center:       s.CenterLonLat(),
		Zoom:         s.camera.Zoom(),
		Popup:        s.Popup(),
		Cursor:       s.Cursor(),
		Readout:      s.PointerReadout(),
		Interactions: len(s.Interactions()),
	}
	snap.KeyListeners, _, _ = s.ListenerCounts()

	for _, a := range s.sortedOverlays() {
		info := OverlayInfo{
			Key:     a.key,
			Kind:    a.layer.Kind(),
			Name:    a.layer.Get(TagName),
			Visible: a.layer.Visible(),
			ZIndex:  a.layer.ZIndex(),
		}
		if v, ok := a.layer.(*engine.VectorLayer); ok {
			info.Features = len(v.Features())
		}
		snap.Overlays = append(snap.Overlays, info)
	}
	return snap
}
