// Package mapsurface owns the one map surface of the process: its camera, the
// attached overlays, the feature-info popup and the input listeners tools
// register while active.
//
// The surface is reached only through Get; it is constructed on the first call
// and never again.
package mapsurface

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-mapview/internal/engine"
	"github.com/joeblew999/plat-mapview/internal/notify"
	"github.com/joeblew999/plat-mapview/internal/remote"
)

// FeatureInfoFetcher resolves a GetFeatureInfo URL.
type FeatureInfoFetcher interface {
	FeatureInfo(ctx context.Context, rawURL string) (remote.FeatureInfo, error)
}

// Config holds the surface configuration. Center and Home are lon/lat.
type Config struct {
	Projection  string
	Center      orb.Point
	Zoom        float64
	Home        orb.Point
	HomeZoom    float64
	Viewport    engine.Size
	BaseTileURL string
	Fetcher     FeatureInfoFetcher
	Notifier    notify.Notifier
	Logger      *slog.Logger
}

var (
	instance *Surface
	once     sync.Once
	initErr  error
)

// Get returns the process-wide surface, constructing it from cfg on the first
// call. Later calls ignore cfg.
func Get(cfg Config) (*Surface, error) {
	once.Do(func() {
		instance, initErr = newSurface(cfg)
	})
	return instance, initErr
}

// OverlayKey identifies an attached overlay. Owner is the component that
// attached it; components only touch keys they own.
type OverlayKey struct {
	Owner string
	ID    string
}

func (k OverlayKey) String() string { return k.Owner + "/" + k.ID }

// Tags set on every attached overlay.
const (
	TagOwner = "owner"
	TagID    = "id"
	TagName  = "name"
)

type attached struct {
	key   OverlayKey
	layer engine.Layer
	seq   uint64
}

// Surface is the shared map surface.
type Surface struct {
	cfg      Config
	camera   *engine.Camera
	base     *engine.TileLayer
	fetcher  FeatureInfoFetcher
	notifier notify.Notifier
	logger   *slog.Logger

	mu       sync.RWMutex
	overlays map[OverlayKey]*attached
	attachN  uint64
	popup    Popup

	inputMu       sync.Mutex
	interactions  []engine.Interaction
	keyLs         listeners[string]
	moveLs        listeners[orb.Point]
	leaveLs       listeners[struct{}]
	cursor        string
	pointer       orb.Point
	pointerInside bool

	clickSeq atomic.Uint64
	inflight sync.WaitGroup
}

func newSurface(cfg Config) (*Surface, error) {
	if cfg.Projection == "" {
		cfg.Projection = engine.ProjMercator
	}
	if cfg.Zoom == 0 {
		cfg.Zoom = DefaultZoom
	}
	if cfg.Center == (orb.Point{}) {
		cfg.Center = DefaultCenter
	}
	if cfg.Home == (orb.Point{}) {
		cfg.Home = DefaultHome
	}
	if cfg.HomeZoom == 0 {
		cfg.HomeZoom = DefaultHomeZoom
	}
	if _, err := engine.Transform(cfg.Center, engine.ProjWGS84, cfg.Projection); err != nil {
		return nil, err
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = notify.Discard
	}

	s := &Surface{
		cfg:      cfg,
		camera:   engine.NewCamera(cfg.Projection, engine.FromLonLat(cfg.Center, cfg.Projection), cfg.Zoom, cfg.Viewport),
		base:     engine.NewTileLayer(cfg.BaseTileURL),
		fetcher:  cfg.Fetcher,
		notifier: notifier,
		logger:   cfg.Logger,
		overlays: make(map[OverlayKey]*attached),
	}
	s.log().Debug("map surface created",
		"projection", cfg.Projection,
		"center", cfg.Center,
		"zoom", cfg.Zoom,
	)
	return s, nil
}

// Projection returns the working (view) projection.
func (s *Surface) Projection() string { return s.camera.Projection() }

// Camera returns the surface camera.
func (s *Surface) Camera() *engine.Camera { return s.camera }

// BaseLayer returns the base tile layer.
func (s *Surface) BaseLayer() *engine.TileLayer { return s.base }

// AnimateCamera moves the camera; center is in the view projection. It never
// blocks on the transition.
func (s *Surface) AnimateCamera(center *orb.Point, zoom *float64, d time.Duration) {
	s.camera.Animate(center, zoom, d)
}

// AddOverlay attaches layer under key. It reports false, leaving the existing
// overlay in place, when key is already attached.
func (s *Surface) AddOverlay(key OverlayKey, layer engine.Layer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.overlays[key]; ok {
		return false
	}
	s.attachLocked(key, layer, 0)
	s.log().Debug("overlay attached", "overlay", key.String(), "kind", layer.Kind())
	return true
}

// ReplaceOverlay attaches layer under key in one step, detaching whatever was
// there. The previous layer, if any, is returned.
func (s *Surface) ReplaceOverlay(key OverlayKey, layer engine.Layer) engine.Layer {
	s.mu.Lock()
	defer s.mu.Unlock()

	var old engine.Layer
	var seq uint64
	if a, ok := s.overlays[key]; ok {
		old, seq = a.layer, a.seq
	}
	s.attachLocked(key, layer, seq)
	s.log().Debug("overlay replaced", "overlay", key.String(), "had_previous", old != nil)
	return old
}

func (s *Surface) attachLocked(key OverlayKey, layer engine.Layer, seq uint64) {
	layer.Set(TagOwner, key.Owner)
	layer.Set(TagID, key.ID)
	if seq == 0 {
		s.attachN++
		seq = s.attachN
	}
	s.overlays[key] = &attached{key: key, layer: layer, seq: seq}
}

// RemoveOverlay detaches the overlay under key, returning it.
func (s *Surface) RemoveOverlay(key OverlayKey) (engine.Layer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.overlays[key]
	if !ok {
		return nil, false
	}
	delete(s.overlays, key)
	s.log().Debug("overlay detached", "overlay", key.String())
	return a.layer, true
}

// Overlay returns the overlay under key.
func (s *Surface) Overlay(key OverlayKey) (engine.Layer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.overlays[key]
	if !ok {
		return nil, false
	}
	return a.layer, true
}

// OverlayKeys lists the keys attached by owner, in attach order.
func (s *Surface) OverlayKeys(owner string) []OverlayKey {
	var keys []OverlayKey
	for _, a := range s.sortedOverlays() {
		if a.key.Owner == owner {
			keys = append(keys, a.key)
		}
	}
	return keys
}

// OverlayCount returns the number of attached overlays (the base layer excluded).
func (s *Surface) OverlayCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.overlays)
}

// sortedOverlays returns the overlays in render order: by z-index, then by
// attach order.
func (s *Surface) sortedOverlays() []*attached {
	s.mu.RLock()
	out := make([]*attached, 0, len(s.overlays))
	for _, a := range s.overlays {
		out = append(out, a)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		zi, zj := out[i].layer.ZIndex(), out[j].layer.ZIndex()
		if zi != zj {
			return zi < zj
		}
		return out[i].seq < out[j].seq
	})
	return out
}

// Wait blocks until in-flight feature-info requests have been applied.
func (s *Surface) Wait() { s.inflight.Wait() }

func (s *Surface) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}
