package engine

import (
	"math"
	"sync"
	"time"

	"github.com/paulmach/orb"
)

// Size is a viewport size in pixels.
type Size struct {
	Width  int
	Height int
}

// Animation records a camera transition requested by a caller.
type Animation struct {
	Center   orb.Point
	Zoom     float64
	Duration time.Duration
}

// FitOptions controls Camera.Fit.
type FitOptions struct {
	Padding  float64 // pixels on every side
	MaxZoom  float64
	Duration time.Duration
}

// Camera is the view state of the surface: center (in the view projection)
// and zoom. Transitions are applied immediately and recorded so a renderer can
// replay them; callers never wait on an animation.
type Camera struct {
	mu         sync.RWMutex
	projection string
	center     orb.Point
	zoom       float64
	viewport   Size
	minZoom    float64
	maxZoom    float64
	last       *Animation
}

// NewCamera creates a camera centered on center (already in projection).
func NewCamera(projection string, center orb.Point, zoom float64, viewport Size) *Camera {
	if viewport.Width <= 0 {
		viewport.Width = 1024
	}
	if viewport.Height <= 0 {
		viewport.Height = 768
	}
	return &Camera{
		projection: projection,
		center:     center,
		zoom:       zoom,
		viewport:   viewport,
		minZoom:    0,
		maxZoom:    28,
	}
}

// Projection returns the view projection code.
func (c *Camera) Projection() string { return c.projection }

// Center returns the current center in the view projection.
func (c *Camera) Center() orb.Point {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.center
}

// Zoom returns the current zoom level.
func (c *Camera) Zoom() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.zoom
}

// Resolution returns meters per pixel at the current zoom.
func (c *Camera) Resolution() float64 {
	return ResolutionForZoom(c.Zoom())
}

// Viewport returns the viewport size.
func (c *Camera) Viewport() Size {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.viewport
}

// Animate moves the camera. A nil center or zoom keeps the current value.
func (c *Camera) Animate(center *orb.Point, zoom *float64, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if center != nil {
		c.center = *center
	}
	if zoom != nil {
		c.zoom = c.clampZoom(*zoom)
	}
	c.last = &Animation{Center: c.center, Zoom: c.zoom, Duration: d}
}

// Fit animates the camera so b is framed inside the viewport with the given
// padding, never zooming past opts.MaxZoom. It returns false, leaving the
// camera untouched, when b is empty.
func (c *Camera) Fit(b orb.Bound, opts FitOptions) bool {
	if b.IsEmpty() {
		return false
	}

	c.mu.RLock()
	vp := c.viewport
	c.mu.RUnlock()

	availW := math.Max(float64(vp.Width)-2*opts.Padding, 1)
	availH := math.Max(float64(vp.Height)-2*opts.Padding, 1)

	maxZoom := opts.MaxZoom
	if maxZoom <= 0 {
		maxZoom = c.maxZoom
	}

	zoom := maxZoom
	res := math.Max((b.Max[0]-b.Min[0])/availW, (b.Max[1]-b.Min[1])/availH)
	if res > 0 {
		zoom = math.Min(ZoomForResolution(res), maxZoom)
	}

	center := b.Center()
	c.Animate(&center, &zoom, opts.Duration)
	return true
}

// LastAnimation returns the most recent transition, if any.
func (c *Camera) LastAnimation() (Animation, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.last == nil {
		return Animation{}, false
	}
	return *c.last, true
}

func (c *Camera) clampZoom(z float64) float64 {
	return math.Max(c.minZoom, math.Min(c.maxZoom, z))
}
