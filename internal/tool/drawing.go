package tool

import (
	"sync"

	"github.com/joeblew999/plat-mapview/internal/engine"
	"github.com/joeblew999/plat-mapview/internal/mapsurface"
)

// DrawSurface is the part of the map surface the drawing tool uses.
type DrawSurface interface {
	AddOverlay(key mapsurface.OverlayKey, layer engine.Layer) bool
	RemoveOverlay(key mapsurface.OverlayKey) (engine.Layer, bool)
	AddInteraction(in engine.Interaction)
	RemoveInteraction(in engine.Interaction)
	SetCursor(c string)
}

// drawingKey is the overlay holding finished drawings.
var drawingKey = mapsurface.OverlayKey{Owner: Draw, ID: "drawings"}

var drawingStyle = engine.Style{
	FillColor:   "rgba(255, 255, 255, 0.2)",
	StrokeColor: "#ffcc33",
	StrokeWidth: 2,
	PointRadius: 7,
	PointFill:   "#ffcc33",
}

// Drawing lets the user sketch points, lines and polygons. Finished
// geometries stay on the map after the tool is deactivated.
type Drawing struct {
	surface DrawSurface
	layer   *engine.VectorLayer

	mu   sync.Mutex
	typ  engine.GeometryType
	draw *engine.Draw // non-nil only while active
}

// NewDrawing creates a drawing tool producing typ geometries.
func NewDrawing(surface DrawSurface, typ engine.GeometryType) *Drawing {
	return &Drawing{
		surface: surface,
		layer:   engine.NewVectorLayer(drawingStyle, 10),
		typ:     typ,
	}
}

func (d *Drawing) ID() string { return Draw }

func (d *Drawing) Activate(func()) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.draw != nil {
		return nil
	}
	d.surface.AddOverlay(drawingKey, d.layer)
	d.draw = engine.NewDraw(d.typ, d.layer)
	d.surface.AddInteraction(d.draw)
	d.surface.SetCursor(mapsurface.CursorCrosshair)
	return nil
}

func (d *Drawing) Deactivate() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.draw == nil {
		return
	}
	d.surface.RemoveInteraction(d.draw)
	d.draw = nil
	d.surface.SetCursor(mapsurface.CursorDefault)
}

func (d *Drawing) Active() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.draw != nil
}

// SetType switches the geometry type, swapping the interaction when active.
func (d *Drawing) SetType(typ engine.GeometryType) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.typ = typ
	if d.draw == nil {
		return
	}
	d.surface.RemoveInteraction(d.draw)
	d.draw = engine.NewDraw(typ, d.layer)
	d.surface.AddInteraction(d.draw)
}

// Type returns the geometry type drawn.
func (d *Drawing) Type() engine.GeometryType {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.typ
}

// Features returns the finished drawings.
func (d *Drawing) Features() []*engine.Feature { return d.layer.Features() }

// Clear removes every finished drawing.
func (d *Drawing) Clear() { d.layer.Clear() }

// Detach deactivates the tool and takes the drawings overlay off the map.
// The drawings themselves are kept.
func (d *Drawing) Detach() {
	d.Deactivate()
	d.surface.RemoveOverlay(drawingKey)
}
