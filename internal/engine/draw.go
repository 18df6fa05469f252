package engine

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/paulmach/orb"
)

// GeometryType is the kind of geometry a Draw interaction produces.
type GeometryType string

const (
	DrawPoint      GeometryType = "Point"
	DrawLineString GeometryType = "LineString"
	DrawPolygon    GeometryType = "Polygon"
)

// ErrUnknownGeometryType is returned by ParseGeometryType.
var ErrUnknownGeometryType = errors.New("unknown geometry type")

// ParseGeometryType accepts "point", "line"/"linestring" and "polygon" in any case.
func ParseGeometryType(s string) (GeometryType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "point":
		return DrawPoint, nil
	case "line", "linestring":
		return DrawLineString, nil
	case "polygon":
		return DrawPolygon, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownGeometryType, s)
}

// DrawEvent is emitted by a Draw interaction.
type DrawEvent struct {
	Feature    *Feature
	Coordinate orb.Point
}

// Interaction consumes pointer input on the surface while attached.
type Interaction interface {
	Handle() string
	// HandleClick reports whether the click was consumed.
	HandleClick(at orb.Point) bool
	HandleDoubleClick(at orb.Point) bool
	// Abort discards any in-progress work without emitting an end event.
	Abort()
}

// Draw builds a geometry vertex by vertex. Clicks add vertices, a double
// click finishes. Finished features are appended to the target layer.
type Draw struct {
	handle string
	typ    GeometryType
	target *VectorLayer

	mu       sync.Mutex
	sketch   *Feature
	vertices []orb.Point
	onStart  []func(DrawEvent)
	onChange []func(DrawEvent)
	onEnd    []func(DrawEvent)
}

// NewDraw creates a draw interaction writing into target (may be nil).
func NewDraw(typ GeometryType, target *VectorLayer) *Draw {
	return &Draw{handle: newHandle(), typ: typ, target: target}
}

func (d *Draw) Handle() string     { return d.handle }
func (d *Draw) Type() GeometryType { return d.typ }

// OnStart registers a drawstart listener.
func (d *Draw) OnStart(fn func(DrawEvent)) {
	d.mu.Lock()
	d.onStart = append(d.onStart, fn)
	d.mu.Unlock()
}

// OnChange registers a listener for sketch geometry changes.
func (d *Draw) OnChange(fn func(DrawEvent)) {
	d.mu.Lock()
	d.onChange = append(d.onChange, fn)
	d.mu.Unlock()
}

// OnEnd registers a drawend listener.
func (d *Draw) OnEnd(fn func(DrawEvent)) {
	d.mu.Lock()
	d.onEnd = append(d.onEnd, fn)
	d.mu.Unlock()
}

// Sketch returns the in-progress feature, or nil.
func (d *Draw) Sketch() *Feature {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sketch
}

// HandleClick places a vertex.
func (d *Draw) HandleClick(at orb.Point) bool {
	d.mu.Lock()
	if d.typ == DrawPoint {
		f := &Feature{ID: newHandle(), Geometry: at}
		starts, changes, ends := d.snapshotListeners()
		d.mu.Unlock()

		ev := DrawEvent{Feature: f, Coordinate: at}
		emit(starts, ev)
		emit(changes, ev)
		d.commit(f)
		emit(ends, ev)
		return true
	}

	started := d.sketch == nil
	if started {
		d.sketch = &Feature{ID: newHandle()}
		d.vertices = nil
	}
	d.vertices = append(d.vertices, at)
	d.sketch.Geometry = d.geometry()
	ev := DrawEvent{Feature: d.sketch, Coordinate: at}
	starts, changes, _ := d.snapshotListeners()
	d.mu.Unlock()

	if started {
		emit(starts, ev)
	}
	emit(changes, ev)
	return true
}

// HandleDoubleClick places a final vertex and finishes the sketch once it
// has enough vertices; otherwise it behaves like a click.
func (d *Draw) HandleDoubleClick(at orb.Point) bool {
	d.mu.Lock()
	if d.sketch == nil || d.typ == DrawPoint {
		d.mu.Unlock()
		return d.HandleClick(at)
	}

	if last := d.vertices[len(d.vertices)-1]; !last.Equal(at) {
		d.vertices = append(d.vertices, at)
		d.sketch.Geometry = d.geometry()
	}
	if len(d.vertices) < d.minVertices() {
		ev := DrawEvent{Feature: d.sketch, Coordinate: at}
		_, changes, _ := d.snapshotListeners()
		d.mu.Unlock()
		emit(changes, ev)
		return true
	}

	f := d.sketch
	d.sketch = nil
	d.vertices = nil
	_, changes, ends := d.snapshotListeners()
	d.mu.Unlock()

	ev := DrawEvent{Feature: f, Coordinate: at}
	emit(changes, ev)
	d.commit(f)
	emit(ends, ev)
	return true
}

// Abort drops the sketch.
func (d *Draw) Abort() {
	d.mu.Lock()
	d.sketch = nil
	d.vertices = nil
	d.mu.Unlock()
}

func (d *Draw) commit(f *Feature) {
	if d.target != nil {
		d.target.AddFeature(f)
	}
}

func (d *Draw) minVertices() int {
	switch d.typ {
	case DrawPolygon:
		return 3
	case DrawLineString:
		return 2
	default:
		return 1
	}
}

// geometry must be called with d.mu held.
func (d *Draw) geometry() orb.Geometry {
	pts := append([]orb.Point(nil), d.vertices...)
	switch d.typ {
	case DrawPolygon:
		ring := orb.Ring(pts)
		if len(ring) > 0 && !ring.Closed() {
			ring = append(ring, ring[0])
		}
		return orb.Polygon{ring}
	default:
		return orb.LineString(pts)
	}
}

func (d *Draw) snapshotListeners() (starts, changes, ends []func(DrawEvent)) {
	return slices.Clone(d.onStart), slices.Clone(d.onChange), slices.Clone(d.onEnd)
}

func emit(fns []func(DrawEvent), ev DrawEvent) {
	for _, fn := range fns {
		fn(ev)
	}
}

var _ Interaction = (*Draw)(nil)
