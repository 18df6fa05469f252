// Package measure implements the distance measurement tool: a line sketch on
// the map surface with a live great-circle length readout.
package measure

import (
	"log/slog"
	"math"
	"strconv"
	"sync"

	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-mapview/internal/engine"
	"github.com/joeblew999/plat-mapview/internal/mapsurface"
	"github.com/joeblew999/plat-mapview/internal/tool"
)

// State is the measurement lifecycle. A finished measurement rests in
// Finalized until the pointer moves on, then the tool is Idle again.
type State int

const (
	Idle State = iota
	Sketching
	Finalized
)

func (s State) String() string {
	switch s {
	case Sketching:
		return "sketching"
	case Finalized:
		return "finalized"
	default:
		return "idle"
	}
}

// Hint texts shown next to the pointer.
const (
	HintStart    = "Click to start measuring"
	HintContinue = "Click to continue (double-click to finish)"
)

const zeroLength = "0 m"

// Surface is the part of the map surface the tool drives.
type Surface interface {
	Projection() string
	AddOverlay(key mapsurface.OverlayKey, layer engine.Layer) bool
	RemoveOverlay(key mapsurface.OverlayKey) (engine.Layer, bool)
	AddInteraction(in engine.Interaction)
	RemoveInteraction(in engine.Interaction)
	OnKey(fn func(key string)) (cancel func())
	OnPointerMove(fn func(at orb.Point)) (cancel func())
	OnPointerLeave(fn func()) (cancel func())
	SetCursor(c string)
}

var sketchKey = mapsurface.OverlayKey{Owner: tool.Measure, ID: "sketch"}

var sketchStyle = engine.Style{
	FillColor:   "rgba(255, 255, 255, 0.2)",
	StrokeColor: "#ffcc33",
	StrokeWidth: 3,
	PointRadius: 7,
	PointFill:   "#ffcc33",
}

// Tooltip is a label anchored to a map coordinate. Offset is in pixels.
type Tooltip struct {
	Text     string
	Position orb.Point
	Offset   [2]int
	Visible  bool
}

// View is what the tool currently shows.
type View struct {
	State State
	// Help follows the pointer.
	Help Tooltip
	// Live tracks the last vertex of the sketch in progress.
	Live Tooltip
	// Frozen holds the labels of finished measurements.
	Frozen []Tooltip
	// PanelVisible reports the total-length panel; Total is its value.
	PanelVisible bool
	Total        string
}

// active is everything the tool owns between Activate and Deactivate.
type active struct {
	draw    *engine.Draw
	release func()
	cancels []func()
}

// Tool is the measurement tool.
type Tool struct {
	surface Surface
	layer   *engine.VectorLayer
	logger  *slog.Logger

	mu   sync.Mutex
	cur  *active // nil while inactive
	view View
}

// New creates an inactive measurement tool. logger may be nil.
func New(surface Surface, logger *slog.Logger) *Tool {
	return &Tool{
		surface: surface,
		layer:   engine.NewVectorLayer(sketchStyle, 999),
		logger:  logger,
	}
}

func (t *Tool) ID() string { return tool.Measure }

// Activate attaches a line draw interaction and shows the panel at zero.
// release is called when the user cancels with Escape or closes the panel.
func (t *Tool) Activate(release func()) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cur != nil {
		return nil
	}

	t.layer.Clear()
	t.surface.AddOverlay(sketchKey, t.layer)

	d := engine.NewDraw(engine.DrawLineString, t.layer)
	a := &active{draw: d, release: release}
	d.OnStart(func(ev engine.DrawEvent) { t.onStart(d, ev) })
	d.OnChange(func(ev engine.DrawEvent) { t.onChange(d, ev) })
	d.OnEnd(func(ev engine.DrawEvent) { t.onEnd(d, ev) })

	t.surface.AddInteraction(d)
	a.cancels = append(a.cancels,
		t.surface.OnKey(t.onKey),
		t.surface.OnPointerMove(t.onPointerMove),
		t.surface.OnPointerLeave(t.onPointerLeave),
	)
	t.surface.SetCursor(mapsurface.CursorCrosshair)

	t.cur = a
	t.view = View{
		State:        Idle,
		Help:         Tooltip{Offset: [2]int{15, 0}},
		Live:         Tooltip{Offset: [2]int{0, -15}},
		PanelVisible: true,
		Total:        zeroLength,
	}
	t.log().Debug("measure activated")
	return nil
}

// Deactivate tears down the interaction and listeners, clears the sketch and
// hides every label.
func (t *Tool) Deactivate() {
	t.mu.Lock()
	defer t.mu.Unlock()
	a := t.cur
	if a == nil {
		return
	}
	t.cur = nil

	for _, cancel := range a.cancels {
		cancel()
	}
	t.surface.RemoveInteraction(a.draw)
	t.layer.Clear()
	t.surface.RemoveOverlay(sketchKey)
	t.surface.SetCursor(mapsurface.CursorDefault)
	t.view = View{}
	t.log().Debug("measure deactivated")
}

func (t *Tool) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cur != nil
}

// Close is the panel's close action.
func (t *Tool) Close() { t.cancel() }

// View returns a copy of the current display state.
func (t *Tool) View() View {
	t.mu.Lock()
	defer t.mu.Unlock()
	v := t.view
	v.Frozen = append([]Tooltip(nil), t.view.Frozen...)
	return v
}

// Measurements returns the finished measurement lines.
func (t *Tool) Measurements() []orb.LineString {
	var out []orb.LineString
	for _, f := range t.layer.Features() {
		if ls, ok := f.Geometry.(orb.LineString); ok {
			out = append(out, ls)
		}
	}
	return out
}

func (t *Tool) cancel() {
	t.mu.Lock()
	a := t.cur
	t.mu.Unlock()
	if a == nil {
		return
	}
	if a.release != nil {
		a.release()
		return
	}
	t.Deactivate()
}

func (t *Tool) onKey(key string) {
	if key == "Escape" {
		t.cancel()
	}
}

// current reports whether d is the interaction of the live activation.
// Must be called with t.mu held.
func (t *Tool) current(d *engine.Draw) bool {
	return t.cur != nil && t.cur.draw == d
}

func (t *Tool) onStart(d *engine.Draw, ev engine.DrawEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.current(d) {
		return
	}
	t.view.State = Sketching
	t.view.Live.Position = ev.Coordinate
}

func (t *Tool) onChange(d *engine.Draw, ev engine.DrawEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.current(d) || ev.Feature == nil {
		return
	}
	text := FormatLength(engine.Length(ev.Feature.Geometry, t.surface.Projection()))
	t.view.Live.Text = text
	t.view.Live.Visible = true
	if ls, ok := ev.Feature.Geometry.(orb.LineString); ok && len(ls) > 0 {
		t.view.Live.Position = ls[len(ls)-1]
	}
	t.view.Total = text
}

func (t *Tool) onEnd(d *engine.Draw, ev engine.DrawEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.current(d) {
		return
	}
	frozen := t.view.Live
	frozen.Offset = [2]int{0, -7}
	t.view.Frozen = append(t.view.Frozen, frozen)
	t.view.Live = Tooltip{Offset: [2]int{0, -15}}
	t.view.State = Finalized
	t.log().Debug("measurement finished", "length", frozen.Text)
}

func (t *Tool) onPointerMove(at orb.Point) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cur == nil {
		return
	}
	hint := HintStart
	if t.cur.draw.Sketch() != nil {
		hint = HintContinue
	} else if t.view.State == Finalized {
		// the frozen label stays; the tool waits for a new sketch
		t.view.State = Idle
	}
	t.view.Help.Text = hint
	t.view.Help.Position = at
	t.view.Help.Visible = true
}

func (t *Tool) onPointerLeave() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.view.Help.Visible = false
}

func (t *Tool) log() *slog.Logger {
	if t.logger != nil {
		return t.logger
	}
	return slog.Default()
}

// FormatLength renders a length in meters: above 100 m as kilometers,
// otherwise as meters, both rounded to two decimals.
func FormatLength(meters float64) string {
	if meters > 100 {
		return formatRounded(meters/1000) + " km"
	}
	return formatRounded(meters) + " m"
}

func formatRounded(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}

var _ tool.Tool = (*Tool)(nil)
