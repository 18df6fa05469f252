package mapsurface

import (
	"fmt"

	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-mapview/internal/engine"
)

// Cursor values.
const (
	CursorDefault   = ""
	CursorCrosshair = "crosshair"
	CursorPointer   = "pointer"
)

// listeners is an ordered set of callbacks addressable by registration id.
type listeners[T any] struct {
	next uint64
	ids  []uint64
	fns  map[uint64]func(T)
}

func (l *listeners[T]) add(fn func(T)) uint64 {
	if l.fns == nil {
		l.fns = make(map[uint64]func(T))
	}
	l.next++
	l.fns[l.next] = fn
	l.ids = append(l.ids, l.next)
	return l.next
}

func (l *listeners[T]) remove(id uint64) {
	if _, ok := l.fns[id]; !ok {
		return
	}
	delete(l.fns, id)
	for i, v := range l.ids {
		if v == id {
			l.ids = append(l.ids[:i], l.ids[i+1:]...)
			break
		}
	}
}

func (l *listeners[T]) snapshot() []func(T) {
	out := make([]func(T), 0, len(l.ids))
	for _, id := range l.ids {
		out = append(out, l.fns[id])
	}
	return out
}

func (l *listeners[T]) len() int { return len(l.ids) }

// AddInteraction attaches in; attaching the same interaction twice is a no-op.
func (s *Surface) AddInteraction(in engine.Interaction) {
	s.inputMu.Lock()
	defer s.inputMu.Unlock()
	for _, cur := range s.interactions {
		if cur.Handle() == in.Handle() {
			return
		}
	}
	s.interactions = append(s.interactions, in)
}

// RemoveInteraction detaches in and aborts any work it has in progress.
func (s *Surface) RemoveInteraction(in engine.Interaction) {
	s.inputMu.Lock()
	removed := false
	for i, cur := range s.interactions {
		if cur.Handle() == in.Handle() {
			s.interactions = append(s.interactions[:i], s.interactions[i+1:]...)
			removed = true
			break
		}
	}
	s.inputMu.Unlock()
	if removed {
		in.Abort()
	}
}

// Interactions returns the attached interactions, most recent first.
func (s *Surface) Interactions() []engine.Interaction {
	s.inputMu.Lock()
	defer s.inputMu.Unlock()
	out := make([]engine.Interaction, len(s.interactions))
	for i, in := range s.interactions {
		out[len(out)-1-i] = in
	}
	return out
}

// OnKey registers a key listener. The returned func removes it.
func (s *Surface) OnKey(fn func(key string)) (cancel func()) {
	s.inputMu.Lock()
	id := s.keyLs.add(fn)
	s.inputMu.Unlock()
	return func() {
		s.inputMu.Lock()
		s.keyLs.remove(id)
		s.inputMu.Unlock()
	}
}

// OnPointerMove registers a pointer-move listener (view projection).
func (s *Surface) OnPointerMove(fn func(at orb.Point)) (cancel func()) {
	s.inputMu.Lock()
	id := s.moveLs.add(fn)
	s.inputMu.Unlock()
	return func() {
		s.inputMu.Lock()
		s.moveLs.remove(id)
		s.inputMu.Unlock()
	}
}

// OnPointerLeave registers a listener for the pointer leaving the viewport.
func (s *Surface) OnPointerLeave(fn func()) (cancel func()) {
	s.inputMu.Lock()
	id := s.leaveLs.add(func(struct{}) { fn() })
	s.inputMu.Unlock()
	return func() {
		s.inputMu.Lock()
		s.leaveLs.remove(id)
		s.inputMu.Unlock()
	}
}

// KeyDown delivers a key press to the registered listeners and returns how
// many received it.
func (s *Surface) KeyDown(key string) int {
	s.inputMu.Lock()
	fns := s.keyLs.snapshot()
	s.inputMu.Unlock()
	for _, fn := range fns {
		fn(key)
	}
	return len(fns)
}

// PointerMove updates the pointer readout and notifies listeners.
func (s *Surface) PointerMove(at orb.Point) {
	s.inputMu.Lock()
	s.pointer = at
	s.pointerInside = true
	fns := s.moveLs.snapshot()
	s.inputMu.Unlock()
	for _, fn := range fns {
		fn(at)
	}
}

// PointerLeave notifies listeners that the pointer left the viewport.
func (s *Surface) PointerLeave() {
	s.inputMu.Lock()
	s.pointerInside = false
	fns := s.leaveLs.snapshot()
	s.inputMu.Unlock()
	for _, fn := range fns {
		fn(struct{}{})
	}
}

// PointerReadout formats the last pointer position as WGS84 coordinates.
func (s *Surface) PointerReadout() string {
	s.inputMu.Lock()
	p, inside := s.pointer, s.pointerInside
	s.inputMu.Unlock()
	if !inside {
		return ""
	}
	ll := engine.ToLonLat(p, s.Projection())
	return fmt.Sprintf("Lat: %.4f, Lon: %.4f", ll.Lat(), ll.Lon())
}

// SetCursor sets the viewport cursor; CursorDefault restores the default.
func (s *Surface) SetCursor(c string) {
	s.inputMu.Lock()
	s.cursor = c
	s.inputMu.Unlock()
}

// Cursor returns the current cursor.
func (s *Surface) Cursor() string {
	s.inputMu.Lock()
	defer s.inputMu.Unlock()
	return s.cursor
}

// ListenerCounts returns the number of registered key, pointer-move and
// pointer-leave listeners.
func (s *Surface) ListenerCounts() (keys, moves, leaves int) {
	s.inputMu.Lock()
	defer s.inputMu.Unlock()
	return s.keyLs.len(), s.moveLs.len(), s.leaveLs.len()
}
