// Package notify carries user-visible notifications (the toasts and alerts of
// the viewer) from core components to whatever UI chrome is listening.
package notify

import (
	"fmt"
	"sync"
)

// Level is the severity of a notification.
type Level string

const (
	Info    Level = "info"
	Warning Level = "warning"
	Error   Level = "error"
)

// Notification is one user-facing message.
type Notification struct {
	Level   Level
	Source  string // e.g. "layers", "search"
	Message string
}

func (n Notification) String() string {
	return fmt.Sprintf("[%s] %s: %s", n.Level, n.Source, n.Message)
}

// Notifier publishes notifications.
type Notifier interface {
	Notify(Notification)
}

// Bus is a simple fan-out pub/sub for notifications.
type Bus struct {
	mu   sync.RWMutex
	subs map[chan Notification]struct{}
}

// NewBus creates a new notification bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[chan Notification]struct{})}
}

// Notify sends n to all subscribers (non-blocking).
func (b *Bus) Notify(n Notification) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- n:
		default:
			// subscriber too slow, skip
		}
	}
}

// Subscribe returns a buffered channel that receives notifications.
func (b *Bus) Subscribe() chan Notification {
	ch := make(chan Notification, 16)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Bus) Unsubscribe(ch chan Notification) {
	b.mu.Lock()
	delete(b.subs, ch)
	b.mu.Unlock()
	close(ch)
}

// Recorder keeps every notification it receives. Useful for tests and for
// printing a session transcript.
type Recorder struct {
	mu  sync.Mutex
	all []Notification
}

// Notify records n.
func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	r.all = append(r.all, n)
	r.mu.Unlock()
}

// All returns a copy of the recorded notifications.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.all...)
}

// Last returns the most recent notification.
func (r *Recorder) Last() (Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.all) == 0 {
		return Notification{}, false
	}
	return r.all[len(r.all)-1], true
}

// Discard drops every notification.
var Discard Notifier = discard{}

type discard struct{}

func (discard) Notify(Notification) {}

var (
	_ Notifier = (*Bus)(nil)
	_ Notifier = (*Recorder)(nil)
)
