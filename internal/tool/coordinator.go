// Package tool keeps the map's interactive tools mutually exclusive.
package tool

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/joeblew999/plat-mapview/internal/notify"
)

// Tool identities.
const (
	Measure    = "measure"
	Draw       = "draw"
	Search     = "search"
	LayerPanel = "layers"
	AddLayer   = "add-layer"
)

// ErrUnknownTool is returned by Activate for an unregistered identity.
var ErrUnknownTool = errors.New("unknown tool")

// Tool is an interaction mode bound to the map surface.
type Tool interface {
	ID() string
	// Activate engages the tool. release hands control back to the
	// coordinator, e.g. when the tool cancels itself. On error the tool must
	// be left idle.
	Activate(release func()) error
	// Deactivate releases everything Activate acquired. It must be safe to
	// call on an idle tool.
	Deactivate()
	Active() bool
}

// Status reports one registered tool.
type Status struct {
	ID     string
	Active bool
}

// Coordinator owns the registered tools and guarantees at most one is active.
type Coordinator struct {
	mu       sync.Mutex
	tools    map[string]Tool
	order    []string
	active   string
	notifier notify.Notifier
	logger   *slog.Logger
}

// NewCoordinator creates an empty coordinator. Both arguments may be nil.
func NewCoordinator(n notify.Notifier, logger *slog.Logger) *Coordinator {
	if n == nil {
		n = notify.Discard
	}
	return &Coordinator{
		tools:    make(map[string]Tool),
		notifier: n,
		logger:   logger,
	}
}

// Register adds t, replacing (and deactivating) any tool with the same ID.
func (c *Coordinator) Register(t Tool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := t.ID()
	if old, ok := c.tools[id]; ok {
		if c.active == id {
			old.Deactivate()
			c.active = ""
		}
	} else {
		c.order = append(c.order, id)
	}
	c.tools[id] = t
}

// Activate engages the tool with the given id. The previously active tool is
// deactivated first. Activating the active tool deactivates it.
func (c *Coordinator) Activate(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	t, ok := c.tools[id]
	if !ok {
		c.log().Warn("ignoring unknown tool", "tool", id)
		return fmt.Errorf("%w: %q", ErrUnknownTool, id)
	}

	if c.active == id {
		c.deactivateLocked()
		return nil
	}
	c.deactivateLocked()

	if err := t.Activate(c.releaser(id)); err != nil {
		t.Deactivate()
		c.log().Warn("tool activation failed", "tool", id, "error", err)
		c.notifier.Notify(notify.Notification{Level: notify.Warning, Source: id, Message: err.Error()})
		return fmt.Errorf("activate %s: %w", id, err)
	}
	c.active = id
	c.log().Debug("tool activated", "tool", id)
	return nil
}

// DeactivateAll deactivates the active tool, if any.
func (c *Coordinator) DeactivateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deactivateLocked()
}

// Active returns the active tool id.
func (c *Coordinator) Active() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active, c.active != ""
}

// Statuses lists the registered tools in registration order.
func (c *Coordinator) Statuses() []Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Status, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, Status{ID: id, Active: c.tools[id].Active()})
	}
	return out
}

func (c *Coordinator) deactivateLocked() {
	if c.active == "" {
		return
	}
	id := c.active
	c.active = ""
	c.tools[id].Deactivate()
	c.log().Debug("tool deactivated", "tool", id)
}

// releaser returns the callback a tool uses to deactivate itself. It is a
// no-op once another tool has taken over.
func (c *Coordinator) releaser(id string) func() {
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.active == id {
			c.deactivateLocked()
		}
	}
}

func (c *Coordinator) log() *slog.Logger {
	if c.logger != nil {
		return c.logger
	}
	return slog.Default()
}
