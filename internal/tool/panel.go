package tool

import (
	"fmt"
	"sync"

	"github.com/joeblew999/plat-mapview/internal/session"
)

// Panel is a tool that only opens a side panel: search, the layer list and
// the add-layer form. It holds no map interaction.
type Panel struct {
	id      string
	guard   func() error
	onOpen  func()
	onClose func()

	mu   sync.Mutex
	open bool
}

// PanelOption configures a Panel.
type PanelOption func(*Panel)

// WithGuard makes activation fail when guard returns an error.
func WithGuard(guard func() error) PanelOption {
	return func(p *Panel) { p.guard = guard }
}

// OnOpen runs fn after the panel opens.
func OnOpen(fn func()) PanelOption {
	return func(p *Panel) { p.onOpen = fn }
}

// OnClose runs fn after the panel closes.
func OnClose(fn func()) PanelOption {
	return func(p *Panel) { p.onClose = fn }
}

// NewPanel creates a panel tool.
func NewPanel(id string, opts ...PanelOption) *Panel {
	p := &Panel{id: id}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Panel) ID() string { return p.id }

func (p *Panel) Activate(func()) error {
	if p.guard != nil {
		if err := p.guard(); err != nil {
			return err
		}
	}
	p.mu.Lock()
	p.open = true
	p.mu.Unlock()
	if p.onOpen != nil {
		p.onOpen()
	}
	return nil
}

func (p *Panel) Deactivate() {
	p.mu.Lock()
	wasOpen := p.open
	p.open = false
	p.mu.Unlock()
	if wasOpen && p.onClose != nil {
		p.onClose()
	}
}

func (p *Panel) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.open
}

// RoleSource yields the current role.
type RoleSource interface {
	Role() session.Role
}

// RequireAdmin is a guard admitting ADMIN and SUPERADMIN.
func RequireAdmin(roles RoleSource) func() error {
	return func() error {
		if r := roles.Role(); !r.IsAdmin() {
			return fmt.Errorf("%w: %s", session.ErrForbidden, r)
		}
		return nil
	}
}
