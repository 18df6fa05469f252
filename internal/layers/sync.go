// Package layers keeps the WMS overlays on the map surface in line with the
// layer list declared by the remote API.
package layers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/joeblew999/plat-mapview/internal/engine"
	"github.com/joeblew999/plat-mapview/internal/mapsurface"
	"github.com/joeblew999/plat-mapview/internal/notify"
	"github.com/joeblew999/plat-mapview/internal/remote"
	"github.com/joeblew999/plat-mapview/internal/session"
)

// Owner tags every overlay the synchronizer attaches.
const Owner = "layers"

// DefaultOpacity is applied to WMS overlays.
const DefaultOpacity = 0.8

// ErrUnknownLayer is returned for ids missing from the last fetched list.
var ErrUnknownLayer = errors.New("unknown layer")

// API is the part of the remote API the synchronizer uses.
type API interface {
	ListLayers(ctx context.Context) ([]remote.Layer, error)
	DeleteLayer(ctx context.Context, id, token string) error
}

// Surface is the part of the map surface the synchronizer uses.
type Surface interface {
	AddOverlay(key mapsurface.OverlayKey, layer engine.Layer) bool
	RemoveOverlay(key mapsurface.OverlayKey) (engine.Layer, bool)
	OverlayKeys(owner string) []mapsurface.OverlayKey
}

// Session yields the current role and credential.
type Session interface {
	Role() session.Role
	Token() (string, bool)
}

// Status is the state of the layer list view.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusReady
	StatusEmpty
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusEmpty:
		return "empty"
	case StatusError:
		return "error"
	default:
		return "idle"
	}
}

// Messages shown by the list view.
const (
	MsgLoading = "Loading layers..."
	MsgEmpty   = "No public layers available."
	MsgError   = "Could not load layers."
)

// ListView is what the layer panel displays.
type ListView struct {
	Status  Status
	Message string
	Layers  []remote.Layer
	// CanDelete reports whether delete actions are offered.
	CanDelete bool
}

// Config configures a Synchronizer. API and Surface are required.
type Config struct {
	API        API
	Surface    Surface
	Session    Session
	WMSBaseURL string
	Workspace  string
	Opacity    float64
	Notifier   notify.Notifier
	Logger     *slog.Logger
}

// Synchronizer reconciles remote layer declarations with attached overlays.
type Synchronizer struct {
	cfg Config

	mu        sync.Mutex
	layers    []remote.Layer
	overrides map[string]bool // local toggles since the last refresh, by layer id
	status    Status
	fetches   uint64
}

// New creates a synchronizer.
func New(cfg Config) *Synchronizer {
	if cfg.Opacity == 0 {
		cfg.Opacity = DefaultOpacity
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notify.Discard
	}
	return &Synchronizer{cfg: cfg, overrides: make(map[string]bool)}
}

// Refresh fetches the layer list and reconciles overlays with it: every layer
// the server declares visible is attached, local toggles are forgotten and
// unlisted layers are detached. On failure the list shows an error and no
// overlay is touched. A fetch overtaken by a later one is discarded.
func (s *Synchronizer) Refresh(ctx context.Context) error {
	s.mu.Lock()
	s.fetches++
	seq := s.fetches
	if len(s.layers) == 0 {
		s.status = StatusLoading
	}
	s.mu.Unlock()

	list, err := s.cfg.API.ListLayers(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.fetches {
		s.log().Debug("discarding superseded layer list", "fetch_seq", seq)
		return nil
	}
	if err != nil {
		s.status = StatusError
		s.log().Error("layer list fetch failed", "error", err)
		s.cfg.Notifier.Notify(notify.Notification{Level: notify.Error, Source: Owner, Message: MsgError})
		return fmt.Errorf("refresh layers: %w", err)
	}

	s.layers = list
	if len(list) == 0 {
		s.status = StatusEmpty
	} else {
		s.status = StatusReady
	}

	clear(s.overrides)
	listed := make(map[string]bool, len(list))
	for _, l := range list {
		listed[l.ID] = true
		s.applyLocked(l, l.Visible)
	}
	for _, key := range s.cfg.Surface.OverlayKeys(Owner) {
		if !listed[key.ID] {
			s.cfg.Surface.RemoveOverlay(key)
			s.log().Debug("detached unlisted layer", "layer_id", key.ID)
		}
	}
	s.log().Debug("layers refreshed", "count", len(list))
	return nil
}

// Toggle attaches or detaches the overlay for id. Repeating a toggle is a
// no-op. It reports whether the overlay set changed.
func (s *Synchronizer) Toggle(id string, visible bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.findLocked(id)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownLayer, id)
	}
	s.overrides[id] = visible
	return s.applyLocked(l, visible), nil
}

// Delete removes a layer through the remote API. Only admins may delete; the
// overlay is detached and the list refreshed only once the API accepts.
func (s *Synchronizer) Delete(ctx context.Context, id string) error {
	role := s.role()
	if !role.IsAdmin() {
		err := fmt.Errorf("delete layer %s: %w: %s", id, session.ErrForbidden, role)
		s.log().Warn("layer delete refused", "layer_id", id, "role", role)
		s.cfg.Notifier.Notify(notify.Notification{Level: notify.Error, Source: Owner, Message: "Only administrators can delete layers."})
		return err
	}

	var token string
	if s.cfg.Session != nil {
		token, _ = s.cfg.Session.Token()
	}
	if err := s.cfg.API.DeleteLayer(ctx, id, token); err != nil {
		msg := "Connection error while deleting the layer."
		if errors.Is(err, remote.ErrUnauthorized) {
			msg = "Delete rejected: check your administrator permissions."
		}
		s.log().Error("layer delete failed", "layer_id", id, "error", err)
		s.cfg.Notifier.Notify(notify.Notification{Level: notify.Error, Source: Owner, Message: msg})
		return fmt.Errorf("delete layer %s: %w", id, err)
	}

	s.mu.Lock()
	s.cfg.Surface.RemoveOverlay(overlayKey(id))
	delete(s.overrides, id)
	s.mu.Unlock()
	s.cfg.Notifier.Notify(notify.Notification{Level: notify.Info, Source: Owner, Message: "Layer deleted."})
	s.log().Info("layer deleted", "layer_id", id)

	return s.Refresh(ctx)
}

// View returns the current list view.
func (s *Synchronizer) View() ListView {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := ListView{Status: s.status, CanDelete: s.role().IsAdmin()}
	switch s.status {
	case StatusLoading:
		v.Message = MsgLoading
	case StatusEmpty:
		v.Message = MsgEmpty
	case StatusError:
		v.Message = MsgError
	}
	v.Layers = make([]remote.Layer, len(s.layers))
	for i, l := range s.layers {
		if o, ok := s.overrides[l.ID]; ok {
			l.Visible = o
		}
		v.Layers[i] = l
	}
	return v
}

// Attached lists the ids of the overlays currently attached.
func (s *Synchronizer) Attached() []string {
	keys := s.cfg.Surface.OverlayKeys(Owner)
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.ID
	}
	return out
}

// DetachAll removes every overlay the synchronizer attached. The list and
// local toggles are kept.
func (s *Synchronizer) DetachAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range s.cfg.Surface.OverlayKeys(Owner) {
		s.cfg.Surface.RemoveOverlay(key)
	}
}

// applyLocked attaches or detaches l's overlay. Must be called with s.mu held.
func (s *Synchronizer) applyLocked(l remote.Layer, visible bool) bool {
	key := overlayKey(l.ID)
	if !visible {
		_, removed := s.cfg.Surface.RemoveOverlay(key)
		if removed {
			s.log().Debug("layer detached", "layer_id", l.ID, "name", l.Name)
		}
		return removed
	}
	src := engine.NewWMSSource(s.cfg.WMSBaseURL, s.cfg.Workspace, l.Name)
	overlay := engine.NewImageLayer(src, s.cfg.Opacity)
	overlay.Set(mapsurface.TagName, l.Name)
	added := s.cfg.Surface.AddOverlay(key, overlay)
	if added {
		s.log().Debug("layer attached", "layer_id", l.ID, "wms_layer", src.LayerName())
	}
	return added
}

func (s *Synchronizer) findLocked(id string) (remote.Layer, bool) {
	for _, l := range s.layers {
		if l.ID == id {
			return l, true
		}
	}
	return remote.Layer{}, false
}

func (s *Synchronizer) role() session.Role {
	if s.cfg.Session == nil {
		return session.Viewer
	}
	return s.cfg.Session.Role()
}

func (s *Synchronizer) log() *slog.Logger {
	if s.cfg.Logger != nil {
		return s.cfg.Logger
	}
	return slog.Default()
}

func overlayKey(id string) mapsurface.OverlayKey {
	return mapsurface.OverlayKey{Owner: Owner, ID: id}
}
