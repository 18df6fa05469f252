// Package app assembles the viewer: the map surface, the session, the tools
// and the remote-backed components, all driven through one command dispatcher.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/joeblew999/plat-mapview/internal/command"
	"github.com/joeblew999/plat-mapview/internal/config"
	"github.com/joeblew999/plat-mapview/internal/engine"
	"github.com/joeblew999/plat-mapview/internal/layers"
	"github.com/joeblew999/plat-mapview/internal/mapsurface"
	"github.com/joeblew999/plat-mapview/internal/measure"
	"github.com/joeblew999/plat-mapview/internal/notify"
	"github.com/joeblew999/plat-mapview/internal/remote"
	"github.com/joeblew999/plat-mapview/internal/search"
	"github.com/joeblew999/plat-mapview/internal/session"
	"github.com/joeblew999/plat-mapview/internal/tool"
)

// Options configures New. Only Config is required.
type Options struct {
	Config config.Config
	// Tokens overrides the token store derived from Config.Session.
	Tokens     session.TokenStore
	HTTPClient *http.Client
	Notifier   notify.Notifier
	Logger     *slog.Logger
}

// App is the assembled viewer.
type App struct {
	Surface    *mapsurface.Surface
	Session    *session.Context
	Remote     *remote.Client
	Tools      *tool.Coordinator
	Measure    *measure.Tool
	Drawing    *tool.Drawing
	Layers     *layers.Synchronizer
	Search     *search.Pipeline
	Dispatcher *command.Dispatcher
	Notifier   notify.Notifier

	logger *slog.Logger
	bg     sync.WaitGroup
}

// New builds the viewer. The map surface is the process-wide one: a second
// App shares the surface built by the first.
func New(opts Options) (*App, error) {
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.Discard
	}

	tokens := opts.Tokens
	if tokens == nil {
		tokens = TokenStore(cfg.Session)
	}

	clientOpts := []remote.Option{remote.WithLogger(logger.With("component", "remote"))}
	if opts.HTTPClient != nil {
		clientOpts = append(clientOpts, remote.WithHTTPClient(opts.HTTPClient))
	}
	if cfg.API.Timeout > 0 {
		clientOpts = append(clientOpts, remote.WithTimeout(cfg.API.Timeout))
	}
	client := remote.New(cfg.API.BaseURL, clientOpts...)

	surface, err := mapsurface.Get(mapsurface.Config{
		Projection: engine.ProjMercator,
		Center:     cfg.Map.Center(),
		Zoom:       cfg.Map.Zoom,
		Home:       cfg.Map.Home(),
		HomeZoom:   cfg.Map.HomeZoom,
		Viewport:   cfg.Map.Viewport(),
		Fetcher:    client,
		Notifier:   notifier,
		Logger:     logger.With("component", "mapsurface"),
	})
	if err != nil {
		return nil, fmt.Errorf("map surface: %w", err)
	}

	a := &App{
		Surface:    surface,
		Session:    session.New(tokens),
		Remote:     client,
		Tools:      tool.NewCoordinator(notifier, logger.With("component", "tool")),
		Dispatcher: command.NewDispatcher(logger.With("component", "command")),
		Notifier:   notifier,
		logger:     logger,
	}
	a.Layers = layers.New(layers.Config{
		API:        client,
		Surface:    surface,
		Session:    a.Session,
		WMSBaseURL: cfg.WMS.BaseURL,
		Workspace:  cfg.WMS.Workspace,
		Opacity:    cfg.WMS.Opacity,
		Notifier:   notifier,
		Logger:     logger.With("component", "layers"),
	})
	a.Search = search.New(client, surface, notifier, logger.With("component", "search"))
	a.Measure = measure.New(surface, logger.With("component", "measure"))
	a.Drawing = tool.NewDrawing(surface, engine.DrawPolygon)

	a.registerTools()
	a.subscribe()
	return a, nil
}

// TokenStore picks the credential source: an inline token wins over the file.
func TokenStore(s config.Session) session.TokenStore {
	if s.Token != "" {
		return session.NewMemoryStore(s.Token)
	}
	return session.FileStore{Path: s.TokenFile}
}

func (a *App) registerTools() {
	a.Tools.Register(a.Measure)
	a.Tools.Register(a.Drawing)
	a.Tools.Register(tool.NewPanel(tool.Search))
	a.Tools.Register(tool.NewPanel(tool.LayerPanel, tool.OnOpen(a.refreshInBackground)))
	a.Tools.Register(tool.NewPanel(tool.AddLayer, tool.WithGuard(tool.RequireAdmin(a.Session))))
}

// refreshInBackground reloads the layer list without holding up the caller;
// failures reach the user through the notifier.
func (a *App) refreshInBackground() {
	a.bg.Add(1)
	go func() {
		defer a.bg.Done()
		_ = a.Layers.Refresh(context.Background())
	}()
}

func (a *App) subscribe() {
	d := a.Dispatcher
	command.On(d, func(_ context.Context, c command.ActivateTool) error { return a.Tools.Activate(c.ID) })
	command.On(d, func(context.Context, command.DeactivateTools) error {
		a.Tools.DeactivateAll()
		return nil
	})
	command.On(d, func(ctx context.Context, _ command.RefreshLayers) error { return a.Layers.Refresh(ctx) })
	command.On(d, func(ctx context.Context, c command.LayerAdded) error {
		a.logger.Info("layer added, refreshing", "layer_id", c.ID)
		return a.Layers.Refresh(ctx)
	})
	command.On(d, func(_ context.Context, c command.ToggleLayer) error {
		_, err := a.Layers.Toggle(c.ID, c.Visible)
		return err
	})
	command.On(d, func(ctx context.Context, c command.DeleteLayer) error { return a.Layers.Delete(ctx, c.ID) })
	command.On(d, func(ctx context.Context, c command.Search) error {
		_, err := a.Search.Search(ctx, c.Query)
		return err
	})
	command.On(d, func(ctx context.Context, c command.Click) error {
		a.Surface.Click(ctx, c.At)
		return nil
	})
	command.On(d, func(_ context.Context, c command.DoubleClick) error {
		a.Surface.DoubleClick(c.At)
		return nil
	})
	command.On(d, func(_ context.Context, c command.PointerMove) error {
		a.Surface.PointerMove(c.At)
		return nil
	})
	command.On(d, func(context.Context, command.PointerLeave) error {
		a.Surface.PointerLeave()
		return nil
	})
	command.On(d, func(_ context.Context, c command.KeyDown) error {
		a.Surface.KeyDown(c.Key)
		return nil
	})
	command.On(d, func(_ context.Context, c command.ZoomBy) error {
		a.Surface.ZoomBy(c.Delta)
		return nil
	})
	command.On(d, func(context.Context, command.GoHome) error {
		a.Surface.GoHome()
		return nil
	})
	command.On(d, func(context.Context, command.ClosePopup) error {
		a.Surface.ClosePopup()
		return nil
	})
	command.On(d, func(_ context.Context, c command.SetDrawType) error {
		gt, err := engine.ParseGeometryType(string(c.Type))
		if err != nil {
			return err
		}
		a.Drawing.SetType(gt)
		return nil
	})
	command.On(d, func(context.Context, command.ClearDrawings) error {
		a.Drawing.Clear()
		return nil
	})
}

// Dispatch sends cmd to the subscribed components.
func (a *App) Dispatch(ctx context.Context, cmd command.Command) error {
	return a.Dispatcher.Dispatch(ctx, cmd)
}

// Start performs the initial paint: the layer list is fetched and visible
// layers attached. A failure is reported but leaves the viewer usable.
func (a *App) Start(ctx context.Context) error {
	if err := a.Layers.Refresh(ctx); err != nil {
		a.logger.Warn("initial layer load failed", "error", err)
		return err
	}
	return nil
}

// Wait blocks until background refreshes and feature-info lookups settle.
func (a *App) Wait() {
	a.bg.Wait()
	a.Surface.Wait()
}

// Close deactivates the tools and detaches everything this App attached.
func (a *App) Close() error {
	a.Tools.DeactivateAll()
	a.Wait()
	a.Drawing.Detach()
	a.Search.Clear()
	a.Layers.DetachAll()
	a.Surface.ClosePopup()
	return nil
}

// IsUserError reports whether err is a validation or permission failure
// rather than a fault.
func IsUserError(err error) bool {
	return errors.Is(err, search.ErrQueryTooShort) ||
		errors.Is(err, session.ErrForbidden) ||
		errors.Is(err, tool.ErrUnknownTool) ||
		errors.Is(err, layers.ErrUnknownLayer) ||
		errors.Is(err, engine.ErrUnknownGeometryType)
}
