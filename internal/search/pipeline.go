// Package search runs free-text feature searches against the remote API and
// highlights the hits on the map surface.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/joeblew999/plat-mapview/internal/engine"
	"github.com/joeblew999/plat-mapview/internal/mapsurface"
	"github.com/joeblew999/plat-mapview/internal/notify"
	"github.com/joeblew999/plat-mapview/internal/remote"
)

// Owner tags the highlight overlay.
const Owner = "search"

// MinQueryLength is the shortest accepted query, in characters.
const MinQueryLength = 2

// Camera fit applied to a rendered result set.
const (
	FitPadding  = 50
	FitMaxZoom  = 18
	FitDuration = time.Second
)

var (
	// ErrQueryTooShort is returned, before any request, for queries under
	// MinQueryLength characters.
	ErrQueryTooShort = errors.New("query too short")
	// ErrMalformedRecord marks a single search hit that could not be rendered.
	ErrMalformedRecord = errors.New("malformed search record")
)

var highlightKey = mapsurface.OverlayKey{Owner: Owner, ID: "highlight"}

var highlightStyle = engine.Style{
	FillColor:   "rgba(255, 153, 0, 0.2)",
	StrokeColor: "rgba(255, 153, 0, 0.8)",
	StrokeWidth: 4,
	PointRadius: 8,
	PointFill:   "rgba(255, 153, 0, 0.8)",
	PointStroke: "#fff",
}

// API is the search endpoint of the remote API.
type API interface {
	SearchFeatures(ctx context.Context, query string) ([]remote.FeatureRecord, error)
}

// Surface is the part of the map surface the pipeline drives.
type Surface interface {
	Projection() string
	Camera() *engine.Camera
	ReplaceOverlay(key mapsurface.OverlayKey, layer engine.Layer) engine.Layer
	RemoveOverlay(key mapsurface.OverlayKey) (engine.Layer, bool)
}

// Result summarises one search.
type Result struct {
	Query    string
	Records  int // hits returned by the API
	Rendered int
	Skipped  int
	// Superseded is set when a newer search finished first; nothing was applied.
	Superseded bool
}

// Pipeline runs searches and owns the highlight overlay.
type Pipeline struct {
	api      API
	surface  Surface
	notifier notify.Notifier
	logger   *slog.Logger

	mu     sync.Mutex
	issued uint64
	layer  *engine.VectorLayer // current highlight, nil when cleared
}

// New creates a pipeline. notifier and logger may be nil.
func New(api API, surface Surface, notifier notify.Notifier, logger *slog.Logger) *Pipeline {
	if notifier == nil {
		notifier = notify.Discard
	}
	return &Pipeline{api: api, surface: surface, notifier: notifier, logger: logger}
}

// Search looks up query and replaces the highlight with the hits. Failures
// leave the previous highlight in place.
func (p *Pipeline) Search(ctx context.Context, query string) (Result, error) {
	res := Result{Query: query}
	if utf8.RuneCountInString(strings.TrimSpace(query)) < MinQueryLength {
		p.notify(notify.Warning, fmt.Sprintf("Enter at least %d characters.", MinQueryLength))
		return res, fmt.Errorf("%w: %q", ErrQueryTooShort, query)
	}

	p.mu.Lock()
	p.issued++
	seq := p.issued
	p.mu.Unlock()

	records, err := p.api.SearchFeatures(ctx, query)
	if err != nil {
		if p.stale(seq) {
			res.Superseded = true
			return res, nil
		}
		p.log().Error("search failed", "query", query, "error", err)
		p.notify(notify.Error, "The search could not be completed.")
		return res, fmt.Errorf("search %q: %w", query, err)
	}
	res.Records = len(records)

	layer := engine.NewVectorLayer(highlightStyle, 999)
	for _, rec := range records {
		f, err := p.toFeature(rec)
		if err != nil {
			res.Skipped++
			p.log().Warn("skipping search record", "query", query, "record_id", string(rec.ID), "error", err)
			continue
		}
		layer.AddFeature(f)
	}
	res.Rendered = len(layer.Features())

	p.mu.Lock()
	defer p.mu.Unlock()
	if seq != p.issued {
		p.log().Debug("discarding superseded search", "query", query, "search_seq", seq)
		res.Superseded = true
		return res, nil
	}

	if res.Rendered == 0 {
		p.clearLocked()
		p.notify(notify.Info, fmt.Sprintf("No matches found for %q.", query))
		return res, nil
	}

	p.surface.ReplaceOverlay(highlightKey, layer)
	p.layer = layer
	p.surface.Camera().Fit(layer.Extent(), engine.FitOptions{
		Padding:  FitPadding,
		MaxZoom:  FitMaxZoom,
		Duration: FitDuration,
	})
	p.log().Debug("search highlighted", "query", query, "rendered", res.Rendered, "skipped", res.Skipped)
	return res, nil
}

// Clear removes the highlight.
func (p *Pipeline) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clearLocked()
}

// Highlighted returns the features of the current highlight.
func (p *Pipeline) Highlighted() []*engine.Feature {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.layer == nil {
		return nil
	}
	return p.layer.Features()
}

func (p *Pipeline) clearLocked() {
	if p.layer == nil {
		return
	}
	p.surface.RemoveOverlay(highlightKey)
	p.layer = nil
}

func (p *Pipeline) stale(seq uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return seq != p.issued
}

// toFeature reads a hit's WGS84 geometry into the view projection.
func (p *Pipeline) toFeature(rec remote.FeatureRecord) (*engine.Feature, error) {
	g, err := engine.ReadGeometry(rec.Geom, engine.ProjWGS84, p.surface.Projection())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedRecord, err)
	}
	props, err := rec.PropertiesMap()
	if err != nil {
		return nil, fmt.Errorf("%w: properties: %v", ErrMalformedRecord, err)
	}
	return &engine.Feature{ID: string(rec.ID), Geometry: g, Properties: props}, nil
}

func (p *Pipeline) notify(level notify.Level, msg string) {
	p.notifier.Notify(notify.Notification{Level: level, Source: Owner, Message: msg})
}

func (p *Pipeline) log() *slog.Logger {
	if p.logger != nil {
		return p.logger
	}
	return slog.Default()
}
