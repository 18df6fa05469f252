package mapsurface

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"

	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-mapview/internal/engine"
	"github.com/joeblew999/plat-mapview/internal/notify"
	"github.com/joeblew999/plat-mapview/internal/remote"
	"github.com/joeblew999/plat-mapview/internal/templates"
)

// hiddenAttributes are technical fields never shown in the popup.
var hiddenAttributes = map[string]bool{
	"geom":     true,
	"bbox":     true,
	"geometry": true,
	"layer_id": true,
}

// Row is one attribute shown in the popup.
type Row struct {
	Key   string
	Value string
}

// Section groups the rows of one feature.
type Section struct {
	Layer     string
	FeatureID string
	Rows      []Row
}

// Popup is the feature-info popup. Position is nil while hidden.
type Popup struct {
	Position *orb.Point
	Sections []Section
	Markup   string
	ClickSeq uint64
}

// Visible reports whether the popup is shown.
func (p Popup) Visible() bool { return p.Position != nil }

// Popup returns the current popup state.
func (s *Surface) Popup() Popup {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.popup
}

// ClosePopup hides the popup.
func (s *Surface) ClosePopup() {
	s.mu.Lock()
	s.popup = Popup{}
	s.mu.Unlock()
}

type infoRequest struct {
	layer string
	url   string
}

// Click handles a single click at coord (view projection). Attached
// interactions see the click first; if none consumes it, visible queryable
// overlays are asked for feature info and the popup follows the response.
// It returns the click's sequence number, or 0 when an interaction consumed it.
func (s *Surface) Click(ctx context.Context, coord orb.Point) uint64 {
	for _, in := range s.Interactions() {
		if in.HandleClick(coord) {
			return 0
		}
	}

	seq := s.clickSeq.Add(1)
	reqs := s.featureInfoRequests(coord)
	if len(reqs) == 0 || s.fetcher == nil {
		s.log().Debug("click without queryable overlay", "click_seq", seq)
		s.ClosePopup()
		return seq
	}

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		s.resolveClick(context.WithoutCancel(ctx), seq, coord, reqs)
	}()
	return seq
}

// DoubleClick forwards a double click to the attached interactions.
func (s *Surface) DoubleClick(coord orb.Point) bool {
	for _, in := range s.Interactions() {
		if in.HandleDoubleClick(coord) {
			return true
		}
	}
	return false
}

// featureInfoRequests builds one request per visible queryable overlay,
// top-most first.
func (s *Surface) featureInfoRequests(coord orb.Point) []infoRequest {
	overlays := s.sortedOverlays()
	res := s.camera.Resolution()
	extra := url.Values{"INFO_FORMAT": {"application/json"}}

	var reqs []infoRequest
	for i := len(overlays) - 1; i >= 0; i-- {
		q, ok := overlays[i].layer.(engine.Queryable)
		if !ok || !q.Visible() {
			continue
		}
		u, ok := q.FeatureInfoURL(coord, res, s.Projection(), extra)
		if !ok {
			continue
		}
		name := q.Get(TagName)
		if name == "" {
			name = q.Get(TagID)
		}
		reqs = append(reqs, infoRequest{layer: name, url: u})
	}
	return reqs
}

func (s *Surface) resolveClick(ctx context.Context, seq uint64, coord orb.Point, reqs []infoRequest) {
	var sections []Section
	var failed int
	for _, r := range reqs {
		info, err := s.fetcher.FeatureInfo(ctx, r.url)
		if err != nil {
			failed++
			s.log().Error("feature info failed", "click_seq", seq, "layer", r.layer, "error", err)
			continue
		}
		for _, f := range info.Features {
			sections = append(sections, Section{Layer: r.layer, FeatureID: f.ID, Rows: attributeRows(f)})
		}
	}

	if seq != s.clickSeq.Load() {
		s.log().Debug("stale feature info discarded", "click_seq", seq, "latest", s.clickSeq.Load())
		return
	}

	if failed == len(reqs) {
		s.applyPopup(seq, Popup{})
		s.notifier.Notify(notify.Notification{
			Level:   notify.Error,
			Source:  "map",
			Message: "Could not query feature information",
		})
		return
	}

	if len(sections) == 0 {
		s.applyPopup(seq, Popup{})
		return
	}

	markup, err := templates.Default().Render("popup", map[string]any{"Sections": sections})
	if err != nil {
		s.log().Error("render popup", "error", err)
	}
	at := coord
	s.applyPopup(seq, Popup{Position: &at, Sections: sections, Markup: markup, ClickSeq: seq})
}

// applyPopup installs p unless a newer click was issued meanwhile.
func (s *Surface) applyPopup(seq uint64, p Popup) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.clickSeq.Load() {
		return
	}
	s.popup = p
}

// attributeRows flattens a feature's properties into display rows. A
// "properties" value holding a JSON object string is expanded in place.
func attributeRows(f remote.InfoFeature) []Row {
	attrs := make(map[string]any, len(f.Properties))
	for k, v := range f.Properties {
		attrs[k] = v
	}
	if raw, ok := attrs["properties"].(string); ok {
		var nested map[string]any
		if err := json.Unmarshal([]byte(raw), &nested); err == nil {
			delete(attrs, "properties")
			for k, v := range nested {
				attrs[k] = v
			}
		}
	}

	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		if !hiddenAttributes[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	rows := make([]Row, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, Row{Key: k, Value: formatValue(attrs[k])})
	}
	return rows
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case map[string]any, []any:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	default:
		return fmt.Sprint(val)
	}
}
