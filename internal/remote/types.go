package remote

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Layer is a server-declared layer as returned by GET /api/v1/layers.
type Layer struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Color        string `json:"color"`
	GeometryType string `json:"geometryType,omitempty"`
	Visible      bool   `json:"isVisible"`
}

// FeatureRecord is one search hit. Geom is GeoJSON-shaped; Properties is
// usually a JSON-encoded string but an inline object is accepted too.
type FeatureRecord struct {
	ID         ID              `json:"id"`
	LayerID    string          `json:"layerId,omitempty"`
	Geom       json.RawMessage `json:"geom"`
	Properties json.RawMessage `json:"properties"`
}

// PropertiesMap decodes Properties. Empty or null properties yield an empty map.
func (r FeatureRecord) PropertiesMap() (map[string]any, error) {
	return decodeProperties(r.Properties)
}

func decodeProperties(raw json.RawMessage) (map[string]any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return map[string]any{}, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		if s == "" {
			return map[string]any{}, nil
		}
		raw = []byte(s)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

// ID accepts both numeric and string identifiers.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// FeatureInfo is a decoded GetFeatureInfo response.
type FeatureInfo struct {
	Features []InfoFeature `json:"features"`
}

// InfoFeature is one feature of a GetFeatureInfo response.
type InfoFeature struct {
	ID         string         `json:"id,omitempty"`
	Properties map[string]any `json:"properties"`
}
