// Package devapi is a fixture-backed stand-in for the remote layer/feature
// API and the WMS feature-info endpoint. Tests and the `mapview` root command run the
// viewer against it; it holds no state beyond process memory.
package devapi

import (
	"encoding/json"
)

// LayerBody is a layer as listed by GET /api/v1/layers.
type LayerBody struct {
	ID           string `json:"id" doc:"Unique layer identifier" example:"facultades"`
	Name         string `json:"name" doc:"Layer name as published in the WMS workspace" example:"facultades"`
	Color        string `json:"color" doc:"Representation color (CSS)" example:"#ff0000"`
	GeometryType string `json:"geometryType" enum:"POINT,LINE,POLYGON" doc:"Geometry type" example:"POINT"`
	Visible      bool   `json:"isVisible" doc:"Whether the layer is shown by default"`
}

// FeatureBody is one search hit. Properties are JSON-encoded text, matching
// the upstream API.
type FeatureBody struct {
	ID         string          `json:"id" doc:"Feature identifier"`
	LayerID    string          `json:"layerId" doc:"Owning layer"`
	Geom       json.RawMessage `json:"geom" doc:"GeoJSON geometry in EPSG:4326"`
	Properties string          `json:"properties" doc:"JSON-encoded attribute object"`
}

// InfoCollection is a GetFeatureInfo response (application/json).
type InfoCollection struct {
	Type     string        `json:"type" example:"FeatureCollection"`
	Features []InfoFeature `json:"features"`
}

// InfoFeature is one feature under the clicked pixel.
type InfoFeature struct {
	Type       string         `json:"type" example:"Feature"`
	ID         string         `json:"id"`
	Properties map[string]any `json:"properties"`
}

// MessageBody is a plain result message.
type MessageBody struct {
	Message string `json:"message" doc:"Result message"`
}

// HealthBody reports liveness.
type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"1.0.0"`
}

// InfoBody describes the stand-in.
type InfoBody struct {
	Name      string   `json:"name" doc:"Service name"`
	Version   string   `json:"version" doc:"Service version"`
	Workspace string   `json:"workspace" doc:"WMS workspace served under /geoserver"`
	Layers    int      `json:"layers" doc:"Number of layers loaded"`
	Features  []string `json:"features" doc:"Available endpoints"`
}
