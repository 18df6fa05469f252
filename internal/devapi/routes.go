package devapi

import (
	"context"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-mapview/internal/session"
)

// hitTolerancePixels is how far from a feature a click still counts as a hit.
const hitTolerancePixels = 5

type IDInput struct {
	ID string `path:"id" doc:"Layer ID" example:"1"`
}

type DeleteLayerInput struct {
	IDInput
	Authorization string `header:"Authorization" doc:"Bearer token"`
}

type SearchInput struct {
	Q string `query:"q" doc:"Free-text query matched against feature properties" example:"facultad"`
}

// FeatureInfoInput is the subset of WMS GetFeatureInfo parameters the stand-in
// understands. Both 1.1.1 (SRS, X/Y) and 1.3.0 (CRS, I/J) are accepted.
type FeatureInfoInput struct {
	Workspace   string `path:"workspace" doc:"WMS workspace" example:"sigds"`
	Request     string `query:"REQUEST" doc:"Must be GetFeatureInfo" example:"GetFeatureInfo"`
	Version     string `query:"VERSION" example:"1.1.1"`
	QueryLayers string `query:"QUERY_LAYERS" doc:"Comma separated layer names"`
	InfoFormat  string `query:"INFO_FORMAT" example:"application/json"`
	BBox        string `query:"BBOX" doc:"minx,miny,maxx,maxy in EPSG:3857"`
	Width       int    `query:"WIDTH"`
	Height      int    `query:"HEIGHT"`
	X           string `query:"X"`
	Y           string `query:"Y"`
	I           string `query:"I"`
	J           string `query:"J"`
	SRS         string `query:"SRS"`
	CRS         string `query:"CRS"`
}

// APIHandler holds the REST handlers. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type APIHandler struct {
	store *Store
}

func NewAPIHandler(store *Store) *APIHandler {
	return &APIHandler{store: store}
}

// RegisterHealth registers health and info routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

// RegisterLayers registers the layer routes.
func (h *APIHandler) RegisterLayers(api huma.API) {
	huma.Get(api, "/api/v1/layers", h.GetLayers, huma.OperationTags("layers"))
	huma.Delete(api, "/api/v1/layers/{id}", h.DeleteLayer, huma.OperationTags("layers"))
}

// RegisterFeatures registers feature search.
func (h *APIHandler) RegisterFeatures(api huma.API) {
	huma.Get(api, "/api/v1/features/search", h.SearchFeatures, huma.OperationTags("features"))
}

// RegisterWMS registers the GetFeatureInfo endpoint.
func (h *APIHandler) RegisterWMS(api huma.API) {
	huma.Get(api, "/geoserver/{workspace}/wms", h.GetFeatureInfo, huma.OperationTags("wms"))
}

// Handlers

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: "1.0.0"}}, nil
}

func (h *APIHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	return &struct{ Body InfoBody }{Body: InfoBody{
		Name:      "mapview-dev-api",
		Version:   "0.1.0",
		Workspace: h.store.Workspace(),
		Layers:    len(h.store.List()),
		Features:  []string{"layers", "features/search", "wms/GetFeatureInfo"},
	}}, nil
}

func (h *APIHandler) GetLayers(ctx context.Context, input *struct{}) (*struct{ Body []LayerBody }, error) {
	return &struct{ Body []LayerBody }{Body: h.store.List()}, nil
}

// DeleteLayer requires a SUPERADMIN bearer token.
func (h *APIHandler) DeleteLayer(ctx context.Context, input *DeleteLayerInput) (*struct{ Body MessageBody }, error) {
	token, ok := strings.CutPrefix(input.Authorization, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return nil, huma.Error401Unauthorized("missing bearer token")
	}
	claims, err := session.ParseClaims(token)
	if err != nil {
		return nil, huma.Error401Unauthorized(err.Error())
	}
	if claims.Role != session.SuperAdmin {
		return nil, huma.Error403Forbidden("only SUPERADMIN may delete layers")
	}
	if err := h.store.Delete(input.ID); err != nil {
		return nil, huma.Error404NotFound(err.Error())
	}
	return &struct{ Body MessageBody }{Body: MessageBody{Message: "Layer deleted"}}, nil
}

func (h *APIHandler) SearchFeatures(ctx context.Context, input *SearchInput) (*struct{ Body []FeatureBody }, error) {
	return &struct{ Body []FeatureBody }{Body: h.store.Search(input.Q)}, nil
}

func (h *APIHandler) GetFeatureInfo(ctx context.Context, input *FeatureInfoInput) (*struct{ Body InfoCollection }, error) {
	if !strings.EqualFold(input.Request, "GetFeatureInfo") {
		return nil, huma.Error400BadRequest("only REQUEST=GetFeatureInfo is supported")
	}
	if input.Workspace != h.store.Workspace() {
		return nil, huma.Error404NotFound("unknown workspace " + input.Workspace)
	}
	if crs := firstNonEmpty(input.SRS, input.CRS); crs != "" && crs != "EPSG:3857" {
		return nil, huma.Error400BadRequest("unsupported reference system " + crs)
	}

	bbox, err := parseBBox(input.BBox)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid BBOX", err)
	}
	if input.Width <= 0 || input.Height <= 0 {
		return nil, huma.Error400BadRequest("WIDTH and HEIGHT must be positive")
	}
	px, errX := strconv.Atoi(firstNonEmpty(input.X, input.I))
	py, errY := strconv.Atoi(firstNonEmpty(input.Y, input.J))
	if errX != nil || errY != nil {
		return nil, huma.Error400BadRequest("invalid pixel position")
	}

	resX := (bbox.Max[0] - bbox.Min[0]) / float64(input.Width)
	resY := (bbox.Max[1] - bbox.Min[1]) / float64(input.Height)
	at := orb.Point{
		bbox.Min[0] + (float64(px)+0.5)*resX,
		bbox.Max[1] - (float64(py)+0.5)*resY,
	}

	var names []string
	for _, n := range strings.Split(input.QueryLayers, ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}

	return &struct{ Body InfoCollection }{Body: InfoCollection{
		Type:     "FeatureCollection",
		Features: h.store.FeaturesAt(names, at, hitTolerancePixels*resX),
	}}, nil
}

func parseBBox(s string) (orb.Bound, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return orb.Bound{}, strconv.ErrSyntax
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return orb.Bound{}, err
		}
		v[i] = f
	}
	return orb.Bound{Min: orb.Point{v[0], v[1]}, Max: orb.Point{v[2], v[3]}}, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
