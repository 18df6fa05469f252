package devapi

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/project"
	"gopkg.in/yaml.v3"
)

// Fixtures is the YAML document the store is seeded from.
type Fixtures struct {
	Workspace string         `yaml:"workspace"`
	Layers    []LayerFixture `yaml:"layers"`
}

// LayerFixture declares one layer and its features.
type LayerFixture struct {
	ID           string           `yaml:"id"`
	Name         string           `yaml:"name"`
	Color        string           `yaml:"color"`
	GeometryType string           `yaml:"geometry_type"`
	Visible      bool             `yaml:"visible"`
	Features     []FeatureFixture `yaml:"features"`
}

// FeatureFixture is a feature with an inline GeoJSON geometry. A feature
// without geometry is served with a null geom.
type FeatureFixture struct {
	ID         string         `yaml:"id"`
	Geometry   map[string]any `yaml:"geometry"`
	Properties map[string]any `yaml:"properties"`
}

// LoadFixtures reads a fixture file.
func LoadFixtures(path string) (*Fixtures, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f Fixtures
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &f, nil
}

type feature struct {
	id         string
	layerID    string
	geom       json.RawMessage
	mercator   orb.Geometry
	properties map[string]any
}

// Store holds layers and features in memory.
type Store struct {
	workspace string
	layers    map[string]LayerBody
	features  map[string][]feature
	mu        sync.RWMutex
}

// NewStore builds a store from fixtures. Geometries must be valid GeoJSON in
// EPSG:4326.
func NewStore(f *Fixtures) (*Store, error) {
	s := &Store{
		workspace: "geo",
		layers:    make(map[string]LayerBody),
		features:  make(map[string][]feature),
	}
	if f == nil {
		return s, nil
	}
	if f.Workspace != "" {
		s.workspace = f.Workspace
	}

	for _, lf := range f.Layers {
		layer := LayerBody{
			ID:           lf.ID,
			Name:         lf.Name,
			Color:        lf.Color,
			GeometryType: strings.ToUpper(lf.GeometryType),
			Visible:      lf.Visible,
		}
		if layer.ID == "" {
			layer.ID = generateID(layer.Name)
		}
		if layer.ID == "" {
			layer.ID = uuid.NewString()
		}
		if layer.Name == "" {
			layer.Name = layer.ID
		}
		if _, exists := s.layers[layer.ID]; exists {
			return nil, fmt.Errorf("layer with ID %q already exists", layer.ID)
		}
		s.layers[layer.ID] = layer

		for i, ff := range lf.Features {
			feat := feature{
				id:         ff.ID,
				layerID:    layer.ID,
				properties: ff.Properties,
			}
			if feat.id == "" {
				feat.id = fmt.Sprintf("%s.%d", layer.Name, i+1)
			}
			if feat.properties == nil {
				feat.properties = map[string]any{}
			}
			if ff.Geometry != nil {
				raw, err := json.Marshal(ff.Geometry)
				if err != nil {
					return nil, fmt.Errorf("feature %s: %w", feat.id, err)
				}
				g, err := geojson.UnmarshalGeometry(raw)
				if err != nil {
					return nil, fmt.Errorf("feature %s: %w", feat.id, err)
				}
				feat.geom = raw
				feat.mercator = project.Geometry(orb.Clone(g.Geometry()), project.WGS84.ToMercator)
			}
			s.features[layer.ID] = append(s.features[layer.ID], feat)
		}
	}
	return s, nil
}

// Workspace returns the WMS workspace name.
func (s *Store) Workspace() string { return s.workspace }

// List returns all layers ordered by ID.
func (s *Store) List() []LayerBody {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]LayerBody, 0, len(s.layers))
	for _, l := range s.layers {
		result = append(result, l)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// Get returns a layer by ID.
func (s *Store) Get(id string) (LayerBody, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	layer, ok := s.layers[id]
	return layer, ok
}

// Delete removes a layer and its features.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.layers[id]; !exists {
		return fmt.Errorf("layer %q not found", id)
	}
	delete(s.layers, id)
	delete(s.features, id)
	return nil
}

// Search returns features whose properties contain q, case-insensitively.
// A blank query matches nothing.
func (s *Store) Search(q string) []FeatureBody {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return []FeatureBody{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []FeatureBody{}
	for _, id := range s.layerIDs() {
		for _, f := range s.features[id] {
			props, _ := json.Marshal(f.properties)
			if !strings.Contains(strings.ToLower(string(props)), q) {
				continue
			}
			geom := f.geom
			if geom == nil {
				geom = json.RawMessage("null")
			}
			result = append(result, FeatureBody{
				ID:         f.id,
				LayerID:    f.layerID,
				Geom:       geom,
				Properties: string(props),
			})
		}
	}
	return result
}

// FeaturesAt returns the features of the named layers within tolerance
// metres of p, which is in EPSG:3857.
func (s *Store) FeaturesAt(names []string, p orb.Point, tolerance float64) []InfoFeature {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []InfoFeature{}
	for _, name := range names {
		name = s.unqualify(name)
		for _, id := range s.layerIDs() {
			if s.layers[id].Name != name {
				continue
			}
			for _, f := range s.features[id] {
				if f.mercator == nil || !hit(f.mercator, p, tolerance) {
					continue
				}
				result = append(result, InfoFeature{Type: "Feature", ID: f.id, Properties: f.properties})
			}
		}
	}
	return result
}

// FeatureCount returns the number of stored features.
func (s *Store) FeatureCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, fs := range s.features {
		n += len(fs)
	}
	return n
}

func (s *Store) layerIDs() []string {
	ids := make([]string, 0, len(s.layers))
	for id := range s.layers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *Store) unqualify(name string) string {
	return strings.TrimPrefix(name, s.workspace+":")
}

func hit(g orb.Geometry, p orb.Point, tolerance float64) bool {
	switch geom := g.(type) {
	case orb.Polygon:
		if planar.PolygonContains(geom, p) {
			return true
		}
	case orb.MultiPolygon:
		if planar.MultiPolygonContains(geom, p) {
			return true
		}
	}
	return planar.DistanceFrom(g, p) <= tolerance
}

// generateID creates a URL-safe ID from a name.
func generateID(name string) string {
	id := strings.ToLower(name)
	id = strings.ReplaceAll(id, " ", "_")
	var result strings.Builder
	for _, r := range id {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			result.WriteRune(r)
		}
	}
	return result.String()
}
