package devapi

import (
	_ "embed"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"gopkg.in/yaml.v3"
)

//go:embed demo.yaml
var demoFixtures []byte

// DemoFixtures returns the built-in demo data set.
func DemoFixtures() *Fixtures {
	var f Fixtures
	if err := yaml.Unmarshal(demoFixtures, &f); err != nil {
		panic(fmt.Sprintf("devapi: embedded fixtures: %v", err))
	}
	return &f
}

// Config holds the server configuration.
type Config struct {
	Host     string
	Port     string
	Fixtures string // YAML fixture file; empty uses the demo set
	Logger   *slog.Logger
}

// Server is the dev API HTTP server.
type Server struct {
	config  Config
	mux     *http.ServeMux
	humaAPI huma.API
	store   *Store
}

// New creates a server seeded from cfg.Fixtures.
func New(cfg Config) (*Server, error) {
	fixtures := DemoFixtures()
	if cfg.Fixtures != "" {
		f, err := LoadFixtures(cfg.Fixtures)
		if err != nil {
			return nil, err
		}
		fixtures = f
	}
	store, err := NewStore(fixtures)
	if err != nil {
		return nil, err
	}
	return NewWithStore(cfg, store), nil
}

// NewWithStore creates a server over an existing store.
func NewWithStore(cfg Config, store *Store) *Server {
	mux := http.NewServeMux()

	humaConfig := huma.DefaultConfig("mapview dev API", "1.0.0")
	humaConfig.Info.Description = "Fixture-backed layer, feature search and WMS GetFeatureInfo endpoints for the map viewer."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers, LinkTransformer())

	s := &Server{
		config:  cfg,
		mux:     mux,
		humaAPI: humago.New(mux, humaConfig),
		store:   store,
	}
	huma.AutoRegister(s.humaAPI, NewAPIHandler(store))
	return s
}

// Store returns the backing store.
func (s *Server) Store() *Store { return s.store }

// OpenAPI returns the generated document.
func (s *Server) OpenAPI() *huma.OpenAPI { return s.humaAPI.OpenAPI() }

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.mux.ServeHTTP(rec, r)
	s.log().Debug("dev api request",
		"method", r.Method,
		"path", r.URL.Path,
		"status", rec.status,
		"elapsed", time.Since(start),
	)
}

func (s *Server) log() *slog.Logger {
	if s.config.Logger != nil {
		return s.config.Logger
	}
	return slog.Default()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
