// Package api serves the viewshed HTTP interface: health, viewshed
// computation, saved scenarios and the /debug/ admin pages.
package api

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/banshee-data/viewshed/internal/config"
	"github.com/banshee-data/viewshed/internal/dem"
	"github.com/banshee-data/viewshed/internal/events"
	"github.com/banshee-data/viewshed/internal/httputil"
	"github.com/banshee-data/viewshed/internal/scenario"
	"github.com/banshee-data/viewshed/internal/timeutil"
	"github.com/banshee-data/viewshed/internal/version"
)

// maxRequestBytes caps request bodies.
const maxRequestBytes = 1 << 20

// Options wires the server's collaborators. Only Provider is required.
type Options struct {
	Config    *config.Config
	Provider  dem.Provider
	Store     *scenario.Store   // nil disables /scenarios and /debug/
	Publisher events.Publisher  // nil discards events
	Clock     timeutil.Clock    // nil uses the wall clock
}

type Server struct {
	cfg       *config.Config
	provider  dem.Provider
	store     *scenario.Store
	publisher events.Publisher
	clock     timeutil.Clock
	validator *requestValidator
}

func NewServer(opts Options) (*Server, error) {
	if opts.Provider == nil {
		return nil, fmt.Errorf("api: a DEM provider is required")
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.EmptyConfig()
	}
	pub := opts.Publisher
	if pub == nil {
		pub = events.NopPublisher{}
	}
	clock := opts.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	v, err := newRequestValidator()
	if err != nil {
		return nil, err
	}
	return &Server{
		cfg:       cfg,
		provider:  opts.Provider,
		store:     opts.Store,
		publisher: pub,
		clock:     clock,
		validator: v,
	}, nil
}

// Router returns the route table without middleware.
func (s *Server) Router() (*mux.Router, error) {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/viewshed", s.handleViewshed).Methods(http.MethodPost)

	if s.store != nil {
		r.HandleFunc("/scenarios", s.listScenarios).Methods(http.MethodGet)
		r.HandleFunc("/scenarios", s.createScenario).Methods(http.MethodPost)
		r.HandleFunc("/scenarios/{id}", s.getScenario).Methods(http.MethodGet)
		r.HandleFunc("/scenarios/{id}", s.deleteScenario).Methods(http.MethodDelete)
		r.HandleFunc("/scenarios/{id}/run", s.runScenario).Methods(http.MethodPost)

		admin := http.NewServeMux()
		if err := s.store.AttachAdminRoutes(admin); err != nil {
			return nil, err
		}
		r.PathPrefix("/debug/").Handler(admin)
	}
	return r, nil
}

// Handler returns the full HTTP handler: routes wrapped in CORS and
// access logging.
func (s *Server) Handler() (http.Handler, error) {
	r, err := s.Router()
	if err != nil {
		return nil, err
	}
	return LoggingMiddleware(CORSMiddleware(r)), nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]string{
		"status":  "ok",
		"version": version.Version,
	})
}
