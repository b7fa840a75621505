package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/banshee-data/viewshed/internal/httputil"
	"github.com/banshee-data/viewshed/internal/monitoring"
	"github.com/banshee-data/viewshed/internal/scenario"
)

type createScenarioRequest struct {
	Name    string          `json:"name"`
	Request json.RawMessage `json:"request"`
}

func (s *Server) listScenarios(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.List(r.Context())
	if err != nil {
		monitoring.Logf("[api] list scenarios: %v", err)
		httputil.InternalServerError(w, "failed to list scenarios")
		return
	}
	httputil.WriteJSONOK(w, list)
}

func (s *Server) createScenario(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		httputil.BadRequest(w, fmt.Sprintf("failed to read body: %v", err))
		return
	}
	var in createScenarioRequest
	if err := json.Unmarshal(body, &in); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	if len(in.Request) == 0 {
		httputil.BadRequest(w, "request is required")
		return
	}
	if err := s.validator.ValidateBytes(in.Request); err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	sc, err := s.store.Save(r.Context(), in.Name, in.Request)
	if err != nil {
		if errors.Is(err, scenario.ErrInvalidScenario) {
			httputil.BadRequest(w, err.Error())
			return
		}
		monitoring.Logf("[api] save scenario: %v", err)
		httputil.InternalServerError(w, "failed to save scenario")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, sc)
}

// lookupScenario writes the error response itself and returns nil when
// the scenario cannot be loaded.
func (s *Server) lookupScenario(w http.ResponseWriter, r *http.Request) *scenario.Scenario {
	id := mux.Vars(r)["id"]
	sc, err := s.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, scenario.ErrNotFound) {
			httputil.NotFound(w, "scenario not found")
			return nil
		}
		monitoring.Logf("[api] get scenario %s: %v", id, err)
		httputil.InternalServerError(w, "failed to load scenario")
		return nil
	}
	return sc
}

func (s *Server) getScenario(w http.ResponseWriter, r *http.Request) {
	if sc := s.lookupScenario(w, r); sc != nil {
		httputil.WriteJSONOK(w, sc)
	}
}

func (s *Server) deleteScenario(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	deleted, err := s.store.Delete(r.Context(), id)
	if err != nil {
		monitoring.Logf("[api] delete scenario %s: %v", id, err)
		httputil.InternalServerError(w, "failed to delete scenario")
		return
	}
	if !deleted {
		httputil.NotFound(w, "scenario not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// runScenario recomputes the viewshed for a stored request.
func (s *Server) runScenario(w http.ResponseWriter, r *http.Request) {
	sc := s.lookupScenario(w, r)
	if sc == nil {
		return
	}
	req, err := s.decodeViewshedRequest(sc.Request)
	if err != nil {
		httputil.UnprocessableEntity(w, fmt.Sprintf("stored request is no longer valid: %v", err))
		return
	}
	resp, err := s.compute(r.Context(), req)
	if err != nil {
		writeComputeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, resp)
}
