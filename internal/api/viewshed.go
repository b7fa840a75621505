package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/banshee-data/viewshed/internal/dem"
	"github.com/banshee-data/viewshed/internal/events"
	"github.com/banshee-data/viewshed/internal/httputil"
	"github.com/banshee-data/viewshed/internal/monitoring"
	"github.com/banshee-data/viewshed/internal/viewshed"
)

type observer struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// viewshedRequest is the POST /viewshed body. Omitted optional fields
// fall back to the service configuration.
type viewshedRequest struct {
	Observer         observer `json:"observer"`
	ObserverHeightM  *float64 `json:"observerHeightM,omitempty"`
	MaxRadiusKm      *float64 `json:"maxRadiusKm,omitempty"`
	ResolutionM      *float64 `json:"resolutionM,omitempty"`
	Algorithm        *string  `json:"algorithm,omitempty"`
	CurvatureEnabled *bool    `json:"curvatureEnabled,omitempty"`
	SmoothingPasses  *int     `json:"smoothingPasses,omitempty"`
}

type viewshedResponse struct {
	Observer        observer          `json:"observer"`
	MaxRadiusKm     float64           `json:"maxRadiusKm"`
	Algorithm       string            `json:"algorithm"`
	Polygon         *geojson.Geometry `json:"polygon"`
	Coverage        *geojson.Geometry `json:"coverage"`
	VisibleCells    int               `json:"visibleCells"`
	TotalCells      int               `json:"totalCells"`
	VisibleFraction float64           `json:"visibleFraction"`
	CellSizeM       float64           `json:"cellSizeM"`
	ElapsedMs       float64           `json:"elapsedMs"`
	DEM             map[string]any    `json:"dem,omitempty"`
}

// computeError carries the HTTP status a failed computation maps to.
type computeError struct {
	status int
	err    error
}

func (e *computeError) Error() string { return e.err.Error() }
func (e *computeError) Unwrap() error { return e.err }

func writeComputeError(w http.ResponseWriter, err error) {
	var ce *computeError
	if !errors.As(err, &ce) {
		httputil.InternalServerError(w, err.Error())
		return
	}
	switch ce.status {
	case http.StatusBadRequest:
		httputil.BadRequest(w, ce.Error())
	case http.StatusUnprocessableEntity:
		httputil.UnprocessableEntity(w, ce.Error())
	case http.StatusBadGateway:
		httputil.BadGateway(w, ce.Error())
	default:
		httputil.WriteJSONError(w, ce.status, ce.Error())
	}
}

// decodeViewshedRequest validates data against the request schema and
// decodes it.
func (s *Server) decodeViewshedRequest(data []byte) (*viewshedRequest, error) {
	if err := s.validator.ValidateBytes(data); err != nil {
		return nil, err
	}
	var req viewshedRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return &req, nil
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	return io.ReadAll(r.Body)
}

func (s *Server) handleViewshed(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		httputil.BadRequest(w, fmt.Sprintf("failed to read body: %v", err))
		return
	}
	req, err := s.decodeViewshedRequest(body)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	resp, err := s.compute(r.Context(), req)
	if err != nil {
		writeComputeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, resp)
}

// compute fetches terrain, runs the configured pipeline and publishes a
// viewshed.computed event.
func (s *Server) compute(ctx context.Context, req *viewshedRequest) (*viewshedResponse, error) {
	start := s.clock.Now()

	heightM := s.cfg.GetObserverHeightM()
	if req.ObserverHeightM != nil {
		heightM = *req.ObserverHeightM
	}
	radiusKm := s.cfg.GetMaxRadiusKm()
	if req.MaxRadiusKm != nil {
		radiusKm = *req.MaxRadiusKm
	}
	resolutionM := s.cfg.GetResolutionM()
	if req.ResolutionM != nil {
		resolutionM = *req.ResolutionM
	}
	alg := s.cfg.GetAlgorithm()
	if req.Algorithm != nil {
		parsed, err := viewshed.ParseAlgorithm(*req.Algorithm)
		if err != nil {
			return nil, &computeError{http.StatusBadRequest, err}
		}
		alg = parsed
	}
	curvature := s.cfg.GetCurvatureEnabled()
	if req.CurvatureEnabled != nil {
		curvature = *req.CurvatureEnabled
	}
	passes := s.cfg.GetSmoothingPasses()
	if req.SmoothingPasses != nil {
		passes = *req.SmoothingPasses
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.GetRequestTimeout())
	defer cancel()

	res, err := s.provider.GetDEM(ctx, dem.Request{
		ObserverLat: req.Observer.Lat,
		ObserverLon: req.Observer.Lon,
		RadiusKm:    radiusKm,
		ResolutionM: resolutionM,
	})
	if err != nil {
		if errors.Is(err, dem.ErrInvalidRequest) || errors.Is(err, dem.ErrTooLarge) {
			return nil, &computeError{http.StatusBadRequest, err}
		}
		return nil, &computeError{http.StatusBadGateway, fmt.Errorf("DEM unavailable: %w", err)}
	}

	row, col, err := dem.ObserverCell(res, req.Observer.Lat, req.Observer.Lon)
	if err != nil {
		return nil, &computeError{http.StatusUnprocessableEntity, err}
	}

	engine, err := viewshed.NewEngine(alg, s.cfg.GetWorkers())
	if err != nil {
		return nil, &computeError{http.StatusBadRequest, err}
	}
	pipeline := viewshed.Pipeline{
		Engine:          engine,
		SmoothPasses:    passes,
		SmoothThreshold: s.cfg.GetSmoothingThreshold(),
	}
	mask, err := pipeline.Run(res.Elevation, viewshed.Params{
		ObserverRow:      row,
		ObserverCol:      col,
		ObserverHeightM:  heightM,
		CellSizeM:        res.CellSizeM,
		CurvatureEnabled: curvature,
	})
	if err != nil {
		if isCoreError(err) {
			return nil, &computeError{http.StatusUnprocessableEntity, err}
		}
		return nil, err
	}

	visible := mask.Count()
	total := mask.Rows * mask.Cols
	resp := &viewshedResponse{
		Observer:        req.Observer,
		MaxRadiusKm:     radiusKm,
		Algorithm:       engine.Name(),
		Polygon:         geojson.NewGeometry(circlePolygon(req.Observer.Lat, req.Observer.Lon, radiusKm, circlePoints)),
		Coverage:        geojson.NewGeometry(coverageMultiPolygon(mask, res.Transform)),
		VisibleCells:    visible,
		TotalCells:      total,
		VisibleFraction: float64(visible) / float64(total),
		CellSizeM:       res.CellSizeM,
		ElapsedMs:       float64(s.clock.Since(start).Microseconds()) / 1000,
		DEM:             res.Metadata,
	}

	s.publish(ctx, events.NewEvent(s.clock, events.TypeViewshedComputed, events.ComputedPayload{
		ObserverLat:     req.Observer.Lat,
		ObserverLon:     req.Observer.Lon,
		MaxRadiusKm:     radiusKm,
		Algorithm:       resp.Algorithm,
		VisibleCells:    visible,
		TotalCells:      total,
		VisibleFraction: resp.VisibleFraction,
		CellSizeM:       resp.CellSizeM,
		ElapsedMs:       resp.ElapsedMs,
	}))
	return resp, nil
}

// publish never fails the request; errors are only logged.
func (s *Server) publish(ctx context.Context, ev events.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.publisher.Publish(ctx, ev); err != nil {
		monitoring.Logf("[api] failed to publish %s event: %v", ev.Type, err)
	}
}

func isCoreError(err error) bool {
	return errors.Is(err, viewshed.ErrShape) ||
		errors.Is(err, viewshed.ErrInvalidParameter) ||
		errors.Is(err, viewshed.ErrOutOfBounds) ||
		errors.Is(err, viewshed.ErrNoData)
}
