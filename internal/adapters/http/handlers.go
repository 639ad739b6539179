package http //nolint:revive // package name conflicts with stdlib but is acceptable in this context

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/jobrunner/travelmap/internal/application"
	"github.com/jobrunner/travelmap/internal/domain"
	"github.com/jobrunner/travelmap/internal/ports/input"
	"github.com/jobrunner/travelmap/internal/ports/output"
)

// maxImageSize bounds the requested image width and height in pixels.
const maxImageSize = 16384

// handleHealth returns detailed health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	details := s.health.GetHealthDetails(r.Context())

	status := http.StatusOK
	if !details.Healthy {
		status = http.StatusServiceUnavailable
	}

	s.writeJSON(w, status, map[string]interface{}{
		"status":        boolToStatus(details.Healthy),
		"ready":         details.Ready,
		"layers_loaded": details.LayersLoaded,
		"layers_ready":  details.LayersReady,
		"components":    details.Components,
		"layers":        s.health.GetLayerHealth(r.Context()),
	})
}

// handleLiveness returns liveness status.
func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	if s.health.IsHealthy(r.Context()) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
}

// handleReadiness returns readiness status.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if s.health.IsReady(r.Context()) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
}

// handleListProjections returns the projection catalog.
func (s *Server) handleListProjections(w http.ResponseWriter, r *http.Request) {
	infos := s.projections.Projections(r.Context())
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"projections": infos,
		"count":       len(infos),
		"default":     s.projections.DefaultPipeline(),
	})
}

// handleProject projects one geographic position.
//
//	GET /api/v1/project?projection=naturalearth2|rotate:45&lon=13.4&lat=52.5
func (s *Server) handleProject(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lon, err := floatParam(q, "lon")
	if err != nil {
		s.handleError(w, err)
		return
	}
	lat, err := floatParam(q, "lat")
	if err != nil {
		s.handleError(w, err)
		return
	}

	pipeline := s.pipelineParam(q)
	ll := domain.LonLat{Lon: lon, Lat: lat}
	pt, err := s.projections.Project(r.Context(), pipeline, ll)
	if err != nil {
		s.handleError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"projection": pipeline,
		"lon":        ll.Lon,
		"lat":        ll.Lat,
		"x":          pt.X,
		"y":          pt.Y,
	})
}

// handleInvert maps a projected point back to a geographic position.
func (s *Server) handleInvert(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	x, err := floatParam(q, "x")
	if err != nil {
		s.handleError(w, err)
		return
	}
	y, err := floatParam(q, "y")
	if err != nil {
		s.handleError(w, err)
		return
	}

	pipeline := s.pipelineParam(q)
	ll, err := s.projections.Invert(r.Context(), pipeline, domain.Point{X: x, Y: y})
	if err != nil {
		s.handleError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"projection": pipeline,
		"x":          x,
		"y":          y,
		"lon":        ll.Lon,
		"lat":        ll.Lat,
	})
}

// handleListLayers returns all registered layers.
func (s *Server) handleListLayers(w http.ResponseWriter, r *http.Request) {
	layers, err := s.registry.ListLayers(r.Context())
	if err != nil {
		s.handleError(w, err)
		return
	}

	response := make([]map[string]interface{}, len(layers))
	for i, layer := range layers {
		response[i] = s.formatLayer(r.Context(), layer)
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"layers": response,
		"count":  len(layers),
	})
}

// handleGetLayer returns a specific layer.
func (s *Server) handleGetLayer(w http.ResponseWriter, r *http.Request) {
	layer, err := s.registry.GetLayer(r.Context(), mux.Vars(r)["layerId"])
	if err != nil {
		s.handleError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.formatLayer(r.Context(), layer))
}

// handleRenderMap renders a loaded layer.
//
//	GET /api/v1/maps/coastline.svg?projection=eckert4&bbox=-30,30,50,75&width=800&height=600
func (s *Server) handleRenderMap(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseRenderRequest(r)
	if err != nil {
		s.handleError(w, err)
		return
	}

	data, contentType, err := s.maps.RenderLayer(r.Context(), req)
	if err != nil {
		s.handleError(w, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// parseRenderRequest reads the render options from the path and query.
func (s *Server) parseRenderRequest(r *http.Request) (input.RenderRequest, error) {
	q := r.URL.Query()
	req := input.RenderRequest{
		LayerID:    mux.Vars(r)["layerId"],
		Projection: s.pipelineParam(q),
	}

	if v := q.Get("bbox"); v != "" {
		bbox, err := parseBBox(v)
		if err != nil {
			return req, err
		}
		req.BBox = &bbox
	}

	vp := s.maps.Viewport()
	custom := false
	for _, p := range []struct {
		name string
		dst  *int
	}{{"width", &vp.Width}, {"height", &vp.Height}} {
		if !q.Has(p.name) {
			continue
		}
		n, err := strconv.Atoi(q.Get(p.name))
		if err != nil || n <= 0 || n > maxImageSize {
			return req, &domain.ValidationError{
				Field:      p.name,
				Value:      q.Get(p.name),
				Constraint: fmt.Sprintf("(0, %d]", maxImageSize),
				Message:    fmt.Sprintf("%s must be a positive integer up to %d", p.name, maxImageSize),
			}
		}
		*p.dst = n
		custom = true
	}
	if v := q.Get("viewbox"); v != "" {
		vb, err := parseViewBox(v)
		if err != nil {
			return req, err
		}
		vp.ViewBox = vb
		custom = true
	}
	if custom {
		req.Viewport = vp
	}

	if q.Has("stroke") || q.Has("stroke_width") || q.Has("fill") {
		style := output.DefaultStyle()
		if v := q.Get("stroke"); v != "" {
			style.Stroke = v
		}
		if v := q.Get("stroke_width"); v != "" {
			style.StrokeWidth = v
		}
		if v := q.Get("fill"); v != "" {
			style.Fill = v
		}
		req.Style = &style
	}
	return req, nil
}

// handleSync handles the sync trigger endpoint.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	result, err := s.syncService.TriggerSync(r.Context())
	if err != nil {
		if errors.Is(err, application.ErrRateLimited) {
			wait := int(math.Ceil(s.syncService.Cooldown().Seconds()))
			w.Header().Set("Retry-After", strconv.Itoa(wait))
			s.writeError(w, http.StatusTooManyRequests, fmt.Sprintf("Rate limit exceeded. Try again in %d seconds.", wait))
			return
		}
		s.logger.Error("sync failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Sync failed")
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

// handleOpenAPI serves the OpenAPI document as JSON.
func (s *Server) handleOpenAPI(w http.ResponseWriter, _ *http.Request) {
	data, err := getOpenAPIJSON()
	if err != nil {
		s.logger.Error("failed to load OpenAPI document", "error", err)
		s.writeError(w, http.StatusInternalServerError, "OpenAPI document unavailable")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

func (s *Server) pipelineParam(q url.Values) string {
	if p := strings.TrimSpace(q.Get("projection")); p != "" {
		return p
	}
	return s.projections.DefaultPipeline()
}

// floatParam reads a required finite number from the query.
func floatParam(q url.Values, name string) (float64, error) {
	v := q.Get(name)
	if v == "" {
		return 0, &domain.ValidationError{
			Field:      name,
			Constraint: "required",
			Message:    name + " is required",
		}
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, &domain.ValidationError{
			Field:      name,
			Value:      v,
			Constraint: "number",
			Message:    name + " must be a finite number",
		}
	}
	return f, nil
}

// parseNumbers splits a comma separated list of exactly n finite numbers.
func parseNumbers(field, v string, n int) ([]float64, error) {
	parts := strings.Split(v, ",")
	invalid := &domain.ValidationError{
		Field:      field,
		Value:      v,
		Constraint: fmt.Sprintf("%d comma separated numbers", n),
		Message:    fmt.Sprintf("%s must be %d comma separated numbers", field, n),
	}
	if len(parts) != n {
		return nil, invalid
	}
	out := make([]float64, n)
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, invalid
		}
		out[i] = f
	}
	return out, nil
}

// parseBBox parses "minLon,minLat,maxLon,maxLat".
func parseBBox(v string) (domain.BBox, error) {
	n, err := parseNumbers("bbox", v, 4)
	if err != nil {
		return domain.BBox{}, err
	}
	bbox := domain.NewBBox(n[0], n[1], n[2], n[3])
	if !bbox.IsValid() {
		return domain.BBox{}, &domain.ValidationError{
			Field:      "bbox",
			Value:      v,
			Constraint: "min <= max",
			Message:    "bbox minimum must not exceed its maximum",
		}
	}
	return bbox, nil
}

// parseViewBox parses "minX,minY,width,height" in projected units.
func parseViewBox(v string) (output.ViewBox, error) {
	n, err := parseNumbers("viewbox", v, 4)
	if err != nil {
		return output.ViewBox{}, err
	}
	if n[2] <= 0 || n[3] <= 0 {
		return output.ViewBox{}, &domain.ValidationError{
			Field:      "viewbox",
			Value:      v,
			Constraint: "width > 0, height > 0",
			Message:    "viewbox width and height must be positive",
		}
	}
	return output.ViewBox{MinX: n[0], MinY: n[1], Width: n[2], Height: n[3]}, nil
}

func (s *Server) formatLayer(ctx context.Context, layer *domain.Layer) map[string]interface{} {
	status, _ := s.registry.GetLayerStatus(ctx, layer.ID)
	out := map[string]interface{}{
		"id":          layer.ID,
		"name":        layer.Name,
		"format":      layer.Format,
		"size":        layer.Size,
		"kind":        layer.Kind.String(),
		"shape_count": layer.ShapeCount(),
		"bbox":        layer.BBox.Array(),
		"indexed":     layer.Indexed,
		"status":      status,
		"ready":       layer.IsReady(),
		"loaded_at":   layer.LoadedAt,
	}
	if !layer.License.IsEmpty() {
		out["license"] = map[string]string{
			"name":        layer.License.Name,
			"url":         layer.License.URL,
			"attribution": layer.License.Attribution,
		}
	}
	return out
}

// handleError maps domain errors to HTTP status codes.
func (s *Server) handleError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	switch {
	case errors.As(err, &validationErr):
		s.writeError(w, http.StatusBadRequest, validationErr.Message)
	case errors.Is(err, domain.ErrProjectionNotFound):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrLayerNotFound):
		s.writeError(w, http.StatusNotFound, "Layer not found")
	case errors.Is(err, domain.ErrNoInverse),
		errors.Is(err, domain.ErrNotConverged),
		errors.Is(err, domain.ErrOutOfDomain),
		errors.Is(err, domain.ErrUnsupportedGeometry):
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrInvalidInput):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotReady):
		s.writeError(w, http.StatusServiceUnavailable, "Layer not ready")
	default:
		s.logger.Error("request failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "Request failed")
	}
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]interface{}{
		"error":   http.StatusText(status),
		"message": message,
	})
}

func boolToStatus(b bool) string {
	if b {
		return "ok"
	}
	return "unhealthy"
}
