// Package input defines the primary/driving ports of the application.
package input

import (
	"context"
	"time"

	"github.com/jobrunner/travelmap/internal/domain"
	"github.com/jobrunner/travelmap/internal/ports/output"
	"github.com/jobrunner/travelmap/internal/preprocess"
	"github.com/jobrunner/travelmap/internal/projection"
)

// DrawRequest describes one layer to draw.
type DrawRequest struct {
	Source     output.ShapeSource    // Shapes to draw, consumed once
	Projection projection.Projection // Pipeline applied to every part
	Renderer   output.Renderer       // Receives the projected parts
	Group      string                // Group id, defaults to "<source name>_layer"
	Style      output.Style          // Group attributes

	// Preprocessor overrides the service default when set.
	Preprocessor *preprocess.Preprocessor
}

// DrawStats summarizes a draw.
type DrawStats struct {
	preprocess.Stats
	Group    string        `json:"group"`
	Points   int           `json:"points"`
	Dropped  int           `json:"dropped"` // Points the projection mapped to NaN or Inf
	Duration time.Duration `json:"duration"`
}

// RenderRequest asks for a complete map document of a loaded layer.
type RenderRequest struct {
	LayerID    string          // Layer to render
	Projection string          // Pipeline description, empty for the default
	BBox       *domain.BBox    // Geographic filter, nil for all shapes
	Viewport   output.Viewport // Zero value uses the configured viewport
	Style      *output.Style   // Nil uses the configured style
}

// MapService defines the primary port for drawing maps.
type MapService interface {
	// Draw streams the shapes of a source through the preprocessor and the
	// projection into the renderer.
	Draw(ctx context.Context, req DrawRequest) (DrawStats, error)

	// RenderLayer renders a loaded layer into a document.
	RenderLayer(ctx context.Context, req RenderRequest) ([]byte, string, error)
}

// ProjectionService defines the primary port for single point projection.
type ProjectionService interface {
	// Project maps a geographic position through a pipeline.
	Project(ctx context.Context, pipeline string, ll domain.LonLat) (domain.Point, error)

	// Invert maps a projected point back to a geographic position.
	Invert(ctx context.Context, pipeline string, pt domain.Point) (domain.LonLat, error)

	// Projections lists the available projections.
	Projections(ctx context.Context) []projection.Info
}

// LayerRegistry defines the primary port for layer management.
type LayerRegistry interface {
	// ListLayers returns all registered layers.
	ListLayers(ctx context.Context) ([]*domain.Layer, error)

	// GetLayer returns a specific layer by ID.
	GetLayer(ctx context.Context, id string) (*domain.Layer, error)

	// GetLayerStatus returns the status of a layer.
	GetLayerStatus(ctx context.Context, id string) (domain.LayerStatus, error)
}

// HealthChecker defines the primary port for health checks.
type HealthChecker interface {
	// IsHealthy returns true if the service is healthy.
	IsHealthy(ctx context.Context) bool

	// IsReady returns true if the service is ready to accept requests.
	IsReady(ctx context.Context) bool

	// GetHealthDetails returns detailed health information.
	GetHealthDetails(ctx context.Context) HealthDetails
}

// HealthDetails contains detailed health information.
type HealthDetails struct {
	Healthy      bool              // Overall health status
	Ready        bool              // Ready to accept requests
	LayersLoaded int               // Number of loaded layers
	LayersReady  int               // Number of ready layers
	Components   map[string]string // Component statuses
}
