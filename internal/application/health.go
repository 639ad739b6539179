package application

import (
	"context"

	"github.com/jobrunner/travelmap/internal/domain"
	"github.com/jobrunner/travelmap/internal/ports/input"
)

// HealthService provides health check functionality.
type HealthService struct {
	registry *LayerRegistry
}

// NewHealthService creates a new health service.
func NewHealthService(registry *LayerRegistry) *HealthService {
	return &HealthService{
		registry: registry,
	}
}

// IsHealthy returns true if the service is healthy.
func (s *HealthService) IsHealthy(_ context.Context) bool {
	return true
}

// IsReady returns true if at least one layer can be drawn, or if no layers
// are configured at all.
func (s *HealthService) IsReady(ctx context.Context) bool {
	layers, err := s.registry.ListLayers(ctx)
	if err != nil {
		return false
	}
	if len(layers) == 0 {
		return true
	}
	return s.registry.ReadyCount() > 0
}

// GetHealthDetails returns detailed health information.
func (s *HealthService) GetHealthDetails(ctx context.Context) input.HealthDetails {
	components := map[string]string{
		"storage":    "ok",
		"projection": "ok",
	}

	return input.HealthDetails{
		Healthy:      s.IsHealthy(ctx),
		Ready:        s.IsReady(ctx),
		LayersLoaded: s.registry.LayerCount(),
		LayersReady:  s.registry.ReadyCount(),
		Components:   components,
	}
}

// LayerHealth contains health info for a single layer.
type LayerHealth struct {
	ID     string             `json:"id"`
	Status domain.LayerStatus `json:"status"`
	Ready  bool               `json:"ready"`
	Error  string             `json:"error,omitempty"`
}

// GetLayerHealth returns health info for all layers.
func (s *HealthService) GetLayerHealth(ctx context.Context) []LayerHealth {
	layers, _ := s.registry.ListLayers(ctx)

	health := make([]LayerHealth, len(layers))
	for i, layer := range layers {
		status, _ := s.registry.GetLayerStatus(ctx, layer.ID)
		health[i] = LayerHealth{
			ID:     layer.ID,
			Status: status,
			Ready:  status == domain.StatusReady,
		}
		if err := s.registry.LayerError(layer.ID); err != nil {
			health[i].Error = err.Error()
		}
	}
	return health
}
