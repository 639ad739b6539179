package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/jobrunner/travelmap/internal/domain"
	"github.com/jobrunner/travelmap/internal/ports/output"
	"github.com/jobrunner/travelmap/internal/projection"
)

// ProjectionService builds projection pipelines from their textual form and
// projects single points. Parsed pipelines are cached by description.
type ProjectionService struct {
	mu       sync.RWMutex
	cache    map[string]projection.Projection
	solver   projection.Solver
	pipeline string
	metrics  output.MetricsCollector
	logger   *slog.Logger
}

// NewProjectionService creates a projection service. defaultPipeline is
// used whenever a request names no pipeline. Non-convergence of the solver
// is logged and counted.
func NewProjectionService(
	defaultPipeline string,
	solver projection.Solver,
	metrics output.MetricsCollector,
	logger *slog.Logger,
) *ProjectionService {
	s := &ProjectionService{
		cache:    make(map[string]projection.Projection),
		pipeline: defaultPipeline,
		metrics:  metrics,
		logger:   logger,
	}

	next := solver.OnNonConvergence
	solver.OnNonConvergence = func(e *domain.ConvergenceError) {
		s.metrics.IncNonConvergence(e.Projection)
		s.logger.Warn("projection did not converge",
			"projection", e.Projection,
			"iterations", e.Iterations,
			"residual", e.Residual,
		)
		if next != nil {
			next(e)
		}
	}
	s.solver = solver
	return s
}

// DefaultPipeline returns the pipeline used when none is given.
func (s *ProjectionService) DefaultPipeline() string {
	return s.pipeline
}

// Build returns the projection for a pipeline description.
func (s *ProjectionService) Build(pipeline string) (projection.Projection, error) {
	key := strings.TrimSpace(pipeline)
	if key == "" {
		key = s.pipeline
	}

	s.mu.RLock()
	p, ok := s.cache[key]
	s.mu.RUnlock()
	if ok {
		return p, nil
	}

	p, err := projection.Parse(key, projection.WithSolver(s.solver))
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[key] = p
	s.mu.Unlock()
	return p, nil
}

// Project maps a geographic position through a pipeline.
func (s *ProjectionService) Project(_ context.Context, pipeline string, ll domain.LonLat) (domain.Point, error) {
	if err := ll.Validate(); err != nil {
		return domain.Point{}, err
	}
	p, err := s.Build(pipeline)
	if err != nil {
		return domain.Point{}, err
	}

	pt := projection.ProjectPoints(p, []domain.LonLat{ll})[0]
	if !pt.IsFinite() {
		return domain.Point{}, fmt.Errorf("%s at %s: %w", p.Name(), ll, domain.ErrOutOfDomain)
	}
	return pt, nil
}

// Invert maps a projected point back to a geographic position.
func (s *ProjectionService) Invert(_ context.Context, pipeline string, pt domain.Point) (domain.LonLat, error) {
	if !pt.IsFinite() {
		return domain.LonLat{}, &domain.ValidationError{
			Field:      "point",
			Value:      pt,
			Constraint: "finite",
			Message:    "coordinates must be finite numbers",
		}
	}
	p, err := s.Build(pipeline)
	if err != nil {
		return domain.LonLat{}, err
	}
	return projection.InvertPoint(p, pt)
}

// Projections lists the available projections.
func (s *ProjectionService) Projections(_ context.Context) []projection.Info {
	return projection.Catalog()
}
