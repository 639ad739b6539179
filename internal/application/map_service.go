package application

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"iter"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jobrunner/travelmap/internal/domain"
	"github.com/jobrunner/travelmap/internal/ports/input"
	"github.com/jobrunner/travelmap/internal/ports/output"
	"github.com/jobrunner/travelmap/internal/preprocess"
	"github.com/jobrunner/travelmap/internal/projection"
)

// MapServiceConfig holds configuration for the map service.
type MapServiceConfig struct {
	Workers  int             // Per-shape workers, defaults to GOMAXPROCS
	Viewport output.Viewport // Default image size and window
	Style    output.Style    // Default group style
	CacheTTL time.Duration   // Lifetime of cached documents
}

// MapService draws shape sources through a projection into a renderer.
type MapService struct {
	registry    *LayerRegistry
	projections *ProjectionService
	prep        *preprocess.Preprocessor
	canvases    output.CanvasFactory
	cache       output.RenderCache
	metrics     output.MetricsCollector
	logger      *slog.Logger
	cfg         MapServiceConfig
}

// NewMapService creates a new map service.
func NewMapService(
	registry *LayerRegistry,
	projections *ProjectionService,
	prep *preprocess.Preprocessor,
	canvases output.CanvasFactory,
	cache output.RenderCache,
	metrics output.MetricsCollector,
	logger *slog.Logger,
	cfg MapServiceConfig,
) *MapService {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.Viewport.Width == 0 || cfg.Viewport.Height == 0 {
		cfg.Viewport = output.DefaultViewport()
	}
	if cfg.Style == (output.Style{}) {
		cfg.Style = output.DefaultStyle()
	}
	if prep == nil {
		prep = preprocess.New()
	}
	if cache == nil {
		cache = output.NoOpCache{}
	}
	return &MapService{
		registry:    registry,
		projections: projections,
		prep:        prep,
		canvases:    canvases,
		cache:       cache,
		metrics:     metrics,
		logger:      logger,
		cfg:         cfg,
	}
}

// Viewport returns the viewport used when a request names none.
func (s *MapService) Viewport() output.Viewport {
	return s.cfg.Viewport
}

// GroupID returns the group id used for a layer name.
func GroupID(name string) string {
	return name + "_layer"
}

// preparedShape is the projected result for one source shape.
type preparedShape struct {
	kind    domain.GeometryKind
	parts   [][]domain.Point
	points  int
	dropped int
	stats   preprocess.Stats
	err     error
}

// Draw streams the shapes of req.Source through preprocessing and
// projection into req.Renderer. Shapes are prepared in parallel and emitted
// in source order inside one group.
func (s *MapService) Draw(ctx context.Context, req input.DrawRequest) (input.DrawStats, error) {
	if err := validateDrawRequest(req); err != nil {
		return input.DrawStats{}, err
	}
	start := time.Now()

	layer := req.Source.Name()
	group := req.Group
	if group == "" {
		group = GroupID(layer)
	}
	prep := req.Preprocessor
	if prep == nil {
		prep = s.prep
	}
	style := req.Style
	if style == (output.Style{}) {
		style = s.cfg.Style
	}

	stats := input.DrawStats{Group: group}
	if err := req.Renderer.BeginGroup(group, style); err != nil {
		return stats, err
	}

	err := s.drawShapes(ctx, req, prep, layer, &stats)
	if endErr := req.Renderer.EndGroup(); err == nil {
		err = endErr
	}

	stats.Duration = time.Since(start)
	s.metrics.AddShapesRead(layer, stats.Shapes)
	s.metrics.AddParts(layer, "kept", stats.Kept)
	s.metrics.AddParts(layer, "culled", stats.Culled)
	s.metrics.AddParts(layer, "shifted", stats.Shifted)
	s.metrics.AddParts(layer, "excluded", stats.Excluded)
	s.metrics.IncRenderCount(layer, err == nil)
	s.metrics.ObserveRenderDuration(layer, stats.Duration)

	if err != nil {
		s.logger.Error("draw failed", "layer", layer, "projection", req.Projection.Name(), "error", err)
		return stats, err
	}
	s.logger.Debug("layer drawn",
		"layer", layer,
		"group", group,
		"projection", req.Projection.Name(),
		"shapes", stats.Shapes,
		"parts", stats.Kept,
		"points", stats.Points,
		"duration", stats.Duration,
	)
	return stats, nil
}

// drawShapes runs the ordered worker pipeline. The producer reads the
// source and hands each shape to a bounded pool; the emitter waits for the
// results in the order the shapes were read.
func (s *MapService) drawShapes(
	ctx context.Context,
	req input.DrawRequest,
	prep *preprocess.Preprocessor,
	layer string,
	stats *input.DrawStats,
) error {
	g, gctx := errgroup.WithContext(ctx)
	queue := make(chan chan preparedShape, s.cfg.Workers)

	g.Go(func() error {
		var pool errgroup.Group
		pool.SetLimit(s.cfg.Workers)
		defer func() {
			_ = pool.Wait()
			close(queue)
		}()

		for shape, err := range req.Source.Shapes(gctx) {
			if err != nil {
				return &domain.SourceError{Source: layer, Err: err}
			}
			result := make(chan preparedShape, 1)
			select {
			case queue <- result:
			case <-gctx.Done():
				return gctx.Err()
			}
			pool.Go(func() error {
				result <- prepareShape(shape, prep, req.Projection, layer)
				return nil
			})
		}
		return nil
	})

	g.Go(func() error {
		for result := range queue {
			var r preparedShape
			select {
			case r = <-result:
			case <-gctx.Done():
				return gctx.Err()
			}
			if r.err != nil {
				return r.err
			}
			stats.Stats.Add(r.stats)
			stats.Points += r.points
			stats.Dropped += r.dropped
			for _, part := range r.parts {
				if err := emit(req.Renderer, r.kind, part); err != nil {
					return err
				}
			}
		}
		return nil
	})

	return g.Wait()
}

// prepareShape splits, culls, fixes up and projects one shape.
func prepareShape(shape domain.Shape, prep *preprocess.Preprocessor, proj projection.Projection, layer string) preparedShape {
	if len(shape.Points) == 0 {
		return preparedShape{stats: preprocess.Stats{Shapes: 1}}
	}
	if shape.Kind != domain.KindPolyline && shape.Kind != domain.KindPolygon {
		return preparedShape{err: &domain.UnsupportedGeometryError{Kind: shape.Kind, Layer: layer}}
	}

	parts, st := prep.Prepare(shape)
	out := preparedShape{kind: shape.Kind, stats: st, parts: make([][]domain.Point, 0, len(parts))}
	for _, part := range parts {
		pts := finitePoints(projection.ProjectPoints(proj, part.Points))
		out.dropped += len(part.Points) - len(pts)
		if len(pts) < 2 {
			continue
		}
		out.points += len(pts)
		out.parts = append(out.parts, pts)
	}
	return out
}

// finitePoints removes points a projection could not map, in place.
func finitePoints(pts []domain.Point) []domain.Point {
	out := pts[:0]
	for _, p := range pts {
		if p.IsFinite() {
			out = append(out, p)
		}
	}
	return out
}

func emit(r output.Renderer, kind domain.GeometryKind, pts []domain.Point) error {
	if kind == domain.KindPolygon {
		return r.Polygon(pts)
	}
	return r.Polyline(pts)
}

func validateDrawRequest(req input.DrawRequest) error {
	switch {
	case req.Source == nil:
		return &domain.ValidationError{Field: "source", Constraint: "required", Message: "shape source is required"}
	case req.Projection == nil:
		return &domain.ValidationError{Field: "projection", Constraint: "required", Message: "projection is required"}
	case req.Renderer == nil:
		return &domain.ValidationError{Field: "renderer", Constraint: "required", Message: "renderer is required"}
	}
	return nil
}

// RenderLayer renders a loaded layer into a complete document. Documents
// are cached by layer, pipeline, filter, viewport and style.
func (s *MapService) RenderLayer(ctx context.Context, req input.RenderRequest) ([]byte, string, error) {
	if s.canvases == nil {
		return nil, "", fmt.Errorf("render layer: no canvas: %w", domain.ErrUnsupported)
	}
	contentType := s.canvases.ContentType()

	layer, err := s.registry.GetLayer(ctx, req.LayerID)
	if err != nil {
		return nil, "", err
	}
	if !s.registry.IsReady(req.LayerID) {
		return nil, "", fmt.Errorf("layer %s: %w", req.LayerID, domain.ErrNotReady)
	}

	pipeline := req.Projection
	if pipeline == "" {
		pipeline = s.projections.DefaultPipeline()
	}
	proj, err := s.projections.Build(pipeline)
	if err != nil {
		return nil, "", err
	}

	vp := req.Viewport
	if vp.Width == 0 || vp.Height == 0 {
		vp = s.cfg.Viewport
	}
	style := s.cfg.Style
	if req.Style != nil {
		style = *req.Style
	}

	key := renderKey(layer, proj.Name(), pipeline, req.BBox, vp, style)
	if data, ok, err := s.cache.Get(ctx, key); err != nil {
		s.logger.Warn("render cache lookup failed", "layer", layer.ID, "error", err)
	} else if ok {
		s.metrics.IncCacheLookup(true)
		return data, contentType, nil
	}
	s.metrics.IncCacheLookup(false)

	shapes := layer.Shapes()
	if req.BBox != nil {
		shapes = layer.ShapesIn(*req.BBox)
	}

	var buf bytes.Buffer
	canvas := s.canvases.NewCanvas(&buf, vp)
	if err := canvas.Start(); err != nil {
		return nil, "", err
	}
	_, err = s.Draw(ctx, input.DrawRequest{
		Source:     NewSliceSource(layer.Name, shapes),
		Projection: proj,
		Renderer:   canvas,
		Group:      GroupID(layer.ID),
		Style:      style,
	})
	if err != nil {
		return nil, "", err
	}
	if err := canvas.End(); err != nil {
		return nil, "", err
	}

	data := buf.Bytes()
	if err := s.cache.Set(ctx, key, data, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("render cache store failed", "layer", layer.ID, "error", err)
	}
	return data, contentType, nil
}

// InvalidateCache drops cached documents after a layer changed.
func (s *MapService) InvalidateCache(ctx context.Context, layerID string) {
	if err := s.cache.Purge(ctx); err != nil {
		s.logger.Warn("render cache purge failed", "layer", layerID, "error", err)
	}
}

func renderKey(layer *domain.Layer, name, pipeline string, bbox *domain.BBox, vp output.Viewport, style output.Style) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%d|%s|%s|%+v|%+v", layer.ID, layer.LoadedAt.UnixNano(), name, pipeline, vp, style)
	if bbox != nil {
		fmt.Fprintf(h, "|%v", bbox.Array())
	}
	return "render:" + hex.EncodeToString(h.Sum(nil))
}

// SliceSource is a ShapeSource over shapes already in memory.
type SliceSource struct {
	name   string
	shapes []domain.Shape
}

// NewSliceSource creates a source that yields shapes in order.
func NewSliceSource(name string, shapes []domain.Shape) *SliceSource {
	return &SliceSource{name: name, shapes: shapes}
}

// Name implements output.ShapeSource.
func (s *SliceSource) Name() string { return s.name }

// Shapes implements output.ShapeSource.
func (s *SliceSource) Shapes(ctx context.Context) iter.Seq2[domain.Shape, error] {
	return func(yield func(domain.Shape, error) bool) {
		for _, shape := range s.shapes {
			if err := ctx.Err(); err != nil {
				yield(domain.Shape{}, err)
				return
			}
			if !yield(shape, nil) {
				return
			}
		}
	}
}

// Close implements output.ShapeSource.
func (s *SliceSource) Close() error { return nil }
