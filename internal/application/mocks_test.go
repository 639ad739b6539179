package application

import (
	"context"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jobrunner/travelmap/internal/domain"
	"github.com/jobrunner/travelmap/internal/ports/output"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// mockSource implements output.ShapeSource for testing.
type mockSource struct {
	name   string
	shapes []domain.Shape
	errAt  int // index at which the iterator yields readErr, -1 for never
	err    error
	closed bool
}

func newMockSource(name string, shapes ...domain.Shape) *mockSource {
	return &mockSource{name: name, shapes: shapes, errAt: -1}
}

func (m *mockSource) Name() string { return m.name }

func (m *mockSource) Shapes(_ context.Context) iter.Seq2[domain.Shape, error] {
	return func(yield func(domain.Shape, error) bool) {
		for i, s := range m.shapes {
			if i == m.errAt {
				yield(domain.Shape{}, m.err)
				return
			}
			if !yield(s, nil) {
				return
			}
		}
	}
}

func (m *mockSource) Close() error {
	m.closed = true
	return nil
}

func (m *mockSource) Info() output.SourceInfo {
	return output.SourceInfo{Format: "mock", Size: 42}
}

// mockOpener implements output.SourceOpener for testing.
type mockOpener struct {
	mu      sync.Mutex
	sources map[string][]domain.Shape // keyed by layer ID
	openErr error
	opened  []string
}

func (m *mockOpener) Open(_ context.Context, path string) (output.ShapeSource, error) {
	m.mu.Lock()
	m.opened = append(m.opened, path)
	m.mu.Unlock()

	if m.openErr != nil {
		return nil, m.openErr
	}
	id := DeriveLayerID(path)
	return newMockSource(id, m.sources[id]...), nil
}

func (m *mockOpener) Supports(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".shp", ".geojson", ".gpkg":
		return true
	}
	return false
}

// mockStorage implements output.ObjectStorage for testing.
type mockStorage struct {
	mu          sync.Mutex
	objects     []output.StorageObject
	downloadErr error
	listErr     error
	downloaded  []string
}

func (m *mockStorage) List(_ context.Context) ([]output.StorageObject, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.objects, nil
}

func (m *mockStorage) Download(_ context.Context, key, _ string) error {
	if m.downloadErr != nil {
		return m.downloadErr
	}
	m.mu.Lock()
	m.downloaded = append(m.downloaded, key)
	m.mu.Unlock()
	return nil
}

func (m *mockStorage) GetReader(_ context.Context, _ string) (io.ReadCloser, error) {
	return nil, nil
}

func (m *mockStorage) Exists(_ context.Context, key string) (bool, error) {
	for _, obj := range m.objects {
		if obj.Key == key {
			return true, nil
		}
	}
	return false, nil
}

// mockRenderer implements output.Renderer and records every call.
type mockRenderer struct {
	calls     []string
	polylines [][]domain.Point
	polygons  [][]domain.Point
	failOn    string
}

func (m *mockRenderer) record(call string) error {
	m.calls = append(m.calls, call)
	if m.failOn != "" && strings.HasPrefix(call, m.failOn) {
		return fmt.Errorf("renderer failed on %s", call)
	}
	return nil
}

func (m *mockRenderer) BeginGroup(id string, _ output.Style) error {
	return m.record("begin " + id)
}

func (m *mockRenderer) Polyline(pts []domain.Point) error {
	m.polylines = append(m.polylines, pts)
	return m.record(fmt.Sprintf("polyline %d", len(pts)))
}

func (m *mockRenderer) Polygon(pts []domain.Point) error {
	m.polygons = append(m.polygons, pts)
	return m.record(fmt.Sprintf("polygon %d", len(pts)))
}

func (m *mockRenderer) EndGroup() error {
	return m.record("end")
}

// mockCanvas writes a line per renderer call to its writer.
type mockCanvas struct {
	mockRenderer
	w io.Writer
}

func (c *mockCanvas) Start() error {
	_, err := fmt.Fprintln(c.w, "start")
	return err
}

func (c *mockCanvas) End() error {
	for _, call := range c.calls {
		if _, err := fmt.Fprintln(c.w, call); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(c.w, "end document")
	return err
}

// mockCanvasFactory implements output.CanvasFactory for testing.
type mockCanvasFactory struct {
	created int
}

func (f *mockCanvasFactory) NewCanvas(w io.Writer, _ output.Viewport) output.Canvas {
	f.created++
	return &mockCanvas{w: w}
}

func (f *mockCanvasFactory) ContentType() string { return "text/plain" }

// mockCache implements output.RenderCache for testing.
type mockCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	purged  int
}

func newMockCache() *mockCache {
	return &mockCache{entries: make(map[string][]byte)}
}

func (c *mockCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.entries[key]
	return data, ok, nil
}

func (c *mockCache) Set(_ context.Context, key string, data []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = data
	return nil
}

func (c *mockCache) Purge(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string][]byte)
	c.purged++
	return nil
}

// countingMetrics records the metrics the services report.
type countingMetrics struct {
	output.NoOpMetrics
	mu             sync.Mutex
	cacheHits      int
	cacheMisses    int
	nonConvergence map[string]int
	renders        map[bool]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{nonConvergence: make(map[string]int), renders: make(map[bool]int)}
}

func (m *countingMetrics) IncCacheLookup(hit bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if hit {
		m.cacheHits++
	} else {
		m.cacheMisses++
	}
}

func (m *countingMetrics) IncNonConvergence(projection string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nonConvergence[projection]++
}

func (m *countingMetrics) IncRenderCount(_ string, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.renders[success]++
}
