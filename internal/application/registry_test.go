package application

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobrunner/travelmap/internal/domain"
	"github.com/jobrunner/travelmap/internal/ports/output"
)

func testShapes() []domain.Shape {
	return []domain.Shape{
		domain.NewShape(domain.KindPolygon, []domain.LonLat{
			{Lon: 10, Lat: 40}, {Lon: 30, Lat: 40}, {Lon: 30, Lat: 60}, {Lon: 10, Lat: 40},
		}),
		domain.NewShape(domain.KindPolygon, []domain.LonLat{
			{Lon: -80, Lat: -10}, {Lon: -50, Lat: -10}, {Lon: -50, Lat: 10}, {Lon: -80, Lat: -10},
		}),
	}
}

func newTestRegistry(opener *mockOpener, storage *mockStorage) *LayerRegistry {
	if opener == nil {
		opener = &mockOpener{}
	}
	if storage == nil {
		storage = &mockStorage{}
	}
	return NewLayerRegistry(opener, storage, &output.NoOpMetrics{}, testLogger(), "/tmp")
}

func TestLayerRegistryLoadUnload(t *testing.T) {
	opener := &mockOpener{sources: map[string][]domain.Shape{"countries": testShapes()}}
	registry := newTestRegistry(opener, nil)
	ctx := context.Background()

	var changed []string
	registry.OnChange(func(id string) { changed = append(changed, id) })

	if err := registry.LoadLayer(ctx, "/data/countries.shp"); err != nil {
		t.Fatalf("LoadLayer failed: %v", err)
	}

	layers, err := registry.ListLayers(ctx)
	if err != nil {
		t.Fatalf("ListLayers failed: %v", err)
	}
	if len(layers) != 1 {
		t.Fatalf("len(layers) = %d, want 1", len(layers))
	}

	layer, err := registry.GetLayer(ctx, "countries")
	if err != nil {
		t.Fatalf("GetLayer failed: %v", err)
	}
	if layer.ShapeCount() != 2 {
		t.Errorf("ShapeCount() = %d, want 2", layer.ShapeCount())
	}
	if layer.Path != "/data/countries.shp" {
		t.Errorf("Path = %q, want %q", layer.Path, "/data/countries.shp")
	}
	if layer.Format != "mock" || layer.Size != 42 {
		t.Errorf("Format, Size = %q, %d, want mock, 42", layer.Format, layer.Size)
	}
	if layer.Kind != domain.KindPolygon {
		t.Errorf("Kind = %v, want polygon", layer.Kind)
	}
	if !registry.IsReady("countries") {
		t.Error("IsReady(countries) = false, want true")
	}

	if err := registry.UnloadLayer(ctx, "countries"); err != nil {
		t.Fatalf("UnloadLayer failed: %v", err)
	}
	if registry.LayerCount() != 0 {
		t.Errorf("LayerCount() = %d, want 0", registry.LayerCount())
	}
	if len(changed) != 2 {
		t.Errorf("OnChange called %d times, want 2", len(changed))
	}
}

func TestLayerRegistryLoadError(t *testing.T) {
	openErr := errors.New("corrupt header")
	registry := newTestRegistry(&mockOpener{openErr: openErr}, nil)
	ctx := context.Background()

	err := registry.LoadLayer(ctx, "/data/broken.shp")
	if !errors.Is(err, openErr) {
		t.Fatalf("LoadLayer error = %v, want %v", err, openErr)
	}

	status, err := registry.GetLayerStatus(ctx, "broken")
	if err != nil {
		t.Fatalf("GetLayerStatus failed: %v", err)
	}
	if status != domain.StatusError {
		t.Errorf("status = %s, want %s", status, domain.StatusError)
	}
	if !errors.Is(registry.LayerError("broken"), openErr) {
		t.Errorf("LayerError() = %v, want %v", registry.LayerError("broken"), openErr)
	}
	if registry.IsReady("broken") {
		t.Error("IsReady(broken) = true, want false")
	}
}

func TestLayerRegistryReadError(t *testing.T) {
	readErr := errors.New("truncated record")
	registry := newTestRegistry(nil, nil)
	registry.opener = openerFunc(func(path string) output.ShapeSource {
		src := newMockSource("roads", testShapes()...)
		src.errAt, src.err = 1, readErr
		return src
	})

	err := registry.LoadLayer(context.Background(), "/data/roads.shp")
	var srcErr *domain.SourceError
	if !errors.As(err, &srcErr) {
		t.Fatalf("LoadLayer error = %v, want SourceError", err)
	}
	if !errors.Is(err, readErr) {
		t.Errorf("errors.Is(err, readErr) = false, want true")
	}
}

// openerFunc adapts a function to output.SourceOpener.
type openerFunc func(path string) output.ShapeSource

func (f openerFunc) Open(_ context.Context, path string) (output.ShapeSource, error) {
	return f(path), nil
}

func (f openerFunc) Supports(string) bool { return true }

func TestLayerRegistryNotFound(t *testing.T) {
	registry := newTestRegistry(nil, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
	}{
		{"GetLayer", func() error { _, err := registry.GetLayer(ctx, "missing"); return err }},
		{"GetLayerStatus", func() error { _, err := registry.GetLayerStatus(ctx, "missing"); return err }},
		{"UnloadLayer", func() error { return registry.UnloadLayer(ctx, "missing") }},
		{"UnloadPath", func() error { return registry.UnloadPath(ctx, "/data/missing.shp") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			if !errors.Is(err, domain.ErrLayerNotFound) {
				t.Errorf("err = %v, want %v", err, domain.ErrLayerNotFound)
			}
			if !errors.Is(err, domain.ErrNotFound) {
				t.Errorf("err = %v, want it to wrap %v", err, domain.ErrNotFound)
			}
		})
	}
}

func TestLayerRegistryIsReady(t *testing.T) {
	registry := newTestRegistry(nil, nil)

	registry.mu.Lock()
	registry.layers["ready"] = &layerEntry{Layer: &domain.Layer{ID: "ready"}, Status: domain.StatusReady}
	registry.layers["loading"] = &layerEntry{Layer: &domain.Layer{ID: "loading"}, Status: domain.StatusLoading}
	registry.mu.Unlock()

	tests := []struct {
		layerID string
		want    bool
	}{
		{"ready", true},
		{"loading", false},
		{"nonexistent", false},
	}

	for _, tt := range tests {
		t.Run(tt.layerID, func(t *testing.T) {
			if got := registry.IsReady(tt.layerID); got != tt.want {
				t.Errorf("IsReady(%q) = %v, want %v", tt.layerID, got, tt.want)
			}
		})
	}

	if got := registry.ReadyCount(); got != 1 {
		t.Errorf("ReadyCount() = %d, want 1", got)
	}
	if got := registry.LayerCount(); got != 2 {
		t.Errorf("LayerCount() = %d, want 2", got)
	}
}

func TestLayerRegistryListLayersSorted(t *testing.T) {
	opener := &mockOpener{sources: map[string][]domain.Shape{}}
	registry := newTestRegistry(opener, nil)
	ctx := context.Background()

	for _, p := range []string{"/d/rivers.shp", "/d/countries.shp", "/d/lakes.geojson"} {
		if err := registry.LoadLayer(ctx, p); err != nil {
			t.Fatalf("LoadLayer(%s) failed: %v", p, err)
		}
	}

	layers, _ := registry.ListLayers(ctx)
	want := []string{"countries", "lakes", "rivers"}
	if len(layers) != len(want) {
		t.Fatalf("len(layers) = %d, want %d", len(layers), len(want))
	}
	for i, l := range layers {
		if l.ID != want[i] {
			t.Errorf("layers[%d].ID = %q, want %q", i, l.ID, want[i])
		}
	}
}

func TestLayerRegistrySync(t *testing.T) {
	storage := &mockStorage{
		objects: []output.StorageObject{
			{Key: "countries.shp"},
			{Key: "countries.dbf"},
			{Key: "countries.shx"},
			{Key: "lakes.geojson"},
			{Key: "README.md"},
		},
	}
	opener := &mockOpener{sources: map[string][]domain.Shape{"countries": testShapes()}}
	registry := newTestRegistry(opener, storage)
	ctx := context.Background()

	registry.mu.Lock()
	registry.layers["stale"] = &layerEntry{Layer: &domain.Layer{ID: "stale"}, Status: domain.StatusReady, Key: "stale.shp"}
	registry.layers["cities"] = &layerEntry{
		Layer:  &domain.Layer{ID: "cities", Path: "postgres://map@db/world?table=public.cities"},
		Status: domain.StatusReady,
	}
	registry.mu.Unlock()

	stats, err := registry.Sync(ctx)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if stats.Added != 2 {
		t.Errorf("Added = %d, want 2", stats.Added)
	}
	if stats.Removed != 1 {
		t.Errorf("Removed = %d, want 1", stats.Removed)
	}
	if registry.IsLoaded("stale") {
		t.Error("stale layer still loaded after sync")
	}
	if !registry.IsLoaded("cities") {
		t.Error("layer opened outside storage was removed by sync")
	}

	downloaded := make(map[string]bool)
	for _, k := range storage.downloaded {
		downloaded[k] = true
	}
	for _, k := range []string{"countries.shp", "countries.dbf", "countries.shx", "lakes.geojson"} {
		if !downloaded[k] {
			t.Errorf("%s not downloaded", k)
		}
	}
	if downloaded["README.md"] {
		t.Error("README.md downloaded, want skipped")
	}

	// A second sync finds nothing new.
	stats, err = registry.Sync(ctx)
	if err != nil {
		t.Fatalf("second Sync failed: %v", err)
	}
	if stats.Added != 0 || stats.Removed != 0 {
		t.Errorf("second Sync = %+v, want no changes", stats)
	}
}

func TestLayerRegistrySyncReloadsChangedObjects(t *testing.T) {
	storage := &mockStorage{
		objects: []output.StorageObject{
			{Key: "countries.shp", ETag: "v1"},
			{Key: "lakes.geojson", Size: 10, LastModified: 1700000000},
		},
	}
	opener := &mockOpener{sources: map[string][]domain.Shape{"countries": testShapes()}}
	registry := newTestRegistry(opener, storage)
	ctx := context.Background()

	require.NoError(t, registry.LoadAll(ctx))
	assert.Equal(t, 2, registry.LayerCount())

	stats, err := registry.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, SyncStats{}, stats, "unchanged objects are not reloaded")

	storage.objects[0].ETag = "v2"
	storage.objects[1].LastModified = 1700000100

	stats, err = registry.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, SyncStats{Updated: 2}, stats)
	assert.True(t, registry.IsReady("countries"))
	assert.True(t, registry.IsReady("lakes"))
}

func TestObjectVersion(t *testing.T) {
	tests := []struct {
		name string
		obj  output.StorageObject
		want string
	}{
		{"etag wins", output.StorageObject{ETag: "abc", Size: 1, LastModified: 2}, "abc"},
		{"size and time", output.StorageObject{Size: 1, LastModified: 2}, "1-2"},
		{"unknown", output.StorageObject{Size: 1}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := objectVersion(tt.obj); got != tt.want {
				t.Errorf("objectVersion() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLayerRegistrySyncListError(t *testing.T) {
	listErr := errors.New("bucket unreachable")
	registry := newTestRegistry(nil, &mockStorage{listErr: listErr})

	if _, err := registry.Sync(context.Background()); !errors.Is(err, listErr) {
		t.Errorf("Sync error = %v, want %v", err, listErr)
	}
}

func TestLayerRegistryLoadAllSkipsFailedDownloads(t *testing.T) {
	storage := &mockStorage{
		objects:     []output.StorageObject{{Key: "countries.shp"}},
		downloadErr: errors.New("timeout"),
	}
	registry := newTestRegistry(&mockOpener{}, storage)

	if err := registry.LoadAll(context.Background()); err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if registry.LayerCount() != 0 {
		t.Errorf("LayerCount() = %d, want 0", registry.LayerCount())
	}
}

func TestDeriveLayerID(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/data/countries.shp", "countries"},
		{"world/ne_110m_land.geojson", "ne_110m_land"},
		{"regions.gpkg", "regions"},
		{"archive.shp.zip", "archive.shp"},
		{"noext", "noext"},
		{"postgres://gis@db/world?table=public.countries&sslmode=disable", "countries"},
		{"postgresql://db/world?table=rivers", "rivers"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := DeriveLayerID(tt.path); got != tt.want {
				t.Errorf("DeriveLayerID(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}
