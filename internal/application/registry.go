// Package application contains the application services.
package application

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jobrunner/travelmap/internal/domain"
	"github.com/jobrunner/travelmap/internal/ports/output"
)

// shapefileCompanions are downloaded next to a .shp file when present.
var shapefileCompanions = []string{".dbf", ".shx", ".prj", ".cpg"}

// LayerRegistry manages loaded shape layers.
type LayerRegistry struct {
	mu        sync.RWMutex
	layers    map[string]*layerEntry
	opener    output.SourceOpener
	storage   output.ObjectStorage
	metrics   output.MetricsCollector
	logger    *slog.Logger
	localPath string
	onChange  func(layerID string)
}

type layerEntry struct {
	Layer  *domain.Layer
	Status domain.LayerStatus
	Error  error

	// Key and Version name the storage object a layer was fetched from.
	// Both are empty for layers opened directly, e.g. PostGIS tables.
	Key     string
	Version string
}

// NewLayerRegistry creates a new layer registry.
func NewLayerRegistry(
	opener output.SourceOpener,
	storage output.ObjectStorage,
	metrics output.MetricsCollector,
	logger *slog.Logger,
	localPath string,
) *LayerRegistry {
	return &LayerRegistry{
		layers:    make(map[string]*layerEntry),
		opener:    opener,
		storage:   storage,
		metrics:   metrics,
		logger:    logger,
		localPath: localPath,
	}
}

// OnChange registers a callback invoked after a layer is loaded or
// unloaded. Used to invalidate rendered documents.
func (r *LayerRegistry) OnChange(fn func(layerID string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = fn
}

// LoadLayer reads all shapes from the source at path and indexes them.
// Loading a path whose layer is already registered replaces it.
func (r *LayerRegistry) LoadLayer(ctx context.Context, path string) error {
	layerID := DeriveLayerID(path)
	r.logger.Info("loading layer", "id", layerID, "path", path)

	r.mu.Lock()
	r.layers[layerID] = &layerEntry{
		Layer:  &domain.Layer{ID: layerID, Name: layerID, Path: path},
		Status: domain.StatusLoading,
	}
	r.mu.Unlock()

	layer, err := r.readLayer(ctx, layerID, path)
	if err != nil {
		r.logger.Error("failed to load layer", "id", layerID, "path", path, "error", err)
		r.mu.Lock()
		if entry, ok := r.layers[layerID]; ok {
			entry.Status = domain.StatusError
			entry.Error = err
		}
		r.mu.Unlock()
		r.updateMetrics()
		return err
	}

	r.mu.Lock()
	r.layers[layerID] = &layerEntry{Layer: layer, Status: domain.StatusReady}
	onChange := r.onChange
	r.mu.Unlock()

	r.updateMetrics()
	if onChange != nil {
		onChange(layerID)
	}
	r.logger.Info("layer loaded",
		"id", layerID,
		"shapes", layer.ShapeCount(),
		"kind", layer.Kind.String(),
		"format", layer.Format,
	)
	return nil
}

// readLayer opens the source, drains it and builds the indexed layer.
func (r *LayerRegistry) readLayer(ctx context.Context, layerID, path string) (*domain.Layer, error) {
	src, err := r.opener.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = src.Close() }()

	var shapes []domain.Shape
	for shape, err := range src.Shapes(ctx) {
		if err != nil {
			return nil, &domain.SourceError{Source: path, Err: err}
		}
		shapes = append(shapes, shape)
	}
	r.metrics.AddShapesRead(layerID, len(shapes))

	r.mu.Lock()
	if entry, ok := r.layers[layerID]; ok {
		entry.Status = domain.StatusIndexing
	}
	r.mu.Unlock()

	layer := domain.NewLayer(layerID, src.Name(), shapes)
	layer.Path = path
	layer.LoadedAt = time.Now()
	if d, ok := src.(output.Describer); ok {
		info := d.Info()
		layer.Format = info.Format
		layer.Size = info.Size
		layer.License = info.License
	}
	if layer.Size == 0 {
		if fi, err := os.Stat(path); err == nil {
			layer.Size = fi.Size()
		}
	}
	return layer, nil
}

// UnloadLayer removes a layer.
func (r *LayerRegistry) UnloadLayer(_ context.Context, layerID string) error {
	r.logger.Info("unloading layer", "id", layerID)

	r.mu.Lock()
	if _, ok := r.layers[layerID]; !ok {
		r.mu.Unlock()
		return fmt.Errorf("%s: %w", layerID, domain.ErrLayerNotFound)
	}
	delete(r.layers, layerID)
	onChange := r.onChange
	r.mu.Unlock()

	r.updateMetrics()
	if onChange != nil {
		onChange(layerID)
	}
	return nil
}

// UnloadPath removes the layer that was loaded from path, if any.
func (r *LayerRegistry) UnloadPath(ctx context.Context, path string) error {
	return r.UnloadLayer(ctx, DeriveLayerID(path))
}

// ListLayers returns all registered layers sorted by ID.
func (r *LayerRegistry) ListLayers(_ context.Context) ([]*domain.Layer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	layers := make([]*domain.Layer, 0, len(r.layers))
	for _, entry := range r.layers {
		layers = append(layers, entry.Layer)
	}
	sort.Slice(layers, func(i, j int) bool { return layers[i].ID < layers[j].ID })
	return layers, nil
}

// GetLayer returns a specific layer by ID.
func (r *LayerRegistry) GetLayer(_ context.Context, id string) (*domain.Layer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.layers[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, domain.ErrLayerNotFound)
	}
	return entry.Layer, nil
}

// GetLayerStatus returns the status of a layer.
func (r *LayerRegistry) GetLayerStatus(_ context.Context, id string) (domain.LayerStatus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.layers[id]
	if !ok {
		return "", fmt.Errorf("%s: %w", id, domain.ErrLayerNotFound)
	}
	return entry.Status, nil
}

// IsReady returns true if a layer can be drawn.
func (r *LayerRegistry) IsReady(layerID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.layers[layerID]
	return ok && entry.Status == domain.StatusReady
}

// LayerError returns the load error of a failed layer.
func (r *LayerRegistry) LayerError(layerID string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if entry, ok := r.layers[layerID]; ok {
		return entry.Error
	}
	return nil
}

// IsLoaded returns true if a layer with the given ID is registered.
func (r *LayerRegistry) IsLoaded(layerID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.layers[layerID]
	return ok
}

// LayerCount returns the number of registered layers.
func (r *LayerRegistry) LayerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.layers)
}

// ReadyCount returns the number of layers ready to draw.
func (r *LayerRegistry) ReadyCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ready := 0
	for _, entry := range r.layers {
		if entry.Status == domain.StatusReady {
			ready++
		}
	}
	return ready
}

// updateMetrics updates the metrics collector with current layer counts.
func (r *LayerRegistry) updateMetrics() {
	r.metrics.SetLayersLoaded(r.LayerCount())
	r.metrics.SetLayersReady(r.ReadyCount())
}

// LoadAll loads all shape layers from storage.
func (r *LayerRegistry) LoadAll(ctx context.Context) error {
	r.logger.Info("loading all layers from storage")

	objects, err := r.storage.List(ctx)
	if err != nil {
		return err
	}

	for _, obj := range r.layerObjects(objects) {
		if err := r.loadObject(ctx, obj); err != nil {
			r.logger.Error("failed to load layer", "key", obj.Key, "error", err)
		}
	}
	return nil
}

// layerObjects keeps the objects that open as a layer. Companion files
// of shapefiles are fetched with their .shp and skipped here.
func (r *LayerRegistry) layerObjects(objects []output.StorageObject) []output.StorageObject {
	out := make([]output.StorageObject, 0, len(objects))
	for _, obj := range objects {
		if r.opener.Supports(obj.Key) {
			out = append(out, obj)
		}
	}
	return out
}

// loadObject fetches a stored layer, loads it and remembers which object
// version it came from.
func (r *LayerRegistry) loadObject(ctx context.Context, obj output.StorageObject) error {
	localPath, err := r.fetch(ctx, obj.Key)
	if err != nil {
		return err
	}
	if err := r.LoadLayer(ctx, localPath); err != nil {
		return err
	}

	r.mu.Lock()
	if entry, ok := r.layers[DeriveLayerID(obj.Key)]; ok {
		entry.Key = obj.Key
		entry.Version = objectVersion(obj)
	}
	r.mu.Unlock()
	return nil
}

// objectVersion identifies the content of a stored object. An empty
// version means the backend cannot tell and the object counts as unchanged.
func objectVersion(obj output.StorageObject) string {
	switch {
	case obj.ETag != "":
		return obj.ETag
	case obj.LastModified != 0:
		return fmt.Sprintf("%d-%d", obj.Size, obj.LastModified)
	}
	return ""
}

// fetch downloads an object and, for shapefiles, its companion files.
func (r *LayerRegistry) fetch(ctx context.Context, key string) (string, error) {
	localPath := filepath.Join(r.localPath, key)
	if err := r.download(ctx, key, localPath); err != nil {
		return "", err
	}

	ext := filepath.Ext(key)
	if !strings.EqualFold(ext, ".shp") {
		return localPath, nil
	}
	base := strings.TrimSuffix(key, ext)
	for _, companion := range shapefileCompanions {
		ckey := base + companion
		exists, err := r.storage.Exists(ctx, ckey)
		if err != nil || !exists {
			continue
		}
		if err := r.download(ctx, ckey, filepath.Join(r.localPath, ckey)); err != nil {
			r.logger.Warn("failed to download shapefile companion", "key", ckey, "error", err)
		}
	}
	return localPath, nil
}

func (r *LayerRegistry) download(ctx context.Context, key, dest string) error {
	start := time.Now()
	err := r.storage.Download(ctx, key, dest)
	r.metrics.IncStorageOperations("download", err == nil)
	r.metrics.ObserveStorageDuration("download", time.Since(start))
	return err
}

// SyncStats contains statistics from a sync operation.
type SyncStats struct {
	Added   int
	Updated int
	Removed int
}

// Sync brings the registry in line with remote storage. New objects are
// loaded, objects whose version changed are reloaded and layers whose
// object disappeared are removed. Layers that did not come from storage,
// such as PostGIS tables, are left alone.
func (r *LayerRegistry) Sync(ctx context.Context) (SyncStats, error) {
	r.logger.Info("syncing layers from storage")

	objects, err := r.storage.List(ctx)
	if err != nil {
		return SyncStats{}, err
	}

	remote := make(map[string]output.StorageObject)
	for _, obj := range r.layerObjects(objects) {
		remote[DeriveLayerID(obj.Key)] = obj
	}

	var stats SyncStats
	for layerID, obj := range remote {
		loaded, current := r.storedVersion(layerID)
		version := objectVersion(obj)
		if loaded && (version == "" || version == current) {
			continue
		}

		if err := r.loadObject(ctx, obj); err != nil {
			r.logger.Error("failed to sync layer", "key", obj.Key, "error", err)
			continue
		}
		if loaded {
			stats.Updated++
			r.logger.Info("changed layer reloaded", "id", layerID, "version", version)
		} else {
			stats.Added++
			r.logger.Info("new layer synced", "id", layerID)
		}
	}

	for _, entry := range r.storedLayersMissingFrom(remote) {
		r.logger.Info("removing layer not in remote storage", "id", entry.id)
		if err := r.UnloadLayer(ctx, entry.id); err != nil {
			r.logger.Error("failed to unload removed layer", "id", entry.id, "error", err)
			continue
		}
		if entry.path != "" {
			if err := os.Remove(entry.path); err != nil && !os.IsNotExist(err) {
				r.logger.Warn("failed to delete local copy", "path", entry.path, "error", err)
			}
		}
		stats.Removed++
	}

	r.logger.Info("sync completed",
		"added", stats.Added,
		"updated", stats.Updated,
		"removed", stats.Removed,
		"total", r.LayerCount(),
	)
	return stats, nil
}

// storedVersion reports whether a layer is registered and the version of
// the object it was loaded from.
func (r *LayerRegistry) storedVersion(layerID string) (bool, string) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.layers[layerID]
	if !ok {
		return false, ""
	}
	return true, entry.Version
}

type storedLayer struct {
	id   string
	path string
}

// storedLayersMissingFrom returns the layers loaded from storage whose
// object is no longer listed, sorted by ID.
func (r *LayerRegistry) storedLayersMissingFrom(remote map[string]output.StorageObject) []storedLayer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var missing []storedLayer
	for id, entry := range r.layers {
		if entry.Key == "" {
			continue
		}
		if _, ok := remote[id]; ok {
			continue
		}
		layer := storedLayer{id: id}
		if entry.Layer != nil {
			layer.path = entry.Layer.Path
		}
		missing = append(missing, layer)
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i].id < missing[j].id })
	return missing
}

// DeriveLayerID extracts a layer ID from a file path or object key. For a
// PostGIS DSN the ID is the table name without its schema.
func DeriveLayerID(path string) string {
	if u, err := url.Parse(path); err == nil && (u.Scheme == "postgres" || u.Scheme == "postgresql") {
		if table := u.Query().Get("table"); table != "" {
			return table[strings.LastIndex(table, ".")+1:]
		}
	}
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	return base[:len(base)-len(ext)]
}
