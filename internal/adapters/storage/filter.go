// Package storage provides object storage adapters for layer files.
package storage

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/jobrunner/travelmap/internal/domain"
)

// layerExtensions are the file types that make up a layer. Shapefile
// companions (.dbf, .shx, .prj, .cpg) are fetched alongside their .shp and
// are not listed on their own.
var layerExtensions = map[string]bool{
	".shp":     true,
	".zip":     true,
	".geojson": true,
	".json":    true,
	".gpkg":    true,
}

// IsLayerFile reports whether a key names a loadable layer file.
func IsLayerFile(key string) bool {
	return layerExtensions[strings.ToLower(path.Ext(key))]
}

// relativeKey strips the storage prefix from an object name.
func relativeKey(name, prefix string) string {
	return strings.TrimPrefix(strings.TrimPrefix(name, prefix), "/")
}

// joinKey prepends the storage prefix to a key.
func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return strings.TrimSuffix(prefix, "/") + "/" + key
}

// opener returns the body of a stored object.
type opener func(ctx context.Context, key string) (io.ReadCloser, error)

// download copies the object at key to dest.
func download(ctx context.Context, open opener, key, dest string) error {
	body, err := open(ctx, key)
	if err != nil {
		return &domain.StorageError{Operation: "download", Key: key, Err: err}
	}
	defer func() { _ = body.Close() }()

	if err := writeFile(dest, body); err != nil {
		return &domain.StorageError{Operation: "download", Key: key, Err: err}
	}
	return nil
}

// writeFile streams r into a temporary file next to dest and renames it,
// so a watcher or a reader never opens a half-written layer. The
// temporary name ends in .part and is not a layer file.
func writeFile(dest string, r io.Reader) error {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(dest)+".*.part")
	if err != nil {
		return err
	}
	tmp := f.Name()

	_, err = io.Copy(f, r)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Rename(tmp, dest)
	}
	if err != nil {
		_ = os.Remove(tmp)
	}
	return err
}
