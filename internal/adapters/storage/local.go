package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/jobrunner/travelmap/internal/domain"
	"github.com/jobrunner/travelmap/internal/ports/output"
)

// LocalStorage serves layer files from a directory tree. Keys are slash
// separated paths relative to the root.
type LocalStorage struct {
	root string
}

// NewLocalStorage creates a local storage adapter rooted at dir.
func NewLocalStorage(dir string) *LocalStorage {
	return &LocalStorage{root: dir}
}

// List walks the root in lexical order.
func (s *LocalStorage) List(ctx context.Context) ([]output.StorageObject, error) {
	var objects []output.StorageObject
	walk := func(p string, d fs.DirEntry, err error) error {
		switch {
		case err != nil:
			return err
		case ctx.Err() != nil:
			return ctx.Err()
		case d.IsDir(), !IsLayerFile(d.Name()):
			return nil
		}
		obj, err := s.object(p, d)
		if err != nil {
			return err
		}
		objects = append(objects, obj)
		return nil
	}
	if err := filepath.WalkDir(s.root, walk); err != nil {
		return nil, &domain.StorageError{Operation: "list", Key: s.root, Err: err}
	}
	return objects, nil
}

func (s *LocalStorage) object(p string, d fs.DirEntry) (output.StorageObject, error) {
	info, err := d.Info()
	if err != nil {
		return output.StorageObject{}, err
	}
	rel, err := filepath.Rel(s.root, p)
	if err != nil {
		return output.StorageObject{}, err
	}
	return output.StorageObject{
		Key:          filepath.ToSlash(rel),
		Size:         info.Size(),
		LastModified: info.ModTime().Unix(),
	}, nil
}

// Download copies a file to dest. Copying a file onto itself does nothing,
// which is the usual case when the sync directory is the root.
func (s *LocalStorage) Download(ctx context.Context, key string, dest string) error {
	src, err := s.resolve(key)
	if err != nil {
		return &domain.StorageError{Operation: "download", Key: key, Err: err}
	}
	if src == filepath.Clean(dest) {
		return nil
	}
	return download(ctx, s.GetReader, key, dest)
}

// GetReader opens a file below the root.
func (s *LocalStorage) GetReader(_ context.Context, key string) (io.ReadCloser, error) {
	p, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	return os.Open(p) //#nosec G304 -- resolve keeps p below the root
}

// Exists reports whether a file exists below the root.
func (s *LocalStorage) Exists(_ context.Context, key string) (bool, error) {
	p, err := s.resolve(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(p)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, &domain.StorageError{Operation: "exists", Key: key, Err: err}
	}
}

// FullPath joins a key onto the root without checking it.
func (s *LocalStorage) FullPath(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

// resolve is FullPath for keys that must stay below the root.
func (s *LocalStorage) resolve(key string) (string, error) {
	p := s.FullPath(key)
	rel, err := filepath.Rel(filepath.Clean(s.root), p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("key %q leaves the storage root: %w", key, domain.ErrInvalidInput)
	}
	return p, nil
}
