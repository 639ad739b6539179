// Package output defines the driven ports: where layer files, shapes and
// rendered maps come from and go to.
package output

import (
	"context"
	"io"
)

// ObjectStorage is a flat store of layer files addressed by key. Keys use
// forward slashes and are relative to the backend's configured prefix.
type ObjectStorage interface {
	// List returns the layer files, skipping sidecar files.
	List(ctx context.Context) ([]StorageObject, error)

	// Download writes the object to dest. A partial download never
	// replaces an existing file.
	Download(ctx context.Context, key string, dest string) error

	GetReader(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists reports false without an error when the key is missing.
	Exists(ctx context.Context, key string) (bool, error)
}

// StorageObject describes one stored layer file. Backends fill what they
// know; an HTTP index may carry nothing but the key.
type StorageObject struct {
	Key          string
	Size         int64
	LastModified int64 // unix seconds
	ETag         string
}
