package output

import (
	"context"
	"time"
)

// RenderCache defines the secondary port for caching rendered documents.
type RenderCache interface {
	// Get returns the cached document for key.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a document. A zero ttl uses the cache default.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Purge drops all cached documents.
	Purge(ctx context.Context) error
}

// NoOpCache is a RenderCache that never stores anything.
type NoOpCache struct{}

// Get implements RenderCache.
func (NoOpCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

// Set implements RenderCache.
func (NoOpCache) Set(context.Context, string, []byte, time.Duration) error { return nil }

// Purge implements RenderCache.
func (NoOpCache) Purge(context.Context) error { return nil }
