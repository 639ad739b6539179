// Package cache provides RenderCache implementations: an in-process LRU
// and a shared Redis cache.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

type entry struct {
	data    []byte
	expires time.Time
}

// Memory is an LRU cache of rendered documents with per-entry expiry.
type Memory struct {
	lru *lru.Cache
	ttl time.Duration
	now func() time.Time
	mu  sync.Mutex
}

// NewMemory creates a cache holding at most size documents. Entries
// without their own ttl live for ttl; zero means forever.
func NewMemory(size int, ttl time.Duration) (*Memory, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("creating lru cache: %w", err)
	}
	return &Memory{lru: c, ttl: ttl, now: time.Now}, nil
}

// Get implements output.RenderCache.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	e := v.(entry)
	if !e.expires.IsZero() && m.now().After(e.expires) {
		m.lru.Remove(key)
		return nil, false, nil
	}
	return e.data, true, nil
}

// Set implements output.RenderCache.
func (m *Memory) Set(_ context.Context, key string, data []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = m.ttl
	}
	e := entry{data: data}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}

	m.mu.Lock()
	m.lru.Add(key, e)
	m.mu.Unlock()
	return nil
}

// Purge implements output.RenderCache.
func (m *Memory) Purge(_ context.Context) error {
	m.lru.Purge()
	return nil
}

// Len returns the number of cached documents, expired ones included.
func (m *Memory) Len() int {
	return m.lru.Len()
}
