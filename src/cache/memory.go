package cache

import (
	"context"
	"sync"

	"github.com/golang/groupcache/lru"
)

// DefaultMaxEntries bounds a memory store created with a non-positive size.
const DefaultMaxEntries = 1024

// Memory is an in-process LRU store bounded by entry count.
type Memory struct {
	mu    sync.Mutex
	cache *lru.Cache
}

// NewMemory creates a memory store holding at most maxEntries pages.
func NewMemory(maxEntries int) *Memory {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Memory{cache: lru.New(maxEntries)}
}

func (m *Memory) Get(_ context.Context, key Key) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.cache.Get(key.String())
	if !ok {
		return nil, nil
	}
	return v.(*Entry), nil
}

func (m *Memory) Put(_ context.Context, key Key, entry *Entry) error {
	if entry == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache.Add(key.String(), entry)
	return nil
}

// Len returns the number of cached pages.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cache.Len()
}
