package persist

import (
	"context"
	"sync"
)

// MemoryKV keeps values in process memory.
type MemoryKV struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryKV returns an empty MemoryKV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{values: make(map[string]string)}
}

func (m *MemoryKV) Available() bool { return true }

func (m *MemoryKV) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryKV) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// NoopKV is never available. It stands in for runtimes without durable storage.
type NoopKV struct{}

func (NoopKV) Available() bool { return false }

func (NoopKV) Get(context.Context, string) (string, bool, error) { return "", false, nil }

func (NoopKV) Set(context.Context, string, string) error { return nil }
