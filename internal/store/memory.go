package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryKV is an in-process ConditionalKV.
type MemoryKV struct {
	mu       sync.Mutex
	data     map[string]string
	maxValue int
}

// NewMemoryKV returns an empty store. maxValue <= 0 disables the size check.
func NewMemoryKV(maxValue int) *MemoryKV {
	return &MemoryKV{data: make(map[string]string), maxValue: maxValue}
}

func (m *MemoryKV) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemoryKV) Put(_ context.Context, key, value string) error {
	if m.maxValue > 0 && len(value) > m.maxValue {
		return &StorageError{Op: "put", Key: key, Err: fmt.Errorf("%w: %d > %d bytes", ErrValueTooLarge, len(value), m.maxValue)}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MemoryKV) PutIfAbsent(ctx context.Context, key, value string) (bool, error) {
	if m.maxValue > 0 && len(value) > m.maxValue {
		return false, &StorageError{Op: "put", Key: key, Err: fmt.Errorf("%w: %d > %d bytes", ErrValueTooLarge, len(value), m.maxValue)}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = value
	return true, nil
}

func (m *MemoryKV) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *MemoryKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MemoryKV) Close() error { return nil }
