// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pdiddy/eval-engine/pkg/types"
)

// Memory is an in-process Store.
type Memory struct {
	mu   sync.RWMutex
	data types.Metrics
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(types.Metrics)}
}

// Get returns a copy of the value at p.
func (m *Memory) Get(_ context.Context, p Path) (json.RawMessage, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	raw, ok := m.data.Lookup(p.Metric, p.Domain, p.Field)
	if !ok {
		return nil, false, nil
	}
	return append(json.RawMessage(nil), raw...), true, nil
}

// Set stores the JSON encoding of v at p.
func (m *Memory) Set(_ context.Context, p Path, v any) error {
	raw, err := Marshal(v)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.Put(p.Metric, p.Domain, p.Field, raw)
	return nil
}

// Merge shallow-merges patch into the object at p under the write lock.
func (m *Memory) Merge(_ context.Context, p Path, patch map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, _ := m.data.Lookup(p.Metric, p.Domain, p.Field)
	raw, err := merge(existing, patch)
	if err != nil {
		return err
	}
	m.data.Put(p.Metric, p.Domain, p.Field, raw)
	return nil
}

// Snapshot returns a deep copy of the store.
func (m *Memory) Snapshot(_ context.Context) (types.Metrics, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.Clone(), nil
}

// Replace swaps in a deep copy of data.
func (m *Memory) Replace(_ context.Context, data types.Metrics) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = data.Clone()
	return nil
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }
