// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists evaluation metrics in a three-level key-value shape:
// metric type → domain → field → JSON value object. Adapters exist for
// memory (tests and in-progress sessions), SQLite, and Redis.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/pdiddy/eval-engine/pkg/types"
)

// DefaultSQLitePath is used when the store config leaves Path empty.
var DefaultSQLitePath = filepath.Join("evaluations", "store", "metrics.db")

// Path addresses one value object in the store.
type Path struct {
	Metric types.MetricType
	Domain string
	Field  string
}

func (p Path) String() string {
	return fmt.Sprintf("%s/%s/%s", p.Metric, p.Domain, p.Field)
}

// Store is the get/set/merge abstraction the engine reads and writes
// through. Values that are stored malformed read back as absent.
type Store interface {
	// Get returns the value at p and whether it exists.
	Get(ctx context.Context, p Path) (json.RawMessage, bool, error)

	// Set replaces the value at p with the JSON encoding of v.
	Set(ctx context.Context, p Path, v any) error

	// Merge shallow-merges patch into the JSON object at p. A missing or
	// non-object value is replaced by patch.
	Merge(ctx context.Context, p Path, patch map[string]any) error

	// Snapshot returns a deep copy of every stored value.
	Snapshot(ctx context.Context) (types.Metrics, error)

	// Replace discards the current contents and stores m.
	Replace(ctx context.Context, m types.Metrics) error

	Close() error
}

// Open returns the store selected by cfg. namespace scopes the keys so one
// database can hold many evaluation passes.
func Open(ctx context.Context, cfg types.StoreConfig, namespace string) (Store, error) {
	if cfg.Namespace != "" {
		namespace = cfg.Namespace + "/" + namespace
	}
	switch cfg.Backend {
	case types.StoreMemory, "":
		return NewMemory(), nil
	case types.StoreSQLite:
		path := cfg.Path
		if path == "" {
			path = DefaultSQLitePath
		}
		return NewSQLite(path, namespace)
	case types.StoreRedis:
		return NewRedis(ctx, cfg, namespace)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// Decode parses a serialized metrics blob. Levels that are not JSON objects
// and values that are not valid JSON are dropped; a wholly malformed blob
// yields an empty store.
func Decode(data []byte) types.Metrics {
	out := make(types.Metrics)
	var metrics map[string]json.RawMessage
	if err := json.Unmarshal(data, &metrics); err != nil {
		return out
	}
	for metric, rawDomains := range metrics {
		var domains map[string]json.RawMessage
		if err := json.Unmarshal(rawDomains, &domains); err != nil {
			continue
		}
		for domain, rawFields := range domains {
			var fields map[string]json.RawMessage
			if err := json.Unmarshal(rawFields, &fields); err != nil {
				continue
			}
			for field, raw := range fields {
				if json.Valid(raw) {
					out.Put(types.MetricType(metric), domain, field, raw)
				}
			}
		}
	}
	return out
}

// Marshal encodes v as a stored value, passing valid raw JSON through
// unchanged.
func Marshal(v any) (json.RawMessage, error) {
	switch t := v.(type) {
	case json.RawMessage:
		if !json.Valid(t) {
			return nil, fmt.Errorf("invalid JSON value")
		}
		return append(json.RawMessage(nil), t...), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding value: %w", err)
	}
	return data, nil
}

// merge applies patch on top of the JSON object in existing.
func merge(existing json.RawMessage, patch map[string]any) (json.RawMessage, error) {
	obj := make(map[string]any)
	if len(existing) > 0 {
		if err := json.Unmarshal(existing, &obj); err != nil || obj == nil {
			obj = make(map[string]any)
		}
	}
	for k, v := range patch {
		obj[k] = v
	}
	return Marshal(obj)
}
