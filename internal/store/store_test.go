// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/eval-engine/pkg/types"
)

func backends(t *testing.T) map[string]func(t *testing.T, ns string) Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "store", "metrics.db")
	b := map[string]func(t *testing.T, ns string) Store{
		"memory": func(t *testing.T, _ string) Store { return NewMemory() },
		"sqlite": func(t *testing.T, ns string) Store {
			s, err := NewSQLite(dbPath, ns)
			require.NoError(t, err)
			return s
		},
	}
	if addr := os.Getenv("EVAL_ENGINE_REDIS_ADDR"); addr != "" {
		b["redis"] = func(t *testing.T, ns string) Store {
			s, err := NewRedis(context.Background(), types.StoreConfig{RedisAddr: addr}, "test-"+t.Name()+"-"+ns)
			require.NoError(t, err)
			require.NoError(t, s.Replace(context.Background(), types.Metrics{}))
			return s
		}
	}
	return b
}

func TestStoreContract(t *testing.T) {
	ctx := context.Background()
	title := Path{Metric: types.MetricAccuracy, Domain: "metadata", Field: "title"}

	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t, "paper-1/alice")
			t.Cleanup(func() { s.Close() })

			_, ok, err := s.Get(ctx, title)
			require.NoError(t, err)
			assert.False(t, ok, "empty store has no values")

			require.NoError(t, s.Set(ctx, title, map[string]any{"score": 0.8, "rating": 4}))
			raw, ok, err := s.Get(ctx, title)
			require.NoError(t, err)
			require.True(t, ok)
			assert.JSONEq(t, `{"score": 0.8, "rating": 4}`, string(raw))

			require.NoError(t, s.Merge(ctx, title, map[string]any{"rating": 5, "comments": "ok"}))
			raw, _, err = s.Get(ctx, title)
			require.NoError(t, err)
			assert.JSONEq(t, `{"score": 0.8, "rating": 5, "comments": "ok"}`, string(raw))

			merged := Path{Metric: types.MetricQuality, Domain: "template", Field: "properties"}
			require.NoError(t, s.Merge(ctx, merged, map[string]any{"score": 1}))
			raw, ok, err = s.Get(ctx, merged)
			require.NoError(t, err)
			require.True(t, ok)
			assert.JSONEq(t, `{"score": 1}`, string(raw))

			snap, err := s.Snapshot(ctx)
			require.NoError(t, err)
			assert.Len(t, snap, 2)
			_, ok = snap.Lookup(types.MetricQuality, "template", "properties")
			assert.True(t, ok)

			replacement := types.Metrics{}
			replacement.Put(types.MetricOverall, "content", "summary", json.RawMessage(`{"overallScore":0.5}`))
			require.NoError(t, s.Replace(ctx, replacement))

			snap, err = s.Snapshot(ctx)
			require.NoError(t, err)
			assert.Equal(t, replacement, snap)
			_, ok, err = s.Get(ctx, title)
			require.NoError(t, err)
			assert.False(t, ok, "replace discards previous values")
		})
	}
}

func TestNamespacesIsolated(t *testing.T) {
	ctx := context.Background()
	p := Path{Metric: types.MetricOverall, Domain: "metadata", Field: "title"}

	for name, open := range backends(t) {
		if name == "memory" {
			continue
		}
		t.Run(name, func(t *testing.T) {
			a := open(t, "paper-1")
			defer a.Close()
			require.NoError(t, a.Set(ctx, p, 1))

			for _, ns := range []string{"paper-1/bob", "paper-1:bob", "paper-1*"} {
				b := open(t, ns)
				require.NoError(t, b.Replace(ctx, types.Metrics{}))
				require.NoError(t, b.Close())
			}

			_, ok, err := a.Get(ctx, p)
			require.NoError(t, err)
			assert.True(t, ok, "replacing another namespace leaves this one untouched")
		})
	}
}

func TestRedisPrefix(t *testing.T) {
	tests := []struct {
		name string
		a, b string
	}{
		{"colon extension", "paper-1", "paper-1:alice"},
		{"glob star", "paper-1", "paper-1*"},
		{"glob class", "paper-[1]", "paper-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pa, pb := redisPrefix(tt.a), redisPrefix(tt.b)
			assert.False(t, strings.HasPrefix(pb, pa))
			assert.False(t, strings.HasPrefix(pa, pb))
			for _, p := range []string{pa, pb} {
				body := strings.TrimSuffix(strings.TrimPrefix(p, redisKeyPrefix), ":")
				assert.NotContains(t, body, ":")
				assert.False(t, strings.ContainsAny(body, `*?[]\`), "no glob characters in %q", body)
			}
		})
	}
}

func TestSQLiteMalformedValueReadsAbsent(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "metrics.db"), "ns")
	require.NoError(t, err)
	defer s.Close()

	_, err = s.db.Exec(`INSERT INTO metrics (namespace, metric, domain, field, value, updated_at)
		VALUES ('ns', 'overall', 'metadata', 'title', '{not json', '')`)
	require.NoError(t, err)

	_, ok, err := s.Get(ctx, Path{Metric: types.MetricOverall, Domain: "metadata", Field: "title"})
	require.NoError(t, err)
	assert.False(t, ok)

	snap, err := s.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap)
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  int
	}{
		{"empty input", ``, 0},
		{"not json", `localStorage garbage`, 0},
		{"wrong top-level type", `[1, 2]`, 0},
		{"valid", `{"accuracy": {"metadata": {"title": {"score": 1}}}}`, 1},
		{"skips malformed levels", `{"accuracy": {"metadata": "oops", "content": {"x": 1}}, "quality": 5}`, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Decode([]byte(tt.input))
			require.NotNil(t, m)
			count := 0
			for _, domains := range m {
				for _, fields := range domains {
					count += len(fields)
				}
			}
			assert.Equal(t, tt.want, count)
		})
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, types.StoreConfig{}, "ns")
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	s, err = Open(ctx, types.StoreConfig{Backend: types.StoreSQLite, Path: filepath.Join(t.TempDir(), "m.db")}, "ns")
	require.NoError(t, err)
	assert.IsType(t, &SQLite{}, s)
	s.Close()

	_, err = Open(ctx, types.StoreConfig{Backend: types.StoreRedis}, "ns")
	assert.Error(t, err)

	_, err = Open(ctx, types.StoreConfig{Backend: "etcd"}, "ns")
	assert.ErrorContains(t, err, "unknown store backend")
}
