// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/pdiddy/eval-engine/pkg/types"
)

const redisKeyPrefix = "evalengine:"

// Redis stores each (metric, domain) pair as one hash whose fields are the
// field ids.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis connects to cfg.RedisAddr and verifies the connection.
func NewRedis(ctx context.Context, cfg types.StoreConfig, namespace string) (*Redis, error) {
	if cfg.RedisAddr == "" {
		return nil, fmt.Errorf("redis store requires redis_addr")
	}
	client := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
		DB:   cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.RedisAddr, err)
	}
	return &Redis{client: client, prefix: redisPrefix(namespace)}, nil
}

// redisPrefix query-escapes namespace so it holds neither ':' nor a SCAN
// glob character, and no namespace's keys match another's prefix.
func redisPrefix(namespace string) string {
	return redisKeyPrefix + url.QueryEscape(namespace) + ":"
}

func (r *Redis) key(metric types.MetricType, domain string) string {
	return r.prefix + string(metric) + ":" + domain
}

// Get reads field p.Field of the (metric, domain) hash.
func (r *Redis) Get(ctx context.Context, p Path) (json.RawMessage, bool, error) {
	val, err := r.client.HGet(ctx, r.key(p.Metric, p.Domain), p.Field).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading %s: %w", p, err)
	}
	if !json.Valid([]byte(val)) {
		return nil, false, nil
	}
	return json.RawMessage(val), true, nil
}

// Set writes the JSON encoding of v into the (metric, domain) hash.
func (r *Redis) Set(ctx context.Context, p Path, v any) error {
	raw, err := Marshal(v)
	if err != nil {
		return err
	}
	if err := r.client.HSet(ctx, r.key(p.Metric, p.Domain), p.Field, string(raw)).Err(); err != nil {
		return fmt.Errorf("writing %s: %w", p, err)
	}
	return nil
}

// Merge reads and rewrites the value under WATCH so concurrent writers to
// the same hash retry instead of losing updates.
func (r *Redis) Merge(ctx context.Context, p Path, patch map[string]any) error {
	key := r.key(p.Metric, p.Domain)
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		existing, err := tx.HGet(ctx, key, p.Field).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		raw, err := merge(json.RawMessage(existing), patch)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, p.Field, string(raw))
			return nil
		})
		return err
	}, key)
	if err != nil {
		return fmt.Errorf("merging %s: %w", p, err)
	}
	return nil
}

func (r *Redis) keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scanning keys: %w", err)
	}
	return keys, nil
}

// Snapshot reads every hash under this namespace's prefix.
func (r *Redis) Snapshot(ctx context.Context) (types.Metrics, error) {
	keys, err := r.keys(ctx)
	if err != nil {
		return nil, err
	}
	out := make(types.Metrics)
	for _, key := range keys {
		metric, domain, ok := strings.Cut(strings.TrimPrefix(key, r.prefix), ":")
		if !ok {
			continue
		}
		fields, err := r.client.HGetAll(ctx, key).Result()
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", key, err)
		}
		for field, val := range fields {
			if json.Valid([]byte(val)) {
				out.Put(types.MetricType(metric), domain, field, json.RawMessage(val))
			}
		}
	}
	return out, nil
}

// Replace deletes this namespace's hashes and writes m in one MULTI/EXEC
// transaction.
func (r *Redis) Replace(ctx context.Context, m types.Metrics) error {
	keys, err := r.keys(ctx)
	if err != nil {
		return err
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(keys) > 0 {
			pipe.Del(ctx, keys...)
		}
		for metric, domains := range m {
			for domain, fields := range domains {
				values := make([]any, 0, 2*len(fields))
				for field, raw := range fields {
					values = append(values, field, string(raw))
				}
				if len(values) > 0 {
					pipe.HSet(ctx, r.key(metric, domain), values...)
				}
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replacing metrics: %w", err)
	}
	return nil
}

// Close releases the client connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}
