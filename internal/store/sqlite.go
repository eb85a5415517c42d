// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/eval-engine/pkg/types"
)

// SQLite stores metrics in a single table keyed by namespace, metric,
// domain, and field.
type SQLite struct {
	db        *sql.DB
	namespace string
}

// NewSQLite opens or creates the database at path and its schema.
func NewSQLite(path, namespace string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &SQLite{db: db, namespace: namespace}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

func (s *SQLite) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS metrics (
			namespace TEXT NOT NULL,
			metric TEXT NOT NULL,
			domain TEXT NOT NULL,
			field TEXT NOT NULL,
			value TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (namespace, metric, domain, field)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_metrics_namespace ON metrics(namespace)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Close releases the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Get returns the value at p in this namespace. A stored value that is not
// valid JSON reads as absent.
func (s *SQLite) Get(ctx context.Context, p Path) (json.RawMessage, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM metrics WHERE namespace = ? AND metric = ? AND domain = ? AND field = ?`,
		s.namespace, string(p.Metric), p.Domain, p.Field,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading %s: %w", p, err)
	}
	if !json.Valid([]byte(value)) {
		return nil, false, nil
	}
	return json.RawMessage(value), true, nil
}

// Set upserts the JSON encoding of v at p.
func (s *SQLite) Set(ctx context.Context, p Path, v any) error {
	raw, err := Marshal(v)
	if err != nil {
		return err
	}
	return s.upsert(ctx, s.db, p, raw)
}

// Merge reads and rewrites the value at p in one transaction.
func (s *SQLite) Merge(ctx context.Context, p Path, patch map[string]any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var existing string
	err = tx.QueryRowContext(ctx,
		`SELECT value FROM metrics WHERE namespace = ? AND metric = ? AND domain = ? AND field = ?`,
		s.namespace, string(p.Metric), p.Domain, p.Field,
	).Scan(&existing)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("reading %s: %w", p, err)
	}

	raw, err := merge(json.RawMessage(existing), patch)
	if err != nil {
		return err
	}
	if err := s.upsert(ctx, tx, p, raw); err != nil {
		return err
	}
	return tx.Commit()
}

// Snapshot returns every valid row of this namespace.
func (s *SQLite) Snapshot(ctx context.Context) (types.Metrics, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT metric, domain, field, value FROM metrics WHERE namespace = ?`, s.namespace)
	if err != nil {
		return nil, fmt.Errorf("querying metrics: %w", err)
	}
	defer rows.Close()

	out := make(types.Metrics)
	for rows.Next() {
		var metric, domain, field, value string
		if err := rows.Scan(&metric, &domain, &field, &value); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		if !json.Valid([]byte(value)) {
			continue
		}
		out.Put(types.MetricType(metric), domain, field, json.RawMessage(value))
	}
	return out, rows.Err()
}

// Replace deletes this namespace's rows and inserts m in one transaction.
// Other namespaces in the same database are untouched.
func (s *SQLite) Replace(ctx context.Context, m types.Metrics) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM metrics WHERE namespace = ?`, s.namespace); err != nil {
		return fmt.Errorf("clearing metrics: %w", err)
	}
	for metric, domains := range m {
		for domain, fields := range domains {
			for field, raw := range fields {
				p := Path{Metric: metric, Domain: domain, Field: field}
				if err := s.upsert(ctx, tx, p, raw); err != nil {
					return err
				}
			}
		}
	}
	return tx.Commit()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLite) upsert(ctx context.Context, ex execer, p Path, raw json.RawMessage) error {
	_, err := ex.ExecContext(ctx,
		`INSERT INTO metrics (namespace, metric, domain, field, value, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(namespace, metric, domain, field) DO UPDATE SET
			value=excluded.value, updated_at=excluded.updated_at`,
		s.namespace, string(p.Metric), p.Domain, p.Field, string(raw),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("writing %s: %w", p, err)
	}
	return nil
}
