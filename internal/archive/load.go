// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/eval-engine/internal/assessment"
	"github.com/pdiddy/eval-engine/internal/store"
	"github.com/pdiddy/eval-engine/pkg/types"
)

// loadConcurrency bounds the number of records decoded at once.
const loadConcurrency = 8

// SkippedFile is a record that could not be loaded.
type SkippedFile struct {
	Path   string
	Reason string
}

// LoadResult holds the records found under an archive directory.
type LoadResult struct {
	Payloads []types.ArchivePayload
	Skipped  []SkippedFile
}

// Total returns the number of files examined.
func (r LoadResult) Total() int {
	return len(r.Payloads) + len(r.Skipped)
}

// LoadDir reads every *.json record under dir. Malformed records are
// reported in Skipped rather than failing the load. Payloads are ordered
// by timestamp, then token.
func LoadDir(ctx context.Context, dir string) (LoadResult, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".json") && !strings.HasPrefix(d.Name(), ".") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return LoadResult{}, fmt.Errorf("listing records in %s: %w", dir, err)
	}
	sort.Strings(paths)

	var (
		mu  sync.Mutex
		res LoadResult
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(loadConcurrency)
	for _, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			p, reason := readRecord(path)
			mu.Lock()
			defer mu.Unlock()
			if reason != "" {
				res.Skipped = append(res.Skipped, SkippedFile{Path: path, Reason: reason})
				return nil
			}
			res.Payloads = append(res.Payloads, p)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return LoadResult{}, err
	}

	sort.Slice(res.Payloads, func(i, j int) bool {
		a, b := res.Payloads[i], res.Payloads[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return a.Token < b.Token
	})
	sort.Slice(res.Skipped, func(i, j int) bool { return res.Skipped[i].Path < res.Skipped[j].Path })
	return res, nil
}

func readRecord(path string) (types.ArchivePayload, string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.ArchivePayload{}, err.Error()
	}
	var raw struct {
		Timestamp         time.Time       `json:"timestamp"`
		Token             string          `json:"token"`
		UserInfo          types.UserInfo  `json:"userInfo"`
		EvaluationMetrics json.RawMessage `json:"evaluationMetrics"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return types.ArchivePayload{}, "malformed JSON: " + err.Error()
	}
	if raw.Token == "" {
		return types.ArchivePayload{}, "missing token"
	}
	return types.ArchivePayload{
		Timestamp:         raw.Timestamp,
		Token:             raw.Token,
		UserInfo:          raw.UserInfo,
		EvaluationMetrics: store.Decode(raw.EvaluationMetrics),
	}, ""
}

// ToEvaluation converts an archived record into aggregation input. Domain
// assessments are rebuilt from the record's metrics store.
func ToEvaluation(p types.ArchivePayload, cfg types.EngineConfig) types.Evaluation {
	return types.Evaluation{
		Token:     p.Token,
		Evaluator: p.UserInfo.Evaluator(),
		Timestamp: p.Timestamp,
		Domains:   assessment.FromMetrics(p.EvaluationMetrics, cfg),
	}
}

// ToEvaluations converts every payload in order.
func ToEvaluations(payloads []types.ArchivePayload, cfg types.EngineConfig) []types.Evaluation {
	out := make([]types.Evaluation, len(payloads))
	for i, p := range payloads {
		out[i] = ToEvaluation(p, cfg)
	}
	return out
}
