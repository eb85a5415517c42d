// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package archive writes finished evaluations to durable storage and reads
// them back for aggregation. A record is the ArchivePayload of one
// evaluator's pass over one paper.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/eval-engine/internal/httputil"
	"github.com/pdiddy/eval-engine/pkg/types"
)

// DefaultDir is the local archive directory used when none is configured.
var DefaultDir = filepath.Join("evaluations", "records")

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "eval-engine/1.0"
)

// Error is a failed archival write. Retryable failures may be attempted
// again without side effects from the failed attempt.
type Error struct {
	Retryable bool
	Message   string
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// IsRetryable reports whether err is an archival failure that may be
// retried.
func IsRetryable(err error) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Retryable
}

// Sink stores an archive payload and returns where it was stored.
type Sink interface {
	Archive(ctx context.Context, p types.ArchivePayload) (string, error)
}

// NewPayload builds the archival record for one evaluator's pass.
func NewPayload(token string, user types.UserInfo, m types.Metrics, now time.Time) types.ArchivePayload {
	if m == nil {
		m = types.Metrics{}
	}
	return types.ArchivePayload{
		Timestamp:         now.UTC(),
		Token:             token,
		UserInfo:          user,
		EvaluationMetrics: m,
	}
}

// HTTPSink posts payloads as JSON to a remote store.
type HTTPSink struct {
	URL        string
	Token      string
	UserAgent  string
	MaxRetries int
	Client     *http.Client
}

// NewHTTPSink returns a sink for cfg.URL authenticated with token.
func NewHTTPSink(cfg types.ArchiveConfig, token string) *HTTPSink {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	return &HTTPSink{
		URL:        cfg.URL,
		Token:      token,
		UserAgent:  ua,
		MaxRetries: cfg.MaxRetries,
		Client:     &http.Client{Timeout: timeout},
	}
}

// Archive posts p. Rate limiting and upstream unavailability are retried a
// bounded number of times; what remains is returned as an *Error.
func (s *HTTPSink) Archive(ctx context.Context, p types.ArchivePayload) (string, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return "", &Error{Message: "encoding archive payload", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return "", &Error{Message: "building archive request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", s.UserAgent)
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}

	resp, err := httputil.DoWithRetry(ctx, s.Client, req, s.MaxRetries)
	if err != nil {
		return "", &Error{Retryable: true, Message: "archive store unreachable", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &Error{
			Retryable: httputil.Retryable(resp.StatusCode) || resp.StatusCode >= 500,
			Message:   fmt.Sprintf("archive store rejected record: HTTP %d %s", resp.StatusCode, strings.TrimSpace(string(detail))),
		}
	}
	io.Copy(io.Discard, resp.Body)

	if loc := resp.Header.Get("Location"); loc != "" {
		return loc, nil
	}
	return s.URL, nil
}

// DirSink writes payloads to <Dir>/<token>/<uuid>.json.
type DirSink struct {
	Dir string
}

// Archive writes p to a new file. The file appears atomically, so a failed
// attempt leaves nothing behind.
func (s DirSink) Archive(_ context.Context, p types.ArchivePayload) (string, error) {
	dir := s.Dir
	if dir == "" {
		dir = DefaultDir
	}
	tokenDir := filepath.Join(dir, safeName(p.Token))
	if err := os.MkdirAll(tokenDir, 0o755); err != nil {
		return "", &Error{Retryable: true, Message: "creating archive directory", Err: err}
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return "", &Error{Message: "encoding archive payload", Err: err}
	}

	path := filepath.Join(tokenDir, uuid.NewString()+".json")
	tmp, err := os.CreateTemp(tokenDir, ".record-*")
	if err != nil {
		return "", &Error{Retryable: true, Message: "writing archive record", Err: err}
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return "", &Error{Retryable: true, Message: "writing archive record", Err: err}
	}
	if err := tmp.Close(); err != nil {
		return "", &Error{Retryable: true, Message: "writing archive record", Err: err}
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", &Error{Retryable: true, Message: "writing archive record", Err: err}
	}
	return path, nil
}

// safeName turns a paper token into a single path element.
func safeName(token string) string {
	token = strings.TrimSpace(token)
	if token == "" || token == "." || token == ".." {
		return "_"
	}
	return strings.NewReplacer("/", "_", `\`, "_", ":", "_").Replace(token)
}
