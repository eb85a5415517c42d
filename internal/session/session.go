// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package session holds one evaluator's in-progress pass over one paper.
// Edits apply to an in-memory store immediately and reach the persistent
// store after an idle window; the last flush wins. A finished pass is
// archived at most once.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/eval-engine/internal/archive"
	"github.com/pdiddy/eval-engine/internal/assessment"
	"github.com/pdiddy/eval-engine/internal/fieldeval"
	"github.com/pdiddy/eval-engine/internal/logging"
	"github.com/pdiddy/eval-engine/internal/store"
	"github.com/pdiddy/eval-engine/internal/telemetry"
	"github.com/pdiddy/eval-engine/pkg/types"
)

// Options configures a Session.
type Options struct {
	Config     types.EngineConfig
	Token      string
	User       types.UserInfo
	Persistent store.Store
	Sink       archive.Sink
	Log        *zap.Logger
	Metrics    *telemetry.Metrics

	// Now defaults to time.Now.
	Now func() time.Time
}

// ArchiveResult reports the outcome of Archive.
type ArchiveResult struct {
	// Skipped is true when the pass was already archived or an archive is
	// in flight; nothing was written.
	Skipped  bool
	Location string
}

// Session is safe for concurrent use.
type Session struct {
	opts      Options
	log       *zap.Logger
	working   *store.Memory
	processor *fieldeval.Processor
	debouncer *Debouncer

	mu        sync.Mutex
	evals     map[string]fieldeval.FieldEvaluation
	saved     bool
	archiving bool
	flushErr  error
	// gen counts edits; flushed is the gen last written to Persistent.
	gen     uint64
	flushed uint64

	// flushMu orders writes to Persistent. It is held from snapshot to
	// Replace so an older snapshot can never land after a newer one.
	flushMu sync.Mutex
	closed  bool
}

// New opens a session, resuming from whatever the persistent store already
// holds for this pass.
func New(ctx context.Context, opts Options) (*Session, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Session{
		opts:      opts,
		log:       logging.OrNop(opts.Log).With(zap.String("token", opts.Token)),
		working:   store.NewMemory(),
		debouncer: NewDebouncer(opts.Config.Session.Debounce),
		evals:     make(map[string]fieldeval.FieldEvaluation),
	}
	s.processor = fieldeval.New(opts.Config, s.working, s.log, opts.Metrics)

	if opts.Persistent != nil {
		snap, err := opts.Persistent.Snapshot(ctx)
		if err != nil {
			return nil, fmt.Errorf("loading saved evaluation: %w", err)
		}
		if err := s.working.Replace(ctx, snap); err != nil {
			return nil, fmt.Errorf("loading saved evaluation: %w", err)
		}
	}
	return s, nil
}

func evalKey(d types.Domain, field string) string {
	return string(d) + "/" + field
}

// Evaluate scores one field, applies it to the in-memory assessment, and
// schedules a flush.
func (s *Session) Evaluate(ctx context.Context, in fieldeval.FieldInput) (fieldeval.FieldEvaluation, error) {
	ev, err := s.processor.Evaluate(ctx, in)
	s.mu.Lock()
	s.evals[evalKey(in.Domain, in.Field)] = ev
	s.mu.Unlock()
	s.scheduleFlush()
	return ev, err
}

// Rerate changes the rating and comment of a field evaluated in this
// session.
func (s *Session) Rerate(ctx context.Context, domain types.Domain, field string, rating int, comments string) (fieldeval.FieldEvaluation, error) {
	s.mu.Lock()
	ev, ok := s.evals[evalKey(domain, field)]
	s.mu.Unlock()
	if !ok {
		return fieldeval.FieldEvaluation{}, fmt.Errorf("field %s/%s has not been evaluated", domain, field)
	}
	ev, err := s.processor.Rerate(ctx, ev, rating, comments)
	s.mu.Lock()
	s.evals[evalKey(domain, field)] = ev
	s.mu.Unlock()
	s.scheduleFlush()
	return ev, err
}

// SetCustom records a field scored outside the pipeline, such as a ranked
// choice.
func (s *Session) SetCustom(ctx context.Context, domain types.Domain, score types.FieldScore) error {
	p := store.Path{Metric: types.MetricOverall, Domain: string(domain), Field: score.Field}
	if err := s.working.Set(ctx, p, score); err != nil {
		return err
	}
	s.scheduleFlush()
	return nil
}

// Assessment returns the current paper assessment.
func (s *Session) Assessment(ctx context.Context) (types.PaperAssessment, error) {
	snap, err := s.working.Snapshot(ctx)
	if err != nil {
		return types.PaperAssessment{}, err
	}
	return assessment.Paper(assessment.FromMetrics(snap, s.opts.Config), s.opts.Config), nil
}

// Metrics returns the current metrics store contents including the
// domain roll-ups.
func (s *Session) Metrics(ctx context.Context) (types.Metrics, error) {
	snap, err := s.working.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	for d, a := range assessment.FromMetrics(snap, s.opts.Config) {
		overall, err := store.Marshal(a.Overall)
		if err != nil {
			return nil, err
		}
		snap.Put(types.MetricOverall, string(d), types.OverallField, overall)
	}
	return snap, nil
}

func (s *Session) scheduleFlush() {
	if s.opts.Persistent == nil {
		return
	}
	s.mu.Lock()
	s.gen++
	s.mu.Unlock()
	s.debouncer.Schedule(func() { s.flush(context.Background()) })
}

// flush writes the current metrics when they changed since the last
// successful write. It waits for any flush already in flight.
func (s *Session) flush(ctx context.Context) {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()
	if s.closed || s.opts.Persistent == nil {
		return
	}

	s.mu.Lock()
	gen := s.gen
	clean := gen == s.flushed
	s.mu.Unlock()
	if clean {
		return
	}

	m, err := s.Metrics(ctx)
	if err == nil {
		err = s.opts.Persistent.Replace(ctx, m)
	}
	s.mu.Lock()
	s.flushErr = err
	if err == nil && gen > s.flushed {
		s.flushed = gen
	}
	s.mu.Unlock()
	if err != nil {
		s.log.Error("flushing evaluation", zap.Error(err))
		return
	}
	s.log.Debug("flushed evaluation", zap.Uint64("generation", gen))
}

// Flush writes pending edits now, after any flush already in flight, and
// returns the result of the most recent flush.
func (s *Session) Flush(ctx context.Context) error {
	s.debouncer.Stop()
	s.flush(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.flushErr != nil {
		return fmt.Errorf("persisting evaluation: %w", s.flushErr)
	}
	return nil
}

// Saved reports whether the pass has been archived.
func (s *Session) Saved() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved
}

// Archive flushes pending edits and sends the pass to the sink. A pass is
// marked saved only after the sink succeeds; a failure leaves the session
// unchanged so the call can be repeated.
func (s *Session) Archive(ctx context.Context) (ArchiveResult, error) {
	s.mu.Lock()
	if s.saved || s.archiving {
		s.mu.Unlock()
		s.opts.Metrics.Archive(telemetry.OutcomeSkipped)
		s.log.Info("evaluation already archived, skipping")
		return ArchiveResult{Skipped: true}, nil
	}
	s.archiving = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.archiving = false
		s.mu.Unlock()
	}()

	if s.opts.Sink == nil {
		return ArchiveResult{}, &archive.Error{Message: "no archive sink configured"}
	}
	if err := s.Flush(ctx); err != nil {
		s.log.Warn("archiving without a successful flush", zap.Error(err))
	}

	m, err := s.Metrics(ctx)
	if err != nil {
		return ArchiveResult{}, &archive.Error{Retryable: true, Message: "reading evaluation metrics", Err: err}
	}
	payload := archive.NewPayload(s.opts.Token, s.opts.User, m, s.opts.Now())

	loc, err := s.opts.Sink.Archive(ctx, payload)
	if err != nil {
		s.opts.Metrics.Archive(telemetry.OutcomeFailure)
		s.log.Error("archiving evaluation", zap.Error(err), zap.Bool("retryable", archive.IsRetryable(err)))
		return ArchiveResult{}, err
	}

	s.mu.Lock()
	s.saved = true
	s.mu.Unlock()
	s.opts.Metrics.Archive(telemetry.OutcomeSuccess)
	s.log.Info("archived evaluation", zap.String("location", loc))
	return ArchiveResult{Location: loc}, nil
}

// Close flushes pending edits and stops the debouncer. It returns only
// after every write to the persistent store has finished; later edits are
// kept in memory but never persisted.
func (s *Session) Close(ctx context.Context) error {
	err := s.Flush(ctx)
	s.debouncer.Stop()
	s.flushMu.Lock()
	s.closed = true
	s.flushMu.Unlock()
	return err
}
