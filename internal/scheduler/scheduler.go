// Package scheduler drives the periodic ingestion pass: sample current
// conditions for every subject, compare against the latest stored record,
// and append only when the reading is materially different.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/guanacaste-labs/climatrack/internal/bus"
	"github.com/guanacaste-labs/climatrack/internal/record"
	"github.com/guanacaste-labs/climatrack/internal/snapshot"
)

// Source produces a snapshot for one subject. Provider failures must be
// returned, not swallowed; the scheduler isolates them per subject.
type Source interface {
	Fetch(ctx context.Context, subject record.Subject) (snapshot.Snapshot, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context, subject record.Subject) (snapshot.Snapshot, error)

// Fetch implements Source.
func (f SourceFunc) Fetch(ctx context.Context, subject record.Subject) (snapshot.Snapshot, error) {
	return f(ctx, subject)
}

// Options tunes one scheduler instance.
type Options struct {
	Interval          time.Duration
	TempThreshold     float64
	HumidityThreshold float64

	// SubjectTimeout bounds the fetch+store work for one subject.
	SubjectTimeout time.Duration
}

// TickResult summarizes one ingestion pass.
type TickResult struct {
	Subjects int
	Inserted int
	Skipped  int
	Failed   int
	Duration time.Duration
}

// Summary renders the result for logs.
func (r TickResult) Summary() string {
	return fmt.Sprintf("subjects=%d inserted=%d skipped=%d failed=%d duration=%s",
		r.Subjects, r.Inserted, r.Skipped, r.Failed, r.Duration.Round(time.Millisecond))
}

// Scheduler owns the periodic timer. All collaborators are injected at
// construction; there is no ambient state.
type Scheduler struct {
	sched  *gocron.Scheduler
	store  record.Store
	source Source
	events *bus.Bus
	opts   Options
	logger *slog.Logger
}

// New creates a Scheduler. The bus may be nil (CLI usage).
func New(store record.Store, source Source, events *bus.Bus, opts Options, logger *slog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	if opts.SubjectTimeout <= 0 {
		opts.SubjectTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		sched:  gocron.NewScheduler(time.UTC),
		store:  store,
		source: source,
		events: events,
		opts:   opts,
		logger: logger,
	}
}

// Start schedules the periodic pass and runs it asynchronously. The job is
// registered in singleton mode: a tick that is still running when the next
// is due causes that next tick to be skipped, never run concurrently.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.sched.Every(s.opts.Interval).SingletonMode().Do(func() {
		result := s.RunOnce(ctx)
		s.logger.Info("ingestion pass complete", "summary", result.Summary())
	})
	if err != nil {
		return fmt.Errorf("schedule ingestion job: %w", err)
	}
	s.sched.StartAsync()
	return nil
}

// Stop prevents new ticks from starting. In-flight subject processing
// finishes under its own timeout.
func (s *Scheduler) Stop() {
	s.sched.Stop()
}

// RunOnce executes a single ingestion pass across all subjects. A failure
// for one subject never aborts the others.
func (s *Scheduler) RunOnce(ctx context.Context) TickResult {
	start := time.Now()
	var result TickResult

	subjects, err := s.store.ListSubjects(ctx)
	if err != nil {
		s.logger.Error("ingestion pass: list subjects failed", "error", err)
		result.Duration = time.Since(start)
		return result
	}
	result.Subjects = len(subjects)

	for _, subject := range subjects {
		if ctx.Err() != nil {
			break
		}
		inserted, err := s.processSubject(ctx, subject)
		switch {
		case err != nil:
			result.Failed++
			s.logger.Warn("ingestion pass: subject failed",
				"subject", subject.ID, "error", err)
		case inserted:
			result.Inserted++
		default:
			result.Skipped++
		}
	}

	result.Duration = time.Since(start)
	return result
}

// processSubject runs the fetch → compare → conditionally append flow for
// one subject. Returns whether a record was inserted.
//
// The latest-read and the append are two separate statements; a concurrent
// manual insert for the same subject and kind can race this check and
// produce a near-duplicate record. Dedup is best-effort: the next tick
// re-reads the latest record, so the window never widens.
func (s *Scheduler) processSubject(ctx context.Context, subject record.Subject) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.SubjectTimeout)
	defer cancel()

	snap, err := s.source.Fetch(ctx, subject)
	if err != nil {
		return false, fmt.Errorf("fetch snapshot: %w", err)
	}

	previous := s.previousSnapshot(ctx, subject)
	if previous != nil && snapshot.IsSimilar(snap, previous, s.opts.TempThreshold, s.opts.HumidityThreshold) {
		s.logger.Debug("ingestion pass: reading similar, skipping",
			"subject", subject.ID)
		return false, nil
	}

	payload, err := snap.Encode()
	if err != nil {
		return false, err
	}
	rec, err := s.store.Append(ctx, subject.ID, record.KindWeather, payload)
	if err != nil {
		return false, fmt.Errorf("append record: %w", err)
	}

	if s.events != nil {
		s.events.Publish(bus.Event{
			Kind:   record.KindWeather,
			Action: bus.ActionCreate,
			Payload: map[string]any{
				"record_id": rec.ID,
				"user_id":   rec.SubjectID,
				"timestamp": rec.Timestamp,
			},
		})
	}
	return true, nil
}

// previousSnapshot loads and decodes the latest stored reading. Both a
// missing record and a corrupt payload mean "no previous data", which
// forces an insert.
func (s *Scheduler) previousSnapshot(ctx context.Context, subject record.Subject) snapshot.Snapshot {
	last, err := s.store.Latest(ctx, subject.ID, record.KindWeather)
	if err != nil {
		return nil
	}
	previous, err := snapshot.Decode(last.Payload)
	if err != nil {
		s.logger.Warn("ingestion pass: corrupt stored payload, treating as missing",
			"subject", subject.ID, "record", last.ID, "error", err)
		return nil
	}
	return previous
}
