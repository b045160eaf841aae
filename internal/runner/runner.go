// Package runner orchestrates per-collection observation cycles:
// fetch → normalize → diff → persist, plus the incremental variant used
// while a report PR is still open.
//
// Collections share no mutable state, so a batch may run them in parallel
// up to a configured bound. Within one collection the new snapshot is
// persisted strictly after the diff against the old one has completed.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"notion-watch/internal/config"
	"notion-watch/internal/diff"
	"notion-watch/internal/normalize"
	"notion-watch/internal/notion"
	"notion-watch/internal/snapshot"
)

// Source fetches the fully materialized raw page list of a collection.
// Implemented by *notion.Client; narrowed to an interface for tests.
type Source interface {
	QueryAll(ctx context.Context, databaseID string) ([]notion.Page, error)
}

// Skipped records a collection whose cycle failed. One collection's
// failure never aborts the rest of the batch.
type Skipped struct {
	Collection config.Collection
	Reason     error
}

// BatchResult is the outcome of one full batch run.
type BatchResult struct {
	// RunID correlates log lines of one batch.
	RunID string
	// Sets holds the change-sets of successful collections, in input order.
	Sets []diff.ChangeSet
	// Skipped holds failed collections with reasons, in input order.
	Skipped []Skipped
}

// Totals sums the summaries of all successful collections.
func (b BatchResult) Totals() diff.Summary {
	var s diff.Summary
	for _, cs := range b.Sets {
		s.Add(cs.Summary)
	}
	return s
}

// Runner drives observation cycles.
type Runner struct {
	source  Source
	store   *snapshot.Store
	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time
}

// New creates a Runner. logger may be nil (slog.Default is used); metrics
// may be nil to disable instrumentation.
func New(source Source, store *snapshot.Store, logger *slog.Logger, metrics *Metrics) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		source:  source,
		store:   store,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// Observe fetches and normalizes the collection's current state.
func (r *Runner) Observe(ctx context.Context, col config.Collection) (*snapshot.Snapshot, error) {
	pages, err := r.source.QueryAll(ctx, col.ID)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", col.ID, err)
	}
	records := make([]snapshot.Record, 0, len(pages))
	for _, p := range pages {
		records = append(records, snapshot.Record{
			ID:             p.ID,
			RevisionMarker: p.LastEditedTime,
			Fields:         normalize.PageFields(p.Properties),
		})
	}
	return snapshot.New(col.ID, r.now().UTC(), records)
}

// Cycle runs one full observation cycle for a collection: observe, diff
// against the stored snapshot, then persist the new one. A missing or
// unreadable stored snapshot diffs as first-run (everything added) and is
// logged, not failed; write errors propagate.
func (r *Runner) Cycle(ctx context.Context, col config.Collection) (diff.ChangeSet, error) {
	fresh, err := r.Observe(ctx, col)
	if err != nil {
		r.metrics.cycleDone(col.ID, false)
		return diff.ChangeSet{}, err
	}
	prev, err := r.store.Load(col.ID)
	if err != nil {
		r.metrics.cycleDone(col.ID, false)
		return diff.ChangeSet{}, fmt.Errorf("load snapshot %s: %w", col.ID, err)
	}
	if prev == nil {
		r.logger.Info("no previous snapshot, treating everything as new", "collection", col.ID)
	}

	cs := diff.Build(prev, fresh, col.Label)

	// Persist only after the diff has fully completed; Save overwrites the
	// state the diff read.
	if err := r.store.Save(fresh); err != nil {
		r.metrics.cycleDone(col.ID, false)
		return diff.ChangeSet{}, fmt.Errorf("save snapshot %s: %w", col.ID, err)
	}
	r.metrics.cycleDone(col.ID, true)
	r.metrics.changes(col.ID, cs.Summary)
	return cs, nil
}

// IncrementalCycle observes the collection and diffs it against the
// snapshot already reflected in the open report. The regular stored
// snapshot is left untouched. reported may be nil, which degrades to full
// reporting by design.
func (r *Runner) IncrementalCycle(ctx context.Context, col config.Collection, reported *snapshot.Snapshot) (diff.Delta, error) {
	fresh, err := r.Observe(ctx, col)
	if err != nil {
		r.metrics.cycleDone(col.ID, false)
		return diff.Delta{}, err
	}
	d := diff.Incremental(reported, fresh, col.Label)
	r.metrics.cycleDone(col.ID, true)
	r.metrics.changes(col.ID, d.Summary)
	return d, nil
}

// RunBatch runs Cycle over all collections, at most parallelism at a time.
// Failures are isolated per collection and reported as Skipped entries.
func (r *Runner) RunBatch(ctx context.Context, cols []config.Collection, parallelism int) BatchResult {
	runID := uuid.NewString()
	log := r.logger.With("run_id", runID)
	log.Info("batch start", "collections", len(cols))

	sets := make([]*diff.ChangeSet, len(cols))
	errs := make([]error, len(cols))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(normalizeParallelism(parallelism))
	for i, col := range cols {
		i, col := i, col
		g.Go(func() error {
			cs, err := r.Cycle(gctx, col)
			if err != nil {
				log.Warn("collection cycle failed", "collection", col.ID, "error", err)
				errs[i] = err
				return nil
			}
			sets[i] = &cs
			return nil
		})
	}
	_ = g.Wait()

	out := BatchResult{RunID: runID, Sets: []diff.ChangeSet{}, Skipped: []Skipped{}}
	for i, col := range cols {
		if errs[i] != nil {
			out.Skipped = append(out.Skipped, Skipped{Collection: col, Reason: errs[i]})
			continue
		}
		out.Sets = append(out.Sets, *sets[i])
	}
	totals := out.Totals()
	log.Info("batch done",
		"added", totals.Added, "updated", totals.Updated, "deleted", totals.Deleted,
		"skipped", len(out.Skipped))
	return out
}

// ReportedLoader supplies the snapshot already reflected in the open
// report for a collection, or (nil, nil) when none exists.
type ReportedLoader func(ctx context.Context, col config.Collection) (*snapshot.Snapshot, error)

// IncrementalResult is the outcome of one incremental batch.
type IncrementalResult struct {
	// Delta is the aggregated second-order delta.
	Delta diff.BatchDelta
	// Fresh holds the freshly observed snapshot per successful collection,
	// so the publisher can commit refreshed state to the report branch.
	Fresh map[string]*snapshot.Snapshot
	// Skipped holds failed collections with reasons.
	Skipped []Skipped
}

// RunIncremental observes all collections and computes the second-order
// delta against the reported snapshots. A loader failure for one
// collection falls back to full reporting for it (nil baseline) rather
// than silently emitting nothing; the fallback is logged.
func (r *Runner) RunIncremental(ctx context.Context, cols []config.Collection, parallelism int, load ReportedLoader) IncrementalResult {
	runID := uuid.NewString()
	log := r.logger.With("run_id", runID)
	log.Info("incremental batch start", "collections", len(cols))

	fresh := make([]*snapshot.Snapshot, len(cols))
	reported := make([]*snapshot.Snapshot, len(cols))
	errs := make([]error, len(cols))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(normalizeParallelism(parallelism))
	for i, col := range cols {
		i, col := i, col
		g.Go(func() error {
			s, err := r.Observe(gctx, col)
			if err != nil {
				log.Warn("collection observation failed", "collection", col.ID, "error", err)
				errs[i] = err
				return nil
			}
			fresh[i] = s
			rep, err := load(gctx, col)
			if err != nil {
				log.Warn("reported snapshot unavailable, falling back to full report",
					"collection", col.ID, "error", err)
				rep = nil
			}
			reported[i] = rep
			return nil
		})
	}
	_ = g.Wait()

	out := IncrementalResult{Fresh: make(map[string]*snapshot.Snapshot)}
	reportedByID := make(map[string]*snapshot.Snapshot)
	labels := make(map[string]string)
	for i, col := range cols {
		if errs[i] != nil {
			out.Skipped = append(out.Skipped, Skipped{Collection: col, Reason: errs[i]})
			continue
		}
		out.Fresh[col.ID] = fresh[i]
		if reported[i] != nil {
			reportedByID[col.ID] = reported[i]
		}
		labels[col.ID] = col.Label
	}

	out.Delta = diff.IncrementalAll(reportedByID, out.Fresh, labels)
	log.Info("incremental batch done",
		"added", out.Delta.Totals.Added, "updated", out.Delta.Totals.Updated, "deleted", out.Delta.Totals.Deleted,
		"skipped", len(out.Skipped))
	return out
}

func normalizeParallelism(p int) int {
	if p <= 0 {
		return 1
	}
	return p
}
