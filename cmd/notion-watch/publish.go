package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"

	"notion-watch/internal/config"
	"notion-watch/internal/ghpr"
	"notion-watch/internal/report"
	"notion-watch/internal/runner"
	"notion-watch/internal/snapshot"
)

// runOnce executes one observation batch and publishes the result.
//
// Without a configured GitHub repo the batch is a local affair: diff
// against the local store, render, print or write. With one, the report
// lives in a PR: if no report PR is open, a full batch opens one; if one
// is still open, only the delta since that PR's committed state is
// appended, so nothing is ever reported twice.
func (a *app) runOnce(ctx context.Context, output string) error {
	if a.github == nil {
		return a.runLocal(ctx, output)
	}

	pr, err := a.github.FindOpenPR(ctx, a.cfg.GitHub.ReportBranch)
	switch {
	case errors.Is(err, ghpr.ErrMultipleOpenPRs):
		// Ambiguous which PR is authoritative; refuse to guess.
		return err
	case errors.Is(err, ghpr.ErrNotFound):
		return a.publishFull(ctx)
	case err != nil:
		return fmt.Errorf("find open report PR: %w", err)
	default:
		return a.publishIncremental(ctx, pr)
	}
}

func (a *app) runLocal(ctx context.Context, output string) error {
	res := a.runner.RunBatch(ctx, a.cfg.Collections, a.cfg.Parallelism)
	a.logSkipped(res.Skipped)
	md := report.Render(res.Sets, a.reportOptions())
	if output == "" {
		_, err := os.Stdout.Write(md)
		return err
	}
	return os.WriteFile(output, md, 0o644)
}

// publishFull runs a regular batch and, when it found changes, opens a new
// report PR carrying the rendered report plus the snapshot state files the
// next incremental run will diff against.
func (a *app) publishFull(ctx context.Context) error {
	res := a.runner.RunBatch(ctx, a.cfg.Collections, a.cfg.Parallelism)
	a.logSkipped(res.Skipped)
	if res.Totals().Total() == 0 {
		a.logger.Info("no changes, not opening a report PR")
		return nil
	}

	gh := a.cfg.GitHub
	if err := a.github.EnsureBranch(ctx, gh.ReportBranch, gh.BaseBranch); err != nil {
		return fmt.Errorf("ensure report branch: %w", err)
	}

	for _, cs := range res.Sets {
		data, err := a.store.Raw(cs.CollectionID)
		if err != nil {
			return fmt.Errorf("read state for %s: %w", cs.CollectionID, err)
		}
		if err := a.github.PutFile(ctx, gh.ReportBranch, statePath(gh, cs.CollectionID),
			fmt.Sprintf("notion-watch: update state for %s", cs.CollectionID), data); err != nil {
			return fmt.Errorf("commit state for %s: %w", cs.CollectionID, err)
		}
	}

	md := report.Render(res.Sets, a.reportOptions())
	if err := a.github.PutFile(ctx, gh.ReportBranch, gh.ReportPath,
		"notion-watch: update report", md); err != nil {
		return fmt.Errorf("commit report: %w", err)
	}

	totals := res.Totals()
	title := fmt.Sprintf("Notion changes: %d added, %d updated, %d deleted",
		totals.Added, totals.Updated, totals.Deleted)
	pr, err := a.github.CreatePR(ctx, gh.ReportBranch, gh.BaseBranch, title, string(md))
	if err != nil {
		return fmt.Errorf("create report PR: %w", err)
	}
	a.logger.Info("opened report PR", "number", pr.Number, "url", pr.HTMLURL)
	return nil
}

// publishIncremental diffs fresh observations against the state committed
// to the open PR's branch and appends only the delta.
func (a *app) publishIncremental(ctx context.Context, pr *ghpr.PullRequest) error {
	gh := a.cfg.GitHub
	loader := func(ctx context.Context, col config.Collection) (*snapshot.Snapshot, error) {
		data, err := a.github.GetFile(ctx, pr.Head.Ref, statePath(gh, col.ID))
		if errors.Is(err, ghpr.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		s, err := snapshot.Decode(col.ID, data)
		if err != nil {
			// Corrupt committed state degrades to "no previous snapshot".
			return nil, nil
		}
		return s, nil
	}

	res := a.runner.RunIncremental(ctx, a.cfg.Collections, a.cfg.Parallelism, loader)
	a.logSkipped(res.Skipped)
	if !res.Delta.HasChanges {
		a.logger.Info("no changes since open report PR", "number", pr.Number)
		return nil
	}

	fragment := report.RenderIncremental(res.Delta, a.reportOptions())
	if err := a.github.UpdateBody(ctx, pr.Number, pr.Body+"\n"+string(fragment)); err != nil {
		return fmt.Errorf("append to PR body: %w", err)
	}

	for _, d := range res.Delta.Deltas {
		s := res.Fresh[d.CollectionID]
		if s == nil {
			continue
		}
		data, err := snapshot.Encode(s)
		if err != nil {
			return fmt.Errorf("encode state for %s: %w", d.CollectionID, err)
		}
		if err := a.github.PutFile(ctx, pr.Head.Ref, statePath(gh, d.CollectionID),
			fmt.Sprintf("notion-watch: update state for %s", d.CollectionID), data); err != nil {
			return fmt.Errorf("commit state for %s: %w", d.CollectionID, err)
		}
	}

	a.logger.Info("appended incremental delta to report PR",
		"number", pr.Number, "changes", res.Delta.Totals.Total())
	return nil
}

func (a *app) reportOptions() report.Options {
	return report.Options{DiffContext: 3, MaxDiffBytes: 256 * 1024}
}

func (a *app) logSkipped(skipped []runner.Skipped) {
	for _, s := range skipped {
		a.logger.Warn("collection skipped", "collection", s.Collection.ID, "reason", s.Reason)
	}
}

func statePath(gh config.GitHub, collectionID string) string {
	return path.Join(gh.StatePath, collectionID+".json")
}
