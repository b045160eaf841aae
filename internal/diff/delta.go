package diff

import (
	"sort"

	"notion-watch/internal/snapshot"
)

// Incremental computes the delta between the snapshot already reflected in
// an open report and a freshly observed one. The algorithm is Build
// verbatim; only the baseline role differs. Anything already present in
// reported is by definition not a difference, so a change can never be
// reported twice across report refreshes.
//
// reported may be nil — when the report's persisted state cannot be
// obtained, callers fall back to full reporting, which is exactly the
// first-run shape of Build.
func Incremental(reported, fresh *snapshot.Snapshot, label string) Delta {
	cs := Build(reported, fresh, label)
	return Delta{ChangeSet: cs, HasChanges: len(cs.Changes) > 0}
}

// IncrementalAll runs Incremental per collection over two snapshot maps and
// aggregates. Collections are processed in sorted id order so batch output
// is deterministic. Collections with a zero diff are omitted from the
// result entirely, not included with empty changes.
//
// fresh drives the iteration; a collection missing from reported diffs
// against nil (full reporting for that collection).
func IncrementalAll(reported, fresh map[string]*snapshot.Snapshot, labels map[string]string) BatchDelta {
	ids := make([]string, 0, len(fresh))
	for id := range fresh {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := BatchDelta{Deltas: []Delta{}}
	for _, id := range ids {
		d := Incremental(reported[id], fresh[id], labels[id])
		if !d.HasChanges {
			continue
		}
		out.Deltas = append(out.Deltas, d)
		out.Totals.Add(d.Summary)
		out.HasChanges = true
	}
	return out
}
