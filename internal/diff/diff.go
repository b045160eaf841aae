package diff

import (
	"sort"

	"notion-watch/internal/normalize"
	"notion-watch/internal/snapshot"
)

// Build computes the change-set from prev to curr. prev may be nil (first
// run, or unreadable history), in which case every current record is added.
// Deterministic: identical inputs always produce an identical change-set.
//
// Classification:
//   - id only in curr            -> added, with the full field map
//   - id on both sides           -> updated iff the revision marker differs
//     or any field differs; no entry otherwise
//   - id only in prev            -> deleted
func Build(prev, curr *snapshot.Snapshot, label string) ChangeSet {
	cs := ChangeSet{
		CollectionID:    curr.CollectionID,
		CollectionLabel: label,
		Changes:         []ChangeRecord{},
	}

	var prevByID map[string]snapshot.Record
	if prev != nil {
		prevByID = prev.ByID()
	}
	currByID := curr.ByID()

	for _, cr := range curr.Records {
		pr, existed := prevByID[cr.ID]
		if !existed {
			cs.Changes = append(cs.Changes, ChangeRecord{
				ID:             cr.ID,
				Title:          displayTitle(cr.Fields, cr.ID),
				Kind:           KindAdded,
				RevisionMarker: cr.RevisionMarker,
				InitialFields:  cr.Fields,
			})
			continue
		}
		changes := fieldChanges(pr.Fields, cr.Fields)
		if pr.RevisionMarker == cr.RevisionMarker && len(changes) == 0 {
			continue
		}
		cs.Changes = append(cs.Changes, ChangeRecord{
			ID:                     cr.ID,
			Title:                  displayTitle(cr.Fields, cr.ID),
			Kind:                   KindUpdated,
			RevisionMarker:         cr.RevisionMarker,
			PreviousRevisionMarker: pr.RevisionMarker,
			FieldChanges:           changes,
		})
	}

	if prev != nil {
		for _, pr := range prev.Records {
			if _, present := currByID[pr.ID]; present {
				continue
			}
			cs.Changes = append(cs.Changes, ChangeRecord{
				ID:                     pr.ID,
				Title:                  displayTitle(pr.Fields, pr.ID),
				Kind:                   KindDeleted,
				PreviousRevisionMarker: pr.RevisionMarker,
			})
		}
	}

	for _, c := range cs.Changes {
		switch c.Kind {
		case KindAdded:
			cs.Summary.Added++
		case KindUpdated:
			cs.Summary.Updated++
		case KindDeleted:
			cs.Summary.Deleted++
		}
	}
	return cs
}

// fieldChanges compares two field maps over the union of their keys.
// Equality is structural (normalize.Equal); a key present on only one side
// counts as changed with the absent side flagged via HasPrevious/HasCurrent.
// Entry order: keys known to the previous side first, then keys introduced
// only by the current side, each group sorted for determinism.
func fieldChanges(prev, curr map[string]normalize.Value) []FieldChange {
	prevKeys := make([]string, 0, len(prev))
	for k := range prev {
		prevKeys = append(prevKeys, k)
	}
	sort.Strings(prevKeys)

	newKeys := make([]string, 0)
	for k := range curr {
		if _, known := prev[k]; !known {
			newKeys = append(newKeys, k)
		}
	}
	sort.Strings(newKeys)

	out := make([]FieldChange, 0)
	for _, k := range prevKeys {
		pv := prev[k]
		cv, inCurr := curr[k]
		if inCurr && normalize.Equal(pv, cv) {
			continue
		}
		out = append(out, FieldChange{
			Name:        k,
			Previous:    pv,
			Current:     cv,
			HasPrevious: true,
			HasCurrent:  inCurr,
		})
	}
	for _, k := range newKeys {
		out = append(out, FieldChange{
			Name:       k,
			Current:    curr[k],
			HasCurrent: true,
		})
	}
	return out
}

// displayTitle extracts a human label for a record: the first non-empty
// string among the fields literally named "Name" then "Title"
// (case-sensitive), falling back to the record id.
func displayTitle(fields map[string]normalize.Value, id string) string {
	for _, key := range []string{"Name", "Title"} {
		if v, ok := fields[key]; ok {
			if s, isStr := v.(string); isStr && s != "" {
				return s
			}
		}
	}
	return id
}
