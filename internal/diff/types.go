// Package diff computes structured change-sets between two snapshots of a
// collection: per-record classification (added/updated/deleted) and
// per-field value diffs for updated records.
package diff

import "notion-watch/internal/normalize"

// Kind classifies one record's change.
type Kind string

const (
	KindAdded   Kind = "added"
	KindUpdated Kind = "updated"
	KindDeleted Kind = "deleted"
)

// FieldChange is one differing field of an updated record. A side that does
// not carry the field at all has its Has flag false — distinct from carrying
// an explicit null (Has true, value nil).
type FieldChange struct {
	Name        string          `json:"name"`
	Previous    normalize.Value `json:"previous"`
	Current     normalize.Value `json:"current"`
	HasPrevious bool            `json:"hasPrevious"`
	HasCurrent  bool            `json:"hasCurrent"`
}

// ChangeRecord is one classified entry of a change-set.
//
// Added records carry InitialFields (the full field map at discovery).
// Updated records carry a non-empty FieldChanges list or a changed revision
// marker; a record equal on both is never classified as updated.
type ChangeRecord struct {
	ID                     string                     `json:"id"`
	Title                  string                     `json:"title"`
	Kind                   Kind                       `json:"kind"`
	RevisionMarker         string                     `json:"revisionMarker,omitempty"`
	PreviousRevisionMarker string                     `json:"previousRevisionMarker,omitempty"`
	InitialFields          map[string]normalize.Value `json:"initialFields,omitempty"`
	FieldChanges           []FieldChange              `json:"fieldChanges,omitempty"`
}

// Summary tallies a change-set by kind. Always the exact tally of Changes.
type Summary struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
	Deleted int `json:"deleted"`
}

// Total returns the summed change count.
func (s Summary) Total() int { return s.Added + s.Updated + s.Deleted }

// Add accumulates another summary elementwise.
func (s *Summary) Add(o Summary) {
	s.Added += o.Added
	s.Updated += o.Updated
	s.Deleted += o.Deleted
}

// ChangeSet is the complete classified difference between two snapshots of
// one collection. Changes preserve encounter order: current-side records
// first (added/updated in the current snapshot's order), then deletions in
// the previous snapshot's order.
type ChangeSet struct {
	CollectionID    string         `json:"collectionId"`
	CollectionLabel string         `json:"collectionLabel"`
	Changes         []ChangeRecord `json:"changes"`
	Summary         Summary        `json:"summary"`
}

// Delta is a change-set computed against the snapshot already reflected in
// an open report, rather than the regular stored one. Same shape, different
// baseline role.
type Delta struct {
	ChangeSet
	HasChanges bool `json:"hasChanges"`
}

// BatchDelta aggregates incremental deltas over several collections.
// Collections with no changes are omitted from Deltas entirely.
type BatchDelta struct {
	Deltas     []Delta `json:"deltas"`
	Totals     Summary `json:"totals"`
	HasChanges bool    `json:"hasChanges"`
}
