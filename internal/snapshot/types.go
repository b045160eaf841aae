// Package snapshot defines the point-in-time record model for a watched
// collection and its on-disk persistence.
//
// One snapshot holds the full normalized record set of one collection at one
// observation. Snapshots are immutable after construction; the store is the
// only component that persists or replaces them.
package snapshot

import (
	"fmt"
	"time"

	"notion-watch/internal/normalize"
)

// Record is one normalized entity of a collection.
//
// RevisionMarker is an opaque coarse change signal (the source's
// last-edited timestamp). Marker equality is never trusted alone — the
// differ always corroborates with field comparison.
type Record struct {
	ID             string                     `json:"id"`
	RevisionMarker string                     `json:"last_edited_time"`
	Fields         map[string]normalize.Value `json:"properties,omitempty"`
}

// Snapshot is a collection's full record set at one observation.
type Snapshot struct {
	CollectionID string
	CapturedAt   time.Time
	Records      []Record
}

// New builds a Snapshot, enforcing the structural invariants the differ
// depends on: every record carries an id, and no id repeats. Violations
// are construction-time errors, not conditions to tolerate downstream.
func New(collectionID string, capturedAt time.Time, records []Record) (*Snapshot, error) {
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		if r.ID == "" {
			return nil, fmt.Errorf("snapshot %s: record without id", collectionID)
		}
		if _, dup := seen[r.ID]; dup {
			return nil, fmt.Errorf("snapshot %s: duplicate record id %s", collectionID, r.ID)
		}
		seen[r.ID] = struct{}{}
	}
	return &Snapshot{
		CollectionID: collectionID,
		CapturedAt:   capturedAt,
		Records:      records,
	}, nil
}

// ByID returns an id-keyed lookup over the snapshot's records.
func (s *Snapshot) ByID() map[string]Record {
	m := make(map[string]Record, len(s.Records))
	for _, r := range s.Records {
		m[r.ID] = r
	}
	return m
}
