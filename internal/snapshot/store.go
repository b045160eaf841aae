package snapshot

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"notion-watch/internal/normalize"
)

// File layout, one file per collection named <collection_id>.json:
//
//	{ "lastSync": "<RFC3339>", "pages": [ { "id", "last_edited_time", "properties" } ] }
//
// The same layout is read back from report branches by the incremental path,
// so it must stay stable across both producers.

type stateFile struct {
	LastSync string   `json:"lastSync"`
	Pages    []Record `json:"pages"`
}

// Store persists one snapshot per collection under a base directory.
type Store struct {
	dir string
}

// NewStore creates a Store rooted at dir. The directory is created lazily
// on first save.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (st *Store) path(collectionID string) string {
	return filepath.Join(st.dir, collectionID+".json")
}

// Save persists the snapshot for its collection, replacing any prior state.
// The write goes through a temp file and rename so readers never observe a
// partially written snapshot. I/O failures (permissions, disk full) are
// returned to the caller; they are operator problems, not expected branches.
func (st *Store) Save(s *Snapshot) error {
	if err := os.MkdirAll(st.dir, 0o755); err != nil {
		return err
	}
	data, err := Encode(s)
	if err != nil {
		return err
	}
	f, err := os.CreateTemp(st.dir, ".tmp-"+s.CollectionID+"-")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, st.path(s.CollectionID))
}

// Load returns the stored snapshot for the collection, or (nil, nil) when
// nothing usable is stored: a missing file, unreadable JSON, or content that
// violates the snapshot invariants all count as "no previous snapshot".
// Losing history degrades to a full-added diff; it never crashes a cycle.
func (st *Store) Load(collectionID string) (*Snapshot, error) {
	b, err := os.ReadFile(st.path(collectionID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	s, err := Decode(collectionID, b)
	if err != nil {
		return nil, nil
	}
	return s, nil
}

// Raw returns the persisted file bytes for the collection, for callers
// that ship the state elsewhere verbatim (the report branch).
func (st *Store) Raw(collectionID string) ([]byte, error) {
	return os.ReadFile(st.path(collectionID))
}

// Exists reports whether a snapshot file is present for the collection.
func (st *Store) Exists(collectionID string) bool {
	_, err := os.Stat(st.path(collectionID))
	return err == nil
}

// Delete removes stored state for the collection. Deleting absent state is
// not an error.
func (st *Store) Delete(collectionID string) error {
	err := os.Remove(st.path(collectionID))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// Encode serializes a Snapshot into the persisted file layout. Shared by
// the local store and the PR publisher, which commits the same bytes to the
// report branch.
func Encode(s *Snapshot) ([]byte, error) {
	data, err := json.MarshalIndent(stateFile{
		LastSync: s.CapturedAt.UTC().Format(time.RFC3339),
		Pages:    s.Records,
	}, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Decode parses the persisted file layout into a Snapshot, canonicalizing
// field values back into the closed normalized set. Shared with the
// incremental path, which reads the identical layout from a report branch.
func Decode(collectionID string, data []byte) (*Snapshot, error) {
	var sf stateFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return nil, err
	}
	capturedAt, _ := time.Parse(time.RFC3339, sf.LastSync)
	records := make([]Record, 0, len(sf.Pages))
	for _, p := range sf.Pages {
		p.Fields = normalize.CanonFields(p.Fields)
		records = append(records, p)
	}
	return New(collectionID, capturedAt, records)
}
