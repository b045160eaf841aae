package diff

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notion-watch/internal/normalize"
	"notion-watch/internal/snapshot"
)

func snap(t *testing.T, records ...snapshot.Record) *snapshot.Snapshot {
	t.Helper()
	s, err := snapshot.New("col", time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC), records)
	require.NoError(t, err)
	return s
}

func rec(id, rev string, fields map[string]normalize.Value) snapshot.Record {
	return snapshot.Record{ID: id, RevisionMarker: rev, Fields: fields}
}

func kinds(cs ChangeSet) map[string]Kind {
	m := make(map[string]Kind, len(cs.Changes))
	for _, c := range cs.Changes {
		m[c.ID] = c.Kind
	}
	return m
}

func TestEmptyToEmpty(t *testing.T) {
	cs := Build(snap(t), snap(t), "Tasks")
	assert.Empty(t, cs.Changes)
	assert.Equal(t, Summary{}, cs.Summary)
}

func TestFirstRunEverythingAdded(t *testing.T) {
	curr := snap(t,
		rec("p1", "t0", map[string]normalize.Value{"Name": "One"}),
		rec("p2", "t0", nil),
	)
	cs := Build(nil, curr, "Tasks")
	require.Len(t, cs.Changes, 2)
	for _, c := range cs.Changes {
		assert.Equal(t, KindAdded, c.Kind)
	}
	assert.Equal(t, Summary{Added: 2}, cs.Summary)
}

func TestNoOpStability(t *testing.T) {
	s := snap(t,
		rec("p1", "t0", map[string]normalize.Value{"Name": "One", "Tags": []string{"a"}}),
		rec("p2", "t1", map[string]normalize.Value{"Count": 3.0}),
	)
	cs := Build(s, s, "Tasks")
	assert.Empty(t, cs.Changes)
	assert.Equal(t, Summary{}, cs.Summary)
}

func TestPureAddition(t *testing.T) {
	prev := snap(t, rec("p1", "t0", nil))
	curr := snap(t, rec("p1", "t0", nil), rec("p2", "t1", map[string]normalize.Value{"Name": "New"}))

	cs := Build(prev, curr, "Tasks")
	require.Len(t, cs.Changes, 1)
	c := cs.Changes[0]
	assert.Equal(t, "p2", c.ID)
	assert.Equal(t, KindAdded, c.Kind)
	assert.Equal(t, "t1", c.RevisionMarker)
	assert.Equal(t, "New", c.InitialFields["Name"])
	assert.Equal(t, Summary{Added: 1}, cs.Summary)
}

func TestPropertyUpdateWithUnchangedMarker(t *testing.T) {
	// The revision marker is a coarse signal only; identical markers must
	// not mask a real field change.
	prev := snap(t, rec("p1", "t0", map[string]normalize.Value{"Status": "Draft"}))
	curr := snap(t, rec("p1", "t0", map[string]normalize.Value{"Status": "Published"}))

	cs := Build(prev, curr, "Tasks")
	require.Len(t, cs.Changes, 1)
	c := cs.Changes[0]
	assert.Equal(t, KindUpdated, c.Kind)
	require.Len(t, c.FieldChanges, 1)
	assert.Equal(t, "Status", c.FieldChanges[0].Name)
	assert.Equal(t, "Draft", c.FieldChanges[0].Previous)
	assert.Equal(t, "Published", c.FieldChanges[0].Current)
	assert.Equal(t, Summary{Updated: 1}, cs.Summary)
}

func TestMarkerChangeWithEqualFields(t *testing.T) {
	prev := snap(t, rec("p1", "t0", map[string]normalize.Value{"Status": "Draft"}))
	curr := snap(t, rec("p1", "t1", map[string]normalize.Value{"Status": "Draft"}))

	cs := Build(prev, curr, "Tasks")
	require.Len(t, cs.Changes, 1)
	c := cs.Changes[0]
	assert.Equal(t, KindUpdated, c.Kind)
	assert.Empty(t, c.FieldChanges)
	assert.Equal(t, "t0", c.PreviousRevisionMarker)
	assert.Equal(t, "t1", c.RevisionMarker)
}

func TestDeletion(t *testing.T) {
	prev := snap(t, rec("p1", "t0", nil), rec("p2", "t0", map[string]normalize.Value{"Name": "Gone"}))
	curr := snap(t, rec("p1", "t0", nil))

	cs := Build(prev, curr, "Tasks")
	require.Len(t, cs.Changes, 1)
	c := cs.Changes[0]
	assert.Equal(t, "p2", c.ID)
	assert.Equal(t, KindDeleted, c.Kind)
	assert.Equal(t, "Gone", c.Title)
	assert.Empty(t, c.FieldChanges, "deletions carry no field diff")
	assert.Equal(t, 1, cs.Summary.Deleted)
}

func TestMixedBatchOrderAndSummary(t *testing.T) {
	prev := snap(t, rec("p1", "t0", nil), rec("p2", "t0", nil), rec("p3", "t0", nil))
	curr := snap(t, rec("p1", "t1", nil), rec("p4", "t1", nil))

	cs := Build(prev, curr, "Tasks")
	require.Len(t, cs.Changes, 4)
	// Encounter order: current-side records first, then deletions in
	// previous order.
	assert.Equal(t, "p1", cs.Changes[0].ID)
	assert.Equal(t, KindUpdated, cs.Changes[0].Kind)
	assert.Equal(t, "p4", cs.Changes[1].ID)
	assert.Equal(t, KindAdded, cs.Changes[1].Kind)
	assert.Equal(t, "p2", cs.Changes[2].ID)
	assert.Equal(t, KindDeleted, cs.Changes[2].Kind)
	assert.Equal(t, "p3", cs.Changes[3].ID)
	assert.Equal(t, KindDeleted, cs.Changes[3].Kind)
	assert.Equal(t, Summary{Added: 1, Updated: 1, Deleted: 2}, cs.Summary)
}

func TestDeterminism(t *testing.T) {
	prev := snap(t,
		rec("p1", "t0", map[string]normalize.Value{"Name": "One", "Tags": []string{"x", "y"}}),
		rec("p2", "t0", map[string]normalize.Value{"Status": "Open"}),
	)
	curr := snap(t,
		rec("p1", "t1", map[string]normalize.Value{"Name": "One!", "Tags": []string{"y"}}),
		rec("p3", "t1", map[string]normalize.Value{"Status": "New"}),
	)

	a, err := json.Marshal(Build(prev, curr, "Tasks"))
	require.NoError(t, err)
	b, err := json.Marshal(Build(prev, curr, "Tasks"))
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b), "identical inputs must yield byte-identical change-sets")
}

func TestSummaryMatchesChanges(t *testing.T) {
	prev := snap(t, rec("p1", "t0", nil), rec("p2", "t0", map[string]normalize.Value{"A": "x"}))
	curr := snap(t, rec("p2", "t0", map[string]normalize.Value{"A": "y"}), rec("p3", "t0", nil))

	cs := Build(prev, curr, "Tasks")
	assert.Equal(t, len(cs.Changes), cs.Summary.Total())
	tally := Summary{}
	for _, c := range cs.Changes {
		switch c.Kind {
		case KindAdded:
			tally.Added++
		case KindUpdated:
			tally.Updated++
		case KindDeleted:
			tally.Deleted++
		}
	}
	assert.Equal(t, tally, cs.Summary)
}

func TestUpdatedNeverEmptyHanded(t *testing.T) {
	// Every updated record has field changes or a marker change; a record
	// equal on both sides yields no entry at all.
	prev := snap(t, rec("p1", "t0", map[string]normalize.Value{"A": "x"}))
	curr := snap(t, rec("p1", "t0", map[string]normalize.Value{"A": "x"}))
	cs := Build(prev, curr, "Tasks")
	assert.Empty(t, cs.Changes)

	for _, c := range Build(
		snap(t, rec("p1", "t0", map[string]normalize.Value{"A": "x"})),
		snap(t, rec("p1", "t1", map[string]normalize.Value{"A": "y"})),
		"Tasks").Changes {
		if c.Kind == KindUpdated {
			assert.True(t, len(c.FieldChanges) > 0 || c.RevisionMarker != c.PreviousRevisionMarker)
		}
	}
}

func TestFieldChangeSidePresence(t *testing.T) {
	prev := snap(t, rec("p1", "t0", map[string]normalize.Value{
		"Removed": "old",
		"Nulled":  "set",
		"Kept":    "same",
	}))
	curr := snap(t, rec("p1", "t1", map[string]normalize.Value{
		"Nulled": nil,
		"Kept":   "same",
		"Fresh":  "new",
	}))

	cs := Build(prev, curr, "Tasks")
	require.Len(t, cs.Changes, 1)
	byName := make(map[string]FieldChange)
	var order []string
	for _, fc := range cs.Changes[0].FieldChanges {
		byName[fc.Name] = fc
		order = append(order, fc.Name)
	}

	// Previous-side keys first (sorted), then keys new in current.
	assert.Equal(t, []string{"Nulled", "Removed", "Fresh"}, order)

	removed := byName["Removed"]
	assert.True(t, removed.HasPrevious)
	assert.False(t, removed.HasCurrent, "a key absent on one side is distinct from null")

	nulled := byName["Nulled"]
	assert.True(t, nulled.HasPrevious)
	assert.True(t, nulled.HasCurrent)
	assert.Nil(t, nulled.Current)

	fresh := byName["Fresh"]
	assert.False(t, fresh.HasPrevious)
	assert.True(t, fresh.HasCurrent)

	assert.NotContains(t, byName, "Kept")
}

func TestDisplayTitlePriority(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]normalize.Value
		want   string
	}{
		{"Name wins", map[string]normalize.Value{"Name": "N", "Title": "T"}, "N"},
		{"empty Name falls through to Title", map[string]normalize.Value{"Name": "", "Title": "T"}, "T"},
		{"non-string Name falls through", map[string]normalize.Value{"Name": 3.0, "Title": "T"}, "T"},
		{"neither falls back to id", map[string]normalize.Value{"Other": "x"}, "p1"},
		{"case-sensitive match only", map[string]normalize.Value{"name": "low"}, "p1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cs := Build(nil, snap(t, rec("p1", "t0", tt.fields)), "Tasks")
			require.Len(t, cs.Changes, 1)
			assert.Equal(t, tt.want, cs.Changes[0].Title)
		})
	}
}

func TestListOrderIsSignificant(t *testing.T) {
	prev := snap(t, rec("p1", "t0", map[string]normalize.Value{"Tags": []string{"a", "b"}}))
	curr := snap(t, rec("p1", "t0", map[string]normalize.Value{"Tags": []string{"b", "a"}}))
	cs := Build(prev, curr, "Tasks")
	require.Len(t, cs.Changes, 1)
	assert.Equal(t, KindUpdated, cs.Changes[0].Kind)
}
