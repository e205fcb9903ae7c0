// Package reconcile holds the pure reconciliation logic that merges
// server-pushed snapshots into locally known note state. No I/O, no state
// beyond the collections passed in; deterministic given identical inputs.
package reconcile

import "github.com/notewire/notewire/pkg/core"

// CreatedNote is a note queued for creation, tagged so the caller can
// suppress the entrance animation for notes the user just created.
type CreatedNote struct {
	Note      core.Note
	IsNewNote bool
}

// Diff is the derived reconciliation result. It is a value, never persisted.
type Diff struct {
	ToRemove []string
	ToUpdate []core.Note
	ToCreate []CreatedNote
}

// Empty reports whether applying the diff would change nothing.
func (d Diff) Empty() bool {
	return len(d.ToRemove) == 0 && len(d.ToUpdate) == 0 && len(d.ToCreate) == 0
}

// CalculateDiff reconciles the locally held notes against a full snapshot
// pushed by a live query. snapshot is authoritative and complete, not a
// delta.
//
// Rules:
//   - a locally known id absent from the snapshot is removed, unless it
//     carries an active session-created marker (the confirming snapshot for
//     a fresh local write may not have arrived yet);
//   - an id present in both sides is updated only if a mutable field
//     (content, theme) actually differs, so unrelated writes (updatedAt
//     bumps) cause no UI churn;
//   - an id only in the snapshot is created, tagged IsNewNote when a marker
//     proves this session wrote it.
//
// Callers purge expired markers before diffing; CalculateDiff itself never
// mutates markers.
func CalculateDiff(current map[string]core.Note, snapshot []core.Note, markers *SessionMarkers) Diff {
	var diff Diff

	inSnapshot := make(map[string]core.Note, len(snapshot))
	for _, n := range snapshot {
		inSnapshot[n.ID] = n
	}

	for id := range current {
		if _, ok := inSnapshot[id]; ok {
			continue
		}
		if markers != nil && markers.Has(id) {
			continue
		}
		diff.ToRemove = append(diff.ToRemove, id)
	}

	for _, n := range snapshot {
		local, known := current[n.ID]
		if !known {
			isNew := markers != nil && markers.Has(n.ID)
			diff.ToCreate = append(diff.ToCreate, CreatedNote{Note: n, IsNewNote: isNew})
			continue
		}
		if local.Content != n.Content || local.EffectiveTheme() != n.EffectiveTheme() {
			diff.ToUpdate = append(diff.ToUpdate, n)
		}
	}

	return diff
}
