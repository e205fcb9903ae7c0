package reconcile

import "time"

// DefaultGracePeriod is how long a session-created marker protects its note
// from removal. Tunable via the platform options, not a hard invariant.
const DefaultGracePeriod = 15 * time.Second

// SessionMarkers maps note ids created locally in the current session to
// their creation time. A marker proves "this id was written by us very
// recently" and suppresses false deletion while the live query catches up
// with the write (write-then-read lag).
//
// Markers are garbage-collected by confirmation (the note shows up in a
// snapshot) or by age, never by explicit caller action.
type SessionMarkers struct {
	created map[string]time.Time
	grace   time.Duration
}

// NewSessionMarkers creates an empty marker set. A non-positive grace
// period falls back to DefaultGracePeriod.
func NewSessionMarkers(grace time.Duration) *SessionMarkers {
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	return &SessionMarkers{
		created: make(map[string]time.Time),
		grace:   grace,
	}
}

// Mark records a locally created note id at the given time.
func (m *SessionMarkers) Mark(id string, at time.Time) {
	m.created[id] = at
}

// Has reports whether the id carries an active marker.
func (m *SessionMarkers) Has(id string) bool {
	_, ok := m.created[id]
	return ok
}

// Confirm drops the marker for an id that appeared in a server snapshot.
func (m *SessionMarkers) Confirm(id string) {
	delete(m.created, id)
}

// Len returns the number of active markers.
func (m *SessionMarkers) Len() int {
	return len(m.created)
}

// PurgeExpired removes every marker older than the grace period and returns
// the removed ids. It mutates the set in place; this runs on every snapshot,
// so no fresh map is allocated.
func (m *SessionMarkers) PurgeExpired(now time.Time) []string {
	var removed []string
	for id, createdAt := range m.created {
		if now.Sub(createdAt) > m.grace {
			delete(m.created, id)
			removed = append(removed, id)
		}
	}
	return removed
}
