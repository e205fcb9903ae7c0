package core

import "context"

// CancelFunc tears down a live query. Implementations must be idempotent:
// calling it more than once is a safe no-op after the first.
type CancelFunc func()

// NoteStore is a document store that supports push-based live queries over
// notes. Subscribe delivers the full current result set on every change
// (a snapshot, not a delta), starting with one initial snapshot.
// Within one subscription, snapshots arrive in commit order.
type NoteStore interface {
	// SubscribeNotes opens a live query for all notes visible to identity
	// whose URL matches urlPattern (doublestar glob or exact match).
	SubscribeNotes(ctx context.Context, urlPattern string, identity Identity, onSnapshot func([]Note), onError func(error)) (CancelFunc, error)
}

// CommentStore serves live queries over a single note's comment thread.
type CommentStore interface {
	SubscribeComments(ctx context.Context, noteID string, identity Identity, onSnapshot func([]Comment), onError func(error)) (CancelFunc, error)
}

// SharedNoteStore serves the per-identity "shared with me" live query:
// every note shared with (but not owned by) the identity.
type SharedNoteStore interface {
	SubscribeShared(ctx context.Context, identity Identity, onSnapshot func([]Note), onError func(error)) (CancelFunc, error)
}

// AccessChecker verifies that an identity may open a live query against a
// resource (a note id or a page URL).
type AccessChecker interface {
	HasAccess(ctx context.Context, resourceID string, identity Identity) (bool, error)
}

// Transport delivers messages to a specific frame. An error return means
// the frame is unreachable; callers treat that as an implicit unsubscribe
// signal, never as a reportable failure.
type Transport interface {
	SendToFrame(ctx context.Context, tabID, frameID int, msg Message) error
}

// BadgeSetter receives the derived unread count for the shared-notes feed.
type BadgeSetter interface {
	SetBadge(count int)
}

// NoteGetter is the read surface access checks are built on.
type NoteGetter interface {
	GetNote(ctx context.Context, id string) (Note, error)
}

// Store is the full document-store surface an adapter provides: every live
// query kind plus the point read used for access checks.
type Store interface {
	NoteStore
	CommentStore
	SharedNoteStore
	NoteGetter
}
