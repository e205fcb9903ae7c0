// Package frame implements the per-frame sync façade: the piece that runs
// beside each rendered page, issues subscribe/unsubscribe requests to the
// background coordinator, and reconciles inbound snapshots against the
// notes the frame already knows about.
//
// Every public method is non-throwing: a failed request is classified and
// at worst logged, never propagated, because live sync is best effort and
// a subscription failure must never crash the host page.
package frame

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/notewire/notewire/pkg/core"
	"github.com/notewire/notewire/pkg/reconcile"
)

// Coordinator is the messaging surface toward the background registry.
// Implementations send requests over whatever transport links the frame to
// the coordinator process.
type Coordinator interface {
	SubscribeNotes(ctx context.Context, url string) error
	UnsubscribeNotes(ctx context.Context) error
	SubscribeComments(ctx context.Context, noteID string) error
	UnsubscribeComments(ctx context.Context, noteID string) error
}

// Config wires a Facade.
type Config struct {
	Client Coordinator

	// OnNotesUpdate receives the reconciliation diff for each snapshot
	// that actually changes something.
	OnNotesUpdate func(reconcile.Diff)
	// OnCommentsUpdate receives each comment-thread snapshot verbatim.
	OnCommentsUpdate func(noteID string, comments []core.Comment)

	// IsTeardownNoise classifies transport errors: expected teardown
	// noise is swallowed silently, everything else is logged. Defaults
	// to core.IsTeardownNoise.
	IsTeardownNoise func(error) bool

	// GracePeriod for session-created markers. Zero means the default.
	GracePeriod time.Duration

	Logger *slog.Logger
}

// Facade holds the frame-local view of the note collection.
type Facade struct {
	client   Coordinator
	onNotes  func(reconcile.Diff)
	onThread func(string, []core.Comment)
	classify func(error) bool
	logger   *slog.Logger
	now      func() time.Time

	mu          sync.Mutex
	notes       map[string]core.Note
	commentSubs map[string]bool
	markers     *reconcile.SessionMarkers
}

// New creates a Facade for one frame.
func New(cfg Config) *Facade {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	classify := cfg.IsTeardownNoise
	if classify == nil {
		classify = core.IsTeardownNoise
	}
	return &Facade{
		client:      cfg.Client,
		onNotes:     cfg.OnNotesUpdate,
		onThread:    cfg.OnCommentsUpdate,
		classify:    classify,
		logger:      logger,
		now:         time.Now,
		notes:       make(map[string]core.Note),
		commentSubs: make(map[string]bool),
		markers:     reconcile.NewSessionMarkers(cfg.GracePeriod),
	}
}

// SubscribeNotes asks the coordinator for the live notes query of a page.
// Best effort: on failure the frame simply stays unsynced.
func (f *Facade) SubscribeNotes(ctx context.Context, url string) {
	if err := f.client.SubscribeNotes(ctx, url); err != nil {
		f.report("subscribe notes", err)
	}
}

// UnsubscribeNotes tears down the page subscription, best effort.
func (f *Facade) UnsubscribeNotes(ctx context.Context) {
	if err := f.client.UnsubscribeNotes(ctx); err != nil {
		f.report("unsubscribe notes", err)
	}
}

// SubscribeComments opens the comment thread of a note and flags the
// locally cached note as comment-subscribed so the UI can show thread
// state.
func (f *Facade) SubscribeComments(ctx context.Context, noteID string) {
	if err := f.client.SubscribeComments(ctx, noteID); err != nil {
		f.report("subscribe comments", err)
		return
	}
	f.mu.Lock()
	if _, known := f.notes[noteID]; known {
		f.commentSubs[noteID] = true
	}
	f.mu.Unlock()
}

// UnsubscribeComments closes one comment thread and clears its flag.
func (f *Facade) UnsubscribeComments(ctx context.Context, noteID string) {
	f.mu.Lock()
	delete(f.commentSubs, noteID)
	f.mu.Unlock()
	if err := f.client.UnsubscribeComments(ctx, noteID); err != nil {
		f.report("unsubscribe comments", err)
	}
}

// UnsubscribeAllComments closes every open thread. Used on navigation and
// teardown so no registry entries leak.
func (f *Facade) UnsubscribeAllComments(ctx context.Context) {
	f.mu.Lock()
	var open []string
	for id, subscribed := range f.commentSubs {
		if subscribed {
			open = append(open, id)
		}
	}
	f.mu.Unlock()

	for _, id := range open {
		f.UnsubscribeComments(ctx, id)
	}
}

// TrackCreated records a note the user just created in this frame: it
// enters the local map immediately (optimistic UI) and gets a
// session-created marker so the next lagging snapshot does not flash it
// away.
func (f *Facade) TrackCreated(n core.Note) {
	f.mu.Lock()
	f.notes[n.ID] = n
	f.markers.Mark(n.ID, f.now())
	f.mu.Unlock()
}

// HandleNotesUpdate reconciles a pushed snapshot into the local state and
// hands the resulting diff to the UI callback. A nil payload means "no
// snapshot", not "empty set", and is a no-op.
func (f *Facade) HandleNotesUpdate(notes []core.Note) {
	if notes == nil {
		return
	}

	f.mu.Lock()
	if purged := f.markers.PurgeExpired(f.now()); len(purged) > 0 {
		f.logger.Debug("session markers expired", "ids", purged)
	}
	for _, n := range notes {
		f.markers.Confirm(n.ID)
	}

	diff := reconcile.CalculateDiff(f.notes, notes, f.markers)
	for _, id := range diff.ToRemove {
		delete(f.notes, id)
		delete(f.commentSubs, id)
	}
	for _, n := range diff.ToUpdate {
		f.notes[n.ID] = n
	}
	for _, c := range diff.ToCreate {
		f.notes[c.Note.ID] = c.Note
	}
	f.mu.Unlock()

	if diff.Empty() || f.onNotes == nil {
		return
	}
	f.onNotes(diff)
}

// HandleCommentsUpdate delivers a comment-thread snapshot to the UI. A nil
// payload is a no-op.
func (f *Facade) HandleCommentsUpdate(noteID string, comments []core.Comment) {
	if comments == nil || f.onThread == nil {
		return
	}
	f.onThread(noteID, comments)
}

// Note returns the locally cached note, if any.
func (f *Facade) Note(id string) (core.Note, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.notes[id]
	return n, ok
}

// CommentSubscribed reports whether a note's thread is open in this frame.
func (f *Facade) CommentSubscribed(noteID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.commentSubs[noteID]
}

// NoteCount returns the number of locally known notes.
func (f *Facade) NoteCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.notes)
}

// report applies the error classification contract: teardown noise is
// silently absorbed, everything else is logged and dropped.
func (f *Facade) report(op string, err error) {
	if f.classify(err) {
		return
	}
	f.logger.Error("request failed", "op", op, "error", err)
}
