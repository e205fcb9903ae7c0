// Package registry implements the background coordinator that multiplexes
// live-query subscriptions for all connected frames: one notes subscription
// per (tab, frame), one comment-thread subscription per (tab, note), and a
// single shared-notes subscription per signed-in identity.
//
// The registry owns the create/replace/teardown discipline. It never throws
// out of a handler: every failure becomes a callback invocation or a silent
// state transition, so a subscription failure degrades to "feature does not
// update", never a crash.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/lifecycle"

	"github.com/notewire/notewire/pkg/core"
)

// Config wires the registry's collaborators.
type Config struct {
	Notes     core.NoteStore
	Comments  core.CommentStore
	Shared    core.SharedNoteStore
	Access    core.AccessChecker
	Transport core.Transport
	Badge     core.BadgeSetter

	// DebounceWindow coalesces comment snapshot bursts. Zero means
	// DefaultDebounceWindow.
	DebounceWindow time.Duration

	Logger *slog.Logger

	// ErrorHandler receives unexpected store/transport failures in
	// addition to the error envelope sent to the frame. Optional.
	ErrorHandler func(error)
}

// Registry is constructed once per process and holds all live handles.
// Its maps are mutated only under its own mutex; cross-key operations are
// independent.
type Registry struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	notes    map[core.NoteKey]*handle
	comments map[core.CommentKey]*handle
	shared   *handle
	// unread-badge state for the shared feed
	sharedIdentity core.Identity
	seenShared     map[string]bool
	lastShared     []core.Note
}

// New creates a Registry. Stores left nil disable the matching subscription
// kind (requests against them report an error envelope).
func New(cfg Config) *Registry {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.DebounceWindow <= 0 {
		cfg.DebounceWindow = DefaultDebounceWindow
	}
	return &Registry{
		cfg:        cfg,
		logger:     logger,
		notes:      make(map[core.NoteKey]*handle),
		comments:   make(map[core.CommentKey]*handle),
		seenShared: make(map[string]bool),
	}
}

// SubscribeNotes opens (or replaces) the notes-on-a-page subscription for
// one frame. The access check runs asynchronously; an Unsubscribe arriving
// while it is in flight wins.
func (r *Registry) SubscribeNotes(ctx context.Context, key core.NoteKey, urlPattern string, identity core.Identity) {
	if r.cfg.Notes == nil {
		r.sendError(ctx, key.TabID, key.FrameID, fmt.Errorf("notes store not configured"))
		return
	}

	r.mu.Lock()
	var oldCancel core.CancelFunc
	if old := r.notes[key]; old != nil {
		// Replace, never stack: the previous handle for this key is torn
		// down before the new one enters pending.
		oldCancel = old.teardownLocked()
	}
	h := &handle{state: statePending, meta: urlPattern}
	r.notes[key] = h
	r.mu.Unlock()
	if oldCancel != nil {
		oldCancel()
	}

	r.spawn(ctx, func(ctx context.Context) error {
		ok, err := r.cfg.Access.HasAccess(ctx, urlPattern, identity)

		// Resume point: the check may have lost a race with unsubscribe
		// or with a replacing subscribe.
		r.mu.Lock()
		if r.notes[key] != h || h.state != statePending {
			r.mu.Unlock()
			return nil
		}
		if err != nil || !ok {
			delete(r.notes, key)
			h.state = stateCancelled
			r.mu.Unlock()
			if err == nil {
				err = core.ErrAccessDenied
			}
			r.sendError(ctx, key.TabID, key.FrameID, err)
			return nil
		}
		r.mu.Unlock()

		cancel, err := r.cfg.Notes.SubscribeNotes(ctx, urlPattern, identity,
			func(notes []core.Note) { r.deliverNotes(ctx, key, h, urlPattern, notes) },
			func(err error) { r.storeFailure(ctx, key.TabID, key.FrameID, err, func() { r.dropNoteHandle(key, h) }) },
		)

		// Second resume point: listener attach may also lose the race.
		r.mu.Lock()
		if r.notes[key] != h || h.state != statePending {
			r.mu.Unlock()
			if cancel != nil {
				cancel()
			}
			return nil
		}
		if err != nil {
			delete(r.notes, key)
			h.state = stateCancelled
			r.mu.Unlock()
			r.sendError(ctx, key.TabID, key.FrameID, err)
			return nil
		}
		h.state = stateActive
		h.cancel = cancel
		r.mu.Unlock()
		r.logger.Debug("notes subscription active", "key", key.String(), "url", urlPattern)
		return nil
	})
}

// UnsubscribeNotes tears down the notes subscription for a frame.
// Accepted in any phase: active handles are cancelled, pending handles are
// flagged so the in-flight subscribe short-circuits, absent keys no-op.
func (r *Registry) UnsubscribeNotes(key core.NoteKey) {
	r.mu.Lock()
	h := r.notes[key]
	var cancel core.CancelFunc
	if h != nil {
		delete(r.notes, key)
		cancel = h.teardownLocked()
	}
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// SubscribeComments opens (or replaces) the comment-thread subscription for
// a note within a tab. Delivery is debounced: a burst of snapshots yields
// one update carrying the latest payload.
func (r *Registry) SubscribeComments(ctx context.Context, key core.CommentKey, frameID int, identity core.Identity) {
	if r.cfg.Comments == nil {
		r.sendError(ctx, key.TabID, frameID, fmt.Errorf("comments store not configured"))
		return
	}

	r.mu.Lock()
	var oldCancel core.CancelFunc
	if old := r.comments[key]; old != nil {
		oldCancel = old.teardownLocked()
	}
	h := &handle{state: statePending, meta: key.NoteID, frame: frameID, deb: newDebouncer(r.cfg.DebounceWindow)}
	r.comments[key] = h
	r.mu.Unlock()
	if oldCancel != nil {
		oldCancel()
	}

	r.spawn(ctx, func(ctx context.Context) error {
		ok, err := r.cfg.Access.HasAccess(ctx, key.NoteID, identity)

		r.mu.Lock()
		if r.comments[key] != h || h.state != statePending {
			r.mu.Unlock()
			return nil
		}
		if err != nil || !ok {
			delete(r.comments, key)
			h.state = stateCancelled
			r.mu.Unlock()
			if err == nil {
				err = core.ErrAccessDenied
			}
			r.sendError(ctx, key.TabID, frameID, err)
			return nil
		}
		r.mu.Unlock()

		cancel, err := r.cfg.Comments.SubscribeComments(ctx, key.NoteID, identity,
			func(comments []core.Comment) { r.deliverComments(ctx, key, frameID, h, comments) },
			func(err error) { r.storeFailure(ctx, key.TabID, frameID, err, func() { r.dropCommentHandle(key, h) }) },
		)

		r.mu.Lock()
		if r.comments[key] != h || h.state != statePending {
			r.mu.Unlock()
			if cancel != nil {
				cancel()
			}
			return nil
		}
		if err != nil {
			delete(r.comments, key)
			h.state = stateCancelled
			r.mu.Unlock()
			r.sendError(ctx, key.TabID, frameID, err)
			return nil
		}
		h.state = stateActive
		h.cancel = cancel
		r.mu.Unlock()
		r.logger.Debug("comments subscription active", "key", key.String())
		return nil
	})
}

// UnsubscribeComments tears down one comment-thread subscription. Any
// pending debounce timer is cancelled so no stale payload is delivered
// after teardown.
func (r *Registry) UnsubscribeComments(key core.CommentKey) {
	r.mu.Lock()
	h := r.comments[key]
	var cancel core.CancelFunc
	if h != nil {
		delete(r.comments, key)
		cancel = h.teardownLocked()
	}
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// DropFrame tears down everything owned by one frame: its notes
// subscription and every comment thread it opened. Invoked by the
// transport layer when a frame connection dies; the frame never sends an
// explicit unsubscribe in that case.
func (r *Registry) DropFrame(tabID, frameID int) {
	r.mu.Lock()
	var cancels []core.CancelFunc
	noteKey := core.NoteKey{TabID: tabID, FrameID: frameID}
	if h := r.notes[noteKey]; h != nil {
		delete(r.notes, noteKey)
		if c := h.teardownLocked(); c != nil {
			cancels = append(cancels, c)
		}
	}
	for key, h := range r.comments {
		if key.TabID != tabID || h.frame != frameID {
			continue
		}
		delete(r.comments, key)
		if c := h.teardownLocked(); c != nil {
			cancels = append(cancels, c)
		}
	}
	r.mu.Unlock()
	for _, c := range cancels {
		c()
	}
	r.logger.Debug("frame subscriptions dropped", "tab", tabID, "frame", frameID)
}

// DropTab tears down every subscription scoped to a tab: all of its frames'
// notes subscriptions and all of its comment threads.
func (r *Registry) DropTab(tabID int) {
	r.mu.Lock()
	var cancels []core.CancelFunc
	for key, h := range r.notes {
		if key.TabID != tabID {
			continue
		}
		delete(r.notes, key)
		if c := h.teardownLocked(); c != nil {
			cancels = append(cancels, c)
		}
	}
	for key, h := range r.comments {
		if key.TabID != tabID {
			continue
		}
		delete(r.comments, key)
		if c := h.teardownLocked(); c != nil {
			cancels = append(cancels, c)
		}
	}
	r.mu.Unlock()
	for _, c := range cancels {
		c()
	}
	r.logger.Debug("tab subscriptions dropped", "tab", tabID)
}

// deliverNotes forwards a snapshot to the requesting frame. A push arriving
// after logical cancellation (or on a superseded handle) is discarded. A
// delivery failure means the frame is gone: the registry self-heals by
// treating it as an implicit unsubscribe, cancelling the listener and
// purging the entry.
func (r *Registry) deliverNotes(ctx context.Context, key core.NoteKey, h *handle, url string, notes []core.Note) {
	// Discard only on cancellation or supersession. A push racing the
	// pending→active transition (the store's initial snapshot can arrive
	// before the attach bookkeeping finishes) is still wanted.
	r.mu.Lock()
	if r.notes[key] != h || h.state == stateCancelled {
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	msg := core.Message{Kind: core.KindNotesUpdate, URL: url, Notes: notes}
	if err := r.cfg.Transport.SendToFrame(ctx, key.TabID, key.FrameID, msg); err != nil {
		r.logger.Debug("frame unreachable, purging notes subscription", "key", key.String())
		r.dropNoteHandle(key, h)
	}
}

// deliverComments debounces snapshot bursts, then forwards the latest
// payload if the handle is still live.
func (r *Registry) deliverComments(ctx context.Context, key core.CommentKey, frameID int, h *handle, comments []core.Comment) {
	r.mu.Lock()
	if r.comments[key] != h || h.state == stateCancelled {
		r.mu.Unlock()
		return
	}
	deb := h.deb
	r.mu.Unlock()

	deb.push(func() {
		r.mu.Lock()
		if r.comments[key] != h || h.state == stateCancelled {
			r.mu.Unlock()
			return
		}
		r.mu.Unlock()

		msg := core.Message{Kind: core.KindCommentsUpdate, NoteID: key.NoteID, Comments: comments}
		if err := r.cfg.Transport.SendToFrame(ctx, key.TabID, frameID, msg); err != nil {
			r.logger.Debug("frame unreachable, purging comments subscription", "key", key.String())
			r.dropCommentHandle(key, h)
		}
	})
}

// dropNoteHandle purges a specific handle if it is still the live one for
// its key. Safe against the handle having been replaced concurrently.
func (r *Registry) dropNoteHandle(key core.NoteKey, h *handle) {
	r.mu.Lock()
	if r.notes[key] == h {
		delete(r.notes, key)
	}
	cancel := h.teardownLocked()
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (r *Registry) dropCommentHandle(key core.CommentKey, h *handle) {
	r.mu.Lock()
	if r.comments[key] == h {
		delete(r.comments, key)
	}
	cancel := h.teardownLocked()
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// storeFailure handles an onError callback from a live query: the entry is
// purged (leaving the key absent so the frame may resubscribe) and the
// failure is surfaced once, unless it is expected teardown noise.
func (r *Registry) storeFailure(ctx context.Context, tabID, frameID int, err error, purge func()) {
	purge()
	if core.IsTeardownNoise(err) {
		return
	}
	r.logger.Error("live query failed", "tab", tabID, "frame", frameID, "error", err)
	r.sendError(ctx, tabID, frameID, err)
}

// sendError surfaces a failure to the requesting frame, best effort.
func (r *Registry) sendError(ctx context.Context, tabID, frameID int, err error) {
	if r.cfg.ErrorHandler != nil {
		r.cfg.ErrorHandler(err)
	}
	if r.cfg.Transport == nil {
		return
	}
	msg := core.Message{Kind: core.KindError, Error: err.Error()}
	if sendErr := r.cfg.Transport.SendToFrame(ctx, tabID, frameID, msg); sendErr != nil {
		r.logger.Debug("error envelope undeliverable", "tab", tabID, "frame", frameID)
	}
}

// spawn runs the pending phase of a subscription on its own goroutine,
// tracked by lifecycle so panics surface through the error handler instead
// of tearing the process down.
func (r *Registry) spawn(ctx context.Context, fn func(context.Context) error) {
	lifecycle.Go(ctx, fn, lifecycle.WithErrorHandler(func(err error) {
		if r.cfg.ErrorHandler != nil {
			r.cfg.ErrorHandler(err)
		}
		r.logger.Error("subscription setup panic", "error", err)
	}))
}
