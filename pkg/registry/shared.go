package registry

import (
	"context"

	"github.com/notewire/notewire/pkg/core"
)

// SubscribeShared opens the singleton "shared with me" subscription for the
// signed-in identity. Its pushes do not reach any frame; they feed the
// derived unread badge count instead. A previous subscription (e.g. from a
// prior sign-in) is replaced.
func (r *Registry) SubscribeShared(ctx context.Context, identity core.Identity) {
	if r.cfg.Shared == nil {
		return
	}

	r.mu.Lock()
	var oldCancel core.CancelFunc
	if r.shared != nil {
		oldCancel = r.shared.teardownLocked()
	}
	h := &handle{state: statePending, meta: string(identity)}
	r.shared = h
	if r.sharedIdentity != identity {
		// New identity, fresh unread bookkeeping.
		r.sharedIdentity = identity
		r.seenShared = make(map[string]bool)
		r.lastShared = nil
	}
	r.mu.Unlock()
	if oldCancel != nil {
		oldCancel()
	}

	r.spawn(ctx, func(ctx context.Context) error {
		cancel, err := r.cfg.Shared.SubscribeShared(ctx, identity,
			func(notes []core.Note) { r.handleSharedPush(h, notes) },
			func(err error) {
				r.dropShared(h)
				if !core.IsTeardownNoise(err) {
					r.logger.Error("shared-notes query failed", "error", err)
					if r.cfg.ErrorHandler != nil {
						r.cfg.ErrorHandler(err)
					}
				}
			},
		)

		r.mu.Lock()
		if r.shared != h || h.state != statePending {
			r.mu.Unlock()
			if cancel != nil {
				cancel()
			}
			return nil
		}
		if err != nil {
			r.shared = nil
			h.state = stateCancelled
			r.mu.Unlock()
			r.logger.Error("shared-notes subscribe failed", "error", err)
			if r.cfg.ErrorHandler != nil {
				r.cfg.ErrorHandler(err)
			}
			return nil
		}
		h.state = stateActive
		h.cancel = cancel
		r.mu.Unlock()
		r.logger.Debug("shared-notes subscription active", "identity", string(identity))
		return nil
	})
}

// UnsubscribeShared tears down the shared-notes subscription, e.g. on
// sign-out. The badge resets to zero.
func (r *Registry) UnsubscribeShared() {
	r.mu.Lock()
	h := r.shared
	var cancel core.CancelFunc
	if h != nil {
		r.shared = nil
		cancel = h.teardownLocked()
	}
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if r.cfg.Badge != nil {
		r.cfg.Badge.SetBadge(0)
	}
}

// AcknowledgeShared marks the current shared feed as seen, clearing the
// badge until new notes arrive.
func (r *Registry) AcknowledgeShared() {
	r.mu.Lock()
	for _, n := range r.lastShared {
		r.seenShared[n.ID] = true
	}
	r.mu.Unlock()
	if r.cfg.Badge != nil {
		r.cfg.Badge.SetBadge(0)
	}
}

// handleSharedPush recomputes the unread count from the latest snapshot:
// every shared note not yet acknowledged this session counts as unread.
// Acknowledged ids that left the feed are forgotten, so a note
// unshared and later reshared counts as unread again.
func (r *Registry) handleSharedPush(h *handle, notes []core.Note) {
	r.mu.Lock()
	if r.shared != h || h.state == stateCancelled {
		r.mu.Unlock()
		return
	}
	r.lastShared = notes
	present := make(map[string]bool, len(notes))
	unread := 0
	for _, n := range notes {
		present[n.ID] = true
		if !r.seenShared[n.ID] {
			unread++
		}
	}
	for id := range r.seenShared {
		if !present[id] {
			delete(r.seenShared, id)
		}
	}
	r.mu.Unlock()

	if r.cfg.Badge != nil {
		r.cfg.Badge.SetBadge(unread)
	}
	r.logger.Debug("shared feed updated", "total", len(notes), "unread", unread)
}

func (r *Registry) dropShared(h *handle) {
	r.mu.Lock()
	if r.shared == h {
		r.shared = nil
	}
	cancel := h.teardownLocked()
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
