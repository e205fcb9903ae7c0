package registry

import "github.com/notewire/notewire/pkg/core"

// handleState is the explicit per-subscription state machine. A handle is
// created pending (access check in flight), becomes active once the live
// query listener is attached, and ends cancelled. The state is checked at
// every resume point after a suspension, so a cancellation that arrives
// mid-flight short-circuits before the listener attaches, and a late push
// on a superseded listener is discarded instead of delivered.
type handleState int

const (
	statePending handleState = iota + 1
	stateActive
	stateCancelled
)

func (s handleState) String() string {
	switch s {
	case statePending:
		return "pending"
	case stateActive:
		return "active"
	case stateCancelled:
		return "cancelled"
	default:
		return "absent"
	}
}

// handle is one live subscription slot. Exactly one handle may exist per
// key; replacing it cancels the old one first.
type handle struct {
	state  handleState
	cancel core.CancelFunc
	meta   string // url for note handles, note id for comment handles
	frame  int    // owning frame, for comment handles
	deb    *debouncer
}

// teardownLocked transitions the handle to cancelled and returns whatever
// cleanup must run outside the registry lock. Idempotent: a handle already
// cancelled yields nothing.
func (h *handle) teardownLocked() core.CancelFunc {
	if h.state == stateCancelled {
		return nil
	}
	cancel := h.cancel
	h.state = stateCancelled
	h.cancel = nil
	if h.deb != nil {
		h.deb.stop()
	}
	return cancel
}
