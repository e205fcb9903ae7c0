package ws

import (
	"github.com/aretw0/introspection"
)

// HubState exposes internal state for observability.
type HubState struct {
	ConnectedFrames int `json:"connected_frames"`
}

// State implements introspection.Introspectable.
func (h *Hub) State() any {
	h.mu.Lock()
	defer h.mu.Unlock()

	return HubState{
		ConnectedFrames: len(h.frames),
	}
}

// ComponentType implements introspection.Component.
func (h *Hub) ComponentType() string {
	return "ws-hub"
}

var _ introspection.Introspectable = (*Hub)(nil)
var _ introspection.Component = (*Hub)(nil)
