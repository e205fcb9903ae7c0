package registry

import (
	"github.com/aretw0/introspection"
)

// RegistryState exposes internal state for observability.
type RegistryState struct {
	NoteSubscriptions    int    `json:"note_subscriptions"`
	CommentSubscriptions int    `json:"comment_subscriptions"`
	SharedActive         bool   `json:"shared_active"`
	SharedIdentity       string `json:"shared_identity,omitempty"`
}

// State implements introspection.Introspectable.
func (r *Registry) State() any {
	r.mu.Lock()
	defer r.mu.Unlock()

	return RegistryState{
		NoteSubscriptions:    len(r.notes),
		CommentSubscriptions: len(r.comments),
		SharedActive:         r.shared != nil && r.shared.state == stateActive,
		SharedIdentity:       string(r.sharedIdentity),
	}
}

// ComponentType implements introspection.Component.
func (r *Registry) ComponentType() string {
	return "registry"
}

var _ introspection.Introspectable = (*Registry)(nil)
var _ introspection.Component = (*Registry)(nil)
