package postgres

import (
	"github.com/aretw0/introspection"
)

// StoreState exposes internal state for observability.
type StoreState struct {
	Connected       bool `json:"connected"`
	ActiveListeners int  `json:"active_listeners"`
}

// State implements introspection.Introspectable.
func (s *Store) State() any {
	s.mu.Lock()
	defer s.mu.Unlock()

	return StoreState{
		Connected:       s.db != nil,
		ActiveListeners: s.activeListeners,
	}
}

// ComponentType implements introspection.Component.
func (s *Store) ComponentType() string {
	return "postgres-store"
}

var _ introspection.Introspectable = (*Store)(nil)
var _ introspection.Component = (*Store)(nil)

func (s *Store) listenerStarted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeListeners++
}

func (s *Store) listenerStopped() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeListeners--
}
