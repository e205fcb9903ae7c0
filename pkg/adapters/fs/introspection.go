package fs

import (
	"github.com/aretw0/introspection"
)

// StoreState exposes internal state for observability.
type StoreState struct {
	Path           string `json:"path"`
	SystemDir      string `json:"system_dir"`
	IndexSize      int    `json:"index_size"`
	ActiveWatchers int    `json:"active_watchers"`
}

// State implements introspection.Introspectable.
func (s *Store) State() any {
	s.mu.Lock()
	defer s.mu.Unlock()

	return StoreState{
		Path:           s.Path,
		SystemDir:      s.config.SystemDir,
		IndexSize:      s.index.Len(),
		ActiveWatchers: s.activeWatchers,
	}
}

// ComponentType implements introspection.Component.
func (s *Store) ComponentType() string {
	return "fs-store"
}

var _ introspection.Introspectable = (*Store)(nil)
var _ introspection.Component = (*Store)(nil)

func (s *Store) watcherStarted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeWatchers++
}

func (s *Store) watcherStopped() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeWatchers--
}
