package fs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/notewire/notewire/pkg/core"
)

// indexEntry caches one parsed note alongside the file mtime it was
// parsed at.
type indexEntry struct {
	Note         core.Note `json:"note"`
	LastModified time.Time `json:"lastModified"`
}

type indexState struct {
	Version int                    `json:"version"`
	Entries map[string]*indexEntry `json:"entries"` // Key is file name (e.g. "foo.md")
}

// index persists parsed-note metadata under the system directory so a
// vault rescan only reparses files whose mtime changed.
type index struct {
	Path string // Path to {systemDir}/index.json

	mu    sync.RWMutex
	state indexState
	dirty bool
}

func newIndex(vaultPath, systemDir string) *index {
	return &index{
		Path: filepath.Join(vaultPath, systemDir, "index.json"),
		state: indexState{
			Version: 1,
			Entries: make(map[string]*indexEntry),
		},
	}
}

// Load reads the index from disk. A missing or corrupted file means a
// fresh index, not an error.
func (c *index) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.Path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read index: %w", err)
	}

	if err := json.Unmarshal(data, &c.state); err != nil {
		c.state.Entries = make(map[string]*indexEntry)
		return nil
	}
	if c.state.Entries == nil {
		c.state.Entries = make(map[string]*indexEntry)
	}

	c.dirty = false
	return nil
}

// Save persists the index if it changed since the last Load or Save.
func (c *index) Save() error {
	c.mu.RLock()
	if !c.dirty {
		c.mu.RUnlock()
		return nil
	}
	data, err := json.MarshalIndent(c.state, "", "  ")
	c.mu.RUnlock()

	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(c.Path), 0755); err != nil {
		return err
	}
	if err := writeFileAtomic(c.Path, data, 0644); err != nil {
		return err
	}

	c.mu.Lock()
	c.dirty = false
	c.mu.Unlock()
	return nil
}

// Get returns the cached note if the entry exists and its recorded mtime
// matches the file's current mtime.
func (c *index) Get(name string, currentMtime time.Time) (core.Note, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.state.Entries[name]
	if !ok {
		return core.Note{}, false
	}
	if !entry.LastModified.Equal(currentMtime) {
		return core.Note{}, false
	}
	return entry.Note, true
}

// Set records a freshly parsed note.
func (c *index) Set(name string, n core.Note, mtime time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.Entries[name] = &indexEntry{Note: n, LastModified: mtime}
	c.dirty = true
}

// Prune removes entries whose files are no longer in the vault.
func (c *index) Prune(keep map[string]bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for name := range c.state.Entries {
		if !keep[name] {
			delete(c.state.Entries, name)
			c.dirty = true
		}
	}
}

// Len returns the number of cached entries.
func (c *index) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.state.Entries)
}
