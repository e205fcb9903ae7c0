// Package fs implements the document stores on top of a plain directory
// tree: notes and comments are Markdown files with YAML frontmatter, and
// live queries are served by watching the vault with fsnotify. The result
// is a push-based snapshot listener over files, the same contract a hosted
// document database offers, without the hosting.
package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"

	"github.com/notewire/notewire/pkg/core"
)

const (
	notesDir    = "notes"
	commentsDir = "comments"
)

// Config holds the configuration for the filesystem store.
type Config struct {
	Path      string
	AutoInit  bool
	MustExist bool
	SystemDir string // e.g. ".notewire"
	Logger    *slog.Logger

	// ErrorHandler receives watcher runtime failures. Optional.
	ErrorHandler func(error)

	// DebounceWindow is the quiet interval before a filesystem burst is
	// turned into one snapshot rescan. Zero means 50ms.
	DebounceWindow time.Duration
}

// Store implements core.NoteStore, core.CommentStore, core.SharedNoteStore
// and core.NoteGetter against a vault directory.
type Store struct {
	Path   string
	config Config
	logger *slog.Logger
	index  *index

	mu             sync.Mutex
	activeWatchers int
}

// New creates a filesystem store. Call Initialize before use.
func New(config Config) *Store {
	if config.SystemDir == "" {
		config.SystemDir = ".notewire"
	}
	if config.DebounceWindow <= 0 {
		config.DebounceWindow = 50 * time.Millisecond
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{
		Path:   config.Path,
		config: config,
		logger: logger,
		index:  newIndex(config.Path, config.SystemDir),
	}
}

// Initialize ensures the vault directory layout exists.
func (s *Store) Initialize(ctx context.Context) error {
	if s.config.MustExist {
		info, err := os.Stat(s.Path)
		if os.IsNotExist(err) {
			return fmt.Errorf("vault path does not exist: %s", s.Path)
		}
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return fmt.Errorf("vault path is not a directory: %s", s.Path)
		}
	}
	for _, dir := range []string{notesDir, commentsDir, s.config.SystemDir} {
		if err := os.MkdirAll(filepath.Join(s.Path, dir), 0755); err != nil {
			return fmt.Errorf("failed to create vault directory: %w", err)
		}
	}
	return nil
}

// --- Note CRUD ---

// SaveNote persists a note, assigning an id and timestamps on first write.
// Returns the stored note.
func (s *Store) SaveNote(ctx context.Context, n core.Note) (core.Note, error) {
	if n.URL == "" {
		return core.Note{}, fmt.Errorf("note has no URL")
	}
	if n.OwnerID == "" {
		return core.Note{}, fmt.Errorf("note has no owner")
	}
	now := time.Now().UTC()
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	n.UpdatedAt = now

	data, err := serializeNote(n)
	if err != nil {
		return core.Note{}, fmt.Errorf("failed to serialize note: %w", err)
	}
	if err := writeFileAtomic(s.notePath(n.ID), data, 0644); err != nil {
		return core.Note{}, fmt.Errorf("failed to write note: %w", err)
	}
	return n, nil
}

// GetNote retrieves a note by id.
func (s *Store) GetNote(ctx context.Context, id string) (core.Note, error) {
	data, err := os.ReadFile(s.notePath(id))
	if os.IsNotExist(err) {
		return core.Note{}, core.ErrNoteNotFound
	}
	if err != nil {
		return core.Note{}, err
	}
	return parseNote(id, data)
}

// DeleteNote removes a note and its comment thread.
func (s *Store) DeleteNote(ctx context.Context, id string) error {
	if err := os.Remove(s.notePath(id)); err != nil {
		if os.IsNotExist(err) {
			return core.ErrNoteNotFound
		}
		return err
	}
	// The thread has no life of its own once the note is gone.
	_ = os.RemoveAll(filepath.Join(s.Path, commentsDir, id))
	return nil
}

// ListNotes scans the vault for all notes, using the mtime index to skip
// reparsing unchanged files.
func (s *Store) ListNotes(ctx context.Context) ([]core.Note, error) {
	dir := filepath.Join(s.Path, notesDir)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := s.index.Load(); err != nil {
		s.logger.Debug("index load failed, rescanning", "error", err)
	}

	var notes []core.Note
	seen := make(map[string]bool)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") || strings.HasPrefix(entry.Name(), TempFilePrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".md")
		seen[entry.Name()] = true

		if cached, hit := s.index.Get(entry.Name(), info.ModTime()); hit {
			notes = append(notes, cached)
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		n, err := parseNote(id, data)
		if err != nil {
			s.logger.Debug("skipping unparseable note", "file", entry.Name(), "error", err)
			continue
		}
		s.index.Set(entry.Name(), n, info.ModTime())
		notes = append(notes, n)
	}

	s.index.Prune(seen)
	if err := s.index.Save(); err != nil {
		s.logger.Debug("index save failed", "error", err)
	}

	sortNotes(notes)
	return notes, nil
}

// --- Comment CRUD ---

// SaveComment persists a comment under its note's thread directory.
func (s *Store) SaveComment(ctx context.Context, c core.Comment) (core.Comment, error) {
	if c.NoteID == "" {
		return core.Comment{}, fmt.Errorf("comment has no note id")
	}
	if _, err := s.GetNote(ctx, c.NoteID); err != nil {
		return core.Comment{}, err
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	dir := filepath.Join(s.Path, commentsDir, c.NoteID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return core.Comment{}, fmt.Errorf("failed to create thread directory: %w", err)
	}
	data, err := serializeComment(c)
	if err != nil {
		return core.Comment{}, fmt.Errorf("failed to serialize comment: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(dir, c.ID+".md"), data, 0644); err != nil {
		return core.Comment{}, fmt.Errorf("failed to write comment: %w", err)
	}
	return c, nil
}

// ListComments returns a note's thread in chronological order.
func (s *Store) ListComments(ctx context.Context, noteID string) ([]core.Comment, error) {
	dir := filepath.Join(s.Path, commentsDir, noteID)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var comments []core.Comment
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") || strings.HasPrefix(entry.Name(), TempFilePrefix) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		c, err := parseComment(strings.TrimSuffix(entry.Name(), ".md"), noteID, data)
		if err != nil {
			s.logger.Debug("skipping unparseable comment", "file", entry.Name(), "error", err)
			continue
		}
		comments = append(comments, c)
	}

	sort.Slice(comments, func(i, j int) bool {
		if comments[i].CreatedAt.Equal(comments[j].CreatedAt) {
			return comments[i].ID < comments[j].ID
		}
		return comments[i].CreatedAt.Before(comments[j].CreatedAt)
	})
	return comments, nil
}

// DeleteComment removes one comment from a thread.
func (s *Store) DeleteComment(ctx context.Context, noteID, commentID string) error {
	return os.Remove(filepath.Join(s.Path, commentsDir, noteID, commentID+".md"))
}

// --- Live queries ---

// SubscribeNotes opens a live query for the notes of a page. The initial
// snapshot is pushed asynchronously right after the watcher attaches;
// subsequent vault changes trigger a debounced rescan, and a snapshot is
// only pushed when its visible content actually changed.
func (s *Store) SubscribeNotes(ctx context.Context, urlPattern string, identity core.Identity, onSnapshot func([]core.Note), onError func(error)) (core.CancelFunc, error) {
	return subscribeLive(ctx, s, func() ([]core.Note, error) {
		return s.notesSnapshot(ctx, urlPattern, identity)
	}, onSnapshot, onError)
}

// SubscribeComments opens a live query over one note's thread.
func (s *Store) SubscribeComments(ctx context.Context, noteID string, identity core.Identity, onSnapshot func([]core.Comment), onError func(error)) (core.CancelFunc, error) {
	return subscribeLive(ctx, s, func() ([]core.Comment, error) {
		return s.ListComments(ctx, noteID)
	}, onSnapshot, onError)
}

// SubscribeShared opens the "shared with me" live query: notes the
// identity can see but does not own.
func (s *Store) SubscribeShared(ctx context.Context, identity core.Identity, onSnapshot func([]core.Note), onError func(error)) (core.CancelFunc, error) {
	return subscribeLive(ctx, s, func() ([]core.Note, error) {
		return s.sharedSnapshot(ctx, identity)
	}, onSnapshot, onError)
}

// subscribeLive attaches a watcher whose rescans recompute the snapshot
// and push it only when the serialized form changed, so unrelated vault
// writes cause no spurious pushes.
func subscribeLive[T any](ctx context.Context, s *Store, compute func() ([]T, error), push func([]T), onError func(error)) (core.CancelFunc, error) {
	var mu sync.Mutex
	var last []byte

	emit := func() {
		snapshot, err := compute()
		if err != nil {
			onError(err)
			return
		}
		sig, err := json.Marshal(snapshot)
		if err != nil {
			onError(err)
			return
		}
		mu.Lock()
		if last != nil && bytes.Equal(last, sig) {
			mu.Unlock()
			return
		}
		last = sig
		mu.Unlock()
		push(snapshot)
	}

	w := newWatcher(s, emit, onError)
	if err := w.Start(ctx); err != nil {
		return nil, err
	}
	var once sync.Once
	return func() {
		once.Do(func() { w.stopWatcher() })
	}, nil
}

func (s *Store) notesSnapshot(ctx context.Context, urlPattern string, identity core.Identity) ([]core.Note, error) {
	all, err := s.ListNotes(ctx)
	if err != nil {
		return nil, err
	}
	var notes []core.Note
	for _, n := range all {
		if n.VisibleTo(identity) && matchURL(urlPattern, n.URL) {
			notes = append(notes, n)
		}
	}
	return notes, nil
}

func (s *Store) sharedSnapshot(ctx context.Context, identity core.Identity) ([]core.Note, error) {
	all, err := s.ListNotes(ctx)
	if err != nil {
		return nil, err
	}
	var notes []core.Note
	for _, n := range all {
		if n.OwnerID != identity && n.VisibleTo(identity) {
			notes = append(notes, n)
		}
	}
	return notes, nil
}

// matchURL accepts an exact URL or a doublestar pattern, so a frame can
// subscribe to "https://example.com/docs/**" and cover a whole section.
func matchURL(pattern, url string) bool {
	if pattern == "" || pattern == url {
		return true
	}
	ok, err := doublestar.Match(pattern, url)
	return err == nil && ok
}

func (s *Store) notePath(id string) string {
	return filepath.Join(s.Path, notesDir, id+".md")
}

func sortNotes(notes []core.Note) {
	sort.Slice(notes, func(i, j int) bool {
		if notes[i].CreatedAt.Equal(notes[j].CreatedAt) {
			return notes[i].ID < notes[j].ID
		}
		return notes[i].CreatedAt.Before(notes[j].CreatedAt)
	})
}
