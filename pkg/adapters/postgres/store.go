// Package postgres implements the document stores against a PostgreSQL
// database. Live queries ride on LISTEN/NOTIFY: every write fires a
// notification on a shared channel and each subscription re-runs its query,
// pushing the snapshot only when it actually changed.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/notewire/notewire/pkg/core"
)

const (
	notesTable    = "notewire_notes"
	commentsTable = "notewire_comments"
	notifyChannel = "notewire_changes"

	operationTimeout     = 5 * time.Second
	listenerMinReconnect = 10 * time.Second
	listenerMaxReconnect = time.Minute
	listenerPingInterval = 90 * time.Second
)

type sqlOpenFunc func(driverName, dsn string) (*sql.DB, error)

// Config holds the configuration for the PostgreSQL store.
type Config struct {
	DSN    string
	Logger *slog.Logger

	// ErrorHandler receives listener runtime failures. Optional.
	ErrorHandler func(error)
}

// Store implements core.NoteStore, core.CommentStore, core.SharedNoteStore
// and core.NoteGetter against PostgreSQL.
type Store struct {
	dsn    string
	config Config
	logger *slog.Logger
	openDB sqlOpenFunc

	initOnce sync.Once
	initErr  error
	db       *sql.DB

	mu              sync.Mutex
	activeListeners int
}

// New creates a PostgreSQL store. The connection is opened and the schema
// bootstrapped lazily on first use.
func New(config Config) (*Store, error) {
	dsn := strings.TrimSpace(config.DSN)
	if dsn == "" {
		return nil, fmt.Errorf("postgres store requires a DSN")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{
		dsn:    dsn,
		config: config,
		logger: logger,
		openDB: sql.Open,
	}, nil
}

func (s *Store) ensureReady() error {
	s.initOnce.Do(func() {
		db, err := s.openDB("postgres", s.dsn)
		if err != nil {
			s.initErr = err
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
		defer cancel()

		for _, query := range []string{
			fmt.Sprintf(`
				CREATE TABLE IF NOT EXISTS %s (
					id TEXT PRIMARY KEY,
					url TEXT NOT NULL,
					content TEXT NOT NULL DEFAULT '',
					theme TEXT NOT NULL DEFAULT '',
					owner_id TEXT NOT NULL,
					shared_with TEXT[] NOT NULL DEFAULT '{}',
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				)`, notesTable),
			fmt.Sprintf(`
				CREATE TABLE IF NOT EXISTS %s (
					id TEXT PRIMARY KEY,
					note_id TEXT NOT NULL,
					author_id TEXT NOT NULL,
					content TEXT NOT NULL DEFAULT '',
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				)`, commentsTable),
			fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_note_id_idx ON %s (note_id)", commentsTable, commentsTable),
			fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_url_idx ON %s (url)", notesTable, notesTable),
		} {
			if _, err := db.ExecContext(ctx, query); err != nil {
				_ = db.Close()
				s.initErr = err
				return
			}
		}
		s.db = db
	})
	return s.initErr
}

// Close releases the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// notifyChanged signals every live query that the dataset moved.
func (s *Store) notifyChanged(ctx context.Context) {
	if _, err := s.db.ExecContext(ctx, "SELECT pg_notify($1, '')", notifyChannel); err != nil {
		s.logger.Debug("change notification failed", "error", err)
	}
}

// --- Note CRUD ---

// SaveNote inserts or updates a note, assigning an id and timestamps on
// first write. Returns the stored note.
func (s *Store) SaveNote(ctx context.Context, n core.Note) (core.Note, error) {
	if n.URL == "" {
		return core.Note{}, fmt.Errorf("note has no URL")
	}
	if n.OwnerID == "" {
		return core.Note{}, fmt.Errorf("note has no owner")
	}
	if err := s.ensureReady(); err != nil {
		return core.Note{}, err
	}

	now := time.Now().UTC()
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	n.UpdatedAt = now

	query := fmt.Sprintf(`
		INSERT INTO %s (id, url, content, theme, owner_id, shared_with, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id)
		DO UPDATE SET url = EXCLUDED.url, content = EXCLUDED.content, theme = EXCLUDED.theme,
			shared_with = EXCLUDED.shared_with, updated_at = EXCLUDED.updated_at`, notesTable)
	_, err := s.db.ExecContext(ctx, query,
		n.ID, n.URL, n.Content, n.Theme, string(n.OwnerID), pq.Array(n.SharedWith), n.CreatedAt, n.UpdatedAt)
	if err != nil {
		return core.Note{}, fmt.Errorf("failed to save note: %w", err)
	}
	s.notifyChanged(ctx)
	return n, nil
}

// GetNote retrieves a note by id.
func (s *Store) GetNote(ctx context.Context, id string) (core.Note, error) {
	if err := s.ensureReady(); err != nil {
		return core.Note{}, err
	}
	query := fmt.Sprintf(`
		SELECT id, url, content, theme, owner_id, shared_with, created_at, updated_at
		FROM %s WHERE id = $1`, notesTable)
	n, err := scanNote(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Note{}, core.ErrNoteNotFound
	}
	return n, err
}

// DeleteNote removes a note and its comment thread.
func (s *Store) DeleteNote(ctx context.Context, id string) error {
	if err := s.ensureReady(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", notesTable), id)
	if err != nil {
		return err
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return core.ErrNoteNotFound
	}
	_, _ = s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE note_id = $1", commentsTable), id)
	s.notifyChanged(ctx)
	return nil
}

// ListNotes returns all notes in creation order.
func (s *Store) ListNotes(ctx context.Context) ([]core.Note, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
		SELECT id, url, content, theme, owner_id, shared_with, created_at, updated_at
		FROM %s ORDER BY created_at ASC, id ASC`, notesTable)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []core.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

// --- Comment CRUD ---

// SaveComment persists a comment. The note must exist.
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

	query := fmt.Sprintf(`
		INSERT INTO %s (id, note_id, author_id, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id)
		DO UPDATE SET content = EXCLUDED.content`, commentsTable)
	_, err := s.db.ExecContext(ctx, query, c.ID, c.NoteID, string(c.AuthorID), c.Content, c.CreatedAt)
	if err != nil {
		return core.Comment{}, fmt.Errorf("failed to save comment: %w", err)
	}
	s.notifyChanged(ctx)
	return c, nil
}

// ListComments returns a note's thread in chronological order.
func (s *Store) ListComments(ctx context.Context, noteID string) ([]core.Comment, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
		SELECT id, note_id, author_id, content, created_at
		FROM %s WHERE note_id = $1 ORDER BY created_at ASC, id ASC`, commentsTable)
	rows, err := s.db.QueryContext(ctx, query, noteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []core.Comment
	for rows.Next() {
		var c core.Comment
		var author string
		if err := rows.Scan(&c.ID, &c.NoteID, &author, &c.Content, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.AuthorID = core.Identity(author)
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// DeleteComment removes one comment from a thread.
func (s *Store) DeleteComment(ctx context.Context, noteID, commentID string) error {
	if err := s.ensureReady(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE id = $1 AND note_id = $2", commentsTable), commentID, noteID)
	if err == nil {
		s.notifyChanged(ctx)
	}
	return err
}

// --- Snapshots ---

func (s *Store) notesSnapshot(ctx context.Context, urlPattern string, identity core.Identity) ([]core.Note, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	// Visibility is decided in SQL; URL glob matching happens in Go so
	// patterns behave identically across adapters.
	query := fmt.Sprintf(`
		SELECT id, url, content, theme, owner_id, shared_with, created_at, updated_at
		FROM %s WHERE owner_id = $1 OR $1 = ANY(shared_with)
		ORDER BY created_at ASC, id ASC`, notesTable)
	rows, err := s.db.QueryContext(ctx, query, string(identity))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []core.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		if matchURL(urlPattern, n.URL) {
			notes = append(notes, n)
		}
	}
	return notes, rows.Err()
}

func (s *Store) sharedSnapshot(ctx context.Context, identity core.Identity) ([]core.Note, error) {
	if err := s.ensureReady(); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
		SELECT id, url, content, theme, owner_id, shared_with, created_at, updated_at
		FROM %s WHERE owner_id <> $1 AND $1 = ANY(shared_with)
		ORDER BY created_at ASC, id ASC`, notesTable)
	rows, err := s.db.QueryContext(ctx, query, string(identity))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []core.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(row rowScanner) (core.Note, error) {
	var n core.Note
	var owner string
	var shared pq.StringArray
	if err := row.Scan(&n.ID, &n.URL, &n.Content, &n.Theme, &owner, &shared, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return core.Note{}, err
	}
	n.OwnerID = core.Identity(owner)
	n.SharedWith = []string(shared)
	return n, nil
}
