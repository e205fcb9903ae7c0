package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/notewire/notewire/pkg/core"
)

func integrationDSN(t *testing.T) string {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("NOTEWIRE_TEST_POSTGRES_DSN"))
	if dsn == "" {
		t.Skip("set NOTEWIRE_TEST_POSTGRES_DSN to run Postgres integration tests")
	}
	return dsn
}

func integrationStore(t *testing.T) *Store {
	t.Helper()
	dsn := integrationDSN(t)
	s, err := New(Config{DSN: dsn})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		integrationTruncate(t, dsn)
		_ = s.Close()
	})
	integrationTruncate(t, dsn)
	return s
}

func integrationTruncate(t *testing.T, dsn string) {
	t.Helper()
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open for cleanup: %v", err)
	}
	defer db.Close()
	for _, table := range []string{notesTable, commentsTable} {
		_, _ = db.Exec(fmt.Sprintf("TRUNCATE TABLE %s", table))
	}
}

func TestIntegrationNoteRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := integrationStore(t)

	saved, err := s.SaveNote(ctx, core.Note{
		URL:        "https://example.com/a",
		Content:    "hello",
		OwnerID:    "alice",
		SharedWith: []string{"bob"},
	})
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if saved.ID == "" {
		t.Fatal("save did not assign an id")
	}

	got, err := s.GetNote(ctx, saved.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Content != "hello" || got.OwnerID != "alice" {
		t.Errorf("roundtrip mismatch: %+v", got)
	}
	if len(got.SharedWith) != 1 || got.SharedWith[0] != "bob" {
		t.Errorf("shared_with mismatch: %v", got.SharedWith)
	}

	saved.Content = "edited"
	if _, err := s.SaveNote(ctx, saved); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	got, _ = s.GetNote(ctx, saved.ID)
	if got.Content != "edited" {
		t.Errorf("update not persisted: %q", got.Content)
	}

	if err := s.DeleteNote(ctx, saved.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := s.GetNote(ctx, saved.ID); !errors.Is(err, core.ErrNoteNotFound) {
		t.Errorf("expected ErrNoteNotFound after delete, got %v", err)
	}
}

func TestIntegrationVisibility(t *testing.T) {
	ctx := context.Background()
	s := integrationStore(t)

	mustSave := func(n core.Note) {
		t.Helper()
		if _, err := s.SaveNote(ctx, n); err != nil {
			t.Fatal(err)
		}
	}
	mustSave(core.Note{ID: "own", URL: "https://example.com/a", OwnerID: "alice"})
	mustSave(core.Note{ID: "shared", URL: "https://example.com/a", OwnerID: "bob", SharedWith: []string{"alice"}})
	mustSave(core.Note{ID: "private", URL: "https://example.com/a", OwnerID: "bob"})

	notes, err := s.notesSnapshot(ctx, "https://example.com/a", "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(notes) != 2 {
		t.Fatalf("expected own+shared, got %d notes", len(notes))
	}

	shared, err := s.sharedSnapshot(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(shared) != 1 || shared[0].ID != "shared" {
		t.Errorf("expected only the shared note, got %+v", shared)
	}
}

func TestIntegrationSubscribeNotes(t *testing.T) {
	ctx := context.Background()
	s := integrationStore(t)

	var mu sync.Mutex
	var snapshots [][]core.Note
	cancel, err := s.SubscribeNotes(ctx, "https://example.com/a", "alice", func(notes []core.Note) {
		mu.Lock()
		defer mu.Unlock()
		snapshots = append(snapshots, notes)
	}, func(err error) {
		t.Logf("subscription error: %v", err)
	})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer cancel()

	count := func() int {
		mu.Lock()
		defer mu.Unlock()
		return len(snapshots)
	}
	latest := func() []core.Note {
		mu.Lock()
		defer mu.Unlock()
		if len(snapshots) == 0 {
			return nil
		}
		return snapshots[len(snapshots)-1]
	}

	waitFor := func(cond func() bool, msg string) {
		t.Helper()
		deadline := time.Now().Add(10 * time.Second)
		for time.Now().Before(deadline) {
			if cond() {
				return
			}
			time.Sleep(20 * time.Millisecond)
		}
		t.Fatal(msg)
	}

	waitFor(func() bool { return count() >= 1 }, "no initial snapshot")

	if _, err := s.SaveNote(ctx, core.Note{URL: "https://example.com/a", Content: "hi", OwnerID: "alice"}); err != nil {
		t.Fatal(err)
	}
	waitFor(func() bool { return len(latest()) == 1 }, "change was not pushed")

	cancel()
	cancel()
	waitFor(func() bool { return s.State().(StoreState).ActiveListeners == 0 }, "listener did not shut down")
}

func TestIntegrationComments(t *testing.T) {
	ctx := context.Background()
	s := integrationStore(t)

	note, err := s.SaveNote(ctx, core.Note{URL: "u", OwnerID: "alice"})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := s.SaveComment(ctx, core.Comment{NoteID: "missing", AuthorID: "bob"}); !errors.Is(err, core.ErrNoteNotFound) {
		t.Errorf("expected ErrNoteNotFound for orphan comment, got %v", err)
	}

	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, err := s.SaveComment(ctx, core.Comment{ID: "c2", NoteID: note.ID, AuthorID: "bob", CreatedAt: first.Add(time.Minute)}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SaveComment(ctx, core.Comment{ID: "c1", NoteID: note.ID, AuthorID: "bob", CreatedAt: first}); err != nil {
		t.Fatal(err)
	}

	comments, err := s.ListComments(ctx, note.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(comments) != 2 || comments[0].ID != "c1" || comments[1].ID != "c2" {
		t.Errorf("comments not chronological: %+v", comments)
	}

	if err := s.DeleteNote(ctx, note.ID); err != nil {
		t.Fatal(err)
	}
	comments, _ = s.ListComments(ctx, note.ID)
	if len(comments) != 0 {
		t.Errorf("expected empty thread after note delete, got %+v", comments)
	}
}
