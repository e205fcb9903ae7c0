package fs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/notewire/notewire/pkg/core"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := New(Config{
		Path:           t.TempDir(),
		DebounceWindow: 10 * time.Millisecond,
	})
	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	return s
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

// recorder collects pushed snapshots from a live query.
type recorder[T any] struct {
	mu        sync.Mutex
	snapshots [][]T
	errs      []error
}

func (r *recorder[T]) push(s []T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, s)
}

func (r *recorder[T]) fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *recorder[T]) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snapshots)
}

func (r *recorder[T]) latest() []T {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.snapshots) == 0 {
		return nil
	}
	return r.snapshots[len(r.snapshots)-1]
}

func TestInitialize(t *testing.T) {
	t.Run("MustExist Fails On Missing Path", func(t *testing.T) {
		s := New(Config{Path: t.TempDir() + "/nope", MustExist: true})
		if err := s.Initialize(context.Background()); err == nil {
			t.Error("expected error for missing vault path")
		}
	})

	t.Run("Creates Layout", func(t *testing.T) {
		s := newTestStore(t)
		if _, err := s.ListNotes(context.Background()); err != nil {
			t.Fatalf("ListNotes on fresh vault failed: %v", err)
		}
	})
}

func TestNoteCRUD(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	saved, err := s.SaveNote(ctx, core.Note{URL: "https://example.com", Content: "hello", OwnerID: "alice"})
	if err != nil {
		t.Fatalf("SaveNote failed: %v", err)
	}
	if saved.ID == "" {
		t.Fatal("SaveNote did not assign an id")
	}
	if saved.CreatedAt.IsZero() || saved.UpdatedAt.IsZero() {
		t.Fatal("SaveNote did not assign timestamps")
	}

	got, err := s.GetNote(ctx, saved.ID)
	if err != nil {
		t.Fatalf("GetNote failed: %v", err)
	}
	if got.Content != "hello" || got.OwnerID != "alice" {
		t.Errorf("roundtrip mismatch: %+v", got)
	}

	if _, err := s.GetNote(ctx, "missing"); !errors.Is(err, core.ErrNoteNotFound) {
		t.Errorf("expected ErrNoteNotFound, got %v", err)
	}

	if err := s.DeleteNote(ctx, saved.ID); err != nil {
		t.Fatalf("DeleteNote failed: %v", err)
	}
	if _, err := s.GetNote(ctx, saved.ID); !errors.Is(err, core.ErrNoteNotFound) {
		t.Errorf("expected ErrNoteNotFound after delete, got %v", err)
	}
	if err := s.DeleteNote(ctx, saved.ID); !errors.Is(err, core.ErrNoteNotFound) {
		t.Errorf("expected ErrNoteNotFound on double delete, got %v", err)
	}
}

func TestSaveNoteValidation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if _, err := s.SaveNote(ctx, core.Note{OwnerID: "alice"}); err == nil {
		t.Error("expected error for note without URL")
	}
	if _, err := s.SaveNote(ctx, core.Note{URL: "u"}); err == nil {
		t.Error("expected error for note without owner")
	}
}

func TestListNotes(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := older.Add(time.Hour)
	if _, err := s.SaveNote(ctx, core.Note{ID: "b", URL: "u", OwnerID: "alice", CreatedAt: newer}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SaveNote(ctx, core.Note{ID: "a", URL: "u", OwnerID: "alice", CreatedAt: older}); err != nil {
		t.Fatal(err)
	}

	notes, err := s.ListNotes(ctx)
	if err != nil {
		t.Fatalf("ListNotes failed: %v", err)
	}
	if len(notes) != 2 {
		t.Fatalf("expected 2 notes, got %d", len(notes))
	}
	if notes[0].ID != "a" || notes[1].ID != "b" {
		t.Errorf("notes not in creation order: %s, %s", notes[0].ID, notes[1].ID)
	}

	// A second scan should be served from the index without reparsing.
	if s.index.Len() != 2 {
		t.Errorf("expected 2 index entries, got %d", s.index.Len())
	}
	again, err := s.ListNotes(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(again) != 2 || again[0].ID != "a" {
		t.Errorf("cached scan diverged: %+v", again)
	}
}

func TestCommentCRUD(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	note, err := s.SaveNote(ctx, core.Note{URL: "u", OwnerID: "alice"})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := s.SaveComment(ctx, core.Comment{NoteID: "missing", AuthorID: "bob"}); !errors.Is(err, core.ErrNoteNotFound) {
		t.Errorf("expected ErrNoteNotFound for orphan comment, got %v", err)
	}

	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	second := first.Add(time.Minute)
	if _, err := s.SaveComment(ctx, core.Comment{ID: "c2", NoteID: note.ID, AuthorID: "bob", Content: "later", CreatedAt: second}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SaveComment(ctx, core.Comment{ID: "c1", NoteID: note.ID, AuthorID: "bob", Content: "earlier", CreatedAt: first}); err != nil {
		t.Fatal(err)
	}

	comments, err := s.ListComments(ctx, note.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(comments) != 2 {
		t.Fatalf("expected 2 comments, got %d", len(comments))
	}
	if comments[0].ID != "c1" || comments[1].ID != "c2" {
		t.Errorf("comments not chronological: %s, %s", comments[0].ID, comments[1].ID)
	}

	if err := s.DeleteComment(ctx, note.ID, "c1"); err != nil {
		t.Fatal(err)
	}
	comments, _ = s.ListComments(ctx, note.ID)
	if len(comments) != 1 || comments[0].ID != "c2" {
		t.Errorf("expected only c2 left, got %+v", comments)
	}

	// Deleting the note takes the thread with it.
	if err := s.DeleteNote(ctx, note.ID); err != nil {
		t.Fatal(err)
	}
	comments, err = s.ListComments(ctx, note.ID)
	if err != nil || len(comments) != 0 {
		t.Errorf("expected empty thread after note delete, got %v / %v", comments, err)
	}
}

func TestVisibilityFiltering(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	mustSave := func(n core.Note) {
		t.Helper()
		if _, err := s.SaveNote(ctx, n); err != nil {
			t.Fatal(err)
		}
	}
	mustSave(core.Note{ID: "own", URL: "https://example.com/a", OwnerID: "alice"})
	mustSave(core.Note{ID: "shared", URL: "https://example.com/a", OwnerID: "bob", SharedWith: []string{"alice"}})
	mustSave(core.Note{ID: "private", URL: "https://example.com/a", OwnerID: "bob"})
	mustSave(core.Note{ID: "elsewhere", URL: "https://example.com/b", OwnerID: "alice"})

	t.Run("Page Snapshot", func(t *testing.T) {
		notes, err := s.notesSnapshot(ctx, "https://example.com/a", "alice")
		if err != nil {
			t.Fatal(err)
		}
		ids := make(map[string]bool)
		for _, n := range notes {
			ids[n.ID] = true
		}
		if len(notes) != 2 || !ids["own"] || !ids["shared"] {
			t.Errorf("expected own+shared, got %v", ids)
		}
	})

	t.Run("Pattern Snapshot", func(t *testing.T) {
		notes, err := s.notesSnapshot(ctx, "https://example.com/*", "alice")
		if err != nil {
			t.Fatal(err)
		}
		if len(notes) != 3 {
			t.Errorf("expected 3 notes for glob, got %d", len(notes))
		}
	})

	t.Run("Shared Snapshot Excludes Own", func(t *testing.T) {
		notes, err := s.sharedSnapshot(ctx, "alice")
		if err != nil {
			t.Fatal(err)
		}
		if len(notes) != 1 || notes[0].ID != "shared" {
			t.Errorf("expected only the shared note, got %+v", notes)
		}
	})
}

func TestMatchURL(t *testing.T) {
	cases := []struct {
		pattern, url string
		want         bool
	}{
		{"https://example.com/a", "https://example.com/a", true},
		{"https://example.com/a", "https://example.com/b", false},
		{"https://example.com/**", "https://example.com/docs/deep", true},
		{"", "anything", true},
	}
	for _, c := range cases {
		if got := matchURL(c.pattern, c.url); got != c.want {
			t.Errorf("matchURL(%q, %q) = %v, want %v", c.pattern, c.url, got, c.want)
		}
	}
}

func TestSubscribeNotes(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	rec := &recorder[core.Note]{}
	cancel, err := s.SubscribeNotes(ctx, "https://example.com/a", "alice", rec.push, rec.fail)
	if err != nil {
		t.Fatalf("SubscribeNotes failed: %v", err)
	}
	defer cancel()

	waitFor(t, 3*time.Second, func() bool { return rec.count() >= 1 }, "no initial snapshot")
	if len(rec.latest()) != 0 {
		t.Fatalf("expected empty initial snapshot, got %d notes", len(rec.latest()))
	}

	if _, err := s.SaveNote(ctx, core.Note{URL: "https://example.com/a", Content: "hi", OwnerID: "alice"}); err != nil {
		t.Fatal(err)
	}
	waitFor(t, 3*time.Second, func() bool { return len(rec.latest()) == 1 }, "change was not pushed")

	// A note on another page is invisible to this query and must not push.
	before := rec.count()
	if _, err := s.SaveNote(ctx, core.Note{URL: "https://example.com/other", OwnerID: "alice"}); err != nil {
		t.Fatal(err)
	}
	time.Sleep(150 * time.Millisecond)
	if rec.count() != before {
		t.Errorf("unrelated write caused a push: %d -> %d", before, rec.count())
	}

	// After cancel nothing is delivered. Cancel is idempotent.
	cancel()
	cancel()
	after := rec.count()
	if _, err := s.SaveNote(ctx, core.Note{URL: "https://example.com/a", Content: "late", OwnerID: "alice"}); err != nil {
		t.Fatal(err)
	}
	time.Sleep(150 * time.Millisecond)
	if rec.count() != after {
		t.Errorf("push delivered after cancel")
	}

	waitFor(t, 3*time.Second, func() bool {
		return s.State().(StoreState).ActiveWatchers == 0
	}, "watcher did not shut down")
}

func TestSubscribeComments(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	note, err := s.SaveNote(ctx, core.Note{URL: "u", OwnerID: "alice"})
	if err != nil {
		t.Fatal(err)
	}

	rec := &recorder[core.Comment]{}
	cancel, err := s.SubscribeComments(ctx, note.ID, "alice", rec.push, rec.fail)
	if err != nil {
		t.Fatalf("SubscribeComments failed: %v", err)
	}
	defer cancel()

	waitFor(t, 3*time.Second, func() bool { return rec.count() >= 1 }, "no initial snapshot")

	if _, err := s.SaveComment(ctx, core.Comment{NoteID: note.ID, AuthorID: "bob", Content: "first"}); err != nil {
		t.Fatal(err)
	}
	waitFor(t, 3*time.Second, func() bool { return len(rec.latest()) == 1 }, "comment was not pushed")
	if rec.latest()[0].Content != "first" {
		t.Errorf("unexpected comment: %+v", rec.latest()[0])
	}
}

func TestSubscribeShared(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	rec := &recorder[core.Note]{}
	cancel, err := s.SubscribeShared(ctx, "alice", rec.push, rec.fail)
	if err != nil {
		t.Fatalf("SubscribeShared failed: %v", err)
	}
	defer cancel()

	waitFor(t, 3*time.Second, func() bool { return rec.count() >= 1 }, "no initial snapshot")

	// Alice's own note must not appear in her shared feed.
	if _, err := s.SaveNote(ctx, core.Note{URL: "u", OwnerID: "alice"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SaveNote(ctx, core.Note{ID: "from-bob", URL: "u", OwnerID: "bob", SharedWith: []string{"alice"}}); err != nil {
		t.Fatal(err)
	}

	waitFor(t, 3*time.Second, func() bool {
		latest := rec.latest()
		return len(latest) == 1 && latest[0].ID == "from-bob"
	}, "shared note was not pushed")
}
