package fs

import (
	"strings"
	"testing"
	"time"

	"github.com/notewire/notewire/pkg/core"
)

func TestNoteRoundtrip(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	updated := created.Add(time.Hour)

	original := core.Note{
		ID:         "n1",
		URL:        "https://example.com/page",
		Content:    "remember the milk",
		Theme:      "blue",
		OwnerID:    "alice",
		SharedWith: []string{"bob", "carol"},
		CreatedAt:  created,
		UpdatedAt:  updated,
	}

	data, err := serializeNote(original)
	if err != nil {
		t.Fatalf("serializeNote failed: %v", err)
	}

	parsed, err := parseNote("n1", data)
	if err != nil {
		t.Fatalf("parseNote failed: %v", err)
	}

	if parsed.URL != original.URL {
		t.Errorf("URL mismatch: got %q", parsed.URL)
	}
	if parsed.Content != original.Content {
		t.Errorf("Content mismatch: got %q", parsed.Content)
	}
	if parsed.Theme != original.Theme {
		t.Errorf("Theme mismatch: got %q", parsed.Theme)
	}
	if parsed.OwnerID != original.OwnerID {
		t.Errorf("OwnerID mismatch: got %q", parsed.OwnerID)
	}
	if len(parsed.SharedWith) != 2 || parsed.SharedWith[0] != "bob" {
		t.Errorf("SharedWith mismatch: got %v", parsed.SharedWith)
	}
	if !parsed.CreatedAt.Equal(created) || !parsed.UpdatedAt.Equal(updated) {
		t.Errorf("timestamp mismatch: got %v / %v", parsed.CreatedAt, parsed.UpdatedAt)
	}
}

func TestNoteSerialization(t *testing.T) {
	t.Run("Default Theme Omitted", func(t *testing.T) {
		data, err := serializeNote(core.Note{ID: "n1", URL: "u", OwnerID: "alice"})
		if err != nil {
			t.Fatal(err)
		}
		if strings.Contains(string(data), "theme:") {
			t.Errorf("empty theme should be omitted from frontmatter:\n%s", data)
		}
	})

	t.Run("Content With Delimiter Survives", func(t *testing.T) {
		original := core.Note{ID: "n1", URL: "u", OwnerID: "alice", Content: "first\n---\nsecond"}
		data, err := serializeNote(original)
		if err != nil {
			t.Fatal(err)
		}
		parsed, err := parseNote("n1", data)
		if err != nil {
			t.Fatal(err)
		}
		if parsed.Content != original.Content {
			t.Errorf("content mangled: got %q", parsed.Content)
		}
	})

	t.Run("Missing Frontmatter Fails", func(t *testing.T) {
		if _, err := parseNote("n1", []byte("just a body")); err == nil {
			t.Error("expected error for file without frontmatter")
		}
	})

	t.Run("Unclosed Frontmatter Fails", func(t *testing.T) {
		if _, err := parseNote("n1", []byte("---\nurl: u\n")); err == nil {
			t.Error("expected error for unterminated frontmatter")
		}
	})
}

func TestCommentRoundtrip(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	original := core.Comment{
		ID:        "c1",
		NoteID:    "n1",
		AuthorID:  "bob",
		Content:   "looks good",
		CreatedAt: created,
	}

	data, err := serializeComment(original)
	if err != nil {
		t.Fatalf("serializeComment failed: %v", err)
	}

	parsed, err := parseComment("c1", "n1", data)
	if err != nil {
		t.Fatalf("parseComment failed: %v", err)
	}

	if parsed.AuthorID != original.AuthorID {
		t.Errorf("AuthorID mismatch: got %q", parsed.AuthorID)
	}
	if parsed.Content != original.Content {
		t.Errorf("Content mismatch: got %q", parsed.Content)
	}
	if parsed.NoteID != "n1" {
		t.Errorf("NoteID mismatch: got %q", parsed.NoteID)
	}
	if !parsed.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt mismatch: got %v", parsed.CreatedAt)
	}
}
