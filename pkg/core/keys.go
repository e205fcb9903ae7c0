package core

import "fmt"

// NoteKey scopes one notes-on-a-page subscription to a single frame.
// It is a comparable value type so it can key a map directly.
type NoteKey struct {
	TabID   int
	FrameID int
}

func (k NoteKey) String() string {
	return fmt.Sprintf("tab=%d frame=%d", k.TabID, k.FrameID)
}

// CommentKey scopes one comment-thread subscription to a note within a tab.
type CommentKey struct {
	TabID  int
	NoteID string
}

func (k CommentKey) String() string {
	return fmt.Sprintf("tab=%d note=%s", k.TabID, k.NoteID)
}
