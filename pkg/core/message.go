package core

// MessageKind discriminates the envelopes exchanged with frames.
type MessageKind string

const (
	// KindNotesUpdate carries a full notes snapshot for a page.
	KindNotesUpdate MessageKind = "notes.update"
	// KindCommentsUpdate carries a full comment-thread snapshot for a note.
	KindCommentsUpdate MessageKind = "comments.update"
	// KindError surfaces a subscription failure to the requesting frame.
	KindError MessageKind = "error"

	// Request kinds sent by frames to the coordinator.
	KindSubscribeNotes      MessageKind = "notes.subscribe"
	KindUnsubscribeNotes    MessageKind = "notes.unsubscribe"
	KindSubscribeComments   MessageKind = "comments.subscribe"
	KindUnsubscribeComments MessageKind = "comments.unsubscribe"
)

// Message is the wire envelope for both directions of frame traffic.
type Message struct {
	Kind     MessageKind `json:"kind"`
	URL      string      `json:"url,omitempty"`
	NoteID   string      `json:"noteId,omitempty"`
	Notes    []Note      `json:"notes,omitempty"`
	Comments []Comment   `json:"comments,omitempty"`
	Error    string      `json:"error,omitempty"`
}
