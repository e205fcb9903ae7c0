package core

import "time"

// DefaultTheme is the theme assumed when a note carries none.
const DefaultTheme = "yellow"

// Identity is the opaque id of a signed-in user.
type Identity string

// Note is the central entity of the domain.
// It is pinned to a URL, owned by exactly one identity, and may be
// visible to others via SharedWith.
type Note struct {
	ID         string    `json:"id" yaml:"id"`
	URL        string    `json:"url" yaml:"url"`
	Content    string    `json:"content" yaml:"-"`
	Theme      string    `json:"theme" yaml:"theme"`
	OwnerID    Identity  `json:"ownerId" yaml:"owner"`
	SharedWith []string  `json:"sharedWith,omitempty" yaml:"shared_with,omitempty"`
	CreatedAt  time.Time `json:"createdAt" yaml:"created_at"`
	UpdatedAt  time.Time `json:"updatedAt" yaml:"updated_at"`
}

// VisibleTo reports whether the note may be read by the given identity.
func (n Note) VisibleTo(identity Identity) bool {
	if n.OwnerID == identity {
		return true
	}
	for _, id := range n.SharedWith {
		if Identity(id) == identity {
			return true
		}
	}
	return false
}

// EffectiveTheme returns the theme with the default applied.
func (n Note) EffectiveTheme() string {
	if n.Theme == "" {
		return DefaultTheme
	}
	return n.Theme
}

// Comment is a single entry in a note's discussion thread.
type Comment struct {
	ID        string    `json:"id" yaml:"id"`
	NoteID    string    `json:"noteId" yaml:"note_id"`
	AuthorID  Identity  `json:"authorId" yaml:"author"`
	Content   string    `json:"content" yaml:"-"`
	CreatedAt time.Time `json:"createdAt" yaml:"created_at"`
}
