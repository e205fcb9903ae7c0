package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/notewire/notewire/pkg/core"
)

// StoreAccessChecker decides subscription access from note ownership: a
// note's thread is open to its owner and anyone it is shared with. Page
// resources (URLs) are open to any authenticated identity, since note
// visibility is filtered by the store itself.
type StoreAccessChecker struct {
	Notes core.NoteGetter
}

func NewStoreAccessChecker(notes core.NoteGetter) *StoreAccessChecker {
	return &StoreAccessChecker{Notes: notes}
}

// HasAccess implements core.AccessChecker.
func (c *StoreAccessChecker) HasAccess(ctx context.Context, resourceID string, identity core.Identity) (bool, error) {
	if identity == "" {
		return false, nil
	}
	if strings.Contains(resourceID, "://") {
		return true, nil
	}
	note, err := c.Notes.GetNote(ctx, resourceID)
	if errors.Is(err, core.ErrNoteNotFound) {
		// A vanished note is a denial, not a failure.
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return note.VisibleTo(identity), nil
}

var _ core.AccessChecker = (*StoreAccessChecker)(nil)
