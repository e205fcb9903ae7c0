package core

import (
	"errors"
	"strings"
)

// Common errors.
var (
	// ErrAccessDenied means the access check rejected the subscription.
	// It is surfaced once to the requesting frame; no retry is attempted.
	ErrAccessDenied = errors.New("access denied")

	// ErrFrameGone means delivery to a frame failed because the frame is
	// no longer reachable. Treated as an implicit unsubscribe signal.
	ErrFrameGone = errors.New("frame unreachable")

	// ErrContextInvalidated marks expected teardown noise: the hosting
	// frame or page was torn down concurrently with an in-flight call.
	ErrContextInvalidated = errors.New("context invalidated")

	// ErrNoteNotFound is returned by note lookups for unknown ids.
	ErrNoteNotFound = errors.New("note not found")
)

// IsTeardownNoise reports whether an error is expected teardown noise that
// must be silently absorbed rather than logged or surfaced. Transport and
// frame layers consult this before reporting any failure.
func IsTeardownNoise(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrContextInvalidated) || errors.Is(err, ErrFrameGone) {
		return true
	}
	// Message-passing layers outside our control report frame teardown as
	// plain strings; match the known phrasings.
	msg := err.Error()
	return strings.Contains(msg, "context invalidated") ||
		strings.Contains(msg, "receiving end does not exist")
}
