package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notewire/notewire/pkg/core"
)

func TestTokenRoundTrip(t *testing.T) {
	codec := NewTokenCodec([]byte("test-secret"))

	token, err := codec.IssueToken("alice", time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	identity, err := codec.ParseIdentity(token)
	require.NoError(t, err)
	assert.Equal(t, core.Identity("alice"), identity)
}

func TestTokenRejection(t *testing.T) {
	codec := NewTokenCodec([]byte("test-secret"))

	t.Run("EmptyIdentity", func(t *testing.T) {
		_, err := codec.IssueToken("", time.Hour)
		assert.Error(t, err)
	})

	t.Run("WrongSecret", func(t *testing.T) {
		other := NewTokenCodec([]byte("other-secret"))
		token, err := other.IssueToken("alice", time.Hour)
		require.NoError(t, err)

		_, err = codec.ParseIdentity(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("Expired", func(t *testing.T) {
		token, err := codec.IssueToken("alice", -time.Minute)
		require.NoError(t, err)

		_, err = codec.ParseIdentity(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("Garbage", func(t *testing.T) {
		_, err := codec.ParseIdentity("not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

type fakeNoteGetter struct {
	notes map[string]core.Note
	err   error
}

func (f *fakeNoteGetter) GetNote(ctx context.Context, id string) (core.Note, error) {
	if f.err != nil {
		return core.Note{}, f.err
	}
	n, ok := f.notes[id]
	if !ok {
		return core.Note{}, core.ErrNoteNotFound
	}
	return n, nil
}

func TestStoreAccessChecker(t *testing.T) {
	ctx := context.Background()
	getter := &fakeNoteGetter{notes: map[string]core.Note{
		"n1": {ID: "n1", OwnerID: "alice", SharedWith: []string{"bob"}},
	}}
	checker := NewStoreAccessChecker(getter)

	cases := []struct {
		name     string
		resource string
		identity core.Identity
		want     bool
	}{
		{"Owner", "n1", "alice", true},
		{"SharedWith", "n1", "bob", true},
		{"Stranger", "n1", "mallory", false},
		{"MissingNote", "gone", "alice", false},
		{"EmptyIdentity", "n1", "", false},
		{"PageResource", "https://example.com/a", "anyone", true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ok, err := checker.HasAccess(ctx, c.resource, c.identity)
			require.NoError(t, err)
			assert.Equal(t, c.want, ok)
		})
	}

	t.Run("StoreFailurePropagates", func(t *testing.T) {
		broken := NewStoreAccessChecker(&fakeNoteGetter{err: context.DeadlineExceeded})
		_, err := broken.HasAccess(ctx, "n1", "alice")
		assert.Error(t, err)
	})
}
