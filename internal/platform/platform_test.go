package platform

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notewire/notewire/pkg/core"
)

type nopTransport struct{}

func (nopTransport) SendToFrame(ctx context.Context, tabID, frameID int, msg core.Message) error {
	return nil
}

func TestInit(t *testing.T) {
	t.Run("FS Adapter", func(t *testing.T) {
		store, err := Init(t.TempDir(), WithAutoInit(true))
		require.NoError(t, err)
		require.NotNil(t, store)

		saved, err := store.(interface {
			SaveNote(context.Context, core.Note) (core.Note, error)
		}).SaveNote(context.Background(), core.Note{URL: "u", OwnerID: "alice"})
		require.NoError(t, err)
		assert.NotEmpty(t, saved.ID)
	})

	t.Run("FS Requires Existing Vault Without AutoInit", func(t *testing.T) {
		_, err := Init(filepath.Join(t.TempDir(), "missing"))
		assert.Error(t, err)
	})

	t.Run("Unknown Adapter", func(t *testing.T) {
		_, err := Init("whatever", WithAdapter("carrier-pigeon"))
		assert.Error(t, err)
	})

	t.Run("Postgres Requires DSN", func(t *testing.T) {
		_, err := Init("", WithAdapter("postgres"))
		assert.Error(t, err)
	})

	t.Run("Injected Store Wins", func(t *testing.T) {
		injected := struct{ core.Store }{}
		store, err := Init("ignored", WithStore(injected), WithAdapter("carrier-pigeon"))
		require.NoError(t, err)
		assert.Equal(t, core.Store(injected), store)
	})
}

func TestNew(t *testing.T) {
	t.Run("Assembles Stack", func(t *testing.T) {
		reg, store, err := New(t.TempDir(), WithAutoInit(true), WithTransport(nopTransport{}))
		require.NoError(t, err)
		require.NotNil(t, reg)
		require.NotNil(t, store)
	})

	t.Run("Transport Is Required", func(t *testing.T) {
		_, _, err := New(t.TempDir(), WithAutoInit(true))
		assert.Error(t, err)
	})
}

func TestFindRoot(t *testing.T) {
	t.Run("Finds System Dir Upwards", func(t *testing.T) {
		root := t.TempDir()
		require.NoError(t, os.Mkdir(filepath.Join(root, ".notewire"), 0755))
		nested := filepath.Join(root, "a", "b")
		require.NoError(t, os.MkdirAll(nested, 0755))

		found, err := FindRoot(nested)
		require.NoError(t, err)
		assert.Equal(t, root, found)
	})

	t.Run("Finds Config File", func(t *testing.T) {
		root := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(root, "notewire.yaml"), []byte("adapter: fs\n"), 0644))

		found, err := FindRoot(root)
		require.NoError(t, err)
		assert.Equal(t, root, found)
	})

	t.Run("No Indicator", func(t *testing.T) {
		_, err := FindRoot(t.TempDir())
		assert.Error(t, err)
	})
}
