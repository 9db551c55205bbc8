package bbolt

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naveenspark/shopdrop/internal/store"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.db")
	s, err := Open(path, nil)
	require.NoError(t, err)
	return s, path
}

func TestBBoltStore(t *testing.T) {
	s, _ := newTestStore(t)
	defer s.Close()

	t.Run("GetMissingNamespace", func(t *testing.T) {
		_, err := s.Get("auth-storage", "state")
		assert.True(t, errors.Is(err, store.ErrNotFound))
	})

	t.Run("PutGet", func(t *testing.T) {
		require.NoError(t, s.Put("auth-storage", "state", []byte(`{"accessToken":"abc"}`)))
		got, err := s.Get("auth-storage", "state")
		require.NoError(t, err)
		assert.Equal(t, `{"accessToken":"abc"}`, string(got))
	})

	t.Run("GetMissingKey", func(t *testing.T) {
		_, err := s.Get("auth-storage", "other")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("Overwrite", func(t *testing.T) {
		require.NoError(t, s.Put("auth-storage", "state", []byte("v2")))
		got, err := s.Get("auth-storage", "state")
		require.NoError(t, err)
		assert.Equal(t, "v2", string(got))
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, s.Delete("auth-storage", "state"))
		_, err := s.Get("auth-storage", "state")
		assert.ErrorIs(t, err, store.ErrNotFound)
		assert.NoError(t, s.Delete("auth-storage", "state"), "deleting twice is not an error")
		assert.NoError(t, s.Delete("no-such-namespace", "state"))
	})
}

func TestBBoltStoreSurvivesReopen(t *testing.T) {
	s, path := newTestStore(t)
	require.NoError(t, s.Put("auth-storage", "state", []byte("persisted")))
	require.NoError(t, s.Close())

	reopened, err := Open(path, nil)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get("auth-storage", "state")
	require.NoError(t, err)
	assert.Equal(t, "persisted", string(got))
}
