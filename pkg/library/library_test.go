package library

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "library.db")
	store, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestPutGet_RoundTrips(t *testing.T) {
	store := openTestStore(t)

	digest, err := store.Put([]byte("hello world"))
	require.NoError(t, err)
	require.NotEmpty(t, digest)

	data, err := store.Get(digest)
	require.NoError(t, err)
	require.Equal(t, "hello world", string(data))
}

func TestPut_IsIdempotent(t *testing.T) {
	store := openTestStore(t)

	d1, err := store.Put([]byte("same bytes"))
	require.NoError(t, err)
	d2, err := store.Put([]byte("same bytes"))
	require.NoError(t, err)
	require.Equal(t, d1, d2)
}

func TestGet_NotFound(t *testing.T) {
	store := openTestStore(t)

	_, err := store.Get("sha256:deadbeef")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGet_DigestMismatchDetected(t *testing.T) {
	store := openTestStore(t)

	digest, err := store.Put([]byte("original"))
	require.NoError(t, err)

	_, err = store.db.Exec(`UPDATE blobs SET data = ? WHERE digest = ?`, []byte("tampered"), digest)
	require.NoError(t, err)

	_, err = store.Get(digest)
	require.ErrorIs(t, err, ErrDigestMismatch)
}

func TestExists(t *testing.T) {
	store := openTestStore(t)

	ok, err := store.Exists("sha256:nope")
	require.NoError(t, err)
	require.False(t, ok)

	digest, err := store.Put([]byte("x"))
	require.NoError(t, err)

	ok, err = store.Exists(digest)
	require.NoError(t, err)
	require.True(t, ok)
}
