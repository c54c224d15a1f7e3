package auth

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEncryptedStore(t *testing.T) *EncryptedFileStore {
	t.Helper()
	t.Setenv("GRAMOPS_CREDENTIALS_KEY", "test-passphrase")

	store, err := NewEncryptedFileStore(filepath.Join(t.TempDir(), "credentials.enc"))
	require.NoError(t, err)
	return store
}

func TestEncryptedStoreRoundTrip(t *testing.T) {
	store := newTestEncryptedStore(t)

	require.NoError(t, store.Store(validCreds("worker1")))

	got, err := store.Retrieve("worker1")
	require.NoError(t, err)
	assert.Equal(t, "worker1", got.Name)
	assert.Equal(t, 12345, got.APIID)
}

func TestEncryptedStoreFileIsOpaque(t *testing.T) {
	store := newTestEncryptedStore(t)

	creds := validCreds("worker1")
	creds.Session = "very-secret-session"
	require.NoError(t, store.Store(creds))

	raw, err := os.ReadFile(store.filepath)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "very-secret-session")
	assert.NotContains(t, string(raw), creds.APIHash)
}

func TestEncryptedStoreDeleteLastRemovesFile(t *testing.T) {
	store := newTestEncryptedStore(t)

	require.NoError(t, store.Store(validCreds("worker1")))
	require.NoError(t, store.Delete("worker1"))

	_, err := os.Stat(store.filepath)
	assert.True(t, os.IsNotExist(err))
}

func TestEncryptedStoreWrongPassphrase(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "credentials.enc")

	t.Setenv("GRAMOPS_CREDENTIALS_KEY", "first-passphrase")
	store, err := NewEncryptedFileStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Store(validCreds("worker1")))

	t.Setenv("GRAMOPS_CREDENTIALS_KEY", "other-passphrase")
	other, err := NewEncryptedFileStore(path)
	require.NoError(t, err)

	_, err = other.Retrieve("worker1")
	assert.Error(t, err)
}

func TestEncryptedStoreList(t *testing.T) {
	store := newTestEncryptedStore(t)

	require.NoError(t, store.Store(validCreds("worker1")))
	require.NoError(t, store.Store(validCreds("worker2")))

	all, err := store.List()
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
