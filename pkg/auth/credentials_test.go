package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validCreds(name string) *Credentials {
	return &Credentials{
		Name:         name,
		Phone:        "+100000001",
		APIID:        12345,
		APIHash:      "0123456789abcdef0123456789abcdef",
		LastModified: time.Now(),
	}
}

func TestManagerStoreAndRetrieve(t *testing.T) {
	manager, _ := NewMockManager()

	require.NoError(t, manager.Store(validCreds("worker1")))

	got, err := manager.Retrieve("worker1")
	require.NoError(t, err)
	assert.Equal(t, "worker1", got.Name)
	assert.Equal(t, 12345, got.APIID)
}

func TestManagerStoreValidation(t *testing.T) {
	manager, _ := NewMockManager()

	creds := validCreds("w")
	creds.Name = ""
	assert.Error(t, manager.Store(creds))

	creds = validCreds("w")
	creds.APIID = 0
	assert.Error(t, manager.Store(creds))

	creds = validCreds("w")
	creds.APIHash = ""
	assert.Error(t, manager.Store(creds))
}

func TestManagerRetrieveMissing(t *testing.T) {
	manager, _ := NewMockManager()

	_, err := manager.Retrieve("ghost")
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
}

func TestManagerDelete(t *testing.T) {
	manager, _ := NewMockManager()

	require.NoError(t, manager.Store(validCreds("worker1")))
	require.NoError(t, manager.Delete("worker1"))

	assert.False(t, manager.Exists("worker1"))
	assert.ErrorIs(t, manager.Delete("worker1"), ErrCredentialsNotFound)
}

func TestManagerList(t *testing.T) {
	manager, _ := NewMockManager()

	require.NoError(t, manager.Store(validCreds("worker1")))
	require.NoError(t, manager.Store(validCreds("worker2")))

	all, err := manager.List()
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestManagerSurfacesStoreErrors(t *testing.T) {
	manager, mock := NewMockManager()
	mock.RetrieveError = errors.New("backend down")

	_, err := manager.Retrieve("worker1")
	assert.Error(t, err)
}

func TestSanitizeMasksSecrets(t *testing.T) {
	creds := validCreds("worker1")
	creds.Session = "super-secret-session-string"

	sanitized := Sanitize(creds)
	assert.NotEqual(t, creds.APIHash, sanitized.APIHash)
	assert.Contains(t, sanitized.APIHash, "**")
	assert.NotEqual(t, creds.Session, sanitized.Session)

	// original untouched
	assert.Equal(t, "0123456789abcdef0123456789abcdef", creds.APIHash)
}

func TestMaskShortValues(t *testing.T) {
	assert.Equal(t, "***", mask("abc"))
	assert.Equal(t, "", mask(""))
	assert.Equal(t, "ab**ef", mask("abcdef"))
}
