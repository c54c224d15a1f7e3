package auth

import (
	"os"
	"strconv"
	"time"
)

// EnvironmentStore implements CredentialStore using environment variables.
// Read-only; supports a single "default" account.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store.
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables.
func (e *EnvironmentStore) Store(creds *Credentials) error {
	return ErrStoreUnavailable
}

// Retrieve gets credentials from environment variables.
func (e *EnvironmentStore) Retrieve(name string) (*Credentials, error) {
	apiID, _ := strconv.Atoi(os.Getenv("GRAMOPS_API_ID"))
	apiHash := os.Getenv("GRAMOPS_API_HASH")
	phone := os.Getenv("GRAMOPS_PHONE")
	session := os.Getenv("GRAMOPS_SESSION")

	if apiID == 0 || apiHash == "" {
		return nil, ErrCredentialsNotFound
	}

	// Environment variables hold one unnamed account
	if name == "" {
		name = "default"
	}

	return &Credentials{
		Name:         name,
		Phone:        phone,
		APIID:        apiID,
		APIHash:      apiHash,
		Session:      session,
		LastModified: time.Now(),
	}, nil
}

// List returns a single account if environment variables are set.
func (e *EnvironmentStore) List() ([]*Credentials, error) {
	creds, err := e.Retrieve("")
	if err != nil {
		return []*Credentials{}, nil
	}
	return []*Credentials{creds}, nil
}

// Delete is not supported for environment variables.
func (e *EnvironmentStore) Delete(name string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment credentials exist.
func (e *EnvironmentStore) Exists(name string) bool {
	return os.Getenv("GRAMOPS_API_ID") != "" && os.Getenv("GRAMOPS_API_HASH") != ""
}
