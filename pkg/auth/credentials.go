package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Common credential store errors.
var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrStoreUnavailable    = errors.New("credential store unavailable")
)

// Credentials holds one account's API credentials. The engine treats these as
// opaque; only the client adapter interprets them.
type Credentials struct {
	Name         string    `json:"name"`
	Phone        string    `json:"phone"`
	APIID        int       `json:"api_id"`
	APIHash      string    `json:"api_hash"`
	Session      string    `json:"session,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// CredentialStore is the interface for storing and retrieving credentials.
type CredentialStore interface {
	// Store saves credentials for a given account
	Store(creds *Credentials) error

	// Retrieve gets credentials for a specific account name
	Retrieve(name string) (*Credentials, error)

	// List returns all stored credentials
	List() ([]*Credentials, error)

	// Delete removes credentials for a specific account name
	Delete(name string) error

	// Exists checks if credentials exist for an account name
	Exists(name string) bool
}

// Manager handles credential storage with fallback mechanisms: system
// keychain first, encrypted file second, environment variables last.
type Manager struct {
	stores []CredentialStore
}

// NewManager creates a new credential manager with the available backends.
func NewManager() (*Manager, error) {
	var stores []CredentialStore

	keyringStore, err := NewKeyringStore()
	if err == nil {
		stores = append(stores, keyringStore)
	}

	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "credentials.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore)

	stores = append(stores, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// Store saves credentials using the first available store.
func (m *Manager) Store(creds *Credentials) error {
	if creds.Name == "" {
		return errors.New("account name is required")
	}
	if creds.APIID == 0 || creds.APIHash == "" {
		return errors.New("api id and api hash are required")
	}

	creds.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		if err := store.Store(creds); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store credentials: %w", lastErr)
	}
	return errors.New("no available credential stores")
}

// Retrieve gets credentials from the first store that has them.
func (m *Manager) Retrieve(name string) (*Credentials, error) {
	for _, store := range m.stores {
		if creds, err := store.Retrieve(name); err == nil {
			return creds, nil
		}
	}
	return nil, ErrCredentialsNotFound
}

// List merges stored credentials from every backend, first hit wins per name.
func (m *Manager) List() ([]*Credentials, error) {
	seen := make(map[string]bool)
	var all []*Credentials

	for _, store := range m.stores {
		creds, err := store.List()
		if err != nil {
			continue
		}
		for _, c := range creds {
			if !seen[c.Name] {
				seen[c.Name] = true
				all = append(all, c)
			}
		}
	}

	return all, nil
}

// Delete removes credentials from every store that has them.
func (m *Manager) Delete(name string) error {
	deleted := false
	for _, store := range m.stores {
		if err := store.Delete(name); err == nil {
			deleted = true
		}
	}
	if !deleted {
		return ErrCredentialsNotFound
	}
	return nil
}

// Exists checks if any store holds credentials for the account name.
func (m *Manager) Exists(name string) bool {
	for _, store := range m.stores {
		if store.Exists(name) {
			return true
		}
	}
	return false
}

// Sanitize returns a copy safe for display, with secrets masked.
func Sanitize(creds *Credentials) *Credentials {
	out := *creds
	out.APIHash = mask(creds.APIHash)
	out.Session = mask(creds.Session)
	return &out
}

func mask(s string) string {
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}

// getConfigDir returns the directory for the encrypted credential file.
func getConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".gramops")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return dir, nil
}
