package auth

import (
	"sync"
)

// MockStore implements CredentialStore for testing purposes.
type MockStore struct {
	accounts map[string]*Credentials
	mu       sync.RWMutex

	// Error injection for testing
	StoreError    error
	RetrieveError error
	ListError     error
	DeleteError   error
}

// NewMockStore creates a new mock credential store.
func NewMockStore() *MockStore {
	return &MockStore{
		accounts: make(map[string]*Credentials),
	}
}

// NewMockManager creates a Manager backed only by a mock store.
func NewMockManager() (*Manager, *MockStore) {
	mock := NewMockStore()
	return &Manager{stores: []CredentialStore{mock}}, mock
}

// Store saves credentials to the mock store.
func (m *MockStore) Store(creds *Credentials) error {
	if m.StoreError != nil {
		return m.StoreError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if creds == nil || creds.Name == "" {
		return ErrInvalidCredentials
	}

	credsCopy := *creds
	m.accounts[creds.Name] = &credsCopy
	return nil
}

// Retrieve gets credentials from the mock store.
func (m *MockStore) Retrieve(name string) (*Credentials, error) {
	if m.RetrieveError != nil {
		return nil, m.RetrieveError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if name == "" {
		return nil, ErrInvalidCredentials
	}

	creds, exists := m.accounts[name]
	if !exists {
		return nil, ErrCredentialsNotFound
	}

	credsCopy := *creds
	return &credsCopy, nil
}

// List returns all stored credentials.
func (m *MockStore) List() ([]*Credentials, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var all []*Credentials
	for _, creds := range m.accounts {
		credsCopy := *creds
		all = append(all, &credsCopy)
	}
	return all, nil
}

// Delete removes credentials from the mock store.
func (m *MockStore) Delete(name string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.accounts[name]; !exists {
		return ErrCredentialsNotFound
	}
	delete(m.accounts, name)
	return nil
}

// Exists checks if credentials exist in the mock store.
func (m *MockStore) Exists(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.accounts[name]
	return exists
}
