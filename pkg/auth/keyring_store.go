package auth

import (
	"encoding/json"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "gramops"
	keyringPrefix  = "account_"
	keyringIndex   = "account_index"
)

// KeyringStore implements CredentialStore using the system keychain.
type KeyringStore struct{}

// NewKeyringStore creates a new keyring-based credential store.
func NewKeyringStore() (*KeyringStore, error) {
	// Test if keyring is available
	testKey := "test_availability"
	err := keyring.Set(keyringService, testKey, "test")
	if err != nil {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	_ = keyring.Delete(keyringService, testKey)

	return &KeyringStore{}, nil
}

// Store saves credentials to the system keychain.
func (k *KeyringStore) Store(creds *Credentials) error {
	if creds == nil || creds.Name == "" {
		return ErrInvalidCredentials
	}

	data, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	if err := keyring.Set(keyringService, keyringPrefix+creds.Name, string(data)); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}

	return k.addToIndex(creds.Name)
}

// Retrieve gets credentials from the system keychain.
func (k *KeyringStore) Retrieve(name string) (*Credentials, error) {
	if name == "" {
		return nil, ErrInvalidCredentials
	}

	data, err := keyring.Get(keyringService, keyringPrefix+name)
	if err != nil {
		if err == keyring.ErrNotFound {
			return nil, ErrCredentialsNotFound
		}
		return nil, fmt.Errorf("failed to retrieve from keyring: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal([]byte(data), &creds); err != nil {
		return nil, fmt.Errorf("failed to unmarshal credentials: %w", err)
	}

	return &creds, nil
}

// List returns all credentials recorded in the keyring index.
func (k *KeyringStore) List() ([]*Credentials, error) {
	names, err := k.loadIndex()
	if err != nil {
		return []*Credentials{}, nil
	}

	var all []*Credentials
	for _, name := range names {
		if creds, err := k.Retrieve(name); err == nil {
			all = append(all, creds)
		}
	}
	return all, nil
}

// Delete removes credentials from the system keychain.
func (k *KeyringStore) Delete(name string) error {
	if name == "" {
		return ErrInvalidCredentials
	}

	if err := keyring.Delete(keyringService, keyringPrefix+name); err != nil {
		if err == keyring.ErrNotFound {
			return ErrCredentialsNotFound
		}
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}

	return k.removeFromIndex(name)
}

// Exists checks if credentials exist in the keychain.
func (k *KeyringStore) Exists(name string) bool {
	_, err := keyring.Get(keyringService, keyringPrefix+name)
	return err == nil
}

// The keyring has no enumeration API, so an index entry tracks stored names.

func (k *KeyringStore) loadIndex() ([]string, error) {
	data, err := keyring.Get(keyringService, keyringIndex)
	if err != nil {
		return nil, err
	}
	var names []string
	if err := json.Unmarshal([]byte(data), &names); err != nil {
		return nil, err
	}
	return names, nil
}

func (k *KeyringStore) saveIndex(names []string) error {
	data, err := json.Marshal(names)
	if err != nil {
		return err
	}
	return keyring.Set(keyringService, keyringIndex, string(data))
}

func (k *KeyringStore) addToIndex(name string) error {
	names, _ := k.loadIndex()
	for _, n := range names {
		if n == name {
			return nil
		}
	}
	return k.saveIndex(append(names, name))
}

func (k *KeyringStore) removeFromIndex(name string) error {
	names, err := k.loadIndex()
	if err != nil {
		return nil
	}
	out := names[:0]
	for _, n := range names {
		if n != name {
			out = append(out, n)
		}
	}
	return k.saveIndex(out)
}
