package auth

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
	"golang.org/x/oauth2"
)

const (
	// KeyringService namespaces every secret jobprep writes to the OS keyring.
	KeyringService = "jobprep"

	KeyGeminiAPIKey = "gemini-api-key"
	KeyOAuthToken   = "google-oauth-token"
)

var ErrNotFound = errors.New("secret not found")

// Store is a small key-value store for secrets.
type Store interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// KeyringStore keeps secrets in the OS keychain.
type KeyringStore struct {
	Service string
}

func NewKeyringStore() *KeyringStore {
	return &KeyringStore{Service: KeyringService}
}

func (s *KeyringStore) Get(key string) (string, error) {
	v, err := keyring.Get(s.Service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("keyring read %s: %w", key, err)
	}
	return v, nil
}

func (s *KeyringStore) Set(key, value string) error {
	if err := keyring.Set(s.Service, key, value); err != nil {
		return fmt.Errorf("keyring write %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *KeyringStore) Delete(key string) error {
	err := keyring.Delete(s.Service, key)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("keyring delete %s: %w", key, err)
	}
	return nil
}

// LoadToken reads the persisted OAuth token.
func LoadToken(s Store) (*oauth2.Token, error) {
	raw, err := s.Get(KeyOAuthToken)
	if err != nil {
		return nil, err
	}
	var tok oauth2.Token
	if err := json.Unmarshal([]byte(raw), &tok); err != nil {
		return nil, fmt.Errorf("stored token is corrupt: %w", err)
	}
	return &tok, nil
}

// SaveToken persists tok. Extras such as id_token are not serialised.
func SaveToken(s Store, tok *oauth2.Token) error {
	b, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	return s.Set(KeyOAuthToken, string(b))
}
