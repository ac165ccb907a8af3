package credential

import (
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

const serviceName = "leadmail"

// Keyring item keys.
const (
	// KeyEncryption holds the base64 master key that seals account secrets.
	KeyEncryption = "encryption-key"

	// KeyAIAPI holds the global AI provider key used when an account has
	// none of its own.
	KeyAIAPI = "ai-api-key"
)

// ErrNotFound is returned when a key has no stored value.
var ErrNotFound = errors.New("credential not found")

// Store reads and writes secrets by key.
type Store interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// Keyring is a Store backed by the system keyring.
type Keyring struct {
	ring keyring.Keyring
}

// OpenKeyring opens the system keyring, falling back to an encrypted file
// under ~/.config/leadmail/credentials.
func OpenKeyring() (*Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/leadmail/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("leadmail-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return &Keyring{ring: ring}, nil
}

// NewKeyring wraps an already opened keyring.
func NewKeyring(ring keyring.Keyring) *Keyring {
	return &Keyring{ring: ring}
}

// Get retrieves a credential value by key.
func (k *Keyring) Get(key string) (string, error) {
	item, err := k.ring.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", fmt.Errorf("getting credential %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}
	return string(item.Data), nil
}

// Set stores a credential value by key.
func (k *Keyring) Set(key, value string) error {
	err := k.ring.Set(keyring.Item{
		Key:   key,
		Data:  []byte(value),
		Label: serviceName + " " + key,
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}
	return nil
}

// Delete removes a credential by key.
func (k *Keyring) Delete(key string) error {
	if err := k.ring.Remove(key); err != nil {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}
	return nil
}
