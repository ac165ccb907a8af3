package credential

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

// KeySize is the length in bytes of an AES-256 key.
const KeySize = 32

// sealedPrefix marks values produced by Cipher.Seal.
const sealedPrefix = "v1:"

// ErrMalformed is returned when a sealed value cannot be decoded.
var ErrMalformed = errors.New("malformed sealed value")

// Cipher seals account secrets with AES-256-GCM. Sealed values are
// "v1:" followed by base64 of nonce||ciphertext. Empty strings stay empty.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher returns a Cipher for a 32-byte key.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating aes cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating gcm: %w", err)
	}
	return &Cipher{aead: aead}, nil
}

// Seal encrypts plaintext.
func (c *Cipher) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return sealedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a value produced by Seal.
func (c *Cipher) Open(sealed string) (string, error) {
	if sealed == "" {
		return "", nil
	}
	if !strings.HasPrefix(sealed, sealedPrefix) {
		return "", ErrMalformed
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(sealed, sealedPrefix))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	n := c.aead.NonceSize()
	if len(raw) < n {
		return "", ErrMalformed
	}
	plain, err := c.aead.Open(nil, raw[:n], raw[n:], nil)
	if err != nil {
		return "", fmt.Errorf("decrypting secret: %w", err)
	}
	return string(plain), nil
}

// GenerateKey returns a new random key, base64 encoded.
func GenerateKey() (string, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", fmt.Errorf("generating key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// DecodeKey parses a base64 key.
func DecodeKey(encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("decoding encryption key: %w", err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", KeySize, len(key))
	}
	return key, nil
}

// LoadCipher builds a Cipher from envKey when set, otherwise from the
// key in secrets, generating and saving one on first use.
func LoadCipher(envKey string, secrets Store) (*Cipher, error) {
	encoded := strings.TrimSpace(envKey)
	if encoded == "" {
		if secrets == nil {
			return nil, fmt.Errorf("no encryption key configured")
		}
		var err error
		encoded, err = secrets.Get(KeyEncryption)
		if errors.Is(err, ErrNotFound) {
			if encoded, err = GenerateKey(); err != nil {
				return nil, err
			}
			if err := secrets.Set(KeyEncryption, encoded); err != nil {
				return nil, err
			}
		} else if err != nil {
			return nil, err
		}
	}

	key, err := DecodeKey(encoded)
	if err != nil {
		return nil, err
	}
	return NewCipher(key)
}
