package credential

import (
	"strings"
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCipher(t *testing.T) *Cipher {
	t.Helper()
	c, err := NewCipher([]byte(strings.Repeat("k", KeySize)))
	require.NoError(t, err)
	return c
}

func TestCipher_SealOpen(t *testing.T) {
	c := testCipher(t)

	sealed, err := c.Seal("imap-password")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sealed, sealedPrefix))
	assert.NotContains(t, sealed, "imap-password")

	again, err := c.Seal("imap-password")
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "nonce must differ per seal")

	plain, err := c.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "imap-password", plain)
}

func TestCipher_Empty(t *testing.T) {
	c := testCipher(t)
	sealed, err := c.Seal("")
	require.NoError(t, err)
	assert.Empty(t, sealed)

	plain, err := c.Open("")
	require.NoError(t, err)
	assert.Empty(t, plain)
}

func TestCipher_Rejects(t *testing.T) {
	c := testCipher(t)

	_, err := c.Open("plaintext")
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = c.Open(sealedPrefix + "!!!")
	assert.ErrorIs(t, err, ErrMalformed)

	other, err := NewCipher([]byte(strings.Repeat("x", KeySize)))
	require.NoError(t, err)
	sealed, err := other.Seal("secret")
	require.NoError(t, err)
	_, err = c.Open(sealed)
	assert.Error(t, err)

	_, err = NewCipher([]byte("short"))
	assert.Error(t, err)
}

func TestLoadCipher_GeneratesAndReusesKey(t *testing.T) {
	secrets := NewKeyring(keyring.NewArrayKeyring(nil))

	first, err := LoadCipher("", secrets)
	require.NoError(t, err)

	stored, err := secrets.Get(KeyEncryption)
	require.NoError(t, err)
	assert.NotEmpty(t, stored)

	second, err := LoadCipher("", secrets)
	require.NoError(t, err)

	sealed, err := first.Seal("value")
	require.NoError(t, err)
	plain, err := second.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "value", plain)
}

func TestLoadCipher_EnvKey(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	c, err := LoadCipher(key, nil)
	require.NoError(t, err)
	assert.NotNil(t, c)

	_, err = LoadCipher("bm90LWEta2V5", nil)
	assert.Error(t, err)
}

func TestKeyring_NotFound(t *testing.T) {
	k := NewKeyring(keyring.NewArrayKeyring(nil))
	_, err := k.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, k.Set(KeyAIAPI, "sk-1"))
	v, err := k.Get(KeyAIAPI)
	require.NoError(t, err)
	assert.Equal(t, "sk-1", v)
	require.NoError(t, k.Delete(KeyAIAPI))
}
