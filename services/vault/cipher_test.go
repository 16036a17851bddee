package vault

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) Key {
	t.Helper()
	key := make(Key, KeySize)
	for i := range key {
		key[i] = byte(i)
	}
	return key
}

func TestCipherRoundTrip(t *testing.T) {
	c, err := NewCipher(testKey(t))
	require.NoError(t, err)

	for _, plaintext := range []string{
		"hunter2",
		"p@ssw0rd with spaces",
		"κωδικός-πρόσβασης",
		"a",
	} {
		armored, err := c.Encrypt(plaintext)
		require.NoError(t, err)
		require.NotEqual(t, plaintext, armored)

		got, err := c.Decrypt(armored)
		require.NoError(t, err)
		require.Equal(t, plaintext, got)
	}
}

func TestCipherFreshNonce(t *testing.T) {
	c, err := NewCipher(testKey(t))
	require.NoError(t, err)

	first, err := c.Encrypt("hunter2")
	require.NoError(t, err)
	second, err := c.Encrypt("hunter2")
	require.NoError(t, err)

	require.NotEqual(t, first, second)
}

func TestCipherBitFlipFailsAuthentication(t *testing.T) {
	c, err := NewCipher(testKey(t))
	require.NoError(t, err)

	armored, err := c.Encrypt("hunter2")
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(armored)
	require.NoError(t, err)

	for i := 0; i < len(raw); i++ {
		corrupted := make([]byte, len(raw))
		copy(corrupted, raw)
		corrupted[i] ^= 0x01

		_, err := c.Decrypt(base64.StdEncoding.EncodeToString(corrupted))
		require.ErrorIs(t, err, ErrIntegrity, "flipping byte %d must not decrypt", i)
	}
}

func TestCipherMalformedArmor(t *testing.T) {
	c, err := NewCipher(testKey(t))
	require.NoError(t, err)

	_, err = c.Decrypt("not base64 at all!!!")
	require.ErrorIs(t, err, ErrMalformedCiphertext)

	// Valid base64 but shorter than a nonce.
	_, err = c.Decrypt(base64.StdEncoding.EncodeToString([]byte("tiny")))
	require.ErrorIs(t, err, ErrMalformedCiphertext)
}

func TestCipherWrongKey(t *testing.T) {
	c, err := NewCipher(testKey(t))
	require.NoError(t, err)

	other := make(Key, KeySize)
	for i := range other {
		other[i] = byte(255 - i)
	}
	c2, err := NewCipher(other)
	require.NoError(t, err)

	armored, err := c.Encrypt("hunter2")
	require.NoError(t, err)

	_, err = c2.Decrypt(armored)
	require.ErrorIs(t, err, ErrIntegrity)
}

func TestCipherRejectsShortKey(t *testing.T) {
	_, err := NewCipher(Key("too short"))
	require.Error(t, err)
}
