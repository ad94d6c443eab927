package secrets

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	svc, err := NewService("test-installation-key-32-chars!!")
	require.NoError(t, err)

	plaintext := "my-oauth2-client-secret"

	encrypted, err := svc.Encrypt(NewPlaintext(plaintext))
	require.NoError(t, err)
	assert.True(t, encrypted.Encrypted())
	assert.Len(t, encrypted.Salt(), SaltSize)
	assert.NotContains(t, string(encrypted.Ciphertext()), plaintext)

	decrypted, err := svc.Decrypt(encrypted)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	svc1, err := NewService("first-installation-key-aaaaaaaa")
	require.NoError(t, err)
	svc2, err := NewService("other-installation-key-bbbbbbbb")
	require.NoError(t, err)

	encrypted, err := svc1.Encrypt(NewPlaintext("super-secret"))
	require.NoError(t, err)

	decrypted, err := svc2.Decrypt(encrypted)
	if err == nil {
		// CBC with PKCS#7 can occasionally produce valid-looking
		// padding under the wrong key; the plaintext still must not
		// survive.
		assert.NotEqual(t, "super-secret", decrypted)
	} else {
		var cerr ErrCrypto
		assert.ErrorAs(t, err, &cerr)
	}
}

func TestEncryptIsIdempotentOnEncrypted(t *testing.T) {
	svc, err := NewService("test-installation-key-32-chars!!")
	require.NoError(t, err)

	first, err := svc.Encrypt(NewPlaintext("value"))
	require.NoError(t, err)

	second, err := svc.Encrypt(first)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSaltUniquePerEncryption(t *testing.T) {
	svc, err := NewService("test-installation-key-32-chars!!")
	require.NoError(t, err)

	a, err := svc.Encrypt(NewPlaintext("same-value"))
	require.NoError(t, err)
	b, err := svc.Encrypt(NewPlaintext("same-value"))
	require.NoError(t, err)

	assert.NotEqual(t, a.Salt(), b.Salt())
	assert.NotEqual(t, a.Ciphertext(), b.Ciphertext())
}

func TestEncryptEmptyPlaintext(t *testing.T) {
	svc, err := NewService("test-installation-key-32-chars!!")
	require.NoError(t, err)

	_, err = svc.Encrypt(NewPlaintext(""))
	assert.Error(t, err)
}

func TestSecretJSONRoundTrip(t *testing.T) {
	svc, err := NewService("test-installation-key-32-chars!!")
	require.NoError(t, err)

	t.Run("plaintext", func(t *testing.T) {
		data, err := json.Marshal(NewPlaintext("hello"))
		require.NoError(t, err)
		assert.JSONEq(t, `"hello"`, string(data))

		var s Secret
		require.NoError(t, json.Unmarshal(data, &s))
		assert.False(t, s.Encrypted())
		assert.Equal(t, "hello", s.Plaintext())
	})

	t.Run("encrypted", func(t *testing.T) {
		encrypted, err := svc.Encrypt(NewPlaintext("hello"))
		require.NoError(t, err)

		data, err := json.Marshal(encrypted)
		require.NoError(t, err)

		var s Secret
		require.NoError(t, json.Unmarshal(data, &s))
		assert.True(t, s.Encrypted())

		decrypted, err := svc.Decrypt(s)
		require.NoError(t, err)
		assert.Equal(t, "hello", decrypted)
	})

	t.Run("malformed tuple", func(t *testing.T) {
		var s Secret
		assert.Error(t, json.Unmarshal([]byte(`["only-one"]`), &s))
	})
}

func TestValidateInstallationKey(t *testing.T) {
	assert.Error(t, ValidateInstallationKey("short"))
	assert.NoError(t, ValidateInstallationKey("long-enough-installation-key"))
}

func TestNewServiceEmptyKey(t *testing.T) {
	_, err := NewService("")
	assert.Error(t, err)
}
