package secrets

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Secret is a configuration value that is either plaintext or encrypted
// at rest. The two states are distinguished by the type itself rather
// than by inspecting the stored shape.
//
// The wire/storage form is compatible with the historical format:
// a plaintext secret serializes as a JSON string, an encrypted secret
// as a two-element array of base64 salt and base64 ciphertext.
type Secret struct {
	plaintext  string
	salt       []byte
	ciphertext []byte
	encrypted  bool
}

// SaltSize is the number of random salt bytes generated per encryption.
const SaltSize = 16

// NewPlaintext wraps a plaintext value in a Secret.
func NewPlaintext(value string) Secret {
	return Secret{plaintext: value}
}

// NewEncrypted builds a Secret from stored salt and ciphertext.
func NewEncrypted(salt, ciphertext []byte) Secret {
	return Secret{salt: salt, ciphertext: ciphertext, encrypted: true}
}

// Encrypted reports whether the secret is in encrypted form.
func (s Secret) Encrypted() bool {
	return s.encrypted
}

// Empty reports whether the secret holds no value at all.
func (s Secret) Empty() bool {
	return !s.encrypted && s.plaintext == ""
}

// Plaintext returns the plaintext value. It is only meaningful when
// Encrypted() is false.
func (s Secret) Plaintext() string {
	return s.plaintext
}

// Salt returns the per-encryption salt of an encrypted secret.
func (s Secret) Salt() []byte {
	return s.salt
}

// Ciphertext returns the ciphertext of an encrypted secret.
func (s Secret) Ciphertext() []byte {
	return s.ciphertext
}

// MarshalJSON serializes a plaintext secret as a string and an
// encrypted secret as [base64(salt), base64(ciphertext)].
func (s Secret) MarshalJSON() ([]byte, error) {
	if !s.encrypted {
		return json.Marshal(s.plaintext)
	}
	return json.Marshal([2]string{
		base64.StdEncoding.EncodeToString(s.salt),
		base64.StdEncoding.EncodeToString(s.ciphertext),
	})
}

// UnmarshalJSON accepts either serialized form.
func (s *Secret) UnmarshalJSON(data []byte) error {
	var plain string
	if err := json.Unmarshal(data, &plain); err == nil {
		*s = NewPlaintext(plain)
		return nil
	}

	var tuple []string
	if err := json.Unmarshal(data, &tuple); err != nil {
		return fmt.Errorf("secret is neither string nor tuple: %w", err)
	}
	if len(tuple) < 2 {
		return fmt.Errorf("encrypted secret tuple has %d elements, want 2", len(tuple))
	}
	salt, err := base64.StdEncoding.DecodeString(tuple[0])
	if err != nil {
		return fmt.Errorf("failed to decode secret salt: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(tuple[1])
	if err != nil {
		return fmt.Errorf("failed to decode secret ciphertext: %w", err)
	}
	*s = NewEncrypted(salt, ciphertext)
	return nil
}
