package secrets

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// ErrCrypto wraps any encryption or decryption failure. Callers are
// expected to degrade gracefully on decrypt errors (treat the guarded
// feature as unavailable) rather than abort the request.
type ErrCrypto struct {
	Op  string
	Err error
}

func (e ErrCrypto) Error() string {
	return fmt.Sprintf("crypto %s failed: %v", e.Op, e.Err)
}

func (e ErrCrypto) Unwrap() error {
	return e.Err
}

// Service encrypts and decrypts sensitive configuration values with an
// installation-wide key.
//
// The cipher regime is AES-128-CBC with a fresh random salt per
// encryption and an initialization vector derived deterministically
// from the salt. This matches the stored-data format of existing
// installations; the salt never repeats, so neither does the IV.
type Service struct {
	key []byte
}

// NewService derives the cipher key from the installation key.
func NewService(installationKey string) (*Service, error) {
	if installationKey == "" {
		return nil, fmt.Errorf("installation key cannot be empty")
	}

	// Derive a 16-byte AES-128 key using PBKDF2.
	salt := []byte("xlogin-secret-salt") // Static salt for consistency
	key := pbkdf2.Key([]byte(installationKey), salt, 10000, 16, sha256.New)

	return &Service{key: key}, nil
}

// deriveIV hashes the salt and truncates or zero-pads the digest to
// the cipher's IV length.
func deriveIV(salt []byte, size int) []byte {
	digest := sha1.Sum(salt)
	iv := make([]byte, size)
	copy(iv, digest[:])
	return iv
}

// Encrypt encrypts a plaintext secret. Encrypting an already-encrypted
// secret is a no-op.
func (s *Service) Encrypt(secret Secret) (Secret, error) {
	if secret.Encrypted() {
		return secret, nil
	}
	if secret.Plaintext() == "" {
		return Secret{}, ErrCrypto{Op: "encrypt", Err: fmt.Errorf("plaintext cannot be empty")}
	}

	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return Secret{}, ErrCrypto{Op: "encrypt", Err: fmt.Errorf("failed to generate salt: %w", err)}
	}

	block, err := aes.NewCipher(s.key)
	if err != nil {
		return Secret{}, ErrCrypto{Op: "encrypt", Err: err}
	}

	plaintext := pkcs7Pad([]byte(secret.Plaintext()), block.BlockSize())
	ciphertext := make([]byte, len(plaintext))
	enc := cipher.NewCBCEncrypter(block, deriveIV(salt, block.BlockSize()))
	enc.CryptBlocks(ciphertext, plaintext)

	return NewEncrypted(salt, ciphertext), nil
}

// Decrypt recovers the plaintext of a secret. A plaintext secret
// passes through unchanged.
func (s *Service) Decrypt(secret Secret) (string, error) {
	if !secret.Encrypted() {
		return secret.Plaintext(), nil
	}

	block, err := aes.NewCipher(s.key)
	if err != nil {
		return "", ErrCrypto{Op: "decrypt", Err: err}
	}

	ciphertext := secret.Ciphertext()
	if len(ciphertext) == 0 || len(ciphertext)%block.BlockSize() != 0 {
		return "", ErrCrypto{Op: "decrypt", Err: fmt.Errorf("ciphertext length %d is not a block multiple", len(ciphertext))}
	}

	plaintext := make([]byte, len(ciphertext))
	dec := cipher.NewCBCDecrypter(block, deriveIV(secret.Salt(), block.BlockSize()))
	dec.CryptBlocks(plaintext, ciphertext)

	unpadded, err := pkcs7Unpad(plaintext, block.BlockSize())
	if err != nil {
		return "", ErrCrypto{Op: "decrypt", Err: err}
	}
	return string(unpadded), nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("invalid padded length %d", len(data))
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, fmt.Errorf("invalid padding")
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("invalid padding")
		}
	}
	return data[:len(data)-n], nil
}

// ValidateInstallationKey validates that an installation key is
// suitable for use.
func ValidateInstallationKey(key string) error {
	if len(key) < 16 {
		return fmt.Errorf("installation key must be at least 16 characters long")
	}
	return nil
}
