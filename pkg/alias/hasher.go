package alias

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/url"
)

// Hasher produces salted one-way hashes of external aliases. The salt
// is installation-wide, so hashes are stable within one installation
// but useless outside it.
type Hasher struct {
	salt string
}

// NewHasher creates a Hasher keyed by the installation salt.
func NewHasher(installationSalt string) (*Hasher, error) {
	if installationSalt == "" {
		return nil, fmt.Errorf("installation salt cannot be empty")
	}
	return &Hasher{salt: installationSalt}, nil
}

// Hash computes the lookup hash of a normalized alias. The digest is
// deterministic so it can be matched against stored registrations.
// Callers are expected to Normalize the name first.
func (h *Hasher) Hash(aliasType, name string) string {
	digest := sha256.Sum256([]byte(aliasType + "/" + url.QueryEscape(name) + "/" + h.salt))

	// URL-safe base64 (RFC 4648) without padding; the pre-encoding
	// digest is fixed length.
	return base64.RawURLEncoding.EncodeToString(digest[:])
}

// HashAlias normalizes an alias and returns its hash together with the
// obscured display form.
func (h *Hasher) HashAlias(aliasType, raw string) (hash, obscured string, err error) {
	name, err := Normalize(aliasType, raw)
	if err != nil {
		return "", "", err
	}
	return h.Hash(aliasType, name), Obscure(aliasType, name), nil
}
