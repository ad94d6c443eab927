package alias

import (
	"fmt"
	"net/mail"
	"strings"
)

// TypeEmail is the only alias type currently supported.
const TypeEmail = "email"

// ErrInvalidAlias is returned when an alias fails validation.
type ErrInvalidAlias struct {
	Type   string
	Reason string
}

func (e ErrInvalidAlias) Error() string {
	return fmt.Sprintf("invalid %s alias: %s", e.Type, e.Reason)
}

// Normalize validates an alias and returns its canonical form.
// Email aliases are lower-cased so that hashing is case-insensitive.
// Unknown alias types are rejected.
func Normalize(aliasType, raw string) (string, error) {
	switch aliasType {
	case TypeEmail:
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return "", ErrInvalidAlias{Type: aliasType, Reason: "empty email address"}
		}
		addr, err := mail.ParseAddress(raw)
		if err != nil || addr.Address != raw {
			return "", ErrInvalidAlias{Type: aliasType, Reason: "malformed email address"}
		}
		return strings.ToLower(raw), nil
	default:
		return "", ErrInvalidAlias{Type: aliasType, Reason: "unknown alias type"}
	}
}

// Parse splits a "type:value" alias reference. A bare value with no
// type prefix is treated as an email address.
func Parse(ref string) (aliasType, name string, err error) {
	pieces := strings.SplitN(ref, ":", 2)
	if len(pieces) != 2 {
		if _, err := Normalize(TypeEmail, ref); err != nil {
			return "", "", ErrInvalidAlias{Type: TypeEmail, Reason: "malformed user alias"}
		}
		return TypeEmail, ref, nil
	}
	return pieces[0], pieces[1], nil
}

// maskToken replaces the middle section of obscured aliases.
const maskToken = "***"

// maxPlain caps the number of characters kept at the head or tail of
// an obscured alias.
const maxPlain = 2

// Obscure masks the middle portion of an alias for display. For email
// aliases only the local part is masked; the domain stays intact.
func Obscure(aliasType, name string) string {
	switch aliasType {
	case TypeEmail:
		name = strings.ToLower(name)
		local, domain, found := strings.Cut(name, "@")
		if !found {
			return maskMiddle(name)
		}
		return maskMiddle(local) + "@" + domain
	default:
		return maskMiddle(name)
	}
}

// maskMiddle keeps at most maxPlain characters at each end of data and
// replaces the rest with the mask token. Short values are fully masked.
func maskMiddle(data string) string {
	dlen := len(data)
	if dlen <= len(maskToken) {
		return maskToken
	}

	keep := (dlen - len(maskToken)) / 2
	head := clamp(keep, 1, maxPlain)
	tail := clamp(keep, 1, maxPlain)

	return data[:head] + maskToken + data[dlen-tail:]
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
