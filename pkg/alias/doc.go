// Package alias handles external identity aliases (email addresses
// bound to local accounts): validation, privacy-preserving salted
// hashing for storage and lookup, and masked display forms for admin
// listings. Raw aliases are never persisted; only their hashes and
// optionally an obscured form are.
package alias
