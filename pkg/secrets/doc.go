// Package secrets provides encryption at rest for sensitive
// configuration values such as OAuth2 client secrets.
//
// Secrets are tagged as plaintext or encrypted at the type level, so
// whether a value still needs encrypting is never inferred from its
// stored shape. The storage format is a (salt, ciphertext) pair; the
// salt is unique per encryption and deterministically yields the
// initialization vector.
package secrets
