// Package registration persists the bindings between hashed external
// aliases and local accounts. Aliases are stored only as salted
// hashes; an optional obscured rendering supports admin listings
// without keeping the raw alias.
package registration
