// Package account defines the collaborator boundary to the host
// application's user accounts. External identities resolve to these
// accounts; the host owns their storage and authentication.
package account
