package webflow

import (
	"fmt"
	"net/http"
)

// ErrSession wraps a webflow store write failure. A flow step that
// cannot commit its session state must fail closed.
type ErrSession struct {
	Key string
	Err error
}

func (e ErrSession) Error() string {
	return fmt.Sprintf("webflow session write failed for %q: %v", e.Key, e.Err)
}

func (e ErrSession) Unwrap() error {
	return e.Err
}

// Store carries transient state across the requests of one login
// webflow. Keys are already fully scoped by the caller. The default
// implementation rides the browser session cookie; tests and embedding
// applications may inject their own.
type Store interface {
	// Get returns the value of a key, and whether it was present.
	Get(r *http.Request, key string) (string, bool)

	// Set stores a value under a key. Write failures surface as
	// ErrSession.
	Set(w http.ResponseWriter, r *http.Request, key, value string) error

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(w http.ResponseWriter, r *http.Request, key string) error
}

// Scope namespaces webflow keys per service instance so that multiple
// instances sharing one browser session do not collide.
type Scope struct {
	instance string
}

// NewScope creates a key scope for a named service instance.
func NewScope(instance string) Scope {
	return Scope{instance: instance}
}

// Key produces the scoped form of an attribute name, e.g.
// "myapp.google.oauth2-state".
func (s Scope) Key(attr string) string {
	return s.instance + "." + attr
}
