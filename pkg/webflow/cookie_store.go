package webflow

import (
	"net/http"

	"github.com/gorilla/sessions"
)

// CookieStore keeps webflow state in a signed browser session cookie.
type CookieStore struct {
	store       *sessions.CookieStore
	sessionName string
}

// CookieOption configures a CookieStore.
type CookieOption func(*CookieStore)

// WithSessionName overrides the cookie name.
func WithSessionName(name string) CookieOption {
	return func(s *CookieStore) {
		s.sessionName = name
	}
}

// NewCookieStore creates a cookie-backed store. The key pairs are
// passed to gorilla/sessions for cookie authentication/encryption.
func NewCookieStore(keyPairs [][]byte, opts ...CookieOption) *CookieStore {
	store := sessions.NewCookieStore(keyPairs...)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   0, // session cookie; the flow is short-lived
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}

	s := &CookieStore{
		store:       store,
		sessionName: "xlogin-webflow",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the value of a key from the browser session.
func (s *CookieStore) Get(r *http.Request, key string) (string, bool) {
	// A decode error yields a fresh session; stale flow state is then
	// simply absent, which the flow treats as an invalid request.
	sess, _ := s.store.Get(r, s.sessionName)
	raw, ok := sess.Values[key]
	if !ok {
		return "", false
	}
	value, ok := raw.(string)
	return value, ok
}

// Set stores a value and saves the session cookie.
func (s *CookieStore) Set(w http.ResponseWriter, r *http.Request, key, value string) error {
	sess, _ := s.store.Get(r, s.sessionName)
	sess.Values[key] = value
	if err := sess.Save(r, w); err != nil {
		return ErrSession{Key: key, Err: err}
	}
	return nil
}

// Delete removes a key and saves the session cookie.
func (s *CookieStore) Delete(w http.ResponseWriter, r *http.Request, key string) error {
	sess, _ := s.store.Get(r, s.sessionName)
	if _, ok := sess.Values[key]; !ok {
		return nil
	}
	delete(sess.Values, key)
	if err := sess.Save(r, w); err != nil {
		return ErrSession{Key: key, Err: err}
	}
	return nil
}
