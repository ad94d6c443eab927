package xlogin

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// PendingIdentity is the resolved external identity parked in the
// webflow between the OAuth2 callback and session import. Profile
// fields are carried only when the provider's override policy is set;
// otherwise the identity is just an account reference plus guest flag.
type PendingIdentity struct {
	AccountID   int64  `json:"account_id"`
	LoginType   string `json:"login_type"`
	DisplayName string `json:"display_name,omitempty"`
	Email       string `json:"email,omitempty"`
	Guest       bool   `json:"guest"`
}

// SessionRecord binds an imported identity to a session token for the
// rest of the session's lifetime.
type SessionRecord struct {
	Token     string
	Identity  PendingIdentity
	CreatedAt time.Time
}

// ErrSessionNotFound is returned when no record matches a token.
type ErrSessionNotFound struct {
	Token string
}

func (e ErrSessionNotFound) Error() string {
	return fmt.Sprintf("no session record for token %s", e.Token)
}

// SessionRepository stores identity-bearing session records keyed by
// session token.
type SessionRepository interface {
	Put(ctx context.Context, record SessionRecord) error
	Get(ctx context.Context, token string) (SessionRecord, error)
	Delete(ctx context.Context, token string) error
}

// NewSessionToken returns a fresh opaque session token.
func NewSessionToken() string {
	return uuid.NewString()
}

// InMemorySessionRepository implements SessionRepository in memory.
// Records live until deleted or process exit; the backing session
// mechanism's own TTL governs real deployments.
type InMemorySessionRepository struct {
	mutex   sync.RWMutex
	records map[string]SessionRecord
}

// NewInMemorySessionRepository creates an empty session record store.
func NewInMemorySessionRepository() *InMemorySessionRepository {
	return &InMemorySessionRepository{records: make(map[string]SessionRecord)}
}

func (r *InMemorySessionRepository) Put(ctx context.Context, record SessionRecord) error {
	if record.Token == "" {
		return fmt.Errorf("session record token cannot be empty")
	}
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.records[record.Token] = record
	return nil
}

func (r *InMemorySessionRepository) Get(ctx context.Context, token string) (SessionRecord, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	record, ok := r.records[token]
	if !ok {
		return SessionRecord{}, ErrSessionNotFound{Token: token}
	}
	return record, nil
}

func (r *InMemorySessionRepository) Delete(ctx context.Context, token string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	delete(r.records, token)
	return nil
}
