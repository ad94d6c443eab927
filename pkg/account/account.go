package account

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Account is the host application's view of a local user account. The
// federation core only needs identity fields and the capability set
// for guest-policy checks.
type Account struct {
	ID           int64             `json:"id"`
	Login        string            `json:"login"`
	Email        string            `json:"email"`
	DisplayName  string            `json:"display_name"`
	Capabilities map[string]bool   `json:"capabilities,omitempty"`
	Meta         map[string]string `json:"meta,omitempty"`
}

// HasCapability reports whether the account holds a capability.
func (a *Account) HasCapability(cap string) bool {
	return a.Capabilities[cap]
}

// ErrNotFound is returned when no account matches a lookup.
type ErrNotFound struct {
	Field string
	Value string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("account not found by %s: %s", e.Field, e.Value)
}

// Service is the boundary to the host application's account storage.
// The federation core consumes it; the host provides it.
type Service interface {
	GetByID(ctx context.Context, id int64) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	GetByLogin(ctx context.Context, login string) (*Account, error)
}

// Lookup finds an account by login name first, then by email address.
func Lookup(ctx context.Context, svc Service, nameOrEmail string) (*Account, error) {
	if acct, err := svc.GetByLogin(ctx, nameOrEmail); err == nil {
		return acct, nil
	}
	return svc.GetByEmail(ctx, nameOrEmail)
}

// InMemoryService implements Service with a fixed account set. It
// backs tests and the standalone demo configuration.
type InMemoryService struct {
	mutex    sync.RWMutex
	accounts map[int64]Account
}

// NewInMemoryService creates an in-memory account service.
func NewInMemoryService(accounts ...Account) *InMemoryService {
	svc := &InMemoryService{accounts: make(map[int64]Account)}
	for _, acct := range accounts {
		svc.accounts[acct.ID] = acct
	}
	return svc
}

// Add inserts or replaces an account.
func (s *InMemoryService) Add(acct Account) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.accounts[acct.ID] = acct
}

func (s *InMemoryService) GetByID(ctx context.Context, id int64) (*Account, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	acct, ok := s.accounts[id]
	if !ok {
		return nil, ErrNotFound{Field: "id", Value: fmt.Sprintf("%d", id)}
	}
	copied := acct
	return &copied, nil
}

func (s *InMemoryService) GetByEmail(ctx context.Context, email string) (*Account, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	for _, acct := range s.accounts {
		if strings.EqualFold(acct.Email, email) {
			copied := acct
			return &copied, nil
		}
	}
	return nil, ErrNotFound{Field: "email", Value: email}
}

func (s *InMemoryService) GetByLogin(ctx context.Context, login string) (*Account, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	for _, acct := range s.accounts {
		if acct.Login == login {
			copied := acct
			return &copied, nil
		}
	}
	return nil, ErrNotFound{Field: "login", Value: login}
}
