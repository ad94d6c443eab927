package registration

import (
	"context"
	"fmt"
)

// Condition fields and operators permitted in listing queries. The
// allow-list keeps arbitrary column/operator text out of SQL.
const (
	FieldAccountID = "account_id"
	FieldObscured  = "obscured_alias"

	OpEq   = "="
	OpLike = "like"
)

// Condition is one (field, operator, value) filter of a listing.
type Condition struct {
	Field string
	Op    string
	Value any
}

// Validate checks a condition against the allow-list.
func (c Condition) Validate() error {
	switch {
	case c.Field == FieldAccountID && c.Op == OpEq:
		return nil
	case c.Field == FieldObscured && c.Op == OpLike:
		return nil
	default:
		return fmt.Errorf("condition (%s %s) not allowed", c.Field, c.Op)
	}
}

// CreateParams are the stored fields of a new registration.
type CreateParams struct {
	AccountID     int64
	ObscuredAlias *string
	AliasHash     string
}

// ErrDuplicateAlias is returned when an insert collides with an
// existing alias hash.
type ErrDuplicateAlias struct {
	AliasHash string
}

func (e ErrDuplicateAlias) Error() string {
	return fmt.Sprintf("alias already registered: %s", e.AliasHash)
}

// ErrNotFound is returned when no registration matches a lookup.
type ErrNotFound struct {
	Field string
	Value any
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("registration not found by %s: %v", e.Field, e.Value)
}

// Repository is the persistence interface for alias registrations.
// Every call is atomic on its own; no cross-call transactions are
// needed since a registration row is self-contained.
type Repository interface {
	// Create inserts a registration; a hash collision returns
	// ErrDuplicateAlias.
	Create(ctx context.Context, params CreateParams) (Registration, error)

	// Upsert inserts a registration, replacing any existing one with
	// the same alias hash.
	Upsert(ctx context.Context, params CreateParams) (Registration, error)

	GetByID(ctx context.Context, id int64) (Registration, error)
	GetByAccountID(ctx context.Context, accountID int64) (Registration, error)
	GetByHash(ctx context.Context, aliasHash string) (Registration, error)

	// Delete removes a registration, reporting whether anything was
	// deleted.
	Delete(ctx context.Context, id int64) (bool, error)

	// DeleteAll wipes every registration and returns the count removed.
	DeleteAll(ctx context.Context) (int64, error)

	// List returns matching registrations with pagination. An offset
	// beyond the total yields an empty list, not an error.
	List(ctx context.Context, conds []Condition, offset, limit int32) ([]Registration, error)

	// Count returns the number of registrations matching conditions.
	Count(ctx context.Context, conds []Condition) (int64, error)
}
