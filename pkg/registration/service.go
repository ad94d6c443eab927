package registration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tendant/xlogin/pkg/account"
	"github.com/tendant/xlogin/pkg/alias"
)

// DefaultImportErrorMax bounds the error list a batch import collects.
const DefaultImportErrorMax = 10

// Service manages alias registrations on top of a Repository,
// resolving account references through the account service.
type Service struct {
	repo     Repository
	accounts account.Service
	hasher   *alias.Hasher
}

// NewService creates a registration service.
func NewService(repo Repository, accounts account.Service, hasher *alias.Hasher) *Service {
	return &Service{repo: repo, accounts: accounts, hasher: hasher}
}

// AddParams describe one registration to add.
type AddParams struct {
	AliasType string
	AliasName string
	// Account is a login name or email address of the owning account.
	Account string
	// Replace makes an existing registration for the same alias be
	// replaced instead of rejected.
	Replace bool
	// Obscure stores a masked rendering of the alias alongside the
	// hash, for admin listings.
	Obscure bool
}

// Add registers an alias for an account. The alias is normalized
// before hashing, so equivalent spellings land on the same hash.
func (s *Service) Add(ctx context.Context, params AddParams) (RegistrationInfo, error) {
	acct, err := account.Lookup(ctx, s.accounts, params.Account)
	if err != nil {
		return RegistrationInfo{}, fmt.Errorf("failed to resolve account %q: %w", params.Account, err)
	}

	hash, obscured, err := s.hasher.HashAlias(params.AliasType, params.AliasName)
	if err != nil {
		return RegistrationInfo{}, err
	}

	createParams := CreateParams{AccountID: acct.ID, AliasHash: hash}
	if params.Obscure {
		createParams.ObscuredAlias = &obscured
	}

	var row Registration
	if params.Replace {
		row, err = s.repo.Upsert(ctx, createParams)
	} else {
		row, err = s.repo.Create(ctx, createParams)
	}
	if err != nil {
		return RegistrationInfo{}, err
	}

	slog.Info("registered alias", "id", row.ID, "account_id", acct.ID)
	return s.info(row, acct), nil
}

// Delete removes a registration by id, reporting whether it existed.
func (s *Service) Delete(ctx context.Context, id int64) (bool, error) {
	return s.repo.Delete(ctx, id)
}

// Wipe removes every registration and returns the count removed.
func (s *Service) Wipe(ctx context.Context) (int64, error) {
	count, err := s.repo.DeleteAll(ctx)
	if err != nil {
		return 0, err
	}
	slog.Info("wiped registrations", "count", count)
	return count, nil
}

// GetByID returns one registration with its account resolved.
func (s *Service) GetByID(ctx context.Context, id int64) (RegistrationInfo, error) {
	row, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return RegistrationInfo{}, err
	}
	return s.resolve(ctx, row), nil
}

// GetByAlias returns the registration of an alias, if any. The alias
// is given in "type:value" form or as a bare email address.
func (s *Service) GetByAlias(ctx context.Context, ref string) (RegistrationInfo, error) {
	aliasType, name, err := alias.Parse(ref)
	if err != nil {
		return RegistrationInfo{}, err
	}
	hash, _, err := s.hasher.HashAlias(aliasType, name)
	if err != nil {
		return RegistrationInfo{}, err
	}
	row, err := s.repo.GetByHash(ctx, hash)
	if err != nil {
		return RegistrationInfo{}, err
	}
	return s.resolve(ctx, row), nil
}

// ListResult is a page of registrations, with the total count when
// requested.
type ListResult struct {
	Registrations []RegistrationInfo `json:"registrations"`
	Total         *int64             `json:"total,omitempty"`
}

// List returns a page of registrations matching the search. The total
// is computed only when withTotal is set, to spare the extra count
// query on plain pagination.
func (s *Service) List(ctx context.Context, search ListSearch, offset, limit int32, withTotal bool) (ListResult, error) {
	var conds []Condition

	if search.Login != "" {
		acct, err := account.Lookup(ctx, s.accounts, search.Login)
		if err != nil {
			var notFound account.ErrNotFound
			if errors.As(err, &notFound) {
				// Unknown account means no rows, not an error.
				result := ListResult{Registrations: []RegistrationInfo{}}
				if withTotal {
					zero := int64(0)
					result.Total = &zero
				}
				return result, nil
			}
			return ListResult{}, err
		}
		conds = append(conds, Condition{Field: FieldAccountID, Op: OpEq, Value: acct.ID})
	}

	if search.Alias != "" {
		conds = append(conds, Condition{
			Field: FieldObscured,
			Op:    OpLike,
			Value: "%" + escapeLike(search.Alias) + "%",
		})
	}

	rows, err := s.repo.List(ctx, conds, offset, limit)
	if err != nil {
		return ListResult{}, err
	}

	result := ListResult{Registrations: make([]RegistrationInfo, 0, len(rows))}
	for _, row := range rows {
		result.Registrations = append(result.Registrations, s.resolve(ctx, row))
	}

	if withTotal {
		total, err := s.repo.Count(ctx, conds)
		if err != nil {
			return ListResult{}, err
		}
		result.Total = &total
	}
	return result, nil
}

// ImportBatch registers a list of alias/login records. Records missing
// either field are skipped; failures are counted and reported up to
// errMax detailed errors. A non-positive errMax uses the default bound.
func (s *Service) ImportBatch(ctx context.Context, records []ImportRecord, errMax int, obscure bool) ImportResult {
	if errMax <= 0 {
		errMax = DefaultImportErrorMax
	}

	var result ImportResult
	for _, record := range records {
		if record.Alias == "" || record.Login == "" {
			result.Skipped++
			continue
		}

		aliasType, name, err := alias.Parse(record.Alias)
		if err == nil {
			_, err = s.Add(ctx, AddParams{
				AliasType: aliasType,
				AliasName: name,
				Account:   record.Login,
				Replace:   true,
				Obscure:   obscure,
			})
		}
		if err != nil {
			result.Failed++
			if len(result.Errors) < errMax {
				result.Errors = append(result.Errors, ImportError{
					Code:        "import-failed",
					Description: fmt.Sprintf("%s: %v", record.Alias, err),
				})
			}
			continue
		}
		result.Succeeded++
	}

	slog.Info("imported registrations",
		"succeeded", result.Succeeded, "failed", result.Failed, "skipped", result.Skipped)
	return result
}

// resolve fills the admin view of a row, looking up the owning
// account's login. A missing account degrades to an empty user field
// rather than failing the listing.
func (s *Service) resolve(ctx context.Context, row Registration) RegistrationInfo {
	acct, err := s.accounts.GetByID(ctx, row.AccountID)
	if err != nil {
		slog.Warn("registration references unknown account", "id", row.ID, "account_id", row.AccountID)
		return s.info(row, nil)
	}
	return s.info(row, acct)
}

func (s *Service) info(row Registration, acct *account.Account) RegistrationInfo {
	info := RegistrationInfo{ID: row.ID, Hash: row.AliasHash}
	if row.ObscuredAlias != nil {
		info.Hint = *row.ObscuredAlias
	}
	if acct != nil {
		info.User = acct.Login
	}
	return info
}

// escapeLike backslash-escapes the LIKE metacharacters so a search
// term matches literally.
func escapeLike(term string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(term)
}
