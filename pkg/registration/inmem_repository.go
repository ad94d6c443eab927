package registration

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// InMemoryRepository implements Repository with in-memory storage, for
// tests and installations without a database.
type InMemoryRepository struct {
	mutex  sync.RWMutex
	nextID int64
	rows   map[int64]Registration
}

// NewInMemoryRepository creates an empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{nextID: 1, rows: make(map[int64]Registration)}
}

func (r *InMemoryRepository) Create(ctx context.Context, params CreateParams) (Registration, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for _, row := range r.rows {
		if row.AliasHash == params.AliasHash {
			return Registration{}, ErrDuplicateAlias{AliasHash: params.AliasHash}
		}
	}
	return r.insert(params), nil
}

func (r *InMemoryRepository) Upsert(ctx context.Context, params CreateParams) (Registration, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for id, row := range r.rows {
		if row.AliasHash == params.AliasHash {
			delete(r.rows, id)
			break
		}
	}
	return r.insert(params), nil
}

// insert assumes the mutex is held and no hash conflict remains.
func (r *InMemoryRepository) insert(params CreateParams) Registration {
	row := Registration{
		ID:            r.nextID,
		AccountID:     params.AccountID,
		ObscuredAlias: params.ObscuredAlias,
		AliasHash:     params.AliasHash,
	}
	r.nextID++
	r.rows[row.ID] = row
	return row
}

func (r *InMemoryRepository) GetByID(ctx context.Context, id int64) (Registration, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	row, ok := r.rows[id]
	if !ok {
		return Registration{}, ErrNotFound{Field: "id", Value: id}
	}
	return row, nil
}

func (r *InMemoryRepository) GetByAccountID(ctx context.Context, accountID int64) (Registration, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var matches []Registration
	for _, row := range r.rows {
		if row.AccountID == accountID {
			matches = append(matches, row)
		}
	}
	if len(matches) == 0 {
		return Registration{}, ErrNotFound{Field: "account_id", Value: accountID}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].ID < matches[j].ID })
	return matches[0], nil
}

func (r *InMemoryRepository) GetByHash(ctx context.Context, aliasHash string) (Registration, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for _, row := range r.rows {
		if row.AliasHash == aliasHash {
			return row, nil
		}
	}
	return Registration{}, ErrNotFound{Field: "alias_hash", Value: aliasHash}
}

func (r *InMemoryRepository) Delete(ctx context.Context, id int64) (bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, ok := r.rows[id]; !ok {
		return false, nil
	}
	delete(r.rows, id)
	return true, nil
}

func (r *InMemoryRepository) DeleteAll(ctx context.Context) (int64, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	count := int64(len(r.rows))
	r.rows = make(map[int64]Registration)
	return count, nil
}

func (r *InMemoryRepository) List(ctx context.Context, conds []Condition, offset, limit int32) ([]Registration, error) {
	matches, err := r.match(conds)
	if err != nil {
		return nil, err
	}

	if int(offset) >= len(matches) {
		return []Registration{}, nil
	}
	end := int(offset) + int(limit)
	if end > len(matches) {
		end = len(matches)
	}
	return matches[offset:end], nil
}

func (r *InMemoryRepository) Count(ctx context.Context, conds []Condition) (int64, error) {
	matches, err := r.match(conds)
	if err != nil {
		return 0, err
	}
	return int64(len(matches)), nil
}

func (r *InMemoryRepository) match(conds []Condition) ([]Registration, error) {
	for _, cond := range conds {
		if err := cond.Validate(); err != nil {
			return nil, err
		}
	}

	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var matches []Registration
	for _, row := range r.rows {
		if matchesConds(row, conds) {
			matches = append(matches, row)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].ID < matches[j].ID })
	return matches, nil
}

func matchesConds(row Registration, conds []Condition) bool {
	for _, cond := range conds {
		switch cond.Field {
		case FieldAccountID:
			id, ok := cond.Value.(int64)
			if !ok || row.AccountID != id {
				return false
			}
		case FieldObscured:
			pattern, ok := cond.Value.(string)
			if !ok || row.ObscuredAlias == nil {
				return false
			}
			if !likeMatch(*row.ObscuredAlias, pattern) {
				return false
			}
		}
	}
	return true
}

// likeMatch supports the %substring% patterns the service builds,
// honoring backslash escapes of the LIKE metacharacters.
func likeMatch(value, pattern string) bool {
	needle := strings.TrimPrefix(strings.TrimSuffix(pattern, "%"), "%")
	needle = strings.NewReplacer(`\\`, `\`, `\%`, `%`, `\_`, `_`).Replace(needle)
	return strings.Contains(value, needle)
}
