package registration

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolationCode = "23505"

// PostgresRepository implements Repository backed by PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a repository over the given connection pool.
func NewPostgresRepository(db *pgxpool.Pool) (*PostgresRepository, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection cannot be nil")
	}
	return &PostgresRepository{db: db}, nil
}

func (r *PostgresRepository) Create(ctx context.Context, params CreateParams) (Registration, error) {
	var row Registration
	err := r.db.QueryRow(ctx, `
		INSERT INTO registrations (account_id, obscured_alias, alias_hash)
		VALUES ($1, $2, $3)
		RETURNING id, account_id, obscured_alias, alias_hash`,
		params.AccountID, params.ObscuredAlias, params.AliasHash,
	).Scan(&row.ID, &row.AccountID, &row.ObscuredAlias, &row.AliasHash)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return Registration{}, ErrDuplicateAlias{AliasHash: params.AliasHash}
		}
		return Registration{}, fmt.Errorf("failed to create registration: %w", err)
	}
	return row, nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, params CreateParams) (Registration, error) {
	var row Registration
	err := r.db.QueryRow(ctx, `
		INSERT INTO registrations (account_id, obscured_alias, alias_hash)
		VALUES ($1, $2, $3)
		ON CONFLICT (alias_hash) DO UPDATE
		SET account_id = EXCLUDED.account_id,
		    obscured_alias = EXCLUDED.obscured_alias
		RETURNING id, account_id, obscured_alias, alias_hash`,
		params.AccountID, params.ObscuredAlias, params.AliasHash,
	).Scan(&row.ID, &row.AccountID, &row.ObscuredAlias, &row.AliasHash)
	if err != nil {
		return Registration{}, fmt.Errorf("failed to upsert registration: %w", err)
	}
	return row, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (Registration, error) {
	return r.getOne(ctx, `
		SELECT id, account_id, obscured_alias, alias_hash
		FROM registrations WHERE id = $1`,
		"id", id)
}

func (r *PostgresRepository) GetByAccountID(ctx context.Context, accountID int64) (Registration, error) {
	return r.getOne(ctx, `
		SELECT id, account_id, obscured_alias, alias_hash
		FROM registrations WHERE account_id = $1
		ORDER BY id LIMIT 1`,
		"account_id", accountID)
}

func (r *PostgresRepository) GetByHash(ctx context.Context, aliasHash string) (Registration, error) {
	return r.getOne(ctx, `
		SELECT id, account_id, obscured_alias, alias_hash
		FROM registrations WHERE alias_hash = $1`,
		"alias_hash", aliasHash)
}

func (r *PostgresRepository) getOne(ctx context.Context, query, field string, value any) (Registration, error) {
	var row Registration
	err := r.db.QueryRow(ctx, query, value).Scan(&row.ID, &row.AccountID, &row.ObscuredAlias, &row.AliasHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Registration{}, ErrNotFound{Field: field, Value: value}
		}
		return Registration{}, fmt.Errorf("failed to get registration by %s: %w", field, err)
	}
	return row, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM registrations WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete registration: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresRepository) DeleteAll(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM registrations`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete registrations: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresRepository) List(ctx context.Context, conds []Condition, offset, limit int32) ([]Registration, error) {
	where, args, err := buildWhere(conds)
	if err != nil {
		return nil, err
	}

	query := `SELECT id, account_id, obscured_alias, alias_hash FROM registrations` + where +
		fmt.Sprintf(` ORDER BY id OFFSET $%d LIMIT $%d`, len(args)+1, len(args)+2)
	args = append(args, offset, limit)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list registrations: %w", err)
	}
	defer rows.Close()

	result := []Registration{}
	for rows.Next() {
		var row Registration
		if err := rows.Scan(&row.ID, &row.AccountID, &row.ObscuredAlias, &row.AliasHash); err != nil {
			return nil, fmt.Errorf("failed to scan registration: %w", err)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read registrations: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) Count(ctx context.Context, conds []Condition) (int64, error) {
	where, args, err := buildWhere(conds)
	if err != nil {
		return 0, err
	}

	var count int64
	err = r.db.QueryRow(ctx, `SELECT COUNT(*) FROM registrations`+where, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count registrations: %w", err)
	}
	return count, nil
}

// buildWhere renders validated conditions into a WHERE clause. Field and
// operator names come from the Condition allow-list, never from input.
func buildWhere(conds []Condition) (string, []any, error) {
	if len(conds) == 0 {
		return "", nil, nil
	}

	var clauses []string
	var args []any
	for _, cond := range conds {
		if err := cond.Validate(); err != nil {
			return "", nil, err
		}
		switch cond.Op {
		case OpEq:
			clauses = append(clauses, fmt.Sprintf("%s = $%d", cond.Field, len(args)+1))
		case OpLike:
			clauses = append(clauses, fmt.Sprintf(`%s LIKE $%d ESCAPE '\'`, cond.Field, len(args)+1))
		}
		args = append(args, cond.Value)
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}
