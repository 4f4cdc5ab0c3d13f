package accounts

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrDuplicate indicates the unique (ledger_id, name) constraint fired on
// insert; callers retry the lookup once.
var ErrDuplicate = errors.New("accounts: duplicate account name")

const uniqueViolation = "23505"

// Store abstracts account persistence for the chart.
type Store interface {
	Get(ctx context.Context, ledgerID int64, name string) (Account, bool, error)
	Insert(ctx context.Context, ledgerID int64, name string, currencyID int64) (Account, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get looks an account up by name within a ledger. A missing account is a
// valid negative result, not an error.
func (r *Repository) Get(ctx context.Context, ledgerID int64, name string) (Account, bool, error) {
	var a Account
	err := r.pool.QueryRow(ctx, `SELECT id, ledger_id, name, currency_id, created_at
FROM accounts WHERE ledger_id=$1 AND name=$2`, ledgerID, name).
		Scan(&a.ID, &a.LedgerID, &a.Name, &a.CurrencyID, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, false, nil
		}
		return Account{}, false, err
	}
	return a, true, nil
}

// Insert creates an account. Concurrent inserts of the same name surface as
// ErrDuplicate via the unique constraint.
func (r *Repository) Insert(ctx context.Context, ledgerID int64, name string, currencyID int64) (Account, error) {
	var a Account
	err := r.pool.QueryRow(ctx, `INSERT INTO accounts (ledger_id, name, currency_id)
VALUES ($1,$2,$3) RETURNING id, ledger_id, name, currency_id, created_at`, ledgerID, name, currencyID).
		Scan(&a.ID, &a.LedgerID, &a.Name, &a.CurrencyID, &a.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Account{}, ErrDuplicate
		}
		return Account{}, err
	}
	return a, nil
}
