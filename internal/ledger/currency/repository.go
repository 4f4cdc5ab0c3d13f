package currency

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrRateUnavailable indicates no exchange rate exists for the pair and
	// date. Callers must not default the rate to 1.0.
	ErrRateUnavailable = errors.New("currency: exchange rate unavailable")
	// ErrUnknownCurrency indicates an id with no currency row.
	ErrUnknownCurrency = errors.New("currency: unknown currency")
)

const uniqueViolation = "23505"

// Store abstracts currency and rate persistence.
type Store interface {
	GetID(ctx context.Context, code string) (int64, error)
	GetISO(ctx context.Context, id int64) (string, error)
	GetRate(ctx context.Context, fromID, toID int64, date time.Time) (decimal.Decimal, bool, error)
	InsertRate(ctx context.Context, fromID, toID int64, date time.Time, rate decimal.Decimal) error
}

// Repository provides PostgreSQL backed persistence for the code<->id mapping
// and for date-bucketed historical exchange rates.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetID resolves an ISO code to its internal id, creating the row on demand.
func (r *Repository) GetID(ctx context.Context, code string) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `SELECT id FROM currencies WHERE iso_code=$1`, code).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}
	err = r.pool.QueryRow(ctx, `INSERT INTO currencies (iso_code) VALUES ($1) RETURNING id`, code).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			// Lost the creation race; the row now exists.
			return r.lookupID(ctx, code)
		}
		return 0, err
	}
	return id, nil
}

func (r *Repository) lookupID(ctx context.Context, code string) (int64, error) {
	var id int64
	if err := r.pool.QueryRow(ctx, `SELECT id FROM currencies WHERE iso_code=$1`, code).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// GetISO resolves an internal id back to its ISO code.
func (r *Repository) GetISO(ctx context.Context, id int64) (string, error) {
	var code string
	err := r.pool.QueryRow(ctx, `SELECT iso_code FROM currencies WHERE id=$1`, id).Scan(&code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrUnknownCurrency
		}
		return "", err
	}
	return code, nil
}

// GetRate fetches the stored rate for (from, to) as of the given day.
func (r *Repository) GetRate(ctx context.Context, fromID, toID int64, date time.Time) (decimal.Decimal, bool, error) {
	var rate decimal.Decimal
	err := r.pool.QueryRow(ctx, `SELECT rate FROM exchange_rates
WHERE from_currency_id=$1 AND to_currency_id=$2 AND rate_date=$3`, fromID, toID, dateOnly(date)).Scan(&rate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Decimal{}, false, nil
		}
		return decimal.Decimal{}, false, err
	}
	return rate, true, nil
}

// InsertRate persists a fetched rate; a concurrent insert of the same
// (pair, date) is not an error.
func (r *Repository) InsertRate(ctx context.Context, fromID, toID int64, date time.Time, rate decimal.Decimal) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO exchange_rates (from_currency_id, to_currency_id, rate_date, rate)
VALUES ($1,$2,$3,$4) ON CONFLICT (from_currency_id, to_currency_id, rate_date) DO NOTHING`,
		fromID, toID, dateOnly(date), rate)
	return err
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
