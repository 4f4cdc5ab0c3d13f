package documents

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// Store abstracts document persistence for callers outside a sync
// transaction.
type Store interface {
	GetTypeID(ctx context.Context, name string) (int64, error)
	Lookup(ctx context.Context, ledgerID, typeID int64, reference string) (Document, bool, error)
	ListPageByType(ctx context.Context, ledgerID, typeID, afterID int64, limit int) ([]Document, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetTypeID resolves a document type name to its id, creating the row on
// demand.
func (r *Repository) GetTypeID(ctx context.Context, name string) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `SELECT id FROM document_types WHERE name=$1`, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}
	err = r.pool.QueryRow(ctx, `INSERT INTO document_types (name) VALUES ($1) RETURNING id`, name).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			err = r.pool.QueryRow(ctx, `SELECT id FROM document_types WHERE name=$1`, name).Scan(&id)
			if err != nil {
				return 0, err
			}
			return id, nil
		}
		return 0, err
	}
	return id, nil
}

// Lookup finds a document by its (type, reference) identity.
func (r *Repository) Lookup(ctx context.Context, ledgerID, typeID int64, reference string) (Document, bool, error) {
	var d Document
	err := r.pool.QueryRow(ctx, `SELECT id, ledger_id, document_type_id, reference, doc_date, party_type, party_id
FROM documents WHERE ledger_id=$1 AND document_type_id=$2 AND reference=$3`, ledgerID, typeID, reference).
		Scan(&d.ID, &d.LedgerID, &d.TypeID, &d.Reference, &d.Date, &d.PartyType, &d.PartyID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, false, nil
		}
		return Document{}, false, err
	}
	return d, true, nil
}

// Create inserts a new document row.
func (r *Repository) Create(ctx context.Context, d Document) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO documents (ledger_id, document_type_id, reference, doc_date, party_type, party_id)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`, d.LedgerID, d.TypeID, d.Reference, d.Date, d.PartyType, d.PartyID).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Update touches the mutable fields only; type and reference are identity.
func (r *Repository) Update(ctx context.Context, id int64, date time.Time, partyType string, partyID int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE documents SET doc_date=$2, party_type=$3, party_id=$4 WHERE id=$1`,
		id, date, partyType, partyID)
	return err
}

// ListPageByType returns one id-ordered page of documents of a type, for
// cursor-driven reconciliation sweeps.
func (r *Repository) ListPageByType(ctx context.Context, ledgerID, typeID, afterID int64, limit int) ([]Document, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, ledger_id, document_type_id, reference, doc_date, party_type, party_id
FROM documents WHERE ledger_id=$1 AND document_type_id=$2 AND id > $3 ORDER BY id ASC LIMIT $4`,
		ledgerID, typeID, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.LedgerID, &d.TypeID, &d.Reference, &d.Date, &d.PartyType, &d.PartyID); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}
