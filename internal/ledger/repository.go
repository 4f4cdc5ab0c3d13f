package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oakbooks/ledger/internal/ledger/documents"
)

// Store encapsulates DB operations for the ledger core.
// Mutations run through WithTx so document updates, creates and reversals
// commit as one unit.
type Store interface {
	GetLedger(ctx context.Context, id int64) (LedgerInfo, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes methods available within a sync transaction.
type TxRepository interface {
	// Document operations needed within sync transactions. Lookup logic is
	// duplicated from the documents repo but needed here for transaction
	// context and row locking.
	GetDocumentForUpdate(ctx context.Context, ledgerID, typeID int64, reference string) (documents.Document, bool, error)
	GetDocumentByIDForUpdate(ctx context.Context, id int64) (documents.Document, error)
	InsertDocument(ctx context.Context, d documents.Document) (int64, error)
	UpdateDocument(ctx context.Context, id int64, date time.Time, partyType string, partyID int64) error

	ListTransactions(ctx context.Context, documentID int64) ([]Transaction, error)
	GetTransaction(ctx context.Context, id int64) (Transaction, error)
	InsertTransaction(ctx context.Context, t Transaction) (int64, error)
	InsertEntries(ctx context.Context, transactionID int64, entries []Entry) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed Store.
func NewRepository(pool *pgxpool.Pool) Store {
	return &repository{pool: pool}
}

func (r *repository) GetLedger(ctx context.Context, id int64) (LedgerInfo, error) {
	var info LedgerInfo
	err := r.pool.QueryRow(ctx, `SELECT l.id, l.name, l.currency_id, c.iso_code
FROM ledgers l JOIN currencies c ON c.id = l.currency_id WHERE l.id=$1`, id).
		Scan(&info.ID, &info.Name, &info.CurrencyID, &info.BaseCurrency)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LedgerInfo{}, ErrLedgerNotFound
		}
		return LedgerInfo{}, err
	}
	return info, nil
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	wrapper := &txRepository{tx: tx}
	if err := fn(ctx, wrapper); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) GetDocumentForUpdate(ctx context.Context, ledgerID, typeID int64, reference string) (documents.Document, bool, error) {
	var d documents.Document
	err := r.tx.QueryRow(ctx, `SELECT id, ledger_id, document_type_id, reference, doc_date, party_type, party_id
FROM documents WHERE ledger_id=$1 AND document_type_id=$2 AND reference=$3 FOR UPDATE`, ledgerID, typeID, reference).
		Scan(&d.ID, &d.LedgerID, &d.TypeID, &d.Reference, &d.Date, &d.PartyType, &d.PartyID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return documents.Document{}, false, nil
		}
		return documents.Document{}, false, err
	}
	return d, true, nil
}

func (r *txRepository) GetDocumentByIDForUpdate(ctx context.Context, id int64) (documents.Document, error) {
	var d documents.Document
	err := r.tx.QueryRow(ctx, `SELECT id, ledger_id, document_type_id, reference, doc_date, party_type, party_id
FROM documents WHERE id=$1 FOR UPDATE`, id).
		Scan(&d.ID, &d.LedgerID, &d.TypeID, &d.Reference, &d.Date, &d.PartyType, &d.PartyID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return documents.Document{}, ErrDocumentNotFound
		}
		return documents.Document{}, err
	}
	return d, nil
}

func (r *txRepository) InsertDocument(ctx context.Context, d documents.Document) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO documents (ledger_id, document_type_id, reference, doc_date, party_type, party_id)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`, d.LedgerID, d.TypeID, d.Reference, d.Date, d.PartyType, d.PartyID).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (r *txRepository) UpdateDocument(ctx context.Context, id int64, date time.Time, partyType string, partyID int64) error {
	_, err := r.tx.Exec(ctx, `UPDATE documents SET doc_date=$2, party_type=$3, party_id=$4 WHERE id=$1`,
		id, date, partyType, partyID)
	return err
}

func (r *txRepository) ListTransactions(ctx context.Context, documentID int64) ([]Transaction, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, document_id, description, transaction_date, currency_id, original_transaction_id, created_at
FROM ledger_transactions WHERE document_id=$1 ORDER BY id ASC`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var txs []Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.DocumentID, &t.Description, &t.Date, &t.CurrencyID, &t.OriginalTransactionID, &t.CreatedAt); err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range txs {
		entries, err := r.listEntries(ctx, txs[i].ID)
		if err != nil {
			return nil, err
		}
		txs[i].Entries = entries
	}
	return txs, nil
}

func (r *txRepository) GetTransaction(ctx context.Context, id int64) (Transaction, error) {
	var t Transaction
	err := r.tx.QueryRow(ctx, `SELECT id, document_id, description, transaction_date, currency_id, original_transaction_id, created_at
FROM ledger_transactions WHERE id=$1`, id).
		Scan(&t.ID, &t.DocumentID, &t.Description, &t.Date, &t.CurrencyID, &t.OriginalTransactionID, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrTransactionNotFound
		}
		return Transaction{}, err
	}
	entries, err := r.listEntries(ctx, t.ID)
	if err != nil {
		return Transaction{}, err
	}
	t.Entries = entries
	return t, nil
}

func (r *txRepository) listEntries(ctx context.Context, transactionID int64) ([]Entry, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, transaction_id, account_id, entry_type, amount, amount_in_currency, party_type, party_id, document_id
FROM ledger_entries WHERE transaction_id=$1 ORDER BY id ASC`, transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.TransactionID, &e.AccountID, &e.Type, &e.Amount, &e.AmountInCurrency, &e.PartyType, &e.PartyID, &e.DocumentID); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *txRepository) InsertTransaction(ctx context.Context, t Transaction) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO ledger_transactions (document_id, description, transaction_date, currency_id, original_transaction_id)
VALUES ($1,$2,$3,$4,$5) RETURNING id`, t.DocumentID, t.Description, t.Date, t.CurrencyID, t.OriginalTransactionID).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (r *txRepository) InsertEntries(ctx context.Context, transactionID int64, entries []Entry) error {
	for _, e := range entries {
		if _, err := r.tx.Exec(ctx, `INSERT INTO ledger_entries (transaction_id, account_id, entry_type, amount, amount_in_currency, party_type, party_id, document_id)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`, transactionID, e.AccountID, e.Type, e.Amount, e.AmountInCurrency, e.PartyType, e.PartyID, e.DocumentID); err != nil {
			return err
		}
	}
	return nil
}
