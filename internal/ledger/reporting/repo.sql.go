package reporting

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// balanceExpr is the signed balance convention used across every report:
// debits count positive, credits negative.
const balanceExpr = `SUM(CASE WHEN e.entry_type = 'DEBIT' THEN e.amount ELSE -e.amount END)`

// AccountBalanceRow is one aggregated account row.
type AccountBalanceRow struct {
	AccountID int64
	Account   string
	Balance   int64
}

// PartyBalanceRow is one aggregated party row.
type PartyBalanceRow struct {
	PartyType string
	PartyID   int64
	Balance   int64
}

// DocumentTransactionRow is one per-attributed-document group.
type DocumentTransactionRow struct {
	DocumentID   int64
	DocumentType string
	Reference    string
	Amount       int64
}

// DocumentAgeRow carries a document's open balance and date for aging.
type DocumentAgeRow struct {
	DocumentID int64
	Date       time.Time
	Balance    int64
}

// Store abstracts the aggregation queries for the reporting service.
type Store interface {
	AccountBalances(ctx context.Context, ledgerID int64, asOf time.Time) ([]AccountBalanceRow, error)
	AccountBalance(ctx context.Context, ledgerID, accountID int64, asOf time.Time) (int64, error)
	PartyAccountBalance(ctx context.Context, ledgerID int64, partyType string, partyID, accountID int64, asOf time.Time) (int64, error)
	DocumentBalance(ctx context.Context, ledgerID, documentID, accountID int64, asOf time.Time) (int64, error)
	DocumentTransactions(ctx context.Context, ledgerID, documentID, accountID int64, asOf time.Time) ([]DocumentTransactionRow, error)
	DocumentAges(ctx context.Context, ledgerID, accountID int64, asOf time.Time) ([]DocumentAgeRow, error)
	PartyBalances(ctx context.Context, ledgerID, accountID int64, limit int, asOf time.Time) ([]PartyBalanceRow, error)
}

// Repository runs the read-only aggregation queries. All sums stay in integer
// minor units inside SQL; nothing here converts to decimal.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// AccountBalances returns the signed balance of every account as of the date.
func (r *Repository) AccountBalances(ctx context.Context, ledgerID int64, asOf time.Time) ([]AccountBalanceRow, error) {
	rows, err := r.pool.Query(ctx, `SELECT a.id, a.name, COALESCE(b.balance, 0)
FROM accounts a
LEFT JOIN (
	SELECT e.account_id, `+balanceExpr+` AS balance
	FROM ledger_entries e
	JOIN ledger_transactions t ON t.id = e.transaction_id
	WHERE t.transaction_date <= $2
	GROUP BY e.account_id
) b ON b.account_id = a.id
WHERE a.ledger_id = $1
ORDER BY a.name`, ledgerID, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AccountBalanceRow
	for rows.Next() {
		var row AccountBalanceRow
		if err := rows.Scan(&row.AccountID, &row.Account, &row.Balance); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// AccountBalance returns one account's signed balance as of the date.
func (r *Repository) AccountBalance(ctx context.Context, ledgerID, accountID int64, asOf time.Time) (int64, error) {
	var balance int64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(`+balanceExpr+`, 0)
FROM ledger_entries e
JOIN ledger_transactions t ON t.id = e.transaction_id
JOIN accounts a ON a.id = e.account_id
WHERE a.ledger_id = $1 AND e.account_id = $2 AND t.transaction_date <= $3`, ledgerID, accountID, asOf).Scan(&balance)
	return balance, err
}

// PartyAccountBalance narrows the balance to one party on one account.
func (r *Repository) PartyAccountBalance(ctx context.Context, ledgerID int64, partyType string, partyID, accountID int64, asOf time.Time) (int64, error) {
	var balance int64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(`+balanceExpr+`, 0)
FROM ledger_entries e
JOIN ledger_transactions t ON t.id = e.transaction_id
JOIN accounts a ON a.id = e.account_id
WHERE a.ledger_id = $1 AND e.account_id = $2 AND e.party_type = $3 AND e.party_id = $4 AND t.transaction_date <= $5`,
		ledgerID, accountID, partyType, partyID, asOf).Scan(&balance)
	return balance, err
}

// DocumentBalance narrows the balance to entries attributed to one document.
func (r *Repository) DocumentBalance(ctx context.Context, ledgerID, documentID, accountID int64, asOf time.Time) (int64, error) {
	var balance int64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(`+balanceExpr+`, 0)
FROM ledger_entries e
JOIN ledger_transactions t ON t.id = e.transaction_id
JOIN accounts a ON a.id = e.account_id
WHERE a.ledger_id = $1 AND e.account_id = $2 AND e.document_id = $3 AND t.transaction_date <= $4`,
		ledgerID, accountID, documentID, asOf).Scan(&balance)
	return balance, err
}

// DocumentTransactions groups the document's transaction amounts by the
// document each entry is attributed to, joined through documents and
// document_types for the reference. Zero-sum groups are excluded.
func (r *Repository) DocumentTransactions(ctx context.Context, ledgerID, documentID, accountID int64, asOf time.Time) ([]DocumentTransactionRow, error) {
	rows, err := r.pool.Query(ctx, `SELECT ad.id, dt.name, ad.reference, `+balanceExpr+`
FROM ledger_entries e
JOIN ledger_transactions t ON t.id = e.transaction_id
JOIN accounts a ON a.id = e.account_id
JOIN documents ad ON ad.id = e.document_id
JOIN document_types dt ON dt.id = ad.document_type_id
WHERE a.ledger_id = $1 AND t.document_id = $2 AND e.account_id = $3 AND t.transaction_date <= $4
GROUP BY ad.id, dt.name, ad.reference
HAVING `+balanceExpr+` <> 0
ORDER BY ad.id`, ledgerID, documentID, accountID, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DocumentTransactionRow
	for rows.Next() {
		var row DocumentTransactionRow
		if err := rows.Scan(&row.DocumentID, &row.DocumentType, &row.Reference, &row.Amount); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// DocumentAges returns each document's open balance on the account together
// with its date; zero-balance documents are excluded.
func (r *Repository) DocumentAges(ctx context.Context, ledgerID, accountID int64, asOf time.Time) ([]DocumentAgeRow, error) {
	rows, err := r.pool.Query(ctx, `SELECT d.id, d.doc_date, `+balanceExpr+`
FROM ledger_entries e
JOIN ledger_transactions t ON t.id = e.transaction_id
JOIN accounts a ON a.id = e.account_id
JOIN documents d ON d.id = e.document_id
WHERE a.ledger_id = $1 AND e.account_id = $2 AND t.transaction_date <= $3
GROUP BY d.id, d.doc_date
HAVING `+balanceExpr+` <> 0
ORDER BY d.id`, ledgerID, accountID, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DocumentAgeRow
	for rows.Next() {
		var row DocumentAgeRow
		if err := rows.Scan(&row.DocumentID, &row.Date, &row.Balance); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// PartyBalances groups balances by party, excluding zero balances, descending
// by magnitude. limit 0 means no limit.
func (r *Repository) PartyBalances(ctx context.Context, ledgerID, accountID int64, limit int, asOf time.Time) ([]PartyBalanceRow, error) {
	rows, err := r.pool.Query(ctx, `SELECT e.party_type, e.party_id, `+balanceExpr+`
FROM ledger_entries e
JOIN ledger_transactions t ON t.id = e.transaction_id
JOIN accounts a ON a.id = e.account_id
WHERE a.ledger_id = $1 AND e.account_id = $2 AND e.party_type <> '' AND t.transaction_date <= $3
GROUP BY e.party_type, e.party_id
HAVING `+balanceExpr+` <> 0
ORDER BY ABS(`+balanceExpr+`) DESC
LIMIT NULLIF($4, 0)`, ledgerID, accountID, asOf, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []PartyBalanceRow
	for rows.Next() {
		var row PartyBalanceRow
		if err := rows.Scan(&row.PartyType, &row.PartyID, &row.Balance); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
