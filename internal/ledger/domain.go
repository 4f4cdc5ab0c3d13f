package ledger

import "time"

// EntryType marks an entry as debit or credit.
type EntryType string

const (
	EntryTypeDebit  EntryType = "DEBIT"
	EntryTypeCredit EntryType = "CREDIT"
)

// Flip returns the opposite entry type.
func (t EntryType) Flip() EntryType {
	if t == EntryTypeDebit {
		return EntryTypeCredit
	}
	return EntryTypeDebit
}

// Party identifies a sub-ledger subject (customer, vendor, ...) attributed to
// an entry or document, distinct from the owning document.
type Party struct {
	Type string
	ID   int64
}

// DocumentInput carries the stable identity and mutable metadata of an
// external business record. Type and Reference identify the document; Date
// and Party may change across syncs.
type DocumentInput struct {
	Type      string
	Reference string
	Date      time.Time
	Party     *Party
}

// EntryInput describes one desired ledger entry. Amount is in the ledger base
// currency, AmountInCurrency in the transaction currency, both in integer
// minor units and strictly positive. DocumentID overrides the entry's
// document attribution for cross-document allocations; nil means the parent
// transaction's document.
type EntryInput struct {
	Account          string
	Type             EntryType
	Amount           int64
	AmountInCurrency int64
	Party            *Party
	DocumentID       *int64
}

// TransactionInput describes one desired transaction for a document.
type TransactionInput struct {
	Date        time.Time
	Currency    string
	Description string
	Entries     []EntryInput
}

// Transaction is a stored, immutable transaction row. A non-nil
// OriginalTransactionID marks it as the reversal of that transaction.
type Transaction struct {
	ID                    int64
	DocumentID            int64
	Description           string
	Date                  time.Time
	CurrencyID            int64
	OriginalTransactionID *int64
	CreatedAt             time.Time
	Entries               []Entry
}

// Entry is a stored, immutable ledger entry row.
type Entry struct {
	ID               int64
	TransactionID    int64
	AccountID        int64
	Type             EntryType
	Amount           int64
	AmountInCurrency int64
	PartyType        string
	PartyID          int64
	DocumentID       int64
}

// LedgerInfo is the stored ledger row: an id plus the fixed base currency.
type LedgerInfo struct {
	ID           int64
	Name         string
	CurrencyID   int64
	BaseCurrency string
}
