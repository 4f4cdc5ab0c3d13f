package accounts

import "time"

// Account models a chart of accounts row. Accounts are created lazily on
// first reference and never deleted.
type Account struct {
	ID         int64
	LedgerID   int64
	Name       string
	CurrencyID int64
	CreatedAt  time.Time
}
