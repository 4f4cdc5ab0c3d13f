package ledger

import "errors"

var (
	// ErrNonPositiveAmount indicates an entry amount that is zero or negative
	// in either base or transaction currency.
	ErrNonPositiveAmount = errors.New("ledger: entry amount must be positive")
	// ErrUnbalanced indicates a transaction whose transaction-currency debits
	// and credits do not tie exactly.
	ErrUnbalanced = errors.New("ledger: transaction does not balance")
	// ErrTooFewEntries indicates a transaction without entries.
	ErrTooFewEntries = errors.New("ledger: transaction requires entries")
	// ErrRoundingOverflow indicates a base-currency residual larger than the
	// rounding account may absorb; it signals an upstream calculation bug.
	ErrRoundingOverflow = errors.New("ledger: base currency residual exceeds rounding threshold")
	// ErrRoundingAccount indicates the rounding difference account could not
	// be resolved while a residual needed absorbing.
	ErrRoundingAccount = errors.New("ledger: rounding difference account unavailable")

	// ErrAccountNotFound indicates an unknown account name on a mandatory lookup.
	ErrAccountNotFound = errors.New("ledger: account not found")
	// ErrDocumentNotFound indicates an unknown document on a mandatory lookup.
	ErrDocumentNotFound = errors.New("ledger: document not found")
	// ErrTransactionNotFound indicates an unknown transaction id.
	ErrTransactionNotFound = errors.New("ledger: transaction not found")
	// ErrLedgerNotFound indicates an unknown ledger id.
	ErrLedgerNotFound = errors.New("ledger: ledger not found")

	// ErrConcurrentCreate surfaces a get-or-create race that persisted after
	// the single transparent retry.
	ErrConcurrentCreate = errors.New("ledger: concurrent create conflict")
)
