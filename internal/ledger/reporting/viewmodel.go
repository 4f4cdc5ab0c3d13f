package reporting

import (
	"github.com/oakbooks/ledger/internal/ledger"
	"github.com/oakbooks/ledger/internal/money"
)

// AccountBalance pairs an account with its signed balance
// (sum of debits minus sum of credits) in ledger base currency.
type AccountBalance struct {
	AccountID int64
	Account   string
	Balance   money.Money
}

// PartyBalance is a balance attributed to one party.
type PartyBalance struct {
	Party   ledger.Party
	Balance money.Money
}

// DocumentTransaction is a per-document-reference transaction group.
type DocumentTransaction struct {
	DocumentID   int64
	DocumentType string
	Reference    string
	Amount       money.Money
}

// AgingBucket bounds one aging bucket in days. Lower -1 on the first bucket
// captures "not yet due" (negative age); the last bucket is open-ended and
// matches any age >= Lower.
type AgingBucket struct {
	Lower int
	Upper int
}

// AgingLine is one bucket of an aging report: the summed open balance and
// the number of open documents falling in the bucket.
type AgingLine struct {
	Bucket AgingBucket
	Amount money.Money
	Count  int
}
