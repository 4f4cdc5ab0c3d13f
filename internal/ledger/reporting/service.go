package reporting

import (
	"context"
	"fmt"
	"time"

	"github.com/oakbooks/ledger/internal/ledger"
	"github.com/oakbooks/ledger/internal/ledger/accounts"
	"github.com/oakbooks/ledger/internal/money"
)

// AccountResolver looks accounts up by name without creating them.
type AccountResolver interface {
	Lookup(ctx context.Context, name string) (accounts.Account, bool, error)
}

// Service answers point-in-time balance queries over the entry and
// transaction tables. All math runs in integer minor units; conversion to
// decimal happens at the presentation boundary via money.Money.
type Service struct {
	repo     Store
	resolver AccountResolver
	info     ledger.LedgerInfo
	now      func() time.Time
}

// NewService constructs the reporting service for one ledger.
func NewService(repo Store, resolver AccountResolver, info ledger.LedgerInfo) *Service {
	return &Service{repo: repo, resolver: resolver, info: info, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// GetAccountBalances returns every account's signed balance as of the date
// (zero value means now).
func (s *Service) GetAccountBalances(ctx context.Context, asOf time.Time) ([]AccountBalance, error) {
	rows, err := s.repo.AccountBalances(ctx, s.info.ID, s.asOf(asOf))
	if err != nil {
		return nil, err
	}
	out := make([]AccountBalance, 0, len(rows))
	for _, row := range rows {
		out = append(out, AccountBalance{
			AccountID: row.AccountID,
			Account:   row.Account,
			Balance:   s.balance(row.Balance),
		})
	}
	return out, nil
}

// GetAccountBalance returns one account's signed balance.
func (s *Service) GetAccountBalance(ctx context.Context, account string, asOf time.Time) (money.Money, error) {
	accountID, err := s.accountID(ctx, account)
	if err != nil {
		return money.Money{}, err
	}
	balance, err := s.repo.AccountBalance(ctx, s.info.ID, accountID, s.asOf(asOf))
	if err != nil {
		return money.Money{}, err
	}
	return s.balance(balance), nil
}

// GetAccountingPartyBalance narrows the balance to one party on one account.
func (s *Service) GetAccountingPartyBalance(ctx context.Context, party ledger.Party, account string, asOf time.Time) (money.Money, error) {
	accountID, err := s.accountID(ctx, account)
	if err != nil {
		return money.Money{}, err
	}
	balance, err := s.repo.PartyAccountBalance(ctx, s.info.ID, party.Type, party.ID, accountID, s.asOf(asOf))
	if err != nil {
		return money.Money{}, err
	}
	return s.balance(balance), nil
}

// GetDocumentBalance narrows the balance to entries attributed to one
// document.
func (s *Service) GetDocumentBalance(ctx context.Context, documentID int64, account string, asOf time.Time) (money.Money, error) {
	accountID, err := s.accountID(ctx, account)
	if err != nil {
		return money.Money{}, err
	}
	balance, err := s.repo.DocumentBalance(ctx, s.info.ID, documentID, accountID, s.asOf(asOf))
	if err != nil {
		return money.Money{}, err
	}
	return s.balance(balance), nil
}

// GetDocumentTransactions groups the document's transaction amounts per
// attributed document reference, excluding zero-sum groups.
func (s *Service) GetDocumentTransactions(ctx context.Context, documentID int64, account string, asOf time.Time) ([]DocumentTransaction, error) {
	accountID, err := s.accountID(ctx, account)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.DocumentTransactions(ctx, s.info.ID, documentID, accountID, s.asOf(asOf))
	if err != nil {
		return nil, err
	}
	out := make([]DocumentTransaction, 0, len(rows))
	for _, row := range rows {
		out = append(out, DocumentTransaction{
			DocumentID:   row.DocumentID,
			DocumentType: row.DocumentType,
			Reference:    row.Reference,
			Amount:       s.balance(row.Amount),
		})
	}
	return out, nil
}

// GetAging buckets open document balances on the account by age in days as
// of the date. Zero-balance documents are excluded before bucketing.
func (s *Service) GetAging(ctx context.Context, breakdown []AgingBucket, account string, asOf time.Time) ([]AgingLine, error) {
	if len(breakdown) == 0 {
		return nil, fmt.Errorf("reporting: aging breakdown required")
	}
	accountID, err := s.accountID(ctx, account)
	if err != nil {
		return nil, err
	}
	date := s.asOf(asOf)
	rows, err := s.repo.DocumentAges(ctx, s.info.ID, accountID, date)
	if err != nil {
		return nil, err
	}
	sums := make([]int64, len(breakdown))
	counts := make([]int, len(breakdown))
	for _, row := range rows {
		idx := bucketIndex(breakdown, ageDays(row.Date, date))
		if idx < 0 {
			continue
		}
		sums[idx] += row.Balance
		counts[idx]++
	}
	out := make([]AgingLine, 0, len(breakdown))
	for i, bucket := range breakdown {
		out = append(out, AgingLine{Bucket: bucket, Amount: s.balance(sums[i]), Count: counts[i]})
	}
	return out, nil
}

// GetPartyBalances returns non-zero party balances on the account, descending
// by magnitude; limit 0 means no limit.
func (s *Service) GetPartyBalances(ctx context.Context, account string, limit int, asOf time.Time) ([]PartyBalance, error) {
	accountID, err := s.accountID(ctx, account)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.PartyBalances(ctx, s.info.ID, accountID, limit, s.asOf(asOf))
	if err != nil {
		return nil, err
	}
	out := make([]PartyBalance, 0, len(rows))
	for _, row := range rows {
		out = append(out, PartyBalance{
			Party:   ledger.Party{Type: row.PartyType, ID: row.PartyID},
			Balance: s.balance(row.Balance),
		})
	}
	return out, nil
}

func (s *Service) accountID(ctx context.Context, name string) (int64, error) {
	a, ok, err := s.resolver.Lookup(ctx, name)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%w: %q", ledger.ErrAccountNotFound, name)
	}
	return a.ID, nil
}

func (s *Service) asOf(t time.Time) time.Time {
	if t.IsZero() {
		return s.now()
	}
	return t
}

func (s *Service) balance(minor int64) money.Money {
	return money.Money{Currency: s.info.BaseCurrency, Amount: minor}
}

// ageDays is the whole number of days between the document date and the
// as-of date; negative for documents dated in the future (not yet due).
func ageDays(docDate, asOf time.Time) int {
	d := dateOnly(asOf).Sub(dateOnly(docDate))
	return int(d.Hours() / 24)
}

// bucketIndex picks the bucket for an age: the first bucket with Lower -1
// takes anything at or below its Upper (including negative ages), the last
// bucket is open-ended, middle buckets are closed ranges.
func bucketIndex(breakdown []AgingBucket, age int) int {
	last := len(breakdown) - 1
	for i, b := range breakdown {
		switch {
		case b.Lower == -1:
			if age <= b.Upper {
				return i
			}
		case i == last:
			if age >= b.Lower {
				return i
			}
		default:
			if age >= b.Lower && age <= b.Upper {
				return i
			}
		}
	}
	return -1
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
