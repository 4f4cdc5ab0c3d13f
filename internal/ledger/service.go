package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/oakbooks/ledger/internal/ledger/currency"
	"github.com/oakbooks/ledger/internal/ledger/documents"
)

// RoundingAccountName is the account absorbing sub-unit base-currency
// residuals left after per-entry currency conversion.
const RoundingAccountName = "Rounding Difference"

// roundingThreshold is the largest absolute base-currency residual (minor
// units) the rounding account absorbs. Anything larger signals an upstream
// calculation bug and fails the sync.
const roundingThreshold = 100

// voidPageSize is the page size for reconciliation sweeps.
const voidPageSize = 1000

// ChartOfAccounts resolves account names to ids, creating unknown accounts
// lazily.
type ChartOfAccounts interface {
	GetID(ctx context.Context, name string) (int64, error)
	Clear()
}

// Currencies resolves ISO codes to internal ids.
type Currencies interface {
	GetID(ctx context.Context, code string) (int64, error)
}

// RateConverter converts minor-unit amounts between currencies at a
// historical rate.
type RateConverter interface {
	Convert(ctx context.Context, pair currency.Pair, date time.Time, amountMinor int64) (int64, error)
}

// Service orchestrates document synchronization against the ledger tables.
// Entries and transactions are append-only: an edit is always expressed as
// reverse-old plus create-new, never as an update.
type Service struct {
	store      Store
	docs       documents.Store
	chart      ChartOfAccounts
	currencies Currencies
	rates      RateConverter
	info       LedgerInfo
	logger     *slog.Logger
	now        func() time.Time
}

// NewService constructs the ledger service for one ledger.
func NewService(store Store, docs documents.Store, chart ChartOfAccounts, currencies Currencies, rates RateConverter, info LedgerInfo, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:      store,
		docs:       docs,
		chart:      chart,
		currencies: currencies,
		rates:      rates,
		info:       info,
		logger:     logger,
		now:        time.Now,
	}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Info returns the ledger identity and base currency.
func (s *Service) Info() LedgerInfo { return s.info }

type resolvedTransaction struct {
	date        time.Time
	currencyID  int64
	description string
	// entries with DocumentID 0 meaning "the parent transaction's document";
	// filled in once the document id is known.
	entries []Entry
}

// SyncDocument reconciles the stored ledger state of a document with the
// complete desired set of active transactions. Missing transactions are
// created, transactions absent from the desired set are reversed, matching
// ones are left untouched. Calling it again with an unchanged desired set is
// a no-op.
func (s *Service) SyncDocument(ctx context.Context, doc DocumentInput, desired []TransactionInput) error {
	typeID, err := s.docs.GetTypeID(ctx, doc.Type)
	if err != nil {
		return err
	}
	// All validation and account/currency resolution happens before any
	// ledger write; a failing transaction aborts the sync with nothing
	// persisted.
	resolved := make([]resolvedTransaction, 0, len(desired))
	for i, in := range desired {
		rt, err := s.resolveTransaction(ctx, in)
		if err != nil {
			return fmt.Errorf("ledger: desired transaction %d: %w", i, err)
		}
		resolved = append(resolved, rt)
	}
	partyType, partyID := partyFields(doc.Party)

	var created, reversed int
	err = s.store.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		created, reversed = 0, 0
		d, existed, err := tx.GetDocumentForUpdate(ctx, s.info.ID, typeID, doc.Reference)
		if err != nil {
			return err
		}
		var docID int64
		byFingerprint := make(map[string][]int64)
		if existed {
			docID = d.ID
			if err := tx.UpdateDocument(ctx, docID, doc.Date, partyType, partyID); err != nil {
				return err
			}
			stored, err := tx.ListTransactions(ctx, docID)
			if err != nil {
				return err
			}
			byID := make(map[int64]Transaction, len(stored))
			for _, t := range stored {
				byID[t.ID] = t
			}
			for _, id := range activeTransactionIDs(stored) {
				t := byID[id]
				fp := transactionFingerprint(t.Date, t.CurrencyID, t.Entries)
				byFingerprint[fp] = append(byFingerprint[fp], id)
			}
		} else {
			docID, err = tx.InsertDocument(ctx, documents.Document{
				LedgerID:  s.info.ID,
				TypeID:    typeID,
				Reference: doc.Reference,
				Date:      doc.Date,
				PartyType: partyType,
				PartyID:   partyID,
			})
			if err != nil {
				return err
			}
		}

		for _, rt := range resolved {
			entries := attachDocument(rt.entries, docID)
			fp := transactionFingerprint(rt.date, rt.currencyID, entries)
			if ids := byFingerprint[fp]; len(ids) > 0 {
				// Stored transaction already matches; keep it.
				byFingerprint[fp] = ids[1:]
				continue
			}
			txID, err := tx.InsertTransaction(ctx, Transaction{
				DocumentID:  docID,
				Description: rt.description,
				Date:        rt.date,
				CurrencyID:  rt.currencyID,
			})
			if err != nil {
				return err
			}
			if err := tx.InsertEntries(ctx, txID, entries); err != nil {
				return err
			}
			created++
		}

		for _, id := range leftoverIDs(byFingerprint) {
			if _, err := reverseTransaction(ctx, tx, id); err != nil {
				return err
			}
			reversed++
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("document synced",
		slog.String("document_type", doc.Type),
		slog.String("reference", doc.Reference),
		slog.Int("created", created),
		slog.Int("reversed", reversed))
	return nil
}

// VoidTransaction reverses one transaction: a new transaction pointing back
// via original_transaction_id, with every entry copied and its type flipped.
// History is never deleted.
func (s *Service) VoidTransaction(ctx context.Context, id int64) error {
	return s.store.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		_, err := reverseTransaction(ctx, tx, id)
		return err
	})
}

// VoidDocument reverses every currently un-reversed transaction of the
// document.
func (s *Service) VoidDocument(ctx context.Context, doc DocumentInput) error {
	typeID, err := s.docs.GetTypeID(ctx, doc.Type)
	if err != nil {
		return err
	}
	return s.store.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		d, ok, err := tx.GetDocumentForUpdate(ctx, s.info.ID, typeID, doc.Reference)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s %s", ErrDocumentNotFound, doc.Type, doc.Reference)
		}
		_, err = voidDocumentTx(ctx, tx, d.ID)
		return err
	})
}

// VoidRemainingDocuments voids every document of the type whose reference is
// absent from the provided set. It paginates by id cursor with a fixed page
// size; each page commits in its own transaction, so a partially completed
// sweep never leaves a page half-processed.
func (s *Service) VoidRemainingDocuments(ctx context.Context, docType string, references []string) error {
	typeID, err := s.docs.GetTypeID(ctx, docType)
	if err != nil {
		return err
	}
	keep := make(map[string]struct{}, len(references))
	for _, ref := range references {
		keep[ref] = struct{}{}
	}
	var afterID int64
	for {
		page, err := s.docs.ListPageByType(ctx, s.info.ID, typeID, afterID, voidPageSize)
		if err != nil {
			return err
		}
		if len(page) == 0 {
			return nil
		}
		err = s.store.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			for _, d := range page {
				if _, ok := keep[d.Reference]; ok {
					continue
				}
				locked, err := tx.GetDocumentByIDForUpdate(ctx, d.ID)
				if err != nil {
					return err
				}
				n, err := voidDocumentTx(ctx, tx, locked.ID)
				if err != nil {
					return err
				}
				if n > 0 {
					s.logger.Info("document voided during reconciliation",
						slog.String("document_type", docType),
						slog.String("reference", d.Reference),
						slog.Int("reversed", n))
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		afterID = page[len(page)-1].ID
		if len(page) < voidPageSize {
			return nil
		}
	}
}

// ConvertCurrency converts a transaction-currency minor-unit amount into
// ledger base currency minor units at the historical rate for the date.
func (s *Service) ConvertCurrency(ctx context.Context, transactionCurrency string, date time.Time, amountMinor int64) (int64, error) {
	return s.rates.Convert(ctx, currency.Pair{From: transactionCurrency, To: s.info.BaseCurrency}, date, amountMinor)
}

func (s *Service) resolveTransaction(ctx context.Context, in TransactionInput) (resolvedTransaction, error) {
	if len(in.Entries) == 0 {
		return resolvedTransaction{}, ErrTooFewEntries
	}
	currencyID, err := s.currencies.GetID(ctx, in.Currency)
	if err != nil {
		return resolvedTransaction{}, err
	}
	var baseSum, txnSum int64
	entries := make([]Entry, 0, len(in.Entries)+1)
	for i, e := range in.Entries {
		if e.Amount <= 0 || e.AmountInCurrency <= 0 {
			return resolvedTransaction{}, fmt.Errorf("%w: entry %d", ErrNonPositiveAmount, i)
		}
		accountID, err := s.chart.GetID(ctx, e.Account)
		if err != nil {
			return resolvedTransaction{}, err
		}
		sign := int64(1)
		if e.Type == EntryTypeCredit {
			sign = -1
		}
		baseSum += sign * e.Amount
		txnSum += sign * e.AmountInCurrency
		partyType, partyID := partyFields(e.Party)
		var docID int64
		if e.DocumentID != nil {
			docID = *e.DocumentID
		}
		entries = append(entries, Entry{
			AccountID:        accountID,
			Type:             e.Type,
			Amount:           e.Amount,
			AmountInCurrency: e.AmountInCurrency,
			PartyType:        partyType,
			PartyID:          partyID,
			DocumentID:       docID,
		})
	}
	// A transaction-currency imbalance is a hard failure: it indicates an
	// upstream calculation bug, so no rounding account applies there.
	if txnSum != 0 {
		return resolvedTransaction{}, fmt.Errorf("%w: transaction currency residual %d", ErrUnbalanced, txnSum)
	}
	if baseSum != 0 {
		if abs(baseSum) > roundingThreshold {
			return resolvedTransaction{}, fmt.Errorf("%w: residual %d", ErrRoundingOverflow, baseSum)
		}
		roundingID, err := s.chart.GetID(ctx, RoundingAccountName)
		if err != nil {
			return resolvedTransaction{}, fmt.Errorf("%w: %v", ErrRoundingAccount, err)
		}
		entryType := EntryTypeCredit
		if baseSum < 0 {
			entryType = EntryTypeDebit
		}
		entries = append(entries, Entry{
			AccountID: roundingID,
			Type:      entryType,
			Amount:    abs(baseSum),
			// The transaction currency already ties exactly; the rounding
			// entry carries no transaction-currency amount.
			AmountInCurrency: 0,
		})
	}
	return resolvedTransaction{
		date:        in.Date,
		currencyID:  currencyID,
		description: in.Description,
		entries:     entries,
	}, nil
}

// reverseTransaction inserts the flipped copy of a stored transaction.
func reverseTransaction(ctx context.Context, tx TxRepository, id int64) (int64, error) {
	orig, err := tx.GetTransaction(ctx, id)
	if err != nil {
		return 0, err
	}
	reversalID, err := tx.InsertTransaction(ctx, Transaction{
		DocumentID:            orig.DocumentID,
		Description:           orig.Description,
		Date:                  orig.Date,
		CurrencyID:            orig.CurrencyID,
		OriginalTransactionID: &orig.ID,
	})
	if err != nil {
		return 0, err
	}
	flipped := make([]Entry, 0, len(orig.Entries))
	for _, e := range orig.Entries {
		flipped = append(flipped, Entry{
			AccountID:        e.AccountID,
			Type:             e.Type.Flip(),
			Amount:           e.Amount,
			AmountInCurrency: e.AmountInCurrency,
			PartyType:        e.PartyType,
			PartyID:          e.PartyID,
			DocumentID:       e.DocumentID,
		})
	}
	if err := tx.InsertEntries(ctx, reversalID, flipped); err != nil {
		return 0, err
	}
	return reversalID, nil
}

func voidDocumentTx(ctx context.Context, tx TxRepository, documentID int64) (int, error) {
	stored, err := tx.ListTransactions(ctx, documentID)
	if err != nil {
		return 0, err
	}
	var n int
	for _, id := range activeTransactionIDs(stored) {
		if _, err := reverseTransaction(ctx, tx, id); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func attachDocument(entries []Entry, documentID int64) []Entry {
	out := make([]Entry, len(entries))
	copy(out, entries)
	for i := range out {
		if out[i].DocumentID == 0 {
			out[i].DocumentID = documentID
		}
	}
	return out
}

func leftoverIDs(byFingerprint map[string][]int64) []int64 {
	var ids []int64
	for _, rest := range byFingerprint {
		ids = append(ids, rest...)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func partyFields(p *Party) (string, int64) {
	if p == nil {
		return "", 0
	}
	return p.Type, p.ID
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
