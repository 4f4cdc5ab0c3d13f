package ledger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/oakbooks/ledger/internal/ledger/currency"
	"github.com/oakbooks/ledger/internal/ledger/documents"
)

// memoryStore implements Store, TxRepository and documents.Store over maps so
// service tests run without a database.
type memoryStore struct {
	docTypes   map[string]int64
	docs       map[int64]documents.Document
	txs        map[int64]*Transaction
	nextTypeID int64
	nextDocID  int64
	nextTxID   int64
	nextRowID  int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		docTypes: make(map[string]int64),
		docs:     make(map[int64]documents.Document),
		txs:      make(map[int64]*Transaction),
	}
}

func (m *memoryStore) GetLedger(ctx context.Context, id int64) (LedgerInfo, error) {
	return LedgerInfo{ID: 1, Name: "test", CurrencyID: 1, BaseCurrency: "USD"}, nil
}

func (m *memoryStore) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, m)
}

func (m *memoryStore) GetTypeID(ctx context.Context, name string) (int64, error) {
	if id, ok := m.docTypes[name]; ok {
		return id, nil
	}
	m.nextTypeID++
	m.docTypes[name] = m.nextTypeID
	return m.nextTypeID, nil
}

func (m *memoryStore) Lookup(ctx context.Context, ledgerID, typeID int64, reference string) (documents.Document, bool, error) {
	for _, d := range m.docs {
		if d.LedgerID == ledgerID && d.TypeID == typeID && d.Reference == reference {
			return d, true, nil
		}
	}
	return documents.Document{}, false, nil
}

func (m *memoryStore) ListPageByType(ctx context.Context, ledgerID, typeID, afterID int64, limit int) ([]documents.Document, error) {
	var page []documents.Document
	for id := afterID + 1; id <= m.nextDocID && len(page) < limit; id++ {
		d, ok := m.docs[id]
		if ok && d.LedgerID == ledgerID && d.TypeID == typeID {
			page = append(page, d)
		}
	}
	return page, nil
}

func (m *memoryStore) GetDocumentForUpdate(ctx context.Context, ledgerID, typeID int64, reference string) (documents.Document, bool, error) {
	return m.Lookup(ctx, ledgerID, typeID, reference)
}

func (m *memoryStore) GetDocumentByIDForUpdate(ctx context.Context, id int64) (documents.Document, error) {
	d, ok := m.docs[id]
	if !ok {
		return documents.Document{}, ErrDocumentNotFound
	}
	return d, nil
}

func (m *memoryStore) InsertDocument(ctx context.Context, d documents.Document) (int64, error) {
	m.nextDocID++
	d.ID = m.nextDocID
	m.docs[d.ID] = d
	return d.ID, nil
}

func (m *memoryStore) UpdateDocument(ctx context.Context, id int64, date time.Time, partyType string, partyID int64) error {
	d, ok := m.docs[id]
	if !ok {
		return ErrDocumentNotFound
	}
	d.Date = date
	d.PartyType = partyType
	d.PartyID = partyID
	m.docs[id] = d
	return nil
}

func (m *memoryStore) ListTransactions(ctx context.Context, documentID int64) ([]Transaction, error) {
	var out []Transaction
	for id := int64(1); id <= m.nextTxID; id++ {
		t, ok := m.txs[id]
		if ok && t.DocumentID == documentID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *memoryStore) GetTransaction(ctx context.Context, id int64) (Transaction, error) {
	t, ok := m.txs[id]
	if !ok {
		return Transaction{}, ErrTransactionNotFound
	}
	return *t, nil
}

func (m *memoryStore) InsertTransaction(ctx context.Context, t Transaction) (int64, error) {
	m.nextTxID++
	t.ID = m.nextTxID
	t.CreatedAt = time.Now()
	m.txs[t.ID] = &t
	return t.ID, nil
}

func (m *memoryStore) InsertEntries(ctx context.Context, transactionID int64, entries []Entry) error {
	t, ok := m.txs[transactionID]
	if !ok {
		return ErrTransactionNotFound
	}
	for _, e := range entries {
		m.nextRowID++
		e.ID = m.nextRowID
		e.TransactionID = transactionID
		t.Entries = append(t.Entries, e)
	}
	return nil
}

// transactionCount counts all stored transaction rows, reversals included.
func (m *memoryStore) transactionCount() int { return len(m.txs) }

// balanceOf sums debit minus credit over every stored entry for the account.
func (m *memoryStore) balanceOf(accountID int64) int64 {
	var sum int64
	for _, t := range m.txs {
		for _, e := range t.Entries {
			if e.AccountID != accountID {
				continue
			}
			if e.Type == EntryTypeDebit {
				sum += e.Amount
			} else {
				sum -= e.Amount
			}
		}
	}
	return sum
}

// mapChart is an in-memory ChartOfAccounts.
type mapChart struct {
	ids  map[string]int64
	next int64
}

func newMapChart() *mapChart { return &mapChart{ids: make(map[string]int64)} }

func (c *mapChart) GetID(ctx context.Context, name string) (int64, error) {
	if id, ok := c.ids[name]; ok {
		return id, nil
	}
	c.next++
	c.ids[name] = c.next
	return c.next, nil
}

func (c *mapChart) Clear() {}

type mapCurrencies struct {
	ids  map[string]int64
	next int64
}

func newMapCurrencies() *mapCurrencies {
	return &mapCurrencies{ids: map[string]int64{"USD": 1}, next: 1}
}

func (c *mapCurrencies) GetID(ctx context.Context, code string) (int64, error) {
	if id, ok := c.ids[code]; ok {
		return id, nil
	}
	c.next++
	c.ids[code] = c.next
	return c.next, nil
}

type fixedRates struct {
	rate decimal.Decimal
}

func (f fixedRates) Convert(ctx context.Context, pair currency.Pair, date time.Time, amountMinor int64) (int64, error) {
	if pair.From == pair.To {
		return amountMinor, nil
	}
	return decimal.NewFromInt(amountMinor).Mul(f.rate).Round(0).IntPart(), nil
}

type fixture struct {
	store *memoryStore
	chart *mapChart
	svc   *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newMemoryStore()
	chart := newMapChart()
	info := LedgerInfo{ID: 1, Name: "test", CurrencyID: 1, BaseCurrency: "USD"}
	svc := NewService(store, store, chart, newMapCurrencies(), fixedRates{rate: decimal.NewFromFloat(1.1)}, info, nil)
	return &fixture{store: store, chart: chart, svc: svc}
}

func usdTransaction(date time.Time, amount int64) TransactionInput {
	return TransactionInput{
		Date:     date,
		Currency: "USD",
		Entries: []EntryInput{
			{Account: "Accounts Receivable", Type: EntryTypeDebit, Amount: amount, AmountInCurrency: amount},
			{Account: "Revenue", Type: EntryTypeCredit, Amount: amount, AmountInCurrency: amount},
		},
	}
}

func invoice(ref string, date time.Time) DocumentInput {
	return DocumentInput{Type: "invoice", Reference: ref, Date: date}
}

var syncDate = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

func TestSyncDocumentCreatesBalancedTransaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.svc.SyncDocument(ctx, invoice("INV-1", syncDate), []TransactionInput{usdTransaction(syncDate, 10000)})
	require.NoError(t, err)
	require.Equal(t, 1, f.store.transactionCount())

	ar, _ := f.chart.GetID(ctx, "Accounts Receivable")
	revenue, _ := f.chart.GetID(ctx, "Revenue")
	require.Equal(t, int64(10000), f.store.balanceOf(ar))
	require.Equal(t, int64(-10000), f.store.balanceOf(revenue))
}

func TestSyncDocumentIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	desired := []TransactionInput{usdTransaction(syncDate, 10000)}

	require.NoError(t, f.svc.SyncDocument(ctx, invoice("INV-1", syncDate), desired))
	require.NoError(t, f.svc.SyncDocument(ctx, invoice("INV-1", syncDate), desired))
	require.Equal(t, 1, f.store.transactionCount(), "second sync must create nothing and reverse nothing")
}

func TestSyncDocumentToleratesEntryReordering(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := usdTransaction(syncDate, 10000)
	require.NoError(t, f.svc.SyncDocument(ctx, invoice("INV-1", syncDate), []TransactionInput{first}))

	reordered := first
	reordered.Entries = []EntryInput{first.Entries[1], first.Entries[0]}
	require.NoError(t, f.svc.SyncDocument(ctx, invoice("INV-1", syncDate), []TransactionInput{reordered}))
	require.Equal(t, 1, f.store.transactionCount())
}

func TestSyncDocumentReversesRemovedTransaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	kept := usdTransaction(syncDate, 10000)
	extra := usdTransaction(syncDate, 5000)

	require.NoError(t, f.svc.SyncDocument(ctx, invoice("INV-1", syncDate), []TransactionInput{kept, extra}))
	require.Equal(t, 2, f.store.transactionCount())

	require.NoError(t, f.svc.SyncDocument(ctx, invoice("INV-1", syncDate), []TransactionInput{kept}))
	// Exactly one reversal row, zero creates.
	require.Equal(t, 3, f.store.transactionCount())

	ar, _ := f.chart.GetID(ctx, "Accounts Receivable")
	require.Equal(t, int64(10000), f.store.balanceOf(ar))
}

func TestSyncDocumentAmountChangeReversesAndRecreates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.SyncDocument(ctx, invoice("INV-1", syncDate), []TransactionInput{usdTransaction(syncDate, 10000)}))

	// A one-cent change is a different transaction: reverse plus recreate.
	require.NoError(t, f.svc.SyncDocument(ctx, invoice("INV-1", syncDate), []TransactionInput{usdTransaction(syncDate, 10001)}))
	require.Equal(t, 3, f.store.transactionCount())

	ar, _ := f.chart.GetID(ctx, "Accounts Receivable")
	require.Equal(t, int64(10001), f.store.balanceOf(ar))
}

func TestSyncDocumentEmptyDesiredVoidsAllButKeepsHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.SyncDocument(ctx, invoice("INV-1", syncDate), []TransactionInput{usdTransaction(syncDate, 10000)}))

	require.NoError(t, f.svc.SyncDocument(ctx, invoice("INV-1", syncDate), nil))

	ar, _ := f.chart.GetID(ctx, "Accounts Receivable")
	revenue, _ := f.chart.GetID(ctx, "Revenue")
	require.Equal(t, int64(0), f.store.balanceOf(ar))
	require.Equal(t, int64(0), f.store.balanceOf(revenue))

	// Original still stored, reversal points at it.
	require.Equal(t, 2, f.store.transactionCount())
	original, err := f.store.GetTransaction(ctx, 1)
	require.NoError(t, err)
	require.Nil(t, original.OriginalTransactionID)
	reversal, err := f.store.GetTransaction(ctx, 2)
	require.NoError(t, err)
	require.NotNil(t, reversal.OriginalTransactionID)
	require.Equal(t, int64(1), *reversal.OriginalTransactionID)
}

func TestSyncDocumentRejectsTransactionCurrencyImbalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := TransactionInput{
		Date:     syncDate,
		Currency: "EUR",
		Entries: []EntryInput{
			{Account: "Accounts Receivable", Type: EntryTypeDebit, Amount: 11000, AmountInCurrency: 10000},
			{Account: "Revenue", Type: EntryTypeCredit, Amount: 11000, AmountInCurrency: 9900},
		},
	}
	err := f.svc.SyncDocument(ctx, invoice("INV-1", syncDate), []TransactionInput{in})
	require.ErrorIs(t, err, ErrUnbalanced)
	require.Zero(t, f.store.transactionCount(), "failed validation must write nothing")
	require.Empty(t, f.store.docs)
}

func TestSyncDocumentRejectsNonPositiveAmounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := usdTransaction(syncDate, 10000)
	in.Entries[0].AmountInCurrency = 0
	err := f.svc.SyncDocument(ctx, invoice("INV-1", syncDate), []TransactionInput{in})
	require.ErrorIs(t, err, ErrNonPositiveAmount)
	require.Zero(t, f.store.transactionCount())
}

func TestSyncDocumentAbsorbsBaseResidualIntoRoundingAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := TransactionInput{
		Date:     syncDate,
		Currency: "EUR",
		Entries: []EntryInput{
			{Account: "Accounts Receivable", Type: EntryTypeDebit, Amount: 11001, AmountInCurrency: 10000},
			{Account: "Revenue", Type: EntryTypeCredit, Amount: 11000, AmountInCurrency: 10000},
		},
	}
	require.NoError(t, f.svc.SyncDocument(ctx, invoice("INV-1", syncDate), []TransactionInput{in}))

	rounding, _ := f.chart.GetID(ctx, RoundingAccountName)
	require.Equal(t, int64(-1), f.store.balanceOf(rounding), "residual debit must be offset by a rounding credit")

	// Transaction as a whole ties out.
	stored, err := f.store.GetTransaction(ctx, 1)
	require.NoError(t, err)
	var signed int64
	for _, e := range stored.Entries {
		if e.Type == EntryTypeDebit {
			signed += e.Amount
		} else {
			signed -= e.Amount
		}
	}
	require.Zero(t, signed)
}

func TestSyncDocumentRejectsResidualBeyondThreshold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := TransactionInput{
		Date:     syncDate,
		Currency: "EUR",
		Entries: []EntryInput{
			{Account: "Accounts Receivable", Type: EntryTypeDebit, Amount: 11150, AmountInCurrency: 10000},
			{Account: "Revenue", Type: EntryTypeCredit, Amount: 11000, AmountInCurrency: 10000},
		},
	}
	err := f.svc.SyncDocument(ctx, invoice("INV-1", syncDate), []TransactionInput{in})
	require.ErrorIs(t, err, ErrRoundingOverflow)
	require.Zero(t, f.store.transactionCount())
}

func TestVoidTransactionNetsToZeroAndIsReversible(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.SyncDocument(ctx, invoice("INV-1", syncDate), []TransactionInput{usdTransaction(syncDate, 10000)}))
	ar, _ := f.chart.GetID(ctx, "Accounts Receivable")

	require.NoError(t, f.svc.VoidTransaction(ctx, 1))
	require.Equal(t, int64(0), f.store.balanceOf(ar))

	// Reversing the reversal restores the original effect: chain of length 3
	// ends in an active transaction.
	require.NoError(t, f.svc.VoidTransaction(ctx, 2))
	require.Equal(t, int64(10000), f.store.balanceOf(ar))

	txs, err := f.store.ListTransactions(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, []int64{3}, activeTransactionIDs(txs))
}

func TestVoidDocumentUnknownDocument(t *testing.T) {
	f := newFixture(t)
	err := f.svc.VoidDocument(context.Background(), invoice("NOPE-1", syncDate))
	require.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestVoidRemainingDocumentsVoidsOnlyAbsentReferences(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		ref := fmt.Sprintf("INV-%d", i)
		require.NoError(t, f.svc.SyncDocument(ctx, invoice(ref, syncDate), []TransactionInput{usdTransaction(syncDate, int64(1000 * i))}))
	}
	require.Equal(t, 3, f.store.transactionCount())

	require.NoError(t, f.svc.VoidRemainingDocuments(ctx, "invoice", []string{"INV-2", "INV-3"}))

	// Only INV-1 (doc id 1) gets a reversal.
	require.Equal(t, 4, f.store.transactionCount())
	txs, err := f.store.ListTransactions(ctx, 1)
	require.NoError(t, err)
	require.Empty(t, activeTransactionIDs(txs))
	for docID := int64(2); docID <= 3; docID++ {
		txs, err := f.store.ListTransactions(ctx, docID)
		require.NoError(t, err)
		require.Len(t, activeTransactionIDs(txs), 1)
	}
}

func TestVoidRemainingDocumentsNoMatchesTerminates(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.svc.VoidRemainingDocuments(context.Background(), "invoice", []string{"INV-1"}))
}

func TestConvertCurrencySameCurrencyPassthrough(t *testing.T) {
	f := newFixture(t)
	out, err := f.svc.ConvertCurrency(context.Background(), "USD", syncDate, 12345)
	require.NoError(t, err)
	require.Equal(t, int64(12345), out)
}

func TestConvertCurrencyAppliesRate(t *testing.T) {
	f := newFixture(t)
	out, err := f.svc.ConvertCurrency(context.Background(), "EUR", syncDate, 10000)
	require.NoError(t, err)
	require.Equal(t, int64(11000), out)
}
