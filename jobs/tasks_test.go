package jobs

import (
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/oakbooks/ledger/internal/ledger"
)

func validSyncPayload() SyncDocumentPayload {
	return SyncDocumentPayload{
		DocumentType: "invoice",
		Reference:    "INV-1",
		Date:         time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		Party:        &PartyPayload{Type: "customer", ID: 42},
		Transactions: []TransactionPayload{
			{
				Date:     time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
				Currency: "USD",
				Entries: []EntryPayload{
					{Account: "Accounts Receivable", Type: "DEBIT", Amount: 10000, AmountInCurrency: 10000},
					{Account: "Revenue", Type: "CREDIT", Amount: 10000, AmountInCurrency: 10000},
				},
			},
		},
	}
}

func TestSyncDocumentPayloadValidation(t *testing.T) {
	validate := validator.New()
	require.NoError(t, validate.Struct(validSyncPayload()))

	missingRef := validSyncPayload()
	missingRef.Reference = ""
	require.Error(t, validate.Struct(missingRef))

	badCurrency := validSyncPayload()
	badCurrency.Transactions[0].Currency = "US"
	require.Error(t, validate.Struct(badCurrency))

	badType := validSyncPayload()
	badType.Transactions[0].Entries[0].Type = "debit"
	require.Error(t, validate.Struct(badType))

	zeroAmount := validSyncPayload()
	zeroAmount.Transactions[0].Entries[0].Amount = 0
	require.Error(t, validate.Struct(zeroAmount))

	noEntries := validSyncPayload()
	noEntries.Transactions[0].Entries = nil
	require.Error(t, validate.Struct(noEntries))
}

func TestReconcileDocumentsPayloadValidation(t *testing.T) {
	validate := validator.New()
	require.NoError(t, validate.Struct(ReconcileDocumentsPayload{DocumentType: "invoice"}))
	require.Error(t, validate.Struct(ReconcileDocumentsPayload{References: []string{"INV-1"}}))
}

func TestSyncPayloadToInputs(t *testing.T) {
	doc, txs := validSyncPayload().toInputs()
	require.Equal(t, "invoice", doc.Type)
	require.Equal(t, "INV-1", doc.Reference)
	require.NotNil(t, doc.Party)
	require.Equal(t, ledger.Party{Type: "customer", ID: 42}, *doc.Party)

	require.Len(t, txs, 1)
	require.Equal(t, "USD", txs[0].Currency)
	require.Len(t, txs[0].Entries, 2)
	require.Equal(t, ledger.EntryTypeDebit, txs[0].Entries[0].Type)
	require.Nil(t, txs[0].Entries[0].Party)
}

func TestTaskConstructorsCarryType(t *testing.T) {
	task, err := NewSyncDocumentTask(validSyncPayload())
	require.NoError(t, err)
	require.Equal(t, TaskTypeSyncDocument, task.Type())

	task, err = NewReconcileDocumentsTask(ReconcileDocumentsPayload{DocumentType: "invoice"})
	require.NoError(t, err)
	require.Equal(t, TaskTypeReconcileDocuments, task.Type())
}
