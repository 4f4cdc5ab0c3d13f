package jobs

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSyncDocument is the task type for synchronizing one document's
	// desired ledger state.
	TaskTypeSyncDocument = "ledger:sync_document"
	// TaskTypeReconcileDocuments is the task type for voiding documents
	// deleted upstream after being recorded.
	TaskTypeReconcileDocuments = "ledger:reconcile_documents"
)

// PartyPayload attributes a document or entry to a sub-ledger subject.
type PartyPayload struct {
	Type string `json:"type" validate:"required"`
	ID   int64  `json:"id" validate:"required"`
}

// EntryPayload is one desired ledger entry in a sync task.
type EntryPayload struct {
	Account          string        `json:"account" validate:"required"`
	Type             string        `json:"type" validate:"required,oneof=DEBIT CREDIT"`
	Amount           int64         `json:"amount" validate:"gt=0"`
	AmountInCurrency int64         `json:"amount_in_currency" validate:"gt=0"`
	Party            *PartyPayload `json:"party,omitempty"`
	DocumentID       *int64        `json:"document_id,omitempty"`
}

// TransactionPayload is one desired transaction in a sync task.
type TransactionPayload struct {
	Date        time.Time      `json:"date" validate:"required"`
	Currency    string         `json:"currency" validate:"required,len=3"`
	Description string         `json:"description"`
	Entries     []EntryPayload `json:"entries" validate:"min=1,dive"`
}

// SyncDocumentPayload carries a document identity plus the complete desired
// set of active transactions for it.
type SyncDocumentPayload struct {
	RunID        uuid.UUID            `json:"run_id"`
	DocumentType string               `json:"document_type" validate:"required"`
	Reference    string               `json:"reference" validate:"required"`
	Date         time.Time            `json:"date" validate:"required"`
	Party        *PartyPayload        `json:"party,omitempty"`
	Transactions []TransactionPayload `json:"transactions" validate:"dive"`
}

// ReconcileDocumentsPayload lists the references that still exist upstream
// for a document type; everything else of that type gets voided.
type ReconcileDocumentsPayload struct {
	RunID        uuid.UUID `json:"run_id"`
	DocumentType string    `json:"document_type" validate:"required"`
	References   []string  `json:"references"`
}

// NewSyncDocumentTask constructs an Asynq task.
func NewSyncDocumentTask(payload SyncDocumentPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSyncDocument, data), nil
}

// NewReconcileDocumentsTask constructs an Asynq task.
func NewReconcileDocumentsTask(payload ReconcileDocumentsPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeReconcileDocuments, data), nil
}
