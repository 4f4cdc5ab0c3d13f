package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"

	"github.com/oakbooks/ledger/internal/ledger"
)

// LedgerHandlers processes ledger sync and reconciliation tasks.
type LedgerHandlers struct {
	svc      *ledger.Service
	chart    ledger.ChartOfAccounts
	logger   *slog.Logger
	validate *validator.Validate
}

// NewLedgerHandlers constructs handlers around the ledger service. chart is
// the account cache the service resolves through; it is cleared after each
// batch so cache lifetime stays bound to the job.
func NewLedgerHandlers(svc *ledger.Service, chart ledger.ChartOfAccounts, logger *slog.Logger) *LedgerHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &LedgerHandlers{svc: svc, chart: chart, logger: logger, validate: validator.New()}
}

// HandleSyncDocument processes TaskTypeSyncDocument tasks. Malformed or
// invalid payloads skip retry; ledger errors retry per queue policy.
func (h *LedgerHandlers) HandleSyncDocument(ctx context.Context, t *asynq.Task) error {
	var payload SyncDocumentPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if err := h.validate.Struct(payload); err != nil {
		h.logger.Warn("sync payload rejected", slog.String("run_id", payload.RunID.String()), slog.Any("error", err))
		return asynq.SkipRetry
	}
	doc, txs := payload.toInputs()
	if err := h.svc.SyncDocument(ctx, doc, txs); err != nil {
		h.logger.Error("sync document",
			slog.String("run_id", payload.RunID.String()),
			slog.String("document_type", payload.DocumentType),
			slog.String("reference", payload.Reference),
			slog.Any("error", err))
		return err
	}
	return nil
}

// HandleReconcileDocuments processes TaskTypeReconcileDocuments tasks.
func (h *LedgerHandlers) HandleReconcileDocuments(ctx context.Context, t *asynq.Task) error {
	var payload ReconcileDocumentsPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if err := h.validate.Struct(payload); err != nil {
		h.logger.Warn("reconcile payload rejected", slog.String("run_id", payload.RunID.String()), slog.Any("error", err))
		return asynq.SkipRetry
	}
	defer h.chart.Clear()
	started := time.Now()
	if err := h.svc.VoidRemainingDocuments(ctx, payload.DocumentType, payload.References); err != nil {
		h.logger.Error("reconcile documents",
			slog.String("run_id", payload.RunID.String()),
			slog.String("document_type", payload.DocumentType),
			slog.Any("error", err))
		return err
	}
	h.logger.Info("reconcile documents done",
		slog.String("run_id", payload.RunID.String()),
		slog.String("document_type", payload.DocumentType),
		slog.Int("kept", len(payload.References)),
		slog.Duration("elapsed", time.Since(started)))
	return nil
}

func (p SyncDocumentPayload) toInputs() (ledger.DocumentInput, []ledger.TransactionInput) {
	doc := ledger.DocumentInput{
		Type:      p.DocumentType,
		Reference: p.Reference,
		Date:      p.Date,
		Party:     p.Party.toParty(),
	}
	txs := make([]ledger.TransactionInput, 0, len(p.Transactions))
	for _, t := range p.Transactions {
		entries := make([]ledger.EntryInput, 0, len(t.Entries))
		for _, e := range t.Entries {
			entries = append(entries, ledger.EntryInput{
				Account:          e.Account,
				Type:             ledger.EntryType(e.Type),
				Amount:           e.Amount,
				AmountInCurrency: e.AmountInCurrency,
				Party:            e.Party.toParty(),
				DocumentID:       e.DocumentID,
			})
		}
		txs = append(txs, ledger.TransactionInput{
			Date:        t.Date,
			Currency:    t.Currency,
			Description: t.Description,
			Entries:     entries,
		})
	}
	return doc, txs
}

func (p *PartyPayload) toParty() *ledger.Party {
	if p == nil {
		return nil
	}
	return &ledger.Party{Type: p.Type, ID: p.ID}
}
