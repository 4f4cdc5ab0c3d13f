package jobs

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Enqueuer submits ledger tasks to the queue.
type Enqueuer struct {
	client *asynq.Client
}

// NewEnqueuer constructs an Enqueuer.
func NewEnqueuer(opts asynq.RedisClientOpt) *Enqueuer {
	return &Enqueuer{client: asynq.NewClient(opts)}
}

// Close releases the underlying client.
func (e *Enqueuer) Close() error { return e.client.Close() }

// EnqueueSyncDocument queues a document sync and returns the run id.
func (e *Enqueuer) EnqueueSyncDocument(ctx context.Context, payload SyncDocumentPayload) (uuid.UUID, error) {
	if payload.RunID == uuid.Nil {
		payload.RunID = uuid.New()
	}
	task, err := NewSyncDocumentTask(payload)
	if err != nil {
		return uuid.Nil, err
	}
	if _, err := e.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault)); err != nil {
		return uuid.Nil, fmt.Errorf("jobs: enqueue sync: %w", err)
	}
	return payload.RunID, nil
}

// EnqueueReconcileDocuments queues a reconciliation sweep and returns the
// run id.
func (e *Enqueuer) EnqueueReconcileDocuments(ctx context.Context, payload ReconcileDocumentsPayload) (uuid.UUID, error) {
	if payload.RunID == uuid.Nil {
		payload.RunID = uuid.New()
	}
	task, err := NewReconcileDocumentsTask(payload)
	if err != nil {
		return uuid.Nil, err
	}
	if _, err := e.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault)); err != nil {
		return uuid.Nil, fmt.Errorf("jobs: enqueue reconcile: %w", err)
	}
	return payload.RunID, nil
}
