package documents

import "time"

// Document represents an external business record (invoice, bill, ...)
// identified by (ledger_id, document_type, reference). Date and party are the
// only mutable fields; identity never changes and documents are never
// deleted.
type Document struct {
	ID        int64
	LedgerID  int64
	TypeID    int64
	Reference string
	Date      time.Time
	PartyType string
	PartyID   int64
}
