package domain

// IngestStatus is the terminal status of one ingestion attempt.
type IngestStatus string

const (
	StatusCommitted IngestStatus = "committed"
	StatusSkipped   IngestStatus = "skipped"
	StatusRejected  IngestStatus = "rejected"
)

// IngestReason qualifies a Skipped or Rejected outcome.
type IngestReason string

const (
	ReasonNotProvider IngestReason = "not-provider"
	ReasonUnmatched   IngestReason = "unmatched"
	ReasonDuplicate   IngestReason = "duplicate"
	ReasonParseError  IngestReason = "parse-error"
	ReasonStoreError  IngestReason = "store-error"
)

// IngestResult is the typed outcome of Ingest. Every message ends in exactly
// one of these; nothing is thrown across the trigger boundary.
type IngestResult struct {
	Status        IngestStatus `json:"status"`
	Reason        IngestReason `json:"reason,omitempty"`
	TransactionID string       `json:"transaction_id,omitempty"`
}

// Committed builds the success outcome for a newly written transaction.
func Committed(transactionID string) *IngestResult {
	return &IngestResult{Status: StatusCommitted, TransactionID: transactionID}
}

// Skipped builds a non-fatal no-op outcome.
func Skipped(reason IngestReason) *IngestResult {
	return &IngestResult{Status: StatusSkipped, Reason: reason}
}

// SkippedDuplicate marks the message as a duplicate of an existing entry.
func SkippedDuplicate(existingID string) *IngestResult {
	return &IngestResult{Status: StatusSkipped, Reason: ReasonDuplicate, TransactionID: existingID}
}

// Rejected builds a failure outcome for this single message.
func Rejected(reason IngestReason) *IngestResult {
	return &IngestResult{Status: StatusRejected, Reason: reason}
}
