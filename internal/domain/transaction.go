package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction tells whether money entered or left the account.
type Direction string

const (
	Income  Direction = "income"
	Expense Direction = "expense"
)

// ParsedCandidate is the fully normalized form of one notification message,
// ready for the dedup check and the ledger write.
// Invariants: Amount > 0, Timestamp fully resolved (no 2-digit year, no
// AM/PM ambiguity left).
type ParsedCandidate struct {
	Direction     Direction       `json:"direction"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Timestamp     time.Time       `json:"timestamp"`
	Description   string          `json:"description"`
	Counterparty  string          `json:"counterparty,omitempty"`
	BalanceAfter  *decimal.Decimal `json:"balance_after,omitempty"`
	ReferenceCode string          `json:"reference_code,omitempty"`
}

// TransactionMetadata is the opaque audit bag stored with each transaction.
// JSON keys match the columns the mobile app already reads.
type TransactionMetadata struct {
	RawSMS        string `json:"rawSms"`
	ReferenceCode string `json:"transactionCode,omitempty"`
}

// StoredTransaction is a ledger entry as persisted in the transaction store.
// This service creates them exactly once per accepted candidate and never
// mutates them afterwards.
type StoredTransaction struct {
	ID           string              `json:"id"`
	UserID       string              `json:"user_id"`
	SourceID     string              `json:"source_id"`
	CategoryID   string              `json:"category_id"`
	Direction    Direction           `json:"type"`
	Amount       decimal.Decimal     `json:"amount"`
	Currency     string              `json:"currency"`
	Description  string              `json:"description"`
	Counterparty string              `json:"merchant,omitempty"`
	Timestamp    time.Time           `json:"timestamp"`
	CreatedAt    time.Time           `json:"created_at"`
	Metadata     TransactionMetadata `json:"metadata"`
}

// Source is a money source record ("M-Pesa"), owned by the external store.
type Source struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Currency string `json:"currency"`
}

// Category is a transaction category record, owned by the external store.
type Category struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Direction Direction `json:"type"`
}
