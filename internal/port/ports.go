// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the ingestion
// pipeline from concrete store and notification implementations.
package port

import (
	"context"
	"time"

	"github.com/blueledger/mpesa-ingest-go/internal/domain"

	"github.com/shopspring/decimal"
)

// TransactionStore is the read/write surface of the durable transaction
// ledger this service commits into.
type TransactionStore interface {
	// CreateTransaction persists a new ledger entry and returns it with
	// store-assigned fields filled in.
	CreateTransaction(ctx context.Context, tx *domain.StoredTransaction) (*domain.StoredTransaction, error)

	// FindByReferenceCode looks up a transaction by the provider-issued
	// reference code. Returns ErrNotFound when absent.
	FindByReferenceCode(ctx context.Context, userID, code string) (*domain.StoredTransaction, error)

	// FindSimilar looks up any transaction with the same amount and
	// counterparty whose timestamp falls in [from, to]. Returns ErrNotFound
	// when none exists.
	FindSimilar(ctx context.Context, userID string, amount decimal.Decimal, counterparty string, from, to time.Time) (*domain.StoredTransaction, error)
}

// LedgerStore resolves the supporting source and category records. Both
// operations are idempotent get-or-create: losing a create race against a
// concurrent ingest must resolve to the winner's record, not an error.
type LedgerStore interface {
	GetOrCreateSource(ctx context.Context, userID, name string) (*domain.Source, error)
	GetOrCreateCategory(ctx context.Context, userID, name string, direction domain.Direction) (*domain.Category, error)
}

// Observer is notified once, synchronously, per committed transaction so
// dependent views can refresh.
type Observer interface {
	OnTransactionIngested(candidate domain.ParsedCandidate)
}

// ObserverFunc adapts a plain function to the Observer interface.
type ObserverFunc func(candidate domain.ParsedCandidate)

func (f ObserverFunc) OnTransactionIngested(candidate domain.ParsedCandidate) {
	f(candidate)
}

// UnmatchedSink receives the raw body of every message no template matched,
// to support catalog maintenance. Purely observational.
type UnmatchedSink interface {
	LogUnmatched(userID, rawBody string)
}

// UnmatchedSinkFunc adapts a plain function to the UnmatchedSink interface.
type UnmatchedSinkFunc func(userID, rawBody string)

func (f UnmatchedSinkFunc) LogUnmatched(userID, rawBody string) {
	f(userID, rawBody)
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
