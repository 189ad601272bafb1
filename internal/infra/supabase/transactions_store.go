package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/blueledger/mpesa-ingest-go/internal/domain"
	"github.com/blueledger/mpesa-ingest-go/internal/infra/resilience"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
)

// ============================================================
// Transactions store (implements port.TransactionStore)
// ============================================================

// transactionRow maps the transactions table columns.
type transactionRow struct {
	ID          string                     `json:"id"`
	UserID      string                     `json:"user_id"`
	SourceID    string                     `json:"source_id"`
	CategoryID  string                     `json:"category_id"`
	Type        string                     `json:"type"`
	Amount      decimal.Decimal            `json:"amount"`
	Currency    string                     `json:"currency"`
	Description string                     `json:"description"`
	Merchant    string                     `json:"merchant"`
	Timestamp   string                     `json:"timestamp"`
	CreatedAt   string                     `json:"created_at"`
	Metadata    domain.TransactionMetadata `json:"metadata"`
}

func (r *transactionRow) toDomain() *domain.StoredTransaction {
	ts, _ := time.Parse(time.RFC3339, r.Timestamp)
	created, _ := time.Parse(time.RFC3339, r.CreatedAt)
	return &domain.StoredTransaction{
		ID:           r.ID,
		UserID:       r.UserID,
		SourceID:     r.SourceID,
		CategoryID:   r.CategoryID,
		Direction:    domain.Direction(r.Type),
		Amount:       r.Amount,
		Currency:     r.Currency,
		Description:  r.Description,
		Counterparty: r.Merchant,
		Timestamp:    ts,
		CreatedAt:    created,
		Metadata:     r.Metadata,
	}
}

// CreateTransaction inserts a new ledger entry. The id is assigned client-side
// so the caller can reference it immediately.
func (c *Client) CreateTransaction(ctx context.Context, tx *domain.StoredTransaction) (*domain.StoredTransaction, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateTransaction")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", tx.UserID))

	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}

	data := map[string]any{
		"id":          tx.ID,
		"user_id":     tx.UserID,
		"source_id":   tx.SourceID,
		"category_id": tx.CategoryID,
		"type":        string(tx.Direction),
		"amount":      tx.Amount,
		"currency":    tx.Currency,
		"description": tx.Description,
		"merchant":    tx.Counterparty,
		"timestamp":   tx.Timestamp.Format(time.RFC3339),
		"metadata":    tx.Metadata,
	}

	body, err := c.execute(func() ([]byte, error) {
		return c.doPost(ctx, "transactions", data)
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/transactions", Err: err}
	}

	var rows []transactionRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode transactions insert: %w", err)
	}
	if len(rows) == 0 {
		return tx, nil
	}
	return rows[0].toDomain(), nil
}

// FindByReferenceCode looks a transaction up by the provider reference code
// embedded in its metadata. Returns ErrNotFound when absent.
func (c *Client) FindByReferenceCode(ctx context.Context, userID, code string) (*domain.StoredTransaction, error) {
	ctx, span := tracer.Start(ctx, "Supabase.FindByReferenceCode")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	path := fmt.Sprintf("transactions?user_id=eq.%s&metadata-%%3E%%3EtransactionCode=eq.%s&limit=1",
		url.QueryEscape(userID), url.QueryEscape(code))

	row, err := c.findOne(ctx, path)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, &domain.ErrNotFound{Resource: "transaction", ID: code}
	}
	return row.toDomain(), nil
}

// FindSimilar looks up any transaction with the same amount and counterparty
// whose timestamp falls in [from, to]. Returns ErrNotFound when none exists.
func (c *Client) FindSimilar(ctx context.Context, userID string, amount decimal.Decimal, counterparty string, from, to time.Time) (*domain.StoredTransaction, error) {
	ctx, span := tracer.Start(ctx, "Supabase.FindSimilar")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	path := fmt.Sprintf("transactions?user_id=eq.%s&amount=eq.%s&merchant=eq.%s&timestamp=gte.%s&timestamp=lte.%s&limit=1",
		url.QueryEscape(userID),
		url.QueryEscape(amount.String()),
		url.QueryEscape(counterparty),
		url.QueryEscape(from.Format(time.RFC3339)),
		url.QueryEscape(to.Format(time.RFC3339)),
	)

	row, err := c.findOne(ctx, path)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, &domain.ErrNotFound{Resource: "transaction", ID: counterparty}
	}
	return row.toDomain(), nil
}

// findOne runs a limit=1 query with retry + circuit breaker and returns a
// single row, or nil when the result set is empty.
func (c *Client) findOne(ctx context.Context, path string) (*transactionRow, error) {
	var row *transactionRow

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			body, err := c.doGet(ctx, path)
			if err != nil {
				return err
			}

			var rows []transactionRow
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("decode transactions: %w", err)
			}
			if len(rows) > 0 {
				row = &rows[0]
			}
			return nil
		})
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/transactions", Err: err}
	}
	return row, nil
}

// execute runs a write through the circuit breaker only. Writes are not
// retried here: redelivery plus the dedup check is the retry path for
// commits, a blind HTTP retry could double-insert.
func (c *Client) execute(fn func() ([]byte, error)) ([]byte, error) {
	out, err := c.cb.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		return nil, err
	}
	body, ok := out.([]byte)
	if !ok {
		return nil, fmt.Errorf("unexpected response type %T", out)
	}
	return body, nil
}
