package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/blueledger/mpesa-ingest-go/internal/domain"
	"github.com/blueledger/mpesa-ingest-go/internal/infra/resilience"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Sources + categories store (implements port.LedgerStore)
// ============================================================

type sourceRow struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Currency string `json:"currency"`
}

type categoryRow struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Type   string `json:"type"`
}

// GetOrCreateSource resolves the money source record by name, creating it on
// first use. Race-tolerant: if a concurrent ingest wins the create, the
// resulting conflict triggers a re-fetch of the winner's record.
func (c *Client) GetOrCreateSource(ctx context.Context, userID, name string) (*domain.Source, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetOrCreateSource")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID), attribute.String("source.name", name))

	fetch := func() (*sourceRow, error) {
		path := fmt.Sprintf("sources?user_id=eq.%s&name=eq.%s&limit=1",
			url.QueryEscape(userID), url.QueryEscape(name))
		return fetchOne[sourceRow](ctx, c, path, "sources")
	}

	row, err := fetch()
	if err != nil {
		return nil, err
	}

	if row == nil {
		c.logger.Info("source not found, creating it", zap.String("name", name))
		data := map[string]any{
			"id":       uuid.NewString(),
			"user_id":  userID,
			"name":     name,
			"type":     "mobile_money",
			"currency": "KES",
			"balance":  0,
		}
		body, postErr := c.doPost(ctx, "sources", data)
		switch {
		case isConflict(postErr):
			// Lost the create race; the winner's record is the answer.
			if row, err = fetch(); err != nil {
				return nil, err
			}
		case postErr != nil:
			return nil, &domain.ErrExternalService{Service: "supabase/sources", Err: postErr}
		default:
			var rows []sourceRow
			if err := json.Unmarshal(body, &rows); err != nil {
				return nil, fmt.Errorf("decode sources insert: %w", err)
			}
			if len(rows) > 0 {
				row = &rows[0]
			}
		}
	}

	if row == nil {
		return nil, &domain.ErrNotFound{Resource: "source", ID: name}
	}
	return &domain.Source{ID: row.ID, UserID: row.UserID, Name: row.Name, Type: row.Type, Currency: row.Currency}, nil
}

// GetOrCreateCategory resolves a category record by name, creating it on
// first use with the app's default styling. Race-tolerant like
// GetOrCreateSource.
func (c *Client) GetOrCreateCategory(ctx context.Context, userID, name string, direction domain.Direction) (*domain.Category, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetOrCreateCategory")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID), attribute.String("category.name", name))

	fetch := func() (*categoryRow, error) {
		path := fmt.Sprintf("categories?user_id=eq.%s&name=eq.%s&limit=1",
			url.QueryEscape(userID), url.QueryEscape(name))
		return fetchOne[categoryRow](ctx, c, path, "categories")
	}

	row, err := fetch()
	if err != nil {
		return nil, err
	}

	if row == nil {
		data := map[string]any{
			"id":         uuid.NewString(),
			"user_id":    userID,
			"name":       name,
			"type":       string(direction),
			"color":      "#CCCCCC",
			"icon":       "tag",
			"is_default": true,
		}
		body, postErr := c.doPost(ctx, "categories", data)
		switch {
		case isConflict(postErr):
			if row, err = fetch(); err != nil {
				return nil, err
			}
		case postErr != nil:
			return nil, &domain.ErrExternalService{Service: "supabase/categories", Err: postErr}
		default:
			var rows []categoryRow
			if err := json.Unmarshal(body, &rows); err != nil {
				return nil, fmt.Errorf("decode categories insert: %w", err)
			}
			if len(rows) > 0 {
				row = &rows[0]
			}
		}
	}

	if row == nil {
		return nil, &domain.ErrNotFound{Resource: "category", ID: name}
	}
	return &domain.Category{ID: row.ID, UserID: row.UserID, Name: row.Name, Direction: domain.Direction(row.Type)}, nil
}

// fetchOne runs a limit=1 query with retry + circuit breaker.
func fetchOne[T any](ctx context.Context, c *Client, path, service string) (*T, error) {
	var row *T

	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			body, err := c.doGet(ctx, path)
			if err != nil {
				return err
			}
			var rows []T
			if err := json.Unmarshal(body, &rows); err != nil {
				return fmt.Errorf("decode %s: %w", service, err)
			}
			if len(rows) > 0 {
				row = &rows[0]
			}
			return nil
		})
	})
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/" + service, Err: err}
	}
	return row, nil
}
