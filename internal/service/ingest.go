// Package service contains the ingestion pipeline: classify, normalize,
// resolve supporting records, dedup, commit.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/blueledger/mpesa-ingest-go/internal/catalog"
	"github.com/blueledger/mpesa-ingest-go/internal/domain"
	"github.com/blueledger/mpesa-ingest-go/internal/infra/observability"
	"github.com/blueledger/mpesa-ingest-go/internal/normalize"
	"github.com/blueledger/mpesa-ingest-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("service/ingest")

// Uncategorized fallback category names, one per direction.
const (
	uncategorizedIncome  = "Uncategorized Income"
	uncategorizedExpense = "Uncategorized Expense"
)

// Ingest coordinates the full pipeline for one raw message. All
// collaborators are injected; nil observer and unmatched sink are allowed.
type Ingest struct {
	catalog      *catalog.Catalog
	transactions port.TransactionStore
	ledger       port.LedgerStore
	cache        port.Cache[string]
	observer     port.Observer
	unmatched    port.UnmatchedSink
	dedupWindow  time.Duration
	metrics      *observability.Metrics
	logger       *zap.Logger
}

// NewIngest creates the ingestion service with all dependencies injected.
func NewIngest(
	cat *catalog.Catalog,
	transactions port.TransactionStore,
	ledger port.LedgerStore,
	cache port.Cache[string],
	observer port.Observer,
	unmatched port.UnmatchedSink,
	dedupWindow time.Duration,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Ingest {
	return &Ingest{
		catalog:      cat,
		transactions: transactions,
		ledger:       ledger,
		cache:        cache,
		observer:     observer,
		unmatched:    unmatched,
		dedupWindow:  dedupWindow,
		metrics:      metrics,
		logger:       logger,
	}
}

// Ingest processes one raw message to a terminal outcome. Every failure mode
// is reported as a typed IngestResult, never as a panic or error across the
// trigger boundary; the caller decides what (if anything) to surface to the
// user. Redelivery of the same message is safe: the dedup check makes the
// whole pipeline idempotent per underlying event.
func (s *Ingest) Ingest(ctx context.Context, userID string, msg domain.RawMessage) *domain.IngestResult {
	ctx, span := tracer.Start(ctx, "Ingest.Ingest")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	start := time.Now()
	defer func() {
		s.metrics.RecordIngestDuration("ingest", time.Since(start))
	}()

	result := s.run(ctx, userID, msg)
	s.metrics.IncrOutcome(result)
	span.SetAttributes(
		attribute.String("ingest.status", string(result.Status)),
		attribute.String("ingest.reason", string(result.Reason)),
	)
	return result
}

func (s *Ingest) run(ctx context.Context, userID string, msg domain.RawMessage) *domain.IngestResult {
	// --- Step 1: provider filter ---
	if !catalog.IsProviderMessage(msg) {
		s.logger.Debug("message not attributable to provider",
			zap.String("origin", msg.Origin),
		)
		return domain.Skipped(domain.ReasonNotProvider)
	}

	// --- Step 2: classify ---
	ex, ok := s.catalog.Classify(msg.Body)
	if !ok {
		s.logger.Info("unmatched provider message",
			zap.String("user_id", userID),
			zap.String("body", msg.Body),
		)
		if s.unmatched != nil {
			s.unmatched.LogUnmatched(userID, msg.Body)
		}
		return domain.Skipped(domain.ReasonUnmatched)
	}
	s.metrics.IncrTemplateHit(ex.Template)

	// --- Step 3: normalize ---
	candidate, err := normalize.Normalize(ex)
	if err != nil {
		s.logger.Warn("matched message failed normalization",
			zap.String("user_id", userID),
			zap.String("template", ex.Template),
			zap.Error(err),
		)
		return domain.Rejected(domain.ReasonParseError)
	}

	// --- Step 4: resolve source + category concurrently ---
	var sourceID, categoryID string
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		id, err := s.resolveSource(gCtx, userID)
		if err != nil {
			return fmt.Errorf("resolve source: %w", err)
		}
		sourceID = id
		return nil
	})
	g.Go(func() error {
		id, err := s.resolveCategory(gCtx, userID, candidate.Direction)
		if err != nil {
			return fmt.Errorf("resolve category: %w", err)
		}
		categoryID = id
		return nil
	})

	if err := g.Wait(); err != nil {
		s.logger.Error("failed to resolve supporting records",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		s.metrics.IncrExternalError("ledger")
		return domain.Rejected(domain.ReasonStoreError)
	}

	// --- Step 5: dedup check ---
	existing, err := s.findDuplicate(ctx, userID, candidate)
	if err != nil {
		s.logger.Error("dedup lookup failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		s.metrics.IncrExternalError("transactions")
		return domain.Rejected(domain.ReasonStoreError)
	}
	if existing != nil {
		s.logger.Info("duplicate transaction skipped",
			zap.String("user_id", userID),
			zap.String("existing_id", existing.ID),
			zap.String("reference_code", candidate.ReferenceCode),
		)
		return domain.SkippedDuplicate(existing.ID)
	}

	// --- Step 6: write ---
	created, err := s.transactions.CreateTransaction(ctx, &domain.StoredTransaction{
		UserID:       userID,
		SourceID:     sourceID,
		CategoryID:   categoryID,
		Direction:    candidate.Direction,
		Amount:       candidate.Amount,
		Currency:     candidate.Currency,
		Description:  candidate.Description,
		Counterparty: candidate.Counterparty,
		Timestamp:    candidate.Timestamp,
		Metadata: domain.TransactionMetadata{
			RawSMS:        msg.Body,
			ReferenceCode: candidate.ReferenceCode,
		},
	})
	if err != nil {
		s.logger.Error("failed to insert transaction",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		s.metrics.IncrExternalError("transactions")
		return domain.Rejected(domain.ReasonStoreError)
	}

	s.logger.Info("transaction ingested",
		zap.String("user_id", userID),
		zap.String("transaction_id", created.ID),
		zap.String("template", ex.Template),
		zap.String("amount", candidate.Amount.String()),
	)

	// --- Step 7: notify observer, at most once, synchronously ---
	if s.observer != nil {
		s.observer.OnTransactionIngested(*candidate)
	}

	return domain.Committed(created.ID)
}

// findDuplicate resolves whether candidate duplicates a stored transaction.
// The exact reference-code lookup is authoritative when a code is present;
// the amount+counterparty window match covers templates without one.
func (s *Ingest) findDuplicate(ctx context.Context, userID string, candidate *domain.ParsedCandidate) (*domain.StoredTransaction, error) {
	ctx, span := tracer.Start(ctx, "Ingest.findDuplicate")
	defer span.End()

	if candidate.ReferenceCode != "" {
		tx, err := s.transactions.FindByReferenceCode(ctx, userID, candidate.ReferenceCode)
		if err != nil {
			if isNotFound(err) {
				return nil, nil
			}
			return nil, err
		}
		return tx, nil
	}

	// No reference code: fall back to the fuzzy window match. Without a
	// counterparty there is nothing usable to compare on.
	if candidate.Counterparty == "" {
		return nil, nil
	}

	from := candidate.Timestamp.Add(-s.dedupWindow)
	to := candidate.Timestamp.Add(s.dedupWindow)
	tx, err := s.transactions.FindSimilar(ctx, userID, candidate.Amount, candidate.Counterparty, from, to)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return tx, nil
}

// resolveSource returns the id of the provider source record, consulting the
// cache before the store.
func (s *Ingest) resolveSource(ctx context.Context, userID string) (string, error) {
	cacheKey := fmt.Sprintf("source:%s:%s", userID, catalog.ProviderName)
	if id, ok := s.cache.Get(cacheKey); ok {
		s.metrics.IncrCacheHit("ledger")
		return id, nil
	}
	s.metrics.IncrCacheMiss("ledger")

	source, err := s.ledger.GetOrCreateSource(ctx, userID, catalog.ProviderName)
	if err != nil {
		return "", err
	}
	s.cache.Set(cacheKey, source.ID)
	return source.ID, nil
}

// resolveCategory returns the id of the uncategorized fallback category for
// the candidate's direction, consulting the cache before the store.
func (s *Ingest) resolveCategory(ctx context.Context, userID string, direction domain.Direction) (string, error) {
	name := uncategorizedExpense
	if direction == domain.Income {
		name = uncategorizedIncome
	}

	cacheKey := fmt.Sprintf("category:%s:%s", userID, name)
	if id, ok := s.cache.Get(cacheKey); ok {
		s.metrics.IncrCacheHit("ledger")
		return id, nil
	}
	s.metrics.IncrCacheMiss("ledger")

	category, err := s.ledger.GetOrCreateCategory(ctx, userID, name, direction)
	if err != nil {
		return "", err
	}
	s.cache.Set(cacheKey, category.ID)
	return category.ID, nil
}

func isNotFound(err error) bool {
	var notFound *domain.ErrNotFound
	return errors.As(err, &notFound)
}
