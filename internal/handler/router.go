// Package handler exposes the HTTP surface of the ingestion service: the
// inbound message trigger plus operational endpoints.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/blueledger/mpesa-ingest-go/internal/domain"
	"github.com/blueledger/mpesa-ingest-go/internal/infra/observability"
	"github.com/blueledger/mpesa-ingest-go/internal/infra/resilience"
	"github.com/blueledger/mpesa-ingest-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(ingestSvc *service.Ingest, bulkhead *resilience.Bulkhead, metrics *observability.Metrics, jwtSecret []byte, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler())
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	r.Get("/v1/ingest/stats", statsHandler(metrics))

	// --- API v1 (authenticated) ---
	r.Group(func(r chi.Router) {
		r.Use(JWTAuthMiddleware(jwtSecret, logger))

		// POST /v1/messages receives one inbound notification.
		r.Post("/v1/messages", ingestHandler(ingestSvc, bulkhead, logger))
	})

	return r
}

// ingestHandler receives one raw notification message and runs it through
// the ingestion pipeline to a terminal outcome.
func ingestHandler(svc *service.Ingest, bulkhead *resilience.Bulkhead, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/messages")
		defer span.End()

		var msg domain.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if msg.Body == "" {
			writeError(w, http.StatusBadRequest, "message body is required")
			return
		}

		userID := UserIDFromContext(ctx)

		// Bound how many messages are processed at once; waiters respect
		// the request context.
		if err := bulkhead.Acquire(ctx); err != nil {
			writeError(w, http.StatusServiceUnavailable, "ingestion at capacity")
			return
		}
		defer bulkhead.Release()

		result := svc.Ingest(ctx, userID, msg)
		writeJSON(w, resultStatusCode(result), result)
	}
}

// statsHandler serves a snapshot of the ingestion counters for catalog
// maintenance dashboards.
func statsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetIngestSnapshot())
	}
}

func healthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
