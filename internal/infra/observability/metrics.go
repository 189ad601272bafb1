package observability

import (
	"time"

	"github.com/blueledger/mpesa-ingest-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the ingestion service.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	ingestDuration *prometheus.HistogramVec
	outcomesTotal  *prometheus.CounterVec
	templateHits   *prometheus.CounterVec
	externalErrors *prometheus.CounterVec
	cacheHits      *prometheus.CounterVec
	cacheMisses    *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		ingestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ingest_duration_seconds",
				Help:    "Duration of operations by name.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		outcomesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_outcomes_total",
				Help: "Terminal ingestion outcomes by status and reason.",
			},
			[]string{"status", "reason"},
		),
		templateHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_template_hits_total",
				Help: "Messages matched per catalog template.",
			},
			[]string{"template"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
	}
}

// RecordIngestDuration records the duration of an operation.
func (m *Metrics) RecordIngestDuration(operation string, d time.Duration) {
	m.ingestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrOutcome increments the outcome counter for one terminal result.
func (m *Metrics) IncrOutcome(result *domain.IngestResult) {
	m.outcomesTotal.WithLabelValues(string(result.Status), string(result.Reason)).Inc()
}

// IncrTemplateHit increments the per-template match counter.
func (m *Metrics) IncrTemplateHit(template string) {
	m.templateHits.WithLabelValues(template).Inc()
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IngestSnapshot is a point-in-time view of the ingestion counters, served
// by GET /v1/ingest/stats for the catalog maintainer's dashboard.
type IngestSnapshot struct {
	Committed    int64   `json:"committed"`
	Unmatched    int64   `json:"unmatched"`
	Duplicates   int64   `json:"duplicates"`
	NotProvider  int64   `json:"not_provider"`
	ParseErrors  int64   `json:"parse_errors"`
	StoreErrors  int64   `json:"store_errors"`
	MatchRate    float64 `json:"match_rate"`
	CacheHitRate float64 `json:"cache_hit_rate"`
}

// GetIngestSnapshot gathers current counter values from Prometheus.
// Note: Prometheus counters expose cumulative values.
func (m *Metrics) GetIngestSnapshot() *IngestSnapshot {
	committed := getCounterValue(m.outcomesTotal, string(domain.StatusCommitted), "")
	unmatched := getCounterValue(m.outcomesTotal, string(domain.StatusSkipped), string(domain.ReasonUnmatched))
	duplicates := getCounterValue(m.outcomesTotal, string(domain.StatusSkipped), string(domain.ReasonDuplicate))
	notProvider := getCounterValue(m.outcomesTotal, string(domain.StatusSkipped), string(domain.ReasonNotProvider))
	parseErrors := getCounterValue(m.outcomesTotal, string(domain.StatusRejected), string(domain.ReasonParseError))
	storeErrors := getCounterValue(m.outcomesTotal, string(domain.StatusRejected), string(domain.ReasonStoreError))
	cacheHits := getCounterValue(m.cacheHits, "ledger")
	cacheMisses := getCounterValue(m.cacheMisses, "ledger")

	matchRate := float64(0)
	if classified := committed + unmatched + duplicates + parseErrors + storeErrors; classified > 0 {
		matchRate = (classified - unmatched) / classified
	}
	cacheHitRate := float64(0)
	if cacheHits+cacheMisses > 0 {
		cacheHitRate = cacheHits / (cacheHits + cacheMisses)
	}

	return &IngestSnapshot{
		Committed:    int64(committed),
		Unmatched:    int64(unmatched),
		Duplicates:   int64(duplicates),
		NotProvider:  int64(notProvider),
		ParseErrors:  int64(parseErrors),
		StoreErrors:  int64(storeErrors),
		MatchRate:    matchRate,
		CacheHitRate: cacheHitRate,
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for the given labels.
func getCounterValue(cv *prometheus.CounterVec, labels ...string) float64 {
	counter := cv.WithLabelValues(labels...)
	m := &dto.Metric{}
	if err := counter.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
