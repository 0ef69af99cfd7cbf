package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// CacheHitsTotal counts cache hits per layer ("memory", "distributed").
	CacheHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "portfolio_cache_hits_total",
		Help: "Cache hits by layer.",
	}, []string{"layer"})

	// CacheMissesTotal counts full cache misses.
	CacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "portfolio_cache_misses_total",
		Help: "Requests that missed every cache layer.",
	})

	// CacheErrorsTotal counts distributed cache I/O errors that were
	// degraded to misses.
	CacheErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "portfolio_cache_errors_total",
		Help: "Distributed cache errors bypassed as misses.",
	})

	// RegistryLoadsTotal counts source-of-truth registry loads by registry.
	RegistryLoadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "portfolio_registry_loads_total",
		Help: "Registry snapshot loads from the backing store.",
	}, []string{"registry"})

	// AuthorityLookupsTotal counts batched authority lookup calls.
	AuthorityLookupsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "portfolio_authority_lookups_total",
		Help: "Batched symbol lookups against the authoritative registry.",
	})

	// PriceBatchFailuresTotal counts tokens that missed authoritative
	// pricing in an enrichment pass.
	PriceBatchFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "portfolio_price_failures_total",
		Help: "Tokens degraded to no price during enrichment.",
	})

	// QueueDroppedTotal counts metadata write events evicted on saturation.
	QueueDroppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "portfolio_metadata_queue_dropped_total",
		Help: "Metadata write events dropped (oldest-first) on queue saturation.",
	})

	// QueueDepth tracks the current metadata queue depth.
	QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "portfolio_metadata_queue_depth",
		Help: "Current number of pending metadata write events.",
	})
)

// MustRegisterMetrics registers all collectors with the default registry.
// Called once from main.
func MustRegisterMetrics() {
	prometheus.MustRegister(
		CacheHitsTotal,
		CacheMissesTotal,
		CacheErrorsTotal,
		RegistryLoadsTotal,
		AuthorityLookupsTotal,
		PriceBatchFailuresTotal,
		QueueDroppedTotal,
		QueueDepth,
	)
}
