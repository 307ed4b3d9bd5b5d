package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QuotesRequestedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quotes_requested_total",
		Help: "Total number of quote requests received",
	})

	QuotesFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quotes_failed_total",
		Help: "Total number of quote requests that failed outright",
	}, []string{"reason"})

	StoreQuotesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "store_quotes_total",
		Help: "Total number of per-store quotes computed",
	}, []string{"store", "status"})

	MissingItemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quote_missing_items_total",
		Help: "Total number of basket lines reported as missing",
	}, []string{"reason"})

	StalePriceLinesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quote_stale_price_lines_total",
		Help: "Total number of basket lines priced from a stale cache entry",
	})

	UnitFallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "unit_fallbacks_total",
		Help: "Total number of unrecognized recipe units treated as COUNT",
	}, []string{"unit"})

	CatalogUnitMismatchTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_unit_mismatch_total",
		Help: "Total number of store products whose pack unit disagrees with the canonical item",
	})

	PriceCacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "price_cache_lookups_total",
		Help: "Total number of price cache lookups by result",
	}, []string{"result"})

	QuoteLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "quote_duration_seconds",
		Help:    "Latency of full multi-store quote requests",
		Buckets: prometheus.DefBuckets,
	})

	StoreQuoteLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "store_quote_duration_seconds",
		Help:    "Latency of single-store quote computation",
		Buckets: prometheus.DefBuckets,
	}, []string{"store"})

	QuoteLogsPersistedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quote_logs_persisted_total",
		Help: "Total number of quote audit logs written",
	})

	QuoteLogFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quote_log_failures_total",
		Help: "Total number of quote audit log writes that failed",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
