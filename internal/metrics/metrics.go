// Package metrics exposes the Prometheus series the service registers
// against /metrics. It keeps the teacher's promauto.With(reg) construction
// idiom and grows the original task-queue-shaped series (TaskProcessed,
// APIErrors, RequestSeconds, ActiveWorkers) with the series the district
// resolution pipeline, cache, and USPS client need.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Geocoding provider chain.
	TaskProcessed  *prometheus.CounterVec
	APIErrors      prometheus.Counter
	RequestSeconds *prometheus.HistogramVec
	ActiveWorkers  prometheus.Gauge

	// Cache.
	CacheHits    prometheus.Counter
	CacheMisses  prometheus.Counter
	CacheFlushed prometheus.Counter

	// District resolution pipeline.
	ResolutionsTotal  *prometheus.CounterVec
	ResolutionSeconds prometheus.Histogram

	// USPS address validation.
	USPSRequests *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		TaskProcessed: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "geocoding_tasks_processed_total",
			Help: "Total number of processed geocoding tasks.",
		}, []string{"status"}),
		APIErrors: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "geocoding_provider_api_errors_total",
			Help: "Total number of errors received from the geocoding provider API.",
		}),
		RequestSeconds: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "geocoding_provider_request_duration_seconds",
			Help:    "Duration of requests to the geocoding provider API.",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
		ActiveWorkers: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "geocoding_active_workers",
			Help: "Current number of active workers processing tasks.",
		}),

		CacheHits: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "geocode_cache_hits_total",
			Help: "Total number of geocode cache lookups that found a usable row.",
		}),
		CacheMisses: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "geocode_cache_misses_total",
			Help: "Total number of geocode cache lookups that found nothing usable.",
		}),
		CacheFlushed: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "geocode_cache_flushed_total",
			Help: "Total number of geocoded addresses written back to the cache.",
		}),

		ResolutionsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "district_resolutions_total",
			Help: "Total number of district resolution requests, by match level.",
		}, []string{"match_level"}),
		ResolutionSeconds: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "district_resolution_duration_seconds",
			Help:    "Duration of a full address or point district resolution.",
			Buckets: prometheus.DefBuckets,
		}),

		USPSRequests: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "usps_validate_requests_total",
			Help: "Total number of USPS AddressService validation requests, by outcome.",
		}, []string{"outcome"}),
	}
}
