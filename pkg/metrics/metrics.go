// Package metrics exposes Prometheus instrumentation for the tenancy core.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ResolutionOutcomes counts tenant resolution results by outcome
	// (resolved, not_found, inactive, activation_failed) and strategy.
	ResolutionOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenant_resolution_total",
			Help: "Total number of tenant resolution attempts by outcome",
		},
		[]string{"outcome", "strategy"},
	)

	// ProvisioningDuration observes how long full tenant provisioning takes.
	ProvisioningDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tenant_provisioning_seconds",
			Help:    "Duration of tenant database provisioning by result",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		},
		[]string{"result"},
	)

	// ActivePools tracks how many tenant connection pools are currently open.
	ActivePools = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tenant_active_connection_pools",
			Help: "Number of open per-tenant database connection pools",
		},
	)

	// CacheHits counts resolution cache hits and misses.
	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tenant_cache_requests_total",
			Help: "Tenant resolution cache requests by result (hit/miss)",
		},
		[]string{"result"},
	)
)

// Init registers the tenancy metrics with the default Prometheus registry.
func Init() {
	prometheus.MustRegister(ResolutionOutcomes)
	prometheus.MustRegister(ProvisioningDuration)
	prometheus.MustRegister(ActivePools)
	prometheus.MustRegister(CacheHits)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
