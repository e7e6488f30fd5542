// Package metrics exposes the Prometheus metrics of the resolver.
// All metrics are defined in their respective packages (shard, transport,
// cache, enrich, ratelimit, aircraftdb) to maintain modularity and avoid
// circular dependencies.
//
// This package provides the scrape handler and a reference for all
// available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the resolver.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Handler serves the metrics of the default gatherer.
func Handler() http.Handler {
	return promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Scheduler Metrics (pkg/shard):
//   - aircraftdb_shard_fetches_active (Gauge): Shard fetches in flight
//   - aircraftdb_shard_fetches_queued (Gauge): Shard fetches waiting for a slot
//   - aircraftdb_shard_fetches_total{result} (Counter): Completed shard fetches (ok, error)
//   - aircraftdb_shard_dedup_total (Counter): Requests served by an existing fetch
//
// Lookup Metrics (pkg/aircraftdb, pkg/enrich):
//   - aircraftdb_lookups_total{result} (Counter): Lookups (found, not_found, error, cached)
//   - aircraftdb_enrich_table_loads_total{result} (Counter): Type table loads (ok, error)
//   - aircraftdb_enrich_merges_total{outcome} (Counter): Merges (filled, unchanged, unavailable)
//
// Request Metrics (pkg/transport):
//   - aircraftdb_requests_total{kind, status} (Counter): Requests by document kind and HTTP status
//   - aircraftdb_request_duration_seconds{kind} (Histogram): Request duration by document kind
//   - aircraftdb_errors_total{class} (Counter): Errors by class (client, server, network, decode)
//   - aircraftdb_retries_total{error_class} (Counter): Retry attempts by error class
//   - aircraftdb_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - aircraftdb_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Pacing Metrics (pkg/ratelimit):
//   - aircraftdb_rate_limit_throttles_total (Counter): Requests that had to wait for a token
//   - aircraftdb_rate_limit_wait_seconds (Histogram): Time spent waiting for a token
//
// Store Metrics (pkg/cache):
//   - aircraftdb_cache_hits_total{layer="redis"} (Counter): Store hits by layer
//   - aircraftdb_cache_misses_total (Counter): Store misses
//   - aircraftdb_cache_size_bytes{layer="redis"} (Gauge): Bytes written to the store
//   - aircraftdb_cache_errors_total{operation} (Counter): Store operation errors
//
// Example Prometheus Queries:
//
//   # Dedup ratio
//   rate(aircraftdb_shard_dedup_total[5m]) /
//   (rate(aircraftdb_shard_dedup_total[5m]) + sum(rate(aircraftdb_shard_fetches_total[5m])))
//
//   # Saturated scheduler
//   aircraftdb_shard_fetches_queued > 0
//
//   # Store Hit Rate
//   sum(rate(aircraftdb_cache_hits_total[5m])) /
//   (sum(rate(aircraftdb_cache_hits_total[5m])) + sum(rate(aircraftdb_cache_misses_total[5m])))
//
//   # P95 Shard Latency
//   histogram_quantile(0.95, rate(aircraftdb_request_duration_seconds_bucket{kind="shard"}[5m]))
