// Package metrics exposes the Prometheus registry shared by artic-table.
// Metrics are defined in their respective packages (client, ratelimit,
// selection, pagination, bulkselect) and registered there via promauto;
// this package only serves them and lists them.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer all artic-table metrics use.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer matching Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler serves Gatherer in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metric describes one exported metric.
type Metric struct {
	Name    string
	Package string
	Labels  []string
}

// Catalog lists every metric artic-table exports.
var Catalog = []Metric{
	{Name: "artic_requests_total", Package: "client", Labels: []string{"status"}},
	{Name: "artic_request_duration_seconds", Package: "client"},
	{Name: "artic_fetch_errors_total", Package: "client", Labels: []string{"class"}},
	{Name: "artic_rate_limit_remaining", Package: "ratelimit"},
	{Name: "artic_rate_limit_blocks_total", Package: "ratelimit"},
	{Name: "artic_rate_limit_throttles_total", Package: "ratelimit"},
	{Name: "artic_selection_size", Package: "selection"},
	{Name: "artic_page_navigations_total", Package: "pagination", Labels: []string{"result"}},
	{Name: "artic_walk_pages_fetched_total", Package: "pagination"},
	{Name: "artic_bulk_select_total", Package: "bulkselect", Labels: []string{"result"}},
	{Name: "artic_bulk_select_pages_fetched", Package: "bulkselect"},
}

// Example Prometheus Queries:
//
//   # Upstream error rate
//   sum(rate(artic_fetch_errors_total[5m])) by (class)
//
//   # P95 page request latency
//   histogram_quantile(0.95, rate(artic_request_duration_seconds_bucket[5m]))
//
//   # Superseded navigations (users paging faster than the upstream answers)
//   rate(artic_page_navigations_total{result="superseded"}[5m])
//
//   # Quota headroom
//   artic_rate_limit_remaining < 10
