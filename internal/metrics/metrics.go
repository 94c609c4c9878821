// Package metrics holds the Prometheus collectors for the driver index.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FleetOperationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "nearest_fleet_operations_total",
		Help: "Fleet mutations by operation and outcome",
	}, []string{"op", "outcome"})
	QueriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "nearest_queries_total",
		Help: "Neighbour queries by kind (knn, scan, radius)",
	}, []string{"kind"})
	QueryDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nearest_query_duration_ms",
		Help:    "Neighbour query duration in milliseconds",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 50, 100},
	}, []string{"kind"})
	QueryResults = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nearest_query_results",
		Help:    "Records returned per neighbour query",
		Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
	}, []string{"kind"})
	Drivers = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "nearest_drivers",
		Help: "Drivers held by the fleet by availability",
	}, []string{"state"})
	TreeHeight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "nearest_tree_height",
		Help: "Longest root-to-leaf path of the KD tree",
	})
)

func init() {
	prometheus.MustRegister(FleetOperationsTotal)
	prometheus.MustRegister(QueriesTotal)
	prometheus.MustRegister(QueryDurationMs)
	prometheus.MustRegister(QueryResults)
	prometheus.MustRegister(Drivers)
	prometheus.MustRegister(TreeHeight)
}

// Handler exposes the registered collectors for scraping.
func Handler() http.Handler { return promhttp.Handler() }
