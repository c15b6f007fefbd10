package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AirAPICallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "greencity_air_api_calls_total",
			Help: "Total air-quality API calls",
		},
		[]string{"status"},
	)

	AirAPILatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "greencity_air_api_latency_seconds",
			Help:    "Air-quality API call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	IndexComputed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "greencity_index_computed_total",
			Help: "Total index records computed",
		},
		[]string{"origin"},
	)

	StoreWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "greencity_store_writes_total",
			Help: "Total store writes by table and result",
		},
		[]string{"table", "result"},
	)

	LatestOverallScore = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "greencity_overall_score",
			Help: "Overall score of the most recent live update",
		},
	)

	LatestDimensionScore = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "greencity_dimension_score",
			Help: "Dimension scores of the most recent live update",
		},
		[]string{"dimension"},
	)
)

// RecordWrite counts a write to table, labelled by whether err is nil.
func RecordWrite(table string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	StoreWrites.WithLabelValues(table, result).Inc()
}
