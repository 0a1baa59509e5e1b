package store

import "github.com/prometheus/client_golang/prometheus"

var OperationCount = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "docstore",
	Subsystem: "store",
	Name:      "operations",
}, []string{"op", "result"})

var EmissionCount = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "docstore",
	Subsystem: "store",
	Name:      "emissions",
}, []string{"stream"})

var WatcherCount = prometheus.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "docstore",
	Subsystem: "store",
	Name:      "watchers",
}, []string{"collection"})

var OperationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "docstore",
	Subsystem: "store",
	Name:      "operation_duration_seconds",
	Buckets:   []float64{0.0001, 0.001, 0.01, 0.1, 1},
}, []string{"op"})

// Collectors lists the store metrics for registration.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{OperationCount, EmissionCount, WatcherCount, OperationDuration}
}

func observe(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	OperationCount.WithLabelValues(op, result).Inc()
}
