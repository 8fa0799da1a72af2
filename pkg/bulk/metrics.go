package bulk

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors updated by accumulators. A single
// Metrics value is shared by all workers.
type Metrics struct {
	DocsAdded     prometheus.Counter
	DocsIndexed   prometheus.Counter
	BulkRequests  *prometheus.CounterVec
	BulkDuration  prometheus.Histogram
	BulkBatchDocs prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		DocsAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trecload_docs_added_total",
			Help: "Documents handed to bulk accumulators.",
		}),
		DocsIndexed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trecload_docs_indexed_total",
			Help: "Documents submitted in successful bulk requests.",
		}),
		BulkRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trecload_bulk_requests_total",
			Help: "Bulk requests by status (ok, error).",
		}, []string{"status"}),
		BulkDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "trecload_bulk_duration_seconds",
			Help:    "Bulk request latency in seconds.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		BulkBatchDocs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "trecload_bulk_batch_docs",
			Help:    "Documents per bulk request.",
			Buckets: []float64{1, 10, 50, 100, 250, 500, 1000, 2500, 5000},
		}),
	}

	if reg != nil {
		reg.MustRegister(m.DocsAdded, m.DocsIndexed, m.BulkRequests, m.BulkDuration, m.BulkBatchDocs)
	}
	return m
}

func (m *Metrics) observe(docs int, took time.Duration, err error) {
	m.BulkDuration.Observe(took.Seconds())
	m.BulkBatchDocs.Observe(float64(docs))
	if err != nil {
		m.BulkRequests.WithLabelValues("error").Inc()
		return
	}
	m.BulkRequests.WithLabelValues("ok").Inc()
	m.DocsIndexed.Add(float64(docs))
}
