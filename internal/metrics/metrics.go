// Package metrics exposes Prometheus instruments for the storage layer.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Storage implements the storage layer's metrics hook with Prometheus
// histograms and counters.
type Storage struct {
	readLatency   prometheus.Histogram
	readBytes     prometheus.Counter
	commitLatency prometheus.Histogram
	commitBytes   prometheus.Counter
}

// NewStorage registers storage instruments on the given registerer. A nil
// registerer uses the default one.
func NewStorage(reg prometheus.Registerer) *Storage {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Storage{
		readLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "logvault",
			Subsystem: "storage",
			Name:      "read_latency_seconds",
			Help:      "Latency of point reads against the key-value store.",
			Buckets:   prometheus.ExponentialBuckets(50e-6, 2, 14),
		}),
		readBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "logvault",
			Subsystem: "storage",
			Name:      "read_bytes_total",
			Help:      "Total bytes returned by point reads.",
		}),
		commitLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "logvault",
			Subsystem: "storage",
			Name:      "commit_latency_seconds",
			Help:      "Latency of batch commits against the key-value store.",
			Buckets:   prometheus.ExponentialBuckets(100e-6, 2, 14),
		}),
		commitBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "logvault",
			Subsystem: "storage",
			Name:      "commit_bytes_total",
			Help:      "Total bytes written by batch commits.",
		}),
	}
}

func (s *Storage) ObserveRead(elapsed time.Duration, bytes int) {
	s.readLatency.Observe(elapsed.Seconds())
	s.readBytes.Add(float64(bytes))
}

func (s *Storage) ObserveCommit(elapsed time.Duration, bytes int) {
	s.commitLatency.Observe(elapsed.Seconds())
	s.commitBytes.Add(float64(bytes))
}
