// Package metrics defines the Prometheus collectors exported by a node.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the node's collectors.
type Metrics struct {
	Resolutions       *prometheus.CounterVec
	ResolvedFragments prometheus.Histogram
	ReplicaReadErrors prometheus.Counter
	CorruptRows       prometheus.Counter
	WriteBacks        *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ecstore",
			Name:      "resolutions_total",
			Help:      "Resolution passes by outcome",
		}, []string{"outcome"}),

		ResolvedFragments: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ecstore",
			Name:      "resolution_fragments",
			Help:      "Number of fragment slots examined per resolution pass",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 64, 128},
		}),

		ReplicaReadErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ecstore",
			Name:      "replica_read_errors_total",
			Help:      "Replica reads that failed or timed out",
		}),

		CorruptRows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ecstore",
			Name:      "corrupt_rows_total",
			Help:      "Replica rows dropped because their columns could not be parsed",
		}),

		WriteBacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ecstore",
			Name:      "writebacks_total",
			Help:      "Write-back rounds by result",
		}, []string{"result"}),
	}

	if reg != nil {
		reg.MustRegister(m.Resolutions, m.ResolvedFragments, m.ReplicaReadErrors, m.CorruptRows, m.WriteBacks)
	}
	return m
}
