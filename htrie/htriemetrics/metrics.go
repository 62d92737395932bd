// Package htriemetrics provides optional Prometheus instrumentation for an
// htrie.Store. Collectors are registered only when a caller opts in, never
// unconditionally at package init, so embedding a Store costs nothing
// unless the host process wants the series.
package htriemetrics

import "github.com/prometheus/client_golang/prometheus"

// Registerer is the subset of prometheus.Registerer a Store needs; callers
// typically pass a prometheus.Registry or prometheus.DefaultRegisterer.
type Registerer = prometheus.Registerer

// Metrics bundles the counters/gauges one Store instance reports. All
// vectors are labeled by store_id so multiple coexisting Stores don't
// collide on the same series.
type Metrics struct {
	Inserted      prometheus.Counter
	Bursts        *prometheus.CounterVec // by outcome: ok, retry, degenerate, exhausted
	Removed       prometheus.Counter
	Reclaimed     prometheus.Counter
	ReclaimErrors prometheus.Counter
	CASRetries    prometheus.Counter
	RollbackBytes prometheus.Counter
	Generation    prometheus.Gauge
}

// New builds and registers a Metrics bundle for storeID against reg. reg
// may be a fresh prometheus.NewRegistry() in tests to avoid colliding with
// process-global state.
func New(reg Registerer, storeID string) *Metrics {
	labels := prometheus.Labels{"store_id": storeID}

	m := &Metrics{
		Inserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "htrie",
			Name:        "records_inserted_total",
			Help:        "Records successfully inserted.",
			ConstLabels: labels,
		}),
		Bursts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "htrie",
			Name:        "bursts_total",
			Help:        "Bucket bursts by outcome.",
			ConstLabels: labels,
		}, []string{"outcome"}),
		Removed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "htrie",
			Name:        "keys_removed_total",
			Help:        "Distinct keys removed (each may delete a whole collision chain).",
			ConstLabels: labels,
		}),
		Reclaimed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "htrie",
			Name:        "payloads_reclaimed_total",
			Help:        "Data chunks/fixed records freed after epoch quiescence.",
			ConstLabels: labels,
		}),
		ReclaimErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "htrie",
			Name:        "reclaim_errors_total",
			Help:        "Reclamation attempts that failed to free a payload.",
			ConstLabels: labels,
		}),
		CASRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "htrie",
			Name:        "cas_retries_total",
			Help:        "Lost CAS races on index slots or collision bitmaps.",
			ConstLabels: labels,
		}),
		RollbackBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "htrie",
			Name:        "rollback_accounted_bytes_total",
			Help:        "Bytes charged back on payload rollback (overhead plus a full bucket per rollback).",
			ConstLabels: labels,
		}),
		Generation: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "htrie",
			Name:        "generation",
			Help:        "Current global epoch/generation counter.",
			ConstLabels: labels,
		}),
	}

	if reg != nil {
		reg.MustRegister(m.Inserted, m.Bursts, m.Removed, m.Reclaimed, m.ReclaimErrors, m.CASRetries, m.RollbackBytes, m.Generation)
	}
	return m
}
