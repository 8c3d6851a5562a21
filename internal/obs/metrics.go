package obs

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	RecomputeTotal *prometheus.CounterVec // result=success|stale
	ReserveTotal   *prometheus.CounterVec // result=success|conflict|unavailable
	ConfirmTotal   *prometheus.CounterVec // result=success|not_found|unavailable
	ReleaseTotal   *prometheus.CounterVec // reason=expired|cancelled|sweep

	RecomputeLatencyMS prometheus.Histogram

	ReservationsActive prometheus.Gauge
	SnapshotStale      prometheus.Gauge // 1 when serving a stale snapshot
	BroadcastTotal     prometheus.Counter
	IntegrityTotal     prometheus.Counter // invariant violations observed
}

func NewMetrics() *Metrics {
	m := &Metrics{
		RecomputeTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inventory_recompute_total",
				Help: "Total aggregation passes by result",
			},
			[]string{"result"},
		),
		ReserveTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inventory_reserve_total",
				Help: "Total reserve attempts by result",
			},
			[]string{"result"},
		),
		ConfirmTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inventory_confirm_total",
				Help: "Total confirm attempts by result",
			},
			[]string{"result"},
		),
		ReleaseTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "inventory_release_total",
				Help: "Total reservations released by reason",
			},
			[]string{"reason"},
		),
		RecomputeLatencyMS: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "inventory_recompute_latency_ms",
			Help:    "Latency of aggregation passes (ms)",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1ms .. ~2048ms
		}),
		ReservationsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "inventory_reservations_active",
			Help: "Number of active (unexpired, unconfirmed) reservations",
		}),
		SnapshotStale: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "inventory_snapshot_stale",
			Help: "1 when the published snapshot is stale due to store failure",
		}),
		BroadcastTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inventory_broadcast_total",
			Help: "Total snapshot publishes to observers",
		}),
		IntegrityTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inventory_integrity_violations_total",
			Help: "Total closed-form invariant violations observed",
		}),
	}

	prometheus.MustRegister(
		m.RecomputeTotal,
		m.ReserveTotal,
		m.ConfirmTotal,
		m.ReleaseTotal,
		m.RecomputeLatencyMS,
		m.ReservationsActive,
		m.SnapshotStale,
		m.BroadcastTotal,
		m.IntegrityTotal,
	)

	return m
}
