package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the loan ledger.
type Metrics struct {
	// --- Lifecycle operations ---
	LifecycleApplied  *prometheus.CounterVec
	LifecycleRejected *prometheus.CounterVec
	LifecycleDuration *prometheus.HistogramVec
	CoreJournals      *prometheus.CounterVec
	CoreSequence      prometheus.Gauge
	OpenPositions     prometheus.Gauge

	// --- Liquidation ---
	LiquidationsTotal    prometheus.Counter
	LiquidationLtvBps    prometheus.Histogram

	// --- Oracle & FX ---
	OraclePriceUpdates prometheus.Counter
	FxRateAgeSeconds   prometheus.Gauge

	// --- Channel & Backpressure ---
	ChannelSize         *prometheus.GaugeVec
	ChannelCapacity     *prometheus.GaugeVec
	ChannelUtilization  *prometheus.GaugeVec
	PublishDrops        prometheus.Counter
	PersistBackpressure prometheus.Counter

	// --- Persistence ---
	PersistEventsWritten   prometheus.Counter
	PersistJournalsWritten prometheus.Counter
	PersistBatchSize       prometheus.Histogram
	PersistBatchDur        prometheus.Histogram
	PersistErrors          *prometheus.CounterVec
	PersistRetry           prometheus.Counter
	PersistLastSequence    prometheus.Gauge

	// --- Query API ---
	QueryRequests *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
	QueryErrors   *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	latencyBuckets := []float64{
		0.000001, 0.000005, 0.00001, 0.000025, 0.00005,
		0.0001, 0.00025, 0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	return &Metrics{
		LifecycleApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "loan_lifecycle_applied_total",
			Help: "Lifecycle operations successfully applied",
		}, []string{"operation"}),

		LifecycleRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "loan_lifecycle_rejected_total",
			Help: "Lifecycle operations rejected (state, auth, validation)",
		}, []string{"operation", "reason"}),

		LifecycleDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "loan_lifecycle_duration_seconds",
			Help:    "Time to apply a single lifecycle operation",
			Buckets: latencyBuckets,
		}, []string{"operation"}),

		CoreJournals: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "loan_core_journals_generated_total",
			Help: "Custody journal entries generated",
		}, []string{"journal_type"}),

		CoreSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "loan_core_sequence",
			Help: "Current global event sequence number",
		}),

		OpenPositions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "loan_open_positions",
			Help: "Non-terminal positions",
		}),

		LiquidationsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "loan_liquidations_total",
			Help: "Positions liquidated",
		}),

		LiquidationLtvBps: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "loan_liquidation_ltv_bps",
			Help:    "LTV at liquidation time, basis points",
			Buckets: []float64{8000, 8500, 9000, 9500, 10000, 11000, 12500, 15000, 20000},
		}),

		OraclePriceUpdates: promauto.NewCounter(prometheus.CounterOpts{
			Name: "loan_oracle_price_updates_total",
			Help: "Price quotes accepted from the oracle feed",
		}),

		FxRateAgeSeconds: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "loan_fx_rate_age_seconds",
			Help: "Age of the manual USD/IDR rate",
		}),

		ChannelSize: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "loan_channel_size",
			Help: "Current items in channel",
		}, []string{"name"}),

		ChannelCapacity: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "loan_channel_capacity",
			Help: "Channel capacity (constant)",
		}, []string{"name"}),

		ChannelUtilization: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "loan_channel_utilization",
			Help: "Channel size / capacity (0.0-1.0)",
		}, []string{"name"}),

		PublishDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "loan_publish_drops_total",
			Help: "Events dropped due to full publish channel",
		}),

		PersistBackpressure: promauto.NewCounter(prometheus.CounterOpts{
			Name: "loan_persist_backpressure_total",
			Help: "Times the controller blocked on the persist channel",
		}),

		PersistEventsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "loan_persist_events_written_total",
			Help: "Events written to Postgres",
		}),

		PersistJournalsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "loan_persist_journals_written_total",
			Help: "Journal entries written to Postgres",
		}),

		PersistBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "loan_persist_batch_size",
			Help:    "Events per batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),

		PersistBatchDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "loan_persist_batch_duration_seconds",
			Help:    "Postgres batch write duration",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		PersistErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "loan_persist_errors_total",
			Help: "Persistence errors",
		}, []string{"error_type"}),

		PersistRetry: promauto.NewCounter(prometheus.CounterOpts{
			Name: "loan_persist_retry_total",
			Help: "Persistence retries",
		}),

		PersistLastSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "loan_persist_last_sequence",
			Help: "Last persisted sequence",
		}),

		QueryRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "loan_query_requests_total",
			Help: "Query requests",
		}, []string{"endpoint", "status"}),

		QueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "loan_query_duration_seconds",
			Help:    "Query latency",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"endpoint"}),

		QueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "loan_query_errors_total",
			Help: "Query errors",
		}, []string{"endpoint", "code"}),
	}
}

// SetChannelMetrics updates channel utilization metrics.
func (m *Metrics) SetChannelMetrics(name string, size, capacity int) {
	m.ChannelSize.WithLabelValues(name).Set(float64(size))
	m.ChannelCapacity.WithLabelValues(name).Set(float64(capacity))
	if capacity > 0 {
		m.ChannelUtilization.WithLabelValues(name).Set(float64(size) / float64(capacity))
	}
}
