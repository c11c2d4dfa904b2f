package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

const namespace = "cotizador"

// SettlementMetrics records sale settlement outcomes.
type SettlementMetrics struct {
	duration  *prometheus.HistogramVec
	settled   prometheus.Counter
	rejected  *prometheus.CounterVec
	totalPaid prometheus.Counter
}

// NewSettlementMetrics registers the settlement metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewSettlementMetrics(reg prometheus.Registerer) *SettlementMetrics {
	if reg == nil {
		return &SettlementMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "settlement_duration_seconds",
		Help:      "Duration of sale settlements in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"outcome"})
	settled := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sales_settled_total",
		Help:      "Sales committed.",
	})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sales_rejected_total",
		Help:      "Settlements rejected, by error code.",
	}, []string{"reason"})
	totalPaid := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sales_paid_amount_total",
		Help:      "Sum of total_paid across settled sales.",
	})
	reg.MustRegister(duration, settled, rejected, totalPaid)
	return &SettlementMetrics{
		duration:  duration,
		settled:   settled,
		rejected:  rejected,
		totalPaid: totalPaid,
	}
}

// ObserveSettled records a committed sale.
func (m *SettlementMetrics) ObserveSettled(total decimal.Decimal, took time.Duration) {
	if m == nil || m.settled == nil {
		return
	}
	m.settled.Inc()
	m.totalPaid.Add(total.InexactFloat64())
	m.duration.WithLabelValues("settled").Observe(took.Seconds())
}

// ObserveRejected records a settlement that rolled back.
func (m *SettlementMetrics) ObserveRejected(reason string, took time.Duration) {
	if m == nil || m.rejected == nil {
		return
	}
	m.rejected.WithLabelValues(normalizeLabel(reason)).Inc()
	m.duration.WithLabelValues("rejected").Observe(took.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
