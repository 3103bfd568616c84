package metrics

import (
	"carbonpay-backend/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "carbonpay"

// Metrics holds the ledger's Prometheus collectors. A nil *Metrics is valid and
// records nothing, so services and tests can run without a registry.
type Metrics struct {
	operations    *prometheus.CounterVec
	creditsIssued prometheus.Gauge
	creditsOffset prometheus.Gauge
}

// New registers the collectors with registry.
func New(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)
	return &Metrics{
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Total number of ledger operations by outcome",
		}, []string{"operation", "result"}),
		creditsIssued: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "credits_issued",
			Help:      "Total credits issued across all projects",
		}),
		creditsOffset: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "credits_offset",
			Help:      "Total credits retired across all purchases",
		}),
	}
}

// Observe counts one operation. result is "ok", the error code for ledger
// errors, or "error" for anything else.
func (m *Metrics) Observe(operation string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = string(domain.CodeOf(err))
		if result == "" {
			result = "error"
		}
	}
	m.operations.WithLabelValues(operation, result).Inc()
}

// SetLedgerTotals publishes the committed ledger counters.
func (m *Metrics) SetLedgerTotals(issued, offset uint64) {
	if m == nil {
		return
	}
	m.creditsIssued.Set(float64(issued))
	m.creditsOffset.Set(float64(offset))
}
