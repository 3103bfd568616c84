package metrics

import (
	"errors"
	"testing"

	"carbonpay-backend/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserve_LabelsByCode(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Observe("purchase", nil)
	m.Observe("purchase", domain.ErrInsufficientTokens)
	m.Observe("purchase", errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("purchase", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("purchase", "InsufficientTokens")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("purchase", "error")))
}

func TestSetLedgerTotals(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.SetLedgerTotals(1000, 200)
	assert.Equal(t, 1000.0, testutil.ToFloat64(m.creditsIssued))
	assert.Equal(t, 200.0, testutil.ToFloat64(m.creditsOffset))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Observe("purchase", nil)
		m.SetLedgerTotals(1, 1)
	})
}
