package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerCollectors(t *testing.T) {
	m := New()

	m.Purchase(true, 3, 30)
	m.Purchase(false, 0, 0)
	m.Draw(true, 100)
	m.Draw(false, 0)
	m.Draw(false, 0)
	m.Balances(900, 30)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.purchases.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.purchases.WithLabelValues("rejected")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.tickets))
	assert.Equal(t, 30.0, testutil.ToFloat64(m.revenue))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.draws.WithLabelValues("no_win")))
	assert.Equal(t, 100.0, testutil.ToFloat64(m.payouts))
	assert.Equal(t, 900.0, testutil.ToFloat64(m.tokenFloat))
	assert.Equal(t, 30.0, testutil.ToFloat64(m.revenueGauge))
}

func TestReconcileCollectors(t *testing.T) {
	m := New()
	m.Reconcile(-5, nil)
	m.Reconcile(99, errors.New("token down"))

	assert.Equal(t, -5.0, testutil.ToFloat64(m.floatDrift))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reconciles.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reconciles.WithLabelValues("error")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Purchase(true, 1, 1)
	m.Draw(true, 1)
	m.Balances(1, 1)
	m.Reconcile(0, nil)
}

func TestInstrumentHandler_UsesRoutePattern(t *testing.T) {
	m := New()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/prizes/{index}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.Handle("GET /metrics", m.Handler())
	h := m.InstrumentHandler(mux)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/prizes/7", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("GET", "/api/prizes/{index}", "404")))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "draw_ledger_http_requests_total"))
}
