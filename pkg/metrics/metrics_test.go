package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jernejc/at-fe-sub003/pkg/metrics"
)

func TestMetrics(t *testing.T) {
	t.Parallel()

	m := metrics.NewWithRegistry(prometheus.NewRegistry())

	m.SignIn(metrics.MethodGoogle, metrics.OutcomeSuccess)
	m.SignIn(metrics.MethodGoogle, metrics.OutcomeSuccess)
	m.SignIn(metrics.MethodEmailLink, metrics.OutcomeFailure)
	m.GateDecision("signin")
	m.ClaimsResolved("refreshed")
	m.SessionIssued()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SignIns.WithLabelValues(metrics.MethodGoogle, metrics.OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SignIns.WithLabelValues(metrics.MethodEmailLink, metrics.OutcomeFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GateDecisions.WithLabelValues("signin")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ClaimsRefresh.WithLabelValues("refreshed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsIssued))
}

func TestMetrics_Handler(t *testing.T) {
	t.Parallel()

	m := metrics.New()
	m.GateDecision("allow")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `lookacross_gate_decisions_total{decision="allow"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
