package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/soonrec/identity/internal/auth/metrics"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	c.RecordOperation("sign_in", "ok", 10*time.Millisecond)
	c.RecordOperation("sign_in", "invalid_credentials", 5*time.Millisecond)
	c.RecordOperation("sign_in", "ok", time.Millisecond)
	c.RecordActivityLogFailure("SIGN_IN")
	c.RecordProviderCall("exchange_secret", "ok")
	c.RecordSessionsPurged(3)

	// two sign_in outcome series plus one activity failure series
	n, err := testutil.GatherAndCount(reg, "identity_auth_operations_total", "identity_activity_log_failures_total")
	require.NoError(t, err)
	require.Equal(t, 3, n)

	n, err = testutil.GatherAndCount(reg, "identity_auth_operation_duration_seconds")
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestCollectorValues(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	c.RecordActivityLogFailure("SIGN_UP")
	c.RecordActivityLogFailure("SIGN_UP")
	c.RecordSessionsPurged(4)
	c.RecordSessionsPurged(1)

	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP identity_activity_log_failures_total Activity log writes that failed and were dropped.
# TYPE identity_activity_log_failures_total counter
identity_activity_log_failures_total{action="SIGN_UP"} 2
# HELP identity_sessions_purged_total Expired sessions removed by housekeeping.
# TYPE identity_sessions_purged_total counter
identity_sessions_purged_total 5
`), "identity_activity_log_failures_total", "identity_sessions_purged_total"))
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)
	c.RecordProviderCall("get_user", "unavailable")

	rec := httptest.NewRecorder()
	metrics.Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `identity_provider_calls_total{call="get_user",outcome="unavailable"} 1`)
}
