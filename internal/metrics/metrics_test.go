package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()

	m.RecordStoreCall("fetch", nil)
	m.RecordStoreCall("fetch", errors.New("boom"))
	m.RecordStoreCall("fetch", nil)
	m.IncrCacheHit()
	m.IncrCacheMiss()
	m.IncrCacheMiss()
	m.IncrSecretFailure()
	m.RecordPublish(nil)
	m.IncrSuspicious("pattern")
	m.IncrRateLimited("pin")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.storeCalls.WithLabelValues("fetch", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.storeCalls.WithLabelValues("fetch", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.secretFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.syncPublished.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.suspicious.WithLabelValues("pattern")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rateLimited.WithLabelValues("pin")))
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New()
	m.RecordRequest(http.MethodGet, "/api/balances", http.StatusOK, 15*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `moneymanager_http_requests_total{method="GET",route="/api/balances",status="200"} 1`)
	assert.Contains(t, body, "moneymanager_http_request_duration_seconds_bucket")
	assert.Contains(t, body, "go_goroutines")
}

func TestNewIsIndependent(t *testing.T) {
	a, b := New(), New()
	a.IncrSecretFailure()
	assert.Equal(t, 0.0, testutil.ToFloat64(b.secretFailures))
}
