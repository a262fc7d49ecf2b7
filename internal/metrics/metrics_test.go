package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveRequest(t *testing.T) {
	m := New()

	m.ObserveRequest("/items/", http.StatusOK, 20*time.Millisecond)
	m.ObserveRequest("/items/", http.StatusOK, 30*time.Millisecond)
	m.ObserveRequest("/items/", http.StatusNotFound, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Requests.WithLabelValues("/items/", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Requests.WithLabelValues("/items/", "404")))
}

func TestPipelineCounters(t *testing.T) {
	m := New()

	m.CheckoutResult("committed")
	m.CheckoutResult("empty_cart")
	m.PaymentResult("completed")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Checkouts.WithLabelValues("committed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Payments.WithLabelValues("completed")))
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New()
	m.CheckoutResult("committed")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `electronics_store_checkouts_total{result="committed"} 1`)
}
