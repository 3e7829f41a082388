package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.PartitionLoaded(120 * time.Millisecond)
	m.PartitionLoaded(80 * time.Millisecond)
	m.PartitionFailed("decode")
	m.LoadFinished(42, time.Second)
	m.RequestServed("/api/seasons", http.StatusOK, 5*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.partitionsLoaded))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.partitionFailures.WithLabelValues("decode")))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.tableRows))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("/api/seasons", "200")))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.PartitionFailed("fetch")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `safra_partition_failures_total{stage="fetch"} 1`)
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.PartitionLoaded(time.Second)
		m.PartitionFailed("fetch")
		m.LoadFinished(1, time.Second)
		m.RequestServed("/", 200, time.Second)
	})
	assert.Nil(t, m.Registry())
}
