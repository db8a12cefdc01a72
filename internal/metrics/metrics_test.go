package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorderExposesCollectors(t *testing.T) {
	rec := NewRecorder(prometheus.NewRegistry())

	rec.CreditsIssued.Inc()
	rec.CacheFailures.WithLabelValues("delete").Inc()
	rec.AuditorPoolSize.Set(4)

	assert.Equal(t, 1.0, testutil.ToFloat64(rec.CreditsIssued))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.CacheFailures.WithLabelValues("delete")))
	assert.Equal(t, 4.0, testutil.ToFloat64(rec.AuditorPoolSize))

	w := httptest.NewRecorder()
	rec.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "marketplace_auditor_pool_size 4")
}

func TestRecordersDoNotCollide(t *testing.T) {
	assert.NotPanics(t, func() {
		NewNopRecorder()
		NewNopRecorder()
	})
}
