package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorders(t *testing.T) {
	before := testutil.ToFloat64(reconcileOutcomesTotal.WithLabelValues("committed"))
	RecordOutcome("committed")
	assert.Equal(t, before+1, testutil.ToFloat64(reconcileOutcomesTotal.WithLabelValues("committed")))

	before = testutil.ToFloat64(orderCommitsTotal.WithLabelValues("failed"))
	RecordCommit(false)
	assert.Equal(t, before+1, testutil.ToFloat64(orderCommitsTotal.WithLabelValues("failed")))

	before = testutil.ToFloat64(paymentAttemptsResolvedTotal.WithLabelValues("UNPAID"))
	RecordAttemptResolved("UNPAID")
	assert.Equal(t, before+1, testutil.ToFloat64(paymentAttemptsResolvedTotal.WithLabelValues("UNPAID")))

	RecordStatusQuery("paid", 30*time.Millisecond)
	assert.Equal(t, 1, testutil.CollectAndCount(statusQueryDuration, "checkout_gateway_status_query_duration_seconds"))
}

func TestMiddlewareUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	r.GET("/api/orders/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/api/orders/:id", "200"))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/orders/123", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/orders/456", nil))

	assert.Equal(t, before+2, testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/api/orders/:id", "200")))
}
