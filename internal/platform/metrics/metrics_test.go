package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_CountsByRouteTemplate(t *testing.T) {
	e := echo.New()
	e.Use(Middleware())
	e.GET("/wards/:id", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/wards/:id", "200"))
	for _, id := range []string{"a", "b", "c"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/wards/"+id, nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodGet, "/wards/:id", "200"))
	assert.Equal(t, 3.0, after-before)
}

func TestMiddleware_RecordsHTTPErrorStatus(t *testing.T) {
	e := echo.New()
	e.Use(Middleware())
	e.POST("/wards/allocate", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusConflict, "ward full")
	})

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodPost, "/wards/allocate", "409"))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/wards/allocate", nil))
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodPost, "/wards/allocate", "409"))
	assert.Equal(t, 1.0, after-before)
}

func TestBusinessCounters(t *testing.T) {
	before := testutil.ToFloat64(wardAllocations.WithLabelValues("allocated"))
	RecordWardAllocation("allocated")
	assert.Equal(t, 1.0, testutil.ToFloat64(wardAllocations.WithLabelValues("allocated"))-before)

	RecordTransferSuggestions(4)
	assert.Equal(t, 4.0, testutil.ToFloat64(transferSuggestions))

	before = testutil.ToFloat64(prescriptionWarnings.WithLabelValues("interaction", "severe"))
	RecordPrescriptionWarning("interaction", "severe")
	assert.Equal(t, 1.0, testutil.ToFloat64(prescriptionWarnings.WithLabelValues("interaction", "severe"))-before)
}

func TestHandler_ExposesCollectors(t *testing.T) {
	RecordVitalAlert("heartRate")
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "medilink_vital_alerts_total"))
}
