package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestMetricsMiddleware(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := NewMetrics(mp)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(MetricsMiddleware(metrics))
	r.Get("/v1/buildings/{buildingId}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"b1", "b2"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/buildings/"+id, nil))
		require.Equal(t, http.StatusNotFound, rr.Code)
	}

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.Len(t, rm.ScopeMetrics, 1)
	assert.Equal(t, MeterName, rm.ScopeMetrics[0].Scope.Name)

	var requests *metricdata.Sum[int64]
	for _, m := range rm.ScopeMetrics[0].Metrics {
		if m.Name == "http_requests_total" {
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			requests = &sum
		}
	}
	require.NotNil(t, requests)
	require.Len(t, requests.DataPoints, 1, "both ids share one route pattern")

	dp := requests.DataPoints[0]
	assert.Equal(t, int64(2), dp.Value)
	route, ok := dp.Attributes.Value(attribute.Key("route"))
	require.True(t, ok)
	assert.Equal(t, "/v1/buildings/{buildingId}", route.AsString())
	status, ok := dp.Attributes.Value(attribute.Key("status"))
	require.True(t, ok)
	assert.Equal(t, int64(http.StatusNotFound), status.AsInt64())
}

func TestResponseWriterKeepsFirstStatus(t *testing.T) {
	rr := httptest.NewRecorder()
	ww := &responseWriter{ResponseWriter: rr, statusCode: http.StatusOK}

	ww.WriteHeader(http.StatusTeapot)
	ww.WriteHeader(http.StatusInternalServerError)

	assert.Equal(t, http.StatusTeapot, ww.statusCode)
}
