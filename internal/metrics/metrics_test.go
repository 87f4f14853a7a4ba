package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBridgeCallMetrics(t *testing.T) {
	t.Run("RecordCall success", func(t *testing.T) {
		before := testutil.ToFloat64(BridgeCalls.WithLabelValues("device_count", "ok"))
		RecordCall("device_count", nil, "")
		after := testutil.ToFloat64(BridgeCalls.WithLabelValues("device_count", "ok"))
		assert.Equal(t, before+1, after)
	})

	t.Run("RecordCall failure counts the kind", func(t *testing.T) {
		beforeCalls := testutil.ToFloat64(BridgeCalls.WithLabelValues("open", "error"))
		beforeFailures := testutil.ToFloat64(BridgeFailures.WithLabelValues("open", "setup"))

		RecordCall("open", errors.New("dlopen failed"), "setup")

		assert.Equal(t, beforeCalls+1, testutil.ToFloat64(BridgeCalls.WithLabelValues("open", "error")))
		assert.Equal(t, beforeFailures+1, testutil.ToFloat64(BridgeFailures.WithLabelValues("open", "setup")))
	})
}

func TestDeviceGauges(t *testing.T) {
	t.Run("GPUUtilizationPercent", func(t *testing.T) {
		GPUUtilizationPercent.WithLabelValues("0").Set(85.5)
		assert.Equal(t, 85.5, testutil.ToFloat64(GPUUtilizationPercent.WithLabelValues("0")))
	})

	t.Run("GPUMemoryUsedBytes", func(t *testing.T) {
		GPUMemoryUsedBytes.WithLabelValues("1").Set(1073741824)
		assert.Equal(t, float64(1073741824), testutil.ToFloat64(GPUMemoryUsedBytes.WithLabelValues("1")))
	})

	t.Run("GPUClockMHz per domain", func(t *testing.T) {
		GPUClockMHz.WithLabelValues("0", "graphics").Set(1410)
		GPUClockMHz.WithLabelValues("0", "memory").Set(9501)
		assert.Equal(t, float64(1410), testutil.ToFloat64(GPUClockMHz.WithLabelValues("0", "graphics")))
		assert.Equal(t, float64(9501), testutil.ToFloat64(GPUClockMHz.WithLabelValues("0", "memory")))
	})
}

func TestMiddlewareRecordsStatus(t *testing.T) {
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}), "/metrics")

	before := testutil.ToFloat64(EndpointResponses.WithLabelValues("/metrics", "418"))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(EndpointResponses.WithLabelValues("/metrics", "418")))
}

func TestMetricsRegistration(t *testing.T) {
	metrics := []prometheus.Collector{
		EndpointResponses,
		BridgeCalls,
		BridgeFailures,
		SampleDuration,
		GPUUtilizationPercent,
		GPUMemoryUtilizationPercent,
		GPUMemoryUsedBytes,
		GPUTemperatureCelsius,
		GPUPowerMilliwatts,
		GPUFanSpeedPercent,
		GPUClockMHz,
		GPUProcessCount,
	}

	for _, metric := range metrics {
		assert.NotPanics(t, func() {
			_ = prometheus.Register(metric)
			prometheus.Unregister(metric)
		})
	}
}
