package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EndpointResponses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "endpoint_responses_total",
		Help: "The total number of endpoint responses",
	}, []string{"endpoint", "status_code"})

	// Bridge call accounting
	BridgeCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_calls_total",
		Help: "Total number of bridge operations by outcome",
	}, []string{"op", "status"})

	BridgeFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_failures_total",
		Help: "Total number of failed bridge operations by failure kind",
	}, []string{"op", "kind"})

	SampleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bridge_sample_duration_ms",
		Help:    "Duration of one full telemetry sampling pass in milliseconds",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1ms to ~4s
	})

	// Per-device telemetry, labelled by device index
	GPUUtilizationPercent = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gpu_utilization_percent",
		Help: "Current GPU utilization percentage (0-100)",
	}, []string{"device"})

	GPUMemoryUtilizationPercent = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gpu_memory_utilization_percent",
		Help: "Current GPU memory bandwidth utilization percentage (0-100)",
	}, []string{"device"})

	GPUMemoryUsedBytes = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gpu_memory_used_bytes",
		Help: "GPU memory currently in use in bytes",
	}, []string{"device"})

	GPUTemperatureCelsius = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gpu_temperature_celsius",
		Help: "Current GPU temperature in degrees Celsius",
	}, []string{"device"})

	GPUPowerMilliwatts = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gpu_power_milliwatts",
		Help: "Current GPU power draw in milliwatts",
	}, []string{"device"})

	GPUFanSpeedPercent = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gpu_fan_speed_percent",
		Help: "Current GPU fan speed percentage (0-100)",
	}, []string{"device"})

	GPUClockMHz = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gpu_clock_mhz",
		Help: "Current GPU clock frequency in MHz by domain",
	}, []string{"device", "domain"})

	GPUProcessCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gpu_process_count",
		Help: "Number of compute processes using the device",
	}, []string{"device"})
)
