// Package collector periodically samples an open bridge session and
// publishes the readings as Prometheus gauges.
package collector

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/fxnlabs/gpu-bridge/internal/metrics"
	"github.com/fxnlabs/gpu-bridge/pkg/gpuapi"
)

// Collector drives the sampling loop. The bridge must already be open;
// the collector never opens or closes the session.
type Collector struct {
	bridge   gpuapi.Bridge
	log      *zap.Logger
	interval time.Duration
}

func New(bridge gpuapi.Bridge, log *zap.Logger, interval time.Duration) *Collector {
	return &Collector{
		bridge:   bridge,
		log:      log.Named("collector"),
		interval: interval,
	}
}

// Run samples immediately, then on every tick until the context is
// cancelled. Per-device failures are logged and skipped; the loop keeps
// going.
func (c *Collector) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.SampleOnce()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.SampleOnce()
		}
	}
}

// SampleOnce walks every device and publishes its current state.
func (c *Collector) SampleOnce() {
	start := time.Now()
	defer func() {
		metrics.SampleDuration.Observe(float64(time.Since(start).Milliseconds()))
	}()

	count, err := c.bridge.DeviceCount()
	metrics.RecordCall("device_count", err, string(gpuapi.KindOf(err)))
	if err != nil {
		c.log.Warn("device count failed", zap.Error(err))
		return
	}

	for i := uint32(0); i < count; i++ {
		c.sampleDevice(i)
	}
}

func (c *Collector) sampleDevice(index uint32) {
	device := strconv.FormatUint(uint64(index), 10)

	state, err := c.bridge.DeviceCardState(index)
	metrics.RecordCall("device_card_state", err, string(gpuapi.KindOf(err)))
	if err != nil {
		c.log.Warn("card state failed", zap.Uint32("device", index), zap.Error(err))
	} else {
		metrics.GPUUtilizationPercent.WithLabelValues(device).Set(float64(state.GpuUtil))
		metrics.GPUMemoryUtilizationPercent.WithLabelValues(device).Set(float64(state.MemUtil))
		metrics.GPUMemoryUsedBytes.WithLabelValues(device).Set(float64(state.MemUsed))
		metrics.GPUTemperatureCelsius.WithLabelValues(device).Set(float64(state.Temp))
		metrics.GPUPowerMilliwatts.WithLabelValues(device).Set(float64(state.Power))
		metrics.GPUFanSpeedPercent.WithLabelValues(device).Set(float64(state.FanSpeed))
		metrics.GPUClockMHz.WithLabelValues(device, "graphics").Set(float64(state.CEClock))
		metrics.GPUClockMHz.WithLabelValues(device, "memory").Set(float64(state.MemClock))
	}

	procs, err := c.bridge.ProbeProcesses(index)
	metrics.RecordCall("probe_processes", err, string(gpuapi.KindOf(err)))
	if err != nil {
		c.log.Warn("process probe failed", zap.Uint32("device", index), zap.Error(err))
		return
	}
	metrics.GPUProcessCount.WithLabelValues(device).Set(float64(procs))
	c.bridge.FreeProcesses()
}
