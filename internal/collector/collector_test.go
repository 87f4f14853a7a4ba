package collector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/fxnlabs/gpu-bridge/internal/metrics"
	"github.com/fxnlabs/gpu-bridge/pkg/gpuapi"
)

// fakeBridge is a canned-response bridge for collector tests.
type fakeBridge struct {
	count      uint32
	countErr   error
	state      gpuapi.CardState
	stateErr   error
	procs      uint32
	probeErr   error
	freedCalls int
	probeCalls int
}

func (f *fakeBridge) Open() error  { return nil }
func (f *fakeBridge) Close() error { return nil }

func (f *fakeBridge) DeviceCount() (uint32, error) { return f.count, f.countErr }

func (f *fakeBridge) DeviceArchitecture(uint32) (uint32, error) { return 0, nil }

func (f *fakeBridge) DeviceMemoryInfo(uint32) (gpuapi.MemoryInfo, error) {
	return gpuapi.MemoryInfo{}, nil
}

func (f *fakeBridge) DeviceCardInfo(uint32) (gpuapi.CardInfo, error) {
	return gpuapi.CardInfo{}, nil
}

func (f *fakeBridge) DeviceCardState(uint32) (gpuapi.CardState, error) {
	return f.state, f.stateErr
}

func (f *fakeBridge) ProbeProcesses(uint32) (uint32, error) {
	f.probeCalls++
	return f.procs, f.probeErr
}

func (f *fakeBridge) GetProcess(uint32) (gpuapi.GpuProcess, error) {
	return gpuapi.GpuProcess{}, gpuapi.ErrNoProcessTable
}

func (f *fakeBridge) FreeProcesses() { f.freedCalls++ }

var _ gpuapi.Bridge = (*fakeBridge)(nil)

func TestSampleOncePublishesGauges(t *testing.T) {
	bridge := &fakeBridge{count: 1, procs: 3}
	bridge.state.GpuUtil = 73
	bridge.state.MemUsed = 2 << 30
	bridge.state.Temp = 61
	bridge.state.Power = 180000
	bridge.state.CEClock = 1410
	bridge.state.MemClock = 9501

	c := New(bridge, zaptest.NewLogger(t), time.Second)
	c.SampleOnce()

	assert.Equal(t, float64(73), testutil.ToFloat64(metrics.GPUUtilizationPercent.WithLabelValues("0")))
	assert.Equal(t, float64(2<<30), testutil.ToFloat64(metrics.GPUMemoryUsedBytes.WithLabelValues("0")))
	assert.Equal(t, float64(61), testutil.ToFloat64(metrics.GPUTemperatureCelsius.WithLabelValues("0")))
	assert.Equal(t, float64(180000), testutil.ToFloat64(metrics.GPUPowerMilliwatts.WithLabelValues("0")))
	assert.Equal(t, float64(1410), testutil.ToFloat64(metrics.GPUClockMHz.WithLabelValues("0", "graphics")))
	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.GPUProcessCount.WithLabelValues("0")))
	assert.Equal(t, 1, bridge.freedCalls)
}

func TestSampleOnceCountFailureStopsPass(t *testing.T) {
	bridge := &fakeBridge{countErr: errors.New("vendor exploded")}
	c := New(bridge, zaptest.NewLogger(t), time.Second)

	c.SampleOnce()
	assert.Zero(t, bridge.probeCalls)
}

func TestSampleOnceStateFailureStillProbesProcesses(t *testing.T) {
	bridge := &fakeBridge{count: 1, stateErr: errors.New("thermal sensor gone"), procs: 2}
	c := New(bridge, zaptest.NewLogger(t), time.Second)

	c.SampleOnce()
	assert.Equal(t, 1, bridge.probeCalls)
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.GPUProcessCount.WithLabelValues("0")))
}

func TestRunStopsOnContextCancel(t *testing.T) {
	bridge := &fakeBridge{count: 0}
	c := New(bridge, zaptest.NewLogger(t), time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := c.Run(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
