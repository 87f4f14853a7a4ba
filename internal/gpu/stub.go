// Package gpu holds the build-time vendor selection: NewBridge returns
// the NVML adapter, the ROCm SMI adapter, or the stub, depending on the
// nvidia/amd build tags. Setting both tags leaves no factory in the
// build, which is a deliberate compile failure.
package gpu

import (
	"go.uber.org/zap"

	"github.com/fxnlabs/gpu-bridge/pkg/gpuapi"
)

// stubSessionActive mirrors the per-process session guard of the real
// adapters so the stub exercises the same lifecycle rules.
var stubSessionActive bool

// StubBridge is the no-hardware implementation selected when the binary
// is built without a vendor tag. It honors the full session lifecycle but
// reports zero devices, so every per-device operation fails with an
// out-of-range index.
type StubBridge struct {
	log  *zap.Logger
	open bool
}

// NewStubBridge returns a closed stub bridge.
func NewStubBridge(log *zap.Logger) *StubBridge {
	return &StubBridge{log: log.Named("stub")}
}

func (s *StubBridge) Open() error {
	if s.open || stubSessionActive {
		return gpuapi.ErrAlreadyOpen
	}
	s.open = true
	stubSessionActive = true
	s.log.Info("stub session open (built without GPU support)")
	return nil
}

func (s *StubBridge) Close() error {
	if !s.open {
		return gpuapi.ErrNotOpen
	}
	s.open = false
	stubSessionActive = false
	return nil
}

func (s *StubBridge) DeviceCount() (uint32, error) {
	if !s.open {
		return 0, gpuapi.ErrNotOpen
	}
	return 0, nil
}

func (s *StubBridge) DeviceArchitecture(uint32) (uint32, error) {
	if !s.open {
		return 0, gpuapi.ErrNotOpen
	}
	return 0, gpuapi.ErrIndexOutOfRange
}

func (s *StubBridge) DeviceMemoryInfo(uint32) (gpuapi.MemoryInfo, error) {
	if !s.open {
		return gpuapi.MemoryInfo{}, gpuapi.ErrNotOpen
	}
	return gpuapi.MemoryInfo{}, gpuapi.ErrIndexOutOfRange
}

func (s *StubBridge) DeviceCardInfo(uint32) (gpuapi.CardInfo, error) {
	if !s.open {
		return gpuapi.CardInfo{}, gpuapi.ErrNotOpen
	}
	return gpuapi.CardInfo{}, gpuapi.ErrIndexOutOfRange
}

func (s *StubBridge) DeviceCardState(uint32) (gpuapi.CardState, error) {
	if !s.open {
		return gpuapi.CardState{}, gpuapi.ErrNotOpen
	}
	return gpuapi.CardState{}, gpuapi.ErrIndexOutOfRange
}

func (s *StubBridge) ProbeProcesses(uint32) (uint32, error) {
	if !s.open {
		return 0, gpuapi.ErrNotOpen
	}
	return 0, gpuapi.ErrIndexOutOfRange
}

func (s *StubBridge) GetProcess(uint32) (gpuapi.GpuProcess, error) {
	if !s.open {
		return gpuapi.GpuProcess{}, gpuapi.ErrNotOpen
	}
	return gpuapi.GpuProcess{}, gpuapi.ErrNoProcessTable
}

func (s *StubBridge) FreeProcesses() {}

var _ gpuapi.Bridge = (*StubBridge)(nil)
