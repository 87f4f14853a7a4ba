//go:build linux && cgo && amd

package amd

import (
	"go.uber.org/zap"

	"github.com/fxnlabs/gpu-bridge/internal/proctable"
	"github.com/fxnlabs/gpu-bridge/pkg/gpuapi"
)

// DefaultLibraryPath is the conventional ROCm install location of the SMI
// shared library.
const DefaultLibraryPath = "/opt/rocm/lib/librocm_smi64.so"

// sessionActive forbids a second live session per process. The bridge is
// not thread-safe by contract, so a plain flag is enough.
var sessionActive bool

// Bridge is the AMD ROCm SMI session: the loaded library, its resolved
// symbol table, and the single-slot process table. Constructed closed;
// Open creates the session, Close destroys it.
type Bridge struct {
	log   *zap.Logger
	path  string
	lib   *lib
	procs proctable.Table
}

// NewBridge returns a closed bridge. An empty libraryPath selects the
// platform default.
func NewBridge(log *zap.Logger, libraryPath string) *Bridge {
	if libraryPath == "" {
		libraryPath = DefaultLibraryPath
	}
	return &Bridge{log: log.Named("rsmi"), path: libraryPath}
}

// fail logs the internal failure kind and passes the error through
// unchanged; the public contract stays a single binary signal.
func (b *Bridge) fail(op string, err error) error {
	b.log.Warn("bridge call failed",
		zap.String("op", op),
		zap.String("kind", string(gpuapi.KindOf(err))),
		zap.Error(err))
	return err
}

func (b *Bridge) Open() error {
	if b.lib != nil || sessionActive {
		return b.fail("open", gpuapi.ErrAlreadyOpen)
	}
	lib, err := loadLibrary(b.path)
	if err != nil {
		return b.fail("open", &gpuapi.SetupError{Err: err})
	}
	if err := lib.init(); err != nil {
		lib.close()
		return b.fail("open", &gpuapi.SetupError{Err: err})
	}
	b.lib = lib
	sessionActive = true
	b.log.Info("ROCm SMI session open", zap.String("library", b.path))
	return nil
}

func (b *Bridge) Close() error {
	if b.lib == nil {
		return b.fail("close", gpuapi.ErrNotOpen)
	}
	err := b.lib.shutdown()
	if closeErr := b.lib.close(); err == nil {
		err = closeErr
	}
	b.lib = nil
	sessionActive = false
	b.procs.Free()
	if err != nil {
		return b.fail("close", err)
	}
	b.log.Info("ROCm SMI session closed")
	return nil
}

func (b *Bridge) DeviceCount() (uint32, error) {
	if b.lib == nil {
		return 0, b.fail("device_count", gpuapi.ErrNotOpen)
	}
	count, err := b.lib.deviceCount()
	if err != nil {
		return 0, b.fail("device_count", err)
	}
	return count, nil
}

// DeviceArchitecture reports the target graphics version as the opaque
// architecture tag. It fits 32 bits for every shipped ASIC.
func (b *Bridge) DeviceArchitecture(index uint32) (uint32, error) {
	if b.lib == nil {
		return 0, b.fail("device_architecture", gpuapi.ErrNotOpen)
	}
	version, err := b.lib.devU64(symTargetGfxVersion, index)
	if err != nil {
		return 0, b.fail("device_architecture", err)
	}
	return uint32(version), nil
}

func (b *Bridge) DeviceMemoryInfo(index uint32) (gpuapi.MemoryInfo, error) {
	if b.lib == nil {
		return gpuapi.MemoryInfo{}, b.fail("device_memory_info", gpuapi.ErrNotOpen)
	}
	total, err := b.lib.memory(symMemoryTotalGet, index)
	if err != nil {
		return gpuapi.MemoryInfo{}, b.fail("device_memory_info", err)
	}
	used, err := b.lib.memory(symMemoryUsageGet, index)
	if err != nil {
		return gpuapi.MemoryInfo{}, b.fail("device_memory_info", err)
	}
	return gpuapi.MemoryInfo{Total: total, Used: used, Free: total - used}, nil
}

// DeviceCardInfo copies the static attributes field by field into the
// neutral structure. If any vendor call fails the whole operation fails
// and the output must not be used.
func (b *Bridge) DeviceCardInfo(index uint32) (gpuapi.CardInfo, error) {
	var info gpuapi.CardInfo
	if b.lib == nil {
		return info, b.fail("device_card_info", gpuapi.ErrNotOpen)
	}

	bdf, err := b.lib.devU64(symPciIDGet, index)
	if err != nil {
		return info, b.fail("device_card_info", err)
	}
	model, err := b.lib.name(index)
	if err != nil {
		return info, b.fail("device_card_info", err)
	}
	gfx, err := b.lib.devU64(symTargetGfxVersion, index)
	if err != nil {
		return info, b.fail("device_card_info", err)
	}
	driver, err := b.lib.driverVersion()
	if err != nil {
		return info, b.fail("device_card_info", err)
	}
	vbios, err := b.lib.vbiosVersion(index)
	if err != nil {
		return info, b.fail("device_card_info", err)
	}
	uid, err := b.lib.devU64(symUniqueIDGet, index)
	if err != nil {
		return info, b.fail("device_card_info", err)
	}
	total, err := b.lib.memory(symMemoryTotalGet, index)
	if err != nil {
		return info, b.fail("device_card_info", err)
	}
	limit, err := b.lib.powerMicrowatts(symPowerCapGet, index)
	if err != nil {
		return info, b.fail("device_card_info", err)
	}
	minCap, maxCap, err := b.lib.powerCapRange(index)
	if err != nil {
		return info, b.fail("device_card_info", err)
	}
	_, maxCE, err := b.lib.clockMHz(index, clkTypeSys)
	if err != nil {
		return info, b.fail("device_card_info", err)
	}
	_, maxMem, err := b.lib.clockMHz(index, clkTypeMem)
	if err != nil {
		return info, b.fail("device_card_info", err)
	}

	gpuapi.SetString(info.BusAddr[:], pciBusString(bdf))
	gpuapi.SetString(info.Model[:], model)
	gpuapi.SetString(info.Architecture[:], gfxArchString(gfx))
	gpuapi.SetString(info.Driver[:], driver)
	gpuapi.SetString(info.Firmware[:], vbios)
	gpuapi.SetString(info.UUID[:], uniqueIDString(uid))
	info.TotalMem = total
	info.PowerLimit = microwattsToMilliwatts(limit)
	info.MinPowerLimit = microwattsToMilliwatts(minCap)
	info.MaxPowerLimit = microwattsToMilliwatts(maxCap)
	info.MaxCEClock = maxCE
	info.MaxMemClock = maxMem
	return info, nil
}

// DeviceCardState re-queries the vendor library on every call; nothing is
// cached. ROCm SMI has no compute-mode or reserved-memory counters, so
// those fields stay zeroed.
func (b *Bridge) DeviceCardState(index uint32) (gpuapi.CardState, error) {
	var state gpuapi.CardState
	if b.lib == nil {
		return state, b.fail("device_card_state", gpuapi.ErrNotOpen)
	}

	fan, err := b.lib.fanPercent(index)
	if err != nil {
		return state, b.fail("device_card_state", err)
	}
	level, err := b.lib.perfLevel(index)
	if err != nil {
		return state, b.fail("device_card_state", err)
	}
	used, err := b.lib.memory(symMemoryUsageGet, index)
	if err != nil {
		return state, b.fail("device_card_state", err)
	}
	busy, err := b.lib.devU32(symBusyPercentGet, index)
	if err != nil {
		return state, b.fail("device_card_state", err)
	}
	memBusy, err := b.lib.devU32(symMemBusyPercentGet, index)
	if err != nil {
		return state, b.fail("device_card_state", err)
	}
	temp, err := b.lib.temperature(index)
	if err != nil {
		return state, b.fail("device_card_state", err)
	}
	power, err := b.lib.powerMicrowatts(symPowerAveGet, index)
	if err != nil {
		return state, b.fail("device_card_state", err)
	}
	limit, err := b.lib.powerMicrowatts(symPowerCapGet, index)
	if err != nil {
		return state, b.fail("device_card_state", err)
	}
	ceClock, _, err := b.lib.clockMHz(index, clkTypeSys)
	if err != nil {
		return state, b.fail("device_card_state", err)
	}
	memClock, _, err := b.lib.clockMHz(index, clkTypeMem)
	if err != nil {
		return state, b.fail("device_card_state", err)
	}

	state.FanSpeed = fan
	gpuapi.SetString(state.PerfState[:], perfLevelString(level))
	state.MemUsed = used
	state.GpuUtil = float32(busy)
	state.MemUtil = float32(memBusy)
	state.Temp = temp
	state.Power = microwattsToMilliwatts(power)
	state.PowerLimit = microwattsToMilliwatts(limit)
	state.CEClock = ceClock
	state.MemClock = memClock
	return state, nil
}

// ProbeProcesses atomically replaces the session's process table with a
// fresh snapshot for the device. A device with no processes yields a valid
// empty table and count 0.
func (b *Bridge) ProbeProcesses(index uint32) (uint32, error) {
	if b.lib == nil {
		return 0, b.fail("probe_processes", gpuapi.ErrNotOpen)
	}
	busy, err := b.lib.devU32(symBusyPercentGet, index)
	if err != nil {
		return 0, b.fail("probe_processes", err)
	}
	total, err := b.lib.memory(symMemoryTotalGet, index)
	if err != nil {
		return 0, b.fail("probe_processes", err)
	}
	procs, err := b.lib.computeProcesses()
	if err != nil {
		return 0, b.fail("probe_processes", err)
	}
	b.procs.Replace(processRows(index, busy, total, procs))
	return b.procs.Count(), nil
}

func (b *Bridge) GetProcess(row uint32) (gpuapi.GpuProcess, error) {
	if b.lib == nil {
		return gpuapi.GpuProcess{}, b.fail("get_process", gpuapi.ErrNotOpen)
	}
	proc, err := b.procs.Get(row)
	if err != nil {
		return gpuapi.GpuProcess{}, b.fail("get_process", err)
	}
	return proc, nil
}

func (b *Bridge) FreeProcesses() {
	b.procs.Free()
}

var _ gpuapi.Bridge = (*Bridge)(nil)
