//go:build linux && cgo && nvidia

package nvidia

import (
	"go.uber.org/zap"

	"github.com/fxnlabs/gpu-bridge/internal/proctable"
	"github.com/fxnlabs/gpu-bridge/pkg/gpuapi"
)

// DefaultLibraryPath is the platform-conventional location of the NVML
// shared library.
const DefaultLibraryPath = "/usr/lib64/libnvidia-ml.so"

// sessionActive forbids a second live session per process. The bridge is
// not thread-safe by contract, so a plain flag is enough.
var sessionActive bool

// Bridge is the NVIDIA NVML session: the loaded library, its resolved
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
	return &Bridge{log: log.Named("nvml"), path: libraryPath}
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
	b.log.Info("NVML session open", zap.String("library", b.path))
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
	b.log.Info("NVML session closed")
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

func (b *Bridge) DeviceArchitecture(index uint32) (uint32, error) {
	if b.lib == nil {
		return 0, b.fail("device_architecture", gpuapi.ErrNotOpen)
	}
	dev, err := b.lib.handleByIndex(index)
	if err != nil {
		return 0, b.fail("device_architecture", err)
	}
	arch, err := b.lib.devUint(symDeviceGetArchitecture, dev)
	if err != nil {
		return 0, b.fail("device_architecture", err)
	}
	return arch, nil
}

func (b *Bridge) DeviceMemoryInfo(index uint32) (gpuapi.MemoryInfo, error) {
	if b.lib == nil {
		return gpuapi.MemoryInfo{}, b.fail("device_memory_info", gpuapi.ErrNotOpen)
	}
	dev, err := b.lib.handleByIndex(index)
	if err != nil {
		return gpuapi.MemoryInfo{}, b.fail("device_memory_info", err)
	}
	total, used, free, err := b.lib.memoryInfo(dev)
	if err != nil {
		return gpuapi.MemoryInfo{}, b.fail("device_memory_info", err)
	}
	return gpuapi.MemoryInfo{Total: total, Used: used, Free: free}, nil
}

// DeviceCardInfo copies the static attributes field by field into the
// neutral structure. If any vendor call fails the whole operation fails
// and the output must not be used.
func (b *Bridge) DeviceCardInfo(index uint32) (gpuapi.CardInfo, error) {
	var info gpuapi.CardInfo
	if b.lib == nil {
		return info, b.fail("device_card_info", gpuapi.ErrNotOpen)
	}
	dev, err := b.lib.handleByIndex(index)
	if err != nil {
		return info, b.fail("device_card_info", err)
	}

	busAddr, err := b.lib.pciBusID(dev)
	if err != nil {
		return info, b.fail("device_card_info", err)
	}
	model, err := b.lib.devString(symDeviceGetName, dev, gpuapi.ModelLen)
	if err != nil {
		return info, b.fail("device_card_info", err)
	}
	arch, err := b.lib.devUint(symDeviceGetArchitecture, dev)
	if err != nil {
		return info, b.fail("device_card_info", err)
	}
	driver, err := b.lib.systemDriverVersion()
	if err != nil {
		return info, b.fail("device_card_info", err)
	}
	cuda, err := b.lib.cudaDriverVersion()
	if err != nil {
		return info, b.fail("device_card_info", err)
	}
	uuid, err := b.lib.devString(symDeviceGetUUID, dev, gpuapi.UUIDLen)
	if err != nil {
		return info, b.fail("device_card_info", err)
	}
	total, _, _, err := b.lib.memoryInfo(dev)
	if err != nil {
		return info, b.fail("device_card_info", err)
	}
	limit, err := b.lib.devUint(symDeviceGetPowerLimit, dev)
	if err != nil {
		return info, b.fail("device_card_info", err)
	}
	minLimit, maxLimit, err := b.lib.powerLimitConstraints(dev)
	if err != nil {
		return info, b.fail("device_card_info", err)
	}
	maxCE, err := b.lib.devSelUint(symDeviceGetMaxClockInfo, dev, clockGraphics)
	if err != nil {
		return info, b.fail("device_card_info", err)
	}
	maxMem, err := b.lib.devSelUint(symDeviceGetMaxClockInfo, dev, clockMem)
	if err != nil {
		return info, b.fail("device_card_info", err)
	}

	gpuapi.SetString(info.BusAddr[:], busAddr)
	gpuapi.SetString(info.Model[:], model)
	gpuapi.SetString(info.Architecture[:], archString(arch))
	gpuapi.SetString(info.Driver[:], driver)
	gpuapi.SetString(info.Firmware[:], cudaVersionString(cuda))
	gpuapi.SetString(info.UUID[:], uuid)
	info.TotalMem = total
	info.PowerLimit = limit
	info.MinPowerLimit = minLimit
	info.MaxPowerLimit = maxLimit
	info.MaxCEClock = maxCE
	info.MaxMemClock = maxMem
	return info, nil
}

// DeviceCardState re-queries the vendor library on every call; nothing is
// cached.
func (b *Bridge) DeviceCardState(index uint32) (gpuapi.CardState, error) {
	var state gpuapi.CardState
	if b.lib == nil {
		return state, b.fail("device_card_state", gpuapi.ErrNotOpen)
	}
	dev, err := b.lib.handleByIndex(index)
	if err != nil {
		return state, b.fail("device_card_state", err)
	}

	fan, err := b.lib.devUint(symDeviceGetFanSpeed, dev)
	if err != nil {
		return state, b.fail("device_card_state", err)
	}
	mode, err := b.lib.devUint(symDeviceGetComputeMode, dev)
	if err != nil {
		return state, b.fail("device_card_state", err)
	}
	pstate, err := b.lib.devUint(symDeviceGetPerformanceState, dev)
	if err != nil {
		return state, b.fail("device_card_state", err)
	}
	reserved, used, err := b.lib.memoryInfoV2(dev)
	if err != nil {
		return state, b.fail("device_card_state", err)
	}
	gpuUtil, memUtil, err := b.lib.utilizationRates(dev)
	if err != nil {
		return state, b.fail("device_card_state", err)
	}
	temp, err := b.lib.devSelUint(symDeviceGetTemperature, dev, tempSensorGPU)
	if err != nil {
		return state, b.fail("device_card_state", err)
	}
	power, err := b.lib.devUint(symDeviceGetPowerUsage, dev)
	if err != nil {
		return state, b.fail("device_card_state", err)
	}
	limit, err := b.lib.devUint(symDeviceGetEnforcedLimit, dev)
	if err != nil {
		return state, b.fail("device_card_state", err)
	}
	ceClock, err := b.lib.devSelUint(symDeviceGetClockInfo, dev, clockGraphics)
	if err != nil {
		return state, b.fail("device_card_state", err)
	}
	memClock, err := b.lib.devSelUint(symDeviceGetClockInfo, dev, clockMem)
	if err != nil {
		return state, b.fail("device_card_state", err)
	}

	state.FanSpeed = fan
	gpuapi.SetString(state.ComputeMode[:], computeModeString(mode))
	gpuapi.SetString(state.PerfState[:], perfStateString(pstate))
	state.MemReserved = reserved
	state.MemUsed = used
	state.GpuUtil = float32(gpuUtil)
	state.MemUtil = float32(memUtil)
	state.Temp = temp
	state.Power = power
	state.PowerLimit = limit
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
	dev, err := b.lib.handleByIndex(index)
	if err != nil {
		return 0, b.fail("probe_processes", err)
	}
	running, err := b.lib.runningProcesses(dev)
	if err != nil {
		return 0, b.fail("probe_processes", err)
	}
	samples, err := b.lib.processUtilization(dev)
	if err != nil {
		return 0, b.fail("probe_processes", err)
	}
	b.procs.Replace(mergeProcesses(running, samples))
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
