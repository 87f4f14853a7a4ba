//go:build linux && cgo && nvidia

package nvidia

/*
#cgo LDFLAGS: -ldl

#include <stdint.h>
#include <stddef.h>

typedef void *nvmlDevice_t;
typedef int nvmlReturn_t;

typedef struct {
	unsigned long long total;
	unsigned long long free;
	unsigned long long used;
} xnvmlMemory_t;

typedef struct {
	unsigned int version;
	unsigned long long total;
	unsigned long long reserved;
	unsigned long long free;
	unsigned long long used;
} xnvmlMemory_v2_t;

typedef struct {
	char busIdLegacy[16];
	unsigned int domain;
	unsigned int bus;
	unsigned int device;
	unsigned int pciDeviceId;
	unsigned int pciSubSystemId;
	char busId[32];
} xnvmlPciInfo_t;

typedef struct {
	unsigned int gpu;
	unsigned int memory;
} xnvmlUtilization_t;

typedef struct {
	unsigned int pid;
	unsigned long long usedGpuMemory;
} xnvmlProcessInfo_v1_t;

typedef struct {
	unsigned int pid;
	unsigned long long timeStamp;
	unsigned int smUtil;
	unsigned int memUtil;
	unsigned int encUtil;
	unsigned int decUtil;
} xnvmlProcessUtilizationSample_t;

// Each resolved entry point is invoked through a trampoline taking the raw
// dlsym pointer, so nothing here links against libnvidia-ml at build time.

static nvmlReturn_t x_call0(void *fn) {
	return ((nvmlReturn_t (*)(void))fn)();
}

static nvmlReturn_t x_get_uint(void *fn, unsigned int *out) {
	return ((nvmlReturn_t (*)(unsigned int *))fn)(out);
}

static nvmlReturn_t x_get_int(void *fn, int *out) {
	return ((nvmlReturn_t (*)(int *))fn)(out);
}

static nvmlReturn_t x_get_string(void *fn, char *buf, unsigned int length) {
	return ((nvmlReturn_t (*)(char *, unsigned int))fn)(buf, length);
}

static nvmlReturn_t x_handle_by_index(void *fn, unsigned int index, nvmlDevice_t *dev) {
	return ((nvmlReturn_t (*)(unsigned int, nvmlDevice_t *))fn)(index, dev);
}

static nvmlReturn_t x_dev_get_uint(void *fn, nvmlDevice_t dev, unsigned int *out) {
	return ((nvmlReturn_t (*)(nvmlDevice_t, unsigned int *))fn)(dev, out);
}

static nvmlReturn_t x_dev_sel_get_uint(void *fn, nvmlDevice_t dev, unsigned int selector, unsigned int *out) {
	return ((nvmlReturn_t (*)(nvmlDevice_t, unsigned int, unsigned int *))fn)(dev, selector, out);
}

static nvmlReturn_t x_dev_get_uint_pair(void *fn, nvmlDevice_t dev, unsigned int *a, unsigned int *b) {
	return ((nvmlReturn_t (*)(nvmlDevice_t, unsigned int *, unsigned int *))fn)(dev, a, b);
}

static nvmlReturn_t x_dev_get_string(void *fn, nvmlDevice_t dev, char *buf, unsigned int length) {
	return ((nvmlReturn_t (*)(nvmlDevice_t, char *, unsigned int))fn)(dev, buf, length);
}

static nvmlReturn_t x_dev_get_memory(void *fn, nvmlDevice_t dev, xnvmlMemory_t *mem) {
	return ((nvmlReturn_t (*)(nvmlDevice_t, xnvmlMemory_t *))fn)(dev, mem);
}

static nvmlReturn_t x_dev_get_memory_v2(void *fn, nvmlDevice_t dev, xnvmlMemory_v2_t *mem) {
	return ((nvmlReturn_t (*)(nvmlDevice_t, xnvmlMemory_v2_t *))fn)(dev, mem);
}

static nvmlReturn_t x_dev_get_pci_info(void *fn, nvmlDevice_t dev, xnvmlPciInfo_t *pci) {
	return ((nvmlReturn_t (*)(nvmlDevice_t, xnvmlPciInfo_t *))fn)(dev, pci);
}

static nvmlReturn_t x_dev_get_utilization(void *fn, nvmlDevice_t dev, xnvmlUtilization_t *util) {
	return ((nvmlReturn_t (*)(nvmlDevice_t, xnvmlUtilization_t *))fn)(dev, util);
}

static nvmlReturn_t x_dev_get_running_procs(void *fn, nvmlDevice_t dev, unsigned int *count, xnvmlProcessInfo_v1_t *infos) {
	return ((nvmlReturn_t (*)(nvmlDevice_t, unsigned int *, xnvmlProcessInfo_v1_t *))fn)(dev, count, infos);
}

static nvmlReturn_t x_dev_get_proc_util(void *fn, nvmlDevice_t dev, xnvmlProcessUtilizationSample_t *samples, unsigned int *count, unsigned long long lastTs) {
	return ((nvmlReturn_t (*)(nvmlDevice_t, xnvmlProcessUtilizationSample_t *, unsigned int *, unsigned long long))fn)(dev, samples, count, lastTs);
}
*/
import "C"

import (
	"fmt"
	"unsafe"

	"github.com/fxnlabs/gpu-bridge/internal/dlib"
)

type devHandle = C.nvmlDevice_t

// NVML entry points. Every one of them is required: partial resolution
// fails the whole load.
const (
	symInit                       = "nvmlInit_v2"
	symShutdown                   = "nvmlShutdown"
	symDeviceGetCount             = "nvmlDeviceGetCount_v2"
	symDeviceGetHandleByIndex     = "nvmlDeviceGetHandleByIndex_v2"
	symDeviceGetArchitecture      = "nvmlDeviceGetArchitecture"
	symDeviceGetMemoryInfo        = "nvmlDeviceGetMemoryInfo"
	symDeviceGetMemoryInfoV2      = "nvmlDeviceGetMemoryInfo_v2"
	symDeviceGetPciInfo           = "nvmlDeviceGetPciInfo_v3"
	symDeviceGetName              = "nvmlDeviceGetName"
	symDeviceGetUUID              = "nvmlDeviceGetUUID"
	symSystemGetDriverVersion     = "nvmlSystemGetDriverVersion"
	symSystemGetCudaDriverVersion = "nvmlSystemGetCudaDriverVersion"
	symDeviceGetPowerLimit        = "nvmlDeviceGetPowerManagementLimit"
	symDeviceGetPowerConstraints  = "nvmlDeviceGetPowerManagementLimitConstraints"
	symDeviceGetMaxClockInfo      = "nvmlDeviceGetMaxClockInfo"
	symDeviceGetFanSpeed          = "nvmlDeviceGetFanSpeed"
	symDeviceGetComputeMode       = "nvmlDeviceGetComputeMode"
	symDeviceGetPerformanceState  = "nvmlDeviceGetPerformanceState"
	symDeviceGetUtilizationRates  = "nvmlDeviceGetUtilizationRates"
	symDeviceGetTemperature       = "nvmlDeviceGetTemperature"
	symDeviceGetPowerUsage        = "nvmlDeviceGetPowerUsage"
	symDeviceGetEnforcedLimit     = "nvmlDeviceGetEnforcedPowerLimit"
	symDeviceGetClockInfo         = "nvmlDeviceGetClockInfo"
	symDeviceGetRunningProcs      = "nvmlDeviceGetComputeRunningProcesses"
	symDeviceGetProcessUtil       = "nvmlDeviceGetProcessUtilization"
)

var requiredSymbols = []string{
	symInit,
	symShutdown,
	symDeviceGetCount,
	symDeviceGetHandleByIndex,
	symDeviceGetArchitecture,
	symDeviceGetMemoryInfo,
	symDeviceGetMemoryInfoV2,
	symDeviceGetPciInfo,
	symDeviceGetName,
	symDeviceGetUUID,
	symSystemGetDriverVersion,
	symSystemGetCudaDriverVersion,
	symDeviceGetPowerLimit,
	symDeviceGetPowerConstraints,
	symDeviceGetMaxClockInfo,
	symDeviceGetFanSpeed,
	symDeviceGetComputeMode,
	symDeviceGetPerformanceState,
	symDeviceGetUtilizationRates,
	symDeviceGetTemperature,
	symDeviceGetPowerUsage,
	symDeviceGetEnforcedLimit,
	symDeviceGetClockInfo,
	symDeviceGetRunningProcs,
	symDeviceGetProcessUtil,
}

// NVML clock type and temperature sensor selectors, from nvml.h.
const (
	clockGraphics = 0
	clockMem      = 2
	tempSensorGPU = 0
)

// nvmlMemory_v2_t carries its own version tag: struct size | (2 << 24).
const memoryV2Version = 40 | 2<<24

// rcError is a non-success nvmlReturn_t.
type rcError int32

func (r rcError) Error() string {
	name := "unknown error"
	switch r {
	case 1:
		name = "uninitialized"
	case 2:
		name = "invalid argument"
	case 3:
		name = "not supported"
	case 4:
		name = "no permission"
	case 6:
		name = "not found"
	case 7:
		name = "insufficient size"
	case 9:
		name = "driver not loaded"
	case 10:
		name = "timeout"
	case 12:
		name = "library not found"
	case 13:
		name = "function not found"
	case 15:
		name = "GPU is lost"
	case 20:
		name = "insufficient memory"
	case 21:
		name = "no data"
	}
	return fmt.Sprintf("nvml: %s (%d)", name, int32(r))
}

const (
	rcSuccess          = 0
	rcNotFound         = 6
	rcInsufficientSize = 7
)

func check(op string, r C.nvmlReturn_t) error {
	if r == rcSuccess {
		return nil
	}
	return fmt.Errorf("%s: %w", op, rcError(r))
}

// lib is the loaded NVML library: the dlopen handle plus the resolved
// symbol table. It is owned by exactly one Bridge session.
type lib struct {
	dl  *dlib.Library
	sym map[string]unsafe.Pointer
}

// loadLibrary opens the NVML shared library and resolves every required
// entry point. On any failure the handle is released before returning; a
// failed load is never retried within a session.
func loadLibrary(path string) (*lib, error) {
	dl, err := dlib.Open(path)
	if err != nil {
		return nil, err
	}
	sym, err := dl.ResolveAll(requiredSymbols)
	if err != nil {
		dl.Close()
		return nil, err
	}
	return &lib{dl: dl, sym: sym}, nil
}

func (l *lib) close() error {
	return l.dl.Close()
}

func (l *lib) init() error {
	return check(symInit, C.x_call0(l.sym[symInit]))
}

func (l *lib) shutdown() error {
	return check(symShutdown, C.x_call0(l.sym[symShutdown]))
}

func (l *lib) deviceCount() (uint32, error) {
	var count C.uint
	if err := check(symDeviceGetCount, C.x_get_uint(l.sym[symDeviceGetCount], &count)); err != nil {
		return 0, err
	}
	return uint32(count), nil
}

// handleByIndex looks the vendor device handle up on every call; handles
// are never cached across operations.
func (l *lib) handleByIndex(index uint32) (devHandle, error) {
	var dev devHandle
	if err := check(symDeviceGetHandleByIndex, C.x_handle_by_index(l.sym[symDeviceGetHandleByIndex], C.uint(index), &dev)); err != nil {
		return nil, err
	}
	return dev, nil
}

func (l *lib) devUint(sym string, dev devHandle) (uint32, error) {
	var out C.uint
	if err := check(sym, C.x_dev_get_uint(l.sym[sym], dev, &out)); err != nil {
		return 0, err
	}
	return uint32(out), nil
}

func (l *lib) devSelUint(sym string, dev devHandle, selector uint32) (uint32, error) {
	var out C.uint
	if err := check(sym, C.x_dev_sel_get_uint(l.sym[sym], dev, C.uint(selector), &out)); err != nil {
		return 0, err
	}
	return uint32(out), nil
}

func (l *lib) devString(sym string, dev devHandle, capacity int) (string, error) {
	buf := make([]byte, capacity)
	if err := check(sym, C.x_dev_get_string(l.sym[sym], dev, (*C.char)(unsafe.Pointer(&buf[0])), C.uint(len(buf)))); err != nil {
		return "", err
	}
	return cString(buf), nil
}

func (l *lib) systemDriverVersion() (string, error) {
	buf := make([]byte, 80)
	if err := check(symSystemGetDriverVersion, C.x_get_string(l.sym[symSystemGetDriverVersion], (*C.char)(unsafe.Pointer(&buf[0])), C.uint(len(buf)))); err != nil {
		return "", err
	}
	return cString(buf), nil
}

func (l *lib) cudaDriverVersion() (int32, error) {
	var v C.int
	if err := check(symSystemGetCudaDriverVersion, C.x_get_int(l.sym[symSystemGetCudaDriverVersion], &v)); err != nil {
		return 0, err
	}
	return int32(v), nil
}

func (l *lib) powerLimitConstraints(dev devHandle) (minLimit, maxLimit uint32, err error) {
	var lo, hi C.uint
	if err := check(symDeviceGetPowerConstraints, C.x_dev_get_uint_pair(l.sym[symDeviceGetPowerConstraints], dev, &lo, &hi)); err != nil {
		return 0, 0, err
	}
	return uint32(lo), uint32(hi), nil
}

func (l *lib) memoryInfo(dev devHandle) (total, used, free uint64, err error) {
	var mem C.xnvmlMemory_t
	if err := check(symDeviceGetMemoryInfo, C.x_dev_get_memory(l.sym[symDeviceGetMemoryInfo], dev, &mem)); err != nil {
		return 0, 0, 0, err
	}
	return uint64(mem.total), uint64(mem.used), uint64(mem.free), nil
}

func (l *lib) memoryInfoV2(dev devHandle) (reserved, used uint64, err error) {
	var mem C.xnvmlMemory_v2_t
	mem.version = memoryV2Version
	if err := check(symDeviceGetMemoryInfoV2, C.x_dev_get_memory_v2(l.sym[symDeviceGetMemoryInfoV2], dev, &mem)); err != nil {
		return 0, 0, err
	}
	return uint64(mem.reserved), uint64(mem.used), nil
}

func (l *lib) pciBusID(dev devHandle) (string, error) {
	var pci C.xnvmlPciInfo_t
	if err := check(symDeviceGetPciInfo, C.x_dev_get_pci_info(l.sym[symDeviceGetPciInfo], dev, &pci)); err != nil {
		return "", err
	}
	return cString(C.GoBytes(unsafe.Pointer(&pci.busId[0]), C.int(len(pci.busId)))), nil
}

func (l *lib) utilizationRates(dev devHandle) (gpu, mem uint32, err error) {
	var util C.xnvmlUtilization_t
	if err := check(symDeviceGetUtilizationRates, C.x_dev_get_utilization(l.sym[symDeviceGetUtilizationRates], dev, &util)); err != nil {
		return 0, 0, err
	}
	return uint32(util.gpu), uint32(util.memory), nil
}

// runningProcesses reads the device's compute process table: pid and memory
// footprint per process. Zero processes is an ordinary empty result.
func (l *lib) runningProcesses(dev devHandle) ([]runningProc, error) {
	fn := l.sym[symDeviceGetRunningProcs]

	var count C.uint
	r := C.x_dev_get_running_procs(fn, dev, &count, nil)
	if r == rcSuccess {
		return nil, nil
	}
	if r != rcInsufficientSize {
		return nil, check(symDeviceGetRunningProcs, r)
	}
	if count == 0 {
		return nil, nil
	}

	// Slack for processes that appear between the two calls.
	capacity := count + 8
	buf := make([]C.xnvmlProcessInfo_v1_t, capacity)
	count = capacity
	if err := check(symDeviceGetRunningProcs, C.x_dev_get_running_procs(fn, dev, &count, &buf[0])); err != nil {
		return nil, err
	}

	procs := make([]runningProc, count)
	for i := range procs {
		procs[i] = runningProc{
			Pid:          uint32(buf[i].pid),
			UsedMemBytes: uint64(buf[i].usedGpuMemory),
		}
	}
	return procs, nil
}

// processUtilization reads per-process utilization samples since driver
// start. NVML reports "not found" when no process has run; that is an empty
// result, not a failure.
func (l *lib) processUtilization(dev devHandle) ([]procSample, error) {
	fn := l.sym[symDeviceGetProcessUtil]

	var count C.uint
	r := C.x_dev_get_proc_util(fn, dev, nil, &count, 0)
	if r == rcNotFound {
		return nil, nil
	}
	if r != rcSuccess && r != rcInsufficientSize {
		return nil, check(symDeviceGetProcessUtil, r)
	}
	if count == 0 {
		return nil, nil
	}

	capacity := count + 8
	buf := make([]C.xnvmlProcessUtilizationSample_t, capacity)
	count = capacity
	r = C.x_dev_get_proc_util(fn, dev, &buf[0], &count, 0)
	if r == rcNotFound {
		return nil, nil
	}
	if err := check(symDeviceGetProcessUtil, r); err != nil {
		return nil, err
	}

	samples := make([]procSample, count)
	for i := range samples {
		samples[i] = procSample{
			Pid:     uint32(buf[i].pid),
			SmUtil:  uint32(buf[i].smUtil),
			MemUtil: uint32(buf[i].memUtil),
		}
	}
	return samples, nil
}
