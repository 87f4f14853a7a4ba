//go:build linux && cgo && amd

package amd

/*
#cgo LDFLAGS: -ldl

#include <stdint.h>
#include <stddef.h>

typedef int rsmi_status_t;

// Classic rsmi_frequencies_t layout (ROCm 5). Tail slack absorbs the
// fields newer releases appended.
typedef struct {
	uint32_t num_supported;
	uint32_t current;
	uint64_t frequency[32];
	uint64_t reserved[8];
} xrsmi_frequencies_t;

typedef struct {
	uint32_t process_id;
	uint32_t pasid;
	uint64_t vram_usage;
	uint64_t sdma_usage;
	uint32_t cu_occupancy;
} xrsmi_process_info_t;

static rsmi_status_t x_init(void *fn, uint64_t flags) {
	return ((rsmi_status_t (*)(uint64_t))fn)(flags);
}

static rsmi_status_t x_call0(void *fn) {
	return ((rsmi_status_t (*)(void))fn)();
}

static rsmi_status_t x_get_u32(void *fn, uint32_t *out) {
	return ((rsmi_status_t (*)(uint32_t *))fn)(out);
}

static rsmi_status_t x_dev_get_u32(void *fn, uint32_t dv, uint32_t *out) {
	return ((rsmi_status_t (*)(uint32_t, uint32_t *))fn)(dv, out);
}

static rsmi_status_t x_dev_get_u64(void *fn, uint32_t dv, uint64_t *out) {
	return ((rsmi_status_t (*)(uint32_t, uint64_t *))fn)(dv, out);
}

static rsmi_status_t x_dev_get_name(void *fn, uint32_t dv, char *buf, size_t len) {
	return ((rsmi_status_t (*)(uint32_t, char *, size_t))fn)(dv, buf, len);
}

static rsmi_status_t x_dev_get_str(void *fn, uint32_t dv, char *buf, uint32_t len) {
	return ((rsmi_status_t (*)(uint32_t, char *, uint32_t))fn)(dv, buf, len);
}

static rsmi_status_t x_version_str(void *fn, int component, char *buf, uint32_t len) {
	return ((rsmi_status_t (*)(int, char *, uint32_t))fn)(component, buf, len);
}

static rsmi_status_t x_dev_sel_get_u64(void *fn, uint32_t dv, int selector, uint64_t *out) {
	return ((rsmi_status_t (*)(uint32_t, int, uint64_t *))fn)(dv, selector, out);
}

static rsmi_status_t x_dev_sensor_get_u64(void *fn, uint32_t dv, uint32_t sensor, uint64_t *out) {
	return ((rsmi_status_t (*)(uint32_t, uint32_t, uint64_t *))fn)(dv, sensor, out);
}

static rsmi_status_t x_dev_sensor_get_i64(void *fn, uint32_t dv, uint32_t sensor, int64_t *out) {
	return ((rsmi_status_t (*)(uint32_t, uint32_t, int64_t *))fn)(dv, sensor, out);
}

static rsmi_status_t x_power_cap_range(void *fn, uint32_t dv, uint32_t sensor, uint64_t *max, uint64_t *min) {
	return ((rsmi_status_t (*)(uint32_t, uint32_t, uint64_t *, uint64_t *))fn)(dv, sensor, max, min);
}

static rsmi_status_t x_temp_metric(void *fn, uint32_t dv, uint32_t sensor, int metric, int64_t *out) {
	return ((rsmi_status_t (*)(uint32_t, uint32_t, int, int64_t *))fn)(dv, sensor, metric, out);
}

static rsmi_status_t x_clk_freq(void *fn, uint32_t dv, int clk_type, xrsmi_frequencies_t *freqs) {
	return ((rsmi_status_t (*)(uint32_t, int, xrsmi_frequencies_t *))fn)(dv, clk_type, freqs);
}

static rsmi_status_t x_perf_level(void *fn, uint32_t dv, int *out) {
	return ((rsmi_status_t (*)(uint32_t, int *))fn)(dv, out);
}

static rsmi_status_t x_process_info(void *fn, xrsmi_process_info_t *procs, uint32_t *num) {
	return ((rsmi_status_t (*)(xrsmi_process_info_t *, uint32_t *))fn)(procs, num);
}

static rsmi_status_t x_process_gpus(void *fn, uint32_t pid, uint32_t *dv_indices, uint32_t *num) {
	return ((rsmi_status_t (*)(uint32_t, uint32_t *, uint32_t *))fn)(pid, dv_indices, num);
}
*/
import "C"

import (
	"fmt"
	"unsafe"

	"github.com/fxnlabs/gpu-bridge/internal/dlib"
)

// ROCm SMI entry points; all required, resolution is all-or-nothing.
const (
	symInit               = "rsmi_init"
	symShutDown           = "rsmi_shut_down"
	symNumDevices         = "rsmi_num_monitor_devices"
	symPciIDGet           = "rsmi_dev_pci_id_get"
	symNameGet            = "rsmi_dev_name_get"
	symTargetGfxVersion   = "rsmi_dev_target_graphics_version_get"
	symVersionStrGet      = "rsmi_version_str_get"
	symVbiosVersionGet    = "rsmi_dev_vbios_version_get"
	symUniqueIDGet        = "rsmi_dev_unique_id_get"
	symMemoryTotalGet     = "rsmi_dev_memory_total_get"
	symMemoryUsageGet     = "rsmi_dev_memory_usage_get"
	symPowerCapGet        = "rsmi_dev_power_cap_get"
	symPowerCapRangeGet   = "rsmi_dev_power_cap_range_get"
	symClkFreqGet         = "rsmi_dev_gpu_clk_freq_get"
	symFanSpeedGet        = "rsmi_dev_fan_speed_get"
	symFanSpeedMaxGet     = "rsmi_dev_fan_speed_max_get"
	symTempMetricGet      = "rsmi_dev_temp_metric_get"
	symBusyPercentGet     = "rsmi_dev_busy_percent_get"
	symMemBusyPercentGet  = "rsmi_dev_memory_busy_percent_get"
	symPowerAveGet        = "rsmi_dev_power_ave_get"
	symPerfLevelGet       = "rsmi_dev_perf_level_get"
	symComputeProcessInfo = "rsmi_compute_process_info_get"
	symComputeProcessGpus = "rsmi_compute_process_gpus_get"
)

var requiredSymbols = []string{
	symInit,
	symShutDown,
	symNumDevices,
	symPciIDGet,
	symNameGet,
	symTargetGfxVersion,
	symVersionStrGet,
	symVbiosVersionGet,
	symUniqueIDGet,
	symMemoryTotalGet,
	symMemoryUsageGet,
	symPowerCapGet,
	symPowerCapRangeGet,
	symClkFreqGet,
	symFanSpeedGet,
	symFanSpeedMaxGet,
	symTempMetricGet,
	symBusyPercentGet,
	symMemBusyPercentGet,
	symPowerAveGet,
	symPerfLevelGet,
	symComputeProcessInfo,
	symComputeProcessGpus,
}

// ROCm SMI selectors.
const (
	memTypeVRAM    = 0 // rsmi_memory_type_t
	clkTypeSys     = 0 // rsmi_clk_type_t
	clkTypeMem     = 4
	tempTypeEdge   = 0 // sensor type
	tempCurrent    = 0 // rsmi_temperature_metric_t
	swCompDriver   = 0 // rsmi_sw_component_t
	defaultSensor  = 0
	rsmiInitNoFlag = 0
)

// rcError is a non-success rsmi_status_t.
type rcError int32

func (r rcError) Error() string {
	name := "unknown error"
	switch r {
	case 1:
		name = "invalid arguments"
	case 2:
		name = "not supported"
	case 3:
		name = "file error"
	case 4:
		name = "permission denied"
	case 5:
		name = "out of resources"
	case 6:
		name = "internal exception"
	case 7:
		name = "input out of bounds"
	case 8:
		name = "init error"
	case 10:
		name = "not found"
	case 11:
		name = "insufficient size"
	case 14:
		name = "no data"
	case 16:
		name = "device busy"
	}
	return fmt.Sprintf("rsmi: %s (%d)", name, int32(r))
}

const (
	rcSuccess  = 0
	rcNotFound = 10
)

func check(op string, r C.rsmi_status_t) error {
	if r == rcSuccess {
		return nil
	}
	return fmt.Errorf("%s: %w", op, rcError(r))
}

// lib is the loaded ROCm SMI library with its resolved symbol table.
type lib struct {
	dl  *dlib.Library
	sym map[string]unsafe.Pointer
}

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
	return check(symInit, C.x_init(l.sym[symInit], rsmiInitNoFlag))
}

func (l *lib) shutdown() error {
	return check(symShutDown, C.x_call0(l.sym[symShutDown]))
}

func (l *lib) deviceCount() (uint32, error) {
	var count C.uint32_t
	if err := check(symNumDevices, C.x_get_u32(l.sym[symNumDevices], &count)); err != nil {
		return 0, err
	}
	return uint32(count), nil
}

func (l *lib) devU32(sym string, dv uint32) (uint32, error) {
	var out C.uint32_t
	if err := check(sym, C.x_dev_get_u32(l.sym[sym], C.uint32_t(dv), &out)); err != nil {
		return 0, err
	}
	return uint32(out), nil
}

func (l *lib) devU64(sym string, dv uint32) (uint64, error) {
	var out C.uint64_t
	if err := check(sym, C.x_dev_get_u64(l.sym[sym], C.uint32_t(dv), &out)); err != nil {
		return 0, err
	}
	return uint64(out), nil
}

func (l *lib) name(dv uint32) (string, error) {
	buf := make([]byte, 96)
	if err := check(symNameGet, C.x_dev_get_name(l.sym[symNameGet], C.uint32_t(dv), (*C.char)(unsafe.Pointer(&buf[0])), C.size_t(len(buf)))); err != nil {
		return "", err
	}
	return cString(buf), nil
}

func (l *lib) vbiosVersion(dv uint32) (string, error) {
	buf := make([]byte, 64)
	if err := check(symVbiosVersionGet, C.x_dev_get_str(l.sym[symVbiosVersionGet], C.uint32_t(dv), (*C.char)(unsafe.Pointer(&buf[0])), C.uint32_t(len(buf)))); err != nil {
		return "", err
	}
	return cString(buf), nil
}

func (l *lib) driverVersion() (string, error) {
	buf := make([]byte, 80)
	if err := check(symVersionStrGet, C.x_version_str(l.sym[symVersionStrGet], swCompDriver, (*C.char)(unsafe.Pointer(&buf[0])), C.uint32_t(len(buf)))); err != nil {
		return "", err
	}
	return cString(buf), nil
}

func (l *lib) memory(sym string, dv uint32) (uint64, error) {
	var out C.uint64_t
	if err := check(sym, C.x_dev_sel_get_u64(l.sym[sym], C.uint32_t(dv), memTypeVRAM, &out)); err != nil {
		return 0, err
	}
	return uint64(out), nil
}

func (l *lib) powerMicrowatts(sym string, dv uint32) (uint64, error) {
	var out C.uint64_t
	if err := check(sym, C.x_dev_sensor_get_u64(l.sym[sym], C.uint32_t(dv), defaultSensor, &out)); err != nil {
		return 0, err
	}
	return uint64(out), nil
}

func (l *lib) powerCapRange(dv uint32) (minMicrowatts, maxMicrowatts uint64, err error) {
	var hi, lo C.uint64_t
	if err := check(symPowerCapRangeGet, C.x_power_cap_range(l.sym[symPowerCapRangeGet], C.uint32_t(dv), defaultSensor, &hi, &lo)); err != nil {
		return 0, 0, err
	}
	return uint64(lo), uint64(hi), nil
}

func (l *lib) fanPercent(dv uint32) (uint32, error) {
	var speed C.int64_t
	if err := check(symFanSpeedGet, C.x_dev_sensor_get_i64(l.sym[symFanSpeedGet], C.uint32_t(dv), defaultSensor, &speed)); err != nil {
		return 0, err
	}
	var max C.uint64_t
	if err := check(symFanSpeedMaxGet, C.x_dev_sensor_get_u64(l.sym[symFanSpeedMaxGet], C.uint32_t(dv), defaultSensor, &max)); err != nil {
		return 0, err
	}
	return fanPercent(int64(speed), uint64(max)), nil
}

func (l *lib) temperature(dv uint32) (uint32, error) {
	var millideg C.int64_t
	if err := check(symTempMetricGet, C.x_temp_metric(l.sym[symTempMetricGet], C.uint32_t(dv), tempTypeEdge, tempCurrent, &millideg)); err != nil {
		return 0, err
	}
	if millideg < 0 {
		return 0, nil
	}
	return uint32(millideg / 1000), nil
}

func (l *lib) perfLevel(dv uint32) (uint32, error) {
	var level C.int
	if err := check(symPerfLevelGet, C.x_perf_level(l.sym[symPerfLevelGet], C.uint32_t(dv), &level)); err != nil {
		return 0, err
	}
	return uint32(level), nil
}

// clockMHz reads the frequency table for one clock domain and reports the
// current and ceiling frequencies in MHz.
func (l *lib) clockMHz(dv uint32, clkType int) (current, max uint32, err error) {
	var freqs C.xrsmi_frequencies_t
	if err := check(symClkFreqGet, C.x_clk_freq(l.sym[symClkFreqGet], C.uint32_t(dv), C.int(clkType), &freqs)); err != nil {
		return 0, 0, err
	}
	n := uint32(freqs.num_supported)
	if n == 0 || n > uint32(len(freqs.frequency)) {
		return 0, 0, fmt.Errorf("%s: implausible frequency table (%d entries)", symClkFreqGet, n)
	}
	cur := uint32(freqs.current)
	if cur >= n {
		cur = n - 1
	}
	// Table entries are in Hz, ascending.
	return uint32(uint64(freqs.frequency[cur]) / 1000000), uint32(uint64(freqs.frequency[n-1]) / 1000000), nil
}

// computeProcesses lists every KFD compute process on the node together
// with the devices it uses. Zero processes is an ordinary empty result.
func (l *lib) computeProcesses() ([]nodeProc, error) {
	fn := l.sym[symComputeProcessInfo]

	var count C.uint32_t
	if err := check(symComputeProcessInfo, C.x_process_info(fn, nil, &count)); err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}

	capacity := count + 8
	buf := make([]C.xrsmi_process_info_t, capacity)
	count = capacity
	if err := check(symComputeProcessInfo, C.x_process_info(fn, &buf[0], &count)); err != nil {
		return nil, err
	}

	procs := make([]nodeProc, 0, count)
	for i := uint32(0); i < uint32(count); i++ {
		pid := uint32(buf[i].process_id)
		devices, err := l.processDevices(pid)
		if err != nil {
			// The process may have exited between the two queries.
			continue
		}
		procs = append(procs, nodeProc{
			Pid:       pid,
			VramUsage: uint64(buf[i].vram_usage),
			Devices:   devices,
		})
	}
	return procs, nil
}

func (l *lib) processDevices(pid uint32) ([]uint32, error) {
	fn := l.sym[symComputeProcessGpus]

	var count C.uint32_t
	if err := check(symComputeProcessGpus, C.x_process_gpus(fn, C.uint32_t(pid), nil, &count)); err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	buf := make([]C.uint32_t, count)
	if err := check(symComputeProcessGpus, C.x_process_gpus(fn, C.uint32_t(pid), &buf[0], &count)); err != nil {
		return nil, err
	}
	devices := make([]uint32, count)
	for i := range devices {
		devices[i] = uint32(buf[i])
	}
	return devices, nil
}
