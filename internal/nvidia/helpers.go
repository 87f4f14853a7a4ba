// Package nvidia translates the NVIDIA NVML library into the neutral bridge
// contract. The NVML binding itself builds only under the nvidia tag; this
// file keeps the hardware-independent pieces buildable everywhere.
package nvidia

import (
	"fmt"
	"sort"

	"github.com/fxnlabs/gpu-bridge/pkg/gpuapi"
)

// runningProc is one row of nvmlDeviceGetComputeRunningProcesses.
type runningProc struct {
	Pid          uint32
	UsedMemBytes uint64
}

// procSample is one row of nvmlDeviceGetProcessUtilization.
type procSample struct {
	Pid     uint32
	SmUtil  uint32
	MemUtil uint32
}

// cString interprets a NUL-terminated C string buffer.
func cString(buf []byte) string {
	return gpuapi.FixedString(buf)
}

// mergeProcesses joins the running-process table (memory footprints) with
// the utilization samples (engine percentages) by pid. A pid present in
// only one source still yields a row; the union is sorted by pid so probe
// output is deterministic.
func mergeProcesses(running []runningProc, samples []procSample) []gpuapi.GpuProcess {
	byPid := make(map[uint32]gpuapi.GpuProcess, len(running)+len(samples))
	for _, p := range running {
		byPid[p.Pid] = gpuapi.GpuProcess{
			Pid:     p.Pid,
			MemSize: p.UsedMemBytes / 1024,
		}
	}
	for _, s := range samples {
		row := byPid[s.Pid]
		row.Pid = s.Pid
		row.GpuUtil = s.SmUtil
		row.MemUtil = s.MemUtil
		byPid[s.Pid] = row
	}

	rows := make([]gpuapi.GpuProcess, 0, len(byPid))
	for _, row := range byPid {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Pid < rows[j].Pid })
	return rows
}

// computeModeString names an nvmlComputeMode_t value.
func computeModeString(mode uint32) string {
	switch mode {
	case 0:
		return "Default"
	case 1:
		return "Exclusive Thread"
	case 2:
		return "Prohibited"
	case 3:
		return "Exclusive Process"
	default:
		return fmt.Sprintf("Unknown (%d)", mode)
	}
}

// perfStateString renders an nvmlPstates_t value: "P0".."P15", or "Unknown"
// for the sentinel 32.
func perfStateString(pstate uint32) string {
	if pstate > 15 {
		return "Unknown"
	}
	return fmt.Sprintf("P%d", pstate)
}

// archString names an nvmlDeviceArchitecture_t value. Unrecognized values,
// including the unknown sentinel, pass through numerically; the tag stays
// vendor-defined at this layer.
func archString(arch uint32) string {
	switch arch {
	case 2:
		return "Kepler"
	case 3:
		return "Maxwell"
	case 4:
		return "Pascal"
	case 5:
		return "Volta"
	case 6:
		return "Turing"
	case 7:
		return "Ampere"
	case 8:
		return "Ada"
	case 9:
		return "Hopper"
	default:
		return fmt.Sprintf("(%d)", arch)
	}
}

// cudaVersionString renders the packed CUDA driver version, e.g. 12040 as
// "12.4".
func cudaVersionString(version int32) string {
	return fmt.Sprintf("%d.%d", version/1000, (version%1000)/10)
}
