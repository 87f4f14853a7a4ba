// Package amd adapts the ROCm SMI library (librocm_smi64.so) to the
// neutral bridge contract. The library is loaded with dlopen at Open; no
// link-time dependency on the ROCm runtime exists.
package amd

import (
	"fmt"
	"sort"

	"github.com/fxnlabs/gpu-bridge/pkg/gpuapi"
)

// nodeProc is one KFD compute process as reported by ROCm SMI, with the
// set of device indexes it runs on.
type nodeProc struct {
	Pid       uint32
	VramUsage uint64
	Devices   []uint32
}

// cString cuts a NUL-terminated C string out of a byte buffer.
func cString(buf []byte) string {
	for i, b := range buf {
		if b == 0 {
			return string(buf[:i])
		}
	}
	return string(buf)
}

// pciBusString formats the packed BDF reported by rsmi_dev_pci_id_get:
// domain in bits 63:32, bus in 15:8, device in 7:3, function in 2:0.
func pciBusString(bdf uint64) string {
	domain := uint32(bdf >> 32)
	bus := uint8(bdf >> 8)
	device := uint8(bdf>>3) & 0x1f
	function := uint8(bdf) & 0x7
	return fmt.Sprintf("%08x:%02x:%02x.%x", domain, bus, device, function)
}

// uniqueIDString renders the 64-bit ASIC serial the way rocm-smi does.
func uniqueIDString(id uint64) string {
	return fmt.Sprintf("GPU-%016x", id)
}

// gfxArchString decodes a target graphics version, encoded as
// major*10000 + minor*100 + stepping, into the gfx name (gfx90a, gfx1100).
func gfxArchString(version uint64) string {
	major := version / 10000
	minor := (version / 100) % 100
	step := version % 100
	return fmt.Sprintf("gfx%d%d%x", major, minor, step)
}

// perfLevelString names an rsmi_dev_perf_level_t value.
func perfLevelString(level uint32) string {
	switch level {
	case 0:
		return "auto"
	case 1:
		return "low"
	case 2:
		return "high"
	case 3:
		return "manual"
	case 4:
		return "stable_std"
	case 5:
		return "stable_peak"
	case 6:
		return "stable_min_mclk"
	case 7:
		return "stable_min_sclk"
	case 8:
		return "determinism"
	default:
		return "unknown"
	}
}

// fanPercent converts a raw fan speed reading and its maximum into a
// percentage. Sensors that report no fan (negative speed or zero max)
// yield zero.
func fanPercent(speed int64, max uint64) uint32 {
	if speed < 0 || max == 0 {
		return 0
	}
	pct := uint64(speed) * 100 / max
	if pct > 100 {
		pct = 100
	}
	return uint32(pct)
}

// microwattsToMilliwatts narrows a µW reading to the mW the wire format
// carries.
func microwattsToMilliwatts(uw uint64) uint32 {
	return uint32(uw / 1000)
}

// processRows builds the per-device process rows for one card. ROCm SMI
// has no per-process utilization counters, so the device busy percent is
// divided evenly among the processes on the card and memory utilization
// is derived from each process's VRAM share. Rows come out sorted by pid.
func processRows(device uint32, busyPercent uint32, totalMem uint64, procs []nodeProc) []gpuapi.GpuProcess {
	var onDevice []nodeProc
	for _, p := range procs {
		for _, dv := range p.Devices {
			if dv == device {
				onDevice = append(onDevice, p)
				break
			}
		}
	}
	if len(onDevice) == 0 {
		return nil
	}

	share := busyPercent / uint32(len(onDevice))
	rows := make([]gpuapi.GpuProcess, 0, len(onDevice))
	for _, p := range onDevice {
		var memUtil uint32
		if totalMem > 0 {
			memUtil = uint32(p.VramUsage * 100 / totalMem)
		}
		rows = append(rows, gpuapi.GpuProcess{
			Pid:     p.Pid,
			GpuUtil: share,
			MemUtil: memUtil,
			MemSize: p.VramUsage / 1024,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Pid < rows[j].Pid })
	return rows
}
