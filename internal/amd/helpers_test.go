package amd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPciBusString(t *testing.T) {
	// domain 0, bus 0xc3, device 0, function 0
	assert.Equal(t, "00000000:c3:00.0", pciBusString(0xc300))
	// domain 0x0001, bus 0x65, device 0x1f, function 7
	bdf := uint64(1)<<32 | 0x65<<8 | 0x1f<<3 | 0x7
	assert.Equal(t, "00000001:65:1f.7", pciBusString(bdf))
}

func TestGfxArchString(t *testing.T) {
	assert.Equal(t, "gfx90a", gfxArchString(90010))
	assert.Equal(t, "gfx1100", gfxArchString(110000))
	assert.Equal(t, "gfx942", gfxArchString(90402))
}

func TestUniqueIDString(t *testing.T) {
	assert.Equal(t, "GPU-00000000deadbeef", uniqueIDString(0xdeadbeef))
}

func TestPerfLevelString(t *testing.T) {
	assert.Equal(t, "auto", perfLevelString(0))
	assert.Equal(t, "high", perfLevelString(2))
	assert.Equal(t, "determinism", perfLevelString(8))
	assert.Equal(t, "unknown", perfLevelString(42))
}

func TestFanPercent(t *testing.T) {
	assert.Equal(t, uint32(50), fanPercent(128, 256))
	assert.Equal(t, uint32(100), fanPercent(256, 256))
	// readings above max clamp to 100
	assert.Equal(t, uint32(100), fanPercent(300, 256))
	assert.Equal(t, uint32(0), fanPercent(-1, 256))
	assert.Equal(t, uint32(0), fanPercent(128, 0))
}

func TestMicrowattsToMilliwatts(t *testing.T) {
	assert.Equal(t, uint32(225000), microwattsToMilliwatts(225_000_000))
	assert.Equal(t, uint32(0), microwattsToMilliwatts(999))
}

func TestProcessRowsDividesBusyPercent(t *testing.T) {
	procs := []nodeProc{
		{Pid: 400, VramUsage: 4 << 30, Devices: []uint32{0}},
		{Pid: 100, VramUsage: 2 << 30, Devices: []uint32{0, 1}},
		{Pid: 200, VramUsage: 1 << 30, Devices: []uint32{1}},
	}

	rows := processRows(0, 90, 16<<30, procs)
	require.Len(t, rows, 2)

	// sorted by pid, each charged half of the device busy percent
	assert.Equal(t, uint32(100), rows[0].Pid)
	assert.Equal(t, uint32(45), rows[0].GpuUtil)
	assert.Equal(t, uint32(12), rows[0].MemUtil) // 2 GiB of 16 GiB
	assert.Equal(t, uint64((2<<30)/1024), rows[0].MemSize)

	assert.Equal(t, uint32(400), rows[1].Pid)
	assert.Equal(t, uint32(45), rows[1].GpuUtil)
	assert.Equal(t, uint32(25), rows[1].MemUtil)
}

func TestProcessRowsFiltersByDevice(t *testing.T) {
	procs := []nodeProc{
		{Pid: 100, VramUsage: 1 << 30, Devices: []uint32{1}},
	}
	assert.Nil(t, processRows(0, 50, 16<<30, procs))

	rows := processRows(1, 50, 16<<30, procs)
	require.Len(t, rows, 1)
	assert.Equal(t, uint32(50), rows[0].GpuUtil)
}

func TestProcessRowsZeroTotalMemory(t *testing.T) {
	procs := []nodeProc{{Pid: 7, VramUsage: 1 << 20, Devices: []uint32{0}}}
	rows := processRows(0, 10, 0, procs)
	require.Len(t, rows, 1)
	assert.Equal(t, uint32(0), rows[0].MemUtil)
}

func TestCString(t *testing.T) {
	assert.Equal(t, "gfx90a", cString([]byte("gfx90a\x00junk")))
	assert.Equal(t, "", cString([]byte{0}))
	assert.Equal(t, "abc", cString([]byte("abc")))
}
