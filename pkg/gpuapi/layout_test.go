package gpuapi

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
)

// The expected constants below are the sizes and offsets of the
// corresponding C structs, computed by hand from the declaration order and
// the x86-64 SysV alignment rules (uint64 and double aligned to 8, uint32
// and float to 4, char buffers to 1). They are intentionally not derived
// from the Go types: the point is that both sides of the language boundary
// arrive at the same layout independently.

func TestCardInfoLayout(t *testing.T) {
	var c CardInfo
	assert.Equal(t, uintptr(448), unsafe.Sizeof(c))

	assert.Equal(t, uintptr(0), unsafe.Offsetof(c.BusAddr))
	assert.Equal(t, uintptr(80), unsafe.Offsetof(c.Model))
	assert.Equal(t, uintptr(176), unsafe.Offsetof(c.Architecture))
	assert.Equal(t, uintptr(208), unsafe.Offsetof(c.Driver))
	assert.Equal(t, uintptr(288), unsafe.Offsetof(c.Firmware))
	assert.Equal(t, uintptr(320), unsafe.Offsetof(c.UUID))
	assert.Equal(t, uintptr(416), unsafe.Offsetof(c.TotalMem))
	assert.Equal(t, uintptr(424), unsafe.Offsetof(c.PowerLimit))
	assert.Equal(t, uintptr(428), unsafe.Offsetof(c.MinPowerLimit))
	assert.Equal(t, uintptr(432), unsafe.Offsetof(c.MaxPowerLimit))
	assert.Equal(t, uintptr(436), unsafe.Offsetof(c.MaxCEClock))
	assert.Equal(t, uintptr(440), unsafe.Offsetof(c.MaxMemClock))
}

func TestCardStateLayout(t *testing.T) {
	var s CardState
	assert.Equal(t, uintptr(96), unsafe.Sizeof(s))

	assert.Equal(t, uintptr(0), unsafe.Offsetof(s.FanSpeed))
	assert.Equal(t, uintptr(4), unsafe.Offsetof(s.ComputeMode))
	assert.Equal(t, uintptr(36), unsafe.Offsetof(s.PerfState))
	assert.Equal(t, uintptr(48), unsafe.Offsetof(s.MemReserved))
	assert.Equal(t, uintptr(56), unsafe.Offsetof(s.MemUsed))
	assert.Equal(t, uintptr(64), unsafe.Offsetof(s.GpuUtil))
	assert.Equal(t, uintptr(68), unsafe.Offsetof(s.MemUtil))
	assert.Equal(t, uintptr(72), unsafe.Offsetof(s.Temp))
	assert.Equal(t, uintptr(76), unsafe.Offsetof(s.Power))
	assert.Equal(t, uintptr(80), unsafe.Offsetof(s.PowerLimit))
	assert.Equal(t, uintptr(84), unsafe.Offsetof(s.CEClock))
	assert.Equal(t, uintptr(88), unsafe.Offsetof(s.MemClock))
}

func TestGpuProcessLayout(t *testing.T) {
	var p GpuProcess
	assert.Equal(t, uintptr(24), unsafe.Sizeof(p))

	assert.Equal(t, uintptr(0), unsafe.Offsetof(p.Pid))
	assert.Equal(t, uintptr(4), unsafe.Offsetof(p.MemUtil))
	assert.Equal(t, uintptr(8), unsafe.Offsetof(p.GpuUtil))
	assert.Equal(t, uintptr(16), unsafe.Offsetof(p.MemSize))
}
