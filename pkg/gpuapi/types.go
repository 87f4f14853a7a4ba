package gpuapi

// The structs below are part of the contract and must stay bit-reproducible
// against the C header that defines the language boundary: fixed-capacity
// character buffers for text, fixed-width integers for counters and sizes,
// IEEE floats for utilization percentages. Field order and buffer capacities
// are therefore not free to change; see layout_test.go.

// Buffer capacities, mostly mandated by the underlying NVML string APIs. The
// remainder are conservative.
const (
	BusAddrLen      = 80
	ModelLen        = 96
	ArchitectureLen = 32
	DriverLen       = 80
	FirmwareLen     = 32
	UUIDLen         = 96
	ComputeModeLen  = 32
	PerfStateLen    = 8
)

// CardInfo holds the static per-device attributes. The firmware field is the
// CUDA driver version on NVIDIA and the VBIOS version on AMD.
type CardInfo struct {
	BusAddr       [BusAddrLen]byte
	Model         [ModelLen]byte
	Architecture  [ArchitectureLen]byte
	Driver        [DriverLen]byte // same for all cards on a node
	Firmware      [FirmwareLen]byte
	UUID          [UUIDLen]byte
	TotalMem      uint64 // bytes
	PowerLimit    uint32 // milliwatts
	MinPowerLimit uint32 // milliwatts
	MaxPowerLimit uint32 // milliwatts
	MaxCEClock    uint32 // MHz
	MaxMemClock   uint32 // MHz
}

// CardState holds the dynamic per-device attributes sampled at call time.
// PerfState is "Unknown" or "P<n>" for lowish n.
type CardState struct {
	FanSpeed    uint32 // percent
	ComputeMode [ComputeModeLen]byte
	PerfState   [PerfStateLen]byte
	MemReserved uint64  // bytes
	MemUsed     uint64  // bytes
	GpuUtil     float32 // percent
	MemUtil     float32 // percent
	Temp        uint32  // degrees C
	Power       uint32  // milliwatts
	PowerLimit  uint32  // milliwatts
	CEClock     uint32  // MHz
	MemClock    uint32  // MHz
}

// GpuProcess is one row of a device's per-process accounting table: one
// (device, process) pair observed during a probe.
type GpuProcess struct {
	Pid     uint32
	MemUtil uint32 // percent
	GpuUtil uint32 // percent
	MemSize uint64 // KiB
}

// SetString copies s into the fixed-capacity buffer dst. Truncation is
// silent, but the buffer is always NUL-terminated.
func SetString(dst []byte, s string) {
	n := copy(dst, s)
	if n == len(dst) {
		n--
	}
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
}

// FixedString returns the string held in a fixed-capacity buffer, up to the
// first NUL.
func FixedString(buf []byte) string {
	for i, b := range buf {
		if b == 0 {
			return string(buf[:i])
		}
	}
	return string(buf)
}

func (c *CardInfo) BusAddrString() string      { return FixedString(c.BusAddr[:]) }
func (c *CardInfo) ModelString() string        { return FixedString(c.Model[:]) }
func (c *CardInfo) ArchitectureString() string { return FixedString(c.Architecture[:]) }
func (c *CardInfo) DriverString() string       { return FixedString(c.Driver[:]) }
func (c *CardInfo) FirmwareString() string     { return FixedString(c.Firmware[:]) }
func (c *CardInfo) UUIDString() string         { return FixedString(c.UUID[:]) }

func (s *CardState) ComputeModeString() string { return FixedString(s.ComputeMode[:]) }
func (s *CardState) PerfStateString() string   { return FixedString(s.PerfState[:]) }
