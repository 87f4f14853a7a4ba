package nvidia

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeProcesses(t *testing.T) {
	t.Run("joins by pid", func(t *testing.T) {
		running := []runningProc{
			{Pid: 3001, UsedMemBytes: 4 << 30},
			{Pid: 3002, UsedMemBytes: 512 << 20},
		}
		samples := []procSample{
			{Pid: 3002, SmUtil: 71, MemUtil: 18},
			{Pid: 3001, SmUtil: 12, MemUtil: 3},
		}

		rows := mergeProcesses(running, samples)
		require.Len(t, rows, 2)

		assert.Equal(t, uint32(3001), rows[0].Pid)
		assert.Equal(t, uint64((4<<30)/1024), rows[0].MemSize)
		assert.Equal(t, uint32(12), rows[0].GpuUtil)
		assert.Equal(t, uint32(3), rows[0].MemUtil)

		assert.Equal(t, uint32(3002), rows[1].Pid)
		assert.Equal(t, uint32(71), rows[1].GpuUtil)
	})

	t.Run("union keeps one-sided pids", func(t *testing.T) {
		running := []runningProc{{Pid: 10, UsedMemBytes: 1 << 20}}
		samples := []procSample{{Pid: 20, SmUtil: 50, MemUtil: 25}}

		rows := mergeProcesses(running, samples)
		require.Len(t, rows, 2)
		assert.Equal(t, uint32(10), rows[0].Pid)
		assert.Equal(t, uint64(1024), rows[0].MemSize)
		assert.Equal(t, uint32(0), rows[0].GpuUtil)
		assert.Equal(t, uint32(20), rows[1].Pid)
		assert.Equal(t, uint64(0), rows[1].MemSize)
		assert.Equal(t, uint32(50), rows[1].GpuUtil)
	})

	t.Run("empty inputs", func(t *testing.T) {
		assert.Empty(t, mergeProcesses(nil, nil))
	})

	t.Run("sorted by pid", func(t *testing.T) {
		running := []runningProc{{Pid: 900}, {Pid: 5}, {Pid: 77}}
		rows := mergeProcesses(running, nil)
		require.Len(t, rows, 3)
		assert.Equal(t, uint32(5), rows[0].Pid)
		assert.Equal(t, uint32(77), rows[1].Pid)
		assert.Equal(t, uint32(900), rows[2].Pid)
	})
}

func TestComputeModeString(t *testing.T) {
	assert.Equal(t, "Default", computeModeString(0))
	assert.Equal(t, "Exclusive Thread", computeModeString(1))
	assert.Equal(t, "Prohibited", computeModeString(2))
	assert.Equal(t, "Exclusive Process", computeModeString(3))
	assert.Equal(t, "Unknown (9)", computeModeString(9))
}

func TestPerfStateString(t *testing.T) {
	assert.Equal(t, "P0", perfStateString(0))
	assert.Equal(t, "P8", perfStateString(8))
	assert.Equal(t, "P15", perfStateString(15))
	// 32 is the NVML unknown sentinel; anything past P15 renders the same.
	assert.Equal(t, "Unknown", perfStateString(32))
}

func TestArchString(t *testing.T) {
	assert.Equal(t, "Volta", archString(5))
	assert.Equal(t, "Ampere", archString(7))
	assert.Equal(t, "Hopper", archString(9))
	assert.Equal(t, "(4294967295)", archString(0xffffffff))
}

func TestCudaVersionString(t *testing.T) {
	assert.Equal(t, "12.4", cudaVersionString(12040))
	assert.Equal(t, "11.1", cudaVersionString(11010))
	assert.Equal(t, "12.0", cudaVersionString(12000))
}
