package proctable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fxnlabs/gpu-bridge/pkg/gpuapi"
)

func rows(pids ...uint32) []gpuapi.GpuProcess {
	out := make([]gpuapi.GpuProcess, len(pids))
	for i, pid := range pids {
		out[i] = gpuapi.GpuProcess{Pid: pid, MemSize: uint64(pid) * 1024}
	}
	return out
}

func TestGetBeforeProbe(t *testing.T) {
	var table Table
	_, err := table.Get(0)
	assert.ErrorIs(t, err, gpuapi.ErrNoProcessTable)
	assert.Equal(t, uint32(0), table.Count())
}

func TestReplaceAndGet(t *testing.T) {
	var table Table
	table.Replace(rows(100, 200, 300))
	require.Equal(t, uint32(3), table.Count())

	p, err := table.Get(1)
	require.NoError(t, err)
	assert.Equal(t, uint32(200), p.Pid)
	assert.Equal(t, uint64(200*1024), p.MemSize)

	_, err = table.Get(3)
	assert.ErrorIs(t, err, gpuapi.ErrIndexOutOfRange)
}

func TestEmptyTableIsValid(t *testing.T) {
	var table Table
	table.Replace(nil)
	assert.Equal(t, uint32(0), table.Count())

	// Range failure, not a missing-table failure: the probe happened.
	_, err := table.Get(0)
	assert.ErrorIs(t, err, gpuapi.ErrIndexOutOfRange)
}

func TestSecondReplaceDiscardsFirst(t *testing.T) {
	var table Table
	table.Replace(rows(1, 2, 3, 4))
	table.Replace(rows(9))

	// Rows are replaced, never appended.
	require.Equal(t, uint32(1), table.Count())
	p, err := table.Get(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(9), p.Pid)

	_, err = table.Get(1)
	assert.ErrorIs(t, err, gpuapi.ErrIndexOutOfRange)
}

func TestFree(t *testing.T) {
	var table Table
	table.Replace(rows(42))
	table.Free()

	_, err := table.Get(0)
	assert.ErrorIs(t, err, gpuapi.ErrNoProcessTable)
	assert.Equal(t, uint32(0), table.Count())

	// Free with no table held is a no-op.
	table.Free()
	table.Free()
}
