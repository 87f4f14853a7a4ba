// Package proctable holds the session-scoped buffer of per-process GPU
// accounting records produced by a probe and consumed by indexed reads.
package proctable

import (
	"github.com/fxnlabs/gpu-bridge/pkg/gpuapi"
)

// Table is a single-slot process table: at most one device's rows are held
// at a time, and a new probe implicitly discards the previous table.
// Interleaving probes for two devices without consuming the first table's
// rows silently loses that data; this is a deliberate simplicity trade-off,
// not a bug to fix here.
//
// Not thread-safe, like the rest of the bridge session that owns it.
type Table struct {
	rows  []gpuapi.GpuProcess
	valid bool
}

// Replace installs rows as the current table, discarding any previous one.
// An empty slice is a valid table: after a probe that found no processes,
// reads fail with a range error, not a missing-table error.
func (t *Table) Replace(rows []gpuapi.GpuProcess) {
	t.rows = rows
	t.valid = true
}

// Count reports the number of rows in the current table, zero if none.
func (t *Table) Count() uint32 {
	return uint32(len(t.rows))
}

// Get reads the row at index. Reading before any probe or after Free fails
// with gpuapi.ErrNoProcessTable; an index past the last reported count fails
// with gpuapi.ErrIndexOutOfRange.
func (t *Table) Get(index uint32) (gpuapi.GpuProcess, error) {
	if !t.valid {
		return gpuapi.GpuProcess{}, gpuapi.ErrNoProcessTable
	}
	if index >= uint32(len(t.rows)) {
		return gpuapi.GpuProcess{}, gpuapi.ErrIndexOutOfRange
	}
	return t.rows[index], nil
}

// Free releases the table. Calling it when no table exists is a no-op.
func (t *Table) Free() {
	t.rows = nil
	t.valid = false
}
