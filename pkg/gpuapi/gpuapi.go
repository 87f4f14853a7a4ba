// Package gpuapi is the vendor-neutral contract between a host resource
// monitor and a GPU management library bridge. The host depends on nothing
// but this package: devices are addressed by dense zero-based index, all
// results are copied into fixed-layout structures, and every operation
// reports a single binary success/failure signal.
package gpuapi

// MemoryInfo is the broken-out device memory query result, in bytes.
type MemoryInfo struct {
	Total uint64
	Used  uint64
	Free  uint64
}

// Bridge is the function surface implemented by every vendor adapter and by
// the stub. The shape is identical for NVIDIA, AMD, and stub variants; which
// one backs it is a build-time decision, never a runtime one.
//
// A Bridge is a single session: Open creates it, Close destroys it, and any
// query outside that window fails. Indices are stable for the lifetime of
// one session (no hot-plug). Implementations are not thread-safe; the host
// must serialize all calls, including probes across goroutines.
//
// On failure the returned value is unspecified and must not be used; callers
// check the error before reading any output.
type Bridge interface {
	// Open loads the vendor library, resolves its entry points, and runs
	// vendor initialization. The session is ready only if all of that
	// succeeds. A second Open on a live session fails.
	Open() error

	// Close releases the vendor library and clears all session state,
	// including any held process table. Fails if the session is not open.
	Close() error

	// DeviceCount reports the number of visible devices.
	DeviceCount() (uint32, error)

	// DeviceArchitecture returns the vendor-defined architecture
	// enumerator for the device, passed through as an opaque numeric tag.
	// No cross-vendor normalization is attempted at this layer.
	DeviceArchitecture(index uint32) (uint32, error)

	// DeviceMemoryInfo reports total/used/free device memory in bytes.
	DeviceMemoryInfo(index uint32) (MemoryInfo, error)

	// DeviceCardInfo fetches the static per-device attributes. Nothing is
	// cached across calls.
	DeviceCardInfo(index uint32) (CardInfo, error)

	// DeviceCardState samples the dynamic per-device attributes at call
	// time. Each call re-queries the vendor library.
	DeviceCardState(index uint32) (CardState, error)

	// ProbeProcesses snapshots the device's per-process accounting table
	// into the session's single-slot buffer, replacing any previous table
	// for any device, and reports the row count. Zero rows is success: a
	// valid empty table is left in place.
	ProbeProcesses(index uint32) (uint32, error)

	// GetProcess reads one row of the table installed by the last
	// successful ProbeProcesses. Out-of-range rows and reads without a
	// table fail; the caller treats out-of-range as its own bug.
	GetProcess(row uint32) (GpuProcess, error)

	// FreeProcesses releases the process table. Safe to call when no
	// table exists.
	FreeProcesses()
}
