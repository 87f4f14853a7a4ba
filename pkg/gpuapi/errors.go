package gpuapi

import "errors"

// All bridge failures collapse to a single binary signal at the contract
// boundary. The sentinels and kinds below exist for internal diagnostics
// (logging, failure counters); hosts only need err != nil.
var (
	// ErrAlreadyOpen is returned by Open when a session is already live in
	// this process.
	ErrAlreadyOpen = errors.New("gpuapi: session already open")

	// ErrNotOpen is returned by any operation, including Close, when the
	// session is not open.
	ErrNotOpen = errors.New("gpuapi: session not open")

	// ErrIndexOutOfRange is returned for a device or row index outside the
	// reported count. For GetProcess this indicates a caller bug rather
	// than a transient failure, but it deliberately shares the ordinary
	// error channel.
	ErrIndexOutOfRange = errors.New("gpuapi: index out of range")

	// ErrNoProcessTable is returned by GetProcess before any successful
	// probe or after FreeProcesses.
	ErrNoProcessTable = errors.New("gpuapi: no process table, probe first")
)

// SetupError marks a failure to load the vendor library, resolve a required
// symbol, or run vendor initialization.
type SetupError struct {
	Err error
}

func (e *SetupError) Error() string { return "gpuapi: setup: " + e.Err.Error() }
func (e *SetupError) Unwrap() error { return e.Err }

// FailureKind classifies a bridge error for diagnostics.
type FailureKind string

const (
	// KindSetup: library not found, required symbol missing, or vendor
	// initialization failed.
	KindSetup FailureKind = "setup"
	// KindStateMisuse: query before open, double close, get-process
	// without a probe, index out of range.
	KindStateMisuse FailureKind = "state_misuse"
	// KindVendor: an underlying vendor call failed for a valid, open
	// session.
	KindVendor FailureKind = "vendor"
)

// KindOf reports the failure kind of a bridge error. Errors that did not
// originate in this module are treated as vendor-runtime failures.
func KindOf(err error) FailureKind {
	var setup *SetupError
	switch {
	case errors.As(err, &setup):
		return KindSetup
	case errors.Is(err, ErrAlreadyOpen),
		errors.Is(err, ErrNotOpen),
		errors.Is(err, ErrIndexOutOfRange),
		errors.Is(err, ErrNoProcessTable):
		return KindStateMisuse
	default:
		return KindVendor
	}
}
