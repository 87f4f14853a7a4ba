//go:build linux && cgo

// Package dlib owns the dlopen handle and symbol table for a vendor shared
// library. Resolution is all-or-nothing: a load is usable only if the
// library opened and every required entry point resolved, so no function
// pointer is ever left dangling for a later call to trip on.
package dlib

/*
#cgo LDFLAGS: -ldl
#include <dlfcn.h>
#include <stdlib.h>
*/
import "C"

import (
	"fmt"
	"unsafe"
)

// Library wraps a dlopen handle. The zero value is a closed library; Close
// is safe on it.
type Library struct {
	handle unsafe.Pointer
	path   string
}

func dlerror() string {
	msg := C.dlerror()
	if msg == nil {
		return "unknown dl error"
	}
	return C.GoString(msg)
}

// Open dlopens the shared library at path with immediate binding.
func Open(path string) (*Library, error) {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))

	C.dlerror() // clear any stale error
	handle := C.dlopen(cpath, C.RTLD_NOW)
	if handle == nil {
		return nil, fmt.Errorf("dlib: open %s: %s", path, dlerror())
	}
	return &Library{handle: handle, path: path}, nil
}

// Lookup resolves one symbol by name.
func (l *Library) Lookup(name string) (unsafe.Pointer, error) {
	if l.handle == nil {
		return nil, fmt.Errorf("dlib: lookup %s: library not open", name)
	}
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))

	C.dlerror()
	sym := C.dlsym(l.handle, cname)
	if sym == nil {
		return nil, fmt.Errorf("dlib: %s: required symbol %s: %s", l.path, name, dlerror())
	}
	return sym, nil
}

// ResolveAll resolves every named symbol. Partial resolution is a failure:
// the first missing symbol fails the whole call and no table is returned.
// The library stays open either way; the caller owns closing it.
func (l *Library) ResolveAll(names []string) (map[string]unsafe.Pointer, error) {
	table := make(map[string]unsafe.Pointer, len(names))
	for _, name := range names {
		sym, err := l.Lookup(name)
		if err != nil {
			return nil, err
		}
		table[name] = sym
	}
	return table, nil
}

// Path reports the path the library was opened from.
func (l *Library) Path() string { return l.path }

// Close releases the library handle. Idempotent: closing a closed or
// never-opened Library is a no-op.
func (l *Library) Close() error {
	if l.handle == nil {
		return nil
	}
	handle := l.handle
	l.handle = nil
	if C.dlclose(handle) != 0 {
		return fmt.Errorf("dlib: close %s: %s", l.path, dlerror())
	}
	return nil
}
