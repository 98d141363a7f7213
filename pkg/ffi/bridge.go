// Package ffi implements the C ABI of the address generator: JSON results
// returned in malloc'd, NUL-terminated buffers and a single release
// function.
//
// The exported C symbols live in cmd/libjunoaddrgen, which converts C
// pointers to unsafe.Pointer and calls into this package. Build the shared
// library with:
//
//	go build -buildmode=c-shared -o libjuno_addrgen.so ./cmd/libjunoaddrgen
//
// Every buffer handed out is recorded in a registry of live allocations.
// Release frees only registered buffers, so a foreign or already released
// pointer is logged and ignored instead of reaching free(3).
package ffi

/*
#include <stdlib.h>
*/
import "C"

import (
	"strings"
	"sync"
	"unsafe"

	"github.com/junocash-tools/juno-addrgen/pkg/addrgen"
)

var (
	mu   sync.Mutex
	live = make(map[unsafe.Pointer]int)

	deriver = addrgen.NewDeriver()
)

// ============================================================================
// Derivation entry points
// ============================================================================

// DeriveJSON derives the address at index for the NUL-terminated UFVK at
// ufvk and returns a C string holding the JSON envelope.
//
// Parameters:
//   - ufvk: Pointer to a NUL-terminated UTF-8 string (NULL yields the
//     ufvk_required error envelope)
//   - index: Diversifier index
//
// Returns:
//   - A malloc'd C string owned by the caller until passed to Release, or
//     nil if allocation failed
func DeriveJSON(ufvk unsafe.Pointer, index uint32) unsafe.Pointer {
	if ufvk == nil {
		return export(addrgen.ErrorJSON(addrgen.ErrUFVKRequired))
	}
	return export(deriver.DeriveJSON(goStringLossy(ufvk), index))
}

// BatchJSON derives count addresses starting at start. Ownership of the
// result follows DeriveJSON.
func BatchJSON(ufvk unsafe.Pointer, start, count uint32) unsafe.Pointer {
	if ufvk == nil {
		return export(addrgen.ErrorJSON(addrgen.ErrUFVKRequired))
	}
	return export(deriver.BatchJSON(goStringLossy(ufvk), start, count))
}

// ============================================================================
// Buffer ownership
// ============================================================================

// Release frees a buffer returned by DeriveJSON or BatchJSON. NULL is a
// no-op; unknown pointers and double releases are ignored.
func Release(p unsafe.Pointer) {
	if p == nil {
		return
	}

	mu.Lock()
	_, ok := live[p]
	if ok {
		delete(live, p)
	}
	mu.Unlock()

	if !ok {
		log.Warnf("Ignoring release of unknown buffer %p", p)
		return
	}
	C.free(p)
}

// Outstanding returns the number of buffers not yet released.
func Outstanding() int {
	mu.Lock()
	defer mu.Unlock()
	return len(live)
}

// GoString copies the content of a live buffer. It is meant for hosts
// written in Go and for tests.
func GoString(p unsafe.Pointer) string {
	if p == nil {
		return ""
	}
	return C.GoString((*C.char)(p))
}

// CString allocates a NUL-terminated copy of s with malloc. The caller frees
// it with FreeCString. It is the test-side stand-in for host memory.
func CString(s string) unsafe.Pointer {
	return unsafe.Pointer(C.CString(s))
}

// FreeCString frees memory from CString.
func FreeCString(p unsafe.Pointer) {
	C.free(p)
}

// export copies b into a malloc'd NUL-terminated buffer and registers it.
func export(b []byte) unsafe.Pointer {
	p := C.malloc(C.size_t(len(b) + 1))
	if p == nil {
		log.Errorf("malloc of %d bytes failed", len(b)+1)
		return nil
	}

	buf := unsafe.Slice((*byte)(p), len(b)+1)
	copy(buf, b)
	buf[len(b)] = 0

	mu.Lock()
	live[p] = len(b) + 1
	mu.Unlock()
	return p
}

// goStringLossy reads a NUL-terminated string, replacing invalid UTF-8.
func goStringLossy(p unsafe.Pointer) string {
	return strings.ToValidUTF8(C.GoString((*C.char)(p)), "\uFFFD")
}
