// libjunoaddrgen exports the address generator as a C library.
//
// Build:
//
//	go build -buildmode=c-shared -o libjuno_addrgen.so ./cmd/libjunoaddrgen
//	go build -buildmode=c-archive -o libjuno_addrgen.a ./cmd/libjunoaddrgen
//
// The stable declarations are in include/juno_addrgen.h. Set
// JUNO_ADDRGEN_LOG to a log level (trace, debug, info, warn, error) to get
// diagnostics on stderr; the library is silent otherwise.
package main

/*
#include <stdint.h>
*/
import "C"

import (
	"fmt"
	"os"
	"unsafe"

	"github.com/junocash-tools/juno-addrgen/internal/logging"
	"github.com/junocash-tools/juno-addrgen/pkg/addrgen"
	"github.com/junocash-tools/juno-addrgen/pkg/ffi"
)

const logEnv = "JUNO_ADDRGEN_LOG"

func init() {
	level := os.Getenv(logEnv)
	if level == "" {
		return
	}

	_, err := logging.Setup(os.Stderr, level,
		logging.Subsystem{Tag: logging.TagAddrgen, Use: addrgen.UseLogger},
		logging.Subsystem{Tag: logging.TagFFI, Use: ffi.UseLogger},
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "libjuno_addrgen: %s: %v\n", logEnv, err)
	}
}

//export juno_addrgen_derive_json
func juno_addrgen_derive_json(ufvk *C.char, index C.uint32_t) *C.char {
	return (*C.char)(ffi.DeriveJSON(unsafe.Pointer(ufvk), uint32(index)))
}

//export juno_addrgen_batch_json
func juno_addrgen_batch_json(ufvk *C.char, start, count C.uint32_t) *C.char {
	return (*C.char)(ffi.BatchJSON(unsafe.Pointer(ufvk), uint32(start), uint32(count)))
}

//export juno_addrgen_string_free
func juno_addrgen_string_free(s *C.char) {
	ffi.Release(unsafe.Pointer(s))
}

func main() {}
