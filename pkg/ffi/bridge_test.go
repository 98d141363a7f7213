//go:build cgo

package ffi

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junocash-tools/juno-addrgen/pkg/addrgen"
)

type vectors struct {
	UFVK      string `json:"ufvk"`
	Addresses []struct {
		Index   uint32 `json:"index"`
		Address string `json:"address"`
	} `json:"addresses"`
	Networks map[string]struct {
		UFVK string `json:"ufvk"`
	} `json:"networks"`
}

func loadVectors(t *testing.T) vectors {
	t.Helper()
	_, filename, _, _ := runtime.Caller(0)
	path := filepath.Join(filepath.Dir(filename), "..", "..", "testdata", "vectors", "v1.json")

	data, err := os.ReadFile(path)
	require.NoError(t, err, "Failed to read test vectors file")

	var v vectors
	require.NoError(t, json.Unmarshal(data, &v), "Failed to parse JSON")
	return v
}

// withCString passes a host-owned C copy of s to fn.
func withCString(s string, fn func(p unsafe.Pointer)) {
	p := CString(s)
	defer FreeCString(p)
	fn(p)
}

// take copies and releases a returned buffer.
func take(t *testing.T, p unsafe.Pointer) string {
	t.Helper()
	require.NotNil(t, p)
	s := GoString(p)
	Release(p)
	return s
}

func TestDeriveJSON(t *testing.T) {
	v := loadVectors(t)

	withCString(v.UFVK, func(p unsafe.Pointer) {
		got := take(t, DeriveJSON(p, 0))
		assert.Equal(t, fmt.Sprintf(`{"status":"ok","address":"%s"}`, v.Addresses[0].Address), got)
	})
}

func TestBatchJSON(t *testing.T) {
	v := loadVectors(t)

	withCString(v.UFVK, func(p unsafe.Pointer) {
		var env struct {
			Status    string   `json:"status"`
			Start     uint32   `json:"start"`
			Count     uint32   `json:"count"`
			Addresses []string `json:"addresses"`
		}
		require.NoError(t, json.Unmarshal([]byte(take(t, BatchJSON(p, 1, 3))), &env))
		assert.Equal(t, "ok", env.Status)
		assert.Equal(t, uint32(1), env.Start)
		assert.Equal(t, uint32(3), env.Count)
		assert.Equal(t, []string{
			v.Addresses[1].Address,
			v.Addresses[2].Address,
			v.Addresses[3].Address,
		}, env.Addresses)

		assert.Equal(t, `{"status":"ok","start":0,"count":0,"addresses":[]}`, take(t, BatchJSON(p, 0, 0)))
		assert.Equal(t, `{"status":"err","error":"index_range_overflow"}`, take(t, BatchJSON(p, 0xFFFFFFFF, 2)))
		assert.Equal(t, `{"status":"err","error":"batch_too_large"}`, take(t, BatchJSON(p, 0, 100001)))
	})
}

func TestNullInput(t *testing.T) {
	assert.Equal(t, `{"status":"err","error":"ufvk_required"}`, take(t, DeriveJSON(nil, 0)))
	assert.Equal(t, `{"status":"err","error":"ufvk_required"}`, take(t, BatchJSON(nil, 0, 1)))
}

func TestMalformedInput(t *testing.T) {
	v := loadVectors(t)

	// The vector key ends in 'n'; 'o' is outside the bech32 charset.
	flipped := []byte(v.UFVK)
	require.Equal(t, byte('n'), flipped[len(flipped)-1])
	flipped[len(flipped)-1] = 'o'

	tests := []struct {
		name  string
		input string
		code  string
	}{
		{"empty", "", "ufvk_required"},
		{"invalid utf-8", "\xff\xfe\xfd", "invalid_format"},
		{"truncated", v.UFVK[:40], "invalid_checksum"},
		{"swapped prefix", "jviewtest" + v.UFVK[len("jview"):], "invalid_checksum"},
		{"wrong network", v.Networks["testnet"].UFVK, "wrong_network"},
		{"non-charset character", string(flipped), "invalid_format"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			withCString(tc.input, func(p unsafe.Pointer) {
				want := fmt.Sprintf(`{"status":"err","error":"%s"}`, tc.code)
				assert.Equal(t, want, take(t, DeriveJSON(p, 0)))
				assert.Equal(t, want, take(t, BatchJSON(p, 0, 2)))
			})
		})
	}
}

// The "error" field is a code callers can switch on, so every code must be
// listed in the public header.
func TestErrorCodesInHeader(t *testing.T) {
	_, filename, _, _ := runtime.Caller(0)
	header, err := os.ReadFile(filepath.Join(filepath.Dir(filename), "..", "..", "include", "juno_addrgen.h"))
	require.NoError(t, err)

	codes := []addrgen.ErrorCode{
		addrgen.ErrInvalidFormat,
		addrgen.ErrInvalidChecksum,
		addrgen.ErrWrongNetwork,
		addrgen.ErrUnsupportedKeyPool,
		addrgen.ErrDegenerateDiversifier,
		addrgen.ErrIndexRangeOverflow,
		addrgen.ErrBatchTooLarge,
		addrgen.ErrUFVKRequired,
		addrgen.ErrInternal,
	}
	for _, code := range codes {
		assert.Contains(t, string(header), string(code))
	}

	withCString("not a viewing key", func(p unsafe.Pointer) {
		var env map[string]string
		require.NoError(t, json.Unmarshal([]byte(take(t, DeriveJSON(p, 0))), &env))
		assert.Len(t, env, 2)
		assert.Equal(t, string(addrgen.ErrInvalidFormat), env["error"])
		assert.False(t, strings.ContainsAny(env["error"], " :"), env["error"])
	})
}

func TestOwnership(t *testing.T) {
	v := loadVectors(t)
	base := Outstanding()

	inputs := []string{v.UFVK, "", "garbage", v.UFVK + "x"}
	var outs []unsafe.Pointer
	for i := 0; i < 40; i++ {
		withCString(inputs[i%len(inputs)], func(p unsafe.Pointer) {
			if i%2 == 0 {
				outs = append(outs, DeriveJSON(p, uint32(i)))
			} else {
				outs = append(outs, BatchJSON(p, uint32(i), 2))
			}
		})
	}
	outs = append(outs, DeriveJSON(nil, 0))

	assert.Equal(t, base+len(outs), Outstanding())

	for _, p := range outs {
		require.NotNil(t, p)
		var env map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(GoString(p)), &env))
		assert.Contains(t, []interface{}{"ok", "err"}, env["status"])
		Release(p)
	}
	assert.Equal(t, base, Outstanding())

	// Double release is ignored.
	for _, p := range outs {
		Release(p)
	}
	assert.Equal(t, base, Outstanding())
}

func TestReleaseForeignPointer(t *testing.T) {
	base := Outstanding()

	Release(nil)

	p := CString("not ours")
	Release(p)
	assert.Equal(t, "not ours", GoString(p), "foreign buffer must be left alone")
	FreeCString(p)

	assert.Equal(t, base, Outstanding())
}
