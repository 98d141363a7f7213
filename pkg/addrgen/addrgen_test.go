package addrgen

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junocash-tools/juno-addrgen/pkg/orchard"
	"github.com/junocash-tools/juno-addrgen/pkg/pallas"
	"github.com/junocash-tools/juno-addrgen/pkg/zip316"
)

type vectorFile struct {
	FVK       string `json:"fvk"`
	UFVK      string `json:"ufvk"`
	Addresses []struct {
		Index   uint32 `json:"index"`
		Address string `json:"address"`
	} `json:"addresses"`
	Networks map[string]struct {
		UFVK     string `json:"ufvk"`
		Address0 string `json:"address0"`
	} `json:"networks"`
}

func getTestDataPath() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "testdata", "vectors")
}

func loadVectors(t *testing.T) vectorFile {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(getTestDataPath(), "v1.json"))
	require.NoError(t, err, "Failed to read test vectors file")

	var v vectorFile
	require.NoError(t, json.Unmarshal(data, &v), "Failed to parse JSON")
	require.NotEmpty(t, v.Addresses)
	return v
}

// loadZcashVectors reads a zcash-test-vectors file.
// JSON format: [["comment"], ["field names"], [vector1], [vector2], ...]
func loadZcashVectors(t *testing.T, name string) [][]interface{} {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(getTestDataPath(), "zcash", name))
	require.NoError(t, err, "Failed to read test vectors file")

	var raw []json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw), "Failed to parse JSON")
	require.Greater(t, len(raw), 2, "No vectors in %s", name)

	rows := make([][]interface{}, 0, len(raw)-2)
	for i := 2; i < len(raw); i++ {
		var row []interface{}
		require.NoError(t, json.Unmarshal(raw[i], &row), "Failed to parse vector row %d", i)
		rows = append(rows, row)
	}
	return rows
}

func requireCode(t *testing.T, err error, code ErrorCode) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, CodeOf(err), "error: %v", err)
	assert.True(t, errors.Is(err, code))
}

// =============================================================================
// Derivation
// =============================================================================

func TestDeriveVectors(t *testing.T) {
	v := loadVectors(t)

	for _, tc := range v.Addresses {
		addr, err := Derive(v.UFVK, tc.Index)
		require.NoError(t, err, "index %d", tc.Index)
		assert.Equal(t, tc.Address, addr, "index %d", tc.Index)
	}
}

// Each Orchard key from zcash-test-vectors, wrapped as a Juno viewing key,
// must give its published default address at index 0.
func TestDeriveZcashKeyComponents(t *testing.T) {
	// sk, ask, ak, nk, rivk, ivk, ovk, dk, default_d, default_pk_d, ...
	for i, row := range loadZcashVectors(t, "orchard_key_components.json") {
		fvk, err := hex.DecodeString(row[2].(string) + row[3].(string) + row[4].(string))
		require.NoError(t, err)

		ufvk, err := zip316.Encode(MainNet.UFVKHRP, []zip316.Item{{Typecode: zip316.TypeOrchard, Data: fvk}})
		require.NoError(t, err)

		addr, err := Derive(ufvk, 0)
		require.NoError(t, err, "vector %d", i)

		items, err := zip316.Decode(addr, MainNet.AddressHRP)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, zip316.TypeOrchard, items[0].Typecode)
		assert.Equal(t, row[8].(string)+row[9].(string), hex.EncodeToString(items[0].Data), "vector %d", i)
	}
}

func TestBatchVectors(t *testing.T) {
	v := loadVectors(t)

	var want []string
	for _, tc := range v.Addresses {
		if tc.Index < 100 {
			want = append(want, tc.Address)
		}
	}
	require.Len(t, want, 100)

	got, err := Batch(v.UFVK, 0, 100)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestDeterminism(t *testing.T) {
	v := loadVectors(t)

	a := DeriveJSON(v.UFVK, 42)
	b := DeriveJSON(v.UFVK, 42)
	assert.Equal(t, a, b)

	c := BatchJSON(v.UFVK, 10, 5)
	d := BatchJSON(v.UFVK, 10, 5)
	assert.Equal(t, c, d)
}

func TestSingleMatchesBatch(t *testing.T) {
	v := loadVectors(t)

	for _, i := range []uint32{0, 1, 7, 1000, 0xFFFFFFFE, 0xFFFFFFFF} {
		single, err := Derive(v.UFVK, i)
		require.NoError(t, err)

		batch, err := Batch(v.UFVK, i, 1)
		require.NoError(t, err)
		require.Len(t, batch, 1)
		assert.Equal(t, single, batch[0], "index %d", i)
	}
}

func TestAddressesDistinct(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping distinctness sweep in short mode")
	}
	v := loadVectors(t)

	addrs, err := Batch(v.UFVK, 0, 1001)
	require.NoError(t, err)
	require.Len(t, addrs, 1001)

	seen := make(map[string]int, len(addrs))
	for i, a := range addrs {
		prev, dup := seen[a]
		require.False(t, dup, "indices %d and %d share an address", prev, i)
		seen[a] = i
		assert.True(t, strings.HasPrefix(a, "j1"))
	}
}

func TestWhitespaceIsTrimmed(t *testing.T) {
	v := loadVectors(t)

	addr, err := Derive("  "+v.UFVK+"\n", 0)
	require.NoError(t, err)
	assert.Equal(t, v.Addresses[0].Address, addr)
}

func TestConcurrentDerive(t *testing.T) {
	v := loadVectors(t)
	d := NewDeriver()

	var wg sync.WaitGroup
	results := make([]string, 8)
	errs := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = d.Derive(v.UFVK, uint32(i))
		}(i)
	}
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, v.Addresses[i].Address, results[i])
	}
}

// =============================================================================
// Networks
// =============================================================================

func TestNetworks(t *testing.T) {
	v := loadVectors(t)

	for name, tc := range v.Networks {
		t.Run(name, func(t *testing.T) {
			net, err := NetworkByName(name)
			require.NoError(t, err)

			d := NewDeriver(WithNetwork(net))
			addr, err := d.Derive(tc.UFVK, 0)
			require.NoError(t, err)
			assert.Equal(t, tc.Address0, addr)
			assert.True(t, strings.HasPrefix(addr, net.AddressHRP+"1"))

			// Same key material, different encoding.
			_, err = Derive(tc.UFVK, 0)
			requireCode(t, err, ErrWrongNetwork)
		})
	}
}

func TestWrongNetwork(t *testing.T) {
	v := loadVectors(t)

	_, err := NewDeriver(WithNetwork(TestNet)).Derive(v.UFVK, 0)
	requireCode(t, err, ErrWrongNetwork)

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Contains(t, e.Message, "mainnet")
}

func TestForeignPrefixIsWrongNetwork(t *testing.T) {
	v := loadVectors(t)
	fvk, err := hex.DecodeString(v.FVK)
	require.NoError(t, err)

	for _, hrp := range []string{"uview", "uviewtest", "jviewfoo"} {
		t.Run(hrp, func(t *testing.T) {
			ufvk, err := zip316.Encode(hrp, []zip316.Item{{Typecode: zip316.TypeOrchard, Data: fvk}})
			require.NoError(t, err)

			_, err = Decode(nil, ufvk)
			requireCode(t, err, ErrWrongNetwork)

			var e *Error
			require.ErrorAs(t, err, &e)
			assert.Contains(t, e.Message, hrp)

			_, err = Derive(ufvk, 0)
			requireCode(t, err, ErrWrongNetwork)

			_, err = Batch(ufvk, 0, 2)
			requireCode(t, err, ErrWrongNetwork)

			var env map[string]string
			require.NoError(t, json.Unmarshal(DeriveJSON(ufvk, 0), &env))
			assert.Equal(t, map[string]string{"status": "err", "error": "wrong_network"}, env)
		})
	}
}

func TestNetworkByName(t *testing.T) {
	tests := []struct {
		name string
		want *Network
	}{
		{"mainnet", MainNet},
		{"main", MainNet},
		{"MainNet", MainNet},
		{"testnet", TestNet},
		{"test", TestNet},
		{"regtest", RegTest},
	}
	for _, tc := range tests {
		got, err := NetworkByName(tc.name)
		require.NoError(t, err, tc.name)
		assert.Same(t, tc.want, got, tc.name)
	}

	_, err := NetworkByName("signet")
	assert.Error(t, err)
}

func TestDecode(t *testing.T) {
	v := loadVectors(t)

	vk, err := Decode(nil, v.UFVK)
	require.NoError(t, err)
	assert.Same(t, MainNet, vk.Network())

	enc := vk.fvk.Bytes()
	assert.Equal(t, v.FVK, hex.EncodeToString(enc[:]))

	vk.Zeroize()
}

// =============================================================================
// Malformed input
// =============================================================================

func TestMalformedKeys(t *testing.T) {
	v := loadVectors(t)
	fvk, err := hex.DecodeString(v.FVK)
	require.NoError(t, err)

	encode := func(items ...zip316.Item) string {
		s, err := zip316.Encode("jview", items)
		require.NoError(t, err)
		return s
	}

	flipped := []byte(v.UFVK)
	mid := len(flipped) / 2
	if flipped[mid] == 'q' {
		flipped[mid] = 'p'
	} else {
		flipped[mid] = 'q'
	}

	badAK := append([]byte{}, fvk...)
	badAK[0] = 2
	for i := 1; i < 32; i++ {
		badAK[i] = 0
	}

	tests := []struct {
		name string
		ufvk string
		code ErrorCode
	}{
		{"empty", "", ErrUFVKRequired},
		{"whitespace", " \t\n", ErrUFVKRequired},
		{"garbage", "not a viewing key", ErrInvalidFormat},
		{"mixed case", "J" + v.UFVK[1:], ErrInvalidFormat},
		{"truncated", v.UFVK[:len(v.UFVK)-10], ErrInvalidChecksum},
		{"flipped character", string(flipped), ErrInvalidChecksum},
		{"address instead of key", v.Addresses[0].Address, ErrWrongNetwork},
		{"sapling only", encode(zip316.Item{Typecode: zip316.TypeSapling, Data: make([]byte, 128)}), ErrUnsupportedKeyPool},
		{"orchard and sapling", encode(
			zip316.Item{Typecode: zip316.TypeSapling, Data: make([]byte, 128)},
			zip316.Item{Typecode: zip316.TypeOrchard, Data: fvk},
		), ErrUnsupportedKeyPool},
		{"short orchard item", encode(zip316.Item{Typecode: zip316.TypeOrchard, Data: fvk[:95]}), ErrInvalidFormat},
		{"invalid ak", encode(zip316.Item{Typecode: zip316.TypeOrchard, Data: badAK}), ErrInvalidFormat},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Derive(tc.ufvk, 0)
			requireCode(t, err, tc.code)

			_, err = Batch(tc.ufvk, 0, 3)
			requireCode(t, err, tc.code)

			var env map[string]string
			require.NoError(t, json.Unmarshal(DeriveJSON(tc.ufvk, 0), &env))
			assert.Equal(t, map[string]string{"status": "err", "error": string(tc.code)}, env)
		})
	}
}

// =============================================================================
// Batch edge cases
// =============================================================================

func TestBatchEmpty(t *testing.T) {
	v := loadVectors(t)

	out := BatchJSON(v.UFVK, 0, 0)
	assert.JSONEq(t, `{"status":"ok","start":0,"count":0,"addresses":[]}`, string(out))
	assert.Equal(t, `{"status":"ok","start":0,"count":0,"addresses":[]}`, string(out))

	addrs, err := Batch(v.UFVK, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, addrs)
}

func TestBatchRangeOverflow(t *testing.T) {
	v := loadVectors(t)

	out := BatchJSON(v.UFVK, 0xFFFFFFFF, 2)
	assert.Equal(t, `{"status":"err","error":"index_range_overflow"}`, string(out))

	_, err := Batch(v.UFVK, 0xFFFFFFFF, 2)
	requireCode(t, err, ErrIndexRangeOverflow)

	// The last index is still reachable.
	addrs, err := Batch(v.UFVK, 0xFFFFFFFF, 1)
	require.NoError(t, err)
	last := v.Addresses[len(v.Addresses)-1]
	require.Equal(t, uint32(0xFFFFFFFF), last.Index)
	assert.Equal(t, []string{last.Address}, addrs)
}

func TestBatchTooLarge(t *testing.T) {
	v := loadVectors(t)

	_, err := Batch(v.UFVK, 0, MaxBatchCount+1)
	requireCode(t, err, ErrBatchTooLarge)

	// Size is checked before the range and the key.
	_, err = Batch("", 0xFFFFFFFF, MaxBatchCount+1)
	requireCode(t, err, ErrBatchTooLarge)

	d := NewDeriver(WithMaxBatch(5))
	_, err = d.Batch(v.UFVK, 0, 6)
	requireCode(t, err, ErrBatchTooLarge)

	addrs, err := d.Batch(v.UFVK, 0, 5)
	require.NoError(t, err)
	assert.Len(t, addrs, 5)
}

func TestBatchEnvelope(t *testing.T) {
	v := loadVectors(t)

	var env struct {
		Status    string   `json:"status"`
		Start     uint32   `json:"start"`
		Count     uint32   `json:"count"`
		Addresses []string `json:"addresses"`
	}
	require.NoError(t, json.Unmarshal(BatchJSON(v.UFVK, 3, 2), &env))
	assert.Equal(t, StatusOK, env.Status)
	assert.Equal(t, uint32(3), env.Start)
	assert.Equal(t, uint32(2), env.Count)
	assert.Equal(t, []string{v.Addresses[3].Address, v.Addresses[4].Address}, env.Addresses)

	single := DeriveJSON(v.UFVK, 3)
	assert.Equal(t, `{"status":"ok","address":"`+v.Addresses[3].Address+`"}`, string(single))
}

// =============================================================================
// Degenerate diversifiers and internal failures
// =============================================================================

func TestDegenerateDiversifier(t *testing.T) {
	v := loadVectors(t)

	d := NewDeriver()
	d.diversifyHash = func(orchard.Diversifier) *pallas.Point {
		return pallas.NewIdentity()
	}

	out := d.DeriveJSON(v.UFVK, 0)
	assert.Equal(t, `{"status":"err","error":"degenerate_diversifier"}`, string(out))

	_, err := d.Batch(v.UFVK, 0, 10)
	requireCode(t, err, ErrDegenerateDiversifier)
}

func TestDegenerateFailsWholeBatch(t *testing.T) {
	v := loadVectors(t)

	calls := 0
	d := NewDeriver()
	d.diversifyHash = func(div orchard.Diversifier) *pallas.Point {
		calls++
		if calls == 3 {
			return pallas.NewIdentity()
		}
		return orchard.DiversifyHash(div)
	}

	out := d.BatchJSON(v.UFVK, 0, 5)
	assert.Equal(t, `{"status":"err","error":"degenerate_diversifier"}`, string(out))
	assert.Equal(t, 3, calls)
}

func TestPanicBecomesInternalError(t *testing.T) {
	v := loadVectors(t)

	d := NewDeriver()
	d.diversifyHash = func(orchard.Diversifier) *pallas.Point {
		panic("boom")
	}

	assert.Equal(t, internalEnvelope, string(d.DeriveJSON(v.UFVK, 0)))
	assert.Equal(t, internalEnvelope, string(d.BatchJSON(v.UFVK, 0, 2)))
}

func TestErrorFormatting(t *testing.T) {
	err := newError(ErrWrongNetwork, "viewing key is for testnet", nil)
	assert.Equal(t, "addrgen error [wrong_network]: viewing key is for testnet", err.Error())
	assert.Equal(t, "wrong_network", err.CodeString())

	cause := errors.New("bad bytes")
	wrapped := newError(ErrInvalidFormat, "malformed", cause)
	assert.ErrorIs(t, wrapped, cause)
	assert.ErrorIs(t, wrapped, ErrInvalidFormat)
	assert.NotErrorIs(t, wrapped, ErrInvalidChecksum)

	assert.Equal(t, ErrInternal, CodeOf(errors.New("other")))
	assert.Equal(t, ErrUFVKRequired, CodeOf(ErrUFVKRequired))
	assert.Equal(t, `{"status":"err","error":"ufvk_required"}`, string(ErrorJSON(ErrUFVKRequired)))
	assert.True(t, bytes.Equal([]byte(`{"status":"err","error":"internal"}`), ErrorJSON(errors.New("other"))))
}
