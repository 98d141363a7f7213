// Package addrgen provides the high-level API for deriving Juno Cash
// Orchard-only unified addresses from a unified full viewing key.
//
// This is the main entry point for applications using the library. It
// exposes four operations:
//
//  1. Decode - Parses and validates a UFVK for a network
//  2. Derive - Derives the address at one diversifier index
//  3. Batch - Derives the addresses for a contiguous index range
//  4. DeriveJSON / BatchJSON - The same operations wrapped in the JSON
//     envelope returned across the C ABI
//
// Corresponds to: juno-addrgen rust/addrgen/src/lib.rs
package addrgen

import (
	"errors"
	"fmt"
	"strings"

	"github.com/junocash-tools/juno-addrgen/pkg/orchard"
	"github.com/junocash-tools/juno-addrgen/pkg/zip316"
)

// MaxBatchCount is the default upper bound on the count of a batch.
const MaxBatchCount = 100000

// indexDomain is the number of valid 32-bit diversifier indices.
const indexDomain = uint64(1) << 32

// ViewingKey is a decoded and validated Orchard full viewing key bound to
// the network it was encoded for.
type ViewingKey struct {
	net *Network
	fvk *orchard.FullViewingKey
}

// Network returns the network the key was decoded for.
func (k *ViewingKey) Network() *Network {
	return k.net
}

// Zeroize clears the key material.
func (k *ViewingKey) Zeroize() {
	k.fvk.Zeroize()
}

// Decode parses a UFVK string for net. Surrounding whitespace is ignored.
//
// Parameters:
//   - net: Expected network (nil selects MainNet)
//   - ufvk: The encoded viewing key
//
// Returns:
//   - The validated viewing key
//   - An *Error with one of ErrUFVKRequired, ErrInvalidFormat,
//     ErrInvalidChecksum, ErrWrongNetwork or ErrUnsupportedKeyPool
func Decode(net *Network, ufvk string) (*ViewingKey, error) {
	if net == nil {
		net = MainNet
	}

	ufvk = strings.TrimSpace(ufvk)
	if ufvk == "" {
		return nil, newError(ErrUFVKRequired, "viewing key is empty", nil)
	}

	items, err := zip316.Decode(ufvk, net.UFVKHRP)
	if err != nil {
		return nil, mapDecodeError(net, err)
	}

	value, ok := zip316.Find(items, zip316.TypeOrchard)
	if !ok {
		return nil, newError(ErrUnsupportedKeyPool, "viewing key has no Orchard component", nil)
	}
	if len(items) != 1 {
		return nil, newError(ErrUnsupportedKeyPool,
			fmt.Sprintf("viewing key carries %d components, only Orchard is supported", len(items)), nil)
	}

	fvk, err := orchard.ParseFullViewingKey(value)
	if err != nil {
		return nil, newError(ErrInvalidFormat, "invalid Orchard full viewing key", err)
	}

	return &ViewingKey{net: net, fvk: fvk}, nil
}

func mapDecodeError(net *Network, err error) error {
	var de *zip316.DecodeError
	if !errors.As(err, &de) {
		return newError(ErrInternal, "viewing key decode failed", err)
	}

	switch de.Kind {
	case zip316.KindChecksum:
		return newError(ErrInvalidChecksum, "viewing key checksum mismatch", err)
	case zip316.KindNetwork:
		// Any well-formed key under a foreign prefix is a network mismatch,
		// whether or not the prefix belongs to a known Juno Cash network.
		if other := networkByUFVKHRP(de.HRP); other != nil {
			return newError(ErrWrongNetwork,
				fmt.Sprintf("viewing key is for %s, expected %s", other.Name, net.Name), nil)
		}
		return newError(ErrWrongNetwork,
			fmt.Sprintf("viewing key prefix %q is not %s (expected %q)", de.HRP, net.Name, net.UFVKHRP), nil)
	default:
		return newError(ErrInvalidFormat, "malformed viewing key", err)
	}
}

// Option configures a Deriver.
type Option func(*Deriver)

// WithNetwork selects the network used for decoding keys and encoding
// addresses. The default is MainNet.
func WithNetwork(net *Network) Option {
	return func(d *Deriver) {
		if net != nil {
			d.net = net
		}
	}
}

// WithMaxBatch overrides MaxBatchCount.
func WithMaxBatch(n uint32) Option {
	return func(d *Deriver) {
		d.maxBatch = n
	}
}

// Deriver derives addresses for one network. A Deriver holds no key
// material and is safe for concurrent use.
type Deriver struct {
	net      *Network
	maxBatch uint32

	// diversifyHash replaces orchard.DiversifyHash when set (tests only).
	diversifyHash orchard.DiversifyHasher
}

// NewDeriver creates a Deriver with the given options applied.
func NewDeriver(opts ...Option) *Deriver {
	d := &Deriver{
		net:      MainNet,
		maxBatch: MaxBatchCount,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Network returns the network the Deriver encodes for.
func (d *Deriver) Network() *Network {
	return d.net
}

// Derive returns the unified address at index for the given UFVK.
func (d *Deriver) Derive(ufvk string, index uint32) (string, error) {
	addrs, err := d.derive(ufvk, index, 1)
	if err != nil {
		return "", err
	}
	return addrs[0], nil
}

// Batch returns the unified addresses for indices [start, start+count), in
// order. The batch is atomic: any failure fails the whole call.
//
// Parameters:
//   - ufvk: The encoded viewing key
//   - start: First diversifier index
//   - count: Number of addresses (0 returns an empty list)
//
// Returns:
//   - The addresses in index order
//   - An *Error; ErrBatchTooLarge and ErrIndexRangeOverflow are checked
//     before the key is decoded
func (d *Deriver) Batch(ufvk string, start, count uint32) ([]string, error) {
	if count > d.maxBatch {
		return nil, newError(ErrBatchTooLarge,
			fmt.Sprintf("count %d exceeds maximum %d", count, d.maxBatch), nil)
	}
	if uint64(start)+uint64(count) > indexDomain {
		return nil, newError(ErrIndexRangeOverflow,
			fmt.Sprintf("range %d+%d exceeds the index domain", start, count), nil)
	}
	return d.derive(ufvk, start, count)
}

// derive decodes the key once and derives count consecutive addresses.
func (d *Deriver) derive(ufvk string, start, count uint32) ([]string, error) {
	vk, err := Decode(d.net, ufvk)
	if err != nil {
		log.Debugf("Decode failed: %s", CodeOf(err))
		return nil, err
	}
	defer vk.Zeroize()

	ivk, err := vk.fvk.IncomingViewingKey()
	if err != nil {
		return nil, newError(ErrInvalidFormat, "invalid Orchard full viewing key", err)
	}
	defer ivk.Zeroize()

	out := make([]string, 0, count)
	for i := uint64(0); i < uint64(count); i++ {
		index := start + uint32(i)
		addr, err := d.address(ivk, index)
		if err != nil {
			log.Debugf("Derivation failed at index %d: %s", index, CodeOf(err))
			return nil, err
		}
		out = append(out, addr)
	}

	log.Debugf("Derived %d %s address(es) from index %d", count, d.net, start)
	return out, nil
}

func (d *Deriver) address(ivk *orchard.IncomingViewingKey, index uint32) (string, error) {
	div, err := ivk.Diversifier(orchard.IndexFromUint32(index))
	if err != nil {
		return "", newError(ErrInternal, "diversifier derivation failed", err)
	}

	addr, err := ivk.Address(div, d.diversifyHash)
	if errors.Is(err, orchard.ErrDegenerateDiversifier) {
		return "", newError(ErrDegenerateDiversifier,
			fmt.Sprintf("index %d yields a degenerate diversifier", index), err)
	} else if err != nil {
		return "", newError(ErrInternal, "address derivation failed", err)
	}

	raw := addr.Bytes()
	ua, err := zip316.Encode(d.net.AddressHRP, []zip316.Item{
		{Typecode: zip316.TypeOrchard, Data: raw[:]},
	})
	if err != nil {
		return "", newError(ErrInternal, "address encoding failed", err)
	}
	return ua, nil
}

var defaultDeriver = NewDeriver()

// Derive returns the mainnet unified address at index for the given UFVK.
func Derive(ufvk string, index uint32) (string, error) {
	return defaultDeriver.Derive(ufvk, index)
}

// Batch returns the mainnet unified addresses for [start, start+count).
func Batch(ufvk string, start, count uint32) ([]string, error) {
	return defaultDeriver.Batch(ufvk, start, count)
}
