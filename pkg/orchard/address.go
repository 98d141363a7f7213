package orchard

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/capitalone/fpe/ff1"

	"github.com/junocash-tools/juno-addrgen/pkg/pallas"
)

const (
	// DiversifierSize is the length of a diversifier and of a diversifier
	// index.
	DiversifierSize = 11

	// AddressSize is the length of a raw Orchard receiver d || pk_d.
	AddressSize = DiversifierSize + 32

	gdPersonalization = "z.cash:Orchard-gd"
)

// ErrDegenerateDiversifier is returned when a diversifier yields the
// identity for g_d or pk_d.
var ErrDegenerateDiversifier = errors.New("orchard: degenerate diversifier")

// DiversifierIndex is an 88-bit little-endian diversifier index.
type DiversifierIndex [DiversifierSize]byte

// Diversifier is the 11-byte value mixed into an address.
type Diversifier [DiversifierSize]byte

// DiversifyHasher maps a diversifier to the base point g_d.
type DiversifyHasher func(d Diversifier) *pallas.Point

// Address is a raw Orchard payment address.
type Address struct {
	Diversifier Diversifier
	PkD         [32]byte
}

// IndexFromUint32 widens a 32-bit index to a diversifier index.
func IndexFromUint32(i uint32) DiversifierIndex {
	var j DiversifierIndex
	binary.LittleEndian.PutUint32(j[:], i)
	return j
}

// DiversifyHash computes g_d = GroupHash^P("z.cash:Orchard-gd", d), using
// the empty message instead when d maps to the identity.
func DiversifyHash(d Diversifier) *pallas.Point {
	g := pallas.GroupHash(gdPersonalization, d[:])
	if g.IsIdentity() {
		return pallas.GroupHash(gdPersonalization, nil)
	}
	return g
}

// Diversifier computes d = FF1-AES256_dk(j). The transform is a permutation
// of the 88-bit index space, so distinct indices give distinct diversifiers.
func (k *IncomingViewingKey) Diversifier(j DiversifierIndex) (Diversifier, error) {
	// A Cipher shares its CBC state, so one is built per call.
	cipher, err := ff1.NewCipher(2, 0, k.dk[:], nil)
	if err != nil {
		return Diversifier{}, fmt.Errorf("orchard: ff1 setup: %w", err)
	}

	out, err := cipher.Encrypt(bitString(j[:]))
	if err != nil {
		return Diversifier{}, fmt.Errorf("orchard: ff1 encrypt: %w", err)
	}

	var d Diversifier
	if err := parseBitString(d[:], out); err != nil {
		return Diversifier{}, err
	}
	return d, nil
}

// Address computes the payment address for diversifier d. A nil hasher
// selects DiversifyHash.
//
// Parameters:
//   - d: The diversifier
//   - hasher: Maps d to g_d
//
// Returns:
//   - The address (d, pk_d = [ivk] g_d)
//   - ErrDegenerateDiversifier if g_d or pk_d is the identity
func (k *IncomingViewingKey) Address(d Diversifier, hasher DiversifyHasher) (*Address, error) {
	if hasher == nil {
		hasher = DiversifyHash
	}

	gd := hasher(d)
	if gd == nil || gd.IsIdentity() {
		return nil, ErrDegenerateDiversifier
	}

	pkd := new(pallas.Point).Mul(gd, &k.ivk)
	if pkd.IsIdentity() {
		return nil, ErrDegenerateDiversifier
	}

	return &Address{Diversifier: d, PkD: pkd.Bytes()}, nil
}

// AddressAt derives the address at index j with the default hasher.
func (k *IncomingViewingKey) AddressAt(j DiversifierIndex) (*Address, error) {
	d, err := k.Diversifier(j)
	if err != nil {
		return nil, err
	}
	return k.Address(d, nil)
}

// Bytes returns the raw receiver encoding d || repr_P(pk_d).
func (a *Address) Bytes() [AddressSize]byte {
	var out [AddressSize]byte
	copy(out[:DiversifierSize], a.Diversifier[:])
	copy(out[DiversifierSize:], a.PkD[:])
	return out
}

// bitString renders b as radix-2 numerals, bit i of the little-endian input
// becoming numeral i.
func bitString(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b) * 8)
	for i := 0; i < len(b)*8; i++ {
		sb.WriteByte('0' + (b[i/8]>>(uint(i)%8))&1)
	}
	return sb.String()
}

func parseBitString(dst []byte, s string) error {
	if len(s) != len(dst)*8 {
		return fmt.Errorf("orchard: ff1 output length %d", len(s))
	}
	for i := range dst {
		dst[i] = 0
	}
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '0':
		case '1':
			dst[i/8] |= 1 << (uint(i) % 8)
		default:
			return fmt.Errorf("orchard: ff1 output numeral %q", s[i])
		}
	}
	return nil
}
