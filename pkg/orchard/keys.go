// Package orchard implements the parts of Orchard key derivation needed to
// turn a full viewing key into payment addresses: parsing and validating the
// key, deriving the incoming viewing key and diversifier key, and computing
// diversified transmission keys.
//
// Corresponds to: orchard/src/keys.rs and the Zcash protocol specification
// sections 4.2.3 and 5.6.4.
package orchard

import (
	"errors"
	"fmt"
	"hash"
	"sync"

	"github.com/coinbase/kryptology/pkg/core/curves/native/pasta/fp"
	"github.com/coinbase/kryptology/pkg/core/curves/native/pasta/fq"
	blake2b "github.com/minio/blake2b-simd"

	"github.com/junocash-tools/juno-addrgen/pkg/pallas"
	"github.com/junocash-tools/juno-addrgen/pkg/sinsemilla"
)

// FullViewingKeySize is the length of an encoded Orchard full viewing key.
const FullViewingKeySize = 96

const (
	expandSeedPersonalization = "Zcash_ExpandSeed"
	commitIvkPersonalization  = "z.cash:Orchard-CommitIvk"

	prfTagDkOvk        = 0x82
	prfTagRivkInternal = 0x83
)

// ErrInvalidFVK is returned for byte strings that are not a valid Orchard
// full viewing key.
var ErrInvalidFVK = errors.New("orchard: invalid full viewing key")

var (
	commitIvkOnce sync.Once
	commitIvkCD   *sinsemilla.CommitDomain
)

func commitIvkDomain() *sinsemilla.CommitDomain {
	commitIvkOnce.Do(func() {
		commitIvkCD = sinsemilla.NewCommitDomain(commitIvkPersonalization)
	})
	return commitIvkCD
}

// FullViewingKey is a parsed Orchard full viewing key (ak, nk, rivk).
type FullViewingKey struct {
	ak   [32]byte
	akX  fp.Fp
	nk   fp.Fp
	rivk fq.Fq
}

// IncomingViewingKey holds the diversifier key dk and the scalar ivk.
type IncomingViewingKey struct {
	dk  [32]byte
	ivk fq.Fq
}

// ParseFullViewingKey validates and parses the 96-byte encoding
// ak || nk || rivk.
//
// Parameters:
//   - b: Raw key bytes
//
// Returns:
//   - The parsed key
//   - An error wrapping ErrInvalidFVK if any component is invalid, or if
//     either the external or internal incoming viewing key is zero or
//     undefined
func ParseFullViewingKey(b []byte) (*FullViewingKey, error) {
	if len(b) != FullViewingKeySize {
		return nil, fmt.Errorf("%w: length %d", ErrInvalidFVK, len(b))
	}

	fvk := new(FullViewingKey)
	copy(fvk.ak[:], b[:32])

	// ak must be the encoding of a non-identity point with ỹ = 0.
	if fvk.ak[31]&0x80 != 0 {
		return nil, fmt.Errorf("%w: ak sign bit set", ErrInvalidFVK)
	}
	ak, err := new(pallas.Point).SetBytes(&fvk.ak)
	if err != nil {
		return nil, fmt.Errorf("%w: ak: %v", ErrInvalidFVK, err)
	}
	if ak.IsIdentity() {
		return nil, fmt.Errorf("%w: ak is the identity", ErrInvalidFVK)
	}
	fvk.akX = ak.ExtractX()

	var buf [32]byte
	copy(buf[:], b[32:64])
	if _, err := fvk.nk.SetBytes(&buf); err != nil {
		return nil, fmt.Errorf("%w: nk: %v", ErrInvalidFVK, err)
	}

	copy(buf[:], b[64:96])
	if _, err := fvk.rivk.SetBytes(&buf); err != nil {
		return nil, fmt.Errorf("%w: rivk: %v", ErrInvalidFVK, err)
	}

	if _, err := fvk.commitIvk(&fvk.rivk); err != nil {
		return nil, err
	}

	var wide [64]byte
	copy(wide[:], fvk.prfExpand(prfTagRivkInternal))
	rivkInternal := new(fq.Fq).SetBytesWide(&wide)
	wipe(wide[:])
	if _, err := fvk.commitIvk(rivkInternal); err != nil {
		return nil, fmt.Errorf("internal scope: %w", err)
	}
	rivkInternal.SetZero()

	return fvk, nil
}

// Bytes returns the 96-byte encoding of the key.
func (fvk *FullViewingKey) Bytes() [FullViewingKeySize]byte {
	var out [FullViewingKeySize]byte
	copy(out[:32], fvk.ak[:])
	nk := fvk.nk.Bytes()
	copy(out[32:64], nk[:])
	rivk := fvk.rivk.Bytes()
	copy(out[64:], rivk[:])
	return out
}

// IncomingViewingKey derives the external-scope incoming viewing key.
func (fvk *FullViewingKey) IncomingViewingKey() (*IncomingViewingKey, error) {
	ivk, err := fvk.commitIvk(&fvk.rivk)
	if err != nil {
		return nil, err
	}

	k := &IncomingViewingKey{ivk: *ivk}
	dkOvk := fvk.prfExpand(prfTagDkOvk)
	copy(k.dk[:], dkOvk[:32])
	wipe(dkOvk)
	ivk.SetZero()
	return k, nil
}

// OutgoingViewingKey derives the external-scope outgoing viewing key.
func (fvk *FullViewingKey) OutgoingViewingKey() [32]byte {
	var ovk [32]byte
	dkOvk := fvk.prfExpand(prfTagDkOvk)
	copy(ovk[:], dkOvk[32:])
	wipe(dkOvk)
	return ovk
}

// Zeroize clears the key components.
func (fvk *FullViewingKey) Zeroize() {
	wipe(fvk.ak[:])
	fvk.akX.SetZero()
	fvk.nk.SetZero()
	fvk.rivk.SetZero()
}

// commitIvk computes ivk = Commit^ivk_rivk(Extract_P(ak), nk) as a scalar.
func (fvk *FullViewingKey) commitIvk(rivk *fq.Fq) (*fq.Fq, error) {
	akX := fvk.akX.Bytes()
	nk := fvk.nk.Bytes()

	msg := make([]uint8, 0, 2*255)
	msg = sinsemilla.AppendBits(msg, akX[:], 255)
	msg = sinsemilla.AppendBits(msg, nk[:], 255)

	x, err := commitIvkDomain().ShortCommit(msg, rivk)
	wipe(msg)
	if err != nil {
		return nil, fmt.Errorf("%w: ivk undefined: %v", ErrInvalidFVK, err)
	}
	if x.IsZero() {
		return nil, fmt.Errorf("%w: ivk is zero", ErrInvalidFVK)
	}

	// The base field is smaller than the scalar field, so every x is a
	// canonical scalar.
	xb := x.Bytes()
	ivk, err := new(fq.Fq).SetBytes(&xb)
	wipe(xb[:])
	if err != nil {
		return nil, fmt.Errorf("%w: ivk: %v", ErrInvalidFVK, err)
	}
	return ivk, nil
}

// prfExpand computes PRF^expand_rivk(tag || ak || nk).
func (fvk *FullViewingKey) prfExpand(tag byte) []byte {
	rivk := fvk.rivk.Bytes()
	nk := fvk.nk.Bytes()

	h := newExpandSeed()
	h.Write(rivk[:])
	h.Write([]byte{tag})
	h.Write(fvk.ak[:])
	h.Write(nk[:])
	wipe(rivk[:])
	return h.Sum(nil)
}

func newExpandSeed() hash.Hash {
	h, err := blake2b.New(&blake2b.Config{
		Size:   blake2b.Size,
		Person: []byte(expandSeedPersonalization),
	})
	if err != nil {
		panic(err)
	}
	return h
}

// Zeroize clears the key material.
func (k *IncomingViewingKey) Zeroize() {
	wipe(k.dk[:])
	k.ivk.SetZero()
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
