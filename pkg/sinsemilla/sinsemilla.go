// Package sinsemilla implements the Sinsemilla hash and commitment over
// Pallas, restricted to what Orchard key derivation uses (CommitIvk).
//
// Corresponds to: halo2_gadgets/src/sinsemilla/primitives.rs and the Zcash
// protocol specification section 5.4.1.9.
package sinsemilla

import (
	"encoding/binary"
	"errors"
	"sync"

	"github.com/coinbase/kryptology/pkg/core/curves/native/pasta/fp"
	"github.com/coinbase/kryptology/pkg/core/curves/native/pasta/fq"

	"github.com/junocash-tools/juno-addrgen/pkg/pallas"
)

const (
	// K is the number of message bits absorbed per step.
	K = 10

	// C is the maximum number of steps.
	C = 253

	qPersonalization = "z.cash:SinsemillaQ"
	sPersonalization = "z.cash:SinsemillaS"
)

// ErrBottom is returned when the incomplete addition law is undefined for
// an intermediate step (the result is ⊥ in the protocol specification).
var ErrBottom = errors.New("sinsemilla: exceptional case in incomplete addition")

// ErrMessageTooLong is returned for messages longer than K*C bits.
var ErrMessageTooLong = errors.New("sinsemilla: message too long")

var (
	sTableOnce sync.Once
	sTable     [1 << K]pallas.Point
)

// s returns S(j) = GroupHash^P("z.cash:SinsemillaS", I2LEOSP32(j)).
func s(j uint32) *pallas.Point {
	sTableOnce.Do(func() {
		var buf [4]byte
		for i := range sTable {
			binary.LittleEndian.PutUint32(buf[:], uint32(i))
			sTable[i].Set(pallas.GroupHash(sPersonalization, buf[:]))
		}
	})
	return &sTable[j]
}

// HashToPoint computes SinsemillaHashToPoint(domain, msg) where msg is a
// sequence of bits (one bit per byte, values 0 or 1).
func HashToPoint(domain string, msg []uint8) (*pallas.Point, error) {
	if len(msg) > K*C {
		return nil, ErrMessageTooLong
	}

	acc := pallas.GroupHash(qPersonalization, []byte(domain))

	n := (len(msg) + K - 1) / K
	var step pallas.Point
	for i := 0; i < n; i++ {
		var chunk uint32
		for j := 0; j < K; j++ {
			idx := i*K + j
			if idx < len(msg) && msg[idx] != 0 {
				chunk |= 1 << uint(j)
			}
		}

		// Acc = (Acc + S(m_i)) + Acc
		if !step.AddIncomplete(acc, s(chunk)) {
			return nil, ErrBottom
		}
		if !acc.AddIncomplete(&step, acc) {
			return nil, ErrBottom
		}
	}
	return acc, nil
}

// CommitDomain holds the two bases used by SinsemillaCommit for one
// personalization: the hash domain D || "-M" and the blinding base
// GroupHash^P(D || "-r", "").
type CommitDomain struct {
	hashDomain string
	r          *pallas.Point
}

// NewCommitDomain builds the commitment domain for the personalization d.
func NewCommitDomain(d string) *CommitDomain {
	return &CommitDomain{
		hashDomain: d + "-M",
		r:          pallas.GroupHash(d+"-r", nil),
	}
}

// Commit computes SinsemillaCommit_r(D, msg) = HashToPoint(D || "-M", msg)
// + [r] R. The blinding multiplication is constant time in r.
func (cd *CommitDomain) Commit(msg []uint8, r *fq.Fq) (*pallas.Point, error) {
	h, err := HashToPoint(cd.hashDomain, msg)
	if err != nil {
		return nil, err
	}
	blind := new(pallas.Point).Mul(cd.r, r)
	return h.Add(h, blind), nil
}

// ShortCommit computes SinsemillaShortCommit_r(D, msg), the x-coordinate of
// the commitment.
func (cd *CommitDomain) ShortCommit(msg []uint8, r *fq.Fq) (fp.Fp, error) {
	c, err := cd.Commit(msg, r)
	if err != nil {
		return fp.Fp{}, err
	}
	return c.ExtractX(), nil
}

// AppendBits appends the l least significant bits of the little-endian
// byte string b to dst, least significant first (I2LEBSP_l).
func AppendBits(dst []uint8, b []byte, l int) []uint8 {
	for i := 0; i < l; i++ {
		dst = append(dst, (b[i/8]>>(uint(i)%8))&1)
	}
	return dst
}
