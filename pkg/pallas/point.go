// Package pallas implements the Pallas group operations needed by Orchard
// address derivation.
//
// Field arithmetic is delegated to the fiat-crypto generated Pasta fields in
// github.com/coinbase/kryptology (pasta/fp for the base field, pasta/fq for
// the scalar field). This package adds the group law on top of them:
// homogeneous projective coordinates with the complete addition and doubling
// formulas of Renes, Costello and Batina ("Complete addition formulas for
// prime order elliptic curves", algorithms 7 and 9 for a = 0), so that no
// operation branches on the value of its inputs.
//
// Curve: y^2 = x^3 + 5 over F_p,
//
//	p = 0x40000000000000000000000000000000224698fc094cf91b992d30ed00000001
//	q = 0x40000000000000000000000000000000224698fc0994a8dd8c46eb2100000001
//
// Corresponds to: pasta_curves/src/curves.rs (Ep) and the repr_P encoding in
// the Zcash protocol specification section 5.4.9.7.
package pallas

import (
	"crypto/subtle"
	"errors"

	"github.com/coinbase/kryptology/pkg/core/curves/native/pasta/fp"
	"github.com/coinbase/kryptology/pkg/core/curves/native/pasta/fq"
)

// Errors returned when decoding a point encoding.
var (
	ErrNonCanonical = errors.New("pallas: x-coordinate is not canonical")
	ErrNotOnCurve   = errors.New("pallas: encoding is not a point on the curve")
)

var (
	curveB  = new(fp.Fp).SetUint64(5)
	curveB3 = new(fp.Fp).SetUint64(15)
)

// Point is a Pallas point in homogeneous projective coordinates (X:Y:Z)
// representing the affine point (X/Z, Y/Z). The identity is (0:1:0).
//
// The zero value is not a valid point; use Identity or one of the
// constructors.
type Point struct {
	x, y, z fp.Fp
}

// Identity sets p to the group identity and returns p.
func (p *Point) Identity() *Point {
	p.x.SetZero()
	p.y.SetOne()
	p.z.SetZero()
	return p
}

// NewIdentity returns a new identity point.
func NewIdentity() *Point {
	return new(Point).Identity()
}

// Set sets p = q and returns p.
func (p *Point) Set(q *Point) *Point {
	*p = *q
	return p
}

// setAffine sets p to the affine point (x, y) without checking the curve
// equation.
func (p *Point) setAffine(x, y *fp.Fp) *Point {
	p.x.Set(x)
	p.y.Set(y)
	p.z.SetOne()
	return p
}

// IsIdentity reports whether p is the group identity.
func (p *Point) IsIdentity() bool {
	return p.z.IsZero()
}

// IsOnCurve reports whether p satisfies Y^2 Z = X^3 + 5 Z^3. The identity
// is on the curve.
func (p *Point) IsOnCurve() bool {
	lhs := new(fp.Fp).Square(&p.y)
	lhs.Mul(lhs, &p.z)

	z3 := new(fp.Fp).Square(&p.z)
	z3.Mul(z3, &p.z)
	z3.Mul(z3, curveB)

	rhs := new(fp.Fp).Square(&p.x)
	rhs.Mul(rhs, &p.x)
	rhs.Add(rhs, z3)

	return lhs.Equal(rhs) && !(p.z.IsZero() && p.y.IsZero())
}

// Equal reports whether p and q represent the same point.
func (p *Point) Equal(q *Point) bool {
	// (X1:Y1:Z1) = (X2:Y2:Z2) iff X1 Z2 = X2 Z1 and Y1 Z2 = Y2 Z1.
	x1 := new(fp.Fp).Mul(&p.x, &q.z)
	x2 := new(fp.Fp).Mul(&q.x, &p.z)
	y1 := new(fp.Fp).Mul(&p.y, &q.z)
	y2 := new(fp.Fp).Mul(&q.y, &p.z)
	return x1.Equal(x2) && y1.Equal(y2)
}

// Neg sets p = -q and returns p.
func (p *Point) Neg(q *Point) *Point {
	p.x.Set(&q.x)
	p.y.Neg(&q.y)
	p.z.Set(&q.z)
	return p
}

// Add sets p = a + b using the complete addition formula and returns p.
// It is valid for every pair of inputs, including the identity and a == b.
func (p *Point) Add(a, b *Point) *Point {
	var t0, t1, t2, t3, t4, x3, y3, z3 fp.Fp

	t0.Mul(&a.x, &b.x)
	t1.Mul(&a.y, &b.y)
	t2.Mul(&a.z, &b.z)
	t3.Add(&a.x, &a.y)
	t4.Add(&b.x, &b.y)
	t3.Mul(&t3, &t4)
	t4.Add(&t0, &t1)
	t3.Sub(&t3, &t4)
	t4.Add(&a.y, &a.z)
	x3.Add(&b.y, &b.z)
	t4.Mul(&t4, &x3)
	x3.Add(&t1, &t2)
	t4.Sub(&t4, &x3)
	x3.Add(&a.x, &a.z)
	y3.Add(&b.x, &b.z)
	x3.Mul(&x3, &y3)
	y3.Add(&t0, &t2)
	y3.Sub(&x3, &y3)
	x3.Add(&t0, &t0)
	t0.Add(&x3, &t0)
	t2.Mul(curveB3, &t2)
	z3.Add(&t1, &t2)
	t1.Sub(&t1, &t2)
	y3.Mul(curveB3, &y3)
	x3.Mul(&t4, &y3)
	t2.Mul(&t3, &t1)
	x3.Sub(&t2, &x3)
	y3.Mul(&y3, &t0)
	t1.Mul(&t1, &z3)
	y3.Add(&t1, &y3)
	t0.Mul(&t0, &t3)
	z3.Mul(&z3, &t4)
	z3.Add(&z3, &t0)

	p.x, p.y, p.z = x3, y3, z3
	return p
}

// Double sets p = 2q and returns p.
func (p *Point) Double(q *Point) *Point {
	var t0, t1, t2, x3, y3, z3 fp.Fp

	t0.Square(&q.y)
	z3.Add(&t0, &t0)
	z3.Add(&z3, &z3)
	z3.Add(&z3, &z3)
	t1.Mul(&q.y, &q.z)
	t2.Square(&q.z)
	t2.Mul(curveB3, &t2)
	x3.Mul(&t2, &z3)
	y3.Add(&t0, &t2)
	z3.Mul(&t1, &z3)
	t1.Add(&t2, &t2)
	t2.Add(&t1, &t2)
	t0.Sub(&t0, &t2)
	y3.Mul(&t0, &y3)
	y3.Add(&x3, &y3)
	t1.Mul(&q.x, &q.y)
	x3.Mul(&t0, &t1)
	x3.Add(&x3, &x3)

	p.x, p.y, p.z = x3, y3, z3
	return p
}

// AddIncomplete sets p = a + b when the incomplete addition law is defined
// for the pair: neither input is the identity and their x-coordinates
// differ. It returns false and leaves p unchanged otherwise. Sinsemilla is
// specified in terms of this partial operation.
func (p *Point) AddIncomplete(a, b *Point) bool {
	if a.IsIdentity() || b.IsIdentity() {
		return false
	}
	x1 := new(fp.Fp).Mul(&a.x, &b.z)
	x2 := new(fp.Fp).Mul(&b.x, &a.z)
	if x1.Equal(x2) {
		return false
	}
	p.Add(a, b)
	return true
}

// cmove sets p = q when choice == 1 and leaves p unchanged when choice == 0.
func (p *Point) cmove(q *Point, choice int) {
	p.x.CMove(&p.x, &q.x, choice)
	p.y.CMove(&p.y, &q.y, choice)
	p.z.CMove(&p.z, &q.z, choice)
}

// Mul sets p = [k] q and returns p.
//
// The scalar is processed in 64 fixed 4-bit windows from the most
// significant end. Each window adds a table entry selected by scanning the
// whole table with conditional moves, and every step uses the complete
// formulas, so the sequence of field operations and memory accesses is
// independent of k.
func (p *Point) Mul(q *Point, k *fq.Fq) *Point {
	var table [16]Point
	table[0].Identity()
	table[1].Set(q)
	for i := 2; i < 16; i++ {
		table[i].Add(&table[i-1], q)
	}

	kb := k.Bytes()
	defer wipe(kb[:])

	acc := NewIdentity()
	var sel Point
	for i := 63; i >= 0; i-- {
		acc.Double(acc)
		acc.Double(acc)
		acc.Double(acc)
		acc.Double(acc)

		w := (kb[i/2] >> (4 * uint(i%2))) & 0x0f
		sel.Identity()
		for j := range table {
			sel.cmove(&table[j], subtle.ConstantTimeByteEq(w, uint8(j)))
		}
		acc.Add(acc, &sel)
	}
	return p.Set(acc)
}

// Affine returns the affine coordinates of p. ok is false for the identity.
func (p *Point) Affine() (x, y fp.Fp, ok bool) {
	zInv, nonZero := new(fp.Fp).Invert(&p.z)
	if !nonZero {
		return x, y, false
	}
	x.Mul(&p.x, zInv)
	y.Mul(&p.y, zInv)
	return x, y, true
}

// ExtractX returns the x-coordinate of p, or zero for the identity
// (Extract_P in the protocol specification).
func (p *Point) ExtractX() fp.Fp {
	x, _, _ := p.Affine()
	return x
}

// Bytes returns the 32-byte repr_P encoding of p: the little-endian
// x-coordinate with the parity of y in bit 255. The identity encodes as 32
// zero bytes.
func (p *Point) Bytes() [32]byte {
	x, y, ok := p.Affine()
	if !ok {
		return [32]byte{}
	}
	out := x.Bytes()
	if y.IsOdd() {
		out[31] |= 0x80
	}
	return out
}

// SetBytes decodes a repr_P encoding into p. All-zero input decodes to the
// identity. Non-canonical x-coordinates and encodings that are not on the
// curve are rejected.
func (p *Point) SetBytes(in *[32]byte) (*Point, error) {
	if *in == [32]byte{} {
		return p.Identity(), nil
	}

	sign := in[31] >> 7
	xb := *in
	xb[31] &= 0x7f

	x, err := new(fp.Fp).SetBytes(&xb)
	if err != nil {
		return nil, ErrNonCanonical
	}

	// y^2 = x^3 + 5
	y2 := new(fp.Fp).Square(x)
	y2.Mul(y2, x)
	y2.Add(y2, curveB)

	y, square := new(fp.Fp).Sqrt(y2)
	if !square {
		return nil, ErrNotOnCurve
	}
	if y.IsZero() && sign == 1 {
		return nil, ErrNotOnCurve
	}
	if y.IsOdd() != (sign == 1) {
		y.Neg(y)
	}
	return p.setAffine(x, y), nil
}

// FromBytes is a convenience wrapper around SetBytes.
func FromBytes(in []byte) (*Point, error) {
	if len(in) != 32 {
		return nil, ErrNotOnCurve
	}
	var b [32]byte
	copy(b[:], in)
	return new(Point).SetBytes(&b)
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
