package pallas

import (
	"github.com/coinbase/kryptology/pkg/core/curves/native/pasta/fp"
	"github.com/minio/blake2b-simd"
)

// Hash-to-curve for Pallas as used by Zcash (GroupHash^P): hash_to_field
// with expand_message_xmd over BLAKE2b-512, the simplified SWU map onto the
// 3-isogenous curve iso-Pallas, and the isogeny back to Pallas.
//
// Corresponds to: pasta_curves/src/hashtocurve.rs and the Zcash protocol
// specification section 5.4.9.8.

const (
	curveID   = "pallas"
	dstSuffix = "_XMD:BLAKE2b_SSWU_RO_"

	// hashLen is the BLAKE2b-512 output size (b_in_bytes), which is also the
	// length L of each field element's uniform bytes.
	hashLen = 64

	// blockLen is the BLAKE2b input block size (r_in_bytes). Z_pad is one
	// zero block.
	blockLen = 128

	// uniformLen is len_in_bytes: two field elements.
	uniformLen = 2 * hashLen
)

// iso-Pallas: y^2 = x^3 + A'x + B'.
var (
	isoA  = new(fp.Fp).SetRaw(&[4]uint64{0x92bb4b0b657a014b, 0xb74134581a27a59f, 0x49be2d7258370742, 0x18354a2eb0ea8c9c})
	isoB  = new(fp.Fp).SetUint64(1265)
	sswuZ = new(fp.Fp).Neg(new(fp.Fp).SetUint64(13))
)

// Coefficients of the 3-isogeny iso-Pallas -> Pallas.
var isogenyConstants = [13]*fp.Fp{
	new(fp.Fp).SetRaw(&[4]uint64{0x775f6034aaaaaaab, 0x4081775473d8375b, 0xe38e38e38e38e38e, 0x0e38e38e38e38e38}),
	new(fp.Fp).SetRaw(&[4]uint64{0x8cf863b02814fb76, 0x0f93b82ee4b99495, 0x267c7ffa51cf412a, 0x3509afd51872d88e}),
	new(fp.Fp).SetRaw(&[4]uint64{0x0eb64faef37ea4f7, 0x380af066cfeb6d69, 0x98c7d7ac3d98fd13, 0x17329b9ec5253753}),
	new(fp.Fp).SetRaw(&[4]uint64{0xeebec06955555580, 0x8102eea8e7b06eb6, 0xc71c71c71c71c71c, 0x1c71c71c71c71c71}),
	new(fp.Fp).SetRaw(&[4]uint64{0xc47f2ab668bcd71f, 0x9c434ac1c96b6980, 0x5a607fcce0494a79, 0x1d572e7ddc099cff}),
	new(fp.Fp).SetRaw(&[4]uint64{0x2aa3af1eae5b6604, 0xb4abf9fb9a1fc81c, 0x1d13bf2a7f22b105, 0x325669becaecd5d1}),
	new(fp.Fp).SetRaw(&[4]uint64{0x5ad985b5e38e38e4, 0x7642b01ad461bad2, 0x4bda12f684bda12f, 0x1a12f684bda12f68}),
	new(fp.Fp).SetRaw(&[4]uint64{0xc67c31d8140a7dbb, 0x07c9dc17725cca4a, 0x133e3ffd28e7a095, 0x1a84d7ea8c396c47}),
	new(fp.Fp).SetRaw(&[4]uint64{0x02e2be87d225b234, 0x1765e924f7459378, 0x303216cce1db9ff1, 0x3fb98ff0d2ddcadd}),
	new(fp.Fp).SetRaw(&[4]uint64{0x93e53ab371c71c4f, 0x0ac03e8e134eb3e4, 0x7b425ed097b425ed, 0x025ed097b425ed09}),
	new(fp.Fp).SetRaw(&[4]uint64{0x5a28279b1d1b42ae, 0x5941a3a4a97aa1b3, 0x0790bfb3506defb6, 0x0c02c5bcca0e6b7f}),
	new(fp.Fp).SetRaw(&[4]uint64{0x4d90ab820b12320a, 0xd976bbfabbc5661d, 0x573b3d7f7d681310, 0x17033d3c60c68173}),
	new(fp.Fp).SetRaw(&[4]uint64{0x992d30ecfffffde5, 0x224698fc094cf91b, 0x0000000000000000, 0x4000000000000000}),
}

// GroupHash returns GroupHash^P(domain, msg).
//
// Parameters:
//   - domain: personalization string, e.g. "z.cash:Orchard-gd"
//   - msg: message bytes
//
// Returns the resulting point. The result is the identity only with
// negligible probability; callers that cannot accept the identity check for
// it.
func GroupHash(domain string, msg []byte) *Point {
	u0, u1 := hashToField(domain, msg)

	var q0, q1 Point
	mapToCurve(&q0, &u0)
	mapToCurve(&q1, &u1)
	return new(Point).Add(&q0, &q1)
}

// Hasher returns a function computing GroupHash^P(domain, ·).
func Hasher(domain string) func(msg []byte) *Point {
	return func(msg []byte) *Point {
		return GroupHash(domain, msg)
	}
}

// hashToField derives two base field elements from (domain, msg) with
// expand_message_xmd (len_in_bytes = 128) over BLAKE2b-512, whose message
// is prefixed with one zero block of blockLen bytes. The hash is used
// with an all-zero personalization, which is the unpersonalized BLAKE2b-512.
func hashToField(domain string, msg []byte) (u0, u1 fp.Fp) {
	dst := make([]byte, 0, len(domain)+1+len(curveID)+len(dstSuffix)+1)
	dst = append(dst, domain...)
	dst = append(dst, '-')
	dst = append(dst, curveID...)
	dst = append(dst, dstSuffix...)
	dst = append(dst, byte(len(dst)))

	h := blake2b.New512()
	h.Write(make([]byte, blockLen))
	h.Write(msg)
	h.Write([]byte{byte(uniformLen >> 8), byte(uniformLen), 0})
	h.Write(dst)
	b0 := h.Sum(nil)

	h.Reset()
	h.Write(b0)
	h.Write([]byte{1})
	h.Write(dst)
	b1 := h.Sum(nil)

	prev := make([]byte, hashLen)
	for i := range prev {
		prev[i] = b0[i] ^ b1[i]
	}
	h.Reset()
	h.Write(prev)
	h.Write([]byte{2})
	h.Write(dst)
	b2 := h.Sum(nil)

	fieldFromBigEndian(&u0, b1)
	fieldFromBigEndian(&u1, b2)
	return u0, u1
}

// fieldFromBigEndian reduces a 64-byte big-endian integer modulo p.
func fieldFromBigEndian(out *fp.Fp, be []byte) {
	var little [64]byte
	for i := range little {
		little[i] = be[len(be)-1-i]
	}
	out.SetBytesWide(&little)
}

// mapToCurve sets out to iso_map(map_to_curve_simple_swu(u)).
func mapToCurve(out *Point, u *fp.Fp) {
	x, y := simpleSWU(u)
	isoMap(out, &x, &y)
}

// simpleSWU maps u to an affine point on iso-Pallas. The inputs are public
// (derived from public domain strings and messages), so the exceptional case
// is handled with a branch.
func simpleSWU(u *fp.Fp) (x, y fp.Fp) {
	zu2 := new(fp.Fp).Square(u)
	zu2.Mul(zu2, sswuZ)

	// tv = Z^2 u^4 + Z u^2
	tv := new(fp.Fp).Square(zu2)
	tv.Add(tv, zu2)

	x1 := new(fp.Fp)
	if tv.IsZero() {
		// x1 = B / (Z A)
		den := new(fp.Fp).Mul(sswuZ, isoA)
		den.Invert(den)
		x1.Mul(isoB, den)
	} else {
		// x1 = (-B / A) (1 + 1/tv)
		tvInv, _ := new(fp.Fp).Invert(tv)
		tvInv.Add(tvInv, new(fp.Fp).SetOne())
		aInv, _ := new(fp.Fp).Invert(isoA)
		x1.Neg(isoB)
		x1.Mul(x1, aInv)
		x1.Mul(x1, tvInv)
	}

	if root, ok := new(fp.Fp).Sqrt(isoRHS(x1)); ok {
		x.Set(x1)
		y.Set(root)
	} else {
		x2 := new(fp.Fp).Mul(zu2, x1)
		root, _ = new(fp.Fp).Sqrt(isoRHS(x2))
		x.Set(x2)
		y.Set(root)
	}

	if u.IsOdd() != y.IsOdd() {
		y.Neg(&y)
	}
	return x, y
}

// isoRHS returns x^3 + A'x + B'.
func isoRHS(x *fp.Fp) *fp.Fp {
	r := new(fp.Fp).Square(x)
	r.Add(r, isoA)
	r.Mul(r, x)
	r.Add(r, isoB)
	return r
}

// isoMap applies the 3-isogeny to the affine iso-Pallas point (x, y). Points
// in the kernel map to the identity.
func isoMap(out *Point, x, y *fp.Fp) {
	k := isogenyConstants

	numX := new(fp.Fp).Mul(k[0], x)
	numX.Add(numX, k[1])
	numX.Mul(numX, x)
	numX.Add(numX, k[2])
	numX.Mul(numX, x)
	numX.Add(numX, k[3])

	divX := new(fp.Fp).Add(x, k[4])
	divX.Mul(divX, x)
	divX.Add(divX, k[5])

	numY := new(fp.Fp).Mul(k[6], x)
	numY.Add(numY, k[7])
	numY.Mul(numY, x)
	numY.Add(numY, k[8])
	numY.Mul(numY, x)
	numY.Add(numY, k[9])
	numY.Mul(numY, y)

	divY := new(fp.Fp).Add(x, k[10])
	divY.Mul(divY, x)
	divY.Add(divY, k[11])
	divY.Mul(divY, x)
	divY.Add(divY, k[12])

	den := new(fp.Fp).Mul(divX, divY)
	denInv, ok := new(fp.Fp).Invert(den)
	if !ok {
		out.Identity()
		return
	}

	var ax, ay fp.Fp
	ax.Mul(numX, divY)
	ax.Mul(&ax, denInv)
	ay.Mul(numY, divX)
	ay.Mul(&ay, denInv)
	out.setAffine(&ax, &ay)
}
