package zip316

import (
	"encoding/binary"
	"fmt"
	"hash"

	blake2b "github.com/minio/blake2b-simd"
)

// F4Jumble input length bounds.
const (
	MinJumbleLen = 48
	MaxJumbleLen = 4194368
)

const (
	hPersonalization = "UA_F4Jumble_H"
	gPersonalization = "UA_F4Jumble_G"
)

// Jumble applies the F4Jumble permutation to msg and returns a new slice.
func Jumble(msg []byte) ([]byte, error) {
	if err := checkJumbleLen(len(msg)); err != nil {
		return nil, err
	}
	leftLen := jumbleLeftLen(len(msg))

	out := make([]byte, len(msg))
	copy(out, msg)
	a, b := out[:leftLen], out[leftLen:]

	xorInto(b, roundG(0, a, len(b))) // x = b ^ G(0, a)
	xorInto(a, roundH(0, b, len(a))) // y = a ^ H(0, x)
	xorInto(b, roundG(1, a, len(b))) // d = x ^ G(1, y)
	xorInto(a, roundH(1, b, len(a))) // c = y ^ H(1, d)
	return out, nil
}

// Unjumble inverts Jumble.
func Unjumble(msg []byte) ([]byte, error) {
	if err := checkJumbleLen(len(msg)); err != nil {
		return nil, err
	}
	leftLen := jumbleLeftLen(len(msg))

	out := make([]byte, len(msg))
	copy(out, msg)
	c, d := out[:leftLen], out[leftLen:]

	xorInto(c, roundH(1, d, len(c)))
	xorInto(d, roundG(1, c, len(d)))
	xorInto(c, roundH(0, d, len(c)))
	xorInto(d, roundG(0, c, len(d)))
	return out, nil
}

func checkJumbleLen(n int) error {
	if n < MinJumbleLen || n > MaxJumbleLen {
		return fmt.Errorf("f4jumble: invalid message length %d", n)
	}
	return nil
}

func jumbleLeftLen(n int) int {
	if n/2 < blake2b.Size {
		return n / 2
	}
	return blake2b.Size
}

func newPersonalized(size int, person []byte) hash.Hash {
	h, err := blake2b.New(&blake2b.Config{
		Size:   uint8(size),
		Person: person,
	})
	if err != nil {
		// Sizes and personalizations are fixed by this package.
		panic(err)
	}
	return h
}

// roundH computes H_i(u), a BLAKE2b digest of outLen bytes.
func roundH(i byte, u []byte, outLen int) []byte {
	person := make([]byte, 0, blake2b.PersonSize)
	person = append(person, hPersonalization...)
	person = append(person, i, 0, 0)

	h := newPersonalized(outLen, person)
	h.Write(u)
	return h.Sum(nil)
}

// roundG computes G_i(u), the first outLen bytes of the concatenation of
// BLAKE2b-512 digests personalized with a little-endian block counter.
func roundG(i byte, u []byte, outLen int) []byte {
	out := make([]byte, 0, outLen+blake2b.Size)
	person := make([]byte, blake2b.PersonSize)
	copy(person, gPersonalization)
	person[13] = i

	for j := 0; len(out) < outLen; j++ {
		binary.LittleEndian.PutUint16(person[14:], uint16(j))
		h := newPersonalized(blake2b.Size, person)
		h.Write(u)
		out = h.Sum(out)
	}
	return out[:outLen]
}

func xorInto(dst, src []byte) {
	for i := range dst {
		dst[i] ^= src[i]
	}
}
