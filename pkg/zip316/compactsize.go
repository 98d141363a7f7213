package zip316

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MaxCompactSize is the largest value accepted by ReadCompactSize.
const MaxCompactSize = 0x02000000

var errNonCanonical = errors.New("non-canonical compact size")

// WriteCompactSize writes n as a Bitcoin-style variable-length integer.
func WriteCompactSize(w io.Writer, n uint64) error {
	var buf [9]byte
	var size int
	switch {
	case n < 253:
		buf[0] = byte(n)
		size = 1
	case n <= 0xFFFF:
		buf[0] = 253
		binary.LittleEndian.PutUint16(buf[1:], uint16(n))
		size = 3
	case n <= 0xFFFFFFFF:
		buf[0] = 254
		binary.LittleEndian.PutUint32(buf[1:], uint32(n))
		size = 5
	default:
		buf[0] = 255
		binary.LittleEndian.PutUint64(buf[1:], n)
		size = 9
	}
	_, err := w.Write(buf[:size])
	return err
}

// ReadCompactSize reads a Bitcoin-style variable-length integer. Encodings
// that are longer than necessary and values above MaxCompactSize are
// rejected.
func ReadCompactSize(r io.Reader) (uint64, error) {
	var first [1]byte
	if _, err := io.ReadFull(r, first[:]); err != nil {
		return 0, err
	}

	var n, min uint64
	switch first[0] {
	case 253:
		var v uint16
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return 0, err
		}
		n, min = uint64(v), 253
	case 254:
		var v uint32
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return 0, err
		}
		n, min = uint64(v), 0x10000
	case 255:
		var v uint64
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return 0, err
		}
		n, min = v, 0x100000000
	default:
		return uint64(first[0]), nil
	}

	if n < min {
		return 0, errNonCanonical
	}
	if n > MaxCompactSize {
		return 0, fmt.Errorf("compact size %d exceeds maximum %d", n, MaxCompactSize)
	}
	return n, nil
}
