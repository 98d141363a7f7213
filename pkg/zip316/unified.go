// Package zip316 implements the ZIP 316 unified container encoding shared by
// unified addresses and unified viewing keys: a sequence of typed items,
// a padding block bound to the human-readable part, F4Jumble, and bech32m.
//
// Corresponds to: zcash_address/src/kind/unified.rs and f4jumble/src/lib.rs
package zip316

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

// Typecodes for unified container items.
const (
	TypeP2PKH   uint32 = 0x00
	TypeP2SH    uint32 = 0x01
	TypeSapling uint32 = 0x02
	TypeOrchard uint32 = 0x03
)

// PaddingLen is the length of the HRP padding block appended before jumbling.
const PaddingLen = 16

// Item is one typed entry of a unified container.
type Item struct {
	Typecode uint32
	Data     []byte
}

// Encode serializes items as a unified container under hrp. Items are
// written in ascending typecode order.
//
// Parameters:
//   - hrp: Human-readable part (at most 16 bytes)
//   - items: Container entries; typecodes must be distinct
//
// Returns:
//   - The lowercase bech32m string
//   - An error if the container cannot be encoded
func Encode(hrp string, items []Item) (string, error) {
	if len(hrp) == 0 || len(hrp) > PaddingLen {
		return "", fmt.Errorf("zip316: invalid hrp length %d", len(hrp))
	}
	if len(items) == 0 {
		return "", errors.New("zip316: no items to encode")
	}

	sorted := make([]Item, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Typecode < sorted[j].Typecode
	})

	var buf bytes.Buffer
	for i, item := range sorted {
		if i > 0 && sorted[i-1].Typecode == item.Typecode {
			return "", fmt.Errorf("zip316: duplicate typecode %d", item.Typecode)
		}
		if err := WriteCompactSize(&buf, uint64(item.Typecode)); err != nil {
			return "", err
		}
		if err := WriteCompactSize(&buf, uint64(len(item.Data))); err != nil {
			return "", err
		}
		buf.Write(item.Data)
	}
	buf.Write(padding(hrp))

	jumbled, err := Jumble(buf.Bytes())
	if err != nil {
		return "", err
	}

	data5, err := bech32.ConvertBits(jumbled, 8, 5, true)
	if err != nil {
		return "", err
	}
	return bech32.EncodeM(hrp, data5)
}

// Decode parses a unified container string and checks that it was encoded
// under hrp. Failures are reported as *DecodeError.
//
// Parameters:
//   - s: The bech32m string (all lowercase or all uppercase)
//   - hrp: Expected human-readable part
//
// Returns:
//   - The container items in encoded order
//   - A *DecodeError describing the failure
func Decode(s string, hrp string) ([]Item, error) {
	gotHRP, data5, version, err := bech32.DecodeNoLimitWithVersion(s)
	if err != nil {
		var checksumErr bech32.ErrInvalidChecksum
		if errors.As(err, &checksumErr) {
			return nil, &DecodeError{Kind: KindChecksum, Message: "checksum mismatch", Cause: err}
		}
		return nil, formatError("invalid bech32m string", err)
	}
	if version != bech32.VersionM {
		return nil, formatError("not a bech32m encoding", nil)
	}
	if gotHRP != hrp {
		return nil, &DecodeError{
			Kind:    KindNetwork,
			HRP:     gotHRP,
			Message: fmt.Sprintf("human-readable part %q, expected %q", gotHRP, hrp),
		}
	}

	raw, err := bech32.ConvertBits(data5, 5, 8, false)
	if err != nil {
		return nil, formatError("invalid bech32m payload", err)
	}

	unjumbled, err := Unjumble(raw)
	if err != nil {
		return nil, formatError("invalid container length", err)
	}

	body := unjumbled[:len(unjumbled)-PaddingLen]
	if !bytes.Equal(unjumbled[len(body):], padding(hrp)) {
		return nil, formatError("invalid padding", nil)
	}

	items, err := parseItems(body)
	if err != nil {
		return nil, formatError("invalid item encoding", err)
	}
	return items, nil
}

// Find returns the data of the item with the given typecode.
func Find(items []Item, typecode uint32) ([]byte, bool) {
	for _, item := range items {
		if item.Typecode == typecode {
			return item.Data, true
		}
	}
	return nil, false
}

func parseItems(body []byte) ([]Item, error) {
	r := bytes.NewReader(body)
	seen := make(map[uint32]bool)

	var items []Item
	for r.Len() > 0 {
		typecode, err := ReadCompactSize(r)
		if err != nil {
			return nil, fmt.Errorf("typecode: %w", err)
		}
		length, err := ReadCompactSize(r)
		if err != nil {
			return nil, fmt.Errorf("length of typecode %d: %w", typecode, err)
		}
		if length > uint64(r.Len()) {
			return nil, fmt.Errorf("item of typecode %d truncated", typecode)
		}
		data := make([]byte, length)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, err
		}

		tc := uint32(typecode)
		if seen[tc] {
			return nil, fmt.Errorf("duplicate typecode %d", tc)
		}
		seen[tc] = true
		items = append(items, Item{Typecode: tc, Data: data})
	}

	if len(items) == 0 {
		return nil, errors.New("no items")
	}
	return items, nil
}

func padding(hrp string) []byte {
	p := make([]byte, PaddingLen)
	copy(p, hrp)
	return p
}
