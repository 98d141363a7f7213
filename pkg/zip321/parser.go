// Package zip321 implements the ZIP 321 payment request URI format.
//
// ZIP 321 defines a standardized URI format for payment requests, similar
// to Bitcoin's BIP 21. A request carries one or more recipients, each with
// an address and optional amount, memo, label and message, and can be
// shared via QR codes, links, or text.
//
// URI Format:
//
//	juno:<address>?amount=<amount>&memo=<memo>&message=<message>
//
// Multiple recipients are supported with indexed parameters:
//
//	juno:?address=<addr0>&amount=<amt0>&address.1=<addr1>&amount.1=<amt1>
//
// The scheme is a parameter so the same code serves any network that uses
// ZIP 321 with its own URI scheme.
//
// See: https://zips.z.cash/zip-0321
// Corresponds to: zcash_client_backend/src/zip321.rs
package zip321

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

const (
	// MaxMemoSize is the size of a shielded memo field in bytes.
	MaxMemoSize = 512

	// MaxIndex is the largest parameter index ZIP 321 allows.
	MaxIndex = 9999

	// CoinDecimals is the number of decimal places in an amount.
	CoinDecimals = 8

	// Coin is one whole coin in base units.
	Coin uint64 = 100_000_000

	// MaxAmount is the largest representable amount (21 million coins).
	MaxAmount uint64 = 21_000_000 * Coin
)

// ErrInvalidURI is wrapped by every Parse failure.
var ErrInvalidURI = errors.New("invalid payment request URI")

// PaymentRequest represents a parsed ZIP 321 payment request.
//
// A payment request can have multiple recipients (payments), each with
// their own address, amount, and memo.
type PaymentRequest struct {
	Payments []Payment // List of payment recipients, in index order
}

// Payment represents a single payment within a ZIP 321 request.
type Payment struct {
	Address string  // Recipient address
	Amount  *uint64 // Amount in base units (nil = user specifies)
	Memo    []byte  // Optional memo, at most MaxMemoSize bytes
	Label   *string // Optional label for recipient
	Message *string // Optional message to display to user
}

// Parse parses a ZIP 321 payment request URI.
//
// URI formats supported:
//  1. Single recipient: juno:<address>?amount=1.5&memo=aGk
//  2. Multiple recipients: juno:?address=a0&amount=1&address.1=a1&amount.1=2
//
// Parameters:
//   - uri: The ZIP 321 URI string
//   - scheme: URI scheme without the colon (e.g. "juno"); matched
//     case-insensitively
//
// Returns:
//   - PaymentRequest with one or more payments
//   - Error wrapping ErrInvalidURI if the URI is malformed
//
// Example:
//
//	req, err := zip321.Parse("juno:j1...?amount=1.5", "juno")
func Parse(uri, scheme string) (*PaymentRequest, error) {
	colon := strings.IndexByte(uri, ':')
	if colon < 0 || !strings.EqualFold(uri[:colon], scheme) {
		return nil, invalid("scheme must be %q", scheme)
	}
	rest := uri[colon+1:]

	baseAddress, query, _ := strings.Cut(rest, "?")
	if baseAddress != "" {
		addr, err := url.PathUnescape(baseAddress)
		if err != nil {
			return nil, invalid("address: %v", err)
		}
		baseAddress = addr
	}

	params, err := parseQuery(query)
	if err != nil {
		return nil, err
	}

	byIndex := make(map[int]*Payment)
	get := func(idx int) *Payment {
		p, ok := byIndex[idx]
		if !ok {
			p = &Payment{}
			byIndex[idx] = p
		}
		return p
	}

	if baseAddress != "" {
		get(0).Address = baseAddress
	}

	for _, param := range params {
		name, idx, err := splitParam(param.key)
		if err != nil {
			return nil, err
		}
		if err := setParam(get(idx), name, idx, param.value, baseAddress); err != nil {
			return nil, err
		}
	}

	if len(byIndex) == 0 {
		return nil, invalid("no payments found")
	}

	indices := make([]int, 0, len(byIndex))
	for idx := range byIndex {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	req := &PaymentRequest{Payments: make([]Payment, 0, len(indices))}
	for _, idx := range indices {
		p := byIndex[idx]
		if p.Address == "" {
			return nil, invalid("payment %d missing address", idx)
		}
		req.Payments = append(req.Payments, *p)
	}
	return req, nil
}

// queryParam is one decoded key=value pair of the query string.
type queryParam struct {
	key   string
	value string
}

// parseQuery splits a query string into its parameters, in order.
//
// ZIP 321 values are RFC 3986 percent-encoded, not form-encoded: "+" is a
// literal plus sign and a space is only ever "%20". url.ParseQuery would
// turn "+" into a space, so keys and values are decoded with
// url.PathUnescape instead.
func parseQuery(query string) ([]queryParam, error) {
	if query == "" {
		return nil, nil
	}

	seen := make(map[string]bool)
	var params []queryParam
	for _, pair := range strings.Split(query, "&") {
		rawKey, rawValue, ok := strings.Cut(pair, "=")
		if !ok || rawKey == "" {
			return nil, invalid("malformed query parameter %q", pair)
		}

		key, err := url.PathUnescape(rawKey)
		if err != nil {
			return nil, invalid("parameter name %q: %v", rawKey, err)
		}
		value, err := url.PathUnescape(rawValue)
		if err != nil {
			return nil, invalid("parameter %q: %v", key, err)
		}

		if seen[key] {
			return nil, invalid("parameter %q appears more than once", key)
		}
		seen[key] = true
		params = append(params, queryParam{key: key, value: value})
	}
	return params, nil
}

// setParam applies one query parameter to a payment.
func setParam(p *Payment, name string, idx int, value, baseAddress string) error {
	switch name {
	case "address":
		if idx == 0 && baseAddress != "" {
			return invalid("address given both in path and as parameter")
		}
		p.Address = value
	case "amount":
		amount, err := ParseAmount(value)
		if err != nil {
			return invalid("payment %d amount: %v", idx, err)
		}
		p.Amount = &amount
	case "memo":
		memo, err := base64.RawURLEncoding.DecodeString(value)
		if err != nil {
			return invalid("payment %d memo: %v", idx, err)
		}
		if len(memo) > MaxMemoSize {
			return invalid("payment %d memo is %d bytes, max %d", idx, len(memo), MaxMemoSize)
		}
		p.Memo = memo
	case "label":
		p.Label = &value
	case "message":
		p.Message = &value
	default:
		// Unknown "req-" parameters must be understood or the request rejected.
		if strings.HasPrefix(name, "req-") {
			return invalid("unsupported required parameter %q", name)
		}
	}
	return nil
}

// splitParam splits a parameter name into its base name and index.
//
// Examples:
//   - "address.1" -> ("address", 1)
//   - "amount" -> ("amount", 0)
//   - "memo.0" -> error (index 0 is written without suffix)
//   - "amount.01" -> error (leading zero)
func splitParam(key string) (string, int, error) {
	name, suffix, found := strings.Cut(key, ".")
	if !found {
		return name, 0, nil
	}
	if suffix == "" || suffix[0] == '0' || len(suffix) > 4 {
		return "", 0, invalid("bad parameter index in %q", key)
	}
	idx, err := strconv.Atoi(suffix)
	if err != nil || idx < 1 || idx > MaxIndex {
		return "", 0, invalid("bad parameter index in %q", key)
	}
	return name, idx, nil
}

// ParseAmount parses a decimal coin amount into base units.
//
// Valid formats:
//   - "1.5" (decimal)
//   - "0.00000001" (one base unit)
//   - "1000" (whole coins)
//
// At most CoinDecimals fractional digits are accepted, and the result must
// not exceed MaxAmount.
func ParseAmount(s string) (uint64, error) {
	whole, frac, hasDot := strings.Cut(s, ".")
	if whole == "" || (hasDot && frac == "") {
		return 0, fmt.Errorf("not a valid amount: %q", s)
	}
	if len(frac) > CoinDecimals {
		return 0, fmt.Errorf("more than %d decimal places: %q", CoinDecimals, s)
	}
	if !allDigits(whole) || !allDigits(frac) {
		return 0, fmt.Errorf("not a valid amount: %q", s)
	}

	w, err := strconv.ParseUint(whole, 10, 64)
	if err != nil || w > MaxAmount/Coin {
		return 0, fmt.Errorf("amount out of range: %q", s)
	}

	var f uint64
	if frac != "" {
		f, _ = strconv.ParseUint(frac+strings.Repeat("0", CoinDecimals-len(frac)), 10, 64)
	}

	amount := w*Coin + f
	if amount > MaxAmount {
		return 0, fmt.Errorf("amount out of range: %q", s)
	}
	return amount, nil
}

// FormatAmount formats base units as a decimal coin amount, dropping
// trailing zeros and the decimal point when not needed.
func FormatAmount(amount uint64) string {
	whole := strconv.FormatUint(amount/Coin, 10)
	frac := amount % Coin
	if frac == 0 {
		return whole
	}
	f := fmt.Sprintf("%08d", frac)
	return whole + "." + strings.TrimRight(f, "0")
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidURI, fmt.Sprintf(format, args...))
}

// ============================================================================
// Helper functions for creating ZIP 321 URIs
// ============================================================================

// Encode creates a ZIP 321 URI from a PaymentRequest.
//
// This is the inverse of Parse(). A single payment is written with its
// address in the URI path; several payments use indexed parameters.
//
// Example:
//
//	req := &PaymentRequest{Payments: []Payment{{Address: "j1...", Amount: &amt}}}
//	uri := req.Encode("juno") // "juno:j1...?amount=1.5"
func (req *PaymentRequest) Encode(scheme string) string {
	if len(req.Payments) == 0 {
		return scheme + ":"
	}

	if len(req.Payments) == 1 {
		p := req.Payments[0]
		uri := scheme + ":" + p.Address
		if q := encodeParams(p, ""); q != "" {
			uri += "?" + q
		}
		return uri
	}

	parts := make([]string, 0, len(req.Payments))
	for i, p := range req.Payments {
		suffix := ""
		if i > 0 {
			suffix = "." + strconv.Itoa(i)
		}
		parts = append(parts, "address"+suffix+"="+escapeParam(p.Address))
		if q := encodeParams(p, suffix); q != "" {
			parts = append(parts, q)
		}
	}
	return scheme + ":?" + strings.Join(parts, "&")
}

// encodeParams writes the optional parameters of p in a fixed order.
func encodeParams(p Payment, suffix string) string {
	var parts []string
	if p.Amount != nil {
		parts = append(parts, "amount"+suffix+"="+FormatAmount(*p.Amount))
	}
	if p.Memo != nil {
		parts = append(parts, "memo"+suffix+"="+base64.RawURLEncoding.EncodeToString(p.Memo))
	}
	if p.Label != nil {
		parts = append(parts, "label"+suffix+"="+escapeParam(*p.Label))
	}
	if p.Message != nil {
		parts = append(parts, "message"+suffix+"="+escapeParam(*p.Message))
	}
	return strings.Join(parts, "&")
}

// escapeParam percent-encodes a query value. Spaces become "%20" rather than
// the form-encoded "+", which ZIP 321 readers take literally.
func escapeParam(v string) string {
	return strings.ReplaceAll(url.QueryEscape(v), "+", "%20")
}
