package addrgen

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a derivation failure. Codes are stable and appear in
// the "error" field of JSON envelopes.
type ErrorCode string

// Error codes.
const (
	ErrInvalidFormat         ErrorCode = "invalid_format"         // Malformed viewing key encoding or key bytes
	ErrInvalidChecksum       ErrorCode = "invalid_checksum"       // Well-formed bech32m with a bad checksum
	ErrWrongNetwork          ErrorCode = "wrong_network"          // Viewing key for another network
	ErrUnsupportedKeyPool    ErrorCode = "unsupported_key_pool"   // No Orchard item, or items for other pools
	ErrDegenerateDiversifier ErrorCode = "degenerate_diversifier" // Diversifier maps to the identity
	ErrIndexRangeOverflow    ErrorCode = "index_range_overflow"   // start + count exceeds the index domain
	ErrBatchTooLarge         ErrorCode = "batch_too_large"        // count above the configured maximum
	ErrUFVKRequired          ErrorCode = "ufvk_required"          // Missing or empty viewing key
	ErrInternal              ErrorCode = "internal"               // Unexpected failure
)

func (c ErrorCode) Error() string {
	return string(c)
}

// Error is returned by every derivation entry point.
type Error struct {
	Code    ErrorCode // Failure classification
	Message string    // Human-readable error message
	Cause   error     // Underlying error (if any)
}

func newError(code ErrorCode, msg string, cause error) *Error {
	return &Error{Code: code, Message: msg, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("addrgen error [%s]: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("addrgen error [%s]: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches an ErrorCode target, so errors.Is(err, ErrWrongNetwork) works.
func (e *Error) Is(target error) bool {
	switch t := target.(type) {
	case ErrorCode:
		return e.Code == t
	case *Error:
		return e.Code == t.Code
	}
	return false
}

// CodeString returns the error code as a string.
func (e *Error) CodeString() string {
	return string(e.Code)
}

// CodeOf extracts the error code from err, which may be an *Error or a bare
// ErrorCode. Errors that did not come from this package map to ErrInternal.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	var code ErrorCode
	if errors.As(err, &code) {
		return code
	}
	return ErrInternal
}
