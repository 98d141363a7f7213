package zip316

import "fmt"

// Kind classifies why a unified encoding failed to decode.
type Kind string

// Decode failure kinds.
const (
	KindFormat   Kind = "format"   // Malformed bech32m, framing, padding or item data
	KindChecksum Kind = "checksum" // Well-formed bech32 string whose checksum does not verify
	KindNetwork  Kind = "network"  // Valid encoding for a different human-readable part
)

// DecodeError is returned by Decode.
type DecodeError struct {
	Kind    Kind   // Failure classification
	HRP     string // Decoded human-readable part (KindNetwork only)
	Message string // Human-readable error message
	Cause   error  // Underlying error (if any)
}

func (e *DecodeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("zip316 decode error [%s]: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("zip316 decode error [%s]: %s", e.Kind, e.Message)
}

func (e *DecodeError) Unwrap() error {
	return e.Cause
}

func formatError(msg string, cause error) error {
	return &DecodeError{Kind: KindFormat, Message: msg, Cause: cause}
}
