// Package elements error types.
//
// Three failure kinds are distinguished. All of them are fatal to the call
// that returned them: a malformed or truncated document never yields a
// partial result.
package elements

import "fmt"

// IndexError is returned when an input or output index is outside [0, Count).
type IndexError struct {
	Kind  string // "input" or "output"
	Index int    // Requested index
	Count int    // Number of records available
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("invalid %s index %d (have %d)", e.Kind, e.Index, e.Count)
}

// FormatError is returned when the stream ends early or a field violates
// the encoding rules of the unsigned transaction.
type FormatError struct {
	Offset  int64  // Absolute stream offset where the problem was detected
	Message string // Human-readable error message
	Cause   error  // Underlying read/seek error (if any)
}

func (e *FormatError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("format error at offset %d: %s: %v", e.Offset, e.Message, e.Cause)
	}
	return fmt.Sprintf("format error at offset %d: %s", e.Offset, e.Message)
}

func (e *FormatError) Unwrap() error {
	return e.Cause
}

// UnsupportedError is returned by operations that exist on the interface
// but are not implemented for confidential transactions.
type UnsupportedError struct {
	Operation string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("%s is not supported", e.Operation)
}

// CheckIndex returns an *IndexError unless 0 <= i < count.
func CheckIndex(kind string, i, count int) error {
	if i < 0 || i >= count {
		return &IndexError{Kind: kind, Index: i, Count: count}
	}
	return nil
}
