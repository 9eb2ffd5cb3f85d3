// ABOUTME: Error values for type resolution, encoding and decoding
// ABOUTME: Sentinels wrapped by contextual errors

package layout

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedType indicates a type that cannot be classified
	ErrUnsupportedType = errors.New("layout: unsupported type")

	// ErrBufferUnderflow indicates input shorter than the value it encodes
	ErrBufferUnderflow = errors.New("layout: buffer underflow")

	// ErrMalformed indicates bytes that no value serializes to
	ErrMalformed = errors.New("layout: malformed input")

	// ErrTypeMismatch indicates a Go value that does not fit its handler
	ErrTypeMismatch = errors.New("layout: value does not match type")
)

// UnsupportedTypeError reports why a type failed to resolve.
type UnsupportedTypeError struct {
	Type   string
	Reason string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("layout: unsupported type %s: %s", e.Type, e.Reason)
}

func (e *UnsupportedTypeError) Unwrap() error { return ErrUnsupportedType }

func unsupported(t Type, format string, args ...any) error {
	return &UnsupportedTypeError{Type: t.Key(), Reason: fmt.Sprintf(format, args...)}
}

func mismatch(k Kind, v any) error {
	return fmt.Errorf("%w: %s cannot hold %T", ErrTypeMismatch, k, v)
}
