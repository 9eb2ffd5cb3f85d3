// ABOUTME: Error values for the index engine
// ABOUTME: Capability mismatches carry the full request context

package index

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrIllegalState indicates an operation not allowed in the engine's state
	ErrIllegalState = errors.New("index: illegal engine state")

	// ErrIndexNotSupported indicates no capability supports a request
	ErrIndexNotSupported = errors.New("index: index not supported")

	// ErrUniqueViolation indicates a second entity for a unique value
	ErrUniqueViolation = errors.New("index: unique constraint violated")

	// ErrUnsupportedQuery indicates an index asked to answer a query it cannot serve
	ErrUnsupportedQuery = errors.New("index: query not supported by index")
)

// IndexNotSupportedError reports a request no capability of Engine can serve.
type IndexNotSupportedError struct {
	Attributes []*Attribute
	Features   []Feature
	Engine     string
}

func (e *IndexNotSupportedError) Error() string {
	features := make([]string, len(e.Features))
	for i, f := range e.Features {
		features[i] = f.String()
	}
	attrs := make([]string, len(e.Attributes))
	for i, a := range e.Attributes {
		attrs[i] = a.String()
	}
	return fmt.Sprintf("index: index %s on %s is not supported by %s",
		strings.Join(features, ", "), strings.Join(attrs, ", "), e.Engine)
}

func (e *IndexNotSupportedError) Unwrap() error { return ErrIndexNotSupported }

func illegalState(op string, s State) error {
	return fmt.Errorf("%w: %s while %s", ErrIllegalState, op, s)
}
