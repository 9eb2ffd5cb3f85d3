// ABOUTME: Order-preserving key encoding for attribute values
// ABOUTME: Byte-wise comparison of keys agrees with value ordering

package index

import (
	"errors"
	"fmt"

	"github.com/nainya/eventcore/pkg/layout"
)

// ErrNotOrderable indicates a value type without a total order.
var ErrNotOrderable = errors.New("index: value type is not orderable")

// OrderedKey encodes v so that bytes.Compare on two keys of the same type
// agrees with the ordering of the values. Keys are prefix-free.
//
// Integers are big-endian with the sign bit flipped, floats use the IEEE
// ordering trick, strings and bytes are escaped and zero-terminated, enums
// order by declaration, timestamps order like HybridTimestamp.Compare and an
// unset optional sorts before every set one.
func OrderedKey(h layout.Handler, v any) ([]byte, error) {
	raw, err := layout.Marshal(h, v)
	if err != nil {
		return nil, err
	}
	key, rest, err := appendOrdered(make([]byte, 0, len(raw)+2), h, raw)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("index: %d bytes left after ordered key", len(rest))
	}
	return key, nil
}

// Orderable reports whether OrderedKey supports values of h.
func Orderable(h layout.Handler) bool {
	switch h.Kind() {
	case layout.KindDecimal, layout.KindArray, layout.KindList, layout.KindMap, layout.KindObject:
		return false
	case layout.KindOptional:
		return Orderable(h.Nested()[0])
	}
	return h.Kind() != layout.KindInvalid
}

// appendOrdered converts one canonical encoding at the head of raw.
func appendOrdered(dst []byte, h layout.Handler, raw []byte) ([]byte, []byte, error) {
	switch h.Kind() {
	case layout.KindInt8, layout.KindInt16, layout.KindInt32, layout.KindInt64:
		n, _ := h.ConstantSize()
		dst = append(dst, raw[0]^0x80)
		return append(dst, raw[1:n]...), raw[n:], nil

	case layout.KindFloat32, layout.KindFloat64:
		n, _ := h.ConstantSize()
		if raw[0]&0x80 != 0 {
			for _, b := range raw[:n] {
				dst = append(dst, ^b)
			}
		} else {
			dst = append(dst, raw[0]^0x80)
			dst = append(dst, raw[1:n]...)
		}
		return dst, raw[n:], nil

	case layout.KindDate:
		// int64 seconds then uint32 nanoseconds
		dst = append(dst, raw[0]^0x80)
		return append(dst, raw[1:12]...), raw[12:], nil

	case layout.KindUint8, layout.KindUint16, layout.KindUint32, layout.KindUint64,
		layout.KindBool, layout.KindUUID, layout.KindTimestamp, layout.KindEnum:
		n, _ := h.ConstantSize()
		return append(dst, raw[:n]...), raw[n:], nil

	case layout.KindString, layout.KindBytes:
		n := int(uint32(raw[0])<<24 | uint32(raw[1])<<16 | uint32(raw[2])<<8 | uint32(raw[3]))
		dst = appendEscaped(dst, raw[4:4+n])
		return append(dst, 0), raw[4+n:], nil

	case layout.KindOptional:
		if raw[0] == 0 {
			return append(dst, 0), raw[1:], nil
		}
		return appendOrdered(append(dst, 1), h.Nested()[0], raw[1:])
	}
	return nil, nil, fmt.Errorf("%w: %s", ErrNotOrderable, h.Type())
}

// appendEscaped escapes 0x00 and 0x01 so the 0x00 terminator sorts first:
// 0x00 becomes 0x01 0x01 and 0x01 becomes 0x01 0x02.
func appendEscaped(dst, s []byte) []byte {
	for _, b := range s {
		switch b {
		case 0x00:
			dst = append(dst, 0x01, 0x01)
		case 0x01:
			dst = append(dst, 0x01, 0x02)
		default:
			dst = append(dst, b)
		}
	}
	return dst
}

// EscapedPrefix encodes s like a string key without its terminator. A string
// key starts with EscapedPrefix(p) exactly when the string starts with p.
func EscapedPrefix(s string) []byte {
	return appendEscaped(make([]byte, 0, len(s)), []byte(s))
}
