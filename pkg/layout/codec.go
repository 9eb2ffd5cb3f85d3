// ABOUTME: Whole-value encode and decode helpers
// ABOUTME: Marshal sizes the output up front, Unmarshal rejects trailing bytes

package layout

import "fmt"

// Marshal encodes v with h into a new byte slice.
func Marshal(h Handler, v any) ([]byte, error) {
	size, err := h.Size(v)
	if err != nil {
		return nil, err
	}
	w := NewWriter(size)
	if err := h.Serialize(v, w); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// Unmarshal decodes exactly one value of h from data.
func Unmarshal(h Handler, data []byte) (any, error) {
	r := NewReader(data)
	v, err := h.Deserialize(r)
	if err != nil {
		return nil, err
	}
	if r.Remaining() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes after %s", ErrMalformed, r.Remaining(), h.Type())
	}
	return v, nil
}

// MarshalType resolves t with the default registry and encodes v.
func MarshalType(t Type, v any) ([]byte, error) {
	h, err := Resolve(t)
	if err != nil {
		return nil, err
	}
	return Marshal(h, v)
}

// UnmarshalType resolves t with the default registry and decodes data.
func UnmarshalType(t Type, data []byte) (any, error) {
	h, err := Resolve(t)
	if err != nil {
		return nil, err
	}
	return Unmarshal(h, data)
}
