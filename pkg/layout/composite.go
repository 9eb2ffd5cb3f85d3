// ABOUTME: Enum and object handlers
// ABOUTME: Enums encode an ordinal, objects encode fields in declaration order

package layout

import (
	"fmt"
	"math"
)

type enumHandler struct {
	base
	variants []string
	index    map[string]int
	width    int
}

func newEnumHandler(t Type) *enumHandler {
	h := &enumHandler{
		base:     base{typ: t},
		variants: t.variants,
		index:    make(map[string]int, len(t.variants)),
	}
	for i, v := range t.variants {
		h.index[v] = i
	}
	switch n := len(t.variants); {
	case n <= math.MaxUint8+1:
		h.width = 1
	case n <= math.MaxUint16+1:
		h.width = 2
	default:
		h.width = 4
	}
	return h
}

func (h *enumHandler) ConstantSize() (int, bool) { return h.width, true }
func (h *enumHandler) Size(any) (int, error)     { return h.width, nil }
func (h *enumHandler) Zero() any                 { return h.variants[0] }

func (h *enumHandler) ordinal(v any) (int, error) {
	switch x := v.(type) {
	case nil:
		return 0, nil
	case string:
		i, ok := h.index[x]
		if !ok {
			return 0, fmt.Errorf("%w: %q is not a variant of %s", ErrTypeMismatch, x, h.typ.name)
		}
		return i, nil
	}
	n, ok := toInt(v, 0, int64(len(h.variants)-1))
	if !ok {
		return 0, fmt.Errorf("%w: %v is not an ordinal of %s", ErrTypeMismatch, v, h.typ.name)
	}
	return int(n), nil
}

func (h *enumHandler) Serialize(v any, w *Writer) error {
	i, err := h.ordinal(v)
	if err != nil {
		return err
	}
	switch h.width {
	case 1:
		w.PutUint8(uint8(i))
	case 2:
		w.PutUint16(uint16(i))
	default:
		w.PutUint32(uint32(i))
	}
	return nil
}

func (h *enumHandler) Deserialize(r *Reader) (any, error) {
	var i uint64
	switch h.width {
	case 1:
		u, err := r.Uint8()
		if err != nil {
			return nil, err
		}
		i = uint64(u)
	case 2:
		u, err := r.Uint16()
		if err != nil {
			return nil, err
		}
		i = uint64(u)
	default:
		u, err := r.Uint32()
		if err != nil {
			return nil, err
		}
		i = uint64(u)
	}
	if i >= uint64(len(h.variants)) {
		return nil, fmt.Errorf("%w: ordinal %d of %s", ErrMalformed, i, h.typ.name)
	}
	return h.variants[i], nil
}

type objectHandler struct {
	base
	names  []string
	fields []Handler
	index  map[string]int
}

func (h *objectHandler) Nested() []Handler { return append([]Handler(nil), h.fields...) }

func (h *objectHandler) ConstantSize() (int, bool) {
	total := 0
	for _, f := range h.fields {
		n, ok := f.ConstantSize()
		if !ok {
			return 0, false
		}
		total += n
	}
	return total, true
}

func (h *objectHandler) Zero() any {
	rec := make(Record, len(h.fields))
	for i, f := range h.fields {
		rec[h.names[i]] = f.Zero()
	}
	return rec
}

func (h *objectHandler) record(v any) (Record, error) {
	var rec Record
	switch x := v.(type) {
	case nil:
		return nil, nil
	case Record:
		rec = x
	case map[string]any:
		rec = x
	case Composite:
		rec = x.LayoutRecord()
	default:
		return nil, mismatch(KindObject, v)
	}
	for name := range rec {
		if _, ok := h.index[name]; !ok {
			return nil, fmt.Errorf("%w: %s has no field %q", ErrTypeMismatch, h.typ.name, name)
		}
	}
	return rec, nil
}

func (h *objectHandler) Size(v any) (int, error) {
	rec, err := h.record(v)
	if err != nil {
		return 0, err
	}
	total := 0
	for i, f := range h.fields {
		n, err := f.Size(rec[h.names[i]])
		if err != nil {
			return 0, fmt.Errorf("%s.%s: %w", h.typ.name, h.names[i], err)
		}
		total += n
	}
	return total, nil
}

func (h *objectHandler) Serialize(v any, w *Writer) error {
	rec, err := h.record(v)
	if err != nil {
		return err
	}
	for i, f := range h.fields {
		if err := f.Serialize(rec[h.names[i]], w); err != nil {
			return fmt.Errorf("%s.%s: %w", h.typ.name, h.names[i], err)
		}
	}
	return nil
}

func (h *objectHandler) Deserialize(r *Reader) (any, error) {
	rec := make(Record, len(h.fields))
	for i, f := range h.fields {
		v, err := f.Deserialize(r)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", h.typ.name, h.names[i], err)
		}
		rec[h.names[i]] = v
	}
	return rec, nil
}
