// ABOUTME: Container handlers for arrays, lists, maps and optionals
// ABOUTME: Counts are uint32 prefixes; map entries are ordered by encoded key

package layout

import (
	"bytes"
	"fmt"
	"math"
	"reflect"
	"sort"
)

// asSlice accepts []any or any Go slice or array value.
func asSlice(v any) ([]any, bool) {
	switch x := v.(type) {
	case nil:
		return nil, true
	case []any:
		return x, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// allocHint bounds an allocation by what the remaining input can hold.
func allocHint(n uint32, elem Handler, r *Reader) (int, error) {
	least := minSize(elem)
	if least > 0 && uint64(n)*uint64(least) > uint64(r.Remaining()) {
		return 0, fmt.Errorf("%w: %d elements of at least %d bytes, have %d",
			ErrBufferUnderflow, n, least, r.Remaining())
	}
	if int(n) > r.Remaining() {
		return r.Remaining(), nil
	}
	return int(n), nil
}

// minSize is the smallest encoding any value of h can have.
func minSize(h Handler) int {
	if n, ok := h.ConstantSize(); ok {
		return n
	}
	switch h := h.(type) {
	case *stringHandler, *bytesHandler, *listHandler, *mapHandler:
		return 4
	case *decimalHandler:
		return 9
	case *optionalHandler:
		return 1
	case *arrayHandler:
		return h.length * minSize(h.elem)
	case *objectHandler:
		total := 0
		for _, f := range h.fields {
			total += minSize(f)
		}
		return total
	}
	return 0
}

func sizeOf(h Handler, vs []any) (int, error) {
	if n, ok := h.ConstantSize(); ok {
		return n * len(vs), nil
	}
	total := 0
	for _, v := range vs {
		n, err := h.Size(v)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

type arrayHandler struct {
	base
	elem   Handler
	length int
}

func (h *arrayHandler) Nested() []Handler { return []Handler{h.elem} }

func (h *arrayHandler) ConstantSize() (int, bool) {
	n, ok := h.elem.ConstantSize()
	return n * h.length, ok
}

func (h *arrayHandler) Zero() any {
	out := make([]any, h.length)
	for i := range out {
		out[i] = h.elem.Zero()
	}
	return out
}

func (h *arrayHandler) items(v any) ([]any, error) {
	vs, ok := asSlice(v)
	if !ok {
		return nil, mismatch(KindArray, v)
	}
	if vs == nil {
		return make([]any, h.length), nil
	}
	if len(vs) != h.length {
		return nil, fmt.Errorf("%w: array of %d holds %d elements", ErrTypeMismatch, h.length, len(vs))
	}
	return vs, nil
}

func (h *arrayHandler) Size(v any) (int, error) {
	vs, err := h.items(v)
	if err != nil {
		return 0, err
	}
	return sizeOf(h.elem, vs)
}

func (h *arrayHandler) Serialize(v any, w *Writer) error {
	vs, err := h.items(v)
	if err != nil {
		return err
	}
	for i, e := range vs {
		if err := h.elem.Serialize(e, w); err != nil {
			return fmt.Errorf("array[%d]: %w", i, err)
		}
	}
	return nil
}

func (h *arrayHandler) Deserialize(r *Reader) (any, error) {
	if _, err := allocHint(uint32(h.length), h.elem, r); err != nil {
		return nil, err
	}
	out := make([]any, h.length)
	for i := range out {
		e, err := h.elem.Deserialize(r)
		if err != nil {
			return nil, fmt.Errorf("array[%d]: %w", i, err)
		}
		out[i] = e
	}
	return out, nil
}

type listHandler struct {
	base
	elem Handler
}

func (h *listHandler) Nested() []Handler         { return []Handler{h.elem} }
func (h *listHandler) ConstantSize() (int, bool) { return 0, false }
func (h *listHandler) Zero() any                 { return []any{} }

func (h *listHandler) Size(v any) (int, error) {
	vs, ok := asSlice(v)
	if !ok {
		return 0, mismatch(KindList, v)
	}
	n, err := sizeOf(h.elem, vs)
	return 4 + n, err
}

func (h *listHandler) Serialize(v any, w *Writer) error {
	vs, ok := asSlice(v)
	if !ok {
		return mismatch(KindList, v)
	}
	if len(vs) > math.MaxUint32 {
		return fmt.Errorf("%w: list of %d elements", ErrTypeMismatch, len(vs))
	}
	w.PutUint32(uint32(len(vs)))
	for i, e := range vs {
		if err := h.elem.Serialize(e, w); err != nil {
			return fmt.Errorf("list[%d]: %w", i, err)
		}
	}
	return nil
}

func (h *listHandler) Deserialize(r *Reader) (any, error) {
	n, err := r.Uint32()
	if err != nil {
		return nil, err
	}
	hint, err := allocHint(n, h.elem, r)
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, hint)
	for i := uint32(0); i < n; i++ {
		e, err := h.elem.Deserialize(r)
		if err != nil {
			return nil, fmt.Errorf("list[%d]: %w", i, err)
		}
		out = append(out, e)
	}
	return out, nil
}

type mapHandler struct {
	base
	key   Handler
	value Handler
}

type mapEntry struct {
	raw   []byte
	value any
}

func (h *mapHandler) Nested() []Handler         { return []Handler{h.key, h.value} }
func (h *mapHandler) ConstantSize() (int, bool) { return 0, false }
func (h *mapHandler) Zero() any                 { return map[any]any{} }

// entries encodes every key and sorts the pairs by their key bytes.
func (h *mapHandler) entries(v any) ([]mapEntry, error) {
	var out []mapEntry
	add := func(k, val any) error {
		kw := NewWriter(8)
		if err := h.key.Serialize(k, kw); err != nil {
			return fmt.Errorf("map key: %w", err)
		}
		out = append(out, mapEntry{raw: kw.Bytes(), value: val})
		return nil
	}

	switch m := v.(type) {
	case nil:
	case map[any]any:
		for k, val := range m {
			if err := add(k, val); err != nil {
				return nil, err
			}
		}
	case map[string]any:
		for k, val := range m {
			if err := add(k, val); err != nil {
				return nil, err
			}
		}
	default:
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Map {
			return nil, mismatch(KindMap, v)
		}
		iter := rv.MapRange()
		for iter.Next() {
			if err := add(iter.Key().Interface(), iter.Value().Interface()); err != nil {
				return nil, err
			}
		}
	}

	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i].raw, out[j].raw) < 0 })
	for i := 1; i < len(out); i++ {
		if bytes.Equal(out[i-1].raw, out[i].raw) {
			return nil, fmt.Errorf("%w: duplicate map key encoding", ErrTypeMismatch)
		}
	}
	return out, nil
}

func (h *mapHandler) Size(v any) (int, error) {
	es, err := h.entries(v)
	if err != nil {
		return 0, err
	}
	total := 4
	for _, e := range es {
		n, err := h.value.Size(e.value)
		if err != nil {
			return 0, err
		}
		total += len(e.raw) + n
	}
	return total, nil
}

func (h *mapHandler) Serialize(v any, w *Writer) error {
	es, err := h.entries(v)
	if err != nil {
		return err
	}
	if len(es) > math.MaxUint32 {
		return fmt.Errorf("%w: map of %d entries", ErrTypeMismatch, len(es))
	}
	w.PutUint32(uint32(len(es)))
	for _, e := range es {
		w.Write(e.raw)
		if err := h.value.Serialize(e.value, w); err != nil {
			return fmt.Errorf("map value: %w", err)
		}
	}
	return nil
}

func (h *mapHandler) Deserialize(r *Reader) (any, error) {
	n, err := r.Uint32()
	if err != nil {
		return nil, err
	}
	hint, err := allocHint(n, h.key, r)
	if err != nil {
		return nil, err
	}
	out := make(map[any]any, hint)
	var prev []byte
	for i := uint32(0); i < n; i++ {
		start := r.Offset()
		k, err := h.key.Deserialize(r)
		if err != nil {
			return nil, fmt.Errorf("map key: %w", err)
		}
		raw := r.b[start:r.off]
		if i > 0 && bytes.Compare(prev, raw) >= 0 {
			return nil, fmt.Errorf("%w: map keys out of order at entry %d", ErrMalformed, i)
		}
		prev = raw

		val, err := h.value.Deserialize(r)
		if err != nil {
			return nil, fmt.Errorf("map value: %w", err)
		}
		out[k] = val
	}
	return out, nil
}

type optionalHandler struct {
	base
	elem Handler
}

func (h *optionalHandler) Nested() []Handler         { return []Handler{h.elem} }
func (h *optionalHandler) ConstantSize() (int, bool) { return 0, false }
func (h *optionalHandler) Zero() any                 { return None() }

func asOption(v any) Option {
	switch x := v.(type) {
	case nil:
		return None()
	case Option:
		return x
	case *Option:
		if x == nil {
			return None()
		}
		return *x
	}
	return Some(v)
}

func (h *optionalHandler) Size(v any) (int, error) {
	o := asOption(v)
	if !o.Valid {
		return 1, nil
	}
	n, err := h.elem.Size(o.Value)
	return 1 + n, err
}

func (h *optionalHandler) Serialize(v any, w *Writer) error {
	o := asOption(v)
	if !o.Valid {
		w.PutUint8(0)
		return nil
	}
	w.PutUint8(1)
	return h.elem.Serialize(o.Value, w)
}

func (h *optionalHandler) Deserialize(r *Reader) (any, error) {
	flag, err := r.Uint8()
	if err != nil {
		return nil, err
	}
	switch flag {
	case 0:
		return None(), nil
	case 1:
		v, err := h.elem.Deserialize(r)
		if err != nil {
			return nil, err
		}
		return Some(v), nil
	}
	return nil, fmt.Errorf("%w: optional flag %#x", ErrMalformed, flag)
}
