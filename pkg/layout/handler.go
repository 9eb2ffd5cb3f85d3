// ABOUTME: Type handlers driving serialization of resolved types
// ABOUTME: Fixed-width scalar handlers (integers, floats, bool, uuid, date, timestamp)

package layout

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/nainya/eventcore/pkg/hlc"
)

// Handler serializes values of one resolved type. Handlers are immutable and
// safe for concurrent use.
type Handler interface {
	Type() Type
	Kind() Kind
	// Fingerprint identifies the structural shape of the type
	Fingerprint() Fingerprint
	// Nested returns the handlers of element, key/value or field types
	Nested() []Handler
	// ConstantSize reports the encoded size if every value has the same one
	ConstantSize() (int, bool)
	Size(v any) (int, error)
	Serialize(v any, w *Writer) error
	Deserialize(r *Reader) (any, error)
	// Zero returns the value an absent input decodes to
	Zero() any
}

type base struct {
	typ Type
	fp  Fingerprint
}

func (b *base) Type() Type               { return b.typ }
func (b *base) Kind() Kind               { return b.typ.kind }
func (b *base) Fingerprint() Fingerprint { return b.fp }
func (b *base) Nested() []Handler        { return nil }

func (b *base) setFingerprint(fp Fingerprint) { b.fp = fp }

// fixedHandler covers kinds whose encoding always has the same width.
type fixedHandler struct {
	base
	width int
	zero  any
	enc   func(v any, w *Writer) bool
	dec   func(r *Reader) (any, error)
}

func (h *fixedHandler) ConstantSize() (int, bool) { return h.width, true }
func (h *fixedHandler) Zero() any                 { return h.zero }

func (h *fixedHandler) Size(v any) (int, error) {
	return h.width, nil
}

func (h *fixedHandler) Serialize(v any, w *Writer) error {
	if !h.enc(v, w) {
		return mismatch(h.Kind(), v)
	}
	return nil
}

func (h *fixedHandler) Deserialize(r *Reader) (any, error) {
	return h.dec(r)
}

var epoch = time.Unix(0, 0).UTC()

func newFixedHandler(t Type) (*fixedHandler, bool) {
	h := &fixedHandler{base: base{typ: t}}
	switch t.kind {
	case KindInt8:
		h.width, h.zero = 1, int8(0)
		h.enc = func(v any, w *Writer) bool {
			n, ok := toInt(v, math.MinInt8, math.MaxInt8)
			w.PutUint8(uint8(n))
			return ok
		}
		h.dec = func(r *Reader) (any, error) {
			u, err := r.Uint8()
			if err != nil {
				return nil, err
			}
			return int8(u), nil
		}
	case KindInt16:
		h.width, h.zero = 2, int16(0)
		h.enc = func(v any, w *Writer) bool {
			n, ok := toInt(v, math.MinInt16, math.MaxInt16)
			w.PutUint16(uint16(n))
			return ok
		}
		h.dec = func(r *Reader) (any, error) {
			u, err := r.Uint16()
			if err != nil {
				return nil, err
			}
			return int16(u), nil
		}
	case KindInt32:
		h.width, h.zero = 4, int32(0)
		h.enc = func(v any, w *Writer) bool {
			n, ok := toInt(v, math.MinInt32, math.MaxInt32)
			w.PutUint32(uint32(n))
			return ok
		}
		h.dec = func(r *Reader) (any, error) {
			u, err := r.Uint32()
			if err != nil {
				return nil, err
			}
			return int32(u), nil
		}
	case KindInt64:
		h.width, h.zero = 8, int64(0)
		h.enc = func(v any, w *Writer) bool {
			n, ok := toInt(v, math.MinInt64, math.MaxInt64)
			w.PutUint64(uint64(n))
			return ok
		}
		h.dec = func(r *Reader) (any, error) {
			u, err := r.Uint64()
			if err != nil {
				return nil, err
			}
			return int64(u), nil
		}
	case KindUint8:
		h.width, h.zero = 1, uint8(0)
		h.enc = func(v any, w *Writer) bool {
			n, ok := toUint(v, math.MaxUint8)
			w.PutUint8(uint8(n))
			return ok
		}
		h.dec = func(r *Reader) (any, error) {
			u, err := r.Uint8()
			if err != nil {
				return nil, err
			}
			return u, nil
		}
	case KindUint16:
		h.width, h.zero = 2, uint16(0)
		h.enc = func(v any, w *Writer) bool {
			n, ok := toUint(v, math.MaxUint16)
			w.PutUint16(uint16(n))
			return ok
		}
		h.dec = func(r *Reader) (any, error) {
			u, err := r.Uint16()
			if err != nil {
				return nil, err
			}
			return u, nil
		}
	case KindUint32:
		h.width, h.zero = 4, uint32(0)
		h.enc = func(v any, w *Writer) bool {
			n, ok := toUint(v, math.MaxUint32)
			w.PutUint32(uint32(n))
			return ok
		}
		h.dec = func(r *Reader) (any, error) {
			u, err := r.Uint32()
			if err != nil {
				return nil, err
			}
			return u, nil
		}
	case KindUint64:
		h.width, h.zero = 8, uint64(0)
		h.enc = func(v any, w *Writer) bool {
			n, ok := toUint(v, math.MaxUint64)
			w.PutUint64(n)
			return ok
		}
		h.dec = func(r *Reader) (any, error) {
			u, err := r.Uint64()
			if err != nil {
				return nil, err
			}
			return u, nil
		}
	case KindFloat32:
		h.width, h.zero = 4, float32(0)
		h.enc = func(v any, w *Writer) bool {
			f, ok := toFloat(v)
			w.PutUint32(math.Float32bits(float32(f)))
			return ok
		}
		h.dec = func(r *Reader) (any, error) {
			u, err := r.Uint32()
			if err != nil {
				return nil, err
			}
			return math.Float32frombits(u), nil
		}
	case KindFloat64:
		h.width, h.zero = 8, float64(0)
		h.enc = func(v any, w *Writer) bool {
			f, ok := toFloat(v)
			w.PutUint64(math.Float64bits(f))
			return ok
		}
		h.dec = func(r *Reader) (any, error) {
			u, err := r.Uint64()
			if err != nil {
				return nil, err
			}
			return math.Float64frombits(u), nil
		}
	case KindBool:
		h.width, h.zero = 1, false
		h.enc = func(v any, w *Writer) bool {
			b, ok := v.(bool)
			if v == nil {
				ok = true
			}
			if b {
				w.PutUint8(1)
			} else {
				w.PutUint8(0)
			}
			return ok
		}
		h.dec = func(r *Reader) (any, error) {
			u, err := r.Uint8()
			if err != nil {
				return nil, err
			}
			if u > 1 {
				return nil, fmt.Errorf("%w: bool byte %#x", ErrMalformed, u)
			}
			return u == 1, nil
		}
	case KindUUID:
		h.width, h.zero = 16, uuid.Nil
		h.enc = func(v any, w *Writer) bool {
			id, ok := v.(uuid.UUID)
			if v == nil {
				ok = true
			}
			w.Write(id[:])
			return ok
		}
		h.dec = func(r *Reader) (any, error) {
			p, err := r.Next(16)
			if err != nil {
				return nil, err
			}
			return uuid.FromBytes(p)
		}
	case KindDate:
		h.width, h.zero = 12, epoch
		h.enc = func(v any, w *Writer) bool {
			t, ok := v.(time.Time)
			if v == nil {
				t, ok = epoch, true
			}
			w.PutUint64(uint64(t.Unix()))
			w.PutUint32(uint32(t.Nanosecond()))
			return ok
		}
		h.dec = func(r *Reader) (any, error) {
			secs, err := r.Uint64()
			if err != nil {
				return nil, err
			}
			nanos, err := r.Uint32()
			if err != nil {
				return nil, err
			}
			if nanos >= uint32(time.Second) {
				return nil, fmt.Errorf("%w: date nanoseconds %d", ErrMalformed, nanos)
			}
			return time.Unix(int64(secs), int64(nanos)).UTC(), nil
		}
	case KindTimestamp:
		h.width, h.zero = 16, hlc.Epoch
		h.enc = func(v any, w *Writer) bool {
			ts, ok := v.(hlc.HybridTimestamp)
			if v == nil {
				ts, ok = hlc.Epoch, true
			}
			w.PutUint64(ts.LogicalTime)
			w.PutUint64(ts.LogicalCounter)
			return ok
		}
		h.dec = func(r *Reader) (any, error) {
			lt, err := r.Uint64()
			if err != nil {
				return nil, err
			}
			lc, err := r.Uint64()
			if err != nil {
				return nil, err
			}
			return hlc.HybridTimestamp{LogicalTime: lt, LogicalCounter: lc}, nil
		}
	default:
		return nil, false
	}
	return h, true
}
