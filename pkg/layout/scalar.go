// ABOUTME: Variable-length scalar handlers
// ABOUTME: Length-prefixed strings and bytes, arbitrary precision decimals

package layout

import (
	"fmt"
	"math"
	"math/big"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

type stringHandler struct{ base }

func (h *stringHandler) ConstantSize() (int, bool) { return 0, false }
func (h *stringHandler) Zero() any                 { return "" }

func (h *stringHandler) Size(v any) (int, error) {
	s, ok := v.(string)
	if !ok && v != nil {
		return 0, mismatch(KindString, v)
	}
	return 4 + len(s), nil
}

func (h *stringHandler) Serialize(v any, w *Writer) error {
	s, ok := v.(string)
	if !ok && v != nil {
		return mismatch(KindString, v)
	}
	if len(s) > math.MaxUint32 {
		return fmt.Errorf("%w: string of %d bytes", ErrTypeMismatch, len(s))
	}
	w.PutUint32(uint32(len(s)))
	w.Write([]byte(s))
	return nil
}

func (h *stringHandler) Deserialize(r *Reader) (any, error) {
	n, err := r.Uint32()
	if err != nil {
		return nil, err
	}
	p, err := r.Next(int(n))
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(p) {
		return nil, fmt.Errorf("%w: invalid utf-8 in string", ErrMalformed)
	}
	return string(p), nil
}

type bytesHandler struct{ base }

func (h *bytesHandler) ConstantSize() (int, bool) { return 0, false }
func (h *bytesHandler) Zero() any                 { return []byte{} }

func (h *bytesHandler) Size(v any) (int, error) {
	p, ok := v.([]byte)
	if !ok && v != nil {
		return 0, mismatch(KindBytes, v)
	}
	return 4 + len(p), nil
}

func (h *bytesHandler) Serialize(v any, w *Writer) error {
	p, ok := v.([]byte)
	if !ok && v != nil {
		return mismatch(KindBytes, v)
	}
	if len(p) > math.MaxUint32 {
		return fmt.Errorf("%w: %d bytes", ErrTypeMismatch, len(p))
	}
	w.PutUint32(uint32(len(p)))
	w.Write(p)
	return nil
}

func (h *bytesHandler) Deserialize(r *Reader) (any, error) {
	n, err := r.Uint32()
	if err != nil {
		return nil, err
	}
	p, err := r.Next(int(n))
	if err != nil {
		return nil, err
	}
	return append([]byte{}, p...), nil
}

// decimalHandler writes exponent, sign and big-endian magnitude:
// int32 exp | uint8 sign | uint32 len | magnitude.
type decimalHandler struct{ base }

func (h *decimalHandler) ConstantSize() (int, bool) { return 0, false }
func (h *decimalHandler) Zero() any                 { return decimal.Zero }

func toDecimal(v any) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case nil:
		return decimal.Zero, true
	case decimal.Decimal:
		return x, true
	case *decimal.Decimal:
		if x == nil {
			return decimal.Zero, true
		}
		return *x, true
	}
	return decimal.Decimal{}, false
}

func (h *decimalHandler) Size(v any) (int, error) {
	d, ok := toDecimal(v)
	if !ok {
		return 0, mismatch(KindDecimal, v)
	}
	return 9 + len(d.Coefficient().Bytes()), nil
}

func (h *decimalHandler) Serialize(v any, w *Writer) error {
	d, ok := toDecimal(v)
	if !ok {
		return mismatch(KindDecimal, v)
	}
	coef := d.Coefficient()
	mag := new(big.Int).Abs(coef).Bytes()

	w.PutUint32(uint32(d.Exponent()))
	if coef.Sign() < 0 {
		w.PutUint8(1)
	} else {
		w.PutUint8(0)
	}
	w.PutUint32(uint32(len(mag)))
	w.Write(mag)
	return nil
}

func (h *decimalHandler) Deserialize(r *Reader) (any, error) {
	exp, err := r.Uint32()
	if err != nil {
		return nil, err
	}
	sign, err := r.Uint8()
	if err != nil {
		return nil, err
	}
	if sign > 1 {
		return nil, fmt.Errorf("%w: decimal sign byte %#x", ErrMalformed, sign)
	}
	n, err := r.Uint32()
	if err != nil {
		return nil, err
	}
	mag, err := r.Next(int(n))
	if err != nil {
		return nil, err
	}
	if len(mag) > 0 && mag[0] == 0 {
		return nil, fmt.Errorf("%w: decimal magnitude has leading zero", ErrMalformed)
	}
	coef := new(big.Int).SetBytes(mag)
	if sign == 1 {
		if coef.Sign() == 0 {
			return nil, fmt.Errorf("%w: negative zero decimal", ErrMalformed)
		}
		coef.Neg(coef)
	}
	return decimal.NewFromBigInt(coef, int32(exp)), nil
}
