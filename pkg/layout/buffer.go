// ABOUTME: Big-endian byte buffers used by handlers
// ABOUTME: Writer appends, Reader consumes and reports underflow

package layout

import (
	"encoding/binary"
	"fmt"
)

// Writer accumulates serialized bytes.
type Writer struct {
	b []byte
}

// NewWriter creates a writer with room for size bytes.
func NewWriter(size int) *Writer {
	return &Writer{b: make([]byte, 0, size)}
}

// Bytes returns the bytes written so far.
func (w *Writer) Bytes() []byte { return w.b }

// Len returns the number of bytes written.
func (w *Writer) Len() int { return len(w.b) }

// Reset empties the writer, keeping its capacity.
func (w *Writer) Reset() { w.b = w.b[:0] }

func (w *Writer) PutUint8(v uint8)   { w.b = append(w.b, v) }
func (w *Writer) PutUint16(v uint16) { w.b = binary.BigEndian.AppendUint16(w.b, v) }
func (w *Writer) PutUint32(v uint32) { w.b = binary.BigEndian.AppendUint32(w.b, v) }
func (w *Writer) PutUint64(v uint64) { w.b = binary.BigEndian.AppendUint64(w.b, v) }
func (w *Writer) Write(p []byte)     { w.b = append(w.b, p...) }

// Reader consumes serialized bytes.
type Reader struct {
	b   []byte
	off int
}

// NewReader reads from data without copying it.
func NewReader(data []byte) *Reader {
	return &Reader{b: data}
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.b) - r.off }

// Offset returns the number of bytes consumed.
func (r *Reader) Offset() int { return r.off }

// Next consumes n bytes. The returned slice aliases the input.
func (r *Reader) Next(n int) ([]byte, error) {
	if n < 0 || n > r.Remaining() {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, have %d",
			ErrBufferUnderflow, n, r.off, r.Remaining())
	}
	p := r.b[r.off : r.off+n]
	r.off += n
	return p, nil
}

func (r *Reader) Uint8() (uint8, error) {
	p, err := r.Next(1)
	if err != nil {
		return 0, err
	}
	return p[0], nil
}

func (r *Reader) Uint16() (uint16, error) {
	p, err := r.Next(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(p), nil
}

func (r *Reader) Uint32() (uint32, error) {
	p, err := r.Next(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(p), nil
}

func (r *Reader) Uint64() (uint64, error) {
	p, err := r.Next(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(p), nil
}
