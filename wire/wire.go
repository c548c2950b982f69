// Package wire provides the variable-length integer byte codec shared by the state sync
// codec and the netsync handshake payloads.
//
// Writers append to a growable buffer. Readers are sticky: the first decode error is kept
// and every later read returns a zero value, so callers check Err once at the end.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	ErrShortBuffer = errors.New("wire: short buffer")
	ErrOverflow    = errors.New("wire: varint overflow")
	ErrTooLong     = errors.New("wire: length exceeds limit")
)

// MaxBytesLen bounds any single length-prefixed field.
const MaxBytesLen = 1 << 20

// Writer appends encoded values to an internal buffer.
type Writer struct {
	buf []byte
}

// NewWriter creates a Writer with the given initial capacity.
func NewWriter(capacity int) *Writer {
	return &Writer{buf: make([]byte, 0, capacity)}
}

// Bytes returns the encoded buffer. The slice aliases the writer's storage.
func (w *Writer) Bytes() []byte { return w.buf }

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return len(w.buf) }

// Reset empties the writer, keeping its storage.
func (w *Writer) Reset() { w.buf = w.buf[:0] }

func (w *Writer) Byte(b byte) { w.buf = append(w.buf, b) }

func (w *Writer) Bool(v bool) {
	if v {
		w.buf = append(w.buf, 1)
		return
	}
	w.buf = append(w.buf, 0)
}

func (w *Writer) Uvarint(v uint64) { w.buf = binary.AppendUvarint(w.buf, v) }

// Varint writes a zig-zag encoded signed integer.
func (w *Writer) Varint(v int64) { w.buf = binary.AppendVarint(w.buf, v) }

// BytesField writes a length-prefixed byte slice.
func (w *Writer) BytesField(b []byte) {
	w.Uvarint(uint64(len(b)))
	w.buf = append(w.buf, b...)
}

func (w *Writer) String(s string) {
	w.Uvarint(uint64(len(s)))
	w.buf = append(w.buf, s...)
}

// Reserve appends a single placeholder byte and returns its offset for PatchByte.
func (w *Writer) Reserve() int {
	w.buf = append(w.buf, 0)
	return len(w.buf) - 1
}

// PatchByte overwrites a byte previously reserved.
func (w *Writer) PatchByte(off int, b byte) { w.buf[off] = b }

// Reader decodes values from a byte slice.
type Reader struct {
	buf []byte
	off int
	err error
}

// NewReader creates a Reader over b. The slice is not copied.
func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

// Err returns the first decode error, if any.
func (r *Reader) Err() error { return r.err }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.buf) - r.off }

func (r *Reader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *Reader) Byte() byte {
	if r.err != nil {
		return 0
	}
	if r.off >= len(r.buf) {
		r.fail(ErrShortBuffer)
		return 0
	}
	b := r.buf[r.off]
	r.off++
	return b
}

func (r *Reader) Bool() bool { return r.Byte() != 0 }

func (r *Reader) Uvarint() uint64 {
	if r.err != nil {
		return 0
	}
	v, n := binary.Uvarint(r.buf[r.off:])
	switch {
	case n == 0:
		r.fail(ErrShortBuffer)
		return 0
	case n < 0:
		r.fail(ErrOverflow)
		return 0
	}
	r.off += n
	return v
}

func (r *Reader) Varint() int64 {
	if r.err != nil {
		return 0
	}
	v, n := binary.Varint(r.buf[r.off:])
	switch {
	case n == 0:
		r.fail(ErrShortBuffer)
		return 0
	case n < 0:
		r.fail(ErrOverflow)
		return 0
	}
	r.off += n
	return v
}

// BytesField reads a length-prefixed byte slice. The result aliases the input.
func (r *Reader) BytesField() []byte {
	n := r.Uvarint()
	if r.err != nil {
		return nil
	}
	if n > MaxBytesLen {
		r.fail(fmt.Errorf("%w: %d", ErrTooLong, n))
		return nil
	}
	if uint64(r.Remaining()) < n {
		r.fail(ErrShortBuffer)
		return nil
	}
	b := r.buf[r.off : r.off+int(n)]
	r.off += int(n)
	return b
}

func (r *Reader) String() string { return string(r.BytesField()) }
