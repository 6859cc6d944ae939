// Package bytebuf provides a fixed-length, bounds-checked byte buffer with
// big-endian accessors. Writes happen in place; the buffer never grows.
package bytebuf

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var be = binary.BigEndian

// ErrOutOfBounds is matched by every OutOfBoundsError.
var ErrOutOfBounds = errors.New("bytebuf: out of bounds")

// OutOfBoundsError reports an access of width bytes at offset that does not
// fit inside a buffer of length Len.
type OutOfBoundsError struct {
	Offset int
	Width  int
	Len    int
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("bytebuf: access [%d:%d] out of bounds (len %d)", e.Offset, e.Offset+e.Width, e.Len)
}

func (e *OutOfBoundsError) Is(target error) bool {
	return target == ErrOutOfBounds
}

// Buffer wraps a byte slice. The zero value is an empty buffer.
type Buffer struct {
	b []byte
}

// New wraps b without copying. Writes through the Buffer modify b.
func New(b []byte) *Buffer {
	return &Buffer{b: b}
}

// Clone copies b into a new Buffer owned by the caller.
func Clone(b []byte) *Buffer {
	c := make([]byte, len(b))
	copy(c, b)
	return &Buffer{b: c}
}

// Len returns the buffer length.
func (buf *Buffer) Len() int {
	return len(buf.b)
}

// Bytes returns the underlying slice.
func (buf *Buffer) Bytes() []byte {
	return buf.b
}

func (buf *Buffer) check(offset, width int) error {
	if offset < 0 || width < 0 || offset > len(buf.b)-width {
		return &OutOfBoundsError{Offset: offset, Width: width, Len: len(buf.b)}
	}
	return nil
}

// Slice returns buf[offset:offset+n] without copying.
func (buf *Buffer) Slice(offset, n int) ([]byte, error) {
	if err := buf.check(offset, n); err != nil {
		return nil, err
	}
	return buf.b[offset : offset+n], nil
}

func (buf *Buffer) ReadU8(offset int) (uint8, error) {
	if err := buf.check(offset, 1); err != nil {
		return 0, err
	}
	return buf.b[offset], nil
}

func (buf *Buffer) ReadU16BE(offset int) (uint16, error) {
	if err := buf.check(offset, 2); err != nil {
		return 0, err
	}
	return be.Uint16(buf.b[offset:]), nil
}

func (buf *Buffer) ReadU32BE(offset int) (uint32, error) {
	if err := buf.check(offset, 4); err != nil {
		return 0, err
	}
	return be.Uint32(buf.b[offset:]), nil
}

func (buf *Buffer) ReadU64BE(offset int) (uint64, error) {
	if err := buf.check(offset, 8); err != nil {
		return 0, err
	}
	return be.Uint64(buf.b[offset:]), nil
}

func (buf *Buffer) WriteU32BE(offset int, v uint32) error {
	if err := buf.check(offset, 4); err != nil {
		return err
	}
	be.PutUint32(buf.b[offset:], v)
	return nil
}

func (buf *Buffer) WriteU64BE(offset int, v uint64) error {
	if err := buf.check(offset, 8); err != nil {
		return err
	}
	be.PutUint64(buf.b[offset:], v)
	return nil
}
