// Package binio implements the primitive encodings used by the texture
// container: length-prefixed strings, single-character booleans and
// fixed-width integers in a selectable byte order.
package binio

import (
	"encoding/binary"
	"fmt"
)

// MaxStringLength is the largest string the container format admits.
const MaxStringLength = 256

// Reader is a forward-only cursor over a byte slice.
type Reader struct {
	buf   []byte
	off   int
	order binary.ByteOrder
}

// NewReader returns a Reader over buf. A nil order means little-endian.
func NewReader(buf []byte, order binary.ByteOrder) *Reader {
	if order == nil {
		order = binary.LittleEndian
	}
	return &Reader{buf: buf, order: order}
}

// Offset returns the number of bytes consumed so far.
func (r *Reader) Offset() int { return r.off }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.buf) - r.off }

// ByteOrder returns the order used for multi-byte values.
func (r *Reader) ByteOrder() binary.ByteOrder { return r.order }

// SetByteOrder switches the order used for subsequent reads.
func (r *Reader) SetByteOrder(order binary.ByteOrder) {
	if order != nil {
		r.order = order
	}
}

func (r *Reader) fail(field string, err error) error {
	return &OffsetError{Offset: r.off, Field: field, Err: err}
}

func (r *Reader) take(n int, field string) ([]byte, error) {
	if n < 0 {
		return nil, r.fail(field, ErrMalformedLength)
	}
	if r.Remaining() < n {
		return nil, r.fail(field, fmt.Errorf("%w: need %d bytes, have %d", ErrTruncated, n, r.Remaining()))
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

// ReadBytes returns a copy of the next n bytes.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	b, err := r.take(n, "bytes")
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

// Skip advances the cursor by n bytes.
func (r *Reader) Skip(n int) error {
	_, err := r.take(n, "skip")
	return err
}

func (r *Reader) ReadU8() (uint8, error) {
	b, err := r.take(1, "u8")
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) ReadU16() (uint16, error) {
	b, err := r.take(2, "u16")
	if err != nil {
		return 0, err
	}
	return r.order.Uint16(b), nil
}

func (r *Reader) ReadU32() (uint32, error) {
	b, err := r.take(4, "u32")
	if err != nil {
		return 0, err
	}
	return r.order.Uint32(b), nil
}

func (r *Reader) ReadI32() (int32, error) {
	b, err := r.take(4, "i32")
	if err != nil {
		return 0, err
	}
	return int32(r.order.Uint32(b)), nil
}

func (r *Reader) ReadU64() (uint64, error) {
	b, err := r.take(8, "u64")
	if err != nil {
		return 0, err
	}
	return r.order.Uint64(b), nil
}

// ReadString reads a 32-bit signed length followed by that many
// single-byte characters. Lengths above MaxStringLength are rejected
// even when enough bytes remain.
func (r *Reader) ReadString() (string, error) {
	start := r.off
	n, err := r.ReadI32()
	if err != nil {
		return "", err
	}
	switch {
	case n < 0:
		r.off = start
		return "", r.fail("string", fmt.Errorf("%w: %d", ErrMalformedLength, n))
	case n > MaxStringLength:
		r.off = start
		return "", r.fail("string", fmt.Errorf("%w: %d > %d", ErrLengthLimitExceeded, n, MaxStringLength))
	}
	b, err := r.take(int(n), "string")
	if err != nil {
		r.off = start
		return "", err
	}
	return string(b), nil
}

// ReadFixedString reads n characters whose length is known from context.
func (r *Reader) ReadFixedString(n int) (string, error) {
	b, err := r.take(n, "fixed string")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadBool reads a one-byte ASCII boolean.
func (r *Reader) ReadBool() (bool, error) {
	b, err := r.take(1, "bool")
	if err != nil {
		return false, err
	}
	switch b[0] {
	case '1':
		return true, nil
	case '0':
		return false, nil
	}
	r.off--
	return false, r.fail("bool", fmt.Errorf("%w: 0x%02x", ErrInvalidBooleanEncoding, b[0]))
}
