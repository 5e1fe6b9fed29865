package binio

import (
	"encoding/binary"
	"fmt"
	"math"
)

// MaxBufferSize bounds every buffer this package builds. Sizes in the
// container are stored as 32-bit values.
const MaxBufferSize = math.MaxInt32

// Writer is an append-only buffer mirroring Reader.
type Writer struct {
	buf   []byte
	order binary.AppendByteOrder
}

// NewWriter returns an empty Writer. A nil order means little-endian.
func NewWriter(order binary.AppendByteOrder) *Writer {
	if order == nil {
		order = binary.LittleEndian
	}
	return &Writer{order: order}
}

// Bytes returns the written bytes. The slice aliases the writer's buffer.
func (w *Writer) Bytes() []byte { return w.buf }

// Len returns the number of bytes written.
func (w *Writer) Len() int { return len(w.buf) }

// SetByteOrder switches the order used for subsequent writes.
func (w *Writer) SetByteOrder(order binary.AppendByteOrder) {
	if order != nil {
		w.order = order
	}
}

func (w *Writer) WriteBytes(b []byte) { w.buf = append(w.buf, b...) }

func (w *Writer) WriteU8(v uint8) { w.buf = append(w.buf, v) }

func (w *Writer) WriteU16(v uint16) { w.buf = w.order.AppendUint16(w.buf, v) }

func (w *Writer) WriteU32(v uint32) { w.buf = w.order.AppendUint32(w.buf, v) }

func (w *Writer) WriteI32(v int32) { w.buf = w.order.AppendUint32(w.buf, uint32(v)) }

func (w *Writer) WriteU64(v uint64) { w.buf = w.order.AppendUint64(w.buf, v) }

// WriteString writes s with a 32-bit signed length prefix.
// Strings longer than MaxStringLength are refused so that every string
// written can be read back.
func (w *Writer) WriteString(s string) error {
	if len(s) > MaxStringLength {
		return &OffsetError{Offset: len(w.buf), Field: "string",
			Err: fmt.Errorf("%w: %d > %d", ErrLengthLimitExceeded, len(s), MaxStringLength)}
	}
	w.WriteI32(int32(len(s)))
	w.buf = append(w.buf, s...)
	return nil
}

// WriteStringPtr is WriteString for optional values; nil is an error.
func (w *Writer) WriteStringPtr(s *string) error {
	if s == nil {
		return &OffsetError{Offset: len(w.buf), Field: "string", Err: ErrNilString}
	}
	return w.WriteString(*s)
}

// WriteFixedString writes the raw characters of s without a prefix.
func (w *Writer) WriteFixedString(s string) {
	w.buf = append(w.buf, s...)
}

// WriteBool writes '1' or '0'.
func (w *Writer) WriteBool(v bool) {
	if v {
		w.buf = append(w.buf, '1')
		return
	}
	w.buf = append(w.buf, '0')
}

// Concat returns a new buffer holding a followed by b.
func Concat(a, b []byte) ([]byte, error) {
	n, err := checkedSum(len(a), len(b))
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, a)
	copy(out[len(a):], b)
	return out, nil
}

func checkedSum(a, b int) (int, error) {
	if a < 0 || b < 0 {
		return 0, fmt.Errorf("%w: negative size", ErrSizeOverflow)
	}
	if a > MaxBufferSize-b {
		return 0, fmt.Errorf("%w: %d + %d exceeds %d", ErrSizeOverflow, a, b, MaxBufferSize)
	}
	return a + b, nil
}
