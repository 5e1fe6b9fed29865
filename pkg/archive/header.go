// Package archive reads and writes the zstd frames GTEX4 containers use
// for their pixel payload. A frame is a fixed header followed by one
// zstd stream holding every image of the texture in canonical order.
//
//	offset  size  field
//	0       4     magic "ZSTD"
//	4       4     size of the two length fields (16)
//	8       8     payload size, the texture's total pixel bytes
//	16      8     stream size
//
// The header is read first so the payload can be checked against the
// texture layout before anything is decompressed.
package archive

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	ErrInvalidHeader = errors.New("archive: invalid frame header")
	ErrPayloadSize   = errors.New("archive: payload size mismatch")
)

// Magic opens every frame.
var Magic = [4]byte{'Z', 'S', 'T', 'D'}

const (
	// HeaderSize is the encoded size of a Header.
	HeaderSize = 24

	lengthFields = 16
)

// Header describes one frame.
type Header struct {
	Magic            [4]byte
	HeaderLength     uint32
	Length           uint64 // payload bytes after decompression
	CompressedLength uint64 // zstd stream bytes following the header
}

// NewHeader returns the header for a payload of payloadSize bytes stored
// in a stream of streamSize bytes.
func NewHeader(payloadSize, streamSize uint64) *Header {
	return &Header{
		Magic:            Magic,
		HeaderLength:     lengthFields,
		Length:           payloadSize,
		CompressedLength: streamSize,
	}
}

// Validate checks the fixed fields and the size limits. A zero-byte
// payload is allowed but a zstd stream is never empty.
func (h *Header) Validate() error {
	switch {
	case h.Magic != Magic:
		return fmt.Errorf("%w: magic %q", ErrInvalidHeader, h.Magic[:])
	case h.HeaderLength != lengthFields:
		return fmt.Errorf("%w: length fields span %d bytes, want %d", ErrInvalidHeader, h.HeaderLength, lengthFields)
	case h.Length > MaxLength:
		return fmt.Errorf("%w: payload of %d bytes exceeds limit %d", ErrInvalidHeader, h.Length, uint64(MaxLength))
	case h.CompressedLength == 0:
		return fmt.Errorf("%w: empty stream", ErrInvalidHeader)
	}
	return nil
}

// CheckPayload reports whether the frame decompresses to exactly size
// bytes, the pixel size of the texture it belongs to.
func (h *Header) CheckPayload(size int) error {
	if size < 0 || h.Length != uint64(size) {
		return fmt.Errorf("%w: frame holds %d bytes, texture needs %d", ErrPayloadSize, h.Length, size)
	}
	return nil
}

// AppendBinary appends the encoded header to dst.
func (h *Header) AppendBinary(dst []byte) ([]byte, error) {
	dst = append(dst, h.Magic[:]...)
	dst = binary.LittleEndian.AppendUint32(dst, h.HeaderLength)
	dst = binary.LittleEndian.AppendUint64(dst, h.Length)
	dst = binary.LittleEndian.AppendUint64(dst, h.CompressedLength)
	return dst, nil
}

// MarshalBinary encodes the header.
func (h *Header) MarshalBinary() ([]byte, error) {
	return h.AppendBinary(make([]byte, 0, HeaderSize))
}

// UnmarshalBinary decodes and validates the header at the start of data.
func (h *Header) UnmarshalBinary(data []byte) error {
	if len(data) < HeaderSize {
		return fmt.Errorf("%w: %d bytes, need %d", ErrInvalidHeader, len(data), HeaderSize)
	}
	copy(h.Magic[:], data[:4])
	h.HeaderLength = binary.LittleEndian.Uint32(data[4:8])
	h.Length = binary.LittleEndian.Uint64(data[8:16])
	h.CompressedLength = binary.LittleEndian.Uint64(data[16:24])
	return h.Validate()
}
