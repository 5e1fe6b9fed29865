package archive

import (
	"fmt"
	"math"

	"github.com/DataDog/zstd"
)

const (
	// DefaultCompressionLevel is the default compression level for encoding.
	DefaultCompressionLevel = zstd.BestSpeed

	// MaxLength caps the uncompressed size a header may declare, so a
	// corrupt header cannot force a huge allocation.
	MaxLength = math.MaxInt32
)

type packConfig struct {
	level int
}

// PackOption configures Pack.
type PackOption func(*packConfig)

// WithCompressionLevel sets the zstd compression level.
func WithCompressionLevel(level int) PackOption {
	return func(c *packConfig) {
		c.level = level
	}
}

// Pack compresses data into a frame.
func Pack(data []byte, opts ...PackOption) ([]byte, error) {
	if uint64(len(data)) > MaxLength {
		return nil, fmt.Errorf("payload of %d bytes exceeds limit %d", len(data), MaxLength)
	}
	cfg := packConfig{level: DefaultCompressionLevel}
	for _, opt := range opts {
		opt(&cfg)
	}

	compressed, err := zstd.CompressLevel(nil, data, cfg.level)
	if err != nil {
		return nil, fmt.Errorf("compress: %w", err)
	}

	frame, err := NewHeader(uint64(len(data)), uint64(len(compressed))).
		AppendBinary(make([]byte, 0, HeaderSize+len(compressed)))
	if err != nil {
		return nil, err
	}
	return append(frame, compressed...), nil
}

// Unpack decompresses a frame. frame must hold exactly one frame.
func Unpack(frame []byte) ([]byte, error) {
	h := &Header{}
	if err := h.UnmarshalBinary(frame); err != nil {
		return nil, fmt.Errorf("parse header: %w", err)
	}
	if got := uint64(len(frame) - HeaderSize); got != h.CompressedLength {
		return nil, fmt.Errorf("%w: stream of %d bytes, header says %d", ErrInvalidHeader, got, h.CompressedLength)
	}

	data, err := zstd.Decompress(make([]byte, 0, h.Length), frame[HeaderSize:])
	if err != nil {
		return nil, fmt.Errorf("decompress: %w", err)
	}
	if uint64(len(data)) != h.Length {
		return nil, fmt.Errorf("%w: stream decompressed to %d bytes, header says %d", ErrPayloadSize, len(data), h.Length)
	}
	return data, nil
}
