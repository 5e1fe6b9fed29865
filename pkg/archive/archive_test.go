package archive

import (
	"bytes"
	"errors"
	"testing"
)

func TestHeader(t *testing.T) {
	t.Run("MarshalUnmarshal", func(t *testing.T) {
		original := &Header{
			Magic:            Magic,
			HeaderLength:     16,
			Length:           1024,
			CompressedLength: 512,
		}

		data, err := original.MarshalBinary()
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}

		decoded := &Header{}
		if err := decoded.UnmarshalBinary(data); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}

		if *decoded != *original {
			t.Errorf("mismatch: got %+v, want %+v", decoded, original)
		}
	})

	t.Run("InvalidMagic", func(t *testing.T) {
		h := &Header{
			Magic:            [4]byte{0x00, 0x00, 0x00, 0x00},
			HeaderLength:     16,
			Length:           1024,
			CompressedLength: 512,
		}
		if err := h.Validate(); err == nil {
			t.Error("expected error for invalid magic")
		}
	})

	t.Run("ZeroLength", func(t *testing.T) {
		h := NewHeader(0, 9)
		if err := h.Validate(); err != nil {
			t.Errorf("empty payload rejected: %v", err)
		}
	})

	t.Run("ZeroCompressedLength", func(t *testing.T) {
		h := NewHeader(1024, 0)
		if err := h.Validate(); err == nil {
			t.Error("expected error for zero compressed length")
		}
	})

	t.Run("OversizedLength", func(t *testing.T) {
		h := NewHeader(MaxLength+1, 16)
		if err := h.Validate(); err == nil {
			t.Error("expected error for oversized length")
		}
	})

	t.Run("Short", func(t *testing.T) {
		if err := (&Header{}).UnmarshalBinary(make([]byte, HeaderSize-1)); !errors.Is(err, ErrInvalidHeader) {
			t.Errorf("got %v, want ErrInvalidHeader", err)
		}
	})

	t.Run("CheckPayload", func(t *testing.T) {
		h := NewHeader(256*256*4, 1200)
		if err := h.CheckPayload(256 * 256 * 4); err != nil {
			t.Errorf("matching texture size rejected: %v", err)
		}
		for _, size := range []int{256 * 256, -1, 0} {
			if err := h.CheckPayload(size); !errors.Is(err, ErrPayloadSize) {
				t.Errorf("size %d: got %v, want ErrPayloadSize", size, err)
			}
		}
	})
}

func TestPackUnpack(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"Text", []byte("Hello, World! This is test data for compression.")},
		{"Empty", []byte{}},
		{"Pixels", bytes.Repeat([]byte{0x10, 0x80, 0xff, 0xff}, 4096)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := Pack(tt.data, WithCompressionLevel(3))
			if err != nil {
				t.Fatalf("pack: %v", err)
			}
			if !bytes.Equal(frame[:4], Magic[:]) {
				t.Errorf("frame starts with %x, want %x", frame[:4], Magic)
			}

			got, err := Unpack(frame)
			if err != nil {
				t.Fatalf("unpack: %v", err)
			}
			if !bytes.Equal(got, tt.data) {
				t.Errorf("data mismatch: got %d bytes, want %d", len(got), len(tt.data))
			}
		})
	}
}

func TestUnpackErrors(t *testing.T) {
	frame, err := Pack([]byte("payload payload payload"))
	if err != nil {
		t.Fatal(err)
	}

	t.Run("Truncated", func(t *testing.T) {
		if _, err := Unpack(frame[:len(frame)-1]); err == nil {
			t.Error("expected error for truncated frame")
		}
	})

	t.Run("Trailing", func(t *testing.T) {
		if _, err := Unpack(append(append([]byte(nil), frame...), 0)); err == nil {
			t.Error("expected error for trailing byte")
		}
	})

	t.Run("WrongLength", func(t *testing.T) {
		h := &Header{}
		if err := h.UnmarshalBinary(frame); err != nil {
			t.Fatal(err)
		}
		h.Length++
		bad, _ := h.AppendBinary(nil)
		bad = append(bad, frame[HeaderSize:]...)
		if _, err := Unpack(bad); !errors.Is(err, ErrPayloadSize) {
			t.Errorf("got %v, want ErrPayloadSize", err)
		}
	})

	t.Run("Corrupt", func(t *testing.T) {
		bad := append([]byte(nil), frame...)
		for i := HeaderSize; i < len(bad); i++ {
			bad[i] ^= 0xff
		}
		if _, err := Unpack(bad); err == nil {
			t.Error("expected error for corrupt stream")
		}
	})
}
