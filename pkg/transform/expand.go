package transform

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/EchoTools/texforge/pkg/texture"
)

// ExpandToRGBA8 returns a copy of img converted to R8G8B8A8. The colour
// space of the source is kept. Missing colour channels are zero and a
// missing alpha channel is opaque.
func ExpandToRGBA8(img *texture.Image) (*texture.Image, error) {
	target := texture.FormatR8G8B8A8Unorm
	if img.Format.ColorSpace == texture.SRGB {
		target = texture.FormatR8G8B8A8UnormSRGB
	}
	n := img.Width * img.Height * img.Depth
	out := make([]byte, n*4)
	src := img.Pix

	switch img.Format.Format {
	case texture.FormatR8G8B8A8Unorm, texture.FormatR8G8B8A8UnormSRGB, texture.FormatR8G8B8A8Uint:
		copy(out, src)
	case texture.FormatB8G8R8A8Unorm, texture.FormatB8G8R8A8UnormSRGB:
		copy(out, src)
		if err := ReverseRBSlice(out); err != nil {
			return nil, err
		}
	case texture.FormatB8G8R8X8Unorm, texture.FormatB8G8R8X8UnormSRGB:
		copy(out, src)
		for i := 0; i < len(out); i += 4 {
			out[i], out[i+2], out[i+3] = out[i+2], out[i], 0xFF
		}
	case texture.FormatR8Unorm:
		for i := 0; i < n; i++ {
			out[i*4], out[i*4+3] = src[i], 0xFF
		}
	case texture.FormatA8Unorm:
		for i := 0; i < n; i++ {
			out[i*4+3] = src[i]
		}
	case texture.FormatR8G8Unorm:
		for i := 0; i < n; i++ {
			out[i*4], out[i*4+1], out[i*4+3] = src[i*2], src[i*2+1], 0xFF
		}
	case texture.FormatR16G16B16A16Unorm:
		for i := 0; i < n*4; i++ {
			out[i] = uint8(binary.LittleEndian.Uint16(src[i*2:]) >> 8)
		}
	case texture.FormatR32G32B32A32Float:
		for i := 0; i < n*4; i++ {
			v := math.Float32frombits(binary.LittleEndian.Uint32(src[i*4:]))
			out[i] = uint8(math.Round(math.Min(math.Max(float64(v), 0), 1) * 255))
		}
	case texture.FormatB5G6R5Unorm:
		for i := 0; i < n; i++ {
			v := binary.LittleEndian.Uint16(src[i*2:])
			out[i*4] = scaleBits(uint32(v>>11)&0x1F, 5)
			out[i*4+1] = scaleBits(uint32(v>>5)&0x3F, 6)
			out[i*4+2] = scaleBits(uint32(v)&0x1F, 5)
			out[i*4+3] = 0xFF
		}
	case texture.FormatB5G5R5A1Unorm:
		for i := 0; i < n; i++ {
			v := binary.LittleEndian.Uint16(src[i*2:])
			out[i*4] = scaleBits(uint32(v>>10)&0x1F, 5)
			out[i*4+1] = scaleBits(uint32(v>>5)&0x1F, 5)
			out[i*4+2] = scaleBits(uint32(v)&0x1F, 5)
			out[i*4+3] = uint8(v>>15) * 0xFF
		}
	case texture.FormatB4G4R4A4Unorm:
		for i := 0; i < n; i++ {
			v := binary.LittleEndian.Uint16(src[i*2:])
			out[i*4] = uint8(v>>8&0xF) * 0x11
			out[i*4+1] = uint8(v>>4&0xF) * 0x11
			out[i*4+2] = uint8(v&0xF) * 0x11
			out[i*4+3] = uint8(v>>12&0xF) * 0x11
		}
	default:
		return nil, fmt.Errorf("%w: cannot expand %s to RGBA8", texture.ErrUnsupportedFormat, img.Format.Name)
	}

	return texture.ImageFromPixels(target, img.Width, img.Height, img.Depth, out)
}

func scaleBits(v uint32, bits uint) uint8 {
	maxV := uint32(1)<<bits - 1
	return uint8((v*255 + maxV/2) / maxV)
}

// CanExpand reports whether ExpandToRGBA8 accepts f.
func CanExpand(f texture.Format) bool {
	switch f {
	case texture.FormatR8G8B8A8Unorm, texture.FormatR8G8B8A8UnormSRGB, texture.FormatR8G8B8A8Uint,
		texture.FormatB8G8R8A8Unorm, texture.FormatB8G8R8A8UnormSRGB,
		texture.FormatB8G8R8X8Unorm, texture.FormatB8G8R8X8UnormSRGB,
		texture.FormatR8Unorm, texture.FormatA8Unorm, texture.FormatR8G8Unorm,
		texture.FormatR16G16B16A16Unorm, texture.FormatR32G32B32A32Float,
		texture.FormatB5G6R5Unorm, texture.FormatB5G5R5A1Unorm, texture.FormatB4G4R4A4Unorm:
		return true
	}
	return false
}

// HasAlpha reports whether any pixel of an RGBA8 image is not opaque.
func HasAlpha(img *texture.Image) bool {
	if img.Format.Element != texture.ElementUint8 || img.Format.Channels != 4 {
		return false
	}
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] != 0xFF {
			return true
		}
	}
	return false
}
