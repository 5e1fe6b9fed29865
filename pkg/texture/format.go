package texture

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	ErrUnsupportedFormat = errors.New("texture: unsupported format")
	ErrInvalidDimensions = errors.New("texture: invalid dimensions")
	ErrTooLarge          = errors.New("texture: size exceeds limit")
)

// Limits every decoder applies before allocating pixel storage.
const (
	MaxDimension = 1 << 15
	MaxArraySize = 2048
	MaxDataSize  = math.MaxInt32
)

// Format is a pixel format tag. Values below 0x10000 are DXGI_FORMAT
// values; the range above holds formats DXGI has no value for.
type Format uint32

// DXGI_FORMAT values.
const (
	FormatUnknown           Format = 0
	FormatR32G32B32A32Float Format = 2
	FormatR32G32B32A32Uint  Format = 3
	FormatR16G16B16A16Float Format = 10
	FormatR16G16B16A16Unorm Format = 11
	FormatR16G16B16A16Uint  Format = 12
	FormatR10G10B10A2Unorm  Format = 24
	FormatR11G11B10Float    Format = 26
	FormatR8G8B8A8Unorm     Format = 28
	FormatR8G8B8A8UnormSRGB Format = 29
	FormatR8G8B8A8Uint      Format = 30
	FormatR16G16Unorm       Format = 35
	FormatR32Float          Format = 41
	FormatR8G8Unorm         Format = 49
	FormatR16Unorm          Format = 56
	FormatR8Unorm           Format = 61
	FormatA8Unorm           Format = 65
	FormatBC1Unorm          Format = 71
	FormatBC1UnormSRGB      Format = 72
	FormatBC2Unorm          Format = 74
	FormatBC2UnormSRGB      Format = 75
	FormatBC3Unorm          Format = 77
	FormatBC3UnormSRGB      Format = 78
	FormatBC4Unorm          Format = 80
	FormatBC4Snorm          Format = 81
	FormatBC5Unorm          Format = 83
	FormatBC5Snorm          Format = 84
	FormatB5G6R5Unorm       Format = 85
	FormatB5G5R5A1Unorm     Format = 86
	FormatB8G8R8A8Unorm     Format = 87
	FormatB8G8R8X8Unorm     Format = 88
	FormatB8G8R8A8UnormSRGB Format = 91
	FormatB8G8R8X8UnormSRGB Format = 93
	FormatBC6HUF16          Format = 95
	FormatBC6HSF16          Format = 96
	FormatBC7Unorm          Format = 98
	FormatBC7UnormSRGB      Format = 99
	FormatB4G4R4A4Unorm     Format = 115
)

// Formats outside DXGI.
const (
	FormatETC1RGB   Format = 0x10000
	FormatETC2RGB   Format = 0x10001
	FormatETC2SRGB  Format = 0x10002
	FormatETC2RGBA1 Format = 0x10003
)

// ColorSpace tells how channel values map to light.
type ColorSpace uint8

const (
	Linear ColorSpace = iota
	SRGB
)

func (c ColorSpace) String() string {
	if c == SRGB {
		return "srgb"
	}
	return "linear"
}

// ElementType is the in-memory type of one channel for formats whose
// channels are individually addressable.
type ElementType uint8

const (
	ElementNone ElementType = iota // packed or block-compressed
	ElementUint8
	ElementUint16
	ElementUint32
	ElementFloat16
	ElementFloat32
)

// Size returns the element size in bytes.
func (e ElementType) Size() int {
	switch e {
	case ElementUint8:
		return 1
	case ElementUint16, ElementFloat16:
		return 2
	case ElementUint32, ElementFloat32:
		return 4
	}
	return 0
}

// FormatInfo describes one catalog entry.
type FormatInfo struct {
	Format       Format
	Name         string
	ColorSpace   ColorSpace
	Channels     int
	BitsPerPixel int
	BlockSize    int // bytes per 4x4 block, 0 for raw formats
	Element      ElementType
}

// Compressed reports whether the format stores 4x4 blocks.
func (f FormatInfo) Compressed() bool { return f.BlockSize > 0 }

// BytesPerPixel returns the pixel size of a raw format.
func (f FormatInfo) BytesPerPixel() int { return f.BitsPerPixel / 8 }

// Pitch returns the row and slice pitch for the given dimensions, which
// must already be within MaxDimension. Use SurfaceSize for untrusted
// dimensions.
func (f FormatInfo) Pitch(width, height int) (rowPitch, slicePitch int) {
	if width <= 0 || height <= 0 {
		return 0, 0
	}
	if f.Compressed() {
		rowPitch = (width + 3) / 4 * f.BlockSize
		return rowPitch, rowPitch * ((height + 3) / 4)
	}
	rowPitch = width * f.BytesPerPixel()
	return rowPitch, rowPitch * height
}

// SurfaceSize returns the pitches and total byte size of a width x height
// x depth surface. Dimensions above MaxDimension and totals above
// MaxDataSize fail with ErrTooLarge.
func (f FormatInfo) SurfaceSize(width, height, depth int) (rowPitch, slicePitch, size int, err error) {
	if width <= 0 || height <= 0 || depth <= 0 {
		return 0, 0, 0, fmt.Errorf("%w: %dx%dx%d", ErrInvalidDimensions, width, height, depth)
	}
	if width > MaxDimension || height > MaxDimension || depth > MaxDimension {
		return 0, 0, 0, fmt.Errorf("%w: %dx%dx%d exceeds %d", ErrTooLarge, width, height, depth, MaxDimension)
	}
	cols, rows, unit := width, height, f.BytesPerPixel()
	if f.Compressed() {
		cols, rows, unit = (width+3)/4, (height+3)/4, f.BlockSize
	}
	ok := true
	rowPitch, ok = mulSize(cols, unit, ok)
	slicePitch, ok = mulSize(rowPitch, rows, ok)
	size, ok = mulSize(slicePitch, depth, ok)
	if !ok {
		return 0, 0, 0, fmt.Errorf("%w: %s %dx%dx%d", ErrTooLarge, f.Name, width, height, depth)
	}
	return rowPitch, slicePitch, size, nil
}

// mulSize multiplies two non-negative sizes, clearing ok when the product
// exceeds MaxDataSize.
func mulSize(a, b int, ok bool) (int, bool) {
	if !ok || (b != 0 && a > MaxDataSize/b) {
		return 0, false
	}
	return a * b, true
}

func (f FormatInfo) String() string { return f.Name }

func raw(f Format, name string, cs ColorSpace, channels, bpp int, el ElementType) FormatInfo {
	return FormatInfo{Format: f, Name: name, ColorSpace: cs, Channels: channels, BitsPerPixel: bpp, Element: el}
}

func block(f Format, name string, cs ColorSpace, channels, blockSize int) FormatInfo {
	return FormatInfo{Format: f, Name: name, ColorSpace: cs, Channels: channels, BitsPerPixel: blockSize / 2, BlockSize: blockSize}
}

var catalog = func() map[Format]FormatInfo {
	entries := []FormatInfo{
		raw(FormatR32G32B32A32Float, "R32G32B32A32_FLOAT", Linear, 4, 128, ElementFloat32),
		raw(FormatR32G32B32A32Uint, "R32G32B32A32_UINT", Linear, 4, 128, ElementUint32),
		raw(FormatR16G16B16A16Float, "R16G16B16A16_FLOAT", Linear, 4, 64, ElementFloat16),
		raw(FormatR16G16B16A16Unorm, "R16G16B16A16_UNORM", Linear, 4, 64, ElementUint16),
		raw(FormatR16G16B16A16Uint, "R16G16B16A16_UINT", Linear, 4, 64, ElementUint16),
		raw(FormatR10G10B10A2Unorm, "R10G10B10A2_UNORM", Linear, 4, 32, ElementNone),
		raw(FormatR11G11B10Float, "R11G11B10_FLOAT", Linear, 3, 32, ElementNone),
		raw(FormatR8G8B8A8Unorm, "R8G8B8A8_UNORM", Linear, 4, 32, ElementUint8),
		raw(FormatR8G8B8A8UnormSRGB, "R8G8B8A8_UNORM_SRGB", SRGB, 4, 32, ElementUint8),
		raw(FormatR8G8B8A8Uint, "R8G8B8A8_UINT", Linear, 4, 32, ElementUint8),
		raw(FormatR16G16Unorm, "R16G16_UNORM", Linear, 2, 32, ElementUint16),
		raw(FormatR32Float, "R32_FLOAT", Linear, 1, 32, ElementFloat32),
		raw(FormatR8G8Unorm, "R8G8_UNORM", Linear, 2, 16, ElementUint8),
		raw(FormatR16Unorm, "R16_UNORM", Linear, 1, 16, ElementUint16),
		raw(FormatR8Unorm, "R8_UNORM", Linear, 1, 8, ElementUint8),
		raw(FormatA8Unorm, "A8_UNORM", Linear, 1, 8, ElementUint8),
		raw(FormatB5G6R5Unorm, "B5G6R5_UNORM", Linear, 3, 16, ElementNone),
		raw(FormatB5G5R5A1Unorm, "B5G5R5A1_UNORM", Linear, 4, 16, ElementNone),
		raw(FormatB8G8R8A8Unorm, "B8G8R8A8_UNORM", Linear, 4, 32, ElementUint8),
		raw(FormatB8G8R8X8Unorm, "B8G8R8X8_UNORM", Linear, 4, 32, ElementUint8),
		raw(FormatB8G8R8A8UnormSRGB, "B8G8R8A8_UNORM_SRGB", SRGB, 4, 32, ElementUint8),
		raw(FormatB8G8R8X8UnormSRGB, "B8G8R8X8_UNORM_SRGB", SRGB, 4, 32, ElementUint8),
		raw(FormatB4G4R4A4Unorm, "B4G4R4A4_UNORM", Linear, 4, 16, ElementNone),

		block(FormatBC1Unorm, "BC1_UNORM", Linear, 4, 8),
		block(FormatBC1UnormSRGB, "BC1_UNORM_SRGB", SRGB, 4, 8),
		block(FormatBC2Unorm, "BC2_UNORM", Linear, 4, 16),
		block(FormatBC2UnormSRGB, "BC2_UNORM_SRGB", SRGB, 4, 16),
		block(FormatBC3Unorm, "BC3_UNORM", Linear, 4, 16),
		block(FormatBC3UnormSRGB, "BC3_UNORM_SRGB", SRGB, 4, 16),
		block(FormatBC4Unorm, "BC4_UNORM", Linear, 1, 8),
		block(FormatBC4Snorm, "BC4_SNORM", Linear, 1, 8),
		block(FormatBC5Unorm, "BC5_UNORM", Linear, 2, 16),
		block(FormatBC5Snorm, "BC5_SNORM", Linear, 2, 16),
		block(FormatBC6HUF16, "BC6H_UF16", Linear, 3, 16),
		block(FormatBC6HSF16, "BC6H_SF16", Linear, 3, 16),
		block(FormatBC7Unorm, "BC7_UNORM", Linear, 4, 16),
		block(FormatBC7UnormSRGB, "BC7_UNORM_SRGB", SRGB, 4, 16),
		block(FormatETC1RGB, "ETC1_RGB", Linear, 3, 8),
		block(FormatETC2RGB, "ETC2_RGB", Linear, 3, 8),
		block(FormatETC2SRGB, "ETC2_SRGB", SRGB, 3, 8),
		block(FormatETC2RGBA1, "ETC2_RGBA1", Linear, 4, 8),
	}
	m := make(map[Format]FormatInfo, len(entries))
	for _, e := range entries {
		if _, dup := m[e.Format]; dup {
			panic(fmt.Sprintf("texture: duplicate catalog entry %s", e.Name))
		}
		m[e.Format] = e
	}
	return m
}()

var srgbPairs = map[Format]Format{
	FormatR8G8B8A8Unorm: FormatR8G8B8A8UnormSRGB,
	FormatB8G8R8A8Unorm: FormatB8G8R8A8UnormSRGB,
	FormatB8G8R8X8Unorm: FormatB8G8R8X8UnormSRGB,
	FormatBC1Unorm:      FormatBC1UnormSRGB,
	FormatBC2Unorm:      FormatBC2UnormSRGB,
	FormatBC3Unorm:      FormatBC3UnormSRGB,
	FormatBC7Unorm:      FormatBC7UnormSRGB,
	FormatETC2RGB:       FormatETC2SRGB,
}

// Lookup returns the catalog entry for f.
func Lookup(f Format) (FormatInfo, error) {
	info, ok := catalog[f]
	if !ok {
		return FormatInfo{}, fmt.Errorf("%w: 0x%x", ErrUnsupportedFormat, uint32(f))
	}
	return info, nil
}

// MustLookup is Lookup for formats known at compile time.
func MustLookup(f Format) FormatInfo {
	info, err := Lookup(f)
	if err != nil {
		panic(err)
	}
	return info
}

// Formats returns every catalogued format in tag order.
func Formats() []Format {
	out := make([]Format, 0, len(catalog))
	for f := range catalog {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ParseFormat finds a format by catalog name, case-sensitive.
func ParseFormat(name string) (Format, error) {
	for f, info := range catalog {
		if info.Name == name {
			return f, nil
		}
	}
	return FormatUnknown, fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
}

// ToSRGB returns the sRGB sibling of f, or f itself.
func ToSRGB(f Format) Format {
	if s, ok := srgbPairs[f]; ok {
		return s
	}
	return f
}

// ToLinear returns the linear sibling of f, or f itself.
func ToLinear(f Format) Format {
	for lin, s := range srgbPairs {
		if s == f {
			return lin
		}
	}
	return f
}

// ComputePitch returns the row and slice pitch of a width x height surface.
// Zero dimensions give zero pitches.
func ComputePitch(f Format, width, height int) (rowPitch, slicePitch int, err error) {
	if width < 0 || height < 0 {
		return 0, 0, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	info, err := Lookup(f)
	if err != nil {
		return 0, 0, err
	}
	if width == 0 || height == 0 {
		return 0, 0, nil
	}
	rowPitch, slicePitch, _, err = info.SurfaceSize(width, height, 1)
	return rowPitch, slicePitch, err
}

// FormatName returns a human-readable name for a format tag.
func FormatName(f Format) string {
	if info, ok := catalog[f]; ok {
		return info.Name
	}
	return fmt.Sprintf("UNKNOWN(0x%x)", uint32(f))
}

func (f Format) String() string { return FormatName(f) }
