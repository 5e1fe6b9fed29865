// Package dds reads and writes DirectDraw Surface files, the standard
// container for block-compressed textures.
//
// Formats with a pre-DX10 encoding are written with the classic header
// unless the texture is an array or Options.ForceDX10 is set; everything
// else gets the DX10 extension header. Surfaces are stored array element
// first, then face, then mip level, which is the canonical texture order.
package dds

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/EchoTools/texforge/pkg/binio"
	"github.com/EchoTools/texforge/pkg/codec"
	"github.com/EchoTools/texforge/pkg/texture"
)

var (
	ErrInvalidHeader = errors.New("dds: invalid header")
	ErrPartialCube   = errors.New("dds: cubemap without all six faces")
)

// Codec is the DDS codec. The zero value is ready to use.
type Codec struct{}

// New returns a DDS codec.
func New() *Codec { return &Codec{} }

func (*Codec) Describe() codec.Descriptor {
	return codec.Descriptor{
		Name:       "dds",
		FormatName: "DirectDraw Surface",
		Extensions: []string{".dds"},
		Formats:    Formats(),
	}
}

// Formats returns the catalog formats DDS can store: every DXGI format.
func Formats() []texture.Format {
	var out []texture.Format
	for _, f := range texture.Formats() {
		if isDXGI(f) {
			out = append(out, f)
		}
	}
	return out
}

// ETC formats live above the DXGI range and have no DDS encoding.
func isDXGI(f texture.Format) bool { return f < texture.FormatETC1RGB }

func (c *Codec) Decode(data []byte, opts *codec.Options) (*texture.Texture, error) {
	opts = codec.OrDefault(opts)
	r := bytes.NewReader(data)

	var header Header
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("read header: %w: %v", binio.ErrTruncated, err)
	}
	if header.Magic != Magic {
		return nil, fmt.Errorf("%w: magic 0x%08x", ErrInvalidHeader, header.Magic)
	}
	if header.Size != headerSize || header.PixelFormat.Size != pixelFormatSize {
		return nil, fmt.Errorf("%w: structure sizes %d/%d", ErrInvalidHeader, header.Size, header.PixelFormat.Size)
	}

	width, height := int(header.Width), int(header.Height)
	depth := 1
	if header.Caps2&Caps2Volume != 0 && header.Depth > 1 {
		depth = int(header.Depth)
	}
	mips := max(1, int(header.MipMapCount))
	arraySize, faces := 1, 1
	if header.Caps2&Caps2Cubemap != 0 {
		if header.Caps2&Caps2AllFaces != Caps2AllFaces {
			return nil, ErrPartialCube
		}
		faces = 6
	}

	var format texture.Format
	if header.PixelFormat.Flags&PFFourCC != 0 && header.PixelFormat.FourCC == dx10FourCC {
		var dx10 DX10Header
		if err := binary.Read(r, binary.LittleEndian, &dx10); err != nil {
			return nil, fmt.Errorf("read DX10 header: %w: %v", binio.ErrTruncated, err)
		}
		format = texture.Format(dx10.DXGIFormat)
		if !isDXGI(format) {
			return nil, fmt.Errorf("%w: DXGI format %d", texture.ErrUnsupportedFormat, dx10.DXGIFormat)
		}
		if dx10.ArraySize == 0 {
			return nil, fmt.Errorf("%w: array size 0", ErrInvalidHeader)
		}
		arraySize = int(dx10.ArraySize)
		switch dx10.ResourceDimension {
		case Dimension1D, Dimension2D:
			if dx10.MiscFlag&MiscFlagTextureCube != 0 {
				faces = 6
			}
		case Dimension3D:
			depth = max(1, int(header.Depth))
		default:
			return nil, fmt.Errorf("%w: resource dimension %d", ErrInvalidHeader, dx10.ResourceDimension)
		}
	} else {
		var ok bool
		if format, ok = legacyFormatOf(header.PixelFormat); !ok {
			return nil, fmt.Errorf("%w: pixel format flags 0x%x fourCC %q bits %d",
				texture.ErrUnsupportedFormat, header.PixelFormat.Flags, header.PixelFormat.FourCC[:], header.PixelFormat.RGBBitCount)
		}
	}

	if err := checkLimits(width, height, depth, mips, arraySize); err != nil {
		return nil, err
	}
	need, err := texture.DataSize(format, width, height, depth, mips, arraySize, faces)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}
	offset := len(data) - r.Len()
	if need > r.Len() {
		return nil, &binio.OffsetError{Offset: offset, Field: "surface data",
			Err: fmt.Errorf("%w: need %d bytes, have %d", binio.ErrTruncated, need, r.Len())}
	}

	tex, err := texture.New(format, width, height, depth, mips, arraySize, faces)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}
	for _, img := range tex.Images {
		offset += copy(img.Pix, data[offset:])
	}
	if extra := len(data) - offset; extra > 0 {
		codec.Logger().Debug("dds trailing bytes ignored", "bytes", extra)
	}
	tex.Gamma = tex.Format().ColorSpace == texture.SRGB

	if err := codec.UnswizzleTexture(tex, opts); err != nil {
		return nil, err
	}
	return tex, nil
}

// checkLimits rejects header counts outside the texture limits before any
// size is computed from them.
func checkLimits(width, height, depth, mips, arraySize int) error {
	for _, dim := range []int{width, height, depth} {
		if dim <= 0 || dim > texture.MaxDimension {
			return fmt.Errorf("%w: size %dx%dx%d outside [1, %d]", ErrInvalidHeader, width, height, depth, texture.MaxDimension)
		}
	}
	if limit := texture.MipLevels3D(width, height, depth); mips > limit {
		return fmt.Errorf("%w: %d mips for %dx%dx%d (max %d)", ErrInvalidHeader, mips, width, height, depth, limit)
	}
	if arraySize > texture.MaxArraySize {
		return fmt.Errorf("%w: array size %d exceeds %d", ErrInvalidHeader, arraySize, texture.MaxArraySize)
	}
	return nil
}

func (c *Codec) Encode(tex *texture.Texture, opts *codec.Options) ([]byte, error) {
	opts = codec.OrDefault(opts)
	if err := tex.Validate(); err != nil {
		return nil, fmt.Errorf("invalid texture: %w", err)
	}
	info := tex.Format()
	if !isDXGI(info.Format) {
		return nil, fmt.Errorf("%w: %s has no DDS encoding", texture.ErrUnsupportedFormat, info.Name)
	}
	images, err := codec.LinearImages(tex, opts)
	if err != nil {
		return nil, err
	}

	row, slice := info.Pitch(tex.Width(), tex.Height())
	header := Header{
		Magic:       Magic,
		Size:        headerSize,
		Flags:       FlagCaps | FlagHeight | FlagWidth | FlagPixelFormat | FlagMipMapCount,
		Height:      uint32(tex.Height()),
		Width:       uint32(tex.Width()),
		MipMapCount: uint32(tex.MipCount),
		Caps:        CapsTexture,
	}
	if info.Compressed() {
		header.Flags |= FlagLinearSize
		header.PitchOrLinearSize = uint32(slice)
	} else {
		header.Flags |= FlagPitch
		header.PitchOrLinearSize = uint32(row)
	}
	if tex.MipCount > 1 {
		header.Caps |= CapsComplex | CapsMipMap
	}
	if tex.IsCube() {
		header.Caps |= CapsComplex
		header.Caps2 |= Caps2Cubemap | Caps2AllFaces
	}
	if tex.Depth > 1 {
		header.Flags |= FlagDepth
		header.Depth = uint32(tex.Depth)
		header.Caps |= CapsComplex
		header.Caps2 |= Caps2Volume
	}

	pf, legacy := legacyEncoding(info.Format)
	useDX10 := !legacy || tex.ArraySize > 1 || opts.ForceDX10

	var buf bytes.Buffer
	buf.Grow(128 + 20 + tex.TotalSize())
	if useDX10 {
		header.PixelFormat = compressed(dx10FourCC)
	} else {
		header.PixelFormat = pf
	}
	if err := binary.Write(&buf, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	if useDX10 {
		dx10 := DX10Header{
			DXGIFormat:        uint32(info.Format),
			ResourceDimension: Dimension2D,
			ArraySize:         uint32(tex.ArraySize),
		}
		if tex.Depth > 1 {
			dx10.ResourceDimension = Dimension3D
		}
		if tex.IsCube() {
			dx10.MiscFlag = MiscFlagTextureCube
		}
		if err := binary.Write(&buf, binary.LittleEndian, &dx10); err != nil {
			return nil, fmt.Errorf("write dx10 header: %w", err)
		}
	}
	for _, img := range images {
		buf.Write(img.Pix)
	}
	return buf.Bytes(), nil
}
