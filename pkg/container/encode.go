package container

import (
	"encoding/binary"
	"fmt"

	"github.com/pierrec/lz4/v4"

	"github.com/EchoTools/texforge/pkg/archive"
	"github.com/EchoTools/texforge/pkg/binio"
	"github.com/EchoTools/texforge/pkg/codec"
	"github.com/EchoTools/texforge/pkg/texture"
)

// Encode writes tex in the layout named by opts.Version, the texture's own
// Version, or DefaultVersion, in that order. Values the texture carries
// win over opts: opts.Platform only applies to linear data, which is then
// swizzled for it.
func (c *Codec) Encode(tex *texture.Texture, opts *codec.Options) ([]byte, error) {
	opts = codec.OrDefault(opts)
	if err := tex.Validate(); err != nil {
		return nil, fmt.Errorf("invalid texture: %w", err)
	}

	version := opts.Version
	if version == "" {
		version = tex.Version
	}
	if version == "" {
		version = DefaultVersion
	}
	l, err := lookupLayout(version)
	if err != nil {
		return nil, err
	}

	images := tex.Images
	platform := tex.Platform
	if platform == texture.PlatformNone && opts.Platform != texture.PlatformNone {
		images, err = swizzled(tex.Images, opts.Platform, opts)
		if err != nil {
			return nil, err
		}
		platform = opts.Platform
	}
	legacy := tex.Legacy || opts.Legacy
	engine := tex.Engine
	if engine == "" && l.extended {
		engine = opts.Variant
	}
	surface := tex.Surface
	if surface == "" {
		surface = tex.SurfaceKind()
	}
	info := tex.Format()

	if !l.extended {
		if err := checkBasic(tex, engine, surface, info); err != nil {
			return nil, fmt.Errorf("%s: %w", version, err)
		}
	} else if !validSurfaces[surface] {
		return nil, fmt.Errorf("%w: surface %q", ErrUnrepresentable, surface)
	}
	if tex.FaceCount == 6 && tex.Width() != tex.Height() {
		return nil, fmt.Errorf("%w: cube faces must be square, got %dx%d", ErrUnrepresentable, tex.Width(), tex.Height())
	}

	w := binio.NewWriter(binary.LittleEndian)
	w.WriteFixedString(Magic)
	if err := w.WriteString(version); err != nil {
		return nil, fmt.Errorf("write version: %w", err)
	}
	w.WriteU8(uint8(platform))
	w.WriteBool(legacy)
	if legacy {
		w.SetByteOrder(binary.BigEndian)
	}

	if l.extended {
		if err := w.WriteString(engine); err != nil {
			return nil, fmt.Errorf("write engine: %w", err)
		}
	}
	if err := w.WriteString(tex.Name); err != nil {
		return nil, fmt.Errorf("write name: %w", err)
	}
	w.WriteU32(uint32(tex.Width()))
	w.WriteU32(uint32(tex.Height()))
	if l.extended {
		w.WriteU32(uint32(tex.Depth))
	}
	w.WriteU32(uint32(info.Format))
	w.WriteU32(uint32(tex.MipCount))
	if l.extended {
		w.WriteU32(uint32(tex.ArraySize))
		w.WriteU32(uint32(tex.FaceCount))
		w.WriteBool(tex.Gamma)
		if err := w.WriteString(surface); err != nil {
			return nil, fmt.Errorf("write surface: %w", err)
		}
	}

	switch l.storage {
	case storeRaw:
		for _, img := range images {
			w.WriteBytes(img.Pix)
		}
	case storeLZ4:
		if err := writeLZ4Blocks(w, images); err != nil {
			return nil, err
		}
	case storeZstd:
		payload := make([]byte, 0, tex.TotalSize())
		for _, img := range images {
			payload = append(payload, img.Pix...)
		}
		frame, err := archive.Pack(payload)
		if err != nil {
			return nil, fmt.Errorf("pack data: %w", err)
		}
		w.WriteBytes(frame)
	}

	if w.Len() > binio.MaxBufferSize {
		return nil, fmt.Errorf("%w: container of %d bytes", binio.ErrSizeOverflow, w.Len())
	}
	return w.Bytes(), nil
}

// checkBasic rejects textures that need fields GTEX1 does not have.
func checkBasic(tex *texture.Texture, engine, surface string, info texture.FormatInfo) error {
	switch {
	case tex.Depth != 1:
		return fmt.Errorf("%w: depth %d", ErrUnrepresentable, tex.Depth)
	case tex.ArraySize != 1:
		return fmt.Errorf("%w: array size %d", ErrUnrepresentable, tex.ArraySize)
	case tex.FaceCount != 1:
		return fmt.Errorf("%w: %d faces", ErrUnrepresentable, tex.FaceCount)
	case engine != "":
		return fmt.Errorf("%w: engine %q", ErrUnrepresentable, engine)
	case surface != texture.Surface2D:
		return fmt.Errorf("%w: surface %q", ErrUnrepresentable, surface)
	case tex.Gamma != (info.ColorSpace == texture.SRGB):
		return fmt.Errorf("%w: gamma flag differs from %s", ErrUnrepresentable, info.Name)
	}
	return nil
}

func swizzled(images []*texture.Image, p texture.Platform, opts *codec.Options) ([]*texture.Image, error) {
	table := opts.Unswizzlers()
	out := make([]*texture.Image, len(images))
	for i, img := range images {
		out[i] = img.Clone()
		if err := table.Swizzle(out[i], p); err != nil {
			return nil, fmt.Errorf("swizzle image %d for %s: %w", i, p, err)
		}
	}
	return out, nil
}

func writeLZ4Blocks(w *binio.Writer, images []*texture.Image) error {
	var buf []byte
	for i, img := range images {
		bound := lz4.CompressBlockBound(len(img.Pix))
		if cap(buf) < bound {
			buf = make([]byte, bound)
		}
		buf = buf[:bound]
		n, err := lz4.CompressBlock(img.Pix, buf, nil)
		if err != nil {
			return fmt.Errorf("compress block %d: %w", i, err)
		}
		w.WriteU32(uint32(len(img.Pix)))
		if n == 0 || n >= len(img.Pix) {
			w.WriteU32(uint32(len(img.Pix)))
			w.WriteBytes(img.Pix)
			continue
		}
		w.WriteU32(uint32(n))
		w.WriteBytes(buf[:n])
	}
	return nil
}
