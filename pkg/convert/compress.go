package convert

import (
	"fmt"

	"github.com/EchoTools/texforge/pkg/codec"
	"github.com/EchoTools/texforge/pkg/texture"
	"github.com/EchoTools/texforge/pkg/transform"
)

var (
	modernBlockFormats = []texture.Format{texture.FormatBC7Unorm, texture.FormatBC3Unorm, texture.FormatBC1Unorm}
	legacyBlockFormats = []texture.Format{texture.FormatBC3Unorm, texture.FormatBC1Unorm}
	mobileBlockFormats = []texture.Format{texture.FormatETC2RGB, texture.FormatETC2RGBA1}
)

// blockCandidates lists the block formats to try for tex, best first.
// With alpha set, formats without an alpha channel are left out.
func blockCandidates(tex *texture.Texture, opts *codec.Options, alpha bool) []texture.Format {
	var out []texture.Format
	if tex.NormalMap {
		out = append(out, texture.FormatBC5Unorm)
	}
	if opts.ForceLegacyCompression {
		out = append(out, legacyBlockFormats...)
	} else {
		out = append(out, modernBlockFormats...)
	}
	out = append(out, mobileBlockFormats...)

	srgb := tex.Format().ColorSpace == texture.SRGB
	filtered := out[:0]
	for _, f := range out {
		if alpha && (f == texture.FormatBC1Unorm || f == texture.FormatETC2RGB) {
			continue
		}
		if srgb {
			f = texture.ToSRGB(f)
		}
		filtered = append(filtered, f)
	}
	return filtered
}

// pickBlockFormat returns the first candidate both desc and a bridge
// support, or FormatUnknown.
func (c *Converter) pickBlockFormat(desc codec.Descriptor, candidates []texture.Format) texture.Format {
	for _, f := range candidates {
		if desc.Supports(f) && c.Bridges.Encodable(f) {
			return f
		}
	}
	return texture.FormatUnknown
}

func hasAlpha(images []*texture.Image) bool {
	for _, img := range images {
		if transform.HasAlpha(img) {
			return true
		}
	}
	return false
}

// compress encodes an uncompressed tex in place to the best block format
// that both the target codec and a bridge support. When there is none the
// texture is left untouched.
func (c *Converter) compress(tex *texture.Texture, desc codec.Descriptor, opts *codec.Options) error {
	info := tex.Format()
	if info.Compressed() {
		return nil
	}
	// Alpha only removes candidates, so no match here means no match at all.
	if c.pickBlockFormat(desc, blockCandidates(tex, opts, false)) == texture.FormatUnknown {
		codec.Logger().Warn("no block encoder for target, keeping uncompressed",
			"codec", desc.Name, "format", info.Name)
		return nil
	}

	images := tex.Images
	if info.Format != texture.FormatR8G8B8A8Unorm && info.Format != texture.FormatR8G8B8A8UnormSRGB {
		if !transform.CanExpand(info.Format) {
			codec.Logger().Warn("cannot compress format", "format", info.Name)
			return nil
		}
		images = make([]*texture.Image, len(tex.Images))
		for i, img := range tex.Images {
			rgba, err := transform.ExpandToRGBA8(img)
			if err != nil {
				return fmt.Errorf("expand image %d: %w", i, err)
			}
			images[i] = rgba
		}
	}

	target := c.pickBlockFormat(desc, blockCandidates(tex, opts, hasAlpha(images)))
	if target == texture.FormatUnknown {
		codec.Logger().Warn("no block encoder for translucent texture, keeping uncompressed",
			"codec", desc.Name, "format", info.Name)
		return nil
	}

	packed := make([]*texture.Image, len(images))
	for i, img := range images {
		if target == texture.FormatBC5Unorm {
			if img == tex.Images[i] {
				img = img.Clone()
			}
			if err := transform.RemoveZ(img); err != nil {
				return fmt.Errorf("remove Z of image %d: %w", i, err)
			}
		}
		out, err := c.Bridges.Encode(img, target)
		if err != nil {
			return fmt.Errorf("compress image %d: %w", i, err)
		}
		packed[i] = out
	}
	tex.Images = packed
	codec.Logger().Debug("compressed", "format", texture.FormatName(target), "images", len(packed))
	return nil
}

// generateMips replaces the single level of each surface of tex with a
// full chain. Textures that already have mips, and volumes, are returned
// unchanged.
func generateMips(tex *texture.Texture) (*texture.Texture, error) {
	if tex.MipCount > 1 || tex.Depth > 1 {
		codec.Logger().Debug("skipping mip generation", "mips", tex.MipCount, "depth", tex.Depth)
		return tex, nil
	}
	images := make([]*texture.Image, 0, len(tex.Images)*texture.MipLevels(tex.Width(), tex.Height()))
	levels := 0
	for i, base := range tex.Images {
		chain, err := transform.GenerateMips(base, 0)
		if err != nil {
			return nil, fmt.Errorf("mips for image %d: %w", i, err)
		}
		levels = len(chain)
		images = append(images, chain...)
	}
	out := *tex
	out.Images = images
	out.MipCount = levels
	return &out, nil
}
