// Package convert wires the codecs and bridges into a file conversion
// pipeline: decode, optional block decompression, normal map handling,
// optional mip generation and block compression, encode.
package convert

import (
	"fmt"
	"time"

	"github.com/EchoTools/texforge/pkg/bridge"
	"github.com/EchoTools/texforge/pkg/codec"
	"github.com/EchoTools/texforge/pkg/container"
	"github.com/EchoTools/texforge/pkg/dds"
	"github.com/EchoTools/texforge/pkg/raster"
	"github.com/EchoTools/texforge/pkg/sidecar"
	"github.com/EchoTools/texforge/pkg/texture"
	"github.com/EchoTools/texforge/pkg/transform"
)

// Converter converts files between the formats of its registry.
type Converter struct {
	Registry *codec.Registry
	Bridges  *bridge.Set
}

func New(reg *codec.Registry, bridges *bridge.Set) *Converter {
	if bridges == nil {
		bridges = bridge.NewSet()
	}
	return &Converter{Registry: reg, Bridges: bridges}
}

// DefaultRegistry returns a registry holding every built-in codec.
func DefaultRegistry() *codec.Registry {
	reg := codec.NewRegistry(container.New(), dds.New())
	for _, c := range raster.Codecs() {
		reg.Register(c)
	}
	reg.Register(sidecar.New())
	return reg
}

// DefaultBridges returns the built-in bridges, each serialized.
func DefaultBridges() *bridge.Set {
	return bridge.NewSet(
		bridge.Serialized(bridge.NewDXT()),
		bridge.Serialized(bridge.NewRGTC()),
		bridge.Serialized(bridge.NewETC()),
	)
}

// Default returns a converter with every built-in codec and bridge.
func Default() *Converter { return New(DefaultRegistry(), DefaultBridges()) }

// Convert reads src, processes it for the codec of dst and writes dst.
func (c *Converter) Convert(src, dst string, opts *codec.Options) error {
	opts = codec.OrDefault(opts)
	if err := opts.Validate(); err != nil {
		return err
	}
	start := time.Now()
	in, err := c.Registry.ResolvePath(src)
	if err != nil {
		return err
	}
	out, err := c.Registry.ResolvePath(dst)
	if err != nil {
		return err
	}

	tex, err := codec.LoadFile(in, src, opts)
	if err != nil {
		return err
	}
	tex, err = c.Process(tex, out, opts)
	if err != nil {
		return fmt.Errorf("process %s: %w", src, err)
	}
	if err := codec.SaveFile(out, dst, tex, opts); err != nil {
		return err
	}
	codec.Logger().Info("converted",
		"src", src,
		"dst", dst,
		"format", tex.Format().Name,
		"elapsed", time.Since(start))
	return nil
}

// Process prepares tex for target. The returned texture may share images
// with tex.
func (c *Converter) Process(tex *texture.Texture, target codec.Codec, opts *codec.Options) (*texture.Texture, error) {
	opts = codec.OrDefault(opts)
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if err := tex.Validate(); err != nil {
		return nil, err
	}
	desc := target.Describe()
	source := tex.Format()

	needPixels := opts.Decompress || opts.GenerateMips || opts.AutoCompress ||
		!desc.Supports(source.Format)
	if !needPixels {
		return tex, nil
	}

	out, err := c.linear(tex, opts)
	if err != nil {
		return nil, err
	}
	if err := c.expand(out, desc, opts); err != nil {
		return nil, err
	}

	if opts.AutoNormalMap && !out.NormalMap {
		if out.NormalMap = transform.IsNormalMap(out.Images[0]); out.NormalMap {
			codec.Logger().Debug("detected normal map", "name", out.Name)
		}
	}
	if out.NormalMap && source.Channels == 2 && out.Format().Channels == 4 {
		for i, img := range out.Images {
			if err := transform.RestoreZ(img); err != nil {
				return nil, fmt.Errorf("restore Z of image %d: %w", i, err)
			}
		}
	}

	if opts.GenerateMips {
		if out, err = generateMips(out); err != nil {
			return nil, err
		}
	}
	if opts.AutoCompress {
		if err := c.compress(out, desc, opts); err != nil {
			return nil, err
		}
	}
	if !desc.Supports(out.Format().Format) {
		return nil, fmt.Errorf("%w: %s cannot store %s", texture.ErrUnsupportedFormat, desc.Name, out.Format().Name)
	}
	return out, nil
}

// linear returns a copy of tex in linear memory order that the pipeline
// may modify freely.
func (c *Converter) linear(tex *texture.Texture, opts *codec.Options) (*texture.Texture, error) {
	images, err := codec.LinearImages(tex, opts)
	if err != nil {
		return nil, err
	}
	out := *tex
	out.Images = make([]*texture.Image, len(images))
	for i, img := range images {
		if tex.Platform == texture.PlatformNone {
			img = img.Clone()
		}
		out.Images[i] = img
	}
	out.Platform = texture.PlatformNone
	return &out, nil
}

// expand turns block data into RGBA8 when decompression is requested or
// the target cannot store the format, and widens other formats the
// target cannot store.
func (c *Converter) expand(tex *texture.Texture, desc codec.Descriptor, opts *codec.Options) error {
	info := tex.Format()
	switch {
	case info.Compressed() && (opts.Decompress || opts.GenerateMips || !desc.Supports(info.Format)):
		for i, img := range tex.Images {
			rgba, err := c.Bridges.Decode(img)
			if err != nil {
				return fmt.Errorf("decompress image %d: %w", i, err)
			}
			tex.Images[i] = rgba
		}
	case !info.Compressed() && (opts.GenerateMips || !desc.Supports(info.Format)):
		if !transform.CanExpand(info.Format) {
			return fmt.Errorf("%w: %s cannot store %s", texture.ErrUnsupportedFormat, desc.Name, info.Name)
		}
		for i, img := range tex.Images {
			rgba, err := transform.ExpandToRGBA8(img)
			if err != nil {
				return fmt.Errorf("expand image %d: %w", i, err)
			}
			tex.Images[i] = rgba
		}
	}
	return nil
}
