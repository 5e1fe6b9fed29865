// Package raster provides codecs for standard single-image formats: PNG,
// JPEG, BMP, TIFF, TGA and Radiance HDR.
//
// A raster file holds one image, so decoding yields a texture with a
// single mip, array element and face, and encoding writes the first
// image of a texture. Block-compressed textures must be decompressed
// first; see the convert package.
package raster

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"

	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"

	"github.com/EchoTools/texforge/pkg/codec"
	"github.com/EchoTools/texforge/pkg/texture"
	"github.com/EchoTools/texforge/pkg/transform"
)

// JPEGQuality is the quality used when writing JPEG files.
const JPEGQuality = 95

// Codecs returns every raster codec.
func Codecs() []codec.Codec {
	return []codec.Codec{PNG(), JPEG(), BMP(), TIFF(), TGA(), HDR()}
}

// imageCodec adapts an image.Image decoder and encoder pair.
type imageCodec struct {
	desc   codec.Descriptor
	wide   bool // keeps 16 bits per channel
	config func(io.Reader) (image.Config, error)
	decode func(io.Reader) (image.Image, error)
	encode func(io.Writer, image.Image) error
}

func newImageCodec(name, formatName string, exts []string, wide bool,
	config func(io.Reader) (image.Config, error),
	decode func(io.Reader) (image.Image, error), encode func(io.Writer, image.Image) error) *imageCodec {
	return &imageCodec{
		desc: codec.Descriptor{
			Name:       name,
			FormatName: formatName,
			Extensions: exts,
			Formats:    nativeFormats(wide),
		},
		wide:   wide,
		config: config,
		decode: decode,
		encode: encode,
	}
}

// PNG returns the PNG codec. 16-bit images keep their precision.
func PNG() codec.Codec {
	return newImageCodec("png", "Portable Network Graphics", []string{".png"}, true,
		png.DecodeConfig, png.Decode, png.Encode)
}

// JPEG returns the JPEG codec.
func JPEG() codec.Codec {
	return newImageCodec("jpeg", "JPEG", []string{".jpg", ".jpeg"}, false,
		jpeg.DecodeConfig, jpeg.Decode,
		func(w io.Writer, img image.Image) error {
			return jpeg.Encode(w, img, &jpeg.Options{Quality: JPEGQuality})
		})
}

// BMP returns the Windows bitmap codec.
func BMP() codec.Codec {
	return newImageCodec("bmp", "Windows Bitmap", []string{".bmp"}, false,
		bmp.DecodeConfig, bmp.Decode, bmp.Encode)
}

// TIFF returns the TIFF codec, writing deflate-compressed files. 16-bit
// images keep their precision.
func TIFF() codec.Codec {
	return newImageCodec("tiff", "Tagged Image File Format", []string{".tif", ".tiff"}, true,
		tiff.DecodeConfig, tiff.Decode,
		func(w io.Writer, img image.Image) error {
			return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
		})
}

// TGA returns the Truevision TGA codec.
func TGA() codec.Codec {
	return newImageCodec("tga", "Truevision TGA", []string{".tga"}, false,
		decodeTGAConfig, decodeTGA, encodeTGA)
}

func (c *imageCodec) Describe() codec.Descriptor { return c.desc }

func (c *imageCodec) Decode(data []byte, opts *codec.Options) (*texture.Texture, error) {
	// The header is checked against the texture limits before the
	// decoder allocates the image.
	cfg, err := c.config(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s header: %w", c.desc.Name, err)
	}
	decoded := texture.FormatR8G8B8A8Unorm
	switch cfg.ColorModel {
	case color.RGBA64Model, color.NRGBA64Model, color.Gray16Model:
		if c.wide {
			decoded = texture.FormatR16G16B16A16Unorm
		}
	}
	if cfg.Width > 0 && cfg.Height > 0 {
		if _, err := texture.DataSize(decoded, cfg.Width, cfg.Height, 1, 1, 1, 1); err != nil {
			return nil, fmt.Errorf("decode %s: %w", c.desc.Name, err)
		}
	}
	img, err := c.decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", c.desc.Name, err)
	}
	tex, err := fromImage(img, c.wide)
	if err != nil {
		return nil, err
	}
	if err := codec.UnswizzleTexture(tex, opts); err != nil {
		return nil, err
	}
	return tex, nil
}

func (c *imageCodec) Encode(tex *texture.Texture, opts *codec.Options) ([]byte, error) {
	src, err := firstImage(tex, opts)
	if err != nil {
		return nil, err
	}
	img, err := toImage(src, c.wide)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := c.encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode %s: %w", c.desc.Name, err)
	}
	return buf.Bytes(), nil
}

// nativeFormats lists the formats a raster codec stores without
// conversion. Encode also accepts anything transform.ExpandToRGBA8
// handles.
func nativeFormats(wide bool) []texture.Format {
	out := []texture.Format{texture.FormatR8G8B8A8Unorm, texture.FormatR8G8B8A8UnormSRGB}
	if wide {
		out = append(out, texture.FormatR16G16B16A16Unorm)
	}
	return out
}

// firstImage returns the top-level image of tex as a linear 2D slice.
func firstImage(tex *texture.Texture, opts *codec.Options) (*texture.Image, error) {
	if len(tex.Images) == 0 {
		return nil, fmt.Errorf("%w: texture has no images", texture.ErrInvalidLayout)
	}
	images, err := codec.LinearImages(tex, opts)
	if err != nil {
		return nil, err
	}
	img := images[0]
	if err := img.Validate(); err != nil {
		return nil, err
	}
	if len(tex.Images) > 1 || img.Depth > 1 {
		codec.Logger().Debug("raster output keeps only the first image",
			"images", len(tex.Images), "depth", img.Depth)
	}
	if img.Depth > 1 {
		return texture.ImageFromPixels(img.Format.Format, img.Width, img.Height, 1,
			append([]byte(nil), img.Slice(0)...))
	}
	return img, nil
}

// fromImage converts a decoded image into a single-image texture: 16-bit
// sources become R16G16B16A16_UNORM when wide is set, everything else
// R8G8B8A8_UNORM with straight alpha.
func fromImage(src image.Image, wide bool) (*texture.Texture, error) {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if wide && is16Bit(src) {
		dst := image.NewNRGBA64(image.Rect(0, 0, w, h))
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
		pix := make([]byte, len(dst.Pix))
		for i := 0; i < len(pix); i += 2 {
			// image.NRGBA64 is big-endian; textures are little-endian.
			pix[i], pix[i+1] = dst.Pix[i+1], dst.Pix[i]
		}
		return single(texture.FormatR16G16B16A16Unorm, w, h, pix)
	}
	dst := toNRGBA(src)
	return single(texture.FormatR8G8B8A8Unorm, w, h, dst.Pix)
}

func single(f texture.Format, w, h int, pix []byte) (*texture.Texture, error) {
	tex, err := texture.New(f, w, h, 1, 1, 1, 1)
	if err != nil {
		return nil, err
	}
	if err := tex.Images[0].Replace(f, pix); err != nil {
		return nil, err
	}
	return tex, nil
}

func is16Bit(img image.Image) bool {
	switch img.(type) {
	case *image.NRGBA64, *image.RGBA64, *image.Gray16:
		return true
	}
	return false
}

// toNRGBA returns src as a tightly packed NRGBA image at the origin.
func toNRGBA(src image.Image) *image.NRGBA {
	b := src.Bounds()
	if n, ok := src.(*image.NRGBA); ok && b.Min == (image.Point{}) && n.Stride == 4*b.Dx() {
		return n
	}
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

// toImage wraps img for the standard encoders.
func toImage(img *texture.Image, wide bool) (image.Image, error) {
	rect := image.Rect(0, 0, img.Width, img.Height)
	if wide && img.Format.Format == texture.FormatR16G16B16A16Unorm {
		out := image.NewNRGBA64(rect)
		for i := 0; i < len(out.Pix); i += 2 {
			out.Pix[i], out.Pix[i+1] = img.Pix[i+1], img.Pix[i]
		}
		return out, nil
	}
	if !transform.CanExpand(img.Format.Format) {
		return nil, fmt.Errorf("%w: raster output needs uncompressed data, got %s", texture.ErrUnsupportedFormat, img.Format.Name)
	}
	rgba, err := transform.ExpandToRGBA8(img)
	if err != nil {
		return nil, err
	}
	return &image.NRGBA{Pix: rgba.Pix, Stride: rgba.RowPitch, Rect: rect}, nil
}
