package bridge

import (
	"errors"
	"fmt"

	"github.com/mauserzjeh/dxt"

	"github.com/EchoTools/texforge/pkg/texture"
)

type dxtDecodeFunc func(data []byte, width, height uint) ([]byte, error)

// DXT decodes BC1, BC2 and BC3 (DXT1, DXT3 and DXT5) with
// github.com/mauserzjeh/dxt. It has no encoder.
type DXT struct{}

func NewDXT() *DXT { return &DXT{} }

func (*DXT) Name() string { return "dxt" }

func (*DXT) Decodes(f texture.Format) bool { return dxtDecoder(f) != nil }

func (*DXT) Encodes(texture.Format) bool { return false }

func dxtDecoder(f texture.Format) dxtDecodeFunc {
	switch f {
	case texture.FormatBC1Unorm, texture.FormatBC1UnormSRGB:
		return dxt.DecodeDXT1
	case texture.FormatBC2Unorm, texture.FormatBC2UnormSRGB:
		return dxt.DecodeDXT3
	case texture.FormatBC3Unorm, texture.FormatBC3UnormSRGB:
		return dxt.DecodeDXT5
	}
	return nil
}

func (*DXT) Decode(img *texture.Image) (*texture.Image, error) {
	decode := dxtDecoder(img.Format.Format)
	if decode == nil {
		return nil, fmt.Errorf("%w: %s", texture.ErrUnsupportedFormat, img.Format.Name)
	}
	// The library works on whole blocks; decode the padded surface and crop.
	pw, ph := (img.Width+3)&^3, (img.Height+3)&^3
	row := img.Width * 4
	out := make([]byte, 0, row*img.Height*img.Depth)
	for z := 0; z < img.Depth; z++ {
		rgba, err := decode(img.Slice(z), uint(pw), uint(ph))
		if err != nil {
			return nil, err
		}
		if len(rgba) != pw*ph*4 {
			return nil, fmt.Errorf("decoded %d bytes, want %d", len(rgba), pw*ph*4)
		}
		for y := 0; y < img.Height; y++ {
			out = append(out, rgba[y*pw*4:y*pw*4+row]...)
		}
	}
	return texture.ImageFromPixels(rgbaFor(img.Format), img.Width, img.Height, img.Depth, out)
}

func (*DXT) Encode(_ *texture.Image, target texture.Format) (*texture.Image, error) {
	return nil, errors.New("dxt: encoding is not supported")
}

// rgbaFor returns the RGBA8 format in the colour space of f.
func rgbaFor(f texture.FormatInfo) texture.Format {
	if f.ColorSpace == texture.SRGB {
		return texture.FormatR8G8B8A8UnormSRGB
	}
	return texture.FormatR8G8B8A8Unorm
}
