package transform

import (
	"fmt"
	"image"

	bild "github.com/anthonynsimon/bild/transform"

	"github.com/EchoTools/texforge/pkg/texture"
)

// GenerateMips builds levels-1 downsampled images below base, which must
// be a 2D RGBA8 image. levels <= 0 means a full chain. The returned slice
// starts with base itself.
func GenerateMips(base *texture.Image, levels int) ([]*texture.Image, error) {
	if base.Format.Element != texture.ElementUint8 || base.Format.Channels != 4 || base.Format.Compressed() {
		return nil, fmt.Errorf("%w: mip generation needs RGBA8, got %s", ErrUnsupportedChannelLayout, base.Format.Name)
	}
	if base.Depth != 1 {
		return nil, fmt.Errorf("%w: mip generation of volume slices", ErrUnsupportedChannelLayout)
	}
	full := texture.MipLevels(base.Width, base.Height)
	if levels <= 0 || levels > full {
		levels = full
	}

	// bild treats the four channels independently, so straight alpha
	// passes through unchanged when wrapped as image.RGBA.
	src := &image.RGBA{
		Pix:    base.Pix,
		Stride: base.RowPitch,
		Rect:   image.Rect(0, 0, base.Width, base.Height),
	}
	out := []*texture.Image{base}
	for level := 1; level < levels; level++ {
		w, h, _ := texture.MipDims(base.Width, base.Height, 1, level)
		resized := bild.Resize(src, w, h, bild.Linear)
		pix := make([]byte, w*h*4)
		for y := 0; y < h; y++ {
			copy(pix[y*w*4:(y+1)*w*4], resized.Pix[y*resized.Stride:])
		}
		img, err := texture.ImageFromPixels(base.Format.Format, w, h, 1, pix)
		if err != nil {
			return nil, fmt.Errorf("mip %d: %w", level, err)
		}
		out = append(out, img)
	}
	return out, nil
}
