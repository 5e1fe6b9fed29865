package bridge

import (
	"bytes"
	"fmt"
	"image"

	"github.com/nigeltao/etc2/lib/etc2"
	"github.com/nigeltao/etc2/lib/pkm"
	"golang.org/x/image/draw"

	"github.com/EchoTools/texforge/pkg/texture"
)

// etcFormat ties a catalog format to its etc2 encoder format and the
// PKM header fields used to feed the decoder.
type etcFormat struct {
	format     etc2.Format
	pkmVersion byte // '1' or '2'
	pkmType    byte
}

var etcFormats = map[texture.Format]etcFormat{
	texture.FormatETC1RGB:   {etc2.FormatETC1, '1', 0x00},
	texture.FormatETC2RGB:   {etc2.FormatETC2RGB, '2', 0x01},
	texture.FormatETC2RGBA1: {etc2.FormatETC2RGBA1, '2', 0x04},
	texture.FormatETC2SRGB:  {etc2.FormatETC2SRGB, '2', 0x09},
}

const (
	pkmHeaderSize = 16
	pkmMaxSize    = 65532
)

// ETC encodes and decodes ETC1 and ETC2 RGB, sRGB and RGBA1 with
// github.com/nigeltao/etc2.
type ETC struct{}

func NewETC() *ETC { return &ETC{} }

func (*ETC) Name() string { return "etc2" }

func (*ETC) Decodes(f texture.Format) bool {
	_, ok := etcFormats[f]
	return ok
}

func (*ETC) Encodes(f texture.Format) bool {
	_, ok := etcFormats[f]
	return ok
}

func (*ETC) Decode(img *texture.Image) (*texture.Image, error) {
	ef, ok := etcFormats[img.Format.Format]
	if !ok {
		return nil, fmt.Errorf("%w: %s", texture.ErrUnsupportedFormat, img.Format.Name)
	}
	if img.Width > pkmMaxSize || img.Height > pkmMaxSize {
		return nil, fmt.Errorf("%dx%d exceeds the ETC size limit", img.Width, img.Height)
	}
	header := pkmHeader(ef, img.Width, img.Height)
	out := make([]byte, 0, img.Width*img.Height*4*img.Depth)
	for z := 0; z < img.Depth; z++ {
		src := make([]byte, 0, pkmHeaderSize+img.SlicePitch)
		src = append(append(src, header...), img.Slice(z)...)
		decoded, err := pkm.Decode(bytes.NewReader(src))
		if err != nil {
			return nil, err
		}
		dst := image.NewNRGBA(image.Rect(0, 0, img.Width, img.Height))
		draw.Draw(dst, dst.Bounds(), decoded, decoded.Bounds().Min, draw.Src)
		out = append(out, dst.Pix...)
	}
	return texture.ImageFromPixels(rgbaFor(img.Format), img.Width, img.Height, img.Depth, out)
}

func (*ETC) Encode(img *texture.Image, target texture.Format) (*texture.Image, error) {
	ef, ok := etcFormats[target]
	if !ok {
		return nil, fmt.Errorf("%w: %s", texture.ErrUnsupportedFormat, texture.FormatName(target))
	}
	var buf bytes.Buffer
	for z := 0; z < img.Depth; z++ {
		src := &image.NRGBA{
			Pix:    img.Slice(z),
			Stride: img.RowPitch,
			Rect:   image.Rect(0, 0, img.Width, img.Height),
		}
		if err := etc2.Encode(&buf, src, ef.format, nil); err != nil {
			return nil, err
		}
	}
	return texture.ImageFromPixels(target, img.Width, img.Height, img.Depth, buf.Bytes())
}

// pkmHeader builds the 16-byte PKM header for a w x h surface. Sizes are
// big-endian.
func pkmHeader(ef etcFormat, w, h int) []byte {
	rw, rh := (w+3)&^3, (h+3)&^3
	return []byte{
		'P', 'K', 'M', ' ',
		ef.pkmVersion, '0',
		0x00, ef.pkmType,
		byte(rw >> 8), byte(rw),
		byte(rh >> 8), byte(rh),
		byte(w >> 8), byte(w),
		byte(h >> 8), byte(h),
	}
}
