package bridge

import (
	"errors"
	"fmt"

	"github.com/EchoTools/texforge/pkg/texture"
)

// RGTC decodes the unsigned one- and two-channel block formats BC4 and
// BC5. BC4 yields (r, 0, 0, 255) and BC5 (r, g, 0, 255), so a BC5 normal
// map comes out with an empty Z channel. It has no encoder.
type RGTC struct{}

func NewRGTC() *RGTC { return &RGTC{} }

func (*RGTC) Name() string { return "rgtc" }

func (*RGTC) Decodes(f texture.Format) bool {
	return f == texture.FormatBC4Unorm || f == texture.FormatBC5Unorm
}

func (*RGTC) Encodes(texture.Format) bool { return false }

func (*RGTC) Decode(img *texture.Image) (*texture.Image, error) {
	channels := 0
	switch img.Format.Format {
	case texture.FormatBC4Unorm:
		channels = 1
	case texture.FormatBC5Unorm:
		channels = 2
	default:
		return nil, fmt.Errorf("%w: %s", texture.ErrUnsupportedFormat, img.Format.Name)
	}
	blockW, blockH := (img.Width+3)/4, (img.Height+3)/4
	blockSize := channels * 8
	out := make([]byte, img.Width*img.Height*img.Depth*4)
	for i := 3; i < len(out); i += 4 {
		out[i] = 0xFF
	}
	for z := 0; z < img.Depth; z++ {
		data := img.Slice(z)
		if len(data) < blockW*blockH*blockSize {
			return nil, errors.New("data truncated")
		}
		dst := out[z*img.Width*img.Height*4:]
		offset := 0
		for by := 0; by < blockH; by++ {
			for bx := 0; bx < blockW; bx++ {
				for c := 0; c < channels; c++ {
					values := decodeChannelBlock(data[offset : offset+8])
					offset += 8
					for pidx, v := range values {
						x, y := bx*4+pidx%4, by*4+pidx/4
						if x >= img.Width || y >= img.Height {
							continue
						}
						dst[(y*img.Width+x)*4+c] = v
					}
				}
			}
		}
	}
	return texture.ImageFromPixels(texture.FormatR8G8B8A8Unorm, img.Width, img.Height, img.Depth, out)
}

func (*RGTC) Encode(_ *texture.Image, _ texture.Format) (*texture.Image, error) {
	return nil, errors.New("rgtc: encoding is not supported")
}

// decodeChannelBlock expands one 8-byte interpolated channel block (the
// BC3 alpha block layout) into 16 values in row-major order.
func decodeChannelBlock(b []byte) [16]uint8 {
	v0, v1 := b[0], b[1]
	indices := uint64(0)
	for i := 0; i < 6; i++ {
		indices |= uint64(b[2+i]) << (i * 8)
	}

	var palette [8]uint8
	palette[0], palette[1] = v0, v1
	if v0 > v1 {
		for i := 2; i < 8; i++ {
			palette[i] = uint8((int(v0)*(8-i) + int(v1)*(i-1)) / 7)
		}
	} else {
		for i := 2; i < 6; i++ {
			palette[i] = uint8((int(v0)*(6-i) + int(v1)*(i-1)) / 5)
		}
		palette[6], palette[7] = 0, 255
	}

	var out [16]uint8
	for i := range out {
		out[i] = palette[(indices>>(3*i))&7]
	}
	return out
}
