package raster

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mrjoshuak/go-openexr/half"

	"github.com/EchoTools/texforge/pkg/codec"
	"github.com/EchoTools/texforge/pkg/texture"
	"github.com/EchoTools/texforge/pkg/transform"
)

var ErrInvalidHDR = errors.New("raster: invalid Radiance HDR")

const (
	hdrFormat   = "32-bit_rle_rgbe"
	hdrMaxWidth = 0x7FFF // widest scanline the new RLE encoding can describe
)

type hdrCodec struct{}

// HDR returns the Radiance RGBE codec. Decoded textures are
// R32G32B32A32_FLOAT with opaque alpha.
func HDR() codec.Codec { return hdrCodec{} }

func (hdrCodec) Describe() codec.Descriptor {
	return codec.Descriptor{
		Name:       "hdr",
		FormatName: "Radiance RGBE",
		Extensions: []string{".hdr"},
		Formats: []texture.Format{
			texture.FormatR32G32B32A32Float,
			texture.FormatR16G16B16A16Float,
			texture.FormatR8G8B8A8Unorm,
			texture.FormatR8G8B8A8UnormSRGB,
		},
	}
}

func (hdrCodec) Decode(data []byte, opts *codec.Options) (*texture.Texture, error) {
	width, height, body, err := readHDRHeader(data)
	if err != nil {
		return nil, err
	}
	size, err := texture.DataSize(texture.FormatR32G32B32A32Float, width, height, 1, 1, 1, 1)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidHDR, err)
	}
	if least := minScanline(width); len(body)/least < height {
		return nil, fmt.Errorf("%w: %d bytes cannot hold %d scanlines of %d pixels", ErrInvalidHDR, len(body), height, width)
	}

	pix := make([]byte, size)
	scan := make([]byte, width*4)
	for y := 0; y < height; y++ {
		if body, err = readScanline(body, scan, width); err != nil {
			return nil, fmt.Errorf("scanline %d: %w", y, err)
		}
		row := pix[y*width*16:]
		for x := 0; x < width; x++ {
			r, g, b := rgbeToFloat(scan[x*4:])
			binary.LittleEndian.PutUint32(row[x*16:], math.Float32bits(r))
			binary.LittleEndian.PutUint32(row[x*16+4:], math.Float32bits(g))
			binary.LittleEndian.PutUint32(row[x*16+8:], math.Float32bits(b))
			binary.LittleEndian.PutUint32(row[x*16+12:], math.Float32bits(1))
		}
	}
	if len(body) > 0 {
		codec.Logger().Debug("ignoring trailing HDR bytes", "bytes", len(body))
	}

	tex, err := single(texture.FormatR32G32B32A32Float, width, height, pix)
	if err != nil {
		return nil, err
	}
	if err := codec.UnswizzleTexture(tex, opts); err != nil {
		return nil, err
	}
	return tex, nil
}

func (hdrCodec) Encode(tex *texture.Texture, opts *codec.Options) ([]byte, error) {
	img, err := firstImage(tex, opts)
	if err != nil {
		return nil, err
	}
	rgb, err := floatPixels(img)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "#?RADIANCE\nFORMAT=%s\n\n-Y %d +X %d\n", hdrFormat, img.Height, img.Width)
	for i := 0; i < len(rgb); i += 3 {
		buf.Write(floatToRGBE(rgb[i], rgb[i+1], rgb[i+2]))
	}
	return buf.Bytes(), nil
}

// readHDRHeader parses the text header and returns the image size and
// the scanline data that follows it.
func readHDRHeader(data []byte) (width, height int, body []byte, err error) {
	line, rest, ok := bytes.Cut(data, []byte{'\n'})
	if !ok || (string(line) != "#?RADIANCE" && string(line) != "#?RGBE") {
		return 0, 0, nil, fmt.Errorf("%w: missing signature", ErrInvalidHDR)
	}
	for {
		line, rest, ok = bytes.Cut(rest, []byte{'\n'})
		if !ok {
			return 0, 0, nil, fmt.Errorf("%w: header not terminated", ErrInvalidHDR)
		}
		if len(line) == 0 {
			break
		}
		if value, found := strings.CutPrefix(string(line), "FORMAT="); found && value != hdrFormat {
			return 0, 0, nil, fmt.Errorf("%w: unsupported pixel format %q", ErrInvalidHDR, value)
		}
	}

	line, rest, ok = bytes.Cut(rest, []byte{'\n'})
	if !ok {
		return 0, 0, nil, fmt.Errorf("%w: missing resolution line", ErrInvalidHDR)
	}
	fields := strings.Fields(string(line))
	if len(fields) != 4 || fields[0] != "-Y" || fields[2] != "+X" {
		return 0, 0, nil, fmt.Errorf("%w: unsupported orientation %q", ErrInvalidHDR, line)
	}
	height, errH := strconv.Atoi(fields[1])
	width, errW := strconv.Atoi(fields[3])
	if errH != nil || errW != nil || width <= 0 || height <= 0 {
		return 0, 0, nil, fmt.Errorf("%w: bad resolution %q", ErrInvalidHDR, line)
	}
	return width, height, rest, nil
}

// minScanline returns the fewest bytes a scanline of width pixels can be
// stored in: all-run packets of 127 pixels per channel, or flat RGBE.
func minScanline(width int) int {
	if width < 8 || width > hdrMaxWidth {
		return width * 4
	}
	return 4 + 4*2*((width+126)/127)
}

// readScanline decodes one scanline into scan (width RGBE pixels) and
// returns the remaining input. New-style run-length scanlines and flat
// scanlines are supported.
func readScanline(data, scan []byte, width int) ([]byte, error) {
	if width < 8 || width > hdrMaxWidth || len(data) < 4 ||
		data[0] != 2 || data[1] != 2 || data[2]&0x80 != 0 {
		if len(data) < len(scan) {
			return nil, fmt.Errorf("%w: flat scanline truncated", ErrInvalidHDR)
		}
		copy(scan, data)
		return data[len(scan):], nil
	}
	if int(data[2])<<8|int(data[3]) != width {
		return nil, fmt.Errorf("%w: scanline width %d, want %d", ErrInvalidHDR, int(data[2])<<8|int(data[3]), width)
	}
	data = data[4:]
	for ch := 0; ch < 4; ch++ {
		for x := 0; x < width; {
			if len(data) == 0 {
				return nil, fmt.Errorf("%w: run-length data truncated", ErrInvalidHDR)
			}
			count := int(data[0])
			data = data[1:]
			if count > 128 {
				count -= 128
				if x+count > width || len(data) == 0 {
					return nil, fmt.Errorf("%w: bad run", ErrInvalidHDR)
				}
				for i := 0; i < count; i++ {
					scan[(x+i)*4+ch] = data[0]
				}
				data = data[1:]
			} else {
				if count == 0 || x+count > width || len(data) < count {
					return nil, fmt.Errorf("%w: bad literal run", ErrInvalidHDR)
				}
				for i := 0; i < count; i++ {
					scan[(x+i)*4+ch] = data[i]
				}
				data = data[count:]
			}
			x += count
		}
	}
	return data, nil
}

func rgbeToFloat(p []byte) (r, g, b float32) {
	if p[3] == 0 {
		return 0, 0, 0
	}
	f := float32(math.Ldexp(1, int(p[3])-(128+8)))
	return float32(p[0]) * f, float32(p[1]) * f, float32(p[2]) * f
}

func floatToRGBE(r, g, b float32) []byte {
	v := max(r, g, b)
	if v < 1e-32 {
		return []byte{0, 0, 0, 0}
	}
	frac, exp := math.Frexp(float64(v))
	scale := float32(frac * 256 / float64(v))
	return []byte{
		byte(max(r, 0) * scale),
		byte(max(g, 0) * scale),
		byte(max(b, 0) * scale),
		byte(exp + 128),
	}
}

// floatPixels returns the linear RGB values of img, three per pixel.
func floatPixels(img *texture.Image) ([]float32, error) {
	n := img.Width * img.Height
	out := make([]float32, 0, n*3)
	switch img.Format.Format {
	case texture.FormatR32G32B32A32Float:
		for i := 0; i < n; i++ {
			for c := 0; c < 3; c++ {
				out = append(out, math.Float32frombits(binary.LittleEndian.Uint32(img.Pix[i*16+c*4:])))
			}
		}
	case texture.FormatR16G16B16A16Float:
		for i := 0; i < n; i++ {
			for c := 0; c < 3; c++ {
				out = append(out, half.Half(binary.LittleEndian.Uint16(img.Pix[i*8+c*2:])).Float32())
			}
		}
	default:
		if !transform.CanExpand(img.Format.Format) {
			return nil, fmt.Errorf("%w: HDR output needs uncompressed data, got %s", texture.ErrUnsupportedFormat, img.Format.Name)
		}
		rgba, err := transform.ExpandToRGBA8(img)
		if err != nil {
			return nil, err
		}
		for i := 0; i < n; i++ {
			for c := 0; c < 3; c++ {
				out = append(out, float32(rgba.Pix[i*4+c])/255)
			}
		}
	}
	return out, nil
}
