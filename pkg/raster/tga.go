package raster

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
)

var ErrInvalidTGA = errors.New("raster: invalid TGA")

const (
	tgaHeaderSize = 18

	tgaTrueColor    = 2
	tgaGray         = 3
	tgaTrueColorRLE = 10
	tgaGrayRLE      = 11

	tgaRightToLeft = 0x10
	tgaTopToBottom = 0x20
)

// decodeTGAConfig reads the dimensions from a TGA header.
func decodeTGAConfig(r io.Reader) (image.Config, error) {
	var header [tgaHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return image.Config{}, fmt.Errorf("%w: short header: %v", ErrInvalidTGA, err)
	}
	return image.Config{
		ColorModel: color.NRGBAModel,
		Width:      int(header[12]) | int(header[13])<<8,
		Height:     int(header[14]) | int(header[15])<<8,
	}, nil
}

// decodeTGA reads uncompressed and RLE true-colour (24/32-bit) and
// greyscale (8-bit) images. Colour-mapped files are rejected.
func decodeTGA(r io.Reader) (image.Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(data) < tgaHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the header", ErrInvalidTGA, len(data))
	}
	idLength := int(data[0])
	colorMapType := data[1]
	imageType := data[2]
	width := int(data[12]) | int(data[13])<<8
	height := int(data[14]) | int(data[15])<<8
	bpp := int(data[16])
	descriptor := data[17]

	if colorMapType != 0 {
		return nil, fmt.Errorf("%w: colour-mapped images are not supported", ErrInvalidTGA)
	}
	gray := imageType == tgaGray || imageType == tgaGrayRLE
	rle := imageType == tgaTrueColorRLE || imageType == tgaGrayRLE
	switch {
	case imageType != tgaTrueColor && imageType != tgaTrueColorRLE && !gray:
		return nil, fmt.Errorf("%w: image type %d", ErrInvalidTGA, imageType)
	case gray && bpp != 8, !gray && bpp != 24 && bpp != 32:
		return nil, fmt.Errorf("%w: %d bits per pixel for type %d", ErrInvalidTGA, bpp, imageType)
	case width == 0 || height == 0:
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidTGA, width, height)
	}

	offset := tgaHeaderSize + idLength
	if offset > len(data) {
		return nil, fmt.Errorf("%w: truncated image ID", ErrInvalidTGA)
	}
	bytesPerPixel := bpp / 8
	pixels := width * height

	var stream []byte
	if rle {
		stream, err = unpackTGARLE(data[offset:], pixels, bytesPerPixel)
		if err != nil {
			return nil, err
		}
	} else {
		need := pixels * bytesPerPixel
		if len(data)-offset < need {
			return nil, fmt.Errorf("%w: pixel data truncated", ErrInvalidTGA)
		}
		stream = data[offset : offset+need]
	}

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for i := 0; i < pixels; i++ {
		x, y := i%width, i/width
		if descriptor&tgaTopToBottom == 0 {
			y = height - 1 - y
		}
		if descriptor&tgaRightToLeft != 0 {
			x = width - 1 - x
		}
		src := stream[i*bytesPerPixel:]
		dst := img.Pix[img.PixOffset(x, y):]
		if gray {
			dst[0], dst[1], dst[2], dst[3] = src[0], src[0], src[0], 0xFF
			continue
		}
		dst[0], dst[1], dst[2], dst[3] = src[2], src[1], src[0], 0xFF
		if bytesPerPixel == 4 {
			dst[3] = src[3]
		}
	}
	return img, nil
}

// unpackTGARLE expands run-length packets into a flat pixel stream.
func unpackTGARLE(data []byte, pixels, bytesPerPixel int) ([]byte, error) {
	// A packet covers at most 128 pixels.
	if packets := (pixels + 127) / 128; len(data)/(1+bytesPerPixel) < packets {
		return nil, fmt.Errorf("%w: RLE data truncated", ErrInvalidTGA)
	}
	out := make([]byte, 0, pixels*bytesPerPixel)
	pos := 0
	for len(out) < cap(out) {
		if pos >= len(data) {
			return nil, fmt.Errorf("%w: RLE data truncated", ErrInvalidTGA)
		}
		packet := data[pos]
		pos++
		count := int(packet&0x7F) + 1
		if remaining := (cap(out) - len(out)) / bytesPerPixel; count > remaining {
			return nil, fmt.Errorf("%w: RLE packet overruns the image", ErrInvalidTGA)
		}
		if packet&0x80 != 0 {
			if pos+bytesPerPixel > len(data) {
				return nil, fmt.Errorf("%w: RLE data truncated", ErrInvalidTGA)
			}
			px := data[pos : pos+bytesPerPixel]
			pos += bytesPerPixel
			for i := 0; i < count; i++ {
				out = append(out, px...)
			}
			continue
		}
		n := count * bytesPerPixel
		if pos+n > len(data) {
			return nil, fmt.Errorf("%w: RLE data truncated", ErrInvalidTGA)
		}
		out = append(out, data[pos:pos+n]...)
		pos += n
	}
	return out, nil
}

// encodeTGA writes an uncompressed top-down 32-bit BGRA image.
func encodeTGA(w io.Writer, src image.Image) error {
	img := toNRGBA(src)
	width, height := img.Rect.Dx(), img.Rect.Dy()
	if width > 0xFFFF || height > 0xFFFF {
		return fmt.Errorf("%w: %dx%d exceeds 65535", ErrInvalidTGA, width, height)
	}
	buf := make([]byte, tgaHeaderSize+width*height*4)
	buf[2] = tgaTrueColor
	buf[12], buf[13] = byte(width), byte(width>>8)
	buf[14], buf[15] = byte(height), byte(height>>8)
	buf[16] = 32
	buf[17] = tgaTopToBottom | 8 // 8 alpha bits
	out := buf[tgaHeaderSize:]
	for i := 0; i < len(img.Pix); i += 4 {
		out[i], out[i+1], out[i+2], out[i+3] = img.Pix[i+2], img.Pix[i+1], img.Pix[i], img.Pix[i+3]
	}
	_, err := w.Write(buf)
	return err
}
