// Package transform implements pixel-level operations on texture images:
// channel reordering, normal-map Z reconstruction, console memory layout
// conversion and mip chain generation.
package transform

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/mrjoshuak/go-openexr/half"

	"github.com/EchoTools/texforge/pkg/texture"
)

var ErrUnsupportedChannelLayout = errors.New("transform: unsupported channel layout")

// Channel is the closed set of element types the kernels operate on.
// Half floats are handled as uint16 bit patterns except by RestoreZ.
type Channel interface {
	~uint8 | ~uint16 | ~uint32 | ~float32
}

func checkStride[T Channel](px []T) error {
	if len(px)%4 != 0 {
		return fmt.Errorf("%w: %d elements is not a multiple of 4", ErrUnsupportedChannelLayout, len(px))
	}
	return nil
}

// ReverseChannelsSlice turns RGBA into ABGR in place.
func ReverseChannelsSlice[T Channel](px []T) error {
	if err := checkStride(px); err != nil {
		return err
	}
	for i := 0; i < len(px); i += 4 {
		px[i], px[i+1], px[i+2], px[i+3] = px[i+3], px[i+2], px[i+1], px[i]
	}
	return nil
}

// ReverseRBSlice swaps the first and third channel in place.
func ReverseRBSlice[T Channel](px []T) error {
	if err := checkStride(px); err != nil {
		return err
	}
	for i := 0; i < len(px); i += 4 {
		px[i], px[i+2] = px[i+2], px[i]
	}
	return nil
}

// RemoveZSlice zeroes the third and fourth channel.
func RemoveZSlice[T Channel](px []T) error {
	if err := checkStride(px); err != nil {
		return err
	}
	for i := 0; i < len(px); i += 4 {
		px[i+2], px[i+3] = 0, 0
	}
	return nil
}

// RestoreZSlice rebuilds Z of unit normals stored as X,Y in [0,1] and sets
// alpha to 1.
func RestoreZSlice(px []float32) error {
	if err := checkStride(px); err != nil {
		return err
	}
	for i := 0; i < len(px); i += 4 {
		nx := 2*float64(px[i]) - 1
		ny := 2*float64(px[i+1]) - 1
		z := 1 - (nx*nx + ny*ny)
		z = math.Min(math.Max(z, 0), 1)
		px[i+2] = float32(math.Sqrt(z))
		px[i+3] = 1
	}
	return nil
}

func requireRGBA(info texture.FormatInfo) error {
	if info.Compressed() || info.Channels != 4 || info.Element == texture.ElementNone {
		return fmt.Errorf("%w: %s", ErrUnsupportedChannelLayout, info.Name)
	}
	return nil
}

// viaElements decodes pix into a typed copy, runs fn and writes the result
// back. pix is untouched when fn fails.
func viaElements[T Channel](pix []byte, size int, fn func([]T) error) error {
	px := make([]T, len(pix)/size)
	if _, err := binary.Decode(pix, binary.LittleEndian, px); err != nil {
		return fmt.Errorf("decode elements: %w", err)
	}
	if err := fn(px); err != nil {
		return err
	}
	if _, err := binary.Encode(pix, binary.LittleEndian, px); err != nil {
		return fmt.Errorf("encode elements: %w", err)
	}
	return nil
}

func dispatch(img *texture.Image,
	u8 func([]uint8) error,
	u16 func([]uint16) error,
	u32 func([]uint32) error,
	f32 func([]float32) error,
) error {
	if err := requireRGBA(img.Format); err != nil {
		return err
	}
	switch img.Format.Element {
	case texture.ElementUint8:
		return u8(img.Pix)
	case texture.ElementUint16, texture.ElementFloat16:
		return viaElements(img.Pix, 2, u16)
	case texture.ElementUint32:
		return viaElements(img.Pix, 4, u32)
	case texture.ElementFloat32:
		return viaElements(img.Pix, 4, f32)
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedChannelLayout, img.Format.Name)
}

// ReverseChannels turns every RGBA pixel of img into ABGR.
func ReverseChannels(img *texture.Image) error {
	return dispatch(img,
		ReverseChannelsSlice[uint8], ReverseChannelsSlice[uint16],
		ReverseChannelsSlice[uint32], ReverseChannelsSlice[float32])
}

// ReverseRBChannels swaps red and blue of every pixel of img.
func ReverseRBChannels(img *texture.Image) error {
	return dispatch(img,
		ReverseRBSlice[uint8], ReverseRBSlice[uint16],
		ReverseRBSlice[uint32], ReverseRBSlice[float32])
}

// RemoveZ clears blue and alpha of every pixel of img.
func RemoveZ(img *texture.Image) error {
	return dispatch(img,
		RemoveZSlice[uint8], RemoveZSlice[uint16],
		RemoveZSlice[uint32], RemoveZSlice[float32])
}

// RestoreZ reconstructs the Z channel of a two-channel normal map.
// Integer formats are treated as normalized values.
func RestoreZ(img *texture.Image) error {
	if err := requireRGBA(img.Format); err != nil {
		return err
	}
	switch img.Format.Element {
	case texture.ElementUint8:
		return restoreNormalized(img.Pix, math.MaxUint8)
	case texture.ElementUint16:
		return viaElements(img.Pix, 2, func(px []uint16) error { return restoreNormalized(px, math.MaxUint16) })
	case texture.ElementUint32:
		return viaElements(img.Pix, 4, func(px []uint32) error { return restoreNormalized(px, math.MaxUint32) })
	case texture.ElementFloat32:
		return viaElements(img.Pix, 4, RestoreZSlice)
	case texture.ElementFloat16:
		return viaElements(img.Pix, 2, restoreHalf)
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedChannelLayout, img.Format.Name)
}

func restoreNormalized[T ~uint8 | ~uint16 | ~uint32](px []T, scale float64) error {
	f := make([]float32, len(px))
	for i, v := range px {
		f[i] = float32(float64(v) / scale)
	}
	if err := RestoreZSlice(f); err != nil {
		return err
	}
	for i, v := range f {
		px[i] = T(math.Round(math.Min(math.Max(float64(v), 0), 1) * scale))
	}
	return nil
}

func restoreHalf(px []uint16) error {
	f := make([]float32, len(px))
	for i, v := range px {
		f[i] = half.Half(v).Float32()
	}
	if err := RestoreZSlice(f); err != nil {
		return err
	}
	for i, v := range f {
		px[i] = uint16(half.FromFloat32(v))
	}
	return nil
}
