// Package texture provides the in-memory texture model every codec
// converts through, together with the pixel format catalog.
//
// A Texture is a flat list of Images ordered array element first, then
// face, then mip level, so the mip index varies fastest:
//
//	index = (array*FaceCount + face)*MipCount + mip
//
// Block-compressed data is kept as blocks; decoding to pixels is the job
// of the bridge package.
package texture

import (
	"errors"
	"fmt"
)

var ErrInvalidLayout = errors.New("texture: invalid layout")

// Surface kinds recorded in containers.
const (
	Surface2D     = "2d"
	SurfaceCube   = "cube"
	SurfaceVolume = "volume"
	SurfaceArray  = "array"
)

// Texture is a complete texture resource.
type Texture struct {
	Images    []*Image
	MipCount  int
	ArraySize int
	FaceCount int // 1 or 6
	Depth     int // base depth, 1 unless volumetric

	Name      string
	Engine    string
	Version   string // container layout the texture was read from
	Surface   string
	Platform  Platform
	Legacy    bool
	Gamma     bool
	NormalMap bool
}

// New allocates a zero-filled texture with a full image table.
func New(f Format, width, height, depth, mips, arraySize, faces int) (*Texture, error) {
	if mips <= 0 || arraySize <= 0 {
		return nil, fmt.Errorf("%w: %d mips, %d array elements", ErrInvalidLayout, mips, arraySize)
	}
	if faces != 1 && faces != 6 {
		return nil, fmt.Errorf("%w: face count %d", ErrInvalidLayout, faces)
	}
	if limit := MipLevels3D(width, height, depth); mips > limit {
		return nil, fmt.Errorf("%w: %d mips for %dx%dx%d (max %d)", ErrInvalidLayout, mips, width, height, depth, limit)
	}
	if _, err := DataSize(f, width, height, depth, mips, arraySize, faces); err != nil {
		return nil, err
	}
	t := &Texture{
		Images:    make([]*Image, 0, mips*arraySize*faces),
		MipCount:  mips,
		ArraySize: arraySize,
		FaceCount: faces,
		Depth:     depth,
	}
	for a := 0; a < arraySize; a++ {
		for face := 0; face < faces; face++ {
			for m := 0; m < mips; m++ {
				w, h, d := MipDims(width, height, depth, m)
				img, err := NewImage(f, w, h, d)
				if err != nil {
					return nil, err
				}
				t.Images = append(t.Images, img)
			}
		}
	}
	t.Surface = t.SurfaceKind()
	return t, nil
}

// Index returns the position of (array, face, mip) in Images.
func (t *Texture) Index(array, face, mip int) int {
	return (array*t.FaceCount+face)*t.MipCount + mip
}

// Image returns the image at (array, face, mip).
func (t *Texture) Image(array, face, mip int) *Image {
	return t.Images[t.Index(array, face, mip)]
}

// Width returns the width of the top mip level.
func (t *Texture) Width() int { return t.Images[0].Width }

// Height returns the height of the top mip level.
func (t *Texture) Height() int { return t.Images[0].Height }

// Format returns the format shared by every image.
func (t *Texture) Format() FormatInfo { return t.Images[0].Format }

// IsCube reports whether the texture holds cube faces.
func (t *Texture) IsCube() bool { return t.FaceCount == 6 }

// SurfaceKind derives the surface kind from the layout.
func (t *Texture) SurfaceKind() string {
	switch {
	case t.FaceCount == 6:
		return SurfaceCube
	case t.Depth > 1:
		return SurfaceVolume
	case t.ArraySize > 1:
		return SurfaceArray
	}
	return Surface2D
}

// Validate checks the layout invariants: the image count matches the
// declared counts, every image has the same format and each level has
// the halved dimensions of the one above it.
func (t *Texture) Validate() error {
	if t.MipCount <= 0 || t.ArraySize <= 0 || t.Depth <= 0 {
		return fmt.Errorf("%w: %d mips, %d array elements, depth %d", ErrInvalidLayout, t.MipCount, t.ArraySize, t.Depth)
	}
	if t.FaceCount != 1 && t.FaceCount != 6 {
		return fmt.Errorf("%w: face count %d", ErrInvalidLayout, t.FaceCount)
	}
	if want := t.MipCount * t.ArraySize * t.FaceCount; len(t.Images) != want {
		return fmt.Errorf("%w: %d images, want %d", ErrInvalidLayout, len(t.Images), want)
	}
	top := t.Images[0]
	if top == nil {
		return fmt.Errorf("%w: missing image 0", ErrInvalidLayout)
	}
	if top.Depth != t.Depth {
		return fmt.Errorf("%w: top level depth %d, want %d", ErrInvalidLayout, top.Depth, t.Depth)
	}
	for i, img := range t.Images {
		if img == nil {
			return fmt.Errorf("%w: missing image %d", ErrInvalidLayout, i)
		}
		if err := img.Validate(); err != nil {
			return fmt.Errorf("image %d: %w", i, err)
		}
		if img.Format.Format != top.Format.Format {
			return fmt.Errorf("%w: image %d is %s, want %s", ErrInvalidLayout, i, img.Format.Name, top.Format.Name)
		}
		w, h, d := MipDims(top.Width, top.Height, top.Depth, i%t.MipCount)
		if img.Width != w || img.Height != h || img.Depth != d {
			return fmt.Errorf("%w: image %d is %dx%dx%d, want %dx%dx%d",
				ErrInvalidLayout, i, img.Width, img.Height, img.Depth, w, h, d)
		}
	}
	return nil
}

// TotalSize returns the byte size of every image combined.
func (t *Texture) TotalSize() int {
	n := 0
	for _, img := range t.Images {
		n += len(img.Pix)
	}
	return n
}

// DataSize returns the combined byte size of every image of a texture
// with the given layout, without allocating it. Layouts whose size would
// exceed MaxDataSize fail with ErrTooLarge.
func DataSize(f Format, width, height, depth, mips, arraySize, faces int) (int, error) {
	info, err := Lookup(f)
	if err != nil {
		return 0, err
	}
	if width <= 0 || height <= 0 || depth <= 0 || mips <= 0 || arraySize <= 0 || faces <= 0 {
		return 0, fmt.Errorf("%w: %dx%dx%d, %d mips, %d array elements, %d faces",
			ErrInvalidLayout, width, height, depth, mips, arraySize, faces)
	}
	if limit := MipLevels3D(width, height, depth); mips > limit {
		return 0, fmt.Errorf("%w: %d mips for %dx%dx%d (max %d)", ErrInvalidLayout, mips, width, height, depth, limit)
	}
	perElement := 0
	for m := 0; m < mips; m++ {
		w, h, d := MipDims(width, height, depth, m)
		_, _, size, err := info.SurfaceSize(w, h, d)
		if err != nil {
			return 0, err
		}
		if perElement > MaxDataSize-size {
			return 0, fmt.Errorf("%w: mip chain of %s %dx%dx%d", ErrTooLarge, info.Name, width, height, depth)
		}
		perElement += size
	}
	total, ok := mulSize(perElement, faces, true)
	total, ok = mulSize(total, arraySize, ok)
	if !ok {
		return 0, fmt.Errorf("%w: %d faces x %d array elements of %d bytes", ErrTooLarge, faces, arraySize, perElement)
	}
	return total, nil
}

// MipDims returns the dimensions of mip level. Each level halves the one
// above it, floored at 1.
func MipDims(width, height, depth, level int) (w, h, d int) {
	return max(1, width>>level), max(1, height>>level), max(1, depth>>level)
}

// MipLevels returns the length of a full mip chain for a 2D surface.
func MipLevels(width, height int) int {
	return MipLevels3D(width, height, 1)
}

// MipLevels3D returns the length of a full mip chain.
func MipLevels3D(width, height, depth int) int {
	n := 1
	for s := max(width, height, depth); s > 1; s >>= 1 {
		n++
	}
	return n
}
