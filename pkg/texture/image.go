package texture

import "fmt"

// Image is one mip level of one face of one array element. Pix holds
// Depth slices of SlicePitch bytes each; Depth is 1 except for volume
// textures.
type Image struct {
	Width      int
	Height     int
	Depth      int
	RowPitch   int
	SlicePitch int
	Format     FormatInfo
	Pix        []byte
}

// NewImage allocates a zeroed image.
func NewImage(f Format, width, height, depth int) (*Image, error) {
	img, err := describe(f, width, height, depth)
	if err != nil {
		return nil, err
	}
	img.Pix = make([]byte, img.Size())
	return img, nil
}

// ImageFromPixels wraps pix, which must be exactly the size the format
// and dimensions require. The image takes ownership of pix.
func ImageFromPixels(f Format, width, height, depth int, pix []byte) (*Image, error) {
	img, err := describe(f, width, height, depth)
	if err != nil {
		return nil, err
	}
	if len(pix) != img.Size() {
		return nil, fmt.Errorf("%s %dx%dx%d: got %d bytes, want %d",
			img.Format.Name, width, height, depth, len(pix), img.Size())
	}
	img.Pix = pix
	return img, nil
}

func describe(f Format, width, height, depth int) (*Image, error) {
	if width <= 0 || height <= 0 || depth <= 0 {
		return nil, fmt.Errorf("%w: %dx%dx%d", ErrInvalidDimensions, width, height, depth)
	}
	info, err := Lookup(f)
	if err != nil {
		return nil, err
	}
	row, slice, _, err := info.SurfaceSize(width, height, depth)
	if err != nil {
		return nil, err
	}
	return &Image{
		Width:      width,
		Height:     height,
		Depth:      depth,
		RowPitch:   row,
		SlicePitch: slice,
		Format:     info,
	}, nil
}

// Size returns the byte length Pix must have.
func (img *Image) Size() int { return img.SlicePitch * img.Depth }

// Slice returns the bytes of depth slice z.
func (img *Image) Slice(z int) []byte {
	return img.Pix[z*img.SlicePitch : (z+1)*img.SlicePitch]
}

// Validate checks the pitch and buffer invariants.
func (img *Image) Validate() error {
	if img.Width <= 0 || img.Height <= 0 || img.Depth <= 0 {
		return fmt.Errorf("%w: %dx%dx%d", ErrInvalidDimensions, img.Width, img.Height, img.Depth)
	}
	if _, err := Lookup(img.Format.Format); err != nil {
		return err
	}
	row, slice, _, err := img.Format.SurfaceSize(img.Width, img.Height, img.Depth)
	if err != nil {
		return err
	}
	if img.RowPitch != row || img.SlicePitch != slice {
		return fmt.Errorf("pitch %d/%d does not match %s %dx%d (want %d/%d)",
			img.RowPitch, img.SlicePitch, img.Format.Name, img.Width, img.Height, row, slice)
	}
	if len(img.Pix) != img.Size() {
		return fmt.Errorf("buffer is %d bytes, want %d", len(img.Pix), img.Size())
	}
	return nil
}

// Replace swaps in a new format and buffer for the same dimensions.
// Nothing changes unless the buffer fits the new format.
func (img *Image) Replace(f Format, pix []byte) error {
	next, err := ImageFromPixels(f, img.Width, img.Height, img.Depth, pix)
	if err != nil {
		return fmt.Errorf("replace pixels: %w", err)
	}
	*img = *next
	return nil
}

// Clone returns a deep copy.
func (img *Image) Clone() *Image {
	c := *img
	c.Pix = append([]byte(nil), img.Pix...)
	return &c
}
