package transform

import (
	"errors"
	"fmt"

	"github.com/EchoTools/texforge/pkg/texture"
)

var (
	ErrUnsupportedPlatform = errors.New("transform: unsupported platform")
	ErrBufferSize          = errors.New("transform: buffer size mismatch")
)

// Unswizzler converts one 2D slice between a console memory layout and
// linear row-major order. Both directions keep the buffer size.
type Unswizzler interface {
	Unswizzle(pix []byte, width, height int, format texture.FormatInfo) ([]byte, error)
	Swizzle(pix []byte, width, height int, format texture.FormatInfo) ([]byte, error)
}

// Unswizzlers maps platforms to their layouts. Build one with
// DefaultUnswizzlers, add entries for other platforms, then treat it as
// read-only.
type Unswizzlers map[texture.Platform]Unswizzler

// DefaultUnswizzlers returns the built-in layouts. WiiU, XboxOne, PS5
// and XboxX have none.
func DefaultUnswizzlers() Unswizzlers {
	return Unswizzlers{
		texture.PlatformPSVita:  Morton{},
		texture.PlatformPS3:     PS3{},
		texture.PlatformPS4:     Tiled{Size: 8},
		texture.PlatformSwitch:  BlockLinear{},
		texture.PlatformXbox360: WordSwap{},
	}
}

// Unswizzle converts img from the layout of p to linear order in place.
// PlatformNone leaves img untouched.
func (u Unswizzlers) Unswizzle(img *texture.Image, p texture.Platform) error {
	return u.apply(img, p, false)
}

// Swizzle converts img from linear order to the layout of p in place.
func (u Unswizzlers) Swizzle(img *texture.Image, p texture.Platform) error {
	return u.apply(img, p, true)
}

func (u Unswizzlers) apply(img *texture.Image, p texture.Platform, swizzle bool) error {
	if p == texture.PlatformNone {
		return nil
	}
	impl, ok := u[p]
	if !ok || impl == nil {
		return fmt.Errorf("%w: %s", ErrUnsupportedPlatform, p)
	}
	if err := img.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrBufferSize, err)
	}

	out := make([]byte, 0, len(img.Pix))
	for z := 0; z < img.Depth; z++ {
		var res []byte
		var err error
		if swizzle {
			res, err = impl.Swizzle(img.Slice(z), img.Width, img.Height, img.Format)
		} else {
			res, err = impl.Unswizzle(img.Slice(z), img.Width, img.Height, img.Format)
		}
		if err != nil {
			return fmt.Errorf("%s layout: %w", p, err)
		}
		if len(res) != img.SlicePitch {
			return fmt.Errorf("%w: %s layout returned %d bytes, want %d", ErrBufferSize, p, len(res), img.SlicePitch)
		}
		out = append(out, res...)
	}
	return img.Replace(img.Format.Format, out)
}

// elementGrid returns the addressable units of a surface: pixels for raw
// formats, 4x4 blocks for compressed ones.
func elementGrid(width, height int, f texture.FormatInfo) (cols, rows, size int) {
	if f.Compressed() {
		return (width + 3) / 4, (height + 3) / 4, f.BlockSize
	}
	return width, height, f.BytesPerPixel()
}

func checkSize(pix []byte, width, height int, f texture.FormatInfo) error {
	_, slice := f.Pitch(width, height)
	if len(pix) != slice {
		return fmt.Errorf("%w: got %d bytes, want %d for %s %dx%d", ErrBufferSize, len(pix), slice, f.Name, width, height)
	}
	return nil
}

// permute moves size-byte elements between linear order and the order
// given by index.
func permute(pix []byte, cols, rows, size int, index func(x, y int) int, swizzle bool) []byte {
	out := make([]byte, len(pix))
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			lin := (y*cols + x) * size
			sw := index(x, y) * size
			if swizzle {
				copy(out[sw:sw+size], pix[lin:lin+size])
			} else {
				copy(out[lin:lin+size], pix[sw:sw+size])
			}
		}
	}
	return out
}

func isPow2(n int) bool { return n > 0 && n&(n-1) == 0 }

// interleave spreads the bits of x over even positions and those of y
// over odd positions.
func interleave(x, y int) int {
	z := 0
	for i := 0; x>>i > 0 || y>>i > 0; i++ {
		z |= (x>>i&1)<<(2*i) | (y>>i&1)<<(2*i+1)
	}
	return z
}

// Morton stores elements in Z-order. Rectangular surfaces are a row of
// Z-ordered squares along the longer axis. Surfaces whose element grid is
// not a power of two in both directions are stored linearly.
type Morton struct{}

func (Morton) Unswizzle(pix []byte, width, height int, f texture.FormatInfo) ([]byte, error) {
	return mortonPermute(pix, width, height, f, false)
}

func (Morton) Swizzle(pix []byte, width, height int, f texture.FormatInfo) ([]byte, error) {
	return mortonPermute(pix, width, height, f, true)
}

func mortonPermute(pix []byte, width, height int, f texture.FormatInfo, swizzle bool) ([]byte, error) {
	if err := checkSize(pix, width, height, f); err != nil {
		return nil, err
	}
	cols, rows, size := elementGrid(width, height, f)
	if !isPow2(cols) || !isPow2(rows) {
		return append([]byte(nil), pix...), nil
	}
	s := min(cols, rows)
	index := func(x, y int) int {
		return (x/s+y/s)*s*s + interleave(x%s, y%s)
	}
	return permute(pix, cols, rows, size, index, swizzle), nil
}

// PS3 uses Z-order for raw formats and linear storage for block formats.
type PS3 struct{}

func (PS3) Unswizzle(pix []byte, width, height int, f texture.FormatInfo) ([]byte, error) {
	if f.Compressed() {
		return linearCopy(pix, width, height, f)
	}
	return mortonPermute(pix, width, height, f, false)
}

func (PS3) Swizzle(pix []byte, width, height int, f texture.FormatInfo) ([]byte, error) {
	if f.Compressed() {
		return linearCopy(pix, width, height, f)
	}
	return mortonPermute(pix, width, height, f, true)
}

func linearCopy(pix []byte, width, height int, f texture.FormatInfo) ([]byte, error) {
	if err := checkSize(pix, width, height, f); err != nil {
		return nil, err
	}
	return append([]byte(nil), pix...), nil
}

// Tiled stores Size x Size element tiles in row-major tile order with
// Z-order inside each tile. Surfaces that are not a whole number of tiles
// are stored linearly.
type Tiled struct {
	Size int
}

func (t Tiled) Unswizzle(pix []byte, width, height int, f texture.FormatInfo) ([]byte, error) {
	return t.permute(pix, width, height, f, false)
}

func (t Tiled) Swizzle(pix []byte, width, height int, f texture.FormatInfo) ([]byte, error) {
	return t.permute(pix, width, height, f, true)
}

func (t Tiled) permute(pix []byte, width, height int, f texture.FormatInfo, swizzle bool) ([]byte, error) {
	if !isPow2(t.Size) {
		return nil, fmt.Errorf("tile size %d is not a power of two", t.Size)
	}
	if err := checkSize(pix, width, height, f); err != nil {
		return nil, err
	}
	cols, rows, size := elementGrid(width, height, f)
	n := t.Size
	if cols%n != 0 || rows%n != 0 {
		return append([]byte(nil), pix...), nil
	}
	tilesPerRow := cols / n
	index := func(x, y int) int {
		tile := (y/n)*tilesPerRow + x/n
		return tile*n*n + interleave(x%n, y%n)
	}
	return permute(pix, cols, rows, size, index, swizzle), nil
}

const (
	gobWidth  = 64 // bytes
	gobHeight = 8  // rows
	gobSize   = gobWidth * gobHeight
	gobChunk  = 16 // bytes that stay contiguous inside a GOB
)

// BlockLinear is the Tegra X1 layout: 64x8-byte GOBs stacked into blocks
// of up to 16 GOBs vertically. Surfaces whose rows are not a whole number
// of GOBs are stored linearly.
type BlockLinear struct{}

func (BlockLinear) Unswizzle(pix []byte, width, height int, f texture.FormatInfo) ([]byte, error) {
	return blockLinearPermute(pix, width, height, f, false)
}

func (BlockLinear) Swizzle(pix []byte, width, height int, f texture.FormatInfo) ([]byte, error) {
	return blockLinearPermute(pix, width, height, f, true)
}

// BlockHeight returns the number of GOBs per block for a surface with the
// given element rows, or 0 when the surface is stored linearly.
func BlockHeight(rowBytes, rows int) int {
	if rowBytes%gobWidth != 0 || rows%gobHeight != 0 || rows == 0 {
		return 0
	}
	bh := 16
	for bh > 1 && (rows%(gobHeight*bh) != 0) {
		bh >>= 1
	}
	return bh
}

func blockLinearPermute(pix []byte, width, height int, f texture.FormatInfo, swizzle bool) ([]byte, error) {
	if err := checkSize(pix, width, height, f); err != nil {
		return nil, err
	}
	cols, rows, size := elementGrid(width, height, f)
	rowBytes := cols * size
	bh := BlockHeight(rowBytes, rows)
	if bh == 0 {
		return append([]byte(nil), pix...), nil
	}
	gobsWide := rowBytes / gobWidth
	index := func(xc, y int) int {
		xb := xc * gobChunk
		addr := (y/(gobHeight*bh))*gobsWide*bh*gobSize +
			(xb/gobWidth)*bh*gobSize +
			(y/gobHeight%bh)*gobSize +
			gobOffset(xb%gobWidth, y%gobHeight)
		return addr / gobChunk
	}
	return permute(pix, rowBytes/gobChunk, rows, gobChunk, index, swizzle), nil
}

func gobOffset(x, y int) int {
	return (x/32)*256 + (y/2)*64 + (x%32/16)*32 + (y%2)*16 + x%16
}

// WordSwap swaps the bytes of every 16-bit word, the Xbox 360 big-endian
// storage order. A trailing odd byte, as in an 8-bit mip tail, stays put.
// Tiling is not undone.
type WordSwap struct{}

func (WordSwap) Unswizzle(pix []byte, width, height int, f texture.FormatInfo) ([]byte, error) {
	return swapWords(pix, width, height, f)
}

func (WordSwap) Swizzle(pix []byte, width, height int, f texture.FormatInfo) ([]byte, error) {
	return swapWords(pix, width, height, f)
}

func swapWords(pix []byte, width, height int, f texture.FormatInfo) ([]byte, error) {
	if err := checkSize(pix, width, height, f); err != nil {
		return nil, err
	}
	out := make([]byte, len(pix))
	for i := 0; i+1 < len(pix); i += 2 {
		out[i], out[i+1] = pix[i+1], pix[i]
	}
	if len(pix)%2 != 0 {
		out[len(pix)-1] = pix[len(pix)-1]
	}
	return out, nil
}
