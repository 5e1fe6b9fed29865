package container

import (
	"encoding/binary"
	"fmt"

	"github.com/pierrec/lz4/v4"

	"github.com/EchoTools/texforge/pkg/archive"
	"github.com/EchoTools/texforge/pkg/binio"
	"github.com/EchoTools/texforge/pkg/codec"
	"github.com/EchoTools/texforge/pkg/texture"
)

// header holds every field that precedes the data blocks.
type header struct {
	version  string
	platform texture.Platform
	legacy   bool

	engine    string
	name      string
	width     int
	height    int
	depth     int
	format    texture.Format
	mips      int
	arraySize int
	faces     int
	gamma     bool
	surface   string
}

// Decode parses a container. With opts.Unswizzle set, the pixel data is
// converted to linear order and the texture's platform becomes None.
func (c *Codec) Decode(data []byte, opts *codec.Options) (*texture.Texture, error) {
	opts = codec.OrDefault(opts)
	r := binio.NewReader(data, binary.LittleEndian)

	h, l, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	codec.Logger().Debug("gtex header",
		"version", h.version, "platform", h.platform, "legacy", h.legacy,
		"format", h.format, "size", fmt.Sprintf("%dx%dx%d", h.width, h.height, h.depth),
		"mips", h.mips, "array", h.arraySize, "faces", h.faces, "offset", r.Offset())

	need, err := texture.DataSize(h.format, h.width, h.height, h.depth, h.mips, h.arraySize, h.faces)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}
	if need > archive.MaxLength {
		return nil, fmt.Errorf("%w: %d bytes of pixel data", ErrInvalidHeader, need)
	}
	// Every block is checked against the layout before the pixel buffer
	// is allocated, so a small file cannot claim a huge texture.
	var blocks [][]byte
	var frame []byte
	switch l.storage {
	case storeRaw:
		if need > r.Remaining() {
			return nil, &binio.OffsetError{Offset: r.Offset(), Field: "data",
				Err: fmt.Errorf("%w: need %d bytes, have %d", binio.ErrTruncated, need, r.Remaining())}
		}
	case storeLZ4:
		sizes, err := imageSizes(h)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
		}
		if blocks, err = scanLZ4Blocks(r, sizes); err != nil {
			return nil, err
		}
	case storeZstd:
		if frame, err = scanFrame(r, need); err != nil {
			return nil, err
		}
	}

	tex, err := texture.New(h.format, h.width, h.height, h.depth, h.mips, h.arraySize, h.faces)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}
	tex.Name = h.name
	tex.Engine = h.engine
	tex.Version = h.version
	tex.Platform = h.platform
	tex.Legacy = h.legacy
	tex.Gamma = h.gamma
	tex.Surface = h.surface

	switch l.storage {
	case storeRaw:
		err = readRawBlocks(r, tex)
	case storeLZ4:
		err = inflateBlocks(blocks, tex)
	case storeZstd:
		err = unpackFrame(frame, tex)
	}
	if err != nil {
		return nil, err
	}
	if r.Remaining() != 0 {
		return nil, fmt.Errorf("%w: %d bytes at offset %d", ErrTrailingData, r.Remaining(), r.Offset())
	}

	if err := codec.UnswizzleTexture(tex, opts); err != nil {
		return nil, err
	}
	return tex, nil
}

func readHeader(r *binio.Reader) (*header, layout, error) {
	h := &header{depth: 1, arraySize: 1, faces: 1}

	magic, err := r.ReadFixedString(len(Magic))
	if err != nil {
		return nil, layout{}, fmt.Errorf("read magic: %w", err)
	}
	if magic != Magic {
		return nil, layout{}, fmt.Errorf("%w: %q", ErrBadMagic, magic)
	}
	if h.version, err = r.ReadString(); err != nil {
		return nil, layout{}, fmt.Errorf("read version: %w", err)
	}
	l, err := lookupLayout(h.version)
	if err != nil {
		return nil, layout{}, err
	}
	p, err := r.ReadU8()
	if err != nil {
		return nil, layout{}, fmt.Errorf("read platform: %w", err)
	}
	h.platform = texture.Platform(p)
	if !h.platform.Valid() {
		return nil, layout{}, fmt.Errorf("%w: platform %d", ErrInvalidHeader, p)
	}
	if h.legacy, err = r.ReadBool(); err != nil {
		return nil, layout{}, fmt.Errorf("read legacy flag: %w", err)
	}
	if h.legacy {
		r.SetByteOrder(binary.BigEndian)
	}

	if l.extended {
		if h.engine, err = r.ReadString(); err != nil {
			return nil, layout{}, fmt.Errorf("read engine: %w", err)
		}
	}
	if h.name, err = r.ReadString(); err != nil {
		return nil, layout{}, fmt.Errorf("read name: %w", err)
	}
	if h.width, err = readCount(r, "width", MaxDimension); err != nil {
		return nil, layout{}, err
	}
	if h.height, err = readCount(r, "height", MaxDimension); err != nil {
		return nil, layout{}, err
	}
	if l.extended {
		if h.depth, err = readCount(r, "depth", MaxDimension); err != nil {
			return nil, layout{}, err
		}
	}
	tag, err := r.ReadU32()
	if err != nil {
		return nil, layout{}, fmt.Errorf("read format: %w", err)
	}
	h.format = texture.Format(tag)
	info, err := texture.Lookup(h.format)
	if err != nil {
		return nil, layout{}, err
	}
	if h.mips, err = readCount(r, "mip count", texture.MipLevels3D(h.width, h.height, h.depth)); err != nil {
		return nil, layout{}, err
	}

	if !l.extended {
		h.gamma = info.ColorSpace == texture.SRGB
		h.surface = texture.Surface2D
		return h, l, nil
	}

	if h.arraySize, err = readCount(r, "array size", MaxArraySize); err != nil {
		return nil, layout{}, err
	}
	faces, err := r.ReadU32()
	if err != nil {
		return nil, layout{}, fmt.Errorf("read face count: %w", err)
	}
	if faces != 1 && faces != 6 {
		return nil, layout{}, fmt.Errorf("%w: face count %d", ErrInvalidHeader, faces)
	}
	h.faces = int(faces)
	if h.faces == 6 && h.width != h.height {
		return nil, layout{}, fmt.Errorf("%w: cube faces must be square, got %dx%d", ErrInvalidHeader, h.width, h.height)
	}
	if h.gamma, err = r.ReadBool(); err != nil {
		return nil, layout{}, fmt.Errorf("read gamma flag: %w", err)
	}
	if h.surface, err = r.ReadString(); err != nil {
		return nil, layout{}, fmt.Errorf("read surface: %w", err)
	}
	if !validSurfaces[h.surface] {
		return nil, layout{}, fmt.Errorf("%w: surface %q", ErrInvalidHeader, h.surface)
	}
	return h, l, nil
}

// readCount reads a u32 that must lie in [1, limit].
func readCount(r *binio.Reader, field string, limit int) (int, error) {
	v, err := r.ReadU32()
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", field, err)
	}
	if v == 0 || uint64(v) > uint64(limit) {
		return 0, fmt.Errorf("%w: %s %d outside [1, %d]", ErrInvalidHeader, field, v, limit)
	}
	return int(v), nil
}

func readRawBlocks(r *binio.Reader, tex *texture.Texture) error {
	for i, img := range tex.Images {
		pix, err := r.ReadBytes(len(img.Pix))
		if err != nil {
			return fmt.Errorf("read block %d: %w", i, err)
		}
		img.Pix = pix
	}
	return nil
}

// lz4MaxRatio bounds how many output bytes one byte of an LZ4 block can
// produce.
const lz4MaxRatio = 255

// imageSizes returns the byte size of every image in canonical order.
func imageSizes(h *header) ([]int, error) {
	info, err := texture.Lookup(h.format)
	if err != nil {
		return nil, err
	}
	sizes := make([]int, 0, h.arraySize*h.faces*h.mips)
	for a := 0; a < h.arraySize; a++ {
		for f := 0; f < h.faces; f++ {
			for m := 0; m < h.mips; m++ {
				w, ht, d := texture.MipDims(h.width, h.height, h.depth, m)
				_, _, size, err := info.SurfaceSize(w, ht, d)
				if err != nil {
					return nil, err
				}
				sizes = append(sizes, size)
			}
		}
	}
	return sizes, nil
}

// scanLZ4Blocks reads the block table and returns each stored payload.
// A block whose sizes disagree with the layout, or that could not expand
// to its declared size, fails here.
func scanLZ4Blocks(r *binio.Reader, sizes []int) ([][]byte, error) {
	blocks := make([][]byte, len(sizes))
	for i, want := range sizes {
		rawSize, err := r.ReadU32()
		if err != nil {
			return nil, fmt.Errorf("read block %d size: %w", i, err)
		}
		storedSize, err := r.ReadU32()
		if err != nil {
			return nil, fmt.Errorf("read block %d stored size: %w", i, err)
		}
		if int64(rawSize) != int64(want) {
			return nil, fmt.Errorf("%w: block %d declares %d bytes, want %d", ErrCorruptBlock, i, rawSize, want)
		}
		if storedSize > rawSize {
			return nil, fmt.Errorf("%w: block %d stores %d bytes for %d", ErrCorruptBlock, i, storedSize, rawSize)
		}
		if uint64(rawSize) > uint64(storedSize)*lz4MaxRatio {
			return nil, fmt.Errorf("%w: block %d cannot expand %d bytes to %d", ErrCorruptBlock, i, storedSize, rawSize)
		}
		if blocks[i], err = r.ReadBytes(int(storedSize)); err != nil {
			return nil, fmt.Errorf("read block %d: %w", i, err)
		}
	}
	return blocks, nil
}

func inflateBlocks(blocks [][]byte, tex *texture.Texture) error {
	for i, img := range tex.Images {
		payload := blocks[i]
		if len(payload) == len(img.Pix) {
			img.Pix = payload
			continue
		}
		n, err := lz4.UncompressBlock(payload, img.Pix)
		if err != nil {
			return fmt.Errorf("%w: block %d: %v", ErrCorruptBlock, i, err)
		}
		if n != len(img.Pix) {
			return fmt.Errorf("%w: block %d decompressed to %d bytes, want %d", ErrCorruptBlock, i, n, len(img.Pix))
		}
	}
	return nil
}

// scanFrame reads the archive frame and checks its header against the
// expected payload size.
func scanFrame(r *binio.Reader, need int) ([]byte, error) {
	head, err := r.ReadBytes(archive.HeaderSize)
	if err != nil {
		return nil, fmt.Errorf("read frame header: %w", err)
	}
	h := &archive.Header{}
	if err := h.UnmarshalBinary(head); err != nil {
		return nil, fmt.Errorf("%w: frame header: %v", ErrCorruptBlock, err)
	}
	if err := h.CheckPayload(need); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptBlock, err)
	}
	if h.CompressedLength > uint64(r.Remaining()) {
		return nil, &binio.OffsetError{Offset: r.Offset(), Field: "frame",
			Err: fmt.Errorf("%w: need %d bytes, have %d", binio.ErrTruncated, h.CompressedLength, r.Remaining())}
	}
	body, err := r.ReadBytes(int(h.CompressedLength))
	if err != nil {
		return nil, fmt.Errorf("read frame: %w", err)
	}
	return binio.Concat(head, body)
}

func unpackFrame(frame []byte, tex *texture.Texture) error {
	payload, err := archive.Unpack(frame)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptBlock, err)
	}
	if len(payload) != tex.TotalSize() {
		return fmt.Errorf("%w: frame decompressed to %d bytes, want %d", ErrCorruptBlock, len(payload), tex.TotalSize())
	}
	off := 0
	for _, img := range tex.Images {
		off += copy(img.Pix, payload[off:off+len(img.Pix)])
	}
	return nil
}
