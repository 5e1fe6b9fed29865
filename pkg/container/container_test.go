package container

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"
	"testing"

	"github.com/EchoTools/texforge/pkg/archive"
	"github.com/EchoTools/texforge/pkg/binio"
	"github.com/EchoTools/texforge/pkg/codec"
	"github.com/EchoTools/texforge/pkg/texture"
)

func newTexture(t testing.TB, f texture.Format, w, h, depth, mips, array, faces int) *texture.Texture {
	t.Helper()
	tex, err := texture.New(f, w, h, depth, mips, array, faces)
	if err != nil {
		t.Fatalf("new texture: %v", err)
	}
	for n, img := range tex.Images {
		for i := range img.Pix {
			img.Pix[i] = byte(i*13 + n*7)
		}
	}
	tex.Name = "crate_albedo"
	return tex
}

func assertSameTexture(t *testing.T, got, want *texture.Texture) {
	t.Helper()
	if got.Width() != want.Width() || got.Height() != want.Height() || got.Depth != want.Depth {
		t.Errorf("size: got %dx%dx%d, want %dx%dx%d", got.Width(), got.Height(), got.Depth, want.Width(), want.Height(), want.Depth)
	}
	if got.Format().Format != want.Format().Format {
		t.Errorf("format: got %s, want %s", got.Format().Name, want.Format().Name)
	}
	if got.MipCount != want.MipCount || got.ArraySize != want.ArraySize || got.FaceCount != want.FaceCount {
		t.Errorf("layout: got %d/%d/%d, want %d/%d/%d", got.MipCount, got.ArraySize, got.FaceCount, want.MipCount, want.ArraySize, want.FaceCount)
	}
	if got.Name != want.Name {
		t.Errorf("name: got %q, want %q", got.Name, want.Name)
	}
	if len(got.Images) != len(want.Images) {
		t.Fatalf("got %d images, want %d", len(got.Images), len(want.Images))
	}
	for i := range want.Images {
		if !bytes.Equal(got.Images[i].Pix, want.Images[i].Pix) {
			t.Errorf("image %d pixels differ", i)
		}
	}
}

func TestRoundTripSimple(t *testing.T) {
	c := New()
	for _, version := range Versions() {
		t.Run(version, func(t *testing.T) {
			tex := newTexture(t, texture.FormatR8G8B8A8Unorm, 8, 4, 1, 1, 1, 1)
			data, err := c.Encode(tex, codec.NewOptions(codec.WithVersion(version)))
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			got, err := c.Decode(data, nil)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			assertSameTexture(t, got, tex)
			if got.Version != version {
				t.Errorf("version: got %q, want %q", got.Version, version)
			}

			again, err := c.Encode(got, nil)
			if err != nil {
				t.Fatalf("re-encode: %v", err)
			}
			if !bytes.Equal(again, data) {
				t.Error("encode(decode(b)) != b")
			}
		})
	}
}

func TestRoundTripLayouts(t *testing.T) {
	c := New()
	cases := []struct {
		name  string
		build func(t *testing.T) *texture.Texture
	}{
		{"MipChain", func(t *testing.T) *texture.Texture {
			return newTexture(t, texture.FormatR8G8B8A8Unorm, 32, 16, 1, 6, 1, 1)
		}},
		{"BC1Mips", func(t *testing.T) *texture.Texture {
			return newTexture(t, texture.FormatBC1Unorm, 64, 64, 1, 7, 1, 1)
		}},
		{"Cube", func(t *testing.T) *texture.Texture {
			return newTexture(t, texture.FormatBC3Unorm, 16, 16, 1, 3, 1, 6)
		}},
		{"Array", func(t *testing.T) *texture.Texture {
			return newTexture(t, texture.FormatR8Unorm, 8, 8, 1, 2, 4, 1)
		}},
		{"Volume", func(t *testing.T) *texture.Texture {
			return newTexture(t, texture.FormatR16G16B16A16Float, 8, 8, 4, 3, 1, 1)
		}},
		{"Metadata", func(t *testing.T) *texture.Texture {
			tex := newTexture(t, texture.FormatBC7UnormSRGB, 8, 8, 1, 1, 1, 1)
			tex.Engine = "arena"
			tex.Gamma = true
			tex.Platform = texture.PlatformPS4
			return tex
		}},
	}
	for _, version := range []string{"GTEX2", "GTEX3", "GTEX4"} {
		for _, tc := range cases {
			t.Run(version+"/"+tc.name, func(t *testing.T) {
				tex := tc.build(t)
				tex.Version = version
				data, err := c.Encode(tex, nil)
				if err != nil {
					t.Fatalf("encode: %v", err)
				}
				got, err := c.Decode(data, nil)
				if err != nil {
					t.Fatalf("decode: %v", err)
				}
				assertSameTexture(t, got, tex)
				if got.Engine != tex.Engine || got.Gamma != tex.Gamma || got.Platform != tex.Platform {
					t.Errorf("metadata: got %q/%v/%s, want %q/%v/%s",
						got.Engine, got.Gamma, got.Platform, tex.Engine, tex.Gamma, tex.Platform)
				}
				if got.Surface != tex.Surface {
					t.Errorf("surface: got %q, want %q", got.Surface, tex.Surface)
				}
				again, err := c.Encode(got, nil)
				if err != nil {
					t.Fatalf("re-encode: %v", err)
				}
				if !bytes.Equal(again, data) {
					t.Error("encode(decode(b)) != b")
				}
			})
		}
	}
}

func TestLegacyByteOrder(t *testing.T) {
	c := New()
	tex := newTexture(t, texture.FormatR8G8B8A8Unorm, 4, 2, 1, 1, 1, 1)
	tex.Engine = "arena"
	tex.Legacy = true
	data, err := c.Encode(tex, codec.NewOptions(codec.WithVersion("GTEX2")))
	if err != nil {
		t.Fatal(err)
	}

	// magic, version string, platform, legacy flag
	off := 4 + 4 + len("GTEX2") + 1 + 1
	if got := binary.LittleEndian.Uint32(data[4:8]); got != 5 {
		t.Errorf("version length prefix: got %d, want 5 (little-endian)", got)
	}
	if data[off-1] != '1' {
		t.Errorf("legacy flag: got %q, want '1'", data[off-1])
	}
	if got := binary.BigEndian.Uint32(data[off : off+4]); got != uint32(len("arena")) {
		t.Errorf("engine length prefix: got %d, want %d (big-endian)", got, len("arena"))
	}

	got, err := c.Decode(data, nil)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.Legacy {
		t.Error("legacy flag lost")
	}
	assertSameTexture(t, got, tex)

	viaOpts, err := c.Encode(newTexture(t, texture.FormatR8G8B8A8Unorm, 4, 2, 1, 1, 1, 1),
		codec.NewOptions(codec.WithLegacy(true), codec.WithVersion("GTEX1")))
	if err != nil {
		t.Fatal(err)
	}
	dec, err := c.Decode(viaOpts, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !dec.Legacy {
		t.Error("opts.Legacy not applied")
	}
}

func TestLZ4Storage(t *testing.T) {
	c := New()
	tex := newTexture(t, texture.FormatR8G8B8A8Unorm, 64, 64, 1, 1, 1, 1)
	for i := range tex.Images[0].Pix {
		tex.Images[0].Pix[i] = 0x7f
	}
	data, err := c.Encode(tex, codec.NewOptions(codec.WithVersion("GTEX3")))
	if err != nil {
		t.Fatal(err)
	}
	if len(data) >= len(tex.Images[0].Pix) {
		t.Errorf("uniform block not compressed: %d bytes for %d", len(data), len(tex.Images[0].Pix))
	}
	got, err := c.Decode(data, nil)
	if err != nil {
		t.Fatal(err)
	}
	assertSameTexture(t, got, tex)
}

func TestEncodeOptions(t *testing.T) {
	c := New()

	t.Run("VersionPrecedence", func(t *testing.T) {
		tex := newTexture(t, texture.FormatR8Unorm, 4, 4, 1, 1, 1, 1)
		tex.Version = "GTEX3"
		data, err := c.Encode(tex, codec.NewOptions(codec.WithVersion("GTEX4")))
		if err != nil {
			t.Fatal(err)
		}
		got, err := c.Decode(data, nil)
		if err != nil {
			t.Fatal(err)
		}
		if got.Version != "GTEX4" {
			t.Errorf("got %s, want GTEX4", got.Version)
		}

		tex.Version = ""
		data, err = c.Encode(tex, nil)
		if err != nil {
			t.Fatal(err)
		}
		if got, _ := c.Decode(data, nil); got.Version != DefaultVersion {
			t.Errorf("got %s, want %s", got.Version, DefaultVersion)
		}
	})

	t.Run("Variant", func(t *testing.T) {
		tex := newTexture(t, texture.FormatR8Unorm, 4, 4, 1, 1, 1, 1)
		data, err := c.Encode(tex, codec.NewOptions(codec.WithVariant("arena")))
		if err != nil {
			t.Fatal(err)
		}
		got, err := c.Decode(data, nil)
		if err != nil {
			t.Fatal(err)
		}
		if got.Engine != "arena" {
			t.Errorf("engine: got %q, want arena", got.Engine)
		}

		tex.Engine = "combat"
		data, err = c.Encode(tex, codec.NewOptions(codec.WithVariant("arena")))
		if err != nil {
			t.Fatal(err)
		}
		if got, _ := c.Decode(data, nil); got.Engine != "combat" {
			t.Errorf("engine: got %q, want combat", got.Engine)
		}
	})

	t.Run("UnknownVersion", func(t *testing.T) {
		tex := newTexture(t, texture.FormatR8Unorm, 4, 4, 1, 1, 1, 1)
		if _, err := c.Encode(tex, codec.NewOptions(codec.WithVersion("GTEX9"))); !errors.Is(err, ErrUnknownVersion) {
			t.Errorf("got %v, want ErrUnknownVersion", err)
		}
	})

	t.Run("BasicLayoutLimits", func(t *testing.T) {
		v1 := codec.NewOptions(codec.WithVersion("GTEX1"))
		cube := newTexture(t, texture.FormatR8Unorm, 4, 4, 1, 1, 1, 6)
		if _, err := c.Encode(cube, v1); !errors.Is(err, ErrUnrepresentable) {
			t.Errorf("cube: got %v, want ErrUnrepresentable", err)
		}
		arr := newTexture(t, texture.FormatR8Unorm, 4, 4, 1, 1, 2, 1)
		if _, err := c.Encode(arr, v1); !errors.Is(err, ErrUnrepresentable) {
			t.Errorf("array: got %v, want ErrUnrepresentable", err)
		}
		named := newTexture(t, texture.FormatR8Unorm, 4, 4, 1, 1, 1, 1)
		named.Engine = "arena"
		if _, err := c.Encode(named, v1); !errors.Is(err, ErrUnrepresentable) {
			t.Errorf("engine: got %v, want ErrUnrepresentable", err)
		}
		srgb := newTexture(t, texture.FormatR8G8B8A8UnormSRGB, 4, 4, 1, 1, 1, 1)
		srgb.Gamma = true
		data, err := c.Encode(srgb, v1)
		if err != nil {
			t.Fatalf("sRGB gamma in GTEX1: %v", err)
		}
		got, err := c.Decode(data, nil)
		if err != nil {
			t.Fatal(err)
		}
		if !got.Gamma {
			t.Error("GTEX1 gamma not derived from sRGB format")
		}
	})

	t.Run("InvalidTexture", func(t *testing.T) {
		tex := newTexture(t, texture.FormatR8Unorm, 4, 4, 1, 1, 1, 1)
		tex.Images[0].Pix = tex.Images[0].Pix[:3]
		if _, err := c.Encode(tex, nil); err == nil {
			t.Error("expected error for short buffer")
		}
	})

	t.Run("LongName", func(t *testing.T) {
		tex := newTexture(t, texture.FormatR8Unorm, 4, 4, 1, 1, 1, 1)
		tex.Name = strings.Repeat("n", 300)
		if _, err := c.Encode(tex, nil); !errors.Is(err, binio.ErrLengthLimitExceeded) {
			t.Errorf("got %v, want ErrLengthLimitExceeded", err)
		}
	})
}

func TestPlatformSwizzle(t *testing.T) {
	c := New()
	tex := newTexture(t, texture.FormatR8G8B8A8Unorm, 32, 32, 1, 2, 1, 1)

	data, err := c.Encode(tex, codec.NewOptions(codec.WithPlatform(texture.PlatformPSVita)))
	if err != nil {
		t.Fatal(err)
	}

	stored, err := c.Decode(data, nil)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Platform != texture.PlatformPSVita {
		t.Errorf("platform: got %s, want psvita", stored.Platform)
	}
	if bytes.Equal(stored.Images[0].Pix, tex.Images[0].Pix) {
		t.Error("pixels were not swizzled on encode")
	}
	if !bytes.Equal(tex.Images[0].Pix, newTexture(t, texture.FormatR8G8B8A8Unorm, 32, 32, 1, 2, 1, 1).Images[0].Pix) {
		t.Error("encode modified the source texture")
	}

	linear, err := c.Decode(data, codec.NewOptions(codec.WithUnswizzle(texture.PlatformPSVita)))
	if err != nil {
		t.Fatal(err)
	}
	if linear.Platform != texture.PlatformNone {
		t.Errorf("platform after unswizzle: got %s, want none", linear.Platform)
	}
	assertSameTexture(t, linear, tex)

	if _, err := c.Decode(data, codec.NewOptions(codec.WithUnswizzle(texture.PlatformWiiU))); err == nil {
		t.Error("expected error for platform without a layout")
	}
}

// rawV1 builds a GTEX1 container by hand.
func rawV1(name string, width, height uint32, format texture.Format, mips uint32, pix []byte) []byte {
	w := binio.NewWriter(binary.LittleEndian)
	w.WriteFixedString(Magic)
	_ = w.WriteString("GTEX1")
	w.WriteU8(0)
	w.WriteBool(false)
	w.WriteI32(int32(len(name)))
	w.WriteFixedString(name)
	w.WriteU32(width)
	w.WriteU32(height)
	w.WriteU32(uint32(format))
	w.WriteU32(mips)
	w.WriteBytes(pix)
	return w.Bytes()
}

// rawV2Header builds a GTEX2 header up to the data blocks.
func rawV2Header(faces uint32, gamma byte, surface string) []byte {
	w := binio.NewWriter(binary.LittleEndian)
	w.WriteFixedString(Magic)
	_ = w.WriteString("GTEX2")
	w.WriteU8(0)
	w.WriteBool(false)
	_ = w.WriteString("")
	_ = w.WriteString("n")
	w.WriteU32(4)
	w.WriteU32(4)
	w.WriteU32(1)
	w.WriteU32(uint32(texture.FormatR8Unorm))
	w.WriteU32(1)
	w.WriteU32(1)
	w.WriteU32(faces)
	w.WriteU8(gamma)
	_ = w.WriteString(surface)
	return w.Bytes()
}

func TestDecodeHandBuilt(t *testing.T) {
	pix := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	data := rawV1("tiny", 2, 1, texture.FormatR8G8B8A8Unorm, 1, pix)
	tex, err := New().Decode(data, nil)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if tex.Name != "tiny" || tex.Width() != 2 || tex.Height() != 1 {
		t.Errorf("got %q %dx%d, want tiny 2x1", tex.Name, tex.Width(), tex.Height())
	}
	if !bytes.Equal(tex.Images[0].Pix, pix) {
		t.Errorf("got %v, want %v", tex.Images[0].Pix, pix)
	}
}

func TestDecodeErrors(t *testing.T) {
	good := rawV1("tiny", 2, 1, texture.FormatR8G8B8A8Unorm, 1, make([]byte, 8))
	longName := rawV1(strings.Repeat("x", 300), 2, 1, texture.FormatR8G8B8A8Unorm, 1, make([]byte, 8))

	badBool := append([]byte(nil), good...)
	badBool[4+4+5+1] = '2'

	badMagic := append([]byte(nil), good...)
	copy(badMagic, "DDS ")

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"Empty", nil, binio.ErrTruncated},
		{"BadMagic", badMagic, ErrBadMagic},
		{"LongString", longName, binio.ErrLengthLimitExceeded},
		{"BadBool", badBool, binio.ErrInvalidBooleanEncoding},
		{"TruncatedData", good[:len(good)-1], binio.ErrTruncated},
		{"TruncatedHeader", good[:20], binio.ErrTruncated},
		{"TrailingData", append(append([]byte(nil), good...), 0), ErrTrailingData},
		{"UnknownFormat", rawV1("tiny", 2, 1, texture.Format(9999), 1, make([]byte, 8)), texture.ErrUnsupportedFormat},
		{"ZeroWidth", rawV1("tiny", 0, 1, texture.FormatR8G8B8A8Unorm, 1, nil), ErrInvalidHeader},
		{"TooManyMips", rawV1("tiny", 2, 1, texture.FormatR8G8B8A8Unorm, 3, make([]byte, 12)), ErrInvalidHeader},
		{"HugeDimensions", rawV1("tiny", MaxDimension, MaxDimension, texture.FormatR32G32B32A32Float, 1, nil), ErrInvalidHeader},
		{"TwoFaces", rawV2Header(2, '0', "2d"), ErrInvalidHeader},
		{"BadGamma", rawV2Header(1, 'x', "2d"), binio.ErrInvalidBooleanEncoding},
		{"BadSurface", rawV2Header(1, '0', "sphere"), ErrInvalidHeader},
	}
	c := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Decode(tt.data, nil)
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}

	t.Run("UnknownVersion", func(t *testing.T) {
		w := binio.NewWriter(binary.LittleEndian)
		w.WriteFixedString(Magic)
		_ = w.WriteString("GTEX7")
		if _, err := c.Decode(w.Bytes(), nil); !errors.Is(err, ErrUnknownVersion) {
			t.Errorf("got %v, want ErrUnknownVersion", err)
		}
	})

	t.Run("OffsetContext", func(t *testing.T) {
		_, err := c.Decode(longName, nil)
		var oe *binio.OffsetError
		if !errors.As(err, &oe) {
			t.Fatalf("got %T, want *binio.OffsetError", err)
		}
		if want := 4 + 4 + 5 + 1 + 1; oe.Offset != want {
			t.Errorf("offset: got %d, want %d", oe.Offset, want)
		}
	})
}

func TestDecodeCorruptBlocks(t *testing.T) {
	c := New()
	tex := newTexture(t, texture.FormatR8G8B8A8Unorm, 16, 16, 1, 1, 1, 1)

	for _, version := range []string{"GTEX3", "GTEX4"} {
		t.Run(version, func(t *testing.T) {
			data, err := c.Encode(tex, codec.NewOptions(codec.WithVersion(version)))
			if err != nil {
				t.Fatal(err)
			}
			if _, err := c.Decode(data[:len(data)-2], nil); err == nil {
				t.Error("expected error for truncated payload")
			}
		})
	}

	t.Run("GTEX3SizeMismatch", func(t *testing.T) {
		data, err := c.Encode(tex, codec.NewOptions(codec.WithVersion("GTEX3")))
		if err != nil {
			t.Fatal(err)
		}
		// The first block's raw size follows the surface string.
		bad := append([]byte(nil), data...)
		idx := bytes.Index(bad, []byte("2d")) + 2
		binary.LittleEndian.PutUint32(bad[idx:], 7)
		if _, err := c.Decode(bad, nil); !errors.Is(err, ErrCorruptBlock) {
			t.Errorf("got %v, want ErrCorruptBlock", err)
		}
	})
}

// extendedHeader builds a GTEX2+ header up to the data blocks.
func extendedHeader(version string, width, height, arraySize uint32, format texture.Format) []byte {
	w := binio.NewWriter(binary.LittleEndian)
	w.WriteFixedString(Magic)
	_ = w.WriteString(version)
	w.WriteU8(0)
	w.WriteBool(false)
	_ = w.WriteString("")
	_ = w.WriteString("big")
	w.WriteU32(width)
	w.WriteU32(height)
	w.WriteU32(1)
	w.WriteU32(uint32(format))
	w.WriteU32(1)
	w.WriteU32(arraySize)
	w.WriteU32(1)
	w.WriteBool(false)
	_ = w.WriteString(texture.Surface2D)
	return w.Bytes()
}

func TestDecodeOversizedPayload(t *testing.T) {
	const side = 16384
	need := uint64(side * side * 4)

	lz4Block := func(rawSize, storedSize uint32, payload int) []byte {
		w := binio.NewWriter(binary.LittleEndian)
		w.WriteBytes(extendedHeader("GTEX3", side, side, 1, texture.FormatR8G8B8A8Unorm))
		w.WriteU32(rawSize)
		w.WriteU32(storedSize)
		w.WriteBytes(make([]byte, payload))
		return w.Bytes()
	}
	frame := func(length, compressed uint64, payload int) []byte {
		w := binio.NewWriter(binary.LittleEndian)
		w.WriteBytes(extendedHeader("GTEX4", side, side, 1, texture.FormatR8G8B8A8Unorm))
		head, _ := archive.NewHeader(length, compressed).MarshalBinary()
		w.WriteBytes(head)
		w.WriteBytes(make([]byte, payload))
		return w.Bytes()
	}
	manyBlocks := binio.NewWriter(binary.LittleEndian)
	manyBlocks.WriteBytes(extendedHeader("GTEX3", 256, 256, MaxArraySize, texture.FormatR8G8B8A8Unorm))
	manyBlocks.WriteU32(256 * 256 * 4)
	manyBlocks.WriteU32(256 * 256 * 4 / 200)
	manyBlocks.WriteBytes(make([]byte, 256*256*4/200))

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"LZ4RatioImpossible", lz4Block(uint32(need), 16, 16), ErrCorruptBlock},
		{"LZ4PayloadMissing", lz4Block(uint32(need), uint32(need/100), 64), binio.ErrTruncated},
		{"LZ4BlocksMissing", manyBlocks.Bytes(), binio.ErrTruncated},
		{"FrameLengthMismatch", frame(need/2, 8, 8), ErrCorruptBlock},
		{"FrameBodyMissing", frame(need, 1<<20, 32), binio.ErrTruncated},
	}
	c := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Decode(tt.data, nil)
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDescribe(t *testing.T) {
	d := New().Describe()
	if d.Name != "gtex" {
		t.Errorf("name: got %q, want gtex", d.Name)
	}
	r := codec.NewRegistry(New())
	for _, ext := range []string{"TEX", ".gtex"} {
		if _, err := r.Resolve(ext); err != nil {
			t.Errorf("resolve %s: %v", ext, err)
		}
	}
}
