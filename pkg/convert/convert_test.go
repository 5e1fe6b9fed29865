package convert

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/EchoTools/texforge/pkg/bridge"
	"github.com/EchoTools/texforge/pkg/codec"
	"github.com/EchoTools/texforge/pkg/container"
	"github.com/EchoTools/texforge/pkg/dds"
	"github.com/EchoTools/texforge/pkg/raster"
	"github.com/EchoTools/texforge/pkg/texture"
	"github.com/EchoTools/texforge/pkg/transform"
)

func newTexture(t *testing.T, f texture.Format, w, h int, fill func(i int) byte) *texture.Texture {
	t.Helper()
	tex, err := texture.New(f, w, h, 1, 1, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	for i := range tex.Images[0].Pix {
		tex.Images[0].Pix[i] = fill(i)
	}
	return tex
}

func opaque(i int) byte {
	if i%4 == 3 {
		return 0xFF
	}
	return byte(i * 7)
}

func writeFile(t *testing.T, c codec.Codec, path string, tex *texture.Texture) {
	t.Helper()
	if err := codec.SaveFile(c, path, tex, nil); err != nil {
		t.Fatal(err)
	}
}

func TestConvertRoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := newTexture(t, texture.FormatR8G8B8A8Unorm, 16, 8, func(i int) byte { return byte(i*3 + 1) })
	writeFile(t, raster.PNG(), filepath.Join(dir, "in.png"), src)

	conv := Default()
	if err := conv.Convert(filepath.Join(dir, "in.png"), filepath.Join(dir, "mid.gtex"), nil); err != nil {
		t.Fatalf("png -> gtex: %v", err)
	}
	if err := conv.Convert(filepath.Join(dir, "mid.gtex"), filepath.Join(dir, "out", "back.png"), nil); err != nil {
		t.Fatalf("gtex -> png: %v", err)
	}
	got, err := conv.Registry.Load(filepath.Join(dir, "out", "back.png"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got.Images[0].Pix, src.Images[0].Pix) {
		t.Error("pixels changed across png -> gtex -> png")
	}
}

func TestConvertDecompressesForRaster(t *testing.T) {
	dir := t.TempDir()
	tex, err := texture.New(texture.FormatBC1Unorm, 4, 4, 1, 1, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	copy(tex.Images[0].Pix, []byte{0x00, 0xF8, 0x00, 0xF8, 0, 0, 0, 0})
	writeFile(t, dds.New(), filepath.Join(dir, "red.dds"), tex)

	if err := Default().Convert(filepath.Join(dir, "red.dds"), filepath.Join(dir, "red.tga"), nil); err != nil {
		t.Fatal(err)
	}
	got, err := codec.LoadFile(raster.TGA(), filepath.Join(dir, "red.tga"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if want := bytes.Repeat([]byte{0xFF, 0, 0, 0xFF}, 16); !bytes.Equal(got.Images[0].Pix, want) {
		t.Errorf("got %v, want solid red", got.Images[0].Pix)
	}
}

func TestConvertErrors(t *testing.T) {
	dir := t.TempDir()
	conv := Default()
	if err := conv.Convert(filepath.Join(dir, "a.xyz"), filepath.Join(dir, "b.png"), nil); !errors.Is(err, codec.ErrUnsupportedExtension) {
		t.Errorf("source: got %v, want ErrUnsupportedExtension", err)
	}
	if err := conv.Convert(filepath.Join(dir, "a.png"), filepath.Join(dir, "b.xyz"), nil); !errors.Is(err, codec.ErrUnsupportedExtension) {
		t.Errorf("target: got %v, want ErrUnsupportedExtension", err)
	}
	if err := conv.Convert(filepath.Join(dir, "missing.png"), filepath.Join(dir, "b.dds"), nil); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing: got %v, want ErrNotExist", err)
	}
	bad := codec.NewOptions(codec.WithAutoCompress(false, true))
	if err := conv.Convert(filepath.Join(dir, "a.png"), filepath.Join(dir, "b.dds"), bad); !errors.Is(err, codec.ErrInvalidOptions) {
		t.Errorf("options: got %v, want ErrInvalidOptions", err)
	}
}

func TestProcessPassThrough(t *testing.T) {
	tex := newTexture(t, texture.FormatBC3Unorm, 8, 8, func(int) byte { return 0 })
	out, err := Default().Process(tex, container.New(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if out != tex {
		t.Error("a supported format with no options should pass through")
	}
}

func TestProcessUnsupportedBlockFormat(t *testing.T) {
	tex := newTexture(t, texture.FormatBC7Unorm, 4, 4, func(int) byte { return 0 })
	_, err := Default().Process(tex, raster.PNG(), nil)
	if !errors.Is(err, bridge.ErrUnsupported) {
		t.Errorf("got %v, want ErrUnsupported", err)
	}
}

type failingBridge struct{}

func (failingBridge) Name() string                  { return "broken" }
func (failingBridge) Decodes(f texture.Format) bool { return f == texture.FormatBC1Unorm }
func (failingBridge) Encodes(texture.Format) bool   { return false }
func (failingBridge) Decode(*texture.Image) (*texture.Image, error) {
	return nil, errors.New("boom")
}
func (failingBridge) Encode(*texture.Image, texture.Format) (*texture.Image, error) {
	return nil, errors.New("boom")
}

func TestProcessBridgeFailure(t *testing.T) {
	conv := New(DefaultRegistry(), bridge.NewSet(failingBridge{}))
	tex := newTexture(t, texture.FormatBC1Unorm, 4, 4, func(int) byte { return 0 })
	_, err := conv.Process(tex, raster.PNG(), nil)
	if !errors.Is(err, bridge.ErrExternalCodec) {
		t.Errorf("got %v, want ErrExternalCodec", err)
	}
}

func TestProcessMips(t *testing.T) {
	tex, err := texture.New(texture.FormatR8G8B8A8Unorm, 16, 8, 1, 1, 2, 1)
	if err != nil {
		t.Fatal(err)
	}
	out, err := Default().Process(tex, container.New(), codec.NewOptions(codec.WithMips(true)))
	if err != nil {
		t.Fatal(err)
	}
	if out.MipCount != 5 {
		t.Fatalf("got %d mips, want 5", out.MipCount)
	}
	if len(out.Images) != 10 {
		t.Fatalf("got %d images, want 10", len(out.Images))
	}
	if err := out.Validate(); err != nil {
		t.Error(err)
	}
	if last := out.Image(1, 0, 4); last.Width != 1 || last.Height != 1 {
		t.Errorf("last mip is %dx%d, want 1x1", last.Width, last.Height)
	}
	if tex.MipCount != 1 {
		t.Error("source texture was modified")
	}
}

func TestProcessAutoCompress(t *testing.T) {
	tests := []struct {
		name   string
		target codec.Codec
		fill   func(int) byte
		opts   *codec.Options
		want   texture.Format
	}{
		{"ContainerOpaque", container.New(), opaque, codec.NewOptions(codec.WithAutoCompress(true, false)), texture.FormatETC2RGB},
		{"ContainerAlpha", container.New(), func(i int) byte { return byte(i) }, codec.NewOptions(codec.WithAutoCompress(true, false)), texture.FormatETC2RGBA1},
		{"ContainerLegacy", container.New(), opaque, codec.NewOptions(codec.WithAutoCompress(true, true)), texture.FormatETC2RGB},
		{"DDSNoEncoder", dds.New(), opaque, codec.NewOptions(codec.WithAutoCompress(true, false)), texture.FormatR8G8B8A8Unorm},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tex := newTexture(t, texture.FormatR8G8B8A8Unorm, 8, 8, tt.fill)
			out, err := Default().Process(tex, tt.target, tt.opts)
			if err != nil {
				t.Fatal(err)
			}
			if got := out.Format().Format; got != tt.want {
				t.Errorf("got %s, want %s", texture.FormatName(got), texture.FormatName(tt.want))
			}
		})
	}
}

func TestProcessAutoCompressKeepsSourceWithoutEncoder(t *testing.T) {
	for _, f := range []texture.Format{texture.FormatR16G16B16A16Unorm, texture.FormatB8G8R8A8Unorm, texture.FormatR8Unorm} {
		t.Run(texture.FormatName(f), func(t *testing.T) {
			tex := newTexture(t, f, 8, 8, func(i int) byte { return byte(i * 3) })
			before := append([]byte(nil), tex.Images[0].Pix...)
			out, err := Default().Process(tex, dds.New(), codec.NewOptions(codec.WithAutoCompress(true, false)))
			if err != nil {
				t.Fatal(err)
			}
			if got := out.Format().Format; got != f {
				t.Errorf("got %s, want %s left unexpanded", texture.FormatName(got), texture.FormatName(f))
			}
			if !bytes.Equal(out.Images[0].Pix, before) {
				t.Error("pixels changed although nothing was compressed")
			}
		})
	}
}

// bc5Encoder stands in for a BC5 library so normal map routing is
// observable.
type bc5Encoder struct{ sawZ bool }

func (*bc5Encoder) Name() string                  { return "bc5" }
func (*bc5Encoder) Decodes(texture.Format) bool   { return false }
func (*bc5Encoder) Encodes(f texture.Format) bool { return f == texture.FormatBC5Unorm }
func (*bc5Encoder) Decode(*texture.Image) (*texture.Image, error) {
	return nil, errors.New("not implemented")
}
func (b *bc5Encoder) Encode(img *texture.Image, target texture.Format) (*texture.Image, error) {
	for i := 2; i < len(img.Pix); i += 4 {
		if img.Pix[i] != 0 {
			b.sawZ = true
		}
	}
	return texture.NewImage(target, img.Width, img.Height, img.Depth)
}

func TestProcessNormalMap(t *testing.T) {
	normal := func(i int) byte { return []byte{128, 128, 255, 255}[i%4] }

	t.Run("Detect", func(t *testing.T) {
		tex := newTexture(t, texture.FormatR8G8B8A8Unorm, 8, 8, normal)
		enc := &bc5Encoder{}
		conv := New(DefaultRegistry(), bridge.NewSet(enc))
		out, err := conv.Process(tex, dds.New(), codec.NewOptions(
			codec.WithAutoNormalMap(true), codec.WithAutoCompress(true, false)))
		if err != nil {
			t.Fatal(err)
		}
		if !out.NormalMap {
			t.Error("normal map not detected")
		}
		if out.Format().Format != texture.FormatBC5Unorm {
			t.Errorf("got %s, want BC5_UNORM", out.Format().Name)
		}
		if enc.sawZ {
			t.Error("Z was not removed before BC5 encoding")
		}
	})

	t.Run("RestoreZ", func(t *testing.T) {
		tex := newTexture(t, texture.FormatR8G8Unorm, 4, 4, func(int) byte { return 128 })
		tex.NormalMap = true
		out, err := Default().Process(tex, raster.PNG(), nil)
		if err != nil {
			t.Fatal(err)
		}
		px := out.Images[0].Pix
		for i := 0; i < len(px); i += 4 {
			if px[i+2] != 255 {
				t.Fatalf("pixel %d Z = %d, want 255", i/4, px[i+2])
			}
		}
	})

	t.Run("NotANormalMap", func(t *testing.T) {
		tex := newTexture(t, texture.FormatR8G8B8A8Unorm, 8, 8, opaque)
		out, err := Default().Process(tex, container.New(), codec.NewOptions(codec.WithAutoNormalMap(true)))
		if err != nil {
			t.Fatal(err)
		}
		if out.NormalMap {
			t.Error("gradient detected as a normal map")
		}
	})
}

func TestProcessUnswizzles(t *testing.T) {
	tex := newTexture(t, texture.FormatR8G8B8A8Unorm, 16, 16, opaque)
	linear := append([]byte(nil), tex.Images[0].Pix...)
	if err := transform.DefaultUnswizzlers().Swizzle(tex.Images[0], texture.PlatformPS4); err != nil {
		t.Fatal(err)
	}
	tex.Platform = texture.PlatformPS4

	out, err := Default().Process(tex, container.New(), codec.NewOptions(codec.WithDecompress(true)))
	if err != nil {
		t.Fatal(err)
	}
	if out.Platform != texture.PlatformNone {
		t.Errorf("got platform %s, want none", out.Platform)
	}
	if !bytes.Equal(out.Images[0].Pix, linear) {
		t.Error("pixels are still swizzled")
	}
	if tex.Platform != texture.PlatformPS4 {
		t.Error("source texture was modified")
	}
}

func TestDefaultRegistry(t *testing.T) {
	reg := DefaultRegistry()
	for _, ext := range []string{".tex", ".gtex", ".dds", ".png", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff", ".tga", ".hdr", ".json"} {
		if _, err := reg.Resolve(ext); err != nil {
			t.Errorf("%s: %v", ext, err)
		}
	}
}
