package codec

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/EchoTools/texforge/pkg/texture"
)

// rawCodec stores a 1x1 RGBA8 pixel as its four bytes.
type rawCodec struct {
	name string
	exts []string
}

func (c *rawCodec) Describe() Descriptor {
	return Descriptor{
		Name:       c.name,
		FormatName: "raw pixel",
		Extensions: c.exts,
		Formats:    []texture.Format{texture.FormatR8G8B8A8Unorm},
	}
}

func (c *rawCodec) Decode(data []byte, _ *Options) (*texture.Texture, error) {
	tex, err := texture.New(texture.FormatR8G8B8A8Unorm, 1, 1, 1, 1, 1, 1)
	if err != nil {
		return nil, err
	}
	if err := tex.Images[0].Replace(texture.FormatR8G8B8A8Unorm, append([]byte(nil), data...)); err != nil {
		return nil, err
	}
	return tex, nil
}

func (c *rawCodec) Encode(tex *texture.Texture, _ *Options) ([]byte, error) {
	return append([]byte(nil), tex.Images[0].Pix...), nil
}

func TestNormalizeExtension(t *testing.T) {
	tests := []struct{ in, want string }{
		{"dds", ".dds"},
		{".DDS", ".dds"},
		{"DdS", ".dds"},
		{" .Png ", ".png"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeExtension(tt.in); got != tt.want {
			t.Errorf("NormalizeExtension(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRegistryResolve(t *testing.T) {
	dds := &rawCodec{name: "dds", exts: []string{"dds"}}
	r := NewRegistry(dds)

	for _, ext := range []string{".DDS", "DDS", "dds", ".dds"} {
		got, err := r.Resolve(ext)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", ext, err)
		}
		if got != Codec(dds) {
			t.Errorf("Resolve(%q) returned a different codec", ext)
		}
	}

	if _, err := r.Resolve(".xyz"); !errors.Is(err, ErrUnsupportedExtension) {
		t.Errorf("Resolve(.xyz) error = %v, want ErrUnsupportedExtension", err)
	}
	if _, err := r.ResolvePath("dir/file.XYZ"); !errors.Is(err, ErrUnsupportedExtension) {
		t.Errorf("ResolvePath error = %v, want ErrUnsupportedExtension", err)
	}
	if _, err := r.ResolvePath("dir/noext"); !errors.Is(err, ErrUnsupportedExtension) {
		t.Errorf("ResolvePath without extension error = %v, want ErrUnsupportedExtension", err)
	}
}

func TestRegistryLastWins(t *testing.T) {
	builtin := &rawCodec{name: "builtin", exts: []string{".png", ".tga"}}
	override := &rawCodec{name: "override", exts: []string{"PNG"}}
	r := NewRegistry(builtin, override)

	got, err := r.Resolve("png")
	if err != nil {
		t.Fatal(err)
	}
	if got.Describe().Name != "override" {
		t.Errorf("got %s, want override", got.Describe().Name)
	}
	got, err = r.Resolve("tga")
	if err != nil {
		t.Fatal(err)
	}
	if got.Describe().Name != "builtin" {
		t.Errorf("got %s, want builtin", got.Describe().Name)
	}
	if n := len(r.Codecs()); n != 2 {
		t.Errorf("Codecs() has %d entries, want 2", n)
	}

	full := NewRegistry(&rawCodec{name: "a", exts: []string{"x"}}, &rawCodec{name: "b", exts: []string{"x"}})
	if codecs := full.Codecs(); len(codecs) != 1 || codecs[0].Describe().Name != "b" {
		t.Errorf("shadowed codec still listed: %d codecs", len(codecs))
	}
}

func TestSupportedExtensions(t *testing.T) {
	r := NewRegistry(
		&rawCodec{name: "a", exts: []string{"tga", "PNG"}},
		&rawCodec{name: "b", exts: []string{".dds", "png"}},
	)
	want := []string{".dds", ".png", ".tga"}
	if got := r.SupportedExtensions(); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestDescriptorSupports(t *testing.T) {
	d := Descriptor{Formats: []texture.Format{texture.FormatBC1Unorm}}
	if !d.Supports(texture.FormatBC1Unorm) {
		t.Error("BC1 should be supported")
	}
	if d.Supports(texture.FormatBC3Unorm) {
		t.Error("BC3 should not be supported")
	}
	if !(Descriptor{}).Supports(texture.FormatBC7Unorm) {
		t.Error("nil format list should accept everything")
	}
}

func TestLoadSaveFile(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry(&rawCodec{name: "raw", exts: []string{"raw"}})
	src := filepath.Join(dir, "in.RAW")
	if err := os.WriteFile(src, []byte{1, 2, 3, 4}, 0644); err != nil {
		t.Fatal(err)
	}

	tex, err := r.Load(src, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	dst := filepath.Join(dir, "nested", "out.raw")
	if err := r.Save(dst, tex, nil); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, []byte{1, 2, 3, 4}) {
		t.Errorf("got %v, want [1 2 3 4]", got)
	}
	if _, err := os.Stat(dst + SidecarExt); !os.IsNotExist(err) {
		t.Errorf("sidecar written without EmitSidecar: %v", err)
	}

	if _, err := r.Load(filepath.Join(dir, "missing.raw"), nil); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestSaveFileSidecar(t *testing.T) {
	dir := t.TempDir()
	c := &rawCodec{name: "raw", exts: []string{"raw"}}
	tex, err := c.Decode([]byte{9, 9, 9, 9}, nil)
	if err != nil {
		t.Fatal(err)
	}
	tex.Name = "rock_diffuse"

	t.Run("Metadata", func(t *testing.T) {
		path := filepath.Join(dir, "meta.raw")
		if err := SaveFile(c, path, tex, NewOptions(WithSidecar(nil))); err != nil {
			t.Fatal(err)
		}
		data, err := os.ReadFile(path + SidecarExt)
		if err != nil {
			t.Fatal(err)
		}
		var m texture.Metadata
		if err := json.Unmarshal(data, &m); err != nil {
			t.Fatalf("sidecar is not JSON: %v", err)
		}
		if m.Name != "rock_diffuse" || m.Width != 1 || m.Format != "R8G8B8A8_UNORM" {
			t.Errorf("got %+v", m)
		}
	})

	t.Run("Payload", func(t *testing.T) {
		path := filepath.Join(dir, "payload.raw")
		payload := []byte(`{"lod":2}`)
		if err := SaveFile(c, path, tex, NewOptions(WithSidecar(payload))); err != nil {
			t.Fatal(err)
		}
		data, err := os.ReadFile(path + SidecarExt)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(data, payload) {
			t.Errorf("got %s, want %s", data, payload)
		}
	})
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		opts    *Options
		wantErr bool
	}{
		{"Default", DefaultOptions(), false},
		{"AutoCompressLegacy", NewOptions(WithAutoCompress(true, true)), false},
		{"LegacyWithoutAuto", &Options{ForceLegacyCompression: true}, true},
		{"SidecarJSON", NewOptions(WithSidecar([]byte(`{"a":1}`))), false},
		{"SidecarNotJSON", NewOptions(WithSidecar([]byte(`{a:1`))), true},
		{"PayloadWithoutEmit", &Options{Sidecar: []byte(`{}`)}, true},
		{"BadPlatform", &Options{Platform: texture.Platform(200)}, true},
		{"BadUnswizzle", &Options{Unswizzle: texture.Platform(200)}, true},
		{"Unswizzle", NewOptions(WithUnswizzle(texture.PlatformSwitch)), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidOptions) {
				t.Errorf("error %v does not wrap ErrInvalidOptions", err)
			}
		})
	}
}

func TestOptionHelpers(t *testing.T) {
	o := NewOptions(
		WithVariant("arena"),
		WithVersion("GTEX3"),
		WithPlatform(texture.PlatformPS4),
		WithLegacy(true),
		WithDecompress(true),
		WithAutoNormalMap(true),
		WithMips(true),
		WithDX10(true),
	)
	if o.Variant != "arena" || o.Version != "GTEX3" || o.Platform != texture.PlatformPS4 || !o.Legacy {
		t.Errorf("container options not applied: %+v", o)
	}
	if !o.Decompress || !o.AutoNormalMap || !o.GenerateMips || !o.ForceDX10 {
		t.Errorf("pipeline options not applied: %+v", o)
	}
	if o.Unswizzlers() == nil {
		t.Error("Unswizzlers() returned nil")
	}
	if OrDefault(nil) == nil {
		t.Error("OrDefault(nil) returned nil")
	}
}

func TestNopHandler(t *testing.T) {
	h := nopHandler{}
	for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
		if h.Enabled(context.Background(), level) {
			t.Errorf("nopHandler.Enabled(%v) = true, want false", level)
		}
	}
	if err := h.Handle(context.Background(), slog.Record{}); err != nil {
		t.Errorf("nopHandler.Handle() = %v, want nil", err)
	}
	if _, ok := h.WithAttrs(nil).(nopHandler); !ok {
		t.Error("WithAttrs did not return nopHandler")
	}
	if _, ok := h.WithGroup("g").(nopHandler); !ok {
		t.Error("WithGroup did not return nopHandler")
	}
}

func TestSetLogger(t *testing.T) {
	orig := Logger()
	t.Cleanup(func() { SetLogger(orig) })

	if Logger().Enabled(context.Background(), slog.LevelWarn) {
		t.Error("default logger should be silent")
	}

	var buf bytes.Buffer
	custom := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	SetLogger(custom)
	if Logger() != custom {
		t.Error("Logger() did not return the logger set via SetLogger")
	}

	r := NewRegistry(&rawCodec{name: "a", exts: []string{"x"}})
	r.Register(&rawCodec{name: "b", exts: []string{"x"}})
	if !strings.Contains(buf.String(), "codec override") {
		t.Errorf("expected override to be logged, got: %s", buf.String())
	}

	SetLogger(nil)
	if Logger().Enabled(context.Background(), slog.LevelError) {
		t.Error("SetLogger(nil) should restore the silent logger")
	}
}
