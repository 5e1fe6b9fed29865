// Package bridge adapts external block-compression libraries to the
// texture model.
//
// A Bridge decodes block formats to RGBA8 and encodes RGBA8 to block
// formats. Callers go through a Set, which checks the declared format
// against what each bridge claims before calling it and wraps every
// bridge failure in an *Error matching ErrExternalCodec.
package bridge

import (
	"errors"
	"fmt"
	"sync"

	"github.com/EchoTools/texforge/pkg/texture"
	"github.com/EchoTools/texforge/pkg/transform"
)

var (
	// ErrExternalCodec matches every failure reported by a bridge.
	ErrExternalCodec = errors.New("bridge: external codec failed")
	// ErrUnsupported means no bridge in a Set handles the format.
	ErrUnsupported = errors.New("bridge: no bridge for format")
)

// Bridge is an adapter to a block codec. Decode always returns an RGBA8
// image (sRGB-tagged when the source is) with the dimensions of img.
// Encode receives RGBA8 input and returns an image in target.
//
// Implementations own neither argument after returning and must not
// retain them.
type Bridge interface {
	Name() string
	Decodes(f texture.Format) bool
	Encodes(f texture.Format) bool
	Decode(img *texture.Image) (*texture.Image, error)
	Encode(img *texture.Image, target texture.Format) (*texture.Image, error)
}

// Error records a failed bridge call.
type Error struct {
	Bridge string
	Op     string // "decode" or "encode"
	Format texture.Format
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("bridge %s: %s %s: %v", e.Bridge, e.Op, texture.FormatName(e.Format), e.Err)
}

func (e *Error) Unwrap() []error { return []error{ErrExternalCodec, e.Err} }

// Serialized wraps b so that at most one Decode or Encode runs at a time.
func Serialized(b Bridge) Bridge {
	if _, ok := b.(*serialized); ok {
		return b
	}
	return &serialized{b: b}
}

type serialized struct {
	mu sync.Mutex
	b  Bridge
}

func (s *serialized) Name() string                  { return s.b.Name() }
func (s *serialized) Decodes(f texture.Format) bool { return s.b.Decodes(f) }
func (s *serialized) Encodes(f texture.Format) bool { return s.b.Encodes(f) }

func (s *serialized) Decode(img *texture.Image) (*texture.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Decode(img)
}

func (s *serialized) Encode(img *texture.Image, target texture.Format) (*texture.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Encode(img, target)
}

// Set is an ordered list of bridges; earlier bridges win. Build it before
// use and treat it as read-only afterwards.
type Set struct {
	bridges []Bridge
}

func NewSet(bridges ...Bridge) *Set {
	s := &Set{}
	for _, b := range bridges {
		s.Add(b)
	}
	return s
}

// Add appends b at the lowest priority.
func (s *Set) Add(b Bridge) {
	if b != nil {
		s.bridges = append(s.bridges, b)
	}
}

// Bridges returns the bridges in priority order.
func (s *Set) Bridges() []Bridge {
	return append([]Bridge(nil), s.bridges...)
}

func (s *Set) decoder(f texture.Format) Bridge {
	if s == nil {
		return nil
	}
	for _, b := range s.bridges {
		if b.Decodes(f) {
			return b
		}
	}
	return nil
}

func (s *Set) encoder(f texture.Format) Bridge {
	if s == nil {
		return nil
	}
	for _, b := range s.bridges {
		if b.Encodes(f) {
			return b
		}
	}
	return nil
}

// Decodable reports whether some bridge decodes f.
func (s *Set) Decodable(f texture.Format) bool { return s.decoder(f) != nil }

// Encodable reports whether some bridge encodes to f.
func (s *Set) Encodable(f texture.Format) bool { return s.encoder(f) != nil }

// Decode converts a block-compressed image to RGBA8.
func (s *Set) Decode(img *texture.Image) (*texture.Image, error) {
	f := img.Format.Format
	b := s.decoder(f)
	if b == nil {
		return nil, fmt.Errorf("%w: decode %s", ErrUnsupported, img.Format.Name)
	}
	if err := img.Validate(); err != nil {
		return nil, err
	}
	out, err := b.Decode(img)
	if err != nil {
		return nil, &Error{Bridge: b.Name(), Op: "decode", Format: f, Err: err}
	}
	want := texture.FormatR8G8B8A8Unorm
	if img.Format.ColorSpace == texture.SRGB {
		want = texture.FormatR8G8B8A8UnormSRGB
	}
	if err := checkOutput(out, img, want); err != nil {
		return nil, &Error{Bridge: b.Name(), Op: "decode", Format: f, Err: err}
	}
	return out, nil
}

// Encode compresses img to target. Images that are not RGBA8 are
// expanded first.
func (s *Set) Encode(img *texture.Image, target texture.Format) (*texture.Image, error) {
	b := s.encoder(target)
	if b == nil {
		return nil, fmt.Errorf("%w: encode %s", ErrUnsupported, texture.FormatName(target))
	}
	if err := img.Validate(); err != nil {
		return nil, err
	}
	src := img
	if f := img.Format.Format; f != texture.FormatR8G8B8A8Unorm && f != texture.FormatR8G8B8A8UnormSRGB {
		var err error
		if src, err = transform.ExpandToRGBA8(img); err != nil {
			return nil, err
		}
	}
	out, err := b.Encode(src, target)
	if err != nil {
		return nil, &Error{Bridge: b.Name(), Op: "encode", Format: target, Err: err}
	}
	if err := checkOutput(out, img, target); err != nil {
		return nil, &Error{Bridge: b.Name(), Op: "encode", Format: target, Err: err}
	}
	return out, nil
}

// checkOutput rejects bridge results that do not match the request.
func checkOutput(out, in *texture.Image, want texture.Format) error {
	if out == nil {
		return errors.New("no image returned")
	}
	if out.Format.Format != want {
		return fmt.Errorf("returned %s, want %s", out.Format.Name, texture.FormatName(want))
	}
	if out.Width != in.Width || out.Height != in.Height || out.Depth != in.Depth {
		return fmt.Errorf("returned %dx%dx%d, want %dx%dx%d",
			out.Width, out.Height, out.Depth, in.Width, in.Height, in.Depth)
	}
	return out.Validate()
}
