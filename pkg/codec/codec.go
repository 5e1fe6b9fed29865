// Package codec defines the contract every texture file format implements
// and the registry that maps file extensions to codecs.
//
// A codec only converts between bytes and the canonical texture model.
// Reading and writing files is done once, by LoadFile and SaveFile, for
// every codec.
package codec

import (
	"errors"
	"strings"

	"github.com/EchoTools/texforge/pkg/texture"
)

var ErrUnsupportedExtension = errors.New("codec: unsupported extension")

// Descriptor describes what a codec handles.
type Descriptor struct {
	Name       string           // short identifier, e.g. "dds"
	FormatName string           // human readable container name
	Extensions []string         // normalized, e.g. ".dds"
	Formats    []texture.Format // pixel formats Encode accepts; nil means any
}

// Supports reports whether the codec can encode f.
func (d Descriptor) Supports(f texture.Format) bool {
	if d.Formats == nil {
		return true
	}
	for _, x := range d.Formats {
		if x == f {
			return true
		}
	}
	return false
}

// Codec converts between a file format and the canonical texture model.
// Implementations must be safe for concurrent use once constructed.
type Codec interface {
	Describe() Descriptor
	Decode(data []byte, opts *Options) (*texture.Texture, error)
	Encode(tex *texture.Texture, opts *Options) ([]byte, error)
}

// NormalizeExtension lower-cases ext and makes sure it has a leading dot.
// The empty string stays empty.
func NormalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" || ext[0] == '.' {
		return ext
	}
	return "." + ext
}
