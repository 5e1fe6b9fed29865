// Package container reads and writes GTEX texture containers.
//
// A container starts with a little-endian header (magic, layout tag,
// platform, legacy flag). Everything after the legacy flag uses the byte
// order the flag selects: big-endian for legacy consoles, little-endian
// otherwise. The layout tag decides which metadata fields are present and
// how the pixel blocks are stored:
//
//	tag    extended metadata   block storage
//	GTEX1  no                  raw
//	GTEX2  yes                 raw
//	GTEX3  yes                 per-block LZ4
//	GTEX4  yes                 one zstd frame
//
// Extended metadata adds the engine name, depth, array size, face count,
// gamma flag and surface kind. Blocks follow in texture order: array
// element outer, then face, then mip level.
package container

import (
	"errors"
	"fmt"
	"sort"

	"github.com/EchoTools/texforge/pkg/codec"
	"github.com/EchoTools/texforge/pkg/texture"
)

// Magic opens every container.
const Magic = "GTEX"

// DefaultVersion is written for textures that did not come from a
// container and have no layout requested.
const DefaultVersion = "GTEX2"

// Limits applied before anything is allocated.
const (
	MaxDimension = texture.MaxDimension
	MaxArraySize = texture.MaxArraySize
)

var (
	ErrBadMagic        = errors.New("container: bad magic")
	ErrUnknownVersion  = errors.New("container: unknown layout version")
	ErrInvalidHeader   = errors.New("container: invalid header")
	ErrCorruptBlock    = errors.New("container: corrupt data block")
	ErrTrailingData    = errors.New("container: trailing data")
	ErrUnrepresentable = errors.New("container: texture not representable in layout")
)

type storage uint8

const (
	storeRaw storage = iota
	storeLZ4
	storeZstd
)

// layout describes how one version tag arranges a container.
type layout struct {
	extended bool
	storage  storage
}

var layouts = map[string]layout{
	"GTEX1": {extended: false, storage: storeRaw},
	"GTEX2": {extended: true, storage: storeRaw},
	"GTEX3": {extended: true, storage: storeLZ4},
	"GTEX4": {extended: true, storage: storeZstd},
}

// Versions returns the known layout tags in order.
func Versions() []string {
	out := make([]string, 0, len(layouts))
	for v := range layouts {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func lookupLayout(version string) (layout, error) {
	l, ok := layouts[version]
	if !ok {
		return layout{}, fmt.Errorf("%w: %q", ErrUnknownVersion, version)
	}
	return l, nil
}

// Codec is the GTEX codec. The zero value is ready to use.
type Codec struct{}

// New returns a GTEX codec.
func New() *Codec { return &Codec{} }

func (*Codec) Describe() codec.Descriptor {
	return codec.Descriptor{
		Name:       "gtex",
		FormatName: "GTEX texture container",
		Extensions: []string{".tex", ".gtex"},
	}
}

var validSurfaces = map[string]bool{
	texture.Surface2D:     true,
	texture.SurfaceCube:   true,
	texture.SurfaceVolume: true,
	texture.SurfaceArray:  true,
}
