package codec

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/EchoTools/texforge/pkg/texture"
	"github.com/EchoTools/texforge/pkg/transform"
)

var ErrInvalidOptions = errors.New("codec: invalid options")

// Options configures a single conversion. It is read-only once the
// conversion starts; codecs reject combinations they cannot honor.
type Options struct {
	// Variant names the target engine or game. Containers store it when
	// the texture carries no engine of its own.
	Variant string
	// Version selects the container layout on encode, e.g. "GTEX3".
	Version string
	// Platform is stamped into containers written from linear data; the
	// pixels are swizzled for it on the way out.
	Platform texture.Platform
	// Legacy selects the big-endian legacy-console layout.
	Legacy bool

	// Unswizzle converts platform-tiled data to linear order on decode.
	Unswizzle texture.Platform
	// Layouts overrides the built-in unswizzle table.
	Layouts transform.Unswizzlers

	Decompress             bool // decode block formats to RGBA8 on load
	AutoNormalMap          bool // detect tangent-space normal maps
	AutoCompress           bool // compress to a block format on save
	ForceLegacyCompression bool // restrict AutoCompress to BC1/BC3/ETC1
	GenerateMips           bool // build a full mip chain before encoding
	ForceDX10              bool // always write the DDS DX10 header

	// EmitSidecar writes <output>.json next to each saved file. Sidecar,
	// when set, is written verbatim; otherwise the texture metadata is.
	EmitSidecar bool
	Sidecar     []byte
}

// Option modifies Options.
type Option func(*Options)

// DefaultOptions returns the options used when a caller passes nil.
func DefaultOptions() *Options {
	return &Options{}
}

// NewOptions applies opts to the defaults.
func NewOptions(opts ...Option) *Options {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithVariant sets the target engine name.
func WithVariant(name string) Option {
	return func(o *Options) { o.Variant = name }
}

// WithVersion sets the container layout written on encode.
func WithVersion(version string) Option {
	return func(o *Options) { o.Version = version }
}

// WithPlatform sets the platform written into containers.
func WithPlatform(p texture.Platform) Option {
	return func(o *Options) { o.Platform = p }
}

// WithLegacy selects the legacy-console layout.
func WithLegacy(legacy bool) Option {
	return func(o *Options) { o.Legacy = legacy }
}

// WithUnswizzle converts data tiled for p to linear order on decode.
func WithUnswizzle(p texture.Platform) Option {
	return func(o *Options) { o.Unswizzle = p }
}

// WithLayouts replaces the unswizzle table.
func WithLayouts(layouts transform.Unswizzlers) Option {
	return func(o *Options) { o.Layouts = layouts }
}

// WithDecompress decodes block-compressed data on load.
func WithDecompress(on bool) Option {
	return func(o *Options) { o.Decompress = on }
}

// WithAutoNormalMap enables normal map detection.
func WithAutoNormalMap(on bool) Option {
	return func(o *Options) { o.AutoNormalMap = on }
}

// WithAutoCompress compresses to a block format on save. legacy limits
// the choice to formats older hardware decodes.
func WithAutoCompress(on, legacy bool) Option {
	return func(o *Options) {
		o.AutoCompress = on
		o.ForceLegacyCompression = legacy
	}
}

// WithMips builds a full mip chain before encoding.
func WithMips(on bool) Option {
	return func(o *Options) { o.GenerateMips = on }
}

// WithDX10 forces the extended DDS header.
func WithDX10(on bool) Option {
	return func(o *Options) { o.ForceDX10 = on }
}

// WithSidecar writes a JSON sidecar next to each output. A nil payload
// writes the texture metadata.
func WithSidecar(payload []byte) Option {
	return func(o *Options) {
		o.EmitSidecar = true
		o.Sidecar = payload
	}
}

// Validate rejects option combinations no codec can honor.
func (o *Options) Validate() error {
	if !o.Platform.Valid() {
		return fmt.Errorf("%w: platform %d", ErrInvalidOptions, o.Platform)
	}
	if !o.Unswizzle.Valid() {
		return fmt.Errorf("%w: unswizzle platform %d", ErrInvalidOptions, o.Unswizzle)
	}
	if o.ForceLegacyCompression && !o.AutoCompress {
		return fmt.Errorf("%w: legacy compression requires auto-compress", ErrInvalidOptions)
	}
	if len(o.Sidecar) > 0 {
		if !o.EmitSidecar {
			return fmt.Errorf("%w: sidecar payload without sidecar output", ErrInvalidOptions)
		}
		if !json.Valid(o.Sidecar) {
			return fmt.Errorf("%w: sidecar payload is not valid JSON", ErrInvalidOptions)
		}
	}
	return nil
}

// Unswizzlers returns the layout table to use for decode.
func (o *Options) Unswizzlers() transform.Unswizzlers {
	if o.Layouts != nil {
		return o.Layouts
	}
	return transform.DefaultUnswizzlers()
}

// OrDefault returns o, or the defaults when o is nil.
func OrDefault(o *Options) *Options {
	if o == nil {
		return DefaultOptions()
	}
	return o
}
