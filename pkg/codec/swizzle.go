package codec

import (
	"fmt"

	"github.com/EchoTools/texforge/pkg/texture"
)

// UnswizzleTexture converts every image of tex from the layout of
// opts.Unswizzle to linear order and marks the texture linear. It does
// nothing when opts.Unswizzle is None.
func UnswizzleTexture(tex *texture.Texture, opts *Options) error {
	opts = OrDefault(opts)
	if opts.Unswizzle == texture.PlatformNone {
		return nil
	}
	if tex.Platform != texture.PlatformNone && tex.Platform != opts.Unswizzle {
		Logger().Debug("unswizzle platform differs from stored platform",
			"stored", tex.Platform, "requested", opts.Unswizzle)
	}
	table := opts.Unswizzlers()
	for i, img := range tex.Images {
		if err := table.Unswizzle(img, opts.Unswizzle); err != nil {
			return fmt.Errorf("unswizzle image %d: %w", i, err)
		}
	}
	tex.Platform = texture.PlatformNone
	return nil
}

// LinearImages returns the images of tex in linear order. Textures whose
// Platform is None are returned as is; others are unswizzled into copies.
func LinearImages(tex *texture.Texture, opts *Options) ([]*texture.Image, error) {
	if tex.Platform == texture.PlatformNone {
		return tex.Images, nil
	}
	table := OrDefault(opts).Unswizzlers()
	out := make([]*texture.Image, len(tex.Images))
	for i, img := range tex.Images {
		out[i] = img.Clone()
		if err := table.Unswizzle(out[i], tex.Platform); err != nil {
			return nil, fmt.Errorf("unswizzle image %d from %s: %w", i, tex.Platform, err)
		}
	}
	return out, nil
}
