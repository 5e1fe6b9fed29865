package codec

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/EchoTools/texforge/pkg/texture"
)

// SidecarExt is appended to output paths for JSON sidecars.
const SidecarExt = ".json"

// LoadFile reads the whole file at path and decodes it with c.
func LoadFile(c Codec, path string, opts *Options) (*texture.Texture, error) {
	opts = OrDefault(opts)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	tex, err := c.Decode(data, opts)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	Logger().Debug("loaded", "path", path, "codec", c.Describe().Name, "bytes", len(data))
	return tex, nil
}

// SaveFile encodes tex with c and writes the result to path, creating the
// parent directory. With opts.EmitSidecar it also writes path+".json".
func SaveFile(c Codec, path string, tex *texture.Texture, opts *Options) error {
	opts = OrDefault(opts)
	data, err := c.Encode(tex, opts)
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	Logger().Debug("saved", "path", path, "codec", c.Describe().Name, "bytes", len(data))

	if opts.EmitSidecar {
		return writeSidecar(path+SidecarExt, tex, opts.Sidecar)
	}
	return nil
}

func writeSidecar(path string, tex *texture.Texture, payload []byte) error {
	if len(payload) == 0 {
		var err error
		payload, err = json.MarshalIndent(tex.Metadata(), "", "  ")
		if err != nil {
			return fmt.Errorf("marshal sidecar: %w", err)
		}
		payload = append(payload, '\n')
	} else if !json.Valid(payload) {
		return fmt.Errorf("%w: sidecar payload is not valid JSON", ErrInvalidOptions)
	}
	if err := os.WriteFile(path, payload, 0644); err != nil {
		return fmt.Errorf("write sidecar: %w", err)
	}
	return nil
}
