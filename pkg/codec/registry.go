package codec

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/EchoTools/texforge/pkg/texture"
)

// Registry maps normalized extensions to codecs. Build it once, then share
// it: lookups take no locks, so Register must not run concurrently with
// anything else.
type Registry struct {
	byExt  map[string]Codec
	codecs []Codec
}

// NewRegistry returns a registry holding codecs, registered in order.
func NewRegistry(codecs ...Codec) *Registry {
	r := &Registry{byExt: make(map[string]Codec)}
	for _, c := range codecs {
		r.Register(c)
	}
	return r
}

// Register maps every extension c declares to c. A later registration for
// the same extension replaces the earlier one.
func (r *Registry) Register(c Codec) {
	d := c.Describe()
	for _, ext := range d.Extensions {
		ext = NormalizeExtension(ext)
		if ext == "" {
			continue
		}
		if prev, ok := r.byExt[ext]; ok && prev != c {
			Logger().Debug("codec override", "ext", ext, "old", prev.Describe().Name, "new", d.Name)
		}
		r.byExt[ext] = c
	}
	for _, existing := range r.codecs {
		if existing == c {
			return
		}
	}
	r.codecs = append(r.codecs, c)
}

// Resolve returns the codec for ext. Case and the leading dot do not matter.
func (r *Registry) Resolve(ext string) (Codec, error) {
	key := NormalizeExtension(ext)
	c, ok := r.byExt[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedExtension, ext)
	}
	return c, nil
}

// ResolvePath returns the codec for the extension of path.
func (r *Registry) ResolvePath(path string) (Codec, error) {
	c, err := r.Resolve(filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return c, nil
}

// Load reads path with the codec registered for its extension.
func (r *Registry) Load(path string, opts *Options) (*texture.Texture, error) {
	c, err := r.ResolvePath(path)
	if err != nil {
		return nil, err
	}
	return LoadFile(c, path, opts)
}

// Save writes tex to path with the codec registered for its extension.
func (r *Registry) Save(path string, tex *texture.Texture, opts *Options) error {
	c, err := r.ResolvePath(path)
	if err != nil {
		return err
	}
	return SaveFile(c, path, tex, opts)
}

// SupportedExtensions returns every registered extension, sorted.
func (r *Registry) SupportedExtensions() []string {
	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Codecs returns the registered codecs in registration order, skipping any
// whose extensions have all been taken over by later codecs.
func (r *Registry) Codecs() []Codec {
	out := make([]Codec, 0, len(r.codecs))
	for _, c := range r.codecs {
		for _, owner := range r.byExt {
			if owner == c {
				out = append(out, c)
				break
			}
		}
	}
	return out
}
