// Package sidecar implements a codec for JSON metadata files. A sidecar
// carries the description of a texture without its pixels, so decoding
// one yields a zero-filled texture of the same shape.
package sidecar

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/EchoTools/texforge/pkg/codec"
	"github.com/EchoTools/texforge/pkg/texture"
)

var ErrInvalidSidecar = errors.New("sidecar: invalid metadata")

type Codec struct{}

func New() *Codec { return &Codec{} }

func (*Codec) Describe() codec.Descriptor {
	return codec.Descriptor{
		Name:       "json",
		FormatName: "JSON texture metadata",
		Extensions: []string{codec.SidecarExt},
	}
}

// Decode parses metadata written by Encode (or by codec.SaveFile) and
// builds an empty texture from it. Unknown fields are rejected.
func (*Codec) Decode(data []byte, _ *codec.Options) (*texture.Texture, error) {
	var m texture.Metadata
	if err := Unmarshal(data, &m); err != nil {
		return nil, err
	}
	size, err := m.Size()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSidecar, err)
	}
	if m.DataSize != 0 && m.DataSize != size {
		return nil, fmt.Errorf("%w: dataSize %d, layout needs %d", ErrInvalidSidecar, m.DataSize, size)
	}
	tex, err := m.Texture()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSidecar, err)
	}
	return tex, nil
}

// Encode writes the metadata of tex as indented JSON. A payload set in
// opts.Sidecar is written instead.
func (*Codec) Encode(tex *texture.Texture, opts *codec.Options) ([]byte, error) {
	opts = codec.OrDefault(opts)
	if len(opts.Sidecar) > 0 {
		if !json.Valid(opts.Sidecar) {
			return nil, fmt.Errorf("%w: payload is not valid JSON", ErrInvalidSidecar)
		}
		return append([]byte(nil), opts.Sidecar...), nil
	}
	if err := tex.Validate(); err != nil {
		return nil, err
	}
	return Marshal(tex.Metadata())
}

// Marshal encodes m the way sidecar files are written.
func Marshal(m texture.Metadata) ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Unmarshal decodes a sidecar file into m.
func Unmarshal(data []byte, m *texture.Metadata) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(m); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSidecar, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after metadata object", ErrInvalidSidecar)
	}
	return nil
}
