package texture

import "fmt"

// Metadata is the pixel-free description of a texture, used for JSON
// sidecars and the info command.
type Metadata struct {
	Name      string   `json:"name,omitempty"`
	Engine    string   `json:"engine,omitempty"`
	Version   string   `json:"version,omitempty"`
	Platform  Platform `json:"platform"`
	Legacy    bool     `json:"legacy,omitempty"`
	Width     int      `json:"width"`
	Height    int      `json:"height"`
	Depth     int      `json:"depth"`
	Format    string   `json:"format"`
	FormatTag uint32   `json:"formatTag"`
	MipCount  int      `json:"mipCount"`
	ArraySize int      `json:"arraySize"`
	FaceCount int      `json:"faceCount"`
	Gamma     bool     `json:"gamma,omitempty"`
	Surface   string   `json:"surface,omitempty"`
	NormalMap bool     `json:"normalMap,omitempty"`
	DataSize  int      `json:"dataSize"`
}

// Metadata summarizes t.
func (t *Texture) Metadata() Metadata {
	info := t.Format()
	return Metadata{
		Name:      t.Name,
		Engine:    t.Engine,
		Version:   t.Version,
		Platform:  t.Platform,
		Legacy:    t.Legacy,
		Width:     t.Width(),
		Height:    t.Height(),
		Depth:     t.Depth,
		Format:    info.Name,
		FormatTag: uint32(info.Format),
		MipCount:  t.MipCount,
		ArraySize: t.ArraySize,
		FaceCount: t.FaceCount,
		Gamma:     t.Gamma,
		Surface:   t.Surface,
		NormalMap: t.NormalMap,
		DataSize:  t.TotalSize(),
	}
}

// Texture builds a zero-filled texture described by m. The format tag
// wins over the name when both are set.
func (m Metadata) Texture() (*Texture, error) {
	f, depth, err := m.layout()
	if err != nil {
		return nil, err
	}
	if _, err := m.Size(); err != nil {
		return nil, fmt.Errorf("build texture from metadata: %w", err)
	}
	t, err := New(f, m.Width, m.Height, depth, m.MipCount, m.ArraySize, m.FaceCount)
	if err != nil {
		return nil, fmt.Errorf("build texture from metadata: %w", err)
	}
	t.Name = m.Name
	t.Engine = m.Engine
	t.Version = m.Version
	t.Platform = m.Platform
	t.Legacy = m.Legacy
	t.Gamma = m.Gamma
	t.NormalMap = m.NormalMap
	if m.Surface != "" {
		t.Surface = m.Surface
	}
	return t, nil
}

// Size returns the pixel data size the described layout needs, without
// allocating it. The counts are checked against the texture limits.
func (m Metadata) Size() (int, error) {
	f, depth, err := m.layout()
	if err != nil {
		return 0, err
	}
	if m.ArraySize > MaxArraySize {
		return 0, fmt.Errorf("%w: array size %d exceeds %d", ErrTooLarge, m.ArraySize, MaxArraySize)
	}
	if m.FaceCount != 1 && m.FaceCount != 6 {
		return 0, fmt.Errorf("%w: face count %d", ErrInvalidLayout, m.FaceCount)
	}
	return DataSize(f, m.Width, m.Height, depth, m.MipCount, m.ArraySize, m.FaceCount)
}

func (m Metadata) layout() (Format, int, error) {
	f := Format(m.FormatTag)
	if f == FormatUnknown {
		var err error
		if f, err = ParseFormat(m.Format); err != nil {
			return FormatUnknown, 0, err
		}
	}
	depth := m.Depth
	if depth == 0 {
		depth = 1
	}
	return f, depth, nil
}

// String returns a one-line summary.
func (m Metadata) String() string {
	return fmt.Sprintf("Texture: %dx%dx%d, %d mips, %d array, %d faces, format=%s, platform=%s, size=%d",
		m.Width, m.Height, m.Depth, m.MipCount, m.ArraySize, m.FaceCount, m.Format, m.Platform, m.DataSize)
}
