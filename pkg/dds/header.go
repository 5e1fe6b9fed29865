package dds

const (
	// Magic is "DDS " read as a little-endian uint32.
	Magic = 0x20534444

	headerSize      = 124
	pixelFormatSize = 32

	// Header flags
	FlagCaps        = 0x00000001
	FlagHeight      = 0x00000002
	FlagWidth       = 0x00000004
	FlagPitch       = 0x00000008
	FlagPixelFormat = 0x00001000
	FlagMipMapCount = 0x00020000
	FlagLinearSize  = 0x00080000
	FlagDepth       = 0x00800000

	// Pixel format flags
	PFAlphaPixels = 0x00000001
	PFAlpha       = 0x00000002
	PFFourCC      = 0x00000004
	PFRGB         = 0x00000040
	PFYUV         = 0x00000200
	PFLuminance   = 0x00020000

	// Caps
	CapsComplex = 0x00000008
	CapsTexture = 0x00001000
	CapsMipMap  = 0x00400000

	// Caps2
	Caps2Cubemap  = 0x00000200
	Caps2AllFaces = 0x0000fc00
	Caps2Volume   = 0x00200000

	// DX10 resource dimensions
	Dimension1D = 2
	Dimension2D = 3
	Dimension3D = 4

	// MiscFlagTextureCube marks a DX10 array of cubes.
	MiscFlagTextureCube = 0x4
)

// Header is the main DDS header, magic included (128 bytes).
type Header struct {
	Magic             uint32 // Must be "DDS "
	Size              uint32 // Size of structure (124)
	Flags             uint32 // Flags to indicate valid fields
	Height            uint32 // Height of surface
	Width             uint32 // Width of surface
	PitchOrLinearSize uint32 // Bytes per scan line or total bytes
	Depth             uint32 // Depth of volume texture
	MipMapCount       uint32 // Number of mipmap levels
	Reserved1         [11]uint32
	PixelFormat       PixelFormat
	Caps              uint32
	Caps2             uint32
	Caps3             uint32
	Caps4             uint32
	Reserved2         uint32
}

// PixelFormat describes the pixel format (32 bytes).
type PixelFormat struct {
	Size        uint32  // Size of structure (32)
	Flags       uint32  // Pixel format flags
	FourCC      [4]byte // FourCC code (e.g., "DXT1")
	RGBBitCount uint32
	RBitMask    uint32
	GBitMask    uint32
	BBitMask    uint32
	ABitMask    uint32
}

// DX10Header is the extended header for DXGI formats (20 bytes).
type DX10Header struct {
	DXGIFormat        uint32
	ResourceDimension uint32
	MiscFlag          uint32
	ArraySize         uint32
	MiscFlags2        uint32
}

func fourCC(s string) [4]byte {
	var b [4]byte
	copy(b[:], s)
	return b
}

// d3dFourCC stores a numeric D3DFORMAT in the FourCC field.
func d3dFourCC(code uint32) [4]byte {
	return [4]byte{byte(code), byte(code >> 8), byte(code >> 16), byte(code >> 24)}
}
