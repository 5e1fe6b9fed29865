package dds

import "github.com/EchoTools/texforge/pkg/texture"

// legacyFormat is a pixel format expressible without the DX10 header.
type legacyFormat struct {
	format texture.Format
	pf     PixelFormat
}

func masked(flags, bits, r, g, b, a uint32) PixelFormat {
	return PixelFormat{Size: pixelFormatSize, Flags: flags, RGBBitCount: bits,
		RBitMask: r, GBitMask: g, BBitMask: b, ABitMask: a}
}

func compressed(code [4]byte) PixelFormat {
	return PixelFormat{Size: pixelFormatSize, Flags: PFFourCC, FourCC: code}
}

// legacyFormats lists the encodings written for formats that have one.
// Decoding accepts these plus the aliases in fourCCAliases.
var legacyFormats = []legacyFormat{
	{texture.FormatBC1Unorm, compressed(fourCC("DXT1"))},
	{texture.FormatBC2Unorm, compressed(fourCC("DXT3"))},
	{texture.FormatBC3Unorm, compressed(fourCC("DXT5"))},
	{texture.FormatBC4Unorm, compressed(fourCC("ATI1"))},
	{texture.FormatBC4Snorm, compressed(fourCC("BC4S"))},
	{texture.FormatBC5Unorm, compressed(fourCC("ATI2"))},
	{texture.FormatBC5Snorm, compressed(fourCC("BC5S"))},
	{texture.FormatR16G16B16A16Unorm, compressed(d3dFourCC(36))},
	{texture.FormatR16G16B16A16Float, compressed(d3dFourCC(113))},
	{texture.FormatR32Float, compressed(d3dFourCC(114))},
	{texture.FormatR32G32B32A32Float, compressed(d3dFourCC(116))},

	{texture.FormatR8G8B8A8Unorm, masked(PFRGB|PFAlphaPixels, 32, 0x000000ff, 0x0000ff00, 0x00ff0000, 0xff000000)},
	{texture.FormatB8G8R8A8Unorm, masked(PFRGB|PFAlphaPixels, 32, 0x00ff0000, 0x0000ff00, 0x000000ff, 0xff000000)},
	{texture.FormatB8G8R8X8Unorm, masked(PFRGB, 32, 0x00ff0000, 0x0000ff00, 0x000000ff, 0)},
	{texture.FormatR10G10B10A2Unorm, masked(PFRGB|PFAlphaPixels, 32, 0x000003ff, 0x000ffc00, 0x3ff00000, 0xc0000000)},
	{texture.FormatR16G16Unorm, masked(PFRGB, 32, 0x0000ffff, 0xffff0000, 0, 0)},
	{texture.FormatB5G6R5Unorm, masked(PFRGB, 16, 0xf800, 0x07e0, 0x001f, 0)},
	{texture.FormatB5G5R5A1Unorm, masked(PFRGB|PFAlphaPixels, 16, 0x7c00, 0x03e0, 0x001f, 0x8000)},
	{texture.FormatB4G4R4A4Unorm, masked(PFRGB|PFAlphaPixels, 16, 0x0f00, 0x00f0, 0x000f, 0xf000)},
	{texture.FormatR8G8Unorm, masked(PFLuminance|PFAlphaPixels, 16, 0x00ff, 0, 0, 0xff00)},
	{texture.FormatR16Unorm, masked(PFLuminance, 16, 0xffff, 0, 0, 0)},
	{texture.FormatR8Unorm, masked(PFLuminance, 8, 0xff, 0, 0, 0)},
	{texture.FormatA8Unorm, masked(PFAlpha, 8, 0, 0, 0, 0xff)},
}

var fourCCAliases = map[[4]byte]texture.Format{
	fourCC("DXT2"): texture.FormatBC2Unorm,
	fourCC("DXT4"): texture.FormatBC3Unorm,
	fourCC("BC4U"): texture.FormatBC4Unorm,
	fourCC("BC5U"): texture.FormatBC5Unorm,
}

// dx10FourCC announces a DX10 header.
var dx10FourCC = fourCC("DX10")

func legacyEncoding(f texture.Format) (PixelFormat, bool) {
	for _, l := range legacyFormats {
		if l.format == f {
			return l.pf, true
		}
	}
	return PixelFormat{}, false
}

// legacyFormatOf maps a legacy pixel format to a catalog format.
func legacyFormatOf(pf PixelFormat) (texture.Format, bool) {
	if pf.Flags&PFFourCC != 0 {
		if f, ok := fourCCAliases[pf.FourCC]; ok {
			return f, true
		}
		for _, l := range legacyFormats {
			if l.pf.Flags&PFFourCC != 0 && l.pf.FourCC == pf.FourCC {
				return l.format, true
			}
		}
		return texture.FormatUnknown, false
	}
	kind := pf.Flags & (PFRGB | PFLuminance | PFAlpha)
	alpha := pf.Flags & PFAlphaPixels
	for _, l := range legacyFormats {
		if l.pf.Flags&PFFourCC != 0 || l.pf.Flags&(PFRGB|PFLuminance|PFAlpha) != kind || l.pf.Flags&PFAlphaPixels != alpha {
			continue
		}
		if l.pf.RGBBitCount != pf.RGBBitCount || l.pf.RBitMask != pf.RBitMask ||
			l.pf.GBitMask != pf.GBitMask || l.pf.BBitMask != pf.BBitMask {
			continue
		}
		if (alpha != 0 || kind == PFAlpha) && l.pf.ABitMask != pf.ABitMask {
			continue
		}
		return l.format, true
	}
	return texture.FormatUnknown, false
}
