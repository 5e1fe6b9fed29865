package transform

import (
	"math"

	"github.com/EchoTools/texforge/pkg/texture"
)

const (
	normalSampleLimit = 4096
	normalTolerance   = 0.2
	normalMinRatio    = 0.9
)

// IsNormalMap guesses whether an RGBA8 image holds tangent-space normals:
// most sampled pixels decode to vectors of roughly unit length that point
// out of the surface. Other formats report false.
func IsNormalMap(img *texture.Image) bool {
	if img.Format.Element != texture.ElementUint8 || img.Format.Channels != 4 || img.Format.Compressed() {
		return false
	}
	pixels := len(img.Pix) / 4
	if pixels == 0 {
		return false
	}
	step := max(1, pixels/normalSampleLimit)
	r, b := 0, 2
	if img.Format.Format == texture.FormatB8G8R8A8Unorm || img.Format.Format == texture.FormatB8G8R8A8UnormSRGB ||
		img.Format.Format == texture.FormatB8G8R8X8Unorm || img.Format.Format == texture.FormatB8G8R8X8UnormSRGB {
		r, b = 2, 0
	}

	sampled, hits := 0, 0
	for p := 0; p < pixels; p += step {
		px := img.Pix[p*4 : p*4+4]
		x := float64(px[r])/127.5 - 1
		y := float64(px[1])/127.5 - 1
		z := float64(px[b])/127.5 - 1
		sampled++
		if z < 0 {
			continue
		}
		if math.Abs(math.Sqrt(x*x+y*y+z*z)-1) <= normalTolerance {
			hits++
		}
	}
	return float64(hits) >= normalMinRatio*float64(sampled)
}
