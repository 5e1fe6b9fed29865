package texture

import (
	"fmt"
	"strings"
)

// Platform identifies the console whose GPU memory layout the pixel data
// is stored in. None means linear, row-major data.
type Platform uint8

const (
	PlatformNone Platform = iota
	PlatformWiiU
	PlatformSwitch
	PlatformPS3
	PlatformPS4
	PlatformXboxOne
	PlatformPS5
	PlatformXboxX
	PlatformXbox360
	PlatformPSVita
)

var platformNames = [...]string{
	PlatformNone:    "none",
	PlatformWiiU:    "wiiu",
	PlatformSwitch:  "switch",
	PlatformPS3:     "ps3",
	PlatformPS4:     "ps4",
	PlatformXboxOne: "xboxone",
	PlatformPS5:     "ps5",
	PlatformXboxX:   "xboxx",
	PlatformXbox360: "xbox360",
	PlatformPSVita:  "psvita",
}

// Platforms returns every known platform in tag order.
func Platforms() []Platform {
	out := make([]Platform, len(platformNames))
	for i := range platformNames {
		out[i] = Platform(i)
	}
	return out
}

// Valid reports whether p is a known platform tag.
func (p Platform) Valid() bool { return int(p) < len(platformNames) }

func (p Platform) String() string {
	if p.Valid() {
		return platformNames[p]
	}
	return fmt.Sprintf("platform(%d)", uint8(p))
}

// ParsePlatform parses a platform name, ignoring case.
func ParsePlatform(s string) (Platform, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return PlatformNone, nil
	}
	for i, name := range platformNames {
		if name == s {
			return Platform(i), nil
		}
	}
	return PlatformNone, fmt.Errorf("unknown platform %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (p Platform) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("unknown platform %d", uint8(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Platform) UnmarshalText(b []byte) error {
	v, err := ParsePlatform(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}
