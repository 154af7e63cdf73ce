package imaging

import (
	"fmt"
	"image/color"
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// HSV is a color in the 8-bit hue/saturation/value ranges.
//
// Hue is stored halved so the full circle fits in a byte:
//   - H: 0-179 (0=red, 30=yellow, 60=green, 90=cyan, 120=blue, 150=magenta)
//   - S: 0-255 (0=gray, 255=fully saturated)
//   - V: 0-255 (0=black, 255=brightest)
type HSV struct {
	H uint8 `json:"h"`
	S uint8 `json:"s"`
	V uint8 `json:"v"`
}

// BGRToHSV converts one 8-bit BGR pixel to HSV.
//
// The conversion normalizes the components to 0-1, computes hue in degrees,
// saturation as (max-min)/max and value as max, then rescales:
//
//	H = round(hue / 2) mod 180
//	S = round(saturation * 255)
//	V = round(value * 255)
//
// Gray pixels (max == min) have H = 0 and S = 0.
func BGRToHSV(b, g, r uint8) HSV {
	c := colorful.Color{
		R: float64(r) / 255.0,
		G: float64(g) / 255.0,
		B: float64(b) / 255.0,
	}
	h, s, v := c.Hsv()

	hue := int(math.Round(h/2)) % 180
	return HSV{
		H: uint8(hue),
		S: uint8(math.Round(s * 255)),
		V: uint8(math.Round(v * 255)),
	}
}

// HueDistance returns the distance between two 8-bit hues on the 180-unit circle.
func HueDistance(a, b uint8) int {
	d := int(a) - int(b)
	if d < 0 {
		d = -d
	}
	if d > 90 {
		d = 180 - d
	}
	return d
}

// ParseColor parses a hex color string like "#FF8000" into an opaque color.
func ParseColor(hex string) (color.NRGBA, error) {
	if len(hex) == 0 {
		return color.NRGBA{}, fmt.Errorf("empty color string")
	}
	if hex[0] != '#' {
		hex = "#" + hex
	}
	c, err := colorful.Hex(hex)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid color %q: %w", hex, err)
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}, nil
}

// MustParseColor is ParseColor for compile-time constants. It panics on error.
func MustParseColor(hex string) color.NRGBA {
	c, err := ParseColor(hex)
	if err != nil {
		panic(err)
	}
	return c
}
