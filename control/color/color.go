// Package color contains the colors the clock paints with.  Colors are packed 24-bit RGB values,
// which is what the LED strand ultimately wants, but they also implement image/color.Color so that
// frames can be previewed as images.
package color

import (
	"fmt"
	stdcolor "image/color"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/colornames"
)

// Color is a packed 0xRRGGBB value.
type Color uint32

var _ stdcolor.Color = Color(0)

// RGB packs the three components into a Color.
func RGB(r, g, b uint8) Color {
	return Color(uint32(r)<<16 | uint32(g)<<8 | uint32(b))
}

// RGB unpacks the color into its components.
func (c Color) RGB() (r, g, b uint8) {
	return uint8(c >> 16), uint8(c >> 8), uint8(c)
}

// RGBA implements image/color.Color.  Colors are always opaque.
func (c Color) RGBA() (r, g, b, a uint32) {
	r8, g8, b8 := c.RGB()
	r, g, b = uint32(r8), uint32(g8), uint32(b8)
	return r | r<<8, g | g<<8, b | b<<8, 0xffff
}

func (c Color) String() string {
	return fmt.Sprintf("#%06x", uint32(c)&0xffffff)
}

// FromColor converts any image/color.Color into a Color, discarding alpha.
func FromColor(c stdcolor.Color) Color {
	if c == nil {
		return Color(0) // Black; literal avoids an initialization cycle
	}
	if x, ok := c.(Color); ok {
		return x
	}
	r, g, b, _ := c.RGBA()
	return RGB(uint8(r>>8), uint8(g>>8), uint8(b>>8))
}

// Named looks up a color by its SVG 1.1 name (e.g. "orange", "purple").
func Named(name string) (Color, bool) {
	c, ok := colornames.Map[name]
	if !ok {
		return Black, false
	}
	return FromColor(c), true
}

// The palette used by the clock face and the calendar reveal.
var (
	Black  = FromColor(colornames.Black)
	White  = FromColor(colornames.White)
	Red    = FromColor(colornames.Red)
	Green  = FromColor(colornames.Lime)
	Blue   = FromColor(colornames.Blue)
	Yellow = FromColor(colornames.Yellow)
	Orange = FromColor(colornames.Orange)
	Purple = FromColor(colornames.Purple)
	Cyan   = FromColor(colornames.Cyan)
	Pink   = FromColor(colornames.Deeppink)
)

// Wheel maps a position on a 256-entry color wheel to a color.  The colors transition red, green,
// blue, and back to red.
func Wheel(pos uint8) Color {
	switch {
	case pos < 85:
		return RGB(pos*3, 255-pos*3, 0)
	case pos < 170:
		pos -= 85
		return RGB(255-pos*3, 0, pos*3)
	default:
		pos -= 170
		return RGB(0, pos*3, 255-pos*3)
	}
}

// Scale multiplies each channel by f, clamped to [0, 1].
func Scale(c Color, f float64) Color {
	if f <= 0 {
		return Black
	}
	if f >= 1 {
		return c
	}
	r, g, b := c.RGB()
	return RGB(uint8(float64(r)*f), uint8(float64(g)*f), uint8(float64(b)*f))
}

// Blend interpolates linearly in RGB space from a (t=0) to b (t=1).
func Blend(a, b Color, t float64) Color {
	if t <= 0 {
		return a
	}
	if t >= 1 {
		return b
	}
	ca, _ := colorful.MakeColor(a)
	cb, _ := colorful.MakeColor(b)
	r, g, bl := ca.BlendRgb(cb, t).Clamped().RGB255()
	return RGB(r, g, bl)
}
