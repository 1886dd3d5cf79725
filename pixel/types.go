package pixel

import (
	"fmt"
	"image/color"

	"github.com/kovidgoyal/pngrows/types"
)

// Gray8 is an 8-bit grayscale sample.
type Gray8 struct {
	Y uint8
}

func (c Gray8) String() string { return fmt.Sprintf("Gray8{%02X}", c.Y) }

func (c Gray8) RGBA() (r, g, b, a uint32) {
	y := expand8(c.Y)
	return y, y, y, 0xffff
}

func (Gray8) ColorType() types.ColorType { return types.Gray }
func (Gray8) BitDepth() int              { return 8 }
func (Gray8) Channels() int              { return 1 }
func (Gray8) Model() color.Model         { return Gray8Model }
func (Gray8) Load(src []byte) Gray8      { return Gray8{src[0]} }
func (c Gray8) Store(dst []byte)         { dst[0] = c.Y }

// GrayAlpha8 is an 8-bit grayscale sample with non-premultiplied alpha.
type GrayAlpha8 struct {
	Y, A uint8
}

func (c GrayAlpha8) String() string { return fmt.Sprintf("GrayAlpha8{%02X %02X}", c.Y, c.A) }

func (c GrayAlpha8) RGBA() (r, g, b, a uint32) {
	a = expand8(c.A)
	y := expand8(c.Y) * a / 0xffff
	return y, y, y, a
}

func (GrayAlpha8) ColorType() types.ColorType { return types.GrayAlpha }
func (GrayAlpha8) BitDepth() int              { return 8 }
func (GrayAlpha8) Channels() int              { return 2 }
func (GrayAlpha8) Model() color.Model         { return GrayAlpha8Model }
func (GrayAlpha8) Load(src []byte) GrayAlpha8 { return GrayAlpha8{src[0], src[1]} }
func (c GrayAlpha8) Store(dst []byte)         { dst[0], dst[1] = c.Y, c.A }

// RGB8 is an opaque 8-bit per channel color.
type RGB8 struct {
	R, G, B uint8
}

func (c RGB8) AsSharp() string { return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B) }
func (c RGB8) String() string  { return fmt.Sprintf("RGB8{%02X %02X %02X}", c.R, c.G, c.B) }

func (c RGB8) RGBA() (r, g, b, a uint32) {
	return expand8(c.R), expand8(c.G), expand8(c.B), 0xffff
}

func (RGB8) ColorType() types.ColorType { return types.RGB }
func (RGB8) BitDepth() int              { return 8 }
func (RGB8) Channels() int              { return 3 }
func (RGB8) Model() color.Model         { return RGB8Model }
func (RGB8) Load(src []byte) RGB8       { return RGB8{src[0], src[1], src[2]} }

func (c RGB8) Store(dst []byte) {
	dst[0] = c.R
	dst[1] = c.G
	dst[2] = c.B
}

// RGBA8 is an 8-bit per channel color with non-premultiplied alpha.
type RGBA8 struct {
	R, G, B, A uint8
}

func (c RGBA8) String() string {
	return fmt.Sprintf("RGBA8{%02X %02X %02X %02X}", c.R, c.G, c.B, c.A)
}

func (c RGBA8) RGBA() (r, g, b, a uint32) {
	return color.NRGBA{c.R, c.G, c.B, c.A}.RGBA()
}

func (RGBA8) ColorType() types.ColorType { return types.RGBA }
func (RGBA8) BitDepth() int              { return 8 }
func (RGBA8) Channels() int              { return 4 }
func (RGBA8) Model() color.Model         { return RGBA8Model }
func (RGBA8) Load(src []byte) RGBA8      { return RGBA8{src[0], src[1], src[2], src[3]} }

func (c RGBA8) Store(dst []byte) {
	dst[0] = c.R
	dst[1] = c.G
	dst[2] = c.B
	dst[3] = c.A
}

func gray8Model(c color.Color) color.Color {
	switch n := c.(type) {
	case Gray8:
		return c
	case color.NRGBA:
		return Gray8{luma(expand8(n.R), expand8(n.G), expand8(n.B))}
	}
	r, g, b, _ := unpremultiply(c)
	return Gray8{luma(r, g, b)}
}

func grayAlpha8Model(c color.Color) color.Color {
	switch n := c.(type) {
	case GrayAlpha8:
		return c
	case color.NRGBA:
		return GrayAlpha8{luma(expand8(n.R), expand8(n.G), expand8(n.B)), n.A}
	}
	r, g, b, a := unpremultiply(c)
	return GrayAlpha8{luma(r, g, b), uint8(a >> 8)}
}

func rgb8Model(c color.Color) color.Color {
	switch n := c.(type) {
	case RGB8:
		return c
	case color.NRGBA:
		return RGB8{n.R, n.G, n.B}
	}
	r, g, b, _ := unpremultiply(c)
	return RGB8{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8)}
}

func rgba8Model(c color.Color) color.Color {
	switch n := c.(type) {
	case RGBA8:
		return c
	case color.NRGBA:
		return RGBA8{n.R, n.G, n.B, n.A}
	}
	r, g, b, a := unpremultiply(c)
	return RGBA8{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8), uint8(a >> 8)}
}

var (
	Gray8Model      color.Model = color.ModelFunc(gray8Model)
	GrayAlpha8Model color.Model = color.ModelFunc(grayAlpha8Model)
	RGB8Model       color.Model = color.ModelFunc(rgb8Model)
	RGBA8Model      color.Model = color.ModelFunc(rgba8Model)
)
