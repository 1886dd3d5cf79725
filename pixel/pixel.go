// Package pixel defines the 8-bit pixel value types that can be stored in a
// buffer and transferred to and from a stream.
package pixel

import (
	"fmt"
	"image/color"

	"github.com/kovidgoyal/pngrows/types"
)

var _ = fmt.Print

// Pixel is satisfied by the pixel value types of this package. P is the
// implementing type itself, which lets Load construct values generically.
type Pixel[P any] interface {
	comparable
	color.Color
	// ColorType is the stream color category this pixel corresponds to.
	ColorType() types.ColorType
	// BitDepth is the bit width of each sample.
	BitDepth() int
	Channels() int
	Model() color.Model
	// Load reads one pixel from the first Channels() bytes of src.
	Load(src []byte) P
	// Store writes the pixel into the first Channels() bytes of dst.
	Store(dst []byte)
}

// BytesPerPixel returns the size of one packed pixel of type P.
func BytesPerPixel[P Pixel[P]]() int {
	var zero P
	return zero.Channels() * zero.BitDepth() / 8
}

// LoadRow fills dst from the packed samples in src.
func LoadRow[P Pixel[P]](src []byte, dst []P) {
	var zero P
	bpp := zero.Channels()
	if len(dst) == 0 {
		return
	}
	_ = src[bpp*len(dst)-1]
	for i := range dst {
		dst[i] = zero.Load(src[i*bpp : i*bpp+bpp : i*bpp+bpp])
	}
}

// StoreRow packs the pixels of src into dst.
func StoreRow[P Pixel[P]](src []P, dst []byte) {
	var zero P
	bpp := zero.Channels()
	if len(src) == 0 {
		return
	}
	_ = dst[bpp*len(src)-1]
	for i, p := range src {
		p.Store(dst[i*bpp : i*bpp+bpp : i*bpp+bpp])
	}
}

// FromColor converts an arbitrary color to P.
func FromColor[P Pixel[P]](c color.Color) P {
	var zero P
	return zero.Model().Convert(c).(P)
}

func expand8(v uint8) uint32 {
	x := uint32(v)
	return x | x<<8
}

func unpremultiply(c color.Color) (r, g, b, a uint32) {
	r, g, b, a = c.RGBA()
	switch a {
	case 0xffff:
	case 0:
		r, g, b = 0, 0, 0
	default:
		// Since Color.RGBA returns an alpha-premultiplied color, we should have r <= a && g <= a && b <= a.
		r = (r * 0xffff) / a
		g = (g * 0xffff) / a
		b = (b * 0xffff) / a
	}
	return
}

// luma follows the coefficients used by color.GrayModel.
func luma(r, g, b uint32) uint8 {
	y := (19595*r + 38470*g + 7471*b + 1<<15) >> 24
	return uint8(y)
}
