package transform

import (
	"fmt"

	"github.com/kovidgoyal/pngrows/pixel"
	"github.com/kovidgoyal/pngrows/types"
)

// Validator fails unless the stream is already exactly in the wanted color
// type and bit depth. It never changes the stream.
type Validator struct {
	colorType types.ColorType
	depth     int
}

// NewValidator returns a Validator for the given color type at 8 bits per sample.
func NewValidator(ct types.ColorType) *Validator {
	return &Validator{colorType: ct, depth: 8}
}

// Require returns the Validator matching pixel type P.
func Require[P pixel.Pixel[P]]() *Validator {
	var zero P
	return &Validator{colorType: zero.ColorType(), depth: zero.BitDepth()}
}

var (
	RequireRGB  = NewValidator(types.RGB)
	RequireRGBA = NewValidator(types.RGBA)
)

func (v *Validator) Apply(s Stream) error {
	if s.ColorType() != v.colorType || s.BitDepth() != v.depth {
		return &types.FormatMismatchError{Msg: fmt.Sprintf(
			"%s color space with %d-bit samples required, found %s with %d-bit samples",
			v.colorType, v.depth, s.ColorType(), s.BitDepth())}
	}
	return nil
}
