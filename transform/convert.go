package transform

import (
	"github.com/kovidgoyal/pngrows/types"
)

// Converter normalizes any stream to 8 bit RGB or RGBA, requesting only the
// conversions the stream needs.
type Converter struct {
	target Target
	filler uint32
}

// ConverterOption configures a Converter.
type ConverterOption func(*Converter)

// Filler sets the alpha value used for pixels that have no alpha of their
// own when converting to RGBA. Defaults to 0xff.
func Filler(v uint32) ConverterOption {
	return func(c *Converter) {
		c.filler = v
	}
}

func NewConverter(t Target, opts ...ConverterOption) *Converter {
	ans := &Converter{target: t, filler: 0xff}
	for _, o := range opts {
		o(ans)
	}
	return ans
}

func (c *Converter) Target() Target { return c.target }
func (c *Converter) Filler() uint32 { return c.filler }

// Apply requests the conversions for the stream's current format. Every check
// is made against the format as reported before any conversion, the
// conversions compose without needing to re-query.
func (c *Converter) Apply(s Stream) error {
	wanted := c.target.String()
	if s.BitDepth() == 16 {
		if err := s.SetStrip16(); err != nil {
			return explain(err, "expected 8-bit data but found 16-bit")
		}
	}
	ct := s.ColorType()
	switch c.target {
	case RGB:
		if ct.HasAlpha() {
			if err := s.SetStripAlpha(); err != nil {
				return explain(err, "alpha channel unexpected")
			}
		}
	case RGBA:
		if !ct.HasAlpha() {
			if err := s.SetAddAlpha(c.filler, types.FillerAfter); err != nil {
				return explain(err, "expected alpha channel but none found")
			}
		}
	}
	if ct == types.Palette {
		if err := s.SetPaletteToRGB(); err != nil {
			return explain(err, "expected "+wanted+" data but found indexed colors")
		}
	} else if ct.IsGray() {
		if ct == types.Gray && s.BitDepth() < 8 {
			if err := s.SetExpandGray(); err != nil {
				return explain(err, "expected "+wanted+" data but found grayscale (< 8-bit) colors")
			}
		}
		if err := s.SetGrayToRGB(); err != nil {
			return explain(err, "expected "+wanted+" data but found grayscale colors")
		}
	}
	return nil
}
