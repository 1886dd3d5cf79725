package codec

import (
	"github.com/kovidgoyal/pngrows/types"
)

// conversions is the set of row transformations requested through the
// toggles of a Decoder.
type conversions struct {
	strip16, stripAlpha, expandPalette, expandGray, grayToRGB, addAlpha bool
	filler                                                              uint32
	fillerPosition                                                      types.FillerPosition
}

// rowFormat describes the layout of a row.
type rowFormat struct {
	colorType types.ColorType
	depth     int
	channels  int
	// alphaFromTRNS is set when palette expansion takes alpha from tRNS
	// instead of using the filler.
	alphaFromTRNS bool
}

func (f rowFormat) bitsPerPixel() int        { return f.channels * f.depth }
func (f rowFormat) rowBytes(width int) int   { return types.RowBytes(width, f.channels, f.depth) }
func (f rowFormat) bytesPerPixelFilter() int { return max(1, f.bitsPerPixel()/8) }

func formatOf(ct types.ColorType, depth int) rowFormat {
	return rowFormat{colorType: ct, depth: depth, channels: ct.Channels()}
}

// output computes the format rows will have once c is applied to rows of
// format in. hasTRNS says whether the stream carries transparency for a palette.
func (c conversions) output(in rowFormat, hasTRNS bool) rowFormat {
	ct, depth := in.colorType, in.depth
	alphaFromTRNS := false
	if ct == types.Palette && c.expandPalette {
		ct, depth = types.RGB, 8
		if hasTRNS && c.addAlpha {
			ct, alphaFromTRNS = types.RGBA, true
		}
	}
	if ct == types.Gray && depth < 8 && c.expandGray {
		depth = 8
	}
	if depth == 16 && c.strip16 {
		depth = 8
	}
	if ct.HasAlpha() && c.stripAlpha {
		ct &^= types.MaskAlpha
	}
	if ct.IsGray() && c.grayToRGB {
		ct |= types.MaskColor
	}
	if c.addAlpha && !ct.HasAlpha() && ct != types.Palette {
		ct |= types.MaskAlpha
	}
	if depth < 8 && ct != types.Gray && ct != types.Palette {
		// Only gray and palette samples can be packed below a byte.
		depth = 8
	}
	return rowFormat{colorType: ct, depth: depth, channels: ct.Channels(), alphaFromTRNS: alphaFromTRNS}
}

// unpack reads n pixels of format f from the packed row src into samples.
func unpack(samples []uint16, src []byte, f rowFormat, n int) {
	count := n * f.channels
	switch f.depth {
	case 8:
		for i := range count {
			samples[i] = uint16(src[i])
		}
	case 16:
		for i := range count {
			samples[i] = uint16(src[2*i])<<8 | uint16(src[2*i+1])
		}
	default:
		for i := range count {
			samples[i] = uint16(getBits(src, i, f.depth))
		}
	}
}

// pack is the inverse of unpack.
func pack(dst []byte, samples []uint16, f rowFormat, n int) {
	count := n * f.channels
	switch f.depth {
	case 8:
		for i := range count {
			dst[i] = uint8(samples[i])
		}
	case 16:
		for i := range count {
			dst[2*i] = uint8(samples[i] >> 8)
			dst[2*i+1] = uint8(samples[i])
		}
	default:
		for i := range count {
			setBits(dst, i, f.depth, uint8(samples[i]))
		}
	}
}

// converter applies a set of conversions to unpacked rows.
type converter struct {
	c        conversions
	in, out  rowFormat
	palette  [][3]uint8
	trns     []uint8
	inbuf    []uint16
	outbuf   []uint16
	maxValue uint16
}

func newConverter(c conversions, in, out rowFormat, palette [][3]uint8, trns []uint8, width int) *converter {
	return &converter{
		c: c, in: in, out: out, palette: palette, trns: trns,
		inbuf:    make([]uint16, width*in.channels),
		outbuf:   make([]uint16, width*out.channels),
		maxValue: uint16(1<<in.depth - 1),
	}
}

// convert transforms n pixels of the packed input row src into the packed
// output row dst. It returns false if a palette index is out of range.
func (cv *converter) convert(dst, src []byte, n int) bool {
	unpack(cv.inbuf, src, cv.in, n)
	in, out := cv.inbuf, cv.outbuf
	var px [5]uint16
	for i := range n {
		s := in[i*cv.in.channels : (i+1)*cv.in.channels]
		ct, depth := cv.in.colorType, cv.in.depth
		nc := copy(px[:], s)
		if ct == types.Palette && cv.c.expandPalette {
			idx := int(px[0])
			if idx >= len(cv.palette) {
				return false
			}
			p := cv.palette[idx]
			px[0], px[1], px[2] = uint16(p[0]), uint16(p[1]), uint16(p[2])
			ct, depth, nc = types.RGB, 8, 3
			if cv.out.alphaFromTRNS {
				px[3] = 0xff
				if idx < len(cv.trns) {
					px[3] = uint16(cv.trns[idx])
				}
				ct, nc = types.RGBA, 4
			}
		}
		if depth < 8 && ct != types.Palette && cv.out.depth >= 8 {
			// scale sub-byte gray to the full 8 bit range, which is the
			// same as replicating the bits
			px[0] = px[0] * 255 / cv.maxValue
			depth = 8
		}
		if depth == 16 && cv.out.depth == 8 {
			for j := range nc {
				px[j] >>= 8
			}
			depth = 8
		}
		if ct.HasAlpha() && !cv.out.colorType.HasAlpha() {
			nc--
			ct &^= types.MaskAlpha
		}
		if ct.IsGray() && cv.out.colorType&types.MaskColor != 0 {
			if ct.HasAlpha() {
				px[3] = px[1]
			}
			px[1], px[2] = px[0], px[0]
			nc += 2
			ct |= types.MaskColor
		}
		if !ct.HasAlpha() && cv.out.colorType.HasAlpha() {
			filler := uint16(cv.c.filler)
			if depth == 8 {
				filler &= 0xff
			}
			if cv.c.fillerPosition == types.FillerBefore {
				copy(px[1:], px[:nc])
				px[0] = filler
			} else {
				px[nc] = filler
			}
			nc++
		}
		copy(out[i*cv.out.channels:(i+1)*cv.out.channels], px[:nc])
	}
	pack(dst, out, cv.out, n)
	return true
}
