package types

import (
	"fmt"
)

var _ = fmt.Print

// ColorType is the color category of a stream, numbered as in the PNG IHDR chunk.
type ColorType uint8

// Bits of a ColorType.
const (
	MaskPalette ColorType = 1
	MaskColor   ColorType = 2
	MaskAlpha   ColorType = 4
)

// Color categories.
const (
	Gray      ColorType = 0
	RGB       ColorType = MaskColor
	Palette   ColorType = MaskColor | MaskPalette
	GrayAlpha ColorType = MaskAlpha
	RGBA      ColorType = MaskColor | MaskAlpha
)

var colorTypeNames = map[ColorType]string{
	Gray:      "gray",
	RGB:       "rgb",
	Palette:   "palette",
	GrayAlpha: "gray_alpha",
	RGBA:      "rgb_alpha",
}

// AllColorTypes lists every color category in IHDR order.
var AllColorTypes = []ColorType{Gray, RGB, Palette, GrayAlpha, RGBA}

// AllBitDepths lists every bit depth a stream can declare.
var AllBitDepths = []int{1, 2, 4, 8, 16}

func (c ColorType) String() string {
	if n, ok := colorTypeNames[c]; ok {
		return n
	}
	return fmt.Sprintf("ColorType(%d)", uint8(c))
}

func (c ColorType) HasAlpha() bool { return c&MaskAlpha != 0 }
func (c ColorType) IsGray() bool   { return c == Gray || c == GrayAlpha }

// Channels returns the number of samples per pixel as stored in the stream.
func (c ColorType) Channels() int {
	switch c {
	case Gray, Palette:
		return 1
	case GrayAlpha:
		return 2
	case RGB:
		return 3
	case RGBA:
		return 4
	}
	return 0
}

// ValidDepth reports whether depth is allowed for this color type.
func (c ColorType) ValidDepth(depth int) bool {
	switch c {
	case Gray:
		return depth == 1 || depth == 2 || depth == 4 || depth == 8 || depth == 16
	case Palette:
		return depth == 1 || depth == 2 || depth == 4 || depth == 8
	case RGB, GrayAlpha, RGBA:
		return depth == 8 || depth == 16
	}
	return false
}

type Interlace uint8

const (
	InterlaceNone  Interlace = 0
	InterlaceAdam7 Interlace = 1
)

func (i Interlace) String() string {
	switch i {
	case InterlaceNone:
		return "none"
	case InterlaceAdam7:
		return "adam7"
	}
	return fmt.Sprintf("Interlace(%d)", uint8(i))
}

type Compression uint8

const CompressionDefault Compression = 0

type Filter uint8

const FilterDefault Filter = 0

// FillerPosition says where a synthesized alpha sample goes relative to the color samples.
type FillerPosition int

const (
	FillerBefore FillerPosition = iota
	FillerAfter
)

func (p FillerPosition) String() string {
	if p == FillerBefore {
		return "before"
	}
	return "after"
}

// Header is the image header record as carried by IHDR.
type Header struct {
	Width       uint32      `json:"width"`
	Height      uint32      `json:"height"`
	BitDepth    int         `json:"bit_depth"`
	ColorType   ColorType   `json:"color_type"`
	Interlace   Interlace   `json:"interlace"`
	Compression Compression `json:"compression"`
	Filter      Filter      `json:"filter"`
}

func (h Header) String() string {
	return fmt.Sprintf("%dx%d %s/%d interlace=%s", h.Width, h.Height, h.ColorType, h.BitDepth, h.Interlace)
}

// Validate checks the header fields against the values the codec can carry.
func (h Header) Validate() error {
	if h.Width == 0 || h.Height == 0 {
		return &FormatMismatchError{Msg: fmt.Sprintf("non-positive dimension %dx%d", h.Width, h.Height)}
	}
	if h.Width > 0x7fffffff || h.Height > 0x7fffffff {
		return &FormatMismatchError{Msg: fmt.Sprintf("dimension overflow %dx%d", h.Width, h.Height)}
	}
	if _, ok := colorTypeNames[h.ColorType]; !ok {
		return &FormatMismatchError{Msg: fmt.Sprintf("unknown color type %d", uint8(h.ColorType))}
	}
	if !h.ColorType.ValidDepth(h.BitDepth) {
		return &FormatMismatchError{Msg: fmt.Sprintf("bit depth %d not allowed for color type %s", h.BitDepth, h.ColorType)}
	}
	if h.Interlace > InterlaceAdam7 {
		return &FormatMismatchError{Msg: fmt.Sprintf("unknown interlace method %d", h.Interlace)}
	}
	if h.Compression != CompressionDefault {
		return &FormatMismatchError{Msg: fmt.Sprintf("unknown compression method %d", h.Compression)}
	}
	if h.Filter != FilterDefault {
		return &FormatMismatchError{Msg: fmt.Sprintf("unknown filter method %d", h.Filter)}
	}
	return nil
}

// RowBytes returns the number of bytes in one packed row of width pixels.
func RowBytes(width int, channels int, depth int) int {
	return (width*channels*depth + 7) / 8
}
