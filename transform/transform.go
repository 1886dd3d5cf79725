// Package transform contains the strategies applied to a stream once its
// header is known and before any row is transferred. A Converter drives the
// stream format towards a target pixel layout using the optional conversions
// of the codec, a Validator only checks that the stream is already in that
// layout.
package transform

import (
	"errors"
	"fmt"

	"github.com/kovidgoyal/pngrows/pixel"
	"github.com/kovidgoyal/pngrows/types"
)

var _ = fmt.Print

// Stream is the part of a codec stream a Transform can query and configure.
type Stream interface {
	BitDepth() int
	ColorType() types.ColorType
	Header() types.Header
	Supports(types.Feature) bool
	SetStrip16() error
	SetStripAlpha() error
	SetAddAlpha(filler uint32, pos types.FillerPosition) error
	SetPaletteToRGB() error
	SetExpandGray() error
	SetGrayToRGB() error
}

// Transform is applied exactly once per stream, after the header has been
// parsed and before the row format is finalized.
type Transform interface {
	Apply(s Stream) error
}

// Func adapts an ordinary function to the Transform interface.
type Func func(s Stream) error

func (f Func) Apply(s Stream) error { return f(s) }

// Identity leaves the stream untouched.
var Identity Transform = Func(func(Stream) error { return nil })

// Chain applies several transforms in order, stopping at the first error.
func Chain(t ...Transform) Transform {
	return Func(func(s Stream) error {
		for _, x := range t {
			if err := x.Apply(s); err != nil {
				return err
			}
		}
		return nil
	})
}

// Target is a pixel layout a Converter can produce.
type Target int

const (
	RGB Target = iota
	RGBA
)

func (t Target) ColorType() types.ColorType {
	if t == RGBA {
		return types.RGBA
	}
	return types.RGB
}

func (t Target) BitDepth() int { return 8 }

func (t Target) String() string {
	if t == RGBA {
		return "RGBA"
	}
	return "RGB"
}

// TargetOf returns the Target matching the pixel type P.
func TargetOf[P pixel.Pixel[P]]() (Target, bool) {
	var zero P
	switch zero.ColorType() {
	case types.RGB:
		return RGB, true
	case types.RGBA:
		return RGBA, true
	}
	return 0, false
}

// Default returns the transform used when a caller does not choose one for
// pixel type P: a Converter for the RGB family and a Validator otherwise.
func Default[P pixel.Pixel[P]]() Transform {
	if t, ok := TargetOf[P](); ok {
		return NewConverter(t)
	}
	return Require[P]()
}

func explain(err error, what string) error {
	var ce *types.CapabilityError
	if errors.As(err, &ce) {
		return &types.CapabilityError{Feature: ce.Feature, What: what}
	}
	return err
}
