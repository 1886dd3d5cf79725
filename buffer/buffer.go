// Package buffer provides a rectangular grid of pixels stored row by row.
package buffer

import (
	"fmt"

	"github.com/kovidgoyal/pngrows/types"
)

var _ = fmt.Print

// Buffer is a width x height grid of pixels. The zero value is an empty 0x0
// buffer ready for use. Every row always has exactly Width() pixels.
type Buffer[P any] struct {
	width, height int
	rows          [][]P
}

// New returns a buffer of the given size with every pixel set to the zero value.
func New[P any](width, height int) *Buffer[P] {
	ans := &Buffer[P]{}
	ans.Resize(width, height)
	return ans
}

func (b *Buffer[P]) Width() int  { return b.width }
func (b *Buffer[P]) Height() int { return b.height }

// Resize reallocates the buffer, discarding its previous contents. It panics
// if either dimension is negative.
func (b *Buffer[P]) Resize(width, height int) {
	if width < 0 || height < 0 {
		panic(fmt.Sprintf("buffer: negative size %dx%d", width, height))
	}
	pix := make([]P, width*height)
	rows := make([][]P, height)
	for y := range rows {
		rows[y] = pix[y*width : (y+1)*width : (y+1)*width]
	}
	b.width, b.height, b.rows = width, height, rows
}

// Row returns the pixels of row y. The returned slice aliases the buffer so
// modifications to it change the buffer.
func (b *Buffer[P]) Row(y int) ([]P, error) {
	if y < 0 || y >= b.height {
		return nil, &types.OutOfRangeError{What: "row", Index: y, Size: b.height}
	}
	return b.rows[y], nil
}

// SetRow copies row into row y. row must have exactly Width() pixels.
func (b *Buffer[P]) SetRow(y int, row []P) error {
	dest, err := b.Row(y)
	if err != nil {
		return err
	}
	if len(row) != b.width {
		return &types.FormatMismatchError{Msg: fmt.Sprintf("row has %d pixels but the buffer is %d pixels wide", len(row), b.width)}
	}
	copy(dest, row)
	return nil
}

func (b *Buffer[P]) At(x, y int) (ans P, err error) {
	row, err := b.Row(y)
	if err != nil {
		return
	}
	if x < 0 || x >= b.width {
		return ans, &types.OutOfRangeError{What: "column", Index: x, Size: b.width}
	}
	return row[x], nil
}

func (b *Buffer[P]) Set(x, y int, p P) error {
	row, err := b.Row(y)
	if err != nil {
		return err
	}
	if x < 0 || x >= b.width {
		return &types.OutOfRangeError{What: "column", Index: x, Size: b.width}
	}
	row[x] = p
	return nil
}

// Rows returns every row of the buffer, top to bottom. The rows alias the buffer.
func (b *Buffer[P]) Rows() [][]P { return b.rows }

// Fill sets every pixel to p.
func (b *Buffer[P]) Fill(p P) {
	for _, row := range b.rows {
		for x := range row {
			row[x] = p
		}
	}
}

// Clone returns a deep copy of the buffer.
func (b *Buffer[P]) Clone() *Buffer[P] {
	ans := New[P](b.width, b.height)
	for y, row := range b.rows {
		copy(ans.rows[y], row)
	}
	return ans
}

// Equal reports whether both buffers have the same size and pixels.
func Equal[P comparable](a, b *Buffer[P]) bool {
	if a.width != b.width || a.height != b.height {
		return false
	}
	for y, row := range a.rows {
		other := b.rows[y]
		for x, p := range row {
			if other[x] != p {
				return false
			}
		}
	}
	return true
}
