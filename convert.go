package pngrows

import (
	"image"
	"image/color"

	"github.com/kovidgoyal/go-parallel"
	"github.com/kovidgoyal/pngrows/pixel"
	"golang.org/x/image/draw"
)

// ToNRGBA copies img into a new *image.NRGBA. Rows are converted in parallel.
func (img *Image[P]) ToNRGBA() (*image.NRGBA, error) {
	width, height := img.Width(), img.Height()
	ans := image.NewNRGBA(image.Rect(0, 0, width, height))
	rows := img.buf().Rows()
	f := func(start, limit int) {
		for y := start; y < limit; y++ {
			dst := ans.Pix[ans.Stride*y : ans.Stride*y+4*width]
			for x, p := range rows[y] {
				c := asNRGBA(p)
				s := dst[4*x : 4*x+4 : 4*x+4]
				s[0], s[1], s[2], s[3] = c.R, c.G, c.B, c.A
			}
		}
	}
	if err := parallel.Run_in_parallel_over_range(0, f, 0, height); err != nil {
		return nil, err
	}
	return ans, nil
}

func asNRGBA(c color.Color) color.NRGBA {
	switch p := c.(type) {
	case pixel.RGBA8:
		return color.NRGBA{p.R, p.G, p.B, p.A}
	case pixel.RGB8:
		return color.NRGBA{p.R, p.G, p.B, 0xff}
	case pixel.GrayAlpha8:
		return color.NRGBA{p.Y, p.Y, p.Y, p.A}
	case pixel.Gray8:
		return color.NRGBA{p.Y, p.Y, p.Y, 0xff}
	}
	return color.NRGBAModel.Convert(c).(color.NRGBA)
}

// FromImage converts any image into an Image with pixels of type P. The
// result has its origin at (0, 0) and no header or metadata.
func FromImage[P pixel.Pixel[P]](src image.Image) (*Image[P], error) {
	b := src.Bounds()
	nrgba, ok := src.(*image.NRGBA)
	if !ok || b.Min != (image.Point{}) {
		nrgba = image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(nrgba, nrgba.Rect, src, b.Min, draw.Src)
	}
	ans := New[P](b.Dx(), b.Dy())
	rows := ans.buf().Rows()
	f := func(start, limit int) {
		for y := start; y < limit; y++ {
			row := rows[y]
			for x := range row {
				row[x] = pixel.FromColor[P](nrgba.NRGBAAt(x, y))
			}
		}
	}
	if err := parallel.Run_in_parallel_over_range(0, f, 0, b.Dy()); err != nil {
		return nil, err
	}
	return ans, nil
}
