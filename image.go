package pngrows

import (
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/kovidgoyal/pngrows/buffer"
	"github.com/kovidgoyal/pngrows/codec"
	"github.com/kovidgoyal/pngrows/meta"
	"github.com/kovidgoyal/pngrows/pixel"
	"github.com/kovidgoyal/pngrows/session"
	"github.com/kovidgoyal/pngrows/transform"
	"github.com/kovidgoyal/pngrows/types"
)

var _ = fmt.Print

// Image is a buffer of pixels of type P together with the header and
// metadata of the stream it was last read from. It implements image.Image.
type Image[P pixel.Pixel[P]] struct {
	pixbuf   *buffer.Buffer[P]
	header   types.Header
	metadata *meta.Data
}

var _ image.Image = (*Image[pixel.RGBA8])(nil)

// New returns an image of the given size with every pixel set to the zero
// value of P.
func New[P pixel.Pixel[P]](width, height int) *Image[P] {
	return &Image[P]{pixbuf: buffer.New[P](width, height)}
}

func (img *Image[P]) buf() *buffer.Buffer[P] {
	if img.pixbuf == nil {
		img.pixbuf = buffer.New[P](0, 0)
	}
	return img.pixbuf
}

// Read replaces the contents of img with the PNG image in r. On error the
// pixels of img are unspecified, its header and metadata are unchanged.
func (img *Image[P]) Read(r io.Reader, opts ...DecodeOption) error {
	cfg := decodeConfig{}
	for _, o := range opts {
		o(&cfg)
	}
	h, md, err := session.Read(r, cfg.transform, img.buf(), sessionOptions(cfg.codecOptions)...)
	if err != nil {
		return err
	}
	img.header, img.metadata = h, md
	return nil
}

// Write encodes img as PNG. The interlace, compression and filter methods
// of the last read are kept, the dimensions come from the pixel buffer and
// the bit depth and color type from P.
func (img *Image[P]) Write(w io.Writer, opts ...EncodeOption) error {
	cfg := encodeConfig{compressionLevel: -1, metadata: img.metadata}
	for _, o := range opts {
		o(&cfg)
	}
	h := img.header
	if cfg.interlace != nil {
		h.Interlace = *cfg.interlace
	}
	copts := append([]codec.Option{codec.WithCompressionLevel(cfg.compressionLevel)}, cfg.codecOptions...)
	return session.Write(w, h, cfg.metadata, img.buf(), sessionOptions(copts)...)
}

// Pixbuf returns the pixel buffer of img, it is shared, not copied.
func (img *Image[P]) Pixbuf() *buffer.Buffer[P] { return img.buf() }

// SetPixbuf replaces the pixel buffer of img.
func (img *Image[P]) SetPixbuf(b *buffer.Buffer[P]) {
	if b == nil {
		b = buffer.New[P](0, 0)
	}
	img.pixbuf = b
}

func (img *Image[P]) Width() int  { return img.buf().Width() }
func (img *Image[P]) Height() int { return img.buf().Height() }

// Resize replaces every row of img. Pixel values are not preserved.
func (img *Image[P]) Resize(width, height int) { img.buf().Resize(width, height) }

func (img *Image[P]) Row(y int) ([]P, error) { return img.buf().Row(y) }

// Pixel returns the pixel at column x of row y.
func (img *Image[P]) Pixel(x, y int) (P, error) { return img.buf().At(x, y) }

func (img *Image[P]) SetPixel(x, y int, p P) error { return img.buf().Set(x, y, p) }

// Header is the header of the stream img was last read from, the zero
// Header for an image that was never read.
func (img *Image[P]) Header() types.Header { return img.header }

// Metadata is the ancillary data of the stream img was last read from. It is
// written back by Write unless replaced with WithMetadata.
func (img *Image[P]) Metadata() *meta.Data { return img.metadata }

func (img *Image[P]) SetMetadata(md *meta.Data) { img.metadata = md }

// DefaultTransform is the transform Read uses for P when none is given.
func (img *Image[P]) DefaultTransform() transform.Transform { return transform.Default[P]() }

func (img *Image[P]) ColorModel() color.Model {
	var zero P
	return zero.Model()
}

func (img *Image[P]) Bounds() image.Rectangle {
	return image.Rect(0, 0, img.Width(), img.Height())
}

// At returns the pixel at (x, y) as a color.Color, the zero pixel outside
// the bounds.
func (img *Image[P]) At(x, y int) color.Color {
	p, _ := img.buf().At(x, y)
	return p
}
