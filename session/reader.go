package session

import (
	"fmt"
	"io"

	"github.com/kovidgoyal/pngrows/buffer"
	"github.com/kovidgoyal/pngrows/internal/logging"
	"github.com/kovidgoyal/pngrows/meta"
	"github.com/kovidgoyal/pngrows/pixel"
	"github.com/kovidgoyal/pngrows/transform"
	"github.com/kovidgoyal/pngrows/types"
)

// Reader decodes one image into a buffer of pixels of type P. It is not safe
// for concurrent use.
type Reader[P pixel.Pixel[P]] struct {
	codec    ReadCodec
	b        *bridge
	state    State
	released bool
}

// NewReader binds a Reader to r. Nothing is read until ParseHeader.
func NewReader[P pixel.Pixel[P]](r io.Reader, opts ...Option) *Reader[P] {
	o := resolve(opts)
	b := &bridge{}
	return &Reader[P]{codec: o.newDecoder(&source{r: r, b: b}, b.record), b: b}
}

func (r *Reader[P]) State() State { return r.state }

func (r *Reader[P]) step(op string, from, to State, f func() error) error {
	if r.state != from {
		return outOfOrder(op, r.state)
	}
	if err := r.b.call(f); err != nil {
		r.state = Failed
		logging.Logger().WithError(err).WithField("op", op).Debug("session: read failed")
		return err
	}
	r.state = to
	return nil
}

// ParseHeader reads everything up to the start of the pixel data.
func (r *Reader[P]) ParseHeader() error {
	return r.step("ParseHeader", Created, HeaderParsed, r.codec.ReadInfo)
}

// Apply runs t against the stream. A nil t leaves the stream as it is.
func (r *Reader[P]) Apply(t transform.Transform) error {
	if t == nil {
		t = transform.Identity
	}
	return r.step("Apply", HeaderParsed, TransformApplied, func() error { return t.Apply(r.codec) })
}

// RefreshInfo makes the conversions chosen by Apply take effect, after it
// BitDepth and ColorType describe the rows TransferRows delivers.
func (r *Reader[P]) RefreshInfo() error {
	return r.step("RefreshInfo", TransformApplied, InfoRefreshed, r.codec.UpdateInfo)
}

func (r *Reader[P]) Header() types.Header       { return r.codec.Header() }
func (r *Reader[P]) BitDepth() int              { return r.codec.BitDepth() }
func (r *Reader[P]) ColorType() types.ColorType { return r.codec.ColorType() }

// Metadata is the ancillary data seen so far, complete after ParseTrailer.
func (r *Reader[P]) Metadata() *meta.Data { return r.codec.Metadata() }

// checkLayout verifies that the rows the codec will produce are exactly the
// in-memory layout of P.
func (r *Reader[P]) checkLayout() error {
	var zero P
	ct, depth := r.codec.ColorType(), r.codec.BitDepth()
	if ct != zero.ColorType() || depth != zero.BitDepth() {
		return &types.FormatMismatchError{Msg: fmt.Sprintf(
			"rows are %s/%d but the buffer holds %s/%d pixels, apply a transform that produces them",
			ct, depth, zero.ColorType(), zero.BitDepth())}
	}
	if n, want := r.codec.RowBytes(), int(r.codec.Header().Width)*pixel.BytesPerPixel[P](); n != want {
		return &types.FormatMismatchError{Msg: fmt.Sprintf("rows are %d bytes, expected %d", n, want)}
	}
	return nil
}

// SizeBuffer resizes buf to the dimensions of the image.
func (r *Reader[P]) SizeBuffer(buf *buffer.Buffer[P]) error {
	return r.step("SizeBuffer", InfoRefreshed, BufferSized, func() error {
		if err := r.checkLayout(); err != nil {
			return err
		}
		h := r.codec.Header()
		buf.Resize(int(h.Width), int(h.Height))
		return nil
	})
}

// TransferRows decodes every row into buf, which must have been sized by
// SizeBuffer. Interlaced images are decoded pass by pass, each pass updating
// the pixels it owns in place. buf is not retained.
func (r *Reader[P]) TransferRows(buf *buffer.Buffer[P]) error {
	return r.step("TransferRows", BufferSized, RowsTransferred, func() error {
		h := r.codec.Header()
		if buf.Width() != int(h.Width) || buf.Height() != int(h.Height) {
			return &types.FormatMismatchError{Msg: fmt.Sprintf(
				"buffer is %dx%d but the image is %dx%d", buf.Width(), buf.Height(), h.Width, h.Height)}
		}
		passes := 1
		if h.Interlace == types.InterlaceAdam7 {
			if !r.codec.Supports(types.FeatureInterlacing) {
				return &types.CapabilityError{Feature: types.FeatureInterlacing, What: "image is interlaced"}
			}
			var err error
			if passes, err = r.codec.SetInterlaceHandling(); err != nil {
				return err
			}
		}
		row := make([]byte, r.codec.RowBytes())
		for pass := range passes {
			for _, dst := range buf.Rows() {
				if pass == 0 {
					clear(row)
				} else {
					pixel.StoreRow(dst, row)
				}
				if err := r.codec.ReadRow(row); err != nil {
					return err
				}
				pixel.LoadRow(row, dst)
			}
		}
		logging.Logger().WithField("header", h.String()).WithField("passes", passes).Debug("session: rows decoded")
		return nil
	})
}

// ParseTrailer reads the chunks after the pixel data, adding them to
// Metadata.
func (r *Reader[P]) ParseTrailer() error {
	return r.step("ParseTrailer", RowsTransferred, TrailerParsed, r.codec.ReadEnd)
}

// Close releases the codec. It may be called in any state, only the first
// call releases anything.
func (r *Reader[P]) Close() error {
	r.state = Closed
	if r.released {
		return nil
	}
	r.released = true
	return normalize(r.codec.Close())
}

// Read runs the whole read protocol, decoding the image in src into buf.
// t is the transform to apply, nil selects transform.Default for P.
func Read[P pixel.Pixel[P]](src io.Reader, t transform.Transform, buf *buffer.Buffer[P], opts ...Option) (h types.Header, md *meta.Data, err error) {
	if t == nil {
		t = transform.Default[P]()
	}
	r := NewReader[P](src, opts...)
	defer func() {
		if cerr := r.Close(); err == nil {
			err = cerr
		}
	}()
	for _, s := range []func() error{
		r.ParseHeader,
		func() error { return r.Apply(t) },
		r.RefreshInfo,
		func() error { return r.SizeBuffer(buf) },
		func() error { return r.TransferRows(buf) },
		r.ParseTrailer,
	} {
		if err = s(); err != nil {
			return
		}
	}
	return r.Header(), r.Metadata(), nil
}
