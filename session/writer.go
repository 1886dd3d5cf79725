package session

import (
	"fmt"
	"io"

	"github.com/kovidgoyal/pngrows/buffer"
	"github.com/kovidgoyal/pngrows/internal/logging"
	"github.com/kovidgoyal/pngrows/meta"
	"github.com/kovidgoyal/pngrows/pixel"
	"github.com/kovidgoyal/pngrows/types"
)

// Writer encodes a buffer of pixels of type P. The bit depth and color type
// written are always those of P.
type Writer[P pixel.Pixel[P]] struct {
	codec    WriteCodec
	b        *bridge
	state    State
	released bool
}

func NewWriter[P pixel.Pixel[P]](w io.Writer, opts ...Option) *Writer[P] {
	o := resolve(opts)
	b := &bridge{}
	return &Writer[P]{codec: o.newEncoder(&sink{w: w, b: b}, b.record), b: b}
}

func (w *Writer[P]) State() State { return w.state }

func (w *Writer[P]) step(op string, from, to State, f func() error) error {
	if w.state != from {
		return outOfOrder(op, w.state)
	}
	if err := w.b.call(f); err != nil {
		w.state = Failed
		logging.Logger().WithError(err).WithField("op", op).Debug("session: write failed")
		return err
	}
	w.state = to
	return nil
}

// Header is the header as written, valid after WriteHeader.
func (w *Writer[P]) Header() types.Header { return w.codec.Header() }

// WriteHeader writes everything up to the start of the pixel data. The
// dimensions, interlace, compression and filter methods come from h, its bit
// depth and color type are replaced by those of P. md may be nil.
func (w *Writer[P]) WriteHeader(h types.Header, md *meta.Data) error {
	return w.step("WriteHeader", Created, HeaderWritten, func() error {
		var zero P
		h.BitDepth, h.ColorType = zero.BitDepth(), zero.ColorType()
		if err := w.codec.SetHeader(h); err != nil {
			return err
		}
		w.codec.SetMetadata(md)
		return w.codec.WriteInfo()
	})
}

// TransferRows encodes every row of buf, whose dimensions must match the
// header. buf is not retained.
func (w *Writer[P]) TransferRows(buf *buffer.Buffer[P]) error {
	return w.step("TransferRows", HeaderWritten, RowsTransferred, func() error {
		h := w.codec.Header()
		if buf.Width() != int(h.Width) || buf.Height() != int(h.Height) {
			return &types.FormatMismatchError{Msg: fmt.Sprintf(
				"buffer is %dx%d but the header says %dx%d", buf.Width(), buf.Height(), h.Width, h.Height)}
		}
		passes := 1
		if h.Interlace == types.InterlaceAdam7 {
			if !w.codec.Supports(types.FeatureInterlacing) {
				return &types.CapabilityError{Feature: types.FeatureInterlacing, What: "interlaced output requested"}
			}
			var err error
			if passes, err = w.codec.SetInterlaceHandling(); err != nil {
				return err
			}
		}
		row := make([]byte, w.codec.RowBytes())
		for range passes {
			for _, src := range buf.Rows() {
				pixel.StoreRow(src, row)
				if err := w.codec.WriteRow(row); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// WriteTrailer finishes the pixel data and writes the trailing chunks.
func (w *Writer[P]) WriteTrailer() error {
	return w.step("WriteTrailer", RowsTransferred, TrailerWritten, w.codec.WriteEnd)
}

// Close releases the codec. It may be called in any state, only the first
// call releases anything. Closing before WriteTrailer leaves the output
// truncated.
func (w *Writer[P]) Close() error {
	w.state = Closed
	if w.released {
		return nil
	}
	w.released = true
	return normalize(w.codec.Close())
}

// Write runs the whole write protocol, encoding buf to dst. Only the
// interlace, compression and filter methods of h are used, the rest comes
// from buf and P.
func Write[P pixel.Pixel[P]](dst io.Writer, h types.Header, md *meta.Data, buf *buffer.Buffer[P], opts ...Option) (err error) {
	h.Width, h.Height = uint32(buf.Width()), uint32(buf.Height())
	w := NewWriter[P](dst, opts...)
	defer func() {
		if cerr := w.Close(); err == nil {
			err = cerr
		}
	}()
	if err = w.WriteHeader(h, md); err != nil {
		return
	}
	if err = w.TransferRows(buf); err != nil {
		return
	}
	return w.WriteTrailer()
}
