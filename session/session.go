// Package session sequences the calls into a codec needed to move pixels
// between a stream and a buffer. A Reader walks
//
//	Created → HeaderParsed → TransformApplied → InfoRefreshed → BufferSized →
//	RowsTransferred → TrailerParsed → Closed
//
// one call per arrow. Calling a step out of order fails with an error
// matching types.ErrOutOfOrder. A Writer walks the symmetric
//
//	Created → HeaderWritten → RowsTransferred → TrailerWritten → Closed
//
// Close may be called from any state and releases the codec exactly once.
package session

import (
	"fmt"
	"io"

	"github.com/kovidgoyal/pngrows/codec"
	"github.com/kovidgoyal/pngrows/meta"
	"github.com/kovidgoyal/pngrows/transform"
	"github.com/kovidgoyal/pngrows/types"
)

var _ = fmt.Print

type State int

const (
	Created State = iota
	HeaderParsed
	TransformApplied
	InfoRefreshed
	BufferSized
	RowsTransferred
	TrailerParsed
	HeaderWritten
	TrailerWritten
	Failed
	Closed
)

var stateNames = map[State]string{
	Created:          "Created",
	HeaderParsed:     "HeaderParsed",
	TransformApplied: "TransformApplied",
	InfoRefreshed:    "InfoRefreshed",
	BufferSized:      "BufferSized",
	RowsTransferred:  "RowsTransferred",
	TrailerParsed:    "TrailerParsed",
	HeaderWritten:    "HeaderWritten",
	TrailerWritten:   "TrailerWritten",
	Failed:           "Failed",
	Closed:           "Closed",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ReadCodec is what a Reader needs from a decoder. *codec.Decoder implements it.
type ReadCodec interface {
	transform.Stream
	SetInterlaceHandling() (int, error)
	ReadInfo() error
	UpdateInfo() error
	RowBytes() int
	ReadRow(dst []byte) error
	ReadEnd() error
	Metadata() *meta.Data
	Close() error
}

// WriteCodec is what a Writer needs from an encoder. *codec.Encoder implements it.
type WriteCodec interface {
	SetHeader(types.Header) error
	Header() types.Header
	Supports(types.Feature) bool
	SetMetadata(*meta.Data)
	SetInterlaceHandling() (int, error)
	WriteInfo() error
	RowBytes() int
	WriteRow(src []byte) error
	WriteEnd() error
	Close() error
}

// DecoderFactory creates the decoder used by a Reader. The decoder must pass
// every fatal error to onError before returning it.
type DecoderFactory func(r io.Reader, onError func(error)) ReadCodec

// EncoderFactory is the Writer counterpart of DecoderFactory.
type EncoderFactory func(w io.Writer, onError func(error)) WriteCodec

type options struct {
	codecOptions []codec.Option
	newDecoder   DecoderFactory
	newEncoder   EncoderFactory
}

// Option configures a Reader or Writer.
type Option func(*options)

// WithCodecOptions passes options to the built-in codec.
func WithCodecOptions(opts ...codec.Option) Option {
	return func(o *options) {
		o.codecOptions = append(o.codecOptions, opts...)
	}
}

// WithDecoderFactory replaces the built-in decoder.
func WithDecoderFactory(f DecoderFactory) Option {
	return func(o *options) {
		o.newDecoder = f
	}
}

// WithEncoderFactory replaces the built-in encoder.
func WithEncoderFactory(f EncoderFactory) Option {
	return func(o *options) {
		o.newEncoder = f
	}
}

func resolve(opts []Option) *options {
	o := &options{}
	for _, x := range opts {
		x(o)
	}
	if o.newDecoder == nil {
		copts := o.codecOptions
		o.newDecoder = func(r io.Reader, onError func(error)) ReadCodec {
			return codec.NewDecoder(r, append(copts[:len(copts):len(copts)], codec.WithErrorHandler(onError))...)
		}
	}
	if o.newEncoder == nil {
		copts := o.codecOptions
		o.newEncoder = func(w io.Writer, onError func(error)) WriteCodec {
			return codec.NewEncoder(w, append(copts[:len(copts):len(copts)], codec.WithErrorHandler(onError))...)
		}
	}
	return o
}

func outOfOrder(op string, s State) error {
	return &types.ProtocolError{Op: op, State: s.String()}
}
