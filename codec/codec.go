// Package codec is a row at a time PNG codec. A Decoder parses the header,
// exposes the stream format and a set of optional conversions, and then
// produces one row per call. An Encoder does the reverse.
//
// Which optional conversions exist is fixed when the module is built, see
// DefaultFeatures. Asking for a conversion that was compiled out fails with a
// *types.CapabilityError.
//
// Every fatal condition is reported to the function registered with
// WithErrorHandler before the failing call returns, so that a caller can keep
// a single pending error per stream.
package codec

import (
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"

	"github.com/kovidgoyal/pngrows/types"
)

var _ = fmt.Print

const pngHeader = "\x89PNG\r\n\x1a\n"

// Chunks larger than this are rejected, as required by the PNG spec.
const maxChunkLength = 0x7fffffff

// Images wider or taller than this are rejected by default, matching the
// user limits of libpng.
const defaultMaxDimension = 1000000

// Ancillary chunks whose payload we keep in memory are skipped beyond this size.
const maxMetadataLength = 16 * 1024 * 1024

type config struct {
	features         types.Feature
	compressionLevel int
	maxWidth         uint32
	maxHeight        uint32
	onError          func(error)
}

func defaultConfig() config {
	return config{features: DefaultFeatures(), compressionLevel: zlib.DefaultCompression,
		maxWidth: defaultMaxDimension, maxHeight: defaultMaxDimension}
}

// Option configures a Decoder or Encoder.
type Option func(*config)

// WithFeatures restricts the optional conversions to those in f. Features
// that were compiled out cannot be added back.
func WithFeatures(f types.Feature) Option {
	return func(c *config) {
		c.features = f & DefaultFeatures()
	}
}

// WithCompressionLevel sets the zlib level used by an Encoder, one of the
// zlib.*Compression constants.
func WithCompressionLevel(level int) Option {
	return func(c *config) {
		c.compressionLevel = level
	}
}

// WithMaxDimensions sets the largest width and height a Decoder accepts.
// Larger images fail in ReadInfo, before any pixel memory is allocated.
func WithMaxDimensions(width, height uint32) Option {
	return func(c *config) {
		c.maxWidth, c.maxHeight = width, height
	}
}

// WithErrorHandler registers a function that receives every fatal error
// before the call that encountered it returns.
func WithErrorHandler(f func(error)) Option {
	return func(c *config) {
		c.onError = f
	}
}

// failure is used to unwind out of deeply nested parsing code, it is
// always recovered at the exported method boundary.
type failure struct{ err error }

func formatError(format string, args ...any) error {
	return &types.CodecError{Message: "png: invalid format: " + fmt.Sprintf(format, args...)}
}

func unsupportedError(format string, args ...any) error {
	return &types.CodecError{Message: "png: unsupported feature: " + fmt.Sprintf(format, args...)}
}

func usageError(format string, args ...any) error {
	return &types.CodecError{Message: "png: " + fmt.Sprintf(format, args...)}
}

func ioError(op string, err error) error {
	var ioe *types.IOError
	if errors.As(err, &ioe) {
		return ioe
	}
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		err = io.ErrUnexpectedEOF
	}
	return &types.IOError{Op: op, Err: err}
}

// classify turns an error that came back through a third party reader or
// writer into one of our error types.
func classify(err error) error {
	var ioe *types.IOError
	if errors.As(err, &ioe) {
		return ioe
	}
	var ce *types.CodecError
	if errors.As(err, &ce) {
		return ce
	}
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return formatError("not enough pixel data")
	}
	return &types.CodecError{Message: "png: " + err.Error()}
}

func (c *config) fail(err error) {
	panic(failure{err})
}

// recover is deferred by every exported method that can fail. It converts an
// unwinding failure into the method's error result and notifies the handler.
func (c *config) recover(errp *error) {
	if r := recover(); r != nil {
		f, ok := r.(failure)
		if !ok {
			panic(r)
		}
		*errp = f.err
	}
	if *errp != nil && c.onError != nil {
		var ce *types.CapabilityError
		if !errors.As(*errp, &ce) {
			c.onError(*errp)
		}
	}
}

func (c *config) require(f types.Feature, what string) error {
	if !c.features.Has(f) {
		return &types.CapabilityError{Feature: f, What: what}
	}
	return nil
}
