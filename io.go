package pngrows

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kovidgoyal/pngrows/codec"
	"github.com/kovidgoyal/pngrows/meta"
	"github.com/kovidgoyal/pngrows/pixel"
	"github.com/kovidgoyal/pngrows/session"
	"github.com/kovidgoyal/pngrows/transform"
	"github.com/kovidgoyal/pngrows/types"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

type fileSystem interface {
	Create(string) (io.WriteCloser, error)
	Open(string) (io.ReadCloser, error)
}

type localFS struct{}

func (localFS) Create(name string) (io.WriteCloser, error) { return os.Create(name) }
func (localFS) Open(name string) (io.ReadCloser, error)    { return os.Open(name) }

var fs fileSystem = localFS{}

type decodeConfig struct {
	transform    transform.Transform
	codecOptions []codec.Option
}

// DecodeOption sets an optional parameter for the Decode and Open functions.
type DecodeOption func(*decodeConfig)

// WithTransform sets the transform applied to the stream before decoding.
// By default a Converter is used for RGB and RGBA pixels and a Validator for
// the other pixel types.
func WithTransform(t transform.Transform) DecodeOption {
	return func(c *decodeConfig) {
		c.transform = t
	}
}

// WithDecodeFeatures restricts the optional conversions the decoder may use.
func WithDecodeFeatures(f types.Feature) DecodeOption {
	return func(c *decodeConfig) {
		c.codecOptions = append(c.codecOptions, codec.WithFeatures(f))
	}
}

type encodeConfig struct {
	compressionLevel int
	interlace        *types.Interlace
	metadata         *meta.Data
	codecOptions     []codec.Option
}

// EncodeOption sets an optional parameter for the Encode and Save functions.
type EncodeOption func(*encodeConfig)

// WithCompressionLevel sets the zlib compression level of the PNG output,
// from 0 (none) to 9 (best). Default is -1, zlib's default level.
func WithCompressionLevel(level int) EncodeOption {
	return func(c *encodeConfig) {
		c.compressionLevel = level
	}
}

// WithInterlace overrides the interlace method kept from the last read.
func WithInterlace(i types.Interlace) EncodeOption {
	return func(c *encodeConfig) {
		c.interlace = &i
	}
}

// WithMetadata replaces the ancillary data written with the image.
func WithMetadata(md *meta.Data) EncodeOption {
	return func(c *encodeConfig) {
		c.metadata = md
	}
}

// WithEncodeFeatures restricts the optional features the encoder may use.
func WithEncodeFeatures(f types.Feature) EncodeOption {
	return func(c *encodeConfig) {
		c.codecOptions = append(c.codecOptions, codec.WithFeatures(f))
	}
}

type Format int

const (
	UNKNOWN Format = iota
	PNG
	BMP
	TIFF
)

func (f Format) String() string {
	switch f {
	case PNG:
		return "PNG"
	case BMP:
		return "BMP"
	case TIFF:
		return "TIFF"
	}
	return "UNKNOWN"
}

var formatExts = map[string]Format{
	"png":  PNG,
	"bmp":  BMP,
	"tif":  TIFF,
	"tiff": TIFF,
}

// ErrUnsupportedFormat means the given image format is not supported.
var ErrUnsupportedFormat = errors.New("pngrows: unsupported image format")

// FormatFromExtension parses image format from filename extension:
// "png", "bmp" and "tif" (or "tiff") are supported.
func FormatFromExtension(ext string) (Format, error) {
	if f, ok := formatExts[strings.ToLower(strings.TrimPrefix(ext, "."))]; ok {
		return f, nil
	}
	return UNKNOWN, ErrUnsupportedFormat
}

// FormatFromFilename parses image format from filename.
func FormatFromFilename(filename string) (Format, error) {
	return FormatFromExtension(filepath.Ext(filename))
}

// Decode reads a PNG image with pixels of type P from r.
func Decode[P pixel.Pixel[P]](r io.Reader, opts ...DecodeOption) (*Image[P], error) {
	ans := &Image[P]{}
	if err := ans.Read(r, opts...); err != nil {
		return nil, err
	}
	return ans, nil
}

// Open loads a PNG image from file.
//
// Examples:
//
//	// Load an image as 8-bit RGBA, synthesizing opaque alpha if needed.
//	img, err := pngrows.Open[pixel.RGBA8]("test.png")
func Open[P pixel.Pixel[P]](filename string, opts ...DecodeOption) (*Image[P], error) {
	file, err := fs.Open(filename)
	if err != nil {
		return nil, &types.IOError{Op: "open", Err: err}
	}
	defer file.Close()
	return Decode[P](file, opts...)
}

// Encode writes img to w in the specified format. Only PNG output goes
// through the row codec, BMP and TIFF are written from the image.Image view.
func Encode[P pixel.Pixel[P]](w io.Writer, img *Image[P], format Format, opts ...EncodeOption) error {
	switch format {
	case PNG:
		return img.Write(w, opts...)
	case BMP:
		return bmp.Encode(w, img)
	case TIFF:
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
	}
	return ErrUnsupportedFormat
}

// Save saves the image to file with the specified filename. The format is
// determined from the filename extension.
//
// Examples:
//
//	// Save the image as PNG with the fastest compression.
//	err := img.Save("out.png", pngrows.WithCompressionLevel(1))
func (img *Image[P]) Save(filename string, opts ...EncodeOption) (err error) {
	f, err := FormatFromFilename(filename)
	if err != nil {
		return err
	}
	file, err := fs.Create(filename)
	if err != nil {
		return &types.IOError{Op: "create", Err: err}
	}
	err = Encode(file, img, f, opts...)
	errc := file.Close()
	if err == nil && errc != nil {
		err = &types.IOError{Op: "close", Err: errc}
	}
	return err
}

func sessionOptions(copts []codec.Option) []session.Option {
	if len(copts) == 0 {
		return nil
	}
	return []session.Option{session.WithCodecOptions(copts...)}
}
