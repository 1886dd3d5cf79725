package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/kovidgoyal/pngrows/buffer"
	"github.com/kovidgoyal/pngrows/codec"
	"github.com/kovidgoyal/pngrows/meta"
	"github.com/kovidgoyal/pngrows/pixel"
	"github.com/kovidgoyal/pngrows/transform"
	"github.com/kovidgoyal/pngrows/types"
)

var _ = fmt.Print

func randomBuffer[P pixel.Pixel[P]](r *rand.Rand, w, h int) *buffer.Buffer[P] {
	b := buffer.New[P](w, h)
	raw := make([]byte, pixel.BytesPerPixel[P]()*w)
	for _, row := range b.Rows() {
		for i := range raw {
			raw[i] = uint8(r.UintN(256))
		}
		pixel.LoadRow(raw, row)
	}
	return b
}

func encode[P pixel.Pixel[P]](t *testing.T, h types.Header, b *buffer.Buffer[P], opts ...Option) []byte {
	t.Helper()
	var out bytes.Buffer
	require.NoError(t, Write(&out, h, nil, b, opts...))
	return out.Bytes()
}

// countingDecoder counts how often the codec is released.
type countingDecoder struct {
	*codec.Decoder
	closes int
}

func (c *countingDecoder) Close() error {
	c.closes++
	return c.Decoder.Close()
}

func countingFactory(created *[]*countingDecoder, opts ...codec.Option) Option {
	return WithDecoderFactory(func(r io.Reader, onError func(error)) ReadCodec {
		c := &countingDecoder{Decoder: codec.NewDecoder(r, append(opts, codec.WithErrorHandler(onError))...)}
		*created = append(*created, c)
		return c
	})
}

func TestRGBARoundtrip(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for _, interlace := range []types.Interlace{types.InterlaceNone, types.InterlaceAdam7} {
		t.Run(interlace.String(), func(t *testing.T) {
			src := randomBuffer[pixel.RGBA8](r, 17, 11)
			data := encode(t, types.Header{Interlace: interlace}, src)
			dst := buffer.New[pixel.RGBA8](0, 0)
			h, _, err := Read(bytes.NewReader(data), transform.RequireRGBA, dst)
			require.NoError(t, err)
			require.Equal(t, interlace, h.Interlace)
			if diff := cmp.Diff(src.Rows(), dst.Rows()); diff != "" {
				t.Fatalf("pixels differ (-want +got):\n%s", diff)
			}
		})
	}
}

func TestOtherPixelTypes(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 4))
	g := randomBuffer[pixel.Gray8](r, 5, 9)
	dg := buffer.New[pixel.Gray8](1, 1)
	_, _, err := Read(bytes.NewReader(encode(t, types.Header{}, g)), nil, dg)
	require.NoError(t, err)
	require.True(t, buffer.Equal(g, dg))

	ga := randomBuffer[pixel.GrayAlpha8](r, 6, 2)
	data := encode(t, types.Header{Interlace: types.InterlaceAdam7}, ga)
	dga := buffer.New[pixel.GrayAlpha8](0, 0)
	_, _, err = Read(bytes.NewReader(data), nil, dga)
	require.NoError(t, err)
	require.True(t, buffer.Equal(ga, dga))

	// gray to RGB through the default converter
	rgb := buffer.New[pixel.RGB8](0, 0)
	_, _, err = Read(bytes.NewReader(data), nil, rgb)
	require.NoError(t, err)
	for y, row := range ga.Rows() {
		for x, p := range row {
			require.Equal(t, pixel.RGB8{p.Y, p.Y, p.Y}, rgb.Rows()[y][x])
		}
	}

	// a gray validator refuses RGB data
	_, _, err = Read(bytes.NewReader(encode(t, types.Header{}, rgb)), nil, dg)
	require.ErrorIs(t, err, types.ErrFormatMismatch)
}

func TestFiller(t *testing.T) {
	src := randomBuffer[pixel.RGB8](rand.New(rand.NewPCG(5, 6)), 8, 8)
	data := encode(t, types.Header{}, src)
	dst := buffer.New[pixel.RGBA8](0, 0)
	_, _, err := Read(bytes.NewReader(data), transform.NewConverter(transform.RGBA, transform.Filler(0x80)), dst)
	require.NoError(t, err)
	for y, row := range dst.Rows() {
		for x, p := range row {
			s := src.Rows()[y][x]
			require.Equal(t, pixel.RGBA8{s.R, s.G, s.B, 0x80}, p)
		}
	}
}

func TestTruncatedStream(t *testing.T) {
	src := randomBuffer[pixel.RGB8](rand.New(rand.NewPCG(7, 8)), 64, 64)
	data := encode(t, types.Header{}, src)
	var created []*countingDecoder
	r := NewReader[pixel.RGB8](bytes.NewReader(data[:len(data)/2]), countingFactory(&created))
	require.NoError(t, r.ParseHeader())
	require.NoError(t, r.Apply(nil))
	require.NoError(t, r.RefreshInfo())
	buf := buffer.New[pixel.RGB8](0, 0)
	require.NoError(t, r.SizeBuffer(buf))
	err := r.TransferRows(buf)
	require.ErrorIs(t, err, types.ErrIOFailure)
	require.Equal(t, Failed, r.State())
	// no step runs after a failure, and the next error is about ordering
	require.ErrorIs(t, r.ParseTrailer(), types.ErrOutOfOrder)
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	require.Equal(t, Closed, r.State())
	require.Len(t, created, 1)
	require.Equal(t, 1, created[0].closes)

	// the convenience wrapper releases the codec on error too
	created = nil
	_, _, err = Read(bytes.NewReader(data[:len(data)/2]), nil, buf, countingFactory(&created))
	require.ErrorIs(t, err, types.ErrIOFailure)
	require.Equal(t, 1, created[0].closes)
}

type failingReader struct {
	data []byte
	err  error
}

func (f *failingReader) Read(p []byte) (int, error) {
	if len(f.data) == 0 {
		return 0, f.err
	}
	n := copy(p, f.data)
	f.data = f.data[n:]
	return n, nil
}

func TestStreamErrorIsReported(t *testing.T) {
	src := randomBuffer[pixel.RGBA8](rand.New(rand.NewPCG(9, 10)), 32, 32)
	data := encode(t, types.Header{}, src)
	boom := errors.New("device unplugged")
	buf := buffer.New[pixel.RGBA8](0, 0)
	_, _, err := Read(&failingReader{data: data[:200], err: boom}, nil, buf)
	require.ErrorIs(t, err, types.ErrIOFailure)
	require.ErrorIs(t, err, boom)
}

type stallingReader struct {
	data []byte
}

func (s *stallingReader) Read(p []byte) (int, error) {
	n := copy(p, s.data)
	s.data = s.data[n:]
	return n, nil
}

func TestStalledStreamFails(t *testing.T) {
	src := randomBuffer[pixel.RGBA8](rand.New(rand.NewPCG(11, 12)), 32, 32)
	data := encode(t, types.Header{}, src)
	buf := buffer.New[pixel.RGBA8](0, 0)
	for _, n := range []int{0, 200} {
		_, _, err := Read(&stallingReader{data: data[:n]}, nil, buf)
		require.ErrorIs(t, err, types.ErrIOFailure)
		require.ErrorIs(t, err, io.ErrNoProgress)
	}
}

// pngWithHeader returns a stream with the given dimensions and no pixel data.
func pngWithHeader(width, height uint32) []byte {
	var out bytes.Buffer
	out.WriteString("\x89PNG\r\n\x1a\n")
	put := func(name string, data []byte) {
		out.Write(binary.BigEndian.AppendUint32(nil, uint32(len(data))))
		out.WriteString(name)
		out.Write(data)
		out.Write(binary.BigEndian.AppendUint32(nil, crc32.ChecksumIEEE(append([]byte(name), data...))))
	}
	ihdr := binary.BigEndian.AppendUint32(nil, width)
	ihdr = binary.BigEndian.AppendUint32(ihdr, height)
	put("IHDR", append(ihdr, 8, byte(types.Gray), 0, 0, 0))
	put("IDAT", nil)
	put("IEND", nil)
	return out.Bytes()
}

func TestOversizedHeaderIsRejected(t *testing.T) {
	buf := buffer.New[pixel.Gray8](0, 0)
	for _, dims := range [][2]uint32{{0x10000000, 0x10000000}, {5, 0x24000005}} {
		var created []*countingDecoder
		_, _, err := Read(bytes.NewReader(pngWithHeader(dims[0], dims[1])), nil, buf, countingFactory(&created))
		require.ErrorIs(t, err, types.ErrCodecFailure)
		require.Contains(t, err.Error(), "image too large")
		require.Equal(t, 1, created[0].closes)
		require.Equal(t, 0, buf.Width())
		require.Equal(t, 0, buf.Height())
	}

	r := NewReader[pixel.Gray8](bytes.NewReader(pngWithHeader(64, 64)), WithCodecOptions(codec.WithMaxDimensions(32, 32)))
	defer r.Close()
	require.ErrorIs(t, r.ParseHeader(), types.ErrCodecFailure)
	require.Equal(t, Failed, r.State())
}

func TestInterlacingUnavailable(t *testing.T) {
	src := randomBuffer[pixel.RGB8](rand.New(rand.NewPCG(11, 12)), 9, 9)
	data := encode(t, types.Header{Interlace: types.InterlaceAdam7}, src)
	var created []*countingDecoder
	noInterlace := countingFactory(&created, codec.WithFeatures(types.AllFeatures&^types.FeatureInterlacing))
	sentinel := pixel.RGB8{1, 2, 3}
	buf := buffer.New[pixel.RGB8](0, 0)
	r := NewReader[pixel.RGB8](bytes.NewReader(data), noInterlace)
	defer r.Close()
	require.NoError(t, r.ParseHeader())
	require.NoError(t, r.Apply(nil))
	require.NoError(t, r.RefreshInfo())
	require.NoError(t, r.SizeBuffer(buf))
	buf.Fill(sentinel)
	err := r.TransferRows(buf)
	require.ErrorIs(t, err, types.ErrCapabilityUnavailable)
	var ce *types.CapabilityError
	require.True(t, errors.As(err, &ce))
	require.Equal(t, types.FeatureInterlacing, ce.Feature)
	require.Contains(t, err.Error(), "interlacing")
	for _, row := range buf.Rows() {
		for _, p := range row {
			require.Equal(t, sentinel, p)
		}
	}

	// writing interlaced output fails the same way, before any row is written
	var out bytes.Buffer
	w := NewWriter[pixel.RGB8](&out, WithCodecOptions(codec.WithFeatures(types.AllFeatures&^types.FeatureInterlacing)))
	defer w.Close()
	require.NoError(t, w.WriteHeader(types.Header{Width: 9, Height: 9, Interlace: types.InterlaceAdam7}, nil))
	require.ErrorIs(t, w.TransferRows(src), types.ErrCapabilityUnavailable)
}

func TestCapabilityErrorFromTransform(t *testing.T) {
	src := randomBuffer[pixel.RGBA8](rand.New(rand.NewPCG(13, 14)), 3, 3)
	data := encode(t, types.Header{}, src)
	buf := buffer.New[pixel.RGB8](0, 0)
	_, _, err := Read(bytes.NewReader(data), nil, buf,
		WithCodecOptions(codec.WithFeatures(types.AllFeatures&^types.FeatureStripAlpha)))
	require.ErrorIs(t, err, types.ErrCapabilityUnavailable)
	require.Contains(t, err.Error(), "alpha channel unexpected")
	require.Contains(t, err.Error(), "pngrows_no_strip_alpha")
}

func TestProtocolOrder(t *testing.T) {
	src := randomBuffer[pixel.RGB8](rand.New(rand.NewPCG(15, 16)), 4, 4)
	data := encode(t, types.Header{}, src)
	buf := buffer.New[pixel.RGB8](0, 0)
	r := NewReader[pixel.RGB8](bytes.NewReader(data))
	defer r.Close()
	require.Equal(t, Created, r.State())
	require.ErrorIs(t, r.Apply(nil), types.ErrOutOfOrder)
	require.ErrorIs(t, r.TransferRows(buf), types.ErrOutOfOrder)
	// an out of order call does not disturb the session
	require.Equal(t, Created, r.State())
	steps := []struct {
		f     func() error
		state State
	}{
		{r.ParseHeader, HeaderParsed},
		{func() error { return r.Apply(transform.RequireRGB) }, TransformApplied},
		{r.RefreshInfo, InfoRefreshed},
		{func() error { return r.SizeBuffer(buf) }, BufferSized},
		{func() error { return r.TransferRows(buf) }, RowsTransferred},
		{r.ParseTrailer, TrailerParsed},
	}
	for _, s := range steps {
		require.NoError(t, s.f())
		require.Equal(t, s.state, r.State())
		require.ErrorIs(t, r.ParseHeader(), types.ErrOutOfOrder)
	}
	require.True(t, buffer.Equal(src, buf))
	require.NoError(t, r.Close())
	require.ErrorIs(t, r.ParseTrailer(), types.ErrOutOfOrder)
}

func TestLayoutMismatch(t *testing.T) {
	src := randomBuffer[pixel.RGB8](rand.New(rand.NewPCG(17, 18)), 4, 4)
	data := encode(t, types.Header{}, src)
	buf := buffer.New[pixel.RGBA8](0, 0)
	_, _, err := Read(bytes.NewReader(data), transform.Identity, buf)
	require.ErrorIs(t, err, types.ErrFormatMismatch)

	r := NewReader[pixel.RGB8](bytes.NewReader(data))
	defer r.Close()
	require.NoError(t, r.ParseHeader())
	require.NoError(t, r.Apply(nil))
	require.NoError(t, r.RefreshInfo())
	b := buffer.New[pixel.RGB8](0, 0)
	require.NoError(t, r.SizeBuffer(b))
	b.Resize(3, 4)
	require.ErrorIs(t, r.TransferRows(b), types.ErrFormatMismatch)
}

func TestPendingErrorIsCleared(t *testing.T) {
	var b bridge
	first, second := errors.New("first"), errors.New("second")
	err := b.call(func() error {
		b.record(first)
		b.record(second)
		return errors.New("ignored")
	})
	require.Equal(t, &types.CodecError{Message: "first"}, err)
	require.NoError(t, b.call(func() error { return nil }))
	require.Nil(t, b.pending)
	// typed errors are kept as they are
	ioe := &types.IOError{Op: "read", Err: io.ErrUnexpectedEOF}
	require.Same(t, ioe, b.call(func() error { return ioe }))
}

func TestWriterMetadataAndHeader(t *testing.T) {
	src := randomBuffer[pixel.GrayAlpha8](rand.New(rand.NewPCG(19, 20)), 5, 3)
	md := &meta.Data{}
	md.AddText("Software", "pngrows")
	var out bytes.Buffer
	// depth and color type always come from the pixel type
	require.NoError(t, Write(&out, types.Header{BitDepth: 16, ColorType: types.RGB}, md, src))
	buf := buffer.New[pixel.GrayAlpha8](0, 0)
	h, gotmd, err := Read(bytes.NewReader(out.Bytes()), nil, buf)
	require.NoError(t, err)
	require.Equal(t, types.GrayAlpha, h.ColorType)
	require.Equal(t, 8, h.BitDepth)
	v, ok := gotmd.Lookup("Software")
	require.True(t, ok)
	require.Equal(t, "pngrows", v)

	w := NewWriter[pixel.RGB8](&bytes.Buffer{})
	require.ErrorIs(t, w.TransferRows(buffer.New[pixel.RGB8](1, 1)), types.ErrOutOfOrder)
	require.NoError(t, w.WriteHeader(types.Header{Width: 2, Height: 2}, nil))
	require.Equal(t, HeaderWritten, w.State())
	require.ErrorIs(t, w.TransferRows(buffer.New[pixel.RGB8](1, 1)), types.ErrFormatMismatch)
	require.Equal(t, Failed, w.State())
	require.NoError(t, w.Close())
}
