package codec

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"math/rand/v2"
	"testing"

	"github.com/kettek/apng"
	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/require"

	"github.com/kovidgoyal/pngrows/meta"
	"github.com/kovidgoyal/pngrows/types"
)

func refEncode(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// decodeRows runs the whole read sequence, calling configure between
// ReadInfo and UpdateInfo.
func decodeRows(t *testing.T, data []byte, configure func(d *Decoder) error, opts ...Option) (*Decoder, [][]byte) {
	t.Helper()
	d := NewDecoder(bytes.NewReader(data), opts...)
	t.Cleanup(func() { d.Close() })
	require.NoError(t, d.ReadInfo())
	if configure != nil {
		require.NoError(t, configure(d))
	}
	require.NoError(t, d.UpdateInfo())
	passes := 1
	if d.Header().Interlace == types.InterlaceAdam7 {
		var err error
		passes, err = d.SetInterlaceHandling()
		require.NoError(t, err)
	}
	rows := make([][]byte, d.Header().Height)
	for y := range rows {
		rows[y] = make([]byte, d.RowBytes())
	}
	for range passes {
		for _, row := range rows {
			require.NoError(t, d.ReadRow(row))
		}
	}
	require.NoError(t, d.ReadEnd())
	return d, rows
}

// encodeRows runs the whole write sequence.
func encodeRows(t *testing.T, h types.Header, md *meta.Data, rows [][]byte, opts ...Option) []byte {
	t.Helper()
	var buf bytes.Buffer
	e := NewEncoder(&buf, opts...)
	defer e.Close()
	require.NoError(t, e.SetHeader(h))
	e.SetMetadata(md)
	require.NoError(t, e.WriteInfo())
	passes := 1
	if h.Interlace == types.InterlaceAdam7 {
		var err error
		passes, err = e.SetInterlaceHandling()
		require.NoError(t, err)
	}
	for range passes {
		for _, row := range rows {
			require.NoError(t, e.WriteRow(row))
		}
	}
	require.NoError(t, e.WriteEnd())
	return buf.Bytes()
}

func randomRows(r *rand.Rand, h types.Header) [][]byte {
	n := types.RowBytes(int(h.Width), h.ColorType.Channels(), h.BitDepth)
	rows := make([][]byte, h.Height)
	for y := range rows {
		rows[y] = make([]byte, n)
		for i := range rows[y] {
			rows[y][i] = uint8(r.UintN(256))
		}
		// padding bits at the end of sub-byte rows are not significant
		if rem := (int(h.Width) * h.ColorType.Channels() * h.BitDepth) % 8; rem != 0 {
			rows[y][n-1] &= ^uint8(0xff >> rem)
		}
	}
	return rows
}

// nrgbaRows renders img as rows of 8-bit non-premultiplied RGBA, 16-bit
// sources keep their high bytes.
func nrgbaRows(img image.Image) [][]byte {
	b := img.Bounds()
	ans := make([][]byte, 0, b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := make([]byte, 0, 4*b.Dx())
		for x := b.Min.X; x < b.Max.X; x++ {
			var c color.NRGBA
			if n64, ok := img.(*image.NRGBA64); ok {
				p := n64.NRGBA64At(x, y)
				c = color.NRGBA{uint8(p.R >> 8), uint8(p.G >> 8), uint8(p.B >> 8), uint8(p.A >> 8)}
			} else {
				c = color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			}
			row = append(row, c.R, c.G, c.B, c.A)
		}
		ans = append(ans, row)
	}
	return ans
}

func dropAlpha(rows [][]byte) [][]byte {
	ans := make([][]byte, len(rows))
	for y, row := range rows {
		for i := 0; i < len(row); i += 4 {
			ans[y] = append(ans[y], row[i], row[i+1], row[i+2])
		}
	}
	return ans
}

func decodeReference(data []byte) (image.Image, error) {
	return png.Decode(bytes.NewReader(data))
}

func apngEncode(t *testing.T, frames []image.Image) []byte {
	t.Helper()
	a := apng.APNG{}
	for _, f := range frames {
		a.Frames = append(a.Frames, apng.Frame{Image: f, DelayNumerator: 1, DelayDenominator: 10})
	}
	var buf bytes.Buffer
	require.NoError(t, apng.Encode(&buf, a))
	return buf.Bytes()
}

type rawChunk struct {
	name string
	data []byte
}

// assemblePNG writes a stream by hand so that tests can produce headers and
// chunk sequences the Encoder refuses to write. rows are unfiltered and each
// gets filter type None. extra chunks go between IHDR and IDAT.
func assemblePNG(t *testing.T, h types.Header, rows [][]byte, extra ...rawChunk) []byte {
	t.Helper()
	var out bytes.Buffer
	out.WriteString(pngHeader)
	put := func(name string, data []byte) {
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], uint32(len(data)))
		out.Write(b[:])
		crc := crc32.NewIEEE()
		crc.Write([]byte(name))
		crc.Write(data)
		out.WriteString(name)
		out.Write(data)
		binary.BigEndian.PutUint32(b[:], crc.Sum32())
		out.Write(b[:])
	}
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], h.Width)
	binary.BigEndian.PutUint32(ihdr[4:8], h.Height)
	ihdr[8] = uint8(h.BitDepth)
	ihdr[9] = uint8(h.ColorType)
	ihdr[12] = uint8(h.Interlace)
	put("IHDR", ihdr)
	for _, c := range extra {
		put(c.name, c.data)
	}
	var idat bytes.Buffer
	zw := zlib.NewWriter(&idat)
	for _, row := range rows {
		_, err := zw.Write(append([]byte{0}, row...))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	put("IDAT", idat.Bytes())
	put("IEND", nil)
	return out.Bytes()
}
