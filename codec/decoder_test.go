package codec

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/kovidgoyal/pngrows/transform"
	"github.com/kovidgoyal/pngrows/types"
)

var _ = fmt.Print

func testImages() map[string]image.Image {
	const w, h = 13, 7
	r := image.Rect(0, 0, w, h)
	ans := map[string]image.Image{}

	rgb := image.NewNRGBA(r)
	rgba := image.NewNRGBA(r)
	gray := image.NewGray(r)
	gray16 := image.NewGray16(r)
	rgb16 := image.NewNRGBA64(r)
	rgba16 := image.NewNRGBA64(r)
	for y := range h {
		for x := range w {
			v := uint8(x*19 + y*7)
			rgb.SetNRGBA(x, y, color.NRGBA{v, 255 - v, uint8(x * y), 0xff})
			rgba.SetNRGBA(x, y, color.NRGBA{v, uint8(y * 30), 3, uint8(x * 20)})
			gray.SetGray(x, y, color.Gray{v})
			gray16.SetGray16(x, y, color.Gray16{uint16(v)<<8 | uint16(y)})
			rgb16.SetNRGBA64(x, y, color.NRGBA64{uint16(v) << 8, 0x1234, uint16(x) << 12, 0xffff})
			rgba16.SetNRGBA64(x, y, color.NRGBA64{uint16(v) << 8, 0x1234, uint16(x) << 12, uint16(y) << 13})
		}
	}
	ans["rgb8"], ans["rgba8"], ans["gray8"], ans["gray16"], ans["rgb16"], ans["rgba16"] = rgb, rgba, gray, gray16, rgb16, rgba16

	for _, n := range []int{2, 4, 16, 200} {
		pal := make(color.Palette, n)
		for i := range pal {
			pal[i] = color.NRGBA{uint8(i * 7), uint8(255 - i), uint8(i * 3), 0xff}
		}
		if n == 16 {
			pal[5] = color.NRGBA{0, 0, 0, 0}
		}
		p := image.NewPaletted(r, pal)
		for y := range h {
			for x := range w {
				p.SetColorIndex(x, y, uint8((x+y*w)%n))
			}
		}
		ans[fmt.Sprintf("palette%d", n)] = p
	}
	return ans
}

func TestDecodeToRGBA(t *testing.T) {
	for name, img := range testImages() {
		t.Run(name, func(t *testing.T) {
			data := refEncode(t, img)
			d, rows := decodeRows(t, data, transform.NewConverter(transform.RGBA).Apply)
			require.Equal(t, types.RGBA, d.ColorType())
			require.Equal(t, 8, d.BitDepth())
			if diff := cmp.Diff(nrgbaRows(img), rows); diff != "" {
				t.Fatalf("decoded rows differ (-want +got):\n%s", diff)
			}
		})
		t.Run(name+"-rgb", func(t *testing.T) {
			d, rows := decodeRows(t, refEncode(t, img), transform.NewConverter(transform.RGB).Apply)
			require.Equal(t, types.RGB, d.ColorType())
			if diff := cmp.Diff(dropAlpha(nrgbaRows(img)), rows); diff != "" {
				t.Fatalf("decoded rows differ (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeUnconverted(t *testing.T) {
	img := testImages()["palette4"].(*image.Paletted)
	d, rows := decodeRows(t, refEncode(t, img), nil)
	h := d.Header()
	require.Equal(t, types.Palette, h.ColorType)
	require.Equal(t, 2, h.BitDepth)
	require.Len(t, d.Palette(), 4)
	require.Equal(t, 4, d.RowBytes())
	for y, row := range rows {
		for x := range int(h.Width) {
			require.Equal(t, img.ColorIndexAt(x, y), getBits(row, x, 2), "pixel (%d, %d)", x, y)
		}
	}
}

func TestSubByteGrayExpansion(t *testing.T) {
	for _, depth := range []int{1, 2, 4} {
		t.Run(fmt.Sprintf("depth%d", depth), func(t *testing.T) {
			h := types.Header{Width: 11, Height: 3, ColorType: types.Gray, BitDepth: depth}
			rows := randomRows(rand.New(rand.NewPCG(1, uint64(depth))), h)
			data := encodeRows(t, h, nil, rows)
			d, got := decodeRows(t, data, func(d *Decoder) error { return d.SetExpandGray() })
			require.Equal(t, 8, d.BitDepth())
			require.Equal(t, types.Gray, d.ColorType())
			maxv := 1<<depth - 1
			for y, row := range rows {
				for x := range int(h.Width) {
					require.Equal(t, uint8(int(getBits(row, x, depth))*255/maxv), got[y][x])
				}
			}
			// and the reference decoder agrees
			ref, err := decodeReference(data)
			require.NoError(t, err)
			for y := range rows {
				for x := range int(h.Width) {
					require.Equal(t, color.GrayModel.Convert(ref.At(x, y)).(color.Gray).Y, got[y][x])
				}
			}
		})
	}
}

func TestFillerPosition(t *testing.T) {
	h := types.Header{Width: 2, Height: 1, ColorType: types.RGB, BitDepth: 8}
	data := encodeRows(t, h, nil, [][]byte{{1, 2, 3, 4, 5, 6}})
	_, rows := decodeRows(t, data, func(d *Decoder) error { return d.SetAddAlpha(0x80, types.FillerAfter) })
	require.Equal(t, []byte{1, 2, 3, 0x80, 4, 5, 6, 0x80}, rows[0])
	_, rows = decodeRows(t, data, func(d *Decoder) error { return d.SetAddAlpha(0x80, types.FillerBefore) })
	require.Equal(t, []byte{0x80, 1, 2, 3, 0x80, 4, 5, 6}, rows[0])
}

func TestDecodeErrors(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 64, 64))
	r := rand.New(rand.NewPCG(3, 4))
	for i := range img.Pix {
		img.Pix[i] = uint8(r.UintN(256))
	}
	data := refEncode(t, img)

	t.Run("truncated", func(t *testing.T) {
		var reported []error
		d := NewDecoder(bytes.NewReader(data[:len(data)/2]), WithErrorHandler(func(err error) { reported = append(reported, err) }))
		defer d.Close()
		require.NoError(t, d.ReadInfo())
		require.NoError(t, d.UpdateInfo())
		row := make([]byte, d.RowBytes())
		var err error
		for range 64 {
			if err = d.ReadRow(row); err != nil {
				break
			}
		}
		require.ErrorIs(t, err, types.ErrIOFailure)
		require.ErrorIs(t, err, io.ErrUnexpectedEOF)
		require.Equal(t, []error{err}, reported)
		require.NoError(t, d.Close())
		require.NoError(t, d.Close())
	})

	t.Run("bad checksum", func(t *testing.T) {
		bad := bytes.Clone(data)
		bad[len(pngHeader)+8+3] ^= 0xff
		d := NewDecoder(bytes.NewReader(bad))
		err := d.ReadInfo()
		require.ErrorIs(t, err, types.ErrCodecFailure)
		require.Contains(t, err.Error(), "invalid checksum")
	})

	t.Run("not a png", func(t *testing.T) {
		err := NewDecoder(bytes.NewReader([]byte("GIF89a and some more bytes"))).ReadInfo()
		require.ErrorIs(t, err, types.ErrCodecFailure)
		require.Contains(t, err.Error(), "not a PNG file")
		err = NewDecoder(bytes.NewReader([]byte("\x89PNG"))).ReadInfo()
		require.ErrorIs(t, err, types.ErrIOFailure)
	})

	t.Run("out of order", func(t *testing.T) {
		calls := 0
		d := NewDecoder(bytes.NewReader(data), WithErrorHandler(func(error) { calls++ }))
		err := d.ReadRow(make([]byte, 1024))
		require.ErrorIs(t, err, types.ErrCodecFailure)
		require.Equal(t, 1, calls)
		require.NoError(t, d.ReadInfo())
		require.NoError(t, d.UpdateInfo())
		require.Error(t, d.UpdateInfo())
		require.Error(t, d.SetStrip16())
		require.Error(t, d.ReadEnd())
		require.Equal(t, 4, calls)
	})

	t.Run("too large", func(t *testing.T) {
		for _, h := range []types.Header{
			{Width: 0x10000000, Height: 0x10000000, ColorType: types.Gray, BitDepth: 8},
			{Width: 5, Height: 0x24000005, ColorType: types.RGBA, BitDepth: 8},
			{Width: 1000001, Height: 1, ColorType: types.Gray, BitDepth: 1},
		} {
			var reported []error
			d := NewDecoder(bytes.NewReader(assemblePNG(t, h, nil)), WithErrorHandler(func(err error) { reported = append(reported, err) }))
			err := d.ReadInfo()
			require.ErrorIs(t, err, types.ErrCodecFailure)
			require.Contains(t, err.Error(), "image too large")
			require.Equal(t, []error{err}, reported)
			require.NoError(t, d.Close())
		}
		h := types.Header{Width: 40, Height: 2, ColorType: types.Gray, BitDepth: 8}
		small := assemblePNG(t, h, [][]byte{make([]byte, 40), make([]byte, 40)})
		err := NewDecoder(bytes.NewReader(small), WithMaxDimensions(32, 32)).ReadInfo()
		require.ErrorIs(t, err, types.ErrCodecFailure)
		_, rows := decodeRows(t, small, nil, WithMaxDimensions(40, 2))
		require.Len(t, rows, 2)
	})

	t.Run("interlaced without handling", func(t *testing.T) {
		h := types.Header{Width: 9, Height: 9, ColorType: types.Gray, BitDepth: 8, Interlace: types.InterlaceAdam7}
		enc := encodeRows(t, h, nil, randomRows(r, h))
		d := NewDecoder(bytes.NewReader(enc))
		require.NoError(t, d.ReadInfo())
		require.ErrorIs(t, d.ReadRow(make([]byte, 9)), types.ErrCodecFailure)
	})
}

func TestCapabilities(t *testing.T) {
	h := types.Header{Width: 4, Height: 2, ColorType: types.Gray, BitDepth: 16, Interlace: types.InterlaceAdam7}
	data := encodeRows(t, h, nil, randomRows(rand.New(rand.NewPCG(5, 6)), h))
	calls := 0
	d := NewDecoder(bytes.NewReader(data), WithFeatures(types.AllFeatures&^(types.FeatureStrip16|types.FeatureInterlacing)),
		WithErrorHandler(func(error) { calls++ }))
	require.False(t, d.Supports(types.FeatureStrip16))
	require.True(t, d.Supports(types.FeatureGrayToRGB))
	require.NoError(t, d.ReadInfo())
	err := d.SetStrip16()
	require.ErrorIs(t, err, types.ErrCapabilityUnavailable)
	var ce *types.CapabilityError
	require.True(t, errors.As(err, &ce))
	require.Equal(t, types.FeatureStrip16, ce.Feature)
	require.Contains(t, err.Error(), "pngrows_no_strip16")
	require.NoError(t, d.SetGrayToRGB())
	require.NoError(t, d.UpdateInfo())
	_, err = d.SetInterlaceHandling()
	require.ErrorIs(t, err, types.ErrCapabilityUnavailable)
	// capability errors are returned, never reported
	require.Equal(t, 0, calls)
}

func TestAnimatedInputUsesDefaultImage(t *testing.T) {
	frames := []image.Image{testImages()["rgba8"], testImages()["rgb8"]}
	data := apngEncode(t, frames)
	_, rows := decodeRows(t, data, transform.NewConverter(transform.RGBA).Apply)
	if diff := cmp.Diff(nrgbaRows(frames[0]), rows); diff != "" {
		t.Fatalf("decoded rows differ (-want +got):\n%s", diff)
	}
}

func TestGrayTransparencyDoesNotChangeRowSize(t *testing.T) {
	h := types.Header{Width: 3, Height: 2, ColorType: types.Gray, BitDepth: 8}
	rows := [][]byte{{1, 2, 3}, {4, 5, 6}}
	data := assemblePNG(t, h, rows, rawChunk{"tRNS", []byte{0, 2}})
	_, got := decodeRows(t, data, func(d *Decoder) error {
		if err := d.SetAddAlpha(0x80, types.FillerAfter); err != nil {
			return err
		}
		require.Equal(t, 6, d.RowBytes())
		return nil
	})
	// the gray tRNS key is ignored, every sample gets the filler
	want := [][]byte{{1, 0x80, 2, 0x80, 3, 0x80}, {4, 0x80, 5, 0x80, 6, 0x80}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected rows (-want +got):\n%s", diff)
	}
}
