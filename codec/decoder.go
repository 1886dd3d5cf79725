package codec

import (
	"encoding/binary"
	"fmt"
	"hash"
	"hash/crc32"
	"io"

	"github.com/klauspost/compress/zlib"

	"github.com/kovidgoyal/pngrows/internal/logging"
	"github.com/kovidgoyal/pngrows/meta"
	"github.com/kovidgoyal/pngrows/types"
)

// Decoding stage.
// The PNG specification says that the IHDR, PLTE (if present), tRNS (if
// present), IDAT and IEND chunks must appear in that order. There may be
// multiple IDAT chunks, and IDAT chunks must be sequential (i.e. they may not
// have any other chunks between them).
// https://www.w3.org/TR/PNG/#5ChunkOrdering
const (
	dsStart = iota
	dsSeenIHDR
	dsSeenPLTE
	dsSeenIDAT
	dsRowsDone
	dsSeenIEND
)

type chunkHeader struct {
	length uint32
	name   string
}

// A Decoder reads a PNG stream one row at a time. Call ReadInfo, optionally
// request conversions, call UpdateInfo, then ReadRow once per row (once per
// row per pass for interlaced images with interlace handling), then ReadEnd
// and Close.
type Decoder struct {
	cfg        config
	r          io.Reader
	crc        hash.Hash32
	tmp        [3 * 256]byte
	header     types.Header
	palette    [][3]uint8
	trns       []uint8
	md         *meta.Data
	stage      int
	idatLength uint32
	pending    *chunkHeader
	zr         io.ReadCloser

	conv              conversions
	interlaceHandling bool
	updated, started  bool
	in, out           rowFormat
	cv                *converter
	cr, pr, outRow    []byte
	pass, y           int
	closed            bool
}

// NewDecoder returns a decoder reading from r. Nothing is read until ReadInfo.
func NewDecoder(r io.Reader, opts ...Option) *Decoder {
	d := &Decoder{cfg: defaultConfig(), r: r, crc: crc32.NewIEEE(), md: &meta.Data{}}
	for _, o := range opts {
		o(&d.cfg)
	}
	return d
}

func (d *Decoder) readFull(p []byte) {
	if _, err := io.ReadFull(d.r, p); err != nil {
		d.cfg.fail(ioError("read", err))
	}
}

func (d *Decoder) readChunkHeader() chunkHeader {
	d.readFull(d.tmp[:8])
	length := binary.BigEndian.Uint32(d.tmp[:4])
	if length > maxChunkLength {
		d.cfg.fail(formatError("bad chunk length: %d", length))
	}
	d.crc.Reset()
	d.crc.Write(d.tmp[4:8])
	return chunkHeader{length, string(d.tmp[4:8])}
}

func (d *Decoder) verifyChecksum() error {
	if _, err := io.ReadFull(d.r, d.tmp[:4]); err != nil {
		return ioError("read", err)
	}
	if binary.BigEndian.Uint32(d.tmp[:4]) != d.crc.Sum32() {
		return formatError("invalid checksum")
	}
	return nil
}

func (d *Decoder) mustVerifyChecksum() {
	if err := d.verifyChecksum(); err != nil {
		d.cfg.fail(err)
	}
}

// readChunkData reads the payload of a chunk and verifies its checksum.
func (d *Decoder) readChunkData(length uint32) []byte {
	data := make([]byte, length)
	d.readFull(data)
	d.crc.Write(data)
	d.mustVerifyChecksum()
	return data
}

// skipChunk discards the rest of a chunk, verifying its checksum.
func (d *Decoder) skipChunk(length uint32) {
	for length > 0 {
		n := min(len(d.tmp), int(length))
		d.readFull(d.tmp[:n])
		d.crc.Write(d.tmp[:n])
		length -= uint32(n)
	}
	d.mustVerifyChecksum()
}

func (d *Decoder) checkHeader() {
	d.readFull(d.tmp[:len(pngHeader)])
	if string(d.tmp[:len(pngHeader)]) != pngHeader {
		d.cfg.fail(formatError("not a PNG file"))
	}
}

// ReadInfo parses everything up to the start of the pixel data.
func (d *Decoder) ReadInfo() (err error) {
	defer d.cfg.recover(&err)
	if d.closed {
		d.cfg.fail(usageError("ReadInfo called on a closed decoder"))
	}
	if d.stage != dsStart {
		d.cfg.fail(usageError("ReadInfo called twice"))
	}
	d.checkHeader()
	for {
		ch := d.readChunkHeader()
		switch ch.name {
		case "IHDR":
			if d.stage != dsStart {
				d.cfg.fail(formatError("chunk out of order"))
			}
			d.parseIHDR(ch.length)
			d.stage = dsSeenIHDR
		case "PLTE":
			if d.stage != dsSeenIHDR {
				d.cfg.fail(formatError("chunk out of order"))
			}
			d.parsePLTE(ch.length)
			d.stage = dsSeenPLTE
		case "tRNS":
			if d.stage < dsSeenIHDR {
				d.cfg.fail(formatError("chunk out of order"))
			}
			d.parseTRNS(ch.length)
		case "IDAT":
			if d.stage < dsSeenIHDR {
				d.cfg.fail(formatError("chunk out of order"))
			}
			if d.header.ColorType == types.Palette && len(d.palette) == 0 {
				d.cfg.fail(formatError("missing palette"))
			}
			d.idatLength = ch.length
			d.stage = dsSeenIDAT
			logging.Logger().WithField("header", d.header.String()).Debug("png: header parsed")
			return nil
		case "IEND":
			d.cfg.fail(formatError("not enough pixel data"))
		default:
			if d.stage == dsStart {
				d.cfg.fail(formatError("chunk out of order"))
			}
			d.parseAncillary(ch)
		}
	}
}

func (d *Decoder) parseIHDR(length uint32) {
	if length != 13 {
		d.cfg.fail(formatError("bad IHDR length"))
	}
	d.readFull(d.tmp[:13])
	d.crc.Write(d.tmp[:13])
	h := types.Header{
		Width:       binary.BigEndian.Uint32(d.tmp[0:4]),
		Height:      binary.BigEndian.Uint32(d.tmp[4:8]),
		BitDepth:    int(d.tmp[8]),
		ColorType:   types.ColorType(d.tmp[9]),
		Compression: types.Compression(d.tmp[10]),
		Filter:      types.Filter(d.tmp[11]),
		Interlace:   types.Interlace(d.tmp[12]),
	}
	if err := h.Validate(); err != nil {
		d.cfg.fail(&types.CodecError{Message: "png: invalid format: " + err.(*types.FormatMismatchError).Msg})
	}
	if h.Width > d.cfg.maxWidth || h.Height > d.cfg.maxHeight {
		d.cfg.fail(unsupportedError("image too large: %dx%d exceeds %dx%d", h.Width, h.Height, d.cfg.maxWidth, d.cfg.maxHeight))
	}
	// There can be up to 8 bytes per pixel, for 16 bits per channel RGBA.
	n := int64(h.Width) * int64(h.Height)
	if n != int64(int(n)) || int(n) != int(n)*8/8 {
		d.cfg.fail(unsupportedError("dimension overflow"))
	}
	d.header = h
	d.mustVerifyChecksum()
}

func (d *Decoder) parsePLTE(length uint32) {
	np := int(length / 3) // The number of palette entries.
	if length%3 != 0 || np <= 0 || np > 256 || np > 1<<uint(d.header.BitDepth) {
		d.cfg.fail(formatError("bad PLTE length"))
	}
	d.readFull(d.tmp[:3*np])
	d.crc.Write(d.tmp[:3*np])
	switch d.header.ColorType {
	case types.Palette:
		d.palette = make([][3]uint8, np)
		for i := range d.palette {
			d.palette[i] = [3]uint8{d.tmp[3*i], d.tmp[3*i+1], d.tmp[3*i+2]}
		}
	case types.RGB, types.RGBA:
		// As per the PNG spec, a PLTE chunk is optional (and for practical
		// purposes, ignorable) for these color types.
	default:
		d.cfg.fail(formatError("PLTE, color type mismatch"))
	}
	d.mustVerifyChecksum()
}

func (d *Decoder) parseTRNS(length uint32) {
	switch d.header.ColorType {
	case types.Gray:
		if length != 2 {
			d.cfg.fail(formatError("bad tRNS length"))
		}
	case types.RGB:
		if length != 6 {
			d.cfg.fail(formatError("bad tRNS length"))
		}
	case types.Palette:
		if length > 256 || int(length) > len(d.palette) {
			d.cfg.fail(formatError("bad tRNS length"))
		}
	default:
		d.cfg.fail(formatError("tRNS, color type mismatch"))
	}
	d.trns = make([]uint8, length)
	d.readFull(d.trns)
	d.crc.Write(d.trns)
	d.mustVerifyChecksum()
}

// Read presents one or more IDAT chunks as one continuous stream (minus the
// intermediate chunk headers and footers). If the PNG data looked like:
//
//	... len0 IDAT xxx crc0 len1 IDAT yy crc1 len2 IEND crc2
//
// then this reader presents xxxyy. Errors are returned rather than raised
// since this is called from inside the zlib reader.
func (d *Decoder) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for d.idatLength == 0 {
		if d.pending != nil {
			return 0, io.EOF
		}
		// We have exhausted an IDAT chunk. Verify the checksum of that chunk.
		if err := d.verifyChecksum(); err != nil {
			return 0, err
		}
		// Read the length and chunk type of the next chunk, and check that
		// it is an IDAT chunk.
		if _, err := io.ReadFull(d.r, d.tmp[:8]); err != nil {
			return 0, ioError("read", err)
		}
		length := binary.BigEndian.Uint32(d.tmp[:4])
		d.crc.Reset()
		d.crc.Write(d.tmp[4:8])
		if string(d.tmp[4:8]) != "IDAT" {
			d.pending = &chunkHeader{length, string(d.tmp[4:8])}
			return 0, io.EOF
		}
		d.idatLength = length
	}
	n, err := io.ReadFull(d.r, p[:min(len(p), int(d.idatLength))])
	d.crc.Write(p[:n])
	d.idatLength -= uint32(n)
	if err != nil {
		return n, ioError("read", err)
	}
	return n, nil
}

func (d *Decoder) Header() types.Header {
	h := d.header
	if d.updated {
		h.BitDepth, h.ColorType = d.out.depth, d.out.colorType
	}
	return h
}

// BitDepth returns the bit depth of the rows ReadRow produces. Before
// UpdateInfo that is the depth declared by the stream.
func (d *Decoder) BitDepth() int { return d.Header().BitDepth }

func (d *Decoder) ColorType() types.ColorType { return d.Header().ColorType }

// Metadata returns the ancillary data seen so far.
func (d *Decoder) Metadata() *meta.Data { return d.md }

// Palette returns the PLTE entries of a palette image.
func (d *Decoder) Palette() [][3]uint8 { return d.palette }

// Supports reports whether every feature in f is available.
func (d *Decoder) Supports(f types.Feature) bool { return d.cfg.features.Has(f) }

// Features returns the optional conversions available to this decoder.
func (d *Decoder) Features() types.Feature { return d.cfg.features }

func (d *Decoder) configure(f types.Feature, apply func()) (err error) {
	if err = d.cfg.require(f, ""); err != nil {
		return err
	}
	defer d.cfg.recover(&err)
	if d.stage < dsSeenIDAT || d.closed {
		d.cfg.fail(usageError("%s requested before ReadInfo", f.Name()))
	}
	if d.updated || d.started {
		d.cfg.fail(usageError("%s requested after UpdateInfo", f.Name()))
	}
	apply()
	return nil
}

// SetStrip16 reduces 16 bit samples to 8 bits by keeping the high byte.
func (d *Decoder) SetStrip16() error {
	return d.configure(types.FeatureStrip16, func() { d.conv.strip16 = true })
}

func (d *Decoder) SetStripAlpha() error {
	return d.configure(types.FeatureStripAlpha, func() { d.conv.stripAlpha = true })
}

// SetAddAlpha appends (or prepends) an alpha sample with value filler to
// pixels that have none. For palette images expanded to RGB, alpha comes
// from the tRNS chunk when there is one.
func (d *Decoder) SetAddAlpha(filler uint32, pos types.FillerPosition) error {
	return d.configure(types.FeatureAddAlpha, func() {
		d.conv.addAlpha, d.conv.filler, d.conv.fillerPosition = true, filler, pos
	})
}

func (d *Decoder) SetPaletteToRGB() error {
	return d.configure(types.FeaturePaletteToRGB, func() { d.conv.expandPalette = true })
}

// SetExpandGray scales 1, 2 and 4 bit gray samples to 8 bits.
func (d *Decoder) SetExpandGray() error {
	return d.configure(types.FeatureExpandGray, func() { d.conv.expandGray = true })
}

func (d *Decoder) SetGrayToRGB() error {
	return d.configure(types.FeatureGrayToRGB, func() { d.conv.grayToRGB = true })
}

// SetInterlaceHandling makes ReadRow combine the passes of an interlaced
// image into full rows. It returns the number of passes over the rows the
// caller must make, 7 for an interlaced image, 1 otherwise.
// Unlike the other conversions it may be requested after UpdateInfo, as long
// as no row has been read yet.
func (d *Decoder) SetInterlaceHandling() (passes int, err error) {
	if err = d.cfg.require(types.FeatureInterlacing, ""); err != nil {
		return 0, err
	}
	defer d.cfg.recover(&err)
	if d.stage < dsSeenIDAT || d.closed || d.started {
		d.cfg.fail(usageError("interlace handling requested at the wrong time"))
	}
	d.interlaceHandling = true
	if d.header.Interlace == types.InterlaceAdam7 {
		return len(adam7), nil
	}
	return 1, nil
}

func (d *Decoder) update() {
	width := int(d.header.Width)
	d.in = formatOf(d.header.ColorType, d.header.BitDepth)
	d.out = d.conv.output(d.in, d.hasPaletteAlpha())
	rowSize := 1 + d.in.rowBytes(width)
	d.cr = make([]byte, rowSize)
	d.pr = make([]byte, rowSize)
	d.outRow = make([]byte, d.out.rowBytes(width))
	d.cv = newConverter(d.conv, d.in, d.out, d.palette, d.trns, width)
	d.updated = true
	logging.Logger().WithField("in", fmt.Sprintf("%s/%d", d.in.colorType, d.in.depth)).WithField(
		"out", fmt.Sprintf("%s/%d", d.out.colorType, d.out.depth)).Debug("png: row format updated")
}

// UpdateInfo applies the requested conversions to the reported format. After
// it, BitDepth, ColorType and RowBytes describe the rows ReadRow produces.
func (d *Decoder) UpdateInfo() (err error) {
	defer d.cfg.recover(&err)
	if d.stage < dsSeenIDAT || d.closed {
		d.cfg.fail(usageError("UpdateInfo called before ReadInfo"))
	}
	if d.updated {
		d.cfg.fail(usageError("UpdateInfo called twice"))
	}
	d.update()
	return nil
}

// RowBytes is the number of bytes ReadRow writes per row.
func (d *Decoder) RowBytes() int {
	if d.updated {
		return d.out.rowBytes(int(d.header.Width))
	}
	return d.conv.output(formatOf(d.header.ColorType, d.header.BitDepth), d.hasPaletteAlpha()).rowBytes(int(d.header.Width))
}

// hasPaletteAlpha reports whether tRNS supplies alpha for palette expansion.
func (d *Decoder) hasPaletteAlpha() bool {
	return d.header.ColorType == types.Palette && len(d.trns) > 0
}

// readRawRow decompresses and unfilters the next row of n pixels.
func (d *Decoder) readRawRow(n int) []byte {
	rowSize := 1 + d.in.rowBytes(n)
	if _, err := io.ReadFull(d.zr, d.cr[:rowSize]); err != nil {
		d.cfg.fail(classify(err))
	}
	cdat, pdat := d.cr[1:rowSize], d.pr[1:rowSize]
	if !unfilter(d.cr[0], cdat, pdat, d.in.bytesPerPixelFilter()) {
		d.cfg.fail(formatError("bad filter type"))
	}
	d.pr, d.cr = d.cr, d.pr
	return cdat
}

func (d *Decoder) advance() {
	d.y++
	if d.y < int(d.header.Height) {
		return
	}
	d.y = 0
	if d.header.Interlace == types.InterlaceAdam7 {
		d.pass++
		clear(d.pr)
		if d.pass < len(adam7) {
			return
		}
	}
	d.stage = dsRowsDone
}

// ReadRow decodes the next row into dst, which must be at least RowBytes long.
// For interlaced images each call processes the next row of the current
// pass, only the pixels of dst that belong to that pass are written.
func (d *Decoder) ReadRow(dst []byte) (err error) {
	defer d.cfg.recover(&err)
	if d.stage < dsSeenIDAT || d.closed {
		d.cfg.fail(usageError("ReadRow called before ReadInfo"))
	}
	if d.stage >= dsRowsDone {
		d.cfg.fail(usageError("all rows have already been read"))
	}
	if !d.updated {
		d.update()
	}
	width := int(d.header.Width)
	if len(dst) < d.out.rowBytes(width) {
		d.cfg.fail(usageError("row buffer of %d bytes is smaller than %d", len(dst), d.out.rowBytes(width)))
	}
	interlaced := d.header.Interlace == types.InterlaceAdam7
	if interlaced && !d.interlaceHandling {
		d.cfg.fail(usageError("interlaced image read without interlace handling"))
	}
	if d.zr == nil {
		if d.zr, err = zlib.NewReader(d); err != nil {
			d.cfg.fail(classify(err))
		}
	}
	d.started = true
	if !interlaced {
		if !d.cv.convert(dst, d.readRawRow(width), width) {
			d.cfg.fail(formatError("palette index out of range"))
		}
	} else if p := adam7[d.pass]; p.contains(d.y, width) {
		n := p.width(width)
		if !d.cv.convert(d.outRow, d.readRawRow(n), n) {
			d.cfg.fail(formatError("palette index out of range"))
		}
		p.scatter(dst, d.outRow, n, d.out.bitsPerPixel())
	}
	d.advance()
	return nil
}

// ReadEnd verifies the end of the pixel data and parses the chunks that
// follow it, up to and including IEND.
func (d *Decoder) ReadEnd() (err error) {
	defer d.cfg.recover(&err)
	if d.closed || d.stage != dsRowsDone {
		d.cfg.fail(usageError("ReadEnd called before all rows were read"))
	}
	log := logging.Logger()
	if d.zr != nil {
		// Check for EOF, to verify the zlib checksum.
		n, err := io.Copy(io.Discard, d.zr)
		if err != nil {
			d.cfg.fail(classify(err))
		}
		if n > 0 {
			log.WithField("bytes", n).Warn("png: extra compressed data after the last row")
		}
	}
	ch := d.pending
	if ch == nil {
		if d.idatLength > 0 {
			log.WithField("bytes", d.idatLength).Warn("png: trailing bytes in IDAT chunk")
		}
		d.skipChunk(d.idatLength)
		d.idatLength = 0
	}
	for {
		if ch == nil {
			h := d.readChunkHeader()
			ch = &h
		}
		switch ch.name {
		case "IEND":
			if ch.length != 0 {
				d.cfg.fail(formatError("bad IEND length"))
			}
			d.mustVerifyChecksum()
			d.stage = dsSeenIEND
			log.WithField("text_chunks", len(d.md.Text)).Debug("png: trailer parsed")
			return nil
		case "IHDR", "PLTE":
			d.cfg.fail(formatError("chunk out of order"))
		case "IDAT":
			log.Warn("png: ignoring IDAT chunk after the image data")
			d.skipChunk(ch.length)
		default:
			d.parseAncillary(*ch)
		}
		ch = nil
	}
}

// Close releases the decompressor. It is safe to call more than once, only
// the first call has any effect.
func (d *Decoder) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	if d.zr != nil {
		d.zr.Close()
		d.zr = nil
	}
	d.cr, d.pr, d.outRow, d.cv = nil, nil, nil, nil
	return nil
}
