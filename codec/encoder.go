package codec

import (
	"bufio"
	"encoding/binary"
	"hash/crc32"
	"io"

	"github.com/klauspost/compress/zlib"

	"github.com/kovidgoyal/pngrows/internal/logging"
	"github.com/kovidgoyal/pngrows/meta"
	"github.com/kovidgoyal/pngrows/types"
)

// Encoding stage.
const (
	esStart = iota
	esHeaderSet
	esInfoWritten
	esRowsDone
	esEndWritten
)

// An Encoder writes a PNG stream one row at a time. Call SetHeader, WriteInfo,
// then WriteRow once per row (once per row per pass for interlaced output
// with interlace handling), then WriteEnd and Close.
type Encoder struct {
	cfg               config
	w                 io.Writer
	header            types.Header
	md                *meta.Data
	stage             int
	interlaceHandling bool
	format            rowFormat
	zw                *zlib.Writer
	bw                *bufio.Writer
	cr                [nFilter][]byte
	pr                []byte
	reduced           []byte
	pass, y           int
	tmp               [8]byte
	closed            bool
}

// NewEncoder returns an encoder writing to w. Nothing is written until WriteInfo.
func NewEncoder(w io.Writer, opts ...Option) *Encoder {
	e := &Encoder{cfg: defaultConfig(), w: w}
	for _, o := range opts {
		o(&e.cfg)
	}
	return e
}

func (e *Encoder) write(b []byte) {
	if _, err := e.w.Write(b); err != nil {
		e.cfg.fail(ioError("write", err))
	}
}

func (e *Encoder) writeChunkErr(b []byte, name string) error {
	if uint64(len(b)) > maxChunkLength {
		return usageError("%s chunk is too large: %d", name, len(b))
	}
	binary.BigEndian.PutUint32(e.tmp[:4], uint32(len(b)))
	copy(e.tmp[4:8], name)
	crc := crc32.NewIEEE()
	crc.Write(e.tmp[4:8])
	crc.Write(b)
	if _, err := e.w.Write(e.tmp[:8]); err != nil {
		return ioError("write", err)
	}
	if _, err := e.w.Write(b); err != nil {
		return ioError("write", err)
	}
	binary.BigEndian.PutUint32(e.tmp[:4], crc.Sum32())
	if _, err := e.w.Write(e.tmp[:4]); err != nil {
		return ioError("write", err)
	}
	return nil
}

func (e *Encoder) writeChunk(b []byte, name string) {
	if err := e.writeChunkErr(b, name); err != nil {
		e.cfg.fail(err)
	}
}

// Write writes b as a single IDAT chunk. It is only called through the
// buffered writer the compressor writes into, so errors are returned.
func (e *Encoder) Write(b []byte) (int, error) {
	if err := e.writeChunkErr(b, "IDAT"); err != nil {
		return 0, err
	}
	return len(b), nil
}

// SetHeader sets the header to write. Width, height, bit depth and color type
// must describe the rows that will be passed to WriteRow.
func (e *Encoder) SetHeader(h types.Header) (err error) {
	defer e.cfg.recover(&err)
	if e.closed || e.stage > esHeaderSet {
		e.cfg.fail(usageError("SetHeader called after WriteInfo"))
	}
	if err := h.Validate(); err != nil {
		return err
	}
	if h.ColorType == types.Palette {
		return unsupportedError("writing indexed color images")
	}
	e.header = h
	e.stage = esHeaderSet
	return nil
}

func (e *Encoder) Header() types.Header          { return e.header }
func (e *Encoder) BitDepth() int                 { return e.header.BitDepth }
func (e *Encoder) ColorType() types.ColorType    { return e.header.ColorType }
func (e *Encoder) Supports(f types.Feature) bool { return e.cfg.features.Has(f) }

// SetMetadata sets the ancillary data to write. gAMA and pHYs go before the
// image data, text, time and EXIF after it.
func (e *Encoder) SetMetadata(md *meta.Data) { e.md = md }

// SetInterlaceHandling makes WriteRow accept full rows for interlaced output,
// the Encoder extracts the pixels of the current pass itself. It returns the
// number of passes over the rows the caller must make.
func (e *Encoder) SetInterlaceHandling() (passes int, err error) {
	if err = e.cfg.require(types.FeatureInterlacing, ""); err != nil {
		return 0, err
	}
	defer e.cfg.recover(&err)
	if e.stage != esHeaderSet && e.stage != esInfoWritten || e.y > 0 || e.pass > 0 {
		e.cfg.fail(usageError("interlace handling requested at the wrong time"))
	}
	e.interlaceHandling = true
	if e.header.Interlace == types.InterlaceAdam7 {
		return len(adam7), nil
	}
	return 1, nil
}

// RowBytes is the number of bytes WriteRow expects per row.
func (e *Encoder) RowBytes() int {
	return types.RowBytes(int(e.header.Width), e.header.ColorType.Channels(), e.header.BitDepth)
}

// WriteInfo writes the signature, IHDR and the metadata that precedes the
// image data.
func (e *Encoder) WriteInfo() (err error) {
	defer e.cfg.recover(&err)
	if e.closed || e.stage != esHeaderSet {
		e.cfg.fail(usageError("WriteInfo called before SetHeader"))
	}
	h := e.header
	var ihdr [13]byte
	binary.BigEndian.PutUint32(ihdr[0:4], h.Width)
	binary.BigEndian.PutUint32(ihdr[4:8], h.Height)
	ihdr[8] = uint8(h.BitDepth)
	ihdr[9] = uint8(h.ColorType)
	ihdr[10] = uint8(h.Compression)
	ihdr[11] = uint8(h.Filter)
	ihdr[12] = uint8(h.Interlace)
	e.write([]byte(pngHeader))
	e.writeChunk(ihdr[:], "IHDR")
	for _, c := range serializeHeaderMetadata(e.md) {
		e.writeChunk(c.data, c.name)
	}
	e.format = formatOf(h.ColorType, h.BitDepth)
	rowSize := 1 + e.format.rowBytes(int(h.Width))
	for i := range e.cr {
		e.cr[i] = make([]byte, rowSize)
		e.cr[i][0] = byte(i)
	}
	e.pr = make([]byte, rowSize)
	e.reduced = make([]byte, rowSize-1)
	// The bufio.Writer here is sized so that each IDAT chunk is at most 64KiB
	e.bw = bufio.NewWriterSize(e, 1<<16)
	if e.zw, err = zlib.NewWriterLevel(e.bw, e.cfg.compressionLevel); err != nil {
		e.cfg.fail(usageError("%s", err))
	}
	e.stage = esInfoWritten
	logging.Logger().WithField("header", h.String()).Debug("png: header written")
	return nil
}

func (e *Encoder) writeFiltered(row []byte) {
	n := len(row)
	copy(e.cr[0][1:], row)
	adaptive := e.format.colorType != types.Palette && e.format.depth >= 8
	f := chooseFilter(&e.cr, e.pr[:n+1], e.format.bytesPerPixelFilter(), adaptive)
	if _, err := e.zw.Write(e.cr[f][:n+1]); err != nil {
		e.cfg.fail(classify(err))
	}
	// The current row for y is the previous row for y+1.
	e.pr, e.cr[0] = e.cr[0], e.pr
	e.cr[0][0] = ftNone
}

func (e *Encoder) advance() {
	e.y++
	if e.y < int(e.header.Height) {
		return
	}
	e.y = 0
	if e.header.Interlace == types.InterlaceAdam7 {
		e.pass++
		clear(e.pr)
		if e.pass < len(adam7) {
			return
		}
	}
	e.stage = esRowsDone
}

// WriteRow compresses the next row from src, which must be RowBytes long.
func (e *Encoder) WriteRow(src []byte) (err error) {
	defer e.cfg.recover(&err)
	if e.closed || e.stage != esInfoWritten {
		e.cfg.fail(usageError("WriteRow called out of order"))
	}
	width := int(e.header.Width)
	if len(src) < e.RowBytes() {
		e.cfg.fail(usageError("row of %d bytes is shorter than %d", len(src), e.RowBytes()))
	}
	if e.header.Interlace == types.InterlaceAdam7 {
		if !e.interlaceHandling {
			e.cfg.fail(usageError("interlaced image written without interlace handling"))
		}
		if p := adam7[e.pass]; p.contains(e.y, width) {
			n := p.width(width)
			out := e.reduced[:e.format.rowBytes(n)]
			clear(out)
			p.gather(out, src, n, e.format.bitsPerPixel())
			e.writeFiltered(out)
		}
	} else {
		e.writeFiltered(src[:e.RowBytes()])
	}
	e.advance()
	return nil
}

// WriteEnd finishes the image data and writes the trailing metadata and IEND.
func (e *Encoder) WriteEnd() (err error) {
	defer e.cfg.recover(&err)
	if e.closed || e.stage != esRowsDone {
		e.cfg.fail(usageError("WriteEnd called before all rows were written"))
	}
	if err := e.zw.Close(); err != nil {
		e.cfg.fail(classify(err))
	}
	if err := e.bw.Flush(); err != nil {
		e.cfg.fail(classify(err))
	}
	chunks, err := serializeTrailerMetadata(e.md, e.cfg.compressionLevel)
	if err != nil {
		e.cfg.fail(usageError("%s", err))
	}
	for _, c := range chunks {
		e.writeChunk(c.data, c.name)
	}
	e.writeChunk(nil, "IEND")
	e.stage = esEndWritten
	return nil
}

// Close releases the compressor. It is safe to call more than once, only the
// first call has any effect. Closing before WriteEnd leaves a truncated stream.
func (e *Encoder) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	e.zw, e.bw, e.pr, e.reduced = nil, nil, nil, nil
	e.cr = [nFilter][]byte{}
	return nil
}
