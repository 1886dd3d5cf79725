package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zlib"
	"golang.org/x/text/encoding/charmap"

	"github.com/kovidgoyal/pngrows/internal/logging"
	"github.com/kovidgoyal/pngrows/meta"
)

var _ = fmt.Print

func isCritical(name string) bool { return name[0]&0x20 == 0 }

// parseAncillary handles every chunk other than IHDR, PLTE, tRNS, IDAT and
// IEND. Problems in the content of known ancillary chunks are logged and the
// chunk is ignored, only stream level corruption is fatal.
func (d *Decoder) parseAncillary(ch chunkHeader) {
	log := logging.Logger().WithField("chunk", ch.name)
	switch ch.name {
	case "gAMA", "pHYs", "tIME", "tEXt", "zTXt", "iTXt", "eXIf":
		if ch.length > maxMetadataLength {
			log.WithField("length", ch.length).Warn("png: skipping oversized metadata chunk")
			d.skipChunk(ch.length)
			return
		}
		data := d.readChunkData(ch.length)
		if err := parseMetadataChunk(d.md, ch.name, data); err != nil {
			log.WithError(err).Warn("png: ignoring malformed chunk")
		}
	default:
		if isCritical(ch.name) {
			d.cfg.fail(unsupportedError("unknown critical chunk %q", ch.name))
		}
		log.Debug("png: skipping unknown chunk")
		d.skipChunk(ch.length)
	}
}

func splitNull(data []byte) (before, after []byte, ok bool) {
	return bytes.Cut(data, []byte{0})
}

func checkKeyword(k []byte) error {
	if len(k) < 1 || len(k) > 79 {
		return fmt.Errorf("keyword length %d out of range", len(k))
	}
	return nil
}

func inflate(data []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(io.LimitReader(zr, maxMetadataLength))
}

func deflate(data []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, err
	}
	if _, err = zw.Write(data); err != nil {
		return nil, err
	}
	if err = zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func latin1ToUTF8(b []byte) (string, error) {
	ans, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	return string(ans), err
}

func utf8ToLatin1(s string) ([]byte, error) {
	return charmap.ISO8859_1.NewEncoder().Bytes([]byte(s))
}

func parseMetadataChunk(md *meta.Data, name string, data []byte) (err error) {
	switch name {
	case "gAMA":
		if len(data) != 4 {
			return fmt.Errorf("bad gAMA length %d", len(data))
		}
		md.Gamma = binary.BigEndian.Uint32(data)
	case "pHYs":
		if len(data) != 9 {
			return fmt.Errorf("bad pHYs length %d", len(data))
		}
		md.Physical = &meta.PhysicalSize{
			X: binary.BigEndian.Uint32(data[0:4]), Y: binary.BigEndian.Uint32(data[4:8]), PerMeter: data[8] == 1}
	case "tIME":
		if len(data) != 7 {
			return fmt.Errorf("bad tIME length %d", len(data))
		}
		md.ModTime = time.Date(int(binary.BigEndian.Uint16(data[0:2])), time.Month(data[2]), int(data[3]),
			int(data[4]), int(data[5]), int(data[6]), 0, time.UTC)
	case "eXIf":
		md.SetExifData(data)
	case "tEXt":
		k, v, ok := splitNull(data)
		if !ok {
			return fmt.Errorf("missing keyword separator")
		}
		if err = checkKeyword(k); err != nil {
			return err
		}
		t := meta.Text{}
		if t.Keyword, err = latin1ToUTF8(k); err != nil {
			return err
		}
		if t.Value, err = latin1ToUTF8(v); err != nil {
			return err
		}
		md.Text = append(md.Text, t)
	case "zTXt":
		k, v, ok := splitNull(data)
		if !ok || len(v) < 1 {
			return fmt.Errorf("missing keyword separator")
		}
		if err = checkKeyword(k); err != nil {
			return err
		}
		if v[0] != 0 {
			return fmt.Errorf("unknown compression method %d", v[0])
		}
		if v, err = inflate(v[1:]); err != nil {
			return err
		}
		t := meta.Text{Compressed: true}
		if t.Keyword, err = latin1ToUTF8(k); err != nil {
			return err
		}
		if t.Value, err = latin1ToUTF8(v); err != nil {
			return err
		}
		md.Text = append(md.Text, t)
	case "iTXt":
		k, rest, ok := splitNull(data)
		if !ok || len(rest) < 2 {
			return fmt.Errorf("missing keyword separator")
		}
		if err = checkKeyword(k); err != nil {
			return err
		}
		compressed, method := rest[0] == 1, rest[1]
		lang, rest, ok := splitNull(rest[2:])
		if !ok {
			return fmt.Errorf("missing language tag separator")
		}
		translated, text, ok := splitNull(rest)
		if !ok {
			return fmt.Errorf("missing translated keyword separator")
		}
		if compressed {
			if method != 0 {
				return fmt.Errorf("unknown compression method %d", method)
			}
			if text, err = inflate(text); err != nil {
				return err
			}
		}
		t := meta.Text{Value: string(text), Compressed: compressed, International: true,
			LanguageTag: string(lang), TranslatedKeyword: string(translated)}
		if t.Keyword, err = latin1ToUTF8(k); err != nil {
			return err
		}
		md.Text = append(md.Text, t)
	}
	return nil
}

// metadataChunk is one serialized ancillary chunk.
type metadataChunk struct {
	name string
	data []byte
}

// serializeHeaderMetadata returns the chunks that must precede IDAT.
func serializeHeaderMetadata(md *meta.Data) (ans []metadataChunk) {
	if md == nil {
		return
	}
	if md.Gamma != 0 {
		ans = append(ans, metadataChunk{"gAMA", binary.BigEndian.AppendUint32(nil, md.Gamma)})
	}
	if p := md.Physical; p != nil {
		b := binary.BigEndian.AppendUint32(nil, p.X)
		b = binary.BigEndian.AppendUint32(b, p.Y)
		unit := byte(0)
		if p.PerMeter {
			unit = 1
		}
		ans = append(ans, metadataChunk{"pHYs", append(b, unit)})
	}
	return
}

// serializeTrailerMetadata returns the chunks written between the last IDAT and IEND.
func serializeTrailerMetadata(md *meta.Data, level int) (ans []metadataChunk, err error) {
	if md == nil {
		return
	}
	if t := md.ModTime; !t.IsZero() {
		t = t.UTC()
		b := binary.BigEndian.AppendUint16(nil, uint16(t.Year()))
		ans = append(ans, metadataChunk{"tIME", append(b, byte(t.Month()), byte(t.Day()), byte(t.Hour()), byte(t.Minute()), byte(t.Second()))})
	}
	for _, t := range md.Text {
		k, err := utf8ToLatin1(t.Keyword)
		if err != nil {
			return nil, fmt.Errorf("png: text keyword %q cannot be encoded: %w", t.Keyword, err)
		}
		if err = checkKeyword(k); err != nil {
			return nil, fmt.Errorf("png: text keyword %q: %w", t.Keyword, err)
		}
		b := append(k, 0)
		switch {
		case t.International:
			value := []byte(t.Value)
			flag := byte(0)
			if t.Compressed {
				if value, err = deflate(value, level); err != nil {
					return nil, err
				}
				flag = 1
			}
			b = append(b, flag, 0)
			b = append(b, t.LanguageTag...)
			b = append(b, 0)
			b = append(b, t.TranslatedKeyword...)
			b = append(b, 0)
			ans = append(ans, metadataChunk{"iTXt", append(b, value...)})
		default:
			value, err := utf8ToLatin1(t.Value)
			if err != nil {
				return nil, fmt.Errorf("png: text for %q cannot be encoded as Latin-1: %w", t.Keyword, err)
			}
			if t.Compressed {
				if value, err = deflate(value, level); err != nil {
					return nil, err
				}
				ans = append(ans, metadataChunk{"zTXt", append(append(b, 0), value...)})
			} else {
				ans = append(ans, metadataChunk{"tEXt", append(b, value...)})
			}
		}
	}
	if e := md.ExifData(); len(e) > 0 {
		ans = append(ans, metadataChunk{"eXIf", e})
	}
	return
}
