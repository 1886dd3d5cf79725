package meta

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

var _ = fmt.Println

// Text is one textual key/value pair from a tEXt, zTXt or iTXt chunk.
type Text struct {
	Keyword string `json:"keyword"`
	Value   string `json:"value"`
	// Compressed is set for zTXt and compressed iTXt chunks.
	Compressed bool `json:"compressed,omitempty"`
	// International is set for iTXt chunks, whose value is UTF-8.
	International     bool   `json:"international,omitempty"`
	LanguageTag       string `json:"language_tag,omitempty"`
	TranslatedKeyword string `json:"translated_keyword,omitempty"`
}

// PhysicalSize is the content of a pHYs chunk.
type PhysicalSize struct {
	X, Y uint32
	// PerMeter is true when X and Y are pixels per meter, otherwise they only
	// give the aspect ratio.
	PerMeter bool
}

// Data represents the ancillary metadata of a stream, from both before and
// after the pixel data.
type Data struct {
	Text     []Text        `json:"text,omitempty"`
	ModTime  time.Time     `json:"mod_time,omitzero"`
	Gamma    uint32        `json:"gamma,omitempty"` // gamma times 100000, zero if absent
	Physical *PhysicalSize `json:"physical,omitempty"`
	exifData []byte
	exif     *exif.Exif
	exifErr  error
	mutex    sync.Mutex
}

// Returns an extracted EXIF metadata object from this metadata.
//
// An error is returned if the EXIF profile could not be correctly parsed.
//
// If no EXIF data was found, nil is returned without an error.
func (md *Data) Exif() (*exif.Exif, error) {
	md.mutex.Lock()
	defer md.mutex.Unlock()

	if md.exifErr != nil {
		return nil, md.exifErr
	}
	if md.exif != nil {
		return md.exif, nil
	}
	if len(md.exifData) == 0 {
		return nil, nil
	}
	md.exif, md.exifErr = exif.Decode(bytes.NewReader(md.exifData))
	return md.exif, md.exifErr
}

func (md *Data) SetExifData(data []byte) {
	md.mutex.Lock()
	defer md.mutex.Unlock()
	md.exifData = data
	md.exifErr = nil
	md.exif = nil
}

func (md *Data) ExifData() []byte {
	md.mutex.Lock()
	defer md.mutex.Unlock()
	return md.exifData
}

// AddText appends an uncompressed Latin-1 text entry.
func (md *Data) AddText(keyword, value string) {
	md.mutex.Lock()
	defer md.mutex.Unlock()
	md.Text = append(md.Text, Text{Keyword: keyword, Value: value})
}

// Lookup returns the value of the first text entry with the given keyword.
func (md *Data) Lookup(keyword string) (string, bool) {
	md.mutex.Lock()
	defer md.mutex.Unlock()
	for _, t := range md.Text {
		if t.Keyword == keyword {
			return t.Value, true
		}
	}
	return "", false
}

// IsEmpty reports whether there is nothing that would be written out.
func (md *Data) IsEmpty() bool {
	md.mutex.Lock()
	defer md.mutex.Unlock()
	return len(md.Text) == 0 && md.ModTime.IsZero() && md.Gamma == 0 && md.Physical == nil && len(md.exifData) == 0
}

// Clone returns a copy that shares no mutable state with md.
func (md *Data) Clone() *Data {
	md.mutex.Lock()
	defer md.mutex.Unlock()
	ans := &Data{ModTime: md.ModTime, Gamma: md.Gamma, exifData: md.exifData}
	ans.Text = append([]Text(nil), md.Text...)
	if md.Physical != nil {
		p := *md.Physical
		ans.Physical = &p
	}
	return ans
}
