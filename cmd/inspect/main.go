package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kovidgoyal/pngrows/codec"
	"github.com/kovidgoyal/pngrows/meta"
	"github.com/kovidgoyal/pngrows/types"
)

var _ = fmt.Print

type report struct {
	Header    types.Header `json:"header"`
	Features  []string     `json:"available_features"`
	Palette   int          `json:"palette_entries,omitempty"`
	Text      []meta.Text  `json:"text,omitempty"`
	ModTime   *time.Time   `json:"mod_time,omitempty"`
	Gamma     uint32       `json:"gamma,omitempty"`
	Physical  any          `json:"physical,omitempty"`
	Exif      any          `json:"exif,omitempty"`
	ExifError string       `json:"exif_error,omitempty"`
}

var withTrailer bool

var rootCmd = &cobra.Command{
	Use:          "inspect input-file",
	Short:        "Print the header and metadata of a PNG file as JSON",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().BoolVarP(&withTrailer, "trailer", "t", true, "decode the image data to also report chunks after it")
}

func run(c *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()
	d := codec.NewDecoder(f)
	defer d.Close()
	if err = d.ReadInfo(); err != nil {
		return err
	}
	if withTrailer {
		passes := 1
		if d.Header().Interlace == types.InterlaceAdam7 {
			if passes, err = d.SetInterlaceHandling(); err != nil {
				return err
			}
		}
		row := make([]byte, d.RowBytes())
		for range passes * int(d.Header().Height) {
			if err = d.ReadRow(row); err != nil {
				return err
			}
		}
		if err = d.ReadEnd(); err != nil {
			return err
		}
	}
	r := report{Header: d.Header(), Palette: len(d.Palette())}
	for _, ft := range types.AllFeatures.List() {
		if d.Supports(ft) {
			r.Features = append(r.Features, ft.Name())
		}
	}
	md := d.Metadata()
	r.Text, r.Gamma = md.Text, md.Gamma
	if !md.ModTime.IsZero() {
		r.ModTime = &md.ModTime
	}
	if md.Physical != nil {
		r.Physical = md.Physical
	}
	if x, err := md.Exif(); err != nil {
		r.ExifError = err.Error()
	} else if x != nil {
		r.Exif = x
	}
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
