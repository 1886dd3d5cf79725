package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/kovidgoyal/pngrows"
	"github.com/kovidgoyal/pngrows/pixel"
	"github.com/kovidgoyal/pngrows/transform"
	"github.com/kovidgoyal/pngrows/types"
)

var _ = fmt.Print

var opts struct {
	alpha     bool
	filler    uint8
	interlace bool
	level     int
	logLevel  string
}

var rootCmd = &cobra.Command{
	Use:          "demo input-file [output-file]",
	Short:        "Convert a PNG image to 8-bit RGB or RGBA",
	Args:         cobra.RangeArgs(1, 2),
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	f := rootCmd.Flags()
	f.BoolVarP(&opts.alpha, "alpha", "a", false, "convert to RGBA instead of RGB")
	f.Uint8Var(&opts.filler, "filler", 0xff, "alpha value used when the input has no alpha channel")
	f.BoolVarP(&opts.interlace, "interlace", "i", false, "write an interlaced PNG")
	f.IntVarP(&opts.level, "level", "l", -1, "zlib compression level of PNG output")
	f.StringVar(&opts.logLevel, "log-level", "warning", "log level")
}

func convert[P pixel.Pixel[P]](input, output string, t transform.Transform) error {
	img, err := pngrows.Open[P](input, pngrows.WithTransform(t))
	if err != nil {
		return err
	}
	log.WithField("header", img.Header().String()).Info("Decoded")
	eopts := []pngrows.EncodeOption{pngrows.WithCompressionLevel(opts.level)}
	if opts.interlace {
		eopts = append(eopts, pngrows.WithInterlace(types.InterlaceAdam7))
	}
	return img.Save(output, eopts...)
}

func run(c *cobra.Command, args []string) (err error) {
	level, err := log.ParseLevel(opts.logLevel)
	if err != nil {
		return err
	}
	logger := log.New()
	logger.SetLevel(level)
	pngrows.SetLogger(logger)

	output_file := args[0] + ".out.png"
	if len(args) == 2 {
		output_file = args[1]
	}
	if opts.alpha {
		err = convert[pixel.RGBA8](args[0], output_file, transform.NewConverter(transform.RGBA, transform.Filler(uint32(opts.filler))))
	} else {
		err = convert[pixel.RGB8](args[0], output_file, transform.NewConverter(transform.RGB))
	}
	if err == nil {
		fmt.Println("Saved to:", output_file)
	}
	return
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
