//go:build pngrows_no_strip16

package codec

import "github.com/kovidgoyal/pngrows/types"

func init() { compiledOut |= types.FeatureStrip16 }
