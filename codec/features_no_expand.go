//go:build pngrows_no_expand

package codec

import "github.com/kovidgoyal/pngrows/types"

func init() { compiledOut |= types.FeaturePaletteToRGB | types.FeatureExpandGray }
