//go:build pngrows_no_gray_to_rgb

package codec

import "github.com/kovidgoyal/pngrows/types"

func init() { compiledOut |= types.FeatureGrayToRGB }
