//go:build pngrows_no_strip_alpha

package codec

import "github.com/kovidgoyal/pngrows/types"

func init() { compiledOut |= types.FeatureStripAlpha }
