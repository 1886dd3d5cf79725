//go:build pngrows_no_filler

package codec

import "github.com/kovidgoyal/pngrows/types"

func init() { compiledOut |= types.FeatureAddAlpha }
