//go:build pngrows_no_interlacing

package codec

import "github.com/kovidgoyal/pngrows/types"

func init() { compiledOut |= types.FeatureInterlacing }
