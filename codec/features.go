package codec

import "github.com/kovidgoyal/pngrows/types"

// compiledOut collects the features removed by build tags, see the
// features_no_*.go files.
var compiledOut types.Feature

// DefaultFeatures returns the optional conversions this build of the codec
// supports.
func DefaultFeatures() types.Feature {
	return types.AllFeatures &^ compiledOut
}
