package types

import (
	"strings"
)

// Feature is one optional conversion the codec may have been built without.
type Feature uint32

const (
	FeatureStrip16 Feature = 1 << iota
	FeatureStripAlpha
	FeatureAddAlpha
	FeaturePaletteToRGB
	FeatureExpandGray
	FeatureGrayToRGB
	FeatureInterlacing
)

// AllFeatures is the set of every optional conversion.
const AllFeatures = FeatureStrip16 | FeatureStripAlpha | FeatureAddAlpha | FeaturePaletteToRGB |
	FeatureExpandGray | FeatureGrayToRGB | FeatureInterlacing

var featureNames = []struct {
	f         Feature
	name, tag string
}{
	{FeatureStrip16, "16-to-8", "pngrows_no_strip16"},
	{FeatureStripAlpha, "strip-alpha", "pngrows_no_strip_alpha"},
	{FeatureAddAlpha, "add-alpha", "pngrows_no_filler"},
	{FeaturePaletteToRGB, "palette-to-rgb", "pngrows_no_expand"},
	{FeatureExpandGray, "gray-expand", "pngrows_no_expand"},
	{FeatureGrayToRGB, "gray-to-rgb", "pngrows_no_gray_to_rgb"},
	{FeatureInterlacing, "interlacing", "pngrows_no_interlacing"},
}

// Name is the short feature name used in diagnostics.
func (f Feature) Name() string {
	for _, x := range featureNames {
		if x.f == f {
			return x.name
		}
	}
	return "unknown"
}

// BuildTag is the build tag which removes this feature from the codec.
func (f Feature) BuildTag() string {
	for _, x := range featureNames {
		if x.f == f {
			return x.tag
		}
	}
	return ""
}

// Has reports whether every feature in x is present in f.
func (f Feature) Has(x Feature) bool { return f&x == x }

func (f Feature) String() string {
	var parts []string
	for _, x := range featureNames {
		if f.Has(x.f) {
			parts = append(parts, x.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// List returns the individual features in f.
func (f Feature) List() (ans []Feature) {
	for _, x := range featureNames {
		if f.Has(x.f) {
			ans = append(ans, x.f)
		}
	}
	return
}
