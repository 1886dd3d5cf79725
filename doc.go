/*
Package pngrows holds images as buffers of typed pixels and moves them to and
from PNG streams one row at a time.

The pixel type of an Image decides the layout of its rows. When reading, the
stream is converted to that layout by a transform.Converter for the RGB
family, or checked against it by a transform.Validator otherwise, before any
row is decoded. When writing, the bit depth and color type of the output are
always those of the pixel type.
*/
package pngrows

import "fmt"

type ModuleVersion struct {
	Major, Minor, Patch uint
}

func (v ModuleVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

func (v ModuleVersion) Equal(o ModuleVersion) bool {
	return v.Major == o.Major && v.Minor == o.Minor && v.Patch == o.Patch
}

func (v ModuleVersion) After(o ModuleVersion) bool {
	switch {
	case v.Major != o.Major:
		return v.Major > o.Major
	case v.Minor != o.Minor:
		return v.Minor > o.Minor
	}
	return v.Patch > o.Patch
}

func (v ModuleVersion) Before(o ModuleVersion) bool {
	return !v.Equal(o) && !v.After(o)
}

var Version = ModuleVersion{0, 3, 0}
