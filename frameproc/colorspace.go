package frameproc

import (
	"github.com/xaionaro-go/spatialconv/types"
)

// OutputColorSpace derives the color space the output buffers are
// tagged with. Known wide-gamut primaries are mapped to the
// display-referred wide-gamut space; any other tagged source color is
// propagated as-is; a source without color tags falls back to the
// device-default RGB.
func OutputColorSpace(ci types.ColorInfo) types.ColorSpace {
	switch {
	case ci.Primaries == types.ColorPrimariesP3D65:
		return types.DisplayP3
	case ci.IsSpecified():
		return types.ColorSpace{
			Primaries: ci.Primaries,
			Transfer:  ci.Transfer,
			Matrix:    ci.Matrix,
		}
	default:
		return types.DeviceRGB
	}
}
