package types

import (
	"fmt"
)

// ColorPrimaries identifies the chromaticity coordinates of the source
// primaries, following the H.273 code points.
type ColorPrimaries int

const (
	ColorPrimariesUnspecified ColorPrimaries = iota
	ColorPrimariesBT709
	ColorPrimariesBT2020
	ColorPrimariesP3D65
)

func (p ColorPrimaries) String() string {
	switch p {
	case ColorPrimariesUnspecified:
		return "<unspecified>"
	case ColorPrimariesBT709:
		return "bt709"
	case ColorPrimariesBT2020:
		return "bt2020"
	case ColorPrimariesP3D65:
		return "p3-d65"
	default:
		return fmt.Sprintf("<unexpected_primaries_%d>", int(p))
	}
}

// TransferCharacteristic identifies the opto-electronic transfer function.
type TransferCharacteristic int

const (
	TransferUnspecified TransferCharacteristic = iota
	TransferBT709
	TransferSRGB
	TransferPQ
)

// MatrixCoefficients identifies the YCbCr<->RGB conversion matrix.
type MatrixCoefficients int

const (
	MatrixUnspecified MatrixCoefficients = iota
	MatrixBT709
	MatrixBT2020NCL
)

// ColorInfo is the color metadata captured from a source video stream.
// Any of the fields may be unspecified when the container does not carry
// the corresponding tag.
type ColorInfo struct {
	Primaries ColorPrimaries
	Transfer  TransferCharacteristic
	Matrix    MatrixCoefficients
}

// IsSpecified reports whether at least one of the color tags is present.
func (ci ColorInfo) IsSpecified() bool {
	return ci.Primaries != ColorPrimariesUnspecified ||
		ci.Transfer != TransferUnspecified ||
		ci.Matrix != MatrixUnspecified
}

// ColorSpace is the color space an output frame buffer is tagged with.
type ColorSpace struct {
	Primaries ColorPrimaries
	Transfer  TransferCharacteristic
	Matrix    MatrixCoefficients

	// DisplayReferred marks color spaces that are defined relative to a
	// reference display rather than to scene light.
	DisplayReferred bool
}

// DeviceRGB is the fallback output color space used when the source
// carries no color tags at all.
var DeviceRGB = ColorSpace{}

// DisplayP3 is the display-referred wide-gamut color space the known
// wide-gamut primaries are mapped to.
var DisplayP3 = ColorSpace{
	Primaries:       ColorPrimariesP3D65,
	Transfer:        TransferSRGB,
	Matrix:          MatrixBT709,
	DisplayReferred: true,
}

func (cs ColorSpace) String() string {
	switch cs {
	case DeviceRGB:
		return "device-rgb"
	case DisplayP3:
		return "display-p3"
	default:
		return fmt.Sprintf("ColorSpace(%s, %d, %d)", cs.Primaries, int(cs.Transfer), int(cs.Matrix))
	}
}
