package libav

import (
	"github.com/asticode/go-astiav"

	"github.com/xaionaro-go/spatialconv/types"
)

func matrixCoefficientsFromLibav(v astiav.ColorSpace) types.MatrixCoefficients {
	switch v {
	case astiav.ColorSpaceBt709:
		return types.MatrixBT709
	case astiav.ColorSpaceBt2020Ncl:
		return types.MatrixBT2020NCL
	}
	return types.MatrixUnspecified
}
